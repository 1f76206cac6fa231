package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"

	"scooter-shop/internal/images"
	"scooter-shop/internal/models"
	"scooter-shop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

var (
	errInvalidBody  = errors.New("invalid request body")
	errBodyTooLarge = errors.New("request body too large")
)

// productView is a product as sent to clients, with its image reference
// expanded into something a browser can load.
type productView struct {
	models.Product
	ImageURL string `json:"imageUrl"`
}

func (h *Handler) view(p *models.Product) productView {
	return productView{Product: *p, ImageURL: h.catalog.ImageURL(p.Image)}
}

// listProducts handles GET /api/products?search=&category=
func (h *Handler) listProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	views := make([]productView, 0, len(products))
	for i := range products {
		views = append(views, h.view(&products[i]))
	}
	c.JSON(http.StatusOK, views)
}

// getProduct handles get product by ID
func (h *Handler) getProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.view(product))
}

// createProduct handles product creation from JSON or multipart bodies
func (h *Handler) createProduct(c *gin.Context) {
	req, err := h.bindProduct(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.view(product))
}

// updateProduct handles product updates; omitted fields are kept
func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	req, err := h.bindProduct(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.view(product))
}

// deleteProduct handles product removal. A missing id reports zero deleted.
func (h *Handler) deleteProduct(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := h.catalog.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// uploadImage stores a standalone image sent as multipart field "file"
func (h *Handler) uploadImage(c *gin.Context) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		h.respondError(c, images.ErrNoFileSupplied)
		return
	}

	_, upload, err := h.readMultipart(c, "file", "image")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if upload == nil {
		h.respondError(c, images.ErrNoFileSupplied)
		return
	}

	ref, err := h.catalog.UploadImage(c.Request.Context(), *upload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filename": path.Base(ref),
		"url":      h.images.Resolve(ref),
	})
}

// serveUpload streams a stored image back to the client
func (h *Handler) serveUpload(c *gin.Context) {
	rc, contentType, err := h.images.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control": "public, max-age=86400",
	})
}

// bindProduct decodes a product payload from JSON, urlencoded or multipart
// bodies. Multipart requests may carry the image file as "image" or "file".
func (h *Handler) bindProduct(c *gin.Context) (*service.ProductRequest, error) {
	switch c.ContentType() {
	case binding.MIMEMultipartPOSTForm:
		form, upload, err := h.readMultipart(c, "image", "file")
		if err != nil {
			return nil, err
		}
		return &service.ProductRequest{Input: inputFromValues(form.Value), File: upload}, nil

	case binding.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		return &service.ProductRequest{Input: inputFromValues(c.Request.PostForm)}, nil

	default:
		var in models.ProductInput
		if err := c.ShouldBindJSON(&in); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		return &service.ProductRequest{Input: in}, nil
	}
}

// readMultipart parses a multipart body and returns the first file found
// under one of fields.
func (h *Handler) readMultipart(c *gin.Context, fields ...string) (*multipart.Form, *images.Upload, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, errBodyTooLarge
		}
		return nil, nil, fmt.Errorf("%w: %v", errInvalidBody, err)
	}

	for _, field := range fields {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		upload, err := readUpload(headers[0])
		if err != nil {
			return nil, nil, err
		}
		h.logger.Debug("Received upload",
			zap.String("field", field),
			zap.String("filename", upload.Filename),
			zap.Int("bytes", len(upload.Data)))
		return form, upload, nil
	}

	return form, nil, nil
}

func readUpload(fh *multipart.FileHeader) (*images.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return &images.Upload{Filename: fh.Filename, Data: data}, nil
}

// inputFromValues maps form fields onto a product input. Fields absent from
// the form stay nil.
func inputFromValues(values map[string][]string) models.ProductInput {
	str := func(key string) *string {
		if vs := values[key]; len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	amount := func(key string) *models.Amount {
		if s := str(key); s != nil {
			a := models.ParseAmount(*s)
			return &a
		}
		return nil
	}

	return models.ProductInput{
		Name:         str("name"),
		Code:         str("code"),
		Description:  str("description"),
		Category:     str("category"),
		Price:        amount("price"),
		Status:       str("status"),
		Quantity:     amount("quantity"),
		Image:        str("image"),
		CurrentImage: str("currentImage"),
	}
}
