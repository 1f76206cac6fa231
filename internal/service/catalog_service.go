package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scooter-shop/internal/images"
	"scooter-shop/internal/models"
	"scooter-shop/internal/store"
	"scooter-shop/internal/util"

	"go.uber.org/zap"
)

// ErrInvalidProduct is returned when a product would be saved without a name
var ErrInvalidProduct = errors.New("product name is required")

// CatalogService handles product business logic
type CatalogService struct {
	products store.ProductStore
	images   *images.Resolver
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(products store.ProductStore, resolver *images.Resolver) *CatalogService {
	return &CatalogService{
		products: products,
		images:   resolver,
		logger:   util.ComponentLogger("catalog"),
	}
}

// ProductRequest is a create or update payload, optionally carrying an
// uploaded image file.
type ProductRequest struct {
	Input models.ProductInput
	File  *images.Upload
}

// ListProducts returns the products matching filter
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	filter.Search = strings.TrimSpace(filter.Search)
	filter.Category = strings.TrimSpace(filter.Category)
	return s.products.ListProducts(ctx, filter)
}

// GetProduct retrieves a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct", util.ProductIDKey.Int64(id))
	defer span.End()

	return s.products.GetProduct(ctx, id)
}

// CreateProduct stores a new product
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()

	product := &models.Product{Status: models.ProductStatusInStock}
	req.Input.ApplyTo(product)
	if product.Name == "" {
		return nil, ErrInvalidProduct
	}

	image, err := s.pickImage(ctx, req, "")
	if err != nil {
		return nil, err
	}
	product.Image = image

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	span.SetAttributes(util.ProductIDKey.Int64(product.ID))
	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("code", product.Code))

	return product, nil
}

// UpdateProduct merges the request into the stored product. Omitted fields
// keep their previous values.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct", util.ProductIDKey.Int64(id))
	defer span.End()

	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	req.Input.ApplyTo(product)
	if product.Name == "" {
		return nil, ErrInvalidProduct
	}

	image, err := s.pickImage(ctx, req, product.Image)
	if err != nil {
		return nil, err
	}
	product.Image = image

	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", id, err)
	}

	util.ProductsUpdatedTotal.Inc()
	s.logger.Info("Product updated", zap.Int64("product_id", id))

	return product, nil
}

// DeleteProduct removes a product and reports how many records went away
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct", util.ProductIDKey.Int64(id))
	defer span.End()

	deleted, err := s.products.DeleteProduct(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete product %d: %w", id, err)
	}

	if deleted > 0 {
		util.ProductsDeletedTotal.Add(float64(deleted))
		s.logger.Info("Product deleted", zap.Int64("product_id", id))
	}
	return deleted, nil
}

// UploadImage stores a standalone image and returns its canonical reference
func (s *CatalogService) UploadImage(ctx context.Context, up images.Upload) (string, error) {
	return s.images.Store(ctx, up)
}

// ImageURL expands a stored reference for clients
func (s *CatalogService) ImageURL(ref string) string {
	return s.images.Resolve(ref)
}

// pickImage chooses the image reference in order of precedence: uploaded
// file, image field, currentImage echo, previous value.
func (s *CatalogService) pickImage(ctx context.Context, req *ProductRequest, previous string) (string, error) {
	if req.File != nil && len(req.File.Data) > 0 {
		return s.images.Store(ctx, *req.File)
	}

	for _, ref := range []*string{req.Input.Image, req.Input.CurrentImage} {
		if ref == nil || strings.TrimSpace(*ref) == "" {
			continue
		}
		if strings.TrimSpace(*ref) == previous {
			return previous, nil
		}
		return s.images.Store(ctx, images.Upload{Reference: *ref})
	}

	return previous, nil
}
