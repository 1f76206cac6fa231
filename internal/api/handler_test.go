package api

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"scooter-shop/internal/auth"
	"scooter-shop/internal/broker"
	"scooter-shop/internal/images"
	"scooter-shop/internal/models"
	"scooter-shop/internal/service"
	"scooter-shop/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type testServer struct {
	router *gin.Engine
	cookie *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	db, err := store.NewFileStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)
	storage, err := images.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	resolver := images.NewResolver(storage, "/uploads", "/img/scooter2.png")
	gate := auth.NewGate(auth.NewMemoryStore(),
		auth.Credentials{Login: "admin", Password: "1234"},
		auth.Options{TTL: time.Hour})

	handler := NewHandler(
		service.NewCatalogService(db, resolver),
		service.NewOrderService(db, broker.NoopPublisher{}),
		gate,
		resolver,
		db,
		1<<20,
	)

	router := gin.New()
	handler.SetupRoutes(router)
	return &testServer{router: router}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T) {
	w := s.do(jsonRequest(t, http.MethodPost, "/api/login", gin.H{"login": "admin", "password": "1234"}))
	require.Equal(t, http.StatusOK, w.Code)

	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == "shop_session" {
			s.cookie = cookie
		}
	}
	require.NotNil(t, s.cookie)
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type productResponse struct {
	models.Product
	ImageURL string `json:"imageUrl"`
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ready"`)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/login", gin.H{"login": "admin", "password": "nope"}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"invalid_credentials"}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())

	s.login(t)
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.JSONEq(t, `{"authenticated":true}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodPost, "/api/logout", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	requests := []*http.Request{
		jsonRequest(t, http.MethodPost, "/api/products", gin.H{"name": "x"}),
		jsonRequest(t, http.MethodPut, "/api/products/1", gin.H{"name": "x"}),
		httptest.NewRequest(http.MethodDelete, "/api/products/1", nil),
		httptest.NewRequest(http.MethodPost, "/api/upload", nil),
		httptest.NewRequest(http.MethodGet, "/api/orders", nil),
	}
	for _, req := range requests {
		w := s.do(req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, req.Method+" "+req.URL.Path)
		assert.JSONEq(t, `{"error":"not_authorized"}`, w.Body.String())
	}
}

func TestProductLifecycle(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/products", gin.H{
		"name":     "Держатель для телефона",
		"code":     "AT00005",
		"category": "аксессуары",
		"price":    "375",
		"quantity": -3,
		"status":   "expected",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created productResponse
	decode(t, w, &created)
	assert.NotZero(t, created.ID)
	assert.Equal(t, int64(375), created.Price)
	assert.Equal(t, int64(0), created.Quantity)
	assert.Equal(t, models.ProductStatusExpected, created.Status)
	assert.Equal(t, "/img/scooter2.png", created.ImageURL)

	id := created.ID
	path := "/api/products/" + jsonNumber(id)

	w = s.do(jsonRequest(t, http.MethodPut, path, gin.H{"price": 400}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated productResponse
	decode(t, w, &updated)
	assert.Equal(t, int64(400), updated.Price)
	assert.Equal(t, "AT00005", updated.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products?"+url.Values{"category": {"Аксессуары"}}.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed []productResponse
	decode(t, w, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, id, listed[0].ID)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products?search=at0000", nil))
	decode(t, w, &listed)
	assert.Len(t, listed, 1)

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products?search=nothing", nil))
	assert.JSONEq(t, `[]`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":1}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodDelete, path, nil))
	assert.JSONEq(t, `{"deleted":0}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, w.Body.String())

	w = s.do(jsonRequest(t, http.MethodPut, path, gin.H{"name": "x"}))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductValidation(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/products", gin.H{"code": "X"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid_product"}`, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewBufferString("{broken"))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid_body"}`, w.Body.String())

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/products/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid_id"}`, w.Body.String())
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileField, filename string, data []byte) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMultipartProductWithImage(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(multipartRequest(t, http.MethodPost, "/api/products",
		map[string]string{"name": "Фара", "price": "950", "category": "свет"},
		"image", "big lamp.png", pngBytes))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created productResponse
	decode(t, w, &created)
	assert.Regexp(t, `^/uploads/\d+_big_lamp\.png$`, created.Image)
	assert.Equal(t, created.Image, created.ImageURL)

	w = s.do(httptest.NewRequest(http.MethodGet, created.ImageURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = s.do(multipartRequest(t, http.MethodPut, "/api/products/"+jsonNumber(created.ID),
		map[string]string{"currentImage": created.Image, "price": "1000"}, "", "", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated productResponse
	decode(t, w, &updated)
	assert.Equal(t, created.Image, updated.Image)
	assert.Equal(t, int64(1000), updated.Price)
	assert.Equal(t, "Фара", updated.Name)
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	w := s.do(multipartRequest(t, http.MethodPost, "/api/upload", nil, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"no_file"}`, w.Body.String())

	w = s.do(multipartRequest(t, http.MethodPost, "/api/upload", nil, "file", "scan.png", pngBytes))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Filename string `json:"filename"`
		URL      string `json:"url"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "/uploads/"+resp.Filename, resp.URL)

	w = s.do(httptest.NewRequest(http.MethodGet, resp.URL, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadAwkwardFilenamesCanBeFetched(t *testing.T) {
	s := newTestServer(t)
	s.login(t)

	for _, name := range []string{"plain.png", "what?.png", "100%.png", "a#b.png"} {
		w := s.do(multipartRequest(t, http.MethodPost, "/api/upload", nil, "file", name, pngBytes))
		require.Equal(t, http.StatusOK, w.Code, name)

		var resp struct {
			URL string `json:"url"`
		}
		decode(t, w, &resp)
		assert.Regexp(t, `^/uploads/[A-Za-z0-9._-]+$`, resp.URL, name)

		w = s.do(httptest.NewRequest(http.MethodGet, resp.URL, nil))
		require.Equal(t, http.StatusOK, w.Code, name)
		assert.Equal(t, pngBytes, w.Body.Bytes(), name)
	}
}

func TestOrders(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/orders", gin.H{
		"name":       "Иван",
		"phone":      "+79000000000",
		"city":       "Казань",
		"comment":    "после 18:00",
		"totalPrice": 1075,
		"items": []gin.H{
			{"productId": 1, "name": "Сигнализация", "code": "OA00004", "price": 350, "qty": 2, "lineTotal": 700},
			{"productId": 2, "name": "Держатель", "code": "AT00005", "price": 375, "qty": 1, "lineTotal": 375},
		},
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Order
	decode(t, w, &created)
	assert.NotZero(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, "Иван", created.CustomerName)
	assert.Len(t, created.Items, 2)

	s.login(t)
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var orders []models.Order
	decode(t, w, &orders)
	require.Len(t, orders, 1)
	require.Len(t, orders[0].Items, 2)
	assert.Equal(t, int64(700), orders[0].Items[0].LineTotal)
	assert.Equal(t, int64(375), orders[0].Items[1].LineTotal)
	assert.Equal(t, int64(1075), orders[0].TotalPrice)
}

func TestOrderLineTotals(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/orders", gin.H{
		"name":       "Оля",
		"totalPrice": 1050,
		"items": []gin.H{
			{"productId": 1, "name": "Сигнализация", "price": 350, "qty": 3},
			{"productId": 2, "name": "Подарок", "price": 375, "qty": 1, "lineTotal": 0},
			{"productId": 3, "name": "Фара", "price": "9223372036854775807", "qty": 2},
		},
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Order
	decode(t, w, &created)
	require.Len(t, created.Items, 3)
	assert.Equal(t, int64(1050), created.Items[0].LineTotal)
	assert.Equal(t, int64(0), created.Items[1].LineTotal)
	assert.Equal(t, int64(math.MaxInt64), created.Items[2].LineTotal)
}

func TestOrderWithBadItemIsRejected(t *testing.T) {
	s := newTestServer(t)

	w := s.do(jsonRequest(t, http.MethodPost, "/api/orders", gin.H{
		"name":  "Пётр",
		"items": []gin.H{{"name": "ok", "price": 10, "qty": 1}, {"name": "bad", "price": 10, "qty": 0}},
	}))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"db_error"}`, w.Body.String())

	s.login(t)
	w = s.do(httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.JSONEq(t, `[]`, w.Body.String())
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
