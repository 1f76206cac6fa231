package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"scooter-shop/internal/auth"
	"scooter-shop/internal/images"
	"scooter-shop/internal/service"
	"scooter-shop/internal/store"
	"scooter-shop/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pinger reports whether a backing dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	catalog        *service.CatalogService
	orders         *service.OrderService
	gate           *auth.Gate
	images         *images.Resolver
	store          Pinger
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog *service.CatalogService,
	orders *service.OrderService,
	gate *auth.Gate,
	resolver *images.Resolver,
	store Pinger,
	maxUploadBytes int64,
) *Handler {
	return &Handler{
		catalog:        catalog,
		orders:         orders,
		gate:           gate,
		images:         resolver,
		store:          store,
		maxUploadBytes: maxUploadBytes,
		logger:         util.ComponentLogger("api"),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(cors.Default())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET(h.images.Prefix()+"/:filename", h.serveUpload)

	requireAuth := h.gate.RequireAuth()

	api := router.Group("/api")
	{
		api.POST("/login", h.login)
		api.POST("/logout", h.logout)
		api.GET("/session", h.session)

		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.POST("/products", requireAuth, h.createProduct)
		api.PUT("/products/:id", requireAuth, h.updateProduct)
		api.DELETE("/products/:id", requireAuth, h.deleteProduct)

		api.POST("/upload", requireAuth, h.uploadImage)

		api.GET("/orders", requireAuth, h.listOrders)
		api.POST("/orders", h.createOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the store answers a ping
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps domain errors onto status codes and error codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, images.ErrNotStored):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, service.ErrInvalidProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_product"})
	case errors.Is(err, images.ErrNoFileSupplied):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_file"})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, errBodyTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too_large"})
	case errors.Is(err, errInvalidBody):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error"})
	}
}

// parseID reads the :id path parameter
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
