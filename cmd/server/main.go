package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scooter-shop/config"
	"scooter-shop/internal/api"
	"scooter-shop/internal/auth"
	"scooter-shop/internal/broker"
	"scooter-shop/internal/images"
	"scooter-shop/internal/redisclient"
	"scooter-shop/internal/service"
	"scooter-shop/internal/store"
	"scooter-shop/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting scooter shop", zap.String("store", cfg.Storage.Backend))

	if cfg.Observ.JaegerEndpoint != "" {
		tp, err := util.InitTracer(util.TracerOptions{
			Endpoint:    cfg.Observ.JaegerEndpoint,
			Environment: cfg.Server.Env,
			Version:     cfg.Observ.ServiceVersion,
		})
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	ctx := context.Background()

	db, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Store opened", zap.String("backend", cfg.Storage.Backend))

	if cfg.Storage.SeedDemo {
		seeded, err := store.SeedDemoProducts(ctx, db)
		if err != nil {
			logger.Error("Failed to seed demo products", zap.Error(err))
		} else if seeded > 0 {
			logger.Info("Seeded demo products", zap.Int("count", seeded))
		}
	}

	var sessions auth.SessionStore = auth.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		sessions = redisClient.Sessions("shop:session:")
		logger.Info("Redis session store connected", zap.String("addr", cfg.Redis.Addr))
	}

	var publisher broker.Publisher = broker.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	var storage images.Storage
	if cfg.Images.S3Bucket != "" {
		storage, err = images.NewS3Storage(ctx, cfg.Images.S3Bucket, cfg.Images.S3Region)
	} else {
		storage, err = images.NewLocalStorage(cfg.Images.UploadsDir)
	}
	if err != nil {
		logger.Fatal("Failed to initialize image storage", zap.Error(err))
	}
	resolver := images.NewResolver(storage, cfg.Images.PublicPrefix, cfg.Images.FallbackImage)

	gate := auth.NewGate(sessions,
		auth.Credentials{Login: cfg.Auth.AdminLogin, Password: cfg.Auth.AdminPassword},
		auth.Options{
			TTL:          cfg.Auth.SessionTTL,
			CookieName:   cfg.Auth.CookieName,
			CookieSecure: cfg.Auth.CookieSecure,
		})

	catalogService := service.NewCatalogService(db, resolver)
	orderService := service.NewOrderService(db, publisher)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = cfg.Images.MaxUploadBytes
	handler := api.NewHandler(catalogService, orderService, gate, resolver, db, cfg.Images.MaxUploadBytes)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
