package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/catalog"
	"github.com/Chamal1120/globalbooks-soa/config"
	"github.com/Chamal1120/globalbooks-soa/gateway"
	"github.com/Chamal1120/globalbooks-soa/middleware"
	"github.com/Chamal1120/globalbooks-soa/queue"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load("gateway")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	shutdown, err := middleware.InitTracing("gateway")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	publisher, err := queue.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer publisher.Close()

	// The catalog cache is an optimization; run without it if redis is
	// unreachable.
	var cache *redis.Client
	if cache, err = catalog.InitRedis(cfg.RedisAddr, cfg.RedisPassword, logger); err != nil {
		logger.Warn("Catalog cache unavailable", zap.Error(err))
		cache = nil
	}

	catalogClient := catalog.NewHTTPClient(cfg.CatalogURL, cfg.CatalogTimeout, cache, cfg.CatalogCacheTTL, logger)
	handler := gateway.NewHandler(publisher, catalogClient, []byte(cfg.JWTSecret), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("gateway"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	router.GET("/health", gateway.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())
	router.POST("/orders", handler.SubmitOrder)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Gateway started", zap.String("addr", cfg.HTTPAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
