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
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/config"
	"github.com/Chamal1120/globalbooks-soa/gateway"
	"github.com/Chamal1120/globalbooks-soa/middleware"
	"github.com/Chamal1120/globalbooks-soa/orders"
	"github.com/Chamal1120/globalbooks-soa/pricing"
	"github.com/Chamal1120/globalbooks-soa/queue"
	"github.com/Chamal1120/globalbooks-soa/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load("orders-service")
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	shutdown, err := middleware.InitTracing("orders-service")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	db, err := store.Open(cfg.DSN(), logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	orderStore, err := store.NewPostgresOrderStore(db)
	if err != nil {
		logger.Fatal("Failed to initialize order store", zap.Error(err))
	}

	publisher, err := queue.NewKafkaPublisher(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer publisher.Close()

	pricer := pricing.NewStatic(cfg.DefaultUnitPrice, nil)
	processor := orders.NewProcessor(orderStore, publisher, pricer, logger)
	reconciler := orders.NewReconciler(orderStore, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriptions := []struct {
		group   string
		queue   string
		handler queue.Handler
	}{
		{cfg.ConsumerGroup, queue.OrderQueue, processor.HandleOrderTask},
		{cfg.ConsumerGroup + "-paymentconfirm", queue.PaymentConfirmQueue, reconciler.HandlePaymentConfirmation},
		{cfg.ConsumerGroup + "-shippingconfirm", queue.ShippingConfirmQueue, reconciler.HandleShippingConfirmation},
	}

	for _, sub := range subscriptions {
		consumer, err := queue.NewKafkaConsumer(cfg.KafkaBrokers, sub.group, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Kafka consumer", zap.String("group", sub.group), zap.Error(err))
		}
		defer consumer.Close()

		handler := queue.Retrying(sub.handler, publisher, cfg.MaxAttempts, cfg.RetryBackoff, logger)
		go func(q string) {
			if err := consumer.Consume(ctx, q, handler); err != nil && ctx.Err() == nil {
				logger.Error("Kafka consumer error", zap.String("queue", q), zap.Error(err))
			}
		}(sub.queue)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())
	router.GET("/health", gateway.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Orders service started", zap.String("addr", cfg.HTTPAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
