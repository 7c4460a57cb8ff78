package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bikeshop-svc/cache"
	"bikeshop-svc/database"
	"bikeshop-svc/handlers"
	"bikeshop-svc/kafka"
	"bikeshop-svc/middleware"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	db, err := database.InitDB(logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis cache. The catalog works without it, just slower.
	redisClient, err := cache.InitRedis(logger)
	if err != nil {
		logger.Warn("Redis unavailable, catalog caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize Kafka consumer
	consumer, err := kafka.InitConsumer(logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka consumer", zap.Error(err))
	}
	defer consumer.Close()

	// Start Kafka consumer in background
	go func() {
		if err := kafka.StartConsumer(consumer, logger); err != nil {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("bikeshop-svc")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	// OpenTelemetry middleware must be first to extract trace context
	router.Use(otelgin.Middleware("bikeshop-svc"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	authHandler := handlers.NewAuthHandler(db, logger)
	bicycleHandler := handlers.NewBicycleHandler(db, redisClient, logger)
	categoryHandler := handlers.NewCategoryHandler(db, logger)
	orderHandler := handlers.NewOrderHandler(db, producer, logger)
	paymentHandler := handlers.NewPaymentHandler(db, producer, logger)
	dashboardHandler := handlers.NewDashboardHandler(db, logger)

	// Public endpoints
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", middleware.PrometheusHandler())
	router.POST("/register", authHandler.Register)
	router.POST("/login", authHandler.Login)
	router.GET("/bicycles", bicycleHandler.GetBicycles)
	router.GET("/bicycles/featured", bicycleHandler.GetFeaturedBicycles)
	router.GET("/bicycles/:id", bicycleHandler.GetBicycle)
	router.GET("/categories", categoryHandler.GetCategories)

	// Authenticated endpoints
	auth := router.Group("/")
	auth.Use(middleware.AuthMiddleware())
	{
		auth.GET("/profile", authHandler.GetProfile)
		auth.POST("/orders", orderHandler.CreateOrder)
		auth.GET("/orders", orderHandler.ListMyOrders)
		auth.GET("/orders/:id", orderHandler.GetOrder)
		auth.POST("/orders/:id/cancel", orderHandler.CancelOrder)
		auth.POST("/orders/:id/payments", paymentHandler.RecordPayment)
		auth.GET("/orders/:id/payments", paymentHandler.ListPaymentsByOrder)
	}

	// Admin endpoints
	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminMiddleware())
	{
		admin.POST("/bicycles", bicycleHandler.CreateBicycle)
		admin.PUT("/bicycles/:id", bicycleHandler.UpdateBicycle)
		admin.DELETE("/bicycles/:id", bicycleHandler.DeleteBicycle)
		admin.POST("/categories", categoryHandler.CreateCategory)
		admin.PUT("/categories/:id", categoryHandler.UpdateCategory)
		admin.DELETE("/categories/:id", categoryHandler.DeleteCategory)
		admin.GET("/orders", orderHandler.ListAllOrders)
		admin.PUT("/users/:userId/role", authHandler.UpdateUserRole)
		admin.GET("/users/:userId/orders", orderHandler.ListOrdersByUser)
		admin.GET("/users/:userId/payments", paymentHandler.ListPaymentsByUser)
		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
		admin.POST("/orders/:id/payments", paymentHandler.RecordManualPayment)
		admin.GET("/dashboard", dashboardHandler.GetDashboardStats)
	}

	srv := &http.Server{
		Addr:    ":" + getEnv("PORT", "8080"),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Bikeshop service started", zap.String("addr", srv.Addr))

	// Wait for interrupt signal
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
