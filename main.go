package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qr-analyze-service/analyzer"
	"qr-analyze-service/config"
	"qr-analyze-service/database"
	"qr-analyze-service/handlers"
	"qr-analyze-service/metrics"
	"qr-analyze-service/middleware"
	"qr-analyze-service/qrdecode"
	"qr-analyze-service/rabbitmq"
	"qr-analyze-service/signals"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	if err := godotenv.Load(); err != nil {
		log.Debugf("No .env file loaded: %v", err)
	}

	cfg := config.Load()

	metrics.Register()

	// Database connection
	db, err := setupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize database schema and run migrations
	log.Info("Initializing database schema...")
	if err := database.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Optional escalation event publisher
	var events analyzer.EventPublisher
	if cfg.AMQPURL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		events = publisher
	}

	// Initialize services
	store := database.NewStoreService(db)
	engine := analyzer.NewEngine(store, events)
	collector := signals.NewCollector(
		signals.NewWhoisCollector(cfg.SignalTimeout),
		signals.NewReachabilityCollector(cfg.SignalTimeout),
		signals.NewVirusTotalClient(cfg.VirusTotalAPIKey, cfg.VirusTotalBaseURL, cfg.SignalTimeout),
		cfg.SignalTimeout,
	)
	decoder := qrdecode.NewZxingDecoder()

	// Setup Gin router
	router := setupRouter(engine, collector, decoder, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("QR analysis service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func setupDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Test connection with exponential backoff retry
	deadline := time.Now().Add(60 * time.Second)
	waitInterval := time.Second
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr := db.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("database ping timeout: %w", pingErr)
		}
		log.Warnf("Database connection failed, retrying in %v: %v", waitInterval, pingErr)
		time.Sleep(waitInterval)
		waitInterval *= 2
		if waitInterval > 30*time.Second {
			waitInterval = 30 * time.Second
		}
	}

	return db, nil
}

func setupRouter(engine *analyzer.Engine, collector *signals.Collector, decoder qrdecode.Decoder, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	// Set trusted proxies from config
	router.SetTrustedProxies(cfg.TrustedProxies)

	// Apply global middleware
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))

	// Initialize handlers
	h := handlers.NewHandlers(engine, collector, decoder)

	// Root level health check and metrics
	router.GET("/health", h.RootHealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Scan and report endpoints
	router.POST("/decode_qr", h.DecodeQR)
	router.POST("/report_qr", h.ReportQR)
	router.GET("/get_warning", h.GetWarnings)

	// Versioned API routes
	api := router.Group("/api/v3")
	{
		api.GET("/health", h.HealthCheck)
		api.POST("/decode_qr", h.DecodeQR)
		api.POST("/report_qr", h.ReportQR)
		api.GET("/get_warning", h.GetWarnings)
	}

	return router
}
