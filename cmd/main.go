package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/paygate-sk/tatrapay/handler"
	"github.com/paygate-sk/tatrapay/infra/config"
	"github.com/paygate-sk/tatrapay/infra/logger"
	"github.com/paygate-sk/tatrapay/infra/middle"
	"github.com/paygate-sk/tatrapay/infra/opensearch"
	"github.com/paygate-sk/tatrapay/infra/response"
	"github.com/paygate-sk/tatrapay/provider"
	_ "github.com/paygate-sk/tatrapay/provider/tatrapay"
	"github.com/paygate-sk/tatrapay/router"
	"github.com/paygate-sk/tatrapay/store"
)

var openSearchLogger *opensearch.Logger

func init() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.GetAppConfig()
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	logger.InitGlobalLogger(openSearchLogger)
}

func main() {
	cfg := config.GetAppConfig()

	gatewayCfg, err := config.LoadGatewayConfig()
	if err != nil {
		logger.Fatal("Invalid gateway configuration", err)
	}

	gateway, err := provider.CreateProvider("tatrapay")
	if err != nil {
		logger.Fatal("Failed to create gateway provider", err)
	}

	environment := "sandbox"
	if gatewayCfg.Production {
		environment = "production"
	}
	if err := gateway.Initialize(map[string]string{
		"clientId":     gatewayCfg.ClientID,
		"clientSecret": gatewayCfg.ClientSecret,
		"environment":  environment,
	}); err != nil {
		logger.Fatal("Failed to initialize gateway provider", err)
	}

	paymentStore := newPaymentStore(cfg)

	paymentHandler := handler.NewPaymentHandler(gateway, paymentStore, validator.New(), gatewayCfg.AppBaseURL, openSearchLogger)
	healthHandler := handler.NewHealthHandler(paymentStore)

	// Chi Define Routes
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300, // Preflight cache time (second)
	}))

	router.Routes(r, paymentHandler, healthHandler)

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{Success: false, Message: "Not Found"})
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err.Error())
		}
	}()

	logger.Info("API is running", logger.LogContext{
		Fields: map[string]any{"port": cfg.Port, "environment": environment},
	})

	// Block until a signal is received
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err)
	}

	if closer, ok := paymentStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Store close failed", err)
		}
	}
}

// newPaymentStore opens the SQLite store and falls back to the in-memory
// store when the database cannot be opened
func newPaymentStore(cfg *config.AppConfig) store.PaymentStore {
	if cfg.StorePath == "" || cfg.StorePath == "memory" {
		return store.NewMemoryStore()
	}

	s, err := store.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		logger.Warn("SQLite store unavailable, using in-memory store", logger.LogContext{
			Fields: map[string]any{"path": cfg.StorePath, "error": err.Error()},
		})
		return store.NewMemoryStore()
	}
	return s
}
