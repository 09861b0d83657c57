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

	"github.com/crmpay/qpbridge/handler"
	"github.com/crmpay/qpbridge/infra/config"
	"github.com/crmpay/qpbridge/infra/logger"
	"github.com/crmpay/qpbridge/infra/middle"
	"github.com/crmpay/qpbridge/infra/opensearch"
	"github.com/crmpay/qpbridge/infra/response"
	"github.com/crmpay/qpbridge/infra/store"
	"github.com/crmpay/qpbridge/quickpay"
	"github.com/crmpay/qpbridge/router"
)

const defaultAccount = "default"

var (
	openSearchClient *opensearch.Client
	openSearchLogger *opensearch.Logger
)

func init() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg := config.GetAppConfig()
	if cfg.EnableAuditLog {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without audit logging...")
		} else {
			openSearchClient = osClient
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch audit logging initialized")
		}
	} else {
		log.Println("OpenSearch audit logging is disabled")
	}

	logger.InitGlobalLogger(openSearchLogger)
}

func main() {
	cfg := config.GetAppConfig()

	merchantCfg, err := merchantFromEnv(cfg)
	if err != nil {
		logger.Fatal("Invalid merchant configuration", err)
	}

	accounts := quickpay.NewRegistry()
	if err := accounts.Register(defaultAccount, merchantCfg); err != nil {
		logger.Fatal("Failed to register merchant account", err)
	}

	orders, err := store.NewOrderStore(cfg.OrderDBPath)
	if err != nil {
		logger.Fatal("Failed to open order database", err)
	}
	defer orders.Close()

	processor := quickpay.NewProcessor(merchantCfg, orders)

	auditHandler := handler.NewAuditHandler(nil)
	if openSearchLogger != nil {
		auditHandler = handler.NewAuditHandler(openSearchLogger)
	}

	handlers := router.Handlers{
		Checkout: handler.NewCheckoutHandler(accounts, orders, validator.New(), defaultAccount),
		Notify:   handler.NewNotifyHandler(processor, merchantCfg.MerchantID, openSearchLogger),
		Health:   handler.NewHealthHandler(orders, openSearchClient),
		Audit:    auditHandler,
	}

	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	rateLimiter := middle.NewRateLimiter()
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.IPWhitelistMiddleware())
	r.Use(middle.RateLimitMiddleware(rateLimiter))
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length", "Access-Control-Allow-Origin"},
		AllowCredentials: true,
		MaxAge:           300, // Preflight cache time (second)
	}))

	router.Routes(r, handlers)

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

	logger.Info("Bridge is running", logger.LogContext{
		Merchant: merchantCfg.MerchantID,
		Fields:   map[string]any{"port": cfg.Port},
	})

	// Block until a signal is received
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err)
	}
}

// merchantFromEnv assembles the gateway account settings from the
// environment. The callback URL defaults to the bridge's own notify
// endpoint under the public base URL.
func merchantFromEnv(cfg *config.AppConfig) (quickpay.MerchantConfig, error) {
	mc := quickpay.MerchantConfig{
		MerchantID:  config.GetEnv("QUICKPAY_MERCHANT_ID", ""),
		Secret:      config.GetEnv("QUICKPAY_MD5_SECRET", ""),
		OrderPrefix: config.GetEnv("QUICKPAY_ORDER_PREFIX", ""),
		SubmitURL:   config.GetEnv("QUICKPAY_SUBMIT_URL", "https://secure.quickpay.dk/form/"),
		CallbackURL: config.GetEnv("QUICKPAY_CALLBACK_URL", cfg.BaseURL+"/notify"),
		Language:    config.GetEnv("QUICKPAY_LANGUAGE", "en"),
		TestMode:    config.GetBoolEnv("QUICKPAY_TEST_MODE", false),
	}
	return mc, mc.Validate()
}
