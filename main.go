package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradefolio/src/config"
	"github.com/username/tradefolio/src/database"
	"github.com/username/tradefolio/src/engine"
	"github.com/username/tradefolio/src/handlers"
	"github.com/username/tradefolio/src/logger"
	"github.com/username/tradefolio/src/security"
	"github.com/username/tradefolio/src/services"
	"golang.org/x/time/rate"
)

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Tradefolio backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing report cache...")
	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	emailService := services.NewEmailService()
	priceService := services.NewPriceService()
	matchingEngine := engine.New()
	uploadService := services.NewUploadService(matchingEngine, reportCache)

	handlers.InitializeGoogleOAuthConfig()

	userHandler := handlers.NewUserHandler(authService, emailService)
	uploadHandler := handlers.NewUploadHandler(uploadService)
	portfolioHandler := handlers.NewPortfolioHandler(uploadService, priceService)
	txHandler := handlers.NewTransactionHandler(uploadService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	// Public routes
	apiRouter.HandleFunc("GET /api/auth/csrf", handlers.GetCSRFToken)
	apiRouter.HandleFunc("GET /api/auth/verify-email", userHandler.VerifyEmailHandler)
	apiRouter.HandleFunc("GET /api/auth/google/login", userHandler.HandleGoogleLogin)
	apiRouter.HandleFunc("GET /api/auth/google/callback", userHandler.HandleGoogleCallback)

	csrfProtection := handlers.CSRFMiddleware()

	// Auth actions; state-changing, so CSRF protected
	apiRouter.Handle("POST /api/auth/login", csrfProtection(http.HandlerFunc(userHandler.LoginUserHandler)))
	apiRouter.Handle("POST /api/auth/register", csrfProtection(http.HandlerFunc(userHandler.RegisterUserHandler)))
	apiRouter.Handle("POST /api/auth/refresh", csrfProtection(http.HandlerFunc(userHandler.RefreshTokenHandler)))
	apiRouter.Handle("POST /api/auth/logout", csrfProtection(http.HandlerFunc(userHandler.LogoutUserHandler)))

	applyCsrfAndAuth := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(userHandler.AuthMiddleware(handler))
	}

	apiRouter.Handle("POST /api/upload", applyCsrfAndAuth(uploadHandler.HandleUpload))
	apiRouter.Handle("GET /api/realizedgains-data", applyCsrfAndAuth(uploadHandler.HandleGetRealizedGainsData))
	apiRouter.Handle("GET /api/trades/matched", applyCsrfAndAuth(portfolioHandler.HandleGetMatchedTrades))
	apiRouter.Handle("GET /api/holdings/lots", applyCsrfAndAuth(portfolioHandler.HandleGetOpenLots))
	apiRouter.Handle("GET /api/holdings/lots/value", applyCsrfAndAuth(portfolioHandler.HandleGetCurrentHoldingsValue))
	apiRouter.Handle("DELETE /api/trades/all", applyCsrfAndAuth(txHandler.HandleDeleteAllTradeData))
	apiRouter.Handle("GET /api/user/has-data", applyCsrfAndAuth(txHandler.HandleHasData))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Tradefolio backend is running"})
		} else if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	rateLimit := handlers.RateLimitMiddleware(rate.Every(100*time.Millisecond), 30)
	finalHandler := handlers.CORSMiddleware(rateLimit(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
