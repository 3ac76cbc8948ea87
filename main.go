package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"strings"
	"time"

	"github.com/username/portfoly/backend/src/config"
	"github.com/username/portfoly/backend/src/database"
	"github.com/username/portfoly/backend/src/handlers"
	"github.com/username/portfoly/backend/src/logger"
	"github.com/username/portfoly/backend/src/processors"
	"github.com/username/portfoly/backend/src/services"
	"github.com/username/portfoly/backend/src/store"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin == config.Cfg.AllowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			logger.L.Debug("Handling OPTIONS preflight request", "path", r.URL.Path, "origin", origin)
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Portfoly backend server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	logger.L.Info("Initializing services and handlers...")
	dataStore := store.New(database.DB)

	priceService := services.NewPriceService(
		config.Cfg.CoinGeckoBaseURL,
		config.Cfg.PriceFetchTimeout,
		config.Cfg.PriceCacheTTL,
		config.Cfg.PriceCacheCleanup,
	)
	notifier := services.NewNotifier(config.Cfg.Notifier, config.Cfg.ExpoPushURL, config.Cfg.ExpoPushToken)
	purchaseProvider := services.NewPurchaseProvider(config.Cfg.PurchaseProvider)
	entitlementService := services.NewEntitlementService(purchaseProvider)
	alarmService := services.NewAlarmService(notifier, entitlementService)

	holdingsProcessor := processors.NewHoldingsProcessor()
	valuationProcessor := processors.NewValuationProcessor()

	portfolioHandler := handlers.NewPortfolioHandler(dataStore, priceService, holdingsProcessor, valuationProcessor, entitlementService, notifier)
	transactionHandler := handlers.NewTransactionHandler(dataStore, entitlementService, notifier)
	assetHandler := handlers.NewAssetHandler(dataStore, entitlementService)
	priceHandler := handlers.NewPriceHandler(priceService, alarmService)
	alarmHandler := handlers.NewAlarmHandler(alarmService)
	entitlementHandler := handlers.NewEntitlementHandler(entitlementService)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.HandleFunc("GET /api/portfolios", portfolioHandler.HandleGetPortfolios)
	apiRouter.HandleFunc("POST /api/portfolios", portfolioHandler.HandleCreatePortfolio)
	apiRouter.HandleFunc("DELETE /api/portfolios/{id}", portfolioHandler.HandleDeletePortfolio)
	apiRouter.HandleFunc("GET /api/portfolios/{id}/summary", portfolioHandler.HandleGetPortfolioSummary)
	apiRouter.HandleFunc("GET /api/portfolios/{id}/valuation", portfolioHandler.HandleGetPortfolioValuation)
	apiRouter.HandleFunc("GET /api/portfolios/{id}/history", portfolioHandler.HandleGetPortfolioHistory)
	apiRouter.HandleFunc("GET /api/portfolios/{id}/stats", portfolioHandler.HandleGetPortfolioStats)
	apiRouter.HandleFunc("GET /api/portfolios/{id}/transactions", transactionHandler.HandleGetPortfolioTransactions)

	apiRouter.HandleFunc("GET /api/transactions", transactionHandler.HandleGetAllTransactions)
	apiRouter.HandleFunc("POST /api/transactions", transactionHandler.HandleCreateTransaction)
	apiRouter.HandleFunc("POST /api/transactions/batch", transactionHandler.HandleCreateTransactionBatch)
	apiRouter.HandleFunc("PUT /api/transactions/{id}", transactionHandler.HandleUpdateTransaction)
	apiRouter.HandleFunc("DELETE /api/transactions/{id}", transactionHandler.HandleDeleteTransaction)

	apiRouter.HandleFunc("GET /api/assets", assetHandler.HandleGetAssets)
	apiRouter.HandleFunc("GET /api/assets/search", assetHandler.HandleGetAssets)
	apiRouter.HandleFunc("POST /api/assets", assetHandler.HandleCreateAsset)
	apiRouter.HandleFunc("GET /api/assets/{symbol}", assetHandler.HandleGetAssetBySymbol)
	apiRouter.HandleFunc("GET /api/assets/{id}/transactions", transactionHandler.HandleGetAssetTransactions)
	apiRouter.HandleFunc("GET /api/assets/{id}/performance", assetHandler.HandleGetAssetPerformance)

	apiRouter.HandleFunc("GET /api/prices", priceHandler.HandleGetPrices)

	apiRouter.HandleFunc("GET /api/alarms", alarmHandler.HandleGetAlarms)
	apiRouter.HandleFunc("POST /api/alarms", alarmHandler.HandleCreateAlarm)
	apiRouter.HandleFunc("PATCH /api/alarms/{id}/toggle", alarmHandler.HandleToggleAlarm)
	apiRouter.HandleFunc("DELETE /api/alarms/{id}", alarmHandler.HandleDeleteAlarm)

	apiRouter.HandleFunc("GET /api/entitlements", entitlementHandler.HandleGetStatus)
	apiRouter.HandleFunc("GET /api/entitlements/status", entitlementHandler.HandleGetStatus)
	apiRouter.HandleFunc("GET /api/entitlements/limits", entitlementHandler.HandleGetLimits)
	apiRouter.HandleFunc("GET /api/entitlements/offerings", entitlementHandler.HandleGetOfferings)
	apiRouter.HandleFunc("GET /api/entitlements/features/{id}", entitlementHandler.HandleCheckFeature)
	apiRouter.HandleFunc("POST /api/entitlements/purchase", entitlementHandler.HandlePurchase)
	apiRouter.HandleFunc("POST /api/entitlements/refresh", entitlementHandler.HandleRefresh)

	apiRouter.HandleFunc("GET /api/export", portfolioHandler.HandleExportData)
	apiRouter.HandleFunc("DELETE /api/data", portfolioHandler.HandleClearAllData)

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "PORTFOLY Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

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
