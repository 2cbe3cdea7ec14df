package main

import (
	"context"
	"encoding/json"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/cryptotax/src/config"
	"github.com/username/cryptotax/src/database"
	"github.com/username/cryptotax/src/handlers"
	"github.com/username/cryptotax/src/ledger"
	"github.com/username/cryptotax/src/logger"
	"github.com/username/cryptotax/src/metrics"
	"github.com/username/cryptotax/src/processors"
	"github.com/username/cryptotax/src/security"
	"github.com/username/cryptotax/src/services"
	"golang.org/x/time/rate"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		stdlog.Fatalf("invalid configuration: %v", err)
	}
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Crypto tax backend server starting...")

	dsn := config.Cfg.DatabasePath
	if config.Cfg.DatabaseDriver == "postgres" {
		dsn = config.Cfg.DatabaseURL
	}
	logger.L.Info("Initializing database...", "driver", config.Cfg.DatabaseDriver)
	database.InitDB(config.Cfg.DatabaseDriver, dsn)
	defer database.DB.Close()

	m := metrics.NewMetrics()

	logger.L.Info("Initializing report cache...", "ttl", config.Cfg.ReportCacheTTL)
	reportCache := cache.New(config.Cfg.ReportCacheTTL, config.Cfg.ReportCacheCleanup)

	logger.L.Info("Initializing services and handlers...", "lotMatching", config.Cfg.LotMatching)
	policy, err := processors.ParseMatchPolicy(config.Cfg.LotMatching)
	if err != nil {
		logger.L.Error("Invalid lot matching policy", "error", err)
		os.Exit(1)
	}
	engine := processors.NewDefaultEngine(policy)

	taxReportService := services.NewTaxReportService(
		ledger.NewSQLReader(database.DB, database.CurrentDialect, m),
		engine,
		reportCache,
		m,
		config.Cfg.BatchConcurrency,
	)
	importService := services.NewImportService(
		processors.NewTransactionProcessor(),
		ledger.NewSQLWriter(database.DB, database.CurrentDialect),
		taxReportService,
		m,
	)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	auth := handlers.NewAuthMiddleware(authService)
	taxReportHandler := handlers.NewTaxReportHandler(taxReportService)
	importHandler := handlers.NewImportHandler(importService, config.Cfg.MaxUploadSizeBytes)

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	route := func(pattern, name string, h http.HandlerFunc) {
		apiRouter.Handle(pattern, m.WrapHandler(name, auth.Require(h)))
	}
	route("GET /api/tax-report", "tax_report", taxReportHandler.HandleGetTaxReport)
	route("GET /api/tax-report/skipped", "tax_report_skipped", taxReportHandler.HandleGetSkipped)
	route("POST /api/tax-report/batch", "tax_report_batch", taxReportHandler.HandleBatch)
	route("POST /api/transactions/import", "transactions_import", importHandler.HandleImport)

	rootMux.Handle("/api/", apiRouter)
	rootMux.Handle("GET /metrics", m.Handler())

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "Crypto tax backend is running"})
		} else if !strings.HasPrefix(r.URL.Path, "/api/") {
			logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	logger.L.Info("Applying global middleware...")
	limiter := rate.NewLimiter(rate.Every(config.Cfg.RateLimitInterval), config.Cfg.RateLimitBurst)
	finalHandler := handlers.CORSMiddleware(config.Cfg.AllowedOrigins)(handlers.RateLimitMiddleware(limiter)(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.L.Info("Server starting", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("Failed to start server", "error", err)
			stdlog.Fatalf("Failed to start server: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.L.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("Graceful shutdown failed", "error", err)
		return
	}
	logger.L.Info("Server stopped gracefully.")
}
