package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/htmllex/analyzer/internal/analysis"
	"github.com/htmllex/analyzer/internal/api"
	"github.com/htmllex/analyzer/internal/config"
	"github.com/htmllex/analyzer/internal/history"
	"github.com/htmllex/analyzer/internal/lexer"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/storage"
	"github.com/htmllex/analyzer/internal/web"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	configPath := filepath.Join(filepath.Dir(exePath), "htmllex-server.config")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("server", cfg.Verbose())
	api.ExposeErrorDetails = cfg.Verbose()

	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		log.Error("failed to initialize storage", logger.Err(err))
		os.Exit(1)
	}

	rules := lexer.DefaultRuleset()
	if cfg.Storage.RulesFile != "" {
		rules, err = lexer.LoadRuleset(cfg.Storage.RulesFile)
		if err != nil {
			log.Error("failed to load rules", logger.F("path", cfg.Storage.RulesFile), logger.Err(err))
			os.Exit(1)
		}
	}
	log.Info("rules loaded", logger.F("source", rules.Info().Source), logger.F("version", rules.Info().Version))

	analyzer := analysis.New(fileStore, rules, log, analysis.Options{
		MaxConcurrent: cfg.Processing.MaxConcurrentAnalyses,
		MaxFileSize:   cfg.MaxFileSize(),
		CacheSize:     cfg.Processing.CacheEntries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bodyLimit, err := cfg.BodyLimitBytes()
	if err != nil {
		log.Error("invalid body limit", logger.F("limit", cfg.Server.BodyLimit), logger.Err(err))
		os.Exit(1)
	}

	deps := &api.Dependencies{
		Store:    fileStore,
		Analyzer: analyzer,
		Version:  Version,
		Log:      log,
		// Files travel base64 encoded over the WebSocket, a third larger than in a multipart body.
		MessageLimit: bodyLimit / 3 * 4,
	}

	if cfg.History.Enabled {
		hist, err := history.Open(cfg.Storage.HistoryDatabase, cfg.History.DuckDBThreads, log)
		if err != nil {
			log.Warn("history disabled", logger.Err(err))
		} else {
			defer hist.Close()
			deps.History = hist
			go pruneHistory(ctx, hist, cfg.HistoryRetention(), cfg.PruneInterval(), log)
		}
	}

	e := echo.New()
	e.HideBanner = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging:    cfg.Advanced.EnableRequestLogging,
		EnableCORS:        cfg.Server.EnableCORS,
		AllowOrigins:      strings.Split(cfg.Server.AllowOrigins, ","),
		BodyLimit:         cfg.Server.BodyLimit,
		Timeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		EnableCompression: cfg.Processing.EnableCompression,
		CompressionLevel:  cfg.Processing.CompressionLevel,
	})
	api.RegisterRoutes(e, api.NewHandlers(deps))

	embeddedMode := cfg.Server.ServeWebUI && web.HasEmbeddedFiles()
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn("failed to register static routes", logger.Err(err))
			embeddedMode = false
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	mode := "API only"
	if embeddedMode {
		mode = "API + Web UI"
	}
	historyState := "disabled"
	if deps.History != nil {
		historyState = cfg.Storage.HistoryDatabase
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           HTML Lexical Analyzer Server                    ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Rules:     %-46s║\n", rules.Info().Source)
	fmt.Printf("║  History:   %-46s║\n", historyState)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", logger.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Warn("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", logger.Err(err))
	}
}

func pruneHistory(ctx context.Context, hist *history.Store, retention, interval time.Duration, log *logger.Logger) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := hist.Prune(ctx, retention)
			if err != nil {
				log.Warn("history prune failed", logger.Err(err))
				continue
			}
			if n > 0 {
				log.Info("history pruned", logger.Count(int(n)))
			}
		}
	}
}
