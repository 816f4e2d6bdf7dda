// routes.go - Route and middleware registration
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// AnalyzePath is the analysis endpoint the browser and CLI clients post to.
const AnalyzePath = "/analyze"

// WebSocketPath is the streaming analysis endpoint.
const WebSocketPath = "/api/ws"

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store    storage.Store
	Analyzer FileAnalyzer
	History  HistoryStore // nil disables history
	Version  string
	Log      *logger.Logger

	// MessageLimit caps one WebSocket message in bytes. Zero selects DefaultMessageLimit.
	MessageLimit int64
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Analyze   AnalyzeHandler
	History   HistoryHandler
	Rules     RulesHandler
	WebSocket WebSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.Analyzer),
		Analyze:   NewAnalyzeHandler(deps.Store, deps.Analyzer, deps.History, deps.Log),
		History:   NewHistoryHandler(deps.History),
		Rules:     NewRulesHandler(deps.Analyzer, deps.Log),
		WebSocket: NewWebSocketHandler(deps.Store, deps.Analyzer, deps.History, deps.Log, deps.MessageLimit),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.POST(AnalyzePath, handlers.Analyze.HandleAnalyze)

	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.GET("/history", handlers.History.HandleRecentHistory)
	apiGroup.GET("/rules", handlers.Rules.HandleGetRules)
	apiGroup.POST("/rules", handlers.Rules.HandleUploadRules)
	apiGroup.GET("/ws", handlers.WebSocket.HandleWebSocket)
}

// MiddlewareOptions selects the middleware installed by SetupMiddleware.
type MiddlewareOptions struct {
	RequestLogging    bool
	EnableCORS        bool
	AllowOrigins      []string
	BodyLimit         string
	Timeout           time.Duration
	EnableCompression bool
	CompressionLevel  int
}

// SetupMiddleware installs the error handler and the common middleware chain.
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			return !opts.RequestLogging || c.Request().URL.Path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
	}))

	if opts.Timeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: opts.Timeout,
			Skipper: func(c echo.Context) bool {
				// Uploads are bounded by BodyLimit and the server read timeout instead.
				path := c.Request().URL.Path
				return path == AnalyzePath || path == WebSocketPath
			},
			ErrorMessage: "Request timeout",
		}))
	}

	if opts.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: opts.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == WebSocketPath
			},
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	if opts.EnableCORS {
		origins := make([]string, 0, len(opts.AllowOrigins))
		for _, o := range opts.AllowOrigins {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  origins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			ExposeHeaders: []string{HeaderBatchID},
		}))
	}
}
