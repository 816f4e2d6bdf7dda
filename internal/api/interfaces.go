// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/htmllex/analyzer/internal/analysis"
	"github.com/htmllex/analyzer/internal/lexer"
	"github.com/htmllex/analyzer/internal/models"
	"github.com/labstack/echo/v4"
)

// AnalyzeHandler handles multipart analysis submissions
type AnalyzeHandler interface {
	HandleAnalyze(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// WebSocketHandler streams analysis progress over a WebSocket
type WebSocketHandler interface {
	HandleWebSocket(c echo.Context) error
}

// HistoryHandler serves past analysis summaries
type HistoryHandler interface {
	HandleRecentHistory(c echo.Context) error
}

// RulesHandler exposes and replaces the lexer rules
type RulesHandler interface {
	HandleGetRules(c echo.Context) error
	HandleUploadRules(c echo.Context) error
}

// FileAnalyzer analyzes stored uploads. Implemented by analysis.Analyzer.
type FileAnalyzer interface {
	AnalyzeFiles(ctx context.Context, files []*models.FileInfo) ([]*models.AnalysisResult, error)
	AnalyzeFilesWithProgress(ctx context.Context, files []*models.FileInfo, progress analysis.ProgressFunc) ([]*models.AnalysisResult, error)
	Rules() *lexer.Ruleset
	SetRules(rs *lexer.Ruleset)
}

// HistoryStore records and lists analysis summaries. Implemented by history.Store.
// A nil HistoryStore disables history.
type HistoryStore interface {
	Record(ctx context.Context, batchID string, results []*models.AnalysisResult) error
	Recent(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}
