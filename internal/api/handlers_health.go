// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	analyzer FileAnalyzer
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, analyzer FileAnalyzer) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		analyzer: analyzer,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.analyzer != nil {
		body["rules"] = h.analyzer.Rules().Info().Version
	}
	return c.JSON(http.StatusOK, body)
}
