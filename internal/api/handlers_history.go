// handlers_history.go - Analysis history handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const maxHistoryLimit = 500

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	history HistoryStore
}

// NewHistoryHandler creates a history handler. A nil store answers 503.
func NewHistoryHandler(history HistoryStore) HistoryHandler {
	return &HistoryHandlerImpl{history: history}
}

// HandleRecentHistory returns the most recent analysis summaries.
func (h *HistoryHandlerImpl) HandleRecentHistory(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("analysis history is disabled")
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return NewValidationError("limit")
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to read history", err)
	}

	return c.JSON(http.StatusOK, entries)
}
