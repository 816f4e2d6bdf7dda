// handlers_rules.go - Lexer rules handlers
package api

import (
	"net/http"

	"github.com/htmllex/analyzer/internal/lexer"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/storage"
	"github.com/labstack/echo/v4"
)

// RulesHandlerImpl implements the RulesHandler interface
type RulesHandlerImpl struct {
	analyzer FileAnalyzer
	log      *logger.Logger
}

// NewRulesHandler creates a rules handler
func NewRulesHandler(analyzer FileAnalyzer, log *logger.Logger) RulesHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &RulesHandlerImpl{analyzer: analyzer, log: log.WithComponent("api")}
}

// HandleGetRules returns the active rules and their summary
func (h *RulesHandlerImpl) HandleGetRules(c echo.Context) error {
	rs := h.analyzer.Rules()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"info":  rs.Info(),
		"rules": rs.Rules(),
	})
}

// HandleUploadRules replaces the active rules with an uploaded YAML file
// (multipart field "file"). Later analyses use the new rules.
func (h *RulesHandlerImpl) HandleUploadRules(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	rules, err := lexer.ParseRulesFromReader(src)
	if err != nil {
		return NewBadRequestError("invalid rules YAML", err)
	}

	rs := lexer.NewRuleset(rules, "upload:"+storage.SanitizeName(file.Filename))
	h.analyzer.SetRules(rs)
	h.log.Info("rules replaced", logger.F("source", rs.Info().Source), logger.F("version", rs.Info().Version))

	return c.JSON(http.StatusCreated, rs.Info())
}
