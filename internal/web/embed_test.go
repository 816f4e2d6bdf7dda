package web

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasEmbeddedFiles(t *testing.T) {
	assert.True(t, HasEmbeddedFiles())
}

func TestRegisterStaticRoutes(t *testing.T) {
	e := echo.New()
	e.GET("/api/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, RegisterStaticRoutes(e))

	tests := []struct {
		name     string
		path     string
		contains string
	}{
		{"root serves the UI", "/", "HTML Lexical Analyzer"},
		{"unknown path falls back to the UI", "/some/client/route", "HTML Lexical Analyzer"},
		{"api routes win", "/api/health", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}

func TestIndexPostsToAnalyze(t *testing.T) {
	staticFS, err := GetFileSystem()
	require.NoError(t, err)

	data, err := fs.ReadFile(staticFS, "index.html")
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, `"/analyze"`)
	assert.Contains(t, body, `append("files"`)
	assert.Contains(t, body, "Processing...")
}
