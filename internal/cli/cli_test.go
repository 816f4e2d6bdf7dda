package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validResponse = `[{"file_path":"a.html","errors":[],"tokens":[["TAG_OPEN","<div>"],["TAG_CLOSE","</div>"]]}]`

const invalidResponse = `[{"file_path":"a.html","errors":["Structure error: tag <div> was never closed."],"tokens":[["TAG_OPEN","<div>"]]}]`

func newService(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	// Keep the developer's own config and environment out of the test.
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCommand("1.0.0", "abc123", "2026-01-01")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestSubmit_TextOutput(t *testing.T) {
	server, hits := newService(t, validResponse)
	file := writeFile(t, t.TempDir(), "a.html", "<div></div>")

	out, _, err := execute(t, "submit", "--no-color", "--endpoint", server.URL, file)

	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Contains(t, out, "== a.html ==")
	assert.Contains(t, out, "The file is valid.")
	assert.Contains(t, out, "TAG_CLOSE: </div>")
	assert.Contains(t, out, "1 file analyzed, 0 with errors")
}

func TestSubmit_JSONOutput(t *testing.T) {
	server, _ := newService(t, invalidResponse)
	file := writeFile(t, t.TempDir(), "a.html", "<div>")

	out, _, err := execute(t, "submit", "-o", "json", "--endpoint", server.URL, file)
	require.NoError(t, err)

	var got, want []models.AnalysisResult
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NoError(t, json.Unmarshal([]byte(invalidResponse), &want))
	assert.Equal(t, want, got)
}

func TestSubmit_Strict(t *testing.T) {
	server, _ := newService(t, invalidResponse)
	file := writeFile(t, t.TempDir(), "a.html", "<div>")

	out, _, err := execute(t, "submit", "--strict", "--no-color", "--endpoint", server.URL, file)

	assert.ErrorIs(t, err, ErrInvalidFiles)
	assert.Contains(t, out, "Errors found:")
}

func TestSubmit_Failures(t *testing.T) {
	t.Run("service returns garbage", func(t *testing.T) {
		server, _ := newService(t, "not json")
		file := writeFile(t, t.TempDir(), "a.html", "<div>")

		out, errOut, err := execute(t, "submit", "--endpoint", server.URL, file)

		assert.Error(t, err)
		assert.Empty(t, out)
		assert.Contains(t, errOut, "Error analyzing files:")
	})

	t.Run("missing file", func(t *testing.T) {
		server, hits := newService(t, validResponse)

		_, _, err := execute(t, "submit", "--endpoint", server.URL, filepath.Join(t.TempDir(), "nope.html"))

		assert.ErrorContains(t, err, "file does not exist")
		assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	})

	t.Run("unknown output format", func(t *testing.T) {
		file := writeFile(t, t.TempDir(), "a.html", "<div>")
		_, _, err := execute(t, "submit", "-o", "xml", file)
		assert.ErrorContains(t, err, "unsupported output format")
	})

	t.Run("no files", func(t *testing.T) {
		_, _, err := execute(t, "submit")
		assert.Error(t, err)
	})
}

func TestSettings_Precedence(t *testing.T) {
	file := writeFile(t, t.TempDir(), "a.html", "<div></div>")

	t.Run("environment", func(t *testing.T) {
		server, hits := newService(t, validResponse)
		t.Setenv("HTMLLEX_ENDPOINT", server.URL)

		_, _, err := execute(t, "submit", file)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("flag wins over environment", func(t *testing.T) {
		server, hits := newService(t, validResponse)
		t.Setenv("HTMLLEX_ENDPOINT", "http://127.0.0.1:1/analyze")

		_, _, err := execute(t, "submit", "--endpoint", server.URL, file)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("config file", func(t *testing.T) {
		server, hits := newService(t, validResponse)
		cfg := writeFile(t, t.TempDir(), "htmllex.yaml", "endpoint: "+server.URL+"\ntimeout: 5s\n")

		_, _, err := execute(t, "submit", "--config", cfg, file)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	})

	t.Run("explicit config file must exist", func(t *testing.T) {
		_, _, err := execute(t, "submit", "--config", filepath.Join(t.TempDir(), "missing.yaml"), file)
		assert.ErrorContains(t, err, "reading config")
	})
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "htmllex 1.0.0 (abc123) built on 2026-01-01")
	assert.Contains(t, out, "Go version:")
}

func TestRunWatchLoop(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.html")
	other := filepath.Join(dir, "b.html")

	events := make(chan fsnotify.Event, 8)
	errs := make(chan error, 1)
	changed := make(chan string, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runWatchLoop(ctx, events, errs, map[string]bool{target: true}, logger.Discard(), func(p string) {
			changed <- p
		})
	}()

	events <- fsnotify.Event{Name: other, Op: fsnotify.Write}
	events <- fsnotify.Event{Name: target, Op: fsnotify.Chmod}
	errs <- os.ErrPermission
	events <- fsnotify.Event{Name: target, Op: fsnotify.Write}
	events <- fsnotify.Event{Name: target, Op: fsnotify.Create}

	for i := 0; i < 2; i++ {
		select {
		case p := <-changed:
			assert.Equal(t, target, p)
		case <-time.After(5 * time.Second):
			t.Fatal("change was not reported")
		}
	}
	assert.Empty(t, changed, "only write and create events on watched paths count")

	cancel()
	assert.NoError(t, <-done)
}

func TestRunWatchLoop_ClosedChannel(t *testing.T) {
	events := make(chan fsnotify.Event)
	close(events)

	err := runWatchLoop(context.Background(), events, nil, nil, logger.Discard(), func(string) {})
	assert.ErrorContains(t, err, "events channel closed")
}
