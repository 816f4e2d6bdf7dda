package logger

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New("lexer", false)
	l.SetOutput(&buf)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown")
	l.Error("failed", Err(errors.New("boom")), Count(2))

	out := buf.String()
	assert.NotContains(t, out, "hidden")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, regexp.MustCompile(`^\d\d:\d\d:\d\d\.\d{3} WARN lexer.* shown$`), strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "ERRO")
	assert.Contains(t, lines[1], "failed")
	assert.Contains(t, lines[1], "error=boom")
	assert.Contains(t, lines[1], "count=2")
}

func TestLogger_Verbose(t *testing.T) {
	var buf bytes.Buffer
	l := New("server", false)
	l.SetOutput(&buf)
	child := l.WithComponent("analysis")

	child.Info("still hidden")
	l.SetVerbose(true)
	child.Info("now visible", F("file", "a.html"))

	assert.True(t, child.IsVerbose())
	out := buf.String()
	assert.NotContains(t, out, "still hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "analysis")
	assert.Contains(t, out, "now visible")
	assert.Contains(t, out, "file=a.html")
	assert.NotContains(t, out, "server")
}

func TestLogger_SetOutputReachesChildren(t *testing.T) {
	l := New("server", true)
	child := l.WithComponent("history")

	var buf bytes.Buffer
	l.SetOutput(&buf)
	child.Warn("pruned")

	assert.Contains(t, buf.String(), "history")
	assert.Contains(t, buf.String(), "pruned")
}

func TestLogger_DefaultComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New("", true)
	l.SetOutput(&buf)

	l.Debug("x")
	assert.Contains(t, buf.String(), "DEBU")
	assert.Contains(t, buf.String(), "main")
}

func TestLogger_ConcurrentWritesKeepLinesWhole(t *testing.T) {
	var buf bytes.Buffer
	l := New("api", true)
	l.SetOutput(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.WithComponent("worker").Warn("tick", Count(1))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 20)
	for _, line := range lines {
		assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "tick count=1"), line)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() { l.Error("nothing") })
}
