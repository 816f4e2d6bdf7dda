// Package analysis runs the HTML lexer over uploaded files concurrently.
package analysis

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/htmllex/analyzer/internal/lexer"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/models"
	"github.com/htmllex/analyzer/internal/storage"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrent bounds the number of files lexed at once.
const DefaultMaxConcurrent = 4

// DefaultMaxFileSize caps the bytes read from one (decompressed) upload.
const DefaultMaxFileSize = 16 << 20

// Options configures an Analyzer.
type Options struct {
	MaxConcurrent int
	MaxFileSize   int64
	CacheSize     int
}

// Analyzer turns stored uploads into analysis results.
type Analyzer struct {
	store storage.Store
	log   *logger.Logger
	cache *Cache
	opts  Options
	mu    sync.RWMutex
	rules *lexer.Ruleset
}

// New creates an Analyzer reading from store.
func New(store storage.Store, rules *lexer.Ruleset, log *logger.Logger, opts Options) *Analyzer {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if rules == nil {
		rules = lexer.DefaultRuleset()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Analyzer{
		store: store,
		log:   log.WithComponent("analysis"),
		cache: NewCache(opts.CacheSize),
		opts:  opts,
		rules: rules,
	}
}

// Rules returns the active ruleset.
func (a *Analyzer) Rules() *lexer.Ruleset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rules
}

// SetRules swaps the active ruleset. In-flight analyses keep the old one.
func (a *Analyzer) SetRules(rs *lexer.Ruleset) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rules = rs
}

// Cache exposes the result cache.
func (a *Analyzer) Cache() *Cache {
	return a.cache
}

// ProgressFunc is told about each finished file: its index in the batch, its
// result and how many files of total are done. It may be called concurrently.
type ProgressFunc func(index int, result *models.AnalysisResult, completed, total int)

// AnalyzeFiles analyzes every file and returns one result per file in the
// order given. A file that cannot be read yields a result carrying the read
// error rather than failing the batch. Only context cancellation aborts.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, files []*models.FileInfo) ([]*models.AnalysisResult, error) {
	return a.AnalyzeFilesWithProgress(ctx, files, nil)
}

// AnalyzeFilesWithProgress is AnalyzeFiles reporting each finished file to progress.
func (a *Analyzer) AnalyzeFilesWithProgress(ctx context.Context, files []*models.FileInfo, progress ProgressFunc) ([]*models.AnalysisResult, error) {
	start := time.Now()
	rules := a.Rules()
	results := make([]*models.AnalysisResult, len(files))
	var completed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.MaxConcurrent)

	for i, info := range files {
		i, info := i, info
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzeOne(info, rules)
			if progress != nil {
				progress(i, results[i], int(completed.Add(1)), len(files))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	a.log.Info("batch analyzed", logger.Count(len(files)), logger.Duration(time.Since(start)))
	return results, nil
}

func (a *Analyzer) analyzeOne(info *models.FileInfo, rules *lexer.Ruleset) (result *models.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("analysis panicked", logger.F("file", info.Name), logger.F("panic", r))
			result = models.NewAnalysisResult(info.Name)
			result.Errors = append(result.Errors, fmt.Sprintf("Internal error: analysis failed: %v", r))
			a.setStatus(info.ID, storage.StatusError)
		}
	}()

	a.setStatus(info.ID, storage.StatusAnalyzing)

	content, err := a.readContent(info.ID)
	if err != nil {
		a.log.Warn("could not read upload", logger.F("file", info.Name), logger.Err(err))
		result = models.NewAnalysisResult(info.Name)
		result.Errors = append(result.Errors, fmt.Sprintf("File error: could not read file: %v", err))
		a.setStatus(info.ID, storage.StatusError)
		return result
	}

	key := keyFor(content, rules.Fingerprint())
	if cached, ok := a.cache.Get(key, info.Name); ok {
		a.log.Debug("cache hit", logger.F("file", info.Name))
		a.setStatus(info.ID, storage.StatusAnalyzed)
		return cached
	}

	var encodingErr string
	if !utf8.Valid(content) {
		encodingErr = "Encoding error: file is not valid UTF-8; invalid bytes were replaced."
		content = []byte(strings.ToValidUTF8(string(content), "\uFFFD"))
	}

	result = lexer.Analyze(info.Name, string(content), rules)
	if encodingErr != "" {
		result.Errors = append([]string{encodingErr}, result.Errors...)
	}

	a.cache.Put(key, result)
	a.setStatus(info.ID, storage.StatusAnalyzed)
	a.log.Debug("file analyzed",
		logger.F("file", info.Name),
		logger.F("tokens", len(result.Tokens)),
		logger.F("errors", len(result.Errors)))

	return result
}

// readContent loads an upload, transparently inflating gzip payloads.
func (a *Analyzer) readContent(id string) ([]byte, error) {
	rc, err := a.store.Open(id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	raw, err := readLimited(rc, a.opts.MaxFileSize)
	if err != nil {
		return nil, err
	}

	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		return raw, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	inflated, err := readLimited(zr, a.opts.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return inflated, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}

func (a *Analyzer) setStatus(id, status string) {
	if err := a.store.SetStatus(id, status); err != nil {
		a.log.Debug("status update skipped", logger.F("id", id), logger.Err(err))
	}
}
