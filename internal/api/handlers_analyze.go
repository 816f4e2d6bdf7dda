// handlers_analyze.go - Multipart analysis endpoint
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/htmllex/analyzer/internal/analysis"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/models"
	"github.com/htmllex/analyzer/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// FilesField is the repeated multipart field carrying the uploaded files.
const FilesField = "files"

// MIMEMsgpack is the content type of msgpack-encoded responses.
const MIMEMsgpack = "application/msgpack"

// HeaderBatchID carries the batch identifier of an analysis response.
const HeaderBatchID = "X-Batch-ID"

// batch is one analysis request: its uploads are saved, analyzed together,
// recorded in history and removed again.
type batch struct {
	id    string
	infos []*models.FileInfo
}

// batchRunner is shared by the multipart and WebSocket endpoints.
type batchRunner struct {
	store    storage.Store
	analyzer FileAnalyzer
	history  HistoryStore
	log      *logger.Logger
}

func (r *batchRunner) newBatch() *batch {
	return &batch{id: uuid.New().String()}
}

func (r *batchRunner) save(b *batch, name string, src io.Reader) error {
	info, err := r.store.Save(name, src)
	if err != nil {
		return err
	}
	b.infos = append(b.infos, info)
	return nil
}

func (r *batchRunner) run(ctx context.Context, b *batch, progress analysis.ProgressFunc) ([]*models.AnalysisResult, error) {
	results, err := r.analyzer.AnalyzeFilesWithProgress(ctx, b.infos, progress)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, NewServiceUnavailableError("analysis was interrupted")
		}
		return nil, NewInternalError("analysis failed", err)
	}

	if r.history != nil {
		if err := r.history.Record(ctx, b.id, results); err != nil {
			r.log.Warn("failed to record history", logger.F("batch", b.id), logger.Err(err))
		}
	}

	r.log.Info("analysis complete", logger.F("batch", b.id), logger.Count(len(results)))
	return results, nil
}

func (r *batchRunner) cleanup(b *batch) {
	for _, info := range b.infos {
		if err := r.store.Delete(info.ID); err != nil {
			r.log.Warn("failed to remove upload", logger.F("batch", b.id), logger.F("id", info.ID), logger.Err(err))
		}
	}
}

// AnalyzeHandlerImpl implements the AnalyzeHandler interface
type AnalyzeHandlerImpl struct {
	runner *batchRunner
}

// NewAnalyzeHandler creates a new analyze handler. history may be nil.
func NewAnalyzeHandler(store storage.Store, analyzer FileAnalyzer, history HistoryStore, log *logger.Logger) AnalyzeHandler {
	return &AnalyzeHandlerImpl{runner: newBatchRunner(store, analyzer, history, log)}
}

func newBatchRunner(store storage.Store, analyzer FileAnalyzer, history HistoryStore, log *logger.Logger) *batchRunner {
	if log == nil {
		log = logger.Discard()
	}
	return &batchRunner{
		store:    store,
		analyzer: analyzer,
		history:  history,
		log:      log.WithComponent("api"),
	}
}

// HandleAnalyze saves every uploaded file, analyzes the batch, removes the
// uploads and responds with one result per file in upload order.
func (h *AnalyzeHandlerImpl) HandleAnalyze(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("invalid multipart body", err)
	}

	headers := form.File[FilesField]
	if len(headers) == 0 {
		return NewBadRequestError("no files were sent", nil)
	}

	b := h.runner.newBatch()
	defer h.runner.cleanup(b)

	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return NewInternalError("failed to open uploaded file", err)
		}
		err = h.runner.save(b, fh.Filename, src)
		src.Close()
		if err != nil {
			return NewInternalError("failed to save uploaded file", err)
		}
	}

	results, err := h.runner.run(c.Request().Context(), b, nil)
	if err != nil {
		return err
	}

	c.Response().Header().Set(HeaderBatchID, b.id)

	if wantsMsgpack(c) {
		data, err := msgpack.Marshal(results)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEMsgpack, data)
	}

	return c.JSON(http.StatusOK, results)
}

func wantsMsgpack(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEMsgpack)
}
