// Package client submits files to the analysis service and holds the latest
// results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultEndpoint is the analysis endpoint of a locally running server.
const DefaultEndpoint = "http://localhost:5000/analyze"

// FilesField is the repeated multipart field every file is sent under.
const FilesField = "files"

const mimeMsgpack = "application/msgpack"

// OutcomeKind tags how a Submit call concluded.
type OutcomeKind int

const (
	// Succeeded means the response was decoded and replaced the results.
	Succeeded OutcomeKind = iota
	// Failed means sending or decoding failed. Results are unchanged.
	Failed
	// Skipped means nothing was selected and no request was sent.
	Skipped
	// Rejected means another submission was in flight and no request was sent.
	Rejected
)

func (k OutcomeKind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of one Submit call.
type Outcome struct {
	Kind     OutcomeKind
	Results  []models.AnalysisResult // set when Kind is Succeeded
	Status   int                     // HTTP status when a response arrived
	Duration time.Duration
	Err      error
}

// Options configures a Controller.
type Options struct {
	Endpoint   string       // defaults to DefaultEndpoint
	HTTPClient *http.Client // defaults to a client with a 60s timeout
	Msgpack    bool         // ask the service for msgpack instead of JSON
	Log        *logger.Logger
}

// Controller holds the selected files, the busy flag and the latest results.
// It is safe for concurrent use. At most one request is in flight at a time.
type Controller struct {
	endpoint string
	http     *http.Client
	msgpack  bool
	log      *logger.Logger

	mu      sync.Mutex
	files   []File
	busy    bool
	results []models.AnalysisResult
}

// New creates a Controller with an empty selection and no results.
func New(opts Options) *Controller {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	return &Controller{
		endpoint: opts.Endpoint,
		http:     opts.HTTPClient,
		msgpack:  opts.Msgpack,
		log:      opts.Log.WithComponent("client"),
		results:  make([]models.AnalysisResult, 0),
	}
}

// Endpoint returns the URL submissions are posted to.
func (c *Controller) Endpoint() string {
	return c.endpoint
}

// Select replaces the selection with files.
func (c *Controller) Select(files []File) {
	held := make([]File, len(files))
	copy(held, files)

	c.mu.Lock()
	c.files = held
	c.mu.Unlock()
}

// Files returns the current selection.
func (c *Controller) Files() []File {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]File, len(c.files))
	copy(out, c.files)
	return out
}

// Busy reports whether a request is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Results returns the results of the last successful submission.
func (c *Controller) Results() []models.AnalysisResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.AnalysisResult, len(c.results))
	copy(out, c.results)
	return out
}

// CanSubmit reports whether Submit would send a request now.
func (c *Controller) CanSubmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.busy && len(c.files) > 0
}

// Submit sends every selected file in one multipart POST and blocks until the
// response settles. A decoded response replaces the results whatever its HTTP
// status. On failure the previous results are kept. Cancelling ctx is a failure.
func (c *Controller) Submit(ctx context.Context) Outcome {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		c.log.Warn("submission rejected", logger.Err(ErrBusy))
		return Outcome{Kind: Rejected, Err: ErrBusy}
	}
	if len(c.files) == 0 {
		c.mu.Unlock()
		return Outcome{Kind: Skipped, Err: ErrNoFiles}
	}
	files := c.files
	c.busy = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	start := time.Now()
	results, status, err := c.send(ctx, files)
	elapsed := time.Since(start)
	if err != nil {
		c.log.Error("error analyzing files", logger.Count(len(files)), logger.Err(err))
		return Outcome{Kind: Failed, Status: status, Duration: elapsed, Err: err}
	}

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()

	c.log.Info("analysis received", logger.Count(len(results)), logger.F("status", status), logger.Duration(elapsed))

	out := make([]models.AnalysisResult, len(results))
	copy(out, results)
	return Outcome{Kind: Succeeded, Results: out, Status: status, Duration: elapsed}
}

func (c *Controller) send(ctx context.Context, files []File) ([]models.AnalysisResult, int, error) {
	body, contentType, err := encodeFiles(files)
	if err != nil {
		return nil, 0, &RequestError{Op: "read", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, 0, &RequestError{Op: "send", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	if c.msgpack {
		req.Header.Set("Accept", mimeMsgpack)
	} else {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &RequestError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &RequestError{Op: "read", Status: resp.StatusCode, Err: err}
	}

	var results []models.AnalysisResult
	if strings.HasPrefix(resp.Header.Get("Content-Type"), mimeMsgpack) {
		err = msgpack.Unmarshal(data, &results)
	} else {
		err = json.Unmarshal(data, &results)
	}
	if err != nil {
		return nil, resp.StatusCode, &RequestError{Op: "decode", Status: resp.StatusCode, Err: err}
	}
	if results == nil {
		results = make([]models.AnalysisResult, 0)
	}

	return results, resp.StatusCode, nil
}

func encodeFiles(files []File) (*bytes.Buffer, string, error) {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for _, f := range files {
		if err := writeFile(writer, f); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func writeFile(writer *multipart.Writer, f File) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer src.Close()

	part, err := writer.CreateFormFile(FilesField, f.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return nil
}
