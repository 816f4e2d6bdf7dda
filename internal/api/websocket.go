package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/htmllex/analyzer/internal/lexer"
	"github.com/htmllex/analyzer/internal/logger"
	"github.com/htmllex/analyzer/internal/models"
	"github.com/htmllex/analyzer/internal/storage"
	"github.com/labstack/echo/v4"
)

// WebSocket message types
const (
	// Client -> Server messages
	MsgTypeAnalyze     = "analyze"
	MsgTypeRulesUpload = "rules:upload"
	MsgTypePing        = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeAck       = "ack"
	MsgTypeProgress  = "progress"
	MsgTypeComplete  = "complete"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

// WSMessage is the envelope of every WebSocket message. Replies carry the ID
// of the request they answer.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// FileUploadPayload is one file sent inside a message.
type FileUploadPayload struct {
	Name string `json:"name"`
	Data string `json:"data"` // Base64 encoded, optionally gzip compressed
}

// AnalyzePayload requests analysis of a batch of files.
type AnalyzePayload struct {
	Files []FileUploadPayload `json:"files"`
}

// WSAckResponse confirms a batch was accepted.
type WSAckResponse struct {
	BatchID string `json:"batchId"`
	Total   int    `json:"total"`
}

// WSProgressResponse reports one finished file.
type WSProgressResponse struct {
	BatchID   string  `json:"batchId"`
	Index     int     `json:"index"`
	FilePath  string  `json:"filePath"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Progress  float64 `json:"progress"`
}

// WSCompleteResponse carries the results of a batch in submission order, or
// the new rules summary for a rules upload.
type WSCompleteResponse struct {
	BatchID string                   `json:"batchId,omitempty"`
	Results []*models.AnalysisResult `json:"results,omitempty"`
	Rules   *models.RulesInfo        `json:"rules,omitempty"`
}

// WSErrorResponse reports a failed request.
type WSErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// DefaultMessageLimit caps one incoming WebSocket message when no limit is configured.
const DefaultMessageLimit = 64 << 20

// WebSocketHandlerImpl implements the WebSocketHandler interface
type WebSocketHandlerImpl struct {
	runner       *batchRunner
	upgrader     websocket.Upgrader
	messageLimit int64
}

// NewWebSocketHandler creates a WebSocket handler sharing the analysis
// pipeline of the multipart endpoint. Incoming messages larger than
// messageLimit bytes close the connection; zero selects DefaultMessageLimit.
func NewWebSocketHandler(store storage.Store, analyzer FileAnalyzer, history HistoryStore, log *logger.Logger, messageLimit int64) WebSocketHandler {
	if messageLimit <= 0 {
		messageLimit = DefaultMessageLimit
	}
	return &WebSocketHandlerImpl{
		runner:       newBatchRunner(store, analyzer, history, log),
		messageLimit: messageLimit,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
		},
	}
}

// wsConn serializes writes; progress is reported from analysis workers.
type wsConn struct {
	ws  *websocket.Conn
	mu  sync.Mutex
	log *logger.Logger
}

func (c *wsConn) send(msgType, id string, payload interface{}) {
	msg := WSMessage{Type: msgType, ID: id, Timestamp: time.Now().UnixMilli()}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.log.Warn("failed to send message", logger.F("type", msgType), logger.Err(err))
	}
}

func (c *wsConn) sendError(id, message, code string) {
	c.send(MsgTypeError, id, WSErrorResponse{Message: message, Code: code})
}

// HandleWebSocket upgrades the connection and serves requests until the
// client disconnects. Requests on one connection are handled in order.
func (h *WebSocketHandlerImpl) HandleWebSocket(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	ws.SetReadLimit(h.messageLimit)

	log := h.runner.log
	conn := &wsConn{ws: ws, log: log}
	log.Debug("websocket client connected", logger.F("remote", c.RealIP()))
	conn.send(MsgTypeConnected, "", nil)

	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				log.Warn("websocket message too large", logger.F("limit", h.messageLimit))
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket connection error", logger.Err(err))
			}
			break
		}

		switch msg.Type {
		case MsgTypePing:
			conn.send(MsgTypePong, msg.ID, nil)
		case MsgTypeAnalyze:
			h.handleAnalyze(c, conn, msg)
		case MsgTypeRulesUpload:
			h.handleRulesUpload(conn, msg)
		default:
			conn.sendError(msg.ID, "Unknown message type: "+msg.Type, "INVALID_TYPE")
		}
	}

	log.Debug("websocket client disconnected")
	return nil
}

func (h *WebSocketHandlerImpl) handleAnalyze(c echo.Context, conn *wsConn, msg WSMessage) {
	var payload AnalyzePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError(msg.ID, "Invalid analyze payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}
	if len(payload.Files) == 0 {
		conn.sendError(msg.ID, "no files were sent", "BAD_REQUEST")
		return
	}

	b := h.runner.newBatch()
	defer h.runner.cleanup(b)

	for _, f := range payload.Files {
		data, err := base64.StdEncoding.DecodeString(f.Data)
		if err != nil {
			conn.sendError(msg.ID, "Invalid base64 data for "+f.Name+": "+err.Error(), "INVALID_DATA")
			return
		}
		if err := h.runner.save(b, f.Name, bytes.NewReader(data)); err != nil {
			conn.sendError(msg.ID, "Failed to save file: "+err.Error(), "SAVE_ERROR")
			return
		}
	}

	total := len(b.infos)
	conn.send(MsgTypeAck, msg.ID, WSAckResponse{BatchID: b.id, Total: total})

	results, err := h.runner.run(c.Request().Context(), b, func(index int, r *models.AnalysisResult, completed, total int) {
		conn.send(MsgTypeProgress, msg.ID, WSProgressResponse{
			BatchID:   b.id,
			Index:     index,
			FilePath:  r.FilePath,
			Completed: completed,
			Total:     total,
			Progress:  float64(completed) / float64(total) * 100,
		})
	})
	if err != nil {
		code := "INTERNAL_ERROR"
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			code = apiErr.Code
		}
		conn.sendError(msg.ID, err.Error(), code)
		return
	}

	conn.send(MsgTypeComplete, msg.ID, WSCompleteResponse{BatchID: b.id, Results: results})
}

func (h *WebSocketHandlerImpl) handleRulesUpload(conn *wsConn, msg WSMessage) {
	var payload FileUploadPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		conn.sendError(msg.ID, "Invalid rules upload payload: "+err.Error(), "INVALID_PAYLOAD")
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		conn.sendError(msg.ID, "Invalid base64 data: "+err.Error(), "INVALID_DATA")
		return
	}

	rules, err := lexer.ParseRulesFromReader(bytes.NewReader(decoded))
	if err != nil {
		conn.sendError(msg.ID, "Invalid YAML format: "+err.Error(), "INVALID_YAML")
		return
	}

	rs := lexer.NewRuleset(rules, "upload:"+storage.SanitizeName(payload.Name))
	h.runner.analyzer.SetRules(rs)
	h.runner.log.Info("rules replaced", logger.F("source", rs.Info().Source), logger.F("version", rs.Info().Version))

	info := rs.Info()
	conn.send(MsgTypeComplete, msg.ID, WSCompleteResponse{Rules: &info})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
