package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/htmllex/analyzer/internal/analysis"
	"github.com/htmllex/analyzer/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialWS(t *testing.T) (*websocket.Conn, *testutil.MockStorage, *analysis.Analyzer, *fakeHistory) {
	t.Helper()
	return dialWSLimit(t, 0)
}

func dialWSLimit(t *testing.T, messageLimit int64) (*websocket.Conn, *testutil.MockStorage, *analysis.Analyzer, *fakeHistory) {
	t.Helper()
	store := testutil.NewMockStorage()
	a := analysis.New(store, nil, nil, analysis.Options{MaxConcurrent: 2})
	history := newFakeHistory()

	e := echo.New()
	SetupMiddleware(e, MiddlewareOptions{Timeout: time.Second, EnableCompression: true})
	RegisterRoutes(e, NewHandlers(&Dependencies{Store: store, Analyzer: a, History: history, MessageLimit: messageLimit}))

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + WebSocketPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	hello := readWS(t, conn)
	require.Equal(t, MsgTypeConnected, hello.Type)

	return conn, store, a, history
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType, id string, payload interface{}) {
	t.Helper()
	msg := WSMessage{Type: msgType, ID: id}
	if payload != nil {
		msg.Payload = mustJSON(payload)
	}
	require.NoError(t, conn.WriteJSON(msg))
}

func encodeFile(name, content string) FileUploadPayload {
	return FileUploadPayload{Name: name, Data: base64.StdEncoding.EncodeToString([]byte(content))}
}

func TestWebSocket_Ping(t *testing.T) {
	conn, _, _, _ := dialWS(t)

	sendWS(t, conn, MsgTypePing, "p1", nil)
	msg := readWS(t, conn)

	assert.Equal(t, MsgTypePong, msg.Type)
	assert.Equal(t, "p1", msg.ID)
}

func TestWebSocket_Analyze(t *testing.T) {
	conn, store, _, history := dialWS(t)

	sendWS(t, conn, MsgTypeAnalyze, "req-1", AnalyzePayload{Files: []FileUploadPayload{
		encodeFile("a.html", "<div></div>"),
		encodeFile("b.html", "<div>"),
	}})

	ack := readWS(t, conn)
	require.Equal(t, MsgTypeAck, ack.Type)
	assert.Equal(t, "req-1", ack.ID)
	var ackBody WSAckResponse
	require.NoError(t, json.Unmarshal(ack.Payload, &ackBody))
	assert.Equal(t, 2, ackBody.Total)

	completed := make([]int, 0, 2)
	var done WSMessage
	for {
		msg := readWS(t, conn)
		if msg.Type == MsgTypeProgress {
			var p WSProgressResponse
			require.NoError(t, json.Unmarshal(msg.Payload, &p))
			assert.Equal(t, ackBody.BatchID, p.BatchID)
			completed = append(completed, p.Completed)
			continue
		}
		done = msg
		break
	}

	assert.ElementsMatch(t, []int{1, 2}, completed)
	require.Equal(t, MsgTypeComplete, done.Type)

	var body WSCompleteResponse
	require.NoError(t, json.Unmarshal(done.Payload, &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "a.html", body.Results[0].FilePath)
	assert.True(t, body.Results[0].Valid())
	assert.Equal(t, []string{"Structure error: tag <div> was never closed."}, body.Results[1].Errors)

	assert.Equal(t, 0, store.Count())
	history.mu.Lock()
	assert.Len(t, history.batches[ackBody.BatchID], 2)
	history.mu.Unlock()
}

func TestWebSocket_Errors(t *testing.T) {
	tests := []struct {
		name     string
		msgType  string
		payload  interface{}
		wantCode string
	}{
		{"unknown type", "upload:chunk", nil, "INVALID_TYPE"},
		{"no files", MsgTypeAnalyze, AnalyzePayload{}, "BAD_REQUEST"},
		{"bad base64", MsgTypeAnalyze, AnalyzePayload{Files: []FileUploadPayload{{Name: "a.html", Data: "!!"}}}, "INVALID_DATA"},
		{"bad rules yaml", MsgTypeRulesUpload, FileUploadPayload{Name: "r.yaml", Data: base64.StdEncoding.EncodeToString([]byte("void_tags: {"))}, "INVALID_YAML"},
	}

	conn, _, _, _ := dialWS(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendWS(t, conn, tt.msgType, tt.name, tt.payload)
			msg := readWS(t, conn)

			require.Equal(t, MsgTypeError, msg.Type)
			assert.Equal(t, tt.name, msg.ID)
			var body WSErrorResponse
			require.NoError(t, json.Unmarshal(msg.Payload, &body))
			assert.Equal(t, tt.wantCode, body.Code)
		})
	}
}

func TestWebSocket_RulesUpload(t *testing.T) {
	conn, _, a, _ := dialWS(t)

	sendWS(t, conn, MsgTypeRulesUpload, "r1", encodeFile("strict.yaml", "version: strict-2\nvoid_tags: [br]\n"))
	msg := readWS(t, conn)

	require.Equal(t, MsgTypeComplete, msg.Type)
	var body WSCompleteResponse
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	require.NotNil(t, body.Rules)
	assert.Equal(t, "strict-2", body.Rules.Version)
	assert.Equal(t, "strict-2", a.Rules().Info().Version)
	assert.False(t, a.Rules().IsVoid("img"))
}

func TestWebSocket_MessageLimit(t *testing.T) {
	conn, store, _, history := dialWSLimit(t, 1024)

	sendWS(t, conn, MsgTypeAnalyze, "big", AnalyzePayload{Files: []FileUploadPayload{
		encodeFile("big.html", "<div>"+strings.Repeat("x", 4096)+"</div>"),
	}})

	var msg WSMessage
	err := conn.ReadJSON(&msg)
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseMessageTooBig), "got %v", err)

	assert.Equal(t, 0, store.Count())
	history.mu.Lock()
	assert.Empty(t, history.batches)
	history.mu.Unlock()
}
