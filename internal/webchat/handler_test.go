package webchat

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/jconeo117/receptionist-agent/internal/conversation"
	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

type recordingTurns struct {
	mu    sync.Mutex
	turns []conversation.Turn
	err   error
}

func (r *recordingTurns) HandleTurn(ctx context.Context, turn conversation.Turn) (conversation.Reply, error) {
	r.mu.Lock()
	r.turns = append(r.turns, turn)
	r.mu.Unlock()
	if r.err != nil {
		return conversation.Reply{}, r.err
	}
	return conversation.Reply{SessionID: turn.SessionID, Text: "eco: " + turn.Message}, nil
}

func (r *recordingTurns) recorded() []conversation.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conversation.Turn(nil), r.turns...)
}

func dial(t *testing.T, h *Handler, query string) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/{tenantID}/webchat", h.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/clinic/webchat" + query
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	return msg
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32) // 16 bytes = 32 hex chars
}

func TestWebSocketTurn(t *testing.T) {
	turns := &recordingTurns{}
	conn := dial(t, NewHandler(turns, logging.New("error")), "?session=sess1")

	hello := receive(t, conn)
	assert.Equal(t, "session", hello.Type)
	assert.Equal(t, "sess1", hello.SessionID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "Hola"}))
	assert.Equal(t, "typing", receive(t, conn).Type)
	reply := receive(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "eco: Hola", reply.Text)

	got := turns.recorded()
	require.Len(t, got, 1)
	assert.Equal(t, "clinic", got[0].TenantID)
	assert.Equal(t, "sess1", got[0].SessionID)
	assert.Equal(t, "webchat", got[0].Channel)
}

func TestWebSocketGeneratesSession(t *testing.T) {
	conn := dial(t, NewHandler(&recordingTurns{}, logging.New("error")), "")
	hello := receive(t, conn)
	assert.Len(t, hello.SessionID, 32)
}

func TestWebSocketTurnError(t *testing.T) {
	conn := dial(t, NewHandler(&recordingTurns{err: tenancy.ErrTenantNotFound}, logging.New("error")), "?session=s")
	receive(t, conn)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "Hola"}))
	receive(t, conn)
	msg := receive(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "Lo sentimos, este servicio no está disponible.", msg.Text)
}

func TestErrorTextHidesInternals(t *testing.T) {
	assert.NotContains(t, errorText(errors.New("pq: connection refused")), "pq")
}

func TestSendToSessionWithoutConnection(t *testing.T) {
	h := NewHandler(&recordingTurns{}, nil)
	assert.False(t, h.SendToSession("clinic", "nobody", OutboundMessage{Type: "message"}))
}
