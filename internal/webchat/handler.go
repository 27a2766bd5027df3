// Package webchat carries conversation turns over a WebSocket for the
// embeddable chat widget.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
	"github.com/jconeo117/receptionist-agent/internal/conversation"
	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

const channelWebChat = "webchat"

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn conversation.Turn) (conversation.Reply, error)
}

// Handler manages web chat connections.
type Handler struct {
	turns  TurnHandler
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // tenant:session -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string `json:"type"` // "session", "typing", "message", "pong", "error"
	Text      string `json:"text,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Blocked   bool   `json:"blocked,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

const idleTimeout = 10 * time.Minute

// NewHandler creates a web chat handler.
func NewHandler(turns TurnHandler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		turns:    turns,
		logger:   logger,
		sessions: make(map[string]*wsConn),
	}
}

func connectionKey(tenantID, sessionID string) string {
	return strings.ToLower(tenantID) + ":" + sessionID
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket handles GET /api/{tenantID}/webchat?session=... and
// upgrades to a WebSocket. A missing session parameter starts a new session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenancy.TenantIDFromContext(r.Context())
	if !ok {
		tenantID = chi.URLParam(r, "tenantID")
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r, tenantID)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request, tenantID string) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	key := connectionKey(tenantID, sessionID)
	log := h.logger.ForTenant(tenantID, sessionID)

	wsc := &wsConn{conn: conn}
	h.mu.Lock()
	h.sessions[key] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[key] == wsc {
			delete(h.sessions, key)
		}
		h.mu.Unlock()
	}()

	// The server write timeout would otherwise cut long-lived connections.
	_ = conn.SetWriteDeadline(time.Time{})
	if err := wsc.send(OutboundMessage{Type: "session", SessionID: sessionID}); err != nil {
		return
	}
	log.Info("webchat: connection opened")

	for {
		var msg InboundMessage
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			log.Debug("webchat: connection closed", "error", err)
			return
		}

		switch {
		case msg.Type == "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
		case msg.Type == "message" && strings.TrimSpace(msg.Text) != "":
			h.processMessage(r.Context(), wsc, tenantID, sessionID, msg.Text)
		}
	}
}

func (h *Handler) processMessage(ctx context.Context, wsc *wsConn, tenantID, sessionID, text string) {
	_ = wsc.send(OutboundMessage{Type: "typing"})

	reply, err := h.turns.HandleTurn(ctx, conversation.Turn{
		TenantID:  tenantID,
		SessionID: sessionID,
		Channel:   channelWebChat,
		Message:   text,
	})
	if err != nil {
		h.logger.ForTenant(tenantID, sessionID).Error("webchat: turn failed", "error", err)
		_ = wsc.send(OutboundMessage{Type: "error", Text: errorText(err)})
		return
	}

	_ = wsc.send(OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      reply.Text,
		Blocked:   reply.Blocked,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// SendToSession pushes a message to an open connection, reporting whether
// one was found.
func (h *Handler) SendToSession(tenantID, sessionID string, msg OutboundMessage) bool {
	h.mu.RLock()
	wsc, ok := h.sessions[connectionKey(tenantID, sessionID)]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return wsc.send(msg) == nil
}

func errorText(err error) string {
	if errors.Is(err, apperr.ErrNotFound) {
		return "Lo sentimos, este servicio no está disponible."
	}
	return "Lo sentimos, ocurrió un error. Intente de nuevo."
}
