package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
	"github.com/jconeo117/receptionist-agent/internal/conversation"
	httpmiddleware "github.com/jconeo117/receptionist-agent/internal/http/middleware"
	"github.com/jconeo117/receptionist-agent/internal/session"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, turn conversation.Turn) (conversation.Reply, error)
}

// ChatRequest is the body of POST /api/{tenantID}/chat.
type ChatRequest struct {
	SessionID string            `json:"session_id"`
	Channel   string            `json:"channel,omitempty"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ChannelMessageRequest is the body of POST /api/{tenantID}/channels/messages,
// sent by authenticated messaging adapters. The session is derived from From.
type ChannelMessageRequest struct {
	From     string            `json:"from"`
	Channel  string            `json:"channel"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type ChatHandler struct {
	turns  TurnHandler
	logger *logging.Logger
}

func NewChatHandler(turns TurnHandler, logger *logging.Logger) *ChatHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatHandler{turns: turns, logger: logger}
}

// Chat handles POST /api/{tenantID}/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromRequest(r)

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		writeError(w, h.logger, conversation.ErrSessionRequired)
		return
	}
	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		channel = "web"
	}
	h.runTurn(w, r, conversation.Turn{
		TenantID:  tenantID,
		SessionID: sessionID,
		Channel:   channel,
		Message:   req.Message,
		Metadata:  req.Metadata,
	})
}

// ChannelMessage handles POST /api/{tenantID}/channels/messages. The caller
// must hold a channel token valid for the tenant; the session id is the
// tenant-scoped hash of the sender's phone.
func (h *ChatHandler) ChannelMessage(w http.ResponseWriter, r *http.Request) {
	tenantID := tenantFromRequest(r)
	claims, ok := httpmiddleware.AdminClaimsFromContext(r.Context())
	if !ok || !claims.CanAccess(tenantID) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "token not valid for tenant"})
		return
	}

	var req ChannelMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.From) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from and message are required"})
		return
	}
	channel := strings.TrimSpace(req.Channel)
	if channel == "" {
		channel = "sms"
	}
	h.runTurn(w, r, conversation.Turn{
		TenantID:  tenantID,
		SessionID: session.IDFromPhone(tenantID, req.From),
		Channel:   channel,
		Message:   req.Message,
		Metadata:  req.Metadata,
	})
}

func (h *ChatHandler) runTurn(w http.ResponseWriter, r *http.Request, turn conversation.Turn) {
	reply, err := h.turns.HandleTurn(r.Context(), turn)
	if err != nil {
		if apperr.HTTPStatus(err) == http.StatusInternalServerError {
			h.logger.ForTenant(turn.TenantID, turn.SessionID).Error("chat turn failed", "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "assistant unavailable"})
			return
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
