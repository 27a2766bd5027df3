package bootstrap

import (
	"context"
	"strings"

	appconfig "github.com/jconeo117/receptionist-agent/internal/config"
	"github.com/jconeo117/receptionist-agent/internal/conversation"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// BuildResponder returns the Gemini responder, or the stub responder when no
// API key is configured. The returned close func is never nil.
func BuildResponder(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.Responder, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		logger.Warn("GEMINI_API_KEY not set; using stub responder")
		return conversation.StubResponder{}, noop, nil
	}
	responder, err := conversation.NewGeminiResponder(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		return nil, noop, err
	}
	logger.Info("gemini responder enabled", "model", cfg.GeminiModelID)
	return responder, responder.Close, nil
}
