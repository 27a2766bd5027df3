// Package conversation runs a guarded conversation turn and exposes the
// ownership-gated booking tools to the conversational loop.
package conversation

import (
	"context"

	"github.com/jconeo117/receptionist-agent/internal/tenancy"
)

// ResponderRequest is everything a responder may use to produce a reply.
// Tools is bound to the tenant and session of the turn.
type ResponderRequest struct {
	Tenant    *tenancy.Configuration
	SessionID string
	Channel   string
	Message   string
	Tools     *BookingTools
}

// Responder produces the agent reply for an allowed message. Implementations
// own the model call and any tool-calling loop.
type Responder interface {
	Respond(ctx context.Context, req ResponderRequest) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, req ResponderRequest) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, req ResponderRequest) (string, error) {
	return f(ctx, req)
}
