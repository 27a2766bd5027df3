package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
	"github.com/jconeo117/receptionist-agent/internal/audit"
	"github.com/jconeo117/receptionist-agent/internal/booking"
	"github.com/jconeo117/receptionist-agent/internal/observability/metrics"
	"github.com/jconeo117/receptionist-agent/internal/security"
	"github.com/jconeo117/receptionist-agent/internal/session"
	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

var ErrSessionRequired = fmt.Errorf("conversation: session id required: %w", apperr.ErrInvalidArgument)

// Turn is one inbound user message.
type Turn struct {
	TenantID  string
	SessionID string
	Channel   string // "web", "whatsapp", "sms"
	Message   string
	Metadata  map[string]string
}

// Reply is what the channel sends back to the user.
type Reply struct {
	SessionID   string   `json:"session_id"`
	Text        string   `json:"reply"`
	Blocked     bool     `json:"blocked,omitempty"`
	ThreatLevel string   `json:"-"`
	Redactions  []string `json:"-"`
}

// PipelineConfig wires the collaborators of a Pipeline.
type PipelineConfig struct {
	Registry  tenancy.Registry
	Adapters  *booking.AdapterFactory
	Sessions  session.Store
	Guard     *security.InputGuard
	Filter    *security.OutputFilter
	Trail     audit.Trail
	Responder Responder
	Metrics   *metrics.ReceptionistMetrics
	Logger    *logging.Logger
}

// Pipeline runs guard, responder, filter and audit for every turn.
type Pipeline struct {
	registry  tenancy.Registry
	adapters  *booking.AdapterFactory
	sessions  session.Store
	guard     *security.InputGuard
	filter    *security.OutputFilter
	trail     audit.Trail
	responder Responder
	metrics   *metrics.ReceptionistMetrics
	logger    *logging.Logger
}

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Registry == nil || cfg.Responder == nil {
		panic("conversation: registry and responder required")
	}
	p := &Pipeline{
		registry:  cfg.Registry,
		adapters:  cfg.Adapters,
		sessions:  cfg.Sessions,
		guard:     cfg.Guard,
		filter:    cfg.Filter,
		trail:     cfg.Trail,
		responder: cfg.Responder,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if p.logger == nil {
		p.logger = logging.Default()
	}
	if p.adapters == nil {
		p.adapters = booking.NewAdapterFactory(nil, p.logger)
	}
	if p.sessions == nil {
		p.sessions = session.NewMemoryStore()
	}
	if p.guard == nil {
		p.guard = security.NewInputGuard()
	}
	if p.filter == nil {
		p.filter = security.NewOutputFilter()
	}
	if p.trail == nil {
		p.trail = audit.NewMemoryTrail()
	}
	return p
}

// HandleTurn screens the message, asks the responder for a reply when it is
// allowed, filters that reply and audits every step. Blocked messages never
// reach the responder. Responder errors are returned as is, without retry.
func (p *Pipeline) HandleTurn(ctx context.Context, turn Turn) (Reply, error) {
	started := time.Now()
	defer func() {
		p.metrics.ObserveTurnLatency(channelLabel(turn.Channel), time.Since(started).Seconds())
	}()

	if strings.TrimSpace(turn.SessionID) == "" {
		return Reply{}, ErrSessionRequired
	}
	tenant, err := p.registry.Resolve(ctx, turn.TenantID)
	if err != nil {
		return Reply{}, err
	}
	tenantID := tenant.TenantID
	log := p.logger.ForTenant(tenantID, turn.SessionID)

	verdict := p.guard.Analyze(turn.Message)
	p.metrics.ObserveGuard(tenantID, verdict.Level.String(), verdict.Allowed)
	p.append(ctx, log, audit.Entry{
		TenantID:    tenantID,
		SessionID:   turn.SessionID,
		EventType:   audit.EventUserMessage,
		Content:     turn.Message,
		ThreatLevel: verdict.Level.String(),
		Metadata:    withChannel(turn.Metadata, turn.Channel),
	})

	if !verdict.Allowed {
		log.Warn("input blocked", "threat_level", verdict.Level.String(), "rule", verdict.Rule)
		p.append(ctx, log, audit.Entry{
			TenantID:    tenantID,
			SessionID:   turn.SessionID,
			EventType:   audit.EventSecurityBlock,
			Content:     verdict.RejectionReason,
			ThreatLevel: verdict.Level.String(),
			Metadata:    map[string]string{"reason": verdict.Rule},
		})
		return Reply{
			SessionID:   turn.SessionID,
			Text:        verdict.RejectionReason,
			Blocked:     true,
			ThreatLevel: verdict.Level.String(),
		}, nil
	}

	state, err := p.sessions.Load(ctx, tenantID, turn.SessionID)
	if err != nil {
		return Reply{}, err
	}
	adapter, err := p.adapters.ForTenant(tenant)
	if err != nil {
		return Reply{}, err
	}
	svc := booking.NewService(tenantID, adapter, p.metrics, p.logger)
	tools := NewBookingTools(svc, state, p.trail, turn.SessionID, p.logger)
	tools.now = tenantClock(tenant)

	raw, err := p.responder.Respond(ctx, ResponderRequest{
		Tenant:    tenant,
		SessionID: turn.SessionID,
		Channel:   turn.Channel,
		Message:   turn.Message,
		Tools:     tools,
	})
	if err != nil {
		log.Error("responder failed", "error", err)
		return Reply{}, fmt.Errorf("conversation: responder: %w", err)
	}
	if err := p.sessions.Save(ctx, tenantID, turn.SessionID, state); err != nil {
		log.Error("failed to persist session state", "error", err)
	}

	filtered := p.filter.Filter(raw, tenantID)
	if filtered.WasModified {
		for _, label := range filtered.RedactedItems {
			p.metrics.ObserveRedaction(tenantID, label)
		}
		log.Warn("output filtered", "labels", filtered.RedactedItems)
		p.append(ctx, log, audit.Entry{
			TenantID:  tenantID,
			SessionID: turn.SessionID,
			EventType: audit.EventOutputFiltered,
			Content:   filtered.Content,
			Metadata:  map[string]string{"labels": strings.Join(filtered.RedactedItems, ",")},
		})
	}

	p.append(ctx, log, audit.Entry{
		TenantID:  tenantID,
		SessionID: turn.SessionID,
		EventType: audit.EventAgentResponse,
		Content:   filtered.Content,
	})

	return Reply{
		SessionID:   turn.SessionID,
		Text:        filtered.Content,
		ThreatLevel: verdict.Level.String(),
		Redactions:  filtered.RedactedItems,
	}, nil
}

func (p *Pipeline) append(ctx context.Context, log *logging.Logger, entry audit.Entry) {
	if _, err := p.trail.Append(ctx, entry); err != nil {
		log.Error("failed to append audit entry", "event_type", entry.EventType, "error", err)
	}
}

func tenantClock(tenant *tenancy.Configuration) func() time.Time {
	loc := time.UTC
	if tenant != nil && tenant.TimezoneID != "" {
		if l, err := time.LoadLocation(tenant.TimezoneID); err == nil {
			loc = l
		}
	}
	return func() time.Time { return time.Now().In(loc) }
}

func withChannel(md map[string]string, channel string) map[string]string {
	out := make(map[string]string, len(md)+1)
	for k, v := range md {
		out[k] = v
	}
	if channel != "" {
		out["channel"] = channel
	}
	return out
}

func channelLabel(channel string) string {
	if channel == "" {
		return "unknown"
	}
	return channel
}
