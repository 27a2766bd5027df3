package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jconeo117/receptionist-agent/internal/http/handlers"
	httpmiddleware "github.com/jconeo117/receptionist-agent/internal/http/middleware"
	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/internal/webchat"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Registry           tenancy.Registry
	Chat               *handlers.ChatHandler
	Occupancy          *handlers.OccupancyHandler
	Audit              *handlers.AuditHandler
	WebChat            *webchat.Handler
	ChatLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
	ChannelAuthSecret  string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Registry != nil {
		r.Route("/api/{tenantID}", func(tenant chi.Router) {
			tenant.Use(requireTenant(cfg.Registry, logger))
			if cfg.Chat != nil {
				chat := tenant.With()
				if cfg.ChatLimiter != nil {
					chat = tenant.With(httpmiddleware.RateLimit(cfg.ChatLimiter))
				}
				chat.Post("/chat", cfg.Chat.Chat)
			}
			// Messaging adapters post sender phones; only token holders may.
			if cfg.Chat != nil && cfg.ChannelAuthSecret != "" {
				tenant.With(httpmiddleware.AdminJWT(cfg.ChannelAuthSecret)).Post("/channels/messages", cfg.Chat.ChannelMessage)
			}
			if cfg.WebChat != nil {
				tenant.Get("/webchat", cfg.WebChat.HandleWebSocket)
			}
			if cfg.Occupancy != nil {
				tenant.Get("/bookings/occupancy", cfg.Occupancy.Occupancy)
			}
		})
	}

	// Admin routes are only mounted when a signing secret is configured.
	if cfg.Audit != nil && cfg.AdminAuthSecret != "" {
		r.Route("/admin/audit", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/sessions/{sessionID}", cfg.Audit.SessionEntries)
			admin.Get("/security", cfg.Audit.Security)
			admin.Get("/recent", cfg.Audit.Recent)
			admin.Post("/archive", cfg.Audit.Archive)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
