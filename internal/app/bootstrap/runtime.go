package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/jconeo117/receptionist-agent/internal/audit"
	appconfig "github.com/jconeo117/receptionist-agent/internal/config"
	"github.com/jconeo117/receptionist-agent/internal/session"
	"github.com/jconeo117/receptionist-agent/internal/tenancy"
	"github.com/jconeo117/receptionist-agent/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildPostgresPool opens the pgx pool used by postgres booking adapters, or
// returns nil when no DATABASE_URL is configured.
func BuildPostgresPool(ctx context.Context, cfg *appconfig.Config) (*pgxpool.Pool, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return pool, nil
}

// BuildAuditTrail returns the SQL audit trail when AUDIT_BACKEND=sql and a
// database is configured, and the in-memory trail otherwise. The returned
// *sql.DB is nil for the memory trail; callers close it on shutdown.
func BuildAuditTrail(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (audit.Trail, *sql.DB, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.UsesSQLAudit() {
		if cfg != nil && cfg.AuditBackend == "sql" {
			logger.Warn("sql audit requested without DATABASE_URL; using memory trail")
		}
		return audit.NewMemoryTrail(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open audit db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping audit db: %w", err)
	}
	logger.Info("sql audit trail enabled")
	return audit.NewSQLTrail(db), db, nil
}

// BuildSessionStore returns the Redis session store when Redis is available.
func BuildSessionStore(cfg *appconfig.Config, redisClient *redis.Client) session.Store {
	if redisClient == nil {
		return session.NewMemoryStore()
	}
	ttl := session.DefaultTTL
	if cfg != nil && cfg.SessionTTL > 0 {
		ttl = cfg.SessionTTL
	}
	return session.NewRedisStore(redisClient, ttl)
}

// BuildTenantRegistry loads TENANTS_FILE and serves it from memory, or seeds
// it into Redis when TENANT_REGISTRY=redis. A missing file is only an error
// for the memory registry, since Redis may already hold the tenants.
func BuildTenantRegistry(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) (tenancy.Registry, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	configs, err := tenancy.LoadFile(cfg.TenantsFile)
	missing := errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		return nil, err
	}

	if cfg.UsesRedisRegistry() && redisClient != nil {
		registry := tenancy.NewRedisRegistry(redisClient)
		for _, tc := range configs {
			if err := registry.Save(ctx, tc); err != nil {
				return nil, fmt.Errorf("bootstrap: seed tenant %s: %w", tc.TenantID, err)
			}
		}
		logger.Info("redis tenant registry ready", "seeded", len(configs))
		return registry, nil
	}

	if missing {
		return nil, fmt.Errorf("bootstrap: tenants file %s: %w", cfg.TenantsFile, err)
	}
	logger.Info("memory tenant registry ready", "tenants", len(configs))
	return tenancy.NewMemoryRegistry(configs...), nil
}
