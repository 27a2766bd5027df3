package tenancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const tenantIDsKey = "tenant:ids"

// RedisRegistry stores one JSON document per tenant in Redis.
type RedisRegistry struct {
	redis *redis.Client
}

// NewRedisRegistry creates a registry backed by the given client.
func NewRedisRegistry(redisClient *redis.Client) *RedisRegistry {
	if redisClient == nil {
		panic("tenancy: redis client required")
	}
	return &RedisRegistry{redis: redisClient}
}

func (r *RedisRegistry) key(tenantID string) string {
	return fmt.Sprintf("tenant:config:%s", normalizeTenantKey(tenantID))
}

// Resolve loads the tenant configuration or returns ErrTenantNotFound.
func (r *RedisRegistry) Resolve(ctx context.Context, tenantID string) (*Configuration, error) {
	if normalizeTenantKey(tenantID) == "" {
		return nil, ErrTenantNotFound
	}
	data, err := r.redis.Get(ctx, r.key(tenantID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenancy: get config: %w", err)
	}

	var cfg Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("tenancy: unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ListTenantIDs returns the ids of every saved tenant, sorted.
func (r *RedisRegistry) ListTenantIDs(ctx context.Context) ([]string, error) {
	ids, err := r.redis.SMembers(ctx, tenantIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("tenancy: list ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Save writes a tenant configuration. It is meant for seeding tooling; the
// conversational flow only reads.
func (r *RedisRegistry) Save(ctx context.Context, cfg *Configuration) error {
	if cfg == nil || normalizeTenantKey(cfg.TenantID) == "" {
		return errors.New("tenancy: tenant id required")
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("tenancy: marshal config: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, r.key(cfg.TenantID), data, 0)
	pipe.SAdd(ctx, tenantIDsKey, cfg.TenantID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tenancy: save config: %w", err)
	}
	return nil
}
