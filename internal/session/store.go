package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTTL = 24 * time.Hour

// Store persists session state for the lifetime of a logical conversation.
// State is scoped to a tenant: the same session id at two tenants holds two
// unrelated states. Load returns a fresh State for unknown sessions.
type Store interface {
	Load(ctx context.Context, tenantID, sessionID string) (*State, error)
	Save(ctx context.Context, tenantID, sessionID string, state *State) error
	Delete(ctx context.Context, tenantID, sessionID string) error
}

func scopedID(tenantID, sessionID string) string {
	return strings.ToLower(strings.TrimSpace(tenantID)) + ":" + sessionID
}

// MemoryStore keeps states in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*State)}
}

func (s *MemoryStore) Load(ctx context.Context, tenantID, sessionID string) (*State, error) {
	key := scopedID(tenantID, sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[key]; ok {
		return st, nil
	}
	st := NewState()
	s.states[key] = st
	return st, nil
}

func (s *MemoryStore) Save(ctx context.Context, tenantID, sessionID string, state *State) error {
	if state == nil {
		return errors.New("session: state required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[scopedID(tenantID, sessionID)] = state
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, scopedID(tenantID, sessionID))
	return nil
}

// RedisStore keeps states as JSON documents with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis:  redisClient,
		ttl:    ttl,
		tracer: otel.Tracer("receptionist.internal.session"),
	}
}

func sessionKey(tenantID, sessionID string) string {
	return fmt.Sprintf("session:state:%s", scopedID(tenantID, sessionID))
}

func (s *RedisStore) Load(ctx context.Context, tenantID, sessionID string) (*State, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(tenantID, sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewState(), nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to load state: %w", err)
	}
	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("session: failed to decode state: %w", err)
	}
	return st, nil
}

func (s *RedisStore) Save(ctx context.Context, tenantID, sessionID string, state *State) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	if state == nil {
		return errors.New("session: state required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(tenantID, sessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, tenantID, sessionID string) error {
	if err := s.redis.Del(ctx, sessionKey(tenantID, sessionID)).Err(); err != nil {
		return fmt.Errorf("session: failed to delete state: %w", err)
	}
	return nil
}
