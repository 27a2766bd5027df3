package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	st, err := store.Load(ctx, "clinic", "s1")
	require.NoError(t, err)
	require.NoError(t, st.ValidateClient("CC-1"))

	again, err := store.Load(ctx, "clinic", "s1")
	require.NoError(t, err)
	assert.True(t, again.IsClientValidated("cc-1"))

	other, err := store.Load(ctx, "clinic", "s2")
	require.NoError(t, err)
	assert.False(t, other.IsClientValidated("CC-1"), "sessions must not share state")

	require.NoError(t, store.Delete(ctx, "clinic", "s1"))
	fresh, err := store.Load(ctx, "clinic", "s1")
	require.NoError(t, err)
	assert.False(t, fresh.IsClientValidated("CC-1"))
}

func TestRedisStoreRoundTripAndTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	store := NewRedisStore(client, time.Hour)

	st, err := store.Load(ctx, "clinic", "s1")
	require.NoError(t, err)
	assert.False(t, st.IsCodeValidated("CITA-AAAA"))

	require.NoError(t, st.ValidateCode("CITA-AAAA"))
	require.NoError(t, store.Save(ctx, "clinic", "s1", st))
	assert.Equal(t, time.Hour, mr.TTL(sessionKey("clinic", "s1")))

	loaded, err := store.Load(ctx, "clinic", "s1")
	require.NoError(t, err)
	assert.True(t, loaded.IsCodeValidated("cita-aaaa"))

	mr.FastForward(2 * time.Hour)
	expired, err := store.Load(ctx, "clinic", "s1")
	require.NoError(t, err)
	assert.False(t, expired.IsCodeValidated("CITA-AAAA"))

	require.NoError(t, store.Save(ctx, "clinic", "s2", st))
	require.NoError(t, store.Delete(ctx, "clinic", "s2"))
	assert.False(t, mr.Exists(sessionKey("clinic", "s2")))
}

func TestRedisStoreCorruptState(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	require.NoError(t, mr.Set(sessionKey("clinic", "bad"), "not-json"))
	_, err = NewRedisStore(client, 0).Load(context.Background(), "clinic", "bad")
	assert.Error(t, err)
}

func TestStoresScopeStateByTenant(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, time.Hour),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st, err := store.Load(ctx, "clinic", "shared")
			require.NoError(t, err)
			require.NoError(t, st.ValidateCode("CITA-AAAA"))
			require.NoError(t, store.Save(ctx, "clinic", "shared", st))

			same, err := store.Load(ctx, "CLINIC", "shared")
			require.NoError(t, err)
			assert.True(t, same.IsCodeValidated("CITA-AAAA"), "tenant ids are case-insensitive")

			other, err := store.Load(ctx, "salon", "shared")
			require.NoError(t, err)
			assert.False(t, other.IsCodeValidated("CITA-AAAA"))
		})
	}
	assert.True(t, mr.Exists("session:state:clinic:shared"))
}
