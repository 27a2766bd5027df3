package session

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jconeo117/receptionist-agent/internal/apperr"
)

func TestStateCaseInsensitive(t *testing.T) {
	st := NewState()
	require.NoError(t, st.ValidateClient("CC-1"))
	require.NoError(t, st.ValidateCode("cita-ab12"))

	assert.True(t, st.IsClientValidated("cc-1"))
	assert.True(t, st.IsClientValidated(" CC-1 "))
	assert.True(t, st.IsCodeValidated("CITA-AB12"))
	assert.False(t, st.IsClientValidated("CC-2"))
	assert.False(t, st.IsCodeValidated("CITA-0000"))
	assert.False(t, st.IsClientValidated(""))
}

func TestStateRejectsBlank(t *testing.T) {
	st := NewState()
	err := st.ValidateClient("   ")
	assert.ErrorIs(t, err, ErrBlankClientID)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	assert.ErrorIs(t, st.ValidateCode(""), ErrBlankCode)
}

func TestStateIsMonotonic(t *testing.T) {
	st := NewState()
	require.NoError(t, st.ValidateClient("CC-1"))
	require.NoError(t, st.ValidateClient("CC-2"))
	require.NoError(t, st.ValidateClient("cc-1"))
	assert.True(t, st.IsClientValidated("CC-1"))
	assert.True(t, st.IsClientValidated("CC-2"))
}

func TestStateConcurrentValidation(t *testing.T) {
	st := NewState()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.ValidateCode("CITA-AAAA")
			_ = st.IsCodeValidated("CITA-AAAA")
		}()
	}
	wg.Wait()
	assert.True(t, st.IsCodeValidated("cita-aaaa"))
}

func TestStateJSONRoundTrip(t *testing.T) {
	st := NewState()
	require.NoError(t, st.ValidateClient("cc-9"))
	require.NoError(t, st.ValidateCode("CITA-1234"))

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{"validated_clients":["CC-9"],"validated_codes":["CITA-1234"]}`, string(data))

	restored := NewState()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.True(t, restored.IsClientValidated("CC-9"))
	assert.True(t, restored.IsCodeValidated("cita-1234"))
}

func TestIDFromPhone(t *testing.T) {
	a := IDFromPhone("clinica", "+57 300 123 4567")
	b := IDFromPhone("CLINICA", "573001234567")
	c := IDFromPhone("otra", "573001234567")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 36)
}
