package tenancy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArrayAndSingle(t *testing.T) {
	configs, err := Parse([]byte(`[
		{"tenant_id":"a","business_name":"A","providers":[{"id":"DR1","name":"Ana","working_days":["lunes"]}]},
		{"tenant_id":"b","business_name":"B","db_type":"postgres","providers":[]}
	]`))
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "DR1", configs[0].Providers[0].ID)
	assert.Equal(t, DBTypePostgres, configs[1].AdapterKind())

	configs, err = Parse([]byte(` {"tenant_id":"solo","providers":[]}`))
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "solo", configs[0].TenantID)
}

func TestParseRejectsBadInput(t *testing.T) {
	for name, raw := range map[string]string{
		"missing id": `[{"business_name":"x"}]`,
		"duplicate":  `[{"tenant_id":"A"},{"tenant_id":"a"}]`,
		"malformed":  `[{"tenant_id":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"tenant_id":"clinic","providers":[]}]`), 0o600))

	configs, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "clinic", configs[0].TenantID)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
