package tenancy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads tenant configurations from a JSON file holding either one
// configuration object or an array of them. Entries without a tenant id are
// rejected.
func LoadFile(path string) ([]*Configuration, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tenancy: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes tenant configurations from JSON.
func Parse(raw []byte) ([]*Configuration, error) {
	raw = bytes.TrimSpace(raw)
	var configs []*Configuration
	if len(raw) > 0 && raw[0] == '{' {
		var single Configuration
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("tenancy: decode config: %w", err)
		}
		configs = append(configs, &single)
	} else if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, fmt.Errorf("tenancy: decode configs: %w", err)
	}

	seen := make(map[string]struct{}, len(configs))
	for i, cfg := range configs {
		if cfg == nil || strings.TrimSpace(cfg.TenantID) == "" {
			return nil, fmt.Errorf("tenancy: config %d has no tenant_id", i)
		}
		key := normalizeTenantKey(cfg.TenantID)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("tenancy: duplicate tenant_id %q", cfg.TenantID)
		}
		seen[key] = struct{}{}
	}
	return configs, nil
}
