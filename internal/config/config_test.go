package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
search_path: /srv/schemas
package: Model
store_path: /var/lib/app/store.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/schemas", cfg.SearchPath)
	assert.Equal(t, "Model", cfg.Package)
	assert.Equal(t, "/var/lib/app/store.db", cfg.StorePath)
	assert.Equal(t, "sqlite", cfg.StoreKind)
	assert.Equal(t, 200*time.Millisecond, cfg.WatchDebounce)
}

func TestLoad_RelativePathsResolveAgainstFile(t *testing.T) {
	path := writeConfig(t, "search_path: schemas\nstore_path: data/store.db\n")
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schemas"), cfg.SearchPath)
	assert.Equal(t, filepath.Join(dir, "data", "store.db"), cfg.StorePath)
}

func TestLoad_WatchDebounce(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{"duration string", "watch_debounce: 1s\n", time.Second, false},
		{"milliseconds", "watch_debounce: 50ms\n", 50 * time.Millisecond, false},
		{"zero falls back", "watch_debounce: 0s\n", 200 * time.Millisecond, false},
		{"negative", "watch_debounce: -1s\n", 0, true},
		{"garbage", "watch_debounce: soon\n", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.WatchDebounce)
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "search_path: [unterminated\n"))
	require.Error(t, err)
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(ConfigPath()))
	assert.Equal(t, DefaultDataDir(), filepath.Dir(ConfigPath()))
}
