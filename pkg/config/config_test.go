package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "__cluso.", cfg.Cluster.CachePrefix)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
cluster:
  worker_pool_size: 4
  default_lock_timeout: 2s
logging:
  level: debug
grid:
  nodes: 5
  expected_nodes: 5
`))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Cluster.WorkerPoolSize)
	assert.Equal(t, 2*time.Second, cfg.Cluster.DefaultLockTimeout)
	assert.Equal(t, "__cluso.", cfg.Cluster.CachePrefix, "unset fields keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Grid.Nodes)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"malformed", "cluster: ["},
		{"bad level", "logging:\n  level: loud\n"},
		{"no nodes", "grid:\n  nodes: 0\n"},
		{"bad addr", "metrics:\n  addr: nowhere\n"},
		{"zero workers", "cluster:\n  worker_pool_size: 0\n"},
		{"bad duration", "cluster:\n  default_lock_timeout: soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clusterd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  addr: 127.0.0.1:9999\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9999", cfg.Metrics.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
