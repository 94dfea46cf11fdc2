package cluster

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.subsCacheName() != "__cluso.subs" {
		t.Errorf("Expected subs cache '__cluso.subs', got '%s'", cfg.subsCacheName())
	}
	if cfg.nodeInfoCacheName() != "__cluso.nodeInfo" {
		t.Errorf("Expected node info cache '__cluso.nodeInfo', got '%s'", cfg.nodeInfoCacheName())
	}
	if cfg.lockName("l1") != "__cluso.l1" {
		t.Errorf("Expected lock name '__cluso.l1', got '%s'", cfg.lockName("l1"))
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero workers", func(c *Config) { c.WorkerPoolSize = 0 }, true},
		{"too many workers", func(c *Config) { c.WorkerPoolSize = 100000 }, true},
		{"zero acquire workers", func(c *Config) { c.LockAcquireWorkers = 0 }, true},
		{"zero release workers", func(c *Config) { c.LockReleaseWorkers = 0 }, true},
		{"empty prefix", func(c *Config) { c.CachePrefix = "" }, true},
		{"zero lock timeout", func(c *Config) { c.DefaultLockTimeout = 0 }, true},
		{"custom", func(c *Config) {
			c.WorkerPoolSize = 2
			c.CachePrefix = "app."
			c.DefaultLockTimeout = time.Millisecond
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
