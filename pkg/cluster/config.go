package cluster

import (
	"fmt"
	"time"

	"github.com/dd0wney/cluso-clustermgr/pkg/validation"
)

// Config defines the tunables of a Coordinator.
type Config struct {
	// WorkerPoolSize is the number of goroutines running blocking grid calls.
	WorkerPoolSize int `yaml:"worker_pool_size" validate:"min=1,max=4096"`
	// LockAcquireWorkers sizes the pool that waits on lock semaphores, so
	// contended locks cannot starve listener dispatch and cleanup.
	LockAcquireWorkers int `yaml:"lock_acquire_workers" validate:"min=1,max=4096"`
	// LockReleaseWorkers sizes the dedicated pool that performs lock releases.
	LockReleaseWorkers int `yaml:"lock_release_workers" validate:"min=1,max=256"`
	// CachePrefix namespaces the internal caches and lock semaphores.
	CachePrefix string `yaml:"cache_prefix" validate:"required,max=64"`
	// DefaultLockTimeout applies when AcquireLock is called with a non-positive timeout.
	DefaultLockTimeout time.Duration `yaml:"default_lock_timeout" validate:"gt=0"`
}

// DefaultConfig returns a safe default configuration
func DefaultConfig() Config {
	return Config{
		WorkerPoolSize:     16,
		LockAcquireWorkers: 8,
		LockReleaseWorkers: 2,
		CachePrefix:        "__cluso.",
		DefaultLockTimeout: 10 * time.Second,
	}
}

// Validate checks if configuration is valid
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) subsCacheName() string {
	return c.CachePrefix + "subs"
}

func (c Config) nodeInfoCacheName() string {
	return c.CachePrefix + "nodeInfo"
}

func (c Config) lockName(name string) string {
	return c.CachePrefix + name
}
