// Package config declares the orchestration engine's top-level
// configuration shape (spec.md §6 "Configuration"): the knobs the pool,
// retry/bail policy, FS-Store, and debug toggles are built from, however
// they end up loaded (YAML today, per internal/infrastructure/persistence/
// config/yaml).
package config

import (
	"errors"
	"fmt"

	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
)

// FSStoreConfig controls the FS-Store server (spec.md §6).
type FSStoreConfig struct {
	ThreadCount  int
	ArtifactRoot string
}

// DebugConfig controls development-only behavior (spec.md §6): Local runs
// tests through in-process workers instead of spawned worker processes,
// with the pool still sized by Pool.WorkerLimit. TraceSpawn is loaded from
// configuration but nothing reads it: bootstrap does not wrap its Bus in
// infrastructure/transport/strict.
type DebugConfig struct {
	Local      bool
	TraceSpawn bool
}

// Config bundles every configuration section the engine needs.
type Config struct {
	Pool    domainrun.PoolConfig
	Retry   domainrun.RetryConfig
	Timeout domainrun.TimeoutConfig
	FSStore FSStoreConfig
	Debug   DebugConfig
}

// RunConfig projects the sections application/controller.Controller
// actually consumes.
func (c Config) RunConfig() domainrun.Config {
	return domainrun.Config{Pool: c.Pool, Retry: c.Retry, Timeout: c.Timeout}
}

// ErrMissingArtifactRoot is returned by Validate when FSStore.ArtifactRoot
// is empty: the FS-Store server has nowhere to synthesize file names under.
var ErrMissingArtifactRoot = errors.New("config: fsstore.artifactRoot is required")

// Validate applies the structural rules a loaded Config must satisfy
// regardless of source.
func Validate(c Config) error {
	if c.FSStore.ArtifactRoot == "" {
		return ErrMissingArtifactRoot
	}
	if c.Retry.RetryCount < 0 {
		return fmt.Errorf("config: retry.retryCount must be >= 0, got %d", c.Retry.RetryCount)
	}
	if c.FSStore.ThreadCount < 0 {
		return fmt.Errorf("config: fsstore.threadCount must be >= 0, got %d", c.FSStore.ThreadCount)
	}
	return nil
}
