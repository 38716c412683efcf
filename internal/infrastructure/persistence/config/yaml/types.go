// Package yaml provides YAML configuration loading infrastructure for the
// orchestration engine's top-level Config, adapted from the retrieved
// daemon's own config/yaml package: a DTO layer with yaml tags, a
// load-then-apply-defaults-then-validate pipeline, and a Duration type
// that accepts human-readable strings ("5s") instead of raw milliseconds.
package yaml

import (
	"fmt"
	"time"
)

// Duration unmarshals a YAML string like "5s" or "250ms" into a
// time.Duration, the same pattern the retrieved daemon's own config/yaml
// Duration type uses.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Millis() int64 { return time.Duration(d).Milliseconds() }

// ConfigDTO is the YAML representation of the root configuration
// (spec.md §6's enumerated shape).
type ConfigDTO struct {
	Pool    PoolDTO    `yaml:"pool"`
	Retry   RetryDTO   `yaml:"retry"`
	Timeout TimeoutDTO `yaml:"timeout"`
	FSStore FSStoreDTO `yaml:"fsstore"`
	Debug   DebugDTO   `yaml:"debug"`
}

// PoolDTO is the YAML shape of PoolConfig. WorkerLimit accepts either an
// integer or the literal string "local" per spec.md's `int | "local"`
// union; UnmarshalYAML resolves "local" to the negative sentinel
// domain/run.PoolConfig documents.
type PoolDTO struct {
	WorkerLimit   workerLimitDTO `yaml:"workerLimit"`
	RestartWorker bool           `yaml:"restartWorker"`
}

type workerLimitDTO int

const localWorkerLimitSentinel = -1

func (w *workerLimitDTO) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		if v == "local" {
			*w = localWorkerLimitSentinel
			return nil
		}
		return fmt.Errorf("pool.workerLimit: unrecognized string %q, want an integer or \"local\"", v)
	case int:
		*w = workerLimitDTO(v)
		return nil
	default:
		return fmt.Errorf("pool.workerLimit: unsupported type %T", raw)
	}
}

type RetryDTO struct {
	RetryCount int      `yaml:"retryCount"`
	RetryDelay Duration `yaml:"retryDelay"`
	Bail       bool     `yaml:"bail"`
}

type TimeoutDTO struct {
	TestTimeout  Duration `yaml:"testTimeout"`
	ContextClose Duration `yaml:"contextClose"`
	BrowserClose Duration `yaml:"browserClose"`
	SessionClose Duration `yaml:"sessionClose"`
}

type FSStoreDTO struct {
	ThreadCount  int    `yaml:"threadCount"`
	ArtifactRoot string `yaml:"artifactRoot"`
}

type DebugDTO struct {
	Local      bool `yaml:"local"`
	TraceSpawn bool `yaml:"traceSpawn"`
}
