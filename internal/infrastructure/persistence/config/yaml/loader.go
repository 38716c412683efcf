package yaml

import (
	"errors"
	"fmt"
	"os"
	"time"

	goyaml "gopkg.in/yaml.v3"

	domainconfig "github.com/danbao/testring-sub000/internal/domain/config"
	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
)

const (
	defaultWorkerLimit  = 1
	defaultThreadCount  = 10
	defaultTestTimeout  = 30 * time.Second
	defaultContextClose = 5 * time.Second
	defaultBrowserClose = 5 * time.Second
	defaultSessionClose = 5 * time.Second
)

// ErrNoConfigurationLoaded is returned by Reload when Load has never
// succeeded.
var ErrNoConfigurationLoaded = errors.New("yaml config: no configuration loaded")

// Loader loads domain/config.Config from a YAML file, remembering the last
// path loaded so Reload can re-read it (e.g. on SIGHUP).
type Loader struct {
	lastPath string
}

func New() *Loader { return &Loader{} }

// Load reads path, parses it, applies defaults, validates, and returns the
// resulting Config.
func (l *Loader) Load(path string) (domainconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domainconfig.Config{}, fmt.Errorf("yaml config: read %s: %w", path, err)
	}
	cfg, err := l.Parse(data)
	if err != nil {
		return domainconfig.Config{}, err
	}
	l.lastPath = path
	return cfg, nil
}

// Parse parses data directly, bypassing the filesystem — used by tests and
// by any caller that already has the bytes (an embedded default, a config
// fetched over the network).
func (l *Loader) Parse(data []byte) (domainconfig.Config, error) {
	var dto ConfigDTO
	if err := goyaml.Unmarshal(data, &dto); err != nil {
		return domainconfig.Config{}, fmt.Errorf("yaml config: parse: %w", err)
	}
	applyDefaults(&dto)

	cfg := dto.toDomain()
	if err := domainconfig.Validate(cfg); err != nil {
		return domainconfig.Config{}, fmt.Errorf("yaml config: validate: %w", err)
	}
	return cfg, nil
}

// Reload re-reads the last path Load succeeded against.
func (l *Loader) Reload() (domainconfig.Config, error) {
	if l.lastPath == "" {
		return domainconfig.Config{}, ErrNoConfigurationLoaded
	}
	return l.Load(l.lastPath)
}

func applyDefaults(dto *ConfigDTO) {
	if dto.Pool.WorkerLimit == 0 {
		dto.Pool.WorkerLimit = workerLimitDTO(defaultWorkerLimit)
	}
	if dto.FSStore.ThreadCount == 0 {
		dto.FSStore.ThreadCount = defaultThreadCount
	}
	if dto.Timeout.TestTimeout == 0 {
		dto.Timeout.TestTimeout = Duration(defaultTestTimeout)
	}
	if dto.Timeout.ContextClose == 0 {
		dto.Timeout.ContextClose = Duration(defaultContextClose)
	}
	if dto.Timeout.BrowserClose == 0 {
		dto.Timeout.BrowserClose = Duration(defaultBrowserClose)
	}
	if dto.Timeout.SessionClose == 0 {
		dto.Timeout.SessionClose = Duration(defaultSessionClose)
	}
}

func (dto ConfigDTO) toDomain() domainconfig.Config {
	return domainconfig.Config{
		Pool: domainrun.PoolConfig{
			WorkerLimit:   int(dto.Pool.WorkerLimit),
			RestartWorker: dto.Pool.RestartWorker,
		},
		Retry: domainrun.RetryConfig{
			RetryCount:       dto.Retry.RetryCount,
			RetryDelayMillis: dto.Retry.RetryDelay.Millis(),
			Bail:             dto.Retry.Bail,
		},
		Timeout: domainrun.TimeoutConfig{
			TestTimeoutMillis:  dto.Timeout.TestTimeout.Millis(),
			ContextCloseMillis: dto.Timeout.ContextClose.Millis(),
			BrowserCloseMillis: dto.Timeout.BrowserClose.Millis(),
			SessionCloseMillis: dto.Timeout.SessionClose.Millis(),
		},
		FSStore: domainconfig.FSStoreConfig{
			ThreadCount:  dto.FSStore.ThreadCount,
			ArtifactRoot: dto.FSStore.ArtifactRoot,
		},
		Debug: domainconfig.DebugConfig{
			Local:      dto.Debug.Local,
			TraceSpawn: dto.Debug.TraceSpawn,
		},
	}
}
