package yaml_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	loader "github.com/danbao/testring-sub000/internal/infrastructure/persistence/config/yaml"
)

const sampleConfig = `
pool:
  workerLimit: 4
  restartWorker: true
retry:
  retryCount: 2
  retryDelay: 500ms
  bail: true
timeout:
  testTimeout: 10s
fsstore:
  threadCount: 8
  artifactRoot: /tmp/artifacts
debug:
  local: false
  traceSpawn: true
`

func TestLoader_Parse(t *testing.T) {
	l := loader.New()
	cfg, err := l.Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pool.WorkerLimit)
	assert.True(t, cfg.Pool.RestartWorker)
	assert.Equal(t, 2, cfg.Retry.RetryCount)
	assert.EqualValues(t, 500, cfg.Retry.RetryDelayMillis)
	assert.True(t, cfg.Retry.Bail)
	assert.EqualValues(t, 10000, cfg.Timeout.TestTimeoutMillis)
	assert.Equal(t, 8, cfg.FSStore.ThreadCount)
	assert.Equal(t, "/tmp/artifacts", cfg.FSStore.ArtifactRoot)
	assert.True(t, cfg.Debug.TraceSpawn)

	// unspecified timeouts fall back to defaults rather than zero.
	assert.NotZero(t, cfg.Timeout.ContextCloseMillis)
}

func TestLoader_ParseWorkerLimitLocal(t *testing.T) {
	l := loader.New()
	cfg, err := l.Parse([]byte(`
pool:
  workerLimit: local
fsstore:
  artifactRoot: /tmp/artifacts
`))
	require.NoError(t, err)
	assert.Negative(t, cfg.Pool.WorkerLimit)
}

func TestLoader_ParseMissingArtifactRootFails(t *testing.T) {
	l := loader.New()
	_, err := l.Parse([]byte(`pool: {}`))
	assert.Error(t, err)
}

func TestLoader_ReloadWithoutLoadFails(t *testing.T) {
	l := loader.New()
	_, err := l.Reload()
	assert.ErrorIs(t, err, loader.ErrNoConfigurationLoaded)
}
