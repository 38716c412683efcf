//go:build wireinject

package bootstrap

import "github.com/google/wire"

// InitializeAppWire is the wire injector this package's dependency graph is
// modeled on; wire_gen.go is the hand-maintained equivalent of what running
// `wire` against this function would generate.
func InitializeAppWire(configPath, runID string) (*App, error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		ProvideClock,
		ProvideBus,
		ProvideFSStore,
		ProvideBrowserProxy,
		ProvideCleanupManager,
		ProvideHealthServer,
		ProvideChildProcessSupervisor,
		ProvideLocalWorkerFactory,
		ProvideChildWorkerFactory,
	)
	return nil, nil
}
