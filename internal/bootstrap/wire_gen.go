// Code generated by Wire's shape, maintained by hand. This file mirrors
// what `wire` would emit from wire.go's injector — the toolchain is not run
// as part of this build, so the dependency graph it describes is written
// out directly instead of generated.

package bootstrap

import (
	"context"
	"fmt"

	appcontroller "github.com/danbao/testring-sub000/internal/application/controller"
	domaintransport "github.com/danbao/testring-sub000/internal/domain/transport"
)

// selfIDController is this process's own peer id on the Bus, distinct from
// any worker or browser-proxy id it spawns.
const selfIDController = "controller"

// InitializeApp builds the fully wired App for a run identified by runID,
// loading configuration from configPath. The FS-Store ledger is persisted
// under cfg.FSStore.ArtifactRoot as "<runID>.ledger.db"; the cleanup
// registry lives at registry.DefaultPath(runID) in the OS temp directory.
func InitializeApp(configPath, runID string) (*App, error) {
	cfg, err := ProvideConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load config: %w", err)
	}

	logger := ProvideLogger()
	clock := ProvideClock()

	bus := ProvideBus(selfIDController)

	ledgerPath := cfg.FSStore.ArtifactRoot + "/" + runID + ".ledger.db"
	fsStore, fsStoreCleanup, err := ProvideFSStore(runID, cfg, ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: fs-store: %w", err)
	}

	browserProxy := ProvideBrowserProxy(cfg)
	cleanupMgr := ProvideCleanupManager(runID)
	healthSrv := ProvideHealthServer()

	// A worker's peer.lost is the "worker disconnection" release path of
	// spec.md §4.F/§4.I: release every FS-Store slot and end every browser
	// session it was holding, rather than leaving them stuck forever.
	bus.On(domaintransport.TypePeerLost, func(ctx context.Context, env domaintransport.Envelope) {
		fsStore.ReleaseWorker(ctx, env.SourceID)
		browserProxy.WorkerDisconnected(ctx, env.SourceID)
	})

	var factory appcontroller.WorkerFactory
	if cfg.Debug.Local || cfg.Pool.WorkerLimit < 0 {
		factory = ProvideLocalWorkerFactory(clock)
	} else {
		sup := ProvideChildProcessSupervisor()
		factory = ProvideChildWorkerFactory(sup, bus, selfIDController)
	}

	hooks := appcontroller.NewHookRegistry()
	ctrl := appcontroller.New(cfg.RunConfig(), hooks, clock, factory, logger.WithPrefix("controller"))

	app := &App{
		Config:          cfg,
		Bus:             bus,
		FSStore:         fsStore,
		BrowserProxy:    browserProxy,
		Cleanup:         cleanupMgr,
		Controller:      ctrl,
		ControllerHooks: hooks,
		Health:          healthSrv,
		Logger:          logger,
	}

	app.shutdown = append(app.shutdown,
		func() { cleanupMgr.Stop(func(int) error { return nil }) },
		fsStoreCleanup,
		func() { healthSrv.Stop() },
	)

	return app, nil
}
