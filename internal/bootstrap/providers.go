package bootstrap

import (
	"context"
	"fmt"
	"os/exec"
	"sync/atomic"

	appbrowserproxy "github.com/danbao/testring-sub000/internal/application/browserproxy"
	appcleanup "github.com/danbao/testring-sub000/internal/application/cleanup"
	appchildproc "github.com/danbao/testring-sub000/internal/application/childproc"
	appcontroller "github.com/danbao/testring-sub000/internal/application/controller"
	appfsstore "github.com/danbao/testring-sub000/internal/application/fsstore"
	apphook "github.com/danbao/testring-sub000/internal/application/hook"
	appsandbox "github.com/danbao/testring-sub000/internal/application/sandbox"
	apptransport "github.com/danbao/testring-sub000/internal/application/transport"
	appworker "github.com/danbao/testring-sub000/internal/application/worker"

	domainclock "github.com/danbao/testring-sub000/internal/domain/clock"
	domainconfig "github.com/danbao/testring-sub000/internal/domain/config"
	domainlogging "github.com/danbao/testring-sub000/internal/domain/logging"
	domainprocess "github.com/danbao/testring-sub000/internal/domain/process"
	domaintransport "github.com/danbao/testring-sub000/internal/domain/transport"
	domainworker "github.com/danbao/testring-sub000/internal/domain/worker"

	infrabrowserdriver "github.com/danbao/testring-sub000/internal/infrastructure/browserdriver"
	infraclock "github.com/danbao/testring-sub000/internal/infrastructure/clock"
	infracompiler "github.com/danbao/testring-sub000/internal/infrastructure/compiler"
	infrahealth "github.com/danbao/testring-sub000/internal/infrastructure/health"
	daemonlogger "github.com/danbao/testring-sub000/internal/infrastructure/logging/daemon"
	yamlconfig "github.com/danbao/testring-sub000/internal/infrastructure/persistence/config/yaml"
	infraboltdb "github.com/danbao/testring-sub000/internal/infrastructure/persistence/boltdb"
	infraregistry "github.com/danbao/testring-sub000/internal/infrastructure/persistence/registry"
	"github.com/danbao/testring-sub000/internal/infrastructure/process/executor"
	"github.com/danbao/testring-sub000/internal/infrastructure/process/pidcheck"
	"github.com/danbao/testring-sub000/internal/infrastructure/transport/localbus"
	"github.com/danbao/testring-sub000/internal/infrastructure/transport/pipe"
)

// DefaultWorkerBinary is the executable name ProvideChildWorkerFactory
// spawns for each worker when Debug.Local is off. Resolved via
// exec.LookPath against $PATH, falling back to the literal name (letting
// exec.Cmd itself report "not found" if it truly is not reachable).
const DefaultWorkerBinary = "testring-worker"

// workerIDPrefix namespaces in-process worker instance ids so logs read
// unambiguously when Debug.Local runs several entries through the same
// controller run.
const workerIDPrefix = "local-worker-"

// ProvideConfig loads and validates the engine configuration from
// configPath.
func ProvideConfig(configPath string) (domainconfig.Config, error) {
	return yamlconfig.New().Load(configPath)
}

// ProvideLogger builds the console logger every component logs through.
func ProvideLogger() domainlogging.Logger {
	return daemonlogger.New()
}

// ProvideClock builds the wall-clock domain/clock.Clock every timing
// decision (retry delay, timeouts) is made against.
func ProvideClock() domainclock.Clock {
	return infraclock.New()
}

// ProvideBus constructs the application-level message bus over an
// in-process localbus.Broadcaster. selfID identifies this controller
// process in outgoing envelopes.
func ProvideBus(selfID string) *apptransport.Bus {
	return apptransport.New(localbus.New(), selfID, false)
}

// ProvideFSStore constructs the FS-Store server backed by a boltdb ledger
// at the given path, registering its own hook registry.
func ProvideFSStore(runID string, cfg domainconfig.Config, ledgerPath string) (*appfsstore.Server, func(), error) {
	hooks := apphook.NewRegistry(appfsstore.HookOnFilename, appfsstore.HookOnQueue, appfsstore.HookOnRelease)
	server := appfsstore.New(runID, cfg.FSStore.ThreadCount, hooks)

	ledger, err := infraboltdb.Open(ledgerPath)
	if err != nil {
		return nil, nil, err
	}
	server.SetLedger(infraboltdb.NewAdapter(ledger))
	server.MarkReady()

	cleanupFn := func() { _ = ledger.Remove(ledgerPath) }
	return server, cleanupFn, nil
}

// ProvideBrowserProxy constructs the Browser-proxy controller over
// infrastructure/browserdriver.Stub; no other driver is wired.
func ProvideBrowserProxy(cfg domainconfig.Config) *appbrowserproxy.Controller {
	return appbrowserproxy.New(infrabrowserdriver.NewStub(), cfg.FSStore.ThreadCount)
}

// ProvideCleanupManager constructs the process-wide cleanup manager,
// persisting through a JSON registry file namespaced by runID and checking
// liveness through the platform PIDChecker.
func ProvideCleanupManager(runID string) *appcleanup.Manager {
	store := infraregistry.NewAdapter(infraregistry.New(infraregistry.DefaultPath(runID)))
	return appcleanup.New(store, pidcheck.New(), 0)
}

// ProvideHealthServer constructs the gRPC health server the controller
// exposes for liveness/readiness.
func ProvideHealthServer() *infrahealth.Server {
	return infrahealth.New()
}

// ProvideLocalWorkerFactory builds the appcontroller.WorkerFactory used
// when Debug.Local is set: every TestEntry runs through an in-process
// appworker.Local instead of a spawned child, per spec.md §4.G "Local
// mode".
func ProvideLocalWorkerFactory(clock domainclock.Clock) appcontroller.WorkerFactory {
	var n atomic.Int64
	hooks := appworker.NewHookRegistry()
	return func(ctx context.Context) (domainworker.Instance, error) {
		id := fmt.Sprintf("%s%d", workerIDPrefix, n.Add(1))
		return appworker.NewLocal(id, infracompiler.Passthrough{}, appsandbox.New(), hooks, clock), nil
	}
}

// ProvideChildProcessSupervisor constructs the process supervisor that
// spawns worker (and browser-proxy) child processes.
func ProvideChildProcessSupervisor() *appchildproc.Supervisor {
	return appchildproc.New(executor.New())
}

// resolveWorkerBinary finds the worker executable on $PATH, falling back to
// the bare name so exec.Cmd reports a clear "not found" at spawn time
// rather than here.
func resolveWorkerBinary() string {
	if path, err := exec.LookPath(DefaultWorkerBinary); err == nil {
		return path
	}
	return DefaultWorkerBinary
}

// ProvideChildWorkerFactory builds the appcontroller.WorkerFactory used
// when Debug.Local is off: every TestEntry runs in its own spawned worker
// process, wired back to controllerBus over a cbor-framed pipe (spec.md
// §4.C, §4.G).
func ProvideChildWorkerFactory(sup *appchildproc.Supervisor, controllerBus *apptransport.Bus, selfID string) appcontroller.WorkerFactory {
	var n atomic.Int64
	binary := resolveWorkerBinary()

	return func(ctx context.Context) (domainworker.Instance, error) {
		id := fmt.Sprintf("worker-%d", n.Add(1))

		stdin, stdout, err := sup.Spawn(ctx, id, domainprocess.Spec{
			Command: binary,
			Args:    []string{"-worker-id=" + id, "-controller-id=" + selfID},
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap: spawn worker %s: %w", id, err)
		}

		link := pipe.New(stdout, stdin)
		controllerBus.RegisterChild(id, link)

		child := appworker.NewChild(id, controllerBus)
		controllerBus.OnceFrom(id, domaintransport.TypePeerLost, func(context.Context, domaintransport.Envelope) {
			child.MarkDead()
		})

		return &childInstance{Child: child, sup: sup, id: id}, nil
	}
}

// childInstance adapts appworker.Child's Kill (a controller-side concept
// the worker package does not implement directly) onto the child-process
// supervisor that actually owns the spawned process's lifecycle.
type childInstance struct {
	*appworker.Child
	sup *appchildproc.Supervisor
	id  string
}

// Kill terminates the spawned worker process via the supervisor rather than
// over Transport, since a worker stuck mid-execute may not be answering its
// bus at all.
func (c *childInstance) Kill(ctx context.Context) error {
	return c.sup.Kill(c.id)
}
