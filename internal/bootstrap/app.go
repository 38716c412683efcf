// Package bootstrap wires the orchestration engine's dependency graph and
// isolates construction from cmd/runner's main, the way the retrieved
// daemon's own internal/bootstrap keeps main.go a thin flag-parsing shell
// around a single InitializeApp call.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	domainconfig "github.com/danbao/testring-sub000/internal/domain/config"
	domainlogging "github.com/danbao/testring-sub000/internal/domain/logging"
	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
	domainworker "github.com/danbao/testring-sub000/internal/domain/worker"

	appbrowserproxy "github.com/danbao/testring-sub000/internal/application/browserproxy"
	appcleanup "github.com/danbao/testring-sub000/internal/application/cleanup"
	appcontroller "github.com/danbao/testring-sub000/internal/application/controller"
	appfsstore "github.com/danbao/testring-sub000/internal/application/fsstore"
	apphook "github.com/danbao/testring-sub000/internal/application/hook"
	apptransport "github.com/danbao/testring-sub000/internal/application/transport"

	infrahealth "github.com/danbao/testring-sub000/internal/infrastructure/health"

	"github.com/danbao/testring-sub000/internal/application/report"
)

// App is the root object of the dependency graph InitializeApp builds: one
// instance per controller-process run.
type App struct {
	Config domainconfig.Config

	Bus             *apptransport.Bus
	FSStore         *appfsstore.Server
	BrowserProxy    *appbrowserproxy.Controller
	Cleanup         *appcleanup.Manager
	Controller      *appcontroller.Controller
	ControllerHooks *apphook.Registry
	Health          *infrahealth.Server
	Logger          domainlogging.Logger

	shutdown []func()
}

// RunQueue drives entries through the wired Controller, with the health
// endpoint reporting SERVING for the duration of the run, and returns a report.RunReport
// alongside any per-test errors runQueue itself surfaced.
func (a *App) RunQueue(ctx context.Context, entries []domainworker.TestEntry) (report.RunReport, []domainrun.Error, error) {
	a.Health.SetServing(true)
	started := time.Now()

	errs, err := a.Controller.RunQueue(ctx, entries)

	finished := time.Now()
	rpt := report.New(started, finished, errs)
	a.Health.SetServing(false)

	if err != nil {
		return rpt, errs, fmt.Errorf("bootstrap: run queue: %w", err)
	}
	return rpt, errs, nil
}

// Shutdown releases every resource InitializeApp constructed, in reverse
// construction order, the way the teacher's App.Cleanup func chains up its
// own providers' teardown.
func (a *App) Shutdown() {
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i]()
	}
}
