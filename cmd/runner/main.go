// Command runner is the orchestration engine's controller process: it
// loads configuration, discovers test files under a root directory, and
// drives them through the test-run-controller, the way the retrieved
// daemon's cmd/daemon keeps main() a thin flag-parsing shell around
// bootstrap.InitializeApp.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/danbao/testring-sub000/internal/application/report"
	"github.com/danbao/testring-sub000/internal/bootstrap"
	domainlogging "github.com/danbao/testring-sub000/internal/domain/logging"
	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
	domainworker "github.com/danbao/testring-sub000/internal/domain/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "testring.config.yaml", "path to the YAML configuration file")
	testRoot := flag.String("root", ".", "directory to discover *.test.js files under")
	runID := flag.String("run-id", "", "unique id for this run (defaults to the process id)")
	flag.Parse()

	id := *runID
	if id == "" {
		id = fmt.Sprintf("run-%d", os.Getpid())
	}

	app, err := bootstrap.InitializeApp(*configPath, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runner: %v\n", err)
		return 1
	}
	defer app.Shutdown()

	entries, err := discoverEntries(*testRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runner: discover tests: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "runner: no test files found")
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	rpt, errs, err := app.RunQueue(ctx, entries)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runner: %v\n", err)
		return 1
	}

	logCompletion(app.Logger, rpt, errs)
	if len(errs) > 0 {
		return 1
	}
	return 0
}

// discoverEntries walks root for "*.test.js" files, the way testring.js
// discovers suites by file-name suffix rather than a registration API.
func discoverEntries(root string) ([]domainworker.TestEntry, error) {
	var entries []domainworker.TestEntry
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".test.js") {
			return nil
		}
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		entries = append(entries, domainworker.TestEntry{
			File: domainworker.TestFile{Path: path, Content: content},
		})
		return nil
	})
	return entries, err
}

func logCompletion(logger domainlogging.Logger, rpt report.RunReport, errs []domainrun.Error) {
	logger.Info("run complete",
		domainlogging.F("passed", rpt.Passed()),
		domainlogging.F("durationMs", rpt.Duration().Milliseconds()),
		domainlogging.F("errorCount", len(errs)),
	)
	for _, e := range errs {
		logger.Warn("test failed",
			domainlogging.F("path", e.TestPath),
			domainlogging.F("kind", string(e.Kind)),
		)
	}
}
