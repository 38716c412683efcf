// Command worker is the spawned test-worker process: it frames its own
// stdin/stdout as a ChildLink back to the controller and answers
// "test.execute" envelopes by running them through an in-process
// appworker.Local, the way application/worker/loop.go's Loop expects to be
// driven (spec.md §4.G).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apptransport "github.com/danbao/testring-sub000/internal/application/transport"
	appsandbox "github.com/danbao/testring-sub000/internal/application/sandbox"
	appworker "github.com/danbao/testring-sub000/internal/application/worker"
	infraclock "github.com/danbao/testring-sub000/internal/infrastructure/clock"
	infracompiler "github.com/danbao/testring-sub000/internal/infrastructure/compiler"
	"github.com/danbao/testring-sub000/internal/infrastructure/transport/localbus"
	"github.com/danbao/testring-sub000/internal/infrastructure/transport/pipe"
)

func main() {
	workerID := flag.String("worker-id", "", "this worker's stable id")
	controllerID := flag.String("controller-id", "", "the spawning controller's peer id")
	flag.Parse()

	if *workerID == "" || *controllerID == "" {
		fmt.Fprintln(os.Stderr, "worker: -worker-id and -controller-id are required")
		os.Exit(1)
	}

	link := pipe.New(os.Stdin, os.Stdout)

	bus := apptransport.New(localbus.New(), *workerID, true)
	bus.RegisterChild(*controllerID, link)

	local := appworker.NewLoopExecutor(*workerID, infracompiler.Passthrough{}, appsandbox.New(), infraclock.New())
	loop := appworker.NewLoop(*controllerID, bus, local)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-link.Closed():
	case <-sigCh:
	}
}
