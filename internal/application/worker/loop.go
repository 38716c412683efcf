package worker

import (
	"context"
	"encoding/json"
	"fmt"

	appsandbox "github.com/danbao/testring-sub000/internal/application/sandbox"
	domainclock "github.com/danbao/testring-sub000/internal/domain/clock"
	domaincompiler "github.com/danbao/testring-sub000/internal/domain/compiler"
	domaintransport "github.com/danbao/testring-sub000/internal/domain/transport"
	domain "github.com/danbao/testring-sub000/internal/domain/worker"
)

// LoopBus is the Bus surface the child-process execution loop needs: it
// announces readiness and replies to the controller's Send, over whichever
// child link (infrastructure/transport/pipe wrapping the process's own
// stdin/stdout) was registered under the controller's peer id.
type LoopBus interface {
	On(typ string, h domaintransport.Handler) domaintransport.Cancel
	Reply(ctx context.Context, destID string, env domaintransport.Envelope) error
	Broadcast(ctx context.Context, typ string, payload []byte) error
}

// Loop runs inside a spawned worker process: it wraps one Local executor
// and answers every "test.execute" envelope sent by the controller, the
// way the controller's own Child instance (child.go) expects a reply
// correlated by RequestID.
type Loop struct {
	controllerID string
	bus          LoopBus
	local        *Local
}

// NewLoop creates a Loop that answers controllerID's requests using local
// to actually run tests.
func NewLoop(controllerID string, bus LoopBus, local *Local) *Loop {
	return &Loop{controllerID: controllerID, bus: bus, local: local}
}

// NewLoopExecutor is a convenience constructor bundling a fresh Local
// executor with the hooks, compiler, sandbox and clock a worker subprocess
// needs, so cmd/worker's main only has to supply the process-level
// dependencies.
func NewLoopExecutor(workerID string, compiler domaincompiler.Compiler, sandbox *appsandbox.Sandbox, clock domainclock.Clock) *Local {
	return NewLocal(workerID, compiler, sandbox, NewHookRegistry(), clock)
}

// Run registers the execute handler and announces readiness to the
// controller.
func (l *Loop) Run(ctx context.Context) {
	l.bus.On(TypeExecute, l.handleExecute)
	_ = l.bus.Broadcast(ctx, TypeReady, nil)
}

func (l *Loop) handleExecute(ctx context.Context, env domaintransport.Envelope) {
	// Handlers must not block the bus goroutine (spec.md §4.B); the actual
	// test run happens in its own goroutine, and the reply is sent once it
	// settles.
	go func() {
		var req executePayload
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			l.reply(ctx, env.RequestID, failedOutcome(domain.KindSandbox, fmt.Sprintf("decode execute payload: %v", err)))
			return
		}

		outcome, err := l.local.Execute(ctx, req.Entry, req.TimeoutMillis)
		if err != nil {
			l.reply(ctx, env.RequestID, failedOutcome(domain.KindSandbox, err.Error()))
			return
		}
		l.reply(ctx, env.RequestID, outcome)
	}()
}

func (l *Loop) reply(ctx context.Context, requestID string, outcome domain.Outcome) {
	payload, err := json.Marshal(resultPayload{Outcome: outcome})
	if err != nil {
		return
	}
	_ = l.bus.Reply(ctx, l.controllerID, domaintransport.Envelope{
		RequestID: requestID,
		Type:      "test.result",
		Payload:   payload,
	})
}

func failedOutcome(kind, msg string) domain.Outcome {
	return domain.Outcome{Success: false, Error: &domain.ExecutionError{Kind: kind, Message: msg}}
}
