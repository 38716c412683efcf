package controller_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danbao/testring-sub000/internal/application/controller"
	domainrun "github.com/danbao/testring-sub000/internal/domain/run"
	domainworker "github.com/danbao/testring-sub000/internal/domain/worker"
)

// instantClock never actually sleeps, so retry-delay tests stay fast.
type instantClock struct{}

func (instantClock) Now() time.Time { return time.Time{} }
func (instantClock) Sleep(ctx context.Context, d time.Duration) error {
	return nil
}

// scriptedInstance answers Execute with whatever script says, in order,
// once per call. It can also simulate a dead peer via execErr.
type scriptedInstance struct {
	id     string
	mu     sync.Mutex
	script []func(entry domainworker.TestEntry) (domainworker.Outcome, error)
	calls  int32
	killed atomic.Bool
}

func (s *scriptedInstance) Execute(ctx context.Context, entry domainworker.TestEntry, timeout int64) (domainworker.Outcome, error) {
	s.mu.Lock()
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	s.mu.Unlock()
	if i >= len(s.script) {
		return domainworker.Outcome{Success: true}, nil
	}
	type result struct {
		outcome domainworker.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := s.script[i](entry)
		done <- result{outcome, err}
	}()
	select {
	case r := <-done:
		return r.outcome, r.err
	case <-ctx.Done():
		return domainworker.Outcome{Success: false, Error: &domainworker.ExecutionError{Kind: domainworker.KindTimeout, Message: ctx.Err().Error()}}, nil
	}
}

func (s *scriptedInstance) Kill(ctx context.Context) error {
	s.killed.Store(true)
	return nil
}

func (s *scriptedInstance) WorkerID() string          { return s.id }
func (s *scriptedInstance) State() domainworker.State { return domainworker.Idle }

func entryFor(path string) domainworker.TestEntry {
	return domainworker.TestEntry{File: domainworker.TestFile{Path: path}}
}

func baseConfig() domainrun.Config {
	return domainrun.Config{
		Pool:    domainrun.PoolConfig{WorkerLimit: 1},
		Retry:   domainrun.RetryConfig{RetryCount: 0, RetryDelayMillis: 0},
		Timeout: domainrun.TimeoutConfig{TestTimeoutMillis: 5000, ContextCloseMillis: 100},
	}
}

func TestRunQueue_HappySingle(t *testing.T) {
	inst := &scriptedInstance{id: "w1"}
	factory := func(ctx context.Context) (domainworker.Instance, error) { return inst, nil }

	c := controller.New(baseConfig(), controller.NewHookRegistry(), instantClock{}, factory, nil)
	errs, err := c.RunQueue(context.Background(), []domainworker.TestEntry{entryFor("t1.js")})
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestRunQueue_RetryOnceThenPass(t *testing.T) {
	inst := &scriptedInstance{
		id: "w1",
		script: []func(domainworker.TestEntry) (domainworker.Outcome, error){
			func(domainworker.TestEntry) (domainworker.Outcome, error) {
				return domainworker.Outcome{Success: false, Error: &domainworker.ExecutionError{Kind: domainworker.KindSandbox, Message: "boom"}}, nil
			},
			func(domainworker.TestEntry) (domainworker.Outcome, error) {
				return domainworker.Outcome{Success: true}, nil
			},
		},
	}
	factory := func(ctx context.Context) (domainworker.Instance, error) { return inst, nil }

	cfg := baseConfig()
	cfg.Retry.RetryCount = 1
	c := controller.New(cfg, controller.NewHookRegistry(), instantClock{}, factory, nil)

	errs, err := c.RunQueue(context.Background(), []domainworker.TestEntry{entryFor("t1.js")})
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestRunQueue_BailOnFailure(t *testing.T) {
	release := make(chan struct{})
	inst1 := &scriptedInstance{
		id: "w1",
		script: []func(domainworker.TestEntry) (domainworker.Outcome, error){
			func(domainworker.TestEntry) (domainworker.Outcome, error) {
				return domainworker.Outcome{Success: false, Error: &domainworker.ExecutionError{Kind: domainworker.KindSandbox, Message: "t1 failed"}}, nil
			},
		},
	}
	inst2 := &scriptedInstance{id: "w2"}
	inst2.script = []func(domainworker.TestEntry) (domainworker.Outcome, error){
		func(domainworker.TestEntry) (domainworker.Outcome, error) {
			<-release // stays "running" until the bail cancels its context
			return domainworker.Outcome{Success: true}, nil
		},
	}

	var spawned int32
	factory := func(ctx context.Context) (domainworker.Instance, error) {
		n := atomic.AddInt32(&spawned, 1)
		if n == 1 {
			return inst1, nil
		}
		return inst2, nil
	}

	cfg := baseConfig()
	cfg.Pool.WorkerLimit = 2
	cfg.Retry.Bail = true
	c := controller.New(cfg, controller.NewHookRegistry(), instantClock{}, factory, nil)

	entries := []domainworker.TestEntry{entryFor("t1.js"), entryFor("t2.js"), entryFor("t3.js")}
	errs, err := c.RunQueue(context.Background(), entries)
	require.NoError(t, err)
	close(release)

	require.Len(t, errs, 2)
	byPath := map[string]domainrun.Error{}
	for _, e := range errs {
		byPath[e.TestPath] = e
	}
	require.Contains(t, byPath, "t1.js")
	assert.Equal(t, domainrun.ErrorKindSandbox, byPath["t1.js"].Kind)
	require.Contains(t, byPath, "t2.js")
	assert.Equal(t, domainrun.ErrorKindBailCancel, byPath["t2.js"].Kind)
	assert.NotContains(t, byPath, "t3.js")
}

func TestRunQueue_WorkerCrashReplacement(t *testing.T) {
	var spawned int32
	factory := func(ctx context.Context) (domainworker.Instance, error) {
		n := atomic.AddInt32(&spawned, 1)
		id := "w1"
		if n > 1 {
			id = "w2"
		}
		inst := &scriptedInstance{id: id}
		if n == 1 {
			inst.script = []func(domainworker.TestEntry) (domainworker.Outcome, error){
				func(domainworker.TestEntry) (domainworker.Outcome, error) {
					return domainworker.Outcome{}, fakeErr("peer lost")
				},
			}
		}
		return inst, nil
	}

	c := controller.New(baseConfig(), controller.NewHookRegistry(), instantClock{}, factory, nil)
	entries := []domainworker.TestEntry{entryFor("t1.js"), entryFor("t2.js")}
	errs, err := c.RunQueue(context.Background(), entries)
	require.NoError(t, err)

	require.Len(t, errs, 1)
	assert.Equal(t, "t1.js", errs[0].TestPath)
	assert.Equal(t, domainrun.ErrorKindPeerLost, errs[0].Kind)
	assert.EqualValues(t, 2, atomic.LoadInt32(&spawned))
}

func TestRunQueue_WorkerLimitZeroDispatchesNothing(t *testing.T) {
	factory := func(ctx context.Context) (domainworker.Instance, error) {
		t.Fatal("factory should never be called when workerLimit is 0")
		return nil, nil
	}
	cfg := baseConfig()
	cfg.Pool.WorkerLimit = 0
	c := controller.New(cfg, controller.NewHookRegistry(), instantClock{}, factory, nil)

	errs, err := c.RunQueue(context.Background(), []domainworker.TestEntry{entryFor("t1.js")})
	require.NoError(t, err)
	assert.Empty(t, errs)
}

type simpleError string

func (e simpleError) Error() string { return string(e) }

func fakeErr(msg string) error { return simpleError(msg) }
