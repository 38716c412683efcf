package childproc_test

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danbao/testring-sub000/internal/application/childproc"
	domain "github.com/danbao/testring-sub000/internal/domain/process"
)

type fakeExecutor struct {
	mu      sync.Mutex
	nextPID int
	waits   map[int]chan domain.ExitResult
	stopped []int
}

var _ domain.Executor = (*fakeExecutor)(nil)

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{waits: make(map[int]chan domain.ExitResult)}
}

func (f *fakeExecutor) Start(ctx context.Context, spec domain.Spec) (int, io.WriteCloser, io.ReadCloser, <-chan domain.ExitResult, error) {
	f.mu.Lock()
	f.nextPID++
	pid := f.nextPID
	wait := make(chan domain.ExitResult, 1)
	f.waits[pid] = wait
	f.mu.Unlock()

	r, w := io.Pipe()
	return pid, w, r, wait, nil
}

func (f *fakeExecutor) Stop(pid int, timeout time.Duration) error {
	f.mu.Lock()
	f.stopped = append(f.stopped, pid)
	wait := f.waits[pid]
	f.mu.Unlock()
	wait <- domain.ExitResult{Code: 0}
	return nil
}

func (f *fakeExecutor) Signal(pid int, sig os.Signal) error { return nil }

func (f *fakeExecutor) exit(pid int, result domain.ExitResult) {
	f.mu.Lock()
	wait := f.waits[pid]
	f.mu.Unlock()
	wait <- result
}

func TestSupervisor_SpawnEmitsStartedEvent(t *testing.T) {
	exec := newFakeExecutor()
	sup := childproc.New(exec)

	_, _, err := sup.Spawn(context.Background(), "worker-1", domain.Spec{Command: "test-worker"})
	require.NoError(t, err)

	select {
	case ev := <-sup.Events():
		assert.Equal(t, domain.EventStarted, ev.Type)
		assert.Equal(t, "worker-1", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("no started event")
	}
	assert.True(t, sup.Running("worker-1"))
}

func TestSupervisor_CrashEmitsCrashedEvent(t *testing.T) {
	exec := newFakeExecutor()
	sup := childproc.New(exec)

	_, _, err := sup.Spawn(context.Background(), "worker-1", domain.Spec{Command: "test-worker"})
	require.NoError(t, err)
	<-sup.Events() // started

	exec.exit(sup.PID("worker-1"), domain.ExitResult{Code: 1})

	select {
	case ev := <-sup.Events():
		assert.Equal(t, domain.EventCrashed, ev.Type)
		assert.Equal(t, 1, ev.ExitCode)
	case <-time.After(time.Second):
		t.Fatal("no crashed event")
	}
	assert.False(t, sup.Running("worker-1"))
}

func TestSupervisor_KillMarksRequestedExit(t *testing.T) {
	exec := newFakeExecutor()
	sup := childproc.New(exec)

	_, _, err := sup.Spawn(context.Background(), "worker-1", domain.Spec{Command: "test-worker"})
	require.NoError(t, err)
	<-sup.Events() // started

	require.NoError(t, sup.Kill("worker-1"))

	select {
	case ev := <-sup.Events():
		assert.Equal(t, domain.EventExited, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no exited event")
	}
}

func TestSupervisor_SpawnRejectsDuplicateID(t *testing.T) {
	exec := newFakeExecutor()
	sup := childproc.New(exec)

	_, _, err := sup.Spawn(context.Background(), "worker-1", domain.Spec{Command: "test-worker"})
	require.NoError(t, err)
	<-sup.Events()

	_, _, err = sup.Spawn(context.Background(), "worker-1", domain.Spec{Command: "test-worker"})
	assert.ErrorIs(t, err, domain.ErrAlreadyRunning)
}
