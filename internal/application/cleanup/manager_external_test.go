package cleanup_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danbao/testring-sub000/internal/application/cleanup"
)

type memStore struct {
	mu  sync.Mutex
	doc cleanup.Document
}

func (s *memStore) Read() (cleanup.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, nil
}

func (s *memStore) Write(doc cleanup.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	return nil
}

func (s *memStore) Remove() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = cleanup.Document{}
	return nil
}

type fakeChecker struct {
	alive  map[int]bool
	parent map[int]int
}

func (c *fakeChecker) Alive(pid int) bool { return c.alive[pid] }
func (c *fakeChecker) ParentPID(pid int) int { return c.parent[pid] }

func TestManager_RegisterUnregister(t *testing.T) {
	store := &memStore{}
	checker := &fakeChecker{alive: map[int]bool{}, parent: map[int]int{}}
	m := cleanup.New(store, checker, 0)

	require.NoError(t, m.Register(101))
	require.NoError(t, m.Register(102))
	require.NoError(t, m.Register(101)) // idempotent

	doc, err := store.Read()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{101, 102}, doc.PIDs)

	require.NoError(t, m.Unregister(101))
	doc, err = store.Read()
	require.NoError(t, err)
	assert.Equal(t, []int{102}, doc.PIDs)
}

func TestManager_SweepOnceReapsOrphansOnly(t *testing.T) {
	store := &memStore{doc: cleanup.Document{PIDs: []int{1, 2, 3}}}
	checker := &fakeChecker{
		alive: map[int]bool{
			1: false, // gone: dropped silently
			2: true,  // alive, orphaned: reaped
			3: true,  // alive, parented: left alone
		},
		parent: map[int]int{
			2: 0,
			3: 4242,
		},
	}
	m := cleanup.New(store, checker, 0)

	var killed []int
	reaped, err := m.SweepOnce(func(pid int) error {
		killed = append(killed, pid)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2}, reaped)
	assert.Equal(t, []int{2}, killed)

	doc, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, []int{3}, doc.PIDs) // parented survivor kept, dead PID dropped
}

func TestManager_SweepOnceKeepsPIDOnKillFailure(t *testing.T) {
	store := &memStore{doc: cleanup.Document{PIDs: []int{5}}}
	checker := &fakeChecker{alive: map[int]bool{5: true}, parent: map[int]int{5: 0}}
	m := cleanup.New(store, checker, 0)

	reaped, err := m.SweepOnce(func(pid int) error { return assertErr() })
	require.NoError(t, err)
	assert.Empty(t, reaped)

	doc, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, []int{5}, doc.PIDs)
}

func TestManager_StopSweepsAndRemoves(t *testing.T) {
	store := &memStore{doc: cleanup.Document{PIDs: []int{7}}}
	checker := &fakeChecker{alive: map[int]bool{7: true}, parent: map[int]int{7: 0}}
	m := cleanup.New(store, checker, 0)

	var killed []int
	m.Stop(func(pid int) error {
		killed = append(killed, pid)
		return nil
	})

	assert.Equal(t, []int{7}, killed)
	doc, err := store.Read()
	require.NoError(t, err)
	assert.Empty(t, doc.PIDs)
}

func assertErr() error { return errKillFailed }

var errKillFailed = &killError{}

type killError struct{}

func (*killError) Error() string { return "kill failed" }
