package boltdb_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfsstore "github.com/danbao/testring-sub000/internal/application/fsstore"
	"github.com/danbao/testring-sub000/internal/infrastructure/persistence/boltdb"
)

func openLedger(t *testing.T) *boltdb.Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := boltdb.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_RecordGrantThenOutstanding(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.RecordGrant(boltdb.GrantRecord{
		Token:     "tok-1",
		FullPath:  "/artifacts/a.json",
		WorkerID:  "w1",
		Action:    "write",
		GrantedAt: 1000,
	}))
	require.NoError(t, l.RecordGrant(boltdb.GrantRecord{
		Token:     "tok-2",
		FullPath:  "/artifacts/b.json",
		WorkerID:  "w2",
		Action:    "read",
		GrantedAt: 2000,
	}))

	out, err := l.Outstanding()
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestLedger_RecordReleaseRemovesFromOutstanding(t *testing.T) {
	l := openLedger(t)

	require.NoError(t, l.RecordGrant(boltdb.GrantRecord{Token: "tok-1", FullPath: "/a", Action: "write"}))
	require.NoError(t, l.RecordRelease("tok-1"))

	out, err := l.Outstanding()
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestLedger_RecordReleaseUnknownTokenIsIdempotent(t *testing.T) {
	l := openLedger(t)
	assert.NoError(t, l.RecordRelease("never-granted"))
}

func TestAdapter_SatisfiesFsstoreLedger(t *testing.T) {
	l := openLedger(t)
	a := boltdb.NewAdapter(l)

	err := a.RecordGrant(appfsstore.LedgerGrant{
		Token:     "tok-3",
		FullPath:  "/artifacts/c.json",
		WorkerID:  "w3",
		Action:    "write",
		GrantedAt: 3000,
	})
	require.NoError(t, err)

	out, err := l.Outstanding()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "tok-3", out[0].Token)
}
