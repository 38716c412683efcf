// Package boltdb provides the durable FS-Store ledger: a crash-recovery
// diagnostic record of every slot the application/fsstore.Server has
// granted and released during a run, persisted with go.etcd.io/bbolt the
// same way the retrieved daemon's metrics store uses a bucket-per-concern
// schema with a metadata bucket for schema versioning. Unlike the
// teacher's store, this ledger is write-mostly: the Server's own in-memory
// state is authoritative for arbitration, the ledger only has to survive a
// crash well enough to tell a human what was outstanding at the time.
package boltdb

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	appfsstore "github.com/danbao/testring-sub000/internal/application/fsstore"
)

const (
	dbFileMode           = 0o600
	dbOpenTimeoutSeconds = 5
	schemaVersion  int64 = 1
)

var (
	bucketGrants   = []byte("grants")
	bucketReleases = []byte("releases")
	bucketMetadata = []byte("metadata")

	keyVersion = []byte("version")
)

// GrantRecord is one ledger entry for a granted fullPath/action.
type GrantRecord struct {
	Token     string `json:"token"`
	FullPath  string `json:"fullPath"`
	WorkerID  string `json:"workerId"`
	Action    string `json:"action"`
	GrantedAt int64  `json:"grantedAt"`
}

// Ledger is the FS-Store server's durable diagnostic log, one file per run.
type Ledger struct {
	db *bolt.DB
}

// Open creates or opens the ledger file at path, initializing its bucket
// schema.
func Open(path string) (*Ledger, error) {
	db, err := bolt.Open(path, dbFileMode, &bolt.Options{Timeout: dbOpenTimeoutSeconds * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltdb ledger: open %s: %w", path, err)
	}
	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	return l.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketGrants, bucketReleases, bucketMetadata} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltdb ledger: create bucket %s: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketMetadata)
		if meta.Get(keyVersion) == nil {
			return meta.Put(keyVersion, int64ToBytes(schemaVersion))
		}
		return nil
	})
}

// RecordGrant persists rec under its token. Called by the Server after
// every grant as a best-effort diagnostic write — failures here
// must never block arbitration, so callers should log and continue rather
// than propagate.
func (l *Ledger) RecordGrant(rec GrantRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("boltdb ledger: encode grant: %w", err)
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGrants).Put([]byte(rec.Token), value)
	})
}

// RecordRelease moves a grant from the outstanding bucket to the released
// log, keyed by a monotonically increasing timestamp so the release
// history can be replayed in order.
func (l *Ledger) RecordRelease(token string) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		grants := tx.Bucket(bucketGrants)
		value := grants.Get([]byte(token))
		if value == nil {
			return nil // already released or never recorded; idempotent.
		}
		if err := grants.Delete([]byte(token)); err != nil {
			return fmt.Errorf("boltdb ledger: delete grant: %w", err)
		}
		key := timeKey(time.Now())
		return tx.Bucket(bucketReleases).Put(key, value)
	})
}

// Outstanding returns every grant still recorded as held — the set a crash
// recovery pass would need to reconcile against the real filesystem.
func (l *Ledger) Outstanding() ([]GrantRecord, error) {
	var out []GrantRecord
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketGrants).ForEach(func(_, v []byte) error {
			var rec GrantRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("boltdb ledger: decode grant: %w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Adapter wraps a *Ledger to satisfy application/fsstore.Ledger, converting
// between application/fsstore's storage-agnostic LedgerGrant and this
// package's own GrantRecord.
type Adapter struct {
	*Ledger
}

// NewAdapter wraps ledger for use as an application/fsstore.Ledger.
func NewAdapter(ledger *Ledger) Adapter {
	return Adapter{Ledger: ledger}
}

// RecordGrant converts rec and persists it.
func (a Adapter) RecordGrant(rec appfsstore.LedgerGrant) error {
	return a.Ledger.RecordGrant(GrantRecord{
		Token:     rec.Token,
		FullPath:  rec.FullPath,
		WorkerID:  rec.WorkerID,
		Action:    rec.Action,
		GrantedAt: rec.GrantedAt,
	})
}

var _ appfsstore.Ledger = Adapter{}

// Remove closes and deletes the ledger file, for end-of-run cleanup once
// every slot has been accounted for.
func (l *Ledger) Remove(path string) error {
	if err := l.Close(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("boltdb ledger: remove %s: %w", path, err)
	}
	return nil
}

func timeKey(t time.Time) []byte {
	return int64ToBytes(t.UnixNano())
}

func int64ToBytes(n int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return buf[:]
}
