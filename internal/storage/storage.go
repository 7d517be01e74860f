// Package storage provides persistent storage for the benchmark site.
// It uses BoltDB as the underlying storage engine to keep expiring visitor
// flags (notice dismissals) and snapshots of remotely fetched datasets.
//
// The package provides thread-safe operations; expired flags read as unset
// and are removed by Purge.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	flagsBucket     = "flags"     // Bucket name for expiring visitor flags
	snapshotsBucket = "snapshots" // Bucket name for dataset snapshots
)

// ErrInvalidVisitor is returned for an empty visitor ID or one containing the
// key separator.
var ErrInvalidVisitor = errors.New("invalid visitor id")

// DBFile is the database file name inside the data path.
const DBFile = "benchsite.db"

// Store provides persistent storage using BoltDB.
type Store struct {
	db  *bbolt.DB // BoltDB database instance
	now func() time.Time
}

// flagRecord is the stored value of a flag.
type flagRecord struct {
	Expires time.Time `json:"expires"`
	SetAt   time.Time `json:"set_at"`
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
// Returns an error if the database cannot be opened or buckets cannot be created.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, DBFile)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(flagsBucket)); err != nil {
			return fmt.Errorf("create flags bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotsBucket)); err != nil {
			return fmt.Errorf("create snapshots bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// SetClock overrides the clock used to evaluate flag expiry.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

const keySep = "/"

// flagKey builds "visitor/name"; the visitor prefix keeps one visitor's flags adjacent.
func flagKey(visitor, name string) []byte {
	return []byte(visitor + keySep + name)
}

func checkVisitor(visitor string) error {
	if visitor == "" || strings.Contains(visitor, keySep) {
		return fmt.Errorf("%w: %q", ErrInvalidVisitor, visitor)
	}
	return nil
}

// Get reports whether the flag is set and unexpired.
func (s *Store) Get(ctx context.Context, visitor, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := checkVisitor(visitor); err != nil {
		return false, err
	}

	var rec flagRecord
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(flagsBucket)).Get(flagKey(visitor, name))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("unmarshal flag: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return found && s.now().Before(rec.Expires), nil
}

// Set stores the flag until expires.
func (s *Store) Set(ctx context.Context, visitor, name string, expires time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkVisitor(visitor); err != nil {
		return err
	}

	data, err := json.Marshal(flagRecord{Expires: expires, SetAt: s.now()})
	if err != nil {
		return fmt.Errorf("marshal flag: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(flagsBucket)).Put(flagKey(visitor, name), data)
	})
}

// Flags returns the unexpired flag names set for visitor.
func (s *Store) Flags(visitor string) ([]string, error) {
	if err := checkVisitor(visitor); err != nil {
		return nil, err
	}
	var names []string
	now := s.now()
	prefix := []byte(visitor + keySep)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(flagsBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec flagRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			if now.Before(rec.Expires) {
				names = append(names, string(k[len(prefix):]))
			}
		}
		return nil
	})
	return names, err
}

// Purge deletes expired and malformed flags and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	now := s.now()
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(flagsBucket))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var rec flagRecord
			if err := json.Unmarshal(v, &rec); err != nil || !now.Before(rec.Expires) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete flag %s: %w", k, err)
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}
