package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Snapshot is the raw body of a dataset as last fetched from its source.
type Snapshot struct {
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Body      []byte    `json:"body"`
}

// StoreSnapshot replaces the snapshot kept for snap.Source.
func (s *Store) StoreSnapshot(snap Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(snapshotsBucket))

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}
		return b.Put([]byte(snap.Source), data)
	})
}

// LatestSnapshot returns the snapshot kept for source, or false if none.
func (s *Store) LatestSnapshot(source string) (Snapshot, bool, error) {
	var snap Snapshot
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(snapshotsBucket)).Get([]byte(source))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &snap); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		found = true
		return nil
	})
	return snap, found, err
}
