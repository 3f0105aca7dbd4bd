// Package storage persists the trouble codes seen across sessions, so a
// run can tell fresh faults from ones already reported.
package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketKey = []byte("seen_dtcs")

// Store is a bbolt-backed set of trouble codes.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketKey)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// MarkSeen records code and reports whether it was new.
func (s *Store) MarkSeen(code string) (bool, error) {
	var isNew bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketKey)
		if b.Get([]byte(code)) == nil {
			isNew = true
			return b.Put([]byte(code), []byte(time.Now().UTC().Format(time.RFC3339)))
		}
		return nil
	})
	return isNew, err
}

// Seen lists every recorded code.
func (s *Store) Seen() ([]string, error) {
	var codes []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKey).ForEach(func(k, _ []byte) error {
			codes = append(codes, string(k))
			return nil
		})
	})
	return codes, err
}

// Clear drops every recorded code, e.g. after a successful mode 04 clear.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketKey); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketKey)
		return err
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
