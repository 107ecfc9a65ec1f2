package identity

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.etcd.io/bbolt"
)

const boltBucket = "identity"

// BoltStore keeps identifiers in a single bbolt bucket. mu guards db against
// Close; bbolt serializes the transactions themselves.
type BoltStore struct {
	mu sync.RWMutex
	db *bbolt.DB
}

func OpenBoltStore(path string, mode os.FileMode) (*BoltStore, error) {
	if mode == 0 {
		mode = 0600
	}
	db, err := bbolt.Open(path, mode, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return "", false, ErrStoreClosed
	}
	var (
		value string
		ok    bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get([]byte(key))
		if v != nil {
			value, ok = string(v), true
		}
		return nil
	})
	return value, ok, err
}

func (s *BoltStore) Set(_ context.Context, key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put([]byte(key), []byte(value))
	})
}

// SetIfAbsent runs inside one write transaction, which bbolt serializes.
func (s *BoltStore) SetIfAbsent(_ context.Context, key, value string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return "", ErrStoreClosed
	}
	result := value
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if v := b.Get([]byte(key)); len(v) > 0 {
			result = string(v)
			return nil
		}
		return b.Put([]byte(key), []byte(value))
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrStoreClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}
