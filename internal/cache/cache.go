package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ogero/allocine-weekly/internal/common"
)

// Store is a badger backed key/value store with per-entry TTL.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store in dir. An empty dir keeps everything in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).
		WithNumVersionsToKeep(0).
		WithValueLogFileSize(1024 * 1024 * 100).
		WithLogger(&l{})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to badger.Open: %w", err)
	}

	return &Store{db: db}, nil
}

// Memoize retrieves a cached value for the specified cacheKey.
// If the value is present it is returned with hit set. Otherwise fn is called to compute the value,
// which is then stored with the specified ttl and returned. Errors from fn are never stored.
func Memoize[V any](s *Store, cacheKey string, ttl time.Duration, fn func() (*V, error)) (value *V, hit bool, err error) {

	value = new(V)

	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cacheKey))
		if err != nil {
			return err
		}

		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, value)
		})
		if err != nil {
			return fmt.Errorf("failed to json.Unmarshal: %w", err)
		}

		return nil
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, fmt.Errorf("failed to get from cache: %w", err)
	} else if err == nil {
		return value, true, nil
	}

	value, err = fn()
	if err != nil {
		return nil, false, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		valueJSONBytes, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to json.Marshal: %w", err)
		}
		entry := badger.NewEntry([]byte(cacheKey), valueJSONBytes).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store on cache: %w", err)
	}

	return value, false, nil
}

// Delete removes cacheKey from the store. Missing keys are not an error.
func (s *Store) Delete(cacheKey string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(cacheKey))
	})
}

// Close closes the store. It's crucial to call it to ensure all the pending updates make their way to disk.
func (s *Store) Close() error {
	return s.db.Close()
}

type l struct{}

func (l *l) Errorf(s string, i ...interface{}) {
	common.Log.Error(fmt.Sprintf(s, i...))
}

func (l *l) Warningf(s string, i ...interface{}) {
	common.Log.Warn(fmt.Sprintf(s, i...))
}

func (l *l) Infof(s string, i ...interface{}) {
	common.Log.Debug(fmt.Sprintf(s, i...))
}

func (l *l) Debugf(s string, i ...interface{}) {
	common.Log.Debug(fmt.Sprintf(s, i...))
}
