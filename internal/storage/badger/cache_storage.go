package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/assero/internal/interfaces"
)

// cacheKeyPrefix namespaces cache entries away from badgerhold records
const cacheKeyPrefix = "cache:"

// CacheStorage implements the CacheStorage interface on the raw Badger
// database. Entries carry a native Badger TTL so expiry needs no sweeper.
type CacheStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCacheStorage creates a new CacheStorage instance
func NewCacheStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CacheStorage {
	return &CacheStorage{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a cached value. Expired or missing entries return
// interfaces.ErrKeyNotFound.
func (s *CacheStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(cacheKeyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badgerdb.ErrKeyNotFound {
			return nil, interfaces.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return value, nil
}

// Set stores a value with a per-entry TTL; ttl <= 0 stores forever
func (s *CacheStorage) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry([]byte(cacheKeyPrefix+key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	s.logger.Debug().
		Str("key", key).
		Int("size", len(value)).
		Dur("ttl", ttl).
		Msg("Cache entry stored")

	return nil
}

// Delete removes an entry, no error if absent
func (s *CacheStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(cacheKeyPrefix + key))
	})
	if err != nil && err != badgerdb.ErrKeyNotFound {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}
