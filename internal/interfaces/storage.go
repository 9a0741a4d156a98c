package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/assero/internal/models"
)

// ErrKeyNotFound is returned when a key is not found in storage
var ErrKeyNotFound = errors.New("key not found")

// SessionStorage - interface for conversation session persistence
type SessionStorage interface {
	// Store inserts or updates a session
	Store(ctx context.Context, session *models.Session) error

	// Get retrieves a session by ID, returns ErrKeyNotFound if absent
	Get(ctx context.Context, id string) (*models.Session, error)

	// Delete removes a session, no error if absent
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored sessions
	Count(ctx context.Context) (int, error)

	// DeleteOlderThan removes sessions not updated since the cutoff,
	// returning how many were removed
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// CacheStorage - interface for TTL-bounded tool result caching
type CacheStorage interface {
	// Get retrieves a cached value, returns ErrKeyNotFound on miss or expiry
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a per-entry TTL; ttl <= 0 stores forever
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes an entry, no error if absent
	Delete(ctx context.Context, key string) error
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	SessionStorage() SessionStorage
	CacheStorage() CacheStorage
	DB() interface{}
	Close() error
}
