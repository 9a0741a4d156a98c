package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SessionStorage implements the SessionStorage interface for Badger
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a new SessionStorage instance
func NewSessionStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SessionStorage {
	return &SessionStorage{
		db:     db,
		logger: logger,
	}
}

// Store inserts or updates a session, preserving CreatedAt on update
func (s *SessionStorage) Store(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		return fmt.Errorf("session ID is required")
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		var existing models.Session
		if err := s.db.Store().Get(session.ID, &existing); err == nil {
			session.CreatedAt = existing.CreatedAt
		} else {
			session.CreatedAt = now
		}
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	if err := s.db.Store().Upsert(session.ID, session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID
func (s *SessionStorage) Get(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	if err := s.db.Store().Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// Delete removes a session
func (s *SessionStorage) Delete(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Session{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Count returns the number of stored sessions
func (s *SessionStorage) Count(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Session{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}

// DeleteOlderThan removes sessions not updated since the cutoff
func (s *SessionStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var stale []models.Session
	query := badgerhold.Where("UpdatedAt").Lt(cutoff)
	if err := s.db.Store().Find(&stale, query); err != nil {
		return 0, fmt.Errorf("failed to find stale sessions: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&models.Session{}, query); err != nil {
		return 0, fmt.Errorf("failed to delete stale sessions: %w", err)
	}

	s.logger.Debug().
		Int("count", len(stale)).
		Str("cutoff", cutoff.Format(time.RFC3339)).
		Msg("Deleted stale sessions")

	return len(stale), nil
}
