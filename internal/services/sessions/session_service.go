package sessions

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/assero/internal/common"
	"github.com/ternarybob/assero/internal/interfaces"
	"github.com/ternarybob/assero/internal/models"
)

// Service implements SessionService over the badger session storage
type Service struct {
	storage interfaces.SessionStorage
	config  *common.SessionsConfig
	logger  arbor.ILogger
}

// NewService creates a new session service
func NewService(storage interfaces.SessionStorage, config *common.SessionsConfig, logger arbor.ILogger) *Service {
	return &Service{
		storage: storage,
		config:  config,
		logger:  logger,
	}
}

// History returns the stored turns for a session. An unknown session yields
// an empty history, not an error, so submissions with fresh session IDs
// start clean.
func (s *Service) History(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.storage.Get(ctx, sessionID)
	if err != nil {
		if err == interfaces.ErrKeyNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	return session.Turns, nil
}

// RecordExchange appends a user/assistant exchange, creating the session on
// first use and pruning to the configured turn cap.
func (s *Service) RecordExchange(ctx context.Context, sessionID string, turns []models.ConversationTurn) error {
	if sessionID == "" || len(turns) == 0 {
		return nil
	}

	session, err := s.storage.Get(ctx, sessionID)
	if err != nil {
		if err != interfaces.ErrKeyNotFound {
			return fmt.Errorf("failed to load session: %w", err)
		}
		session = &models.Session{ID: sessionID}
	}

	session.Append(turns, s.config.MaxTurns)

	if err := s.storage.Store(ctx, session); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Debug().
		Str("session_id", sessionID).
		Int("turns", len(session.Turns)).
		Msg("Session exchange recorded")

	return nil
}

// Delete removes a session and its history
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.storage.Delete(ctx, sessionID)
}
