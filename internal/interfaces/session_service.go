package interfaces

import (
	"context"

	"github.com/ternarybob/assero/internal/models"
)

// SessionService manages per-session conversation history. History hydrates
// submissions that carry a session_id without explicit chat_history, and
// completed jobs append their exchange back through RecordExchange.
type SessionService interface {
	// History returns the stored turns for a session, empty if unknown
	History(ctx context.Context, sessionID string) ([]models.ConversationTurn, error)

	// RecordExchange appends a user/assistant exchange, creating the
	// session on first use
	RecordExchange(ctx context.Context, sessionID string, turns []models.ConversationTurn) error

	// Delete removes a session and its history
	Delete(ctx context.Context, sessionID string) error
}
