package models

import "time"

// Session holds the running conversation for one editor session. Submissions
// carrying a session_id without explicit chat_history are hydrated from the
// stored turns, and completed jobs append their exchange back.
type Session struct {
	ID        string             `json:"id" badgerhold:"key"`
	Turns     []ConversationTurn `json:"turns"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" badgerhold:"index"`
}

// Append adds an exchange and prunes the oldest turns beyond maxTurns.
// maxTurns <= 0 disables pruning.
func (s *Session) Append(turns []ConversationTurn, maxTurns int) {
	s.Turns = append(s.Turns, turns...)
	if maxTurns > 0 && len(s.Turns) > maxTurns {
		s.Turns = s.Turns[len(s.Turns)-maxTurns:]
	}
	s.UpdatedAt = time.Now()
}
