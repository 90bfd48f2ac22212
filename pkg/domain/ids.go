// Package domain holds shared domain primitives used across bounded contexts.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// SessionID identifies one verification session.
// This is a domain primitive that enforces validity at parse time.
type SessionID uuid.UUID

// NewSessionID generates a random session ID.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID validates and returns a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("invalid session ID: %w", err)
	}
	return SessionID(parsed), nil
}

// String returns the canonical UUID representation.
func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

// IsNil returns true if the ID is the zero UUID.
func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}
