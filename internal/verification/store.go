package verification

import (
	"context"
	"errors"

	id "veripass/pkg/domain"
)

// ErrSessionNotFound indicates no session exists under the given ID.
var ErrSessionNotFound = errors.New("verification session not found")

// SessionStore persists sessions together with their audit trails.
// Implementations live under store/.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*Session, error)
}
