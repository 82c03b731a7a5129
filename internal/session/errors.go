package session

import (
	"fmt"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
)

var (
	ErrNotFound         = engine.ErrSessionNotFound
	ErrDuplicateSession = engine.ErrDuplicateSession
	ErrInvalidSession   = engine.E(engine.KindInvalidInput, "invalid session")
	ErrPoolChanged      = engine.E(engine.KindInvalidInput, "draft pool cannot change after the session is created")
)

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSession, reason)
}
