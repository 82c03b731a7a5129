package engine

import "errors"

// Kind classifies an error so the transport can report it without leaking
// internals. Every Kind except KindInternal is recoverable by the caller.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindForbidden        Kind = "forbidden"
	KindConflict         Kind = "conflict"
	KindTooEarly         Kind = "too_early"
	KindAlreadyCompleted Kind = "already_completed"
	KindPaused           Kind = "paused"
	KindInternal         Kind = "internal"
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// E builds an ad-hoc error of the given kind, for cases no sentinel covers.
func E(kind Kind, msg string) error { return newError(kind, msg) }

var (
	ErrLeagueNotFound   = newError(KindNotFound, "league not found")
	ErrTeamNotFound     = newError(KindNotFound, "your team was not found in this league")
	ErrSessionNotFound  = newError(KindNotFound, "draft room not found")
	ErrNotInSession     = newError(KindNotFound, "you are not connected to this draft room")
	ErrPlayerNotInPool  = newError(KindNotFound, "player is not in the draft pool")
	ErrMissingField     = newError(KindInvalidInput, "missing required field")
	ErrEmptyMessage     = newError(KindInvalidInput, "message cannot be empty")
	ErrUnsupportedEvent = newError(KindInvalidInput, "unsupported event")
	ErrWrongTurn        = newError(KindForbidden, "it is not your turn")
	ErrNotOwner         = newError(KindForbidden, "only the league owner can do this")
	ErrNotJoined        = newError(KindForbidden, "join the room as this participant first")
	ErrPlayerTaken      = newError(KindConflict, "player has already been picked")
	ErrRosterFull       = newError(KindConflict, "your roster is already full")
	ErrDuplicateSession = newError(KindConflict, "draft room already exists")
	ErrNotPaused        = newError(KindConflict, "draft is not paused")
	ErrNoQuorum         = newError(KindConflict, "not enough teams connected to start the draft")
	ErrNoTurnHolder     = newError(KindConflict, "draft has no current turn holder")
	ErrStaleState       = newError(KindConflict, "draft state changed, try again")
	ErrTooEarly         = newError(KindTooEarly, "draft has not started yet")
	ErrAlreadyCompleted = newError(KindAlreadyCompleted, "draft is already completed")
	ErrPaused           = newError(KindPaused, "draft is paused")
)

// KindOf reports the Kind of err, looking through wrapping. Errors that are not
// *Error are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the text safe to send to a client.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
