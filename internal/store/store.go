// Package store declares the durable collaborators of the draft engine: the
// league store, the source of draftable players, and the outbound notifier.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
)

var (
	ErrNotFound        = errors.New("store: not found")
	ErrVersionConflict = errors.New("store: version conflict")
	ErrPlayerTaken     = errors.New("store: player already picked in this league")
)

// Translate maps store errors onto the engine taxonomy. Unknown errors pass
// through unchanged and are reported as internal.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return engine.ErrLeagueNotFound
	case errors.Is(err, ErrVersionConflict):
		return engine.ErrStaleState
	case errors.Is(err, ErrPlayerTaken):
		return engine.ErrPlayerTaken
	}
	return err
}

// PickRecord is a roster addition written together with a round update.
type PickRecord struct {
	OwnerID  string
	PlayerID string
	Auto     bool
	PickedAt time.Time
}

// DraftChange is one durable write: an optional pick plus the resulting round
// fields.
type DraftChange struct {
	Pick  *PickRecord
	Round engine.DraftRound
}

type LeagueStore interface {
	// League returns the league with teams in turn order, or ErrNotFound.
	League(ctx context.Context, leagueID string) (engine.League, error)
	// SaveDraft applies change atomically if the stored version still equals
	// expectVersion, and returns the new version.
	SaveDraft(ctx context.Context, leagueID string, expectVersion int64, change DraftChange) (int64, error)
	// UpcomingDrafts lists leagues whose draft is not completed and starts in
	// [from, to].
	UpcomingDrafts(ctx context.Context, from, to time.Time) ([]engine.League, error)
}

type PlayerSource interface {
	// DraftPool returns the players eligible in the league's draft in storage
	// order.
	DraftPool(ctx context.Context, leagueID string) ([]engine.Player, error)
}

type Notifier interface {
	DraftStartingSoon(ctx context.Context, league engine.League) error
}
