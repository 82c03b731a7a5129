package reminder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/lobby"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/types"
)

// LogNotifier records reminders in the log and, when the league's room is
// open, tells the people already waiting in it.
type LogNotifier struct {
	Sessions    *session.Registry
	Broadcaster lobby.Broadcaster
	Log         *zap.Logger
}

func (n *LogNotifier) DraftStartingSoon(_ context.Context, l engine.League) error {
	log := n.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("draft starting soon",
		zap.String("league_id", l.ID),
		zap.String("league", l.Name),
		zap.Int("teams", len(l.Teams)),
		zap.Time("starts_at", l.Round.StartDate))

	if n.Sessions == nil || n.Broadcaster == nil {
		return nil
	}
	if _, ok := n.Sessions.Get(l.ID); !ok {
		return nil
	}
	n.Broadcaster.Broadcast(l.ID, types.EventNotification, types.Notification{
		Title:       "Draft starting soon",
		Description: fmt.Sprintf("The %s draft starts at %s", l.Name, l.Round.StartDate.UTC().Format("15:04 MST")),
	})
	return nil
}

var _ store.Notifier = (*LogNotifier)(nil)
