package draft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/types"
)

const (
	DefaultReapInterval = 5 * time.Minute
	DefaultStaleAfter   = 5 * time.Minute
)

// Reaper evicts participants whose heartbeat went stale and closes rooms left
// empty.
type Reaper struct {
	orch       *Orchestrator
	interval   time.Duration
	staleAfter time.Duration
	log        *zap.Logger
}

func NewReaper(orch *Orchestrator, interval, staleAfter time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Reaper{
		orch:       orch,
		interval:   interval,
		staleAfter: staleAfter,
		log:        orch.log.Named("reaper"),
	}
}

// Run sweeps on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx, r.orch.now())
		}
	}
}

// Sweep runs one pass and returns how many participants were dropped.
func (r *Reaper) Sweep(ctx context.Context, now time.Time) int {
	cutoff := now.Add(-r.staleAfter)
	total := 0

	for _, leagueID := range r.orch.sessions.LeagueIDs() {
		var dropped []session.Participant
		sess, err := r.orch.sessions.Update(leagueID, func(s *session.Session) error {
			kept := s.Participants[:0]
			for _, p := range s.Participants {
				if p.LastHeartbeat.Before(cutoff) {
					dropped = append(dropped, p)
					continue
				}
				kept = append(kept, p)
			}
			s.Participants = kept
			return nil
		})
		if err != nil {
			// deleted since LeagueIDs was taken
			continue
		}

		if len(dropped) > 0 {
			total += len(dropped)
			names := make([]string, len(dropped))
			for i, p := range dropped {
				names[i] = p.DisplayName
			}
			r.log.Info("dropped inactive participants",
				zap.String("league_id", leagueID), zap.Strings("participants", names))
			r.orch.rooms.Broadcast(leagueID, types.EventUsersChange, types.UsersChange{LeagueID: leagueID, Users: sess.Participants})
			r.orch.rooms.Broadcast(leagueID, types.EventNotification, types.Notification{
				Title:       "Inactive members removed",
				Description: fmt.Sprintf("%s removed for inactivity", strings.Join(names, ", ")),
			})
		}
		if len(sess.Participants) == 0 {
			r.orch.dropRoom(ctx, leagueID)
		}
	}
	return total
}
