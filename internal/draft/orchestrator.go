// Package draft wires connection events of the draft room to the session
// registry, the per-league lobbies and the league store.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/hub"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/lobby"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/types"
)

// Conn is one client connection.
type Conn interface {
	ID() string
	Send(event string, payload any)
}

// Rooms tracks which connections listen to which league.
type Rooms interface {
	lobby.Broadcaster
	Subscribe(leagueID string, c Conn)
	Unsubscribe(leagueID string, c Conn)
}

type Orchestrator struct {
	leagues  store.LeagueStore
	players  store.PlayerSource
	sessions *session.Registry
	hub      *hub.Hub
	rooms    Rooms
	now      func() time.Time
	log      *zap.Logger
}

type Options struct {
	Leagues  store.LeagueStore
	Players  store.PlayerSource
	Sessions *session.Registry
	Hub      *hub.Hub
	Rooms    Rooms
	Now      func() time.Time
	Log      *zap.Logger
}

func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Orchestrator{
		leagues:  opts.Leagues,
		players:  opts.Players,
		sessions: opts.Sessions,
		hub:      opts.Hub,
		rooms:    opts.Rooms,
		now:      opts.Now,
		log:      opts.Log,
	}
}

// Join registers the participant in the league's room, creating the room on
// first join, and then asks the lobby whether drafting can begin.
func (o *Orchestrator) Join(ctx context.Context, c Conn, req types.JoinRequest) error {
	league, err := o.leagues.League(ctx, req.LeagueID)
	if err != nil {
		return store.Translate(err)
	}
	team, ok := league.Team(req.ParticipantID)
	if !ok {
		return engine.ErrTeamNotFound
	}
	if o.now().Before(league.Round.StartDate) {
		return engine.ErrTooEarly
	}
	if league.Round.Completed {
		return engine.ErrAlreadyCompleted
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = team.OwnerName
	}
	p := session.Participant{
		ID:            req.ParticipantID,
		DisplayName:   name,
		ContactEmail:  req.Email,
		AvatarURL:     req.AvatarURL,
		LastHeartbeat: o.now(),
	}

	sess, added, err := o.register(ctx, league, p)
	if err != nil {
		return err
	}

	o.rooms.Subscribe(league.ID, c)
	o.rooms.Broadcast(league.ID, types.EventUsersChange, types.UsersChange{LeagueID: league.ID, Users: sess.Participants})
	if added {
		o.rooms.Broadcast(league.ID, types.EventNotification, types.Notification{
			Title:       "New member",
			Description: fmt.Sprintf("%s joined the room", name),
		})
	}
	c.Send(types.EventJoinedRoom, types.NewJoinedRoom(sess))

	lb, err := o.hub.Ensure(ctx, league.ID)
	if err != nil {
		return err
	}
	if err := lb.TryStart(ctx); err != nil {
		o.log.Debug("draft not started", zap.String("league_id", league.ID), zap.Error(err))
	}
	return nil
}

// register adds p to the league's session, creating the session if needed. A
// session deleted by a concurrent leave is recreated.
func (o *Orchestrator) register(ctx context.Context, league engine.League, p session.Participant) (session.Session, bool, error) {
	for attempt := 0; attempt < 3; attempt++ {
		if _, ok := o.sessions.Get(league.ID); !ok {
			pool, err := o.players.DraftPool(ctx, league.ID)
			if err != nil {
				o.log.Error("failed to load draft pool", zap.String("league_id", league.ID), zap.Error(err))
				return session.Session{}, false, store.Translate(err)
			}
			_, err = o.sessions.Create(session.Session{
				LeagueID:    league.ID,
				Name:        league.Name,
				DraftPool:   pool,
				DraftStatus: session.StatusWaiting,
			})
			if err != nil && !errors.Is(err, session.ErrDuplicateSession) {
				return session.Session{}, false, err
			}
		}

		added := false
		sess, err := o.sessions.Update(league.ID, func(s *session.Session) error {
			if s.HasParticipant(p.ID) {
				s.Touch(p.ID, p.LastHeartbeat)
				return nil
			}
			added = s.AddParticipant(p)
			return nil
		})
		if errors.Is(err, session.ErrNotFound) {
			continue
		}
		return sess, added, err
	}
	return session.Session{}, false, engine.ErrSessionNotFound
}

// Leave removes the participant from the room and deletes the room once it is
// empty. Leaving a room one is not in is a no-op.
func (o *Orchestrator) Leave(ctx context.Context, c Conn, req types.RoomRequest) error {
	if c != nil {
		o.rooms.Unsubscribe(req.LeagueID, c)
		c.Send(types.EventLeftRoom, types.LeftRoom{LeagueID: req.LeagueID})
	}

	var left session.Participant
	removed := false
	sess, err := o.sessions.Update(req.LeagueID, func(s *session.Session) error {
		left, removed = s.RemoveParticipant(req.ParticipantID)
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if removed {
		o.rooms.Broadcast(req.LeagueID, types.EventUsersChange, types.UsersChange{LeagueID: req.LeagueID, Users: sess.Participants})
		o.rooms.Broadcast(req.LeagueID, types.EventNotification, types.Notification{
			Title:       "Member left",
			Description: fmt.Sprintf("%s left the room", left.DisplayName),
		})
	}
	if len(sess.Participants) == 0 {
		o.dropRoom(ctx, req.LeagueID)
	}
	return nil
}

// dropRoom deletes an empty session and stops its lobby.
func (o *Orchestrator) dropRoom(ctx context.Context, leagueID string) {
	if !o.sessions.DeleteIfEmpty(leagueID) {
		return
	}
	if _, err := o.hub.Remove(ctx, leagueID); err != nil {
		o.log.Warn("failed to stop lobby", zap.String("league_id", leagueID), zap.Error(err))
	}
	o.log.Info("draft room closed", zap.String("league_id", leagueID))
}

// Heartbeat refreshes the participant's liveness. Unknown rooms and
// participants are ignored.
func (o *Orchestrator) Heartbeat(_ context.Context, req types.RoomRequest) error {
	_, err := o.sessions.Update(req.LeagueID, func(s *session.Session) error {
		s.Touch(req.ParticipantID, o.now())
		return nil
	})
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		return err
	}
	return nil
}

func (o *Orchestrator) Chat(_ context.Context, req types.ChatRequest) error {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return engine.ErrEmptyMessage
	}

	var chat session.ChatMessage
	_, err := o.sessions.Update(req.LeagueID, func(s *session.Session) error {
		p, ok := s.Participant(req.ParticipantID)
		if !ok {
			return engine.ErrNotInSession
		}
		chat = session.ChatMessage{
			Author:  session.Author{ID: p.ID, Name: p.DisplayName, AvatarURL: p.AvatarURL},
			Message: msg,
			SentAt:  o.now(),
		}
		s.ChatLog = append(s.ChatLog, chat)
		return nil
	})
	if err != nil {
		return err
	}

	o.rooms.Broadcast(req.LeagueID, types.EventChat, types.Chat{LeagueID: req.LeagueID, Chat: chat})
	return nil
}

func (o *Orchestrator) Pick(ctx context.Context, req types.PickRequest) error {
	lb, err := o.lobby(ctx, req.LeagueID)
	if err != nil {
		return err
	}
	return lb.Pick(ctx, req.ParticipantID, req.PlayerID)
}

func (o *Orchestrator) Pause(ctx context.Context, req types.RoomRequest) error {
	lb, err := o.lobby(ctx, req.LeagueID)
	if err != nil {
		return err
	}
	return lb.Pause(ctx, req.ParticipantID)
}

func (o *Orchestrator) Resume(ctx context.Context, req types.RoomRequest) error {
	lb, err := o.lobby(ctx, req.LeagueID)
	if err != nil {
		return err
	}
	return lb.Resume(ctx, req.ParticipantID)
}

// GetRoom re-sends the room snapshot to the caller.
func (o *Orchestrator) GetRoom(_ context.Context, c Conn, req types.RoomRequest) error {
	sess, ok := o.sessions.Get(req.LeagueID)
	if !ok {
		return engine.ErrSessionNotFound
	}
	c.Send(types.EventJoinedRoom, types.NewJoinedRoom(sess))
	return nil
}

func (o *Orchestrator) lobby(ctx context.Context, leagueID string) (*lobby.Lobby, error) {
	if _, ok := o.sessions.Get(leagueID); !ok {
		return nil, engine.ErrSessionNotFound
	}
	return o.hub.Ensure(ctx, leagueID)
}
