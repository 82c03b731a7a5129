package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/lobby"
)

var ErrClosed = errors.New("hub: closed")

type HubMsg interface{ isHubMsg() }

// EnsureLobby returns the league's lobby, starting it on first access.
type EnsureLobby struct {
	LeagueID string
	Reply    chan *lobby.Lobby
}

type GetLobby struct {
	LeagueID string
	Reply    chan *lobby.Lobby // nil when the league has no lobby
}

// RemoveLobby shuts the league's lobby down unless its room is live again.
type RemoveLobby struct {
	LeagueID string
	Reply    chan bool
}

type ListLobbies struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (EnsureLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

// Hub owns one lobby per league with a live draft room.
type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	deps    lobby.Deps
	live    func(leagueID string) bool
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub starts the hub. live reports whether a league still has a room; a
// lobby is only removed when it does not.
func NewHub(parent context.Context, deps lobby.Deps, live func(leagueID string) bool) *Hub {
	ctx, cancel := context.WithCancel(parent)
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		deps:    deps,
		live:    live,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub and all of its lobbies have been told to stop.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureLobby:
				lb := h.lobbies[msg.LeagueID]
				if lb == nil {
					lb = lobby.NewLobby(h.ctx, msg.LeagueID, h.deps)
					h.lobbies[msg.LeagueID] = lb
					h.log.Debug("lobby started", zap.String("league_id", msg.LeagueID))
				}
				msg.Reply <- lb

			case GetLobby:
				msg.Reply <- h.lobbies[msg.LeagueID]

			case RemoveLobby:
				removed := false
				if lb := h.lobbies[msg.LeagueID]; lb != nil && (h.live == nil || !h.live(msg.LeagueID)) {
					stopLobby(lb)
					delete(h.lobbies, msg.LeagueID)
					removed = true
					h.log.Debug("lobby stopped", zap.String("league_id", msg.LeagueID))
				}
				if msg.Reply != nil {
					msg.Reply <- removed
				}

			case ListLobbies:
				ids := make([]string, 0, len(h.lobbies))
				for id := range h.lobbies {
					ids = append(ids, id)
				}
				msg.Reply <- ids

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		stopLobby(lb)
	}
	clear(h.lobbies)
	h.cancel()
}

func stopLobby(lb *lobby.Lobby) {
	select {
	case lb.Inbox() <- lobby.Shutdown{}:
	case <-lb.Done():
	}
}

// Ensure returns the lobby of leagueID, creating it if needed.
func (h *Hub) Ensure(ctx context.Context, leagueID string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, EnsureLobby{LeagueID: leagueID, Reply: reply}); err != nil {
		return nil, err
	}
	return h.await(ctx, reply)
}

// Get returns the lobby of leagueID, or nil.
func (h *Hub) Get(ctx context.Context, leagueID string) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	if err := h.send(ctx, GetLobby{LeagueID: leagueID, Reply: reply}); err != nil {
		return nil, err
	}
	return h.await(ctx, reply)
}

// Remove stops the lobby of a league whose room is gone. It reports whether a
// lobby was stopped.
func (h *Hub) Remove(ctx context.Context, leagueID string) (bool, error) {
	reply := make(chan bool, 1)
	if err := h.send(ctx, RemoveLobby{LeagueID: leagueID, Reply: reply}); err != nil {
		return false, err
	}
	select {
	case ok := <-reply:
		return ok, nil
	case <-h.done:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (h *Hub) LeagueIDs(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.send(ctx, ListLobbies{Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case ids := <-reply:
		return ids, nil
	case <-h.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops every lobby and the hub itself.
func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.done:
	}
	<-h.done
}

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) await(ctx context.Context, reply chan *lobby.Lobby) (*lobby.Lobby, error) {
	select {
	case lb := <-reply:
		return lb, nil
	case <-h.done:
		select {
		case lb := <-reply:
			return lb, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
