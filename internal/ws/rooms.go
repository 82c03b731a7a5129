package ws

import (
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/draft"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/types"
)

// Rooms fans events out to the connections of each league.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[string]draft.Conn
	log   *zap.Logger
}

func NewRooms(log *zap.Logger) *Rooms {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rooms{rooms: make(map[string]map[string]draft.Conn), log: log}
}

func (r *Rooms) Subscribe(leagueID string, c draft.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[leagueID]
	if room == nil {
		room = make(map[string]draft.Conn)
		r.rooms[leagueID] = room
	}
	room[c.ID()] = c
}

func (r *Rooms) Unsubscribe(leagueID string, c draft.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[leagueID]
	delete(room, c.ID())
	if len(room) == 0 {
		delete(r.rooms, leagueID)
	}
}

// Forget removes c from every room.
func (r *Rooms) Forget(c draft.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, room := range r.rooms {
		delete(room, c.ID())
		if len(room) == 0 {
			delete(r.rooms, id)
		}
	}
}

// Broadcast encodes the event once and queues it on every member. Members
// that cannot keep up are dropped by their own connection.
func (r *Rooms) Broadcast(leagueID, event string, payload any) {
	frame, err := types.Encode(event, payload)
	if err != nil {
		r.log.Error("failed to encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}

	r.mu.RLock()
	members := make([]draft.Conn, 0, len(r.rooms[leagueID]))
	for _, c := range r.rooms[leagueID] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	for _, c := range members {
		if fc, ok := c.(frameSender); ok {
			fc.sendFrame(frame)
			continue
		}
		c.Send(event, payload)
	}
}

func (r *Rooms) Members(leagueID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[leagueID])
}

type frameSender interface {
	sendFrame(frame []byte)
}
