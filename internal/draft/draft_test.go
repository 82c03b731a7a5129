package draft

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/hub"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/lobby"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store/memstore"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/types"
)

type sent struct {
	event   string
	payload any
}

type fakeConn struct {
	id string
	mu sync.Mutex
	in []sent
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(event string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.in = append(c.in, sent{event, payload})
}

func (c *fakeConn) received(event string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, s := range c.in {
		if s.event == event {
			out = append(out, s.payload)
		}
	}
	return out
}

type fakeRooms struct {
	mu   sync.Mutex
	subs map[string]map[string]Conn
	ch   chan sent
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{subs: make(map[string]map[string]Conn), ch: make(chan sent, 1024)}
}

func (r *fakeRooms) Subscribe(leagueID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[leagueID] == nil {
		r.subs[leagueID] = make(map[string]Conn)
	}
	r.subs[leagueID][c.ID()] = c
}

func (r *fakeRooms) Unsubscribe(leagueID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs[leagueID], c.ID())
}

func (r *fakeRooms) Broadcast(_ string, event string, payload any) {
	r.ch <- sent{event, payload}
}

func (r *fakeRooms) drain() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

func (r *fakeRooms) members(leagueID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[leagueID])
}

func waitFor(t *testing.T, r *fakeRooms, event string, within time.Duration) any {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case s := <-r.ch:
			if s.event == event {
				return s.payload
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return nil
		}
	}
}

func noEvent(t *testing.T, r *fakeRooms, event string, within time.Duration) {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case s := <-r.ch:
			if s.event == event {
				t.Fatalf("expected no %s within %v, got %+v", event, within, s.payload)
			}
		case <-deadline:
			return
		}
	}
}

type fixture struct {
	store    *memstore.Store
	sessions *session.Registry
	rooms    *fakeRooms
	hub      *hub.Hub
	orch     *Orchestrator
	now      time.Time
}

// newFixture seeds league L1 owned by the first owner with a ten-player pool
// and roster cap 2.
func newFixture(t *testing.T, turn time.Duration, owners ...string) *fixture {
	t.Helper()
	now := time.Now()
	league := engine.League{
		ID:      "L1",
		Name:    "Test League",
		OwnerID: owners[0],
		Round:   engine.DraftRound{StartDate: now.Add(-time.Minute), TurnDirection: engine.DirectionForward},
	}
	for _, o := range owners {
		league.Teams = append(league.Teams, engine.Team{OwnerID: o, OwnerName: "Team " + o})
	}
	pool := make([]engine.Player, 10)
	for i := range pool {
		id := fmt.Sprintf("p%d", i+1)
		pool[i] = engine.Player{ID: id, Name: "Player " + id, Slug: id}
	}

	f := &fixture{store: memstore.New(), sessions: session.NewRegistry(), rooms: newFakeRooms(), now: now}
	f.store.Put(league, pool)
	f.hub = hub.NewHub(context.Background(), lobby.Deps{
		Store:        f.store,
		Sessions:     f.sessions,
		Broadcaster:  f.rooms,
		Rules:        engine.Rules{RosterCap: 2},
		TurnDuration: turn,
	}, func(id string) bool {
		_, ok := f.sessions.Get(id)
		return ok
	})
	t.Cleanup(f.hub.Shutdown)

	f.orch = New(Options{
		Leagues:  f.store,
		Players:  f.store,
		Sessions: f.sessions,
		Hub:      f.hub,
		Rooms:    f.rooms,
		Now:      func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) join(t *testing.T, ids ...string) map[string]*fakeConn {
	t.Helper()
	conns := make(map[string]*fakeConn)
	for _, id := range ids {
		c := &fakeConn{id: "conn-" + id}
		require.NoError(t, f.orch.Join(context.Background(), c, types.JoinRequest{
			RoomRequest: room(id),
			Name:        "Owner " + id,
		}))
		conns[id] = c
	}
	return conns
}

func (f *fixture) league(t *testing.T) engine.League {
	t.Helper()
	l, err := f.store.League(context.Background(), "L1")
	require.NoError(t, err)
	return l
}

func room(participantID string) types.RoomRequest {
	return types.RoomRequest{LeagueID: "L1", ParticipantID: participantID}
}

func pick(participantID, playerID string) types.PickRequest {
	return types.PickRequest{RoomRequest: room(participantID), PlayerID: playerID}
}

func TestJoin_CreatesRoomAndAcknowledges(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2", "u3", "u4")
	conns := f.join(t, "u1")

	sess, ok := f.sessions.Get("L1")
	require.True(t, ok)
	assert.Equal(t, "Test League", sess.Name)
	assert.Len(t, sess.DraftPool, 10)
	assert.Equal(t, []string{"u1"}, sess.ParticipantIDs())
	assert.Equal(t, session.StatusWaiting, sess.DraftStatus)
	assert.Equal(t, 1, f.rooms.members("L1"))

	acks := conns["u1"].received(types.EventJoinedRoom)
	require.Len(t, acks, 1)
	ack := acks[0].(types.JoinedRoom)
	assert.Equal(t, "Test League", ack.Name)
	require.Len(t, ack.Users, 1)
	assert.Equal(t, "Owner u1", ack.Users[0].DisplayName)

	users := waitFor(t, f.rooms, types.EventUsersChange, time.Second).(types.UsersChange)
	assert.Len(t, users.Users, 1)
	note := waitFor(t, f.rooms, types.EventNotification, time.Second).(types.Notification)
	assert.Equal(t, "Owner u1 joined the room", note.Description)

	// one of four connected: no quorum yet
	assert.Empty(t, f.league(t).Round.CurrentTurnOwnerID)
}

func TestJoin_Rejections(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2")
	ctx := context.Background()
	c := &fakeConn{id: "c"}

	err := f.orch.Join(ctx, c, types.JoinRequest{RoomRequest: types.RoomRequest{LeagueID: "nope", ParticipantID: "u1"}})
	assert.ErrorIs(t, err, engine.ErrLeagueNotFound)

	err = f.orch.Join(ctx, c, types.JoinRequest{RoomRequest: room("stranger")})
	assert.ErrorIs(t, err, engine.ErrTeamNotFound)

	f.now = f.now.Add(-time.Hour)
	err = f.orch.Join(ctx, c, types.JoinRequest{RoomRequest: room("u1")})
	assert.ErrorIs(t, err, engine.ErrTooEarly)
	f.now = f.now.Add(time.Hour)

	l := f.league(t)
	l.Round.Completed = true
	f.store.Put(l, nil)
	err = f.orch.Join(ctx, c, types.JoinRequest{RoomRequest: room("u1")})
	assert.ErrorIs(t, err, engine.ErrAlreadyCompleted)

	assert.Equal(t, 0, f.sessions.Len())
}

func TestJoin_Twice_DoesNotDuplicate(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2")
	f.join(t, "u1")
	f.join(t, "u1")

	sess, _ := f.sessions.Get("L1")
	assert.Equal(t, []string{"u1"}, sess.ParticipantIDs())
}

func TestLeave_DeletesEmptyRoom(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2", "u3")
	ctx := context.Background()
	conns := f.join(t, "u1", "u2")

	require.NoError(t, f.orch.Leave(ctx, conns["u2"], room("u2")))
	sess, ok := f.sessions.Get("L1")
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, sess.ParticipantIDs())
	assert.Len(t, conns["u2"].received(types.EventLeftRoom), 1)

	// leaving twice is a no-op
	require.NoError(t, f.orch.Leave(ctx, conns["u2"], room("u2")))

	require.NoError(t, f.orch.Leave(ctx, conns["u1"], room("u1")))
	_, ok = f.sessions.Get("L1")
	assert.False(t, ok)
	lb, err := f.hub.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Nil(t, lb)

	require.NoError(t, f.orch.Leave(ctx, nil, room("u1")))
}

func TestHeartbeat_And_Chat(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2")
	ctx := context.Background()
	f.join(t, "u1")

	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.orch.Heartbeat(ctx, room("u1")))
	require.NoError(t, f.orch.Heartbeat(ctx, room("ghost")))
	require.NoError(t, f.orch.Heartbeat(ctx, types.RoomRequest{LeagueID: "other", ParticipantID: "u1"}))
	sess, _ := f.sessions.Get("L1")
	p, _ := sess.Participant("u1")
	assert.Equal(t, f.now, p.LastHeartbeat)

	err := f.orch.Chat(ctx, types.ChatRequest{RoomRequest: room("u1"), Message: "  \t"})
	assert.ErrorIs(t, err, engine.ErrEmptyMessage)
	err = f.orch.Chat(ctx, types.ChatRequest{RoomRequest: room("u2"), Message: "hi"})
	assert.ErrorIs(t, err, engine.ErrNotInSession)

	require.NoError(t, f.orch.Chat(ctx, types.ChatRequest{RoomRequest: room("u1"), Message: "good luck"}))
	chat := waitFor(t, f.rooms, types.EventChat, time.Second).(types.Chat)
	assert.Equal(t, "good luck", chat.Chat.Message)
	assert.Equal(t, "Owner u1", chat.Chat.Author.Name)

	sess, _ = f.sessions.Get("L1")
	require.Len(t, sess.ChatLog, 1)
}

func TestGetRoom(t *testing.T) {
	f := newFixture(t, time.Minute, "u1")
	ctx := context.Background()
	c := &fakeConn{id: "c"}

	assert.ErrorIs(t, f.orch.GetRoom(ctx, c, room("u1")), engine.ErrSessionNotFound)
	f.join(t, "u1")
	require.NoError(t, f.orch.GetRoom(ctx, c, room("u1")))
	assert.Len(t, c.received(types.EventJoinedRoom), 1)
}

func TestPick_WithoutRoom(t *testing.T) {
	f := newFixture(t, time.Minute, "u1")
	err := f.orch.Pick(context.Background(), pick("u1", "p1"))
	assert.ErrorIs(t, err, engine.ErrSessionNotFound)
}

func TestDraft_FourTeamsSnakeToCompletion(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2", "u3", "u4")
	ctx := context.Background()
	f.join(t, "u1", "u2", "u3", "u4")

	order := []string{"u1", "u2", "u3", "u4", "u4", "u3", "u2", "u1"}
	for i, owner := range order {
		require.Equal(t, owner, f.league(t).Round.CurrentTurnOwnerID, "turn %d", i+1)
		require.NoError(t, f.orch.Pick(ctx, pick(owner, fmt.Sprintf("p%d", i+1))))
	}

	l := f.league(t)
	assert.True(t, l.Round.Completed)
	seen := make(map[string]bool)
	for _, team := range l.Teams {
		require.Len(t, team.PickedPlayers, 2)
		for _, p := range team.PickedPlayers {
			assert.False(t, seen[p], "player %s on two rosters", p)
			seen[p] = true
		}
	}
	sess, _ := f.sessions.Get("L1")
	assert.Equal(t, session.StatusCompleted, sess.DraftStatus)
	assert.ErrorIs(t, f.orch.Pick(ctx, pick("u1", "p9")), engine.ErrAlreadyCompleted)
}

func TestDraft_AbsentTeamIsAutoPicked(t *testing.T) {
	f := newFixture(t, 150*time.Millisecond, "u1", "u2", "u3", "u4")
	l := f.league(t)
	l.Teams[1].Wishlist = []string{"p6", "p2"}
	pool, err := f.store.DraftPool(context.Background(), "L1")
	require.NoError(t, err)
	f.store.Put(l, pool)

	f.join(t, "u1", "u3", "u4")
	require.NoError(t, f.orch.Pick(context.Background(), pick("u1", "p1")))

	for {
		picked := waitFor(t, f.rooms, types.EventPlayerPicked, time.Second).(types.PlayerPicked)
		if picked.OwnerID == "u2" {
			assert.True(t, picked.Auto)
			assert.Equal(t, "p6", picked.PlayerID)
			break
		}
	}
	turn := waitFor(t, f.rooms, types.EventTurnUpdate, time.Second).(types.TurnUpdate)
	assert.Equal(t, "u3", turn.OwnerID)
}

func TestDraft_PauseDuringTurnThenResume(t *testing.T) {
	f := newFixture(t, 100*time.Millisecond, "u1", "u2", "u3")
	ctx := context.Background()
	f.join(t, "u1", "u2", "u3")

	require.NoError(t, f.orch.Pick(ctx, pick("u1", "p1")))
	require.NoError(t, f.orch.Pick(ctx, pick("u2", "p2")))
	require.Equal(t, "u3", f.league(t).Round.CurrentTurnOwnerID)

	assert.ErrorIs(t, f.orch.Pause(ctx, room("u3")), engine.ErrNotOwner)
	require.NoError(t, f.orch.Pause(ctx, room("u1")))
	picksBefore := len(f.store.Picks("L1"))
	f.rooms.drain()

	noEvent(t, f.rooms, types.EventPlayerPicked, 300*time.Millisecond)
	assert.Len(t, f.store.Picks("L1"), picksBefore)
	sess, _ := f.sessions.Get("L1")
	assert.Equal(t, session.StatusPaused, sess.DraftStatus)

	require.NoError(t, f.orch.Resume(ctx, room("u1")))
	turn := waitFor(t, f.rooms, types.EventTurnUpdate, time.Second).(types.TurnUpdate)
	assert.Equal(t, "u3", turn.OwnerID)
	assert.Equal(t, "u3", f.league(t).Round.CurrentTurnOwnerID)
}

func TestDraft_PickOfTakenPlayerIsConflict(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2")
	ctx := context.Background()
	f.join(t, "u1", "u2")
	require.NoError(t, f.orch.Pick(ctx, pick("u1", "p1")))
	waitFor(t, f.rooms, types.EventPlayerPicked, time.Second)
	before := f.league(t)

	err := f.orch.Pick(ctx, pick("u2", "p1"))
	require.Error(t, err)
	assert.Equal(t, engine.KindConflict, engine.KindOf(err))

	noEvent(t, f.rooms, types.EventPlayerPicked, 50*time.Millisecond)
	assert.Equal(t, before, f.league(t))
}

func TestReaper_DropsStaleParticipantsAndEmptyRooms(t *testing.T) {
	f := newFixture(t, time.Minute, "u1", "u2", "u3")
	ctx := context.Background()
	f.join(t, "u1", "u2")
	r := NewReaper(f.orch, time.Minute, 5*time.Minute)

	// u1 keeps beating, u2 goes quiet
	f.now = f.now.Add(4 * time.Minute)
	require.NoError(t, f.orch.Heartbeat(ctx, room("u1")))

	assert.Equal(t, 0, r.Sweep(ctx, f.now))
	assert.Equal(t, 1, r.Sweep(ctx, f.now.Add(2*time.Minute)))

	sess, ok := f.sessions.Get("L1")
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, sess.ParticipantIDs())
	for {
		n := waitFor(t, f.rooms, types.EventNotification, time.Second).(types.Notification)
		if n.Title == "Inactive members removed" {
			assert.Equal(t, "Owner u2 removed for inactivity", n.Description)
			break
		}
	}

	assert.Equal(t, 1, r.Sweep(ctx, f.now.Add(time.Hour)))
	_, ok = f.sessions.Get("L1")
	assert.False(t, ok)
}

func TestReaper_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, time.Minute, "u1")
	r := NewReaper(f.orch, 10*time.Millisecond, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
