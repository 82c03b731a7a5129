package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool(n int) []Player {
	pool := make([]Player, n)
	for i := range pool {
		id := fmt.Sprintf("p%d", i+1)
		pool[i] = Player{ID: id, Name: "Player " + id, Slug: id}
	}
	return pool
}

func newLeague(owners ...string) League {
	l := League{ID: "L1", Name: "Test League", OwnerID: owners[0]}
	for _, o := range owners {
		l.Teams = append(l.Teams, Team{OwnerID: o, OwnerName: o})
	}
	return l
}

func started(l League, holder string) League {
	l.Round.CurrentTurnOwnerID = holder
	l.Round.TurnDirection = DirectionForward
	return l
}

func TestIsPickLegal(t *testing.T) {
	pool := newPool(3)
	teams := []Team{{OwnerID: "a", PickedPlayers: []string{"p1"}}, {OwnerID: "b"}}

	cases := []struct {
		name     string
		playerID string
		want     error
	}{
		{name: "Legal pick", playerID: "p2", want: nil},
		{name: "Blocked by prior team pick", playerID: "p1", want: ErrPlayerTaken},
		{name: "Not in pool", playerID: "p99", want: ErrPlayerNotInPool},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want == nil, IsPickLegal(tc.playerID, pool, teams))
			err := CheckPick(tc.playerID, pool, teams)
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestSnakeOrder_FourTeamsCapTwo(t *testing.T) {
	l := started(newLeague("T1", "T2", "T3", "T4"), "T1")
	pool := newPool(10)
	rules := Rules{RosterCap: 2}

	var order []string
	next := 0
	for !l.Round.Completed {
		require.Less(t, len(order), 20, "draft did not terminate")
		holder := l.Round.CurrentTurnOwnerID
		order = append(order, holder)
		events, nl, err := Apply(l, pool, rules, Command{Type: CmdLockPick, ActorID: holder, PlayerID: pool[next].ID})
		require.NoError(t, err)
		require.True(t, ContainsEvent(events, EvtPlayerPicked))
		l = nl
		next++
	}

	assert.Equal(t, []string{"T1", "T2", "T3", "T4", "T4", "T3", "T2", "T1"}, order)
	seen := map[string]bool{}
	for _, team := range l.Teams {
		assert.Len(t, team.PickedPlayers, 2)
		for _, id := range team.PickedPlayers {
			assert.False(t, seen[id], "player %s picked twice", id)
			seen[id] = true
		}
	}
	assert.Equal(t, PhaseCompleted, DerivePhase(l.Round))
}

func TestApply_RejectsOutOfOrderPick(t *testing.T) {
	l := started(newLeague("T1", "T2"), "T1")

	_, got, err := Apply(l, newPool(4), Rules{}, Command{Type: CmdLockPick, ActorID: "T2", PlayerID: "p1"})
	require.ErrorIs(t, err, ErrWrongTurn)
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Empty(t, got.Teams[1].PickedPlayers)
}

func TestApply_RejectsPlayerOnAnotherRoster(t *testing.T) {
	l := started(newLeague("T1", "T2"), "T2")
	l.Teams[0].PickedPlayers = []string{"p1"}

	events, got, err := Apply(l, newPool(4), Rules{}, Command{Type: CmdLockPick, ActorID: "T2", PlayerID: "p1"})
	require.ErrorIs(t, err, ErrPlayerTaken)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Nil(t, events)
	assert.Empty(t, got.Teams[1].PickedPlayers)
	assert.Equal(t, "T2", got.Round.CurrentTurnOwnerID)
}

func TestApply_RejectsPickWhenRosterFull(t *testing.T) {
	l := started(newLeague("T1", "T2"), "T1")
	l.Teams[0].PickedPlayers = []string{"p1", "p2"}

	_, _, err := Apply(l, newPool(4), Rules{RosterCap: 2}, Command{Type: CmdLockPick, ActorID: "T1", PlayerID: "p3"})
	require.ErrorIs(t, err, ErrRosterFull)
}

func TestApply_RoundStatePreconditions(t *testing.T) {
	pool := newPool(4)

	completed := started(newLeague("T1", "T2"), "T1")
	completed.Round.Completed = true
	_, _, err := Apply(completed, pool, Rules{}, Command{Type: CmdLockPick, ActorID: "T1", PlayerID: "p1"})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	paused := started(newLeague("T1", "T2"), "T1")
	paused.Round.Paused = true
	_, _, err = Apply(paused, pool, Rules{}, Command{Type: CmdLockPick, ActorID: "T1", PlayerID: "p1"})
	assert.ErrorIs(t, err, ErrPaused)
	_, _, err = Apply(paused, pool, Rules{}, Command{Type: CmdTimeoutAdvance})
	assert.ErrorIs(t, err, ErrPaused)

	notStarted := newLeague("T1", "T2")
	_, _, err = Apply(notStarted, pool, Rules{}, Command{Type: CmdLockPick, ActorID: "T1", PlayerID: "p1"})
	assert.ErrorIs(t, err, ErrWrongTurn)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	l := started(newLeague("T1", "T2"), "T1")

	_, next, err := Apply(l, newPool(4), Rules{}, Command{Type: CmdLockPick, ActorID: "T1", PlayerID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, l.Teams[0].PickedPlayers)
	assert.Equal(t, "T1", l.Round.CurrentTurnOwnerID)
	assert.Equal(t, []string{"p1"}, next.Teams[0].PickedPlayers)
	assert.Equal(t, "T2", next.Round.CurrentTurnOwnerID)
}

func TestApply_TimeoutAdvance(t *testing.T) {
	pool := newPool(5)

	cases := []struct {
		name       string
		wishlist   []string
		taken      []string
		wantPlayer string
	}{
		{name: "wishlist head", wishlist: []string{"p4", "p2"}, wantPlayer: "p4"},
		{name: "wishlist head taken", wishlist: []string{"p4", "p2"}, taken: []string{"p4"}, wantPlayer: "p2"},
		{name: "wishlist exhausted falls back to pool order", wishlist: []string{"p4"}, taken: []string{"p4", "p1"}, wantPlayer: "p2"},
		{name: "wishlist entry outside pool is skipped", wishlist: []string{"ghost"}, wantPlayer: "p1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := started(newLeague("T1", "T2", "T3"), "T2")
			l.Teams[1].Wishlist = tc.wishlist
			l.Teams[0].PickedPlayers = tc.taken

			events, next, err := Apply(l, pool, Rules{}, Command{Type: CmdTimeoutAdvance})
			require.NoError(t, err)
			require.Equal(t, EvtPlayerPicked, events[0].Type)
			assert.True(t, events[0].Auto)
			assert.Equal(t, "T2", events[0].OwnerID)
			assert.Equal(t, tc.wantPlayer, events[0].PlayerID)
			assert.Equal(t, []string{tc.wantPlayer}, next.Teams[1].PickedPlayers)
			assert.Equal(t, "T3", next.Round.CurrentTurnOwnerID)
		})
	}
}

func TestApply_TimeoutAdvance_PoolExhaustedSkips(t *testing.T) {
	l := started(newLeague("T1", "T2"), "T2")
	l.Teams[0].PickedPlayers = []string{"p1", "p2"}

	events, next, err := Apply(l, newPool(2), Rules{}, Command{Type: CmdTimeoutAdvance})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtTurnSkipped))
	assert.False(t, ContainsEvent(events, EvtPlayerPicked))
	assert.Empty(t, next.Teams[1].PickedPlayers)
	// T2 is the endpoint going forward, so it would act again; a skipped turn
	// does not trigger the fairness override but the snake does.
	assert.Equal(t, "T2", next.Round.CurrentTurnOwnerID)
	assert.Equal(t, DirectionReverse, next.Round.TurnDirection)
	assert.False(t, next.Round.Completed)
}

func TestNextTurn_FairnessOverride(t *testing.T) {
	teams := []Team{
		{OwnerID: "T1", PickedPlayers: []string{"a"}},
		{OwnerID: "T2", PickedPlayers: []string{"b", "c", "d"}},
		{OwnerID: "T3", PickedPlayers: []string{"e", "f"}},
	}

	idx, dir, done := NextTurn(teams, 0, DirectionForward, true, 15)
	assert.False(t, done)
	assert.Equal(t, 0, idx, "lagging team picks again")
	assert.Equal(t, DirectionForward, dir)

	idx, _, _ = NextTurn(teams, 0, DirectionForward, false, 15)
	assert.Equal(t, 1, idx, "no re-pick after a skipped turn")

	teams[0].PickedPlayers = []string{"a", "g"}
	idx, _, _ = NextTurn(teams, 0, DirectionForward, true, 15)
	assert.Equal(t, 1, idx, "tie with another team yields the turn")
}

func TestNextTurn_SkipsFullRosters(t *testing.T) {
	teams := []Team{
		{OwnerID: "T1", PickedPlayers: []string{"a"}},
		{OwnerID: "T2", PickedPlayers: []string{"b", "c"}},
		{OwnerID: "T3", PickedPlayers: []string{"d"}},
	}

	idx, dir, done := NextTurn(teams, 0, DirectionForward, false, 2)
	assert.False(t, done)
	assert.Equal(t, 2, idx)
	assert.Equal(t, DirectionForward, dir)
}

func TestNextTurn_SingleTeam(t *testing.T) {
	teams := []Team{{OwnerID: "T1", PickedPlayers: []string{"a"}}}
	idx, _, done := NextTurn(teams, 0, DirectionForward, true, 2)
	assert.False(t, done)
	assert.Equal(t, 0, idx)
}

func TestCompletion_ExactlyWhenAllRostersFull(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pool := newPool(40)
	rules := Rules{RosterCap: 3}
	l := started(newLeague("T1", "T2", "T3", "T4", "T5"), "T1")

	for picks := 0; ; picks++ {
		require.Less(t, picks, 100)
		assert.Equal(t, AllRostersFull(l.Teams, 3), l.Round.Completed)
		if l.Round.Completed {
			assert.Equal(t, 15, picks)
			break
		}

		var cmd Command
		if rng.Intn(3) == 0 {
			cmd = Command{Type: CmdTimeoutAdvance}
		} else {
			holder := l.Round.CurrentTurnOwnerID
			var choice string
			for _, i := range rng.Perm(len(pool)) {
				if IsPickLegal(pool[i].ID, pool, l.Teams) {
					choice = pool[i].ID
					break
				}
			}
			cmd = Command{Type: CmdLockPick, ActorID: holder, PlayerID: choice}
		}

		_, next, err := Apply(l, pool, rules, cmd)
		require.NoError(t, err)
		l = next

		owners := map[string]string{}
		for _, team := range l.Teams {
			for _, id := range team.PickedPlayers {
				prev, dup := owners[id]
				require.False(t, dup, "player %s held by %s and %s", id, prev, team.OwnerID)
				owners[id] = team.OwnerID
			}
		}
	}
}

func TestApply_PauseResume(t *testing.T) {
	l := started(newLeague("owner", "T2"), "T2")

	_, _, err := Apply(l, nil, Rules{}, Command{Type: CmdPause, ActorID: "T2"})
	require.ErrorIs(t, err, ErrNotOwner)

	events, paused, err := Apply(l, nil, Rules{}, Command{Type: CmdPause, ActorID: "owner"})
	require.NoError(t, err)
	assert.True(t, ContainsEvent(events, EvtDraftPaused))
	assert.Equal(t, PhasePaused, DerivePhase(paused.Round))

	_, _, err = Apply(paused, nil, Rules{}, Command{Type: CmdPause, ActorID: "owner"})
	assert.ErrorIs(t, err, ErrPaused)

	_, resumed, err := Apply(paused, nil, Rules{}, Command{Type: CmdResume, ActorID: "owner"})
	require.NoError(t, err)
	assert.False(t, resumed.Round.Paused)
	assert.Equal(t, "T2", resumed.Round.CurrentTurnOwnerID)

	_, _, err = Apply(resumed, nil, Rules{}, Command{Type: CmdResume, ActorID: "owner"})
	assert.ErrorIs(t, err, ErrNotPaused)
}

func TestApply_StartDraft(t *testing.T) {
	l := newLeague("T1", "T2")

	events, next, err := Apply(l, nil, Rules{}, Command{Type: CmdStartDraft, ActorID: "T2"})
	require.NoError(t, err)
	assert.Equal(t, "T2", events[0].OwnerID)
	assert.Equal(t, "T2", next.Round.CurrentTurnOwnerID)

	// a recorded holder is kept
	_, again, err := Apply(next, nil, Rules{}, Command{Type: CmdStartDraft, ActorID: "T1"})
	require.NoError(t, err)
	assert.Equal(t, "T2", again.Round.CurrentTurnOwnerID)

	_, _, err = Apply(l, nil, Rules{}, Command{Type: CmdStartDraft, ActorID: "stranger"})
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestCheckStart(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := newLeague("T1", "T2", "T3", "T4", "T5")
	l.Round.StartDate = now.Add(-time.Minute)

	assert.NoError(t, CheckStart(l, []string{"T1", "T2", "T3"}, now, Rules{}, true))
	assert.ErrorIs(t, CheckStart(l, []string{"T1", "T2"}, now, Rules{}, true), ErrNoQuorum)
	assert.NoError(t, CheckStart(l, []string{"T1"}, now, Rules{}, false))
	assert.ErrorIs(t, CheckStart(l, []string{"T1", "T2", "T3", "spectator"}, now.Add(-2*time.Minute), Rules{}, true), ErrTooEarly)

	l.Round.Paused = true
	assert.ErrorIs(t, CheckStart(l, []string{"T1", "T2", "T3"}, now, Rules{}, true), ErrPaused)
}

func TestFirstConnectedOwner(t *testing.T) {
	l := newLeague("T1", "T2", "T3")
	owner, ok := FirstConnectedOwner(l, []string{"spectator", "T3", "T1"})
	require.True(t, ok)
	assert.Equal(t, "T3", owner)
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("saving pick: %w", ErrPlayerTaken)
	assert.Equal(t, KindConflict, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, ErrPlayerTaken))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal error", PublicMessage(errors.New("boom")))
	assert.Equal(t, ErrPaused.Msg, PublicMessage(ErrPaused))
}
