package engine

import (
	"fmt"
	"time"
)

const (
	RosterCap           = 15
	DefaultTurnDuration = 120 * time.Second
	QuorumPercent       = 60
)

type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseActive     Phase = "active"
	PhasePaused     Phase = "paused"
	PhaseCompleted  Phase = "completed"
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Team struct {
	OwnerID       string   `json:"ownerId"`
	OwnerName     string   `json:"ownerName"`
	PickedPlayers []string `json:"pickedPlayers"`
	Wishlist      []string `json:"wishlist"`
}

type DraftRound struct {
	StartDate          time.Time `json:"startDate"`
	Completed          bool      `json:"completed"`
	Paused             bool      `json:"paused"`
	CurrentTurnOwnerID string    `json:"currentTurnOwnerId"`
	TurnDirection      Direction `json:"turnDirection"`
}

// League is the durable draft state of one league. Version is the optimistic
// concurrency token of the backing store.
type League struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	OwnerID string     `json:"ownerId"`
	Teams   []Team     `json:"teams"`
	Round   DraftRound `json:"draftRound"`
	Version int64      `json:"version"`
}

type Rules struct {
	RosterCap     int
	QuorumPercent int
}

type CommandType string

const (
	CmdStartDraft     CommandType = "StartDraft"
	CmdLockPick       CommandType = "LockPick"
	CmdTimeoutAdvance CommandType = "TimeoutAdvance"
	CmdPause          CommandType = "Pause"
	CmdResume         CommandType = "Resume"
)

/*
	CmdStartDraft     -> EvtDraftStarted
	CmdLockPick       -> EvtPlayerPicked -> EvtTurnAdvanced | EvtDraftCompleted
	CmdTimeoutAdvance -> EvtPlayerPicked(auto) | EvtTurnSkipped -> EvtTurnAdvanced | EvtDraftCompleted
	CmdPause          -> EvtDraftPaused
	CmdResume         -> EvtDraftResumed
*/

type Command struct {
	Type     CommandType
	ActorID  string // participant issuing the command; empty for the timer
	PlayerID string
}

type EventType string

const (
	EvtDraftStarted   EventType = "DraftStarted"
	EvtPlayerPicked   EventType = "PlayerPicked"
	EvtTurnSkipped    EventType = "TurnSkipped"
	EvtTurnAdvanced   EventType = "TurnAdvanced"
	EvtDraftCompleted EventType = "DraftCompleted"
	EvtDraftPaused    EventType = "DraftPaused"
	EvtDraftResumed   EventType = "DraftResumed"
)

type Event struct {
	Type      EventType
	OwnerID   string
	PlayerID  string
	Auto      bool
	Direction Direction
}

// Apply validates cmd against the league and returns the resulting events and
// the new league state. The input league is never mutated.
func Apply(l League, pool []Player, rules Rules, cmd Command) ([]Event, League, error) {
	rules = rules.withDefaults()

	if l.Round.Completed {
		return nil, l, ErrAlreadyCompleted
	}

	switch cmd.Type {
	case CmdStartDraft:
		if l.Round.Paused {
			return nil, l, ErrPaused
		}
		next := l.Clone()
		if next.Round.CurrentTurnOwnerID == "" {
			if next.TeamIndex(cmd.ActorID) < 0 {
				return nil, l, ErrTeamNotFound
			}
			next.Round.CurrentTurnOwnerID = cmd.ActorID
			next.Round.TurnDirection = DirectionForward
		}
		if next.Round.TurnDirection == "" {
			next.Round.TurnDirection = DirectionForward
		}
		return []Event{{Type: EvtDraftStarted, OwnerID: next.Round.CurrentTurnOwnerID, Direction: next.Round.TurnDirection}}, next, nil

	case CmdLockPick:
		if l.Round.Paused {
			return nil, l, ErrPaused
		}
		if l.Round.CurrentTurnOwnerID == "" || l.Round.CurrentTurnOwnerID != cmd.ActorID {
			return nil, l, ErrWrongTurn
		}
		idx := l.TeamIndex(cmd.ActorID)
		if idx < 0 {
			return nil, l, ErrTeamNotFound
		}
		if len(l.Teams[idx].PickedPlayers) >= rules.RosterCap {
			return nil, l, ErrRosterFull
		}
		if err := CheckPick(cmd.PlayerID, pool, l.Teams); err != nil {
			return nil, l, err
		}

		next := l.Clone()
		next.Teams[idx].PickedPlayers = append(next.Teams[idx].PickedPlayers, cmd.PlayerID)
		events := []Event{{Type: EvtPlayerPicked, OwnerID: cmd.ActorID, PlayerID: cmd.PlayerID}}
		events = append(events, advance(&next, idx, true, rules))
		return events, next, nil

	case CmdTimeoutAdvance:
		if l.Round.Paused {
			return nil, l, ErrPaused
		}
		idx := l.TeamIndex(l.Round.CurrentTurnOwnerID)
		if idx < 0 {
			return nil, l, ErrNoTurnHolder
		}

		next := l.Clone()
		team := &next.Teams[idx]
		var events []Event
		picked := false
		if len(team.PickedPlayers) < rules.RosterCap {
			if playerID, ok := ChooseAutoPick(*team, pool, next.Teams); ok {
				team.PickedPlayers = append(team.PickedPlayers, playerID)
				events = append(events, Event{Type: EvtPlayerPicked, OwnerID: team.OwnerID, PlayerID: playerID, Auto: true})
				picked = true
			}
		}
		if !picked {
			events = append(events, Event{Type: EvtTurnSkipped, OwnerID: team.OwnerID})
		}
		events = append(events, advance(&next, idx, picked, rules))
		return events, next, nil

	case CmdPause:
		if cmd.ActorID != l.OwnerID {
			return nil, l, ErrNotOwner
		}
		if l.Round.Paused {
			return nil, l, ErrPaused
		}
		next := l.Clone()
		next.Round.Paused = true
		return []Event{{Type: EvtDraftPaused, OwnerID: next.Round.CurrentTurnOwnerID}}, next, nil

	case CmdResume:
		if cmd.ActorID != l.OwnerID {
			return nil, l, ErrNotOwner
		}
		if !l.Round.Paused {
			return nil, l, ErrNotPaused
		}
		next := l.Clone()
		next.Round.Paused = false
		return []Event{{Type: EvtDraftResumed, OwnerID: next.Round.CurrentTurnOwnerID}}, next, nil

	default:
		return nil, l, fmt.Errorf("%w: %s", ErrUnsupportedEvent, cmd.Type)
	}
}

// advance moves the turn away from the team at idx and reports the outcome.
func advance(l *League, idx int, picked bool, rules Rules) Event {
	nextIdx, dir, completed := NextTurn(l.Teams, idx, l.Round.TurnDirection, picked, rules.RosterCap)
	if completed {
		l.Round.Completed = true
		l.Round.CurrentTurnOwnerID = ""
		return Event{Type: EvtDraftCompleted}
	}
	l.Round.CurrentTurnOwnerID = l.Teams[nextIdx].OwnerID
	l.Round.TurnDirection = dir
	return Event{Type: EvtTurnAdvanced, OwnerID: l.Round.CurrentTurnOwnerID, Direction: dir}
}

// CheckStart evaluates the start/resume guard. connected lists participant ids
// currently in the room. Quorum is only enforced when requireQuorum is set.
func CheckStart(l League, connected []string, now time.Time, rules Rules, requireQuorum bool) error {
	rules = rules.withDefaults()
	if l.Round.Completed {
		return ErrAlreadyCompleted
	}
	if now.Before(l.Round.StartDate) {
		return ErrTooEarly
	}
	if l.Round.Paused {
		return ErrPaused
	}
	if requireQuorum && !HasQuorum(l, connected, rules.QuorumPercent) {
		return ErrNoQuorum
	}
	return nil
}

// HasQuorum reports whether at least percent% of the league's teams have their
// owner connected.
func HasQuorum(l League, connected []string, percent int) bool {
	if len(l.Teams) == 0 {
		return false
	}
	present := 0
	for _, t := range l.Teams {
		if contains(connected, t.OwnerID) {
			present++
		}
	}
	return present*100 >= percent*len(l.Teams)
}

// FirstConnectedOwner returns the first connected participant who owns a team.
func FirstConnectedOwner(l League, connected []string) (string, bool) {
	for _, id := range connected {
		if l.TeamIndex(id) >= 0 {
			return id, true
		}
	}
	return "", false
}

func (r Rules) withDefaults() Rules {
	if r.RosterCap <= 0 {
		r.RosterCap = RosterCap
	}
	if r.QuorumPercent <= 0 {
		r.QuorumPercent = QuorumPercent
	}
	return r
}
