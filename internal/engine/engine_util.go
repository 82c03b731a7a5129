package engine

import "slices"

// DerivePhase maps the durable round fields onto the draft state machine.
func DerivePhase(r DraftRound) Phase {
	switch {
	case r.Completed:
		return PhaseCompleted
	case r.Paused:
		return PhasePaused
	case r.CurrentTurnOwnerID != "":
		return PhaseActive
	default:
		return PhaseNotStarted
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// TeamIndex returns the turn-order index of the team owned by ownerID, or -1.
func (l League) TeamIndex(ownerID string) int {
	if ownerID == "" {
		return -1
	}
	for i, t := range l.Teams {
		if t.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

func (l League) Team(ownerID string) (Team, bool) {
	if i := l.TeamIndex(ownerID); i >= 0 {
		return l.Teams[i], true
	}
	return Team{}, false
}

// Clone returns a deep copy so callers can mutate rosters freely.
func (l League) Clone() League {
	out := l
	out.Teams = make([]Team, len(l.Teams))
	for i, t := range l.Teams {
		t.PickedPlayers = slices.Clone(t.PickedPlayers)
		t.Wishlist = slices.Clone(t.Wishlist)
		out.Teams[i] = t
	}
	return out
}

func contains(ids []string, id string) bool {
	return slices.Contains(ids, id)
}
