package engine

// NextTurn picks the team that acts after the team at current, walking the
// team list in snake order: forward to the last index, then back to the first,
// flipping direction at each end so the endpoint team acts twice in a row.
// Teams whose roster is full are passed over.
//
// A team that just picked and is still strictly behind every other team keeps
// the turn. The bound is its deficit: each re-pick closes the gap by one, and a
// turn on which nothing was picked never repeats.
func NextTurn(teams []Team, current int, dir Direction, picked bool, rosterCap int) (int, Direction, bool) {
	n := len(teams)
	if n == 0 || AllRostersFull(teams, rosterCap) {
		return -1, dir, true
	}
	if dir == "" {
		dir = DirectionForward
	}

	if current < 0 || current >= n {
		current, dir = -1, DirectionForward
	} else if picked && len(teams[current].PickedPlayers) < rosterCap && strictlyBehind(teams, current) {
		return current, dir, false
	}

	i := current
	for step := 0; step < 2*n+1; step++ {
		i, dir = snakeStep(i, dir, n)
		if len(teams[i].PickedPlayers) < rosterCap {
			return i, dir, false
		}
	}
	// unreachable: at least one roster has room
	return -1, dir, true
}

func snakeStep(i int, dir Direction, n int) (int, Direction) {
	if dir == DirectionReverse {
		if i <= 0 {
			return 0, DirectionForward
		}
		return i - 1, DirectionReverse
	}
	if i >= n-1 {
		return n - 1, DirectionReverse
	}
	return i + 1, DirectionForward
}

func strictlyBehind(teams []Team, idx int) bool {
	if len(teams) < 2 {
		return false
	}
	own := len(teams[idx].PickedPlayers)
	for i, t := range teams {
		if i != idx && len(t.PickedPlayers) <= own {
			return false
		}
	}
	return true
}

// AllRostersFull reports whether every team holds rosterCap players.
func AllRostersFull(teams []Team, rosterCap int) bool {
	if len(teams) == 0 {
		return false
	}
	for _, t := range teams {
		if len(t.PickedPlayers) < rosterCap {
			return false
		}
	}
	return true
}
