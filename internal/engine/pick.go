package engine

// IsPickLegal reports whether playerID is in the pool and not on any roster.
func IsPickLegal(playerID string, pool []Player, teams []Team) bool {
	return CheckPick(playerID, pool, teams) == nil
}

// CheckPick is IsPickLegal with the reason for rejection.
func CheckPick(playerID string, pool []Player, teams []Team) error {
	if !inPool(pool, playerID) {
		return ErrPlayerNotInPool
	}
	if hasPick(teams, playerID) {
		return ErrPlayerTaken
	}
	return nil
}

// ChooseAutoPick returns the first legal player from the team's wishlist, or
// failing that the first legal player in pool order.
func ChooseAutoPick(team Team, pool []Player, teams []Team) (string, bool) {
	for _, id := range team.Wishlist {
		if IsPickLegal(id, pool, teams) {
			return id, true
		}
	}
	for _, p := range pool {
		if !hasPick(teams, p.ID) {
			return p.ID, true
		}
	}
	return "", false
}

func inPool(pool []Player, id string) bool {
	for _, p := range pool {
		if p.ID == id {
			return true
		}
	}
	return false
}

func hasPick(teams []Team, id string) bool {
	for _, t := range teams {
		if contains(t.PickedPlayers, id) {
			return true
		}
	}
	return false
}
