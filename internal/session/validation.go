package session

// Validate checks the structural well-formedness of a session before it is
// stored.
func (s *Session) Validate() error {
	if s.LeagueID == "" {
		return invalid("leagueId is required")
	}
	if s.Name == "" {
		return invalid("name is required")
	}
	seen := make(map[string]bool, len(s.Participants))
	for _, p := range s.Participants {
		if p.ID == "" {
			return invalid("participant id is required")
		}
		if seen[p.ID] {
			return invalid("duplicate participant " + p.ID)
		}
		seen[p.ID] = true
	}
	for _, c := range s.ChatLog {
		if c.Author.ID == "" {
			return invalid("chat author is required")
		}
		if c.Message == "" {
			return invalid("chat message is required")
		}
		if c.SentAt.IsZero() {
			return invalid("chat timestamp is required")
		}
	}
	for _, p := range s.DraftPool {
		if p.ID == "" || p.Name == "" {
			return invalid("draft pool player needs an id and a name")
		}
	}
	return nil
}
