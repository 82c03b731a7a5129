package session

import (
	"slices"
	"time"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
)

const (
	StatusWaiting   = "waiting for members"
	StatusStarted   = "started"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

type Participant struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"name"`
	ContactEmail  string    `json:"email,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type ChatMessage struct {
	Author  Author    `json:"user"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sentAt"`
}

// Session is the in-memory room of one league's live draft.
type Session struct {
	LeagueID     string          `json:"leagueId"`
	Name         string          `json:"name"`
	Participants []Participant   `json:"users"`
	ChatLog      []ChatMessage   `json:"chats"`
	DraftPool    []engine.Player `json:"playersPool"`
	DraftStarted bool            `json:"draftRoundStarted"`
	DraftStatus  string          `json:"draftRoundStatus"`
}

// Participant returns the participant with the given id.
func (s *Session) Participant(id string) (Participant, bool) {
	if i := s.participantIndex(id); i >= 0 {
		return s.Participants[i], true
	}
	return Participant{}, false
}

func (s *Session) HasParticipant(id string) bool { return s.participantIndex(id) >= 0 }

// AddParticipant appends p unless a participant with the same id is present.
// It reports whether p was added.
func (s *Session) AddParticipant(p Participant) bool {
	if s.HasParticipant(p.ID) {
		return false
	}
	s.Participants = append(s.Participants, p)
	return true
}

// RemoveParticipant drops the participant with the given id and returns it.
func (s *Session) RemoveParticipant(id string) (Participant, bool) {
	i := s.participantIndex(id)
	if i < 0 {
		return Participant{}, false
	}
	p := s.Participants[i]
	s.Participants = slices.Delete(s.Participants, i, i+1)
	return p, true
}

// Touch refreshes the heartbeat of the participant with the given id.
func (s *Session) Touch(id string, at time.Time) bool {
	i := s.participantIndex(id)
	if i < 0 {
		return false
	}
	s.Participants[i].LastHeartbeat = at
	return true
}

// ParticipantIDs lists participant ids in join order.
func (s *Session) ParticipantIDs() []string {
	ids := make([]string, len(s.Participants))
	for i, p := range s.Participants {
		ids[i] = p.ID
	}
	return ids
}

func (s *Session) participantIndex(id string) int {
	for i, p := range s.Participants {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy; the registry never hands out its own slices.
func (s Session) Clone() Session {
	s.Participants = slices.Clone(s.Participants)
	s.ChatLog = slices.Clone(s.ChatLog)
	s.DraftPool = slices.Clone(s.DraftPool)
	return s
}
