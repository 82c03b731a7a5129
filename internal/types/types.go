package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
)

// Client -> server events.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventHeartbeat   = "heartbeat"
	EventChat        = "chat"
	EventPickPlayer  = "pick-player"
	EventPauseDraft  = "pause-draft"
	EventResumeDraft = "resume-draft"
	EventGetRoom     = "get-room"
)

// Server -> client events.
const (
	EventJoinedRoom   = "joined-room"
	EventLeftRoom     = "left-room"
	EventUsersChange  = "users-change"
	EventNotification = "notification"
	EventTurnUpdate   = "turn-update"
	EventPlayerPicked = "player-picked"
	EventRoundStatus  = "round-status"
	EventError        = "error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode frames payload under the given event name.
func Encode(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Type: event, Payload: raw})
}

type RoomRequest struct {
	LeagueID      string `json:"leagueId"`
	ParticipantID string `json:"participantId"`
}

func (r RoomRequest) Validate() error {
	if strings.TrimSpace(r.LeagueID) == "" {
		return missing("leagueId")
	}
	if strings.TrimSpace(r.ParticipantID) == "" {
		return missing("participantId")
	}
	return nil
}

type JoinRequest struct {
	RoomRequest
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type ChatRequest struct {
	RoomRequest
	Message string `json:"message"`
}

func (r ChatRequest) Validate() error {
	if err := r.RoomRequest.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Message) == "" {
		return engine.ErrEmptyMessage
	}
	return nil
}

type PickRequest struct {
	RoomRequest
	PlayerID string `json:"playerId"`
}

func (r PickRequest) Validate() error {
	if err := r.RoomRequest.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.PlayerID) == "" {
		return missing("playerId")
	}
	return nil
}

type validator interface{ Validate() error }

// DecodeRequest parses and validates the payload of a client event. The result
// is one of RoomRequest, JoinRequest, ChatRequest or PickRequest.
func DecodeRequest(env Envelope) (any, error) {
	var req validator
	switch env.Type {
	case EventJoinRoom:
		req = &JoinRequest{}
	case EventChat:
		req = &ChatRequest{}
	case EventPickPlayer:
		req = &PickRequest{}
	case EventLeaveRoom, EventHeartbeat, EventPauseDraft, EventResumeDraft, EventGetRoom:
		req = &RoomRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", engine.ErrUnsupportedEvent, env.Type)
	}

	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("%w: payload", engine.ErrMissingField)
	}
	if err := json.Unmarshal(env.Payload, req); err != nil {
		return nil, engine.E(engine.KindInvalidInput, "malformed payload")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case *JoinRequest:
		return *r, nil
	case *ChatRequest:
		return *r, nil
	case *PickRequest:
		return *r, nil
	case *RoomRequest:
		return *r, nil
	}
	return nil, fmt.Errorf("%w: %q", engine.ErrUnsupportedEvent, env.Type)
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", engine.ErrMissingField, field)
}

// JoinedRoom acknowledges a join with the room snapshot.
type JoinedRoom struct {
	LeagueID     string                `json:"leagueId"`
	Name         string                `json:"name"`
	Chats        []session.ChatMessage `json:"chats"`
	Users        []session.Participant `json:"users"`
	PlayersPool  []engine.Player       `json:"playersPool"`
	DraftStarted bool                  `json:"draftRoundStarted"`
	DraftStatus  string                `json:"draftRoundStatus"`
}

func NewJoinedRoom(s session.Session) JoinedRoom {
	return JoinedRoom{
		LeagueID:     s.LeagueID,
		Name:         s.Name,
		Chats:        s.ChatLog,
		Users:        s.Participants,
		PlayersPool:  s.DraftPool,
		DraftStarted: s.DraftStarted,
		DraftStatus:  s.DraftStatus,
	}
}

type LeftRoom struct {
	LeagueID string `json:"leagueId"`
}

type UsersChange struct {
	LeagueID string                `json:"leagueId"`
	Users    []session.Participant `json:"users"`
}

type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Chat struct {
	LeagueID string              `json:"leagueId"`
	Chat     session.ChatMessage `json:"chat"`
}

// TurnUpdate announces the turn holder. Clients count down from DurationSec;
// the server deadline is authoritative.
type TurnUpdate struct {
	LeagueID    string           `json:"leagueId"`
	OwnerID     string           `json:"ownerId"`
	OwnerName   string           `json:"ownerName"`
	Direction   engine.Direction `json:"direction"`
	Deadline    time.Time        `json:"deadline"`
	DurationSec int              `json:"durationSec"`
}

type PlayerPicked struct {
	LeagueID   string `json:"leagueId"`
	OwnerID    string `json:"ownerId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Auto       bool   `json:"auto"`
}

type RoundStatus struct {
	LeagueID  string       `json:"leagueId"`
	Status    string       `json:"status"`
	Phase     engine.Phase `json:"phase"`
	Started   bool         `json:"started"`
	Paused    bool         `json:"paused"`
	Completed bool         `json:"completed"`
}

type Error struct {
	Code    engine.Kind `json:"code"`
	Message string      `json:"message"`
	Request string      `json:"request,omitempty"`
}

// NewError renders err for the client that sent request.
func NewError(request string, err error) Error {
	return Error{
		Code:    engine.KindOf(err),
		Message: engine.PublicMessage(err),
		Request: request,
	}
}
