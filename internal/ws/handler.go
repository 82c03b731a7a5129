package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/draft"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/types"
)

type Options struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	OutboxSize     int
	OriginPatterns []string
}

func (o Options) withDefaults() Options {
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 2 * time.Minute
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.OutboxSize <= 0 {
		o.OutboxSize = 64
	}
	return o
}

// client is the draft.Conn of one websocket.
type client struct {
	id     string
	out    chan []byte
	closed chan struct{}
	once   sync.Once
	log    *zap.Logger
}

func newClient(size int, log *zap.Logger) *client {
	id := uuid.NewString()
	return &client{
		id:     id,
		out:    make(chan []byte, size),
		closed: make(chan struct{}),
		log:    log.With(zap.String("conn_id", id)),
	}
}

func (c *client) ID() string { return c.id }

func (c *client) Send(event string, payload any) {
	frame, err := types.Encode(event, payload)
	if err != nil {
		c.log.Error("failed to encode message", zap.String("event", event), zap.Error(err))
		return
	}
	c.sendFrame(frame)
}

func (c *client) sendFrame(frame []byte) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.out <- frame:
	default:
		// Client is slow/full - drop them.
		c.log.Warn("dropping slow connection")
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.closed) })
}

func (c *client) writeLoop(ctx context.Context, conn *websocket.Conn, timeout time.Duration) {
	defer c.close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case frame := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}
		}
	}
}

type handler struct {
	orch  *draft.Orchestrator
	rooms *Rooms
	opts  Options
	log   *zap.Logger
}

// Handler upgrades the request to a websocket and serves draft room events on
// it until the client goes away.
func Handler(orch *draft.Orchestrator, rooms *Rooms, opts Options, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{orch: orch, rooms: rooms, opts: opts.withDefaults(), log: log}
	return h.serveHTTP
}

func (h *handler) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	c := newClient(h.opts.OutboxSize, h.log)
	c.log.Debug("connection opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// rooms this connection joined: league id -> participant id
	joined := make(map[string]string)
	defer h.disconnect(c, joined)

	go func() {
		c.writeLoop(ctx, conn, h.opts.WriteTimeout)
		cancel()
	}()

	for {
		rctx, rcancel := context.WithTimeout(ctx, h.opts.ReadTimeout)
		_, data, err := conn.Read(rctx)
		rcancel()
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.log.Debug("connection closed by client")
			default:
				c.log.Debug("read failed", zap.Error(err))
			}
			return
		}
		h.serve(ctx, c, data, joined)
	}
}

// serve handles one inbound frame. Errors go back to this connection only.
func (h *handler) serve(ctx context.Context, c *client, data []byte, joined map[string]string) {
	var env types.Envelope
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panicked", zap.String("event", env.Type), zap.Any("panic", r), zap.Stack("stack"))
			c.Send(types.EventError, types.NewError(env.Type, engine.E(engine.KindInternal, "internal error")))
		}
	}()

	if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
		c.Send(types.EventError, types.NewError("", engine.E(engine.KindInvalidInput, "malformed message")))
		return
	}

	req, err := types.DecodeRequest(env)
	if err == nil {
		err = h.dispatch(ctx, c, env.Type, req, joined)
	}
	if err != nil {
		if engine.KindOf(err) == engine.KindInternal {
			c.log.Error("request failed", zap.String("event", env.Type), zap.Error(err))
		} else {
			c.log.Debug("request rejected", zap.String("event", env.Type), zap.Error(err))
		}
		c.Send(types.EventError, types.NewError(env.Type, err))
	}
}

func (h *handler) dispatch(ctx context.Context, c *client, event string, req any, joined map[string]string) error {
	switch r := req.(type) {
	case types.JoinRequest:
		if err := h.orch.Join(ctx, c, r); err != nil {
			return err
		}
		joined[r.LeagueID] = r.ParticipantID
		return nil
	case types.ChatRequest:
		if err := joinedAs(joined, r.RoomRequest); err != nil {
			return err
		}
		return h.orch.Chat(ctx, r)
	case types.PickRequest:
		if err := joinedAs(joined, r.RoomRequest); err != nil {
			return err
		}
		return h.orch.Pick(ctx, r)
	case types.RoomRequest:
		if err := joinedAs(joined, r); err != nil {
			return err
		}
		switch event {
		case types.EventLeaveRoom:
			delete(joined, r.LeagueID)
			return h.orch.Leave(ctx, c, r)
		case types.EventHeartbeat:
			return h.orch.Heartbeat(ctx, r)
		case types.EventPauseDraft:
			return h.orch.Pause(ctx, r)
		case types.EventResumeDraft:
			return h.orch.Resume(ctx, r)
		case types.EventGetRoom:
			return h.orch.GetRoom(ctx, c, r)
		}
	}
	return engine.ErrUnsupportedEvent
}

// joinedAs rejects requests made on behalf of anyone but the participant this
// connection joined the league as.
func joinedAs(joined map[string]string, r types.RoomRequest) error {
	if id, ok := joined[r.LeagueID]; !ok || id != r.ParticipantID {
		return engine.ErrNotJoined
	}
	return nil
}

// disconnect leaves every room the connection joined.
func (h *handler) disconnect(c *client, joined map[string]string) {
	c.close()
	h.rooms.Forget(c)

	ctx, cancel := context.WithTimeout(context.Background(), h.opts.WriteTimeout)
	defer cancel()
	for leagueID, participantID := range joined {
		if err := h.orch.Leave(ctx, nil, types.RoomRequest{LeagueID: leagueID, ParticipantID: participantID}); err != nil {
			c.log.Warn("leave on disconnect failed", zap.String("league_id", leagueID), zap.Error(err))
		}
	}
	c.log.Debug("connection closed", zap.Int("rooms_left", len(joined)))
}
