package lobby

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/types"
)

// ErrClosed is returned to callers whose message reached a lobby that has shut
// down.
var ErrClosed = engine.E(engine.KindConflict, "draft room is closing, try again")

// Broadcaster fans an event out to every connection in a league's room.
type Broadcaster interface {
	Broadcast(leagueID, event string, payload any)
}

type Msg interface{ isLobbyMsg() }

// TryStart evaluates the start/resume guard.
type TryStart struct {
	Reply chan error
}

func (TryStart) isLobbyMsg() {}

type Pick struct {
	ParticipantID string
	PlayerID      string
	Reply         chan error
}

func (Pick) isLobbyMsg() {}

type Pause struct {
	ParticipantID string
	Reply         chan error
}

func (Pause) isLobbyMsg() {}

type Resume struct {
	ParticipantID string
	Reply         chan error
}

func (Resume) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type timerFired struct{ gen uint64 }

func (timerFired) isLobbyMsg() {}

// View describes the countdown owned by the lobby.
type View struct {
	LeagueID   string
	TimerArmed bool
	Holder     string
	Deadline   time.Time
	Generation uint64
}

// Deps are the collaborators shared by every lobby of the process.
type Deps struct {
	Store        store.LeagueStore
	Sessions     *session.Registry
	Broadcaster  Broadcaster
	Rules        engine.Rules
	TurnDuration time.Duration
	StoreTimeout time.Duration
	Now          func() time.Time
	Log          *zap.Logger
}

func (d Deps) withDefaults() Deps {
	if d.TurnDuration <= 0 {
		d.TurnDuration = engine.DefaultTurnDuration
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = 5 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return d
}

// Lobby is the single writer of one league's draft state. Every mutating
// operation, the countdown included, runs on its goroutine.
type Lobby struct {
	leagueID string
	deps     Deps
	log      *zap.Logger
	inbox    chan Msg
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc

	timer    *time.Timer
	gen      uint64 // bumped whenever the countdown is armed or cancelled
	holder   string
	deadline time.Time
	armed    engine.League // league state the countdown was armed with
}

func NewLobby(parent context.Context, leagueID string, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	deps = deps.withDefaults()

	l := &Lobby{
		leagueID: leagueID,
		deps:     deps,
		log:      deps.Log.With(zap.String("league_id", leagueID)),
		inbox:    make(chan Msg, 64),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			l.stopTimer()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case TryStart:
				reply(msg.Reply, l.guard("start", l.tryStart))

			case Pick:
				reply(msg.Reply, l.guard("pick", func() error {
					return l.pick(msg.ParticipantID, msg.PlayerID)
				}))

			case Pause:
				reply(msg.Reply, l.guard("pause", func() error {
					return l.pause(msg.ParticipantID)
				}))

			case Resume:
				reply(msg.Reply, l.guard("resume", func() error {
					return l.resume(msg.ParticipantID)
				}))

			case timerFired:
				_ = l.guard("timer", func() error {
					l.onTimer(msg.gen)
					return nil
				})

			case GetState:
				msg.Reply <- View{
					LeagueID:   l.leagueID,
					TimerArmed: l.timer != nil,
					Holder:     l.holder,
					Deadline:   l.deadline,
					Generation: l.gen,
				}

			case Shutdown:
				l.stopTimer()
				l.cancel()
				return
			}
		}
	}
}

// guard keeps a panicking handler from taking the lobby down.
func (l *Lobby) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("lobby handler panicked",
				zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("lobby %s: panic: %v", op, r)
		}
	}()
	return fn()
}

func reply(ch chan error, err error) {
	if ch != nil {
		ch <- err
	}
}

func (l *Lobby) tryStart() error {
	ctx, cancel := l.storeCtx()
	defer cancel()

	league, sess, err := l.load(ctx)
	if err != nil {
		return err
	}

	// Already counting down: bring late joiners up to date only.
	if l.timer != nil && l.holder == league.Round.CurrentTurnOwnerID {
		l.announceTurn(league, l.deadline)
		return nil
	}

	next, running, err := l.begin(league, sess.ParticipantIDs())
	if err != nil {
		return err
	}
	if !running {
		return nil
	}
	if next.Round.CurrentTurnOwnerID != league.Round.CurrentTurnOwnerID {
		if err := l.save(ctx, "start", league, store.DraftChange{Round: next.Round}); err != nil {
			return err
		}
	}
	l.enterActive(next)
	return nil
}

// begin runs the start guard. Quorum only gates a round that has never had a
// turn holder; otherwise the recorded holder resumes.
func (l *Lobby) begin(league engine.League, connected []string) (engine.League, bool, error) {
	firstStart := league.Round.CurrentTurnOwnerID == ""
	if err := engine.CheckStart(league, connected, l.deps.Now(), l.deps.Rules, firstStart); err != nil {
		return league, false, err
	}
	if !firstStart {
		return league, true, nil
	}

	first, ok := engine.FirstConnectedOwner(league, connected)
	if !ok {
		return league, false, engine.ErrNoQuorum
	}
	_, next, err := engine.Apply(league, nil, l.deps.Rules, engine.Command{Type: engine.CmdStartDraft, ActorID: first})
	if err != nil {
		return league, false, err
	}
	return next, true, nil
}

func (l *Lobby) pick(participantID, playerID string) error {
	ctx, cancel := l.storeCtx()
	defer cancel()

	league, sess, err := l.load(ctx)
	if err != nil {
		return err
	}

	events, next, err := engine.Apply(league, sess.DraftPool, l.deps.Rules, engine.Command{
		Type:     engine.CmdLockPick,
		ActorID:  participantID,
		PlayerID: playerID,
	})
	if err != nil {
		return err
	}
	if !sess.HasParticipant(participantID) {
		return engine.ErrNotInSession
	}

	change := store.DraftChange{
		Pick:  &store.PickRecord{OwnerID: participantID, PlayerID: playerID, PickedAt: l.deps.Now()},
		Round: next.Round,
	}
	if err := l.save(ctx, "pick", league, change); err != nil {
		return err
	}

	l.stopTimer()
	l.publish(next, sess, events)
	return nil
}

func (l *Lobby) onTimer(gen uint64) {
	if gen != l.gen || l.timer == nil {
		l.log.Debug("dropping stale countdown", zap.Uint64("gen", gen), zap.Uint64("current", l.gen))
		return
	}
	l.timer = nil

	ctx, cancel := l.storeCtx()
	defer cancel()

	league, sess, err := l.load(ctx)
	if errors.Is(err, engine.ErrSessionNotFound) || errors.Is(err, engine.ErrLeagueNotFound) {
		l.log.Debug("countdown expired for a closed room", zap.Error(err))
		return
	}
	if err != nil {
		// Nothing was applied; retry the same turn on a fresh countdown.
		l.log.Warn("countdown expired but draft could not be loaded", zap.Error(err))
		l.armTimer(l.armed)
		return
	}
	if phase := engine.DerivePhase(league.Round); phase != engine.PhaseActive {
		l.log.Debug("countdown expired outside an active round", zap.String("phase", string(phase)))
		return
	}

	events, next, err := engine.Apply(league, sess.DraftPool, l.deps.Rules, engine.Command{Type: engine.CmdTimeoutAdvance})
	if err != nil {
		l.log.Warn("countdown expired but turn could not advance", zap.Error(err))
		return
	}

	change := store.DraftChange{Round: next.Round}
	for _, e := range events {
		if e.Type == engine.EvtPlayerPicked {
			change.Pick = &store.PickRecord{OwnerID: e.OwnerID, PlayerID: e.PlayerID, Auto: true, PickedAt: l.deps.Now()}
		}
	}
	if err := l.save(ctx, "auto-pick", league, change); err != nil {
		// Nothing was applied; the same holder gets a fresh countdown.
		l.armTimer(league)
		return
	}
	l.log.Info("countdown expired",
		zap.String("holder", league.Round.CurrentTurnOwnerID),
		zap.Bool("auto_picked", engine.ContainsEvent(events, engine.EvtPlayerPicked)))
	l.publish(next, sess, events)
}

func (l *Lobby) pause(participantID string) error {
	ctx, cancel := l.storeCtx()
	defer cancel()

	league, _, err := l.load(ctx)
	if err != nil {
		return err
	}
	_, next, err := engine.Apply(league, nil, l.deps.Rules, engine.Command{Type: engine.CmdPause, ActorID: participantID})
	if err != nil {
		return err
	}
	if err := l.save(ctx, "pause", league, store.DraftChange{Round: next.Round}); err != nil {
		return err
	}

	l.stopTimer()
	l.setStatus(session.StatusPaused, next.Round.CurrentTurnOwnerID != "")
	l.broadcastStatus(next, session.StatusPaused)
	return nil
}

func (l *Lobby) resume(participantID string) error {
	ctx, cancel := l.storeCtx()
	defer cancel()

	league, sess, err := l.load(ctx)
	if err != nil {
		return err
	}
	_, next, err := engine.Apply(league, nil, l.deps.Rules, engine.Command{Type: engine.CmdResume, ActorID: participantID})
	if err != nil {
		return err
	}

	started, running, startErr := l.begin(next, sess.ParticipantIDs())
	if running {
		next = started
	}
	if err := l.save(ctx, "resume", league, store.DraftChange{Round: next.Round}); err != nil {
		return err
	}

	if running {
		l.enterActive(next)
		return nil
	}
	l.log.Debug("draft resumed but cannot run yet", zap.Error(startErr))
	l.setStatus(session.StatusWaiting, false)
	l.broadcastStatus(next, session.StatusWaiting)
	return nil
}

// publish broadcasts the outcome of an applied turn.
func (l *Lobby) publish(next engine.League, sess session.Session, events []engine.Event) {
	for _, e := range events {
		switch e.Type {
		case engine.EvtPlayerPicked:
			l.deps.Broadcaster.Broadcast(l.leagueID, types.EventPlayerPicked, types.PlayerPicked{
				LeagueID:   l.leagueID,
				OwnerID:    e.OwnerID,
				PlayerID:   e.PlayerID,
				PlayerName: playerName(sess.DraftPool, e.PlayerID),
				Auto:       e.Auto,
			})

		case engine.EvtTurnSkipped:
			l.deps.Broadcaster.Broadcast(l.leagueID, types.EventNotification, types.Notification{
				Title:       "Turn skipped",
				Description: fmt.Sprintf("%s had no eligible player left", ownerName(next, e.OwnerID)),
			})

		case engine.EvtTurnAdvanced:
			l.armTimer(next)

		case engine.EvtDraftCompleted:
			l.stopTimer()
			l.setStatus(session.StatusCompleted, true)
			l.broadcastStatus(next, session.StatusCompleted)
			l.log.Info("draft completed")
		}
	}
}

func (l *Lobby) enterActive(league engine.League) {
	l.setStatus(session.StatusStarted, true)
	l.broadcastStatus(league, session.StatusStarted)
	l.armTimer(league)
}

// armTimer replaces any pending countdown with a fresh one for the league's
// turn holder.
func (l *Lobby) armTimer(league engine.League) {
	l.stopTimer()

	gen := l.gen
	l.armed = league
	l.holder = league.Round.CurrentTurnOwnerID
	l.deadline = l.deps.Now().Add(l.deps.TurnDuration)
	l.timer = time.AfterFunc(l.deps.TurnDuration, func() {
		select {
		case l.inbox <- timerFired{gen: gen}:
		case <-l.done:
		}
	})
	l.announceTurn(league, l.deadline)
}

func (l *Lobby) stopTimer() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.gen++
	l.holder = ""
	l.deadline = time.Time{}
}

func (l *Lobby) announceTurn(league engine.League, deadline time.Time) {
	owner := league.Round.CurrentTurnOwnerID
	l.deps.Broadcaster.Broadcast(l.leagueID, types.EventTurnUpdate, types.TurnUpdate{
		LeagueID:    l.leagueID,
		OwnerID:     owner,
		OwnerName:   ownerName(league, owner),
		Direction:   league.Round.TurnDirection,
		Deadline:    deadline,
		DurationSec: int(l.deps.TurnDuration / time.Second),
	})
}

func (l *Lobby) broadcastStatus(league engine.League, status string) {
	phase := engine.DerivePhase(league.Round)
	l.deps.Broadcaster.Broadcast(l.leagueID, types.EventRoundStatus, types.RoundStatus{
		LeagueID:  l.leagueID,
		Status:    status,
		Phase:     phase,
		Started:   league.Round.CurrentTurnOwnerID != "" || phase == engine.PhaseCompleted,
		Paused:    phase == engine.PhasePaused,
		Completed: phase == engine.PhaseCompleted,
	})
}

func (l *Lobby) setStatus(status string, started bool) {
	_, err := l.deps.Sessions.Update(l.leagueID, func(s *session.Session) error {
		s.DraftStatus = status
		s.DraftStarted = started
		return nil
	})
	if err != nil {
		l.log.Debug("session status not updated", zap.String("status", status), zap.Error(err))
	}
}

func (l *Lobby) load(ctx context.Context) (engine.League, session.Session, error) {
	sess, ok := l.deps.Sessions.Get(l.leagueID)
	if !ok {
		return engine.League{}, session.Session{}, engine.ErrSessionNotFound
	}
	league, err := l.deps.Store.League(ctx, l.leagueID)
	if err != nil {
		return engine.League{}, session.Session{}, store.Translate(err)
	}
	return league, sess, nil
}

// save performs the single durable write of an operation. Nothing is broadcast
// unless it succeeds.
func (l *Lobby) save(ctx context.Context, op string, league engine.League, change store.DraftChange) error {
	if _, err := l.deps.Store.SaveDraft(ctx, l.leagueID, league.Version, change); err != nil {
		err = store.Translate(err)
		if engine.KindOf(err) == engine.KindInternal {
			l.log.Error("failed to persist draft change", zap.String("op", op), zap.Error(err))
		} else {
			l.log.Warn("draft change rejected by store", zap.String("op", op), zap.Error(err))
		}
		return err
	}
	return nil
}

func (l *Lobby) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(l.ctx, l.deps.StoreTimeout)
}

func playerName(pool []engine.Player, id string) string {
	for _, p := range pool {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

func ownerName(league engine.League, ownerID string) string {
	if t, ok := league.Team(ownerID); ok && t.OwnerName != "" {
		return t.OwnerName
	}
	return ownerID
}

func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) LeagueID() string { return l.leagueID }

func (l *Lobby) TryStart(ctx context.Context) error {
	return l.call(ctx, func(r chan error) Msg { return TryStart{Reply: r} })
}

func (l *Lobby) Pick(ctx context.Context, participantID, playerID string) error {
	return l.call(ctx, func(r chan error) Msg {
		return Pick{ParticipantID: participantID, PlayerID: playerID, Reply: r}
	})
}

func (l *Lobby) Pause(ctx context.Context, participantID string) error {
	return l.call(ctx, func(r chan error) Msg { return Pause{ParticipantID: participantID, Reply: r} })
}

func (l *Lobby) Resume(ctx context.Context, participantID string) error {
	return l.call(ctx, func(r chan error) Msg { return Resume{ParticipantID: participantID, Reply: r} })
}

func (l *Lobby) State(ctx context.Context) (View, error) {
	ch := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: ch}:
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-ch:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

func (l *Lobby) call(ctx context.Context, build func(chan error) Msg) error {
	ch := make(chan error, 1)
	select {
	case l.inbox <- build(ch):
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-ch:
		return err
	case <-l.done:
		select {
		case err := <-ch:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
