// Package reminder notifies leagues whose draft is about to begin.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
)

const (
	DefaultInterval = 15 * time.Minute
	DefaultWindow   = time.Hour
)

type Options struct {
	Leagues  store.LeagueStore
	Notifier store.Notifier
	Interval time.Duration
	Window   time.Duration
	Now      func() time.Time
	Log      *zap.Logger
}

// Job looks for drafts starting within Window every Interval. A league is
// notified at most once per process.
type Job struct {
	leagues  store.LeagueStore
	notifier store.Notifier
	interval time.Duration
	window   time.Duration
	now      func() time.Time
	log      *zap.Logger

	mu       sync.Mutex
	notified map[string]bool
}

func New(opts Options) *Job {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Job{
		leagues:  opts.Leagues,
		notifier: opts.Notifier,
		interval: opts.Interval,
		window:   opts.Window,
		now:      opts.Now,
		log:      opts.Log.Named("reminder"),
		notified: make(map[string]bool),
	}
}

// Run checks once at startup and then on every tick until ctx is done.
func (j *Job) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.Check(ctx, j.now()); err != nil && ctx.Err() == nil {
			j.log.Error("reminder check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check notifies every league starting in [now, now+window] that was not
// notified before, and returns how many were notified. A failed notification
// is retried on the next check.
func (j *Job) Check(ctx context.Context, now time.Time) (int, error) {
	leagues, err := j.leagues.UpcomingDrafts(ctx, now, now.Add(j.window))
	if err != nil {
		return 0, fmt.Errorf("list upcoming drafts: %w", err)
	}

	var errs error
	sent := 0
	for _, l := range leagues {
		if j.seen(l.ID) {
			continue
		}
		if err := j.notifier.DraftStartingSoon(ctx, l); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("league %s: %w", l.ID, err))
			continue
		}
		j.mark(l.ID)
		sent++
		j.log.Info("draft reminder sent",
			zap.String("league_id", l.ID), zap.Time("starts_at", l.Round.StartDate))
	}
	return sent, errs
}

func (j *Job) seen(leagueID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.notified[leagueID]
}

func (j *Job) mark(leagueID string) {
	j.mu.Lock()
	j.notified[leagueID] = true
	j.mu.Unlock()
}
