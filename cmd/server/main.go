package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/config"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/draft"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/httpapi"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/hub"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/lobby"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/logging"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/reminder"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/session"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store/gormstore"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store/memstore"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store/pgplayers"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

type stores struct {
	leagues store.LeagueStore
	players store.PlayerSource
	close   func() error
}

func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (stores, error) {
	if cfg.Store == config.StoreMemory {
		st, err := memstore.LoadFile(cfg.SeedFile)
		if err != nil {
			return stores{}, err
		}
		log.Info("using in-memory store", zap.String("seed", cfg.SeedFile))
		return stores{leagues: st, players: st, close: func() error { return nil }}, nil
	}

	leagues, err := gormstore.Open(cfg.DatabaseURL, log.Named("gorm"))
	if err != nil {
		return stores{}, err
	}
	if err := leagues.Migrate(ctx); err != nil {
		return stores{}, multierr.Append(fmt.Errorf("migrate leagues: %w", err), leagues.Close())
	}

	players, err := pgplayers.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, multierr.Append(err, leagues.Close())
	}
	if err := players.RunMigrations(ctx); err != nil {
		players.Close()
		return stores{}, multierr.Append(fmt.Errorf("migrate players: %w", err), leagues.Close())
	}

	return stores{
		leagues: leagues,
		players: players,
		close: func() error {
			players.Close()
			return leagues.Close()
		},
	}, nil
}

func run(cfg config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open stores: %w", err)
	}
	defer func() { err = multierr.Append(err, st.close()) }()

	sessions := session.NewRegistry()
	rooms := ws.NewRooms(logger.Named("rooms"))

	h := hub.NewHub(ctx, lobby.Deps{
		Store:        st.leagues,
		Sessions:     sessions,
		Broadcaster:  rooms,
		Rules:        engine.Rules{RosterCap: cfg.RosterCap, QuorumPercent: cfg.QuorumPercent},
		TurnDuration: cfg.TurnDuration,
		StoreTimeout: cfg.StoreTimeout,
		Log:          logger.Named("lobby"),
	}, func(leagueID string) bool {
		_, ok := sessions.Get(leagueID)
		return ok
	})
	defer h.Shutdown()

	orch := draft.New(draft.Options{
		Leagues:  st.leagues,
		Players:  st.players,
		Sessions: sessions,
		Hub:      h,
		Rooms:    rooms,
		Log:      logger.Named("draft"),
	})
	reaper := draft.NewReaper(orch, cfg.ReapInterval, cfg.StaleAfter)
	reminders := reminder.New(reminder.Options{
		Leagues:  st.leagues,
		Notifier: &reminder.LogNotifier{Sessions: sessions, Broadcaster: rooms, Log: logger.Named("notifier")},
		Interval: cfg.ReminderInterval,
		Window:   cfg.ReminderWindow,
		Log:      logger,
	})

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Orchestrator: orch,
			Rooms:        rooms,
			Sessions:     sessions,
			Hub:          h,
			WS: ws.Options{
				ReadTimeout:  cfg.WSReadTimeout,
				WriteTimeout: cfg.WSWriteTimeout,
			},
			Log: logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return reaper.Run(gctx) })
	g.Go(func() error { return reminders.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
