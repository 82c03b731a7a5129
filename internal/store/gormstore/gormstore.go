// Package gormstore persists leagues, teams and draft picks in PostgreSQL
// through gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
)

type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config(log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// Config is the gorm configuration every Store expects: translated driver
// errors and zap logging.
func Config(log *zap.Logger) *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         newZapLogger(log),
	}
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&leagueModel{}, &teamModel{}, &pickModel{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateLeague inserts a league with its teams in the given turn order.
func (s *Store) CreateLeague(ctx context.Context, l engine.League, tournamentID string) error {
	m := leagueModel{
		ID:                 l.ID,
		Name:               l.Name,
		TournamentID:       tournamentID,
		OwnerID:            l.OwnerID,
		DraftStartDate:     l.Round.StartDate,
		DraftCompleted:     l.Round.Completed,
		DraftPaused:        l.Round.Paused,
		CurrentTurnOwnerID: l.Round.CurrentTurnOwnerID,
		TurnDirection:      string(l.Round.TurnDirection),
	}
	if m.TurnDirection == "" {
		m.TurnDirection = string(engine.DirectionForward)
	}
	for i, t := range l.Teams {
		m.Teams = append(m.Teams, teamModel{
			OwnerID:   t.OwnerID,
			OwnerName: t.OwnerName,
			Position:  i,
			Wishlist:  t.Wishlist,
			JoinedAt:  time.Now().UTC(),
		})
	}
	return s.db.WithContext(ctx).Create(&m).Error
}

func (s *Store) League(ctx context.Context, leagueID string) (engine.League, error) {
	var m leagueModel
	err := s.db.WithContext(ctx).
		Preload("Teams", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&m, "id = ?", leagueID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.League{}, store.ErrNotFound
	}
	if err != nil {
		return engine.League{}, fmt.Errorf("load league %s: %w", leagueID, err)
	}

	var picks []pickModel
	if err := s.db.WithContext(ctx).
		Where("league_id = ?", leagueID).
		Order("pick_number ASC").
		Find(&picks).Error; err != nil {
		return engine.League{}, fmt.Errorf("load picks of league %s: %w", leagueID, err)
	}
	return toLeague(m, picks), nil
}

func (s *Store) SaveDraft(ctx context.Context, leagueID string, expectVersion int64, change store.DraftChange) (int64, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p := change.Pick; p != nil {
			if err := insertPick(tx, leagueID, p); err != nil {
				return err
			}
		}

		r := change.Round
		res := tx.Model(&leagueModel{}).
			Where("id = ? AND version = ?", leagueID, expectVersion).
			Updates(map[string]any{
				"draft_completed":       r.Completed,
				"draft_paused":          r.Paused,
				"current_turn_owner_id": r.CurrentTurnOwnerID,
				"turn_direction":        string(r.TurnDirection),
				"version":               gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&leagueModel{}).Where("id = ?", leagueID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return store.ErrNotFound
			}
			return store.ErrVersionConflict
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return expectVersion + 1, nil
}

func insertPick(tx *gorm.DB, leagueID string, p *store.PickRecord) error {
	var owners int64
	if err := tx.Model(&teamModel{}).
		Where("league_id = ? AND owner_id = ?", leagueID, p.OwnerID).
		Count(&owners).Error; err != nil {
		return err
	}
	if owners == 0 {
		return store.ErrNotFound
	}

	var count int64
	if err := tx.Model(&pickModel{}).Where("league_id = ?", leagueID).Count(&count).Error; err != nil {
		return err
	}
	pickedAt := p.PickedAt
	if pickedAt.IsZero() {
		pickedAt = time.Now().UTC()
	}
	row := pickModel{
		LeagueID:   leagueID,
		PlayerID:   p.PlayerID,
		OwnerID:    p.OwnerID,
		PickNumber: int(count) + 1,
		Auto:       p.Auto,
		PickedAt:   pickedAt,
	}
	if err := tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrPlayerTaken
		}
		return err
	}
	return nil
}

func (s *Store) UpcomingDrafts(ctx context.Context, from, to time.Time) ([]engine.League, error) {
	var models []leagueModel
	if err := s.db.WithContext(ctx).
		Preload("Teams", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("draft_completed = ? AND draft_start_date >= ? AND draft_start_date <= ?", false, from, to).
		Order("draft_start_date ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list upcoming drafts: %w", err)
	}
	if len(models) == 0 {
		return nil, nil
	}

	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	var picks []pickModel
	if err := s.db.WithContext(ctx).
		Where("league_id IN ?", ids).
		Order("pick_number ASC").
		Find(&picks).Error; err != nil {
		return nil, fmt.Errorf("list picks of upcoming drafts: %w", err)
	}
	byLeague := make(map[string][]pickModel)
	for _, p := range picks {
		byLeague[p.LeagueID] = append(byLeague[p.LeagueID], p)
	}

	out := make([]engine.League, len(models))
	for i, m := range models {
		out[i] = toLeague(m, byLeague[m.ID])
	}
	return out, nil
}

func toLeague(m leagueModel, picks []pickModel) engine.League {
	l := engine.League{
		ID:      m.ID,
		Name:    m.Name,
		OwnerID: m.OwnerID,
		Version: m.Version,
		Round: engine.DraftRound{
			StartDate:          m.DraftStartDate,
			Completed:          m.DraftCompleted,
			Paused:             m.DraftPaused,
			CurrentTurnOwnerID: m.CurrentTurnOwnerID,
			TurnDirection:      engine.Direction(m.TurnDirection),
		},
	}
	for _, t := range m.Teams {
		l.Teams = append(l.Teams, engine.Team{
			OwnerID:   t.OwnerID,
			OwnerName: t.OwnerName,
			Wishlist:  t.Wishlist,
		})
	}
	for _, p := range picks {
		if i := l.TeamIndex(p.OwnerID); i >= 0 {
			l.Teams[i].PickedPlayers = append(l.Teams[i].PickedPlayers, p.PlayerID)
		}
	}
	return l
}

var _ store.LeagueStore = (*Store)(nil)
