// Package pgplayers reads the draftable players of a league's tournament
// straight from PostgreSQL.
package pgplayers

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DoyleJ11/fantasy-draft-backend/internal/engine"
	"github.com/DoyleJ11/fantasy-draft-backend/internal/store"
)

type Source struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Source, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Source{pool: pool}, nil
}

func (s *Source) Close() {
	s.pool.Close()
}

// RunMigrations creates the player tables if they are missing. The leagues
// table belongs to gormstore.
func (s *Source) RunMigrations(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS tournament_players (
			tournament_id TEXT NOT NULL,
			player_id TEXT NOT NULL REFERENCES players(id),
			position INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (tournament_id, player_id)
		);
		CREATE INDEX IF NOT EXISTS idx_tournament_players_order ON tournament_players(tournament_id, position);
	`)
	return err
}

const draftPoolQuery = `
	SELECT p.id, p.name, p.slug
	FROM leagues l
	JOIN tournament_players tp ON tp.tournament_id = l.tournament_id
	JOIN players p ON p.id = tp.player_id
	WHERE l.id = $1
	ORDER BY tp.position, p.id`

// DraftPool returns the league's eligible players ordered by tournament
// position.
func (s *Source) DraftPool(ctx context.Context, leagueID string) ([]engine.Player, error) {
	rows, err := s.pool.Query(ctx, draftPoolQuery, leagueID)
	if err != nil {
		return nil, fmt.Errorf("query draft pool of %s: %w", leagueID, err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (engine.Player, error) {
		var p engine.Player
		err := row.Scan(&p.ID, &p.Name, &p.Slug)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan draft pool of %s: %w", leagueID, err)
	}
	return players, nil
}

var _ store.PlayerSource = (*Source)(nil)
