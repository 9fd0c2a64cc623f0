package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const createEpisodesTable = `
	CREATE TABLE IF NOT EXISTS episodes (
		run           TEXT             NOT NULL,
		episode       INTEGER          NOT NULL,
		session_id    TEXT             NOT NULL,
		agent         TEXT             NOT NULL,
		steps         INTEGER          NOT NULL,
		total_reward  DOUBLE PRECISION NOT NULL,
		has_distance  BOOLEAN          NOT NULL,
		last_distance DOUBLE PRECISION NOT NULL,
		best_distance DOUBLE PRECISION NOT NULL,
		done          BOOLEAN          NOT NULL,
		error         TEXT             NOT NULL DEFAULT '',
		started_at    TIMESTAMPTZ      NOT NULL,
		ended_at      TIMESTAMPTZ      NOT NULL,
		PRIMARY KEY (run, episode)
	)`

const selectEpisodeColumns = `
	SELECT run, episode, session_id, agent, steps, total_reward, has_distance,
		   last_distance, best_distance, done, error, started_at, ended_at
	FROM episodes`

// PostgresStore implements Store backed by PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with a lib/pq DSN and makes sure the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	store := NewPostgresStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore creates a new PostgreSQL-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the episodes table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createEpisodesTable); err != nil {
		return fmt.Errorf("failed to create episodes table: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) SaveEpisode(ctx context.Context, s EpisodeSummary) error {
	query := `
		INSERT INTO episodes (run, episode, session_id, agent, steps, total_reward,
							  has_distance, last_distance, best_distance, done, error,
							  started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run, episode) DO UPDATE SET
			session_id = EXCLUDED.session_id, agent = EXCLUDED.agent,
			steps = EXCLUDED.steps, total_reward = EXCLUDED.total_reward,
			has_distance = EXCLUDED.has_distance, last_distance = EXCLUDED.last_distance,
			best_distance = EXCLUDED.best_distance, done = EXCLUDED.done,
			error = EXCLUDED.error, started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at`

	_, err := p.db.ExecContext(ctx, query,
		s.Run, s.Episode, s.SessionID, s.Agent, s.Steps, s.TotalReward,
		s.HasDistance, s.LastDistance, s.BestDistance, s.Done, s.Error,
		s.StartedAt, s.EndedAt)
	if err != nil {
		return fmt.Errorf("failed to save episode: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetEpisode(ctx context.Context, run string, episode int) (EpisodeSummary, error) {
	row := p.db.QueryRowContext(ctx, selectEpisodeColumns+` WHERE run = $1 AND episode = $2`, run, episode)
	s, err := scanEpisode(row)
	if err == sql.ErrNoRows {
		return EpisodeSummary{}, ErrNotFound
	}
	if err != nil {
		return EpisodeSummary{}, fmt.Errorf("failed to get episode: %w", err)
	}
	return s, nil
}

func (p *PostgresStore) ListEpisodes(ctx context.Context, run string) ([]EpisodeSummary, error) {
	rows, err := p.db.QueryContext(ctx, selectEpisodeColumns+` WHERE run = $1 ORDER BY episode`, run)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeSummary
	for rows.Next() {
		s, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row scanner) (EpisodeSummary, error) {
	var s EpisodeSummary
	err := row.Scan(&s.Run, &s.Episode, &s.SessionID, &s.Agent, &s.Steps, &s.TotalReward,
		&s.HasDistance, &s.LastDistance, &s.BestDistance, &s.Done, &s.Error,
		&s.StartedAt, &s.EndedAt)
	return s, err
}
