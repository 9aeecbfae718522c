package pgstore

import (
	"context"
	"fmt"
	"github.com/jackc/pgx/v5"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "weather records and diaries",
		SQL: `
CREATE TABLE IF NOT EXISTS weather_record (
    date DATE PRIMARY KEY,
    condition TEXT NOT NULL,
    icon TEXT NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    fetched_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS diary (
    id TEXT PRIMARY KEY,
    date DATE NOT NULL,
    condition TEXT NOT NULL,
    icon TEXT NOT NULL,
    temperature DOUBLE PRECISION NOT NULL,
    text TEXT NOT NULL,
    created_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS diary_date_idx ON diary (date, id);
`,
	},
}

// Migrate applies any migrations not yet recorded in schema_migrations, each
// in its own transaction.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	log := slogctx.FromCtx(ctx)

	_, err := p.DB.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("pg cannot create schema_migrations: %w", err)
	}

	applied, err := p.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("pg cannot read applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		log.Info("migrations: applying", slog.Int("version", m.Version), slog.String("description", m.Description))

		err := p.runTx(ctx, pgx.TxOptions{}, func(ctx context.Context, q Querier) error {
			if _, err := q.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("execute migration %d: %w", m.Version, err)
			}
			_, err := q.Exec(ctx,
				"INSERT INTO schema_migrations (version, description, applied_at) VALUES ($1, $2, $3)",
				m.Version, m.Description, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("pg Migrate: %w", err)
		}
	}
	return nil
}

func (p *PostgresStore) appliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := p.DB.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, err
	}

	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}
