package pgstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/adamlounds/weather-diary/metrics"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"time"
)

// sqlstate for serialization_failure
const serializationFailure = "40001"

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

func (cfg PostgresConfig) String() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_min_conns=1",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
}

// Querier is satisfied by both the pool and an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	DB *pgxpool.Pool
	// MaxRetryTime bounds how long a transaction is retried after
	// serialization failures.
	MaxRetryTime time.Duration
}

func New(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, cfg.String())
	if err != nil {
		return nil, fmt.Errorf("run cannot set up db: %w", err)
	}
	return &PostgresStore{DB: db, MaxRetryTime: 5 * time.Second}, nil
}

func (p *PostgresStore) Close() {
	p.DB.Close()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	log := slogctx.FromCtx(ctx)
	var pgVersion string
	err := p.DB.QueryRow(ctx, "select version()").Scan(&pgVersion)
	if err != nil {
		return fmt.Errorf("pg cannot ping db: %w", err)
	}
	log.Info("pg Ping ok", "version", pgVersion)
	return nil
}

// Healthy checks a pooled connection without logging, for /health.
func (p *PostgresStore) Healthy(ctx context.Context) error {
	if err := p.DB.Ping(ctx); err != nil {
		return fmt.Errorf("pg unhealthy: %w", err)
	}
	return nil
}

func txOptions(isolation pgx.TxIsoLevel, readOnly bool) pgx.TxOptions {
	opts := pgx.TxOptions{IsoLevel: isolation}
	if readOnly {
		opts.AccessMode = pgx.ReadOnly
	}
	return opts
}

// InTx runs fn in a transaction, committing if fn returns nil. The whole
// transaction is retried with exponential backoff when postgres reports a
// serialization failure; any other error is returned as-is.
func (p *PostgresStore) InTx(ctx context.Context, isolation pgx.TxIsoLevel, readOnly bool, fn func(ctx context.Context, q Querier) error) error {
	opts := txOptions(isolation, readOnly)
	return retrySerializable(ctx, p.MaxRetryTime, func() error {
		return p.runTx(ctx, opts, fn)
	})
}

// retrySerializable calls attempt until it succeeds, fails with anything but a
// serialization failure, ctx is done or maxElapsed has passed.
func retrySerializable(ctx context.Context, maxElapsed time.Duration, attempt func() error) error {
	log := slogctx.FromCtx(ctx)

	op := func() error {
		err := attempt()
		if err == nil {
			return nil
		}
		if IsSerializationFailure(err) {
			metrics.TxRetries.Inc()
			log.Debug("pg serialization failure, retrying", slog.Any("err", err))
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func (p *PostgresStore) runTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, q Querier) error) error {
	tx, err := p.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("pg cannot begin tx: %w", err)
	}
	// no-op once committed
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pg cannot commit tx: %w", err)
	}
	return nil
}

func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}
