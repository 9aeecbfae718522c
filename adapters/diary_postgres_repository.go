package repository

import (
	"context"
	"errors"
	"fmt"
	"github.com/adamlounds/weather-diary/models"
	pgstore "github.com/adamlounds/weather-diary/stores/postgres"
	"github.com/jackc/pgx/v5"
	"time"
)

type PostgresRepository struct {
	*pgstore.PostgresStore
}

func NewPostgresRepository(pgstore *pgstore.PostgresStore) *PostgresRepository {
	return &PostgresRepository{pgstore}
}

var isoLevels = map[models.IsolationLevel]pgx.TxIsoLevel{
	models.ReadCommitted: pgx.ReadCommitted,
	models.Serializable:  pgx.Serializable,
}

func (p PostgresRepository) InTx(ctx context.Context, opts models.TxOptions, fn func(ctx context.Context, store models.Store) error) error {
	isolation, ok := isoLevels[opts.Isolation]
	if !ok {
		return fmt.Errorf("pg InTx: unsupported isolation level %s", opts.Isolation)
	}
	return p.PostgresStore.InTx(ctx, isolation, opts.ReadOnly, func(ctx context.Context, q pgstore.Querier) error {
		return fn(ctx, postgresTxStore{q})
	})
}

// postgresTxStore implements models.Store against an open transaction.
type postgresTxStore struct {
	q pgstore.Querier
}

const diaryColumns = `id, date, condition, icon, temperature, text, created_time`

func (s postgresTxStore) FetchWeather(ctx context.Context, date time.Time) (*models.WeatherRecord, error) {
	record := models.WeatherRecord{Date: date}

	row := s.q.QueryRow(ctx, "SELECT condition, icon, temperature FROM weather_record WHERE date = $1", date)
	err := row.Scan(&record.Condition, &record.Icon, &record.Temperature)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("pg FetchWeather: %w", err)
	}
	return &record, nil
}

func (s postgresTxStore) UpsertWeather(ctx context.Context, record models.WeatherRecord) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO weather_record (date, condition, icon, temperature, fetched_time)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (date) DO UPDATE SET
			condition = excluded.condition,
			icon = excluded.icon,
			temperature = excluded.temperature,
			fetched_time = excluded.fetched_time`,
		models.Date(record.Date), record.Condition, record.Icon, record.Temperature)
	if err != nil {
		return fmt.Errorf("pg UpsertWeather: %w", err)
	}
	return nil
}

func (s postgresTxStore) InsertDiary(ctx context.Context, entry models.DiaryEntry) error {
	_, err := s.q.Exec(ctx, `INSERT INTO diary (`+diaryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, models.Date(entry.Date), entry.Condition, entry.Icon, entry.Temperature, entry.Text, entry.CreatedTime)
	if err != nil {
		return fmt.Errorf("pg InsertDiary: %w", err)
	}
	return nil
}

func (s postgresTxStore) DeleteDiariesByDate(ctx context.Context, date time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, "DELETE FROM diary WHERE date = $1", date)
	if err != nil {
		return 0, fmt.Errorf("pg DeleteDiariesByDate: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s postgresTxStore) FetchDiariesBetween(ctx context.Context, startDate, endDate time.Time) ([]models.DiaryEntry, error) {
	rows, err := s.q.Query(ctx, `SELECT `+diaryColumns+` FROM diary
	WHERE date BETWEEN $1 AND $2
	ORDER BY date, id`, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("pg FetchDiariesBetween: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.DiaryEntry])
	if err != nil {
		return nil, fmt.Errorf("pg FetchDiariesBetween collect: %w", err)
	}
	return entries, nil
}

func (s postgresTxStore) FetchDiariesByDate(ctx context.Context, date time.Time) ([]models.DiaryEntry, error) {
	rows, err := s.q.Query(ctx, `SELECT `+diaryColumns+` FROM diary WHERE date = $1 ORDER BY id`, date)
	if err != nil {
		return nil, fmt.Errorf("pg FetchDiariesByDate: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.DiaryEntry])
	if err != nil {
		return nil, fmt.Errorf("pg FetchDiariesByDate collect: %w", err)
	}
	return entries, nil
}

func (s postgresTxStore) FetchFirstDiaryByDate(ctx context.Context, date time.Time) (*models.DiaryEntry, error) {
	rows, err := s.q.Query(ctx, `SELECT `+diaryColumns+` FROM diary WHERE date = $1 ORDER BY id LIMIT 1`, date)
	if err != nil {
		return nil, fmt.Errorf("pg FetchFirstDiaryByDate: %w", err)
	}
	entry, err := pgx.CollectOneRow(rows, pgx.RowToStructByPos[models.DiaryEntry])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("pg FetchFirstDiaryByDate collect: %w", err)
	}
	return &entry, nil
}

func (s postgresTxStore) UpdateDiaryText(ctx context.Context, id string, text string) error {
	tag, err := s.q.Exec(ctx, "UPDATE diary SET text = $2 WHERE id = $1", id, text)
	if err != nil {
		return fmt.Errorf("pg UpdateDiaryText: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
