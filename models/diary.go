package models

import (
	"context"
	"errors"
	"fmt"
	"github.com/adamlounds/weather-diary/metrics"
	"github.com/oklog/ulid/v2"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"time"
)

var (
	ErrNotFound    = errors.New("models: no resource could be found")
	ErrInvalidDate = errors.New("models: invalid date")
)

type DiaryEntry struct {
	ID          string
	Date        time.Time
	Condition   string
	Icon        string
	Temperature float64
	Text        string
	CreatedTime time.Time
}

type DiaryStore interface {
	InsertDiary(ctx context.Context, entry DiaryEntry) error
	DeleteDiariesByDate(ctx context.Context, date time.Time) (int64, error)
	FetchDiariesBetween(ctx context.Context, startDate, endDate time.Time) ([]DiaryEntry, error)
	FetchDiariesByDate(ctx context.Context, date time.Time) ([]DiaryEntry, error)
	// FetchFirstDiaryByDate returns the entry with the lowest ID for date, or ErrNotFound.
	FetchFirstDiaryByDate(ctx context.Context, date time.Time) (*DiaryEntry, error)
	UpdateDiaryText(ctx context.Context, id string, text string) error
}

// Store is everything a transaction can see.
type Store interface {
	DiaryStore
	WeatherCache
}

type IsolationLevel int

const (
	ReadCommitted IsolationLevel = iota
	Serializable
)

func (l IsolationLevel) String() string {
	switch l {
	case ReadCommitted:
		return "read committed"
	case Serializable:
		return "serializable"
	}
	return fmt.Sprintf("IsolationLevel(%d)", int(l))
}

type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
}

// Transactor runs fn inside a single transaction. fn's error rolls the
// transaction back and is returned unchanged.
type Transactor interface {
	InTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, store Store) error) error
}

type DiaryService struct {
	Transactor
	Weather *WeatherSource
}

// resolveWeather prefers the cached record for date. On a miss it returns
// today's weather from the provider without caching it: historical dates with
// no cached record are stamped with today's weather.
func (s *DiaryService) resolveWeather(ctx context.Context, store Store, date time.Time) (*WeatherRecord, error) {
	log := slogctx.FromCtx(ctx)

	record, err := store.FetchWeather(ctx, date)
	if err == nil {
		metrics.WeatherCacheLookups.WithLabelValues("hit").Inc()
		return record, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("resolveWeather cannot fetch cached weather: %w", err)
	}

	metrics.WeatherCacheLookups.WithLabelValues("miss").Inc()
	log.Debug("weather cache miss, using current weather", slog.String("date", DateKey(date)))
	record, _, err = s.Weather.Current(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// CreateDiary stamps text with the resolved weather and stores it. The whole
// operation runs serializably. Note the entry takes the weather record's date,
// which is today when date had no cached weather.
func (s *DiaryService) CreateDiary(ctx context.Context, date time.Time, text string) (*DiaryEntry, error) {
	log := slogctx.FromCtx(ctx)
	date = Date(date)
	log.Info("started to create diary", slog.String("date", DateKey(date)))

	var entry DiaryEntry
	err := s.InTx(ctx, TxOptions{Isolation: Serializable}, func(ctx context.Context, store Store) error {
		record, err := s.resolveWeather(ctx, store, date)
		if err != nil {
			return err
		}

		entry = DiaryEntry{
			ID:          ulid.Make().String(),
			Date:        record.Date,
			Condition:   record.Condition,
			Icon:        record.Icon,
			Temperature: record.Temperature,
			Text:        text,
			CreatedTime: time.Now().UTC(),
		}
		return store.InsertDiary(ctx, entry)
	})
	if err != nil {
		return nil, fmt.Errorf("CreateDiary: %w", err)
	}

	metrics.DiariesCreated.Inc()
	log.Info("end to create diary", slog.String("id", entry.ID), slog.String("weatherDate", DateKey(entry.Date)))
	return &entry, nil
}

// DeleteDiary removes every entry for date. Deleting nothing is not an error.
func (s *DiaryService) DeleteDiary(ctx context.Context, date time.Time) (int64, error) {
	var deleted int64
	err := s.InTx(ctx, TxOptions{Isolation: ReadCommitted}, func(ctx context.Context, store Store) error {
		var err error
		deleted, err = store.DeleteDiariesByDate(ctx, Date(date))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("DeleteDiary: %w", err)
	}
	slogctx.FromCtx(ctx).Debug("deleted diaries", slog.String("date", DateKey(date)), slog.Int64("count", deleted))
	return deleted, nil
}

func (s *DiaryService) ReadDiaries(ctx context.Context, startDate, endDate time.Time) ([]DiaryEntry, error) {
	var entries []DiaryEntry
	err := s.InTx(ctx, TxOptions{ReadOnly: true}, func(ctx context.Context, store Store) error {
		var err error
		entries, err = store.FetchDiariesBetween(ctx, Date(startDate), Date(endDate))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ReadDiaries: %w", err)
	}
	return entries, nil
}

func (s *DiaryService) ReadDiary(ctx context.Context, date time.Time) ([]DiaryEntry, error) {
	date = Date(date)
	if date.After(MaxDiaryDate) {
		return nil, fmt.Errorf("ReadDiary %s: %w", DateKey(date), ErrInvalidDate)
	}
	slogctx.FromCtx(ctx).Debug("read diary", slog.String("date", DateKey(date)))

	var entries []DiaryEntry
	err := s.InTx(ctx, TxOptions{ReadOnly: true}, func(ctx context.Context, store Store) error {
		var err error
		entries, err = store.FetchDiariesByDate(ctx, date)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ReadDiary: %w", err)
	}
	return entries, nil
}

// UpdateDiary replaces the text of the first entry (lowest ID) for date.
// Other entries sharing the date are left alone.
func (s *DiaryService) UpdateDiary(ctx context.Context, date time.Time, text string) (*DiaryEntry, error) {
	var entry *DiaryEntry
	err := s.InTx(ctx, TxOptions{Isolation: ReadCommitted}, func(ctx context.Context, store Store) error {
		var err error
		entry, err = store.FetchFirstDiaryByDate(ctx, Date(date))
		if err != nil {
			return err
		}
		entry.Text = text
		return store.UpdateDiaryText(ctx, entry.ID, text)
	})
	if err != nil {
		return nil, fmt.Errorf("UpdateDiary %s: %w", DateKey(date), err)
	}
	return entry, nil
}
