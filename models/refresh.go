package models

import (
	"context"
	"fmt"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"time"
)

// WeatherArchive keeps raw provider payloads, keyed by the date they were
// fetched for.
type WeatherArchive interface {
	ArchiveWeather(ctx context.Context, date time.Time, payload string) error
}

// WeatherRefresher owns cache population: it is the only writer of weather
// records.
type WeatherRefresher struct {
	Transactor
	Weather *WeatherSource
	Archive WeatherArchive // optional
}

// RefreshWeather fetches today's weather and upserts it into the cache. A
// fetch or parse failure aborts the refresh; archive failures are only logged.
func (r *WeatherRefresher) RefreshWeather(ctx context.Context) error {
	log := slogctx.FromCtx(ctx)

	record, payload, err := r.Weather.Current(ctx)
	if err != nil {
		return fmt.Errorf("RefreshWeather: %w", err)
	}

	err = r.InTx(ctx, TxOptions{Isolation: ReadCommitted}, func(ctx context.Context, store Store) error {
		return store.UpsertWeather(ctx, *record)
	})
	if err != nil {
		return fmt.Errorf("RefreshWeather cannot store weather: %w", err)
	}
	log.Info("weather refreshed",
		slog.String("date", DateKey(record.Date)),
		slog.String("condition", record.Condition),
		slog.Float64("temperature", record.Temperature),
	)

	if r.Archive == nil {
		return nil
	}
	if err := r.Archive.ArchiveWeather(ctx, record.Date, payload); err != nil {
		log.Warn("weather: cannot archive payload", slog.String("date", DateKey(record.Date)), slog.Any("err", err))
	}
	return nil
}
