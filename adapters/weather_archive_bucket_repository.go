package repository

import (
	"context"
	"fmt"
	"github.com/adamlounds/weather-diary/models"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"strings"
	"time"
)

type BucketUploader interface {
	Upload(ctx context.Context, name string, r io.Reader) error
}

// BucketWeatherArchive writes one object per day, eg weather-day/2024-11-27.json.
// A later refresh for the same day replaces the object, matching the cache's
// upsert.
type BucketWeatherArchive struct {
	BucketStore BucketUploader
}

func NewBucketWeatherArchive(bs BucketUploader) *BucketWeatherArchive {
	return &BucketWeatherArchive{BucketStore: bs}
}

func weatherObjectName(date time.Time) string {
	return fmt.Sprintf("weather-day/%s.json", models.DateKey(date))
}

func (b BucketWeatherArchive) ArchiveWeather(ctx context.Context, date time.Time, payload string) error {
	log := slogctx.FromCtx(ctx)
	name := weatherObjectName(date)

	t1 := time.Now()
	err := b.BucketStore.Upload(ctx, name, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("cannot archive weather to %s: %w", name, err)
	}
	log.Debug("archived weather payload",
		slog.String("file", name),
		slog.Int("bytes", len(payload)),
		slog.Int64("duration_ms", time.Since(t1).Milliseconds()),
	)
	return nil
}
