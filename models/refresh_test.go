package models_test

import (
	"context"
	"errors"
	repository "github.com/adamlounds/weather-diary/adapters"
	"github.com/adamlounds/weather-diary/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

type recordingArchive struct {
	dates    []time.Time
	payloads []string
	err      error
}

func (a *recordingArchive) ArchiveWeather(ctx context.Context, date time.Time, payload string) error {
	a.dates = append(a.dates, date)
	a.payloads = append(a.payloads, payload)
	return a.err
}

func newRefresher(payload string, archive models.WeatherArchive) (*models.WeatherRefresher, *repository.MemoryRepository) {
	repo := repository.NewMemoryRepository()
	r := &models.WeatherRefresher{
		Transactor: repo,
		Weather: &models.WeatherSource{
			Provider: &countingProvider{payload: payload},
			Location: time.UTC,
			Now:      func() time.Time { return today.Add(time.Hour) },
		},
		Archive: archive,
	}
	return r, repo
}

func cachedWeather(t *testing.T, repo *repository.MemoryRepository, date time.Time) (*models.WeatherRecord, error) {
	t.Helper()
	var record *models.WeatherRecord
	err := repo.InTx(contextWithSilentLogger(), models.TxOptions{ReadOnly: true}, func(ctx context.Context, store models.Store) error {
		var err error
		record, err = store.FetchWeather(ctx, date)
		return err
	})
	return record, err
}

func TestRefreshWeather(t *testing.T) {
	archive := &recordingArchive{}
	r, repo := newRefresher(cloudyPayload, archive)

	require.NoError(t, r.RefreshWeather(contextWithSilentLogger()))

	record, err := cachedWeather(t, repo, today)
	require.NoError(t, err)
	assert.Equal(t, &models.WeatherRecord{Date: today, Condition: "Clouds", Icon: "04d", Temperature: 11.5}, record)
	assert.Equal(t, []time.Time{today}, archive.dates)
	assert.Equal(t, []string{cloudyPayload}, archive.payloads)
}

func TestRefreshWeatherReplacesSameDay(t *testing.T) {
	r, repo := newRefresher(cloudyPayload, nil)
	require.NoError(t, r.RefreshWeather(contextWithSilentLogger()))

	r.Weather.Provider = &countingProvider{payload: `{"weather":[{"main":"Rain","icon":"10d"}],"main":{"temp":9}}`}
	require.NoError(t, r.RefreshWeather(contextWithSilentLogger()))

	record, err := cachedWeather(t, repo, today)
	require.NoError(t, err)
	assert.Equal(t, "Rain", record.Condition)
	assert.Equal(t, 9.0, record.Temperature)
}

func TestRefreshWeatherArchiveFailureIsNotFatal(t *testing.T) {
	archive := &recordingArchive{err: errors.New("bucket unavailable")}
	r, repo := newRefresher(cloudyPayload, archive)

	require.NoError(t, r.RefreshWeather(contextWithSilentLogger()))

	_, err := cachedWeather(t, repo, today)
	assert.NoError(t, err)
	assert.Len(t, archive.dates, 1)
}

func TestRefreshWeatherProviderFailure(t *testing.T) {
	archive := &recordingArchive{}
	r, repo := newRefresher(models.WeatherUnavailable, archive)

	err := r.RefreshWeather(contextWithSilentLogger())
	var parseErr *models.ParseError
	require.ErrorAs(t, err, &parseErr)

	_, err = cachedWeather(t, repo, today)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, archive.dates)
}

func TestRefreshThenCreateUsesCache(t *testing.T) {
	ctx := contextWithSilentLogger()
	r, repo := newRefresher(cloudyPayload, nil)
	require.NoError(t, r.RefreshWeather(ctx))

	provider := &countingProvider{payload: models.WeatherUnavailable}
	svc := &models.DiaryService{
		Transactor: repo,
		Weather:    &models.WeatherSource{Provider: provider, Location: time.UTC},
	}

	entry, err := svc.CreateDiary(ctx, today, "cached")
	require.NoError(t, err)
	assert.Equal(t, "Clouds", entry.Condition)
	assert.Equal(t, int32(0), provider.calls.Load())
}
