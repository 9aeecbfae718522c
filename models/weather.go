package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/adamlounds/weather-diary/metrics"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"time"
)

// WeatherUnavailable is the payload a WeatherProvider returns when the
// network call fails. It never parses.
const WeatherUnavailable = "failed to get response"

var errNoWeatherConditions = errors.New("weather list is empty")

type WeatherRecord struct {
	Date        time.Time
	Condition   string
	Icon        string
	Temperature float64
}

// WeatherProvider returns today's raw observation for a fixed location.
// Transport failures are reported as WeatherUnavailable, never as an error.
type WeatherProvider interface {
	FetchCurrent(ctx context.Context) string
}

type WeatherCache interface {
	FetchWeather(ctx context.Context, date time.Time) (*WeatherRecord, error)
	UpsertWeather(ctx context.Context, record WeatherRecord) error
}

// ParseError reports a provider payload that could not be turned into a
// WeatherRecord.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("models: cannot parse weather payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// owmPayload is the subset of an OpenWeatherMap "current weather" response
// we rely on. Pointers let us tell a missing field from a zero value.
type owmPayload struct {
	Main *struct {
		Temp *float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main *string `json:"main"`
		Icon *string `json:"icon"`
	} `json:"weather"`
}

// ParseWeather builds the WeatherRecord for date from a raw provider payload.
// Only the first element of the weather list is used.
func ParseWeather(payload string, date time.Time) (*WeatherRecord, error) {
	var p owmPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, &ParseError{Payload: payload, Err: err}
	}
	if p.Main == nil || p.Main.Temp == nil {
		return nil, &ParseError{Payload: payload, Err: errors.New("main.temp is missing")}
	}
	if len(p.Weather) == 0 {
		return nil, &ParseError{Payload: payload, Err: errNoWeatherConditions}
	}
	first := p.Weather[0]
	if first.Main == nil || first.Icon == nil {
		return nil, &ParseError{Payload: payload, Err: errors.New("weather[0].main or weather[0].icon is missing")}
	}

	return &WeatherRecord{
		Date:        Date(date),
		Condition:   *first.Main,
		Icon:        *first.Icon,
		Temperature: *p.Main.Temp,
	}, nil
}

// WeatherSource fetches and parses today's weather. Now and Location decide
// what "today" is; both default to the local clock.
type WeatherSource struct {
	Provider WeatherProvider
	Location *time.Location
	Now      func() time.Time
}

func (w *WeatherSource) Today() time.Time {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	return Date(now().In(loc))
}

// Current returns today's parsed weather along with the raw payload it was
// parsed from.
func (w *WeatherSource) Current(ctx context.Context) (*WeatherRecord, string, error) {
	log := slogctx.FromCtx(ctx)
	t1 := time.Now()
	payload := w.Provider.FetchCurrent(ctx)
	metrics.ProviderLatency.Observe(time.Since(t1).Seconds())

	record, err := ParseWeather(payload, w.Today())
	if err != nil {
		metrics.ProviderFetches.WithLabelValues("failed").Inc()
		log.Warn("weather: cannot parse provider payload", slog.Any("err", err))
		return nil, payload, err
	}
	metrics.ProviderFetches.WithLabelValues("ok").Inc()
	return record, payload, nil
}
