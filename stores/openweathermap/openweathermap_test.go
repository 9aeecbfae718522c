package openweathermap

import (
	"context"
	"github.com/adamlounds/weather-diary/models"
	"github.com/stretchr/testify/assert"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const incheonPayload = `{"coord":{"lon":126.4161,"lat":37.45},"weather":[{"id":800,"main":"Clear","description":"clear sky","icon":"01d"}],"main":{"temp":18.2,"humidity":40}}`

func contextWithSilentLogger() context.Context {
	return slogctx.NewCtx(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchCurrent(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(incheonPayload))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "secret", City: "incheon", Units: "metric", BaseURL: srv.URL})
	body := c.FetchCurrent(contextWithSilentLogger())

	assert.Equal(t, incheonPayload, body)
	assert.Equal(t, []string{"incheon"}, gotQuery["q"])
	assert.Equal(t, []string{"secret"}, gotQuery["appid"])
	assert.Equal(t, []string{"metric"}, gotQuery["units"])
}

func TestFetchCurrentOmitsEmptyUnits(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(incheonPayload))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "secret", City: "incheon", BaseURL: srv.URL})
	c.FetchCurrent(contextWithSilentLogger())

	_, hasUnits := gotQuery["units"]
	assert.False(t, hasUnits)
}

func TestFetchCurrentDegradesToUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		timeout time.Duration
	}{
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"cod":401,"message":"Invalid API key"}`))
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-time.After(time.Second):
				case <-r.Context().Done():
				}
				_, _ = w.Write([]byte(incheonPayload))
			},
			timeout: 50 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := New(Config{APIKey: "secret", City: "incheon", BaseURL: srv.URL, Timeout: tt.timeout})
			body := c.FetchCurrent(contextWithSilentLogger())

			assert.Equal(t, models.WeatherUnavailable, body)
		})
	}
}

func TestFetchCurrentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{APIKey: "secret", City: "incheon", BaseURL: url, Timeout: time.Second})
	assert.Equal(t, models.WeatherUnavailable, c.FetchCurrent(contextWithSilentLogger()))
}

func TestFetchCurrentOpenCircuit(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "secret", City: "incheon", BaseURL: srv.URL})
	ctx := contextWithSilentLogger()
	// default breaker trips after more than 5 consecutive failures
	for i := 0; i < 10; i++ {
		assert.Equal(t, models.WeatherUnavailable, c.FetchCurrent(ctx))
	}
	assert.Equal(t, 6, calls)
}
