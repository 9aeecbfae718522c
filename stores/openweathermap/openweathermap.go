package openweathermap

import (
	"context"
	"errors"
	"fmt"
	"github.com/adamlounds/weather-diary/models"
	"github.com/sony/gobreaker"
	slogctx "github.com/veqryn/slog-context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// responses are a few hundred bytes; anything much larger is not weather
const maxBodyBytes = 1 << 20

var errUnexpectedStatus = errors.New("unexpected status code")

type Config struct {
	APIKey  string
	City    string
	Units   string // standard, metric or imperial
	Timeout time.Duration
	BaseURL string
}

// Client fetches current weather for one configured city. It satisfies
// models.WeatherProvider: failures are logged and reported as
// models.WeatherUnavailable.
type Client struct {
	config  Config
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		circuit: cb,
	}
}

func (c *Client) requestURL() (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("bad base url: %w", err)
	}
	values := u.Query()
	values.Set("q", c.config.City)
	values.Set("appid", c.config.APIKey)
	if c.config.Units != "" {
		values.Set("units", c.config.Units)
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func (c *Client) FetchCurrent(ctx context.Context) string {
	log := slogctx.FromCtx(ctx)

	body, err := c.fetch(ctx)
	if err != nil {
		var dnsError *net.DNSError
		if errors.As(err, &dnsError) {
			log.Warn("openweathermap remote server NOT FOUND", slog.Any("err", err))
		} else {
			log.Warn("openweathermap cannot fetch current weather", slog.String("city", c.config.City), slog.Any("err", err))
		}
		return models.WeatherUnavailable
	}
	return body
}

func (c *Client) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	u, err := c.requestURL()
	if err != nil {
		return "", err
	}

	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("cannot NewRequestWithContext: %w", err)
		}
		res, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("cannot Do req: %w", err)
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("cannot read body: %w", err)
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d: %s", errUnexpectedStatus, res.StatusCode, body)
		}
		return string(body), nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
