package config

import (
	"fmt"
	"github.com/adamlounds/weather-diary/stores/openweathermap"
	"github.com/thanos-io/objstore/providers/s3"
	"gopkg.in/yaml.v2"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without zoneinfo
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// ServerConfig is the root config for a weather diary server
type ServerConfig struct {
	Server struct {
		Address string
	}
	LogLevel slog.Level
	LogFile  string

	Store    string
	Postgres PostgresConfig

	Weather        openweathermap.Config
	Location       *time.Location
	RefreshAt      string
	RefreshOnStart bool

	// at most one of these configures the weather archive
	S3Config   *s3.Config
	ArchiveDir string
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// RegisterEnv registers config from the environment
func (c *ServerConfig) RegisterEnv() error {
	c.Server.Address = getenvDefault("SERVER_ADDRESS", ":8080")

	logLevel, ok := logLevels[strings.ToLower(os.Getenv("LOG_LEVEL"))]
	if !ok {
		logLevel = slog.LevelInfo
	}
	c.LogLevel = logLevel
	c.LogFile = os.Getenv("LOG_FILE")

	c.Store = strings.ToLower(getenvDefault("STORE", StorePostgres))
	switch c.Store {
	case StorePostgres:
		c.Postgres.RegisterEnv()
	case StoreMemory:
	default:
		return fmt.Errorf("STORE must be %s or %s, got %q", StorePostgres, StoreMemory, c.Store)
	}

	if err := c.registerWeatherEnv(); err != nil {
		return err
	}

	// nb "yaml is a superset of json", so we can load json from env while
	// using the standard Thanos yaml code
	if s3Env := os.Getenv("S3_CONFIG"); s3Env != "" {
		var s3Config s3.Config
		err := yaml.Unmarshal([]byte(s3Env), &s3Config)
		if err != nil {
			return fmt.Errorf("cannot parse S3 config: %w", err)
		}
		c.S3Config = &s3Config
	} else {
		c.ArchiveDir = os.Getenv("ARCHIVE_DIR")
	}

	return nil
}

func (c *ServerConfig) registerWeatherEnv() error {
	c.Weather.APIKey = os.Getenv("OPENWEATHER_API_KEY")
	if c.Weather.APIKey == "" {
		return fmt.Errorf("OPENWEATHER_API_KEY is required")
	}
	c.Weather.City = getenvDefault("WEATHER_CITY", "incheon")
	c.Weather.Units = getenvDefault("WEATHER_UNITS", "metric")
	c.Weather.BaseURL = getenvDefault("OPENWEATHER_URL", openweathermap.DefaultBaseURL)

	timeout, err := time.ParseDuration(getenvDefault("WEATHER_TIMEOUT", "10s"))
	if err != nil {
		return fmt.Errorf("invalid WEATHER_TIMEOUT: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("WEATHER_TIMEOUT must be positive, got %s", timeout)
	}
	c.Weather.Timeout = timeout

	c.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid TIMEZONE: %w", err)
		}
		c.Location = loc
	}

	c.RefreshAt = getenvDefault("REFRESH_AT", "01:00")
	if _, err := time.Parse("15:04", c.RefreshAt); err != nil {
		return fmt.Errorf("REFRESH_AT must be HH:MM: %w", err)
	}
	c.RefreshOnStart = strings.EqualFold(os.Getenv("REFRESH_ON_START"), "true")

	return nil
}
