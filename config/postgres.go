package config

import (
	pgstore "github.com/adamlounds/weather-diary/stores/postgres"
)

type PostgresConfig pgstore.PostgresConfig

// RegisterEnv reads POSTGRES_* variables, defaulting to a local database.
func (cfg *PostgresConfig) RegisterEnv() {
	cfg.Host = getenvDefault("POSTGRES_HOST", "localhost")
	cfg.Port = getenvDefault("POSTGRES_PORT", "5432")
	cfg.User = getenvDefault("POSTGRES_USER", "diary")
	cfg.Password = getenvDefault("POSTGRES_PASSWORD", "")
	cfg.Database = getenvDefault("POSTGRES_DB", "weather_diary")
	cfg.SSLMode = getenvDefault("POSTGRES_SSLMODE", "disable")
}
