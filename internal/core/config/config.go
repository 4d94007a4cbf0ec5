package config

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	redisclient "github.com/vietddude/dal/internal/infra/redis"
	"github.com/vietddude/dal/internal/infra/storage/cached"
	"github.com/vietddude/dal/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database DatabaseConfig     `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Cache    cached.Config      `yaml:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// DatabaseConfig selects the storage backend. With an empty URL the
// in-memory store is used.
type DatabaseConfig struct {
	postgres.Config `yaml:",inline"`

	// Migrate applies pending migrations on startup.
	Migrate bool `yaml:"migrate"`
}

// Enabled reports whether a SQL database is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// Validate checks the loaded configuration.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Logging),
		validation.Field(&c.Database),
		validation.Field(&c.Redis, validation.By(func(any) error {
			return c.Redis.Reconnect.Validate()
		})),
		validation.Field(&c.Cache),
	)
}

func (c ServerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ShutdownTimeout, validation.Min(time.Duration(0))),
	)
}

func (c LoggingConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.Format, validation.In("json", "text")),
	)
}

func (c DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.In(postgres.DriverPgx, postgres.DriverPostgres, postgres.DriverSQLite)),
		validation.Field(&c.MaxConns, validation.Min(0)),
		validation.Field(&c.MinConns, validation.Min(0)),
	)
}
