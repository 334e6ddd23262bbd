// Package config loads process configuration from an optional file, a
// local .env file and environment variables.
//
// PRECEDENCE (highest first):
//
//	real environment variable
//	.env file (never overrides a variable that is already set)
//	config file passed with --config
//	defaults below
//
// Every key has a flat, conventional env var name (PORT, DATABASE_URL,
// ADMIN_PASSWORD...) so the binary drops into Heroku/Vercel-style hosting
// without a config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/heyfriend/landing/internal/auth"
	"github.com/heyfriend/landing/internal/repository/sqldb"
	"github.com/heyfriend/landing/internal/server"
)

// Config represents the configuration of the whole process.
type Config struct {
	HTTP   server.Config `mapstructure:"http"`
	DB     sqldb.Config  `mapstructure:"db"`
	Admin  auth.Config   `mapstructure:"admin"`
	Logger Logger        `mapstructure:"logger"`
}

// Load reads configuration. cfgFile may be empty; when set, the file must
// exist and its extension (.toml, .yaml, .json, .env) selects the format.
// envFiles default to ".env"; missing env files are ignored.
func Load(cfgFile string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}

	cfg.HTTP.AllowedOrigins = splitOrigins(cfg.HTTP.AllowedOrigins)
	cfg.HTTP.Environment = strings.ToLower(strings.TrimSpace(cfg.HTTP.Environment))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late. The admin secret
// is not checked here: commands that don't serve the admin API (migrate,
// export) run without one, and auth.NewSecretVerifier rejects a missing
// secret for the ones that do.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: http.port %d out of range", c.HTTP.Port)
	}
	if c.HTTP.Environment == "" {
		return fmt.Errorf("config: http.environment must not be empty")
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return fmt.Errorf("config: db.dsn must not be empty")
	}
	if c.DB.MaxOpenConnections < 0 {
		return fmt.Errorf("config: db.max_open_connections must not be negative")
	}
	if _, err := c.Logger.level(); err != nil {
		return err
	}
	switch c.Logger.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("config: logger.format %q must be %q or %q", c.Logger.Format, FormatText, FormatJSON)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.environment", "development")
	v.SetDefault("http.allowed_origins", []string{})
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "30s")

	v.SetDefault("db.dsn", "data/heyfriend.db")
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.max_open_connections", 0)
	v.SetDefault("db.max_idle_connections", 0)

	v.SetDefault("admin.password", "")
	v.SetDefault("admin.password_hash", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", FormatText)
	v.SetDefault("logger.add_source", false)
}

// bindEnvVars maps each key to its env var. When several names are given
// the first one set wins, so POSTGRES_URL beats DATABASE_URL.
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"http.port":               {"PORT"},
		"http.allowed_origins":    {"ALLOWED_ORIGINS"},
		"http.environment":        {"APP_ENV"},
		"http.read_timeout":       {"HTTP_READ_TIMEOUT"},
		"http.write_timeout":      {"HTTP_WRITE_TIMEOUT"},
		"http.idle_timeout":       {"HTTP_IDLE_TIMEOUT"},
		"http.shutdown_timeout":   {"HTTP_SHUTDOWN_TIMEOUT"},
		"db.dsn":                  {"POSTGRES_URL", "DATABASE_URL"},
		"db.automigrate":          {"DB_AUTOMIGRATE"},
		"db.max_open_connections": {"DB_MAX_OPEN_CONNECTIONS"},
		"db.max_idle_connections": {"DB_MAX_IDLE_CONNECTIONS"},
		"admin.password":          {"ADMIN_PASSWORD"},
		"admin.password_hash":     {"ADMIN_PASSWORD_HASH"},
		"logger.level":            {"LOG_LEVEL"},
		"logger.format":           {"LOG_FORMAT"},
		"logger.add_source":       {"LOG_ADD_SOURCE"},
	}

	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("config: binding %s: %w", key, err)
		}
	}
	return nil
}

// splitOrigins accepts both a list (from a config file) and a single
// comma-separated entry (from ALLOWED_ORIGINS).
func splitOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
