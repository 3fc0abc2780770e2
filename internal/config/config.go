// Package config loads service settings. Environment variables
// (PAYMENTAPI_*) override the YAML file, which overrides the defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chr1sbest/payment-api/internal/auth"
)

// EnvPrefix prefixes every environment override, e.g. PAYMENTAPI_JWT_SECRET.
const EnvPrefix = "PAYMENTAPI"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Docs     DocsConfig     `mapstructure:"docs"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the store: "sqlite", "postgres" or "memory".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// JWTConfig holds the signing secret and the token validation toggles.
type JWTConfig struct {
	Secret                string        `mapstructure:"secret"`
	ValidateIssuer        bool          `mapstructure:"validate_issuer"`
	Issuer                string        `mapstructure:"issuer"`
	ValidateAudience      bool          `mapstructure:"validate_audience"`
	Audience              string        `mapstructure:"audience"`
	ValidateLifetime      bool          `mapstructure:"validate_lifetime"`
	RequireExpirationTime bool          `mapstructure:"require_expiration_time"`
	ClockSkew             time.Duration `mapstructure:"clock_skew"`
	RolesClaim            string        `mapstructure:"roles_claim"`
}

// AuthConfig switches the authentication gates on or off. When off, every
// payment route is declared public.
type AuthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// CORSConfig lists the origins allowed to call the API. "*" allows any.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DocsConfig controls the published API description.
type DocsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Title       string `mapstructure:"title"`
	Version     string `mapstructure:"version"`
	Description string `mapstructure:"description"`
}

// LogConfig selects level, encoder ("json" or "console") and an optional
// rotating log file.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./paymentapi.db")

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.validate_issuer", false)
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.validate_audience", false)
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.validate_lifetime", true)
	v.SetDefault("jwt.require_expiration_time", false)
	v.SetDefault("jwt.clock_skew", time.Duration(0))
	v.SetDefault("jwt.roles_claim", auth.DefaultRolesClaim)

	v.SetDefault("auth.enabled", true)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("docs.enabled", true)
	v.SetDefault("docs.title", "Payment API")
	v.SetDefault("docs.version", "v1")
	v.SetDefault("docs.description", "Payment detail CRUD service")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

// Load reads configuration. An explicit path must exist; without one the
// standard locations are searched and a missing file is not an error. Load
// does not call Validate.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/paymentapi/")
		v.AddConfigPath("$HOME/.paymentapi")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	if c.Auth.Enabled {
		if _, err := auth.NewRules(c.RulesConfig()); err != nil {
			return fmt.Errorf("jwt: %w", err)
		}
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres or memory, got %q", c.Database.Driver)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// RulesConfig maps the jwt section onto token validation settings.
func (c *Config) RulesConfig() auth.RulesConfig {
	return auth.RulesConfig{
		Secret:                c.JWT.Secret,
		ValidateIssuer:        c.JWT.ValidateIssuer,
		Issuer:                c.JWT.Issuer,
		ValidateAudience:      c.JWT.ValidateAudience,
		Audience:              c.JWT.Audience,
		ValidateLifetime:      c.JWT.ValidateLifetime,
		RequireExpirationTime: c.JWT.RequireExpirationTime,
		ClockSkew:             c.JWT.ClockSkew,
		RolesClaim:            c.JWT.RolesClaim,
	}
}
