// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// maxAccessTokenTTL keeps access tokens shorter-lived than the refresh
// token that reissues them.
const maxAccessTokenTTL = 24 * time.Hour

type Config struct {
	// Env is development or production.
	Env string

	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Database
	DBDriver string
	DBDSN    string

	// Auth. Refresh tokens always live 24h, see auth.RefreshTokenTTL.
	JWTSecret      string
	AccessTokenTTL time.Duration
	CookieSecure   bool

	// CORSAllowedOrigins may call the API cross-origin with credentials.
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// AMQP. Events are dropped when AMQPURL is empty.
	AMQPURL      string
	AMQPExchange string
}

// Load reads the configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		Env:             getEnv("APP_ENV", EnvDevelopment),
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		DBDriver: getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    getEnv("DB_DSN", "./data/groupsplit.db"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 5*time.Minute),
		CookieSecure:   getEnvBool("COOKIE_SECURE", true),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "groupsplit.events"),
	}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var err error

	if port, perr := strconv.Atoi(c.Port); perr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		err = multierr.Append(err, fmt.Errorf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		err = multierr.Append(err, fmt.Errorf("invalid APP_ENV '%s': must be %s or %s", c.Env, EnvDevelopment, EnvProduction))
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		err = multierr.Append(err, fmt.Errorf("invalid DB_DRIVER '%s': must be sqlite or postgres", c.DBDriver))
	}
	if c.DBDSN == "" {
		err = multierr.Append(err, errors.New("DB_DSN cannot be empty"))
	}

	if c.JWTSecret == "" && c.Env == EnvProduction {
		err = multierr.Append(err, errors.New("JWT_SECRET is required in production"))
	}
	if c.AccessTokenTTL <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid ACCESS_TOKEN_TTL %v: must be positive", c.AccessTokenTTL))
	}
	if c.AccessTokenTTL > maxAccessTokenTTL {
		err = multierr.Append(err, fmt.Errorf("invalid ACCESS_TOKEN_TTL %v: must not exceed %v", c.AccessTokenTTL, maxAccessTokenTTL))
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("invalid LOG_FORMAT '%s': must be text or json", c.LogFormat))
	}

	if c.AMQPURL != "" {
		if parsedURL, perr := url.Parse(c.AMQPURL); perr != nil {
			err = multierr.Append(err, fmt.Errorf("invalid AMQP URL '%s': %v", c.AMQPURL, perr))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			err = multierr.Append(err, fmt.Errorf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			err = multierr.Append(err, errors.New("AMQP exchange name cannot be empty when AMQP URL is provided"))
		}
	}

	for _, origin := range c.CORSAllowedOrigins {
		if origin == "*" {
			err = multierr.Append(err, errors.New("invalid CORS_ALLOWED_ORIGINS: '*' cannot be combined with credentials"))
			continue
		}
		if u, perr := url.Parse(origin); perr != nil || u.Scheme == "" || u.Host == "" {
			err = multierr.Append(err, fmt.Errorf("invalid CORS origin '%s': must be scheme://host", origin))
		}
	}

	if c.ShutdownTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %v: must be positive", c.ShutdownTimeout))
	}

	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
