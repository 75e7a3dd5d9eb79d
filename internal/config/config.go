package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Seconds is a duration read from the environment either as float seconds ("0.5")
// or as a Go duration string ("500ms").
type Seconds time.Duration

// Decode implements envconfig.Decoder.
func (s *Seconds) Decode(value string) error {
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		*s = Seconds(time.Duration(f * float64(time.Second)))
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*s = Seconds(d)
	return nil
}

// Duration returns s as a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(s)
}

// Config holds configuration loaded from the environment. It is read once at startup.
type Config struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"9876"`

	WindowSize     int     `envconfig:"WINDOW_SIZE" default:"10"`
	RequestTimeout Seconds `envconfig:"REQUEST_TIMEOUT" default:"0.5"`

	UpstreamBaseURL string `envconfig:"TEST_SERVER_BASE_URL" default:"http://20.244.56.144/evaluation-service"`
	AuthToken       string `envconfig:"AUTH_TOKEN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"20"`

	// TrustProxy keys clients on X-Forwarded-For instead of the peer address.
	TrustProxy       bool    `envconfig:"RATE_LIMIT_TRUST_PROXY" default:"false"`
	RateLimitIdleTTL Seconds `envconfig:"RATE_LIMIT_IDLE_TTL" default:"3m"`

	CircuitFailureThreshold int     `envconfig:"CIRCUIT_FAILURE_THRESHOLD" default:"5"`
	CircuitResetTimeout     Seconds `envconfig:"CIRCUIT_RESET_TIMEOUT" default:"10s"`

	GracefulShutdownTimeout Seconds `envconfig:"GRACEFUL_SHUTDOWN_TIMEOUT" default:"15s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// Load reads an optional .env file from the working directory, then decodes the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("WINDOW_SIZE must be at least 1, got %d", c.WindowSize)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout.Duration())
	}
	if c.RateLimitRPS > 0 && c.RateLimitIdleTTL <= 0 {
		return fmt.Errorf("RATE_LIMIT_IDLE_TTL must be positive, got %s", c.RateLimitIdleTTL.Duration())
	}
	u, err := url.Parse(c.UpstreamBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("TEST_SERVER_BASE_URL is not a valid absolute URL: %q", c.UpstreamBaseURL)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	return nil
}

// ListenAddr joins host and port.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// ok is false when token is empty, not a JWT, or carries no exp.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
