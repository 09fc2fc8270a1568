package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	goSecure "github.com/MrEthical07/goSecure"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// settings is the process configuration read from the environment.
type settings struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TrustProxy      bool          `env:"TRUST_PROXY" envDefault:"false"`
	LocationHeader  string        `env:"LOCATION_HEADER"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// PostgresURL selects the Postgres account store; empty keeps
	// profiles in Redis.
	PostgresURL     string `env:"POSTGRES_URL"`
	PostgresMigrate bool   `env:"POSTGRES_MIGRATE" envDefault:"true"`

	ProductionMode bool   `env:"PRODUCTION_MODE" envDefault:"false"`
	Issuer         string `env:"TOTP_ISSUER" envDefault:"goSecure"`
	SigningMethod  string `env:"BEARER_SIGNING_METHOD" envDefault:"ed25519"`
	// SigningKey is base64: a 32-byte ed25519 seed or an hs256 secret.
	SigningKey     string        `env:"BEARER_SIGNING_KEY,required"`
	BearerIssuer   string        `env:"BEARER_ISSUER" envDefault:"securityd"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	ReaperInterval time.Duration `env:"SESSION_REAPER_INTERVAL" envDefault:"1h"`
	Retention      time.Duration `env:"SESSION_RETENTION" envDefault:"720h"`

	RevokeSessionsOnPasswordChange bool `env:"REVOKE_SESSIONS_ON_PASSWORD_CHANGE" envDefault:"false"`
	MetricsEnabled                 bool `env:"METRICS_ENABLED" envDefault:"true"`
	AuditEnabled                   bool `env:"AUDIT_ENABLED" envDefault:"true"`
}

// loadSettings reads .env when present, then the process environment.
// A non-nil environ replaces the process environment.
func loadSettings(dotenv string, environ map[string]string) (settings, error) {
	if dotenv != "" && environ == nil {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return settings{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	var s settings
	opts := env.Options{Prefix: "SECURITYD_"}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return settings{}, fmt.Errorf("parse environment: %w", err)
	}
	return s, nil
}

func (s settings) engineConfig() (goSecure.Config, error) {
	key, err := base64.StdEncoding.DecodeString(s.SigningKey)
	if err != nil {
		return goSecure.Config{}, fmt.Errorf("BEARER_SIGNING_KEY: %w", err)
	}

	cfg := goSecure.DefaultConfig()
	cfg.TOTP.Issuer = s.Issuer
	cfg.Session.TTL = s.SessionTTL
	cfg.Session.ReaperInterval = s.ReaperInterval
	cfg.Session.Retention = s.Retention
	cfg.Security.ProductionMode = s.ProductionMode
	cfg.Password.RevokeOtherSessionsOnChange = s.RevokeSessionsOnPasswordChange
	cfg.Metrics.Enabled = s.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.MetricsEnabled
	cfg.Audit.Enabled = s.AuditEnabled
	cfg.Bearer.SigningMethod = s.SigningMethod
	cfg.Bearer.Issuer = s.BearerIssuer

	switch s.SigningMethod {
	case "ed25519":
		if len(key) != ed25519.SeedSize {
			return goSecure.Config{}, errors.New("BEARER_SIGNING_KEY must be a 32-byte ed25519 seed")
		}
		priv := ed25519.NewKeyFromSeed(key)
		cfg.Bearer.PrivateKey = priv
		cfg.Bearer.PublicKey = priv.Public().(ed25519.PublicKey)
	default:
		cfg.Bearer.PrivateKey = key
	}

	if err := cfg.Validate(); err != nil {
		return goSecure.Config{}, err
	}
	return cfg, nil
}

func (s settings) level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
