// Command securityd serves the account-security API.
//
// Configuration comes from SECURITYD_* environment variables, optionally
// seeded from a .env file. Profiles live in Postgres when
// SECURITYD_POSTGRES_URL is set and in Redis otherwise; sessions always
// live in Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goSecure "github.com/MrEthical07/goSecure"
	"github.com/MrEthical07/goSecure/account"
	"github.com/MrEthical07/goSecure/accountstore/pgstore"
	"github.com/MrEthical07/goSecure/accountstore/redisstore"
	"github.com/MrEthical07/goSecure/httpapi"
	"github.com/MrEthical07/goSecure/metrics/export/otel"
	"github.com/MrEthical07/goSecure/metrics/export/prometheus"
	"github.com/MrEthical07/goSecure/middleware"
	"github.com/redis/go-redis/v9"
	otelapi "go.opentelemetry.io/otel"
)

func main() {
	dotenv := flag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	if err := run(*dotenv); err != nil {
		slog.Error("securityd stopped", "error", err)
		os.Exit(1)
	}
}

func run(dotenv string) error {
	s, err := loadSettings(dotenv, nil)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: s.level()}))
	slog.SetDefault(logger)

	cfg, err := s.engineConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: s.RedisAddr, Password: s.RedisPassword, DB: s.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	var accounts account.Store
	if s.PostgresURL != "" {
		pool, err := pgstore.Connect(ctx, pgstore.PoolConfig{
			ConnectionString: s.PostgresURL,
			RetryAttempts:    5,
			RetryInterval:    time.Second,
		})
		if err != nil {
			return err
		}
		defer pool.Close()
		if s.PostgresMigrate {
			if err := pgstore.Migrate(ctx, pool, logger); err != nil {
				return err
			}
		}
		accounts = pgstore.New(pool)
	} else {
		accounts = redisstore.New(rdb, cfg.Session.RedisPrefix)
	}

	engine, err := goSecure.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(accounts).
		WithAuditSink(goSecure.NewSlogSink(logger.With("component", "audit"))).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	logger.Info("engine ready", "security_report", engine.SecurityReport())

	if cfg.Metrics.Enabled {
		exp, err := otel.NewExporter(otelapi.Meter("github.com/MrEthical07/goSecure"), engine)
		if err != nil {
			return err
		}
		defer exp.Close()
	}

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		engine.NewSessionReaper().Run(ctx)
	}()

	router := httpapi.New(engine, httpapi.Config{
		Client: middleware.ClientContextConfig{
			TrustForwardedFor: s.TrustProxy,
			LocationHeader:    s.LocationHeader,
		},
	}, logger).Router()
	router.Handle("/metrics", prometheus.NewExporter(engine).Handler()).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	<-reaperDone
	return err
}
