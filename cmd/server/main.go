package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	relay "github.com/AZ-204-Projects/event-relay"
	"github.com/AZ-204-Projects/event-relay/internal/api"
	"github.com/AZ-204-Projects/event-relay/internal/config"
	"github.com/AZ-204-Projects/event-relay/internal/metrics"
)

const connectMaxRetries = 5

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("error loading configuration")
	}

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	// Route the queue library's global logger through the same sink
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the database, waiting out slow container starts
	if cfg.Driver == "sqlite3" {
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			logger.Fatal().Err(err).Msg("error preparing sqlite directory")
		}
	}
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening database")
	}
	defer db.Close()
	if err := backoff.Retry(db.Ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectMaxRetries)); err != nil {
		logger.Fatal().Err(err).Msg("error connecting to database")
	}
	if cfg.Driver == "sqlite3" {
		// sqlite allows one writer at a time; a single connection avoids
		// SQLITE_BUSY under concurrent handlers
		db.SetMaxOpenConns(1)
	}
	logger.Info().Str("driver", cfg.Driver).Msg("connected to database")

	client, err := relay.NewClient(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating relay client")
	}
	queue, err := client.NewQueue(&relay.QueueOptions{
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		PoisonThreshold: cfg.PoisonThreshold,
		LeaseDuration:   cfg.LeaseDuration,
		StoreTimeout:    cfg.StoreTimeout,
		DeadLetterTable: cfg.DeadLetterTable,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("error creating queue")
	}

	// The sweeper drains poison messages and refreshes depth gauges on the
	// same schedule
	if _, err := client.NewSweeper(ctx, queue, &relay.SweeperOptions{
		Interval: cfg.SweepInterval,
		OnSweep: func(moved int) {
			if moved > 0 {
				metrics.MessagesDeadLettered.Add(float64(moved))
			}
			stats, err := queue.Stats(ctx)
			if err != nil {
				return
			}
			metrics.QueueDepth.WithLabelValues("visible").Set(float64(stats.Visible))
			metrics.QueueDepth.WithLabelValues("leased").Set(float64(stats.Leased))
			metrics.QueueDepth.WithLabelValues("dead_lettered").Set(float64(stats.DeadLettered))
		},
	}); err != nil {
		logger.Fatal().Err(err).Msg("error starting sweeper")
	}

	router := api.NewRouter(logger, queue, cfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting event-relay server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server...")

		// Graceful shutdown with 30 second timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}

// ensureSQLiteDir creates the directory holding a sqlite database file so a
// fresh checkout can start without setup.
func ensureSQLiteDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
