package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		h, err := HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger := NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := OpenDB(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", cfg.DBPath, err)
	}
	defer db.Close()

	analytics := NewAnalytics(db, logger)
	defer analytics.Stop()

	metrics, err := NewMetrics()
	if err != nil {
		return err
	}

	sessions := NewSessionManager(cfg.Match, cfg.ReplayDir, logger)
	sessions.SetStore(db, analytics)
	sessions.SetMetrics(metrics)
	if _, err := sessions.CreateSession(); err != nil {
		return err
	}

	hub := NewHub(cfg, sessions, logger)
	hub.SetMetrics(metrics)
	var auth *Auth
	if cfg.AdminPassHash != "" {
		auth = NewAuth(db, cfg.AdminPassHash, logger)
	}
	hub.SetStore(db, auth, analytics)
	sessions.OnEnd(func(g *Game) { hub.CloseGame(g, closeMatchEnded) })
	if err := metrics.ObserveConnections(hub.ConnCount); err != nil {
		return fmt.Errorf("registering connection gauge: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           SetupRoutes(ctx, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		errc <- sessions.Run(ctx)
	}()
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("mode", cfg.Match.Mode.String()).
			Int("dimension", cfg.Match.Dim).
			Int64("seed", cfg.Match.Seed).
			Msg("server starting")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
		if err != nil {
			logger.Error().Err(err).Msg("shutting down after error")
		}
	}

	logger.Info().Msg("shutting down")
	stop()
	hub.CloseAll(closeShutdown)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := server.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("http shutdown")
	}
	return err
}
