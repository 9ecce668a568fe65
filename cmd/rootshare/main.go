package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/rootshare/config"
	"github.com/pthm-cable/rootshare/sim"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	days := flag.Int("days", 0, "Days to simulate (0 = use config)")
	seed := flag.Int64("seed", 0, "Scenario seed (0 = use config, then time-based)")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	statsWindow := flag.Int("stats-window", 0, "Stats window size in days (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for bookmark snapshots")
	dbPath := flag.String("db", "", "SQLite database for run history (empty = disabled)")
	debug := flag.Bool("debug", false, "Log every arbitration call")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	s, err := sim.New(config.Cfg(), sim.Options{
		Seed:        *seed,
		Days:        *days,
		LogStats:    *logStats,
		StatsWindow: *statsWindow,
		OutputDir:   *outputDir,
		SnapshotDir: *snapshotDir,
		DBPath:      *dbPath,
	})
	if err != nil {
		slog.Error("failed to start simulation", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := s.Run(ctx)
	if err := s.Close(); err != nil {
		slog.Error("failed to close outputs", "error", err)
	}
	switch {
	case errors.Is(runErr, context.Canceled):
		slog.Info("interrupted", "day", s.Day())
	case runErr != nil:
		slog.Error("simulation failed", "day", s.Day(), "error", runErr)
		os.Exit(1)
	}
}
