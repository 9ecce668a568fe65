// Package sim runs a plot day by day: soil replenishment, demand update,
// water and nitrogen arbitration, then telemetry.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/rootshare/arbitration"
	"github.com/pthm-cable/rootshare/config"
	"github.com/pthm-cable/rootshare/persistence"
	"github.com/pthm-cable/rootshare/plot"
	"github.com/pthm-cable/rootshare/telemetry"
)

// Options configures a simulation run.
type Options struct {
	Seed        int64 // 0 = scenario seed, then time based
	Days        int   // 0 = scenario days
	LogStats    bool
	StatsWindow int // days per stats window, 0 = config
	OutputDir   string
	SnapshotDir string
	DBPath      string

	StatsCallback func(telemetry.WindowStats)
}

// Simulation holds the complete state of a run.
type Simulation struct {
	cfg   *config.Config
	opts  Options
	runID string
	seed  int64

	plot *plot.Plot
	arb  *arbitration.Arbitrator

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	season    *telemetry.SeasonTracker
	output    *telemetry.OutputManager
	store     *persistence.DB

	day           int
	days          int
	lastReplenish plot.Replenishment
	last          map[arbitration.Resource]telemetry.DaySummary
}

// New builds a simulation from cfg.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Scenario.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	days := opts.Days
	if days <= 0 {
		days = cfg.Scenario.Days
	}
	window := opts.StatsWindow
	if window <= 0 {
		window = cfg.Telemetry.LogInterval
	}

	p, err := plot.Generate(cfg, seed)
	if err != nil {
		return nil, fmt.Errorf("generating plot: %w", err)
	}

	arbOpts := cfg.ArbitrationOptions()
	arbOpts.Logger = slog.Default()
	arb, err := arbitration.New(p, p, p, p, arbOpts)
	if err != nil {
		return nil, fmt.Errorf("creating arbitrator: %w", err)
	}

	s := &Simulation{
		cfg:       cfg,
		opts:      opts,
		runID:     uuid.NewString(),
		seed:      seed,
		plot:      p,
		arb:       arb,
		collector: telemetry.NewCollector(window),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarks: telemetry.NewBookmarkDetector(10),
		season:    telemetry.NewSeasonTracker(),
		days:      days,
		last:      make(map[arbitration.Resource]telemetry.DaySummary),
	}
	for _, id := range p.Plants() {
		s.season.Register(id, p.PlantInfo(id).Name)
	}

	if s.output, err = telemetry.NewOutputManager(opts.OutputDir); err != nil {
		return nil, err
	}
	if err := s.output.WriteConfig(cfg); err != nil {
		s.Close()
		return nil, err
	}

	if opts.DBPath != "" {
		if s.store, err = persistence.Open(opts.DBPath); err != nil {
			s.Close()
			return nil, err
		}
		data, err := cfg.YAML()
		if err != nil {
			s.Close()
			return nil, err
		}
		run := persistence.Run{
			ID:             s.runID,
			StartedAt:      time.Now().UTC().Format(time.RFC3339),
			Seed:           seed,
			Method:         arbOpts.Method,
			NitrogenMethod: arb.NitrogenMethod().Number(),
			Config:         string(data),
		}
		if err := s.store.SaveRun(run); err != nil {
			s.Close()
			return nil, err
		}
	}

	slog.Info("simulation ready",
		"run_id", s.runID,
		"seed", seed,
		"days", days,
		"zones", len(p.Zones()),
		"plants", len(p.Plants()),
		"nitrogen_method", arb.NitrogenMethod().Name(),
	)
	return s, nil
}

// Step advances the run by one day.
func (s *Simulation) Step() error {
	w := s.cfg.Weather
	s.day++
	s.perf.StartDay()
	defer s.perf.EndDay()

	s.perf.StartPhase(telemetry.PhaseReplenish)
	var rain float64
	if w.RainInterval > 0 && s.day%w.RainInterval == 0 {
		rain = w.RainAmount
	}
	s.lastReplenish = s.plot.Replenish(rain, w.Mineralisation, w.Nitrification)
	s.collector.RecordReplenish(s.lastReplenish.Rain*float64(len(s.plot.Zones())), s.lastReplenish.Drainage, s.lastReplenish.Mineral)

	s.perf.StartPhase(telemetry.PhaseDemand)
	s.plot.UpdateDemand(s.day)

	s.perf.StartPhase(telemetry.PhaseWater)
	water, err := s.arb.RunDay(arbitration.Water)
	if err != nil {
		return fmt.Errorf("day %d: %w", s.day, err)
	}

	s.perf.StartPhase(telemetry.PhaseNitrogen)
	nitrogen, err := s.arb.RunDay(arbitration.Nitrogen)
	if err != nil {
		return fmt.Errorf("day %d: %w", s.day, err)
	}

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.recordDay(water)
	s.recordDay(nitrogen)
	s.flushTelemetry(false)
	return nil
}

// Run steps until the configured number of days has passed or ctx is done.
func (s *Simulation) Run(ctx context.Context) error {
	for s.day < s.days {
		if err := ctx.Err(); err != nil {
			s.finish()
			return err
		}
		if err := s.Step(); err != nil {
			s.finish()
			return err
		}
	}
	s.finish()
	slog.Info("simulation finished", "run_id", s.runID, "days", s.day)
	return nil
}

// finish flushes a partial window and writes run totals.
func (s *Simulation) finish() {
	s.flushTelemetry(true)
	if s.opts.LogStats {
		s.season.LogStats()
	}
	if err := s.output.WriteSeason(s.season.All()); err != nil {
		slog.Error("failed to write season stats", "error", err)
	}
	if s.store != nil {
		if err := s.store.FinishRun(s.runID, s.day); err != nil {
			slog.Error("failed to finish run", "error", err)
		}
	}
}

// Close releases output files and the database.
func (s *Simulation) Close() error {
	var firstErr error
	if err := s.output.Close(); err != nil {
		firstErr = err
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Day returns the number of completed days.
func (s *Simulation) Day() int { return s.day }

// Days returns the length of the run.
func (s *Simulation) Days() int { return s.days }

// RunID returns the run's unique ID.
func (s *Simulation) RunID() string { return s.runID }

// Seed returns the seed the plot was generated with.
func (s *Simulation) Seed() int64 { return s.seed }

// Plot returns the simulated plot.
func (s *Simulation) Plot() *plot.Plot { return s.plot }

// Season returns the per-plant totals so far.
func (s *Simulation) Season() *telemetry.SeasonTracker { return s.season }

// LastSummary returns the most recent summary for a resource.
func (s *Simulation) LastSummary(r arbitration.Resource) telemetry.DaySummary { return s.last[r] }

// LastReplenish returns the most recent day's soil inputs.
func (s *Simulation) LastReplenish() plot.Replenishment { return s.lastReplenish }
