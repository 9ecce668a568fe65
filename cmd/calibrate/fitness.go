package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/rootshare/config"
	"github.com/pthm-cable/rootshare/sim"
	"github.com/pthm-cable/rootshare/telemetry"
)

// FitnessEvaluator runs headless simulations and scores how close the season
// supply comes to the target.
type FitnessEvaluator struct {
	params     *ParamVector
	days       int
	seeds      []int64
	configPath string
	target     float64

	mu          sync.Mutex
	lastWater   float64
	lastN       float64
	bestFitness float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, days int, seeds []int64, configPath string, target float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		days:        days,
		seeds:       seeds,
		configPath:  configPath,
		target:      target,
		bestFitness: math.Inf(1),
	}
}

// LastSatisfaction returns the mean water and nitrogen satisfaction of the
// most recent evaluation.
func (fe *FitnessEvaluator) LastSatisfaction() (water, nitrogen float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastWater, fe.lastN
}

// seasonResult holds the outcome of one seed.
type seasonResult struct {
	water, nitrogen float64 // season satisfaction
	waterStd, nStd  float64 // spread across windows
	failed          bool
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seasonResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSeason(x, s)
		}(i, seed)
	}
	wg.Wait()

	var total, water, nitrogen float64
	for _, r := range results {
		total += fe.computeFitness(r)
		water += r.water
		nitrogen += r.nitrogen
	}
	n := float64(len(results))
	avg := total / n

	fe.mu.Lock()
	fe.lastWater = water / n
	fe.lastN = nitrogen / n
	if avg < fe.bestFitness {
		fe.bestFitness = avg
	}
	fe.mu.Unlock()
	return avg
}

// runSeason executes a single headless run and reduces its window stats.
func (fe *FitnessEvaluator) runSeason(x []float64, seed int64) seasonResult {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return seasonResult{failed: true}
	}
	fe.params.ApplyToConfig(cfg, x)
	if err := cfg.Validate(); err != nil {
		return seasonResult{failed: true}
	}

	var windows []telemetry.WindowStats
	s, err := sim.New(cfg, sim.Options{
		Seed: seed,
		Days: fe.days,
		StatsCallback: func(w telemetry.WindowStats) {
			windows = append(windows, w)
		},
	})
	if err != nil {
		slog.Warn("evaluation failed", "seed", seed, "error", err)
		return seasonResult{failed: true}
	}
	defer s.Close()
	if err := s.Run(context.Background()); err != nil {
		slog.Warn("evaluation failed", "seed", seed, "error", err)
		return seasonResult{failed: true}
	}
	return reduceWindows(windows)
}

func reduceWindows(windows []telemetry.WindowStats) seasonResult {
	if len(windows) == 0 {
		return seasonResult{failed: true}
	}
	var wDemand, wUptake, nDemand, nUptake float64
	wSat := make([]float64, len(windows))
	nSat := make([]float64, len(windows))
	for i, w := range windows {
		wDemand += w.WaterDemand
		wUptake += w.WaterUptake
		nDemand += w.NitrogenDemand
		nUptake += w.NitrogenUptake
		wSat[i] = w.WaterSatisfaction
		nSat[i] = w.NitrogenSatisfaction
	}

	r := seasonResult{water: 1, nitrogen: 1}
	if wDemand > 0 {
		r.water = wUptake / wDemand
	}
	if nDemand > 0 {
		r.nitrogen = nUptake / nDemand
	}
	if len(windows) > 1 {
		r.waterStd = stat.StdDev(wSat, nil)
		r.nStd = stat.StdDev(nSat, nil)
	}
	return r
}

// Weight of the window-to-window spread relative to the distance from target.
const stabilityWeight = 0.1

// computeFitness is the squared distance of both season satisfactions from
// the target plus a penalty on their spread across windows.
func (fe *FitnessEvaluator) computeFitness(r seasonResult) float64 {
	if r.failed {
		return 10
	}
	dw := r.water - fe.target
	dn := r.nitrogen - fe.target
	return dw*dw + dn*dn + stabilityWeight*(r.waterStd*r.waterStd+r.nStd*r.nStd)
}
