package telemetry

import (
	"log/slog"
	"slices"

	"github.com/pthm-cable/rootshare/arbitration"
)

// SeasonStats tracks one plant's totals over a run.
type SeasonStats struct {
	Plant int    `csv:"plant"`
	Name  string `csv:"name"`

	WaterDemand    float64 `csv:"water_demand"`
	WaterUptake    float64 `csv:"water_uptake"`
	NitrogenDemand float64 `csv:"nitrogen_demand"`
	NitrogenUptake float64 `csv:"nitrogen_uptake"`
	NitrateUptake  float64 `csv:"nitrate_uptake"`

	WaterStressDays    int `csv:"water_stress_days"`
	NitrogenStressDays int `csv:"nitrogen_stress_days"`

	PeakWaterUptake float64 `csv:"peak_water_uptake"`
}

// stressTolerance is the uptake shortfall below which a day does not count as stressed.
const stressTolerance = 1e-9

// SeasonTracker accumulates per-plant totals from arbitration results.
type SeasonTracker struct {
	stats map[arbitration.PlantID]*SeasonStats
}

// NewSeasonTracker creates an empty tracker.
func NewSeasonTracker() *SeasonTracker {
	return &SeasonTracker{stats: make(map[arbitration.PlantID]*SeasonStats)}
}

// Register names a plant. Plants seen in a result without registering are tracked unnamed.
func (st *SeasonTracker) Register(plant arbitration.PlantID, name string) {
	st.entry(plant).Name = name
}

func (st *SeasonTracker) entry(plant arbitration.PlantID) *SeasonStats {
	s, ok := st.stats[plant]
	if !ok {
		s = &SeasonStats{Plant: int(plant)}
		st.stats[plant] = s
	}
	return s
}

// Record adds one arbitration result.
func (st *SeasonTracker) Record(res *arbitration.Result) {
	for _, p := range res.Plants {
		s := st.entry(p.Plant)
		stressed := p.Demand-p.Uptake > stressTolerance
		switch res.Resource {
		case arbitration.Water:
			s.WaterDemand += p.Demand
			s.WaterUptake += p.Uptake
			s.PeakWaterUptake = max(s.PeakWaterUptake, p.Uptake)
			if stressed {
				s.WaterStressDays++
			}
		case arbitration.Nitrogen:
			s.NitrogenDemand += p.Demand
			s.NitrogenUptake += p.Uptake
			s.NitrateUptake += p.Nitrate
			if stressed {
				s.NitrogenStressDays++
			}
		}
	}
}

// Get returns a plant's stats, or nil if not found.
func (st *SeasonTracker) Get(plant arbitration.PlantID) *SeasonStats {
	return st.stats[plant]
}

// All returns every plant's stats ordered by plant ID.
func (st *SeasonTracker) All() []SeasonStats {
	out := make([]SeasonStats, 0, len(st.stats))
	for _, s := range st.stats {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b SeasonStats) int { return a.Plant - b.Plant })
	return out
}

// Count returns the number of tracked plants.
func (st *SeasonTracker) Count() int {
	return len(st.stats)
}

// LogStats logs one line per plant.
func (st *SeasonTracker) LogStats() {
	for _, s := range st.All() {
		slog.Info("season",
			"plant", s.Plant,
			"name", s.Name,
			"water_uptake", s.WaterUptake,
			"water_demand", s.WaterDemand,
			"water_stress_days", s.WaterStressDays,
			"n_uptake", s.NitrogenUptake,
			"n_demand", s.NitrogenDemand,
			"n_stress_days", s.NitrogenStressDays,
		)
	}
}
