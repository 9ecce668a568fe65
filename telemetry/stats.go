package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/rootshare/arbitration"
)

// DaySummary holds the aggregated outcome of one arbitration call.
type DaySummary struct {
	Day      int    `csv:"day" db:"day"`
	Resource string `csv:"resource" db:"resource"`

	Plants       int `csv:"plants" db:"plants"`
	Compartments int `csv:"compartments" db:"compartments"`

	// Totals over all plants
	Demand      float64 `csv:"demand" db:"demand"`
	Extractable float64 `csv:"extractable" db:"extractable"`
	Uptake      float64 `csv:"uptake" db:"uptake"`
	Nitrate     float64 `csv:"nitrate" db:"nitrate"`

	// Totals over all compartments
	Available float64 `csv:"available" db:"available"`
	Residual  float64 `csv:"residual" db:"residual"` // available minus uptake

	Satisfaction float64 `csv:"satisfaction" db:"satisfaction"` // uptake / demand

	// Scarcity over compartments with demand
	ScarcityMean float64 `csv:"scarcity_mean" db:"scarcity_mean"`
	ScarcityMin  float64 `csv:"scarcity_min" db:"scarcity_min"`
	ScarcityP10  float64 `csv:"scarcity_p10" db:"scarcity_p10"`
	Limited      int     `csv:"limited" db:"limited"` // compartments with scarcity below 1
}

// Summarize reduces an arbitration result to a DaySummary.
func Summarize(day int, res *arbitration.Result) DaySummary {
	s := DaySummary{
		Day:          day,
		Resource:     res.Resource.String(),
		Plants:       len(res.Plants),
		Compartments: len(res.Compartments),
		Satisfaction: 1,
		ScarcityMean: 1,
		ScarcityMin:  1,
		ScarcityP10:  1,
	}

	demand := make([]float64, len(res.Plants))
	uptake := make([]float64, len(res.Plants))
	for i, p := range res.Plants {
		demand[i] = p.Demand
		uptake[i] = p.Uptake
		s.Extractable += p.Extractable
		s.Nitrate += p.Nitrate
	}
	s.Demand = floats.Sum(demand)
	s.Uptake = floats.Sum(uptake)

	var scarcity []float64
	for _, c := range res.Compartments {
		s.Available += c.Resource
		if c.Demand > 0 {
			scarcity = append(scarcity, c.Scarcity)
			if c.Scarcity < 1 {
				s.Limited++
			}
		}
	}
	s.Residual = s.Available - s.Uptake
	if s.Demand > 0 {
		s.Satisfaction = s.Uptake / s.Demand
	}

	if len(scarcity) > 0 {
		slices.Sort(scarcity)
		s.ScarcityMean = stat.Mean(scarcity, nil)
		s.ScarcityMin = floats.Min(scarcity)
		s.ScarcityP10 = Percentile(scarcity, 0.10)
	}
	return s
}

// Percentile returns the p-th percentile of a sorted slice using linear
// interpolation between closest ranks. Returns 0 if the slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// LogValue implements slog.LogValuer for structured logging.
func (s DaySummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("day", s.Day),
		slog.String("resource", s.Resource),
		slog.Float64("demand", s.Demand),
		slog.Float64("uptake", s.Uptake),
		slog.Float64("available", s.Available),
		slog.Float64("satisfaction", s.Satisfaction),
		slog.Float64("scarcity_min", s.ScarcityMin),
		slog.Int("limited", s.Limited),
	)
}

// UptakeRecord is one plant's uptake from one layer of one zone on one day.
type UptakeRecord struct {
	Day             int     `csv:"day" db:"day"`
	Resource        string  `csv:"resource" db:"resource"`
	Plant           int     `csv:"plant" db:"plant"`
	PlantName       string  `csv:"plant_name" db:"plant_name"`
	Zone            int     `csv:"zone" db:"zone"`
	Layer           int     `csv:"layer" db:"layer"`
	Amount          float64 `csv:"amount" db:"amount"`
	NitrateFraction float64 `csv:"nitrate_fraction" db:"nitrate_fraction"`
	SupplyNitrate   float64 `csv:"supply_nitrate" db:"supply_nitrate"`
}

// Records flattens a result into per-layer uptake rows. Layers with no uptake
// are skipped. name may be nil.
func Records(day int, res *arbitration.Result, name func(arbitration.PlantID) string) []UptakeRecord {
	var out []UptakeRecord
	for _, p := range res.Plants {
		var pname string
		if name != nil {
			pname = name(p.Plant)
		}
		for _, lu := range p.Layers {
			if lu.Amount <= 0 {
				continue
			}
			out = append(out, UptakeRecord{
				Day:             day,
				Resource:        res.Resource.String(),
				Plant:           int(p.Plant),
				PlantName:       pname,
				Zone:            int(lu.Zone),
				Layer:           lu.Layer,
				Amount:          lu.Amount,
				NitrateFraction: lu.NitrateFraction,
				SupplyNitrate:   lu.SupplyNitrate,
			})
		}
	}
	return out
}
