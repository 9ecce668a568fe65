// Package telemetry aggregates arbitration results into daily summaries,
// window stats, bookmarks, snapshots and CSV output.
package telemetry

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Collector accumulates daily results within windows of days and produces WindowStats.
type Collector struct {
	windowDays  int
	windowStart int

	water    resourceWindow
	nitrogen resourceWindow

	rain     float64
	drainage float64
	mineral  float64
}

type resourceWindow struct {
	demand       float64
	uptake       float64
	nitrate      float64
	limitedDays  int
	scarcityMin  float64
	satisfaction []float64
}

func (w *resourceWindow) add(s DaySummary) {
	if len(w.satisfaction) == 0 || s.ScarcityMin < w.scarcityMin {
		w.scarcityMin = s.ScarcityMin
	}
	w.demand += s.Demand
	w.uptake += s.Uptake
	w.nitrate += s.Nitrate
	if s.Limited > 0 {
		w.limitedDays++
	}
	w.satisfaction = append(w.satisfaction, s.Satisfaction)
}

// stats returns the window's overall satisfaction and the spread of the daily values.
func (w *resourceWindow) stats() (satisfaction, std, scarcityMin float64) {
	if len(w.satisfaction) == 0 {
		return 1, 0, 1
	}
	satisfaction = 1
	if w.demand > 0 {
		satisfaction = w.uptake / w.demand
	}
	if len(w.satisfaction) > 1 {
		_, std = stat.MeanStdDev(w.satisfaction, nil)
		if math.IsNaN(std) {
			std = 0
		}
	}
	return satisfaction, std, w.scarcityMin
}

// NewCollector creates a collector that flushes every windowDays days.
func NewCollector(windowDays int) *Collector {
	if windowDays < 1 {
		windowDays = 1
	}
	return &Collector{windowDays: windowDays}
}

// Record adds one day's arbitration summary to the current window.
func (c *Collector) Record(s DaySummary) {
	switch s.Resource {
	case "water":
		c.water.add(s)
	case "nitrogen":
		c.nitrogen.add(s)
	}
}

// RecordReplenish adds one day's soil inputs to the current window.
func (c *Collector) RecordReplenish(rain, drainage, mineral float64) {
	c.rain += rain
	c.drainage += drainage
	c.mineral += mineral
}

// ShouldFlush returns true if enough days have passed to flush the window.
func (c *Collector) ShouldFlush(day int) bool {
	return day-c.windowStart >= c.windowDays
}

// SoilPools holds plot-wide soil totals at the end of a window.
type SoilPools struct {
	Water    float64
	Nitrate  float64
	Ammonium float64
}

// Flush produces a WindowStats and resets the counters for the next window.
func (c *Collector) Flush(day int, pools SoilPools) WindowStats {
	wSat, wStd, wMin := c.water.stats()
	nSat, nStd, nMin := c.nitrogen.stats()

	stats := WindowStats{
		WindowStart: c.windowStart,
		WindowEnd:   day,

		WaterDemand:          c.water.demand,
		WaterUptake:          c.water.uptake,
		WaterSatisfaction:    wSat,
		WaterSatisfactionStd: wStd,
		WaterScarcityMin:     wMin,
		WaterLimitedDays:     c.water.limitedDays,

		NitrogenDemand:          c.nitrogen.demand,
		NitrogenUptake:          c.nitrogen.uptake,
		NitrateUptake:           c.nitrogen.nitrate,
		NitrogenSatisfaction:    nSat,
		NitrogenSatisfactionStd: nStd,
		NitrogenScarcityMin:     nMin,
		NitrogenLimitedDays:     c.nitrogen.limitedDays,

		Rain:     c.rain,
		Drainage: c.drainage,
		Mineral:  c.mineral,

		SoilWater:    pools.Water,
		SoilNitrate:  pools.Nitrate,
		SoilAmmonium: pools.Ammonium,
	}

	c.windowStart = day
	c.water = resourceWindow{}
	c.nitrogen = resourceWindow{}
	c.rain, c.drainage, c.mineral = 0, 0, 0

	return stats
}

// WindowStart returns the day the current window began after.
func (c *Collector) WindowStart() int {
	return c.windowStart
}

// WindowDays returns the number of days per window.
func (c *Collector) WindowDays() int {
	return c.windowDays
}

// WindowStats holds aggregated statistics for a window of days.
type WindowStats struct {
	WindowStart int `csv:"-"`
	WindowEnd   int `csv:"window_end"`

	WaterDemand          float64 `csv:"water_demand"`
	WaterUptake          float64 `csv:"water_uptake"`
	WaterSatisfaction    float64 `csv:"water_satisfaction"`
	WaterSatisfactionStd float64 `csv:"water_satisfaction_std"`
	WaterScarcityMin     float64 `csv:"water_scarcity_min"`
	WaterLimitedDays     int     `csv:"water_limited_days"`

	NitrogenDemand          float64 `csv:"nitrogen_demand"`
	NitrogenUptake          float64 `csv:"nitrogen_uptake"`
	NitrateUptake           float64 `csv:"nitrate_uptake"`
	NitrogenSatisfaction    float64 `csv:"nitrogen_satisfaction"`
	NitrogenSatisfactionStd float64 `csv:"nitrogen_satisfaction_std"`
	NitrogenScarcityMin     float64 `csv:"nitrogen_scarcity_min"`
	NitrogenLimitedDays     int     `csv:"nitrogen_limited_days"`

	// Soil inputs during the window
	Rain     float64 `csv:"rain"`
	Drainage float64 `csv:"drainage"`
	Mineral  float64 `csv:"mineral"`

	// Soil pools at window end
	SoilWater    float64 `csv:"soil_water"`
	SoilNitrate  float64 `csv:"soil_nitrate"`
	SoilAmmonium float64 `csv:"soil_ammonium"`
}

// LogStats logs the window.
func (s WindowStats) LogStats() {
	slog.Info("window",
		"days", s.WindowEnd-s.WindowStart,
		"day", s.WindowEnd,
		"water_uptake", s.WaterUptake,
		"water_satisfaction", s.WaterSatisfaction,
		"water_limited_days", s.WaterLimitedDays,
		"n_uptake", s.NitrogenUptake,
		"n_satisfaction", s.NitrogenSatisfaction,
		"n_limited_days", s.NitrogenLimitedDays,
		"soil_water", s.SoilWater,
		"soil_n", s.SoilNitrate+s.SoilAmmonium,
	)
}
