package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the daily step.
const (
	PhaseReplenish = "replenish"
	PhaseDemand    = "demand"
	PhaseWater     = "water"
	PhaseNitrogen  = "nitrogen"
	PhaseTelemetry = "telemetry"
)

var phases = []string{PhaseReplenish, PhaseDemand, PhaseWater, PhaseNitrogen, PhaseTelemetry}

// PerfSample holds timing data for a single day.
type PerfSample struct {
	DayDuration time.Duration
	Phases      map[string]time.Duration
}

// PerfCollector tracks step timing over a rolling window of days.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	dayStart      time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a new performance collector averaging over windowSize days.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 30
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartDay begins timing a new day.
func (p *PerfCollector) StartDay() {
	p.dayStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndDay finishes timing the current day and records the sample.
func (p *PerfCollector) EndDay() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		DayDuration: now.Sub(p.dayStart),
		Phases:      p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgDayDuration time.Duration
	MinDayDuration time.Duration
	MaxDayDuration time.Duration

	// Average duration and share of the day per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	DaysPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total, minDay, maxDay time.Duration
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.DayDuration
		if i == 0 || s.DayDuration < minDay {
			minDay = s.DayDuration
		}
		if s.DayDuration > maxDay {
			maxDay = s.DayDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgDayDuration: avg,
		MinDayDuration: minDay,
		MaxDayDuration: maxDay,
		PhaseAvg:       phaseAvg,
		PhasePct:       phasePct,
		DaysPerSecond:  perSec,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_day_us", s.AvgDayDuration.Microseconds(),
		"min_day_us", s.MinDayDuration.Microseconds(),
		"max_day_us", s.MaxDayDuration.Microseconds(),
		"days_per_sec", int(s.DaysPerSecond),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_day_us", s.AvgDayDuration.Microseconds()),
		slog.Int64("min_day_us", s.MinDayDuration.Microseconds()),
		slog.Int64("max_day_us", s.MaxDayDuration.Microseconds()),
		slog.Float64("days_per_sec", s.DaysPerSecond),
	}
	for phase, pct := range s.PhasePct {
		attrs = append(attrs, slog.Float64(phase+"_pct", pct))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd    int     `csv:"window_end"`
	AvgDayUS     int64   `csv:"avg_day_us"`
	MinDayUS     int64   `csv:"min_day_us"`
	MaxDayUS     int64   `csv:"max_day_us"`
	DaysPerSec   float64 `csv:"days_per_sec"`
	ReplenishPct float64 `csv:"replenish_pct"`
	DemandPct    float64 `csv:"demand_pct"`
	WaterPct     float64 `csv:"water_pct"`
	NitrogenPct  float64 `csv:"nitrogen_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgDayUS:     s.AvgDayDuration.Microseconds(),
		MinDayUS:     s.MinDayDuration.Microseconds(),
		MaxDayUS:     s.MaxDayDuration.Microseconds(),
		DaysPerSec:   s.DaysPerSecond,
		ReplenishPct: s.PhasePct[PhaseReplenish],
		DemandPct:    s.PhasePct[PhaseDemand],
		WaterPct:     s.PhasePct[PhaseWater],
		NitrogenPct:  s.PhasePct[PhaseNitrogen],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
