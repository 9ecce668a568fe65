package sim

import (
	"log/slog"
	"slices"

	"github.com/pthm-cable/rootshare/arbitration"
	"github.com/pthm-cable/rootshare/telemetry"
)

// recordDay feeds one arbitration result to every telemetry sink.
func (s *Simulation) recordDay(res *arbitration.Result) {
	summary := telemetry.Summarize(s.day, res)
	s.last[res.Resource] = summary
	s.collector.Record(summary)
	s.season.Record(res)

	records := telemetry.Records(s.day, res, s.plantName)
	if err := s.output.WriteDay(summary); err != nil {
		slog.Error("failed to write day summary", "error", err)
	}
	if err := s.output.WriteUptake(records); err != nil {
		slog.Error("failed to write uptake", "error", err)
	}
	if s.store != nil {
		if err := s.store.SaveDay(s.runID, summary, records); err != nil {
			slog.Error("failed to store day", "day", s.day, "error", err)
		}
	}
}

func (s *Simulation) plantName(id arbitration.PlantID) string {
	if p := s.plot.PlantInfo(id); p != nil {
		return p.Name
	}
	return ""
}

// flushTelemetry closes the stats window when it is full, or when force is
// set and the window holds at least one day, and handles bookmarks.
func (s *Simulation) flushTelemetry(force bool) {
	if !s.collector.ShouldFlush(s.day) && !(force && s.day > s.collector.WindowStart()) {
		return
	}

	stats := s.collector.Flush(s.day, s.soilPools())
	perfStats := s.perf.Stats()

	if s.opts.StatsCallback != nil {
		s.opts.StatsCallback(stats)
	}

	if s.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.output.WriteWindow(stats); err != nil {
		slog.Error("failed to write window stats", "error", err)
	}
	if err := s.output.WritePerf(perfStats, stats.WindowEnd); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range s.bookmarks.Check(stats) {
		if s.opts.LogStats {
			bm.LogBookmark()
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		if s.store != nil {
			if err := s.store.SaveBookmark(s.runID, bm); err != nil {
				slog.Error("failed to store bookmark", "error", err)
			}
		}
		if s.opts.SnapshotDir != "" {
			s.saveSnapshot(&bm)
		}
	}
}

// soilPools sums soil water and mineral N over every zone.
func (s *Simulation) soilPools() telemetry.SoilPools {
	var pools telemetry.SoilPools
	for _, z := range s.plot.Zones() {
		soil := s.plot.SoilProfile(z)
		pools.Water += soil.TotalWater()
		for l := range soil.Nitrate {
			pools.Nitrate += soil.Nitrate[l]
			pools.Ammonium += soil.Ammonium[l]
		}
	}
	return pools
}

// Snapshot captures the plot's current soil and uptake state.
func (s *Simulation) Snapshot(bm *telemetry.Bookmark) *telemetry.Snapshot {
	snap := &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		RunID:    s.runID,
		Seed:     s.seed,
		Day:      s.day,
		Bookmark: bm,
	}
	zones := s.plot.Zones()
	for _, z := range zones {
		soil := s.plot.SoilProfile(z)
		snap.Zones = append(snap.Zones, telemetry.ZoneState{
			ID:       int(z),
			Name:     s.plot.ZoneName(z),
			Water:    slices.Clone(soil.Water),
			Nitrate:  slices.Clone(soil.Nitrate),
			Ammonium: slices.Clone(soil.Ammonium),
		})
	}
	for _, id := range s.plot.Plants() {
		d := s.plot.DemandOf(id)
		ps := telemetry.PlantState{
			ID:             int(id),
			Name:           s.plantName(id),
			WaterDemand:    d.Water,
			NitrogenDemand: d.Nitrogen,
			Season:         s.season.Get(id),
		}
		for _, z := range zones {
			u := s.plot.UptakeOf(id, z)
			if u == nil {
				continue
			}
			ps.Uptake = append(ps.Uptake, telemetry.ZoneUptake{
				Zone:     int(z),
				Water:    slices.Clone(u.Water),
				Nitrogen: slices.Clone(u.Nitrogen),
			})
		}
		snap.Plants = append(snap.Plants, ps)
	}
	return snap
}

func (s *Simulation) saveSnapshot(bm *telemetry.Bookmark) {
	path, err := telemetry.SaveSnapshot(s.Snapshot(bm), s.opts.SnapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Info("snapshot saved", "path", path, "day", s.day)
}
