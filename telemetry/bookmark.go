package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkWaterStress      BookmarkType = "water_stress"
	BookmarkNitrogenStress   BookmarkType = "nitrogen_stress"
	BookmarkRecovery         BookmarkType = "recovery"
	BookmarkNitrogenDepleted BookmarkType = "nitrogen_depleted"
	BookmarkSteadyState      BookmarkType = "steady_state"
)

// Thresholds on window satisfaction.
const (
	stressSatisfaction   = 0.8
	recoverySatisfaction = 0.95
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `json:"type" csv:"type"`
	Day         int          `json:"day" csv:"day"`
	Description string       `json:"description" csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"day", b.Day,
		"description", b.Description,
	)
}

// BookmarkDetector detects turning points in a run from window stats.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	waterStressed    bool
	nitrogenStressed bool
	soilNPeak        float64
	steadyReported   bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 4 {
		historySize = 4 // minimum for steady state detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkStress(stats); b != nil {
		bookmarks = append(bookmarks, b...)
	}
	if b := bd.checkDepletion(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	bd.addToHistory(stats)
	if b := bd.checkSteadyState(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// recent returns the last n windows in insertion order, or nil if fewer were seen.
func (bd *BookmarkDetector) recent(n int) []WindowStats {
	size := bd.historyIdx
	if bd.historyFull {
		size = bd.historySize
	}
	if size < n {
		return nil
	}
	out := make([]WindowStats, n)
	for i := 0; i < n; i++ {
		out[i] = bd.history[(bd.historyIdx-n+i+bd.historySize)%bd.historySize]
	}
	return out
}

// checkStress fires when a resource's satisfaction drops below the stress
// threshold, and again when every stressed resource has recovered.
func (bd *BookmarkDetector) checkStress(stats WindowStats) []Bookmark {
	var out []Bookmark
	wasStressed := bd.waterStressed || bd.nitrogenStressed

	if !bd.waterStressed && stats.WaterDemand > 0 && stats.WaterSatisfaction < stressSatisfaction {
		bd.waterStressed = true
		out = append(out, Bookmark{
			Type:        BookmarkWaterStress,
			Day:         stats.WindowEnd,
			Description: fmt.Sprintf("Water supply met %.0f%% of demand", stats.WaterSatisfaction*100),
		})
	} else if bd.waterStressed && stats.WaterSatisfaction >= recoverySatisfaction {
		bd.waterStressed = false
	}

	if !bd.nitrogenStressed && stats.NitrogenDemand > 0 && stats.NitrogenSatisfaction < stressSatisfaction {
		bd.nitrogenStressed = true
		out = append(out, Bookmark{
			Type:        BookmarkNitrogenStress,
			Day:         stats.WindowEnd,
			Description: fmt.Sprintf("Nitrogen supply met %.0f%% of demand", stats.NitrogenSatisfaction*100),
		})
	} else if bd.nitrogenStressed && stats.NitrogenSatisfaction >= recoverySatisfaction {
		bd.nitrogenStressed = false
	}

	if wasStressed && !bd.waterStressed && !bd.nitrogenStressed {
		out = append(out, Bookmark{
			Type:        BookmarkRecovery,
			Day:         stats.WindowEnd,
			Description: fmt.Sprintf("Supply recovered: water %.0f%%, nitrogen %.0f%%", stats.WaterSatisfaction*100, stats.NitrogenSatisfaction*100),
		})
	}
	return out
}

// checkDepletion fires when soil mineral N falls more than half below its recent peak.
func (bd *BookmarkDetector) checkDepletion(stats WindowStats) *Bookmark {
	soilN := stats.SoilNitrate + stats.SoilAmmonium
	if soilN > bd.soilNPeak {
		bd.soilNPeak = soilN
		return nil
	}
	if bd.soilNPeak == 0 {
		return nil
	}

	drop := 1 - soilN/bd.soilNPeak
	if drop > 0.5 {
		oldPeak := bd.soilNPeak
		bd.soilNPeak = soilN
		return &Bookmark{
			Type:        BookmarkNitrogenDepleted,
			Day:         stats.WindowEnd,
			Description: fmt.Sprintf("Soil mineral N fell %.0f%% from %.1f to %.1f kg/ha", drop*100, oldPeak, soilN),
		}
	}
	return nil
}

// checkSteadyState fires once when soil water has varied by less than 5% over
// the last four windows.
func (bd *BookmarkDetector) checkSteadyState(stats WindowStats) *Bookmark {
	if bd.steadyReported {
		return nil
	}
	history := bd.recent(4)
	if history == nil {
		return nil
	}

	water := make([]float64, len(history))
	for i, h := range history {
		water[i] = h.SoilWater
	}
	mean, std := stat.PopMeanStdDev(water, nil)
	if mean <= 0 || std/mean >= 0.05 {
		return nil
	}

	bd.steadyReported = true
	return &Bookmark{
		Type:        BookmarkSteadyState,
		Day:         stats.WindowEnd,
		Description: fmt.Sprintf("Soil water steady at %.1f mm (CV %.1f%%)", mean, std/mean*100),
	}
}
