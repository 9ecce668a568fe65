package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the soil and uptake state of a plot on one day.
type Snapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Seed    int64  `json:"seed"`
	Day     int    `json:"day"`

	Zones  []ZoneState  `json:"zones"`
	Plants []PlantState `json:"plants"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// ZoneState holds one zone's soil profile.
type ZoneState struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Water    []float64 `json:"water"`
	Nitrate  []float64 `json:"nitrate"`
	Ammonium []float64 `json:"ammonium"`
}

// PlantState holds one plant's demand and its last uptake in every zone it roots in.
type PlantState struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	WaterDemand    float64      `json:"water_demand"`
	NitrogenDemand float64      `json:"nitrogen_demand"`
	Uptake         []ZoneUptake `json:"uptake"`
	Season         *SeasonStats `json:"season,omitempty"`
}

// ZoneUptake is a plant's per-layer uptake in one zone.
type ZoneUptake struct {
	Zone     int       `json:"zone"`
	Water    []float64 `json:"water"`
	Nitrogen []float64 `json:"nitrogen"`
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Day)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Day, sanitized)
	}
	path := filepath.Join(dir, name+".json")

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snapshot.Version, SnapshotVersion)
	}
	return &snapshot, nil
}
