package arbitration

import "fmt"

// ZoneID identifies a spatial zone holding one soil profile.
type ZoneID int

// PlantID identifies a competing plant.
type PlantID int

// Resource is the soil resource being arbitrated.
type Resource uint8

const (
	Water Resource = iota
	Nitrogen
)

func (r Resource) String() string {
	switch r {
	case Water:
		return "water"
	case Nitrogen:
		return "nitrogen"
	default:
		return fmt.Sprintf("resource(%d)", uint8(r))
	}
}

// Forms returns how many chemical forms the resource is split into.
func (r Resource) Forms() int {
	if r == Nitrogen {
		return 2
	}
	return 1
}

// Nitrogen form indices.
const (
	FormNitrate  = 0
	FormAmmonium = 1
)

// SoilState is one zone's soil profile. Water quantities are depths in mm,
// nitrogen pools are kg/ha. All slices are indexed by layer and must share a length.
type SoilState struct {
	Thickness     []float64
	Water         []float64
	WiltingLimit  []float64
	FieldCapacity []float64
	Nitrate       []float64
	Ammonium      []float64
}

// Layers returns the number of layers in the profile.
func (s SoilState) Layers() int { return len(s.Thickness) }

func (s SoilState) check() error {
	n := len(s.Thickness)
	for _, col := range []struct {
		name string
		v    []float64
	}{
		{"water", s.Water},
		{"wilting limit", s.WiltingLimit},
		{"field capacity", s.FieldCapacity},
		{"nitrate", s.Nitrate},
		{"ammonium", s.Ammonium},
	} {
		if len(col.v) != n {
			return fmt.Errorf("%w: soil %s has %d layers, thickness has %d", ErrLayerMismatch, col.name, len(col.v), n)
		}
	}
	return nil
}

// RootState describes a plant's root system inside one zone.
type RootState struct {
	Exploration []float64 // fraction of each layer explored by roots, [0,1]
	KL          []float64 // extraction rate coefficient per layer, /day
	LowerLimit  []float64 // plant water lower limit per layer, mm
	RootLength  []float64 // root length density per layer; zero means no roots

	// Nitrogen uptake constants for the concentration and amount methods.
	KNO3 float64
	KNH4 float64
}

func (r RootState) check(layers int) error {
	for _, col := range []struct {
		name string
		v    []float64
	}{
		{"exploration", r.Exploration},
		{"kl", r.KL},
		{"lower limit", r.LowerLimit},
		{"root length", r.RootLength},
	} {
		if len(col.v) != layers {
			return fmt.Errorf("%w: root %s has %d layers, soil has %d", ErrLayerMismatch, col.name, len(col.v), layers)
		}
	}
	return nil
}

// Demand is a plant's scalar daily demand for one resource.
type Demand struct {
	Amount    float64
	MaxUptake float64 // optional daily cap; zero disables
}

// Uptake is the per-layer result written back to a plant for one zone.
type Uptake struct {
	Amount          []float64
	NitrateFraction []float64 // nitrogen only
}

// ZoneNitrogenDelta carries negative per-layer nitrogen changes for one zone.
type ZoneNitrogenDelta struct {
	Zone     ZoneID
	Nitrate  []float64
	Ammonium []float64
}

// NitrogenDelta is the single soil-change event published per nitrogen call.
type NitrogenDelta struct {
	Sender string
	Zones  []ZoneNitrogenDelta
}

// Structure exposes the spatial layout walked at the start of every call.
type Structure interface {
	Zones() []ZoneID
	PlantsIn(zone ZoneID) []PlantID
}

// SoilReader provides the current soil state of a zone.
type SoilReader interface {
	Soil(zone ZoneID) (SoilState, error)
}

// PlantCollaborator provides plant inputs and receives uptake results.
type PlantCollaborator interface {
	Roots(plant PlantID, zone ZoneID) (RootState, error)
	Demand(plant PlantID, r Resource) Demand
	SetUptake(plant PlantID, zone ZoneID, r Resource, u Uptake)
}

// DeltaPublisher informs the soil of removed resource.
type DeltaPublisher interface {
	PublishWaterDelta(zone ZoneID, delta []float64)
	PublishNitrogenDelta(ev NitrogenDelta)
}
