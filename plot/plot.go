// Package plot hosts zones and plants as ECS entities and serves them to the
// arbitration engine. It is the soil and plant collaborator of a run: it reads
// out profiles and root systems, stores uptake write-backs and applies the
// published soil deltas.
package plot

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/rootshare/arbitration"
	"github.com/pthm-cable/rootshare/components"
)

var (
	// ErrUnknownZone is returned for a zone ID that was never added.
	ErrUnknownZone = errors.New("unknown zone")
	// ErrUnknownPlant is returned for a plant ID that was never added.
	ErrUnknownPlant = errors.New("unknown plant")
	// ErrDuplicate is returned when an ID is added twice.
	ErrDuplicate = errors.New("duplicate id")
)

type rootKey struct {
	plant arbitration.PlantID
	zone  arbitration.ZoneID
}

// Plot is the ECS world holding every zone, plant and root zone of a run.
type Plot struct {
	world *ecs.World

	zoneMapper  *ecs.Map2[components.Zone, components.SoilProfile]
	plantMapper *ecs.Map2[components.Plant, components.Demand]
	rootMapper  *ecs.Map3[components.RootZone, components.Roots, components.Uptake]

	zoneFilter  *ecs.Filter1[components.Zone]
	rootFilter  *ecs.Filter1[components.RootZone]
	plantFilter *ecs.Filter1[components.Plant]

	zoneMap   *ecs.Map[components.Zone]
	soilMap   *ecs.Map[components.SoilProfile]
	demandMap *ecs.Map[components.Demand]
	plantMap  *ecs.Map[components.Plant]
	rootsMap  *ecs.Map[components.Roots]
	uptakeMap *ecs.Map[components.Uptake]

	zones  map[arbitration.ZoneID]ecs.Entity
	plants map[arbitration.PlantID]ecs.Entity
	roots  map[rootKey]ecs.Entity

	lastSender    string
	nitrogenCalls int

	demandNoise opensimplex.Noise
	demandScale float64
	demandAmp   float64
}

// New creates an empty plot.
func New() *Plot {
	world := ecs.NewWorld()
	return &Plot{
		world:       world,
		zoneMapper:  ecs.NewMap2[components.Zone, components.SoilProfile](world),
		plantMapper: ecs.NewMap2[components.Plant, components.Demand](world),
		rootMapper:  ecs.NewMap3[components.RootZone, components.Roots, components.Uptake](world),
		zoneFilter:  ecs.NewFilter1[components.Zone](world),
		rootFilter:  ecs.NewFilter1[components.RootZone](world),
		plantFilter: ecs.NewFilter1[components.Plant](world),
		zoneMap:     ecs.NewMap[components.Zone](world),
		soilMap:     ecs.NewMap[components.SoilProfile](world),
		demandMap:   ecs.NewMap[components.Demand](world),
		plantMap:    ecs.NewMap[components.Plant](world),
		rootsMap:    ecs.NewMap[components.Roots](world),
		uptakeMap:   ecs.NewMap[components.Uptake](world),
		zones:       make(map[arbitration.ZoneID]ecs.Entity),
		plants:      make(map[arbitration.PlantID]ecs.Entity),
		roots:       make(map[rootKey]ecs.Entity),
	}
}

// AddZone adds a zone with its soil profile.
func (p *Plot) AddZone(id arbitration.ZoneID, name string, soil components.SoilProfile) error {
	if _, ok := p.zones[id]; ok {
		return fmt.Errorf("%w: zone %d", ErrDuplicate, id)
	}
	p.zones[id] = p.zoneMapper.NewEntity(&components.Zone{ID: int(id), Name: name}, &soil)
	return nil
}

// AddPlant adds a plant with its daily demand.
func (p *Plot) AddPlant(id arbitration.PlantID, plant components.Plant, demand components.Demand) error {
	if _, ok := p.plants[id]; ok {
		return fmt.Errorf("%w: plant %d", ErrDuplicate, id)
	}
	plant.ID = int(id)
	p.plants[id] = p.plantMapper.NewEntity(&plant, &demand)
	return nil
}

// AddRoots places a plant's roots in a zone. Root arrays must match the
// zone's layer count.
func (p *Plot) AddRoots(plant arbitration.PlantID, zone arbitration.ZoneID, roots components.Roots) error {
	if _, ok := p.plants[plant]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPlant, plant)
	}
	ze, ok := p.zones[zone]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownZone, zone)
	}
	key := rootKey{plant, zone}
	if _, ok := p.roots[key]; ok {
		return fmt.Errorf("%w: plant %d already rooted in zone %d", ErrDuplicate, plant, zone)
	}
	n := p.soilMap.Get(ze).Layers()
	for _, col := range [][]float64{roots.Exploration, roots.KL, roots.LowerLimit, roots.RootLength} {
		if len(col) != n {
			return fmt.Errorf("plant %d zone %d: %w", plant, zone, arbitration.ErrLayerMismatch)
		}
	}
	uptake := components.Uptake{
		Water:           make([]float64, n),
		Nitrogen:        make([]float64, n),
		NitrateFraction: make([]float64, n),
	}
	p.roots[key] = p.rootMapper.NewEntity(&components.RootZone{Plant: int(plant), Zone: int(zone)}, &roots, &uptake)
	return nil
}

// Zones returns every zone ID in ascending order.
func (p *Plot) Zones() []arbitration.ZoneID {
	ids := make([]arbitration.ZoneID, 0, len(p.zones))
	query := p.zoneFilter.Query()
	for query.Next() {
		z := query.Get()
		ids = append(ids, arbitration.ZoneID(z.ID))
	}
	slices.Sort(ids)
	return ids
}

// Plants returns every plant ID in ascending order.
func (p *Plot) Plants() []arbitration.PlantID {
	ids := make([]arbitration.PlantID, 0, len(p.plants))
	query := p.plantFilter.Query()
	for query.Next() {
		pl := query.Get()
		ids = append(ids, arbitration.PlantID(pl.ID))
	}
	slices.Sort(ids)
	return ids
}

// PlantsIn returns the plants rooted in a zone in ascending order.
func (p *Plot) PlantsIn(zone arbitration.ZoneID) []arbitration.PlantID {
	var ids []arbitration.PlantID
	query := p.rootFilter.Query()
	for query.Next() {
		rz := query.Get()
		if arbitration.ZoneID(rz.Zone) == zone {
			ids = append(ids, arbitration.PlantID(rz.Plant))
		}
	}
	slices.Sort(ids)
	return ids
}

// Soil returns a copy of a zone's profile.
func (p *Plot) Soil(zone arbitration.ZoneID) (arbitration.SoilState, error) {
	e, ok := p.zones[zone]
	if !ok {
		return arbitration.SoilState{}, fmt.Errorf("%w: %d", ErrUnknownZone, zone)
	}
	s := p.soilMap.Get(e)
	return arbitration.SoilState{
		Thickness:     slices.Clone(s.Thickness),
		Water:         slices.Clone(s.Water),
		WiltingLimit:  slices.Clone(s.WiltingLimit),
		FieldCapacity: slices.Clone(s.FieldCapacity),
		Nitrate:       slices.Clone(s.Nitrate),
		Ammonium:      slices.Clone(s.Ammonium),
	}, nil
}

// ZoneName returns a zone's name, or "" if unknown.
func (p *Plot) ZoneName(zone arbitration.ZoneID) string {
	e, ok := p.zones[zone]
	if !ok {
		return ""
	}
	return p.zoneMap.Get(e).Name
}

// SoilProfile returns the live profile of a zone, or nil.
func (p *Plot) SoilProfile(zone arbitration.ZoneID) *components.SoilProfile {
	e, ok := p.zones[zone]
	if !ok {
		return nil
	}
	return p.soilMap.Get(e)
}

// Roots returns a copy of a plant's root system in a zone.
func (p *Plot) Roots(plant arbitration.PlantID, zone arbitration.ZoneID) (arbitration.RootState, error) {
	e, ok := p.roots[rootKey{plant, zone}]
	if !ok {
		return arbitration.RootState{}, fmt.Errorf("plant %d not rooted in zone %d: %w", plant, zone, ErrUnknownPlant)
	}
	r := p.rootsMap.Get(e)
	return arbitration.RootState{
		Exploration: slices.Clone(r.Exploration),
		KL:          slices.Clone(r.KL),
		LowerLimit:  slices.Clone(r.LowerLimit),
		RootLength:  slices.Clone(r.RootLength),
		KNO3:        r.KNO3,
		KNH4:        r.KNH4,
	}, nil
}

// Demand returns a plant's current demand for a resource.
func (p *Plot) Demand(plant arbitration.PlantID, r arbitration.Resource) arbitration.Demand {
	e, ok := p.plants[plant]
	if !ok {
		return arbitration.Demand{}
	}
	d := p.demandMap.Get(e)
	switch r {
	case arbitration.Water:
		return arbitration.Demand{Amount: d.Water}
	case arbitration.Nitrogen:
		return arbitration.Demand{Amount: d.Nitrogen, MaxUptake: d.MaxNitrogen}
	}
	return arbitration.Demand{}
}

// DemandOf returns the live demand component of a plant, or nil.
func (p *Plot) DemandOf(plant arbitration.PlantID) *components.Demand {
	e, ok := p.plants[plant]
	if !ok {
		return nil
	}
	return p.demandMap.Get(e)
}

// PlantInfo returns the plant component, or nil.
func (p *Plot) PlantInfo(plant arbitration.PlantID) *components.Plant {
	e, ok := p.plants[plant]
	if !ok {
		return nil
	}
	return p.plantMap.Get(e)
}

// SetUptake stores an arbitration write-back on the plant's root zone.
func (p *Plot) SetUptake(plant arbitration.PlantID, zone arbitration.ZoneID, r arbitration.Resource, u arbitration.Uptake) {
	e, ok := p.roots[rootKey{plant, zone}]
	if !ok {
		return
	}
	up := p.uptakeMap.Get(e)
	switch r {
	case arbitration.Water:
		copy(up.Water, u.Amount)
	case arbitration.Nitrogen:
		copy(up.Nitrogen, u.Amount)
		copy(up.NitrateFraction, u.NitrateFraction)
	}
}

// UptakeOf returns the last uptake stored for a plant in a zone, or nil.
func (p *Plot) UptakeOf(plant arbitration.PlantID, zone arbitration.ZoneID) *components.Uptake {
	e, ok := p.roots[rootKey{plant, zone}]
	if !ok {
		return nil
	}
	return p.uptakeMap.Get(e)
}

// PublishWaterDelta applies a per-layer water change to a zone.
func (p *Plot) PublishWaterDelta(zone arbitration.ZoneID, delta []float64) {
	s := p.SoilProfile(zone)
	if s == nil {
		return
	}
	for l := 0; l < min(len(delta), s.Layers()); l++ {
		s.Water[l] = math.Max(0, s.Water[l]+delta[l])
	}
}

// PublishNitrogenDelta applies a nitrogen removal event to every zone it names.
func (p *Plot) PublishNitrogenDelta(ev arbitration.NitrogenDelta) {
	p.lastSender = ev.Sender
	p.nitrogenCalls++
	for _, zd := range ev.Zones {
		s := p.SoilProfile(zd.Zone)
		if s == nil {
			continue
		}
		for l := 0; l < min(len(zd.Nitrate), s.Layers()); l++ {
			s.Nitrate[l] = math.Max(0, s.Nitrate[l]+zd.Nitrate[l])
			s.Ammonium[l] = math.Max(0, s.Ammonium[l]+zd.Ammonium[l])
		}
	}
}

// NitrogenEvents returns how many nitrogen delta events were applied and the
// sender of the last one.
func (p *Plot) NitrogenEvents() (int, string) { return p.nitrogenCalls, p.lastSender }
