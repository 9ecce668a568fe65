package arbitration

import (
	"fmt"
	"slices"
)

// fakeHost is an in-memory set of collaborators for tests.
type fakeHost struct {
	soils   map[ZoneID]SoilState
	members map[ZoneID][]PlantID
	roots   map[rootKey]RootState
	demands map[Resource]map[PlantID]Demand

	uptakes        map[rootKey]Uptake
	waterDeltas    map[ZoneID][]float64
	nitrogenEvents []NitrogenDelta
	writes         int
}

type rootKey struct {
	plant PlantID
	zone  ZoneID
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		soils:       make(map[ZoneID]SoilState),
		members:     make(map[ZoneID][]PlantID),
		roots:       make(map[rootKey]RootState),
		demands:     map[Resource]map[PlantID]Demand{Water: {}, Nitrogen: {}},
		uptakes:     make(map[rootKey]Uptake),
		waterDeltas: make(map[ZoneID][]float64),
	}
}

func (h *fakeHost) addZone(z ZoneID, s SoilState) { h.soils[z] = s }

func (h *fakeHost) addPlant(p PlantID, z ZoneID, r RootState, water, nitrogen float64) {
	h.members[z] = append(h.members[z], p)
	h.roots[rootKey{p, z}] = r
	h.demands[Water][p] = Demand{Amount: water}
	h.demands[Nitrogen][p] = Demand{Amount: nitrogen}
}

func (h *fakeHost) Zones() []ZoneID {
	var zs []ZoneID
	for z := range h.soils {
		zs = append(zs, z)
	}
	return zs
}

func (h *fakeHost) PlantsIn(z ZoneID) []PlantID {
	return slices.Clone(h.members[z])
}

func (h *fakeHost) Soil(z ZoneID) (SoilState, error) {
	s, ok := h.soils[z]
	if !ok {
		return SoilState{}, fmt.Errorf("no zone %d", z)
	}
	return s, nil
}

func (h *fakeHost) Roots(p PlantID, z ZoneID) (RootState, error) {
	r, ok := h.roots[rootKey{p, z}]
	if !ok {
		return RootState{}, fmt.Errorf("no roots for plant %d in zone %d", p, z)
	}
	return r, nil
}

func (h *fakeHost) Demand(p PlantID, r Resource) Demand { return h.demands[r][p] }

func (h *fakeHost) SetUptake(p PlantID, z ZoneID, _ Resource, u Uptake) {
	h.uptakes[rootKey{p, z}] = u
	h.writes++
}

func (h *fakeHost) PublishWaterDelta(z ZoneID, d []float64) {
	h.waterDeltas[z] = d
	h.writes++
}

func (h *fakeHost) PublishNitrogenDelta(ev NitrogenDelta) {
	h.nitrogenEvents = append(h.nitrogenEvents, ev)
	h.writes++
}

// relabel copies the host with plant and zone IDs renamed through the maps.
// IDs missing from a map keep their value.
func (h *fakeHost) relabel(plants map[PlantID]PlantID, zones map[ZoneID]ZoneID) *fakeHost {
	pid := func(p PlantID) PlantID {
		if q, ok := plants[p]; ok {
			return q
		}
		return p
	}
	zid := func(z ZoneID) ZoneID {
		if q, ok := zones[z]; ok {
			return q
		}
		return z
	}
	out := newFakeHost()
	for z, s := range h.soils {
		out.soils[zid(z)] = s
	}
	for z, ids := range h.members {
		for _, p := range ids {
			out.members[zid(z)] = append(out.members[zid(z)], pid(p))
		}
	}
	for k, r := range h.roots {
		out.roots[rootKey{pid(k.plant), zid(k.zone)}] = r
	}
	for res, byPlant := range h.demands {
		for p, d := range byPlant {
			out.demands[res][pid(p)] = d
		}
	}
	return out
}

func newTestArbitrator(h *fakeHost, nitrogenMethod int) *Arbitrator {
	opts := DefaultOptions()
	opts.NitrogenMethod = nitrogenMethod
	a, err := New(h, h, h, h, opts)
	if err != nil {
		panic(err)
	}
	return a
}

// uniformSoil builds a profile of n identical layers.
func uniformSoil(n int, thickness, water, ll, dul, no3, nh4 float64) SoilState {
	s := SoilState{}
	for i := 0; i < n; i++ {
		s.Thickness = append(s.Thickness, thickness)
		s.Water = append(s.Water, water)
		s.WiltingLimit = append(s.WiltingLimit, ll)
		s.FieldCapacity = append(s.FieldCapacity, dul)
		s.Nitrate = append(s.Nitrate, no3)
		s.Ammonium = append(s.Ammonium, nh4)
	}
	return s
}

// uniformRoots builds a root system with the same values in every layer.
func uniformRoots(n int, exploration, kl, lowerLimit float64) RootState {
	r := RootState{KNO3: 0.02, KNH4: 0.01}
	for i := 0; i < n; i++ {
		r.Exploration = append(r.Exploration, exploration)
		r.KL = append(r.KL, kl)
		r.LowerLimit = append(r.LowerLimit, lowerLimit)
		r.RootLength = append(r.RootLength, exploration)
	}
	return r
}
