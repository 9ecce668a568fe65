package arbitration

import (
	"fmt"
	"slices"
)

// topology is the snapshot of zones, plants and their inputs for one call.
// Zones and plants are ordered by ID so every stage sums in the same order.
type topology struct {
	zones     []ZoneID
	soils     []SoilState
	members   [][]int       // per zone: plant indices
	roots     [][]RootState // per zone: aligned with members
	plants    []PlantID
	maxLayers int
}

func enumerate(st Structure, soil SoilReader, pc PlantCollaborator) (*topology, error) {
	zones := slices.Clone(st.Zones())
	slices.Sort(zones)

	t := &topology{
		zones:   zones,
		soils:   make([]SoilState, len(zones)),
		members: make([][]int, len(zones)),
		roots:   make([][]RootState, len(zones)),
	}

	perZone := make([][]PlantID, len(zones))
	seen := make(map[PlantID]bool)
	for zi, z := range zones {
		s, err := soil.Soil(z)
		if err != nil {
			return nil, fmt.Errorf("reading soil of zone %d: %w", z, err)
		}
		if err := s.check(); err != nil {
			return nil, fmt.Errorf("zone %d: %w", z, err)
		}
		t.soils[zi] = s
		t.maxLayers = max(t.maxLayers, s.Layers())

		ids := slices.Clone(st.PlantsIn(z))
		slices.Sort(ids)
		for i := 1; i < len(ids); i++ {
			if ids[i] == ids[i-1] {
				return nil, fmt.Errorf("%w: plant %d in zone %d", ErrDuplicatePlant, ids[i], z)
			}
		}
		perZone[zi] = ids
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				t.plants = append(t.plants, id)
			}
		}
	}
	slices.Sort(t.plants)

	index := make(map[PlantID]int, len(t.plants))
	for i, id := range t.plants {
		index[id] = i
	}

	for zi, ids := range perZone {
		layers := t.soils[zi].Layers()
		t.members[zi] = make([]int, len(ids))
		t.roots[zi] = make([]RootState, len(ids))
		for k, id := range ids {
			r, err := pc.Roots(id, zones[zi])
			if err != nil {
				return nil, fmt.Errorf("reading roots of plant %d in zone %d: %w", id, zones[zi], err)
			}
			if err := r.check(layers); err != nil {
				return nil, fmt.Errorf("plant %d in zone %d: %w", id, zones[zi], err)
			}
			t.members[zi][k] = index[id]
			t.roots[zi][k] = r
		}
	}
	return t, nil
}
