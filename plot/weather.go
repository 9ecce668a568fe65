package plot

import "math"

// Replenishment is the result of one day of soil inputs.
type Replenishment struct {
	Rain      float64 // mm added per zone
	Drainage  float64 // mm lost below the profile, all zones
	Mineral   float64 // kg/ha ammonium added, all zones
	Nitrified float64 // kg/ha converted to nitrate, all zones
}

// Replenish adds the day's rain and mineral nitrogen to every zone. Rain fills
// layers top-down to field capacity and the excess drains out of the bottom.
// Mineralisation adds ammonium to the top layer; a fraction of every layer's
// ammonium is then nitrified.
func (p *Plot) Replenish(rain, mineralisation, nitrification float64) Replenishment {
	out := Replenishment{Rain: rain}
	nitrification = math.Max(0, math.Min(1, nitrification))
	for _, zone := range p.Zones() {
		s := p.SoilProfile(zone)
		if s == nil || s.Layers() == 0 {
			continue
		}

		incoming := math.Max(0, rain)
		for l := 0; l < s.Layers() && incoming > 0; l++ {
			room := math.Max(0, s.FieldCapacity[l]-s.Water[l])
			fill := math.Min(room, incoming)
			s.Water[l] += fill
			incoming -= fill
		}
		out.Drainage += incoming

		if mineralisation > 0 {
			s.Ammonium[0] += mineralisation
			out.Mineral += mineralisation
		}
		for l := range s.Ammonium {
			moved := s.Ammonium[l] * nitrification
			s.Ammonium[l] -= moved
			s.Nitrate[l] += moved
			out.Nitrified += moved
		}
	}
	return out
}
