package arbitration

import "math"

// waterTranche returns the water newly exposed at ladder[b], measured above
// max(floor, threshold). Tranches deeper than floor come out as zero.
func waterTranche(water float64, ladder []float64, b int, floor float64) float64 {
	above := func(th float64) float64 {
		return math.Max(0, water-math.Max(floor, th))
	}
	v := above(ladder[b])
	if b > 0 {
		v -= above(ladder[b-1])
	}
	return math.Max(0, v)
}

// accountResource fills the per-compartment amount physically present.
func (c *dayCalc) accountResource() {
	g := c.g
	for zi, soil := range c.topo.soils {
		for l := 0; l < soil.Layers(); l++ {
			switch c.resource {
			case Water:
				for b := range c.ladder[l] {
					g.resource[g.comp(l, zi, b, 0)] = waterTranche(soil.Water[l], c.ladder[l], b, 0)
				}
			case Nitrogen:
				g.resource[g.comp(l, zi, 0, FormNitrate)] = math.Max(0, soil.Nitrate[l])
				g.resource[g.comp(l, zi, 0, FormAmmonium)] = math.Max(0, soil.Ammonium[l])
			}
		}
	}
}
