package arbitration

import "math"

// computeExtractable fills each plant's solo-extraction estimate per cell.
func (c *dayCalc) computeExtractable() {
	switch c.resource {
	case Water:
		c.waterExtractable()
	case Nitrogen:
		c.nitrogenExtractable()
	}
}

func (c *dayCalc) waterExtractable() {
	g := c.g
	for zi, soil := range c.topo.soils {
		for k, p := range c.topo.members[zi] {
			r := c.topo.roots[zi][k]
			for l := 0; l < soil.Layers(); l++ {
				rate := r.Exploration[l] * r.KL[l]
				if rate <= 0 {
					continue
				}
				floor := roundLimit(r.LowerLimit[l], c.tol)
				for b := range c.ladder[l] {
					g.extractable[g.cell(p, l, zi, b, 0)] = rate * waterTranche(soil.Water[l], c.ladder[l], b, floor)
				}
			}
		}
	}
}

// relativeWater returns (water - wilting limit) / (field capacity - wilting limit)
// clamped to [0,1].
func relativeWater(soil SoilState, l int) float64 {
	return clamp01(safeDiv(soil.Water[l]-soil.WiltingLimit[l], soil.FieldCapacity[l]-soil.WiltingLimit[l], 0))
}

func (c *dayCalc) nitrogenExtractable() {
	g := c.g
	for zi, soil := range c.topo.soils {
		count := len(c.topo.members[zi])
		for k, p := range c.topo.members[zi] {
			r := c.topo.roots[zi][k]
			for l := 0; l < soil.Layers(); l++ {
				s := c.nitrogen.ComputeExtractable(SupplyInput{
					Exploration:   r.Exploration[l],
					KL:            r.KL[l],
					RootLength:    r.RootLength[l],
					RelativeWater: relativeWater(soil, l),
					Nitrate:       math.Max(0, soil.Nitrate[l]),
					Ammonium:      math.Max(0, soil.Ammonium[l]),
					KNO3:          r.KNO3,
					KNH4:          r.KNH4,
					PlantCount:    count,
				})
				no3 := g.cell(p, l, zi, 0, FormNitrate)
				nh4 := g.cell(p, l, zi, 0, FormAmmonium)
				g.extractable[no3] = math.Max(0, s.Nitrate)
				g.extractable[nh4] = math.Max(0, s.Ammonium)
				g.nitrateFrac[no3] = 1
				g.nitrateFrac[nh4] = 0
				g.supplyNitrate[g.plantLayer(p, l, zi)] = s.ProportionNitrate()
			}
		}
	}
}
