package arbitration

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// distributeDemand caps each plant's demand at its extractable total and
// spreads it over cells in proportion to where the plant can reach.
func (c *dayCalc) distributeDemand() {
	g := c.g
	for p := range c.topo.plants {
		lo, hi := g.plantCells(p)
		ext := g.extractable[lo:hi]
		total := floats.Sum(ext)
		c.extractableTotal[p] = total

		capped := math.Min(math.Max(0, c.demands[p].Amount), total)
		if limit := c.demands[p].MaxUptake; c.resource == Nitrogen && limit > 0 {
			capped = math.Min(capped, limit)
		}
		floats.ScaleTo(g.demand[lo:hi], safeDiv(capped, total, 0), ext)
	}

	nc := g.compartments()
	for p := range c.topo.plants {
		lo, _ := g.plantCells(p)
		floats.Add(g.demandFor, g.demand[lo:lo+nc])
	}
	copy(g.totalFor, g.resource)
}
