package arbitration

// allocate applies one scarcity ratio per compartment to every competitor in it.
func (c *dayCalc) allocate() {
	g := c.g
	nc := g.compartments()
	for i := 0; i < nc; i++ {
		g.scarcity[i] = clamp01(safeDiv(g.totalFor[i], g.demandFor[i], 1))
	}
	for p := range c.topo.plants {
		lo, _ := g.plantCells(p)
		for i := 0; i < nc; i++ {
			g.uptake[lo+i] = g.demand[lo+i] * g.scarcity[i]
		}
	}
}
