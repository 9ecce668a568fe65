package arbitration

// grid is the five-axis accounting store for one call: plant × layer × zone ×
// bound × form. Cells are plant-major so each plant's cells are contiguous.
// Compartments drop the plant axis.
type grid struct {
	plants, layers, zones, bounds, forms int

	extractable []float64
	demand      []float64
	uptake      []float64
	nitrateFrac []float64 // share of a cell's amount attributable to nitrate

	// plant × layer × zone
	supplyNitrate []float64

	// layer × zone × bound × form
	resource  []float64
	demandFor []float64
	totalFor  []float64
	scarcity  []float64
}

func newGrid(plants, layers, zones, bounds, forms int) *grid {
	g := &grid{plants: plants, layers: layers, zones: zones, bounds: bounds, forms: forms}
	nc := g.compartments()
	n := plants * nc
	g.extractable = make([]float64, n)
	g.demand = make([]float64, n)
	g.uptake = make([]float64, n)
	g.nitrateFrac = make([]float64, n)
	g.supplyNitrate = make([]float64, plants*layers*zones)
	g.resource = make([]float64, nc)
	g.demandFor = make([]float64, nc)
	g.totalFor = make([]float64, nc)
	g.scarcity = make([]float64, nc)
	return g
}

func (g *grid) compartments() int { return g.layers * g.zones * g.bounds * g.forms }

func (g *grid) comp(layer, zone, bound, form int) int {
	return ((layer*g.zones+zone)*g.bounds+bound)*g.forms + form
}

func (g *grid) cell(plant, layer, zone, bound, form int) int {
	return plant*g.compartments() + g.comp(layer, zone, bound, form)
}

// plantCells returns the index range of one plant's cells.
func (g *grid) plantCells(plant int) (lo, hi int) {
	nc := g.compartments()
	return plant * nc, (plant + 1) * nc
}

func (g *grid) plantLayer(plant, layer, zone int) int {
	return (plant*g.layers+layer)*g.zones + zone
}

// Resource returns the amount present in a compartment.
func (g *grid) Resource(layer, zone, bound, form int) float64 {
	return g.resource[g.comp(layer, zone, bound, form)]
}

// Extractable returns a plant's solo-extraction estimate for a cell.
func (g *grid) Extractable(plant, layer, zone, bound, form int) float64 {
	return g.extractable[g.cell(plant, layer, zone, bound, form)]
}

// Demand returns a plant's distributed demand for a cell.
func (g *grid) Demand(plant, layer, zone, bound, form int) float64 {
	return g.demand[g.cell(plant, layer, zone, bound, form)]
}

// Uptake returns a plant's allocated amount for a cell.
func (g *grid) Uptake(plant, layer, zone, bound, form int) float64 {
	return g.uptake[g.cell(plant, layer, zone, bound, form)]
}
