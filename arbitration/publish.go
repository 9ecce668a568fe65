package arbitration

// LayerUptake is one plant's allocation in one layer of one zone.
type LayerUptake struct {
	Zone            ZoneID
	Layer           int
	Amount          float64
	NitrateFraction float64 // nitrate share of Amount (nitrogen only)
	SupplyNitrate   float64 // nitrate share of the plant's solo supply (nitrogen only)
}

// PlantResult summarizes one plant's arbitration outcome.
type PlantResult struct {
	Plant       PlantID
	Demand      float64
	Extractable float64
	Uptake      float64
	Nitrate     float64
	Layers      []LayerUptake
}

// Compartment reports the totals of one (layer, zone, bound, form) cell.
type Compartment struct {
	Zone      ZoneID
	Layer     int
	Bound     int
	Form      int
	Threshold float64
	Resource  float64
	Demand    float64
	Uptake    float64
	Scarcity  float64
}

// Result is everything one arbitration call computed, in enumeration order.
type Result struct {
	Resource     Resource
	Plants       []PlantResult
	Compartments []Compartment
}

// TotalUptake sums uptake over all plants.
func (r *Result) TotalUptake() float64 {
	var sum float64
	for _, p := range r.Plants {
		sum += p.Uptake
	}
	return sum
}

// plantWrite is a pending write-back to one plant in one zone.
type plantWrite struct {
	plant  PlantID
	zone   ZoneID
	uptake Uptake
}

// publication holds all collaborator writes for a call. Nothing is sent until
// the whole pipeline has finished.
type publication struct {
	plants   []plantWrite
	water    [][]float64 // per zone
	nitrogen NitrogenDelta
}

func (c *dayCalc) collect(sender string) (*Result, *publication) {
	g := c.g
	t := c.topo
	res := &Result{Resource: c.resource, Plants: make([]PlantResult, len(t.plants))}
	for p, id := range t.plants {
		res.Plants[p] = PlantResult{
			Plant:       id,
			Demand:      c.demands[p].Amount,
			Extractable: c.extractableTotal[p],
		}
	}

	pub := &publication{}
	if c.resource == Water {
		pub.water = make([][]float64, len(t.zones))
	} else {
		pub.nitrogen = NitrogenDelta{Sender: sender, Zones: make([]ZoneNitrogenDelta, len(t.zones))}
	}

	for zi, soil := range t.soils {
		n := soil.Layers()
		var dWater, dNO3, dNH4 []float64
		if c.resource == Water {
			dWater = make([]float64, n)
		} else {
			dNO3 = make([]float64, n)
			dNH4 = make([]float64, n)
		}

		for _, p := range t.members[zi] {
			u := Uptake{Amount: make([]float64, n)}
			if c.resource == Nitrogen {
				u.NitrateFraction = make([]float64, n)
			}
			pr := &res.Plants[p]
			for l := 0; l < n; l++ {
				var amount, nitrate float64
				for b := 0; b < g.bounds; b++ {
					for f := 0; f < g.forms; f++ {
						i := g.cell(p, l, zi, b, f)
						amount += g.uptake[i]
						nitrate += g.uptake[i] * g.nitrateFrac[i]
					}
				}
				u.Amount[l] = amount
				lu := LayerUptake{Zone: t.zones[zi], Layer: l, Amount: amount}
				if c.resource == Water {
					dWater[l] -= amount
				} else {
					frac := clamp01(safeDiv(nitrate, amount, 0))
					u.NitrateFraction[l] = frac
					lu.NitrateFraction = frac
					lu.SupplyNitrate = g.supplyNitrate[g.plantLayer(p, l, zi)]
					dNO3[l] -= nitrate
					dNH4[l] -= amount - nitrate
					pr.Nitrate += nitrate
				}
				pr.Uptake += amount
				pr.Layers = append(pr.Layers, lu)
			}
			pub.plants = append(pub.plants, plantWrite{plant: t.plants[p], zone: t.zones[zi], uptake: u})
		}

		if c.resource == Water {
			pub.water[zi] = dWater
		} else {
			pub.nitrogen.Zones[zi] = ZoneNitrogenDelta{Zone: t.zones[zi], Nitrate: dNO3, Ammonium: dNH4}
		}
	}

	for l := 0; l < t.maxLayers; l++ {
		for zi := range t.zones {
			if l >= t.soils[zi].Layers() {
				continue
			}
			for b := range c.ladder[l] {
				for f := 0; f < g.forms; f++ {
					i := g.comp(l, zi, b, f)
					var uptake float64
					for p := range t.plants {
						uptake += g.uptake[p*g.compartments()+i]
					}
					res.Compartments = append(res.Compartments, Compartment{
						Zone:      t.zones[zi],
						Layer:     l,
						Bound:     b,
						Form:      f,
						Threshold: c.ladder[l][b],
						Resource:  g.resource[i],
						Demand:    g.demandFor[i],
						Uptake:    uptake,
						Scarcity:  g.scarcity[i],
					})
				}
			}
		}
	}
	return res, pub
}

// publish performs every collaborator write for the call.
func (a *Arbitrator) publish(r Resource, t *topology, pub *publication) {
	for _, w := range pub.plants {
		a.plants.SetUptake(w.plant, w.zone, r, w.uptake)
	}
	switch r {
	case Water:
		for zi, d := range pub.water {
			a.publisher.PublishWaterDelta(t.zones[zi], d)
		}
	case Nitrogen:
		a.publisher.PublishNitrogenDelta(pub.nitrogen)
	}
}
