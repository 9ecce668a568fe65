package arbitration

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"
)

const eps = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) <= 1e-6 }

func TestTwoPlantWaterScenario(t *testing.T) {
	h := newFakeHost()
	// 60 mm held, both plants stop at 20 mm: 40 mm available.
	h.addZone(1, uniformSoil(1, 100, 60, 10, 80, 0, 0))
	h.addPlant(1, 1, uniformRoots(1, 1, 0.5, 20), 30, 0)
	h.addPlant(2, 1, uniformRoots(1, 1, 0.75, 20), 30, 0)

	res, err := newTestArbitrator(h, 1).RunDay(Water)
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}

	want := map[PlantID]float64{1: 16, 2: 24}
	for _, p := range res.Plants {
		if !approx(p.Uptake, want[p.Plant]) {
			t.Errorf("plant %d uptake = %.6f, want %.1f", p.Plant, p.Uptake, want[p.Plant])
		}
		got := h.uptakes[rootKey{p.Plant, 1}].Amount[0]
		if !approx(got, want[p.Plant]) {
			t.Errorf("plant %d written uptake = %.6f, want %.1f", p.Plant, got, want[p.Plant])
		}
	}

	if len(res.Compartments) != 1 {
		t.Fatalf("expected 1 compartment, got %d", len(res.Compartments))
	}
	if c := res.Compartments[0]; !approx(c.Scarcity, 0.8) || !approx(c.Demand, 50) {
		t.Errorf("compartment scarcity=%.4f demand=%.4f, want 0.8 and 50", c.Scarcity, c.Demand)
	}
	if d := h.waterDeltas[1][0]; !approx(d, -40) {
		t.Errorf("water delta = %.6f, want -40", d)
	}
}

func TestWaterTranchesByLowerLimit(t *testing.T) {
	h := newFakeHost()
	h.addZone(1, uniformSoil(1, 100, 60, 10, 80, 0, 0))
	// Plant 1 reaches down to 20 mm, plant 2 only to 35 mm.
	h.addPlant(1, 1, uniformRoots(1, 1, 1, 20), 40, 0)
	h.addPlant(2, 1, uniformRoots(1, 1, 1, 35), 25, 0)

	res, err := newTestArbitrator(h, 1).RunDay(Water)
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}

	// Tranche above 35 mm (25 mm) is shared and oversubscribed 2:1;
	// tranche 20..35 mm (15 mm) belongs to plant 1 alone.
	want := map[PlantID]float64{1: 27.5, 2: 12.5}
	for _, p := range res.Plants {
		if !approx(p.Uptake, want[p.Plant]) {
			t.Errorf("plant %d uptake = %.6f, want %.2f", p.Plant, p.Uptake, want[p.Plant])
		}
	}
	if len(res.Compartments) != 2 {
		t.Fatalf("expected 2 bounds, got %d compartments", len(res.Compartments))
	}
	if c := res.Compartments[0]; !approx(c.Threshold, 35) || !approx(c.Resource, 25) {
		t.Errorf("first tranche threshold=%v resource=%v, want 35 and 25", c.Threshold, c.Resource)
	}
	if c := res.Compartments[1]; !approx(c.Threshold, 20) || !approx(c.Resource, 15) {
		t.Errorf("second tranche threshold=%v resource=%v, want 20 and 15", c.Threshold, c.Resource)
	}
	if d := h.waterDeltas[1][0]; !approx(d, -40) {
		t.Errorf("water delta = %.6f, want -40", d)
	}
}

func TestSoloPlantGetsMinOfDemandAndExtractable(t *testing.T) {
	tests := []struct {
		name   string
		demand float64
	}{
		{"demand below supply", 10},
		{"demand above supply", 500},
		{"zero demand", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost()
			h.addZone(1, uniformSoil(3, 100, 30, 10, 40, 20, 5))
			r := uniformRoots(3, 1, 0.1, 12)
			r.Exploration = []float64{1, 0.6, 0.2}
			h.addPlant(7, 1, r, tt.demand, tt.demand)

			for _, res := range []Resource{Water, Nitrogen} {
				a := newTestArbitrator(h, 1)
				c, err := a.calculate(res)
				if err != nil {
					t.Fatalf("calculate(%s): %v", res, err)
				}
				out, err := a.RunDay(res)
				if err != nil {
					t.Fatalf("RunDay(%s): %v", res, err)
				}
				p := out.Plants[0]
				want := math.Min(tt.demand, p.Extractable)
				if !approx(p.Uptake, want) {
					t.Errorf("%s uptake = %.6f, want %.6f", res, p.Uptake, want)
				}
				scale := 0.0
				if p.Extractable > 0 {
					scale = want / p.Extractable
				}
				for _, lu := range p.Layers {
					var ext float64
					for b := 0; b < c.g.bounds; b++ {
						for f := 0; f < c.g.forms; f++ {
							ext += c.g.Extractable(0, lu.Layer, 0, b, f)
						}
					}
					if !approx(lu.Amount, ext*scale) {
						t.Errorf("%s layer %d uptake = %.6f, want %.6f", res, lu.Layer, lu.Amount, ext*scale)
					}
				}
			}
		})
	}
}

// randomHost builds a multi-zone, multi-plant scenario with varied limits.
func randomHost(seed int64) *fakeHost {
	rng := rand.New(rand.NewSource(seed))
	h := newFakeHost()
	const layers = 4
	for z := ZoneID(1); z <= 2; z++ {
		s := uniformSoil(layers, 100, 0, 8, 35, 0, 0)
		for l := 0; l < layers; l++ {
			s.Water[l] = 8 + rng.Float64()*30
			s.Nitrate[l] = rng.Float64() * 40
			s.Ammonium[l] = rng.Float64() * 10
		}
		h.addZone(z, s)
	}
	for p := PlantID(1); p <= 4; p++ {
		for z := ZoneID(1); z <= 2; z++ {
			if p == 4 && z == 2 {
				continue
			}
			r := uniformRoots(layers, 0, 0, 0)
			for l := 0; l < layers; l++ {
				r.Exploration[l] = rng.Float64()
				r.KL[l] = 0.02 + rng.Float64()*0.1
				r.LowerLimit[l] = 8 + rng.Float64()*10
				r.RootLength[l] = r.Exploration[l]
			}
			r.RootLength[layers-1] = 0
			r.KNO3 = 0.5
			r.KNH4 = 0.3
			h.addPlant(p, z, r, 0, 0)
		}
		h.demands[Water][p] = Demand{Amount: 2 + rng.Float64()*8}
		h.demands[Nitrogen][p] = Demand{Amount: 1 + rng.Float64()*10}
	}
	return h
}

func TestConservationAndBoundedness(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		for _, method := range []int{1, 2, 3} {
			for _, res := range []Resource{Water, Nitrogen} {
				h := randomHost(seed)
				c, err := newTestArbitrator(h, method).calculate(res)
				if err != nil {
					t.Fatalf("calculate: %v", err)
				}
				g := c.g
				nc := g.compartments()
				for i := 0; i < nc; i++ {
					var sum float64
					for p := 0; p < g.plants; p++ {
						j := p*nc + i
						u, d, e := g.uptake[j], g.demand[j], g.extractable[j]
						if u < 0 || u > d+eps || d > e+eps {
							t.Fatalf("seed %d %s method %d: cell %d violates 0 <= uptake(%g) <= demand(%g) <= extractable(%g)",
								seed, res, method, j, u, d, e)
						}
						sum += u
					}
					if sum > g.resource[i]+eps {
						t.Fatalf("seed %d %s method %d: compartment %d uptake %g exceeds resource %g",
							seed, res, method, i, sum, g.resource[i])
					}
					if g.demandFor[i] >= g.resource[i] && math.Abs(sum-g.resource[i]) > 1e-6 {
						t.Fatalf("seed %d %s method %d: oversubscribed compartment %d uptake %g, want %g",
							seed, res, method, i, sum, g.resource[i])
					}
				}
			}
		}
	}
}

func TestOrderIndependence(t *testing.T) {
	// Reversing plant IDs and swapping zone IDs changes the enumeration order
	// of every competitor and compartment.
	plants := map[PlantID]PlantID{1: 4, 2: 3, 3: 2, 4: 1}
	zones := map[ZoneID]ZoneID{1: 2, 2: 1}

	for _, method := range []int{1, 2, 3} {
		for _, res := range []Resource{Water, Nitrogen} {
			orig := randomHost(99)
			perm := orig.relabel(plants, zones)

			a, err := newTestArbitrator(orig, method).RunDay(res)
			if err != nil {
				t.Fatalf("RunDay: %v", err)
			}
			b, err := newTestArbitrator(perm, method).RunDay(res)
			if err != nil {
				t.Fatalf("RunDay: %v", err)
			}

			totals := make(map[PlantID]float64)
			for _, p := range b.Plants {
				totals[p.Plant] = p.Uptake
			}
			for _, p := range a.Plants {
				if got := totals[plants[p.Plant]]; math.Abs(got-p.Uptake) > eps {
					t.Errorf("%s method %d plant %d: uptake %g, relabelled %g", res, method, p.Plant, p.Uptake, got)
				}
			}

			for k, u := range orig.uptakes {
				v, ok := perm.uptakes[rootKey{plants[k.plant], zones[k.zone]}]
				if !ok {
					t.Fatalf("%s method %d: no uptake written for relabelled plant %d zone %d", res, method, k.plant, k.zone)
				}
				for l := range u.Amount {
					if math.Abs(u.Amount[l]-v.Amount[l]) > eps {
						t.Errorf("%s method %d plant %d zone %d layer %d: %g vs %g",
							res, method, k.plant, k.zone, l, u.Amount[l], v.Amount[l])
					}
				}
			}
			for z, d := range orig.waterDeltas {
				for l := range d {
					if math.Abs(d[l]-perm.waterDeltas[zones[z]][l]) > eps {
						t.Errorf("method %d zone %d layer %d: water delta %g vs %g", method, z, l, d[l], perm.waterDeltas[zones[z]][l])
					}
				}
			}
		}
	}
}

func TestRootlessLayerStillAccounted(t *testing.T) {
	h := newFakeHost()
	h.addZone(1, uniformSoil(2, 100, 40, 10, 60, 0, 0))
	h.addZone(2, uniformSoil(3, 100, 40, 10, 60, 0, 0))
	h.addPlant(1, 1, uniformRoots(2, 1, 0.1, 15), 5, 0)

	res, err := newTestArbitrator(h, 1).RunDay(Water)
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	var found bool
	for _, c := range res.Compartments {
		if c.Zone == 2 && c.Layer == 2 {
			found = true
			if c.Threshold != 0 || !approx(c.Resource, 40) {
				t.Errorf("rootless layer compartment = %+v, want threshold 0 and resource 40", c)
			}
			if c.Uptake != 0 {
				t.Errorf("rootless layer uptake = %v, want 0", c.Uptake)
			}
		}
	}
	if !found {
		t.Fatal("no compartment reported for layer 2 of zone 2")
	}
}

func TestZeroDemandLayer(t *testing.T) {
	h := newFakeHost()
	h.addZone(1, uniformSoil(2, 100, 50, 10, 60, 30, 10))
	for p := PlantID(1); p <= 2; p++ {
		r := uniformRoots(2, 1, 0.1, 15)
		r.Exploration[1] = 0 // no roots in the bottom layer
		r.RootLength[1] = 0
		h.addPlant(p, 1, r, 100, 100)
	}

	for _, res := range []Resource{Water, Nitrogen} {
		out, err := newTestArbitrator(h, 1).RunDay(res)
		if err != nil {
			t.Fatalf("RunDay(%s): %v", res, err)
		}
		for _, c := range out.Compartments {
			if c.Layer != 1 {
				continue
			}
			if c.Resource <= 0 {
				t.Errorf("%s: expected resource in rootless layer, got %g", res, c.Resource)
			}
			if c.Uptake != 0 || c.Demand != 0 {
				t.Errorf("%s: rootless layer uptake=%g demand=%g, want 0", res, c.Uptake, c.Demand)
			}
			if c.Scarcity != 1 {
				t.Errorf("%s: scarcity with no demand = %g, want 1", res, c.Scarcity)
			}
		}
	}
}

func TestNitrateFractionAndDeltas(t *testing.T) {
	for _, method := range []int{1, 2, 3} {
		h := randomHost(5)
		out, err := newTestArbitrator(h, method).RunDay(Nitrogen)
		if err != nil {
			t.Fatalf("RunDay: %v", err)
		}
		if len(h.nitrogenEvents) != 1 {
			t.Fatalf("method %d: expected exactly one nitrogen event, got %d", method, len(h.nitrogenEvents))
		}
		ev := h.nitrogenEvents[0]
		if ev.Sender != DefaultOptions().Sender {
			t.Errorf("sender = %q", ev.Sender)
		}

		layerTotals := make(map[ZoneID][]float64)
		for _, p := range out.Plants {
			for _, lu := range p.Layers {
				if lu.NitrateFraction < 0 || lu.NitrateFraction > 1 {
					t.Errorf("method %d: nitrate fraction %g out of range", method, lu.NitrateFraction)
				}
				if lu.SupplyNitrate < 0 || lu.SupplyNitrate > 1 {
					t.Errorf("method %d: supply nitrate %g out of range", method, lu.SupplyNitrate)
				}
				if layerTotals[lu.Zone] == nil {
					layerTotals[lu.Zone] = make([]float64, 4)
				}
				layerTotals[lu.Zone][lu.Layer] += lu.Amount
			}
		}
		for _, zd := range ev.Zones {
			for l := range zd.Nitrate {
				if zd.Nitrate[l] > 0 || zd.Ammonium[l] > 0 {
					t.Errorf("method %d: deltas must be non-positive", method)
				}
				got := -(zd.Nitrate[l] + zd.Ammonium[l])
				if math.Abs(got-layerTotals[zd.Zone][l]) > eps {
					t.Errorf("method %d zone %d layer %d: delta magnitude %g, uptake %g",
						method, zd.Zone, l, got, layerTotals[zd.Zone][l])
				}
			}
		}
	}
}

func TestNitrogenMaxUptakeCap(t *testing.T) {
	h := newFakeHost()
	h.addZone(1, uniformSoil(2, 100, 30, 10, 40, 50, 20))
	h.addPlant(1, 1, uniformRoots(2, 1, 0.5, 10), 0, 100)
	h.demands[Nitrogen][1] = Demand{Amount: 100, MaxUptake: 4}

	out, err := newTestArbitrator(h, 1).RunDay(Nitrogen)
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	if !approx(out.Plants[0].Uptake, 4) {
		t.Errorf("capped uptake = %g, want 4", out.Plants[0].Uptake)
	}
}

func TestUnknownNitrogenMethodFailsAtSetup(t *testing.T) {
	h := randomHost(1)
	opts := DefaultOptions()
	opts.NitrogenMethod = 4
	a, err := New(h, h, h, h, opts)
	if !errors.Is(err, ErrUnknownNitrogenMethod) {
		t.Fatalf("expected ErrUnknownNitrogenMethod, got %v", err)
	}
	if a != nil {
		t.Error("expected no arbitrator on configuration error")
	}
	if h.writes != 0 {
		t.Errorf("expected no collaborator writes, got %d", h.writes)
	}
}

func TestUnknownArbitrationMethod(t *testing.T) {
	h := randomHost(1)
	opts := DefaultOptions()
	opts.Method = "proportinal"
	_, err := New(h, h, h, h, opts)
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
	if !strings.Contains(err.Error(), `did you mean "proportional"`) {
		t.Errorf("expected suggestion in %q", err)
	}
}

func TestLayerMismatchPublishesNothing(t *testing.T) {
	h := newFakeHost()
	h.addZone(1, uniformSoil(3, 100, 30, 10, 40, 20, 5))
	h.addPlant(1, 1, uniformRoots(2, 1, 0.1, 12), 5, 5)

	for _, res := range []Resource{Water, Nitrogen} {
		_, err := newTestArbitrator(h, 1).RunDay(res)
		if !errors.Is(err, ErrLayerMismatch) {
			t.Fatalf("%s: expected ErrLayerMismatch, got %v", res, err)
		}
	}
	if h.writes != 0 {
		t.Errorf("expected no writes after failure, got %d", h.writes)
	}
}

func TestUnknownResource(t *testing.T) {
	h := randomHost(1)
	_, err := newTestArbitrator(h, 1).RunDay(Resource(9))
	if !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("expected ErrUnknownResource, got %v", err)
	}
}

func TestRepeatedCallsStartFromZero(t *testing.T) {
	h := randomHost(3)
	a := newTestArbitrator(h, 2)
	first, err := a.RunDay(Water)
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	second, err := a.RunDay(Water)
	if err != nil {
		t.Fatalf("RunDay: %v", err)
	}
	for i := range first.Plants {
		if first.Plants[i].Uptake != second.Plants[i].Uptake {
			t.Errorf("plant %d: %g then %g on identical inputs",
				first.Plants[i].Plant, first.Plants[i].Uptake, second.Plants[i].Uptake)
		}
	}
}
