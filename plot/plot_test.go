package plot

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/pthm-cable/rootshare/arbitration"
	"github.com/pthm-cable/rootshare/components"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func testSoil() components.SoilProfile {
	s := components.NewSoilProfile(3)
	for l := 0; l < 3; l++ {
		s.Thickness[l] = 100
		s.Water[l] = 30
		s.WiltingLimit[l] = 10
		s.FieldCapacity[l] = 35
	}
	s.Nitrate = []float64{10, 5, 0}
	s.Ammonium = []float64{2, 1, 0}
	return s
}

func testRoots(n int) components.Roots {
	r := components.Roots{
		Exploration: make([]float64, n),
		KL:          make([]float64, n),
		LowerLimit:  make([]float64, n),
		RootLength:  make([]float64, n),
		KNO3:        0.02,
		KNH4:        0.01,
	}
	for l := 0; l < n; l++ {
		r.Exploration[l] = 1
		r.KL[l] = 0.1
		r.LowerLimit[l] = 12
		r.RootLength[l] = 1
	}
	return r
}

// newTestPlot builds one zone shared by two plants.
func newTestPlot(t *testing.T) *Plot {
	t.Helper()
	p := New()
	if err := p.AddZone(1, "bed", testSoil()); err != nil {
		t.Fatal(err)
	}
	for id, water := range map[arbitration.PlantID]float64{1: 3, 2: 5} {
		if err := p.AddPlant(id, components.Plant{Name: "p"}, components.Demand{Water: water, Nitrogen: 0.5}); err != nil {
			t.Fatal(err)
		}
		if err := p.AddRoots(id, 1, testRoots(3)); err != nil {
			t.Fatal(err)
		}
	}
	return p
}

func TestPlotOrdering(t *testing.T) {
	p := New()
	for _, z := range []arbitration.ZoneID{3, 1, 2} {
		if err := p.AddZone(z, "", testSoil()); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []arbitration.PlantID{9, 4, 6} {
		if err := p.AddPlant(id, components.Plant{}, components.Demand{}); err != nil {
			t.Fatal(err)
		}
		if err := p.AddRoots(id, 2, testRoots(3)); err != nil {
			t.Fatal(err)
		}
	}

	if got := p.Zones(); !slices.Equal(got, []arbitration.ZoneID{1, 2, 3}) {
		t.Errorf("Zones() = %v", got)
	}
	if got := p.PlantsIn(2); !slices.Equal(got, []arbitration.PlantID{4, 6, 9}) {
		t.Errorf("PlantsIn(2) = %v", got)
	}
	if got := p.PlantsIn(1); len(got) != 0 {
		t.Errorf("PlantsIn(1) = %v, want empty", got)
	}
}

func TestPlotErrors(t *testing.T) {
	p := newTestPlot(t)

	if err := p.AddZone(1, "again", testSoil()); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate zone: got %v", err)
	}
	if err := p.AddPlant(2, components.Plant{}, components.Demand{}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate plant: got %v", err)
	}
	if err := p.AddRoots(1, 1, testRoots(3)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate roots: got %v", err)
	}
	if err := p.AddRoots(7, 1, testRoots(3)); !errors.Is(err, ErrUnknownPlant) {
		t.Errorf("unknown plant: got %v", err)
	}
	if err := p.AddRoots(1, 5, testRoots(3)); !errors.Is(err, ErrUnknownZone) {
		t.Errorf("unknown zone: got %v", err)
	}
	if _, err := p.Soil(5); !errors.Is(err, ErrUnknownZone) {
		t.Errorf("Soil(5): got %v", err)
	}

	if err := p.AddPlant(3, components.Plant{}, components.Demand{}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRoots(3, 1, testRoots(2)); !errors.Is(err, arbitration.ErrLayerMismatch) {
		t.Errorf("short roots: got %v", err)
	}
}

func TestSoilReturnsCopy(t *testing.T) {
	p := newTestPlot(t)
	s, err := p.Soil(1)
	if err != nil {
		t.Fatal(err)
	}
	s.Water[0] = 0
	if p.SoilProfile(1).Water[0] != 30 {
		t.Error("mutating the returned soil changed the plot")
	}
}

func TestDemandByResource(t *testing.T) {
	p := New()
	if err := p.AddPlant(1, components.Plant{}, components.Demand{Water: 4, Nitrogen: 2, MaxNitrogen: 1.5}); err != nil {
		t.Fatal(err)
	}
	if d := p.Demand(1, arbitration.Water); d.Amount != 4 || d.MaxUptake != 0 {
		t.Errorf("water demand = %+v", d)
	}
	if d := p.Demand(1, arbitration.Nitrogen); d.Amount != 2 || d.MaxUptake != 1.5 {
		t.Errorf("nitrogen demand = %+v", d)
	}
	if d := p.Demand(8, arbitration.Water); d.Amount != 0 {
		t.Errorf("unknown plant demand = %+v", d)
	}
}

func TestArbitrationAgainstPlot(t *testing.T) {
	p := newTestPlot(t)
	a, err := arbitration.New(p, p, p, p, arbitration.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}

	zone := p.SoilProfile(1)
	waterBefore := zone.TotalWater()
	res, err := a.RunDay(arbitration.Water)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(waterBefore-zone.TotalWater(), res.TotalUptake()) {
		t.Errorf("soil lost %v water, plants took %v", waterBefore-zone.TotalWater(), res.TotalUptake())
	}
	var stored float64
	for _, id := range p.Plants() {
		stored += p.UptakeOf(id, 1).TotalWater()
	}
	if !approx(stored, res.TotalUptake()) {
		t.Errorf("stored uptake %v, result %v", stored, res.TotalUptake())
	}

	nBefore := zone.TotalMineralN()
	res, err = a.RunDay(arbitration.Nitrogen)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalUptake() <= 0 {
		t.Fatal("expected some nitrogen uptake")
	}
	if !approx(nBefore-zone.TotalMineralN(), res.TotalUptake()) {
		t.Errorf("soil lost %v N, plants took %v", nBefore-zone.TotalMineralN(), res.TotalUptake())
	}
	calls, sender := p.NitrogenEvents()
	if calls != 1 || sender != arbitration.DefaultOptions().Sender {
		t.Errorf("nitrogen events = %d from %q", calls, sender)
	}
}
