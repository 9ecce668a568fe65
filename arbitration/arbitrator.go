// Package arbitration divides shared soil water and mineral nitrogen among
// competing plants for one simulated day.
//
// Each call walks the zones and plants, slices every layer into tranches
// ("bounds") and chemical forms, estimates what each plant could extract
// alone, caps and spreads each plant's demand over the cells it can reach,
// and scales all competitors in a cell by the same available/demanded ratio.
// Results are written back to the plants and one soil delta is published.
package arbitration

import (
	"fmt"
	"log/slog"
)

// Options configures an Arbitrator.
type Options struct {
	Method         string  // arbitration method name, see Methods
	NitrogenMethod int     // 1 location, 2 concentration, 3 amount
	BoundTolerance float64 // rounding step for water lower limits, mm
	Sender         string  // identity stamped on nitrogen delta events
	Logger         *slog.Logger
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Method:         MethodProportional,
		NitrogenMethod: 1,
		BoundTolerance: DefaultBoundTolerance,
		Sender:         "arbitrator",
	}
}

// Arbitrator runs the daily arbitration pipeline against its collaborators.
type Arbitrator struct {
	structure Structure
	soil      SoilReader
	plants    PlantCollaborator
	publisher DeltaPublisher

	nitrogen NitrogenMethod
	tol      float64
	sender   string
	logger   *slog.Logger
}

// New validates opts and wires the collaborators. Configuration errors are
// returned here, before any allocation can run.
func New(st Structure, soil SoilReader, plants PlantCollaborator, pub DeltaPublisher, opts Options) (*Arbitrator, error) {
	if err := ValidateMethod(opts.Method); err != nil {
		return nil, err
	}
	nm, err := NewNitrogenMethod(opts.NitrogenMethod)
	if err != nil {
		return nil, err
	}
	tol := opts.BoundTolerance
	if tol <= 0 {
		tol = DefaultBoundTolerance
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbitrator{
		structure: st,
		soil:      soil,
		plants:    plants,
		publisher: pub,
		nitrogen:  nm,
		tol:       tol,
		sender:    opts.Sender,
		logger:    logger,
	}, nil
}

// NitrogenMethod returns the configured nitrogen uptake strategy.
func (a *Arbitrator) NitrogenMethod() NitrogenMethod { return a.nitrogen }

// dayCalc is the working state of one call. It is built fresh every time.
type dayCalc struct {
	resource Resource
	topo     *topology
	ladder   [][]float64
	g        *grid

	demands          []Demand
	extractableTotal []float64

	nitrogen NitrogenMethod
	tol      float64
}

// RunDay arbitrates one resource for the current day. On error nothing is
// written to the collaborators.
func (a *Arbitrator) RunDay(r Resource) (*Result, error) {
	c, err := a.calculate(r)
	if err != nil {
		return nil, err
	}

	res, pub := c.collect(a.sender)
	a.publish(r, c.topo, pub)

	a.logger.Debug("arbitration complete",
		"resource", r.String(),
		"zones", len(c.topo.zones),
		"plants", len(c.topo.plants),
		"uptake", res.TotalUptake(),
	)
	return res, nil
}

// calculate runs every stage up to allocation from zeroed state.
func (a *Arbitrator) calculate(r Resource) (*dayCalc, error) {
	if r != Water && r != Nitrogen {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, r)
	}

	topo, err := enumerate(a.structure, a.soil, a.plants)
	if err != nil {
		return nil, fmt.Errorf("arbitrating %s: %w", r, err)
	}

	c := &dayCalc{
		resource:         r,
		topo:             topo,
		nitrogen:         a.nitrogen,
		tol:              a.tol,
		demands:          make([]Demand, len(topo.plants)),
		extractableTotal: make([]float64, len(topo.plants)),
	}
	if r == Water {
		c.ladder = waterBounds(topo, a.tol)
	} else {
		c.ladder = nitrogenBounds(topo)
	}
	c.g = newGrid(len(topo.plants), topo.maxLayers, len(topo.zones), maxBounds(c.ladder), r.Forms())
	for p, id := range topo.plants {
		c.demands[p] = a.plants.Demand(id, r)
	}

	c.accountResource()
	c.computeExtractable()
	c.distributeDemand()
	c.allocate()
	return c, nil
}
