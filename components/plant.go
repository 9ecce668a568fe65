package components

// Plant identifies a competing plant.
type Plant struct {
	ID      int
	Name    string
	Species string
}

// Demand holds a plant's daily resource demand.
// Base values are the unmodulated demand the day's value is derived from.
type Demand struct {
	Water       float64 // mm/day
	Nitrogen    float64 // kg/ha/day
	MaxNitrogen float64 // optional cap on daily nitrogen uptake; zero disables

	BaseWater    float64
	BaseNitrogen float64
}

// RootZone links a plant to a zone its roots occupy.
type RootZone struct {
	Plant int
	Zone  int
}

// Roots describes a plant's root system within one zone.
type Roots struct {
	Exploration []float64 // fraction of each layer explored, [0,1]
	KL          []float64 // extraction coefficient, /day
	LowerLimit  []float64 // plant water lower limit, mm
	RootLength  []float64 // root length density, mm/mm3
	KNO3        float64
	KNH4        float64
}

// Uptake holds the last arbitrated uptake for a root zone, per layer.
type Uptake struct {
	Water           []float64
	Nitrogen        []float64
	NitrateFraction []float64
}

// TotalWater sums water uptake across layers.
func (u *Uptake) TotalWater() float64 { return sum(u.Water) }

// TotalNitrogen sums nitrogen uptake across layers.
func (u *Uptake) TotalNitrogen() float64 { return sum(u.Nitrogen) }

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}
