package components

// Zone marks an entity that owns one soil profile.
type Zone struct {
	ID   int
	Name string
}

// SoilProfile holds a zone's layered soil state. Water columns are depths in
// mm, nitrogen pools are kg/ha. Every slice is indexed by layer.
type SoilProfile struct {
	Thickness     []float64
	Water         []float64
	WiltingLimit  []float64 // LL15
	FieldCapacity []float64 // DUL
	Nitrate       []float64
	Ammonium      []float64
}

// NewSoilProfile allocates a profile with n layers.
func NewSoilProfile(n int) SoilProfile {
	return SoilProfile{
		Thickness:     make([]float64, n),
		Water:         make([]float64, n),
		WiltingLimit:  make([]float64, n),
		FieldCapacity: make([]float64, n),
		Nitrate:       make([]float64, n),
		Ammonium:      make([]float64, n),
	}
}

// Layers returns the number of layers.
func (s *SoilProfile) Layers() int { return len(s.Thickness) }

// TotalWater returns the water held in the profile, mm.
func (s *SoilProfile) TotalWater() float64 {
	var sum float64
	for _, w := range s.Water {
		sum += w
	}
	return sum
}

// TotalMineralN returns nitrate plus ammonium across the profile, kg/ha.
func (s *SoilProfile) TotalMineralN() float64 {
	var sum float64
	for l := range s.Nitrate {
		sum += s.Nitrate[l] + s.Ammonium[l]
	}
	return sum
}
