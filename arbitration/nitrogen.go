package arbitration

import "fmt"

// SupplyInput holds everything a nitrogen method sees for one plant in one layer.
type SupplyInput struct {
	Exploration   float64
	KL            float64
	RootLength    float64
	RelativeWater float64 // (water - wilting limit) / (field capacity - wilting limit), clamped
	Nitrate       float64
	Ammonium      float64
	KNO3          float64
	KNH4          float64
	PlantCount    int // plants sharing the zone
}

// Supply is a plant's solo-extraction estimate for each nitrogen form.
type Supply struct {
	Nitrate  float64
	Ammonium float64
}

// Total returns the combined supply.
func (s Supply) Total() float64 { return s.Nitrate + s.Ammonium }

// ProportionNitrate returns the nitrate share of the supply, zero when empty.
func (s Supply) ProportionNitrate() float64 {
	return clamp01(safeDiv(s.Nitrate, s.Total(), 0))
}

// NitrogenMethod estimates how much nitrogen a plant could take up alone.
type NitrogenMethod interface {
	Number() int
	Name() string
	ComputeExtractable(in SupplyInput) Supply
}

// NewNitrogenMethod returns the method for a configuration selector.
func NewNitrogenMethod(n int) (NitrogenMethod, error) {
	switch n {
	case 1:
		return LocationBased{}, nil
	case 2:
		return ConcentrationBased{}, nil
	case 3:
		return AmountBased{}, nil
	default:
		return nil, fmt.Errorf("%w: %d (want 1, 2 or 3)", ErrUnknownNitrogenMethod, n)
	}
}

func plantShare(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 1 / float64(n)
}

// LocationBased extracts kl of the explored pool, split evenly among the
// plants in the zone.
type LocationBased struct{}

func (LocationBased) Number() int  { return 1 }
func (LocationBased) Name() string { return "location" }

func (LocationBased) ComputeExtractable(in SupplyInput) Supply {
	rate := in.Exploration * in.KL * plantShare(in.PlantCount)
	return Supply{
		Nitrate:  rate * in.Nitrate,
		Ammonium: rate * in.Ammonium,
	}
}

// ConcentrationBased scales the explored pool of each form by its uptake
// constant and the relative soil water content. Layers without root length
// supply nothing.
type ConcentrationBased struct{}

func (ConcentrationBased) Number() int  { return 2 }
func (ConcentrationBased) Name() string { return "concentration" }

func (ConcentrationBased) ComputeExtractable(in SupplyInput) Supply {
	if in.RootLength <= 0 {
		return Supply{}
	}
	rate := in.Exploration * clamp01(in.RelativeWater)
	return Supply{
		Nitrate:  rate * in.KNO3 * in.Nitrate,
		Ammonium: rate * in.KNH4 * in.Ammonium,
	}
}

// AmountBased is ConcentrationBased split evenly among the plants in the zone,
// with no root length gate.
type AmountBased struct{}

func (AmountBased) Number() int  { return 3 }
func (AmountBased) Name() string { return "amount" }

func (AmountBased) ComputeExtractable(in SupplyInput) Supply {
	rate := in.Exploration * clamp01(in.RelativeWater) * plantShare(in.PlantCount)
	return Supply{
		Nitrate:  rate * in.KNO3 * in.Nitrate,
		Ammonium: rate * in.KNH4 * in.Ammonium,
	}
}
