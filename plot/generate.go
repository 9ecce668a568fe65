package plot

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/rootshare/arbitration"
	"github.com/pthm-cable/rootshare/components"
	"github.com/pthm-cable/rootshare/config"
)

// Generate builds a plot from the scenario section of cfg. Soil properties and
// root systems vary smoothly across zones and layers; seed fixes the pattern.
func Generate(cfg *config.Config, seed int64) (*Plot, error) {
	sc := cfg.Scenario
	soilNoise := opensimplex.NewNormalized(seed)

	p := New()
	p.demandNoise = opensimplex.NewNormalized(seed + 1)
	p.demandScale = sc.Noise.DemandScale
	p.demandAmp = sc.Noise.DemandAmplitude

	for _, zid := range cfg.Derived.ZoneIDs {
		soil := components.NewSoilProfile(sc.Layers)
		for l := 0; l < sc.Layers; l++ {
			f := vary(soilNoise, float64(zid)*sc.Noise.Scale, float64(l)*sc.Noise.Scale, sc.Noise.Amplitude)
			fn := vary(soilNoise, float64(zid)*sc.Noise.Scale+17, float64(l)*sc.Noise.Scale, sc.Noise.Amplitude)

			t := sc.LayerThickness
			soil.Thickness[l] = t
			soil.WiltingLimit[l] = sc.Soil.WiltingLimit * t * f
			soil.FieldCapacity[l] = sc.Soil.FieldCapacity * t * f
			soil.Water[l] = soil.WiltingLimit[l] + sc.Soil.InitialFill*(soil.FieldCapacity[l]-soil.WiltingLimit[l])

			decay := math.Pow(1-sc.Soil.NitrogenDecay, float64(l))
			soil.Nitrate[l] = sc.Soil.Nitrate * decay * fn
			soil.Ammonium[l] = sc.Soil.Ammonium * decay * fn
		}
		if err := p.AddZone(arbitration.ZoneID(zid), fmt.Sprintf("zone-%d", zid), soil); err != nil {
			return nil, err
		}
	}

	for i, pc := range sc.Plants {
		id := arbitration.PlantID(i + 1)
		plant := components.Plant{Name: pc.Name, Species: pc.Species}
		demand := components.Demand{
			Water:        pc.WaterDemand,
			Nitrogen:     pc.NitrogenDemand,
			MaxNitrogen:  pc.MaxNitrogenUptake,
			BaseWater:    pc.WaterDemand,
			BaseNitrogen: pc.NitrogenDemand,
		}
		if err := p.AddPlant(id, plant, demand); err != nil {
			return nil, err
		}
		for _, zid := range cfg.Derived.ZoneIDs {
			if !occupies(cfg, zid, i) {
				continue
			}
			roots := rootSystem(pc, p.SoilProfile(arbitration.ZoneID(zid)))
			if err := p.AddRoots(id, arbitration.ZoneID(zid), roots); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

func occupies(cfg *config.Config, zone, plant int) bool {
	for _, i := range cfg.Derived.PlantsByZone[zone] {
		if i == plant {
			return true
		}
	}
	return false
}

// vary returns a multiplier in [1-amp, 1+amp] sampled from normalized noise.
func vary(n opensimplex.Noise, x, y, amp float64) float64 {
	return 1 + amp*(2*n.Eval2(x, y)-1)
}

// rootSystem lays out roots down to the plant's rooting depth. The deepest
// rooted layer is half explored and extraction slows with depth.
func rootSystem(pc config.PlantConfig, soil *components.SoilProfile) components.Roots {
	n := soil.Layers()
	r := components.Roots{
		Exploration: make([]float64, n),
		KL:          make([]float64, n),
		LowerLimit:  make([]float64, n),
		RootLength:  make([]float64, n),
		KNO3:        pc.KNO3,
		KNH4:        pc.KNH4,
	}
	for l := 0; l < n; l++ {
		r.LowerLimit[l] = math.Max(pc.LowerLimit*soil.Thickness[l], soil.WiltingLimit[l])
		if l >= pc.RootDepth {
			continue
		}
		r.Exploration[l] = 1
		if l == pc.RootDepth-1 {
			r.Exploration[l] = 0.5
		}
		r.KL[l] = pc.KL * math.Exp(-0.15*float64(l))
		r.RootLength[l] = r.Exploration[l] * float64(pc.RootDepth-l) / float64(pc.RootDepth)
	}
	return r
}

// UpdateDemand sets each plant's demand for the day from its base demand,
// modulated by smooth temporal noise.
func (p *Plot) UpdateDemand(day int) {
	for _, id := range p.Plants() {
		d := p.DemandOf(id)
		f := 1.0
		if p.demandNoise != nil && p.demandAmp > 0 {
			f = math.Max(0, vary(p.demandNoise, float64(day)*p.demandScale, float64(id)*3.7, p.demandAmp))
		}
		d.Water = d.BaseWater * f
		d.Nitrogen = d.BaseNitrogen * f
	}
}
