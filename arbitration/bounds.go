package arbitration

import (
	"math"
	"slices"
)

// DefaultBoundTolerance is the rounding step applied to lower limits before
// they are compared, in mm.
const DefaultBoundTolerance = 0.001

func boundKey(v, tol float64) int64 {
	return int64(math.Round(v / tol))
}

// roundLimit snaps a lower limit onto the same grid as the bound ladder.
func roundLimit(v, tol float64) float64 {
	return float64(boundKey(v, tol)) * tol
}

// waterBounds builds, per layer, the distinct plant lower limits across every
// zone, deepest threshold first. The first tranche is reachable by every plant.
func waterBounds(t *topology, tol float64) [][]float64 {
	ladder := make([][]float64, t.maxLayers)
	for l := range ladder {
		keys := make(map[int64]struct{})
		for zi := range t.zones {
			if l >= t.soils[zi].Layers() {
				continue
			}
			for _, r := range t.roots[zi] {
				keys[boundKey(r.LowerLimit[l], tol)] = struct{}{}
			}
		}
		sorted := make([]int64, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		if len(sorted) == 0 {
			// a layer no plant reaches keeps one tranche holding all its water
			ladder[l] = []float64{0}
			continue
		}
		slices.Sort(sorted)
		slices.Reverse(sorted)

		ladder[l] = make([]float64, len(sorted))
		for i, k := range sorted {
			ladder[l][i] = float64(k) * tol
		}
	}
	return ladder
}

// nitrogenBounds gives each layer a single tranche covering the whole layer.
func nitrogenBounds(t *topology) [][]float64 {
	ladder := make([][]float64, t.maxLayers)
	for l := range ladder {
		ladder[l] = []float64{0}
	}
	return ladder
}

func maxBounds(ladder [][]float64) int {
	n := 1
	for _, b := range ladder {
		n = max(n, len(b))
	}
	return n
}
