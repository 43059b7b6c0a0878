package archive

import (
	"math"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
)

// ApplyCloudMask knocks out every pixel whose cloud probability is at
// or above the threshold, across all spectral bands, then drops the
// cloud band itself. Sub-threshold pixels pass through unchanged.
func ApplyCloudMask(scene *Scene, threshold float64) *Scene {
	cloud, ok := scene.Bands[cloudBand]
	if !ok {
		return scene
	}

	masked := &Scene{ID: scene.ID, Date: scene.Date, Bands: make(map[string]*raster.Grid, len(scene.Bands))}
	for _, name := range scene.BandOrder {
		if name == cloudBand {
			continue
		}
		masked.BandOrder = append(masked.BandOrder, name)
		grid := scene.Bands[name].Clone()
		for i, p := range cloud.Data {
			if !raster.IsNoData(p) && p >= threshold {
				grid.Data[i] = math.NaN()
			}
		}
		masked.Bands[name] = grid
	}
	return masked
}
