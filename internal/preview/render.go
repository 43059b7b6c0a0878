// Package preview renders composite bands to PNG for quick visual
// inspection of a run.
package preview

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/sampling"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/timeseries"
)

// RenderBand writes one composite band as a grayscale PNG, stretched
// to the band's valid value range, with sample points marked. A gap
// band renders as all-black rather than failing.
func RenderBand(cc *timeseries.CompositeCube, bandName string, points []sampling.Point, outPath string) error {
	grid, ok := cc.Band(bandName)
	if !ok {
		return fmt.Errorf("band %s not present in composite", bandName)
	}

	lo, hi := valueRange(grid)
	dc := gg.NewContext(grid.Width, grid.Height)
	for y := 0; y < grid.Height; y++ {
		for x := 0; x < grid.Width; x++ {
			v := grid.At(x, y)
			gray := 0.0
			if !raster.IsNoData(v) && hi > lo {
				gray = (v - lo) / (hi - lo)
			}
			dc.SetRGB(gray, gray, gray)
			dc.SetPixel(x, y)
		}
	}

	dc.SetRGB(1, 0, 0)
	for _, p := range points {
		if x, y, err := grid.LonLatToPixel(p.Lon, p.Lat); err == nil {
			dc.DrawCircle(float64(x), float64(y), 2)
			dc.Fill()
		}
	}

	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}

func valueRange(grid *raster.Grid) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range grid.Data {
		if raster.IsNoData(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
