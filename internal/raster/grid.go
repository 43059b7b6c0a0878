package raster

import (
	"fmt"
	"math"
)

// Grid is a single band of pixels in EPSG:4326 with a GDAL-style
// geotransform. Missing observations are NaN.
type Grid struct {
	Width     int
	Height    int
	Transform [6]float64
	Data      []float64
}

func NewGrid(width, height int, transform [6]float64) *Grid {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{Width: width, Height: height, Transform: transform, Data: data}
}

func (g *Grid) At(x, y int) float64 {
	return g.Data[y*g.Width+x]
}

func (g *Grid) Set(x, y int, v float64) {
	g.Data[y*g.Width+x] = v
}

func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

func (g *Grid) Clone() *Grid {
	data := make([]float64, len(g.Data))
	copy(data, g.Data)
	return &Grid{Width: g.Width, Height: g.Height, Transform: g.Transform, Data: data}
}

// SameShape reports whether two grids share pixel dimensions and
// geotransform, i.e. whether they are stackable into one cube.
func (g *Grid) SameShape(other *Grid) bool {
	return g.Width == other.Width && g.Height == other.Height && g.Transform == other.Transform
}

// LonLatToPixel converts geographic coordinates to pixel indices.
func (g *Grid) LonLatToPixel(lon, lat float64) (int, int, error) {
	if g.Transform[1] == 0 || g.Transform[5] == 0 {
		return 0, 0, fmt.Errorf("grid has a degenerate geotransform")
	}
	x := int(math.Floor((lon - g.Transform[0]) / g.Transform[1]))
	y := int(math.Floor((lat - g.Transform[3]) / g.Transform[5]))
	if x < 0 || x >= g.Width || y < 0 || y >= g.Height {
		return 0, 0, fmt.Errorf("coordinates (%f, %f) fall outside the grid", lon, lat)
	}
	return x, y, nil
}

// PixelCenter returns the geographic coordinates of a pixel center.
func (g *Grid) PixelCenter(x, y int) (float64, float64) {
	lon := g.Transform[0] + g.Transform[1]*(float64(x)+0.5) + g.Transform[2]*(float64(y)+0.5)
	lat := g.Transform[3] + g.Transform[4]*(float64(x)+0.5) + g.Transform[5]*(float64(y)+0.5)
	return lon, lat
}

// Sample reads the value under geographic coordinates, NaN when the
// point falls outside the grid.
func (g *Grid) Sample(lon, lat float64) float64 {
	x, y, err := g.LonLatToPixel(lon, lat)
	if err != nil {
		return math.NaN()
	}
	return g.At(x, y)
}
