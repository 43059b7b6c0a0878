// Package sampling draws reproducible point samples inside a region
// and extracts composite values at each point.
package sampling

import (
	"fmt"
	"math/rand"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/timeseries"
	"github.com/paulmach/orb"
	"github.com/schollz/progressbar/v3"
)

const StrategyUniform = "uniform"

// attemptsPerPoint bounds rejection sampling so a degenerate region
// fails fast instead of spinning.
const attemptsPerPoint = 1000

// SamplingError is the declared, recoverable failure for degenerate
// region geometry. Only the sampling step dies on it.
type SamplingError struct {
	Reason string
}

func (e *SamplingError) Error() string {
	return "sampling failed: " + e.Reason
}

// Point is a generated sample location, always inside the region.
type Point struct {
	ID  int
	Lon float64
	Lat float64
}

// Row joins one sample point with every composite band value at its
// coordinates. Points on gap periods carry nodata for those columns.
type Row struct {
	Point
	Values map[string]float64
}

// GeneratePoints draws count points uniformly inside the region by
// rejection sampling from its bounding envelope. The same seed always
// reproduces the same sequence.
func GeneratePoints(region *roi.Region, count int, strategy string, seed int64) ([]Point, error) {
	if strategy != StrategyUniform {
		return nil, fmt.Errorf("unknown sampling strategy %q", strategy)
	}
	if count <= 0 {
		return nil, &SamplingError{Reason: fmt.Sprintf("sample count %d is not positive", count)}
	}

	bound := region.Bound()
	spanX := bound.Max[0] - bound.Min[0]
	spanY := bound.Max[1] - bound.Min[1]
	if spanX <= 0 || spanY <= 0 {
		return nil, &SamplingError{Reason: "region bounding envelope has no extent"}
	}

	rng := rand.New(rand.NewSource(seed))
	points := make([]Point, 0, count)
	maxAttempts := count * attemptsPerPoint
	for attempt := 0; len(points) < count; attempt++ {
		if attempt >= maxAttempts {
			return nil, &SamplingError{Reason: fmt.Sprintf(
				"accepted %d of %d points after %d attempts, region area is negligible relative to its envelope",
				len(points), count, maxAttempts)}
		}
		p := orb.Point{bound.Min[0] + rng.Float64()*spanX, bound.Min[1] + rng.Float64()*spanY}
		if region.Contains(p) {
			points = append(points, Point{ID: len(points) + 1, Lon: p[0], Lat: p[1]})
		}
	}
	return points, nil
}

// Extract reads every composite band value at each point. A point is
// never dropped: values outside the grid or on gap bands are nodata.
func Extract(cc *timeseries.CompositeCube, points []Point) []Row {
	bands := cc.BandNames()
	rows := make([]Row, 0, len(points))
	bar := progressbar.Default(int64(len(points)), "Extracting samples")
	for _, point := range points {
		values := make(map[string]float64, len(bands))
		for _, name := range bands {
			grid, _ := cc.Band(name)
			values[name] = grid.Sample(point.Lon, point.Lat)
		}
		rows = append(rows, Row{Point: point, Values: values})
		bar.Add(1)
	}
	bar.Finish()
	return rows
}
