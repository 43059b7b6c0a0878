// Package timeseries reduces a cube's dated bands into one composite
// band per (variable, period).
//
// Period boundaries are UTC calendar periods: a scene belongs to the
// month (or year) containing its acquisition date after truncation to
// a UTC date. This is a deliberate, documented convention; no
// timezone other than UTC ever enters period grouping.
//
// The median reducer is the empirical quantile: for an even number of
// observations it takes the lower middle value instead of
// interpolating the midpoint, so every composited pixel is an
// observed value.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/cube"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type Granularity string

const (
	Monthly Granularity = "month"
	Yearly  Granularity = "year"
)

type ReducerKind string

const (
	Median ReducerKind = "median"
	Mean   ReducerKind = "mean"
	Max    ReducerKind = "max"
)

// ReducerConfig picks the reducer per variable, with a fallback.
type ReducerConfig struct {
	Default     ReducerKind
	PerVariable map[string]ReducerKind
}

func (rc ReducerConfig) For(variable string) ReducerKind {
	if kind, ok := rc.PerVariable[variable]; ok {
		return kind
	}
	if rc.Default != "" {
		return rc.Default
	}
	return Median
}

// Gap is a (variable, period) pair with zero contributing scenes.
// Recorded, never fatal.
type Gap struct {
	Variable  string
	PeriodKey string
}

// CompositeCube holds exactly one band per (variable, period), named
// <variable>_<periodKey>, enumerated sorted by (period, variable).
// Gap periods are present as all-nodata bands.
type CompositeCube struct {
	names     []string
	bands     map[string]*raster.Grid
	periods   []string
	variables []string
}

func (cc *CompositeCube) BandNames() []string {
	names := make([]string, len(cc.names))
	copy(names, cc.names)
	return names
}

func (cc *CompositeCube) Band(name string) (*raster.Grid, bool) {
	g, ok := cc.bands[name]
	return g, ok
}

func (cc *CompositeCube) Periods() []string {
	periods := make([]string, len(cc.periods))
	copy(periods, cc.periods)
	return periods
}

func (cc *CompositeCube) Variables() []string {
	variables := make([]string, len(cc.variables))
	copy(variables, cc.variables)
	return variables
}

func (cc *CompositeCube) Template() *raster.Grid {
	for _, name := range cc.names {
		return cc.bands[name]
	}
	return nil
}

func (g Granularity) key(t time.Time) string {
	if g == Yearly {
		return t.UTC().Format("2006")
	}
	return t.UTC().Format("2006-01")
}

func (g Granularity) next(t time.Time) time.Time {
	if g == Yearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

func (g Granularity) truncate(t time.Time) time.Time {
	t = t.UTC()
	if g == Yearly {
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodKeys enumerates every period key between start and end
// inclusive, in chronological order.
func (g Granularity) PeriodKeys(start, end time.Time) []string {
	var keys []string
	for t := g.truncate(start); !t.After(end.UTC()); t = g.next(t) {
		keys = append(keys, g.key(t))
	}
	return keys
}

// Compose groups the cube's dated bands by variable and UTC-calendar
// period, reducing each group pixel-wise with the configured reducer.
// Every period in [start, end] appears exactly once; empty groups
// come out as nodata bands and are reported as gaps. Output is
// deterministic: iteration follows sorted variables and chronological
// periods, never map order.
func Compose(c *cube.Cube, g Granularity, reducers ReducerConfig, start, end time.Time) (*CompositeCube, []Gap, error) {
	template := c.Template()
	if template == nil {
		return nil, nil, fmt.Errorf("cannot compose an empty cube")
	}

	// (variable, period) -> contributing grids, in band-sorted order.
	contributions := make(map[string][]*raster.Grid)
	variableSet := make(map[string]bool)
	for _, group := range c.Groups() {
		date, err := time.Parse("2006-01-02", group.DateKey)
		if err != nil {
			return nil, nil, fmt.Errorf("band date %s is not ISO formatted: %w", group.DateKey, err)
		}
		periodKey := g.key(date)
		variables := make([]string, 0, len(group.Vars))
		for variable := range group.Vars {
			variables = append(variables, variable)
		}
		sort.Strings(variables)
		for _, variable := range variables {
			variableSet[variable] = true
			key := variable + "_" + periodKey
			contributions[key] = append(contributions[key], group.Vars[variable])
		}
	}

	variables := make([]string, 0, len(variableSet))
	for variable := range variableSet {
		variables = append(variables, variable)
	}
	sort.Strings(variables)
	periods := g.PeriodKeys(start, end)

	cc := &CompositeCube{bands: make(map[string]*raster.Grid), periods: periods, variables: variables}
	var gaps []Gap
	for _, periodKey := range periods {
		for _, variable := range variables {
			name := variable + "_" + periodKey
			inputs := contributions[name]
			if len(inputs) == 0 {
				gaps = append(gaps, Gap{Variable: variable, PeriodKey: periodKey})
				cc.bands[name] = raster.NewGrid(template.Width, template.Height, template.Transform)
			} else {
				cc.bands[name] = reduce(reducers.For(variable), inputs)
			}
			cc.names = append(cc.names, name)
		}
	}
	return cc, gaps, nil
}

// reduce collapses the contributing grids pixel-wise, ignoring nodata
// inputs. A pixel with no valid observation stays nodata.
func reduce(kind ReducerKind, inputs []*raster.Grid) *raster.Grid {
	template := inputs[0]
	out := raster.NewGrid(template.Width, template.Height, template.Transform)

	values := make([]float64, 0, len(inputs))
	for i := range out.Data {
		values = values[:0]
		for _, grid := range inputs {
			if v := grid.Data[i]; !raster.IsNoData(v) {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		out.Data[i] = reduceValues(kind, values)
	}
	return out
}

func reduceValues(kind ReducerKind, values []float64) float64 {
	switch kind {
	case Mean:
		return stat.Mean(values, nil)
	case Max:
		return floats.Max(values)
	default:
		sort.Float64s(values)
		return stat.Quantile(0.5, stat.Empirical, values, nil)
	}
}

// SpatialMean averages a band's valid pixels, NaN when the band is
// all nodata (a gap band).
func SpatialMean(grid *raster.Grid) float64 {
	var sum float64
	var n int
	for _, v := range grid.Data {
		if !raster.IsNoData(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
