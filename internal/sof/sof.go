// Package sof samples the national Soil Organic Fractions rasters at
// the region centroid and reshapes the result as Scene-shaped data for
// the cube builder. Layers are cloud-optimized GeoTIFFs published per
// (family, depth, stat, fraction); not every combination exists, so
// unpublished ones are reported as skips, never errors.
package sof

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/gammazero/workerpool"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/cache"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/properties"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
)

// Families of published SOF layers.
const (
	FamilyDensity     = "Fractions_Density"
	FamilyProportions = "Proportions"
	FamilyStocks      = "Stocks"
)

var familyDirs = map[string]string{
	FamilyDensity:     "SOF_Fractions_Density",
	FamilyProportions: "SOF_Proportions",
	FamilyStocks:      "SOF_Stocks",
}

// Fractions are the published soil organic carbon fractions.
var Fractions = []string{"MAOC", "POC", "PyOC"}

// Depths are the standard depth slices, shallow first. Stocks layers
// exist only for the aggregate 000_030 slice.
var Depths = []string{"000_005", "005_015", "015_030"}

const stockDepth = "000_030"

// Stats are the published estimate statistics: expected value and the
// 5th/95th percentile bounds.
var Stats = []string{"EV", "05", "95"}

// Layer is one published (family, fraction, depth, stat) raster.
type Layer struct {
	Family   string
	Fraction string
	Depth    string
	Stat     string
}

// BandName is <fraction>_<depth>_<stat>_<kind>, e.g.
// MAOC_000_005_EV_DENS.
func (l Layer) BandName() string {
	return fmt.Sprintf("%s_%s_%s_%s", l.Fraction, l.Depth, l.Stat, l.kind())
}

func (l Layer) kind() string {
	switch l.Family {
	case FamilyStocks:
		return "STOCK"
	case FamilyDensity:
		return "DENS"
	default:
		return "PROP"
	}
}

// URL builds the published raster location for the layer.
func (l Layer) URL() string {
	base := properties.SofBaseURL()
	if l.Family == FamilyStocks {
		return fmt.Sprintf("%s/%s/SOF_000_030_EV_N_P_AU_TRN_N_20221006_Fractions_Stock_%s.tif",
			base, familyDirs[l.Family], l.Fraction)
	}
	suffix := "Proportion"
	if l.Family == FamilyDensity {
		suffix = "Fraction_Density"
	}
	return fmt.Sprintf("%s/%s/SOF_%s_%s_N_P_AU_TRN_N_20221006_%s_%s.tif",
		base, familyDirs[l.Family], l.Depth, l.Stat, suffix, l.Fraction)
}

// published reports whether TERN publishes the combination: density
// layers exist for every depth and stat, proportions below the top
// slice only as percentile bounds, stocks only aggregated at EV.
func published(family, depth, stat string) bool {
	switch family {
	case FamilyDensity:
		return contains(Depths, depth) && contains(Stats, stat)
	case FamilyProportions:
		if depth == "000_005" {
			return contains(Stats, stat)
		}
		if depth == "005_015" || depth == "015_030" {
			return stat == "05" || stat == "95"
		}
		return false
	case FamilyStocks:
		return depth == stockDepth && stat == "EV"
	}
	return false
}

// Layers expands the request into published layers. Empty inputs get
// the defaults: density family, all fractions, expected value.
// Unpublished combinations come back as skip notes.
func Layers(families, fractions []string, stat string) ([]Layer, []string, error) {
	if len(families) == 0 {
		families = []string{FamilyDensity}
	}
	if len(fractions) == 0 {
		fractions = Fractions
	}
	if stat == "" {
		stat = "EV"
	}
	for _, family := range families {
		if _, ok := familyDirs[family]; !ok {
			return nil, nil, fmt.Errorf("unknown SOF family %q", family)
		}
	}
	for _, fraction := range fractions {
		if !contains(Fractions, fraction) {
			return nil, nil, fmt.Errorf("unknown SOF fraction %q", fraction)
		}
	}
	if !contains(Stats, stat) {
		return nil, nil, fmt.Errorf("unknown SOF stat %q", stat)
	}

	var layers []Layer
	var skipped []string
	for _, family := range families {
		if family == FamilyStocks {
			for _, fraction := range fractions {
				layers = append(layers, Layer{Family: family, Fraction: fraction, Depth: stockDepth, Stat: "EV"})
			}
			continue
		}
		for _, depth := range Depths {
			for _, fraction := range fractions {
				l := Layer{Family: family, Fraction: fraction, Depth: depth, Stat: stat}
				if !published(family, depth, stat) {
					skipped = append(skipped, l.BandName()+" is not published")
					continue
				}
				layers = append(layers, l)
			}
		}
	}
	return layers, skipped, nil
}

// Fetch samples every requested layer at the region centroid, fanned
// out on a worker pool, and returns one static Scene dated at the
// range start. A layer that fails to sample becomes a nodata band and
// a skip note; only a fully successful sample set is cached.
func Fetch(ctx context.Context, region *roi.Region, start time.Time, families, fractions []string, stat string) ([]archive.Scene, []string, error) {
	layers, skipped, err := Layers(families, fractions, stat)
	if err != nil {
		return nil, nil, err
	}
	if len(layers) == 0 {
		return nil, skipped, nil
	}
	centroid, err := region.Centroid()
	if err != nil {
		return nil, nil, fmt.Errorf("region centroid: %w", err)
	}

	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.BandName()
	}
	sort.Strings(names)

	fileCache := cache.NewFileCache[map[string]float64]("sof")
	key := cache.Key(centroid[0], centroid[1], names)
	values, ok := fileCache.Get(key)
	if !ok {
		var failures []string
		values, failures = sampleLayers(ctx, layers, centroid[0], centroid[1])
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		skipped = append(skipped, failures...)
		if len(failures) == 0 {
			if err := fileCache.Set(key, values); err != nil {
				fmt.Printf("Failed to cache SOF response: %v\n", err)
			}
		}
	}

	return []archive.Scene{buildScene(region, start, layers, values)}, skipped, nil
}

func sampleLayers(ctx context.Context, layers []Layer, lon, lat float64) (map[string]float64, []string) {
	var (
		mu       sync.Mutex
		values   = make(map[string]float64)
		failures []string
	)

	wp := workerpool.New(4)
	for _, layer := range layers {
		layer := layer
		wp.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			value, err := sampleLayer(layer, lon, lat)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", layer.BandName(), err))
				return
			}
			if !math.IsNaN(value) {
				values[layer.BandName()] = value
			}
		})
	}
	wp.StopWait()

	sort.Strings(failures)
	return values, failures
}

// sampleLayer reads one pixel from the remote raster through GDAL's
// curl virtual filesystem. The national maps are in EPSG:4326, same
// as the region geometry.
func sampleLayer(l Layer, lon, lat float64) (float64, error) {
	godal.RegisterInternalDrivers()
	dataset, err := godal.Open("/vsicurl/" + l.URL())
	if err != nil {
		return 0, fmt.Errorf("failed to open SOF raster: %w", err)
	}
	defer dataset.Close()

	gt, err := dataset.GeoTransform()
	if err != nil {
		return 0, fmt.Errorf("failed to get geotransform: %w", err)
	}
	if gt[1] == 0 || gt[5] == 0 {
		return 0, fmt.Errorf("raster has a degenerate geotransform")
	}
	x := int(math.Floor((lon - gt[0]) / gt[1]))
	y := int(math.Floor((lat - gt[3]) / gt[5]))
	structure := dataset.Structure()
	if x < 0 || x >= structure.SizeX || y < 0 || y >= structure.SizeY {
		return 0, fmt.Errorf("centroid (%f, %f) falls outside the raster", lon, lat)
	}

	band := dataset.Bands()[0]
	buf := make([]float64, 1)
	if err := band.Read(x, y, buf, 1, 1); err != nil {
		return 0, fmt.Errorf("failed to read raster value: %w", err)
	}
	if nodata, ok := band.NoData(); ok && buf[0] == nodata {
		return math.NaN(), nil
	}
	return buf[0], nil
}

func buildScene(region *roi.Region, start time.Time, layers []Layer, values map[string]float64) archive.Scene {
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.BandName()
	}
	sort.Strings(names)

	bands := make(map[string]*raster.Grid, len(names))
	for _, name := range names {
		g := constantGrid(region, math.NaN())
		if v, ok := values[name]; ok {
			g.Set(0, 0, v)
		}
		bands[name] = g
	}
	return archive.Scene{
		ID:        "sof-" + start.Format("2006-01-02"),
		Date:      start,
		BandOrder: names,
		Bands:     bands,
	}
}

func constantGrid(region *roi.Region, value float64) *raster.Grid {
	bound := region.Bound()
	g := raster.NewGrid(1, 1, [6]float64{
		bound.Min[0], bound.Max[0] - bound.Min[0], 0,
		bound.Max[1], 0, bound.Min[1] - bound.Max[1],
	})
	g.Set(0, 0, value)
	return g
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
