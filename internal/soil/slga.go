// Package soil queries SLGA soil-attribute rasters and reshapes the
// result as Scene-shaped data for the cube builder.
package soil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/cache"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/properties"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
)

// Attributes names the SLGA soil attributes available for querying.
var Attributes = map[string]string{
	"SOC": "Soil Organic Carbon",
	"CLY": "Clay",
	"SLT": "Silt",
	"SND": "Sand",
	"PHC": "pH (CaCl2)",
	"AWC": "Available Water Capacity",
	"NTO": "Total Nitrogen",
	"PTO": "Total Phosphorus",
	"DES": "Soil Depth",
}

// Depths are the standard SLGA depth slices, shallow first.
var Depths = []string{"000_005", "005_015", "015_030"}

type pointValue struct {
	Value float64 `json:"value"`
}

// Fetch queries every requested attribute at every depth slice at the
// region centroid, fanned out on a worker pool, and returns one
// static Scene dated at the range start. Soil does not vary over the
// run's date range, so a single dated scene is enough for the cube.
func Fetch(ctx context.Context, region *roi.Region, start time.Time, attributes []string) ([]archive.Scene, error) {
	for _, attr := range attributes {
		if _, ok := Attributes[attr]; !ok {
			return nil, fmt.Errorf("unknown SLGA attribute %q", attr)
		}
	}
	centroid, err := region.Centroid()
	if err != nil {
		return nil, fmt.Errorf("region centroid: %w", err)
	}

	fileCache := cache.NewFileCache[map[string]float64]("slga")
	key := cache.Key(centroid[0], centroid[1], attributes)
	values, ok := fileCache.Get(key)
	if !ok {
		values, err = fetchValues(ctx, centroid[0], centroid[1], attributes)
		if err != nil {
			return nil, err
		}
		if err := fileCache.Set(key, values); err != nil {
			fmt.Printf("Failed to cache SLGA response: %v\n", err)
		}
	}

	bands := make(map[string]*raster.Grid, len(values))
	var bandOrder []string
	for name := range values {
		bandOrder = append(bandOrder, name)
	}
	sort.Strings(bandOrder)
	for _, name := range bandOrder {
		bands[name] = constantGrid(region, values[name])
	}

	return []archive.Scene{{
		ID:        "slga-" + start.Format("2006-01-02"),
		Date:      start,
		BandOrder: bandOrder,
		Bands:     bands,
	}}, nil
}

func fetchValues(ctx context.Context, lon, lat float64, attributes []string) (map[string]float64, error) {
	var (
		mu     sync.Mutex
		values = make(map[string]float64)
	)
	errChan := make(chan error, 1)
	var firstErr sync.Once

	wp := workerpool.New(4)
	for _, attr := range attributes {
		for _, depth := range Depths {
			attr, depth := attr, depth
			wp.Submit(func() {
				value, err := queryPoint(ctx, attr, depth, lon, lat)
				if err != nil {
					firstErr.Do(func() { errChan <- err })
					return
				}
				mu.Lock()
				values[attr+depth] = value
				mu.Unlock()
			})
		}
	}

	go func() {
		wp.StopWait()
		close(errChan)
	}()

	if err := <-errChan; err != nil {
		return nil, fmt.Errorf("error during SLGA fetch: %w", err)
	}
	return values, nil
}

func queryPoint(ctx context.Context, attribute, depth string, lon, lat float64) (float64, error) {
	baseURL := properties.SlgaBaseURL()
	if baseURL == "" {
		return 0, fmt.Errorf("missing required environment variable: SLGA_BASE_URL")
	}
	requestURL := fmt.Sprintf("%s/%s_%s/identify?lon=%f&lat=%f&stat=EV&f=json", baseURL, attribute, depth, lon, lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("SLGA request for %s_%s failed: %w", attribute, depth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("SLGA returned %d for %s_%s", resp.StatusCode, attribute, depth)
	}

	var pv pointValue
	if err := json.Unmarshal(body, &pv); err != nil {
		return 0, fmt.Errorf("failed to parse SLGA response for %s_%s: %w", attribute, depth, err)
	}
	return pv.Value, nil
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
