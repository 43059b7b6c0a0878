// Package climate pulls daily climate series from the SILO data-drill
// API and reshapes them as Scene-shaped data so the cube builder can
// consume them like any other collection.
package climate

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/cache"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/properties"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
)

const (
	retryMax  = 3
	retryWait = 1500 * time.Millisecond
)

// Variable maps a SILO comment code onto the response column it is
// delivered in and the band name the connector emits for it.
type Variable struct {
	Code   string
	Column string
	Band   string
}

// surfaced lists the variables this connector can parse out of the
// data-drill response. SILO publishes more codes, but a code without a
// column mapping would come back as fabricated zero values instead of
// observations, so requests are restricted to this set.
var surfaced = []Variable{
	{Code: "R", Column: "daily_rain", Band: "RAIN"},
	{Code: "J", Column: "radiation", Band: "RADN"},
	{Code: "X", Column: "max_temp", Band: "TMAX"},
	{Code: "N", Column: "min_temp", Band: "TMIN"},
}

// DailyRow is one day of the SILO data-drill CSV response.
type DailyRow struct {
	Date      string  `csv:"date"`
	Rain      float64 `csv:"daily_rain"`
	MaxTemp   float64 `csv:"max_temp"`
	MinTemp   float64 `csv:"min_temp"`
	Radiation float64 `csv:"radiation"`
}

func (r DailyRow) value(column string) float64 {
	switch column {
	case "daily_rain":
		return r.Rain
	case "radiation":
		return r.Radiation
	case "max_temp":
		return r.MaxTemp
	case "min_temp":
		return r.MinTemp
	}
	return math.NaN()
}

// snap05 aligns a coordinate to SILO's 0.05 degree grid.
func snap05(x float64) float64 {
	return math.Round(x/0.05) * 0.05
}

// ValidateVariables upper-cases the requested codes and resolves them
// against the surfaced set, in request order, dropping blanks and
// duplicates. An empty request means every surfaced variable.
func ValidateVariables(codes []string) ([]Variable, error) {
	if len(codes) == 0 {
		return append([]Variable(nil), surfaced...), nil
	}
	var resolved []Variable
	seen := make(map[string]bool)
	for _, code := range codes {
		c := strings.ToUpper(strings.TrimSpace(code))
		if c == "" || seen[c] {
			continue
		}
		found := false
		for _, v := range surfaced {
			if v.Code == c {
				resolved = append(resolved, v)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unsupported SILO variable code %q, supported: %s", code, supportedCodes())
		}
		seen[c] = true
	}
	return resolved, nil
}

func supportedCodes() string {
	codes := make([]string, len(surfaced))
	for i, v := range surfaced {
		codes[i] = v.Code
	}
	return strings.Join(codes, ", ")
}

func requestComment(vars []Variable) string {
	var b strings.Builder
	for _, v := range vars {
		b.WriteString(v.Code)
	}
	return b.String()
}

// FetchDaily downloads the daily series at the region centroid,
// snapped to the SILO grid. Responses are cached on disk.
func FetchDaily(ctx context.Context, region *roi.Region, start, end time.Time, variables []string) ([]DailyRow, error) {
	username := properties.SiloUsername()
	if username == "" {
		return nil, fmt.Errorf("missing required environment variable: SILO_USERNAME")
	}
	vars, err := ValidateVariables(variables)
	if err != nil {
		return nil, err
	}
	comment := requestComment(vars)

	centroid, err := region.Centroid()
	if err != nil {
		return nil, fmt.Errorf("region centroid: %w", err)
	}
	lon := snap05(centroid[0])
	lat := snap05(centroid[1])

	fileCache := cache.NewFileCache[[]DailyRow]("silo")
	key := cache.Key(lon, lat, start.Format("2006-01-02"), end.Format("2006-01-02"), comment)
	rows, ok := fileCache.Get(key)
	if !ok {
		rows, err = fetchRows(ctx, lon, lat, start, end, comment, username)
		if err != nil {
			return nil, err
		}
		if err := fileCache.Set(key, rows); err != nil {
			fmt.Printf("Failed to cache SILO response: %v\n", err)
		}
	}
	return rows, nil
}

// Fetch returns the daily series as one Scene per day with constant
// bands covering the region envelope, ready for the cube builder.
// Only the requested variables become bands.
func Fetch(ctx context.Context, region *roi.Region, start, end time.Time, variables []string) ([]archive.Scene, error) {
	vars, err := ValidateVariables(variables)
	if err != nil {
		return nil, err
	}
	rows, err := FetchDaily(ctx, region, start, end, variables)
	if err != nil {
		return nil, err
	}
	return rowsToScenes(region, rows, vars)
}

func fetchRows(ctx context.Context, lon, lat float64, start, end time.Time, comment, username string) ([]DailyRow, error) {
	params := url.Values{}
	params.Set("lon", fmt.Sprintf("%.2f", lon))
	params.Set("lat", fmt.Sprintf("%.2f", lat))
	params.Set("start", start.Format("20060102"))
	params.Set("finish", end.Format("20060102"))
	params.Set("format", "csv")
	params.Set("comment", comment)
	params.Set("username", username)
	params.Set("password", "apirequest")
	requestURL := properties.SiloBaseURL() + "/DataDrillDataset.php?" + params.Encode()

	var lastErr error
	wait := retryWait
	for attempt := 0; attempt <= retryMax; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = readErr
			} else if resp.StatusCode == http.StatusOK {
				var rows []DailyRow
				if err := gocsv.UnmarshalString(string(body), &rows); err != nil {
					return nil, fmt.Errorf("failed to parse SILO CSV: %w", err)
				}
				return rows, nil
			} else {
				lastErr = fmt.Errorf("SILO returned %d", resp.StatusCode)
			}
		}
		if attempt < retryMax {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}
	}
	return nil, fmt.Errorf("SILO request failed after %d attempts: %w", retryMax+1, lastErr)
}

func rowsToScenes(region *roi.Region, rows []DailyRow, vars []Variable) ([]archive.Scene, error) {
	bandOrder := make([]string, len(vars))
	for i, v := range vars {
		bandOrder[i] = v.Band
	}
	sort.Strings(bandOrder)

	scenes := make([]archive.Scene, 0, len(rows))
	for _, row := range rows {
		date, err := time.Parse("2006-01-02", row.Date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse SILO date %q: %w", row.Date, err)
		}
		bands := make(map[string]*raster.Grid, len(vars))
		for _, v := range vars {
			bands[v.Band] = constantGrid(region, row.value(v.Column))
		}
		scenes = append(scenes, archive.Scene{
			ID:        "silo-" + row.Date,
			Date:      date,
			BandOrder: bandOrder,
			Bands:     bands,
		})
	}
	return scenes, nil
}

// constantGrid is a one-pixel grid spanning the region envelope; the
// cube builder treats it like any other band.
func constantGrid(region *roi.Region, value float64) *raster.Grid {
	bound := region.Bound()
	g := raster.NewGrid(1, 1, [6]float64{
		bound.Min[0], bound.Max[0] - bound.Min[0], 0,
		bound.Max[1], 0, bound.Min[1] - bound.Max[1],
	})
	g.Set(0, 0, value)
	return g
}
