// Package cube stacks masked scenes into one addressable multi-band
// raster with deterministic band naming.
package cube

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
)

// Cube is a single multi-band raster keyed by band name. Band names
// are unique, formed as <variable>_<ISO date> with a numeric suffix
// for duplicate overpasses, and always enumerated sorted by
// (date, variable, duplicate). All bands share one pixel grid.
type Cube struct {
	names []string
	bands map[string]*raster.Grid
}

var keyPattern = regexp.MustCompile(`^\d{4}(-\d{2}){0,2}$`)

// SplitBandName takes a cube or composite band name apart into its
// variable, date/period key and duplicate ordinal (1 when bare).
func SplitBandName(name string) (variable, key string, dup int) {
	dup = 1
	parts := strings.Split(name, "_")
	if len(parts) < 2 {
		return name, "", dup
	}
	last := len(parts) - 1
	if n, err := strconv.Atoi(parts[last]); err == nil && len(parts) >= 3 && keyPattern.MatchString(parts[last-1]) {
		dup = n
		last--
	}
	if keyPattern.MatchString(parts[last]) {
		key = parts[last]
		variable = strings.Join(parts[:last], "_")
		return variable, key, dup
	}
	return name, "", dup
}

// JoinBandName is the inverse of SplitBandName.
func JoinBandName(variable, key string, dup int) string {
	name := variable + "_" + key
	if dup > 1 {
		name = fmt.Sprintf("%s_%d", name, dup)
	}
	return name
}

func sortNames(names []string) {
	sort.Slice(names, func(i, j int) bool {
		vi, ki, di := SplitBandName(names[i])
		vj, kj, dj := SplitBandName(names[j])
		if ki != kj {
			return ki < kj
		}
		if vi != vj {
			return vi < vj
		}
		return di < dj
	})
}

// Build merges every band of every scene into one cube. Bands are
// renamed <band>_<ISO date>; a second scene on the same date gets _2,
// a third _3, in archive-return order. Mixed pixel grids are a fatal
// data-integrity error.
func Build(scenes []archive.Scene) (*Cube, error) {
	c := &Cube{bands: make(map[string]*raster.Grid)}

	dateSeen := make(map[string]int)
	var template *raster.Grid
	for _, scene := range scenes {
		dateKey := scene.Date.UTC().Format("2006-01-02")
		dateSeen[dateKey]++
		dup := dateSeen[dateKey]

		for _, band := range scene.BandOrder {
			grid := scene.Bands[band]
			if template == nil {
				template = grid
			} else if !template.SameShape(grid) {
				return nil, fmt.Errorf("scene %s band %s does not share the cube pixel grid", scene.ID, band)
			}
			name := JoinBandName(band, dateKey, dup)
			if _, exists := c.bands[name]; exists {
				return nil, fmt.Errorf("band name collision on %s", name)
			}
			c.bands[name] = grid
			c.names = append(c.names, name)
		}
	}

	sortNames(c.names)
	return c, nil
}

func (c *Cube) BandNames() []string {
	names := make([]string, len(c.names))
	copy(names, c.names)
	return names
}

func (c *Cube) Band(name string) (*raster.Grid, bool) {
	g, ok := c.bands[name]
	return g, ok
}

// Template returns one of the cube's grids, for shape and transform.
func (c *Cube) Template() *raster.Grid {
	if len(c.names) == 0 {
		return nil
	}
	return c.bands[c.names[0]]
}

// AddBand appends a derived band, keeping the name-sort invariant.
// A collision is fatal: derived bands must never overwrite data.
func (c *Cube) AddBand(name string, grid *raster.Grid) error {
	if _, exists := c.bands[name]; exists {
		return fmt.Errorf("band name collision on %s", name)
	}
	if template := c.Template(); template != nil && !template.SameShape(grid) {
		return fmt.Errorf("band %s does not share the cube pixel grid", name)
	}
	c.bands[name] = grid
	c.names = append(c.names, name)
	sortNames(c.names)
	return nil
}

// Group is one (date, duplicate) slice of the cube: every variable
// observed by that overpass.
type Group struct {
	DateKey string
	Dup     int
	Vars    map[string]*raster.Grid
}

// Groups enumerates (date, duplicate) groups in band-sorted order.
func (c *Cube) Groups() []Group {
	index := make(map[string]int)
	var groups []Group
	for _, name := range c.names {
		variable, key, dup := SplitBandName(name)
		if key == "" {
			continue
		}
		gk := fmt.Sprintf("%s_%d", key, dup)
		i, ok := index[gk]
		if !ok {
			i = len(groups)
			index[gk] = i
			groups = append(groups, Group{DateKey: key, Dup: dup, Vars: make(map[string]*raster.Grid)})
		}
		groups[i].Vars[variable] = c.bands[name]
	}
	return groups
}
