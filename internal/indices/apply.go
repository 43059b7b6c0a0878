package indices

import (
	"math"
	"strings"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/cube"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
)

// Skip records an index that could not be computed for one
// acquisition because a required band is missing. Informational, not
// an error.
type Skip struct {
	Index   string
	DateKey string
	Dup     int
	Missing []string
}

// Apply evaluates every definition for every (date, overpass) group
// whose required bands are all present, appending the derived band as
// <NAME>_<date>. A group missing any required band is skipped whole;
// no partial band is ever emitted. Nodata inputs and non-finite
// results come out as nodata.
func Apply(c *cube.Cube, defs []Definition) ([]Skip, error) {
	var skipped []Skip
	for _, group := range c.Groups() {
		for _, def := range defs {
			var missing []string
			for _, role := range def.Requires {
				if _, ok := group.Vars[role]; !ok {
					missing = append(missing, role)
				}
			}
			if len(missing) > 0 {
				skipped = append(skipped, Skip{Index: def.Name, DateKey: group.DateKey, Dup: group.Dup, Missing: missing})
				continue
			}

			derived := evalGrid(def, group.Vars)
			if err := c.AddBand(cube.JoinBandName(def.Name, group.DateKey, group.Dup), derived); err != nil {
				return nil, err
			}
		}
	}
	return skipped, nil
}

func evalGrid(def Definition, vars map[string]*raster.Grid) *raster.Grid {
	template := vars[def.Requires[0]]
	out := raster.NewGrid(template.Width, template.Height, template.Transform)

	px := make(map[string]float64, len(def.Requires))
	for i := range out.Data {
		valid := true
		for _, role := range def.Requires {
			v := vars[role].Data[i]
			if raster.IsNoData(v) {
				valid = false
				break
			}
			px[role] = v
		}
		if !valid {
			continue
		}
		if v := def.Eval(px); !math.IsInf(v, 0) {
			out.Data[i] = v
		}
	}
	return out
}

func (s Skip) String() string {
	name := cube.JoinBandName(s.Index, s.DateKey, s.Dup)
	return name + " (missing " + strings.Join(s.Missing, ", ") + ")"
}
