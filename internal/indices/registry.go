// Package indices holds named spectral-index formulas over band
// roles and applies them per acquisition date.
package indices

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Definition is a pure band formula. Requires declares exactly the
// roles the formula reads; Eval is only called with all of them
// present and free of nodata.
type Definition struct {
	Name     string
	Requires []string
	Eval     func(px map[string]float64) float64
}

// Registry maps index names to definitions. New indices can be
// registered at runtime without touching the applier.
type Registry struct {
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

func (r *Registry) Register(def Definition) error {
	name := strings.ToUpper(strings.TrimSpace(def.Name))
	if name == "" {
		return fmt.Errorf("index definition needs a name")
	}
	if len(def.Requires) == 0 || def.Eval == nil {
		return fmt.Errorf("index %s must declare required bands and a formula", name)
	}
	if _, exists := r.defs[name]; exists {
		return fmt.Errorf("index %s already registered", name)
	}
	def.Name = name
	r.defs[name] = def
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) {
	def, ok := r.defs[strings.ToUpper(strings.TrimSpace(name))]
	return def, ok
}

// Resolve maps requested names onto registered definitions, in
// request order. Unknown names are returned separately; the caller
// decides whether that is fatal.
func (r *Registry) Resolve(names []string) ([]Definition, []string) {
	var defs []Definition
	var unknown []string
	for _, name := range names {
		if def, ok := r.Get(name); ok {
			defs = append(defs, def)
		} else if trimmed := strings.TrimSpace(name); trimmed != "" {
			unknown = append(unknown, trimmed)
		}
	}
	return defs, unknown
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}

func normalizedDifference(a, b float64) float64 {
	return ratio(a-b, a+b)
}

// Defaults returns a registry preloaded with the standard vegetation,
// water and soil indices.
func Defaults() *Registry {
	r := NewRegistry()
	builtins := []Definition{
		{Name: "NDVI", Requires: []string{"NIR", "RED"}, Eval: func(px map[string]float64) float64 {
			return normalizedDifference(px["NIR"], px["RED"])
		}},
		{Name: "EVI", Requires: []string{"NIR", "RED", "BLUE"}, Eval: func(px map[string]float64) float64 {
			return ratio(2.5*(px["NIR"]-px["RED"]), px["NIR"]+6*px["RED"]-7.5*px["BLUE"]+1)
		}},
		{Name: "EVI2", Requires: []string{"NIR", "RED"}, Eval: func(px map[string]float64) float64 {
			return ratio(2.5*(px["NIR"]-px["RED"]), px["NIR"]+2.4*px["RED"]+1)
		}},
		// McFeeters
		{Name: "NDWI", Requires: []string{"GREEN", "NIR"}, Eval: func(px map[string]float64) float64 {
			return normalizedDifference(px["GREEN"], px["NIR"])
		}},
		{Name: "GNDVI", Requires: []string{"NIR", "GREEN"}, Eval: func(px map[string]float64) float64 {
			return normalizedDifference(px["NIR"], px["GREEN"])
		}},
		{Name: "GCI", Requires: []string{"NIR", "GREEN"}, Eval: func(px map[string]float64) float64 {
			return ratio(px["NIR"], px["GREEN"]) - 1
		}},
		{Name: "SAVI", Requires: []string{"NIR", "RED"}, Eval: func(px map[string]float64) float64 {
			const l = 0.5
			return ratio(px["NIR"]-px["RED"], px["NIR"]+px["RED"]+l) * (1 + l)
		}},
		{Name: "MSAVI2", Requires: []string{"NIR", "RED"}, Eval: func(px map[string]float64) float64 {
			k := 2*px["NIR"] + 1
			return (k - math.Sqrt(k*k-8*(px["NIR"]-px["RED"]))) / 2
		}},
		{Name: "WDRVI", Requires: []string{"NIR", "RED"}, Eval: func(px map[string]float64) float64 {
			const a = 0.1
			return normalizedDifference(a*px["NIR"], px["RED"])
		}},
		{Name: "NDRE", Requires: []string{"NIR", "RE4"}, Eval: func(px map[string]float64) float64 {
			return normalizedDifference(px["NIR"], px["RE4"])
		}},
		{Name: "CIRE", Requires: []string{"NIR", "RE4"}, Eval: func(px map[string]float64) float64 {
			return ratio(px["NIR"], px["RE4"]) - 1
		}},
		{Name: "NDMI", Requires: []string{"NIR", "SWIR1"}, Eval: func(px map[string]float64) float64 {
			return normalizedDifference(px["NIR"], px["SWIR1"])
		}},
		{Name: "NBR", Requires: []string{"NIR", "SWIR2"}, Eval: func(px map[string]float64) float64 {
			return normalizedDifference(px["NIR"], px["SWIR2"])
		}},
		{Name: "MNDWI", Requires: []string{"GREEN", "SWIR1"}, Eval: func(px map[string]float64) float64 {
			return normalizedDifference(px["GREEN"], px["SWIR1"])
		}},
	}
	for _, def := range builtins {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}
