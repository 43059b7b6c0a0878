package roi

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Region is a single dissolved multipolygon in EPSG:4326. It is
// immutable once loaded and shared by reference across the pipeline.
type Region struct {
	Name string
	geom orb.MultiPolygon
}

func (r *Region) Geometry() orb.MultiPolygon {
	return r.geom
}

func (r *Region) Bound() orb.Bound {
	return r.geom.Bound()
}

func (r *Region) Contains(p orb.Point) bool {
	return planar.MultiPolygonContains(r.geom, p)
}

func (r *Region) Area() float64 {
	return planar.Area(r.geom)
}

func (r *Region) Centroid() (orb.Point, error) {
	centroid, area := planar.CentroidArea(r.geom)
	if area <= 0 {
		return orb.Point{}, errors.New("region has no area, cannot compute centroid")
	}
	return centroid, nil
}

// GeoJSONGeometry renders the dissolved geometry back to GeoJSON for
// backend requests.
func (r *Region) GeoJSONGeometry() ([]byte, error) {
	return geojson.NewGeometry(r.geom).MarshalJSON()
}

// FromGeoJSON dissolves every polygonal feature in a GeoJSON feature
// collection into one multipolygon.
func FromGeoJSON(name string, data []byte) (*Region, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoJSON: %w", err)
	}

	var dissolved orb.MultiPolygon
	for _, feature := range fc.Features {
		switch geom := feature.Geometry.(type) {
		case orb.Polygon:
			dissolved = append(dissolved, geom)
		case orb.MultiPolygon:
			dissolved = append(dissolved, geom...)
		}
	}
	if len(dissolved) == 0 {
		return nil, errors.New("no polygonal features found in GeoJSON")
	}
	return &Region{Name: name, geom: dissolved}, nil
}

// Load reads a region from a .geojson file under data/geojsons.
func Load(rootPath, name string) (*Region, error) {
	filePath := fmt.Sprintf("%s/data/geojsons/%s.geojson", rootPath, name)
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read region file: %w", err)
	}
	return FromGeoJSON(name, data)
}
