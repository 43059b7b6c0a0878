// Package export serializes summary and sample tables with a schema
// derived from the composite band layout, never from row order.
package export

import (
	"math"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/sampling"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/timeseries"
)

type ColumnKind int

const (
	KindInt ColumnKind = iota
	KindFloat
	KindString
)

type Column struct {
	Name string
	Kind ColumnKind
}

// Table is a flat record set with a fixed column layout. Cell values
// are int64, float64 or string; NaN floats are nodata cells.
type Table struct {
	Name    string
	Columns []Column
	Rows    [][]interface{}
}

// SampleTable lays out point samples as id, lon, lat plus one float
// column per composite band, in composite schema order.
func SampleTable(cc *timeseries.CompositeCube, rows []sampling.Row) *Table {
	bands := cc.BandNames()
	columns := []Column{{Name: "id", Kind: KindInt}, {Name: "lon", Kind: KindFloat}, {Name: "lat", Kind: KindFloat}}
	for _, band := range bands {
		columns = append(columns, Column{Name: band, Kind: KindFloat})
	}

	t := &Table{Name: "samples", Columns: columns}
	for _, row := range rows {
		cells := make([]interface{}, 0, len(columns))
		cells = append(cells, int64(row.ID), row.Lon, row.Lat)
		for _, band := range bands {
			cells = append(cells, row.Values[band])
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// SummaryTable reduces every composite band to its spatial mean over
// the region, one row per period, one float column per variable.
// Gap periods keep their row with nodata cells.
func SummaryTable(cc *timeseries.CompositeCube) *Table {
	variables := cc.Variables()
	columns := []Column{{Name: "period", Kind: KindString}}
	for _, variable := range variables {
		columns = append(columns, Column{Name: variable, Kind: KindFloat})
	}

	t := &Table{Name: "cube_stats", Columns: columns}
	for _, period := range cc.Periods() {
		cells := make([]interface{}, 0, len(columns))
		cells = append(cells, period)
		for _, variable := range variables {
			value := math.NaN()
			if grid, ok := cc.Band(variable + "_" + period); ok {
				value = timeseries.SpatialMean(grid)
			}
			cells = append(cells, value)
		}
		t.Rows = append(t.Rows, cells)
	}
	return t
}
