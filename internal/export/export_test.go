package export

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/cube"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/sampling"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/timeseries"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transform = [6]float64{150.0, 0.05, 0, -26.9, 0, -0.05}

func testComposite(t *testing.T) *timeseries.CompositeCube {
	t.Helper()
	g := raster.NewGrid(2, 1, transform)
	g.Set(0, 0, 0.2)
	g.Set(1, 0, 0.6)
	scene := archive.Scene{
		ID:        "s1",
		Date:      time.Date(2021, 1, 15, 0, 0, 0, 0, time.UTC),
		BandOrder: []string{"NDVI"},
		Bands:     map[string]*raster.Grid{"NDVI": g},
	}
	c, err := cube.Build([]archive.Scene{scene})
	require.NoError(t, err)
	cc, _, err := timeseries.Compose(c, timeseries.Monthly, timeseries.ReducerConfig{},
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return cc
}

func TestSummaryTableKeepsGapRows(t *testing.T) {
	table := SummaryTable(testComposite(t))

	require.Equal(t, []Column{{Name: "period", Kind: KindString}, {Name: "NDVI", Kind: KindFloat}}, table.Columns)
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "2021-01", table.Rows[0][0])
	assert.InDelta(t, 0.4, table.Rows[0][1].(float64), 1e-9)
	assert.Equal(t, "2021-02", table.Rows[1][0])
	assert.True(t, math.IsNaN(table.Rows[1][1].(float64)), "gap period row stays, with a nodata cell")
}

func TestSampleTableColumnsFollowCompositeSchema(t *testing.T) {
	cc := testComposite(t)
	rows := []sampling.Row{
		{Point: sampling.Point{ID: 1, Lon: 150.025, Lat: -26.925}, Values: map[string]float64{
			"NDVI_2021-01": 0.2, "NDVI_2021-02": math.NaN(),
		}},
	}
	table := SampleTable(cc, rows)

	names := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		names[i] = col.Name
	}
	assert.Equal(t, []string{"id", "lon", "lat", "NDVI_2021-01", "NDVI_2021-02"}, names)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, int64(1), table.Rows[0][0])
}

func TestWriteCSVRoundTrip(t *testing.T) {
	table := &Table{
		Name:    "samples",
		Columns: []Column{{Name: "id", Kind: KindInt}, {Name: "ndvi", Kind: KindFloat}, {Name: "period", Kind: KindString}},
		Rows: [][]interface{}{
			{int64(1), 0.25, "2021-01"},
			{int64(2), math.NaN(), "2021-02"},
		},
	}
	dest := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, WriteCSV(table, dest))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "ndvi", "period"}, records[0])
	assert.Equal(t, []string{"1", "0.25", "2021-01"}, records[1])
	assert.Equal(t, []string{"2", "", "2021-02"}, records[2], "nodata serializes as an empty cell")

	_, err = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteParquetRoundTrip(t *testing.T) {
	table := &Table{
		Name:    "cube_stats",
		Columns: []Column{{Name: "period", Kind: KindString}, {Name: "NDVI", Kind: KindFloat}},
		Rows: [][]interface{}{
			{"2021-01", 0.4},
			{"2021-02", math.NaN()},
		},
	}
	dest := filepath.Join(t.TempDir(), "cube_stats.parquet")
	require.NoError(t, WriteParquet(table, dest))

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer f.Close()
	info, err := f.Stat()
	require.NoError(t, err)

	pf, err := parquet.OpenFile(f, info.Size())
	require.NoError(t, err)
	var rows int64
	for _, rg := range pf.RowGroups() {
		rows += rg.NumRows()
	}
	assert.Equal(t, int64(2), rows)
}

func TestWriteAtomicFailureLeavesNoArtifact(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.csv")

	err := WriteAtomic(dest, func(f *os.File) error {
		f.WriteString("partial")
		return errors.New("disk full")
	})
	require.ErrorContains(t, err, "disk full")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no destination file after a failed write")
	_, statErr = os.Stat(dest + ".tmp")
	assert.True(t, os.IsNotExist(statErr), "temp file is cleaned up")
}

func TestWriteAtomicKeepsPreviousArtifactOnFailure(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(dest, []byte("previous run"), 0o644))

	err := WriteAtomic(dest, func(f *os.File) error {
		return errors.New("boom")
	})
	require.Error(t, err)

	data, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	assert.Equal(t, "previous run", string(data))
}
