package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/archive"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/config"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/raster"
	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regionGeoJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[150.0,-27.0],[150.1,-27.0],[150.1,-26.9],[150.0,-26.9],[150.0,-27.0]]]}}]}`

// Grids cover the test region so sample extraction lands on pixels.
var regionTransform = [6]float64{150.0, 0.025, 0, -26.9, 0, -0.025}

type fakeBackend struct {
	refs      []archive.SceneRef
	searchErr error
}

func (f *fakeBackend) Search(ctx context.Context, filter archive.AcquisitionFilter) ([]archive.SceneRef, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.refs, nil
}

func (f *fakeBackend) Fetch(ctx context.Context, ref archive.SceneRef, filter archive.AcquisitionFilter) (*archive.Scene, error) {
	bands := map[string]*raster.Grid{}
	for _, name := range []string{"NIR", "RED", "CLD"} {
		g := raster.NewGrid(4, 4, regionTransform)
		for i := range g.Data {
			g.Data[i] = 0.2
		}
		bands[name] = g
	}
	for i := range bands["NIR"].Data {
		bands["NIR"].Data[i] = 0.8
	}
	return &archive.Scene{
		ID:        ref.ID,
		Date:      ref.Date,
		BandOrder: []string{"NIR", "RED", "CLD"},
		Bands:     bands,
	}, nil
}

func (f *fakeBackend) ResolveAsset(ctx context.Context, ref string) (*roi.Region, error) {
	return roi.FromGeoJSON(ref, []byte(regionGeoJSON))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "data", "geojsons")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fazenda.geojson"), []byte(regionGeoJSON), 0o644))
	t.Setenv("ROOT_PATH", root)

	cfg := config.Default("fazenda", 2021)
	cfg.RegionPath = "fazenda"
	cfg.ExportRoot = t.TempDir()
	cfg.DateStart = "2021-01-01"
	cfg.DateEnd = "2021-02-28"
	cfg.SampleCount = 10
	return cfg
}

func TestRunProducesArtifactsAndReport(t *testing.T) {
	cfg := testConfig(t)
	backend := &fakeBackend{refs: []archive.SceneRef{
		{ID: "a", Date: time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)},
		{ID: "b", Date: time.Date(2021, 1, 20, 0, 0, 0, 0, time.UTC)},
	}}

	rep := Run(context.Background(), cfg, backend)
	assert.False(t, rep.HasFailures(), "failures: %+v", rep.Failures)

	kinds := map[string]int{}
	for _, a := range rep.Artifacts {
		kinds[a.Kind]++
		_, err := os.Stat(a.Path)
		assert.NoError(t, err, a.Path)
	}
	assert.Equal(t, 2, kinds["csv"], "cube_stats and samples")
	assert.Equal(t, 2, kinds["parquet"])
	assert.Equal(t, 1, kinds["png"])

	// February has no scenes, so every variable reports a gap there.
	require.NotEmpty(t, rep.Gaps)
	for _, g := range rep.Gaps {
		assert.Equal(t, "2021-02", g.Meta["period"])
	}

	_, err := os.Stat(filepath.Join(cfg.ExportDir(), "run_report.json"))
	assert.NoError(t, err)
}

func TestRunRecordsGapWhenFilterIsEmpty(t *testing.T) {
	cfg := testConfig(t)
	rep := Run(context.Background(), cfg, &fakeBackend{})

	assert.False(t, rep.HasFailures())
	require.NotEmpty(t, rep.Gaps)
	assert.Equal(t, "imagery filter returned no scenes", rep.Gaps[0].Name)
	assert.Empty(t, rep.Artifacts, "no composite artifacts without scenes")
}

func TestRunAttributesSearchFailure(t *testing.T) {
	cfg := testConfig(t)
	rep := Run(context.Background(), cfg, &fakeBackend{searchErr: errors.New("backend down")})

	require.True(t, rep.HasFailures())
	assert.Equal(t, "filter", rep.Failures[0].Step)

	_, err := os.Stat(filepath.Join(cfg.ExportDir(), "run_report.json"))
	assert.NoError(t, err, "the report is written even when the run fails")
}

func TestRunRejectsUnknownIndex(t *testing.T) {
	cfg := testConfig(t)
	cfg.Indices = []string{"NDVI", "BOGUS"}
	backend := &fakeBackend{refs: []archive.SceneRef{
		{ID: "a", Date: time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)},
	}}

	rep := Run(context.Background(), cfg, backend)
	require.True(t, rep.HasFailures())
	assert.Equal(t, "indices", rep.Failures[0].Step)
	assert.Contains(t, rep.Failures[0].Error, "BOGUS")
}

func TestRunResolvesRegionAsset(t *testing.T) {
	cfg := testConfig(t)
	cfg.RegionPath = ""
	cfg.RegionAsset = "asset-123"

	rep := Run(context.Background(), cfg, &fakeBackend{})
	assert.False(t, rep.HasFailures())
}
