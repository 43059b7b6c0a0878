package sof

import (
	"math"
	"testing"
	"time"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regionGeoJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[150.0,-27.0],[150.1,-27.0],[150.1,-26.9],[150.0,-26.9],[150.0,-27.0]]]}}]}`

func testRegion(t *testing.T) *roi.Region {
	t.Helper()
	region, err := roi.FromGeoJSON("test", []byte(regionGeoJSON))
	require.NoError(t, err)
	return region
}

func TestLayersDefaultsToDensityExpectedValue(t *testing.T) {
	layers, skipped, err := Layers(nil, nil, "")
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, layers, 9, "3 fractions x 3 depths of the density family")
	for _, l := range layers {
		assert.Equal(t, FamilyDensity, l.Family)
		assert.Equal(t, "EV", l.Stat)
	}
}

func TestLayersSkipsUnpublishedProportions(t *testing.T) {
	layers, skipped, err := Layers([]string{FamilyProportions}, []string{"MAOC"}, "EV")
	require.NoError(t, err)

	require.Len(t, layers, 1, "only the top slice has an EV proportion layer")
	assert.Equal(t, "MAOC_000_005_EV_PROP", layers[0].BandName())
	assert.Equal(t, []string{
		"MAOC_005_015_EV_PROP is not published",
		"MAOC_015_030_EV_PROP is not published",
	}, skipped)

	layers, skipped, err = Layers([]string{FamilyProportions}, []string{"MAOC"}, "95")
	require.NoError(t, err)
	assert.Empty(t, skipped, "percentile bounds exist for every depth")
	require.Len(t, layers, 3)
}

func TestLayersStocksForceAggregateDepthAndEV(t *testing.T) {
	layers, skipped, err := Layers([]string{FamilyStocks}, nil, "95")
	require.NoError(t, err)
	assert.Empty(t, skipped)
	require.Len(t, layers, 3)
	for _, l := range layers {
		assert.Equal(t, "000_030", l.Depth)
		assert.Equal(t, "EV", l.Stat)
	}
	assert.Equal(t, "MAOC_000_030_EV_STOCK", layers[0].BandName())
}

func TestLayersRejectsUnknownInputs(t *testing.T) {
	_, _, err := Layers([]string{"Textures"}, nil, "")
	assert.ErrorContains(t, err, `unknown SOF family "Textures"`)

	_, _, err = Layers(nil, []string{"HUMUS"}, "")
	assert.ErrorContains(t, err, `unknown SOF fraction "HUMUS"`)

	_, _, err = Layers(nil, nil, "50")
	assert.ErrorContains(t, err, `unknown SOF stat "50"`)
}

func TestLayerURLFollowsPublishedNaming(t *testing.T) {
	t.Setenv("SOF_BASE_URL", "https://sof.example/v1")

	density := Layer{Family: FamilyDensity, Fraction: "MAOC", Depth: "000_005", Stat: "EV"}
	assert.Equal(t,
		"https://sof.example/v1/SOF_Fractions_Density/SOF_000_005_EV_N_P_AU_TRN_N_20221006_Fraction_Density_MAOC.tif",
		density.URL())

	proportion := Layer{Family: FamilyProportions, Fraction: "PyOC", Depth: "005_015", Stat: "05"}
	assert.Equal(t,
		"https://sof.example/v1/SOF_Proportions/SOF_005_015_05_N_P_AU_TRN_N_20221006_Proportion_PyOC.tif",
		proportion.URL())

	stock := Layer{Family: FamilyStocks, Fraction: "POC", Depth: "000_030", Stat: "EV"}
	assert.Equal(t,
		"https://sof.example/v1/SOF_Stocks/SOF_000_030_EV_N_P_AU_TRN_N_20221006_Fractions_Stock_POC.tif",
		stock.URL())
}

func TestBuildSceneSortsBandsAndKeepsFailedLayersAsNoData(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	layers := []Layer{
		{Family: FamilyDensity, Fraction: "POC", Depth: "000_005", Stat: "EV"},
		{Family: FamilyDensity, Fraction: "MAOC", Depth: "000_005", Stat: "EV"},
	}
	values := map[string]float64{"MAOC_000_005_EV_DENS": 12.5}

	scene := buildScene(testRegion(t), start, layers, values)

	assert.Equal(t, "sof-2021-01-01", scene.ID)
	assert.Equal(t, start, scene.Date)
	assert.Equal(t, []string{"MAOC_000_005_EV_DENS", "POC_000_005_EV_DENS"}, scene.BandOrder)

	maoc := scene.Bands["MAOC_000_005_EV_DENS"]
	require.NotNil(t, maoc)
	assert.Equal(t, 1, maoc.Width)
	assert.Equal(t, 1, maoc.Height)
	assert.InDelta(t, 12.5, maoc.Sample(150.05, -26.95), 1e-9, "value covers the whole region envelope")

	poc := scene.Bands["POC_000_005_EV_DENS"]
	require.NotNil(t, poc)
	assert.True(t, math.IsNaN(poc.At(0, 0)), "unsampled layer stays nodata")
}
