package climate

import (
	"testing"

	"github.com/paddock-pulse/paddock-pulse-poc/internal/roi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const regionGeoJSON = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Polygon","coordinates":[[[150.0,-27.0],[150.1,-27.0],[150.1,-26.9],[150.0,-26.9],[150.0,-27.0]]]}}]}`

func TestValidateVariablesResolvesSurfacedCodes(t *testing.T) {
	vars, err := ValidateVariables([]string{"r", "X", " n "})
	require.NoError(t, err)
	assert.Equal(t, "RXN", requestComment(vars))
	assert.Equal(t, []string{"RAIN", "TMAX", "TMIN"}, bandsOf(vars))

	vars, err = ValidateVariables([]string{"", "R", "r"})
	require.NoError(t, err)
	assert.Equal(t, "R", requestComment(vars), "blanks and duplicates are dropped")
}

func TestValidateVariablesEmptyMeansAllSurfaced(t *testing.T) {
	vars, err := ValidateVariables(nil)
	require.NoError(t, err)
	assert.Equal(t, "RJXN", requestComment(vars))
}

func TestValidateVariablesRejectsUnsurfacedCodes(t *testing.T) {
	_, err := ValidateVariables([]string{"rain"})
	assert.ErrorContains(t, err, "unsupported SILO variable code")

	// E (evaporation) is a real SILO code, but the connector has no
	// column for it; accepting it would emit fabricated zero bands.
	_, err = ValidateVariables([]string{"E"})
	assert.ErrorContains(t, err, "unsupported SILO variable code")

	_, err = ValidateVariables([]string{"Z"})
	assert.ErrorContains(t, err, "unsupported SILO variable code")
}

func TestSnap05(t *testing.T) {
	assert.InDelta(t, 150.05, snap05(150.063), 1e-9)
	assert.InDelta(t, -26.95, snap05(-26.961), 1e-9)
	assert.InDelta(t, 150.0, snap05(150.017), 1e-9)
}

func TestRowsToScenes(t *testing.T) {
	region, err := roi.FromGeoJSON("test", []byte(regionGeoJSON))
	require.NoError(t, err)
	vars, err := ValidateVariables(nil)
	require.NoError(t, err)

	rows := []DailyRow{
		{Date: "2021-01-01", Rain: 4.2, MaxTemp: 33.1, MinTemp: 19.4, Radiation: 28.0},
		{Date: "2021-01-02", Rain: 0, MaxTemp: 35.0, MinTemp: 21.2, Radiation: 30.5},
	}
	scenes, err := rowsToScenes(region, rows, vars)
	require.NoError(t, err)
	require.Len(t, scenes, 2)

	first := scenes[0]
	assert.Equal(t, "silo-2021-01-01", first.ID)
	assert.Equal(t, []string{"RADN", "RAIN", "TMAX", "TMIN"}, first.BandOrder)
	assert.InDelta(t, 4.2, first.Bands["RAIN"].At(0, 0), 1e-9)
	assert.InDelta(t, 33.1, first.Bands["TMAX"].At(0, 0), 1e-9)

	// Constant grids span the region envelope, so any point inside
	// the region samples the daily value.
	assert.InDelta(t, 4.2, first.Bands["RAIN"].Sample(150.05, -26.95), 1e-9)

	_, err = rowsToScenes(region, []DailyRow{{Date: "01/01/2021"}}, vars)
	assert.ErrorContains(t, err, "failed to parse SILO date")
}

func TestRowsToScenesEmitOnlyRequestedBands(t *testing.T) {
	region, err := roi.FromGeoJSON("test", []byte(regionGeoJSON))
	require.NoError(t, err)
	vars, err := ValidateVariables([]string{"R"})
	require.NoError(t, err)

	scenes, err := rowsToScenes(region, []DailyRow{
		{Date: "2021-01-01", Rain: 4.2},
	}, vars)
	require.NoError(t, err)
	require.Len(t, scenes, 1)

	assert.Equal(t, []string{"RAIN"}, scenes[0].BandOrder)
	assert.NotContains(t, scenes[0].Bands, "TMAX", "unrequested variables never become bands")
	assert.NotContains(t, scenes[0].Bands, "TMIN")
	assert.NotContains(t, scenes[0].Bands, "RADN")
}

func TestRowsToScenesShareOnePixelGrid(t *testing.T) {
	region, err := roi.FromGeoJSON("test", []byte(regionGeoJSON))
	require.NoError(t, err)
	vars, err := ValidateVariables([]string{"R"})
	require.NoError(t, err)

	scenes, err := rowsToScenes(region, []DailyRow{
		{Date: "2021-01-01", Rain: 1},
		{Date: "2021-01-02", Rain: 2},
	}, vars)
	require.NoError(t, err)
	assert.True(t, scenes[0].Bands["RAIN"].SameShape(scenes[1].Bands["RAIN"]))
}

func bandsOf(vars []Variable) []string {
	bands := make([]string, len(vars))
	for i, v := range vars {
		bands[i] = v.Band
	}
	return bands
}
