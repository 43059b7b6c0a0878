package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGapsNeverFailTheRun(t *testing.T) {
	r := New()
	r.AddStep("scenes filtered and masked", map[string]string{"count": "3"})
	r.AddGap("empty composite period", map[string]string{"period": "2021-02"})

	assert.False(t, r.HasFailures())

	r.AddError("sampling", errors.New("region area is negligible"))
	assert.True(t, r.HasFailures())
}

func TestToJSONRoundTrip(t *testing.T) {
	r := New()
	r.AddStep("region loaded", map[string]string{"name": "fazenda"})
	r.AddGap("climate connector returned no data", nil)
	r.AddError("export_samples", errors.New("disk full"))
	r.AddArtifact("/tmp/out.csv", "csv")

	path := filepath.Join(t.TempDir(), "run_report.json")
	require.NoError(t, r.ToJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded struct {
		Steps     []Step     `json:"steps"`
		Gaps      []Step     `json:"gaps"`
		Failures  []Failure  `json:"failures"`
		Artifacts []Artifact `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Steps, 1)
	assert.Equal(t, StatusCompleted, decoded.Steps[0].Status)
	require.Len(t, decoded.Gaps, 1)
	assert.Equal(t, StatusGap, decoded.Gaps[0].Status)
	require.Len(t, decoded.Failures, 1)
	assert.Equal(t, "export_samples", decoded.Failures[0].Step)
	require.Len(t, decoded.Artifacts, 1)
	assert.Equal(t, "csv", decoded.Artifacts[0].Kind)
}

func TestSummaryTextSeparatesSections(t *testing.T) {
	r := New()
	r.AddStep("composite cube assembled", nil)
	r.AddGap("imagery filter returned no scenes", nil)
	r.AddError("soil", errors.New("SLGA timeout"))
	r.AddArtifact("/tmp/cube_stats.parquet", "parquet")

	summary := r.SummaryText()
	assert.Contains(t, summary, "=== Paddock Pulse Run Summary ===")
	assert.Contains(t, summary, "Steps: 1 | Artifacts: 1 | Gaps: 1 | Failures: 1")
	assert.Contains(t, summary, "Gaps:")
	assert.Contains(t, summary, "Failures:")
	assert.Contains(t, summary, "soil: SLGA timeout")
	assert.Contains(t, summary, "[parquet] /tmp/cube_stats.parquet")
}

func TestConcurrentAppends(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.AddStep(fmt.Sprintf("step-%d", i), nil)
			r.AddArtifact(fmt.Sprintf("/tmp/a-%d", i), "csv")
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Steps, 50)
	assert.Len(t, r.Artifacts, 50)
}
