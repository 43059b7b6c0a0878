package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusGap       Status = "gap"
	StatusFailed    Status = "failed"
)

type Step struct {
	Name   string            `json:"name"`
	Status Status            `json:"status"`
	Meta   map[string]string `json:"meta,omitempty"`
	At     time.Time         `json:"at"`
}

type Artifact struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

type Failure struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// RunReport accumulates what happened during one pipeline run. It is
// the only object mutated by multiple components; appends are guarded
// so the final summary is always consistent.
type RunReport struct {
	mu        sync.Mutex
	StartedAt time.Time  `json:"started_at"`
	Steps     []Step     `json:"steps"`
	Gaps      []Step     `json:"gaps"`
	Failures  []Failure  `json:"failures"`
	Artifacts []Artifact `json:"artifacts"`
}

func New() *RunReport {
	return &RunReport{StartedAt: time.Now()}
}

func (r *RunReport) AddStep(name string, meta map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Steps = append(r.Steps, Step{Name: name, Status: StatusCompleted, Meta: meta, At: time.Now()})
}

// AddGap records an expected missing-data condition. Gaps never fail
// the run.
func (r *RunReport) AddGap(name string, meta map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Gaps = append(r.Gaps, Step{Name: name, Status: StatusGap, Meta: meta, At: time.Now()})
}

func (r *RunReport) AddError(step string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, Failure{Step: step, Error: err.Error()})
}

func (r *RunReport) AddArtifact(path, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Artifacts = append(r.Artifacts, Artifact{Path: path, Kind: kind})
}

func (r *RunReport) HasFailures() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures) > 0
}

func (r *RunReport) ToJSON(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SummaryText renders the human-readable run summary, keeping
// completed artifacts, gaps and hard failures visibly apart.
func (r *RunReport) SummaryText() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lines []string
	lines = append(lines, "=== Paddock Pulse Run Summary ===")
	lines = append(lines, fmt.Sprintf("Steps: %d | Artifacts: %d | Gaps: %d | Failures: %d",
		len(r.Steps), len(r.Artifacts), len(r.Gaps), len(r.Failures)))
	lines = append(lines, "")
	for _, s := range r.Steps {
		lines = append(lines, fmt.Sprintf("• %s — %s", s.At.Format("2006-01-02 15:04:05"), s.Name))
	}
	if len(r.Artifacts) > 0 {
		lines = append(lines, "", "Artifacts:")
		for _, a := range r.Artifacts {
			lines = append(lines, fmt.Sprintf("  - [%s] %s", a.Kind, a.Path))
		}
	}
	if len(r.Gaps) > 0 {
		lines = append(lines, "", "Gaps:")
		for _, g := range r.Gaps {
			lines = append(lines, fmt.Sprintf("  - %s", g.Name))
		}
	}
	if len(r.Failures) > 0 {
		lines = append(lines, "", "Failures:")
		for _, f := range r.Failures {
			lines = append(lines, fmt.Sprintf("  - %s: %s", f.Step, f.Error))
		}
	}
	return strings.Join(lines, "\n")
}
