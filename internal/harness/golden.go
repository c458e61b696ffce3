package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/peterjc/kana-chording-ke/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Model        string       `json:"model"`
	Trace        []TraceEvent `json:"trace"`
	FinalState   string       `json:"final_state"`
}

// Snapshot returns the canonical JSON trace of a result.
func Snapshot(name, model string, result *Result) ([]byte, error) {
	return ir.CanonicalJSON(TraceSnapshot{
		ScenarioName: name,
		Model:        model,
		Trace:        result.Trace,
		FinalState:   result.FinalState,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, load LayoutLoader) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, load)
	if err != nil {
		return nil, err
	}

	traceJSON, err := Snapshot(scenario.Name, scenario.Model, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return result, nil
}
