package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the observable behavior of a scenario execution.
// Field order is fixed so the encoding is byte-stable.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	RunID        string          `json:"run_id"`
	Outcome      OutcomeSnapshot `json:"outcome"`
	Calls        []string        `json:"calls"`
}

// NewTraceSnapshot builds the snapshot of result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	calls := make([]string, len(result.Trace))
	for i, event := range result.Trace {
		calls[i] = event.Call
	}
	return TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Outcome:      result.Outcome,
		Calls:        calls,
	}
}

// Marshal encodes the snapshot as indented JSON with a trailing newline.
// Call strings are kept verbatim ("->" is not HTML-escaped).
func (s TraceSnapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
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
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
