package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: test_scenario
description: "Test scenario for validation"
input: ["42"]
expect:
  phase: completed
session:
  entries:
    - { id: 42, title: "Map", owner_app_id: 4000 }
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, []string{"42"}, scenario.Input)
	assert.Equal(t, uint64(DefaultAppID), scenario.AppID)
	assert.Equal(t, DefaultRunID, scenario.RunID)
	require.Len(t, scenario.Session.Entries, 1)
	assert.Equal(t, "Map", scenario.Session.Entries[0].Title)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		extra   string
		base    string
		wantErr string
	}{
		{
			name:    "missing name",
			base:    "description: d\ninput: [\"1\"]\nexpect: {phase: failed}\n",
			wantErr: "name is required",
		},
		{
			name:    "missing input",
			base:    "name: n\ndescription: d\nexpect: {phase: failed}\n",
			wantErr: "input list is required",
		},
		{
			name:    "bad phase",
			base:    "name: n\ndescription: d\ninput: [\"1\"]\nexpect: {phase: downloading}\n",
			wantErr: "expect.phase must be completed or failed",
		},
		{
			name:    "unknown result",
			extra:   "  completions:\n    - { after_pumps: 1, item_id: 42, result: exploded }\n",
			wantErr: `session.completions[0]: unknown result code "exploded"`,
		},
		{
			name:    "zero after_pumps",
			extra:   "  installs:\n    - { after_pumps: 0, item_id: 42, path: /w }\n",
			wantErr: "session.installs[0]: after_pumps must be at least 1",
		},
		{
			name:    "unknown assertion",
			extra:   "assertions:\n  - type: trace_magic\n",
			wantErr: `assertions[0]: unknown assertion type "trace_magic"`,
		},
		{
			name:    "trace_count without call",
			extra:   "assertions:\n  - type: trace_count\n    count: 1\n",
			wantErr: "call is required for trace_count",
		},
		{
			name:    "final_state without expect",
			extra:   "assertions:\n  - type: final_state\n",
			wantErr: "expect is required for final_state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := tt.base
			if doc == "" {
				doc = minimalScenario + tt.extra
			}
			_, err := ParseScenario([]byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
