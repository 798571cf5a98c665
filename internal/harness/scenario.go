package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/workshopdl/internal/acquire"
	"github.com/roach88/workshopdl/internal/workshop"
)

// DefaultAppID is the session app id when a scenario does not name one.
const DefaultAppID = 4000

// DefaultRunID is the run id when a scenario does not name one.
const DefaultRunID = "test-run-default"

// Scenario defines one scripted acquisition.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Input is the command-line arguments naming the item.
	Input []string `yaml:"input"`

	// AppID is the session's app. Default: DefaultAppID.
	AppID uint64 `yaml:"app_id,omitempty"`

	// RunID is the fixed run id. Default: DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	Options RunOptions    `yaml:"options,omitempty"`
	Session SessionScript `yaml:"session"`

	// Expect is the required terminal outcome.
	Expect ExpectClause `yaml:"expect"`

	// Assertions validate the trace and the journal.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RunOptions maps onto acquire.Options.
type RunOptions struct {
	RegisterBeforeRequest bool `yaml:"register_before_request"`
	HighPriority          bool `yaml:"high_priority"`

	// CancelAfterTicks interrupts the run at the given tick (1-based
	// across resolve and acquire). Zero never interrupts.
	CancelAfterTicks int `yaml:"cancel_after_ticks"`
}

// QueryEntry is one query result entry. Missing leaves a gap in the results.
type QueryEntry struct {
	Missing    bool   `yaml:"missing,omitempty"`
	ID         uint64 `yaml:"id"`
	Title      string `yaml:"title"`
	OwnerAppID uint64 `yaml:"owner_app_id"`
}

// ProgressStep is one scripted progress answer.
type ProgressStep struct {
	Bytes uint64 `yaml:"bytes"`
	Total uint64 `yaml:"total"`
	Lost  bool   `yaml:"lost,omitempty"`
}

// CompletionStep delivers a completion signal after a number of pumps
// following the download request.
type CompletionStep struct {
	AfterPumps int    `yaml:"after_pumps"`
	ItemID     uint64 `yaml:"item_id"`
	Result     string `yaml:"result,omitempty"`
}

// InstallStep installs an item after a number of pumps following the
// download request.
type InstallStep struct {
	AfterPumps int    `yaml:"after_pumps"`
	ItemID     uint64 `yaml:"item_id"`
	Path       string `yaml:"path"`
}

// SessionScript scripts the fake session.
type SessionScript struct {
	Entries        []QueryEntry      `yaml:"entries"`
	QueryError     string            `yaml:"query_error,omitempty"`
	QueryDelay     int               `yaml:"query_delay,omitempty"`
	Installed      map[uint64]string `yaml:"installed,omitempty"`
	AcceptDownload bool              `yaml:"accept_download"`
	Progress       []ProgressStep    `yaml:"progress,omitempty"`
	Completions    []CompletionStep  `yaml:"completions,omitempty"`
	Installs       []InstallStep     `yaml:"installs,omitempty"`
}

// ExpectClause specifies the expected terminal outcome.
// Empty fields other than Phase are not checked.
type ExpectClause struct {
	Phase     string `yaml:"phase"`
	Via       string `yaml:"via,omitempty"`
	Path      string `yaml:"path,omitempty"`
	ErrorCode string `yaml:"error_code,omitempty"`
}

// Assertion validates trace or journal state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a call with prefix Call exists
	// - "trace_order": calls with prefixes Calls appear in order
	// - "trace_count": exactly Count calls have prefix Call
	// - "final_state": journaled run matches Expect (subset match)
	// - "transitions": journaled phases equal Phases
	Type string `yaml:"type"`

	// Call is a call prefix (used by trace_contains, trace_count).
	Call string `yaml:"call,omitempty"`

	// Calls are call prefixes in expected order (used by trace_order).
	Calls []string `yaml:"calls,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected run fields by JSON name (used by final_state).
	Expect map[string]string `yaml:"expect,omitempty"`

	// Phases is the expected transition sequence (used by transitions).
	Phases []string `yaml:"phases,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertTransitions   = "transitions"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	if scenario.AppID == 0 {
		scenario.AppID = DefaultAppID
	}
	if scenario.RunID == "" {
		scenario.RunID = DefaultRunID
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Input) == 0 {
		return fmt.Errorf("input list is required and must be non-empty")
	}
	if !validPhase(s.Expect.Phase) {
		return fmt.Errorf("expect.phase must be completed or failed, got %q", s.Expect.Phase)
	}
	if s.Options.CancelAfterTicks < 0 {
		return fmt.Errorf("options.cancel_after_ticks must be non-negative")
	}

	for i, c := range s.Session.Completions {
		if c.AfterPumps < 1 {
			return fmt.Errorf("session.completions[%d]: after_pumps must be at least 1", i)
		}
		if c.Result != "" {
			if _, err := workshop.ParseResultCode(c.Result); err != nil {
				return fmt.Errorf("session.completions[%d]: %w", i, err)
			}
		}
	}
	for i, in := range s.Session.Installs {
		if in.AfterPumps < 1 {
			return fmt.Errorf("session.installs[%d]: after_pumps must be at least 1", i)
		}
		if in.Path == "" {
			return fmt.Errorf("session.installs[%d]: path is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validPhase(phase string) bool {
	return phase == acquire.PhaseCompleted.String() || phase == acquire.PhaseFailed.String()
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertTransitions:
		if a.Phases == nil {
			return fmt.Errorf("assertions[%d]: phases is required for transitions", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
