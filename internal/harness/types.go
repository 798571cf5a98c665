package harness

// TraceEvent is one session call made during a scenario.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Call string `json:"call"`
}

// OutcomeSnapshot is the terminal outcome in comparable form.
type OutcomeSnapshot struct {
	Phase     string `json:"phase"`
	Via       string `json:"via,omitempty"`
	Path      string `json:"path,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the expected outcome and all assertions match.
	Pass bool `json:"pass"`

	RunID   string          `json:"run_id"`
	Outcome OutcomeSnapshot `json:"outcome"`

	// Trace contains every session call in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:   true,
		RunID:  runID,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends session calls, numbering them from 1.
func (r *Result) AddTrace(calls []string) {
	for _, call := range calls {
		r.Trace = append(r.Trace, TraceEvent{Seq: len(r.Trace) + 1, Call: call})
	}
}
