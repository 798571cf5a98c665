package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTrace(calls ...string) []TraceEvent {
	r := NewResult("run")
	r.AddTrace(calls)
	return r.Trace
}

func TestAssertTraceContains(t *testing.T) {
	trace := testTrace("pump 1", "request_download id=1 high_priority=true -> true")

	assert.NoError(t, assertTraceContains(trace, Assertion{Call: "request_download id=1"}))

	err := assertTraceContains(trace, Assertion{Call: "register_callback"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[2] request_download")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := testTrace("pump 1", "register_callback id=1", "pump 2", "unregister_callback id=1", "close")

	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"register_callback", "pump", "close"}}))

	err := assertTraceOrder(trace, Assertion{Calls: []string{"close", "pump"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no call "pump" after "close"`)

	err = assertTraceOrder(trace, Assertion{Calls: []string{"deliver_completion"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing call "deliver_completion"`)
}

func TestAssertTraceCount(t *testing.T) {
	trace := testTrace("pump 1", "pump 2", "close")

	assert.NoError(t, assertTraceCount(trace, Assertion{Call: "pump", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Call: "request_download", Count: 0}))

	err := assertTraceCount(trace, Assertion{Call: "pump", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestEvaluateAssertions_RequiresJournal(t *testing.T) {
	result := NewResult("run")
	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Expect: map[string]string{"phase": "completed"}},
		{Type: "bogus"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "requires journal context")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
