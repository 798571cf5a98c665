// Package harness runs scripted acquisition scenarios against the real
// resolver and controller.
//
// A scenario scripts a fake session (query results, progress samples,
// completion deliveries and installs, all keyed on pump counts), runs one
// acquisition to its terminal outcome, and checks the session call trace
// and the journaled run.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: callback_success
//	description: "What this scenario validates"
//	input: ["https://steamcommunity.com/sharedfiles/filedetails/?id=", "42"]
//	options:
//	  register_before_request: false
//	  high_priority: true
//	  cancel_after_ticks: 0
//	session:
//	  entries:
//	    - { id: 42, title: "Map", owner_app_id: 4000 }
//	  accept_download: true
//	  progress:
//	    - { bytes: 5, total: 10 }
//	  installs:
//	    - { after_pumps: 2, item_id: 42, path: /w/42 }
//	  completions:
//	    - { after_pumps: 2, item_id: 42, result: none }
//	expect:
//	  phase: completed
//	  via: callback
//	assertions:
//	  - type: trace_order
//	    calls: ["request_download", "register_callback", "deliver_completion"]
//	  - type: final_state
//	    expect: { path: /w/42 }
//
// # Assertion Types
//
//   - trace_contains: a session call starting with the given prefix was made
//   - trace_order: calls matching the prefixes appear in order
//   - trace_count: exactly N calls match the prefix
//   - final_state: journaled run fields match (subset match)
//   - transitions: journaled phase sequence matches exactly
//
// # Deterministic Testing
//
// Ticks never sleep, the run id is fixed, and every session event is keyed on
// the pump count, so a scenario produces the same trace on every run. The
// trace is compared against testdata/golden/<name>.golden.
package harness
