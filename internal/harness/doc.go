// Package harness runs plan scenarios end to end.
//
// A scenario loads a directory of CUE blueprints, builds a deterministic
// in-process network, traces one blueprint into a plan and invokes it,
// optionally at a remote peer. Every message a peer applies is journaled to
// an in-memory store; the harness turns the journal into a trace and checks
// call expectations and assertions against it.
//
// # Scenario Format
//
//	name: add_one_remote
//	description: "Trace at alice, run at bob"
//	blueprints: ../blueprints
//	plan: add_one
//	owner: alice
//	peers: [alice, bob]
//	values:
//	  - { name: sx, peer: alice, data: 0 }
//	  - { name: x, peer: bob, data: [1, 2, 3] }
//	trace_with: [sx]
//	send_to: bob
//	calls:
//	  - args: [x]
//	    as: r1
//	    expect:
//	      result: [2, 3, 4]
//	assertions:
//	  - type: trace_count
//	    event: dispatch bob obj plan
//	    count: 1
//
// # Assertion Types
//
//   - trace_contains: Verifies an event label appears in the trace
//   - trace_order: Verifies event labels appear in the specified order
//   - trace_count: Verifies an event label appears exactly N times
//   - final_state: Verifies the value bound to a name
//   - journal_count: Verifies how many messages a peer journaled
//
// Event labels join the event type, peer, message kind and op, e.g.
// "dispatch bob cmd execute_plan" or "transmit bob".
//
// # Deterministic Testing
//
// Peer identities come from the scenario and identifiers from fixed ranges
// (testutil.NewPeers), so the same scenario yields byte-identical traces
// for golden file comparison.
package harness
