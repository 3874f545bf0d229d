package harness

import "strings"

// Trace event types.
const (
	EventTrace    = "trace"    // the blueprint was traced into a plan
	EventTransmit = "transmit" // the recording was sent to the plan's location
	EventDispatch = "dispatch" // a peer applied a message
	EventCall     = "call"     // a scenario call finished
	EventReclaim  = "reclaim"  // the plan was reclaimed from its location
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type    string `json:"type"`
	Peer    string `json:"peer,omitempty"`
	Kind    string `json:"kind,omitempty"` // message kind, dispatch only
	Op      string `json:"op,omitempty"`   // command op or announced object type
	Message any    `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Seq     int64  `json:"seq"`
}

// Label names the event for assertions, e.g. "dispatch bob cmd execute_plan"
// or "transmit bob".
func (e TraceEvent) Label() string {
	parts := []string{e.Type}
	for _, s := range []string{e.Peer, e.Kind, e.Op} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// CallSnapshot captures the plan and the journal around one call.
type CallSnapshot struct {
	Index      int          `json:"index"`
	Plan       string       `json:"plan"`
	Placement  string       `json:"placement"`
	Readable   []any        `json:"readable"`
	Dispatches []TraceEvent `json:"dispatches"`
	Result     any          `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every call expectation and assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every event in order.
	Trace []TraceEvent `json:"trace"`

	// Calls holds one snapshot per scenario call.
	Calls []CallSnapshot `json:"calls"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Digest is the content address of the traced plan as stored.
	Digest string `json:"digest,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Calls:  []CallSnapshot{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddEvent appends an event to the trace.
func (r *Result) AddEvent(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
