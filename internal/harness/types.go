package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int64             `json:"seq"`
	Action  string            `json:"action"`
	Args    map[string]string `json:"args,omitempty"`
	Outcome string            `json:"outcome"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final state used for golden comparison.
	Snapshot *Snapshot `json:"snapshot"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an executed step.
func (r *Result) AddTrace(seq int64, action string, args map[string]string, outcome string) {
	r.Trace = append(r.Trace, TraceEvent{Seq: seq, Action: action, Args: args, Outcome: outcome})
}
