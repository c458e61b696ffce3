package harness

// TraceEvent is one scenario step and what it produced.
type TraceEvent struct {
	Seq   int    `json:"seq"`
	AtMS  int    `json:"at_ms"`
	Input string `json:"input"`
	// Output lists what the step emitted, in order.
	Output []string `json:"output,omitempty"`
	// State is the model state after the step.
	State string `json:"state"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Trace contains every step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// FinalState is the model state after the last step.
	FinalState string `json:"final_state"`
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

// AddStep appends a step to the trace.
func (r *Result) AddStep(atMS int, input string, output []string, state string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    len(r.Trace) + 1,
		AtMS:   atMS,
		Input:  input,
		Output: output,
		State:  state,
	})
	r.FinalState = state
}

// Outputs returns every emitted output in order.
func (r *Result) Outputs() []string {
	out := []string{}
	for _, ev := range r.Trace {
		out = append(out, ev.Output...)
	}
	return out
}
