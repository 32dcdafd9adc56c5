package harness

// Trace entry kinds mirror the journal.
const (
	TraceCommand  = "command"
	TraceResponse = "response"
	TraceEvent    = "event"
)

// TraceEntry is one journaled message in seq order.
type TraceEntry struct {
	Seq  int64  `json:"seq"`
	Kind string `json:"kind"`
	Key  string `json:"key,omitempty"`

	// command: "METHOD path?query"
	Command string `json:"command,omitempty"`

	// response
	Status  int    `json:"status,omitempty"`
	Outcome string `json:"outcome,omitempty"`

	// event
	Type     string `json:"type,omitempty"`
	Resource string `json:"resource,omitempty"` // "bridge/b-1"
	Handlers int    `json:"handlers,omitempty"`
}

// HandleState is a handle's identity and lifecycle state at the end of a run.
type HandleState struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

// StepResult is the resolution state of the result an operation step
// returned, observed at the end of the run.
type StepResult struct {
	Step  int    `json:"step"` // 1-based
	Do    string `json:"do"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace   []TraceEntry           `json:"trace"`
	Handles map[string]HandleState `json:"handles"`
	Steps   []StepResult           `json:"steps"`

	// Unanswered counts commands never answered by a respond step.
	Unanswered int `json:"unanswered"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEntry{},
		Handles: make(map[string]HandleState),
		Steps:   []StepResult{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Commands returns the trace's commands as "METHOD path?query" strings.
func (r *Result) Commands() []string {
	var out []string
	for _, e := range r.Trace {
		if e.Kind == TraceCommand {
			out = append(out, e.Command)
		}
	}
	return out
}
