package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is one interleaving of operations, responses and events.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order; the engine is drained after each one.
	Steps []Step `yaml:"steps"`

	// Assertions are checked against the result after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// Step kinds.
const (
	StepCreateBridge = "create_bridge" // as, args: type, id, name
	StepWrapBridge   = "wrap_bridge"   // as, id
	StepWrapChannel  = "wrap_channel"  // as, id
	StepOp           = "op"            // handle, op, args
	StepRespond      = "respond"       // command, status, body | error
	StepEvent        = "event"         // type, resource, id | payload
	StepDestroy      = "destroy"       // handle, args: reason (channels)
	StepClose        = "close"         // handle
	StepMove         = "move"          // handle, as
)

// Step is one scenario action. Which fields apply depends on Do.
type Step struct {
	Do string `yaml:"do"`

	// As names the handle a step creates; Handle names the one it acts on.
	As     string `yaml:"as,omitempty"`
	Handle string `yaml:"handle,omitempty"`

	// ID identifies a wrapped resource or an event's resource.
	ID string `yaml:"id,omitempty"`

	// Op and Args select a handle operation and its parameters.
	Op   string            `yaml:"op,omitempty"`
	Args map[string]string `yaml:"args,omitempty"`

	// Command is the 1-based index of the command to answer; zero answers
	// the oldest unanswered one. Status defaults to 200. A non-empty Error
	// answers with a transport failure instead.
	Command int            `yaml:"command,omitempty"`
	Status  int            `yaml:"status,omitempty"`
	Body    map[string]any `yaml:"body,omitempty"`
	Error   string         `yaml:"error,omitempty"`

	// Type, Resource and ID describe an injected event. Resource defaults to
	// "bridge". Payload, when set, is decoded like a wire event instead.
	Type     string         `yaml:"type,omitempty"`
	Resource string         `yaml:"resource,omitempty"`
	Payload  map[string]any `yaml:"payload,omitempty"`
}

// Assertion validates the result of a run.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "trace_commands": the commands sent, exactly and in order
	//   - "trace_order": the commands appear in this order, not necessarily adjacent
	//   - "trace_count": Command was sent exactly Count times
	//   - "handle_state": Handle ended in State
	//   - "step_result": the result of step Step ended in State
	//   - "unanswered": exactly Count commands were never answered
	Type string `yaml:"type"`

	Commands []string `yaml:"commands,omitempty"`
	Command  string   `yaml:"command,omitempty"`
	Count    int      `yaml:"count,omitempty"`
	Handle   string   `yaml:"handle,omitempty"`
	Step     int      `yaml:"step,omitempty"`
	State    string   `yaml:"state,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceCommands = "trace_commands"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertHandleState   = "handle_state"
	AssertStepResult    = "step_result"
	AssertUnanswered    = "unanswered"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
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
	decoder.KnownFields(true) // catches typos like "assertion:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// FindScenarioFiles returns the .yaml and .yml files directly under dir,
// sorted by name.
func FindScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// validateScenario checks that required fields are present and that every
// handle is named before it is used.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	handles := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, &step, handles); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step, handles map[string]bool) error {
	needAs := func() error {
		if st.As == "" {
			return fmt.Errorf("steps[%d]: as is required for %s", index, st.Do)
		}
		if handles[st.As] {
			return fmt.Errorf("steps[%d]: handle %q already declared", index, st.As)
		}
		handles[st.As] = true
		return nil
	}
	needHandle := func() error {
		if st.Handle == "" {
			return fmt.Errorf("steps[%d]: handle is required for %s", index, st.Do)
		}
		if !handles[st.Handle] {
			return fmt.Errorf("steps[%d]: unknown handle %q", index, st.Handle)
		}
		return nil
	}

	switch st.Do {
	case StepCreateBridge:
		return needAs()
	case StepWrapBridge, StepWrapChannel:
		if st.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", index, st.Do)
		}
		return needAs()
	case StepOp:
		if st.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", index)
		}
		return needHandle()
	case StepRespond:
		if st.Command < 0 {
			return fmt.Errorf("steps[%d]: command must be non-negative", index)
		}
		if st.Error != "" && (st.Status != 0 || st.Body != nil) {
			return fmt.Errorf("steps[%d]: error excludes status and body", index)
		}
	case StepEvent:
		if st.Payload != nil {
			return nil
		}
		if st.Type == "" || st.ID == "" {
			return fmt.Errorf("steps[%d]: event needs type and id, or a payload", index)
		}
	case StepDestroy, StepClose:
		return needHandle()
	case StepMove:
		if err := needHandle(); err != nil {
			return err
		}
		return needAs()
	case "":
		return fmt.Errorf("steps[%d]: do is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown step %q", index, st.Do)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	switch a.Type {
	case AssertTraceCommands:
		// An empty list asserts that nothing was sent.
	case AssertTraceOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Command == "" {
			return fmt.Errorf("assertions[%d]: command is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertHandleState:
		if a.Handle == "" || a.State == "" {
			return fmt.Errorf("assertions[%d]: handle and state are required for handle_state", index)
		}
	case AssertStepResult:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("assertions[%d]: step must be between 1 and %d", index, steps)
		}
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for step_result", index)
		}
	case AssertUnanswered:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for unanswered", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
