package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/arictl/internal/canonical"
)

// Snapshot renders a run as canonical JSON: the trace, final handle
// states, step results and the unanswered count. Identical runs produce
// identical bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, e := range result.Trace {
		entry := map[string]any{
			"kind": e.Kind,
			"seq":  e.Seq,
		}
		if e.Key != "" {
			entry["key"] = e.Key
		}
		switch e.Kind {
		case TraceCommand:
			entry["command"] = e.Command
		case TraceResponse:
			entry["status"] = e.Status
			entry["outcome"] = e.Outcome
		case TraceEvent:
			entry["type"] = e.Type
			entry["resource"] = e.Resource
			entry["handlers"] = e.Handlers
		}
		trace[i] = entry
	}

	handles := make(map[string]any, len(result.Handles))
	for name, hs := range result.Handles {
		handles[name] = map[string]any{"id": hs.ID, "state": hs.State}
	}

	steps := make([]any, len(result.Steps))
	for i, sr := range result.Steps {
		step := map[string]any{
			"step":  sr.Step,
			"do":    sr.Do,
			"state": sr.State,
		}
		if sr.Error != "" {
			step["error"] = sr.Error
		}
		steps[i] = step
	}

	return canonical.Marshal(map[string]any{
		"scenario":   name,
		"trace":      trace,
		"handles":    handles,
		"steps":      steps,
		"unanswered": result.Unanswered,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check assertions. Test failure
// (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)

	return nil
}
