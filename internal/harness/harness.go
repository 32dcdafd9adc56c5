package harness

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/arictl/internal/canonical"
	"github.com/roach88/arictl/internal/deferred"
	"github.com/roach88/arictl/internal/engine"
	"github.com/roach88/arictl/internal/resource"
	"github.com/roach88/arictl/internal/store"
	"github.com/roach88/arictl/internal/testutil"
	"github.com/roach88/arictl/internal/transport"
)

// Harness executes one scenario. It is single-use; Run creates one per
// scenario so runs never share state.
type Harness struct {
	engine    *engine.Engine
	transport *testutil.RecordingTransport
	store     *store.Store

	handles map[string]any // *resource.Bridge or *resource.Channel
	names   []string       // handle names in declaration order
	results []pendingStep
}

// pendingStep is a step whose operation returned a result.
type pendingStep struct {
	step    int
	do      string
	outcome func() (deferred.State, error)
}

func watch[T any](r *deferred.Result[T]) func() (deferred.State, error) {
	return func() (deferred.State, error) {
		_, err, _ := r.Outcome()
		return r.State(), err
	}
}

// Run executes a scenario and returns the result.
//
// Each run uses a fresh in-memory journal and sequential correlation keys
// ("cmd-1", "cmd-2", ...), so the same scenario always yields the same
// trace.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	tr := testutil.NewRecordingTransport()
	eng := engine.New(tr,
		engine.WithKeyGenerator(testutil.NewSequentialKeys("cmd")),
		engine.WithJournal(st),
	)
	defer eng.Stop()

	h := &Harness{
		engine:    eng,
		transport: tr,
		store:     st,
		handles:   make(map[string]any),
	}

	for i, step := range scenario.Steps {
		if err := h.execute(i+1, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Do, err)
		}
		eng.Drain()
	}

	result, err := h.collect(context.Background())
	if err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(n int, st Step) error {
	switch st.Do {
	case StepCreateBridge:
		res := resource.CreateBridge(h.engine, createOptions(st.Args)...)
		h.track(n, st.Do, watch(res))
		name := st.As
		h.names = append(h.names, name)
		return res.OnSuccess(func(b *resource.Bridge) {
			h.handles[name] = b
		})

	case StepWrapBridge:
		h.declare(st.As, resource.WrapBridge(h.engine, st.ID))
		return nil

	case StepWrapChannel:
		h.declare(st.As, resource.WrapChannel(h.engine, st.ID))
		return nil

	case StepOp:
		res, err := h.operation(st)
		if err != nil {
			return err
		}
		h.track(n, st.Do+" "+st.Op, watch(res))
		return nil

	case StepRespond:
		return h.respond(st)

	case StepEvent:
		ev, err := eventFor(st)
		if err != nil {
			return err
		}
		if !h.engine.Publish(ev) {
			return engine.ErrClosed
		}
		return nil

	case StepDestroy:
		switch v := h.handles[st.Handle].(type) {
		case *resource.Bridge:
			h.track(n, st.Do, watch(v.Destroy()))
		case *resource.Channel:
			h.track(n, st.Do, watch(v.Hangup(st.Args["reason"])))
		default:
			return errUnresolved(st.Handle)
		}
		return nil

	case StepClose:
		switch v := h.handles[st.Handle].(type) {
		case *resource.Bridge:
			h.track(n, st.Do, watch(v.Close()))
		case *resource.Channel:
			v.Close()
		default:
			return errUnresolved(st.Handle)
		}
		return nil

	case StepMove:
		switch v := h.handles[st.Handle].(type) {
		case *resource.Bridge:
			h.declare(st.As, v.Move())
		case *resource.Channel:
			h.declare(st.As, v.Move())
		default:
			return errUnresolved(st.Handle)
		}
		return nil
	}
	return fmt.Errorf("unknown step %q", st.Do)
}

func (h *Harness) declare(name string, handle any) {
	h.handles[name] = handle
	h.names = append(h.names, name)
}

func (h *Harness) track(n int, do string, outcome func() (deferred.State, error)) {
	h.results = append(h.results, pendingStep{step: n, do: do, outcome: outcome})
}

// errUnresolved reports a handle whose create_bridge has not succeeded.
func errUnresolved(name string) error {
	return fmt.Errorf("handle %q is not available (create not answered?)", name)
}

func (h *Harness) respond(st Step) error {
	var cmd engine.Command
	if st.Command > 0 {
		sent := h.transport.Commands()
		if st.Command > len(sent) {
			return fmt.Errorf("command %d not sent (%d commands so far)", st.Command, len(sent))
		}
		cmd = sent[st.Command-1]
	} else {
		var ok bool
		if cmd, ok = h.transport.NextUnanswered(); !ok {
			return errors.New("no unanswered command")
		}
	}

	if st.Error != "" {
		return h.transport.Reply(cmd.Key, engine.Response{Err: errors.New(st.Error)})
	}

	resp := engine.Response{Status: st.Status}
	if resp.Status == 0 {
		resp.Status = 200
	}
	if st.Body != nil {
		body, err := canonical.Marshal(st.Body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		resp.Body = body
	}
	return h.transport.Reply(cmd.Key, resp)
}

// eventFor builds the engine event for an event step. A payload goes
// through the wire decoder; otherwise the resource and id are used as-is.
func eventFor(st Step) (engine.Event, error) {
	if st.Payload != nil {
		data, err := canonical.Marshal(st.Payload)
		if err != nil {
			return engine.Event{}, fmt.Errorf("encode payload: %w", err)
		}
		return transport.DecodeEvent(data)
	}

	kind := st.Resource
	if kind == "" {
		kind = engine.ResourceBridge
	}
	ident := "id"
	if kind == engine.ResourceRecording {
		ident = "name"
	}
	payload, err := canonical.Marshal(map[string]any{
		"type": st.Type,
		kind:   map[string]any{ident: st.ID},
	})
	if err != nil {
		return engine.Event{}, err
	}
	return engine.Event{
		Type:         st.Type,
		ResourceType: kind,
		ResourceID:   st.ID,
		Payload:      payload,
	}, nil
}

// collect reads the journal and the final handle and step states.
func (h *Harness) collect(ctx context.Context) (*Result, error) {
	result := NewResult()

	entries, err := h.store.Entries(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	for _, e := range entries {
		result.Trace = append(result.Trace, traceEntry(e))
	}

	for _, name := range h.names {
		hs := HandleState{State: "unresolved"}
		switch v := h.handles[name].(type) {
		case *resource.Bridge:
			hs = HandleState{ID: v.ID(), State: v.State().String()}
		case *resource.Channel:
			hs = HandleState{ID: v.ID(), State: v.State().String()}
		}
		result.Handles[name] = hs
	}

	for _, p := range h.results {
		state, err := p.outcome()
		sr := StepResult{Step: p.step, Do: p.do, State: state.String()}
		if err != nil {
			sr.Error = errorCode(err)
		}
		result.Steps = append(result.Steps, sr)
	}

	result.Unanswered = h.transport.Unanswered()
	return result, nil
}

func traceEntry(e store.Entry) TraceEntry {
	te := TraceEntry{Seq: e.Seq, Kind: e.Kind, Key: e.Key}
	switch e.Kind {
	case store.KindCommand:
		te.Command = e.Method + " " + e.Path
		if e.Query != "" {
			te.Command += "?" + e.Query
		}
	case store.KindResponse:
		te.Status = e.Status
		te.Outcome = e.Outcome
	case store.KindEvent:
		te.Type = e.Type
		if e.ResourceType != "" {
			te.Resource = e.ResourceType + "/" + e.ResourceID
		}
		te.Handlers = e.Handlers
	}
	return te
}

// errorCode renders engine errors by code so traces do not depend on
// message wording.
func errorCode(err error) string {
	var e *engine.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return err.Error()
}

func createOptions(args map[string]string) []resource.CreateOption {
	var opts []resource.CreateOption
	if v, ok := args["type"]; ok {
		opts = append(opts, resource.WithBridgeType(v))
	}
	if v, ok := args["id"]; ok {
		opts = append(opts, resource.WithBridgeID(v))
	}
	if v, ok := args["name"]; ok {
		opts = append(opts, resource.WithName(v))
	}
	return opts
}

func (h *Harness) operation(st Step) (*deferred.Result[engine.Response], error) {
	args := argReader{args: st.Args}

	switch v := h.handles[st.Handle].(type) {
	case *resource.Bridge:
		var res *deferred.Result[engine.Response]
		switch st.Op {
		case "add":
			role, err := resource.ParseRole(args.get("role", "participant"))
			if err != nil {
				return nil, err
			}
			res = v.Add(args.get("channel", ""), role)
		case "add_channels":
			res = v.AddChannels(strings.Split(args.get("channels", ""), ",")...)
		case "remove":
			res = v.Remove(args.get("channel", ""))
		case "moh_start":
			res = v.StartMusicOnHold(args.get("class", ""))
		case "moh_stop":
			res = v.StopMusicOnHold()
		case "play":
			res = v.Play(args.get("media", ""), args.playOptions()...)
		case "record":
			opts, err := args.recordOptions()
			if err != nil {
				return nil, err
			}
			res = v.Record(args.get("name", ""), args.get("format", "wav"), opts...)
		default:
			return nil, fmt.Errorf("unknown bridge op %q", st.Op)
		}
		return res, args.err

	case *resource.Channel:
		switch st.Op {
		case "answer":
			return v.Answer(), nil
		case "ring":
			return v.Ring(), nil
		case "play":
			res := v.Play(args.get("media", ""), args.playOptions()...)
			return res, args.err
		default:
			return nil, fmt.Errorf("unknown channel op %q", st.Op)
		}
	}
	return nil, errUnresolved(st.Handle)
}

// argReader reads string step arguments, remembering the first
// conversion error.
type argReader struct {
	args map[string]string
	err  error
}

func (a *argReader) get(name, def string) string {
	if v, ok := a.args[name]; ok {
		return v
	}
	return def
}

func (a *argReader) number(name string) (int, bool) {
	v, ok := a.args[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if a.err == nil {
			a.err = fmt.Errorf("arg %s: %w", name, err)
		}
		return 0, false
	}
	return n, true
}

func (a *argReader) playOptions() []resource.PlayOption {
	var opts []resource.PlayOption
	if v, ok := a.args["lang"]; ok {
		opts = append(opts, resource.WithLang(v))
	}
	if v, ok := a.args["playback_id"]; ok {
		opts = append(opts, resource.WithPlaybackID(v))
	}
	if n, ok := a.number("offset"); ok {
		opts = append(opts, resource.WithOffset(n))
	}
	if n, ok := a.number("skip"); ok {
		opts = append(opts, resource.WithSkip(n))
	}
	return opts
}

func (a *argReader) recordOptions() ([]resource.RecordOption, error) {
	var opts []resource.RecordOption
	if n, ok := a.number("max_duration"); ok {
		opts = append(opts, resource.WithMaxDuration(n))
	}
	if n, ok := a.number("max_silence"); ok {
		opts = append(opts, resource.WithMaxSilence(n))
	}
	if v, ok := a.args["if_exists"]; ok {
		opts = append(opts, resource.WithIfExists(v))
	}
	if a.get("beep", "false") == "true" {
		opts = append(opts, resource.WithBeep())
	}
	if v, ok := a.args["terminate_on"]; ok {
		t, err := resource.ParseTerminationDTMF(v)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resource.WithTerminateOn(t))
	}
	return opts, a.err
}
