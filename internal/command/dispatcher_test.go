package command

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/hostbridge/internal/logging"
)

// spyCollector records dispatch metrics.
type spyCollector struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func newSpyCollector() *spyCollector {
	return &spyCollector{outcomes: make(map[string][]string)}
}

func (s *spyCollector) HostStart(string)               {}
func (s *spyCollector) HostExit(int)                   {}
func (s *spyCollector) HostStopDuration(time.Duration) {}
func (s *spyCollector) RuntimeInstall(string)          {}
func (s *spyCollector) SnapshotRefresh(string)         {}

func (s *spyCollector) CommandDispatch(id, outcome string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[id] = append(s.outcomes[id], outcome)
}

func (s *spyCollector) dispatched(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.outcomes[id]...)
}

func testDispatcher(t *testing.T, mutate func(*Config)) (*Dispatcher, *spyCollector, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	col := newSpyCollector()
	cfg := DefaultConfig().WithStats()
	cfg.Logger = logging.New(logging.Config{Level: logging.LevelDebug, Output: buf})
	cfg.Metrics = col
	if mutate != nil {
		mutate(&cfg)
	}
	return New(NewRegistry(), cfg), col, buf
}

func TestExecuteInvokesHandler(t *testing.T) {
	d, col, _ := testDispatcher(t, nil)

	var gotArgs []any
	h := HandlerMap{"open": {{
		Params: []Kind{KindString, KindInt},
		Fn: func(_ context.Context, args []any) (any, error) {
			gotArgs = args
			return "opened", nil
		},
	}}}
	d.Registry().Register("diff.open", "open", h, "string")

	res := d.Execute(context.Background(), "diff.open", []any{"left.txt", 42})

	if res.Status != StatusOK {
		t.Fatalf("Status = %s, want ok (err: %v)", res.Status, res.Err)
	}
	if res.Value != "opened" {
		t.Errorf("Value = %v, want opened", res.Value)
	}
	if len(gotArgs) != 2 || gotArgs[0] != "left.txt" || gotArgs[1] != 42 {
		t.Errorf("handler args = %v", gotArgs)
	}
	if got := col.dispatched("diff.open"); len(got) != 1 || got[0] != "ok" {
		t.Errorf("metrics = %v, want [ok]", got)
	}
}

func TestExecuteRemapsLegacyID(t *testing.T) {
	d, col, _ := testDispatcher(t, nil)

	invoked := false
	h := HandlerMap{"open": {{
		Params: []Kind{KindString},
		Fn: func(_ context.Context, args []any) (any, error) {
			invoked = true
			return nil, nil
		},
	}}}
	// Only the canonical id is registered.
	d.Registry().Register("diff.open", "open", h, "void")

	res := d.Execute(context.Background(), "exthost.openDiff", []any{"a.txt"})

	if !invoked {
		t.Fatal("legacy id did not reach the canonical handler")
	}
	if res.Status != StatusOK {
		t.Errorf("Status = %s, want ok", res.Status)
	}
	// Metrics are recorded under the canonical id.
	if got := col.dispatched("diff.open"); len(got) != 1 {
		t.Errorf("canonical metrics = %v, want one entry", got)
	}
	if got := col.dispatched("exthost.openDiff"); len(got) != 0 {
		t.Errorf("legacy id leaked into metrics: %v", got)
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	d, col, buf := testDispatcher(t, nil)

	res := d.Execute(context.Background(), "no.such.command", []any{1, 2})

	if res.Status != StatusNotFound {
		t.Errorf("Status = %s, want not-found", res.Status)
	}
	if !errors.Is(res.Err, ErrUnknownCommand) {
		t.Errorf("Err = %v, want ErrUnknownCommand", res.Err)
	}
	if !strings.Contains(buf.String(), "no.such.command") {
		t.Error("unknown command was not logged")
	}
	if got := col.dispatched("no.such.command"); len(got) != 1 || got[0] != "not-found" {
		t.Errorf("metrics = %v, want [not-found]", got)
	}

	// The dispatcher keeps serving; fire-and-forget misses are not sticky.
	h := HandlerMap{"m": {{Fn: func(context.Context, []any) (any, error) { return 1, nil }}}}
	d.Registry().Register("works", "m", h, "")
	if res := d.Execute(context.Background(), "works", nil); res.Status != StatusOK {
		t.Errorf("dispatch after miss: Status = %s, want ok", res.Status)
	}
}

func TestExecuteMethodWithoutVariants(t *testing.T) {
	d, _, buf := testDispatcher(t, nil)

	h := HandlerMap{"present": noopVariant()}
	d.Registry().Register("cmd", "absent", h, "")

	res := d.Execute(context.Background(), "cmd", nil)

	if res.Status != StatusNoVariant {
		t.Errorf("Status = %s, want no-variant", res.Status)
	}
	if !errors.Is(res.Err, ErrNoVariant) {
		t.Errorf("Err = %v, want ErrNoVariant", res.Err)
	}
	if !strings.Contains(buf.String(), "absent") {
		t.Error("missing method was not logged")
	}
}

func TestExecuteSelectsVariantByArity(t *testing.T) {
	d, _, _ := testDispatcher(t, nil)

	var ran atomic.Int32
	h := HandlerMap{"m": {
		{
			Params: []Kind{KindString, KindString, KindString},
			Fn:     func(context.Context, []any) (any, error) { ran.Store(3); return nil, nil },
		},
		{
			Params: []Kind{KindString, KindString},
			Fn:     func(context.Context, []any) (any, error) { ran.Store(2); return nil, nil },
		},
	}}
	d.Registry().Register("cmd", "m", h, "")

	res := d.Execute(context.Background(), "cmd", []any{"a", "b"})

	if res.Status != StatusOK {
		t.Fatalf("Status = %s, want ok", res.Status)
	}
	if ran.Load() != 2 {
		t.Errorf("ran the %d-parameter variant, want the 2-parameter one", ran.Load())
	}
}

func TestExecuteFallsBackToFirstVariant(t *testing.T) {
	d, _, buf := testDispatcher(t, nil)

	var gotArgs []any
	h := HandlerMap{"m": {{
		Params: []Kind{KindString, KindInt, KindString},
		Fn: func(_ context.Context, args []any) (any, error) {
			gotArgs = args
			return nil, nil
		},
	}}}
	d.Registry().Register("cmd", "m", h, "")

	// One argument against a 3-parameter variant: no arity match, so the
	// first variant runs with the tail defaulted.
	res := d.Execute(context.Background(), "cmd", []any{"x"})

	if res.Status != StatusOK {
		t.Fatalf("Status = %s, want ok", res.Status)
	}
	if len(gotArgs) != 3 || gotArgs[0] != "x" || gotArgs[1] != nil || gotArgs[2] != "" {
		t.Errorf("args = %v, want [x <nil> \"\"]", gotArgs)
	}
	if !strings.Contains(buf.String(), "using first") {
		t.Error("lenient fallback was not logged")
	}
}

func TestExecuteCoercesArguments(t *testing.T) {
	d, _, _ := testDispatcher(t, nil)

	var gotLine any
	var gotPath any
	h := HandlerMap{"goto": {{
		Params: []Kind{KindString, KindInt},
		Fn: func(_ context.Context, args []any) (any, error) {
			gotPath, gotLine = args[0], args[1]
			return nil, nil
		},
	}}}
	d.Registry().Register("editor.goto", "goto", h, "void")

	// JSON transports deliver numbers as float64 and identifiers as
	// {"value": ...} wrappers.
	res := d.Execute(context.Background(), "editor.goto",
		[]any{map[string]any{"value": "main.go"}, 3.0})

	if res.Status != StatusOK {
		t.Fatalf("Status = %s, want ok", res.Status)
	}
	if gotPath != "main.go" {
		t.Errorf("path = %v (%T), want main.go", gotPath, gotPath)
	}
	if gotLine != 3 {
		t.Errorf("line = %v (%T), want int 3", gotLine, gotLine)
	}
}

func TestExecuteSoleListVariant(t *testing.T) {
	d, _, _ := testDispatcher(t, nil)

	var got any
	h := HandlerMap{"m": {{
		Params: []Kind{KindList},
		Fn: func(_ context.Context, args []any) (any, error) {
			got = args[0]
			return nil, nil
		},
	}}}
	d.Registry().Register("cmd", "m", h, "")

	d.Execute(context.Background(), "cmd", []any{"a", 2.0, true})

	list, ok := got.([]any)
	if !ok {
		t.Fatalf("sole list parameter got %T, want []any", got)
	}
	// Uncoerced: the float stays a float.
	if len(list) != 3 || list[0] != "a" || list[1] != 2.0 || list[2] != true {
		t.Errorf("list = %v", list)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	d, col, buf := testDispatcher(t, nil)

	boom := errors.New("disk on fire")
	h := HandlerMap{"m": {{
		Fn: func(context.Context, []any) (any, error) { return nil, boom },
	}}}
	d.Registry().Register("cmd", "m", h, "")

	res := d.Execute(context.Background(), "cmd", nil)

	if res.Status != StatusError {
		t.Errorf("Status = %s, want error", res.Status)
	}
	if !errors.Is(res.Err, boom) {
		t.Errorf("Err = %v, want the handler error", res.Err)
	}
	if !strings.Contains(buf.String(), "disk on fire") {
		t.Error("handler error was not logged")
	}
	if got := col.dispatched("cmd"); len(got) != 1 || got[0] != "error" {
		t.Errorf("metrics = %v, want [error]", got)
	}

	// A failing command must not take the dispatcher down.
	if res := d.Execute(context.Background(), "cmd", nil); res.Status != StatusError {
		t.Errorf("second dispatch Status = %s, want error again", res.Status)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	d, _, buf := testDispatcher(t, nil)

	h := HandlerMap{
		"bad": {{Fn: func(context.Context, []any) (any, error) { panic("handler bug") }}},
		"ok":  {{Fn: func(context.Context, []any) (any, error) { return "fine", nil }}},
	}
	d.Registry().Register("cmd.bad", "bad", h, "")
	d.Registry().Register("cmd.ok", "ok", h, "")

	res := d.Execute(context.Background(), "cmd.bad", nil)

	if res.Status != StatusError {
		t.Errorf("Status = %s, want error", res.Status)
	}
	if !errors.Is(res.Err, ErrPanic) {
		t.Errorf("Err = %v, want ErrPanic", res.Err)
	}
	if !strings.Contains(buf.String(), "handler bug") {
		t.Error("panic was not logged")
	}
	if d.Stats().TotalPanics() != 1 {
		t.Errorf("TotalPanics = %d, want 1", d.Stats().TotalPanics())
	}

	// Other commands are untouched by the panic.
	if res := d.Execute(context.Background(), "cmd.ok", nil); !res.OK() || res.Value != "fine" {
		t.Errorf("dispatch after panic = %+v, want ok/fine", res)
	}
}

func TestExecuteAsyncVariant(t *testing.T) {
	type completion struct {
		id  string
		res Result
	}
	done := make(chan completion, 1)
	d, col, _ := testDispatcher(t, func(c *Config) {
		c.OnComplete = func(id string, res Result) {
			done <- completion{id: id, res: res}
		}
	})

	h := HandlerMap{"m": {{
		Params: []Kind{KindString},
		Async:  true,
		Fn: func(_ context.Context, args []any) (any, error) {
			return "finished:" + args[0].(string), nil
		},
	}}}
	d.Registry().Register("cmd.slow", "m", h, "string")

	res := d.Execute(context.Background(), "cmd.slow", []any{"job"})
	if res.Status != StatusAsync {
		t.Fatalf("Status = %s, want async", res.Status)
	}
	if res.Value != nil {
		t.Errorf("async Execute leaked a value: %v", res.Value)
	}

	select {
	case c := <-done:
		if c.id != "cmd.slow" {
			t.Errorf("completion id = %q, want cmd.slow", c.id)
		}
		if !c.res.OK() || c.res.Value != "finished:job" {
			t.Errorf("completion = %+v, want ok/finished:job", c.res)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnComplete was never called")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		t.Errorf("Wait() = %v", err)
	}
	if got := col.dispatched("cmd.slow"); len(got) != 1 || got[0] != "ok" {
		t.Errorf("metrics = %v, want [ok]", got)
	}
}

func TestExecuteAsyncDetachedFromCallerContext(t *testing.T) {
	ctxErr := make(chan error, 1)
	d, _, _ := testDispatcher(t, nil)

	h := HandlerMap{"m": {{
		Async: true,
		Fn: func(ctx context.Context, _ []any) (any, error) {
			// Give the caller time to cancel before checking.
			time.Sleep(20 * time.Millisecond)
			ctxErr <- ctx.Err()
			return nil, nil
		},
	}}}
	d.Registry().Register("cmd", "m", h, "")

	ctx, cancel := context.WithCancel(context.Background())
	d.Execute(ctx, "cmd", nil)
	cancel()

	select {
	case err := <-ctxErr:
		if err != nil {
			t.Errorf("async variant saw caller cancellation: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("async variant never ran")
	}
}

func TestExecuteConcurrentCommands(t *testing.T) {
	d, _, _ := testDispatcher(t, nil)

	var calls atomic.Int64
	h := HandlerMap{"m": {{
		Params: []Kind{KindInt},
		Fn: func(_ context.Context, args []any) (any, error) {
			calls.Add(1)
			return args[0], nil
		},
	}}}
	for _, id := range []string{"a", "b", "c", "d"} {
		d.Registry().Register(id, "m", h, "")
	}

	const perID = 25
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		for i := 0; i < perID; i++ {
			wg.Add(1)
			go func(id string, n int) {
				defer wg.Done()
				if res := d.Execute(context.Background(), id, []any{float64(n)}); !res.OK() {
					t.Errorf("Execute(%s) = %s", id, res.Status)
				}
			}(id, i)
		}
	}
	wg.Wait()

	if calls.Load() != 4*perID {
		t.Errorf("calls = %d, want %d", calls.Load(), 4*perID)
	}
	if d.Stats().TotalDispatches() != 4*perID {
		t.Errorf("TotalDispatches = %d, want %d", d.Stats().TotalDispatches(), 4*perID)
	}
}

func TestExecuteNilVariantFunction(t *testing.T) {
	d, _, _ := testDispatcher(t, nil)

	h := HandlerMap{"m": {{Params: []Kind{KindString}}}}
	d.Registry().Register("cmd", "m", h, "")

	res := d.Execute(context.Background(), "cmd", []any{"x"})

	if res.Status != StatusError {
		t.Errorf("Status = %s, want error", res.Status)
	}
	if !errors.Is(res.Err, ErrNilVariant) {
		t.Errorf("Err = %v, want ErrNilVariant", res.Err)
	}
}
