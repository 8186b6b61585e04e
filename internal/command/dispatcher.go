package command

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dshills/hostbridge/internal/logging"
	"github.com/dshills/hostbridge/internal/metrics"
)

// CompletionFunc receives the outcome of an asynchronous variant. The id
// is the canonical command id. Called from the variant's goroutine.
type CompletionFunc func(id string, res Result)

// Config holds dispatcher configuration options.
type Config struct {
	// RecoverFromPanic wraps handler execution in panic recovery.
	RecoverFromPanic bool

	// EnableStats collects per-command dispatch statistics.
	EnableStats bool

	// OnComplete receives results of asynchronous variants. Optional;
	// without it async outcomes are only logged.
	OnComplete CompletionFunc

	// Logger defaults to the shared bridge logger.
	Logger *logging.Logger

	// Metrics defaults to the nop collector.
	Metrics metrics.Collector
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecoverFromPanic: true,
		EnableStats:      false,
	}
}

// WithStats returns a copy of the config with statistics enabled.
func (c Config) WithStats() Config {
	c.EnableStats = true
	return c
}

// WithPanicRecovery returns a copy of the config with panic recovery set.
func (c Config) WithPanicRecovery(recover bool) Config {
	c.RecoverFromPanic = recover
	return c
}

// Dispatcher executes commands against a Registry. Execute is safe for
// concurrent use; the registry is the only shared state and it is
// read-mostly. Two concurrent invocations of the same command id are not
// ordered; interleaving safety belongs to the handler.
type Dispatcher struct {
	registry   *Registry
	cfg        Config
	log        *logging.Logger
	metrics    metrics.Collector
	stats      *Stats
	onComplete CompletionFunc

	inflight sync.WaitGroup
}

// New creates a Dispatcher over the given registry.
func New(registry *Registry, cfg Config) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	col := cfg.Metrics
	if col == nil {
		col = metrics.Nop()
	}

	d := &Dispatcher{
		registry:   registry,
		cfg:        cfg,
		log:        logger.WithComponent("command"),
		metrics:    col,
		onComplete: cfg.OnComplete,
	}
	if cfg.EnableStats {
		d.stats = NewStats()
	}
	return d
}

// NewWithDefaults creates a Dispatcher with a fresh registry and default
// configuration.
func NewWithDefaults() *Dispatcher {
	return New(NewRegistry(), DefaultConfig())
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Stats returns the statistics collector, or nil when disabled.
func (d *Dispatcher) Stats() *Stats {
	return d.stats
}

// Execute dispatches a command by id with an ordered argument list.
//
// Execute is the dispatch boundary: every failure mode (unknown id,
// variantless method, handler error, handler panic) is logged, counted,
// and folded into the returned Result. Nothing propagates, so one broken
// command cannot disturb the dispatcher or other in-flight commands.
func (d *Dispatcher) Execute(ctx context.Context, id string, args []any) Result {
	start := time.Now()

	canonical := Canonical(id)
	if canonical != id {
		d.log.Debug("command %q remapped to %q", id, canonical)
	}

	reg, ok := d.registry.Get(canonical)
	if !ok {
		d.log.Info("command not registered, dropping: %s", canonical)
		return d.finish(canonical, start, Result{
			Status: StatusNotFound,
			Err:    fmt.Errorf("%w: %q", ErrUnknownCommand, canonical),
		})
	}

	variants := reg.Handler.Method(reg.Method)
	if len(variants) == 0 {
		d.log.Error("command %s: method %q declares no variants", canonical, reg.Method)
		return d.finish(canonical, start, Result{
			Status: StatusNoVariant,
			Err:    fmt.Errorf("%w: %s.%s", ErrNoVariant, canonical, reg.Method),
		})
	}

	variant, exact := selectVariant(variants, len(args))
	if !exact {
		// Leniency inherited from the protocol: running the first
		// variant beats rejecting the call outright.
		d.log.Debug("command %s: no %d-parameter variant, using first of %d",
			canonical, len(args), len(variants))
	}

	callArgs := buildArgs(variant, args)

	if variant.Async {
		d.inflight.Add(1)
		// The variant outlives this call; the caller's cancellation
		// must not apply to it.
		actx := context.WithoutCancel(ctx)
		go func() {
			defer d.inflight.Done()
			res := d.invoke(actx, canonical, variant, callArgs)
			d.finish(canonical, start, res)
			if d.onComplete != nil {
				d.onComplete(canonical, res)
			}
		}()
		return Result{Status: StatusAsync}
	}

	return d.finish(canonical, start, d.invoke(ctx, canonical, variant, callArgs))
}

// Wait blocks until all in-flight asynchronous variants finish, bounded
// by the context.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// invoke runs one variant, converting panics into error results when
// recovery is enabled.
func (d *Dispatcher) invoke(ctx context.Context, id string, v Variant, args []any) (res Result) {
	if d.cfg.RecoverFromPanic {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				n := runtime.Stack(stack, false)
				d.log.Error("command %s: handler panic: %v\n%s", id, r, stack[:n])
				if d.stats != nil {
					d.stats.RecordPanic(id)
				}
				res = Result{Status: StatusError, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()
	}

	if v.Fn == nil {
		d.log.Error("command %s: selected variant has no function", id)
		return Result{Status: StatusError, Err: fmt.Errorf("%w: %s", ErrNilVariant, id)}
	}

	value, err := v.Fn(ctx, args)
	if err != nil {
		d.log.Error("command %s failed: %v", id, err)
		return Result{Status: StatusError, Err: err}
	}
	return Result{Status: StatusOK, Value: value}
}

// finish records metrics and statistics for a completed dispatch.
func (d *Dispatcher) finish(id string, start time.Time, res Result) Result {
	took := time.Since(start)
	d.metrics.CommandDispatch(id, res.outcome(), took)
	if d.stats != nil {
		d.stats.RecordDispatch(id, took, res.Status)
	}
	return res
}

// selectVariant returns the variant whose parameter count equals the
// argument count, or the first variant when none matches.
func selectVariant(variants []Variant, argc int) (Variant, bool) {
	for _, v := range variants {
		if len(v.Params) == argc {
			return v, true
		}
	}
	return variants[0], false
}
