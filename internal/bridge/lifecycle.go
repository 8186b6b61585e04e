package bridge

import (
	"context"

	"github.com/dshills/hostbridge/internal/host"
)

// Run starts the extension host on the given transport and blocks until
// the context is canceled, Shutdown is called, or the host exits on its
// own. Teardown (host stop with escalation, async command drain) runs
// before Run returns, so a returned Run has released everything. A
// nonzero self-exit is reported as *HostExitError.
//
// Run is single-shot: a Bridge whose Run has returned is done serving.
func (b *Bridge) Run(ctx context.Context, transport host.Transport) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer b.running.Store(false)

	h, err := b.manager.Start(ctx, transport)
	if err != nil {
		b.teardown()
		return err
	}

	select {
	case <-ctx.Done():
		b.log.Info("shutdown requested: %v", ctx.Err())
	case <-b.done:
		b.log.Info("shutdown requested")
	case <-h.Done():
		// Self-exit; the monitor already cleared the manager state.
		if code, _ := h.ExitCode(); code != 0 {
			b.teardown()
			return &HostExitError{Code: code}
		}
		b.log.Info("host exited on its own")
	}

	b.teardown()
	return nil
}

// Shutdown asks a blocked Run to return. Safe from any goroutine,
// idempotent, returns immediately; Run performs the actual teardown.
func (b *Bridge) Shutdown() {
	b.stopOnce.Do(func() { close(b.done) })
}

// teardown releases everything in reverse bootstrap order. Every step is
// bounded; teardown can never hang an IDE exit.
func (b *Bridge) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	b.manager.Stop(ctx)

	if err := b.dispatcher.Wait(ctx); err != nil {
		b.log.Warn("async commands still running at shutdown: %v", err)
	}

	if err := b.Close(); err != nil {
		b.log.Warn("close: %v", err)
	}
}

// Close releases resources held since New, currently the config watcher.
// Callers that never Run must Close; Run closes during teardown.
func (b *Bridge) Close() error {
	if b.watcher == nil {
		return nil
	}
	return b.watcher.Close()
}
