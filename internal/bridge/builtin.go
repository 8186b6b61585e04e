package bridge

import (
	"context"

	"github.com/dshills/hostbridge/internal/command"
)

// StatusReport is the value of the bridge.status builtin command.
type StatusReport struct {
	SessionID string `json:"sessionId"`
	Host      string `json:"host"`
	PID       int    `json:"pid,omitempty"`
	UptimeMS  int64  `json:"uptimeMs,omitempty"`
	EnvFresh  bool   `json:"envFresh"`
	Commands  int    `json:"commands"`
}

// registerBuiltins installs the bridge's own diagnostic commands. They are
// ordinary registrations; an embedder registering the same id wins.
func (b *Bridge) registerBuiltins() {
	h := command.HandlerMap{
		"status": {{
			Fn: func(context.Context, []any) (any, error) {
				return b.statusReport(), nil
			},
		}},
		"commands": {{
			Fn: func(context.Context, []any) (any, error) {
				return b.dispatcher.Registry().List(), nil
			},
		}},
	}
	reg := b.dispatcher.Registry()
	reg.Register("bridge.status", "status", h, "StatusReport")
	reg.Register("bridge.commands", "commands", h, "[]string")
}

func (b *Bridge) statusReport() StatusReport {
	rep := StatusReport{
		SessionID: b.sessionID,
		Host:      b.manager.Status().String(),
		EnvFresh:  b.reconciler.Fresh(),
		Commands:  b.dispatcher.Registry().Count(),
	}
	if h := b.manager.Handle(); h != nil {
		rep.PID = h.PID()
		rep.UptimeMS = h.Uptime().Milliseconds()
	}
	return rep
}
