package bridge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dshills/hostbridge/internal/host"
	"github.com/dshills/hostbridge/internal/node"
)

// Check is one doctor probe: a named go/no-go with human-readable detail.
type Check struct {
	Name string
	OK   bool
	// Info marks advisory checks; they color the report but never fail it.
	Info   bool
	Detail string
}

// Report is the result of Diagnose.
type Report struct {
	Checks []Check
}

// OK reports whether a start attempt would get past setup.
func (r Report) OK() bool {
	for _, c := range r.Checks {
		if !c.Info && !c.OK {
			return false
		}
	}
	return true
}

// Diagnose probes everything a start needs without starting anything.
// Unlike a real start it does not stop at the first problem, so the report
// names every finding at once. The only network touch is the mirror probe,
// and only when provisioning would need the mirror.
func (b *Bridge) Diagnose(ctx context.Context) Report {
	return Report{Checks: []Check{
		b.checkConfig(),
		b.checkRuntime(ctx),
		b.checkPayload(),
		b.checkSnapshot(),
		b.checkLastFailure(),
	}}
}

func (b *Bridge) checkConfig() Check {
	c := Check{Name: "config", Info: true, OK: true}
	if _, err := os.Stat(b.configPath); err != nil {
		c.Detail = b.configPath + " (not present, using defaults)"
	} else {
		c.Detail = b.configPath
	}
	return c
}

func (b *Bridge) checkRuntime(ctx context.Context) Check {
	c := Check{Name: "runtime"}

	path, err := b.locator.Resolve()
	if err != nil {
		return b.checkProvisioning(ctx, c)
	}

	ver, err := node.DetectVersion(ctx, path)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	min := b.cfg.MinVersion()
	if err := node.CheckVersion(ver, min); err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("node %s at %s (minimum %s)", ver, path, min)
	return c
}

// checkProvisioning decides whether a start could install the runtime that
// is currently missing.
func (b *Bridge) checkProvisioning(ctx context.Context, c Check) Check {
	payloadDir := b.cfg.Runtime.PayloadDir

	if script := node.FindInstaller(payloadDir, runtime.GOOS); script != "" {
		c.OK = true
		c.Detail = fmt.Sprintf("not installed; offline installer %s would run", filepath.Base(script))
		return c
	}

	mpath := node.FindManifest(payloadDir)
	if mpath == "" {
		c.Detail = "no runtime found and the payload ships no installer or manifest"
		return c
	}
	m, err := node.LoadManifest(mpath)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	name, err := m.ArchiveFor(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	url := m.ArchiveURL(name)
	if err := b.installer.Probe(ctx, url); err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("not installed; %s is reachable for download", url)
	return c
}

func (b *Bridge) checkPayload() Check {
	c := Check{Name: "payload"}

	p, err := host.ResolvePayload(b.cfg.Runtime.PayloadDir, b.cfg.Host.Entry)
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	c.Detail = "entry " + p.Entry
	if constraint, ok := host.EnginesNode(p.Dir); ok {
		c.Detail += fmt.Sprintf(" (declares node %s)", constraint)
	}
	return c
}

func (b *Bridge) checkSnapshot() Check {
	c := Check{Name: "shell env", Info: true, OK: true}

	age, ok := b.reconciler.Age()
	switch {
	case !ok:
		c.Detail = "no snapshot yet; the first start will capture one"
	case b.reconciler.Fresh():
		c.Detail = fmt.Sprintf("snapshot fresh (%s old) at %s", age.Round(time.Second), b.reconciler.CachePath())
	default:
		c.Detail = fmt.Sprintf("snapshot stale (%s old); the next start will recapture", age.Round(time.Second))
	}
	return c
}

func (b *Bridge) checkLastFailure() Check {
	c := Check{Name: "last failure", Info: true, OK: true}
	if f := b.manager.LastFailure(); f != nil {
		c.OK = false
		c.Detail = f.Error()
		return c
	}
	c.Detail = "none recorded"
	return c
}
