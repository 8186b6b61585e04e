// Package bridge assembles runtime provisioning, shell environment
// reconciliation, command dispatch, and the host process manager behind a
// single facade the CLI and embedders drive.
package bridge

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/hostbridge/internal/command"
	"github.com/dshills/hostbridge/internal/config"
	"github.com/dshills/hostbridge/internal/host"
	"github.com/dshills/hostbridge/internal/logging"
	"github.com/dshills/hostbridge/internal/metrics"
	"github.com/dshills/hostbridge/internal/node"
	"github.com/dshills/hostbridge/internal/notify"
	"github.com/dshills/hostbridge/internal/shellenv"
)

// shutdownTimeout bounds the whole teardown: host stop escalation plus the
// async command drain.
const shutdownTimeout = 10 * time.Second

// Options configures a Bridge.
type Options struct {
	// ConfigPath is the configuration file. Empty selects
	// config.DefaultPath(). A missing file is fine; a broken one is not.
	ConfigPath string

	// LogLevel overrides the configured log level when non-empty, and
	// pins it: config file reloads cannot change a pinned level.
	LogLevel string

	// LogOutput overrides the log destination. Defaults to the rotating
	// file the config names, or stderr.
	LogOutput io.Writer

	// Notifier surfaces user-facing messages. Defaults to a notifier
	// writing through the bridge logger.
	Notifier notify.Notifier

	// Metrics receives operational events. Defaults to the nop collector.
	Metrics metrics.Collector

	// WatchConfig enables live reload of reloadable settings (currently
	// the log level) when the config file changes.
	WatchConfig bool
}

// Bridge wires the supervisor components together and owns their
// lifecycle. Construct with New, optionally Run once, then Close.
type Bridge struct {
	opts       Options
	cfg        config.Config
	configPath string
	log        *logging.Logger

	sessionID  string
	locator    *node.Locator
	installer  *node.Installer
	reconciler *shellenv.Reconciler
	dispatcher *command.Dispatcher
	manager    *host.Manager
	watcher    *config.Watcher

	running  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Bridge from the given options, initializing components in
// dependency order. Failures are reported as *InitError naming the
// component.
func New(opts Options) (*Bridge, error) {
	b := &Bridge{
		opts: opts,
		done: make(chan struct{}),
	}
	if err := b.bootstrap(); err != nil {
		return nil, err
	}
	return b, nil
}

// bootstrap initializes all components in dependency order.
func (b *Bridge) bootstrap() error {
	// 1. Config. A missing file yields defaults; a broken file is a user
	// error the caller must see.
	b.configPath = b.opts.ConfigPath
	if b.configPath == "" {
		b.configPath = config.DefaultPath()
	}
	cfg, err := config.Load(b.configPath)
	if err != nil {
		return &InitError{Component: "config", Err: err}
	}
	b.cfg = cfg

	// 2. Logging, before anything that logs.
	level := cfg.Log.Level
	if b.opts.LogLevel != "" {
		level = b.opts.LogLevel
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(level)
	switch {
	case b.opts.LogOutput != nil:
		logCfg.Output = b.opts.LogOutput
	case cfg.Log.File != "":
		logCfg.Output = logging.NewRotatingWriter(cfg.Log.File, 10, 5)
	default:
		logCfg.Output = os.Stderr
	}
	logger := logging.New(logCfg)
	logging.SetDefault(logger)
	b.log = logger.WithComponent("bridge")

	if b.opts.Notifier == nil {
		b.opts.Notifier = notify.NewLog(logger)
	}
	if b.opts.Metrics == nil {
		b.opts.Metrics = metrics.Nop()
	}

	// 3. Session identity, exported to the child.
	b.sessionID = uuid.NewString()

	// 4. Runtime resolution and provisioning.
	b.locator = node.NewLocator(cfg.Runtime.BundledDir, cfg.Runtime.InstallDir)
	b.installer = node.NewInstaller(b.locator, cfg.Runtime.PayloadDir, logger, b.opts.Metrics)

	// 5. Shell environment snapshot.
	b.reconciler = shellenv.NewReconciler(shellenv.Config{
		CachePath: cfg.Env.SnapshotPath,
		MaxAge:    cfg.Env.SnapshotMaxAge.Std(),
		Logger:    logger,
		Metrics:   b.opts.Metrics,
	})

	// 6. Command dispatch.
	dcfg := command.DefaultConfig().WithStats()
	dcfg.Logger = logger
	dcfg.Metrics = b.opts.Metrics
	b.dispatcher = command.New(command.NewRegistry(), dcfg)
	b.registerBuiltins()

	// 7. Host process manager.
	b.manager = host.NewManager(host.Config{
		Runtime:     b.installer,
		Env:         b.reconciler,
		PayloadDir:  cfg.Runtime.PayloadDir,
		Entry:       cfg.Host.Entry,
		MinVersion:  cfg.MinVersion(),
		GracePeriod: cfg.Host.GracePeriod.Std(),
		Proxy: host.ProxyConfig{
			HTTPProxy:  cfg.Proxy.HTTPProxy,
			HTTPSProxy: cfg.Proxy.HTTPSProxy,
			NoProxy:    cfg.Proxy.NoProxy,
		},
		SessionID: b.sessionID,
		Notifier:  b.opts.Notifier,
		Logger:    logger,
		Metrics:   b.opts.Metrics,
	})

	// 8. Config watcher. Failure to watch is not failure to run.
	if b.opts.WatchConfig {
		w, werr := config.NewWatcher(b.configPath, logger, b.applyConfig)
		if werr != nil {
			b.log.Warn("config watch unavailable: %v", werr)
		} else {
			b.watcher = w
		}
	}

	b.log.Debug("bridge ready: session=%s config=%s", b.sessionID, b.configPath)
	return nil
}

// applyConfig applies the reloadable subset of a changed configuration.
// Structural settings (payload, runtime dirs, proxy) need a new Bridge and
// are left alone.
func (b *Bridge) applyConfig(cfg config.Config) {
	if b.opts.LogLevel != "" {
		return
	}
	b.log.SetLevel(logging.ParseLevel(cfg.Log.Level))
	b.log.Info("log level now %s", cfg.Log.Level)
}

// Config returns the loaded configuration.
func (b *Bridge) Config() config.Config { return b.cfg }

// ConfigPath returns the configuration file location in effect.
func (b *Bridge) ConfigPath() string { return b.configPath }

// SessionID returns the id exported to the child as HOSTBRIDGE_SESSION_ID.
func (b *Bridge) SessionID() string { return b.sessionID }

// Logger returns the bridge logger.
func (b *Bridge) Logger() *logging.Logger { return b.log }

// Manager returns the host process manager.
func (b *Bridge) Manager() *host.Manager { return b.manager }

// Dispatcher returns the command dispatcher.
func (b *Bridge) Dispatcher() *command.Dispatcher { return b.dispatcher }

// Reconciler returns the shell environment reconciler.
func (b *Bridge) Reconciler() *shellenv.Reconciler { return b.reconciler }

// Installer returns the runtime provisioner.
func (b *Bridge) Installer() *node.Installer { return b.installer }

// Locator returns the runtime locator.
func (b *Bridge) Locator() *node.Locator { return b.locator }

// IsRunning reports whether Run is active.
func (b *Bridge) IsRunning() bool { return b.running.Load() }
