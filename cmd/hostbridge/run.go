package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dshills/hostbridge/internal/bridge"
	"github.com/dshills/hostbridge/internal/host"
	"github.com/dshills/hostbridge/internal/logging"
	"github.com/dshills/hostbridge/internal/metrics"
	"github.com/dshills/hostbridge/internal/notify"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		port        int
		socketPath  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the extension host and supervise it until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != 0 && socketPath != "" {
				return errors.New("--port and --socket are mutually exclusive")
			}

			opts := flags.options()
			opts.Notifier = notify.Terminal{}
			opts.WatchConfig = true

			var prom *metrics.Prometheus
			if metricsAddr != "" {
				prom = metrics.NewPrometheus("hostbridge")
				opts.Metrics = prom
			}

			b, err := bridge.New(opts)
			if err != nil {
				return err
			}

			var transport host.Transport
			switch {
			case socketPath != "":
				transport = host.SocketTransport{Path: socketPath}
			case port != 0:
				transport = host.TCPTransport{Port: port}
			default:
				auto, err := host.AutoTCP()
				if err != nil {
					return err
				}
				transport = auto
			}

			if prom != nil {
				go serveMetrics(metricsAddr, prom, b.Logger())
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "session %s on %s\n", b.SessionID(), transport)
			return b.Run(ctx, transport)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0,
		"loopback TCP port the host connects back on (default: pick a free one)")
	cmd.Flags().StringVar(&socketPath, "socket", "",
		"unix socket path the host connects back on instead of TCP")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address, e.g. 127.0.0.1:9090")

	return cmd
}

// serveMetrics exposes the collector's registry for the life of the process.
func serveMetrics(addr string, prom *metrics.Prometheus, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prom.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Warn("metrics server: %v", err)
	}
}
