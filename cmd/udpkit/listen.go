package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/postalsys/udpkit/internal/config"
	"github.com/postalsys/udpkit/internal/health"
	"github.com/postalsys/udpkit/internal/logging"
	"github.com/postalsys/udpkit/internal/metrics"
	"github.com/postalsys/udpkit/internal/udp"
)

func listenCmd() *cobra.Command {
	var (
		configPath  string
		port        int
		bufferSize  string
		healthAddr  string
		dumpMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print every datagram received on the port",
		Long: `Bind the port and print every datagram received until interrupted.
With --health-addr an HTTP server exposes /healthz, /ready, /stats and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("port") {
				cfg.UDP.Port = port
			}
			if bufferSize != "" {
				n, err := parseSize(bufferSize)
				if err != nil {
					return err
				}
				cfg.UDP.BufferSize = n
			}
			if healthAddr != "" {
				cfg.Health.Enabled = true
				cfg.Health.Address = healthAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runListen(cfg, dumpMetrics)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().IntVarP(&port, "port", "p", udp.DefaultPort, "Port to bind")
	cmd.Flags().StringVar(&bufferSize, "buffer-size", "", "Receive buffer size (e.g. 1024, 4KiB)")
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "Serve health and metrics endpoints on this address")
	cmd.Flags().BoolVar(&dumpMetrics, "dump-metrics", false, "Print metrics in Prometheus text format on exit")

	return cmd
}

// newRegistry returns a registry with the process collectors and udpkit
// metrics registered.
func newRegistry() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewMetricsWithRegistry(reg)
}

func newResolver(cfg *config.Config) *udp.Resolver {
	return udp.NewResolver(cfg.UDP.DefaultHost)
}

// errSessionEnded is returned when the socket closes before shutdown was
// requested.
var errSessionEnded = errors.New("socket closed unexpectedly, see log for the receive error")

// waitSession blocks until ctx is done, then stops mgr. It returns
// errSessionEnded when the session ends first.
func waitSession(ctx context.Context, mgr *udp.Manager) error {
	select {
	case <-ctx.Done():
		return mgr.Stop()
	case <-mgr.Done():
		return errSessionEnded
	}
}

func runListen(cfg *config.Config, dumpMetrics bool) error {
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	reg, m := newRegistry()

	mgr := udp.NewManager(cfg.UDPConfig(), logger, m)
	out := newPrinter(os.Stdout)
	mgr.SetReceiveListener(out.Datagram)

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	out.Status(fmt.Sprintf("Listening on %s (buffer %s)", mgr.LocalAddr(), formatSize(cfg.UDP.BufferSize)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Health.Enabled {
		hs := health.NewServer(health.ServerConfig{
			Address:      cfg.Health.Address,
			ReadTimeout:  cfg.Health.ReadTimeout,
			WriteTimeout: cfg.Health.WriteTimeout,
			Gatherer:     reg,
		}, mgr, logger)
		if err := hs.Start(); err != nil {
			mgr.Stop()
			return fmt.Errorf("failed to start health server: %w", err)
		}
		out.Status(fmt.Sprintf("Health: http://%s/healthz", hs.Address()))

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return hs.Stop(shutdownCtx)
		})
	}

	g.Go(func() error {
		return waitSession(ctx, mgr)
	})

	err := g.Wait()

	out.Summary(mgr.Stats())
	if dumpMetrics {
		if derr := writeMetrics(os.Stdout, reg); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
