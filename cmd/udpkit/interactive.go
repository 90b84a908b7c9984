package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/postalsys/udpkit/internal/health"
	"github.com/postalsys/udpkit/internal/logging"
	"github.com/postalsys/udpkit/internal/udp"
	"github.com/postalsys/udpkit/internal/wizard"
)

func interactiveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"ui"},
		Short:   "Send and receive from an interactive prompt",
		Long: `Pick the endpoint and send mode from a form, then type messages.
Received datagrams are printed while the prompt is open.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New("interactive mode requires a terminal")
			}

			base, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			w := wizard.New()
			res, err := w.Run(base)
			if err != nil {
				return err
			}

			return runInteractive(w, res)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	return cmd
}

func runInteractive(w *wizard.Wizard, res *wizard.Result) error {
	cfg := res.Config
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	reg, m := newRegistry()

	mgr := udp.NewManager(cfg.UDPConfig(), logger, m)
	out := newPrinter(os.Stdout)
	mgr.SetReceiveListener(out.Datagram)

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer mgr.Stop()

	if cfg.Health.Enabled {
		hs := health.NewServer(health.ServerConfig{
			Address:      cfg.Health.Address,
			ReadTimeout:  cfg.Health.ReadTimeout,
			WriteTimeout: cfg.Health.WriteTimeout,
			Gatherer:     reg,
		}, mgr, logger)
		if err := hs.Start(); err != nil {
			return fmt.Errorf("failed to start health server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			hs.Stop(ctx)
		}()
	}

	for {
		msg, ok, err := w.AskMessage(res.Mode)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if _, err := dispatch(mgr, &sendRequest{mode: res.Mode, text: msg}); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mgr.Flush(ctx); err != nil {
		logger.Warn("pending sends dropped on exit", logging.KeyError, err)
	}

	out.Summary(mgr.Stats())
	return nil
}
