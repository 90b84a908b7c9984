// Package main provides the CLI entry point for udpkit.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/postalsys/udpkit/internal/config"
)

var (
	// Version is set at build time
	Version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "udpkit",
		Short: "udpkit - UDP messaging on the local network",
		Long: `udpkit sends and receives short UDP datagrams on the local network.

It binds one port for both listening and sending, can target a single
host, the subnet broadcast address or a phone hotspot, and prints every
datagram it receives.`,
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(listenCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(broadcastAddressCmd())
	rootCmd.AddCommand(interactiveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads path, or returns defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func broadcastAddressCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "broadcast-address",
		Short: "Print the local broadcast address",
		Long: `Print the directed broadcast address of the preferred local interface.
A wireless interface wins over others. Falls back to the configured default
host when no interface qualifies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), newResolver(cfg).ComputeBroadcastAddress())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	return cmd
}
