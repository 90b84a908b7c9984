package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/udpkit/internal/logging"
	"github.com/postalsys/udpkit/internal/udp"
)

// sendRequest is one parsed invocation of the send command.
type sendRequest struct {
	mode   string // direct, broadcast, hotspot
	text   string
	raw    []byte
	fields map[string]any
}

func sendCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		broadcast  bool
		hotspot    bool
		kvs        []string
		hexInput   bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Send one datagram",
		Long: `Send one datagram and exit.

The message is sent as UTF-8 text. With --hex it is decoded from hex and sent
as raw bytes. With --kv the pairs are sent as a flat JSON object.`,
		Example: `  udpkit send --host 192.168.1.20 hello
  udpkit send --broadcast --kv cmd=ping --kv seq=1
  udpkit send --hotspot --hex 68656c6c6f`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			if host != "" {
				if !udp.IsValidIPAddress(host) {
					return fmt.Errorf("invalid host %q: not an IPv4 address", host)
				}
				cfg.UDP.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.UDP.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			req, err := buildSendRequest(args, kvs, hexInput, broadcast, hotspot)
			if err != nil {
				return err
			}

			logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
			_, m := newRegistry()
			mgr := udp.NewManager(cfg.UDPConfig(), logger, m)
			if err := mgr.Start(); err != nil {
				return fmt.Errorf("failed to start: %w", err)
			}
			defer mgr.Stop()

			size, err := dispatch(mgr, req)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := mgr.Flush(ctx); err != nil {
				return fmt.Errorf("send did not complete: %w", err)
			}

			if st := mgr.Stats(); st.SendFaults > 0 || st.DatagramsSent == 0 {
				return fmt.Errorf("send to %s:%d failed", mgr.Host(), mgr.Port())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s:%d\n", formatSize(size), mgr.Host(), mgr.Port())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().StringVar(&host, "host", "", "Target IPv4 address")
	cmd.Flags().IntVarP(&port, "port", "p", udp.DefaultPort, "Port to bind and send to")
	cmd.Flags().BoolVarP(&broadcast, "broadcast", "b", false, "Send to the local broadcast address")
	cmd.Flags().BoolVar(&hotspot, "hotspot", false, "Send to the hotspot broadcast address")
	cmd.Flags().StringArrayVar(&kvs, "kv", nil, "Key=value pair, repeatable; sent as JSON")
	cmd.Flags().BoolVar(&hexInput, "hex", false, "Message is hex-encoded bytes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "How long to wait for the send")
	cmd.MarkFlagsMutuallyExclusive("broadcast", "hotspot")
	cmd.MarkFlagsMutuallyExclusive("broadcast", "host")
	cmd.MarkFlagsMutuallyExclusive("hotspot", "host")
	cmd.MarkFlagsMutuallyExclusive("kv", "hex")

	return cmd
}

func buildSendRequest(args, kvs []string, hexInput, broadcast, hotspot bool) (*sendRequest, error) {
	req := &sendRequest{mode: "direct"}
	switch {
	case broadcast:
		req.mode = "broadcast"
	case hotspot:
		req.mode = "hotspot"
	}

	if len(kvs) > 0 {
		if len(args) > 0 {
			return nil, errors.New("message argument cannot be combined with --kv")
		}
		fields, err := parseKV(kvs)
		if err != nil {
			return nil, err
		}
		req.fields = fields
		return req, nil
	}

	if len(args) == 0 {
		return nil, errors.New("nothing to send: pass a message or --kv pairs")
	}

	if hexInput {
		raw, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			return nil, fmt.Errorf("invalid hex message: %w", err)
		}
		req.raw = raw
		return req, nil
	}

	req.text = args[0]
	return req, nil
}

// parseKV turns key=value pairs into a payload map. Later keys win.
func parseKV(pairs []string) (map[string]any, error) {
	fields := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --kv %q: want key=value", p)
		}
		fields[k] = v
	}
	return fields, nil
}

// dispatch queues req on mgr and returns the payload size. A map that
// cannot be encoded is not queued.
func dispatch(mgr *udp.Manager, req *sendRequest) (int, error) {
	switch {
	case req.fields != nil:
		data, err := udp.EncodeMap(req.fields)
		if err != nil {
			return 0, err
		}
		switch req.mode {
		case "broadcast":
			mgr.SendBroadcastMap(req.fields)
		case "hotspot":
			mgr.SendToHotspotMap(req.fields)
		default:
			mgr.SendMap(req.fields)
		}
		return len(data), nil

	case req.raw != nil:
		switch req.mode {
		case "broadcast":
			mgr.SendBroadcastBytes(req.raw)
		case "hotspot":
			mgr.SendToHotspotBytes(req.raw)
		default:
			mgr.SendBytes(req.raw)
		}
		return len(req.raw), nil

	default:
		switch req.mode {
		case "broadcast":
			mgr.SendBroadcast(req.text)
		case "hotspot":
			mgr.SendToHotspot(req.text)
		default:
			mgr.Send(req.text)
		}
		return len(req.text), nil
	}
}
