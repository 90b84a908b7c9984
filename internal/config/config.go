// Package config provides configuration parsing and validation for udpkit.
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postalsys/udpkit/internal/udp"
)

// Config represents the complete udpkit configuration.
type Config struct {
	UDP    UDPConfig    `yaml:"udp"`
	Log    LogConfig    `yaml:"log"`
	Health HealthConfig `yaml:"health"`
}

// UDPConfig contains socket and send settings.
type UDPConfig struct {
	Host              string        `yaml:"host"`                // initial target host
	Port              int           `yaml:"port"`                // bind and target port
	DefaultHost       string        `yaml:"default_host"`        // fallback broadcast address
	HotspotHost       string        `yaml:"hotspot_host"`        // hotspot broadcast address
	BufferSize        int           `yaml:"buffer_size"`         // receive buffer in bytes
	Workers           int           `yaml:"workers"`             // 0 = 2*NumCPU+1
	WorkerIdleTimeout time.Duration `yaml:"worker_idle_timeout"` // idle send worker lifetime
	ReuseAddress      bool          `yaml:"reuse_address"`       // SO_REUSEADDR
	TTL               int           `yaml:"ttl"`                 // 0 = system default
	SendRate          float64       `yaml:"send_rate"`           // datagrams/s, 0 = unlimited
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// HealthConfig defines the health check HTTP server.
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		UDP: UDPConfig{
			Host:              udp.DefaultHost,
			Port:              udp.DefaultPort,
			DefaultHost:       udp.DefaultHost,
			HotspotHost:       udp.DefaultHotspotHost,
			BufferSize:        udp.DefaultBufferSize,
			WorkerIdleTimeout: udp.DefaultWorkerIdleTimeout,
			ReuseAddress:      true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Health: HealthConfig{
			Enabled:      false,
			Address:      "127.0.0.1:8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	cfg := Default()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envVarRegex matches ${VAR} or $VAR patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces environment variable references with their values.
func expandEnvVars(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}

		// ${VAR:-default}
		if idx := strings.Index(name, ":-"); idx != -1 {
			if val, ok := os.LookupEnv(name[:idx]); ok {
				return val
			}
			return name[idx+2:]
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	u := c.UDP
	if u.Host != "" && !udp.IsValidIPAddress(u.Host) {
		errs = append(errs, fmt.Sprintf("udp.host: invalid IPv4 address: %s", u.Host))
	}
	if u.Port < 1 || u.Port > 65535 {
		errs = append(errs, fmt.Sprintf("udp.port must be between 1 and 65535, got %d", u.Port))
	}
	if !udp.IsValidIPAddress(u.DefaultHost) {
		errs = append(errs, fmt.Sprintf("udp.default_host: invalid IPv4 address: %s", u.DefaultHost))
	}
	if !udp.IsValidIPAddress(u.HotspotHost) {
		errs = append(errs, fmt.Sprintf("udp.hotspot_host: invalid IPv4 address: %s", u.HotspotHost))
	}
	if u.BufferSize < 1 || u.BufferSize > 65507 {
		errs = append(errs, "udp.buffer_size must be between 1 and 65507")
	}
	if u.Workers < 0 {
		errs = append(errs, "udp.workers must not be negative")
	}
	if u.WorkerIdleTimeout <= 0 {
		errs = append(errs, "udp.worker_idle_timeout must be positive")
	}
	if u.TTL < 0 || u.TTL > 255 {
		errs = append(errs, "udp.ttl must be between 0 and 255")
	}
	if u.SendRate < 0 {
		errs = append(errs, "udp.send_rate must not be negative")
	}

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log.level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log.format: %s (must be text or json)", c.Log.Format))
	}

	if c.Health.Enabled {
		if _, _, err := net.SplitHostPort(c.Health.Address); err != nil {
			errs = append(errs, fmt.Sprintf("health.address: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func isValidLogFormat(format string) bool {
	switch format {
	case "text", "json":
		return true
	default:
		return false
	}
}

// UDPConfig maps the udp section onto a udp.Config.
func (c *Config) UDPConfig() udp.Config {
	return udp.Config{
		Host:                c.UDP.Host,
		Port:                c.UDP.Port,
		DefaultHost:         c.UDP.DefaultHost,
		HotspotHost:         c.UDP.HotspotHost,
		BufferSize:          c.UDP.BufferSize,
		Workers:             c.UDP.Workers,
		WorkerIdleTimeout:   c.UDP.WorkerIdleTimeout,
		DisableReuseAddress: !c.UDP.ReuseAddress,
		TTL:                 c.UDP.TTL,
		SendRate:            c.UDP.SendRate,
	}
}

// MarshalYAML writes durations as strings so the output parses back.
func (u UDPConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Host              string  `yaml:"host"`
		Port              int     `yaml:"port"`
		DefaultHost       string  `yaml:"default_host"`
		HotspotHost       string  `yaml:"hotspot_host"`
		BufferSize        int     `yaml:"buffer_size"`
		Workers           int     `yaml:"workers"`
		WorkerIdleTimeout string  `yaml:"worker_idle_timeout"`
		ReuseAddress      bool    `yaml:"reuse_address"`
		TTL               int     `yaml:"ttl"`
		SendRate          float64 `yaml:"send_rate"`
	}{
		u.Host, u.Port, u.DefaultHost, u.HotspotHost, u.BufferSize, u.Workers,
		u.WorkerIdleTimeout.String(), u.ReuseAddress, u.TTL, u.SendRate,
	}, nil
}

// MarshalYAML writes durations as strings so the output parses back.
func (h HealthConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Enabled      bool   `yaml:"enabled"`
		Address      string `yaml:"address"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	}{h.Enabled, h.Address, h.ReadTimeout.String(), h.WriteTimeout.String()}, nil
}

// String returns the config as YAML (for debugging).
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}
