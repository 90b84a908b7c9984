package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.UDP.Port != 9090 {
		t.Errorf("UDP.Port = %d, want 9090", cfg.UDP.Port)
	}
	if cfg.UDP.Host != "255.255.255.255" {
		t.Errorf("UDP.Host = %s, want 255.255.255.255", cfg.UDP.Host)
	}
	if cfg.UDP.HotspotHost != "192.168.43.255" {
		t.Errorf("UDP.HotspotHost = %s, want 192.168.43.255", cfg.UDP.HotspotHost)
	}
	if cfg.UDP.BufferSize != 1024 {
		t.Errorf("UDP.BufferSize = %d, want 1024", cfg.UDP.BufferSize)
	}
	if !cfg.UDP.ReuseAddress {
		t.Error("UDP.ReuseAddress should default to true")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %s, want info", cfg.Log.Level)
	}
	if cfg.Health.Enabled {
		t.Error("Health should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestParse_ValidConfig(t *testing.T) {
	yamlConfig := `
udp:
  host: "192.168.1.255"
  port: 9191
  hotspot_host: "192.168.43.255"
  buffer_size: 2048
  workers: 4
  worker_idle_timeout: 10s
  reuse_address: false
  ttl: 4
  send_rate: 50

log:
  level: "debug"
  format: "json"

health:
  enabled: true
  address: "127.0.0.1:9100"
  read_timeout: 5s
`

	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.UDP.Host != "192.168.1.255" {
		t.Errorf("UDP.Host = %s, want 192.168.1.255", cfg.UDP.Host)
	}
	if cfg.UDP.Port != 9191 {
		t.Errorf("UDP.Port = %d, want 9191", cfg.UDP.Port)
	}
	if cfg.UDP.BufferSize != 2048 {
		t.Errorf("UDP.BufferSize = %d, want 2048", cfg.UDP.BufferSize)
	}
	if cfg.UDP.Workers != 4 {
		t.Errorf("UDP.Workers = %d, want 4", cfg.UDP.Workers)
	}
	if cfg.UDP.WorkerIdleTimeout != 10*time.Second {
		t.Errorf("UDP.WorkerIdleTimeout = %v, want 10s", cfg.UDP.WorkerIdleTimeout)
	}
	if cfg.UDP.ReuseAddress {
		t.Error("UDP.ReuseAddress should be false")
	}
	if cfg.UDP.TTL != 4 {
		t.Errorf("UDP.TTL = %d, want 4", cfg.UDP.TTL)
	}
	if cfg.UDP.SendRate != 50 {
		t.Errorf("UDP.SendRate = %v, want 50", cfg.UDP.SendRate)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %s, want json", cfg.Log.Format)
	}
	if !cfg.Health.Enabled || cfg.Health.Address != "127.0.0.1:9100" {
		t.Errorf("Health = %+v", cfg.Health)
	}
	if cfg.Health.ReadTimeout != 5*time.Second {
		t.Errorf("Health.ReadTimeout = %v, want 5s", cfg.Health.ReadTimeout)
	}
	// Unset keys keep defaults.
	if cfg.Health.WriteTimeout != 10*time.Second {
		t.Errorf("Health.WriteTimeout = %v, want 10s", cfg.Health.WriteTimeout)
	}
	if cfg.UDP.DefaultHost != "255.255.255.255" {
		t.Errorf("UDP.DefaultHost = %s, want 255.255.255.255", cfg.UDP.DefaultHost)
	}
}

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte("udp:\n  port: 7000\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.UDP.Port != 7000 {
		t.Errorf("UDP.Port = %d, want 7000", cfg.UDP.Port)
	}
	if cfg.UDP.BufferSize != 1024 {
		t.Errorf("UDP.BufferSize = %d, want 1024", cfg.UDP.BufferSize)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	yamlConfig := `
udp:
  port: 9090
  invalid yaml here [
`

	_, err := Parse([]byte(yamlConfig))
	if err == nil {
		t.Error("Parse() should fail for invalid YAML")
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantError string
	}{
		{
			name:      "invalid host",
			yaml:      "udp:\n  host: \"256.1.1.1\"\n",
			wantError: "udp.host",
		},
		{
			name:      "hostname rejected",
			yaml:      "udp:\n  host: \"example.com\"\n",
			wantError: "udp.host",
		},
		{
			name:      "port out of range",
			yaml:      "udp:\n  port: 70000\n",
			wantError: "udp.port",
		},
		{
			name:      "invalid hotspot host",
			yaml:      "udp:\n  hotspot_host: \"hotspot\"\n",
			wantError: "udp.hotspot_host",
		},
		{
			name:      "buffer too large",
			yaml:      "udp:\n  buffer_size: 70000\n",
			wantError: "udp.buffer_size",
		},
		{
			name:      "negative workers",
			yaml:      "udp:\n  workers: -1\n",
			wantError: "udp.workers",
		},
		{
			name:      "ttl out of range",
			yaml:      "udp:\n  ttl: 300\n",
			wantError: "udp.ttl",
		},
		{
			name:      "negative send rate",
			yaml:      "udp:\n  send_rate: -2\n",
			wantError: "udp.send_rate",
		},
		{
			name:      "invalid log level",
			yaml:      "log:\n  level: \"loud\"\n",
			wantError: "invalid log.level",
		},
		{
			name:      "invalid log format",
			yaml:      "log:\n  format: \"xml\"\n",
			wantError: "invalid log.format",
		},
		{
			name:      "health address without port",
			yaml:      "health:\n  enabled: true\n  address: \"localhost\"\n",
			wantError: "health.address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.wantError)
			}
		})
	}
}

func TestConfig_Validate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.UDP.Port = 0
	cfg.Log.Level = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	if !strings.Contains(err.Error(), "udp.port") || !strings.Contains(err.Error(), "log.level") {
		t.Errorf("Validate() = %v, want both errors", err)
	}
}

func TestConfig_Validate_HealthDisabledIgnoresAddress(t *testing.T) {
	cfg := Default()
	cfg.Health.Address = "not an address"

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil when health disabled", err)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("TEST_UDP_HOST", "10.0.0.255")
	t.Setenv("TEST_UDP_PORT", "9292")

	yamlConfig := `
udp:
  host: "${TEST_UDP_HOST}"
  port: $TEST_UDP_PORT
`

	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.UDP.Host != "10.0.0.255" {
		t.Errorf("UDP.Host = %s, want 10.0.0.255", cfg.UDP.Host)
	}
	if cfg.UDP.Port != 9292 {
		t.Errorf("UDP.Port = %d, want 9292", cfg.UDP.Port)
	}
}

func TestParse_EnvVarDefaultValue(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	yamlConfig := `
log:
  level: "${NONEXISTENT_VAR:-warn}"
`

	cfg, err := Parse([]byte(yamlConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
}

func TestExpandEnvVars_NotFound(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	if got := expandEnvVars("host: ${NONEXISTENT_VAR}"); got != "host: ${NONEXISTENT_VAR}" {
		t.Errorf("expandEnvVars() = %s, want placeholder kept", got)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() should fail for nonexistent file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "udpkit.yaml")
	configContent := `
udp:
  port: 9393
log:
  level: "debug"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.UDP.Port != 9393 {
		t.Errorf("UDP.Port = %d, want 9393", cfg.UDP.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
}

func TestConfig_UDPConfig(t *testing.T) {
	cfg := Default()
	cfg.UDP.Host = "192.168.5.255"
	cfg.UDP.Workers = 3
	cfg.UDP.SendRate = 10

	u := cfg.UDPConfig()
	if u.Host != "192.168.5.255" || u.Port != 9090 {
		t.Errorf("UDPConfig() endpoint = %s:%d", u.Host, u.Port)
	}
	if u.Workers != 3 || u.SendRate != 10 {
		t.Errorf("UDPConfig() workers=%d rate=%v", u.Workers, u.SendRate)
	}
	if u.DisableReuseAddress {
		t.Error("UDPConfig() dropped address reuse")
	}

	cfg.UDP.ReuseAddress = false
	if !cfg.UDPConfig().DisableReuseAddress {
		t.Error("UDPConfig() ignored reuse_address: false")
	}
	if err := u.Validate(); err != nil {
		t.Errorf("UDPConfig().Validate() = %v", err)
	}
}

func TestConfig_String(t *testing.T) {
	s := Default().String()

	for _, key := range []string{"udp:", "port: 9090", "log:", "health:"} {
		if !strings.Contains(s, key) {
			t.Errorf("String() should contain %q", key)
		}
	}
}

func TestConfig_StringRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.UDP.WorkerIdleTimeout = 45 * time.Second
	cfg.Health.Enabled = true

	parsed, err := Parse([]byte(cfg.String()))
	if err != nil {
		t.Fatalf("Parse(String()) error = %v", err)
	}
	if parsed.UDP.WorkerIdleTimeout != 45*time.Second {
		t.Errorf("WorkerIdleTimeout = %v, want 45s", parsed.UDP.WorkerIdleTimeout)
	}
	if parsed.Health.ReadTimeout != cfg.Health.ReadTimeout {
		t.Errorf("Health.ReadTimeout = %v, want %v", parsed.Health.ReadTimeout, cfg.Health.ReadTimeout)
	}
	if !parsed.Health.Enabled {
		t.Error("Health.Enabled lost in round trip")
	}
}
