// Package wizard provides the interactive terminal front end for udpkit.
package wizard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/postalsys/udpkit/internal/config"
	"github.com/postalsys/udpkit/internal/udp"
)

// Send modes.
const (
	ModeDirect    = "direct"
	ModeBroadcast = "broadcast"
	ModeHotspot   = "hotspot"
)

// Result contains the wizard output.
type Result struct {
	Config     *config.Config
	ConfigPath string // empty when the config was not saved
	Mode       string
}

// Wizard manages the interactive session.
type Wizard struct {
	theme *huh.Theme
}

// New creates a new wizard.
func New() *Wizard {
	return &Wizard{
		theme: huh.ThemeDracula(),
	}
}

// Run asks for the socket settings. base supplies the initial values.
func (w *Wizard) Run(base *config.Config) (*Result, error) {
	w.printBanner()

	if base == nil {
		base = config.Default()
	}

	host, port, mode, err := w.askEndpoint(base)
	if err != nil {
		return nil, err
	}

	logLevel, healthEnabled, err := w.askAdvancedOptions(base)
	if err != nil {
		return nil, err
	}

	portNum, _ := strconv.Atoi(port)
	cfg := w.buildConfig(base, host, portNum, logLevel, healthEnabled)

	configPath, err := w.askSaveConfig()
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := w.writeConfig(cfg, configPath); err != nil {
			return nil, err
		}
	}

	w.printSummary(cfg, mode, configPath)

	return &Result{
		Config:     cfg,
		ConfigPath: configPath,
		Mode:       mode,
	}, nil
}

// AskMessage prompts for the next message. ok is false when the user
// leaves the prompt empty or aborts.
func (w *Wizard) AskMessage(mode string) (msg string, ok bool, err error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Message (%s)", mode)).
				Description("Empty line to quit").
				Value(&msg),
		),
	).WithTheme(w.theme)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", false, nil
		}
		return "", false, err
	}

	msg = strings.TrimSpace(msg)
	return msg, msg != "", nil
}

func (w *Wizard) printBanner() {
	banner := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("212")).
		Render(`
           _       _ _    _ _
  _   _  __| |_ __ | | | _(_) |_
 | | | |/ _` + "`" + ` | '_ \| | |/ / | __|
 | |_| | (_| | |_) |_|   <| | |_
  \__,_|\__,_| .__/(_)_|\_\_|\__|
             |_|
`)

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("  Local network UDP messaging\n")

	fmt.Println(banner)
	fmt.Println(subtitle)
}

func (w *Wizard) askEndpoint(base *config.Config) (host, port, mode string, err error) {
	host = base.UDP.Host
	port = strconv.Itoa(base.UDP.Port)
	mode = ModeDirect

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Endpoint").
				Description("The same port is bound locally and used as the target."),

			huh.NewSelect[string]().
				Title("Send Mode").
				Options(
					huh.NewOption("Direct (host below)", ModeDirect),
					huh.NewOption("Broadcast (local subnet)", ModeBroadcast),
					huh.NewOption("Hotspot ("+base.UDP.HotspotHost+")", ModeHotspot),
				).
				Value(&mode),

			huh.NewInput().
				Title("Target Host").
				Description("IPv4 address, used in direct mode").
				Placeholder(udp.DefaultHost).
				Value(&host).
				Validate(validateHost),

			huh.NewInput().
				Title("Port").
				Placeholder(strconv.Itoa(udp.DefaultPort)).
				Value(&port).
				Validate(validatePort),
		),
	).WithTheme(w.theme)

	err = form.Run()
	return
}

func (w *Wizard) askAdvancedOptions(base *config.Config) (logLevel string, healthEnabled bool, err error) {
	logLevel = base.Log.Level
	healthEnabled = base.Health.Enabled

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().
				Title("Advanced Options").
				Description("Configure monitoring and logging."),

			huh.NewSelect[string]().
				Title("Log Level").
				Options(
					huh.NewOption("Debug (verbose)", "debug"),
					huh.NewOption("Info (recommended)", "info"),
					huh.NewOption("Warning", "warn"),
					huh.NewOption("Error (quiet)", "error"),
				).
				Value(&logLevel),

			huh.NewConfirm().
				Title("Enable health check endpoint?").
				Description("HTTP endpoint for monitoring (/healthz, /ready, /stats, /metrics)").
				Value(&healthEnabled),
		),
	).WithTheme(w.theme)

	err = form.Run()
	return
}

func (w *Wizard) askSaveConfig() (string, error) {
	var save bool
	path := "./udpkit.yaml"

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save these settings to a config file?").
				Value(&save),
		),
	).WithTheme(w.theme)
	if err := form.Run(); err != nil {
		return "", err
	}
	if !save {
		return "", nil
	}

	pathForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Config File Path").
				Placeholder("./udpkit.yaml").
				Value(&path).
				Validate(validateConfigPath),
		),
	).WithTheme(w.theme)
	if err := pathForm.Run(); err != nil {
		return "", err
	}
	return path, nil
}

func (w *Wizard) buildConfig(base *config.Config, host string, port int, logLevel string, healthEnabled bool) *config.Config {
	cfg := *base

	cfg.UDP.Host = host
	cfg.UDP.Port = port
	cfg.Log.Level = logLevel
	cfg.Health.Enabled = healthEnabled
	if healthEnabled && cfg.Health.Address == "" {
		cfg.Health.Address = config.Default().Health.Address
	}

	return &cfg
}

func (w *Wizard) writeConfig(cfg *config.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# udpkit configuration
# Generated by udpkit interactive

`
	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

func (w *Wizard) printSummary(cfg *config.Config, mode, configPath string) {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("─────────────────────────────────────────────────")

	fmt.Println()
	fmt.Println(divider)
	fmt.Println(style.Render("✓ Ready"))
	fmt.Println(divider)
	fmt.Println()

	fmt.Printf("  Mode:         %s\n", mode)
	if mode == ModeDirect {
		fmt.Printf("  Target:       %s:%d\n", cfg.UDP.Host, cfg.UDP.Port)
	} else {
		fmt.Printf("  Port:         %d\n", cfg.UDP.Port)
	}
	if configPath != "" {
		fmt.Printf("  Config file:  %s\n", configPath)
	}
	if cfg.Health.Enabled {
		fmt.Printf("  Health:       http://%s/healthz\n", cfg.Health.Address)
	}
	fmt.Println()
}

func validateHost(s string) error {
	if !udp.IsValidIPAddress(s) {
		return fmt.Errorf("not a valid IPv4 address: %q", s)
	}
	return nil
}

func validatePort(s string) error {
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}

func validateConfigPath(s string) error {
	if s == "" {
		return fmt.Errorf("config path is required")
	}
	if !strings.HasSuffix(s, ".yaml") && !strings.HasSuffix(s, ".yml") {
		return fmt.Errorf("config file should have .yaml or .yml extension")
	}
	return nil
}
