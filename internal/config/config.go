package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 32610
	DefaultHost         = "127.0.0.1"
	DefaultOrganization = "Glasswing"
	DefaultAppID        = "io.glasswing.tray-agent"
	DefaultPollMS       = 100
)

// MenuItem is one context-menu entry the agent installs on the tray.
type MenuItem struct {
	Text string `yaml:"text"`
	ID   string `yaml:"id"`
}

// Action binds menu events to behavior. Match is a glob over menu item
// ids; Kind selects what happens on a hit.
type Action struct {
	Match string `yaml:"match"`
	Kind  string `yaml:"kind"`
	URL   string `yaml:"url,omitempty"`
}

// Action kinds understood by the dispatcher.
const (
	ActionOpenURL    = "open-url"
	ActionOpenStatus = "open-status"
	ActionAbout      = "about"
	ActionQuit       = "quit"
	ActionLog        = "log"
)

// Config holds the agent configuration. Values come from the config file,
// overridden by TRAY_AGENT_* environment variables.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Organization string `yaml:"organization"`
	AppID        string `yaml:"app_id"`

	Backend    string `yaml:"backend"`
	HelperPath string `yaml:"helper_path,omitempty"`

	PollIntervalMS int `yaml:"poll_interval_ms"`

	Menu     []MenuItem `yaml:"menu,omitempty"`
	IconPath string     `yaml:"icon_path,omitempty"`

	Actions []Action `yaml:"actions,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`
	LogFile  string `yaml:"log_file,omitempty"`

	TLSCert string `yaml:"tls_cert,omitempty"`
	TLSKey  string `yaml:"tls_key,omitempty"`
}

// Defaults returns the stock configuration: a loopback status server, the
// platform-picked backend, and an Open/Exit menu wired to the status page
// and a clean quit.
func Defaults() *Config {
	return &Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		Organization:   DefaultOrganization,
		AppID:          DefaultAppID,
		Backend:        "auto",
		PollIntervalMS: DefaultPollMS,
		Menu: []MenuItem{
			{Text: "Open", ID: "open"},
			{Text: "Exit", ID: "exit"},
		},
		Actions: []Action{
			{Match: "open", Kind: ActionOpenStatus},
			{Match: "exit", Kind: ActionQuit},
		},
	}
}

// DefaultPath is the per-user config file location.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "tray-agent", "config.yaml")
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides, and returns the result. A missing file is not an
// error. On a malformed file Load returns the defaults together with the
// parse error so the caller can log it and still bring the tray up.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				cfg = Defaults()
				applyEnv(cfg)
				return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			applyEnv(cfg)
			return cfg, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv layers TRAY_AGENT_* overrides on top of cfg. Unparseable values
// are ignored so a bad variable cannot take the agent down.
func applyEnv(cfg *Config) {
	if portStr := os.Getenv("TRAY_AGENT_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 && port < 65536 {
			cfg.Port = port
		}
	}
	if host := os.Getenv("TRAY_AGENT_HOST"); host != "" {
		cfg.Host = host
	}
	if backend := os.Getenv("TRAY_AGENT_BACKEND"); backend != "" {
		cfg.Backend = backend
	}
	if helper := os.Getenv("TRAY_AGENT_HELPER"); helper != "" {
		cfg.HelperPath = helper
	}
	if level := os.Getenv("TRAY_AGENT_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if file := os.Getenv("TRAY_AGENT_LOG_FILE"); file != "" {
		cfg.LogFile = file
	}
	if pollStr := os.Getenv("TRAY_AGENT_POLL_MS"); pollStr != "" {
		if poll, err := strconv.Atoi(pollStr); err == nil && poll > 0 {
			cfg.PollIntervalMS = poll
		}
	}
}

// Validate reports the first problem that would keep the agent from
// running with this configuration.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Backend {
	case "", "auto", "systray", "sni", "helper", "headless":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.PollIntervalMS < 10 {
		return fmt.Errorf("poll interval %dms too small, minimum is 10ms", c.PollIntervalMS)
	}
	for i, item := range c.Menu {
		if item.ID == "" {
			return fmt.Errorf("menu entry %d has no id", i)
		}
	}
	for i, action := range c.Actions {
		if action.Match == "" {
			return fmt.Errorf("action %d has no match pattern", i)
		}
		if _, err := glob.Compile(action.Match); err != nil {
			return fmt.Errorf("action %d match %q: %w", i, action.Match, err)
		}
		switch action.Kind {
		case ActionOpenURL:
			if action.URL == "" {
				return fmt.Errorf("action %d is %s but has no url", i, ActionOpenURL)
			}
		case ActionOpenStatus, ActionAbout, ActionQuit, ActionLog:
		default:
			return fmt.Errorf("action %d has unknown kind %q", i, action.Kind)
		}
	}
	return nil
}

// PollInterval returns the poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Address returns the formatted host:port address string.
func (c *Config) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// TLSEnabled reports whether a certificate pair is configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
