package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var agentEnvVars = []string{
	"TRAY_AGENT_PORT",
	"TRAY_AGENT_HOST",
	"TRAY_AGENT_BACKEND",
	"TRAY_AGENT_HELPER",
	"TRAY_AGENT_LOG_LEVEL",
	"TRAY_AGENT_LOG_FILE",
	"TRAY_AGENT_POLL_MS",
}

func clearAgentEnv() {
	for _, v := range agentEnvVars {
		os.Unsetenv(v)
	}
}

// missingPath returns a config path that does not exist.
func missingPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.yaml")
}

func TestLoad_Defaults(t *testing.T) {
	clearAgentEnv()

	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Host != DefaultHost {
		t.Errorf("expected host %q, got %q", DefaultHost, cfg.Host)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.Organization != DefaultOrganization {
		t.Errorf("expected organization %q, got %q", DefaultOrganization, cfg.Organization)
	}
	if cfg.AppID != DefaultAppID {
		t.Errorf("expected app id %q, got %q", DefaultAppID, cfg.AppID)
	}
	if cfg.Backend != "auto" {
		t.Errorf("expected backend auto, got %q", cfg.Backend)
	}
	if cfg.PollIntervalMS != DefaultPollMS {
		t.Errorf("expected poll interval %dms, got %dms", DefaultPollMS, cfg.PollIntervalMS)
	}
	if len(cfg.Menu) != 2 || cfg.Menu[0].ID != "open" || cfg.Menu[1].ID != "exit" {
		t.Errorf("unexpected default menu: %+v", cfg.Menu)
	}
	if len(cfg.Actions) != 2 {
		t.Errorf("unexpected default actions: %+v", cfg.Actions)
	}
}

func TestLoad_FileValues(t *testing.T) {
	clearAgentEnv()

	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := `host: 0.0.0.0
port: 9000
organization: TestOrg
app_id: test.app
backend: headless
poll_interval_ms: 50
menu:
  - text: Dashboard
    id: dashboard
actions:
  - match: dashboard
    kind: open-url
    url: https://example.com/dashboard
log_level: debug
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Host != "0.0.0.0" || cfg.Port != 9000 {
		t.Errorf("address = %s, want 0.0.0.0:9000", cfg.Address())
	}
	if cfg.Organization != "TestOrg" || cfg.AppID != "test.app" {
		t.Errorf("identity = %q/%q, want TestOrg/test.app", cfg.Organization, cfg.AppID)
	}
	if cfg.Backend != "headless" {
		t.Errorf("backend = %q, want headless", cfg.Backend)
	}
	if cfg.PollIntervalMS != 50 {
		t.Errorf("poll interval = %dms, want 50ms", cfg.PollIntervalMS)
	}
	if len(cfg.Menu) != 1 || cfg.Menu[0].ID != "dashboard" {
		t.Errorf("menu = %+v, want the single dashboard entry", cfg.Menu)
	}
	if len(cfg.Actions) != 1 || cfg.Actions[0].Kind != ActionOpenURL {
		t.Errorf("actions = %+v, want the single open-url action", cfg.Actions)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearAgentEnv()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 1111\nbackend: headless\n"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	os.Setenv("TRAY_AGENT_PORT", "2222")
	os.Setenv("TRAY_AGENT_BACKEND", "helper")
	defer clearAgentEnv()

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Port != 2222 {
		t.Errorf("port = %d, want the env override 2222", cfg.Port)
	}
	if cfg.Backend != "helper" {
		t.Errorf("backend = %q, want the env override helper", cfg.Backend)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearAgentEnv()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{{{ not yaml"), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err == nil {
		t.Fatal("Load() accepted a malformed file")
	}
	if cfg == nil {
		t.Fatal("Load() returned no fallback config")
	}
	if cfg.Port != DefaultPort {
		t.Errorf("fallback port = %d, want %d", cfg.Port, DefaultPort)
	}
}

func TestLoad_InvalidPortEnv(t *testing.T) {
	tests := []struct {
		name     string
		portStr  string
		expected int
	}{
		{"non-numeric", "abc", DefaultPort},
		{"negative", "-1", DefaultPort},
		{"zero", "0", DefaultPort},
		{"too high", "70000", DefaultPort},
		{"float", "3.14", DefaultPort},
		{"leading spaces", " 8080", DefaultPort},
		{"hex", "0x1F90", DefaultPort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAgentEnv()
			os.Setenv("TRAY_AGENT_PORT", tt.portStr)
			defer os.Unsetenv("TRAY_AGENT_PORT")

			cfg, err := Load(missingPath(t))
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			if cfg.Port != tt.expected {
				t.Errorf("expected port %d, got %d", tt.expected, cfg.Port)
			}
		})
	}
}

func TestLoad_ValidPortEnv(t *testing.T) {
	tests := []struct {
		name     string
		portStr  string
		expected int
	}{
		{"standard port", "8080", 8080},
		{"low port", "1024", 1024},
		{"high port", "65535", 65535},
		{"default port value", "32610", 32610},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAgentEnv()
			os.Setenv("TRAY_AGENT_PORT", tt.portStr)
			defer os.Unsetenv("TRAY_AGENT_PORT")

			cfg, err := Load(missingPath(t))
			if err != nil {
				t.Fatalf("Load() returned error: %v", err)
			}
			if cfg.Port != tt.expected {
				t.Errorf("expected port %d, got %d", tt.expected, cfg.Port)
			}
		})
	}
}

func TestLoad_PollEnv(t *testing.T) {
	clearAgentEnv()
	os.Setenv("TRAY_AGENT_POLL_MS", "250")
	defer os.Unsetenv("TRAY_AGENT_POLL_MS")

	cfg, err := Load(missingPath(t))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.PollIntervalMS != 250 {
		t.Errorf("poll interval = %dms, want 250ms", cfg.PollIntervalMS)
	}
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 250ms", cfg.PollInterval())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty backend", func(c *Config) { c.Backend = "" }, false},
		{"helper backend", func(c *Config) { c.Backend = "helper" }, false},
		{"port too low", func(c *Config) { c.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Port = 70000 }, true},
		{"unknown backend", func(c *Config) { c.Backend = "cosmic" }, true},
		{"poll too small", func(c *Config) { c.PollIntervalMS = 5 }, true},
		{"menu entry without id", func(c *Config) {
			c.Menu = append(c.Menu, MenuItem{Text: "Broken"})
		}, true},
		{"action without match", func(c *Config) {
			c.Actions = append(c.Actions, Action{Kind: ActionQuit})
		}, true},
		{"action with bad glob", func(c *Config) {
			c.Actions = append(c.Actions, Action{Match: "[", Kind: ActionQuit})
		}, true},
		{"about action", func(c *Config) {
			c.Actions = append(c.Actions, Action{Match: "about", Kind: ActionAbout})
		}, false},
		{"open-url without url", func(c *Config) {
			c.Actions = append(c.Actions, Action{Match: "x", Kind: ActionOpenURL})
		}, true},
		{"unknown action kind", func(c *Config) {
			c.Actions = append(c.Actions, Action{Match: "x", Kind: "explode"})
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddress(t *testing.T) {
	tests := []struct {
		host     string
		port     int
		expected string
	}{
		{"127.0.0.1", 32610, "127.0.0.1:32610"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"localhost", 3000, "localhost:3000"},
		{"192.168.1.1", 443, "192.168.1.1:443"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			cfg := &Config{Host: tt.host, Port: tt.port}
			if result := cfg.Address(); result != tt.expected {
				t.Errorf("Address() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestTLSEnabled(t *testing.T) {
	cfg := Defaults()
	if cfg.TLSEnabled() {
		t.Error("TLSEnabled() = true with no certificate configured")
	}
	cfg.TLSCert = "/etc/tray-agent/cert.pem"
	if cfg.TLSEnabled() {
		t.Error("TLSEnabled() = true with only a certificate")
	}
	cfg.TLSKey = "/etc/tray-agent/key.pem"
	if !cfg.TLSEnabled() {
		t.Error("TLSEnabled() = false with a full pair")
	}
}

// Benchmark tests
func BenchmarkLoad(b *testing.B) {
	clearAgentEnv()
	path := filepath.Join(b.TempDir(), "config.yaml")

	for i := 0; i < b.N; i++ {
		Load(path)
	}
}

func BenchmarkValidate(b *testing.B) {
	cfg := Defaults()

	for i := 0; i < b.N; i++ {
		cfg.Validate()
	}
}
