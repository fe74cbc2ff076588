package main

import (
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/glasswing-io/tray-agent/internal/actions"
	"github.com/glasswing-io/tray-agent/internal/api"
	"github.com/glasswing-io/tray-agent/internal/backend"
	"github.com/glasswing-io/tray-agent/internal/certs"
	"github.com/glasswing-io/tray-agent/internal/config"
	"github.com/glasswing-io/tray-agent/internal/data"
	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/metrics"
	"github.com/glasswing-io/tray-agent/internal/service"
	"github.com/glasswing-io/tray-agent/internal/tray"
	"github.com/glasswing-io/tray-agent/internal/version"
	"github.com/glasswing-io/tray-agent/internal/web"
	"github.com/glasswing-io/tray-agent/internal/welcome"
)

const (
	guiWaitTimeout = 30 * time.Second
	guiWaitRetry   = 2 * time.Second

	// Cap on events handled per tick so a burst cannot monopolize the loop.
	maxEventsPerPoll = 32
)

func main() {
	var (
		showVersion      = flag.Bool("version", false, "print version and exit")
		configPath       = flag.String("config", "", "path to the config file")
		backendFlag      = flag.String("backend", "", "tray driver (auto, systray, sni, helper, headless)")
		installService   = flag.Bool("install-service", false, "install the login autostart entry and exit")
		uninstallService = flag.Bool("uninstall-service", false, "remove the login autostart entry and exit")
		serviceStatus    = flag.Bool("service-status", false, "print the autostart status and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("tray-agent %s (commit %s, built %s)\n", version.Current, version.GitCommit, version.BuildTime)
		return
	}

	if *installService {
		if err := service.New().Install(); err != nil {
			fmt.Fprintf(os.Stderr, "install failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Autostart entry installed.")
		return
	}
	if *uninstallService {
		if err := service.New().Uninstall(); err != nil {
			fmt.Fprintf(os.Stderr, "uninstall failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Autostart entry removed.")
		return
	}
	if *serviceStatus {
		status, err := service.New().Status()
		if err != nil {
			fmt.Fprintf(os.Stderr, "status check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(status)
		return
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, loadErr := config.Load(path)
	if *backendFlag != "" {
		cfg.Backend = *backendFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.DefaultMaxEntries, logging.ParseLevel(cfg.LogLevel))
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = logging.FileWriter(cfg.LogFile)
	}
	logging.Get().SetOutput(out)

	if loadErr != nil {
		logging.Warn(logging.CatConfig, "Config file did not parse, running on defaults", map[string]any{
			"error": loadErr.Error(),
		})
	}

	logging.Info(logging.CatSystem, "Starting tray agent", map[string]any{
		"version": version.Current,
		"pid":     os.Getpid(),
		"backend": string(backend.Resolve(backend.Kind(cfg.Backend))),
	})

	ag := &agent{
		cfg:           cfg,
		cfgPath:       path,
		forcedBackend: *backendFlag,
		reloadCh:      make(chan struct{}, 1),
		quitCh:        make(chan struct{}),
	}

	statusURL, err := startServer(cfg)
	if err != nil {
		// The tray is still worth having without the API surface.
		logging.Error(logging.CatHTTP, "API server unavailable", map[string]any{
			"error": err.Error(),
		})
		statusURL = displayURL(cfg)
	}
	ag.statusURL = statusURL
	api.SetStatusProvider(ag.status)

	if !backend.WaitForGUI(guiWaitTimeout, guiWaitRetry) {
		logging.Warn(logging.CatBackend, "GUI not detected, starting anyway", nil)
	}

	if err := ag.startSession(); err != nil {
		logging.Error(logging.CatSession, "Failed to start tray session", map[string]any{
			"error": err.Error(),
		})
		os.Exit(1)
	}
	defer ag.stopSession()

	if welcome.IsFirstRun() {
		welcome.ShowWelcome(statusURL)
		if err := welcome.MarkAsShown(); err != nil {
			logging.Debug(logging.CatSystem, "Could not record welcome marker", map[string]any{
				"error": err.Error(),
			})
		}
	}

	watcher, err := config.Watch(path, ag.notifyReload)
	if err != nil {
		logging.Debug(logging.CatConfig, "Config watcher unavailable", map[string]any{
			"error": err.Error(),
		})
	} else {
		defer watcher.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	logging.Info(logging.CatSystem, "Tray agent ready", map[string]any{
		"status_page": statusURL,
	})
	ag.run(sigCh)

	logging.Info(logging.CatSystem, "Tray agent stopped", nil)
}

// agent ties the tray session, the action dispatcher and the config
// lifecycle together. The session and dispatcher are replaced wholesale on
// config reload; everything reads them under mu.
type agent struct {
	cfgPath       string
	forcedBackend string
	statusURL     string

	mu         sync.Mutex
	cfg        *config.Config
	session    *tray.Session
	dispatcher *actions.Dispatcher
	backendID  string
	running    bool

	reloadCh chan struct{}
	quitCh   chan struct{}
	quitOnce sync.Once
}

func (a *agent) run(sigCh <-chan os.Signal) {
	a.mu.Lock()
	interval := a.cfg.PollInterval()
	a.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.poll()
		case <-a.reloadCh:
			if a.reloadConfig() {
				a.mu.Lock()
				ticker.Reset(a.cfg.PollInterval())
				a.mu.Unlock()
			}
		case <-a.quitCh:
			logging.Info(logging.CatSystem, "Quit requested", nil)
			return
		case sig := <-sigCh:
			logging.Info(logging.CatSystem, "Signal received", map[string]any{
				"signal": sig.String(),
			})
			return
		}
	}
}

func (a *agent) poll() {
	a.mu.Lock()
	s := a.session
	d := a.dispatcher
	a.mu.Unlock()
	if s == nil {
		return
	}

	for i := 0; i < maxEventsPerPoll; i++ {
		ev, err := s.PollEvent()
		if err != nil {
			if tray.IsUnrecognizedEvent(err) {
				metrics.PollErrorsTotal.Inc()
				logging.Warn(logging.CatSession, "Dropping unrecognized tray event", map[string]any{
					"error": err.Error(),
				})
				continue
			}
			if errors.Is(err, tray.ErrClosed) {
				return
			}
			metrics.PollErrorsTotal.Inc()
			logging.Warn(logging.CatSession, "Event poll failed", map[string]any{
				"error": err.Error(),
			})
			return
		}
		if ev.Kind == tray.EventNone {
			return
		}

		kind := ev.Kind.String()
		metrics.EventsTotal.WithLabelValues(kind).Inc()
		logging.Debug(logging.CatSession, "Tray event", map[string]any{
			"kind":    kind,
			"menu_id": ev.MenuID,
		})

		var fired string
		if ev.Kind == tray.EventMenuItemClicked && d != nil {
			fired = d.Dispatch(ev.MenuID)
			if fired != "" {
				metrics.ActionsTotal.WithLabelValues(fired).Inc()
			}
		}
		api.BroadcastEvent(api.Event{
			Kind:   kind,
			MenuID: ev.MenuID,
			Action: fired,
			At:     time.Now(),
		})
	}
}

func (a *agent) startSession() error {
	a.mu.Lock()
	cfg := a.cfg
	a.mu.Unlock()

	kind := backend.Resolve(backend.Kind(cfg.Backend))
	b, err := backend.New(kind, cfg.HelperPath)
	if err != nil {
		return fmt.Errorf("failed to create %s backend: %w", kind, err)
	}

	s, err := tray.New(cfg.Organization, cfg.AppID, b)
	if err != nil {
		return err
	}
	for _, item := range cfg.Menu {
		s = s.WithMenuItem(item.Text, item.ID)
	}
	icon, format := loadIcon(cfg)
	if len(icon) > 0 {
		s = s.WithIcon(icon, format)
	}
	if err := s.Err(); err != nil {
		s.Close()
		return err
	}
	if err := s.Start(); err != nil {
		s.Close()
		return err
	}

	d, err := actions.NewDispatcher(cfg.Actions, a.statusURL, a.requestQuit)
	if err != nil {
		s.Close()
		return err
	}

	a.mu.Lock()
	a.session = s
	a.dispatcher = d
	a.backendID = string(kind)
	a.running = true
	a.mu.Unlock()

	logging.Info(logging.CatSession, "Tray session started", map[string]any{
		"backend": string(kind),
		"items":   len(cfg.Menu),
	})
	return nil
}

func (a *agent) stopSession() {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.dispatcher = nil
	a.running = false
	a.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

func (a *agent) reloadConfig() bool {
	fresh, err := config.Load(a.cfgPath)
	if err != nil {
		logging.Warn(logging.CatConfig, "Ignoring config change that does not parse", map[string]any{
			"error": err.Error(),
		})
		return false
	}
	if a.forcedBackend != "" {
		fresh.Backend = a.forcedBackend
	}
	if err := fresh.Validate(); err != nil {
		logging.Warn(logging.CatConfig, "Ignoring invalid config change", map[string]any{
			"error": err.Error(),
		})
		return false
	}

	logging.Info(logging.CatConfig, "Config changed, rebuilding tray session", nil)
	logging.Get().SetMinLevel(logging.ParseLevel(fresh.LogLevel))

	a.stopSession()
	a.mu.Lock()
	a.cfg = fresh
	a.mu.Unlock()

	if err := a.startSession(); err != nil {
		logging.Error(logging.CatSession, "Failed to restart tray session", map[string]any{
			"error": err.Error(),
		})
	}
	metrics.SessionRestartsTotal.Inc()
	api.BroadcastStatus()
	return true
}

func (a *agent) notifyReload() {
	select {
	case a.reloadCh <- struct{}{}:
	default:
	}
}

func (a *agent) requestQuit() {
	a.quitOnce.Do(func() { close(a.quitCh) })
}

func (a *agent) status() api.Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	items := make([]string, 0, len(a.cfg.Menu))
	for _, item := range a.cfg.Menu {
		items = append(items, item.Text)
	}
	return api.Status{
		Running:      a.running,
		Backend:      a.backendID,
		Organization: a.cfg.Organization,
		AppID:        a.cfg.AppID,
		MenuItems:    items,
	}
}

func startServer(cfg *config.Config) (string, error) {
	ln, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", cfg.Address(), err)
	}

	var tlsConfig *tls.Config
	if cfg.TLSEnabled() {
		tlsConfig, err = certs.LoadFrom(cfg.TLSCert, cfg.TLSKey)
	} else {
		tlsConfig, err = certs.LoadOrGenerate()
	}
	if err != nil {
		ln.Close()
		return "", err
	}

	mux := api.NewMux(web.Handler())
	go func() {
		if err := http.Serve(certs.NewMuxListener(ln, tlsConfig), mux); err != nil {
			logging.Error(logging.CatHTTP, "API server stopped", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	url := displayURL(cfg)
	logging.Info(logging.CatHTTP, "API server listening", map[string]any{
		"address": cfg.Address(),
		"url":     url,
	})
	return url, nil
}

func displayURL(cfg *config.Config) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Port)
}

func loadIcon(cfg *config.Config) ([]byte, string) {
	if cfg.IconPath != "" {
		raw, err := os.ReadFile(cfg.IconPath)
		if err == nil {
			return raw, formatFromExt(cfg.IconPath)
		}
		logging.Warn(logging.CatConfig, "Falling back to the built-in icon", map[string]any{
			"path":  cfg.IconPath,
			"error": err.Error(),
		})
	}
	return data.TrayIcon()
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ico":
		return data.FormatICO
	case ".svg":
		return "SVG"
	default:
		return data.FormatPNG
	}
}
