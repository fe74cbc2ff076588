//go:build !linux

package backend

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/tray"
)

// Systray drives the tray through the in-process systray library. The
// library owns a single process-wide icon, so at most one Systray backend
// can run at a time. Menu item clicks surface as events; the library has
// no notion of clicks on the icon itself, so CodeTrayClicked and
// CodeTrayDoubleClicked are never produced by this driver.
type Systray struct {
	mu           sync.Mutex
	queue        eventQueue
	organization string
	appID        string
	items        []menuSpec
	iconData     []byte
	iconFormat   string
	running      bool
	quitPending  bool
	quit         chan struct{}
}

var _ tray.Backend = (*Systray)(nil)

// NewSystray creates the in-process driver. Nothing touches the native
// layer until Run.
func NewSystray() *Systray {
	return &Systray{}
}

func (s *Systray) SetOrganizationName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organization = name
	return nil
}

func (s *Systray) SetAppID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appID = id
	return nil
}

// InitTray is satisfied lazily; the library brings the icon up inside Run.
func (s *Systray) InitTray() error {
	return nil
}

func (s *Systray) AddMenuItem(text, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, menuSpec{text: text, id: id})
	if s.running {
		s.addNativeItem(menuSpec{text: text, id: id}, s.quit)
	}
	return nil
}

func (s *Systray) SetIconFromData(data []byte, format string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.iconData = append([]byte(nil), data...)
	s.iconFormat = format
	if s.running && len(s.iconData) > 0 {
		systray.SetTemplateIcon(s.iconData, s.iconData)
	}
	return nil
}

// Run brings up the tray icon and blocks until RequestQuit. The library
// reports no loop failures, so the exit code is always 0.
func (s *Systray) Run() int {
	s.mu.Lock()
	if s.quitPending {
		// A quit arrived before the loop was up; honor it now.
		s.quitPending = false
		s.mu.Unlock()
		return 0
	}
	s.quit = make(chan struct{})
	s.mu.Unlock()

	systray.Run(s.onReady, s.onExit)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return 0
}

func (s *Systray) onReady() {
	s.mu.Lock()

	if len(s.iconData) > 0 {
		// Template icon keeps proper dark/light mode rendering on macOS
		systray.SetTemplateIcon(s.iconData, s.iconData)
	}
	systray.SetTitle("")
	tooltip := s.organization
	if s.appID != "" {
		tooltip = s.appID
	}
	systray.SetTooltip(tooltip)

	for _, spec := range s.items {
		s.addNativeItem(spec, s.quit)
	}
	s.running = true
	items := len(s.items)
	// A quit that raced the startup is honored as soon as the loop is up.
	pending := s.quitPending
	s.quitPending = false
	s.mu.Unlock()

	logging.Debug(logging.CatBackend, "Systray loop ready", map[string]any{
		"items": items,
	})
	if pending {
		systray.Quit()
	}
}

// addNativeItem registers one menu entry and the goroutine that turns its
// clicks into queued events. Caller holds s.mu.
func (s *Systray) addNativeItem(spec menuSpec, quit chan struct{}) {
	item := systray.AddMenuItem(spec.text, spec.text)
	go func(id string) {
		for {
			select {
			case <-item.ClickedCh:
				s.queue.push(tray.RawEvent{Code: tray.CodeMenuItemClicked, MenuID: id})
			case <-quit:
				return
			}
		}
	}(spec.id)
}

func (s *Systray) onExit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		select {
		case <-s.quit:
		default:
			close(s.quit)
		}
	}
}

func (s *Systray) RequestQuit() {
	s.mu.Lock()
	running := s.running
	if !running {
		s.quitPending = true
	}
	s.mu.Unlock()
	if running {
		systray.Quit()
	}
}

func (s *Systray) PollEvent() (tray.RawEvent, error) {
	return s.queue.pop(), nil
}

func (s *Systray) Destroy() {
	s.RequestQuit()
	s.queue.clear()
}
