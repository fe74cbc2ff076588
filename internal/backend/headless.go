package backend

import (
	"sync"

	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/tray"
)

// menuSpec is one configured context-menu entry, kept in add order.
type menuSpec struct {
	text string
	id   string
}

// Headless is a driver with no native surface. It accepts the full
// configuration, idles in Run until a quit request, and produces no events
// of its own. Hosts without a tray run on it, and PushEvent lets tooling
// inject events as if a user had clicked.
type Headless struct {
	mu           sync.Mutex
	queue        eventQueue
	organization string
	appID        string
	items        []menuSpec
	iconFormat   string
	iconBytes    int
	running      bool
	quitPending  bool
	quit         chan struct{}
}

var _ tray.Backend = (*Headless)(nil)

func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) SetOrganizationName(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.organization = name
	return nil
}

func (h *Headless) SetAppID(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appID = id
	return nil
}

func (h *Headless) InitTray() error {
	return nil
}

func (h *Headless) AddMenuItem(text, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, menuSpec{text: text, id: id})
	return nil
}

func (h *Headless) SetIconFromData(data []byte, format string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.iconFormat = format
	h.iconBytes = len(data)
	return nil
}

func (h *Headless) Run() int {
	h.mu.Lock()
	if h.quitPending {
		// A quit arrived before the loop was up; honor it now.
		h.quitPending = false
		h.mu.Unlock()
		return 0
	}
	quit := make(chan struct{})
	h.quit = quit
	h.running = true
	menuItems := len(h.items)
	h.mu.Unlock()

	logging.Debug(logging.CatBackend, "Headless loop running", map[string]any{
		"menu_items": menuItems,
	})
	<-quit

	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	return 0
}

func (h *Headless) RequestQuit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running || h.quit == nil {
		h.quitPending = true
		return
	}
	select {
	case <-h.quit:
	default:
		close(h.quit)
	}
}

func (h *Headless) PollEvent() (tray.RawEvent, error) {
	return h.queue.pop(), nil
}

// PushEvent injects a raw event into the poll queue.
func (h *Headless) PushEvent(ev tray.RawEvent) {
	h.queue.push(ev)
}

// MenuItems returns the configured menu entries as text/id pairs.
func (h *Headless) MenuItems() [][2]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([][2]string, 0, len(h.items))
	for _, it := range h.items {
		out = append(out, [2]string{it.text, it.id})
	}
	return out
}

func (h *Headless) Destroy() {
	h.RequestQuit()
	h.queue.clear()
}
