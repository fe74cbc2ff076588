//go:build linux

package backend

import (
	"fmt"
	"os"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"

	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/tray"
)

const (
	sniInterface     = "org.kde.StatusNotifierItem"
	sniPath          = "/StatusNotifierItem"
	watcherInterface = "org.kde.StatusNotifierWatcher"
	watcherPath      = "/StatusNotifierWatcher"
	menuInterface    = "com.canonical.dbusmenu"
	menuPath         = "/MenuBar"
)

// NotifierItem publishes the tray icon as a StatusNotifierItem on the
// session bus, with the context menu exported through com.canonical.dbusmenu.
// Hosts report a left click by calling Activate; the protocol has no
// double-click notion, so CodeTrayDoubleClicked never comes out of this
// driver. A right click makes the host render the exported menu without
// producing an event.
type NotifierItem struct {
	mu           sync.Mutex
	queue        eventQueue
	organization string
	appID        string
	items        []menuSpec
	pixmaps      []sniPixmap
	iconFormat   string
	revision     uint32
	conn         *dbus.Conn
	props        *prop.Properties
	running      bool
	quitPending  bool
	quit         chan struct{}
}

var _ tray.Backend = (*NotifierItem)(nil)

// NewNotifierItem creates the D-Bus driver. The bus connection is not made
// until Run.
func NewNotifierItem() *NotifierItem {
	return &NotifierItem{revision: 1}
}

func (n *NotifierItem) SetOrganizationName(name string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.organization = name
	return nil
}

func (n *NotifierItem) SetAppID(id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.appID = id
	return nil
}

// InitTray is satisfied lazily; the item appears when Run registers it.
func (n *NotifierItem) InitTray() error {
	return nil
}

func (n *NotifierItem) AddMenuItem(text, id string) error {
	n.mu.Lock()
	n.items = append(n.items, menuSpec{text: text, id: id})
	running := n.running
	conn := n.conn
	var revision uint32
	if running {
		n.revision++
		revision = n.revision
	}
	n.mu.Unlock()

	if running && conn != nil {
		if err := conn.Emit(menuPath, menuInterface+".LayoutUpdated", revision, int32(0)); err != nil {
			return fmt.Errorf("failed to announce menu update: %w", err)
		}
	}
	return nil
}

func (n *NotifierItem) SetIconFromData(data []byte, format string) error {
	pixmaps, err := pixmapsFromImageData(data)
	if err != nil {
		// Formats the image package cannot decode (SVG in particular) have
		// no pixmap rendition; the item then shows without an icon.
		logging.Warn(logging.CatBackend, "Icon data not decodable for pixmap export", map[string]any{
			"format": format,
			"error":  err.Error(),
		})
		pixmaps = nil
	}

	n.mu.Lock()
	n.pixmaps = pixmaps
	n.iconFormat = format
	running := n.running
	props := n.props
	conn := n.conn
	n.mu.Unlock()

	if running && props != nil {
		props.SetMust(sniInterface, "IconPixmap", pixmaps)
		if conn != nil {
			if err := conn.Emit(sniPath, sniInterface+".NewIcon"); err != nil {
				return fmt.Errorf("failed to announce icon update: %w", err)
			}
		}
	}
	return nil
}

// Run connects to the session bus, exports the item and its menu, and
// registers with the status notifier watcher. It blocks until RequestQuit
// and returns -1 when no bus or no watcher is reachable.
func (n *NotifierItem) Run() int {
	n.mu.Lock()
	if n.quitPending {
		// A quit arrived before the loop was up; honor it now.
		n.quitPending = false
		n.mu.Unlock()
		return 0
	}
	quit := make(chan struct{})
	n.quit = quit
	n.mu.Unlock()

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		logging.Error(logging.CatBackend, "Failed to connect to session bus", map[string]any{
			"error": err.Error(),
		})
		return -1
	}

	props, err := n.export(conn)
	if err != nil {
		logging.Error(logging.CatBackend, "Failed to export status notifier item", map[string]any{
			"error": err.Error(),
		})
		conn.Close()
		return -1
	}

	if err := n.registerWithWatcher(conn); err != nil {
		logging.Error(logging.CatBackend, "No status notifier watcher on the bus", map[string]any{
			"error": err.Error(),
		})
		conn.Close()
		return -1
	}

	n.mu.Lock()
	n.conn = conn
	n.props = props
	n.running = true
	// A quit that raced the startup is honored as soon as the item is up.
	if n.quitPending {
		n.quitPending = false
		close(quit)
	}
	n.mu.Unlock()

	logging.Info(logging.CatBackend, "StatusNotifierItem registered", map[string]any{
		"name": n.busName(),
	})

	<-quit

	n.mu.Lock()
	n.running = false
	n.conn = nil
	n.props = nil
	n.mu.Unlock()
	conn.Close()
	return 0
}

func (n *NotifierItem) busName() string {
	return fmt.Sprintf("org.kde.StatusNotifierItem-%d-1", os.Getpid())
}

func (n *NotifierItem) export(conn *dbus.Conn) (*prop.Properties, error) {
	if err := conn.Export(&sniReceiver{item: n}, sniPath, sniInterface); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", sniInterface, err)
	}
	if err := conn.Export(&menuReceiver{item: n}, menuPath, menuInterface); err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", menuInterface, err)
	}

	n.mu.Lock()
	organization := n.organization
	appID := n.appID
	pixmaps := n.pixmaps
	n.mu.Unlock()

	props, err := prop.Export(conn, sniPath, prop.Map{
		sniInterface: map[string]*prop.Prop{
			"Category":   {Value: "ApplicationStatus", Writable: false, Emit: prop.EmitTrue},
			"Id":         {Value: appID, Writable: false, Emit: prop.EmitTrue},
			"Title":      {Value: organization, Writable: false, Emit: prop.EmitTrue},
			"Status":     {Value: "Active", Writable: false, Emit: prop.EmitTrue},
			"WindowId":   {Value: uint32(0), Writable: false, Emit: prop.EmitTrue},
			"IconName":   {Value: "", Writable: false, Emit: prop.EmitTrue},
			"IconPixmap": {Value: pixmaps, Writable: false, Emit: prop.EmitTrue},
			"ItemIsMenu": {Value: false, Writable: false, Emit: prop.EmitTrue},
			"Menu":       {Value: dbus.ObjectPath(menuPath), Writable: false, Emit: prop.EmitTrue},
			"ToolTip": {
				Value:    sniTooltip{Title: organization, Description: appID},
				Writable: false,
				Emit:     prop.EmitTrue,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export item properties: %w", err)
	}

	_, err = prop.Export(conn, menuPath, prop.Map{
		menuInterface: map[string]*prop.Prop{
			"Version":       {Value: uint32(3), Writable: false, Emit: prop.EmitTrue},
			"Status":        {Value: "normal", Writable: false, Emit: prop.EmitTrue},
			"TextDirection": {Value: "ltr", Writable: false, Emit: prop.EmitTrue},
			"IconThemePath": {Value: []string{}, Writable: false, Emit: prop.EmitTrue},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export menu properties: %w", err)
	}

	reply, err := conn.RequestName(n.busName(), dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to request name %s: %w", n.busName(), err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("name %s already taken", n.busName())
	}
	return props, nil
}

func (n *NotifierItem) registerWithWatcher(conn *dbus.Conn) error {
	obj := conn.Object(watcherInterface, dbus.ObjectPath(watcherPath))
	call := obj.Call(watcherInterface+".RegisterStatusNotifierItem", 0, n.busName())
	if call.Err != nil {
		return fmt.Errorf("failed to register with watcher: %w", call.Err)
	}
	return nil
}

func (n *NotifierItem) RequestQuit() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running || n.quit == nil {
		n.quitPending = true
		return
	}
	select {
	case <-n.quit:
	default:
		close(n.quit)
	}
}

func (n *NotifierItem) PollEvent() (tray.RawEvent, error) {
	return n.queue.pop(), nil
}

func (n *NotifierItem) Destroy() {
	n.RequestQuit()
	n.queue.clear()
}

// menuClicked turns a dbusmenu node activation into a queued event. Node
// ids start at 1 in add order; 0 is the menu root.
func (n *NotifierItem) menuClicked(nodeID int32) {
	n.mu.Lock()
	idx := int(nodeID) - 1
	var id string
	known := idx >= 0 && idx < len(n.items)
	if known {
		id = n.items[idx].id
	}
	n.mu.Unlock()

	if !known {
		logging.Debug(logging.CatBackend, "Click on unknown menu node", map[string]any{
			"node": nodeID,
		})
		return
	}
	n.queue.push(tray.RawEvent{Code: tray.CodeMenuItemClicked, MenuID: id})
}

// sniReceiver handles the calls hosts place on org.kde.StatusNotifierItem.
type sniReceiver struct {
	item *NotifierItem
}

func (r *sniReceiver) Activate(x, y int32) *dbus.Error {
	r.item.queue.push(tray.RawEvent{Code: tray.CodeTrayClicked})
	return nil
}

func (r *sniReceiver) SecondaryActivate(x, y int32) *dbus.Error {
	return nil
}

func (r *sniReceiver) ContextMenu(x, y int32) *dbus.Error {
	// The host renders the exported menu itself; no event crosses the queue.
	return nil
}

func (r *sniReceiver) Scroll(delta int32, orientation string) *dbus.Error {
	return nil
}

// sniTooltip is the (sa(iiay)ss) wire structure of the ToolTip property.
type sniTooltip struct {
	IconName    string
	IconPixmaps []sniPixmap
	Title       string
	Description string
}
