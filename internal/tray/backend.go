package tray

// EventCode is the raw discriminant a backend attaches to one queued
// notification. The values are a fixed wire contract shared by every
// backend, including out-of-process helpers.
type EventCode int

const (
	CodeNone              EventCode = 0
	CodeTrayClicked       EventCode = 1
	CodeTrayDoubleClicked EventCode = 2
	CodeMenuItemClicked   EventCode = 3
)

// RawEvent is one undecoded backend notification. For CodeMenuItemClicked
// the backend hands over its only reference to MenuID and must not retain
// or reuse it after the poll returns.
type RawEvent struct {
	Code   EventCode
	MenuID string
}

// Backend is a native tray implementation driven by a Session. All calls
// arrive serialized under the session's lock, except Run which the session
// invokes from a dedicated goroutine without holding any lock.
//
// Configuration calls made before Run must be buffered and applied once
// the native loop is up. Run blocks until RequestQuit or a loop failure
// and returns the loop's exit code, or -1 when no tray is available on
// this host. RequestQuit is safe from any goroutine; a request that
// arrives while no loop is up is latched and makes the next Run return
// immediately, so a stop racing a freshly spawned loop still stops it.
// PollEvent never blocks; it pops at most one queued event and reports an
// empty RawEvent when the queue is idle.
type Backend interface {
	SetOrganizationName(name string) error
	SetAppID(id string) error
	InitTray() error
	AddMenuItem(text, id string) error
	SetIconFromData(data []byte, format string) error
	Run() int
	RequestQuit()
	PollEvent() (RawEvent, error)
	Destroy()
}
