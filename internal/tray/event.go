package tray

import "encoding/json"

// EventKind identifies what happened on the tray icon since the last poll.
type EventKind int

const (
	// EventNone means nothing was queued at poll time.
	EventNone EventKind = iota
	// EventTrayClicked is a primary-button click on the tray icon.
	EventTrayClicked
	// EventTrayDoubleClicked is a double click on the tray icon.
	EventTrayDoubleClicked
	// EventMenuItemClicked is a click on a context-menu entry.
	EventMenuItemClicked
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventTrayClicked:
		return "tray-clicked"
	case EventTrayDoubleClicked:
		return "tray-double-clicked"
	case EventMenuItemClicked:
		return "menu-item-clicked"
	default:
		return "unknown"
	}
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Event is a single decoded tray notification. MenuID is set only when
// Kind is EventMenuItemClicked; the session hands out its only copy of
// the identifier, so the receiver owns it.
type Event struct {
	Kind   EventKind `json:"kind"`
	MenuID string    `json:"menu_id,omitempty"`
}
