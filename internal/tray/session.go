package tray

import (
	"fmt"
	"strings"
	"sync"

	"github.com/glasswing-io/tray-agent/internal/logging"
)

// Identifiers used when a session is constructed with empty strings.
const (
	DefaultOrganization = "MyOrganization"
	DefaultAppID        = "MyApp"
)

// Session owns one native tray instance and makes it safe to share across
// goroutines. Every backend call goes through the session's lock; the
// blocking native loop runs on a dedicated background goroutine that the
// session starts and joins. A stopped session can be started again.
type Session struct {
	mu      sync.Mutex // serializes backend calls and guards the fields below
	backend Backend
	closed  bool
	cfgErr  error // first builder failure; reported by Err and Start

	runMu sync.Mutex    // guards done
	done  chan struct{} // non-nil while a run occupies the session
}

// New creates a tray session for the given organization and application id,
// driven by b. Empty identifiers fall back to the stock defaults. Both
// strings cross into the native layer and are rejected up front if they
// contain a NUL byte; nothing is passed to the backend in that case.
func New(organization, appID string, b Backend) (*Session, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}
	if organization == "" {
		organization = DefaultOrganization
	}
	if appID == "" {
		appID = DefaultAppID
	}
	if err := checkNoNUL("organization name", organization); err != nil {
		return nil, err
	}
	if err := checkNoNUL("app id", appID); err != nil {
		return nil, err
	}

	s := &Session{backend: b}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := b.SetOrganizationName(organization); err != nil {
		b.Destroy()
		return nil, fmt.Errorf("failed to set organization name: %w", err)
	}
	if err := b.SetAppID(appID); err != nil {
		b.Destroy()
		return nil, fmt.Errorf("failed to set app id: %w", err)
	}
	if err := b.InitTray(); err != nil {
		b.Destroy()
		return nil, fmt.Errorf("failed to initialize tray: %w", err)
	}
	return s, nil
}

// WithMenuItem appends an entry to the tray's context menu. Items added
// before Start are shown as soon as the native loop is up. Calls chain;
// the first failure sticks, later calls become no-ops, and the error is
// reported by Err and Start.
func (s *Session) WithMenuItem(text, id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfgErr != nil {
		return s
	}
	if s.closed {
		s.cfgErr = ErrClosed
		return s
	}
	if err := checkNoNUL("menu item text", text); err != nil {
		s.cfgErr = err
		return s
	}
	if err := checkNoNUL("menu item id", id); err != nil {
		s.cfgErr = err
		return s
	}
	if err := s.backend.AddMenuItem(text, id); err != nil {
		s.cfgErr = fmt.Errorf("failed to add menu item %q: %w", id, err)
	}
	return s
}

// WithIcon sets the tray icon from an in-memory image. format names the
// image container ("PNG", "SVG", ...). The raw bytes pass through to the
// backend untouched; only the format string is validated.
func (s *Session) WithIcon(data []byte, format string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfgErr != nil {
		return s
	}
	if s.closed {
		s.cfgErr = ErrClosed
		return s
	}
	if err := checkNoNUL("icon format", format); err != nil {
		s.cfgErr = err
		return s
	}
	if err := s.backend.SetIconFromData(data, format); err != nil {
		s.cfgErr = fmt.Errorf("failed to set icon: %w", err)
	}
	return s
}

// Err returns the first error recorded by the builder chain, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfgErr
}

// Start hands the blocking native loop to a background goroutine and
// returns once it is spawned. The session stays occupied until Stop
// reclaims it, even if the loop exits on its own, so a second Start
// without an intervening Stop returns ErrAlreadyRunning. The loop's exit
// code is recorded in the log; a nonzero code does not fail the session.
func (s *Session) Start() error {
	if err := s.Err(); err != nil {
		return err
	}

	s.runMu.Lock()
	if s.done != nil {
		s.runMu.Unlock()
		return ErrAlreadyRunning
	}
	done := make(chan struct{})
	s.done = done
	s.runMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.runMu.Lock()
		s.done = nil
		s.runMu.Unlock()
		return ErrClosed
	}
	b := s.backend
	s.mu.Unlock()

	// The loop runs without the session lock so configuration and polling
	// stay available while it blocks.
	go func() {
		defer close(done)
		code := b.Run()
		if code != 0 {
			logging.Warn(logging.CatSession, "Tray loop exited with nonzero code", map[string]any{
				"code": code,
			})
		}
	}()
	return nil
}

// Stop asks the native loop to quit and waits for the background goroutine
// to finish. It is safe from any goroutine and at any time: stopping a
// session that was never started is a no-op, and concurrent or repeated
// calls are harmless because only one caller reclaims the run.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.closed {
		s.backend.RequestQuit()
	}
	s.mu.Unlock()

	s.runMu.Lock()
	done := s.done
	s.done = nil
	s.runMu.Unlock()

	if done == nil {
		return
	}
	<-done
}

// PollEvent pops at most one pending tray event without blocking. When
// nothing happened since the last call it returns an Event with Kind
// EventNone. Polling a session whose loop is not running also reports
// EventNone. A discriminant outside the known set is returned as an
// UnrecognizedEventError carrying the raw value; the session stays usable.
func (s *Session) PollEvent() (Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Event{}, ErrClosed
	}
	raw, err := s.backend.PollEvent()
	s.mu.Unlock()
	if err != nil {
		return Event{}, fmt.Errorf("failed to poll event: %w", err)
	}

	switch raw.Code {
	case CodeNone:
		return Event{Kind: EventNone}, nil
	case CodeTrayClicked:
		return Event{Kind: EventTrayClicked}, nil
	case CodeTrayDoubleClicked:
		return Event{Kind: EventTrayDoubleClicked}, nil
	case CodeMenuItemClicked:
		return Event{Kind: EventMenuItemClicked, MenuID: raw.MenuID}, nil
	default:
		return Event{}, fmt.Errorf("failed to poll event: %w", &UnrecognizedEventError{Code: raw.Code})
	}
}

// Close stops the loop if it is running and releases the native resources.
// The backend is destroyed exactly once no matter how often Close is
// called. Meant to be deferred at the scope that created the session.
func (s *Session) Close() error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.backend.Destroy()
	return nil
}

func checkNoNUL(field, value string) error {
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%w: %s contains a NUL byte", ErrInvalidArgument, field)
	}
	return nil
}
