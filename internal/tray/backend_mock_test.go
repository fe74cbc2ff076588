package tray

import "sync"

// Tests drive the session against a scripted backend that behaves like the
// native layer: configuration is recorded, events are served FIFO, and Run
// blocks until a quit request arrives.

type mockMenuItem struct {
	Text string
	ID   string
}

type mockBackend struct {
	mu   sync.Mutex
	cond *sync.Cond

	organization string
	appID        string
	trayInit     bool
	menuItems    []mockMenuItem
	iconData     []byte
	iconFormat   string

	nativeCalls  int // every Backend method except Run/RequestQuit
	runsStarted  int
	destroyCount int

	queue       []RawEvent
	pollErr     error
	cfgErr      error
	exitCode    int
	quitPending bool
}

var _ Backend = (*mockBackend)(nil)

func newMockBackend() *mockBackend {
	m := &mockBackend{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// WithQueuedEvents preloads raw events to be served by PollEvent in order.
func (m *mockBackend) WithQueuedEvents(events ...RawEvent) *mockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, events...)
	return m
}

// WithPollError makes every PollEvent call fail with err.
func (m *mockBackend) WithPollError(err error) *mockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pollErr = err
	return m
}

// WithConfigError makes every configuration call fail with err.
func (m *mockBackend) WithConfigError(err error) *mockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfgErr = err
	return m
}

// WithRunExit sets the code Run returns once quit is requested.
func (m *mockBackend) WithRunExit(code int) *mockBackend {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exitCode = code
	return m
}

// PushEvent appends a raw event while the session is live, like a user
// clicking the real tray.
func (m *mockBackend) PushEvent(ev RawEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, ev)
}

func (m *mockBackend) SetOrganizationName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeCalls++
	if m.cfgErr != nil {
		return m.cfgErr
	}
	m.organization = name
	return nil
}

func (m *mockBackend) SetAppID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeCalls++
	if m.cfgErr != nil {
		return m.cfgErr
	}
	m.appID = id
	return nil
}

func (m *mockBackend) InitTray() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeCalls++
	if m.cfgErr != nil {
		return m.cfgErr
	}
	m.trayInit = true
	return nil
}

func (m *mockBackend) AddMenuItem(text, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeCalls++
	if m.cfgErr != nil {
		return m.cfgErr
	}
	m.menuItems = append(m.menuItems, mockMenuItem{Text: text, ID: id})
	return nil
}

func (m *mockBackend) SetIconFromData(data []byte, format string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeCalls++
	if m.cfgErr != nil {
		return m.cfgErr
	}
	m.iconData = append([]byte(nil), data...)
	m.iconFormat = format
	return nil
}

// Run blocks until a quit request is observed. A request posted before Run
// is consumed immediately, matching a queued quit on a loop that has not
// started yet.
func (m *mockBackend) Run() int {
	m.mu.Lock()
	m.runsStarted++
	for !m.quitPending {
		m.cond.Wait()
	}
	m.quitPending = false
	code := m.exitCode
	m.mu.Unlock()
	return code
}

func (m *mockBackend) RequestQuit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quitPending = true
	m.cond.Broadcast()
}

func (m *mockBackend) PollEvent() (RawEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nativeCalls++
	if m.pollErr != nil {
		return RawEvent{}, m.pollErr
	}
	if len(m.queue) == 0 {
		return RawEvent{Code: CodeNone}, nil
	}
	ev := m.queue[0]
	m.queue = m.queue[1:]
	return ev, nil
}

func (m *mockBackend) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyCount++
}

// Recorder accessors, safe against the session's background goroutine.

func (m *mockBackend) OrganizationName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.organization
}

func (m *mockBackend) AppID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appID
}

func (m *mockBackend) MenuItems() []mockMenuItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockMenuItem(nil), m.menuItems...)
}

func (m *mockBackend) IconFormat() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.iconFormat
}

func (m *mockBackend) IconData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.iconData...)
}

func (m *mockBackend) NativeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nativeCalls
}

func (m *mockBackend) RunsStarted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runsStarted
}

func (m *mockBackend) DestroyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyCount
}
