package backend

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/tray"
)

// DefaultHelperName is looked up on PATH when no explicit helper path is
// configured.
const DefaultHelperName = "tray-agent-helper"

const (
	// The hello reply can be slow while the helper loads the native toolkit.
	helperHelloTimeout = 10 * time.Second
	helperAckTimeout   = 5 * time.Second
	helperStopTimeout  = 3 * time.Second
)

// Helper drives an external helper binary that owns the native tray on the
// agent's behalf. The two processes speak newline-delimited JSON: commands
// go to the helper's stdin, replies, events, and the final exit report come
// back on its stdout. Configuration is buffered and replayed on every Run,
// so a helper restart rebuilds the same tray.
type Helper struct {
	path string

	mu           sync.Mutex
	queue        eventQueue
	organization string
	appID        string
	items        []menuSpec
	iconData     []byte
	iconFormat   string

	cmd          *exec.Cmd
	replies      chan Message
	exitCodes    chan int
	shutdownCh   chan struct{}
	readerDone   chan struct{}
	monitorDone  chan struct{}
	exitReported bool
	quitPending  bool
	running      bool

	// wmu serializes stdin writes so concurrent commands cannot interleave.
	wmu   sync.Mutex
	stdin io.WriteCloser
}

var _ tray.Backend = (*Helper)(nil)

// NewHelper resolves the helper binary and prepares a driver around it.
// An empty path selects DefaultHelperName from PATH.
func NewHelper(path string) (*Helper, error) {
	if path == "" {
		path = DefaultHelperName
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrHelperNotFound, path)
	}
	return &Helper{path: resolved}, nil
}

func (h *Helper) SetOrganizationName(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.organization = name
	return nil
}

func (h *Helper) SetAppID(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appID = id
	return nil
}

// InitTray is a no-op for this driver. The helper builds its native tray
// when the replayed init command arrives at Run time.
func (h *Helper) InitTray() error {
	return nil
}

// AddMenuItem records the entry for replay. When the helper is already
// running the entry is also forwarded live.
func (h *Helper) AddMenuItem(text, id string) error {
	h.mu.Lock()
	h.items = append(h.items, menuSpec{text: text, id: id})
	running := h.running
	h.mu.Unlock()

	if !running {
		return nil
	}
	return h.roundTrip(Command{Name: CommandMenuAdd, Text: text, ID: id})
}

// SetIconFromData records the icon for replay, forwarding it live when the
// helper is already running.
func (h *Helper) SetIconFromData(data []byte, format string) error {
	h.mu.Lock()
	h.iconData = data
	h.iconFormat = format
	running := h.running
	h.mu.Unlock()

	if !running {
		return nil
	}
	return h.roundTrip(Command{Name: CommandIconSet, Data: data, Format: format})
}

// Run spawns the helper process, replays the buffered configuration, and
// blocks until the helper's loop ends. The helper's exit report is the
// loop's result; a helper that dies without one counts as a failed loop.
func (h *Helper) Run() int {
	h.mu.Lock()
	if h.quitPending {
		// A quit arrived before the loop was up; honor it now.
		h.quitPending = false
		h.mu.Unlock()
		return 0
	}
	h.mu.Unlock()

	if err := h.start(); err != nil {
		logging.Error(logging.CatBackend, "Failed to start tray helper", map[string]any{
			"path":  h.path,
			"error": err.Error(),
		})
		return -1
	}
	if err := h.configure(); err != nil {
		logging.Error(logging.CatBackend, "Failed to configure tray helper", map[string]any{
			"error": err.Error(),
		})
		h.teardown()
		return -1
	}
	if err := h.roundTrip(Command{Name: CommandRun}); err != nil {
		logging.Error(logging.CatBackend, "Tray helper refused to run", map[string]any{
			"error": err.Error(),
		})
		h.teardown()
		return -1
	}

	h.mu.Lock()
	pending := h.quitPending
	h.quitPending = false
	exitCodes := h.exitCodes
	h.mu.Unlock()

	if pending {
		// A quit raced the startup; forward it now that the loop is up.
		h.RequestQuit()
	}

	code := <-exitCodes
	h.teardown()
	return code
}

// RequestQuit asks the helper to leave its loop. Safe from any goroutine.
// With no helper process to deliver to, the request is latched and makes
// the next Run return immediately.
func (h *Helper) RequestQuit() {
	h.mu.Lock()
	running := h.running
	if !running {
		h.quitPending = true
	}
	h.mu.Unlock()
	if !running {
		return
	}
	if err := h.send(Command{Name: CommandQuit}); err != nil {
		logging.Debug(logging.CatBackend, "Quit request not delivered to helper", map[string]any{
			"error": err.Error(),
		})
	}
}

func (h *Helper) PollEvent() (tray.RawEvent, error) {
	return h.queue.pop(), nil
}

// Destroy stops any lingering helper process and drops buffered state.
func (h *Helper) Destroy() {
	h.RequestQuit()
	h.teardown()
	h.queue.clear()

	h.mu.Lock()
	h.items = nil
	h.iconData = nil
	h.iconFormat = ""
	h.mu.Unlock()
}

// start launches the helper process, wires the reader and monitor
// goroutines, and performs the hello handshake.
func (h *Helper) start() error {
	cmd := exec.Command(h.path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open helper stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open helper stdout: %w", err)
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start helper %s: %w", h.path, err)
	}

	replies := make(chan Message, 16)
	exitCodes := make(chan int, 1)
	shutdownCh := make(chan struct{})
	readerDone := make(chan struct{})
	monitorDone := make(chan struct{})

	h.mu.Lock()
	h.cmd = cmd
	h.replies = replies
	h.exitCodes = exitCodes
	h.shutdownCh = shutdownCh
	h.readerDone = readerDone
	h.monitorDone = monitorDone
	h.exitReported = false
	h.running = true
	h.mu.Unlock()

	h.wmu.Lock()
	h.stdin = stdin
	h.wmu.Unlock()

	go h.readLines(stdout, replies, exitCodes, readerDone)
	go h.monitor(cmd, shutdownCh, readerDone, monitorDone, exitCodes)

	if err := h.send(Command{Name: CommandHello, Version: ProtocolVersion}); err != nil {
		h.teardown()
		return err
	}
	msg, err := h.readReply(helperHelloTimeout)
	if err != nil {
		h.teardown()
		return fmt.Errorf("helper handshake failed: %w", err)
	}
	if err := checkHelloReply(msg); err != nil {
		h.teardown()
		return err
	}

	logging.Info(logging.CatBackend, "Tray helper started", map[string]any{
		"path":     h.path,
		"protocol": msg.Version,
	})
	return nil
}

// configure replays the buffered tray configuration into a fresh helper.
func (h *Helper) configure() error {
	for _, cmd := range h.configCommands() {
		if err := h.roundTrip(cmd); err != nil {
			return err
		}
	}
	return nil
}

// configCommands renders the buffered configuration as the command
// sequence a fresh helper needs: init first, then the menu entries in add
// order, then the icon if one is set.
func (h *Helper) configCommands() []Command {
	h.mu.Lock()
	defer h.mu.Unlock()

	cmds := []Command{{Name: CommandInit, Organization: h.organization, AppID: h.appID}}
	for _, item := range h.items {
		cmds = append(cmds, Command{Name: CommandMenuAdd, Text: item.text, ID: item.id})
	}
	if len(h.iconData) > 0 {
		cmds = append(cmds, Command{Name: CommandIconSet, Data: h.iconData, Format: h.iconFormat})
	}
	return cmds
}

// roundTrip sends one command and waits for its acknowledgement.
func (h *Helper) roundTrip(cmd Command) error {
	if err := h.send(cmd); err != nil {
		return err
	}
	msg, err := h.readReply(helperAckTimeout)
	if err != nil {
		return fmt.Errorf("no reply to %s: %w", cmd.Name, err)
	}
	if !msg.OK {
		return fmt.Errorf("%w: helper rejected %s: %s", ErrProtocol, cmd.Name, msg.Error)
	}
	return nil
}

// send writes one command line to the helper's stdin.
func (h *Helper) send(cmd Command) error {
	line, err := encodeCommand(cmd)
	if err != nil {
		return err
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()
	if h.stdin == nil {
		return fmt.Errorf("%w: helper not running", ErrProtocol)
	}
	if _, err := h.stdin.Write(line); err != nil {
		return fmt.Errorf("failed to write %s command: %w", cmd.Name, err)
	}
	return nil
}

// readReply waits for the next reply line from the helper.
func (h *Helper) readReply(timeout time.Duration) (Message, error) {
	h.mu.Lock()
	replies := h.replies
	h.mu.Unlock()
	if replies == nil {
		return Message{}, fmt.Errorf("%w: helper not running", ErrProtocol)
	}

	select {
	case msg, ok := <-replies:
		if !ok {
			return Message{}, fmt.Errorf("%w: helper closed its output", ErrProtocol)
		}
		return msg, nil
	case <-time.After(timeout):
		return Message{}, ErrHelperTimeout
	}
}

// readLines is a goroutine that continuously reads helper output and routes
// each line: events to the queue, the exit report to the exit channel, and
// everything else to the reply channel. A single reader avoids races on the
// pipe.
func (h *Helper) readLines(stdout io.Reader, replies chan Message, exitCodes chan int, readerDone chan struct{}) {
	defer close(readerDone)
	defer close(replies)

	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF or error - the helper is gone
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		msg, err := decodeMessage([]byte(line))
		if err != nil {
			logging.Warn(logging.CatBackend, "Discarding malformed helper line", map[string]any{
				"error": err.Error(),
			})
			continue
		}

		switch {
		case msg.IsEvent():
			h.queue.push(tray.RawEvent{Code: tray.EventCode(*msg.Event), MenuID: msg.MenuID})
		case msg.IsExit():
			h.mu.Lock()
			h.exitReported = true
			h.mu.Unlock()
			select {
			case exitCodes <- *msg.ExitCode:
			default:
			}
		default:
			select {
			case replies <- msg:
			default:
				// Nobody is waiting for this reply; drop it rather than
				// wedge the reader.
			}
		}
	}
}

// monitor owns the process reaping. It lets the reader drain the last lines
// before judging whether the helper died without an exit report.
func (h *Helper) monitor(cmd *exec.Cmd, shutdownCh, readerDone, monitorDone chan struct{}, exitCodes chan int) {
	defer close(monitorDone)

	err := cmd.Wait()
	<-readerDone

	h.mu.Lock()
	reported := h.exitReported
	h.mu.Unlock()

	select {
	case <-shutdownCh:
		// Expected shutdown, ignore
		return
	default:
	}
	if reported {
		return
	}

	logging.Warn(logging.CatBackend, "Tray helper exited unexpectedly", map[string]any{
		"error": fmt.Sprintf("%v", err),
	})
	select {
	case exitCodes <- -1:
	default:
	}
}

// teardown reclaims the helper process after the loop ends or a startup
// step fails. The process gets a grace period to exit before it is killed.
func (h *Helper) teardown() {
	h.mu.Lock()
	cmd := h.cmd
	exitCodes := h.exitCodes
	shutdownCh := h.shutdownCh
	monitorDone := h.monitorDone
	h.cmd = nil
	h.replies = nil
	h.exitCodes = nil
	h.shutdownCh = nil
	h.readerDone = nil
	h.monitorDone = nil
	h.running = false
	h.mu.Unlock()

	h.wmu.Lock()
	stdin := h.stdin
	h.stdin = nil
	h.wmu.Unlock()

	if shutdownCh != nil {
		close(shutdownCh)
	}
	if stdin != nil {
		stdin.Close()
	}
	if exitCodes != nil {
		// Unblock a Run still waiting in case teardown came from Destroy.
		select {
		case exitCodes <- -1:
		default:
		}
	}
	if cmd == nil {
		return
	}

	select {
	case <-monitorDone:
		// Process exited cleanly
	case <-time.After(helperStopTimeout):
		// Force kill
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-monitorDone
	}
}
