package main

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/glasswing-io/tray-agent/internal/backend"
	"github.com/glasswing-io/tray-agent/internal/tray"
)

const (
	eventPollInterval = 50 * time.Millisecond

	// Icon payloads arrive base64-encoded on a single line.
	maxLineBytes = 16 * 1024 * 1024
)

// Helper process that owns the native tray loop on behalf of the agent. The
// agent drives it over stdin/stdout with the newline-delimited JSON protocol
// from the backend package. Keeping the loop here gives it a dedicated main
// thread, which the in-process drivers cannot guarantee.
func main() {
	runtime.LockOSThread()

	h := newHelper()
	go h.readCommands(os.Stdin)

	select {
	case <-h.runCh:
	case <-h.eofCh:
		// The agent went away before asking for the loop.
		if h.driver != nil {
			h.driver.Destroy()
		}
		return
	}

	go h.pumpEvents()
	code := h.driver.Run()
	h.reportExit(code)
	h.driver.Destroy()
}

type helper struct {
	driver    tray.Backend
	driverErr error

	wmu sync.Mutex
	out *bufio.Writer

	runCh   chan struct{}
	eofCh   chan struct{}
	runOnce sync.Once
	eofOnce sync.Once
}

func newHelper() *helper {
	driver, err := backend.New(backend.KindAuto, "")
	return &helper{
		driver:    driver,
		driverErr: err,
		out:       bufio.NewWriter(os.Stdout),
		runCh:     make(chan struct{}),
		eofCh:     make(chan struct{}),
	}
}

func (h *helper) readCommands(r io.Reader) {
	defer h.eofOnce.Do(func() { close(h.eofCh) })

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var cmd backend.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			h.reply(backend.Message{Error: "malformed command: " + err.Error()})
			continue
		}
		h.handle(cmd)
	}

	// EOF or read error: the agent is gone. Stop the loop if it runs.
	if h.driver != nil {
		h.driver.RequestQuit()
	}
}

func (h *helper) handle(cmd backend.Command) {
	if cmd.Name == backend.CommandHello {
		if h.driverErr != nil {
			h.reply(backend.Message{Error: h.driverErr.Error(), Version: backend.ProtocolVersion})
			return
		}
		h.reply(backend.Message{OK: true, Version: backend.ProtocolVersion})
		return
	}

	if h.driver == nil {
		h.reply(backend.Message{Error: "no tray driver available"})
		return
	}

	switch cmd.Name {
	case backend.CommandInit:
		h.ack(h.initTray(cmd))
	case backend.CommandMenuAdd:
		h.ack(h.driver.AddMenuItem(cmd.Text, cmd.ID))
	case backend.CommandIconSet:
		h.ack(h.driver.SetIconFromData(cmd.Data, cmd.Format))
	case backend.CommandRun:
		h.ack(nil)
		h.runOnce.Do(func() { close(h.runCh) })
	case backend.CommandQuit:
		// The driver latches a quit that beats the loop, so this is safe
		// at any point in the handshake.
		h.driver.RequestQuit()
	default:
		h.reply(backend.Message{Error: "unknown command: " + cmd.Name})
	}
}

func (h *helper) initTray(cmd backend.Command) error {
	if err := h.driver.SetOrganizationName(cmd.Organization); err != nil {
		return err
	}
	if err := h.driver.SetAppID(cmd.AppID); err != nil {
		return err
	}
	return h.driver.InitTray()
}

// pumpEvents forwards queued tray events to the agent as they appear.
func (h *helper) pumpEvents() {
	ticker := time.NewTicker(eventPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		for {
			ev, err := h.driver.PollEvent()
			if err != nil || ev.Code == tray.CodeNone {
				break
			}
			code := int(ev.Code)
			h.reply(backend.Message{Event: &code, MenuID: ev.MenuID})
		}
	}
}

func (h *helper) reportExit(code int) {
	h.reply(backend.Message{ExitCode: &code})
}

func (h *helper) ack(err error) {
	if err != nil {
		h.reply(backend.Message{Error: err.Error()})
		return
	}
	h.reply(backend.Message{OK: true})
}

func (h *helper) reply(msg backend.Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()
	h.out.Write(raw)
	h.out.WriteByte('\n')
	h.out.Flush()
}
