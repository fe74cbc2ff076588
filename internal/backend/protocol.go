package backend

import (
	"encoding/json"
	"fmt"

	"github.com/glasswing-io/tray-agent/internal/version"
)

// ProtocolVersion is the helper protocol generation the agent speaks.
// A helper must answer the hello with a version of the same major.
const ProtocolVersion = "1.0.0"

// Commands the agent writes to the helper's stdin, one JSON object per line.
// Every command except quit is acknowledged with a reply line. A quit that
// arrives before run must be latched by the helper so the eventual run
// returns immediately.
const (
	CommandHello   = "hello"
	CommandInit    = "init"
	CommandMenuAdd = "menu.add"
	CommandIconSet = "icon.set"
	CommandRun     = "run"
	CommandQuit    = "quit"
)

// Command is a single request line sent to the helper. Only the fields
// relevant to the named command are populated.
type Command struct {
	Name         string `json:"command"`
	Organization string `json:"organization,omitempty"`
	AppID        string `json:"app_id,omitempty"`
	Text         string `json:"text,omitempty"`
	ID           string `json:"id,omitempty"`
	Data         []byte `json:"data,omitempty"`
	Format       string `json:"format,omitempty"`
	Version      string `json:"version,omitempty"`
}

// Message is a single line read from the helper's stdout: a reply to the
// most recent command, an asynchronous tray event, or the final exit
// report before the helper terminates.
type Message struct {
	OK       bool   `json:"ok,omitempty"`
	Error    string `json:"error,omitempty"`
	Version  string `json:"version,omitempty"`
	Event    *int   `json:"event,omitempty"`
	MenuID   string `json:"menu_id,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

// IsEvent reports whether the line carries an asynchronous tray event.
func (m *Message) IsEvent() bool {
	return m.Event != nil
}

// IsExit reports whether the line is the helper's final exit report.
func (m *Message) IsExit() bool {
	return m.ExitCode != nil
}

// encodeCommand renders a command as a newline-terminated JSON line.
func encodeCommand(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s command: %w", cmd.Name, err)
	}
	return append(data, '\n'), nil
}

// decodeMessage parses one line of helper output.
func decodeMessage(line []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return Message{}, fmt.Errorf("%w: malformed helper line: %v", ErrProtocol, err)
	}
	return msg, nil
}

// checkHelloReply validates the helper's answer to the hello command. The
// helper is accepted when it reports success and a protocol version whose
// major matches ours. Dev builds of the helper are accepted as-is.
func checkHelloReply(msg Message) error {
	if !msg.OK {
		if msg.Error != "" {
			return fmt.Errorf("%w: helper rejected hello: %s", ErrProtocol, msg.Error)
		}
		return fmt.Errorf("%w: helper rejected hello", ErrProtocol)
	}
	theirs := version.ParseVersion(msg.Version)
	if theirs.IsDev() {
		return nil
	}
	ours := version.ParseVersion(ProtocolVersion)
	if theirs.Major != ours.Major {
		return fmt.Errorf("%w: helper speaks protocol %s, agent speaks %s",
			ErrProtocol, msg.Version, ProtocolVersion)
	}
	return nil
}
