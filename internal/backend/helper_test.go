package backend

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glasswing-io/tray-agent/internal/tray"
)

func TestHelper_ConfigCommands(t *testing.T) {
	h := &Helper{}
	if err := h.SetOrganizationName("TestOrg"); err != nil {
		t.Fatalf("SetOrganizationName() returned error: %v", err)
	}
	if err := h.SetAppID("test.app"); err != nil {
		t.Fatalf("SetAppID() returned error: %v", err)
	}
	if err := h.AddMenuItem("Open", "open"); err != nil {
		t.Fatalf("AddMenuItem() returned error: %v", err)
	}
	if err := h.AddMenuItem("Exit", "exit"); err != nil {
		t.Fatalf("AddMenuItem() returned error: %v", err)
	}
	if err := h.SetIconFromData([]byte{0x89, 0x50}, "PNG"); err != nil {
		t.Fatalf("SetIconFromData() returned error: %v", err)
	}

	cmds := h.configCommands()
	if len(cmds) != 4 {
		t.Fatalf("configCommands() returned %d commands, want 4", len(cmds))
	}
	if cmds[0].Name != CommandInit || cmds[0].Organization != "TestOrg" || cmds[0].AppID != "test.app" {
		t.Errorf("first command = %+v, want init for TestOrg/test.app", cmds[0])
	}
	if cmds[1].Name != CommandMenuAdd || cmds[1].ID != "open" {
		t.Errorf("second command = %+v, want menu.add open", cmds[1])
	}
	if cmds[2].Name != CommandMenuAdd || cmds[2].ID != "exit" {
		t.Errorf("third command = %+v, want menu.add exit", cmds[2])
	}
	if cmds[3].Name != CommandIconSet || cmds[3].Format != "PNG" || len(cmds[3].Data) != 2 {
		t.Errorf("fourth command = %+v, want icon.set with 2 bytes of PNG", cmds[3])
	}
}

func TestHelper_ConfigCommandsWithoutIcon(t *testing.T) {
	h := &Helper{}
	h.SetOrganizationName("TestOrg")
	h.SetAppID("test.app")

	cmds := h.configCommands()
	if len(cmds) != 1 {
		t.Fatalf("configCommands() returned %d commands, want just init", len(cmds))
	}
	if cmds[0].Name != CommandInit {
		t.Errorf("command = %+v, want init", cmds[0])
	}
}

func TestHelper_ReadLinesRouting(t *testing.T) {
	transcript := strings.Join([]string{
		`{"ok":true,"version":"1.0.0"}`,
		`{"event":1}`,
		`not json at all`,
		`{"event":3,"menu_id":"open"}`,
		``,
		`{"exit_code":0}`,
	}, "\n") + "\n"

	h := &Helper{}
	replies := make(chan Message, 4)
	exitCodes := make(chan int, 1)
	readerDone := make(chan struct{})

	h.readLines(strings.NewReader(transcript), replies, exitCodes, readerDone)

	select {
	case <-readerDone:
	default:
		t.Fatal("readLines returned without closing readerDone")
	}

	reply, ok := <-replies
	if !ok || !reply.OK {
		t.Errorf("reply = %+v (ok=%v), want the hello acknowledgement", reply, ok)
	}
	if _, ok := <-replies; ok {
		t.Error("replies channel has more than the one reply")
	}

	first, err := h.PollEvent()
	if err != nil {
		t.Fatalf("PollEvent() returned error: %v", err)
	}
	if first.Code != tray.CodeTrayClicked {
		t.Errorf("first event code = %d, want %d", first.Code, tray.CodeTrayClicked)
	}
	second, _ := h.PollEvent()
	if second.Code != tray.CodeMenuItemClicked || second.MenuID != "open" {
		t.Errorf("second event = %+v, want menu click for \"open\"", second)
	}
	if rest, _ := h.PollEvent(); rest.Code != tray.CodeNone {
		t.Errorf("queue not empty after routing, got %+v", rest)
	}

	select {
	case code := <-exitCodes:
		if code != 0 {
			t.Errorf("exit code = %d, want 0", code)
		}
	default:
		t.Error("exit report was not routed")
	}
}

func TestHelper_ReadLinesKeepsFirstExitCode(t *testing.T) {
	transcript := "{\"exit_code\":2}\n{\"exit_code\":7}\n"

	h := &Helper{}
	replies := make(chan Message, 4)
	exitCodes := make(chan int, 1)
	readerDone := make(chan struct{})

	h.readLines(strings.NewReader(transcript), replies, exitCodes, readerDone)

	if code := <-exitCodes; code != 2 {
		t.Errorf("exit code = %d, want the first report 2", code)
	}
}

func TestHelper_QuitBeforeRun(t *testing.T) {
	h := &Helper{path: "/nonexistent/helper-binary"}
	h.RequestQuit()

	done := make(chan int, 1)
	go func() {
		done <- h.Run()
	}()
	select {
	case code := <-done:
		if code != 0 {
			t.Errorf("Run() after latched quit = %d, want 0", code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not honor the latched quit")
	}
}

func TestHelper_RunWithoutBinary(t *testing.T) {
	h := &Helper{path: "/nonexistent/helper-binary"}
	if code := h.Run(); code != -1 {
		t.Errorf("Run() = %d, want -1 when the helper cannot start", code)
	}
}

func TestNewHelper_MissingBinary(t *testing.T) {
	_, err := NewHelper("/nonexistent/helper-binary")
	if err == nil {
		t.Fatal("NewHelper() found a binary that does not exist")
	}
	if !errors.Is(err, ErrHelperNotFound) {
		t.Errorf("error = %v, want ErrHelperNotFound", err)
	}
	if !IsHelperNotFound(err) {
		t.Error("IsHelperNotFound() = false for a missing binary")
	}
}
