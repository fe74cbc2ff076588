package actions

import (
	"testing"
	"time"

	"github.com/glasswing-io/tray-agent/internal/config"
)

func newTestDispatcher(t *testing.T, actions []config.Action, statusURL string, quit func()) (*Dispatcher, chan string) {
	t.Helper()
	d, err := NewDispatcher(actions, statusURL, quit)
	if err != nil {
		t.Fatalf("NewDispatcher() returned error: %v", err)
	}
	opened := make(chan string, 4)
	d.opener = func(url string) error {
		opened <- url
		return nil
	}
	return d, opened
}

func awaitURL(t *testing.T, opened chan string) string {
	t.Helper()
	select {
	case url := <-opened:
		return url
	case <-time.After(2 * time.Second):
		t.Fatal("no URL was opened")
		return ""
	}
}

func TestDispatch_Quit(t *testing.T) {
	quits := 0
	d, _ := newTestDispatcher(t, []config.Action{
		{Match: "exit", Kind: config.ActionQuit},
	}, "", func() { quits++ })

	if kind := d.Dispatch("exit"); kind != config.ActionQuit {
		t.Errorf("Dispatch(exit) = %q, want %q", kind, config.ActionQuit)
	}
	if quits != 1 {
		t.Errorf("quit callback ran %d times, want 1", quits)
	}
}

func TestDispatch_OpenURL(t *testing.T) {
	d, opened := newTestDispatcher(t, []config.Action{
		{Match: "dashboard", Kind: config.ActionOpenURL, URL: "https://example.com/dashboard"},
	}, "", nil)

	if kind := d.Dispatch("dashboard"); kind != config.ActionOpenURL {
		t.Errorf("Dispatch(dashboard) = %q, want %q", kind, config.ActionOpenURL)
	}
	if url := awaitURL(t, opened); url != "https://example.com/dashboard" {
		t.Errorf("opened %q, want the configured URL", url)
	}
}

func TestDispatch_OpenStatus(t *testing.T) {
	d, opened := newTestDispatcher(t, []config.Action{
		{Match: "open", Kind: config.ActionOpenStatus},
	}, "http://127.0.0.1:32610/", nil)

	if kind := d.Dispatch("open"); kind != config.ActionOpenStatus {
		t.Errorf("Dispatch(open) = %q, want %q", kind, config.ActionOpenStatus)
	}
	if url := awaitURL(t, opened); url != "http://127.0.0.1:32610/" {
		t.Errorf("opened %q, want the status page", url)
	}
}

func TestDispatch_About(t *testing.T) {
	d, _ := newTestDispatcher(t, []config.Action{
		{Match: "about", Kind: config.ActionAbout},
	}, "", nil)

	shown := make(chan struct{}, 1)
	d.about = func() { shown <- struct{}{} }

	if kind := d.Dispatch("about"); kind != config.ActionAbout {
		t.Errorf("Dispatch(about) = %q, want %q", kind, config.ActionAbout)
	}
	select {
	case <-shown:
	case <-time.After(2 * time.Second):
		t.Fatal("about dialog was not shown")
	}
}

func TestDispatch_GlobPatterns(t *testing.T) {
	d, _ := newTestDispatcher(t, []config.Action{
		{Match: "settings.*", Kind: config.ActionLog},
	}, "", nil)

	if kind := d.Dispatch("settings.general"); kind != config.ActionLog {
		t.Errorf("Dispatch(settings.general) = %q, want %q", kind, config.ActionLog)
	}
	if kind := d.Dispatch("help"); kind != "" {
		t.Errorf("Dispatch(help) = %q, want no action", kind)
	}
}

func TestDispatch_FirstRuleWins(t *testing.T) {
	quits := 0
	d, _ := newTestDispatcher(t, []config.Action{
		{Match: "*", Kind: config.ActionLog},
		{Match: "exit", Kind: config.ActionQuit},
	}, "", func() { quits++ })

	if kind := d.Dispatch("exit"); kind != config.ActionLog {
		t.Errorf("Dispatch(exit) = %q, want the first rule's %q", kind, config.ActionLog)
	}
	if quits != 0 {
		t.Errorf("quit callback ran %d times, want 0", quits)
	}
}

func TestDispatch_CachesMatches(t *testing.T) {
	d, _ := newTestDispatcher(t, []config.Action{
		{Match: "exit", Kind: config.ActionLog},
	}, "", nil)

	d.Dispatch("exit")
	idx, ok := d.cache.Get("exit")
	if !ok || idx != 0 {
		t.Errorf("cache entry for exit = (%d, %v), want (0, true)", idx, ok)
	}

	d.Dispatch("unknown")
	idx, ok = d.cache.Get("unknown")
	if !ok || idx != -1 {
		t.Errorf("cache entry for unknown = (%d, %v), want (-1, true)", idx, ok)
	}
}

func TestDispatch_NoRules(t *testing.T) {
	d, _ := newTestDispatcher(t, nil, "", nil)
	if kind := d.Dispatch("anything"); kind != "" {
		t.Errorf("Dispatch() = %q, want no action", kind)
	}
}

func TestNewDispatcher_BadGlob(t *testing.T) {
	_, err := NewDispatcher([]config.Action{
		{Match: "[", Kind: config.ActionQuit},
	}, "", nil)
	if err == nil {
		t.Fatal("NewDispatcher() compiled an invalid glob")
	}
}
