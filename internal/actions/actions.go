package actions

import (
	"fmt"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/skratchdot/open-golang/open"

	"github.com/glasswing-io/tray-agent/internal/config"
	"github.com/glasswing-io/tray-agent/internal/logging"
	"github.com/glasswing-io/tray-agent/internal/version"
	"github.com/glasswing-io/tray-agent/internal/welcome"
)

// matchCacheSize bounds the menu-id match cache. Menu ids are open-ended
// because helpers can add entries at runtime behind the agent's back.
const matchCacheSize = 128

type rule struct {
	pattern glob.Glob
	action  config.Action
}

// Dispatcher routes menu clicks to the configured actions. The first rule
// whose glob matches the menu id wins; ids with no rule are logged and
// dropped.
type Dispatcher struct {
	rules     []rule
	cache     *lru.Cache[string, int]
	statusURL string
	quit      func()
	opener    func(string) error
	about     func()
}

// NewDispatcher compiles the configured action rules. statusURL is the
// agent's own status page, used by open-status actions; quit is invoked
// when a quit action fires.
func NewDispatcher(actions []config.Action, statusURL string, quit func()) (*Dispatcher, error) {
	rules := make([]rule, 0, len(actions))
	for i, action := range actions {
		pattern, err := glob.Compile(action.Match)
		if err != nil {
			return nil, fmt.Errorf("failed to compile action %d match %q: %w", i, action.Match, err)
		}
		rules = append(rules, rule{pattern: pattern, action: action})
	}

	cache, err := lru.New[string, int](matchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create match cache: %w", err)
	}

	return &Dispatcher{
		rules:     rules,
		cache:     cache,
		statusURL: statusURL,
		quit:      quit,
		opener:    open.Run,
		about:     func() { welcome.ShowAbout(version.Current, statusURL) },
	}, nil
}

// Dispatch handles one menu click and returns the kind of the action that
// fired, or an empty string when no rule matched.
func (d *Dispatcher) Dispatch(menuID string) string {
	idx := d.match(menuID)
	if idx < 0 {
		logging.Debug(logging.CatAction, "No action for menu item", map[string]any{
			"id": menuID,
		})
		return ""
	}

	action := d.rules[idx].action
	switch action.Kind {
	case config.ActionOpenURL:
		d.openInBrowser(action.URL, menuID)
	case config.ActionOpenStatus:
		d.openInBrowser(d.statusURL, menuID)
	case config.ActionAbout:
		logging.Debug(logging.CatAction, "Showing about dialog", map[string]any{
			"id": menuID,
		})
		// The dialog blocks until dismissed; keep the poll loop moving.
		go d.about()
	case config.ActionQuit:
		logging.Info(logging.CatAction, "Quit requested from tray menu", map[string]any{
			"id": menuID,
		})
		if d.quit != nil {
			d.quit()
		}
	case config.ActionLog:
		logging.Info(logging.CatAction, "Menu item clicked", map[string]any{
			"id": menuID,
		})
	}
	return action.Kind
}

// match resolves a menu id to the index of its first matching rule, -1
// when none does. Results are cached per id.
func (d *Dispatcher) match(menuID string) int {
	if idx, ok := d.cache.Get(menuID); ok {
		return idx
	}

	idx := -1
	for i, r := range d.rules {
		if r.pattern.Match(menuID) {
			idx = i
			break
		}
	}
	d.cache.Add(menuID, idx)
	return idx
}

// openInBrowser hands the URL to the desktop without blocking the caller's
// poll loop.
func (d *Dispatcher) openInBrowser(url, menuID string) {
	go func() {
		if err := d.opener(url); err != nil {
			logging.Warn(logging.CatAction, "Failed to open URL", map[string]any{
				"id":    menuID,
				"url":   url,
				"error": err.Error(),
			})
		}
	}()
}
