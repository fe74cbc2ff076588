//go:build linux

package backend

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// layoutNode mirrors the (ia{sv}av) wire structure of a dbusmenu layout
// entry. Children hold further layoutNode values wrapped in variants.
type layoutNode struct {
	ID       int32
	Props    map[string]dbus.Variant
	Children []dbus.Variant
}

// menuItemProps is the (ia{sv}) element of a GetGroupProperties reply.
type menuItemProps struct {
	ID    int32
	Props map[string]dbus.Variant
}

// menuLayout builds the current layout tree. The root carries id 0 and the
// configured entries follow as children with ids 1..n in add order.
func (n *NotifierItem) menuLayout() (uint32, layoutNode) {
	n.mu.Lock()
	defer n.mu.Unlock()

	root := layoutNode{
		ID: 0,
		Props: map[string]dbus.Variant{
			"children-display": dbus.MakeVariant("submenu"),
		},
	}
	for i, it := range n.items {
		child := layoutNode{
			ID:    int32(i + 1),
			Props: menuEntryProps(it.text),
		}
		root.Children = append(root.Children, dbus.MakeVariant(child))
	}
	return n.revision, root
}

func menuEntryProps(label string) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"label":   dbus.MakeVariant(label),
		"enabled": dbus.MakeVariant(true),
		"visible": dbus.MakeVariant(true),
	}
}

// menuReceiver implements the com.canonical.dbusmenu surface hosts talk to.
type menuReceiver struct {
	item *NotifierItem
}

func (r *menuReceiver) GetLayout(parentID int32, recursionDepth int32, propertyNames []string) (uint32, layoutNode, *dbus.Error) {
	revision, root := r.item.menuLayout()
	if parentID == 0 {
		return revision, root, nil
	}
	for _, c := range root.Children {
		if node, ok := c.Value().(layoutNode); ok && node.ID == parentID {
			return revision, node, nil
		}
	}
	return revision, layoutNode{}, dbus.MakeFailedError(fmt.Errorf("unknown menu node %d", parentID))
}

func (r *menuReceiver) GetGroupProperties(ids []int32, propertyNames []string) ([]menuItemProps, *dbus.Error) {
	_, root := r.item.menuLayout()

	all := make([]menuItemProps, 0, len(root.Children)+1)
	all = append(all, menuItemProps{ID: root.ID, Props: root.Props})
	for _, c := range root.Children {
		if node, ok := c.Value().(layoutNode); ok {
			all = append(all, menuItemProps{ID: node.ID, Props: node.Props})
		}
	}
	if len(ids) == 0 {
		return all, nil
	}

	wanted := make(map[int32]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	out := make([]menuItemProps, 0, len(ids))
	for _, p := range all {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *menuReceiver) GetProperty(id int32, name string) (dbus.Variant, *dbus.Error) {
	_, root := r.item.menuLayout()
	if id == 0 {
		if v, ok := root.Props[name]; ok {
			return v, nil
		}
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property %q", name))
	}
	for _, c := range root.Children {
		node, ok := c.Value().(layoutNode)
		if !ok || node.ID != id {
			continue
		}
		if v, ok := node.Props[name]; ok {
			return v, nil
		}
		return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown property %q", name))
	}
	return dbus.Variant{}, dbus.MakeFailedError(fmt.Errorf("unknown menu node %d", id))
}

func (r *menuReceiver) Event(id int32, eventID string, data dbus.Variant, timestamp uint32) *dbus.Error {
	if eventID == "clicked" {
		r.item.menuClicked(id)
	}
	return nil
}

func (r *menuReceiver) AboutToShow(id int32) (bool, *dbus.Error) {
	return false, nil
}
