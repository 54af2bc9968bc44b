package input

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/xoverview/xoverview/internal/layout"
)

// Kind classifies what the user asked for.
type Kind int

const (
	// None means the event changed nothing actionable.
	None Kind = iota
	// Select means a window thumbnail was activated.
	Select
	// Dismiss closes the overview without selecting.
	Dismiss
	// Hover means the pointer moved onto a different thumbnail.
	Hover
)

// Action is the interpreted result of one input event.
type Action struct {
	Kind   Kind
	Window xproto.Window
}

// KeysymLookup resolves a key press to its symbol name ("Escape",
// "Return", "q", ...). The real implementation is xgbutil's keybind
// lookup; tests inject a table.
type KeysymLookup func(state uint16, detail xproto.Keycode) string

// Handler turns raw pointer and keyboard events into overview actions by
// hit-testing against the current thumbnail slots.
type Handler struct {
	slots   []layout.Slot
	lookup  KeysymLookup
	hovered xproto.Window
	pressed xproto.Window
}

// NewHandler creates a handler over the given slots.
func NewHandler(slots []layout.Slot, lookup KeysymLookup) *Handler {
	return &Handler{slots: slots, lookup: lookup}
}

// UpdateSlots replaces the hit-test rectangles, e.g. after a re-layout.
func (h *Handler) UpdateSlots(slots []layout.Slot) {
	h.slots = slots
}

// Hovered returns the window currently under the pointer, or zero.
func (h *Handler) Hovered() xproto.Window {
	return h.hovered
}

// HandleKeyPress maps Escape/q to dismissal and Return to selecting the
// hovered thumbnail.
func (h *Handler) HandleKeyPress(ev xproto.KeyPressEvent) Action {
	if h.lookup == nil {
		return Action{}
	}
	switch h.lookup(ev.State, ev.Detail) {
	case "Escape", "q":
		return Action{Kind: Dismiss}
	case "Return", "KP_Enter":
		if h.hovered != 0 {
			return Action{Kind: Select, Window: h.hovered}
		}
	}
	return Action{}
}

// HandleButtonPress records which thumbnail (if any) the press landed on.
func (h *Handler) HandleButtonPress(ev xproto.ButtonPressEvent) Action {
	h.pressed = h.hit(ev.EventX, ev.EventY)
	return Action{}
}

// HandleButtonRelease selects the thumbnail when press and release landed
// on the same one, and dismisses the overview on a click over empty
// background.
func (h *Handler) HandleButtonRelease(ev xproto.ButtonReleaseEvent) Action {
	target := h.hit(ev.EventX, ev.EventY)
	pressed := h.pressed
	h.pressed = 0

	if target != 0 && target == pressed {
		return Action{Kind: Select, Window: target}
	}
	if target == 0 && pressed == 0 {
		return Action{Kind: Dismiss}
	}
	return Action{}
}

// HandleMotion tracks the hovered thumbnail.
func (h *Handler) HandleMotion(ev xproto.MotionNotifyEvent) Action {
	target := h.hit(ev.EventX, ev.EventY)
	if target == h.hovered {
		return Action{}
	}
	h.hovered = target
	return Action{Kind: Hover, Window: target}
}

func (h *Handler) hit(x, y int16) xproto.Window {
	for _, slot := range h.slots {
		if slot.Rect.Contains(x, y) {
			return slot.ID
		}
	}
	return 0
}
