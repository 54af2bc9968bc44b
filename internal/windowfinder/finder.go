package windowfinder

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xwindow"
	"github.com/rs/zerolog"

	"github.com/xoverview/xoverview/internal/layout"
	"github.com/xoverview/xoverview/internal/logger"
	"github.com/xoverview/xoverview/internal/x11"
)

// stickyDesktop is the EWMH marker for a window pinned to all desktops.
const stickyDesktop = 0xFFFFFFFF

// WindowInfo describes one discovered top-level window. Rect is the
// window's nominal on-screen geometry; the capture layer treats it as a
// hint only and trusts the server's pixmap geometry instead.
type WindowInfo struct {
	ID      xproto.Window `json:"id"`
	Title   string        `json:"title"`
	Class   string        `json:"class"`
	Desktop uint          `json:"desktop"`
	Sticky  bool          `json:"sticky"`
	Rect    layout.Rect   `json:"rect"`

	// WantsCapture is false for windows that stay out of the overview
	// grid (excluded classes, panels and similar); they are still listed
	// so the session can cross-fade them away.
	WantsCapture bool `json:"wants_capture"`
}

// Finder discovers top-level windows through EWMH, sharing the session's
// X connection.
type Finder struct {
	xu      *xgbutil.XUtil
	exclude []string
	log     *zerolog.Logger
}

// NewFinder wraps the connection for EWMH queries and keysym lookup.
func NewFinder(conn *x11.Conn, excludeClasses []string) (*Finder, error) {
	xu, err := xgbutil.NewConnXgb(conn.X)
	if err != nil {
		return nil, fmt.Errorf("xgbutil wrapper: %w", err)
	}
	keybind.Initialize(xu)
	return &Finder{
		xu:      xu,
		exclude: excludeClasses,
		log:     logger.WithComponent("windowfinder"),
	}, nil
}

// Find returns the windows on the current desktop (plus sticky ones) in
// _NET_CLIENT_LIST order, with WantsCapture set per the eligibility rules.
// Without an EWMH window manager the root's children are walked instead.
func (f *Finder) Find() ([]WindowInfo, error) {
	clients, err := ewmh.ClientListGet(f.xu)
	if err != nil {
		f.log.Debug().Err(err).Msg("No client list, walking the window tree")
		clients, err = f.queryTree()
		if err != nil {
			return nil, fmt.Errorf("client list: %w", err)
		}
	}
	current, err := ewmh.CurrentDesktopGet(f.xu)
	if err != nil {
		f.log.Debug().Err(err).Msg("Current desktop unknown, assuming 0")
		current = 0
	}

	var windows []WindowInfo
	for _, id := range clients {
		info, ok := f.describe(id)
		if !ok {
			continue
		}
		if !info.Sticky && info.Desktop != current {
			continue
		}
		windows = append(windows, info)
	}

	f.log.Debug().Int("count", len(windows)).Uint("desktop", current).
		Msg("Discovered windows")
	return windows, nil
}

// queryTree lists the root window's direct children. Viewability and
// eligibility are filtered later by describe.
func (f *Finder) queryTree() ([]xproto.Window, error) {
	tree, err := xproto.QueryTree(f.xu.Conn(), f.xu.RootWin()).Reply()
	if err != nil {
		return nil, fmt.Errorf("query tree: %w", err)
	}
	return tree.Children, nil
}

func (f *Finder) describe(id xproto.Window) (WindowInfo, bool) {
	attrs, err := xproto.GetWindowAttributes(f.xu.Conn(), id).Reply()
	if err != nil || attrs.MapState != xproto.MapStateViewable {
		return WindowInfo{}, false
	}

	geom, err := xwindow.New(f.xu, id).DecorGeometry()
	if err != nil {
		f.log.Debug().Err(err).Uint32("window", uint32(id)).Msg("Geometry lookup failed")
		return WindowInfo{}, false
	}

	info := WindowInfo{
		ID: id,
		Rect: layout.Rect{
			X:      int16(geom.X()),
			Y:      int16(geom.Y()),
			Width:  uint16(geom.Width()),
			Height: uint16(geom.Height()),
		},
	}

	if title, err := ewmh.WmNameGet(f.xu, id); err == nil && title != "" {
		info.Title = title
	} else if title, err := icccm.WmNameGet(f.xu, id); err == nil {
		info.Title = title
	}
	if class, err := icccm.WmClassGet(f.xu, id); err == nil {
		info.Class = class.Class
	}

	if desktop, err := ewmh.WmDesktopGet(f.xu, id); err == nil {
		if desktop == stickyDesktop {
			info.Sticky = true
		} else {
			info.Desktop = desktop
		}
	}

	types, _ := ewmh.WmWindowTypeGet(f.xu, id)
	states, _ := ewmh.WmStateGet(f.xu, id)
	info.WantsCapture = Eligible(types, states, info.Class, f.exclude)
	return info, true
}

// Eligible decides whether a window belongs in the overview grid: normal
// application windows and dialogs only, skipping panels, docks, hidden
// windows and user-excluded classes.
func Eligible(types, states []string, class string, exclude []string) bool {
	hasType := len(types) > 0
	typeOK := !hasType
	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DIALOG":
			typeOK = true
		}
	}
	if !typeOK {
		return false
	}

	for _, s := range states {
		switch s {
		case "_NET_WM_STATE_SKIP_TASKBAR", "_NET_WM_STATE_SKIP_PAGER", "_NET_WM_STATE_HIDDEN":
			return false
		}
	}

	for _, ex := range exclude {
		if strings.EqualFold(ex, class) {
			return false
		}
	}
	return true
}

// StackingOrder returns the managed windows bottom-to-top.
func (f *Finder) StackingOrder() ([]xproto.Window, error) {
	order, err := ewmh.ClientListStackingGet(f.xu)
	if err != nil {
		return nil, fmt.Errorf("stacking order: %w", err)
	}
	return order, nil
}

// RestoreStacking re-raises windows in the recorded bottom-to-top order so
// the pre-overview stacking is reinstated.
func (f *Finder) RestoreStacking(order []xproto.Window) {
	for _, win := range order {
		err := xproto.ConfigureWindowChecked(f.xu.Conn(), win,
			xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
		if err != nil {
			f.log.Debug().Err(err).Uint32("window", uint32(win)).
				Msg("Restack failed")
		}
	}
}

// RaiseAndFocus activates the selected window, preferring the EWMH request
// so the window manager updates its own bookkeeping.
func (f *Finder) RaiseAndFocus(win xproto.Window) error {
	if err := ewmh.ActiveWindowReq(f.xu, win); err == nil {
		return nil
	}
	err := xproto.ConfigureWindowChecked(f.xu.Conn(), win,
		xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
	if err != nil {
		return fmt.Errorf("raise 0x%x: %w", win, err)
	}
	err = xproto.SetInputFocusChecked(f.xu.Conn(), xproto.InputFocusPointerRoot,
		win, xproto.TimeCurrentTime).Check()
	if err != nil {
		return fmt.Errorf("focus 0x%x: %w", win, err)
	}
	return nil
}

// KeysymLookup returns a lookup function for the input layer.
func (f *Finder) KeysymLookup() func(state uint16, detail xproto.Keycode) string {
	return func(state uint16, detail xproto.Keycode) string {
		return keybind.LookupString(f.xu, state, detail)
	}
}
