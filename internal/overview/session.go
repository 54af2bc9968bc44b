package overview

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/xoverview/xoverview/internal/animation"
	"github.com/xoverview/xoverview/internal/capture"
	"github.com/xoverview/xoverview/internal/config"
	"github.com/xoverview/xoverview/internal/dispatch"
	"github.com/xoverview/xoverview/internal/input"
	"github.com/xoverview/xoverview/internal/layout"
	"github.com/xoverview/xoverview/internal/logger"
	"github.com/xoverview/xoverview/internal/render"
	"github.com/xoverview/xoverview/internal/windowfinder"
	"github.com/xoverview/xoverview/internal/x11"
)

// ErrNoWindows is returned when the current desktop has nothing to show.
var ErrNoWindows = errors.New("no windows to display")

// Event is a session notification for the debug API stream.
type Event struct {
	Type   string `json:"type"`
	Window uint32 `json:"window,omitempty"`
}

// SurfaceStatus is a read-only view of one captured surface.
type SurfaceStatus struct {
	Window      uint32 `json:"window"`
	Title       string `json:"title"`
	Width       uint16 `json:"width"`
	Height      uint16 `json:"height"`
	Placeholder bool   `json:"placeholder"`
}

// Status is a read-only snapshot of the session for the debug API.
type Status struct {
	Capabilities x11.Capabilities `json:"capabilities"`
	Surfaces     []SurfaceStatus  `json:"surfaces"`
	Frames       uint64           `json:"frames"`
}

// Session runs one overview from first capture to dismissal. All X work is
// single-threaded inside Run; only the status snapshot is shared with the
// debug API.
type Session struct {
	conn     *x11.Conn
	cfg      config.Config
	finder   *windowfinder.Finder
	surfaces *capture.Manager
	comp     *render.Compositor
	canvas   *render.Canvas
	log      *zerolog.Logger

	titles map[xproto.Window]string
	slots  []layout.Slot
	frames uint64

	statusMu sync.RWMutex
	status   Status
	sink     func(Event)
}

// New wires a session over an established connection.
func New(conn *x11.Conn, cfg config.Config) (*Session, error) {
	finder, err := windowfinder.NewFinder(conn, cfg.ExcludeClasses)
	if err != nil {
		return nil, err
	}
	surfaces := capture.NewManager(conn)
	surfaces.SetFill(cfg.PlaceholderFill)
	return &Session{
		conn:     conn,
		cfg:      cfg,
		finder:   finder,
		surfaces: surfaces,
		comp:     render.NewCompositor(conn),
		log:      logger.WithComponent("overview"),
		titles:   make(map[xproto.Window]string),
	}, nil
}

// SetEventSink registers a callback for session notifications. Must be set
// before Run.
func (s *Session) SetEventSink(sink func(Event)) {
	s.sink = sink
}

// Status returns the latest published snapshot.
func (s *Session) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()
	return s.status
}

// Canvas exposes the overview canvas for snapshotting. Nil until Run has
// created it.
func (s *Session) Canvas() *render.Canvas {
	return s.canvas
}

// Run shows the overview and blocks until the user selects a window or
// dismisses it. The selected window is raised and focused; zero means
// dismissal. Fatal errors terminate the session with all resources
// released.
func (s *Session) Run() (selected xproto.Window, err error) {
	windows, err := s.finder.Find()
	if err != nil {
		return 0, err
	}

	var grid, fading []windowfinder.WindowInfo
	for _, w := range windows {
		if w.WantsCapture {
			grid = append(grid, w)
		} else {
			fading = append(fading, w)
		}
	}
	if len(grid) == 0 {
		return 0, ErrNoWindows
	}

	stacking, err := s.finder.StackingOrder()
	if err != nil {
		s.log.Debug().Err(err).Msg("Stacking order unavailable")
	}

	defer func() {
		if rerr := s.surfaces.ReleaseAll(); rerr != nil {
			s.log.Warn().Err(rerr).Msg("Release failures on shutdown")
		}
		if s.canvas != nil {
			if derr := s.canvas.Destroy(s.conn); derr != nil {
				s.log.Warn().Err(derr).Msg("Canvas teardown failures")
			}
			s.canvas = nil
		}
		s.finder.RestoreStacking(stacking)
	}()

	s.acquireAll(grid)
	fading = s.acquireFading(fading)
	if s.surfaces.Len() == 0 {
		return 0, ErrNoWindows
	}

	s.canvas, err = render.NewCanvas(s.conn)
	if err != nil {
		return 0, err
	}

	s.slots = s.computeSlots(grid)
	if err := s.canvas.Show(s.conn); err != nil {
		return 0, err
	}

	if err := s.animateEntrance(grid, fading); err != nil {
		return 0, err
	}

	// Fading windows are invisible from here on; drop their captures so
	// damage traffic stops.
	for _, w := range fading {
		if rerr := s.surfaces.Release(w.ID); rerr != nil {
			s.log.Debug().Err(rerr).Uint32("window", uint32(w.ID)).
				Msg("Fading surface release")
		}
	}

	if err := s.paintFrame(s.slots); err != nil {
		return 0, err
	}
	s.publishStatus()

	selected, err = s.eventLoop()
	if err != nil {
		return 0, err
	}

	if err := s.animateExit(grid); err != nil {
		s.log.Warn().Err(err).Msg("Exit animation failed")
	}

	if selected != 0 {
		if err := s.finder.RaiseAndFocus(selected); err != nil {
			s.log.Warn().Err(err).Uint32("window", uint32(selected)).
				Msg("Could not activate selection")
		}
	}
	return selected, nil
}

// acquireAll captures every grid window, substituting a placeholder when
// real capture fails. A window that cannot even get a placeholder is
// dropped from the overview with a log line.
func (s *Session) acquireAll(grid []windowfinder.WindowInfo) {
	for _, w := range grid {
		s.titles[w.ID] = w.Title
		if _, err := s.surfaces.Acquire(w.ID, w.Rect.Width, w.Rect.Height); err == nil {
			continue
		} else {
			s.log.Warn().Err(err).Uint32("window", uint32(w.ID)).
				Str("title", w.Title).
				Msg("Capture failed, using placeholder")
		}
		if _, err := s.surfaces.AcquirePlaceholder(w.ID, w.Rect.Width, w.Rect.Height); err != nil {
			s.log.Error().Err(err).Uint32("window", uint32(w.ID)).
				Msg("Placeholder failed, window omitted")
		}
	}
}

// acquireFading best-effort captures the windows that will cross-fade out
// during the entrance; failures just skip the fade for that window.
func (s *Session) acquireFading(fading []windowfinder.WindowInfo) []windowfinder.WindowInfo {
	kept := fading[:0]
	for _, w := range fading {
		if _, err := s.surfaces.Acquire(w.ID, w.Rect.Width, w.Rect.Height); err != nil {
			s.log.Debug().Err(err).Uint32("window", uint32(w.ID)).
				Msg("Fade capture failed, window skipped")
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

// computeSlots lays the captured windows out on the grid. Positions come
// from the windows' on-screen rectangles; aspect ratios come from the
// captured content, which is authoritative.
func (s *Session) computeSlots(grid []windowfinder.WindowInfo) []layout.Slot {
	inputs := make([]layout.Window, 0, len(grid))
	for _, w := range grid {
		surf, ok := s.surfaces.Surface(w.ID)
		if !ok {
			continue
		}
		inputs = append(inputs, layout.Window{
			ID: w.ID,
			Rect: layout.Rect{
				X: w.Rect.X, Y: w.Rect.Y,
				Width: surf.Width, Height: surf.Height,
			},
		})
	}
	return layout.Grid(inputs, s.conn.Width, s.conn.Height, layout.Config{
		Padding:  s.cfg.Layout.Padding,
		Margin:   s.cfg.Layout.Margin,
		MaxScale: s.cfg.Layout.MaxScale,
	})
}

func (s *Session) animationConfig(d time.Duration) animation.Config {
	fps := s.cfg.Animation.FPS
	if fps <= 0 {
		fps = 60
	}
	return animation.Config{Duration: d, FPS: fps}
}

func startSlots(grid []windowfinder.WindowInfo) []layout.Slot {
	slots := make([]layout.Slot, 0, len(grid))
	for _, w := range grid {
		slots = append(slots, layout.Slot{ID: w.ID, Rect: w.Rect})
	}
	return slots
}

// animateEntrance flies thumbnails from their on-screen positions into the
// grid while cross-fading the non-grid windows away.
func (s *Session) animateEntrance(grid, fading []windowfinder.WindowInfo) error {
	if !s.cfg.Animation.Enabled {
		return nil
	}
	anim := animation.New(startSlots(grid), s.slots, s.animationConfig(s.cfg.Animation.EntranceDuration()))
	for {
		done := anim.Done()
		progress := anim.Progress()

		if err := s.comp.Clear(s.canvas); err != nil {
			return err
		}
		for _, w := range fading {
			surf, ok := s.surfaces.Surface(w.ID)
			if !ok {
				continue
			}
			err := s.comp.PaintWithOpacity(surf.Picture, s.canvas.Picture, w.Rect, 1-progress)
			if err != nil && !x11.RequestFailed(err) {
				return err
			}
		}
		if err := s.paintSlots(anim.Current()); err != nil {
			return err
		}
		if err := s.comp.Present(s.canvas); err != nil {
			return err
		}
		s.frames++

		if done {
			return nil
		}
		time.Sleep(anim.FrameDuration())
	}
}

// animateExit flies thumbnails from the grid back to their on-screen
// positions.
func (s *Session) animateExit(grid []windowfinder.WindowInfo) error {
	if !s.cfg.Animation.Enabled {
		return nil
	}
	anim := animation.New(s.slots, startSlots(grid), s.animationConfig(s.cfg.Animation.ExitDuration()))
	for {
		done := anim.Done()
		if err := s.comp.Clear(s.canvas); err != nil {
			return err
		}
		if err := s.paintSlots(anim.Current()); err != nil {
			return err
		}
		if err := s.comp.Present(s.canvas); err != nil {
			return err
		}
		s.frames++
		if done {
			return nil
		}
		time.Sleep(anim.FrameDuration())
	}
}

// paintSlots composites each surface at its slot. Per-window request
// errors (the window vanished mid-frame) skip that paint; anything else is
// fatal.
func (s *Session) paintSlots(slots []layout.Slot) error {
	for _, slot := range slots {
		surf, ok := s.surfaces.Surface(slot.ID)
		if !ok {
			continue
		}
		err := s.comp.PaintScaled(surf.Picture, surf.Width, surf.Height, s.canvas.Picture, slot.Rect)
		if err != nil {
			if x11.RequestFailed(err) {
				s.log.Warn().Err(err).Uint32("window", uint32(slot.ID)).
					Msg("Paint failed, skipping window this frame")
				continue
			}
			return err
		}
	}
	return nil
}

// paintFrame repaints the whole canvas and presents it.
func (s *Session) paintFrame(slots []layout.Slot) error {
	if err := s.comp.Clear(s.canvas); err != nil {
		return err
	}
	if err := s.paintSlots(slots); err != nil {
		return err
	}
	if err := s.comp.Present(s.canvas); err != nil {
		return err
	}
	s.frames++
	return nil
}

// repaintOne re-composites a single surface's slot after its content
// changed, clearing just that rectangle first.
func (s *Session) repaintOne(win xproto.Window) bool {
	slot, ok := s.slotFor(win)
	if !ok {
		return false
	}
	if err := s.comp.ClearRect(s.canvas, slot.Rect); err != nil {
		s.log.Warn().Err(err).Msg("Partial clear failed")
		return false
	}
	surf, ok := s.surfaces.Surface(win)
	if !ok {
		return false
	}
	err := s.comp.PaintScaled(surf.Picture, surf.Width, surf.Height, s.canvas.Picture, slot.Rect)
	if err != nil {
		s.log.Warn().Err(err).Uint32("window", uint32(win)).Msg("Repaint failed")
		return false
	}
	return true
}

func (s *Session) slotFor(win xproto.Window) (layout.Slot, bool) {
	for _, slot := range s.slots {
		if slot.ID == win {
			return slot, true
		}
	}
	return layout.Slot{}, false
}

// eventLoop is the steady state: drain damage batches, interpret input,
// poll placeholder upgrades, present when dirty.
func (s *Session) eventLoop() (xproto.Window, error) {
	disp := dispatch.New(s.conn, s.surfaces)
	handler := input.NewHandler(s.slots, s.finder.KeysymLookup())

	for {
		batch, err := disp.Next()
		if err != nil {
			return 0, err
		}

		dirty := false
		for _, win := range batch.Refreshed {
			if s.repaintOne(win) {
				dirty = true
			}
			s.emit(Event{Type: "refresh", Window: uint32(win)})
		}

		for _, ev := range batch.Other {
			switch e := ev.(type) {
			case xproto.KeyPressEvent:
				if done, win := s.apply(handler.HandleKeyPress(e)); done {
					return win, nil
				}
			case xproto.ButtonPressEvent:
				handler.HandleButtonPress(e)
			case xproto.ButtonReleaseEvent:
				if done, win := s.apply(handler.HandleButtonRelease(e)); done {
					return win, nil
				}
			case xproto.MotionNotifyEvent:
				handler.HandleMotion(e)
			case xproto.ExposeEvent:
				dirty = true
			}
		}

		for _, win := range s.surfaces.Placeholders() {
			if s.surfaces.TryUpgrade(win) {
				if s.repaintOne(win) {
					dirty = true
				}
				s.emit(Event{Type: "upgrade", Window: uint32(win)})
			}
		}

		if dirty {
			if err := s.comp.Present(s.canvas); err != nil {
				return 0, err
			}
			s.frames++
			s.publishStatus()
		}
	}
}

// apply translates an input action; the boolean reports loop termination.
func (s *Session) apply(a input.Action) (bool, xproto.Window) {
	switch a.Kind {
	case input.Select:
		s.emit(Event{Type: "select", Window: uint32(a.Window)})
		return true, a.Window
	case input.Dismiss:
		s.emit(Event{Type: "dismiss"})
		return true, 0
	}
	return false, 0
}

func (s *Session) emit(ev Event) {
	if s.sink != nil {
		s.sink(ev)
	}
}

func (s *Session) publishStatus() {
	st := Status{
		Capabilities: s.conn.Caps,
		Frames:       s.frames,
	}
	for _, win := range s.surfaces.Sources() {
		surf, ok := s.surfaces.Surface(win)
		if !ok {
			continue
		}
		st.Surfaces = append(st.Surfaces, SurfaceStatus{
			Window:      uint32(win),
			Title:       s.titles[win],
			Width:       surf.Width,
			Height:      surf.Height,
			Placeholder: surf.Placeholder,
		})
	}
	s.statusMu.Lock()
	s.status = st
	s.statusMu.Unlock()
}

// Describe logs a one-line summary of the acquired set, used at debug
// level after startup.
func (s *Session) Describe() string {
	placeholders := len(s.surfaces.Placeholders())
	return fmt.Sprintf("%d surfaces (%d placeholder)", s.surfaces.Len(), placeholders)
}
