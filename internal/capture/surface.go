package capture

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/xoverview/xoverview/internal/logger"
)

// PlaceholderFill is the solid color used for surfaces whose real content
// could not be captured.
const PlaceholderFill uint32 = 0x222222

// Surface bundles the server-side resources holding one window's live
// off-screen content.
//
// Invariants: Pixmap and Picture are either both valid or both zero; Damage
// is registered whenever Redirected is true; Width/Height are the pixmap's
// server-reported geometry for real captures, never the nominal window size.
type Surface struct {
	// Source is the on-screen window being captured. The id is borrowed
	// from the discovery layer; only the capture resources are owned here.
	Source xproto.Window

	Redirected  bool
	Pixmap      xproto.Pixmap
	Picture     render.Picture
	Damage      damage.Damage
	Width       uint16
	Height      uint16
	Placeholder bool
}

// Manager owns every captured surface in the session, keyed by the stable
// source window id and, for event resolution, by damage handle.
type Manager struct {
	b    Backend
	log  *zerolog.Logger
	fill uint32

	surfaces map[xproto.Window]*Surface
	byDamage map[damage.Damage]xproto.Window
}

// NewManager creates an empty surface registry over the given backend.
func NewManager(b Backend) *Manager {
	return &Manager{
		b:        b,
		log:      logger.WithComponent("capture"),
		fill:     PlaceholderFill,
		surfaces: make(map[xproto.Window]*Surface),
		byDamage: make(map[damage.Damage]xproto.Window),
	}
}

// SetFill overrides the placeholder color for surfaces created afterwards.
func (m *Manager) SetFill(color uint32) {
	if color != 0 {
		m.fill = color
	}
}

// Acquire redirects win off-screen and captures its current contents.
// The returned surface's dimensions come from the server's geometry reply
// for the named pixmap, which may legitimately differ from nominalWidth and
// nominalHeight. On error, every resource allocated by this call (beyond
// the idempotent redirection) has been released; callers typically fall
// back to AcquirePlaceholder.
func (m *Manager) Acquire(win xproto.Window, nominalWidth, nominalHeight uint16) (*Surface, error) {
	if _, ok := m.surfaces[win]; ok {
		return nil, fmt.Errorf("window 0x%x is already captured", win)
	}

	if err := m.b.RedirectWindow(win); err != nil {
		return nil, fmt.Errorf("acquire 0x%x: %w", win, err)
	}

	pixmap, err := m.b.NameWindowPixmap(win)
	if err != nil {
		return nil, fmt.Errorf("acquire 0x%x: %w", win, err)
	}

	width, height, err := m.b.DrawableGeometry(xproto.Drawable(pixmap))
	if err != nil {
		m.freeQuietly(0, pixmap)
		return nil, fmt.Errorf("acquire 0x%x: %w", win, err)
	}

	picture, err := m.b.CreatePicture(xproto.Drawable(pixmap))
	if err != nil {
		m.freeQuietly(0, pixmap)
		return nil, fmt.Errorf("acquire 0x%x: %w", win, err)
	}

	dmg, err := m.b.CreateDamage(win)
	if err != nil {
		m.freeQuietly(picture, pixmap)
		return nil, fmt.Errorf("acquire 0x%x: %w", win, err)
	}

	// Force completion so composite calls issued right after Acquire see
	// valid state.
	if err := m.b.Sync(); err != nil {
		m.freeQuietly(picture, pixmap)
		if derr := m.b.DestroyDamage(dmg); derr != nil {
			m.log.Debug().Err(derr).Msg("Damage cleanup after failed sync")
		}
		return nil, fmt.Errorf("acquire 0x%x: %w", win, err)
	}

	s := &Surface{
		Source:     win,
		Redirected: true,
		Pixmap:     pixmap,
		Picture:    picture,
		Damage:     dmg,
		Width:      width,
		Height:     height,
	}
	m.register(s)

	m.log.Debug().
		Uint32("window", uint32(win)).
		Uint16("width", width).
		Uint16("height", height).
		Uint16("nominal_width", nominalWidth).
		Uint16("nominal_height", nominalHeight).
		Msg("Captured window")
	return s, nil
}

// AcquirePlaceholder builds a solid-fill stand-in surface for a window
// whose capture failed. Redirection is still enabled and damage is still
// registered so a later TryUpgrade or content change can swap in real
// pixels.
func (m *Manager) AcquirePlaceholder(win xproto.Window, width, height uint16) (*Surface, error) {
	if _, ok := m.surfaces[win]; ok {
		return nil, fmt.Errorf("window 0x%x is already captured", win)
	}
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}

	// Best effort: the window may be unredirectable right now, which is
	// exactly why a placeholder is being made.
	if err := m.b.RedirectWindow(win); err != nil {
		m.log.Debug().Err(err).Uint32("window", uint32(win)).
			Msg("Redirect failed for placeholder")
	}

	pixmap, picture, err := m.makeFilledPixmap(width, height)
	if err != nil {
		return nil, fmt.Errorf("placeholder 0x%x: %w", win, err)
	}

	dmg, err := m.b.CreateDamage(win)
	if err != nil {
		m.freeQuietly(picture, pixmap)
		return nil, fmt.Errorf("placeholder 0x%x: %w", win, err)
	}

	if err := m.b.Sync(); err != nil {
		m.freeQuietly(picture, pixmap)
		if derr := m.b.DestroyDamage(dmg); derr != nil {
			m.log.Debug().Err(derr).Msg("Damage cleanup after failed sync")
		}
		return nil, fmt.Errorf("placeholder 0x%x: %w", win, err)
	}

	s := &Surface{
		Source:      win,
		Redirected:  true,
		Pixmap:      pixmap,
		Picture:     picture,
		Damage:      dmg,
		Width:       width,
		Height:      height,
		Placeholder: true,
	}
	m.register(s)

	m.log.Debug().
		Uint32("window", uint32(win)).
		Uint16("width", width).
		Uint16("height", height).
		Msg("Created placeholder surface")
	return s, nil
}

// TryUpgrade attempts to replace a placeholder's solid fill with the
// window's real contents. On success the old handles are freed only after
// the new ones are confirmed valid, and Placeholder is cleared. Any failure
// leaves the surface untouched and returns false; callers retry on a later
// tick.
func (m *Manager) TryUpgrade(win xproto.Window) bool {
	s, ok := m.surfaces[win]
	if !ok || !s.Placeholder {
		return false
	}

	pixmap, err := m.b.NameWindowPixmap(win)
	if err != nil {
		return false
	}

	width, height, err := m.b.DrawableGeometry(xproto.Drawable(pixmap))
	if err != nil {
		m.freeQuietly(0, pixmap)
		return false
	}

	picture, err := m.b.CreatePicture(xproto.Drawable(pixmap))
	if err != nil {
		m.freeQuietly(0, pixmap)
		return false
	}

	m.freeQuietly(s.Picture, s.Pixmap)
	s.Pixmap = pixmap
	s.Picture = picture
	s.Width = width
	s.Height = height
	s.Placeholder = false

	m.log.Info().Uint32("window", uint32(win)).Msg("Upgraded placeholder to real capture")
	return true
}

// Refresh replaces the surface's pixmap and picture with a fresh capture of
// the window's current contents. The old handles are freed first: once the
// window has redrawn or resized they point at stale backing store anyway.
// If the fresh capture fails, the surface degrades to a placeholder at its
// last known size rather than keeping dangling handles; if even that fails,
// the handles are zeroed (both absent) and the error is returned.
func (m *Manager) Refresh(win xproto.Window) error {
	s, ok := m.surfaces[win]
	if !ok {
		return fmt.Errorf("refresh: window 0x%x is not captured", win)
	}

	m.freeQuietly(s.Picture, s.Pixmap)
	s.Picture = 0
	s.Pixmap = 0

	pixmap, picture, width, height, err := m.captureContent(win)
	if err != nil {
		m.log.Warn().Err(err).Uint32("window", uint32(win)).
			Msg("Refresh failed, substituting placeholder")
		fillPixmap, fillPicture, perr := m.makeFilledPixmap(s.Width, s.Height)
		if perr != nil {
			return fmt.Errorf("refresh 0x%x: %w", win, errors.Join(err, perr))
		}
		s.Pixmap = fillPixmap
		s.Picture = fillPicture
		s.Placeholder = true
		return nil
	}

	s.Pixmap = pixmap
	s.Picture = picture
	s.Width = width
	s.Height = height
	s.Placeholder = false
	return nil
}

// Release frees the surface's picture, pixmap and damage registration and
// undoes redirection. Every step is attempted even if an earlier one fails;
// the errors are joined. Releasing an unknown window is a no-op.
func (m *Manager) Release(win xproto.Window) error {
	s, ok := m.surfaces[win]
	if !ok {
		return nil
	}

	var errs []error
	if s.Damage != 0 {
		if err := m.b.DestroyDamage(s.Damage); err != nil {
			errs = append(errs, err)
		}
		delete(m.byDamage, s.Damage)
	}
	if s.Picture != 0 {
		if err := m.b.FreePicture(s.Picture); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Pixmap != 0 {
		if err := m.b.FreePixmap(s.Pixmap); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Redirected {
		if err := m.b.UnredirectWindow(win); err != nil {
			errs = append(errs, err)
		}
	}
	delete(m.surfaces, win)

	if len(errs) > 0 {
		return fmt.Errorf("release 0x%x: %w", win, errors.Join(errs...))
	}
	return nil
}

// ReleaseAll releases every surface, continuing past individual failures.
func (m *Manager) ReleaseAll() error {
	var errs []error
	for _, win := range m.Sources() {
		if err := m.Release(win); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Surface returns the captured surface for a source window.
func (m *Manager) Surface(win xproto.Window) (*Surface, bool) {
	s, ok := m.surfaces[win]
	return s, ok
}

// SourceByDamage resolves a damage handle back to its owning window.
func (m *Manager) SourceByDamage(d damage.Damage) (xproto.Window, bool) {
	win, ok := m.byDamage[d]
	return win, ok
}

// Sources returns all captured window ids in ascending order.
func (m *Manager) Sources() []xproto.Window {
	wins := make([]xproto.Window, 0, len(m.surfaces))
	for win := range m.surfaces {
		wins = append(wins, win)
	}
	sort.Slice(wins, func(i, j int) bool { return wins[i] < wins[j] })
	return wins
}

// Placeholders returns the windows currently backed by a solid fill, in
// ascending order. The frame loop polls these for upgrades.
func (m *Manager) Placeholders() []xproto.Window {
	var wins []xproto.Window
	for win, s := range m.surfaces {
		if s.Placeholder {
			wins = append(wins, win)
		}
	}
	sort.Slice(wins, func(i, j int) bool { return wins[i] < wins[j] })
	return wins
}

// Len returns the number of captured surfaces.
func (m *Manager) Len() int {
	return len(m.surfaces)
}

func (m *Manager) register(s *Surface) {
	m.surfaces[s.Source] = s
	m.byDamage[s.Damage] = s.Source
}

// captureContent runs the name-pixmap / geometry / picture steps and cleans
// up after itself on failure.
func (m *Manager) captureContent(win xproto.Window) (xproto.Pixmap, render.Picture, uint16, uint16, error) {
	pixmap, err := m.b.NameWindowPixmap(win)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	width, height, err := m.b.DrawableGeometry(xproto.Drawable(pixmap))
	if err != nil {
		m.freeQuietly(0, pixmap)
		return 0, 0, 0, 0, err
	}
	picture, err := m.b.CreatePicture(xproto.Drawable(pixmap))
	if err != nil {
		m.freeQuietly(0, pixmap)
		return 0, 0, 0, 0, err
	}
	return pixmap, picture, width, height, nil
}

// makeFilledPixmap allocates a pixmap filled with the placeholder color and
// a picture over it.
func (m *Manager) makeFilledPixmap(width, height uint16) (xproto.Pixmap, render.Picture, error) {
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}
	pixmap, err := m.b.CreatePixmap(width, height)
	if err != nil {
		return 0, 0, err
	}
	rect := xproto.Rectangle{X: 0, Y: 0, Width: width, Height: height}
	if err := m.b.FillRectangle(xproto.Drawable(pixmap), m.fill, rect); err != nil {
		m.freeQuietly(0, pixmap)
		return 0, 0, err
	}
	picture, err := m.b.CreatePicture(xproto.Drawable(pixmap))
	if err != nil {
		m.freeQuietly(0, pixmap)
		return 0, 0, err
	}
	return pixmap, picture, nil
}

// freeQuietly releases a picture and/or pixmap on error paths where the
// original failure is the one worth reporting.
func (m *Manager) freeQuietly(pic render.Picture, pixmap xproto.Pixmap) {
	if pic != 0 {
		if err := m.b.FreePicture(pic); err != nil {
			m.log.Debug().Err(err).Msg("Picture cleanup failed")
		}
	}
	if pixmap != 0 {
		if err := m.b.FreePixmap(pixmap); err != nil {
			m.log.Debug().Err(err).Msg("Pixmap cleanup failed")
		}
	}
}
