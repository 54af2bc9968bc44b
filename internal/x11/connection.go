package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/xoverview/xoverview/internal/logger"
)

// Minimum extension versions requested during negotiation. Composite needs
// at least 0.2 for NameWindowPixmap.
const (
	compositeMajor = 0
	compositeMinor = 4
	compositeMinMinor = 2

	damageMajor = 1
	damageMinor = 1

	renderMajor = 0
	renderMinor = 11
)

// Capabilities holds the negotiated extension versions and the resolved
// picture format. Populated once by Connect and read-only afterwards.
type Capabilities struct {
	CompositeMajor uint32 `json:"composite_major"`
	CompositeMinor uint32 `json:"composite_minor"`
	DamageMajor    uint32 `json:"damage_major"`
	DamageMinor    uint32 `json:"damage_minor"`
	RenderMajor    uint32 `json:"render_major"`
	RenderMinor    uint32 `json:"render_minor"`

	// PictFormat is a direct-color format matching the root depth, used
	// for every picture this program creates.
	PictFormat render.Pictformat `json:"pict_format"`
}

// Conn is the connection context passed explicitly to every component that
// talks to the X server. There are no package-level connection globals.
type Conn struct {
	X *xgb.Conn

	Screen     *xproto.ScreenInfo
	Root       xproto.Window
	Width      uint16
	Height     uint16
	RootDepth  byte
	RootVisual xproto.Visualid

	Caps Capabilities

	atomMu sync.Mutex
	atoms  map[string]xproto.Atom
}

// Connect opens the display and negotiates the Composite, Damage and Render
// extensions. Any negotiation failure is fatal and reported with a distinct
// error kind; negotiation runs exactly once, there are no retries.
func Connect() (*Conn, error) {
	x, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(x)
	screen := setup.DefaultScreen(x)

	c := &Conn{
		X:          x,
		Screen:     screen,
		Root:       screen.Root,
		Width:      screen.WidthInPixels,
		Height:     screen.HeightInPixels,
		RootDepth:  screen.RootDepth,
		RootVisual: screen.RootVisual,
		atoms:      make(map[string]xproto.Atom),
	}

	if err := c.negotiate(); err != nil {
		x.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) negotiate() error {
	log := logger.WithComponent("x11")

	if err := composite.Init(c.X); err != nil {
		return fmt.Errorf("composite: %w", ErrExtensionMissing)
	}
	compVer, err := composite.QueryVersion(c.X, compositeMajor, compositeMinor).Reply()
	if err != nil {
		return fmt.Errorf("composite version query: %w", err)
	}
	if compVer.MajorVersion == 0 && compVer.MinorVersion < compositeMinMinor {
		return fmt.Errorf("composite %d.%d: %w",
			compVer.MajorVersion, compVer.MinorVersion, ErrVersionTooLow)
	}
	log.Info().
		Uint32("major", compVer.MajorVersion).
		Uint32("minor", compVer.MinorVersion).
		Msg("Composite extension initialized")

	if err := render.Init(c.X); err != nil {
		return fmt.Errorf("render: %w", ErrExtensionMissing)
	}
	renderVer, err := render.QueryVersion(c.X, renderMajor, renderMinor).Reply()
	if err != nil {
		return fmt.Errorf("render version query: %w", err)
	}
	log.Info().
		Uint32("major", renderVer.MajorVersion).
		Uint32("minor", renderVer.MinorVersion).
		Msg("Render extension initialized")

	format, err := c.findPictFormat()
	if err != nil {
		return err
	}

	if err := damage.Init(c.X); err != nil {
		return fmt.Errorf("damage: %w", ErrExtensionMissing)
	}
	damageVer, err := damage.QueryVersion(c.X, damageMajor, damageMinor).Reply()
	if err != nil {
		return fmt.Errorf("damage version query: %w", err)
	}
	log.Info().
		Uint32("major", damageVer.MajorVersion).
		Uint32("minor", damageVer.MinorVersion).
		Msg("Damage extension initialized")

	c.Caps = Capabilities{
		CompositeMajor: compVer.MajorVersion,
		CompositeMinor: compVer.MinorVersion,
		DamageMajor:    damageVer.MajorVersion,
		DamageMinor:    damageVer.MinorVersion,
		RenderMajor:    renderVer.MajorVersion,
		RenderMinor:    renderVer.MinorVersion,
		PictFormat:     format,
	}
	return nil
}

// findPictFormat scans the server's advertised picture formats for a
// direct-color one at the root depth.
func (c *Conn) findPictFormat() (render.Pictformat, error) {
	formats, err := render.QueryPictFormats(c.X).Reply()
	if err != nil {
		return 0, fmt.Errorf("query pict formats: %w", err)
	}
	for _, f := range formats.Formats {
		if f.Depth == c.RootDepth && f.Type == render.PictTypeDirect {
			logger.WithComponent("x11").Debug().
				Uint32("format", uint32(f.Id)).
				Uint8("depth", f.Depth).
				Msg("Resolved picture format")
			return f.Id, nil
		}
	}
	return 0, fmt.Errorf("depth %d: %w", c.RootDepth, ErrNoPictFormat)
}

// Sync forces the server to process every request sent so far. GetInputFocus
// is the conventional cheap round trip for this.
func (c *Conn) Sync() error {
	if _, err := xproto.GetInputFocus(c.X).Reply(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return nil
}

// WaitForEvent blocks until the next event or error arrives.
func (c *Conn) WaitForEvent() (xgb.Event, xgb.Error) {
	return c.X.WaitForEvent()
}

// PollForEvent returns the next queued event without blocking.
func (c *Conn) PollForEvent() (xgb.Event, xgb.Error) {
	return c.X.PollForEvent()
}

// Atom interns name, caching the result.
func (c *Conn) Atom(name string) (xproto.Atom, error) {
	c.atomMu.Lock()
	defer c.atomMu.Unlock()
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	reply, err := xproto.InternAtom(c.X, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, fmt.Errorf("intern atom %s: %w", name, err)
	}
	c.atoms[name] = reply.Atom
	return reply.Atom, nil
}

// Close shuts the connection down.
func (c *Conn) Close() {
	c.X.Close()
}
