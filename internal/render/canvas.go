package render

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/xoverview/xoverview/internal/logger"
	"github.com/xoverview/xoverview/internal/x11"
)

// Canvas is the overview's own off-screen buffer plus the on-screen window
// that presents it. One per session.
type Canvas struct {
	Window  xproto.Window
	Pixmap  xproto.Pixmap
	Picture render.Picture
	GC      xproto.Gcontext
	Width   uint16
	Height  uint16

	// Background is a picture over the root wallpaper pixmap, or zero
	// when no wallpaper is set.
	Background render.Picture
}

// NewCanvas creates the fullscreen override-redirect overview window, its
// backing pixmap and picture, and resolves the wallpaper background. The
// backing pixmap is pre-filled and installed as the window background so
// mapping never flashes a bare fill color.
func NewCanvas(conn *x11.Conn) (*Canvas, error) {
	log := logger.WithComponent("canvas")

	window, err := xproto.NewWindowId(conn.X)
	if err != nil {
		return nil, fmt.Errorf("allocate window id: %w", err)
	}
	gc, err := xproto.NewGcontextId(conn.X)
	if err != nil {
		return nil, fmt.Errorf("allocate gc id: %w", err)
	}

	var background render.Picture
	if rootPixmap, ok, err := conn.RootBackgroundPixmap(); err == nil && ok {
		background, err = conn.CreatePicture(xproto.Drawable(rootPixmap))
		if err != nil {
			log.Warn().Err(err).Msg("Wallpaper picture creation failed, using solid background")
			background = 0
		}
	} else if err != nil {
		log.Warn().Err(err).Msg("Wallpaper lookup failed, using solid background")
	}

	err = xproto.CreateWindowChecked(conn.X, conn.RootDepth, window, conn.Root,
		0, 0, conn.Width, conn.Height, 0,
		xproto.WindowClassInputOutput, conn.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask,
		[]uint32{
			BackgroundFill,
			1,
			xproto.EventMaskExposure | xproto.EventMaskKeyPress |
				xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
				xproto.EventMaskPointerMotion,
		}).Check()
	if err != nil {
		return nil, fmt.Errorf("create overview window: %w", err)
	}

	pixmap, err := conn.CreatePixmap(conn.Width, conn.Height)
	if err != nil {
		xproto.DestroyWindow(conn.X, window)
		return nil, err
	}

	err = xproto.CreateGCChecked(conn.X, gc, xproto.Drawable(window),
		xproto.GcForeground, []uint32{BackgroundFill}).Check()
	if err != nil {
		conn.FreePixmap(pixmap)
		xproto.DestroyWindow(conn.X, window)
		return nil, fmt.Errorf("create gc: %w", err)
	}

	picture, err := conn.CreatePicture(xproto.Drawable(pixmap))
	if err != nil {
		xproto.FreeGC(conn.X, gc)
		conn.FreePixmap(pixmap)
		xproto.DestroyWindow(conn.X, window)
		return nil, err
	}

	canvas := &Canvas{
		Window:     window,
		Pixmap:     pixmap,
		Picture:    picture,
		GC:         gc,
		Width:      conn.Width,
		Height:     conn.Height,
		Background: background,
	}

	if err := NewCompositor(conn).Clear(canvas); err != nil {
		canvas.Destroy(conn)
		return nil, err
	}

	// Install the pre-filled pixmap as the window background so the first
	// map shows it immediately.
	err = xproto.ChangeWindowAttributesChecked(conn.X, window,
		xproto.CwBackPixmap, []uint32{uint32(pixmap)}).Check()
	if err != nil {
		canvas.Destroy(conn)
		return nil, fmt.Errorf("set window background: %w", err)
	}

	if err := conn.Sync(); err != nil {
		canvas.Destroy(conn)
		return nil, err
	}

	log.Debug().
		Uint16("width", canvas.Width).
		Uint16("height", canvas.Height).
		Bool("wallpaper", background != 0).
		Msg("Overview canvas created")
	return canvas, nil
}

// Show maps the overview window, raises it and takes keyboard focus.
func (c *Canvas) Show(conn *x11.Conn) error {
	if err := xproto.MapWindowChecked(conn.X, c.Window).Check(); err != nil {
		return fmt.Errorf("map overview window: %w", err)
	}
	if err := conn.RaiseWindow(c.Window); err != nil {
		return err
	}
	err := xproto.SetInputFocusChecked(conn.X, xproto.InputFocusPointerRoot,
		c.Window, xproto.TimeCurrentTime).Check()
	if err != nil {
		return fmt.Errorf("focus overview window: %w", err)
	}
	return conn.Sync()
}

// Destroy frees every canvas resource. All frees are attempted even when
// earlier ones fail.
func (c *Canvas) Destroy(conn *x11.Conn) error {
	var errs []error
	if c.Background != 0 {
		if err := conn.FreePicture(c.Background); err != nil {
			errs = append(errs, err)
		}
		c.Background = 0
	}
	if c.Picture != 0 {
		if err := conn.FreePicture(c.Picture); err != nil {
			errs = append(errs, err)
		}
		c.Picture = 0
	}
	if c.GC != 0 {
		if err := xproto.FreeGCChecked(conn.X, c.GC).Check(); err != nil {
			errs = append(errs, fmt.Errorf("free gc: %w", err))
		}
		c.GC = 0
	}
	if c.Pixmap != 0 {
		if err := conn.FreePixmap(c.Pixmap); err != nil {
			errs = append(errs, err)
		}
		c.Pixmap = 0
	}
	if c.Window != 0 {
		if err := xproto.DestroyWindowChecked(conn.X, c.Window).Check(); err != nil {
			errs = append(errs, fmt.Errorf("destroy window: %w", err))
		}
		c.Window = 0
	}
	if err := conn.Sync(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
