package render

import (
	"fmt"

	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/xoverview/xoverview/internal/layout"
	"github.com/xoverview/xoverview/internal/logger"
)

// BackgroundFill is the solid color used when no wallpaper is available.
const BackgroundFill uint32 = 0x1a1a1a

// Resampling filters understood by the Render extension.
const (
	FilterBilinear = "bilinear"
	FilterNearest  = "nearest"
)

// Compositor paints captured surfaces into the overview canvas. It holds
// no per-surface state; every operation is a function of its arguments.
type Compositor struct {
	b   Backend
	log *zerolog.Logger
}

// NewCompositor creates a compositor over the given backend.
func NewCompositor(b Backend) *Compositor {
	return &Compositor{b: b, log: logger.WithComponent("render")}
}

// PaintScaled composites src into dst at dstRect, scaled from srcWidth x
// srcHeight. Scaling uses bilinear filtering; exact 1:1 blits use nearest.
// A zero-area dstRect is a no-op, not an error.
func (c *Compositor) PaintScaled(src render.Picture, srcWidth, srcHeight uint16, dst render.Picture, dstRect layout.Rect) error {
	if dstRect.Empty() {
		return nil
	}

	sx := float64(srcWidth) / float64(dstRect.Width)
	sy := float64(srcHeight) / float64(dstRect.Height)

	if err := c.b.SetPictureTransform(src, ScaleTransform(sx, sy)); err != nil {
		return fmt.Errorf("paint scaled: %w", err)
	}

	filter := FilterBilinear
	if srcWidth == dstRect.Width && srcHeight == dstRect.Height {
		filter = FilterNearest
	}
	if err := c.b.SetPictureFilter(src, filter); err != nil {
		return fmt.Errorf("paint scaled: %w", err)
	}

	err := c.b.Composite(render.PictOpSrc, src, 0, dst,
		0, 0, dstRect.X, dstRect.Y, dstRect.Width, dstRect.Height)
	if err != nil {
		return fmt.Errorf("paint scaled: %w", err)
	}
	return nil
}

// PaintWithOpacity composites src into dst at rect without scaling,
// alpha-blended through a uniform solid mask. Used to cross-fade windows
// that are not part of the active overview set. opacity at or below zero
// is a no-op.
func (c *Compositor) PaintWithOpacity(src, dst render.Picture, rect layout.Rect, opacity float64) error {
	if rect.Empty() || opacity <= 0 {
		return nil
	}
	if opacity > 1 {
		opacity = 1
	}

	if err := c.b.SetPictureTransform(src, IdentityTransform()); err != nil {
		return fmt.Errorf("paint with opacity: %w", err)
	}
	if err := c.b.SetPictureFilter(src, FilterNearest); err != nil {
		return fmt.Errorf("paint with opacity: %w", err)
	}

	alpha := uint16(opacity * 0xffff)
	mask, err := c.b.CreateSolidFill(render.Color{
		Red: alpha, Green: alpha, Blue: alpha, Alpha: alpha,
	})
	if err != nil {
		return fmt.Errorf("paint with opacity: %w", err)
	}
	defer func() {
		if err := c.b.FreePicture(mask); err != nil {
			c.log.Debug().Err(err).Msg("Mask cleanup failed")
		}
	}()

	err = c.b.Composite(render.PictOpOver, src, mask, dst,
		0, 0, rect.X, rect.Y, rect.Width, rect.Height)
	if err != nil {
		return fmt.Errorf("paint with opacity: %w", err)
	}
	return nil
}

// Clear repaints the whole canvas with its background: the wallpaper when
// one was found, a solid dark fill otherwise. The canvas has no erase
// primitive, so this runs before each full re-paint.
func (c *Compositor) Clear(canvas *Canvas) error {
	return c.ClearRect(canvas, layout.Rect{
		X: 0, Y: 0, Width: canvas.Width, Height: canvas.Height,
	})
}

// ClearRect repaints one region of the canvas with its background,
// used to erase a single thumbnail's area before a partial re-composite.
func (c *Compositor) ClearRect(canvas *Canvas, rect layout.Rect) error {
	if rect.Empty() {
		return nil
	}
	if canvas.Background != 0 {
		err := c.b.Composite(render.PictOpSrc, canvas.Background, 0, canvas.Picture,
			rect.X, rect.Y, rect.X, rect.Y, rect.Width, rect.Height)
		if err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		return nil
	}
	err := c.b.FillRectangle(xproto.Drawable(canvas.Pixmap), BackgroundFill, xproto.Rectangle{
		X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height,
	})
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Present blits the off-screen canvas to the on-screen window and forces a
// flush. The window is re-raised immediately before the blit because
// compositing work elsewhere can have changed the stacking order.
func (c *Compositor) Present(canvas *Canvas) error {
	if err := c.b.RaiseWindow(canvas.Window); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	err := c.b.CopyArea(xproto.Drawable(canvas.Pixmap), xproto.Drawable(canvas.Window),
		canvas.GC, canvas.Width, canvas.Height)
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	if err := c.b.Sync(); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}
