package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
)

// Protocol verbs shared by the capture and render layers. Every verb uses
// the checked request form so failures surface at the call site instead of
// arriving later on the event stream.

// RedirectWindow diverts win's painting into off-screen storage. Safe to
// call again for an already-redirected window.
func (c *Conn) RedirectWindow(win xproto.Window) error {
	err := composite.RedirectWindowChecked(c.X, win, composite.RedirectAutomatic).Check()
	if err != nil {
		return fmt.Errorf("redirect window 0x%x: %w", win, err)
	}
	return nil
}

// UnredirectWindow undoes RedirectWindow.
func (c *Conn) UnredirectWindow(win xproto.Window) error {
	err := composite.UnredirectWindowChecked(c.X, win, composite.RedirectAutomatic).Check()
	if err != nil {
		return fmt.Errorf("unredirect window 0x%x: %w", win, err)
	}
	return nil
}

// NameWindowPixmap binds a fresh pixmap id to win's current off-screen
// contents.
func (c *Conn) NameWindowPixmap(win xproto.Window) (xproto.Pixmap, error) {
	pixmap, err := xproto.NewPixmapId(c.X)
	if err != nil {
		return 0, fmt.Errorf("allocate pixmap id: %w", err)
	}
	if err := composite.NameWindowPixmapChecked(c.X, win, pixmap).Check(); err != nil {
		return 0, fmt.Errorf("name window pixmap for 0x%x: %w", win, err)
	}
	return pixmap, nil
}

// DrawableGeometry queries the server for the drawable's actual size. This
// is a round trip; the reply is authoritative where cached sizes are not.
func (c *Conn) DrawableGeometry(d xproto.Drawable) (width, height uint16, err error) {
	geom, err := xproto.GetGeometry(c.X, d).Reply()
	if err != nil {
		return 0, 0, fmt.Errorf("get geometry for 0x%x: %w", d, err)
	}
	return geom.Width, geom.Height, nil
}

// CreatePicture derives a compositable picture from a drawable using the
// negotiated format.
func (c *Conn) CreatePicture(d xproto.Drawable) (render.Picture, error) {
	pic, err := render.NewPictureId(c.X)
	if err != nil {
		return 0, fmt.Errorf("allocate picture id: %w", err)
	}
	err = render.CreatePictureChecked(c.X, pic, d, c.Caps.PictFormat, 0, nil).Check()
	if err != nil {
		return 0, fmt.Errorf("create picture for 0x%x: %w", d, err)
	}
	return pic, nil
}

// FreePicture releases a picture.
func (c *Conn) FreePicture(pic render.Picture) error {
	if err := render.FreePictureChecked(c.X, pic).Check(); err != nil {
		return fmt.Errorf("free picture 0x%x: %w", pic, err)
	}
	return nil
}

// CreatePixmap allocates an off-screen pixmap at root depth.
func (c *Conn) CreatePixmap(width, height uint16) (xproto.Pixmap, error) {
	pixmap, err := xproto.NewPixmapId(c.X)
	if err != nil {
		return 0, fmt.Errorf("allocate pixmap id: %w", err)
	}
	err = xproto.CreatePixmapChecked(c.X, c.RootDepth, pixmap,
		xproto.Drawable(c.Root), width, height).Check()
	if err != nil {
		return 0, fmt.Errorf("create %dx%d pixmap: %w", width, height, err)
	}
	return pixmap, nil
}

// FreePixmap releases a pixmap.
func (c *Conn) FreePixmap(p xproto.Pixmap) error {
	if err := xproto.FreePixmapChecked(c.X, p).Check(); err != nil {
		return fmt.Errorf("free pixmap 0x%x: %w", p, err)
	}
	return nil
}

// FillRectangle paints a solid rectangle onto a drawable with a throwaway
// graphics context.
func (c *Conn) FillRectangle(d xproto.Drawable, color uint32, rect xproto.Rectangle) error {
	gc, err := xproto.NewGcontextId(c.X)
	if err != nil {
		return fmt.Errorf("allocate gc id: %w", err)
	}
	err = xproto.CreateGCChecked(c.X, gc, d, xproto.GcForeground, []uint32{color}).Check()
	if err != nil {
		return fmt.Errorf("create gc: %w", err)
	}
	defer xproto.FreeGC(c.X, gc)

	err = xproto.PolyFillRectangleChecked(c.X, d, gc, []xproto.Rectangle{rect}).Check()
	if err != nil {
		return fmt.Errorf("fill rectangle: %w", err)
	}
	return nil
}

// CreateDamage registers change notifications for win. Non-empty reporting
// gives one "something changed" event per quiet period, which is all the
// thumbnail refresh needs.
func (c *Conn) CreateDamage(win xproto.Window) (damage.Damage, error) {
	d, err := damage.NewDamageId(c.X)
	if err != nil {
		return 0, fmt.Errorf("allocate damage id: %w", err)
	}
	err = damage.CreateChecked(c.X, d, xproto.Drawable(win), damage.ReportLevelNonEmpty).Check()
	if err != nil {
		return 0, fmt.Errorf("create damage for 0x%x: %w", win, err)
	}
	return d, nil
}

// DestroyDamage drops a damage registration.
func (c *Conn) DestroyDamage(d damage.Damage) error {
	if err := damage.DestroyChecked(c.X, d).Check(); err != nil {
		return fmt.Errorf("destroy damage 0x%x: %w", d, err)
	}
	return nil
}

// AckDamage acknowledges a damage notification so the server keeps
// delivering future ones for the same registration.
func (c *Conn) AckDamage(d damage.Damage) error {
	err := damage.SubtractChecked(c.X, d, xfixes.Region(0), xfixes.Region(0)).Check()
	if err != nil {
		return fmt.Errorf("subtract damage 0x%x: %w", d, err)
	}
	return nil
}

// SetPictureTransform applies an affine transform to a picture.
func (c *Conn) SetPictureTransform(pic render.Picture, t render.Transform) error {
	if err := render.SetPictureTransformChecked(c.X, pic, t).Check(); err != nil {
		return fmt.Errorf("set transform on 0x%x: %w", pic, err)
	}
	return nil
}

// SetPictureFilter selects the resampling filter for a picture.
func (c *Conn) SetPictureFilter(pic render.Picture, filter string) error {
	err := render.SetPictureFilterChecked(c.X, pic, uint16(len(filter)), filter, nil).Check()
	if err != nil {
		return fmt.Errorf("set filter %q on 0x%x: %w", filter, pic, err)
	}
	return nil
}

// Composite combines src (optionally through mask) onto dst at the given
// destination rectangle.
func (c *Conn) Composite(op byte, src, mask, dst render.Picture, srcX, srcY, dstX, dstY int16, width, height uint16) error {
	err := render.CompositeChecked(c.X, op, src, mask, dst,
		srcX, srcY, 0, 0, dstX, dstY, width, height).Check()
	if err != nil {
		return fmt.Errorf("composite onto 0x%x: %w", dst, err)
	}
	return nil
}

// CreateSolidFill creates a single-color source picture, used as a uniform
// alpha mask.
func (c *Conn) CreateSolidFill(color render.Color) (render.Picture, error) {
	pic, err := render.NewPictureId(c.X)
	if err != nil {
		return 0, fmt.Errorf("allocate picture id: %w", err)
	}
	if err := render.CreateSolidFillChecked(c.X, pic, color).Check(); err != nil {
		return 0, fmt.Errorf("create solid fill: %w", err)
	}
	return pic, nil
}

// CopyArea blits between drawables.
func (c *Conn) CopyArea(src, dst xproto.Drawable, gc xproto.Gcontext, width, height uint16) error {
	err := xproto.CopyAreaChecked(c.X, src, dst, gc, 0, 0, 0, 0, width, height).Check()
	if err != nil {
		return fmt.Errorf("copy area: %w", err)
	}
	return nil
}

// RaiseWindow moves win to the top of the stacking order.
func (c *Conn) RaiseWindow(win xproto.Window) error {
	err := xproto.ConfigureWindowChecked(c.X, win,
		xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove}).Check()
	if err != nil {
		return fmt.Errorf("raise window 0x%x: %w", win, err)
	}
	return nil
}

// GetImage reads back pixel data from a drawable in ZPixmap layout.
func (c *Conn) GetImage(d xproto.Drawable, width, height uint16) ([]byte, error) {
	reply, err := xproto.GetImage(c.X, xproto.ImageFormatZPixmap, d,
		0, 0, width, height, 0xffffffff).Reply()
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return reply.Data, nil
}
