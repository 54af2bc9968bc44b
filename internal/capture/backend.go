package capture

import (
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
)

// Backend is the slice of the display-server protocol the capture layer
// depends on. *x11.Conn satisfies it; tests substitute an in-memory fake.
type Backend interface {
	RedirectWindow(win xproto.Window) error
	UnredirectWindow(win xproto.Window) error
	NameWindowPixmap(win xproto.Window) (xproto.Pixmap, error)
	DrawableGeometry(d xproto.Drawable) (width, height uint16, err error)
	CreatePicture(d xproto.Drawable) (render.Picture, error)
	FreePicture(pic render.Picture) error
	CreatePixmap(width, height uint16) (xproto.Pixmap, error)
	FreePixmap(p xproto.Pixmap) error
	FillRectangle(d xproto.Drawable, color uint32, rect xproto.Rectangle) error
	CreateDamage(win xproto.Window) (damage.Damage, error)
	DestroyDamage(d damage.Damage) error
	Sync() error
}
