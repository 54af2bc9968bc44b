package render

import (
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
)

// Backend is the slice of the display-server protocol the compositor
// depends on. *x11.Conn satisfies it; tests substitute an in-memory fake.
type Backend interface {
	SetPictureTransform(pic render.Picture, t render.Transform) error
	SetPictureFilter(pic render.Picture, filter string) error
	Composite(op byte, src, mask, dst render.Picture, srcX, srcY, dstX, dstY int16, width, height uint16) error
	CreateSolidFill(color render.Color) (render.Picture, error)
	FreePicture(pic render.Picture) error
	FillRectangle(d xproto.Drawable, color uint32, rect xproto.Rectangle) error
	CopyArea(src, dst xproto.Drawable, gc xproto.Gcontext, width, height uint16) error
	RaiseWindow(win xproto.Window) error
	Sync() error
}
