package render

import (
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"golang.org/x/image/draw"

	"github.com/xoverview/xoverview/internal/x11"
)

// Snapshot reads the canvas pixmap back into an RGBA image. The server
// returns ZPixmap data in BGRA byte order at 24/32-bit depths.
func Snapshot(conn *x11.Conn, canvas *Canvas) (*image.RGBA, error) {
	data, err := conn.GetImage(xproto.Drawable(canvas.Pixmap), canvas.Width, canvas.Height)
	if err != nil {
		return nil, err
	}

	width := int(canvas.Width)
	height := int(canvas.Height)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * 4
			if i+3 >= len(data) {
				break
			}
			o := img.PixOffset(x, y)
			img.Pix[o+0] = data[i+2]
			img.Pix[o+1] = data[i+1]
			img.Pix[o+2] = data[i+0]
			img.Pix[o+3] = 0xff
		}
	}
	return img, nil
}

// ScaleSnapshot shrinks a snapshot to fit within maxWidth, preserving
// aspect ratio. Images already narrow enough are returned unchanged.
func ScaleSnapshot(img *image.RGBA, maxWidth int) *image.RGBA {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}
	scale := float64(maxWidth) / float64(bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, int(float64(bounds.Dy())*scale)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
