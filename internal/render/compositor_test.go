package render

import (
	"testing"

	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/xoverview/xoverview/internal/layout"
)

type compositeCall struct {
	op            byte
	src, mask, dst render.Picture
	srcX, srcY    int16
	dstX, dstY    int16
	width, height uint16
}

type fillCall struct {
	drawable xproto.Drawable
	color    uint32
	rect     xproto.Rectangle
}

// fakeBackend records every protocol call in order so tests can assert
// on the exact request sequence.
type fakeBackend struct {
	calls      []string
	transforms map[render.Picture]render.Transform
	filters    map[render.Picture]string
	composites []compositeCall
	fills      []fillCall
	solidFills []render.Color
	freed      []render.Picture

	nextID uint32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		transforms: make(map[render.Picture]render.Transform),
		filters:    make(map[render.Picture]string),
		nextID:     0x1000,
	}
}

func (f *fakeBackend) SetPictureTransform(pic render.Picture, t render.Transform) error {
	f.calls = append(f.calls, "transform")
	f.transforms[pic] = t
	return nil
}

func (f *fakeBackend) SetPictureFilter(pic render.Picture, filter string) error {
	f.calls = append(f.calls, "filter")
	f.filters[pic] = filter
	return nil
}

func (f *fakeBackend) Composite(op byte, src, mask, dst render.Picture, srcX, srcY, dstX, dstY int16, width, height uint16) error {
	f.calls = append(f.calls, "composite")
	f.composites = append(f.composites, compositeCall{op, src, mask, dst, srcX, srcY, dstX, dstY, width, height})
	return nil
}

func (f *fakeBackend) CreateSolidFill(color render.Color) (render.Picture, error) {
	f.calls = append(f.calls, "solidfill")
	f.solidFills = append(f.solidFills, color)
	f.nextID++
	return render.Picture(f.nextID), nil
}

func (f *fakeBackend) FreePicture(pic render.Picture) error {
	f.calls = append(f.calls, "freepicture")
	f.freed = append(f.freed, pic)
	return nil
}

func (f *fakeBackend) FillRectangle(d xproto.Drawable, color uint32, rect xproto.Rectangle) error {
	f.calls = append(f.calls, "fill")
	f.fills = append(f.fills, fillCall{d, color, rect})
	return nil
}

func (f *fakeBackend) CopyArea(src, dst xproto.Drawable, gc xproto.Gcontext, width, height uint16) error {
	f.calls = append(f.calls, "copyarea")
	return nil
}

func (f *fakeBackend) RaiseWindow(win xproto.Window) error {
	f.calls = append(f.calls, "raise")
	return nil
}

func (f *fakeBackend) Sync() error {
	f.calls = append(f.calls, "sync")
	return nil
}

func TestPaintScaledDownscales(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)

	src := render.Picture(1)
	dst := render.Picture(2)
	err := c.PaintScaled(src, 800, 600, dst, layout.Rect{X: 10, Y: 20, Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("PaintScaled failed: %v", err)
	}

	tr, ok := b.transforms[src]
	if !ok {
		t.Fatal("no transform set on source")
	}
	// 800/400 = 2.0 in 16.16 fixed point.
	if want := ToFixed(2.0); tr.Matrix11 != want || tr.Matrix22 != want {
		t.Errorf("scale matrix is (%d, %d), want (%d, %d)", tr.Matrix11, tr.Matrix22, want, want)
	}
	if b.filters[src] != FilterBilinear {
		t.Errorf("filter is %q, want %q for scaled paint", b.filters[src], FilterBilinear)
	}

	if len(b.composites) != 1 {
		t.Fatalf("got %d composites, want 1", len(b.composites))
	}
	comp := b.composites[0]
	if comp.op != render.PictOpSrc {
		t.Errorf("composite op is %d, want PictOpSrc", comp.op)
	}
	if comp.mask != 0 {
		t.Errorf("scaled paint used mask %d, want none", comp.mask)
	}
	if comp.dstX != 10 || comp.dstY != 20 || comp.width != 400 || comp.height != 300 {
		t.Errorf("composite placed at (%d,%d) %dx%d, want (10,20) 400x300",
			comp.dstX, comp.dstY, comp.width, comp.height)
	}
}

func TestPaintScaledExactSizeUsesNearest(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)

	src := render.Picture(1)
	err := c.PaintScaled(src, 400, 300, render.Picture(2), layout.Rect{Width: 400, Height: 300})
	if err != nil {
		t.Fatalf("PaintScaled failed: %v", err)
	}

	if b.filters[src] != FilterNearest {
		t.Errorf("filter is %q, want %q for a 1:1 blit", b.filters[src], FilterNearest)
	}
	if tr := b.transforms[src]; tr.Matrix11 != ToFixed(1) {
		t.Errorf("1:1 blit got scale %d, want identity", tr.Matrix11)
	}
}

func TestPaintScaledZeroAreaIsNoop(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)

	err := c.PaintScaled(render.Picture(1), 800, 600, render.Picture(2), layout.Rect{Width: 0, Height: 300})
	if err != nil {
		t.Fatalf("zero-area paint errored: %v", err)
	}
	if len(b.calls) != 0 {
		t.Errorf("zero-area paint issued %d requests, want none", len(b.calls))
	}
}

func TestPaintWithOpacityBuildsAlphaMask(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)

	src := render.Picture(1)
	dst := render.Picture(2)
	err := c.PaintWithOpacity(src, dst, layout.Rect{X: 5, Y: 6, Width: 100, Height: 50}, 0.5)
	if err != nil {
		t.Fatalf("PaintWithOpacity failed: %v", err)
	}

	if len(b.solidFills) != 1 {
		t.Fatalf("got %d solid fills, want 1", len(b.solidFills))
	}
	opacity := 0.5
	if want := uint16(opacity * 0xffff); b.solidFills[0].Alpha != want {
		t.Errorf("mask alpha is 0x%x, want 0x%x", b.solidFills[0].Alpha, want)
	}

	if len(b.composites) != 1 {
		t.Fatalf("got %d composites, want 1", len(b.composites))
	}
	comp := b.composites[0]
	if comp.op != render.PictOpOver {
		t.Errorf("composite op is %d, want PictOpOver", comp.op)
	}
	if comp.mask == 0 {
		t.Error("opacity paint composited without a mask")
	}

	if len(b.freed) != 1 || b.freed[0] != comp.mask {
		t.Error("mask picture not freed after composite")
	}
}

func TestPaintWithOpacityZeroIsNoop(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)

	err := c.PaintWithOpacity(render.Picture(1), render.Picture(2), layout.Rect{Width: 100, Height: 100}, 0)
	if err != nil {
		t.Fatalf("zero-opacity paint errored: %v", err)
	}
	if len(b.calls) != 0 {
		t.Errorf("zero-opacity paint issued %d requests, want none", len(b.calls))
	}
}

func TestPaintWithOpacityClampsAboveOne(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)

	err := c.PaintWithOpacity(render.Picture(1), render.Picture(2), layout.Rect{Width: 10, Height: 10}, 3.0)
	if err != nil {
		t.Fatalf("PaintWithOpacity failed: %v", err)
	}
	if b.solidFills[0].Alpha != 0xffff {
		t.Errorf("mask alpha is 0x%x, want full 0xffff", b.solidFills[0].Alpha)
	}
}

func TestClearWithWallpaper(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)
	canvas := &Canvas{Picture: 7, Background: 9, Width: 1920, Height: 1080}

	if err := c.Clear(canvas); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if len(b.composites) != 1 {
		t.Fatalf("got %d composites, want 1", len(b.composites))
	}
	comp := b.composites[0]
	if comp.src != canvas.Background || comp.dst != canvas.Picture {
		t.Error("clear did not composite the wallpaper onto the canvas")
	}
	if comp.width != 1920 || comp.height != 1080 {
		t.Errorf("clear covered %dx%d, want the full canvas", comp.width, comp.height)
	}
	if len(b.fills) != 0 {
		t.Error("wallpaper clear also issued a solid fill")
	}
}

func TestClearRectWithoutWallpaper(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)
	canvas := &Canvas{Picture: 7, Pixmap: 3, Width: 1920, Height: 1080}

	rect := layout.Rect{X: 100, Y: 200, Width: 300, Height: 150}
	if err := c.ClearRect(canvas, rect); err != nil {
		t.Fatalf("ClearRect failed: %v", err)
	}

	if len(b.fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(b.fills))
	}
	fill := b.fills[0]
	if fill.color != BackgroundFill {
		t.Errorf("cleared with 0x%x, want 0x%x", fill.color, BackgroundFill)
	}
	if fill.rect.X != 100 || fill.rect.Y != 200 || fill.rect.Width != 300 || fill.rect.Height != 150 {
		t.Errorf("cleared %+v, want the requested region", fill.rect)
	}
}

func TestClearRectWallpaperOffsetsMatch(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)
	canvas := &Canvas{Picture: 7, Background: 9, Width: 1920, Height: 1080}

	rect := layout.Rect{X: 100, Y: 200, Width: 300, Height: 150}
	if err := c.ClearRect(canvas, rect); err != nil {
		t.Fatalf("ClearRect failed: %v", err)
	}

	// Partial wallpaper clears must sample the wallpaper at the same
	// offset they write to, or the region shows the wrong slice of it.
	comp := b.composites[0]
	if comp.srcX != comp.dstX || comp.srcY != comp.dstY {
		t.Errorf("wallpaper sampled at (%d,%d) but written to (%d,%d)",
			comp.srcX, comp.srcY, comp.dstX, comp.dstY)
	}
}

func TestPresentOrder(t *testing.T) {
	b := newFakeBackend()
	c := NewCompositor(b)
	canvas := &Canvas{Window: 11, Pixmap: 3, GC: 4, Width: 1920, Height: 1080}

	if err := c.Present(canvas); err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	want := []string{"raise", "copyarea", "sync"}
	if len(b.calls) != len(want) {
		t.Fatalf("present issued %v, want %v", b.calls, want)
	}
	for i, call := range want {
		if b.calls[i] != call {
			t.Fatalf("present issued %v, want %v", b.calls, want)
		}
	}
}
