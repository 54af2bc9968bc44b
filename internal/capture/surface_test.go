package capture

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/render"
	"github.com/BurntSushi/xgb/xproto"
)

type size struct {
	w, h uint16
}

type fillCall struct {
	drawable xproto.Drawable
	color    uint32
	rect     xproto.Rectangle
}

// fakeBackend tracks server-side allocations so tests can assert that
// every error path releases what it created.
type fakeBackend struct {
	nextID uint32

	redirected map[xproto.Window]bool
	pixmaps    map[xproto.Pixmap]size
	pictures   map[render.Picture]bool
	damages    map[damage.Damage]bool
	fills      []fillCall

	winSize map[xproto.Window]size

	failRedirect    map[xproto.Window]bool
	failNamePixmap  map[xproto.Window]bool
	failGeometry    bool
	failPicture     bool
	failDamage      bool
	failSync        bool
	failFreePicture bool
	failDestroyDmg  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		redirected:     make(map[xproto.Window]bool),
		pixmaps:        make(map[xproto.Pixmap]size),
		pictures:       make(map[render.Picture]bool),
		damages:        make(map[damage.Damage]bool),
		winSize:        make(map[xproto.Window]size),
		failRedirect:   make(map[xproto.Window]bool),
		failNamePixmap: make(map[xproto.Window]bool),
	}
}

func (f *fakeBackend) id() uint32 {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) RedirectWindow(win xproto.Window) error {
	if f.failRedirect[win] {
		return errors.New("redirect refused")
	}
	f.redirected[win] = true
	return nil
}

func (f *fakeBackend) UnredirectWindow(win xproto.Window) error {
	delete(f.redirected, win)
	return nil
}

func (f *fakeBackend) NameWindowPixmap(win xproto.Window) (xproto.Pixmap, error) {
	if f.failNamePixmap[win] {
		return 0, errors.New("window not viewable")
	}
	p := xproto.Pixmap(f.id())
	sz, ok := f.winSize[win]
	if !ok {
		sz = size{640, 480}
	}
	f.pixmaps[p] = sz
	return p, nil
}

func (f *fakeBackend) DrawableGeometry(d xproto.Drawable) (uint16, uint16, error) {
	if f.failGeometry {
		return 0, 0, errors.New("bad drawable")
	}
	sz, ok := f.pixmaps[xproto.Pixmap(d)]
	if !ok {
		return 0, 0, errors.New("unknown drawable")
	}
	return sz.w, sz.h, nil
}

func (f *fakeBackend) CreatePicture(d xproto.Drawable) (render.Picture, error) {
	if f.failPicture {
		return 0, errors.New("no picture format")
	}
	pic := render.Picture(f.id())
	f.pictures[pic] = true
	return pic, nil
}

func (f *fakeBackend) FreePicture(pic render.Picture) error {
	delete(f.pictures, pic)
	if f.failFreePicture {
		return errors.New("free picture failed")
	}
	return nil
}

func (f *fakeBackend) CreatePixmap(width, height uint16) (xproto.Pixmap, error) {
	p := xproto.Pixmap(f.id())
	f.pixmaps[p] = size{width, height}
	return p, nil
}

func (f *fakeBackend) FreePixmap(p xproto.Pixmap) error {
	delete(f.pixmaps, p)
	return nil
}

func (f *fakeBackend) FillRectangle(d xproto.Drawable, color uint32, rect xproto.Rectangle) error {
	f.fills = append(f.fills, fillCall{d, color, rect})
	return nil
}

func (f *fakeBackend) CreateDamage(win xproto.Window) (damage.Damage, error) {
	if f.failDamage {
		return 0, errors.New("damage unavailable")
	}
	d := damage.Damage(f.id())
	f.damages[d] = true
	return d, nil
}

func (f *fakeBackend) DestroyDamage(d damage.Damage) error {
	delete(f.damages, d)
	if f.failDestroyDmg {
		return errors.New("destroy damage failed")
	}
	return nil
}

func (f *fakeBackend) Sync() error {
	if f.failSync {
		return errors.New("connection lost")
	}
	return nil
}

func TestAcquireUsesServerGeometry(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)
	b.winSize[win] = size{800, 600}

	m := NewManager(b)
	s, err := m.Acquire(win, 400, 300)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if s.Width != 800 || s.Height != 600 {
		t.Errorf("surface is %dx%d, want server geometry 800x600", s.Width, s.Height)
	}
	if s.Placeholder {
		t.Error("real capture marked as placeholder")
	}
	if !b.redirected[win] {
		t.Error("window was not redirected")
	}
	if got, ok := m.SourceByDamage(s.Damage); !ok || got != win {
		t.Errorf("damage handle resolves to 0x%x, want 0x%x", got, win)
	}
}

func TestAcquireTwiceFails(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)

	m := NewManager(b)
	if _, err := m.Acquire(win, 100, 100); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	if _, err := m.Acquire(win, 100, 100); err == nil {
		t.Fatal("second Acquire of the same window succeeded")
	}
}

func TestAcquireFailureReleasesResources(t *testing.T) {
	b := newFakeBackend()
	b.failDamage = true
	win := xproto.Window(0x100)

	m := NewManager(b)
	if _, err := m.Acquire(win, 100, 100); err == nil {
		t.Fatal("Acquire succeeded with damage creation failing")
	}

	if len(b.pixmaps) != 0 {
		t.Errorf("%d pixmaps leaked after failed acquire", len(b.pixmaps))
	}
	if len(b.pictures) != 0 {
		t.Errorf("%d pictures leaked after failed acquire", len(b.pictures))
	}
	if m.Len() != 0 {
		t.Errorf("failed acquire left %d surfaces registered", m.Len())
	}
}

func TestPlaceholderFillColor(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)
	b.failNamePixmap[win] = true

	m := NewManager(b)
	s, err := m.AcquirePlaceholder(win, 320, 200)
	if err != nil {
		t.Fatalf("AcquirePlaceholder failed: %v", err)
	}

	if !s.Placeholder {
		t.Error("placeholder surface not flagged")
	}
	if s.Width != 320 || s.Height != 200 {
		t.Errorf("placeholder is %dx%d, want 320x200", s.Width, s.Height)
	}
	if len(b.fills) != 1 {
		t.Fatalf("got %d fill calls, want 1", len(b.fills))
	}
	if b.fills[0].color != PlaceholderFill {
		t.Errorf("placeholder filled with 0x%x, want 0x%x", b.fills[0].color, PlaceholderFill)
	}
}

func TestTryUpgradeLeavesSurfaceOnFailure(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)
	b.failNamePixmap[win] = true

	m := NewManager(b)
	s, err := m.AcquirePlaceholder(win, 320, 200)
	if err != nil {
		t.Fatalf("AcquirePlaceholder failed: %v", err)
	}
	oldPixmap, oldPicture := s.Pixmap, s.Picture

	if m.TryUpgrade(win) {
		t.Fatal("upgrade succeeded while capture is failing")
	}
	if s.Pixmap != oldPixmap || s.Picture != oldPicture || !s.Placeholder {
		t.Error("failed upgrade mutated the surface")
	}
}

func TestTryUpgradeSwapsInRealCapture(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)
	b.failNamePixmap[win] = true
	b.winSize[win] = size{800, 600}

	m := NewManager(b)
	s, err := m.AcquirePlaceholder(win, 320, 200)
	if err != nil {
		t.Fatalf("AcquirePlaceholder failed: %v", err)
	}
	oldPixmap := s.Pixmap

	b.failNamePixmap[win] = false
	if !m.TryUpgrade(win) {
		t.Fatal("upgrade failed with capture available")
	}

	if s.Placeholder {
		t.Error("upgraded surface still flagged as placeholder")
	}
	if s.Width != 800 || s.Height != 600 {
		t.Errorf("upgraded surface is %dx%d, want 800x600", s.Width, s.Height)
	}
	if _, alive := b.pixmaps[oldPixmap]; alive {
		t.Error("placeholder pixmap not freed after upgrade")
	}
	if len(m.Placeholders()) != 0 {
		t.Error("upgraded window still listed as placeholder")
	}
}

func TestRefreshRecaptures(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)
	b.winSize[win] = size{640, 480}

	m := NewManager(b)
	s, err := m.Acquire(win, 640, 480)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	oldPixmap := s.Pixmap

	// The window resized; the next named pixmap reflects it.
	b.winSize[win] = size{1024, 768}
	if err := m.Refresh(win); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if s.Width != 1024 || s.Height != 768 {
		t.Errorf("refreshed surface is %dx%d, want 1024x768", s.Width, s.Height)
	}
	if _, alive := b.pixmaps[oldPixmap]; alive {
		t.Error("stale pixmap not freed by refresh")
	}
}

func TestRefreshFallsBackToPlaceholder(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)
	b.winSize[win] = size{640, 480}

	m := NewManager(b)
	s, err := m.Acquire(win, 640, 480)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	b.failNamePixmap[win] = true
	if err := m.Refresh(win); err != nil {
		t.Fatalf("Refresh returned error despite placeholder fallback: %v", err)
	}

	if !s.Placeholder {
		t.Error("surface not degraded to placeholder")
	}
	if s.Pixmap == 0 || s.Picture == 0 {
		t.Error("placeholder fallback left zero handles")
	}
	if s.Width != 640 || s.Height != 480 {
		t.Errorf("placeholder is %dx%d, want last known 640x480", s.Width, s.Height)
	}
}

func TestReleaseAttemptsEveryStep(t *testing.T) {
	b := newFakeBackend()
	win := xproto.Window(0x100)

	m := NewManager(b)
	if _, err := m.Acquire(win, 100, 100); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	b.failDestroyDmg = true
	b.failFreePicture = true
	if err := m.Release(win); err == nil {
		t.Fatal("Release swallowed backend errors")
	}

	// Later steps still ran despite the earlier failures.
	if len(b.pixmaps) != 0 {
		t.Error("pixmap not freed when earlier release steps failed")
	}
	if b.redirected[win] {
		t.Error("window still redirected after release")
	}
	if m.Len() != 0 {
		t.Error("surface still registered after release")
	}
}

func TestReleaseUnknownWindow(t *testing.T) {
	m := NewManager(newFakeBackend())
	if err := m.Release(0xdead); err != nil {
		t.Fatalf("releasing an unknown window errored: %v", err)
	}
}

func TestReleaseAllContinuesPastFailures(t *testing.T) {
	b := newFakeBackend()
	m := NewManager(b)
	for _, win := range []xproto.Window{0x100, 0x200, 0x300} {
		if _, err := m.Acquire(win, 100, 100); err != nil {
			t.Fatalf("Acquire 0x%x failed: %v", win, err)
		}
	}

	b.failDestroyDmg = true
	if err := m.ReleaseAll(); err == nil {
		t.Fatal("ReleaseAll swallowed backend errors")
	}
	if m.Len() != 0 {
		t.Errorf("%d surfaces left after ReleaseAll", m.Len())
	}
}
