package animation

import (
	"math"
	"time"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/xoverview/xoverview/internal/layout"
)

// Config tunes entrance and exit animations.
type Config struct {
	Duration time.Duration
	FPS      int
}

// DefaultConfig returns the stock animation tuning.
func DefaultConfig() Config {
	return Config{Duration: 350 * time.Millisecond, FPS: 60}
}

// Animator interpolates every window's rectangle between a start and an
// end layout over a fixed duration. It produces geometry only; the caller
// owns frame pacing and painting.
type Animator struct {
	start    map[xproto.Window]layout.Rect
	end      map[xproto.Window]layout.Rect
	order    []xproto.Window
	began    time.Time
	duration time.Duration
	frame    time.Duration
}

// New creates an animator from matching start and end slots. Windows are
// matched by id; a window present in only one of the two sets is ignored.
// The clock starts immediately.
func New(start, end []layout.Slot, cfg Config) *Animator {
	a := &Animator{
		start:    make(map[xproto.Window]layout.Rect, len(start)),
		end:      make(map[xproto.Window]layout.Rect, len(end)),
		began:    time.Now(),
		duration: cfg.Duration,
		frame:    time.Second / time.Duration(cfg.FPS),
	}
	for _, s := range start {
		a.start[s.ID] = s.Rect
	}
	for _, s := range end {
		if _, ok := a.start[s.ID]; ok {
			a.end[s.ID] = s.Rect
			a.order = append(a.order, s.ID)
		}
	}
	return a
}

// Progress returns elapsed progress in [0, 1].
func (a *Animator) Progress() float64 {
	if a.duration <= 0 {
		return 1
	}
	p := float64(time.Since(a.began)) / float64(a.duration)
	return math.Min(p, 1)
}

// Done reports whether the animation has run its full duration.
func (a *Animator) Done() bool {
	return a.Progress() >= 1
}

// FrameDuration is the pacing interval derived from the configured FPS.
func (a *Animator) FrameDuration() time.Duration {
	return a.frame
}

// Current returns each window's interpolated rectangle at the present
// moment, eased with ease-out cubic, in end-layout order.
func (a *Animator) Current() []layout.Slot {
	return a.At(a.Progress())
}

// At returns the interpolated slots for an explicit progress value.
func (a *Animator) At(progress float64) []layout.Slot {
	t := easeOutCubic(clamp01(progress))
	slots := make([]layout.Slot, 0, len(a.order))
	for _, id := range a.order {
		s := a.start[id]
		e := a.end[id]
		slots = append(slots, layout.Slot{
			ID: id,
			Rect: layout.Rect{
				X:      int16(lerp(float64(s.X), float64(e.X), t)),
				Y:      int16(lerp(float64(s.Y), float64(e.Y), t)),
				Width:  uint16(lerp(float64(s.Width), float64(e.Width), t)),
				Height: uint16(lerp(float64(s.Height), float64(e.Height), t)),
			},
		})
	}
	return slots
}

// easeOutCubic decelerates smoothly toward the end position.
func easeOutCubic(t float64) float64 {
	inv := 1 - t
	return 1 - inv*inv*inv
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
