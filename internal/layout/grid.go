package layout

import (
	"math"
	"sort"

	"github.com/BurntSushi/xgb/xproto"
)

// Rect is a destination rectangle on the overview canvas.
type Rect struct {
	X      int16
	Y      int16
	Width  uint16
	Height uint16
}

// Empty reports whether the rectangle has zero area.
func (r Rect) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(x, y int16) bool {
	return x >= r.X && y >= r.Y &&
		int32(x) < int32(r.X)+int32(r.Width) &&
		int32(y) < int32(r.Y)+int32(r.Height)
}

// Window is the layout input for one source window: its stable id plus its
// current on-screen rectangle. Slots are matched back to windows by id,
// never by slice position.
type Window struct {
	ID   xproto.Window
	Rect Rect
}

// Slot assigns a source window a destination rectangle in the grid.
type Slot struct {
	ID   xproto.Window
	Rect Rect
}

// Config tunes the thumbnail grid.
type Config struct {
	// Padding is the gap between grid cells in pixels.
	Padding uint16
	// Margin is the border around the whole grid.
	Margin uint16
	// MaxScale caps thumbnail upscaling; 0.9 means a window is never
	// drawn larger than 90% of its real size.
	MaxScale float64
}

// DefaultConfig returns the stock grid tuning.
func DefaultConfig() Config {
	return Config{Padding: 20, Margin: 50, MaxScale: 0.9}
}

// Grid computes one destination slot per window. Cells are assigned by the
// windows' on-screen positions, top-to-bottom then left-to-right, so the
// overview preserves rough spatial relationships. Thumbnails are scaled to
// fit their cell with aspect ratio preserved and centered within it.
func Grid(windows []Window, screenWidth, screenHeight uint16, cfg Config) []Slot {
	if len(windows) == 0 {
		return nil
	}

	availW := saturatingSub(screenWidth, 2*cfg.Margin)
	availH := saturatingSub(screenHeight, 2*cfg.Margin)

	cols, rows := optimalGrid(len(windows), availW, availH)

	hPadding := uint16(cols-1) * cfg.Padding
	vPadding := uint16(rows-1) * cfg.Padding
	cellW := saturatingSub(availW, hPadding) / uint16(cols)
	cellH := saturatingSub(availH, vPadding) / uint16(rows)

	// Sort a copy spatially to decide which window owns which cell.
	order := make([]Window, len(windows))
	copy(order, windows)
	rowHeight := float64(screenHeight) / float64(rows)
	sort.SliceStable(order, func(i, j int) bool {
		ci := order[i].Rect
		cj := order[j].Rect
		cyI := float64(ci.Y) + float64(ci.Height)/2
		cyJ := float64(cj.Y) + float64(cj.Height)/2
		rowI := int(cyI / rowHeight)
		rowJ := int(cyJ / rowHeight)
		if rowI != rowJ {
			return rowI < rowJ
		}
		cxI := float64(ci.X) + float64(ci.Width)/2
		cxJ := float64(cj.X) + float64(cj.Width)/2
		return cxI < cxJ
	})

	slots := make([]Slot, 0, len(order))
	for i, win := range order {
		col := i % cols
		row := i / cols

		cellX := int16(cfg.Margin) + int16(col)*int16(cellW+cfg.Padding)
		cellY := int16(cfg.Margin) + int16(row)*int16(cellH+cfg.Padding)

		thumbW, thumbH := scaleToFit(win.Rect.Width, win.Rect.Height, cellW, cellH, cfg.MaxScale)

		slots = append(slots, Slot{
			ID: win.ID,
			Rect: Rect{
				X:      cellX + int16(saturatingSub(cellW, thumbW)/2),
				Y:      cellY + int16(saturatingSub(cellH, thumbH)/2),
				Width:  thumbW,
				Height: thumbH,
			},
		})
	}
	return slots
}

// optimalGrid picks grid dimensions that roughly match the screen aspect
// ratio.
func optimalGrid(count int, width, height uint16) (cols, rows int) {
	if count == 0 {
		return 1, 1
	}
	aspect := float64(width) / float64(height)
	cols = int(math.Ceil(math.Sqrt(float64(count) * aspect)))
	if cols < 1 {
		cols = 1
	}
	rows = (count + cols - 1) / cols
	if rows < 1 {
		rows = 1
	}
	return cols, rows
}

// scaleToFit shrinks (or mildly grows, capped by maxScale) a source size to
// fit within the cell while preserving aspect ratio.
func scaleToFit(srcW, srcH, maxW, maxH uint16, maxScale float64) (uint16, uint16) {
	if srcW == 0 || srcH == 0 {
		return maxW, maxH
	}
	scale := math.Min(float64(maxW)/float64(srcW), float64(maxH)/float64(srcH))
	scale = math.Min(scale, maxScale)

	w := uint16(float64(srcW) * scale)
	h := uint16(float64(srcH) * scale)
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return w, h
}

func saturatingSub(a, b uint16) uint16 {
	if b >= a {
		return 0
	}
	return a - b
}
