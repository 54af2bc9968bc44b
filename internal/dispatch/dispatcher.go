package dispatch

import (
	"errors"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/damage"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/rs/zerolog"

	"github.com/xoverview/xoverview/internal/logger"
)

// ErrConnectionClosed is returned when the event stream ends, which only
// happens when the server connection is gone. Fatal to the session.
var ErrConnectionClosed = errors.New("X connection closed")

// Conn is the event-stream slice of the connection the dispatcher uses.
type Conn interface {
	WaitForEvent() (xgb.Event, xgb.Error)
	PollForEvent() (xgb.Event, xgb.Error)
	AckDamage(d damage.Damage) error
}

// Surfaces resolves damage handles to captured surfaces and refreshes them.
// *capture.Manager satisfies it.
type Surfaces interface {
	SourceByDamage(d damage.Damage) (xproto.Window, bool)
	Refresh(win xproto.Window) error
}

// Batch is the result of one dispatcher iteration.
type Batch struct {
	// Refreshed lists the distinct surfaces whose content was re-captured
	// in this batch, in first-notification order. The caller re-composites
	// exactly these surfaces' rectangles and marks the frame dirty when
	// the list is non-empty.
	Refreshed []xproto.Window

	// Other holds the non-damage events read while draining, in arrival
	// order, for the input layer to interpret.
	Other []xgb.Event
}

// Dispatcher drains damage notifications from the event stream and
// coalesces them into per-surface refreshes. It alternates between two
// states: idle (blocking on the next event) and draining (consuming
// everything already queued into the same batch).
type Dispatcher struct {
	conn     Conn
	surfaces Surfaces
	log      *zerolog.Logger
}

// New creates a dispatcher over the given event stream and surface
// registry.
func New(conn Conn, surfaces Surfaces) *Dispatcher {
	return &Dispatcher{conn: conn, surfaces: surfaces, log: logger.WithComponent("dispatch")}
}

// Next blocks until at least one event is available, then drains every
// further queued event without blocking. Damage notifications are
// acknowledged individually and deduplicated by owning surface: no matter
// how many arrive for one surface in a batch, it is refreshed exactly once.
func (d *Dispatcher) Next() (Batch, error) {
	var batch Batch
	pending := make(map[xproto.Window]struct{})
	var order []xproto.Window

	ev, xerr := d.conn.WaitForEvent()
	if ev == nil && xerr == nil {
		return batch, ErrConnectionClosed
	}
	for {
		if xerr != nil {
			// Asynchronous request error, e.g. a composite against a
			// window that just vanished. Not fatal: log and keep the
			// frame going.
			d.log.Warn().Str("error", xerr.Error()).Msg("X request error")
		} else {
			d.collect(ev, pending, &order, &batch)
		}

		ev, xerr = d.conn.PollForEvent()
		if ev == nil && xerr == nil {
			break
		}
	}

	for _, win := range order {
		if err := d.surfaces.Refresh(win); err != nil {
			d.log.Warn().Err(err).Uint32("window", uint32(win)).
				Msg("Surface refresh failed, skipping repaint")
			continue
		}
		batch.Refreshed = append(batch.Refreshed, win)
	}
	return batch, nil
}

func (d *Dispatcher) collect(ev xgb.Event, pending map[xproto.Window]struct{}, order *[]xproto.Window, batch *Batch) {
	notify, ok := ev.(damage.NotifyEvent)
	if !ok {
		batch.Other = append(batch.Other, ev)
		return
	}

	win, known := d.surfaces.SourceByDamage(notify.Damage)
	if !known {
		// Notification for a surface released earlier in this batch.
		d.log.Debug().Uint32("damage", uint32(notify.Damage)).
			Msg("Damage for unknown surface")
		return
	}

	// Acknowledge so the server keeps reporting future damage for this
	// registration.
	if err := d.conn.AckDamage(notify.Damage); err != nil {
		d.log.Warn().Err(err).Uint32("window", uint32(win)).
			Msg("Damage acknowledge failed")
	}

	if _, seen := pending[win]; !seen {
		pending[win] = struct{}{}
		*order = append(*order, win)
	}
}
