package x11

import (
	"errors"

	"github.com/BurntSushi/xgb"
)

// Capability negotiation failures. All of these are fatal: without the
// Composite/Damage/Render triple there is no overview at all, so callers
// are expected to print the wrapped message and exit.
var (
	// ErrExtensionMissing means the server does not advertise a required
	// extension.
	ErrExtensionMissing = errors.New("required X extension is missing")

	// ErrVersionTooLow means the extension is present but predates the
	// protocol requests this program depends on.
	ErrVersionTooLow = errors.New("X extension version is too old")

	// ErrNoPictFormat means no direct-color picture format exists at the
	// root depth, so nothing can be composited.
	ErrNoPictFormat = errors.New("no suitable picture format found")
)

// RequestFailed reports whether err is an X protocol error for a single
// request, which in this program almost always means the target window
// vanished between our commands. Such failures are recoverable per window.
// A non-nil err for which this returns false indicates a broken connection
// and is fatal to the session.
func RequestFailed(err error) bool {
	var xerr xgb.Error
	return errors.As(err, &xerr)
}
