package x11

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/xoverview/xoverview/internal/logger"
)

// RootBackgroundPixmap looks up the wallpaper pixmap set on the root
// window. _XROOTPMAP_ID is checked first (feh, nitrogen, hsetroot),
// then the older ESETROOT_PMAP_ID. The second return is false when no
// wallpaper is set.
func (c *Conn) RootBackgroundPixmap() (xproto.Pixmap, bool, error) {
	log := logger.WithComponent("x11")

	for _, name := range []string{"_XROOTPMAP_ID", "ESETROOT_PMAP_ID"} {
		atom, err := c.Atom(name)
		if err != nil {
			return 0, false, err
		}
		reply, err := xproto.GetProperty(c.X, false, c.Root, atom,
			xproto.AtomPixmap, 0, 1).Reply()
		if err != nil {
			return 0, false, err
		}
		if reply.Format != 32 || len(reply.Value) < 4 {
			continue
		}
		id := xproto.Pixmap(xgbUint32(reply.Value))
		if id != 0 {
			log.Debug().Str("property", name).Uint32("pixmap", uint32(id)).
				Msg("Found root background pixmap")
			return id, true, nil
		}
	}

	log.Debug().Msg("No root background pixmap set")
	return 0, false, nil
}

func xgbUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
