// Package input reads key and mouse-button transitions from Linux evdev
// devices and normalizes kernel scancodes into semantic key symbols.
//
// Only EV_KEY events are of interest. Relative motion, scroll and sync
// events are discarded by the reader before they reach the event queue.
package input

import (
	"encoding/binary"
	"time"

	"keyway/internal/chord"
)

// Kind is the kind of a raw or normalized input transition.
type Kind uint8

const (
	KeyDown Kind = iota + 1
	KeyUp
	ButtonDown
	ButtonUp
)

func (k Kind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case ButtonDown:
		return "button_down"
	case ButtonUp:
		return "button_up"
	default:
		return "unknown"
	}
}

// DeviceID identifies the device an event came from (its /dev/input path).
type DeviceID string

// DeviceCaps is the set of capabilities probed for a device.
type DeviceCaps uint8

const (
	CapKeyboard DeviceCaps = 1 << iota
	CapPointer
)

// Has reports whether all bits of c are set.
func (d DeviceCaps) Has(c DeviceCaps) bool { return d&c == c }

func (d DeviceCaps) String() string {
	switch {
	case d.Has(CapKeyboard | CapPointer):
		return "keyboard+pointer"
	case d.Has(CapKeyboard):
		return "keyboard"
	case d.Has(CapPointer):
		return "pointer"
	default:
		return "none"
	}
}

// RawEvent is a single key or button transition as reported by a device.
// Repeat marks kernel auto-repeat; a repeat is always a KeyDown.
type RawEvent struct {
	Kind   Kind
	Code   uint16
	Repeat bool
	Device DeviceID
	Caps   DeviceCaps
	Time   time.Time
}

// Event is a normalized transition. Exactly one of Key or Button is set,
// according to Kind.
type Event struct {
	Kind   Kind
	Key    chord.Key
	Button chord.Button
	Repeat bool
	Device DeviceID
	Time   time.Time
}

// Linux input_event on 64-bit platforms: struct timeval (two 8-byte
// fields), type, code, value.
const eventSize = 24

const (
	evKey = 0x01

	valueRelease = 0
	valuePress   = 1
	valueRepeat  = 2

	btnMisc   = 0x100
	btnLast   = 0x15f
	btnLeft   = 0x110
	btnMiddle = 0x112
)

// decodeEvent turns one input_event record into a RawEvent. It returns false
// for anything that is not a displayable key or mouse-button transition.
func decodeEvent(b []byte, dev DeviceID, caps DeviceCaps) (RawEvent, bool) {
	if len(b) < eventSize {
		return RawEvent{}, false
	}
	if binary.LittleEndian.Uint16(b[16:18]) != evKey {
		return RawEvent{}, false
	}

	sec := int64(binary.LittleEndian.Uint64(b[0:8]))
	usec := int64(binary.LittleEndian.Uint64(b[8:16]))
	code := binary.LittleEndian.Uint16(b[18:20])
	value := int32(binary.LittleEndian.Uint32(b[20:24]))

	ev := RawEvent{
		Code:   code,
		Device: dev,
		Caps:   caps,
		Time:   time.Unix(sec, usec*int64(time.Microsecond)),
	}

	if code >= btnMisc && code <= btnLast {
		// Touch, stylus and joystick buttons are not shown.
		if code < btnLeft || code > btnMiddle {
			return RawEvent{}, false
		}
		switch value {
		case valuePress:
			ev.Kind = ButtonDown
		case valueRelease:
			ev.Kind = ButtonUp
		default:
			return RawEvent{}, false
		}
		return ev, true
	}

	switch value {
	case valuePress:
		ev.Kind = KeyDown
	case valueRepeat:
		ev.Kind = KeyDown
		ev.Repeat = true
	case valueRelease:
		ev.Kind = KeyUp
	default:
		return RawEvent{}, false
	}
	return ev, true
}

// encodeEvent is the inverse of decodeEvent, used by tests and the replay
// source.
func encodeEvent(t time.Time, typ, code uint16, value int32) []byte {
	b := make([]byte, eventSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(t.Unix()))
	binary.LittleEndian.PutUint64(b[8:16], uint64(t.Nanosecond()/int(time.Microsecond)))
	binary.LittleEndian.PutUint16(b[16:18], typ)
	binary.LittleEndian.PutUint16(b[18:20], code)
	binary.LittleEndian.PutUint32(b[20:24], uint32(value))
	return b
}
