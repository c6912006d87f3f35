package input

import (
	"log/slog"

	"keyway/internal/metrics"
)

// Normalizer maps raw scancodes to semantic keys and buttons. It is a pure
// table lookup; the only state is the injected counter.
type Normalizer struct {
	logger   *slog.Logger
	unmapped *metrics.Counter
}

// NewNormalizer returns a Normalizer. Either argument may be nil.
func NewNormalizer(logger *slog.Logger, unmapped *metrics.Counter) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger, unmapped: unmapped}
}

// Normalize maps raw for a device with the given capabilities. Key codes
// resolve only on keyboard-capable devices and button codes only on
// pointer-capable ones. Unknown codes yield false.
func (n *Normalizer) Normalize(raw RawEvent, caps DeviceCaps) (Event, bool) {
	ev := Event{
		Kind:   raw.Kind,
		Repeat: raw.Repeat,
		Device: raw.Device,
		Time:   raw.Time,
	}

	switch raw.Kind {
	case KeyDown, KeyUp:
		if caps.Has(CapKeyboard) {
			if key, ok := keyCodes[raw.Code]; ok {
				ev.Key = key
				return ev, true
			}
		}
	case ButtonDown, ButtonUp:
		if caps.Has(CapPointer) {
			if b, ok := buttonCodes[raw.Code]; ok {
				ev.Button = b
				ev.Repeat = false
				return ev, true
			}
		}
	}

	n.logger.Debug("unmapped input code", "code", raw.Code, "kind", raw.Kind.String(), "caps", caps.String())
	if n.unmapped != nil {
		n.unmapped.Inc()
	}
	return Event{}, false
}
