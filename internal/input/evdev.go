package input

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"keyway/internal/metrics"
)

// DefaultDevicesFile is the kernel's device listing.
const DefaultDevicesFile = "/proc/bus/input/devices"

// EvdevOptions configures an evdev source.
type EvdevOptions struct {
	// DevicesFile overrides DefaultDevicesFile.
	DevicesFile string

	// QueueSize is the capacity of the shared event channel.
	QueueSize int

	// PollTimeout bounds how long a reader waits before checking for
	// cancellation. Default 100ms.
	PollTimeout time.Duration

	// Hotplug watches /dev/input and opens keyboards and pointers that
	// appear after Start.
	Hotplug bool

	Logger      *slog.Logger
	Diagnostics *metrics.Diagnostics
}

func (o *EvdevOptions) setDefaults() {
	if o.DevicesFile == "" {
		o.DevicesFile = DefaultDevicesFile
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 100 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// ListDevices returns the devices in path (DefaultDevicesFile when empty)
// that are keyboards or pointers.
func ListDevices(path string) ([]DeviceInfo, error) {
	if path == "" {
		path = DefaultDevicesFile
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}
	defer f.Close()

	all, err := ParseDevices(f)
	if err != nil {
		return nil, err
	}
	usable := all[:0]
	for _, d := range all {
		if d.Caps != 0 {
			usable = append(usable, d)
		}
	}
	return usable, nil
}
