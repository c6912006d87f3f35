package input

import (
	"bufio"
	"fmt"
	"io"
	"math/bits"
	"sort"
	"strconv"
	"strings"
)

// DeviceInfo describes an input device listed by the kernel.
type DeviceInfo struct {
	Name string
	Path string // /dev/input/eventN
	Phys string
	Caps DeviceCaps
}

// ParseDevices parses the /proc/bus/input/devices format and returns every
// device that has an event handler, with capabilities taken from its
// "B: KEY=" bitmap.
func ParseDevices(r io.Reader) ([]DeviceInfo, error) {
	var (
		devices []DeviceInfo
		current DeviceInfo
	)

	flush := func() {
		if current.Path != "" {
			devices = append(devices, current)
		}
		current = DeviceInfo{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "N: Name="):
			current.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "P: Phys="):
			current.Phys = strings.TrimPrefix(line, "P: Phys=")
		case strings.HasPrefix(line, "H: Handlers="):
			for _, h := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if strings.HasPrefix(h, "event") {
					current.Path = "/dev/input/" + h
				}
			}
		case strings.HasPrefix(line, "B: KEY="):
			set, err := parseBitmap(strings.TrimPrefix(line, "B: KEY="))
			if err != nil {
				return nil, fmt.Errorf("device %q: %w", current.Name, err)
			}
			current.Caps = capsFromKeyBits(set)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read device list: %w", err)
	}
	flush()

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// bitmap is a kernel capability bitmap, least significant word first.
type bitmap []uint64

func (b bitmap) has(bit uint16) bool {
	word := int(bit) / bits.UintSize
	if word >= len(b) {
		return false
	}
	return b[word]&(1<<(uint(bit)%bits.UintSize)) != 0
}

// parseBitmap parses the space-separated hex words printed by the kernel,
// most significant word first.
func parseBitmap(s string) (bitmap, error) {
	fields := strings.Fields(s)
	out := make(bitmap, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bad capability word %q: %w", f, err)
		}
		out[len(fields)-1-i] = v
	}
	return out, nil
}

// capsFromKeyBits classifies a device: a keyboard has the A, Z and Space
// keys; a pointer has a left or right button.
func capsFromKeyBits(b bitmap) DeviceCaps {
	var caps DeviceCaps
	if b.has(codeKeyA) && b.has(codeKeyZ) && b.has(codeKeySpace) {
		caps |= CapKeyboard
	}
	if b.has(codeBtnLeft) || b.has(codeBtnRight) {
		caps |= CapPointer
	}
	return caps
}

// heldKeys tracks keys a single device has reported down, so that releases
// lost while the queue was full or the device was grabbed can be recovered
// from the kernel's key state.
type heldKeys map[uint16]struct{}

func (h heldKeys) observe(ev RawEvent) {
	switch ev.Kind {
	case KeyDown:
		h[ev.Code] = struct{}{}
	case KeyUp:
		delete(h, ev.Code)
	}
}

// reconcile returns, sorted, the held codes whose bit is clear in state (an
// EVIOCGKEY result, little-endian bytes) and forgets them.
func (h heldKeys) reconcile(state []byte) []uint16 {
	var stuck []uint16
	for code := range h {
		idx := int(code / 8)
		if idx < len(state) && state[idx]&(1<<(code%8)) != 0 {
			continue
		}
		stuck = append(stuck, code)
		delete(h, code)
	}
	sort.Slice(stuck, func(i, j int) bool { return stuck[i] < stuck[j] })
	return stuck
}
