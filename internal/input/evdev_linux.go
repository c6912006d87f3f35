//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"keyway/internal/logging"
	"keyway/internal/metrics"
)

// ioctl request encoding from <asm-generic/ioctl.h>.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | typ<<8 | nr
}

const (
	iocRead = 2

	keyMax       = 0x2ff
	keyStateSize = keyMax/8 + 1
)

// EVIOCGKEY(len): read the global key state.
var eviocgkey = ioc(iocRead, 'E', 0x18, keyStateSize)

// device is an open evdev node.
type device struct {
	info DeviceInfo
	fd   int
}

// EvdevSource reads every keyboard and pointer under /dev/input.
type EvdevSource struct {
	opts EvdevOptions

	mu      sync.Mutex
	started bool
	closed  bool
	open    map[string]*device
	q       *queue
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	watcher *fsnotify.Watcher
}

// NewEvdevSource returns an unstarted evdev source.
func NewEvdevSource(opts EvdevOptions) *EvdevSource {
	opts.setDefaults()
	return &EvdevSource{
		opts: opts,
		open: make(map[string]*device),
	}
}

// Start opens the devices and launches one reader per device. It fails with
// ErrNoDevices when nothing could be opened; the individual open failures
// are wrapped alongside.
func (s *EvdevSource) Start(ctx context.Context) (<-chan RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrAlreadyStarted
	}

	infos, err := ListDevices(s.opts.DevicesFile)
	if err != nil {
		return nil, err
	}

	var dropped *metrics.Counter
	if s.opts.Diagnostics != nil {
		dropped = s.opts.Diagnostics.DroppedEventsTotal
	}
	s.q = newQueue(s.opts.QueueSize, s.opts.Logger, dropped)

	var failures []error
	var opened []*device
	for _, info := range infos {
		dev, err := openDevice(info)
		if err != nil {
			failures = append(failures, err)
			s.opts.Logger.Warn("cannot open input device", "path", info.Path, "name", info.Name, "error", err)
			continue
		}
		opened = append(opened, dev)
	}
	if len(opened) == 0 {
		if len(failures) > 0 {
			return nil, fmt.Errorf("%w: %w", ErrNoDevices, errors.Join(failures...))
		}
		return nil, ErrNoDevices
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	for _, dev := range opened {
		s.startReader(ctx, dev)
	}

	if s.opts.Hotplug {
		if err := s.startHotplug(ctx); err != nil {
			s.opts.Logger.Warn("device hotplug disabled", "error", err)
		}
	}

	events := s.q.events
	go func() {
		s.wg.Wait()
		close(events)
	}()
	return events, nil
}

func openDevice(info DeviceInfo) (*device, error) {
	fd, err := unix.Open(info.Path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &DeviceError{Path: info.Path, Op: "open", Err: err}
	}
	return &device{info: info, fd: fd}, nil
}

// startReader must be called with s.mu held.
func (s *EvdevSource) startReader(ctx context.Context, dev *device) {
	s.open[dev.info.Path] = dev
	s.wg.Add(1)
	if d := s.opts.Diagnostics; d != nil {
		d.OpenDevices.Inc()
	}
	s.opts.Logger.Info("reading input device", "path", dev.info.Path, "name", dev.info.Name, "caps", dev.info.Caps.String())

	go func() {
		defer s.wg.Done()
		defer s.release(dev)
		defer logging.Recover(s.opts.Logger, "device reader "+dev.info.Path, s.q.report)

		if err := s.read(ctx, dev); err != nil {
			if d := s.opts.Diagnostics; d != nil {
				d.DeviceErrorsTotal.Inc()
			}
			s.opts.Logger.Error("input device stopped", "path", dev.info.Path, "error", err)
			s.q.report(err)
		}
	}()
}

func (s *EvdevSource) release(dev *device) {
	s.mu.Lock()
	delete(s.open, dev.info.Path)
	s.mu.Unlock()
	unix.Close(dev.fd)
	if d := s.opts.Diagnostics; d != nil {
		d.OpenDevices.Dec()
	}
}

// read polls dev until ctx is done or the device fails. After every batch
// containing key activity, held keys are reconciled with the kernel's key
// state and lost releases are synthesized.
func (s *EvdevSource) read(ctx context.Context, dev *device) error {
	fds := []unix.PollFd{{Fd: int32(dev.fd), Events: unix.POLLIN}}
	buf := make([]byte, eventSize*64)
	held := make(heldKeys)
	timeout := int(s.opts.PollTimeout / time.Millisecond)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return &DeviceError{Path: dev.info.Path, Op: "poll", Err: err}
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return &DeviceError{Path: dev.info.Path, Op: "poll", Err: unix.ENODEV}
		}

		r, err := unix.Read(dev.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return &DeviceError{Path: dev.info.Path, Op: "read", Err: err}
		}

		keyActivity := false
		var last time.Time
		for off := 0; off+eventSize <= r; off += eventSize {
			ev, ok := decodeEvent(buf[off:off+eventSize], DeviceID(dev.info.Path), dev.info.Caps)
			if !ok {
				continue
			}
			if d := s.opts.Diagnostics; d != nil {
				d.EventsTotal.Inc()
			}
			if ev.Kind == KeyDown || ev.Kind == KeyUp {
				keyActivity = true
				held.observe(ev)
			}
			last = ev.Time
			s.q.push(ev)
		}

		if keyActivity && len(held) > 0 {
			s.recoverStuck(dev, held, last)
		}
	}
}

func (s *EvdevSource) recoverStuck(dev *device, held heldKeys, at time.Time) {
	state := make([]byte, keyStateSize)
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(dev.fd), eviocgkey, uintptr(unsafe.Pointer(&state[0])))
	if errno != 0 {
		s.opts.Logger.Debug("key state query failed", "path", dev.info.Path, "error", errno)
		return
	}
	for _, code := range held.reconcile(state) {
		if d := s.opts.Diagnostics; d != nil {
			d.StuckKeysTotal.Inc()
		}
		s.q.push(RawEvent{Kind: KeyUp, Code: code, Device: DeviceID(dev.info.Path), Caps: dev.info.Caps, Time: at})
	}
}

// startHotplug must be called with s.mu held.
func (s *EvdevSource) startHotplug(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add("/dev/input"); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer watcher.Close()
		defer logging.Recover(s.opts.Logger, "device hotplug", s.q.report)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) || !strings.HasPrefix(filepath.Base(ev.Name), "event") {
					continue
				}
				// udev applies permissions shortly after the node appears.
				select {
				case <-time.After(250 * time.Millisecond):
				case <-ctx.Done():
					return
				}
				s.attach(ctx, ev.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.opts.Logger.Warn("device watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (s *EvdevSource) attach(ctx context.Context, path string) {
	infos, err := ListDevices(s.opts.DevicesFile)
	if err != nil {
		s.opts.Logger.Warn("rescan input devices", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.open[path]; ok {
		return
	}
	for _, info := range infos {
		if info.Path != path {
			continue
		}
		dev, err := openDevice(info)
		if err != nil {
			s.opts.Logger.Warn("cannot open hotplugged device", "path", path, "error", err)
			return
		}
		s.startReader(ctx, dev)
		return
	}
}

// Errors returns per-device failures. It is nil before Start.
func (s *EvdevSource) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.q == nil {
		return nil
	}
	return s.q.errs
}

// Close stops all readers and waits for them to release their devices.
func (s *EvdevSource) Close() error {
	s.mu.Lock()
	if s.closed || !s.started {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	return nil
}
