package input

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"keyway/internal/logging"
	"keyway/internal/metrics"
)

var (
	// ErrNoDevices is returned by Start when no keyboard or pointer device
	// could be opened.
	ErrNoDevices = errors.New("no readable input devices")

	// ErrNotSupported is returned on platforms without evdev.
	ErrNotSupported = errors.New("evdev input is only available on linux")

	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("input source already started")
)

// DeviceError reports a failure on a single device. It is fatal to that
// device's reader only.
type DeviceError struct {
	Path string
	Op   string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Source produces raw input transitions. The events channel is closed once
// every reader has stopped.
type Source interface {
	Start(ctx context.Context) (<-chan RawEvent, error)
	Errors() <-chan error
	Close() error
}

// DefaultQueueSize is the capacity of the event channel shared by all
// device readers.
const DefaultQueueSize = 256

// queue is the bounded fan-in channel. Producers never block: a full queue
// drops the event.
type queue struct {
	events  chan RawEvent
	errs    chan error
	logger  *slog.Logger
	dropped *metrics.Counter
}

func newQueue(size int, logger *slog.Logger, dropped *metrics.Counter) *queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &queue{
		events:  make(chan RawEvent, size),
		errs:    make(chan error, 16),
		logger:  logger,
		dropped: dropped,
	}
}

func (q *queue) push(ev RawEvent) bool {
	select {
	case q.events <- ev:
		return true
	default:
		q.logger.Warn("event queue full, dropping event", "device", string(ev.Device))
		if q.dropped != nil {
			q.dropped.Inc()
		}
		return false
	}
}

func (q *queue) report(err error) {
	select {
	case q.errs <- err:
	default:
		q.logger.Error("input error dropped", "error", err)
	}
}

// StreamSource decodes raw input_event records from a reader, such as a
// recording of /dev/input/eventN. Events are delivered as fast as the reader
// yields them unless Pace is set.
type StreamSource struct {
	// Pace replays recorded gaps between events and restamps each event
	// with the time it is delivered.
	Pace bool

	r      io.Reader
	dev    DeviceID
	caps   DeviceCaps
	q      *queue
	logger *slog.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	closer  io.Closer
}

// NewStreamSource returns a Source over r. If r is an io.Closer it is closed
// by Close.
func NewStreamSource(r io.Reader, dev DeviceID, caps DeviceCaps, logger *slog.Logger) *StreamSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &StreamSource{
		r:      r,
		dev:    dev,
		caps:   caps,
		logger: logger,
		done:   make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// Start begins decoding. Unlike device readers, a stream source blocks on a
// full queue so that no recorded event is lost.
func (s *StreamSource) Start(ctx context.Context) (<-chan RawEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, ErrAlreadyStarted
	}
	s.started = true
	s.q = newQueue(DefaultQueueSize, s.logger, nil)

	go func() {
		defer close(s.done)
		defer close(s.q.events)
		defer logging.Recover(s.logger, "stream source", s.q.report)

		buf := make([]byte, eventSize)
		var prev time.Time
		for {
			if _, err := io.ReadFull(s.r, buf); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					s.q.report(&DeviceError{Path: string(s.dev), Op: "read", Err: err})
				}
				return
			}
			ev, ok := decodeEvent(buf, s.dev, s.caps)
			if !ok {
				continue
			}
			if s.Pace {
				if !prev.IsZero() && ev.Time.After(prev) {
					select {
					case <-time.After(ev.Time.Sub(prev)):
					case <-ctx.Done():
						return
					}
				}
				prev = ev.Time
				ev.Time = time.Now()
			}
			select {
			case s.q.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s.q.events, nil
}

// Errors returns read failures. It is nil before Start.
func (s *StreamSource) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.q == nil {
		return nil
	}
	return s.q.errs
}

// Close closes the underlying reader, if closable, and waits for the
// decoder goroutine when it was started.
func (s *StreamSource) Close() error {
	var err error
	if s.closer != nil {
		err = s.closer.Close()
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
	return err
}
