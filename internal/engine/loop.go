package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"keyway/internal/config"
	"keyway/internal/input"
	"keyway/internal/metrics"
	"keyway/internal/overlay"
)

// ErrInputClosed is returned by Run when the event channel closes.
var ErrInputClosed = errors.New("input source closed")

// LoopOptions configure a Loop.
type LoopOptions struct {
	// Now overrides the wall clock.
	Now func() time.Time

	// FlushOnClose finalizes a pending chord when the input closes, for
	// finite sources such as recordings.
	FlushOnClose bool

	Logger      *slog.Logger
	Diagnostics *metrics.Diagnostics
}

// Loop is the single goroutine that owns an Engine. It serializes input
// events, the engine's timers and config swaps. The loop sleeps until the
// next grace deadline or item expiry and does not wake while idle.
type Loop struct {
	engine   *Engine
	events   <-chan input.RawEvent
	store    *config.Store
	renderer overlay.Renderer
	opts     LoopOptions

	toggle chan struct{}

	pending         *input.RawEvent
	renderErrLogged bool
}

// NewLoop wires an engine to its event source, config store and renderer.
// renderer may be nil.
func NewLoop(e *Engine, events <-chan input.RawEvent, store *config.Store, renderer overlay.Renderer, opts LoopOptions) *Loop {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loop{
		engine:   e,
		events:   events,
		store:    store,
		renderer: renderer,
		opts:     opts,
		toggle:   make(chan struct{}, 1),
	}
}

// TogglePause flips the capture state from outside the loop goroutine, e.g.
// from a signal handler or tray menu. Toggles requested faster than the
// loop runs collapse into one.
func (l *Loop) TogglePause() {
	select {
	case l.toggle <- struct{}{}:
	default:
	}
}

// Run processes until ctx is done or the input closes. Shutdown drops any
// partial chord without displaying it.
func (l *Loop) Run(ctx context.Context) error {
	wake := time.NewTimer(time.Hour)
	wake.Stop()
	defer wake.Stop()

	var changed <-chan struct{}
	if l.store != nil {
		changed = l.store.Changed()
	}

	l.render()
	for {
		l.syncConfig()

		if l.pending != nil {
			raw := *l.pending
			l.pending = nil
			l.handle(ctx, raw)
			l.render()
			continue
		}

		if d, ok := l.engine.Deadline(); ok {
			wake.Reset(max(d.Sub(l.opts.Now()), 0))
		} else {
			wake.Stop()
		}

		select {
		case <-ctx.Done():
			l.engine.Reset()
			return nil

		case raw, ok := <-l.events:
			if !ok {
				return l.closed(ctx)
			}
			l.handle(ctx, raw)

		case <-wake.C:
			l.expire(ctx)

		case <-l.toggle:
			l.engine.TogglePause()

		case <-changed:
		}

		l.render()
	}
}

// expire fires the engine's due timers. A due grace deadline first takes in
// queued events stamped at or before it.
func (l *Loop) expire(ctx context.Context) {
	now := l.opts.Now()
	if d, ok := l.engine.GraceDeadline(); ok && !d.After(now) {
		l.drainBefore(ctx, d)
	}
	l.engine.Advance(ctx, now)
}

// drainBefore handles queued events stamped at or before deadline so the
// grace timer never fires ahead of input that physically preceded it. The
// first later event is held back for the next iteration.
func (l *Loop) drainBefore(ctx context.Context, deadline time.Time) {
	for {
		select {
		case raw, ok := <-l.events:
			if !ok {
				return
			}
			if raw.Time.IsZero() || raw.Time.After(deadline) {
				l.pending = &raw
				return
			}
			l.handle(ctx, raw)
		default:
			return
		}
	}
}

func (l *Loop) handle(ctx context.Context, raw input.RawEvent) {
	now := l.opts.Now()
	at := now
	if !raw.Time.IsZero() && raw.Time.Before(now) {
		at = raw.Time
		if d := l.opts.Diagnostics; d != nil {
			d.EventLatency.ObserveDuration(now.Sub(raw.Time))
		}
	}
	l.engine.HandleRaw(ctx, raw, at)
}

func (l *Loop) closed(ctx context.Context) error {
	if l.opts.FlushOnClose {
		if d, ok := l.engine.GraceDeadline(); ok {
			l.engine.Advance(ctx, d)
			l.render()
		}
	}
	return ErrInputClosed
}

func (l *Loop) syncConfig() {
	if l.store == nil {
		return
	}
	if snap := l.store.Load(); snap != l.engine.Config() {
		l.engine.Apply(snap)
		l.opts.Logger.Debug("settings applied", "ttl", snap.TTL, "max_items", snap.MaxItems)
	}
}

func (l *Loop) render() {
	if !l.engine.TakeDirty() || l.renderer == nil {
		return
	}
	if err := l.renderer.Render(l.engine.Frame(l.opts.Now())); err != nil {
		if !l.renderErrLogged {
			l.opts.Logger.Warn("render failed", "error", err)
			l.renderErrLogged = true
		}
		return
	}
	l.renderErrLogged = false
}
