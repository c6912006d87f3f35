// Package engine owns the visualizer state: held modifiers, the chord
// aggregator, the pause switch, the app-filter verdict and the overlay
// items. An Engine is driven by a single goroutine (see Loop) and needs no
// locking.
package engine

import (
	"context"
	"log/slog"
	"time"

	"keyway/internal/chord"
	"keyway/internal/config"
	"keyway/internal/input"
	"keyway/internal/metrics"
	"keyway/internal/overlay"
)

// Suppressor decides whether output is suppressed for the focused
// application. *appfilter.Filter implements it.
type Suppressor interface {
	Suppress(ctx context.Context, enabled bool, disabledApps []string) bool
}

// Options are the collaborators of an Engine. All are optional.
type Options struct {
	Logger      *slog.Logger
	Diagnostics *metrics.Diagnostics
	Filter      Suppressor

	// OnPause is called after every pause state change.
	OnPause func(PauseState)
}

// Engine processes normalized input and timer ticks into overlay items.
type Engine struct {
	cfg *config.Snapshot

	tracker    *ModifierTracker
	agg        *Aggregator
	pause      *PauseController
	items      *overlay.Manager
	normalizer *input.Normalizer
	filter     Suppressor

	logger *slog.Logger
	diag   *metrics.Diagnostics

	suppressed bool
	last       time.Time
	dirty      bool

	lastChord    chord.Chord
	lastAt       time.Time
	lastCoalesce time.Duration
}

// New returns an engine configured by cfg.
func New(cfg *config.Snapshot, opts Options) *Engine {
	if cfg == nil {
		cfg = config.DefaultSnapshot()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		tracker: NewModifierTracker(),
		agg:     NewAggregator(),
		pause:   NewPauseController(cfg.PauseHotkey),
		items:   overlay.NewManager(cfg.TTL, cfg.MaxItems),
		filter:  opts.Filter,
		logger:  logger,
		diag:    opts.Diagnostics,
		dirty:   true,
	}

	var unmapped *metrics.Counter
	if d := opts.Diagnostics; d != nil {
		unmapped = d.UnmappedCodesTotal
		e.items.Instrument(d.ItemsEvictedTotal, d.ItemsExpiredTotal, d.VisibleItems)
	}
	e.normalizer = input.NewNormalizer(logger, unmapped)

	e.pause.OnChange(func(s PauseState) {
		e.logger.Info("capture state changed", "state", s.String())
		if e.diag != nil {
			e.diag.PauseTogglesTotal.Inc()
			e.diag.Paused.SetBool(s == Paused)
		}
		if opts.OnPause != nil {
			opts.OnPause(s)
		}
	})
	return e
}

// Config returns the snapshot in effect.
func (e *Engine) Config() *config.Snapshot { return e.cfg }

// Apply swaps in a new snapshot. A grace window already open completes with
// the durations it started with; the item list is trimmed to the new limit.
func (e *Engine) Apply(cfg *config.Snapshot) {
	if cfg == nil || cfg == e.cfg {
		return
	}
	e.cfg = cfg
	e.pause.SetHotkey(cfg.PauseHotkey)
	if e.items.SetLimits(cfg.TTL, cfg.MaxItems) > 0 {
		e.dirty = true
	}
	if !cfg.AppFilterEnabled && e.suppressed {
		e.suppressed = false
		e.setSuppressedGauge()
	}
	e.dirty = true
}

// HandleRaw normalizes raw and handles it. Unmapped codes are dropped.
func (e *Engine) HandleRaw(ctx context.Context, raw input.RawEvent, now time.Time) {
	ev, ok := e.normalizer.Normalize(raw, raw.Caps)
	if !ok {
		return
	}
	e.HandleEvent(ctx, ev, now)
}

// HandleEvent processes one normalized event at now. Timers due at or before
// now fire first, so a grace deadline never lands after an event that
// physically followed it.
func (e *Engine) HandleEvent(ctx context.Context, ev input.Event, now time.Time) {
	now = e.clock(now)
	e.fire(ctx, now)

	switch ev.Kind {
	case input.KeyDown:
		if m, ok := ev.Key.Modifier(); ok {
			e.tracker.Press(ev.Key)
			e.agg.ModifierDown(m)
			return
		}
		acts := e.agg.KeyDown(ev.Key, e.tracker.Snapshot(), ev.Repeat, now, e.cfg.ModifierGrace, e.cfg.RepeatCoalesce)
		e.apply(ctx, acts)

	case input.KeyUp:
		if m, ok := ev.Key.Modifier(); ok {
			e.tracker.Release(ev.Key)
			// The other physical key for the same modifier may still be
			// down.
			if !e.tracker.Snapshot().Has(m) {
				e.agg.ModifierUp(m)
			}
			return
		}
		e.agg.KeyUp(ev.Key)

	case input.ButtonDown:
		if !e.cfg.ShowMouse {
			return
		}
		c := chord.Chord{Mods: e.tracker.Snapshot(), Buttons: chord.ButtonSet(0).With(ev.Button)}
		e.apply(ctx, []Action{{Kind: Emit, Chord: c, At: now}})
	}
}

// Advance fires due timers and expires items.
func (e *Engine) Advance(ctx context.Context, now time.Time) {
	e.fire(ctx, e.clock(now))
}

// Deadline returns the next instant at which Advance has work to do: a grace
// window closing or an item expiring.
func (e *Engine) Deadline() (time.Time, bool) {
	grace, hasGrace := e.agg.Deadline()
	expiry, hasExpiry := e.items.NextExpiry()
	switch {
	case hasGrace && hasExpiry:
		if grace.Before(expiry) {
			return grace, true
		}
		return expiry, true
	case hasGrace:
		return grace, true
	default:
		return expiry, hasExpiry
	}
}

// GraceDeadline returns the pending grace deadline only.
func (e *Engine) GraceDeadline() (time.Time, bool) {
	return e.agg.Deadline()
}

func (e *Engine) fire(ctx context.Context, now time.Time) {
	if acts := e.agg.Expire(now); len(acts) > 0 {
		e.apply(ctx, acts)
	}
	if e.items.Tick(now) > 0 {
		e.dirty = true
	}
}

// clock keeps engine time monotonic across sources with slightly different
// clocks.
func (e *Engine) clock(now time.Time) time.Time {
	if now.Before(e.last) {
		return e.last
	}
	e.last = now
	return now
}

func (e *Engine) apply(ctx context.Context, acts []Action) {
	for _, act := range acts {
		e.route(ctx, act)
	}
}

// route passes a chord through the pause switch and the app filter to the
// overlay. A pause hotkey produced by auto-repeat is swallowed without
// toggling.
func (e *Engine) route(ctx context.Context, act Action) {
	c := act.Chord
	if !c.Complete() {
		return
	}

	if c == e.pause.Hotkey() {
		// Auto-repeat of a held hotkey must not flap the state.
		if act.Kind == Emit && !act.Repeat {
			e.pause.Check(c)
			e.dirty = true
		}
		return
	}

	if e.pause.Paused() {
		e.countSuppressed()
		return
	}

	if e.filter != nil && e.cfg.AppFilterEnabled {
		suppress := e.filter.Suppress(ctx, true, e.cfg.DisabledApps)
		if suppress != e.suppressed {
			e.suppressed = suppress
			e.setSuppressedGauge()
			e.dirty = true
			if suppress && e.items.Clear() > 0 {
				e.logger.Debug("focused application filtered, overlay cleared")
			}
		}
		if suppress {
			e.countSuppressed()
			return
		}
	}

	label := c.Label()
	kind := c.Kind()

	// The coalesce window of the previous chord keeps the duration it was
	// opened with across a settings swap.
	refresh := act.Kind == Refresh ||
		(c == e.lastChord && act.At.Sub(e.lastAt) <= e.lastCoalesce)
	e.lastChord, e.lastAt, e.lastCoalesce = c, act.At, e.cfg.RepeatCoalesce

	if refresh && e.items.Refresh(label, kind, act.At) {
		if e.diag != nil {
			e.diag.RefreshesTotal.Inc()
		}
		e.dirty = true
		return
	}

	e.items.Insert(label, kind, act.At)
	if e.diag != nil {
		e.diag.ChordsTotal.Inc()
	}
	e.logger.Debug("chord", "chord", c.String())
	e.dirty = true
}

func (e *Engine) countSuppressed() {
	if e.diag != nil {
		e.diag.SuppressedTotal.Inc()
	}
}

func (e *Engine) setSuppressedGauge() {
	if e.diag != nil {
		e.diag.Suppressed.SetBool(e.suppressed)
	}
}

// TogglePause flips capture from outside the key stream, e.g. a tray menu.
func (e *Engine) TogglePause() {
	e.pause.Toggle()
	e.dirty = true
}

// PauseState returns the current pause state.
func (e *Engine) PauseState() PauseState { return e.pause.State() }

// Modifiers returns the held modifier set.
func (e *Engine) Modifiers() chord.ModifierSet { return e.tracker.Snapshot() }

// AggregatorState returns the aggregator state.
func (e *Engine) AggregatorState() AggState { return e.agg.State() }

// Items returns a copy of the visible items, newest first.
func (e *Engine) Items() []overlay.Item { return e.items.Items() }

// Frame returns the current renderer input.
func (e *Engine) Frame(now time.Time) overlay.Frame {
	return overlay.Frame{
		Items:      e.items.Items(),
		Paused:     e.pause.Paused(),
		Suppressed: e.suppressed,
		Layout:     e.cfg.Layout,
		At:         now,
	}
}

// TakeDirty reports whether the frame changed since the last call and
// clears the flag.
func (e *Engine) TakeDirty() bool {
	d := e.dirty
	e.dirty = false
	return d
}

// Reset drops held keys, any partial chord and all items. Used on shutdown
// and when every device has gone away.
func (e *Engine) Reset() {
	e.tracker.Reset()
	e.agg.Reset()
	if e.items.Clear() > 0 {
		e.dirty = true
	}
}
