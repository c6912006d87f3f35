package appfilter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"keyway/internal/metrics"
)

const (
	// DefaultCacheTTL bounds how often the focused window is queried.
	DefaultCacheTTL = 500 * time.Millisecond
	// DefaultWait is how long Suppress waits for a lookup to finish when
	// the cache is older than MaxStale.
	DefaultWait = 100 * time.Millisecond
	// DefaultMaxStale is the oldest verdict answered without waiting while
	// a refresh runs. Bursts of typing never wait; the first key after a
	// pause does.
	DefaultMaxStale = 2 * time.Second
	// DefaultQueryTimeout bounds a single inspector call.
	DefaultQueryTimeout = time.Second
)

// Options configures a Filter. Zero values select the defaults.
type Options struct {
	CacheTTL     time.Duration
	MaxStale     time.Duration
	Wait         time.Duration
	QueryTimeout time.Duration
	Logger       *slog.Logger
	Failures     *metrics.Counter
	Now          func() time.Time
}

// Filter suppresses output while a listed application has focus. Lookups
// run in the background and are cached. A stale but recent verdict is
// answered at once while the refresh runs; only an old one makes Suppress
// wait, and never longer than the configured wait. Any lookup failure means
// "do not suppress".
type Filter struct {
	inspector    Inspector
	cacheTTL     time.Duration
	maxStale     time.Duration
	wait         time.Duration
	queryTimeout time.Duration
	logger       *slog.Logger
	failures     *metrics.Counter
	now          func() time.Time

	mu         sync.Mutex
	window     Window
	valid      bool
	checkedAt  time.Time
	refreshing chan struct{}
	warned     bool
}

// New returns a filter backed by inspector. A nil inspector never
// suppresses.
func New(inspector Inspector, opts Options) *Filter {
	f := &Filter{
		inspector:    inspector,
		cacheTTL:     opts.CacheTTL,
		maxStale:     opts.MaxStale,
		wait:         opts.Wait,
		queryTimeout: opts.QueryTimeout,
		logger:       opts.Logger,
		failures:     opts.Failures,
		now:          opts.Now,
	}
	if f.cacheTTL <= 0 {
		f.cacheTTL = DefaultCacheTTL
	}
	if f.maxStale < f.cacheTTL {
		f.maxStale = max(DefaultMaxStale, f.cacheTTL)
	}
	if f.wait <= 0 {
		f.wait = DefaultWait
	}
	if f.queryTimeout <= 0 {
		f.queryTimeout = DefaultQueryTimeout
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f
}

// Suppress reports whether the focused window matches disabledApps.
func (f *Filter) Suppress(ctx context.Context, enabled bool, disabledApps []string) bool {
	if !enabled || len(disabledApps) == 0 {
		return false
	}
	if f.inspector == nil {
		f.warnOnce(ErrInspectorUnavailable)
		return false
	}

	w, ok := f.focused(ctx)
	if !ok {
		return false
	}
	return Match(w, disabledApps)
}

// Focused returns the cached focused window, refreshing it when stale.
func (f *Filter) Focused(ctx context.Context) (Window, bool) {
	if f.inspector == nil {
		return Window{}, false
	}
	return f.focused(ctx)
}

func (f *Filter) focused(ctx context.Context) (Window, bool) {
	f.mu.Lock()
	age := f.now().Sub(f.checkedAt)
	if !f.checkedAt.IsZero() && age < f.cacheTTL {
		w, ok := f.window, f.valid
		f.mu.Unlock()
		return w, ok
	}
	done := f.refreshing
	if done == nil {
		done = make(chan struct{})
		f.refreshing = done
		go f.refresh(done)
	}
	if !f.checkedAt.IsZero() && age < f.maxStale {
		w, ok := f.window, f.valid
		f.mu.Unlock()
		return w, ok
	}
	f.mu.Unlock()

	timer := time.NewTimer(f.wait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window, f.valid
}

func (f *Filter) refresh(done chan struct{}) {
	defer close(done)

	ctx, cancel := context.WithTimeout(context.Background(), f.queryTimeout)
	defer cancel()
	w, err := f.inspector.ActiveWindow(ctx)

	f.mu.Lock()
	f.refreshing = nil
	f.checkedAt = f.now()
	if err != nil {
		f.window, f.valid = Window{}, false
		f.mu.Unlock()
		if f.failures != nil {
			f.failures.Inc()
		}
		f.warnOnce(err)
		return
	}
	f.window, f.valid = w, true
	recovered := f.warned
	f.warned = false
	f.mu.Unlock()

	if recovered {
		f.logger.Info("window inspector recovered", "inspector", f.inspector.Name())
	}
}

func (f *Filter) warnOnce(err error) {
	f.mu.Lock()
	if f.warned {
		f.mu.Unlock()
		return
	}
	f.warned = true
	f.mu.Unlock()

	name := "none"
	if f.inspector != nil {
		name = f.inspector.Name()
	}
	f.logger.Warn("app filter enabled but the focused window cannot be determined; not suppressing",
		"inspector", name, "error", err)
}
