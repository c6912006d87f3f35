package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"keyway/internal/metrics"
)

// DefaultDebounce collapses the burst of events an editor produces when it
// saves a file.
const DefaultDebounce = 100 * time.Millisecond

type format string

const (
	formatTOML format = "toml"
	formatJSON format = "json"
	formatYAML format = "yaml"
	formatAuto format = ""
)

func formatFor(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatAuto
	}
}

func decodeAs(f format, data []byte, v any) error {
	switch f {
	case formatTOML:
		if _, err := toml.Decode(string(data), v); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case formatJSON:
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, v); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q", f)
	}
	return nil
}

// detectFormat attempts to parse data in each supported format, TOML first.
func detectFormat(data []byte) (format, map[string]any, error) {
	for _, f := range []format{formatTOML, formatJSON, formatYAML} {
		generic := map[string]any{}
		if err := decodeAs(f, data, &generic); err == nil {
			return f, generic, nil
		}
	}
	return formatAuto, nil, errors.New("unable to parse config file (tried TOML, JSON, YAML)")
}

// decodeFile reads, schema-checks and decodes a settings file. The result
// is not yet migrated.
func decodeFile(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	f := formatFor(path)
	var generic map[string]any
	if f == formatAuto {
		if f, generic, err = detectFormat(data); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		generic = map[string]any{}
		if err := decodeAs(f, data, &generic); err != nil {
			return nil, err
		}
	}

	if err := ValidateDocument(generic); err != nil {
		return nil, err
	}

	doc := newDocument()
	if err := decodeAs(f, data, doc); err != nil {
		return nil, err
	}
	if _, ok := generic["version"]; !ok {
		doc.Version = 0
	}
	return doc, nil
}

// Load reads settings from path. A missing file yields the defaults. Older
// layouts are migrated in memory, KEYWAY_* overrides are applied, and the
// result is validated; validation warnings do not fail the load.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = ConfigPath()
	}

	var s *Settings
	doc, err := decodeFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s = DefaultSettings()
	case err != nil:
		return nil, err
	default:
		doc.migrate()
		s = &doc.Settings
	}

	if err := s.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := checkValid(s); err != nil {
		return nil, err
	}
	return s, nil
}

func checkValid(s *Settings) error {
	var verrs ValidationErrors
	if err := s.Validate(); errors.As(err, &verrs) && verrs.HasErrors() {
		return fmt.Errorf("validation failed: %w", verrs.Errors())
	}
	return nil
}

// LoadOrCreate loads the settings from path, writing a default settings
// file first if none exists. The bool reports whether the file was created.
func LoadOrCreate(path string) (*Settings, bool, error) {
	if path == "" {
		path = ConfigPath()
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := SaveSettings(DefaultSettings(), path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		s, err := Load(path)
		return s, true, err
	}

	s, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return s, false, nil
}

// Encode renders s in the format named by ext (".toml", ".json", ".yaml"
// or ".yml"), TOML when ext is not recognized.
func Encode(s *Settings, ext string) ([]byte, error) {
	switch formatFor("settings" + ext) {
	case formatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case formatYAML:
		return yaml.Marshal(s)
	default:
		return encodeTOML(s)
	}
}

// SaveSettings writes s to path in the format given by its extension, TOML
// when the extension is not recognized.
func SaveSettings(s *Settings, path string) error {
	data, err := Encode(s, filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	// Write to a sibling and rename so a watching loader never reads a
	// partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func encodeTOML(s *Settings) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# keyway settings\n\n")
	if err := toml.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Loader handles settings loading, watching, and hot-reloading.
type Loader struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	settings  *Settings
	onChange  []func(*Settings)
	overrides []func(*Settings)
	lastErr   error

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	errChan chan error
	wg      sync.WaitGroup

	reloads  *metrics.Counter
	failures *metrics.Counter
}

// NewLoader creates a loader for path, or ConfigPath when empty.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:     path,
		debounce: DefaultDebounce,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		errChan:  make(chan error, 1),
	}
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Instrument attaches reload counters. Either may be nil.
func (l *Loader) Instrument(reloads, failures *metrics.Counter) {
	l.reloads = reloads
	l.failures = failures
}

// Override registers fn to run on every loaded settings value, after
// environment overrides. Command-line flags use it so that they survive
// reloads.
func (l *Loader) Override(fn func(*Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides = append(l.overrides, fn)
}

func (l *Loader) load() (*Settings, error) {
	s, err := Load(l.path)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	overrides := l.overrides
	l.mu.RUnlock()
	if len(overrides) == 0 {
		return s, nil
	}
	for _, fn := range overrides {
		fn(s)
	}
	if err := checkValid(s); err != nil {
		return nil, fmt.Errorf("overrides: %w", err)
	}
	return s, nil
}

// Load reads and validates the settings file and makes the result current.
func (l *Loader) Load() (*Settings, error) {
	s, err := l.load()
	if err != nil {
		return nil, err
	}
	l.warn(s)

	l.mu.Lock()
	l.settings = s
	l.mu.Unlock()
	return s, nil
}

// Settings returns the current settings.
func (l *Loader) Settings() *Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}

// LastError returns the error of the most recent reload, or nil once a
// reload has succeeded again.
func (l *Loader) LastError() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// OnChange registers a callback invoked with each successfully reloaded
// settings value.
func (l *Loader) OnChange(cb func(*Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Bind publishes a snapshot of every reload to store.
func (l *Loader) Bind(store *Store) {
	l.OnChange(func(s *Settings) {
		snap, err := s.Snapshot()
		if err != nil {
			l.logger.Warn("settings partially applied", "error", err)
		}
		store.Publish(snap)
	})
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Watch starts watching the settings file. The containing directory is
// watched so that editors which replace the file are followed.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		watcher.Close()
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	l.watcher = watcher

	l.wg.Add(1)
	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	defer l.wg.Done()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(l.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(l.debounce, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

// reload replaces the current settings if the file still validates;
// otherwise the previous settings stay in effect.
func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}

	s, err := l.load()
	if err != nil {
		err = fmt.Errorf("reload config: %w", err)
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		if l.failures != nil {
			l.failures.Inc()
		}
		l.report(err)
		return
	}
	l.warn(s)

	l.mu.Lock()
	l.settings = s
	l.lastErr = nil
	callbacks := append([]func(*Settings){}, l.onChange...)
	l.mu.Unlock()

	if l.reloads != nil {
		l.reloads.Inc()
	}
	l.logger.Info("settings reloaded", "path", l.path)
	for _, cb := range callbacks {
		cb(s)
	}
}

func (l *Loader) warn(s *Settings) {
	var verrs ValidationErrors
	if errors.As(s.Validate(), &verrs) {
		for _, w := range verrs.Warnings() {
			l.logger.Warn("settings warning", "field", w.Field, "message", w.Message)
		}
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errChan <- err:
	default:
		l.logger.Error("config error", "error", err)
	}
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.cancel()
	var err error
	if l.watcher != nil {
		err = l.watcher.Close()
	}
	l.wg.Wait()
	return err
}
