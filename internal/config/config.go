// Package config handles settings loading, validation and live reload for
// keyway.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"keyway/internal/chord"
	"keyway/internal/logging"
	"keyway/internal/overlay"
)

// Version is the current settings schema version. Files without a version
// use the flat layout keys written by the first releases.
const Version = 1

// Settings is the on-disk configuration.
type Settings struct {
	// Version is the settings schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// TTLMs is how long an item stays on screen.
	TTLMs int `toml:"ttl_ms" json:"ttl_ms" yaml:"ttl_ms"`

	// MaxItems is the number of items shown at once.
	MaxItems int `toml:"max_items" json:"max_items" yaml:"max_items"`

	// RepeatCoalesceMs merges a repeated chord into its item within this window.
	RepeatCoalesceMs int `toml:"repeat_coalesce_ms" json:"repeat_coalesce_ms" yaml:"repeat_coalesce_ms"`

	// ModifierGraceMs is how long a main key waits for late modifiers.
	ModifierGraceMs int `toml:"modifier_grace_ms" json:"modifier_grace_ms" yaml:"modifier_grace_ms"`

	// PauseHotkey toggles capture, e.g. "Ctrl+Shift+P".
	PauseHotkey string `toml:"pause_hotkey" json:"pause_hotkey" yaml:"pause_hotkey"`

	ShowMouse bool `toml:"show_mouse" json:"show_mouse" yaml:"show_mouse"`

	// AppFilterEnabled hides the overlay while a listed application has focus.
	AppFilterEnabled bool `toml:"app_filter_enabled" json:"app_filter_enabled" yaml:"app_filter_enabled"`

	// DisabledApps are matched case-insensitively as substrings of the
	// focused window's class or title.
	DisabledApps []string `toml:"disabled_apps" json:"disabled_apps" yaml:"disabled_apps"`

	Layout  LayoutSettings  `toml:"layout" json:"layout" yaml:"layout"`
	Logging LoggingSettings `toml:"logging" json:"logging" yaml:"logging"`
}

// LayoutSettings are consumed by the renderer only.
type LayoutSettings struct {
	// Position is one of bottom-right, bottom-center, bottom-left,
	// top-right, top-center, top-left, center, custom.
	Position string `toml:"position" json:"position" yaml:"position"`

	Margin int `toml:"margin" json:"margin" yaml:"margin"`

	// CustomX and CustomY are used when Position is custom.
	CustomX int `toml:"custom_x" json:"custom_x" yaml:"custom_x"`
	CustomY int `toml:"custom_y" json:"custom_y" yaml:"custom_y"`

	DragEnabled bool `toml:"drag_enabled" json:"drag_enabled" yaml:"drag_enabled"`
}

// LoggingSettings holds logging configuration.
type LoggingSettings struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stdout, stderr, file or both.
	Output string `toml:"output" json:"output" yaml:"output"`

	FilePath   string `toml:"file_path" json:"file_path" yaml:"file_path"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultSettings returns settings with the shipped defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Version:          Version,
		TTLMs:            900,
		MaxItems:         5,
		RepeatCoalesceMs: 200,
		ModifierGraceMs:  120,
		PauseHotkey:      DefaultPauseHotkey,
		ShowMouse:        true,
		AppFilterEnabled: false,
		DisabledApps:     []string{},
		Layout: LayoutSettings{
			Position: overlay.BottomRight.String(),
			Margin:   40,
			CustomX:  40,
			CustomY:  40,
		},
		Logging: LoggingSettings{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   logging.DefaultLogPath(),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
	}
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	clone := *s
	clone.DisabledApps = append([]string{}, s.DisabledApps...)
	return &clone
}

// Validate checks the settings for errors.
func (s *Settings) Validate() error {
	return ValidateSettings(s)
}

// Snapshot converts the settings into the immutable form read by the event
// loop. A malformed pause hotkey or position does not fail the conversion:
// the default is used and the problem is returned alongside the snapshot.
func (s *Settings) Snapshot() (*Snapshot, error) {
	var warns []error

	hotkey, err := chord.Parse(s.PauseHotkey)
	if err != nil {
		warns = append(warns, fmt.Errorf("pause_hotkey: %w (using %s)", err, DefaultPauseHotkey))
		hotkey = chord.MustParse(DefaultPauseHotkey)
	}

	pos, err := overlay.ParsePosition(s.Layout.Position)
	if err != nil {
		warns = append(warns, fmt.Errorf("layout.position: %w (using %s)", err, overlay.BottomRight))
		pos = overlay.BottomRight
	}

	apps := make([]string, 0, len(s.DisabledApps))
	for _, app := range s.DisabledApps {
		if app = strings.TrimSpace(app); app != "" {
			apps = append(apps, app)
		}
	}

	snap := &Snapshot{
		TTL:              ms(s.TTLMs),
		MaxItems:         max(s.MaxItems, 1),
		RepeatCoalesce:   ms(s.RepeatCoalesceMs),
		ModifierGrace:    ms(s.ModifierGraceMs),
		PauseHotkey:      hotkey,
		ShowMouse:        s.ShowMouse,
		AppFilterEnabled: s.AppFilterEnabled,
		DisabledApps:     apps,
		Layout: overlay.Layout{
			Position:    pos,
			Margin:      s.Layout.Margin,
			CustomX:     s.Layout.CustomX,
			CustomY:     s.Layout.CustomY,
			DragEnabled: s.Layout.DragEnabled,
		},
	}
	return snap, errors.Join(warns...)
}

// LoggingConfig converts the [logging] section for logging.New. Invalid
// values keep the logging defaults.
func (s *Settings) LoggingConfig() *logging.Config {
	cfg := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(s.Logging.Level); err == nil {
		cfg.Level = lvl
	}
	if f, err := logging.ParseFormat(s.Logging.Format); err == nil {
		cfg.Format = f
	}
	if s.Logging.Output != "" {
		cfg.Output = s.Logging.Output
	}
	if s.Logging.FilePath != "" {
		cfg.FilePath = s.Logging.FilePath
	}
	if s.Logging.MaxSizeMB > 0 {
		cfg.MaxSize = int64(s.Logging.MaxSizeMB)
	}
	cfg.MaxBackups = s.Logging.MaxBackups
	cfg.MaxAge = s.Logging.MaxAgeDays
	cfg.Compress = s.Logging.Compress
	return cfg
}

// ApplyEnvOverrides applies KEYWAY_* environment variables. Values that do
// not parse are skipped and reported.
func (s *Settings) ApplyEnvOverrides() error {
	var errs []error

	intVar := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	boolVar := func(name string, dst *bool) {
		if v := os.Getenv(name); v != "" {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}

	intVar("KEYWAY_TTL_MS", &s.TTLMs)
	intVar("KEYWAY_MAX_ITEMS", &s.MaxItems)
	intVar("KEYWAY_REPEAT_COALESCE_MS", &s.RepeatCoalesceMs)
	intVar("KEYWAY_MODIFIER_GRACE_MS", &s.ModifierGraceMs)
	boolVar("KEYWAY_SHOW_MOUSE", &s.ShowMouse)
	boolVar("KEYWAY_APP_FILTER_ENABLED", &s.AppFilterEnabled)

	if v := os.Getenv("KEYWAY_PAUSE_HOTKEY"); v != "" {
		s.PauseHotkey = v
	}
	if v := os.Getenv("KEYWAY_DISABLED_APPS"); v != "" {
		s.DisabledApps = SplitList(v)
	}
	if v := os.Getenv("KEYWAY_POSITION"); v != "" {
		s.Layout.Position = v
	}
	if v := os.Getenv("KEYWAY_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
	if v := os.Getenv("KEYWAY_LOG_FORMAT"); v != "" {
		s.Logging.Format = v
	}
	if v := os.Getenv("KEYWAY_LOG_PATH"); v != "" {
		s.Logging.FilePath = v
	}

	return errors.Join(errs...)
}

// SplitList splits a comma-separated list, dropping blank entries.
func SplitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ms(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}
