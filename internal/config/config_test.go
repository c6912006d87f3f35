package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyway/internal/chord"
	"keyway/internal/metrics"
	"keyway/internal/overlay"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, Version, s.Version)
	assert.Equal(t, 900, s.TTLMs)
	assert.Equal(t, 5, s.MaxItems)
	assert.Equal(t, 200, s.RepeatCoalesceMs)
	assert.Equal(t, 120, s.ModifierGraceMs)
	assert.Equal(t, "Ctrl+Shift+P", s.PauseHotkey)
	assert.True(t, s.ShowMouse)
	assert.False(t, s.AppFilterEnabled)
	assert.Empty(t, s.DisabledApps)
	assert.Equal(t, "bottom-right", s.Layout.Position)
	assert.Equal(t, 40, s.Layout.Margin)
	assert.NoError(t, s.Validate())
}

func TestDefaultSnapshot(t *testing.T) {
	snap := DefaultSnapshot()

	assert.Equal(t, 900*time.Millisecond, snap.TTL)
	assert.Equal(t, 5, snap.MaxItems)
	assert.Equal(t, 200*time.Millisecond, snap.RepeatCoalesce)
	assert.Equal(t, 120*time.Millisecond, snap.ModifierGrace)
	assert.Equal(t, chord.MustParse("Ctrl+Shift+P"), snap.PauseHotkey)
	assert.Equal(t, overlay.BottomRight, snap.Layout.Position)
	assert.Equal(t, 40, snap.Layout.Margin)
}

func TestSnapshotFallsBackOnBadHotkey(t *testing.T) {
	s := DefaultSettings()
	s.PauseHotkey = "Ctrl+Hyper+P"
	s.DisabledApps = []string{" firefox ", "", "  "}

	snap, err := s.Snapshot()
	require.Error(t, err)
	assert.ErrorIs(t, err, chord.ErrUnknownToken)
	assert.Contains(t, err.Error(), "pause_hotkey")
	assert.Equal(t, chord.MustParse(DefaultPauseHotkey), snap.PauseHotkey)
	assert.Equal(t, []string{"firefox"}, snap.DisabledApps)
}

func TestCloneIsDeep(t *testing.T) {
	s := DefaultSettings()
	s.DisabledApps = []string{"a"}
	c := s.Clone()
	c.DisabledApps[0] = "b"
	assert.Equal(t, "a", s.DisabledApps[0])
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `version = 1
ttl_ms = 1500
max_items = 3
pause_hotkey = "Super+F12"
disabled_apps = ["KeePassXC"]

[layout]
position = "top-left"
margin = 12
`,
		},
		{
			name: "json",
			file: "config.json",
			content: `{"version": 1, "ttl_ms": 1500, "max_items": 3, "pause_hotkey": "Super+F12",
 "disabled_apps": ["KeePassXC"], "layout": {"position": "top-left", "margin": 12}}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `version: 1
ttl_ms: 1500
max_items: 3
pause_hotkey: Super+F12
disabled_apps: [KeePassXC]
layout:
  position: top-left
  margin: 12
`,
		},
		{
			name:    "auto-detected json",
			file:    "keyway.conf",
			content: `{"version": 1, "ttl_ms": 1500, "max_items": 3, "pause_hotkey": "Super+F12", "disabled_apps": ["KeePassXC"], "layout": {"position": "top-left", "margin": 12}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			writeFile(t, path, tt.content)

			s, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, 1500, s.TTLMs)
			assert.Equal(t, 3, s.MaxItems)
			assert.Equal(t, "Super+F12", s.PauseHotkey)
			assert.Equal(t, []string{"KeePassXC"}, s.DisabledApps)
			assert.Equal(t, "top-left", s.Layout.Position)
			assert.Equal(t, 12, s.Layout.Margin)
			assert.Equal(t, 40, s.Layout.CustomX, "unset keys keep defaults")
			assert.Equal(t, 120, s.ModifierGraceMs, "unset keys keep defaults")
		})
	}
}

func TestLoadMigratesFlatLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `position = "custom"
margin = 8
custom_x = 300
custom_y = 200
drag_enabled = true
ttl_ms = 700
`)

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Version, s.Version)
	assert.Equal(t, "custom", s.Layout.Position)
	assert.Equal(t, 8, s.Layout.Margin)
	assert.Equal(t, 300, s.Layout.CustomX)
	assert.Equal(t, 200, s.Layout.CustomY)
	assert.True(t, s.Layout.DragEnabled)
	assert.Equal(t, 700, s.TTLMs)
}

func TestMigrateFileRewritesWithBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "position = \"top-center\"\nmax_items = 4\n")

	result, err := MigrateFile(path)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.FromVersion)
	assert.Equal(t, Version, result.ToVersion)
	assert.Contains(t, result.Changes, "moved position to layout.position")
	assert.FileExists(t, result.Backup)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[layout]")

	again, err := MigrateFile(path)
	require.NoError(t, err)
	assert.Nil(t, again, "current files are left alone")
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "version = 1\nmax_items = 0\n\n[logging]\nlevel = \"loud\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_items")
}

func TestValidateSettings(t *testing.T) {
	s := DefaultSettings()
	s.TTLMs = 50
	s.Layout.Position = "left"
	s.Logging.Output = "file"
	s.Logging.FilePath = ""

	err := s.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))
	var fields []string
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"ttl_ms", "layout.position", "logging.file_path"}, fields)
}

func TestValidationWarningsDoNotFailLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "version = 1\napp_filter_enabled = true\npause_hotkey = \"Ctrl+Nope\"\n")

	s, err := Load(path)
	require.NoError(t, err)

	var verrs ValidationErrors
	require.True(t, errors.As(s.Validate(), &verrs))
	assert.False(t, verrs.HasErrors())
	assert.Len(t, verrs.Warnings(), 2)
	assert.False(t, errors.Is(verrs, ErrInvalidConfig))
}

func TestSchemaRejectsWrongTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "ttl_ms: fast\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestValidateDocument(t *testing.T) {
	assert.NoError(t, ValidateDocument(map[string]any{"max_items": int64(4), "layout": map[string]any{"position": "Top_Right"}}))
	assert.Error(t, ValidateDocument(map[string]any{"max_items": 99}))
	assert.Error(t, ValidateDocument(map[string]any{"layout": map[string]any{"position": "sideways"}}))
	assert.Error(t, ValidateDocument(map[string]any{"logging": map[string]any{"format": "xml"}}))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEYWAY_TTL_MS", "1500")
	t.Setenv("KEYWAY_SHOW_MOUSE", "false")
	t.Setenv("KEYWAY_DISABLED_APPS", "KeePassXC, 1password,,")
	t.Setenv("KEYWAY_PAUSE_HOTKEY", "Super+Esc")
	t.Setenv("KEYWAY_LOG_LEVEL", "debug")

	s, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 1500, s.TTLMs)
	assert.False(t, s.ShowMouse)
	assert.Equal(t, []string{"KeePassXC", "1password"}, s.DisabledApps)
	assert.Equal(t, "Super+Esc", s.PauseHotkey)
	assert.Equal(t, "debug", s.Logging.Level)
}

func TestEnvOverridesReportBadValues(t *testing.T) {
	t.Setenv("KEYWAY_MAX_ITEMS", "many")

	s := DefaultSettings()
	err := s.ApplyEnvOverrides()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEYWAY_MAX_ITEMS")
	assert.Equal(t, 5, s.MaxItems)
}

func TestLoggingConfig(t *testing.T) {
	s := DefaultSettings()
	s.Logging.Level = "warn"
	s.Logging.Format = "json"
	s.Logging.MaxSizeMB = 2

	cfg := s.LoggingConfig()
	assert.Equal(t, slog.LevelWarn, cfg.Level)
	assert.Equal(t, int64(2), cfg.MaxSize)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestSaveAndLoad(t *testing.T) {
	for _, ext := range []string{"toml", "json", "yaml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", "config."+ext)
			want := DefaultSettings()
			want.MaxItems = 9
			want.DisabledApps = []string{"obs"}
			want.Layout.Position = "center"

			require.NoError(t, SaveSettings(want, path))
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyway", "config.toml")

	s, created, err := LoadOrCreate(path)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, DefaultSettings(), s)
	assert.FileExists(t, path)

	_, created, err = LoadOrCreate(path)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestConfigPath(t *testing.T) {
	t.Setenv("KEYWAY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "keyway", "config.toml"), ConfigPath())

	t.Setenv("KEYWAY_CONFIG", "/etc/keyway.yaml")
	assert.Equal(t, "/etc/keyway.yaml", ConfigPath())
}

func TestFindConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("KEYWAY_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", home)

	assert.Empty(t, FindConfigFile())

	legacy := filepath.Join(home, "keyway-visualizer", "config.toml")
	writeFile(t, legacy, "ttl_ms = 900\n")
	assert.Equal(t, legacy, FindConfigFile())

	current := filepath.Join(home, "keyway", "config.yaml")
	writeFile(t, current, "ttl_ms: 900\n")
	assert.Equal(t, current, FindConfigFile())
}

func TestStorePublishCollapses(t *testing.T) {
	store := NewStore(nil)
	first := store.Load()
	require.NotNil(t, first)

	a, b := DefaultSnapshot(), DefaultSnapshot()
	store.Publish(a)
	store.Publish(b)
	store.Publish(nil)

	assert.Same(t, b, store.Load())
	select {
	case <-store.Changed():
	default:
		t.Fatal("expected a notification")
	}
	select {
	case <-store.Changed():
		t.Fatal("notifications should collapse")
	default:
	}
}

func TestLoaderReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveSettings(DefaultSettings(), path))

	reg := metrics.NewRegistry("test", "")
	reloads := reg.RegisterCounter("reloads", "", nil)
	failures := reg.RegisterCounter("failures", "", nil)

	loader := NewLoader(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	loader.Instrument(reloads, failures)
	_, err := loader.Load()
	require.NoError(t, err)

	store := NewStore(nil)
	loader.Bind(store)
	require.NoError(t, loader.Watch())
	defer loader.Close()

	next := DefaultSettings()
	next.TTLMs = 1500
	require.NoError(t, SaveSettings(next, path))

	select {
	case <-store.Changed():
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
	assert.Equal(t, 1500*time.Millisecond, store.Load().TTL)
	assert.Equal(t, 1500, loader.Settings().TTLMs)
	assert.Equal(t, uint64(1), reloads.Value())

	writeFile(t, path, "max_items = 0\n")
	select {
	case err := <-loader.Errors():
		assert.True(t, strings.Contains(err.Error(), "max_items"), err.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("no reload error")
	}
	assert.Equal(t, 1500*time.Millisecond, store.Load().TTL, "previous settings kept")
	assert.Equal(t, uint64(1), failures.Value())
	assert.Error(t, loader.LastError())
}

func TestLoaderOverridesApplyAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "version = 1\nmax_items = 3\nttl_ms = 700\n")

	loader := NewLoader(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	loader.Override(func(s *Settings) { s.MaxItems = 8 })

	s, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 8, s.MaxItems)
	assert.Equal(t, 700, s.TTLMs)

	loader.Override(func(s *Settings) { s.MaxItems = 99 })
	_, err = loader.Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, 8, loader.Settings().MaxItems, "failed load keeps previous settings")
}
