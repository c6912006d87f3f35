package config

import (
	"fmt"
	"os"
	"time"
)

// MigrationResult contains the result of a settings migration.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Backup      string
	Changes     []string
}

// document is the decode target for settings files. It accepts the flat
// layout keys of unversioned files next to the current layout.
type document struct {
	Settings `yaml:",inline"`

	LegacyPosition    *string `toml:"position" json:"position" yaml:"position"`
	LegacyMargin      *int    `toml:"margin" json:"margin" yaml:"margin"`
	LegacyCustomX     *int    `toml:"custom_x" json:"custom_x" yaml:"custom_x"`
	LegacyCustomY     *int    `toml:"custom_y" json:"custom_y" yaml:"custom_y"`
	LegacyDragEnabled *bool   `toml:"drag_enabled" json:"drag_enabled" yaml:"drag_enabled"`
}

func newDocument() *document {
	return &document{Settings: *DefaultSettings()}
}

// migrate upgrades d in place to Version and returns what changed, or nil
// when d is current.
func (d *document) migrate() *MigrationResult {
	if d.Version >= Version {
		return nil
	}
	result := &MigrationResult{FromVersion: d.Version, ToVersion: Version}

	for d.Version < Version {
		switch d.Version {
		case 0:
			result.Changes = append(result.Changes, d.migrateV0ToV1()...)
		}
		d.Version++
	}
	return result
}

// migrateV0ToV1 moves the flat layout keys into [layout].
func (d *document) migrateV0ToV1() []string {
	var changes []string
	if d.LegacyPosition != nil {
		d.Layout.Position = *d.LegacyPosition
		changes = append(changes, "moved position to layout.position")
	}
	if d.LegacyMargin != nil {
		d.Layout.Margin = *d.LegacyMargin
		changes = append(changes, "moved margin to layout.margin")
	}
	if d.LegacyCustomX != nil {
		d.Layout.CustomX = *d.LegacyCustomX
		changes = append(changes, "moved custom_x to layout.custom_x")
	}
	if d.LegacyCustomY != nil {
		d.Layout.CustomY = *d.LegacyCustomY
		changes = append(changes, "moved custom_y to layout.custom_y")
	}
	if d.LegacyDragEnabled != nil {
		d.Layout.DragEnabled = *d.LegacyDragEnabled
		changes = append(changes, "moved drag_enabled to layout.drag_enabled")
	}
	return changes
}

// MigrateFile rewrites an old settings file in the current layout, keeping
// a timestamped backup next to it. It returns nil when the file is current.
func MigrateFile(path string) (*MigrationResult, error) {
	doc, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	result := doc.migrate()
	if result == nil {
		return nil, nil
	}

	backup, err := backupConfig(path)
	if err != nil {
		return result, err
	}
	result.Backup = backup

	if err := SaveSettings(&doc.Settings, path); err != nil {
		return result, fmt.Errorf("write migrated settings: %w", err)
	}
	return result, nil
}

func backupConfig(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	backupPath := configPath + ".backup-" + timestamp

	if err := os.WriteFile(backupPath, data, 0600); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}
