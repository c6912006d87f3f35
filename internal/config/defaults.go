package config

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used under the XDG base directories.
const AppName = "keyway"

// legacyAppName is the directory the first releases wrote their settings to.
const legacyAppName = "keyway-visualizer"

// ConfigDir returns $XDG_CONFIG_HOME/keyway, or ~/.config/keyway.
func ConfigDir() string {
	return filepath.Join(configHome(), AppName)
}

func configHome() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return xdgConfig
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

// ConfigPath returns the default settings file path. KEYWAY_CONFIG
// overrides it.
func ConfigPath() string {
	if p := os.Getenv("KEYWAY_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.toml")
}

// SupportedConfigFormats returns the accepted settings file extensions.
func SupportedConfigFormats() []string {
	return []string{
		"toml",
		"json",
		"yaml",
		"yml",
	}
}

// FindConfigFile searches for a settings file in standard locations and
// returns the first match, or "" if none exists.
//
// Search order:
//  1. KEYWAY_CONFIG
//  2. the keyway config directory, any supported format
//  3. the legacy keyway-visualizer directory
func FindConfigFile() string {
	if p := os.Getenv("KEYWAY_CONFIG"); p != "" {
		return p
	}

	searchDirs := []string{
		ConfigDir(),
		filepath.Join(configHome(), legacyAppName),
	}
	for _, dir := range searchDirs {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
