package config

import (
	"errors"
	"fmt"
	"strings"

	"keyway/internal/chord"
	"keyway/internal/overlay"
)

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string

	// Warning marks an issue that does not prevent the settings from
	// being used.
	Warning bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning returns true if this is a non-fatal validation issue.
func (e *ValidationError) IsWarning() bool { return e.Warning }

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Is lets errors.Is(err, ErrInvalidConfig) match a non-empty list.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig && e.HasErrors()
}

// Warnings returns only warning-level validation errors.
func (e ValidationErrors) Warnings() ValidationErrors {
	var warnings ValidationErrors
	for _, err := range e {
		if err.IsWarning() {
			warnings = append(warnings, err)
		}
	}
	return warnings
}

// Errors returns only error-level validation errors.
func (e ValidationErrors) Errors() ValidationErrors {
	var errs ValidationErrors
	for _, err := range e {
		if !err.IsWarning() {
			errs = append(errs, err)
		}
	}
	return errs
}

// HasErrors returns true if there are any non-warning errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e.Errors()) > 0
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

// Limits enforced on numeric settings.
const (
	MinTTLMs       = 100
	MaxTTLMs       = 5000
	MaxItemsLimit  = 20
	MaxCoalesceMs  = 1000
	MaxGraceMs     = 1000
	MaxMarginPx    = 300
	maxLogSizeMB   = 1024
	maxLogBackups  = 100
	maxLogAgeDays  = 365
	maxDisabledApp = 256
)

// ValidateSettings checks every field and returns ValidationErrors. Only
// warnings are found when the returned list has no errors; callers that
// need a pass/fail answer should use HasErrors.
func ValidateSettings(s *Settings) error {
	var errs ValidationErrors

	if s.Version < 0 || s.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", s.Version, Version),
		})
	}

	if s.TTLMs < MinTTLMs || s.TTLMs > MaxTTLMs {
		errs = append(errs, RangeError("ttl_ms", MinTTLMs, MaxTTLMs))
	}
	if s.MaxItems < 1 || s.MaxItems > MaxItemsLimit {
		errs = append(errs, RangeError("max_items", 1, MaxItemsLimit))
	}
	if s.RepeatCoalesceMs < 0 || s.RepeatCoalesceMs > MaxCoalesceMs {
		errs = append(errs, RangeError("repeat_coalesce_ms", 0, MaxCoalesceMs))
	}
	if s.ModifierGraceMs < 0 || s.ModifierGraceMs > MaxGraceMs {
		errs = append(errs, RangeError("modifier_grace_ms", 0, MaxGraceMs))
	}

	if _, err := chord.Parse(s.PauseHotkey); err != nil {
		errs = append(errs, ValidationError{
			Field:   "pause_hotkey",
			Message: fmt.Sprintf("%v; %s will be used", err, DefaultPauseHotkey),
			Warning: true,
		})
	}

	if s.AppFilterEnabled && len(s.DisabledApps) == 0 {
		errs = append(errs, ValidationError{
			Field:   "disabled_apps",
			Message: "app filter is enabled but no applications are listed",
			Warning: true,
		})
	}
	if len(s.DisabledApps) > maxDisabledApp {
		errs = append(errs, ValidationError{
			Field:   "disabled_apps",
			Message: fmt.Sprintf("at most %d entries are allowed", maxDisabledApp),
		})
	}

	errs = append(errs, validateLayout(&s.Layout)...)
	errs = append(errs, validateLogging(&s.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateLayout(l *LayoutSettings) ValidationErrors {
	var errs ValidationErrors

	if _, err := overlay.ParsePosition(l.Position); err != nil {
		errs = append(errs, ValidationError{
			Field: "layout.position",
			Message: fmt.Sprintf("invalid position: %s (valid: %s)",
				l.Position, strings.Join(overlay.PositionNames(), ", ")),
		})
	}
	if l.Margin < 0 || l.Margin > MaxMarginPx {
		errs = append(errs, RangeError("layout.margin", 0, MaxMarginPx))
	}
	if l.CustomX < 0 {
		errs = append(errs, ValidationError{Field: "layout.custom_x", Message: "cannot be negative"})
	}
	if l.CustomY < 0 {
		errs = append(errs, ValidationError{Field: "layout.custom_y", Message: "cannot be negative"})
	}

	return errs
}

func validateLogging(l *LoggingSettings) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 || l.MaxSizeMB > maxLogSizeMB {
		errs = append(errs, RangeError("logging.max_size_mb", 1, maxLogSizeMB))
	}
	if l.MaxBackups < 0 || l.MaxBackups > maxLogBackups {
		errs = append(errs, RangeError("logging.max_backups", 0, maxLogBackups))
	}
	if l.MaxAgeDays < 0 || l.MaxAgeDays > maxLogAgeDays {
		errs = append(errs, RangeError("logging.max_age_days", 0, maxLogAgeDays))
	}

	return errs
}
