// Package appfilter decides whether the focused application suppresses the
// overlay. The focused window is looked up through an Inspector; every
// compositor exposes it differently, so several inspectors are provided and
// Detect picks the ones that fit the running session.
package appfilter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrInspectorUnavailable is returned when the focused window cannot be
// determined, e.g. on an unsupported compositor. The filter treats it as
// "do not suppress".
var ErrInspectorUnavailable = errors.New("window inspector unavailable")

// Window identifies the focused application.
type Window struct {
	Class string
	Title string
}

// Inspector returns the focused window.
type Inspector interface {
	Name() string
	ActiveWindow(ctx context.Context) (Window, error)
}

// Runner executes a command and returns its standard output. Tests replace
// it to avoid depending on compositor tools.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs name from PATH. A missing binary is reported as
// ErrInspectorUnavailable.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s: %w", name, ErrInspectorUnavailable)
	}
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Chain tries each inspector in order and returns the first answer.
type Chain []Inspector

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, in := range c {
		names[i] = in.Name()
	}
	return strings.Join(names, ",")
}

// ActiveWindow returns the first successful lookup. If every inspector
// fails the errors are joined under ErrInspectorUnavailable.
func (c Chain) ActiveWindow(ctx context.Context) (Window, error) {
	if len(c) == 0 {
		return Window{}, ErrInspectorUnavailable
	}
	var errs []error
	for _, in := range c {
		w, err := in.ActiveWindow(ctx)
		if err == nil {
			return w, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", in.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return Window{}, fmt.Errorf("%w: %w", ErrInspectorUnavailable, errors.Join(errs...))
}

// Env is the subset of the environment Detect looks at.
type Env struct {
	HyprlandSignature string
	SwaySock          string
	CurrentDesktop    string
	WaylandDisplay    string
	Display           string
}

// EnvFromOS reads Env from the process environment.
func EnvFromOS() Env {
	return Env{
		HyprlandSignature: os.Getenv("HYPRLAND_INSTANCE_SIGNATURE"),
		SwaySock:          os.Getenv("SWAYSOCK"),
		CurrentDesktop:    os.Getenv("XDG_CURRENT_DESKTOP"),
		WaylandDisplay:    os.Getenv("WAYLAND_DISPLAY"),
		Display:           os.Getenv("DISPLAY"),
	}
}

// Detect builds the inspector chain for the session described by env. The
// compositor-specific inspectors come first; X11 tools are a fallback that
// also sees XWayland clients. run may be nil for ExecRunner.
func Detect(env Env, run Runner) Chain {
	if run == nil {
		run = ExecRunner
	}

	var chain Chain
	if env.HyprlandSignature != "" {
		chain = append(chain, NewHyprland(run))
	}
	if env.SwaySock != "" {
		chain = append(chain, NewSway(run))
	}
	if containsFold(env.CurrentDesktop, "gnome") {
		chain = append(chain, NewGnome(nil))
	}
	if env.Display != "" {
		chain = append(chain, NewX11(run))
	}
	return chain
}

// Match reports whether any entry of apps occurs, case-insensitively, in
// the window class or title. Blank entries never match.
func Match(w Window, apps []string) bool {
	for _, app := range apps {
		app = strings.TrimSpace(app)
		if app == "" {
			continue
		}
		if containsFold(w.Class, app) || containsFold(w.Title, app) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
