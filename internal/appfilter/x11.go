package appfilter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// X11 queries the active window with xdotool, falling back to xprop.
type X11 struct {
	run Runner
}

// NewX11 returns an X11 inspector.
func NewX11(run Runner) *X11 {
	return &X11{run: run}
}

func (x *X11) Name() string { return "x11" }

func (x *X11) ActiveWindow(ctx context.Context) (Window, error) {
	title, err := x.run(ctx, "xdotool", "getactivewindow", "getwindowname")
	if err != nil {
		return x.xprop(ctx)
	}
	w := Window{Title: strings.TrimSpace(string(title))}
	if class, err := x.run(ctx, "xdotool", "getactivewindow", "getwindowclassname"); err == nil {
		w.Class = strings.TrimSpace(string(class))
	}
	return w, nil
}

func (x *X11) xprop(ctx context.Context) (Window, error) {
	out, err := x.run(ctx, "xprop", "-root", "_NET_ACTIVE_WINDOW")
	if err != nil {
		return Window{}, fmt.Errorf("xprop: %w", err)
	}

	// _NET_ACTIVE_WINDOW(WINDOW): window id # 0x3c00007
	parts := strings.Fields(string(out))
	if len(parts) < 5 {
		return Window{}, errors.New("could not parse window ID")
	}
	id := parts[len(parts)-1]
	if id == "0x0" {
		return Window{}, errors.New("xprop: no focused window")
	}

	var w Window
	if name, err := x.run(ctx, "xprop", "-id", id, "WM_NAME"); err == nil {
		w.Title = parseXpropString(string(name))
	}
	if class, err := x.run(ctx, "xprop", "-id", id, "WM_CLASS"); err == nil {
		w.Class = parseXpropString(string(class))
	}
	return w, nil
}

// parseXpropString extracts the value of a string property. For WM_CLASS,
// which holds "instance", "class", the class is returned.
func parseXpropString(output string) string {
	idx := strings.Index(output, "=")
	if idx == -1 {
		return ""
	}
	value := strings.TrimSpace(output[idx+1:])
	if parts := strings.Split(value, "\", \""); len(parts) > 1 {
		return strings.Trim(parts[1], "\"")
	}
	return strings.Trim(value, "\"")
}
