package appfilter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Hyprland queries the focused window through hyprctl.
type Hyprland struct {
	run Runner
}

// NewHyprland returns an inspector that runs `hyprctl -j activewindow`.
func NewHyprland(run Runner) *Hyprland {
	return &Hyprland{run: run}
}

func (h *Hyprland) Name() string { return "hyprland" }

func (h *Hyprland) ActiveWindow(ctx context.Context) (Window, error) {
	out, err := h.run(ctx, "hyprctl", "-j", "activewindow")
	if err != nil {
		return Window{}, err
	}
	return parseHyprland(out)
}

func parseHyprland(out []byte) (Window, error) {
	var v struct {
		Class *string `json:"class"`
		Title string  `json:"title"`
	}
	if err := json.Unmarshal(out, &v); err != nil {
		return Window{}, fmt.Errorf("decode hyprctl output: %w", err)
	}
	// hyprctl prints {} when nothing has focus.
	if v.Class == nil {
		return Window{}, errors.New("hyprctl: no focused window")
	}
	return Window{Class: *v.Class, Title: v.Title}, nil
}
