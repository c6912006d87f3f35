package appfilter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Sway queries the focused window through swaymsg.
type Sway struct {
	run Runner
}

// NewSway returns an inspector that walks the `swaymsg -t get_tree` output.
func NewSway(run Runner) *Sway {
	return &Sway{run: run}
}

func (s *Sway) Name() string { return "sway" }

func (s *Sway) ActiveWindow(ctx context.Context) (Window, error) {
	out, err := s.run(ctx, "swaymsg", "-t", "get_tree", "-r")
	if err != nil {
		return Window{}, err
	}
	return parseSwayTree(out)
}

type swayNode struct {
	Name             string     `json:"name"`
	Focused          bool       `json:"focused"`
	AppID            *string    `json:"app_id"`
	Nodes            []swayNode `json:"nodes"`
	FloatingNodes    []swayNode `json:"floating_nodes"`
	WindowProperties *struct {
		Class string `json:"class"`
	} `json:"window_properties"`
}

func parseSwayTree(out []byte) (Window, error) {
	var root swayNode
	if err := json.Unmarshal(out, &root); err != nil {
		return Window{}, fmt.Errorf("decode swaymsg output: %w", err)
	}
	n := findFocused(&root)
	if n == nil {
		return Window{}, errors.New("swaymsg: no focused window")
	}

	w := Window{Title: n.Name}
	switch {
	case n.AppID != nil && *n.AppID != "":
		w.Class = *n.AppID
	case n.WindowProperties != nil:
		// XWayland client
		w.Class = n.WindowProperties.Class
	}
	return w, nil
}

func findFocused(n *swayNode) *swayNode {
	if n.Focused {
		return n
	}
	for _, children := range [][]swayNode{n.Nodes, n.FloatingNodes} {
		for i := range children {
			if f := findFocused(&children[i]); f != nil {
				return f
			}
		}
	}
	return nil
}
