package appfilter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	gnomeShellName  = "org.gnome.Shell"
	gnomeShellPath  = dbus.ObjectPath("/org/gnome/Shell")
	gnomeShellEval  = "org.gnome.Shell.Eval"
	gnomeEvalScript = `(() => { const w = global.display.focus_window; ` +
		`return JSON.stringify(w ? {class: w.get_wm_class() || '', title: w.get_title() || ''} : null); })()`
)

// Gnome asks GNOME Shell for the focus window over the session bus. Eval
// is only answered when the shell runs in unsafe mode or with an extension
// that re-enables it; otherwise the lookup reports ErrInspectorUnavailable.
type Gnome struct {
	mu      sync.Mutex
	connect func() (*dbus.Conn, error)
	conn    *dbus.Conn
}

// NewGnome returns a GNOME Shell inspector. connect defaults to
// dbus.SessionBus.
func NewGnome(connect func() (*dbus.Conn, error)) *Gnome {
	if connect == nil {
		connect = dbus.SessionBus
	}
	return &Gnome{connect: connect}
}

func (g *Gnome) Name() string { return "gnome" }

func (g *Gnome) ActiveWindow(ctx context.Context) (Window, error) {
	conn, err := g.bus()
	if err != nil {
		return Window{}, fmt.Errorf("session bus: %w: %w", ErrInspectorUnavailable, err)
	}

	var ok bool
	var result string
	call := conn.Object(gnomeShellName, gnomeShellPath).
		CallWithContext(ctx, gnomeShellEval, 0, gnomeEvalScript)
	if err := call.Store(&ok, &result); err != nil {
		return Window{}, fmt.Errorf("%s: %w", gnomeShellEval, err)
	}
	if !ok {
		return Window{}, fmt.Errorf("%s refused: %w", gnomeShellEval, ErrInspectorUnavailable)
	}
	return parseGnomeResult(result)
}

func (g *Gnome) bus() (*dbus.Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil && g.conn.Connected() {
		return g.conn, nil
	}
	conn, err := g.connect()
	if err != nil {
		return nil, err
	}
	g.conn = conn
	return conn, nil
}

// parseGnomeResult decodes the JSON the eval script returns.
func parseGnomeResult(result string) (Window, error) {
	var v *struct {
		Class string `json:"class"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(result), &v); err != nil {
		return Window{}, fmt.Errorf("decode shell result: %w", err)
	}
	if v == nil {
		return Window{}, errors.New("gnome: no focused window")
	}
	return Window{Class: v.Class, Title: v.Title}, nil
}
