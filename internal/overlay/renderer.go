package overlay

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Position is the screen anchor of the overlay.
type Position int

const (
	BottomRight Position = iota
	BottomCenter
	BottomLeft
	TopRight
	TopCenter
	TopLeft
	Center
	Custom
)

var positionNames = [...]string{
	BottomRight:  "bottom-right",
	BottomCenter: "bottom-center",
	BottomLeft:   "bottom-left",
	TopRight:     "top-right",
	TopCenter:    "top-center",
	TopLeft:      "top-left",
	Center:       "center",
	Custom:       "custom",
}

func (p Position) String() string {
	if p < 0 || int(p) >= len(positionNames) {
		return fmt.Sprintf("Position(%d)", int(p))
	}
	return positionNames[p]
}

// ParsePosition accepts the kebab-case names, case-insensitively. Underscores
// are accepted in place of hyphens.
func ParsePosition(s string) (Position, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, name := range positionNames {
		if name == norm {
			return Position(i), nil
		}
	}
	return BottomRight, fmt.Errorf("unknown position %q", s)
}

// PositionNames lists the accepted position names.
func PositionNames() []string {
	return append([]string(nil), positionNames[:]...)
}

// Layout is the placement configuration handed to renderers. It does not
// affect item lifetime.
type Layout struct {
	Position    Position
	Margin      int
	CustomX     int
	CustomY     int
	DragEnabled bool
}

// Edges are the screen edges a layer-shell style surface anchors to.
type Edges struct {
	Top, Bottom, Left, Right bool
}

// Anchors returns the edges for l.Position. Centered axes anchor to neither
// edge; Custom anchors top-left and is offset by CustomX/CustomY.
func (l Layout) Anchors() Edges {
	switch l.Position {
	case BottomRight:
		return Edges{Bottom: true, Right: true}
	case BottomCenter:
		return Edges{Bottom: true}
	case BottomLeft:
		return Edges{Bottom: true, Left: true}
	case TopRight:
		return Edges{Top: true, Right: true}
	case TopCenter:
		return Edges{Top: true}
	case TopLeft, Custom:
		return Edges{Top: true, Left: true}
	default:
		return Edges{}
	}
}

// Origin returns the top-left pixel of a w×h box on a screenW×screenH
// output.
func (l Layout) Origin(screenW, screenH, w, h int) (x, y int) {
	if l.Position == Custom {
		return l.CustomX, l.CustomY
	}
	e := l.Anchors()
	switch {
	case e.Left:
		x = l.Margin
	case e.Right:
		x = screenW - w - l.Margin
	default:
		x = (screenW - w) / 2
	}
	switch {
	case e.Top:
		y = l.Margin
	case e.Bottom:
		y = screenH - h - l.Margin
	default:
		y = (screenH - h) / 2
	}
	return x, y
}

// Frame is everything a renderer needs to draw one state of the overlay.
type Frame struct {
	Items      []Item
	Paused     bool
	Suppressed bool
	Layout     Layout
	At         time.Time
}

// Visible reports whether anything should be drawn.
func (f Frame) Visible() bool {
	return len(f.Items) > 0 && !f.Suppressed
}

// Renderer draws frames. Render is called from the event loop after every
// state change and must not block for long.
type Renderer interface {
	Render(Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Frame) error

func (f RendererFunc) Render(fr Frame) error { return f(fr) }

// TextRenderer writes one line per visible change, for terminals and
// logs:
//
//	[Ctrl+C] [A]  (paused)
type TextRenderer struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewTextRenderer returns a TextRenderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

// Render implements Renderer. Identical consecutive frames are skipped.
func (r *TextRenderer) Render(f Frame) error {
	line := FormatFrame(f)

	r.mu.Lock()
	defer r.mu.Unlock()
	if line == r.last {
		return nil
	}
	r.last = line
	_, err := fmt.Fprintln(r.w, line)
	return err
}

// FormatFrame renders f as a single line, oldest item on the left.
func FormatFrame(f Frame) string {
	var b strings.Builder
	if f.Visible() {
		for i := len(f.Items) - 1; i >= 0; i-- {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString("[" + f.Items[i].Label + "]")
		}
	}
	switch {
	case f.Suppressed:
		b.WriteString("(filtered)")
	case f.Paused:
		if b.Len() > 0 {
			b.WriteString("  ")
		}
		b.WriteString("(paused)")
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}
