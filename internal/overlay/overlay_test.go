package overlay

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyway/internal/chord"
	"keyway/internal/metrics"
)

var base = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func labels(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func TestInsertNewestFirst(t *testing.T) {
	m := NewManager(ms(900), 5)
	a := m.Insert("A", chord.KindKeyCombo, base)
	m.Insert("B", chord.KindKeyCombo, base.Add(ms(10)))

	assert.Equal(t, []string{"B", "A"}, labels(m.Items()))
	assert.Equal(t, base.Add(ms(900)), a.ExpiresAt)
	assert.Equal(t, base, a.CreatedAt)
	assert.NotEqual(t, m.Items()[0].ID, m.Items()[1].ID)
}

func TestInsertEvictsOldestRegardlessOfTTL(t *testing.T) {
	r := metrics.NewRegistry("t", "")
	evicted := r.RegisterCounter("evicted", "", nil)
	visible := r.RegisterGauge("visible", "", nil)

	m := NewManager(ms(900), 5)
	m.Instrument(evicted, nil, visible)
	for i := 1; i <= 6; i++ {
		m.Insert(fmt.Sprintf("C%d", i), chord.KindKeyCombo, base.Add(ms(i)))
	}

	assert.Equal(t, []string{"C6", "C5", "C4", "C3", "C2"}, labels(m.Items()))
	assert.Equal(t, uint64(1), evicted.Value())
	assert.Equal(t, int64(5), visible.Value())
}

func TestTickRemovesExpiredOnlyAndIsIdempotent(t *testing.T) {
	m := NewManager(ms(100), 5)
	m.Insert("A", chord.KindKeyCombo, base)
	m.Insert("B", chord.KindKeyCombo, base.Add(ms(50)))
	m.Insert("C", chord.KindKeyCombo, base.Add(ms(100)))

	now := base.Add(ms(150))
	assert.Equal(t, 2, m.Tick(now), "A expires at 100, B exactly at 150")
	first := m.Items()
	assert.Equal(t, []string{"C"}, labels(first))

	assert.Equal(t, 0, m.Tick(now))
	assert.Equal(t, first, m.Items())
}

func TestTickBoundaryIsInclusive(t *testing.T) {
	m := NewManager(ms(100), 5)
	m.Insert("A", chord.KindKeyCombo, base)

	assert.Equal(t, 0, m.Tick(base.Add(ms(99))))
	assert.Equal(t, 1, m.Tick(base.Add(ms(100))))
	assert.Zero(t, m.Len())
}

func TestRefreshExtendsAndMovesToFront(t *testing.T) {
	m := NewManager(ms(900), 5)
	m.Insert("A", chord.KindKeyCombo, base)
	m.Insert("B", chord.KindKeyCombo, base.Add(ms(10)))

	ok := m.Refresh("A", chord.KindKeyCombo, base.Add(ms(500)))
	require.True(t, ok)

	items := m.Items()
	assert.Equal(t, []string{"A", "B"}, labels(items))
	assert.Equal(t, base.Add(ms(1400)), items[0].ExpiresAt)
	assert.Equal(t, base, items[0].CreatedAt, "refresh keeps the creation time")
	assert.Equal(t, 2, m.Len(), "refresh never inserts")
}

func TestRefreshMisses(t *testing.T) {
	m := NewManager(ms(100), 5)
	m.Insert("A", chord.KindKeyCombo, base)

	assert.False(t, m.Refresh("A", chord.KindMouse, base), "kind differs")
	assert.False(t, m.Refresh("B", chord.KindKeyCombo, base), "label differs")
	assert.False(t, m.Refresh("A", chord.KindKeyCombo, base.Add(ms(100))), "already expired")
}

func TestSetLimitsTrimsWithoutTouchingExpiry(t *testing.T) {
	m := NewManager(ms(900), 5)
	for i := 0; i < 5; i++ {
		m.Insert(fmt.Sprintf("C%d", i), chord.KindKeyCombo, base.Add(ms(i)))
	}

	assert.Equal(t, 3, m.SetLimits(ms(100), 2))
	items := m.Items()
	assert.Equal(t, []string{"C4", "C3"}, labels(items))
	assert.Equal(t, base.Add(ms(904)), items[0].ExpiresAt)

	it := m.Insert("N", chord.KindKeyCombo, base.Add(ms(10)))
	assert.Equal(t, base.Add(ms(110)), it.ExpiresAt)
	assert.Equal(t, ms(100), m.TTL())
}

func TestClearAndNextExpiry(t *testing.T) {
	m := NewManager(ms(100), 5)
	_, ok := m.NextExpiry()
	assert.False(t, ok)

	m.Insert("A", chord.KindKeyCombo, base.Add(ms(20)))
	m.Insert("B", chord.KindKeyCombo, base)
	next, ok := m.NextExpiry()
	require.True(t, ok)
	assert.Equal(t, base.Add(ms(100)), next)

	assert.Equal(t, 2, m.Clear())
	assert.Zero(t, m.Len())
}

func TestItemsIsACopy(t *testing.T) {
	m := NewManager(ms(100), 5)
	m.Insert("A", chord.KindKeyCombo, base)
	items := m.Items()
	items[0].Label = "mutated"
	assert.Equal(t, "A", m.Items()[0].Label)
}

func TestParsePosition(t *testing.T) {
	for _, name := range PositionNames() {
		p, err := ParsePosition(name)
		require.NoError(t, err)
		assert.Equal(t, name, p.String())
	}
	p, err := ParsePosition("Top_Left")
	require.NoError(t, err)
	assert.Equal(t, TopLeft, p)

	_, err = ParsePosition("middle")
	assert.Error(t, err)
}

func TestLayoutOrigin(t *testing.T) {
	tests := []struct {
		layout Layout
		x, y   int
	}{
		{Layout{Position: BottomRight, Margin: 40}, 1920 - 200 - 40, 1080 - 50 - 40},
		{Layout{Position: TopLeft, Margin: 10}, 10, 10},
		{Layout{Position: BottomCenter, Margin: 20}, 860, 1010},
		{Layout{Position: Center}, 860, 515},
		{Layout{Position: Custom, CustomX: 7, CustomY: 9, Margin: 40}, 7, 9},
	}
	for _, tt := range tests {
		x, y := tt.layout.Origin(1920, 1080, 200, 50)
		assert.Equal(t, tt.x, x, tt.layout.Position.String())
		assert.Equal(t, tt.y, y, tt.layout.Position.String())
	}
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	items := []Item{{Label: "B"}, {Label: "Ctrl+A"}}
	require.NoError(t, r.Render(Frame{Items: items}))
	require.NoError(t, r.Render(Frame{Items: items}))
	require.NoError(t, r.Render(Frame{Items: items, Paused: true}))
	require.NoError(t, r.Render(Frame{Items: items, Suppressed: true}))
	require.NoError(t, r.Render(Frame{}))

	assert.Equal(t, "[Ctrl+A] [B]\n[Ctrl+A] [B]  (paused)\n(filtered)\n-\n", buf.String())
}
