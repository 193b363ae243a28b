package vscroll

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
)

type testContainer struct {
	mu            sync.Mutex
	scrollTop     int
	height        int
	contentHeight int
	rows          []Row
}

func (c *testContainer) ScrollTop() int { c.mu.Lock(); defer c.mu.Unlock(); return c.scrollTop }

func (c *testContainer) Height() int { return c.height }

func (c *testContainer) SetContentHeight(px int) { c.contentHeight = px }

func (c *testContainer) Render(rows []Row) {
	c.mu.Lock()
	c.rows = rows
	c.mu.Unlock()
}

func (c *testContainer) scrollTo(px int) {
	c.mu.Lock()
	c.scrollTop = px
	c.mu.Unlock()
}

func (c *testContainer) rendered() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

func items(r rng.Range) []source.Item {
	res := make([]source.Item, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		res = append(res, i)
	}
	return res
}

func TestInitialRender(t *testing.T) {
	require := require.New(t)

	c := &testContainer{height: 200}
	s, err := New(c, Options{
		TotalItems: 1000,
		ItemHeight: 20,
		Seed:       []Patch{{Range: rng.New(0, 50), Items: items(rng.New(0, 50))}},
	})
	require.NoError(err)

	require.Equal(20000, c.contentHeight)
	require.Equal(rng.New(0, 10), s.Visible())
	require.Equal(rng.New(0, 15), s.Window())

	rows := c.rendered()
	require.Len(rows, 15)
	for i, row := range rows {
		require.Equal(i, row.Index)
		require.Equal(i*20, row.Top)
		require.False(row.Placeholder)
		require.Equal(i, row.View)
	}
	require.Equal(50, s.ResidentCount())
}

func TestScrollRendersPlaceholders(t *testing.T) {
	require := require.New(t)

	c := &testContainer{height: 200}
	s, err := New(c, Options{
		TotalItems:        1000,
		ItemHeight:        20,
		RenderPlaceholder: func(i int) interface{} { return "loading" },
		Seed:              []Patch{{Range: rng.New(0, 50), Items: items(rng.New(0, 50))}},
	})
	require.NoError(err)

	c.scrollTo(45 * 20)
	s.OnScroll()
	require.Equal(rng.New(45, 55), s.Visible())
	require.Equal(rng.New(40, 60), s.Window())

	for _, row := range c.rendered() {
		if row.Index < 50 {
			require.False(row.Placeholder)
			require.Equal(row.Index, row.View)
		} else {
			require.True(row.Placeholder)
			require.Equal("loading", row.View)
		}
	}
}

func TestUpdateDataOutOfOrder(t *testing.T) {
	require := require.New(t)

	c := &testContainer{height: 100}
	s, err := New(c, Options{TotalItems: 100, ItemHeight: 10})
	require.NoError(err)
	require.Equal(1, s.Renders())

	// outside of the window: no re-render
	s.UpdateData(rng.New(50, 60), items(rng.New(50, 60)))
	require.Equal(1, s.Renders())
	require.True(s.Resident(55))

	// the later part arrives first
	s.UpdateData(rng.New(8, 16), items(rng.New(8, 16)))
	require.Equal(2, s.Renders())
	s.UpdateData(rng.New(0, 8), items(rng.New(0, 8)))
	require.Equal(3, s.Renders())

	for _, row := range c.rendered() {
		require.False(row.Placeholder)
		require.Equal(row.Index, row.View)
	}

	// patches beyond the dataset are clipped
	s.UpdateData(rng.New(95, 105), items(rng.New(95, 105)))
	require.False(s.Resident(100))
	require.True(s.Resident(99))
}

func TestDebouncedViewportChange(t *testing.T) {
	require := require.New(t)

	c := &testContainer{height: 100}
	changes := make(chan rng.Range, 10)
	s, err := New(c, Options{
		TotalItems: 1000,
		ItemHeight: 10,
		Debounce:   30 * time.Millisecond,
		OnViewportChange: func(vp rng.Range) {
			changes <- vp
		},
	})
	require.NoError(err)

	for px := 0; px <= 500; px += 100 {
		c.scrollTo(px)
		s.OnScroll()
	}
	// every scroll event renders at once
	require.Equal(7, s.Renders())

	select {
	case vp := <-changes:
		require.Equal(rng.New(50, 60), vp)
	case <-time.After(time.Second):
		t.Fatal("viewport change wasn't reported")
	}
	select {
	case vp := <-changes:
		t.Fatalf("unexpected viewport change %s", vp)
	case <-time.After(100 * time.Millisecond):
	}

	s.Close()
	c.scrollTo(0)
	s.OnScroll()
	select {
	case <-changes:
		t.Fatal("closed scroller mustn't report")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRetain(t *testing.T) {
	require := require.New(t)

	c := &testContainer{height: 100}
	s, err := New(c, Options{
		TotalItems: 1000,
		ItemHeight: 10,
		Retain:     20,
		Seed:       []Patch{{Range: rng.New(0, 100), Items: items(rng.New(0, 100))}},
	})
	require.NoError(err)
	// window [0,15) + 20 rows retained
	require.Equal(35, s.ResidentCount())

	// window [45,65) keeps [25,85)
	c.scrollTo(500)
	s.OnScroll()
	require.Equal(10, s.ResidentCount())
	require.False(s.Resident(10))
	require.True(s.Resident(30))
}

func TestInvalidOptions(t *testing.T) {
	_, err := New(&testContainer{}, Options{TotalItems: 10})
	require.Error(t, err)
	_, err = New(nil, Options{TotalItems: 10, ItemHeight: 1})
	require.Error(t, err)
	_, err = New(&testContainer{}, Options{TotalItems: -1, ItemHeight: 1})
	require.Error(t, err)
}
