package vscroll

// Container is the rendering surface hosting a scroller.
type Container interface {
	// ScrollTop is the scroll offset, in pixels.
	ScrollTop() int
	// Height is the visible height, in pixels.
	Height() int
	// SetContentHeight sizes the spacer which makes the scrollbar proportional to the dataset.
	SetContentHeight(px int)
	// Render replaces the rendered rows.
	Render(rows []Row)
}

// Row is a positioned rendered row.
type Row struct {
	Index       int
	Top         int // offset from the content top, in pixels
	Placeholder bool
	View        interface{}
}
