package pagination

// DefaultLookahead is how many viewport heights above the document bottom a
// scroll position counts as "near the bottom".
const DefaultLookahead = 3

// Viewport is the scroll geometry reported with a scroll or resize event, in pixels.
type Viewport struct {
	ScrollTop      float64
	DocumentHeight float64
	ViewportHeight float64
}

// BottomPosition is DocumentHeight − lookahead×ViewportHeight.
func (v Viewport) BottomPosition(lookahead float64) float64 {
	return v.DocumentHeight - lookahead*v.ViewportHeight
}

// NearBottom reports whether ScrollTop has reached BottomPosition.
func (v Viewport) NearBottom(lookahead float64) bool {
	return v.ScrollTop >= v.BottomPosition(lookahead)
}
