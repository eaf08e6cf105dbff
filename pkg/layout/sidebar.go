package layout

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWidth is the open sidebar width in pixels when none is stored.
	DefaultWidth = 120

	// CollapsedWidth is the width of a closed sidebar; only the toggle shows.
	CollapsedWidth = 32

	// Gutter separates the sidebar from the main content.
	Gutter = 32
)

// Geometry is the computed layout in pixels.
type Geometry struct {
	Open         bool `json:"open"`
	SidebarWidth int  `json:"sidebar_width"`
	HandleLeft   int  `json:"handle_left"`
	MainMargin   int  `json:"main_margin"`
}

// Sidebar holds the sidebar state and writes every change through to a Store.
type Sidebar struct {
	mu     sync.Mutex
	store  Store
	width  int
	open   bool
	logger zerolog.Logger
}

// NewSidebar creates a closed sidebar of DefaultWidth. Call Restore to load
// the stored state.
func NewSidebar(store Store) *Sidebar {
	if store == nil {
		panic("store cannot be nil")
	}
	return &Sidebar{
		store:  store,
		width:  DefaultWidth,
		logger: log.With().Str("component", "layout").Logger(),
	}
}

// Restore loads the stored width, storing DefaultWidth if there is none or it
// is unreadable, and reopens the sidebar if it was left open.
func (s *Sidebar) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.store.Get(ctx, KeyWidth)
	if err != nil {
		return fmt.Errorf("restore width: %w", err)
	}
	width, convErr := strconv.Atoi(raw)
	if !ok || convErr != nil || width < CollapsedWidth {
		if ok {
			s.logger.Warn().Str("value", raw).Msg("Ignoring invalid stored sidebar width")
		}
		width = DefaultWidth
		if err := s.store.Set(ctx, KeyWidth, strconv.Itoa(width)); err != nil {
			return fmt.Errorf("store default width: %w", err)
		}
	}
	s.width = width

	status, _, err := s.store.Get(ctx, KeyStatus)
	if err != nil {
		return fmt.Errorf("restore status: %w", err)
	}
	s.open = parseStatus(status)

	s.logger.Debug().Int("width", s.width).Bool("open", s.open).Msg("Sidebar restored")
	return nil
}

// Open expands the sidebar to its stored width.
func (s *Sidebar) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOpen(ctx, true)
}

// Close collapses the sidebar and stores it as closed.
func (s *Sidebar) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setOpen(ctx, false)
}

// Toggle flips the sidebar and reports whether it is now open.
func (s *Sidebar) Toggle(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.setOpen(ctx, !s.open); err != nil {
		return s.open, err
	}
	return s.open, nil
}

// Resize changes the width by offset pixels. The width never drops below
// CollapsedWidth.
func (s *Sidebar) Resize(ctx context.Context, offset int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setWidth(ctx, s.width+offset)
}

// SetWidth sets the width to px, as when the resize handle is dropped.
func (s *Sidebar) SetWidth(ctx context.Context, px int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setWidth(ctx, px)
}

// Width returns the open width.
func (s *Sidebar) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width
}

// IsOpen reports whether the sidebar is open.
func (s *Sidebar) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Geometry computes the current layout.
func (s *Sidebar) Geometry() Geometry {
	s.mu.Lock()
	defer s.mu.Unlock()

	width := CollapsedWidth
	if s.open {
		width = s.width
	}
	return Geometry{
		Open:         s.open,
		SidebarWidth: width,
		HandleLeft:   width,
		MainMargin:   width + Gutter,
	}
}

// setOpen must be called with s.mu held.
func (s *Sidebar) setOpen(ctx context.Context, open bool) error {
	if err := s.store.Set(ctx, KeyStatus, formatStatus(open)); err != nil {
		return fmt.Errorf("store status: %w", err)
	}
	s.open = open
	s.logger.Debug().Bool("open", open).Int("width", s.width).Msg("Sidebar toggled")
	return nil
}

// setWidth must be called with s.mu held.
func (s *Sidebar) setWidth(ctx context.Context, px int) error {
	if px < CollapsedWidth {
		px = CollapsedWidth
	}
	if err := s.store.Set(ctx, KeyWidth, strconv.Itoa(px)); err != nil {
		return fmt.Errorf("store width: %w", err)
	}
	s.width = px
	s.logger.Debug().Int("width", px).Msg("Sidebar resized")
	return nil
}

func parseStatus(v string) bool {
	open, err := strconv.ParseBool(v)
	return err == nil && open
}

func formatStatus(open bool) string {
	if open {
		return "1"
	}
	return "0"
}
