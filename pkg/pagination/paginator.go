package pagination

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/media-browser/pkg/fetch"
	"github.com/Sternrassler/media-browser/pkg/render"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNoSource is returned by operations that need a configured source.
var ErrNoSource = errors.New("no source configured")

// Result values reported to observers and metrics.
const (
	ResultItems = "items"
	ResultEmpty = "empty"
	ResultError = "error"
	ResultStale = "stale"
)

// PageResult describes a completed page request.
type PageResult struct {
	Session  uuid.UUID
	Page     int
	Items    int
	Result   string
	Err      error
	Duration time.Duration
}

// Paginator appends pages from the current source as the user scrolls.
type Paginator struct {
	mu        sync.Mutex
	fetcher   fetch.Fetcher
	container render.Container
	hook      render.Hook
	resets    []func()
	lookahead float64
	observer  func(PageResult)
	session   *Session
	inflight  sync.WaitGroup
	logger    zerolog.Logger
}

// Option configures a Paginator.
type Option func(*Paginator)

// WithHooks sets the enable-on-render hooks run for every appended fragment.
// Hooks run while the Paginator is locked and must not call back into it.
func WithHooks(hooks ...render.Hook) Option {
	return func(p *Paginator) {
		p.hook = render.Chain(hooks...)
	}
}

// WithResets registers functions run whenever Navigate clears the container,
// typically the Reset methods of render.Gallery and render.Thumbnails.
func WithResets(fns ...func()) Option {
	return func(p *Paginator) {
		p.resets = append(p.resets, fns...)
	}
}

// WithLookahead overrides DefaultLookahead.
func WithLookahead(viewports float64) Option {
	return func(p *Paginator) {
		if viewports >= 0 {
			p.lookahead = viewports
		}
	}
}

// WithObserver registers a callback invoked after every page completion,
// including stale and failed ones. It runs without the Paginator lock held.
func WithObserver(fn func(PageResult)) Option {
	return func(p *Paginator) {
		p.observer = fn
	}
}

// New creates a Paginator with no source; scroll ticks are ignored until
// ConfigureSource or Navigate is called.
func New(fetcher fetch.Fetcher, container render.Container, opts ...Option) *Paginator {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if container == nil {
		panic("container cannot be nil")
	}
	p := &Paginator{
		fetcher:   fetcher,
		container: container,
		lookahead: DefaultLookahead,
		logger:    log.With().Str("component", "pagination").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConfigureSource swaps the active source and starts a new session at page 0
// with an open gate. Rendered items are left in place; use Navigate to clear them.
func (p *Paginator) ConfigureSource(src Source) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.install(src)
	return nil
}

// Navigate clears the container and the registered resets, installs src
// and loads its page 0. The
// clear and the swap happen under one lock so items of two sources never
// interleave. The first page is fetched asynchronously; use Wait to block.
func (p *Paginator) Navigate(ctx context.Context, src Source) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("invalid source: %w", err)
	}

	p.mu.Lock()
	p.container.Clear()
	for _, reset := range p.resets {
		reset()
	}
	s := p.install(src)
	s.gate.TryClose()
	req := s.cursor.Source.Request(0)
	p.inflight.Add(1)
	p.mu.Unlock()

	go p.load(ctx, s, 0, req)
	return nil
}

// install must be called with p.mu held.
func (p *Paginator) install(src Source) *Session {
	s := newSession(src)
	if p.session != nil {
		p.logger.Info().
			Str("previous_session", p.session.ID.String()).
			Str("session", s.ID.String()).
			Str("source", src.kind()).
			Msg("Source swapped")
	}
	p.session = s
	sourceSwapsTotal.WithLabelValues(src.kind()).Inc()
	return s
}

// OnScrollTick handles a scroll or resize event. It issues at most one page
// request and reports whether it did. Ticks far from the bottom, ticks while a
// request is in flight, and ticks after the end of data are cheap no-ops.
func (p *Paginator) OnScrollTick(ctx context.Context, vp Viewport) bool {
	if !vp.NearBottom(p.lookahead) {
		scrollTicksTotal.WithLabelValues("far").Inc()
		return false
	}

	p.mu.Lock()
	s := p.session
	if s == nil {
		p.mu.Unlock()
		scrollTicksTotal.WithLabelValues("no_source").Inc()
		return false
	}
	if !s.gate.TryClose() {
		p.mu.Unlock()
		scrollTicksTotal.WithLabelValues("gate_closed").Inc()
		return false
	}
	page := s.cursor.Page + 1
	req := s.cursor.Source.Request(page)
	p.inflight.Add(1)
	p.mu.Unlock()

	scrollTicksTotal.WithLabelValues("requested").Inc()
	p.logger.Debug().
		Str("session", s.ID.String()).
		Int("page", page).
		Str("url", req.URL).
		Msg("Requesting next page")

	go p.load(ctx, s, page, req)
	return true
}

// load fetches one page for session s and applies the result if s is still current.
func (p *Paginator) load(ctx context.Context, s *Session, page int, req fetch.Request) {
	defer p.inflight.Done()

	start := time.Now()
	items, err := p.fetcher.Fetch(ctx, req)
	var fragments []render.Fragment
	if err == nil {
		fragments, err = render.DecodeFragments(items)
	}
	elapsed := time.Since(start)

	result := p.apply(s, page, fragments, err)
	result.Duration = elapsed

	pageDuration.WithLabelValues(s.cursor.Source.kind()).Observe(elapsed.Seconds())
	pagesTotal.WithLabelValues(s.cursor.Source.kind(), result.Result).Inc()

	if p.observer != nil {
		p.observer(result)
	}
}

func (p *Paginator) apply(s *Session, page int, fragments []render.Fragment, err error) PageResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := PageResult{Session: s.ID, Page: page, Items: len(fragments), Err: err}

	if p.session != s {
		result.Result = ResultStale
		p.logger.Warn().
			Str("session", s.ID.String()).
			Int("page", page).
			Msg("Discarding page for a replaced source")
		return result
	}

	if err != nil {
		// The gate must reopen or scrolling stays disabled for good.
		s.gate.Reopen()
		result.Result = ResultError
		p.logger.Warn().
			Err(err).
			Str("session", s.ID.String()).
			Int("page", page).
			Str("error_class", string(fetch.ClassOf(err))).
			Msg("Page fetch failed")
		return result
	}

	for _, f := range fragments {
		p.container.Append(f)
		if p.hook != nil {
			p.hook(f)
		}
	}
	s.cursor.Page = page

	if len(fragments) == 0 {
		s.exhausted = true
		result.Result = ResultEmpty
		p.logger.Info().
			Str("session", s.ID.String()).
			Int("page", page).
			Msg("End of data reached")
		return result
	}

	s.gate.Reopen()
	result.Result = ResultItems
	p.logger.Debug().
		Str("session", s.ID.String()).
		Int("page", page).
		Int("items", len(fragments)).
		Msg("Page appended")
	return result
}

// Wait blocks until no page request is in flight.
func (p *Paginator) Wait() {
	p.inflight.Wait()
}

// Close drops the current session. Requests still in flight complete as stale.
func (p *Paginator) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = nil
}

// Page returns the current session's cursor page.
func (p *Paginator) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return 0
	}
	return p.session.cursor.Page
}

// Cursor returns a copy of the current session's cursor.
func (p *Paginator) Cursor() (Cursor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return Cursor{}, ErrNoSource
	}
	return p.session.cursor, nil
}

// GateOpen reports whether the next near-bottom tick would issue a request.
func (p *Paginator) GateOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.session.gate.IsOpen()
}

// Exhausted reports whether the current source returned an empty page.
func (p *Paginator) Exhausted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil && p.session.exhausted
}

// Session returns the identity of the current session.
func (p *Paginator) Session() (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return uuid.Nil, ErrNoSource
	}
	return p.session.ID, nil
}
