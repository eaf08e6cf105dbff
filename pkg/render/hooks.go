package render

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Hook runs once for every fragment after it has been appended.
type Hook func(f Fragment)

// Chain runs hooks in order.
func Chain(hooks ...Hook) Hook {
	return func(f Fragment) {
		for _, h := range hooks {
			if h != nil {
				h(f)
			}
		}
	}
}

func parse(f Fragment) (*goquery.Document, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(f)))
	if err != nil {
		log.Debug().Err(err).Str("component", "render").Msg("Fragment is not parseable HTML")
		return nil, false
	}
	return doc, true
}

// Thumbnails collects the preview URLs of lazily loaded thumbnails
// (".libraries-thumbnail-wrapper[data-src]") so they can be loaded on demand.
type Thumbnails struct {
	mu      sync.Mutex
	pending []string
}

// Hook returns the enable-on-render hook.
func (t *Thumbnails) Hook() Hook {
	return func(f Fragment) {
		doc, ok := parse(f)
		if !ok {
			return
		}
		doc.Find(".libraries-thumbnail-wrapper[data-src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("data-src")
			if src == "" {
				return
			}
			t.mu.Lock()
			t.pending = append(t.pending, src)
			t.mu.Unlock()
		})
	}
}

// Take returns and forgets the preview URLs collected so far.
func (t *Thumbnails) Take() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.pending
	t.pending = nil
	return out
}

// Reset forgets the preview URLs collected so far.
func (t *Thumbnails) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
}

// Gallery collects full-size targets of "a.thumbnail[data-fullsize]" links,
// in render order, for previous/next navigation.
type Gallery struct {
	mu    sync.Mutex
	items []string
}

// Hook returns the enable-on-render hook.
func (g *Gallery) Hook() Hook {
	return func(f Fragment) {
		doc, ok := parse(f)
		if !ok {
			return
		}
		doc.Find("a.thumbnail[data-fullsize]").Each(func(_ int, s *goquery.Selection) {
			if target, _ := s.Attr("data-fullsize"); target != "" {
				g.mu.Lock()
				g.items = append(g.items, target)
				g.mu.Unlock()
			}
		})
	}
}

// Items returns the gallery targets in render order.
func (g *Gallery) Items() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.items...)
}

// Reset forgets all targets; used when the item container is cleared.
func (g *Gallery) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.items = nil
}
