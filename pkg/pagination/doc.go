// Package pagination implements infinite-scroll pagination over a swappable
// data source.
//
// A Paginator appends successive result pages to a render.Container as the
// user scrolls near the bottom of the document. Which query produces the pages
// (a folder listing, a search) is a Source, swapped at runtime with
// ConfigureSource or Navigate without rebuilding the Paginator.
//
// Example usage:
//
//	items := render.NewItemSet()
//	p := pagination.New(fetcher, items, pagination.WithHooks(gallery.Hook()))
//	if err := p.Navigate(ctx, pagination.FolderSource("4")); err != nil {
//		return err
//	}
//	// on every scroll or resize event:
//	p.OnScrollTick(ctx, pagination.Viewport{ScrollTop: y, DocumentHeight: h, ViewportHeight: vh})
//
// Each source runs in its own Session, identified by a UUID. A session owns
// the cursor (last committed page) and the Gate, a single-permit guard that
// keeps at most one page request in flight:
//
//   - The gate is closed before a request is issued
//   - A page with items reopens it
//   - A failed request reopens it; the next tick retries the same page
//   - An empty page leaves it closed until the source is reconfigured
//
// Results that arrive after the source was swapped belong to a dead session
// and are discarded without touching the container.
package pagination
