package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Sternrassler/media-browser/internal/testutil"
	"github.com/Sternrassler/media-browser/pkg/fetch"
	"github.com/Sternrassler/media-browser/pkg/render"
)

// nearBottom is a viewport whose scroll position triggers a request.
var nearBottom = Viewport{ScrollTop: 5000, DocumentHeight: 6200, ViewportHeight: 400}

// farFromBottom is a viewport that never triggers a request.
var farFromBottom = Viewport{ScrollTop: 100, DocumentHeight: 6200, ViewportHeight: 400}

// stubFetcher answers requests with respond and records them.
type stubFetcher struct {
	mu      sync.Mutex
	calls   []fetch.Request
	respond func(req fetch.Request) ([]json.RawMessage, error)
}

func (f *stubFetcher) Fetch(ctx context.Context, req fetch.Request) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.respond(req)
}

func (f *stubFetcher) Calls() []fetch.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetch.Request(nil), f.calls...)
}

func fragments(n int, prefix string) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf("%q", fmt.Sprintf("%s-%d", prefix, i)))
	}
	return out
}

func pagesOf(size int) *stubFetcher {
	return &stubFetcher{respond: func(fetch.Request) ([]json.RawMessage, error) {
		return fragments(size, "item"), nil
	}}
}

func TestViewport_BottomPosition(t *testing.T) {
	tests := []struct {
		name       string
		vp         Viewport
		wantBottom float64
		wantNear   bool
	}{
		{"exactly at bottom position", Viewport{ScrollTop: 5000, DocumentHeight: 6200, ViewportHeight: 400}, 5000, true},
		{"one pixel above", Viewport{ScrollTop: 4999, DocumentHeight: 6200, ViewportHeight: 400}, 5000, false},
		{"short document", Viewport{ScrollTop: 0, DocumentHeight: 800, ViewportHeight: 400}, -400, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.vp.BottomPosition(DefaultLookahead); got != tt.wantBottom {
				t.Errorf("BottomPosition() = %v, want %v", got, tt.wantBottom)
			}
			if got := tt.vp.NearBottom(DefaultLookahead); got != tt.wantNear {
				t.Errorf("NearBottom() = %v, want %v", got, tt.wantNear)
			}
		})
	}
}

func TestGate(t *testing.T) {
	var g Gate
	if !g.IsOpen() {
		t.Fatal("zero Gate should be open")
	}
	if !g.TryClose() {
		t.Fatal("first TryClose should succeed")
	}
	if g.TryClose() {
		t.Error("second TryClose should fail while closed")
	}
	g.Reopen()
	if !g.IsOpen() {
		t.Error("Reopen should open the gate")
	}
}

func TestGate_ConcurrentTryClose(t *testing.T) {
	var g Gate
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.TryClose() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	if winners.Load() != 1 {
		t.Errorf("winners = %d, want 1", winners.Load())
	}
}

func TestOnScrollTick_NoSource(t *testing.T) {
	f := pagesOf(3)
	p := New(f, render.NewItemSet())

	if p.OnScrollTick(context.Background(), nearBottom) {
		t.Error("tick without source should not issue a request")
	}
	if _, err := p.Session(); !errors.Is(err, ErrNoSource) {
		t.Errorf("Session() err = %v, want ErrNoSource", err)
	}
	if len(f.Calls()) != 0 {
		t.Errorf("fetch calls = %d, want 0", len(f.Calls()))
	}
}

func TestOnScrollTick_FarFromBottom(t *testing.T) {
	f := pagesOf(3)
	p := New(f, render.NewItemSet())
	if err := p.ConfigureSource(FolderSource("4")); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		if p.OnScrollTick(context.Background(), farFromBottom) {
			t.Fatal("tick far from bottom should not issue a request")
		}
	}
	if len(f.Calls()) != 0 {
		t.Errorf("fetch calls = %d, want 0", len(f.Calls()))
	}
	if !p.GateOpen() {
		t.Error("gate should stay open")
	}
}

func TestOnScrollTick_GateMutualExclusion(t *testing.T) {
	release := make(chan struct{})
	f := &stubFetcher{respond: func(fetch.Request) ([]json.RawMessage, error) {
		<-release
		return fragments(3, "item"), nil
	}}
	items := render.NewItemSet()
	p := New(f, items)
	if err := p.ConfigureSource(FolderSource("4")); err != nil {
		t.Fatal(err)
	}

	var issued atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.OnScrollTick(context.Background(), nearBottom) {
				issued.Add(1)
			}
		}()
	}
	wg.Wait()

	if issued.Load() != 1 {
		t.Fatalf("requests issued = %d, want 1", issued.Load())
	}
	if p.GateOpen() {
		t.Error("gate should be closed while the request is in flight")
	}

	close(release)
	p.Wait()

	if got := len(f.Calls()); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	if f.Calls()[0].URL != "/ajax/html/items/4/1" {
		t.Errorf("requested %s, want page 1", f.Calls()[0].URL)
	}
	if p.Page() != 1 {
		t.Errorf("Page() = %d, want 1", p.Page())
	}
	if !p.GateOpen() {
		t.Error("gate should reopen after a non-empty page")
	}
	if items.Len() != 3 {
		t.Errorf("items = %d, want 3", items.Len())
	}
}

func TestOnScrollTick_EmptyPageTerminates(t *testing.T) {
	f := pagesOf(0)
	p := New(f, render.NewItemSet())
	if err := p.ConfigureSource(FolderSource("4")); err != nil {
		t.Fatal(err)
	}

	if !p.OnScrollTick(context.Background(), nearBottom) {
		t.Fatal("first tick should issue a request")
	}
	p.Wait()

	if p.GateOpen() {
		t.Error("gate should stay closed after an empty page")
	}
	if !p.Exhausted() {
		t.Error("Exhausted() = false, want true")
	}
	for i := 0; i < 5; i++ {
		if p.OnScrollTick(context.Background(), nearBottom) {
			t.Fatal("tick after end of data should not issue a request")
		}
	}
	if got := len(f.Calls()); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}

	// Reconfiguring reopens pagination.
	if err := p.ConfigureSource(FolderSource("5")); err != nil {
		t.Fatal(err)
	}
	if !p.GateOpen() || p.Exhausted() {
		t.Error("new source should start with an open gate")
	}
	if !p.OnScrollTick(context.Background(), nearBottom) {
		t.Error("tick after reconfiguration should issue a request")
	}
	p.Wait()
}

func TestOnScrollTick_FailureReopensGate(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	f := &stubFetcher{respond: func(fetch.Request) ([]json.RawMessage, error) {
		if fail.Load() {
			return nil, &fetch.Error{Class: fetch.ErrorClassNetwork, Message: "request failed"}
		}
		return fragments(2, "item"), nil
	}}

	var results []PageResult
	var mu sync.Mutex
	p := New(f, render.NewItemSet(), WithObserver(func(r PageResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}))
	if err := p.ConfigureSource(FolderSource("4")); err != nil {
		t.Fatal(err)
	}

	if !p.OnScrollTick(context.Background(), nearBottom) {
		t.Fatal("tick should issue a request")
	}
	p.Wait()

	if !p.GateOpen() {
		t.Fatal("gate must reopen after a failed fetch")
	}
	if p.Page() != 0 {
		t.Errorf("Page() = %d, want 0 (failed page not committed)", p.Page())
	}

	fail.Store(false)
	if !p.OnScrollTick(context.Background(), nearBottom) {
		t.Fatal("tick after failure should issue a request")
	}
	p.Wait()

	calls := f.Calls()
	if len(calls) != 2 || calls[0].URL != calls[1].URL {
		t.Errorf("calls = %v, want the same page requested twice", calls)
	}
	if p.Page() != 1 {
		t.Errorf("Page() = %d, want 1", p.Page())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(results) != 2 || results[0].Result != ResultError || results[1].Result != ResultItems {
		t.Errorf("results = %+v, want error then items", results)
	}
}

func TestConfigureSource_ResetsCursor(t *testing.T) {
	items := render.NewItemSet()
	p := New(pagesOf(2), items)
	if err := p.ConfigureSource(FolderSource("4")); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		p.OnScrollTick(context.Background(), nearBottom)
		p.Wait()
	}
	if p.Page() != 3 {
		t.Fatalf("Page() = %d, want 3", p.Page())
	}
	before, _ := p.Session()

	if err := p.ConfigureSource(SearchSource("cats")); err != nil {
		t.Fatal(err)
	}
	if p.Page() != 0 {
		t.Errorf("Page() after ConfigureSource = %d, want 0", p.Page())
	}
	after, _ := p.Session()
	if before == after {
		t.Error("ConfigureSource should start a new session")
	}
	if items.Len() != 6 {
		t.Errorf("ConfigureSource must not clear items: len = %d, want 6", items.Len())
	}
}

func TestConfigureSource_Invalid(t *testing.T) {
	p := New(pagesOf(1), render.NewItemSet())

	if err := p.ConfigureSource(Source{}); err == nil {
		t.Error("expected error for empty template")
	}
	if err := p.ConfigureSource(Source{URLTemplate: "/x", Method: "PUT"}); err == nil {
		t.Error("expected error for unsupported method")
	}
	if err := p.Navigate(context.Background(), Source{}); err == nil {
		t.Error("Navigate should validate the source")
	}
}

func TestNavigate_StaleResultDiscarded(t *testing.T) {
	release := make(chan struct{})
	f := &stubFetcher{respond: func(req fetch.Request) ([]json.RawMessage, error) {
		if req.URL == "/ajax/html/items/old/1" {
			<-release
			return fragments(3, "old"), nil
		}
		return fragments(2, "new"), nil
	}}

	var stale atomic.Int32
	items := render.NewItemSet()
	p := New(f, items, WithObserver(func(r PageResult) {
		if r.Result == ResultStale {
			stale.Add(1)
		}
	}))
	ctx := context.Background()

	if err := p.ConfigureSource(FolderSource("old")); err != nil {
		t.Fatal(err)
	}
	if !p.OnScrollTick(ctx, nearBottom) {
		t.Fatal("tick should issue a request")
	}

	if err := p.Navigate(ctx, FolderSource("new")); err != nil {
		t.Fatal(err)
	}
	close(release)
	p.Wait()

	for _, frag := range items.Items() {
		if strings.HasPrefix(string(frag), "old") {
			t.Fatalf("stale fragment %q appended after navigation", frag)
		}
	}
	if items.Len() != 2 {
		t.Errorf("items = %d, want 2 from the new source", items.Len())
	}
	if stale.Load() != 1 {
		t.Errorf("stale results = %d, want 1", stale.Load())
	}
	if !p.GateOpen() {
		t.Error("stale completion must not disturb the new session's gate")
	}
}

func TestPaginator_HooksRunPerFragment(t *testing.T) {
	var seen []render.Fragment
	hook := func(f render.Fragment) { seen = append(seen, f) }

	p := New(pagesOf(3), render.NewItemSet(), WithHooks(hook))
	if err := p.Navigate(context.Background(), FolderSource("4")); err != nil {
		t.Fatal(err)
	}
	p.Wait()

	if len(seen) != 3 {
		t.Errorf("hook calls = %d, want 3", len(seen))
	}
}

func TestNavigate_ResetsCollectors(t *testing.T) {
	f := &stubFetcher{respond: func(req fetch.Request) ([]json.RawMessage, error) {
		first := 1
		if strings.Contains(req.URL, "/items/b/") {
			first = 100
		}
		var out []json.RawMessage
		for _, html := range testutil.Fragments(first, 2) {
			raw, err := json.Marshal(html)
			if err != nil {
				return nil, err
			}
			out = append(out, raw)
		}
		return out, nil
	}}

	var gallery render.Gallery
	var thumbs render.Thumbnails
	p := New(f, render.NewItemSet(),
		WithHooks(gallery.Hook(), thumbs.Hook()),
		WithResets(gallery.Reset, thumbs.Reset),
	)
	ctx := context.Background()

	for _, folder := range []string{"a", "b"} {
		if err := p.Navigate(ctx, FolderSource(folder)); err != nil {
			t.Fatal(err)
		}
		p.Wait()
	}

	wantGallery := []string{"/fullsize/100", "/fullsize/101"}
	if got := gallery.Items(); !reflect.DeepEqual(got, wantGallery) {
		t.Errorf("gallery = %v, want %v", got, wantGallery)
	}
	wantThumbs := []string{"/preview/100", "/preview/101"}
	if got := thumbs.Take(); !reflect.DeepEqual(got, wantThumbs) {
		t.Errorf("thumbnails = %v, want %v", got, wantThumbs)
	}
}

func TestPaginator_Close(t *testing.T) {
	p := New(pagesOf(3), render.NewItemSet())
	if err := p.ConfigureSource(FolderSource("4")); err != nil {
		t.Fatal(err)
	}
	p.Close()

	if p.OnScrollTick(context.Background(), nearBottom) {
		t.Error("tick after Close should not issue a request")
	}
	if _, err := p.Cursor(); !errors.Is(err, ErrNoSource) {
		t.Errorf("Cursor() err = %v, want ErrNoSource", err)
	}
}

func TestPaginator_FolderBrowsingAgainstServer(t *testing.T) {
	mock := testutil.NewMockLibrary()
	defer mock.Close()
	mock.SetFolderItems("4", testutil.Fragments(1, 7)...)

	client, err := fetch.New(fetch.DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatal(err)
	}

	var gallery render.Gallery
	items := render.NewItemSet()
	p := New(client, items, WithHooks(gallery.Hook()))
	ctx := context.Background()

	if err := p.Navigate(ctx, FolderSource("4")); err != nil {
		t.Fatal(err)
	}
	p.Wait()
	if items.Len() != 3 {
		t.Fatalf("items after navigate = %d, want 3", items.Len())
	}

	for i := 0; i < 5; i++ {
		p.OnScrollTick(ctx, nearBottom)
		p.Wait()
	}

	if items.Len() != 7 {
		t.Errorf("items = %d, want 7", items.Len())
	}
	if !p.Exhausted() {
		t.Error("source should be exhausted")
	}
	if got := len(gallery.Items()); got != 7 {
		t.Errorf("gallery items = %d, want 7", got)
	}

	want := []string{
		"GET /ajax/html/items/4/0",
		"GET /ajax/html/items/4/1",
		"GET /ajax/html/items/4/2",
		"GET /ajax/html/items/4/3",
	}
	got := mock.GetRequests()
	if len(got) != len(want) {
		t.Fatalf("requests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestPaginator_SearchFormAgainstServer(t *testing.T) {
	mock := testutil.NewMockLibrary()
	defer mock.Close()
	mock.SetSearchResults("rating=5", testutil.Fragments(1, 4)...)
	mock.FailNext("/ajax/html/search", 0, 502)

	client, err := fetch.New(fetch.DefaultConfig(mock.URL()))
	if err != nil {
		t.Fatal(err)
	}

	items := render.NewItemSet()
	p := New(client, items)
	ctx := context.Background()

	if err := p.Navigate(ctx, SearchFormSource(map[string][]string{"query": {"rating=5"}})); err != nil {
		t.Fatal(err)
	}
	p.Wait()
	if items.Len() != 3 {
		t.Fatalf("items = %d, want 3", items.Len())
	}

	// 502 on page 1: gate reopens, page stays
	p.OnScrollTick(ctx, nearBottom)
	p.Wait()
	if !p.GateOpen() || p.Page() != 0 {
		t.Fatalf("after failure: gate open = %v, page = %d", p.GateOpen(), p.Page())
	}

	p.OnScrollTick(ctx, nearBottom)
	p.Wait()
	if items.Len() != 4 {
		t.Errorf("items = %d, want 4", items.Len())
	}
}
