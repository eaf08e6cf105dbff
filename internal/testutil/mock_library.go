// Package testutil provides a mock media-library server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPageSize mirrors the server's ITEMS_PER_PAGE setting.
const DefaultPageSize = 3

// Node is a tree node descriptor as served by the folders endpoint.
type Node struct {
	ID       string `json:"id"`
	Parent   string `json:"parent"`
	Text     string `json:"text"`
	Children bool   `json:"children"`
}

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockLibrary is a configurable mock media-library server for testing.
//
// Routes served by default:
//
//	GET  /ajax/folders[?id=<node>]           node descriptors
//	GET  /ajax/html/items/<folder>/<page>    folder item fragments
//	GET  /ajax/html/search?query=&page=      search fragments
//	POST /ajax/html/search (form query, page) search fragments
type MockLibrary struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	nodes    map[string][]Node
	items    map[string][]string
	searches map[string][]string
	failures map[string][]int
	delay    time.Duration

	PageSize int

	// Tracking
	RequestCount      int
	Requests          []string
	LastRequestHeader http.Header
}

// NewMockLibrary creates a new mock server.
func NewMockLibrary() *MockLibrary {
	mock := &MockLibrary{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
		nodes:    make(map[string][]Node),
		items:    make(map[string][]string),
		searches: make(map[string][]string),
		failures: make(map[string][]int),
		PageSize: DefaultPageSize,
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.Requests = append(mock.Requests, r.Method+" "+r.URL.RequestURI())
		mock.LastRequestHeader = r.Header.Clone()
		delay := mock.delay
		status := mock.popFailure(r.URL.Path)
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockLibrary) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockLibrary) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockLibrary) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.Requests = nil
	m.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockLibrary) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockLibrary) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetDelay delays every response.
func (m *MockLibrary) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// SetNodes sets the descriptors returned for parentID ("" for the root listing).
func (m *MockLibrary) SetNodes(parentID string, nodes ...Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[parentID] = nodes
}

// SetFolderItems sets all fragments of a folder; they are served PageSize at a time.
func (m *MockLibrary) SetFolderItems(folderID string, fragments ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[folderID] = fragments
}

// SetSearchResults sets all fragments matching query.
func (m *MockLibrary) SetSearchResults(query string, fragments ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[query] = fragments
}

// FailNext makes the next requests to path fail with the given status codes, in order.
func (m *MockLibrary) FailNext(path string, statuses ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], statuses...)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockLibrary) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetRequests returns "METHOD /path?query" for every request, in arrival order.
func (m *MockLibrary) GetRequests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Requests...)
}

// popFailure must be called with m.mu held.
func (m *MockLibrary) popFailure(path string) int {
	queue := m.failures[path]
	if len(queue) == 0 {
		return 0
	}
	m.failures[path] = queue[1:]
	return queue[0]
}

func (m *MockLibrary) defaultHandler(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/ajax/folders":
		m.serveNodes(w, r)
	case strings.HasPrefix(r.URL.Path, "/ajax/html/items/"):
		m.serveFolderItems(w, r)
	case r.URL.Path == "/ajax/html/search":
		m.serveSearch(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (m *MockLibrary) serveNodes(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "#" {
		id = ""
	}

	m.mu.RLock()
	nodes, ok := m.nodes[id]
	m.mu.RUnlock()

	if !ok {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	writeJSON(w, nodes)
}

func (m *MockLibrary) serveFolderItems(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/ajax/html/items/"), "/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	m.mu.RLock()
	all := m.items[parts[0]]
	m.mu.RUnlock()

	writeJSON(w, m.page(all, page))
}

func (m *MockLibrary) serveSearch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := strconv.Atoi(r.Form.Get("page"))
	if err != nil {
		writeJSON(w, map[string]any{
			"submit_status": "error",
			"fields":        map[string][]string{"page": {"This field is required."}},
		})
		return
	}

	m.mu.RLock()
	all := m.searches[r.Form.Get("query")]
	m.mu.RUnlock()

	writeJSON(w, m.page(all, page))
}

func (m *MockLibrary) page(all []string, page int) []string {
	size := m.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	start := page * size
	if page < 0 || start >= len(all) {
		return []string{}
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// ThumbnailFragment renders an item card like the server's library_html.
func ThumbnailFragment(id int, name string) string {
	return fmt.Sprintf(`<div class="card">
    <div class="libraries-thumbnail-wrapper" data-src="/preview/%[1]d">
        <a href="/libraries/test/%[2]s" class="thumbnail" data-fullsize="/fullsize/%[1]d">
            <noscript><img class="libraries-thumbnail" src="/preview/%[1]d" alt="%[2]s" /></noscript>
        </a>
    </div>
    <h3 class="card-title">%[2]s</h3>
</div>`, id, name)
}

// Fragments renders n thumbnail fragments with ids starting at first.
func Fragments(first, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ThumbnailFragment(first+i, fmt.Sprintf("item-%d", first+i)))
	}
	return out
}
