package tree

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/Sternrassler/media-browser/pkg/fetch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Loader errors.
var (
	// ErrAlreadyLoaded is returned by LoadRoot once the root listing was requested.
	ErrAlreadyLoaded = errors.New("tree root already loaded")

	// ErrPathRegistered is returned when ExpandPath is called a second time.
	ErrPathRegistered = errors.New("ancestor chain already registered")

	// ErrSelectionInvariant is returned when selecting a target does not leave
	// exactly that node selected.
	ErrSelectionInvariant = errors.New("selection invariant violated")

	// ErrTornDown is returned by operations on a torn down loader.
	ErrTornDown = errors.New("tree loader torn down")

	// ErrNotLoaded is returned by OpenID before the root listing is rendered.
	ErrNotLoaded = errors.New("tree not loaded")
)

// Fetch kinds used in logs and metrics.
const (
	kindRoot = "root"
	kindNode = "node"
)

// Loader presents a hierarchy fetched incrementally from a folders endpoint.
// Construct one per navigation.
type Loader struct {
	mu       sync.Mutex
	fetcher  fetch.Fetcher
	rootID   string
	nodesURL string
	state    State

	// top holds the top-level nodes of the root listing
	top *Node

	chain      AncestorChain
	completion *Completion

	// events are opened nodes whose path walk is pending, in delivery order
	events []*Node

	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	logger   zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithRootID overrides RootID, the node opened once the root listing loads.
func WithRootID(id string) Option {
	return func(l *Loader) {
		if id != "" {
			l.rootID = id
		}
	}
}

// NewLoader creates an unloaded tree.
func NewLoader(fetcher fetch.Fetcher, opts ...Option) *Loader {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	l := &Loader{
		fetcher: fetcher,
		rootID:  RootID,
		state:   StateUnloaded,
		logger:  log.With().Str("component", "tree").Logger(),
	}
	l.top = &Node{loader: l, loaded: true, open: true}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadRoot requests the root listing from nodesURL. It returns once the
// request is issued; when the listing arrives the root node is opened.
// ctx bounds every fetch the loader makes until Teardown or a retried LoadRoot.
func (l *Loader) LoadRoot(ctx context.Context, nodesURL string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateTornDown {
		return ErrTornDown
	}
	if l.state != StateUnloaded {
		return ErrAlreadyLoaded
	}

	// A retry after a failed root fetch must not inherit a dead context.
	if l.cancel != nil {
		l.cancel()
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.nodesURL = nodesURL
	l.transition(StateRootRequested)
	l.startFetch(l.top, kindRoot)
	return nil
}

// ExpandPath registers chain and returns its completion. An empty chain yields
// a completion that never resolves. If the root is already open the chain is
// walked immediately.
func (l *Loader) ExpandPath(chain AncestorChain) (*Completion, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateTornDown {
		return nil, ErrTornDown
	}
	if l.completion != nil {
		return nil, ErrPathRegistered
	}

	l.chain = append(AncestorChain(nil), chain...)
	l.completion = newCompletion()

	l.logger.Debug().Strs("chain", l.chain).Msg("Ancestor chain registered")

	if len(l.chain) > 0 && l.state == StateRootOpen {
		l.transition(StatePathResolving)
		l.walk(l.top)
		l.drain()
	}
	return l.completion, nil
}

// Open expands n, fetching its children the first time. Opening an open
// node, a leaf, or a node whose fetch is in flight does nothing.
func (l *Loader) Open(n *Node) {
	if n == nil || n.loader != l {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateTornDown {
		return
	}
	l.open(n)
	l.drain()
}

// OpenID opens every rendered node with id and returns how many matched.
func (l *Loader) OpenID(id string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateTornDown:
		return 0, ErrTornDown
	case StateUnloaded, StateRootRequested:
		return 0, ErrNotLoaded
	}

	matches := l.find(id)
	for _, n := range matches {
		l.open(n)
	}
	l.drain()
	return len(matches), nil
}

// Close collapses n; its descendants leave the rendered set.
func (l *Loader) Close(n *Node) {
	if n == nil || n.loader != l {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if n.open {
		n.open = false
		l.logger.Debug().Str("node", n.id).Msg("Node closed")
	}
}

// Rendered returns the top-level nodes and the descendants of open nodes,
// in display order.
func (l *Loader) Rendered() []*Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rendered()
}

// Find returns every rendered node with id. IDs are not unique.
func (l *Loader) Find(id string) []*Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.find(id)
}

// Selected returns every selected node, rendered or not.
func (l *Loader) Selected() []*Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Node
	l.visit(l.top, func(n *Node) {
		if n.selected {
			out = append(out, n)
		}
	})
	return out
}

// SelectTarget deselects all nodes and selects res.Target. It fails with
// ErrSelectionInvariant unless exactly the target ends up selected.
func (l *Loader) SelectTarget(res Resolution) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateTornDown {
		return ErrTornDown
	}
	if res.Target == nil || res.Target.loader != l {
		return ErrSelectionInvariant
	}

	l.visit(l.top, func(n *Node) { n.selected = false })
	res.Target.selected = true

	var selected []*Node
	l.visit(l.top, func(n *Node) {
		if n.selected {
			selected = append(selected, n)
		}
	})
	if len(selected) != 1 || selected[0] != res.Target {
		l.logger.Error().
			Str("target", res.Target.id).
			Int("selected", len(selected)).
			Msg("Selection invariant violated")
		return ErrSelectionInvariant
	}

	l.logger.Debug().Str("node", res.Target.id).Msg("Target selected")
	return nil
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Wait blocks until no fetch is in flight.
func (l *Loader) Wait() {
	l.inflight.Wait()
}

// Teardown cancels in-flight fetches and discards the tree. Late results are
// dropped and waiters on the completion return ErrTornDown.
func (l *Loader) Teardown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateTornDown {
		return
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.transition(StateTornDown)
	l.top.children = nil
	l.events = nil
	if l.completion != nil {
		l.completion.abandon()
	}
}

// transition must be called with l.mu held.
func (l *Loader) transition(to State) bool {
	if !CanTransition(l.state, to) {
		l.logger.Warn().
			Str("from", l.state.String()).
			Str("to", to.String()).
			Msg("Refusing illegal state transition")
		return false
	}
	l.logger.Debug().
		Str("from", l.state.String()).
		Str("to", to.String()).
		Msg("State transition")
	l.state = to
	treeTransitionsTotal.WithLabelValues(to.String()).Inc()
	return true
}

// open must be called with l.mu held. It either queues a node-opened event or
// starts the fetch that will.
func (l *Loader) open(n *Node) {
	switch {
	case n.open, n.loading:
		return
	case !n.loaded:
		l.startFetch(n, kindNode)
	case n.isLeaf():
		return
	default:
		n.open = true
		l.events = append(l.events, n)
	}
}

// startFetch must be called with l.mu held.
func (l *Loader) startFetch(n *Node, kind string) {
	req := fetch.Request{URL: l.nodesURL, Method: fetch.MethodGet}
	if kind == kindNode {
		req.Args = url.Values{"id": {n.id}}
	}
	n.loading = true
	l.inflight.Add(1)

	l.logger.Debug().Str("node", n.id).Str("kind", kind).Msg("Fetching node listing")

	go l.load(l.ctx, n, kind, req)
}

func (l *Loader) load(ctx context.Context, n *Node, kind string, req fetch.Request) {
	defer l.inflight.Done()

	start := time.Now()
	items, err := l.fetcher.Fetch(ctx, req)
	var descs []Descriptor
	if err == nil {
		descs, err = DecodeDescriptors(items)
	}
	treeFetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()

	n.loading = false
	if l.state == StateTornDown {
		treeFetchesTotal.WithLabelValues(kind, "discarded").Inc()
		return
	}

	if err != nil {
		treeFetchesTotal.WithLabelValues(kind, "error").Inc()
		l.logger.Warn().
			Err(err).
			Str("node", n.id).
			Str("kind", kind).
			Str("error_class", string(fetch.ClassOf(err))).
			Msg("Node listing fetch failed")
		if kind == kindRoot {
			l.transition(StateUnloaded)
		}
		return
	}
	treeFetchesTotal.WithLabelValues(kind, "ok").Inc()

	l.attach(n, descs)

	if kind == kindRoot {
		l.transition(StateRootOpen)
		roots := l.find(l.rootID)
		if len(roots) == 0 {
			l.logger.Warn().Str("root_id", l.rootID).Msg("Root listing has no root node")
		}
		for _, r := range roots {
			l.open(r)
		}
	} else {
		n.open = true
		l.events = append(l.events, n)
	}
	l.drain()
}

// attach must be called with l.mu held. Descriptors whose parent appears
// earlier in the same listing are nested under it; all others become
// children of target.
func (l *Loader) attach(target *Node, descs []Descriptor) {
	index := make(map[string]*Node)
	var add func(parent *Node, d Descriptor)
	add = func(parent *Node, d Descriptor) {
		child := &Node{
			loader:      l,
			id:          d.ID,
			text:        d.Text,
			parent:      parent,
			hasChildren: d.HasChildren,
			loaded:      !d.HasChildren,
		}
		parent.children = append(parent.children, child)
		parent.loaded = true
		if _, seen := index[d.ID]; !seen {
			index[d.ID] = child
		}
		for _, c := range d.Children {
			add(child, c)
		}
	}

	for _, d := range descs {
		parent := target
		if d.Parent != "" && d.Parent != topLevelParent {
			if p, ok := index[d.Parent]; ok {
				parent = p
			}
		}
		add(parent, d)
	}
	target.loaded = true

	l.logger.Debug().Str("node", target.id).Int("nodes", len(descs)).Msg("Node listing attached")
}

// drain must be called with l.mu held. Walks queued by a walk are appended
// to the queue rather than run recursively.
func (l *Loader) drain() {
	for len(l.events) > 0 {
		n := l.events[0]
		l.events = l.events[1:]
		treeNodesOpened.Inc()

		l.logger.Debug().Str("node", n.id).Msg("Node opened")

		switch l.state {
		case StateRootOpen:
			if len(l.chain) == 0 {
				continue
			}
			l.transition(StatePathResolving)
		case StatePathResolving:
		default:
			continue
		}
		l.walk(n)
	}
}

// walk must be called with l.mu held. opened is the node whose opening
// triggered the walk.
func (l *Loader) walk(opened *Node) {
	last := len(l.chain) - 1
	for i, id := range l.chain {
		for _, match := range l.find(id) {
			l.open(match)
			if i == last && l.state == StatePathResolving {
				parent := opened
				if parent == l.top {
					parent = match.Parent()
				}
				if l.completion.resolve(Resolution{Parent: parent, Target: match}) {
					treePathResolutions.Inc()
					l.transition(StatePathResolved)
					l.logger.Info().
						Str("target", match.id).
						Strs("chain", l.chain).
						Msg("Path resolved")
				}
			}
		}
	}
}

// rendered must be called with l.mu held.
func (l *Loader) rendered() []*Node {
	var out []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		for _, c := range n.children {
			out = append(out, c)
			if c.open {
				walk(c)
			}
		}
	}
	walk(l.top)
	return out
}

// find must be called with l.mu held.
func (l *Loader) find(id string) []*Node {
	var out []*Node
	for _, n := range l.rendered() {
		if n.id == id {
			out = append(out, n)
		}
	}
	return out
}

// visit must be called with l.mu held. It calls fn for every loaded node.
func (l *Loader) visit(n *Node, fn func(*Node)) {
	for _, c := range n.children {
		fn(c)
		l.visit(c, fn)
	}
}

// MarshalJSON encodes n and its loaded descendants.
func (n *Node) MarshalJSON() ([]byte, error) {
	n.loader.mu.Lock()
	defer n.loader.mu.Unlock()
	return json.Marshal(n.view())
}

type nodeView struct {
	ID       string     `json:"id"`
	Text     string     `json:"text,omitempty"`
	Open     bool       `json:"open,omitempty"`
	Selected bool       `json:"selected,omitempty"`
	Children []nodeView `json:"children,omitempty"`
}

// view must be called with the loader lock held.
func (n *Node) view() nodeView {
	v := nodeView{ID: n.id, Text: n.text, Open: n.open, Selected: n.selected}
	for _, c := range n.children {
		v.Children = append(v.Children, c.view())
	}
	return v
}
