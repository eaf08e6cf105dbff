package tree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RootID is the reserved ID of the node opened when the root listing loads.
const RootID = "root"

// topLevelParent marks a descriptor without a parent in the listing.
const topLevelParent = "#"

// AncestorChain lists node IDs from the root to a target node.
type AncestorChain []string

// Descriptor is a node as served by the folders endpoint:
//
//	{"id": "folder-4", "parent": "library-1", "text": "Holidays", "children": true}
//
// "children" is either a flag telling whether the node has children to load, or
// an inline array of child descriptors. IDs may be strings or numbers.
type Descriptor struct {
	ID          string
	Parent      string
	Text        string
	HasChildren bool
	Children    []Descriptor
}

type rawDescriptor struct {
	ID       json.RawMessage `json:"id"`
	Parent   json.RawMessage `json:"parent"`
	Text     string          `json:"text"`
	Children json.RawMessage `json:"children"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var raw rawDescriptor
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	id, err := identifier(raw.ID)
	if err != nil {
		return fmt.Errorf("node id: %w", err)
	}
	if id == "" {
		return fmt.Errorf("node id is missing")
	}
	parent, err := identifier(raw.Parent)
	if err != nil {
		return fmt.Errorf("node %s parent: %w", id, err)
	}

	*d = Descriptor{ID: id, Parent: parent, Text: raw.Text}

	children := bytes.TrimSpace(raw.Children)
	switch {
	case len(children) == 0, bytes.Equal(children, []byte("null")):
	case children[0] == '[':
		if err := json.Unmarshal(children, &d.Children); err != nil {
			return fmt.Errorf("node %s children: %w", id, err)
		}
		d.HasChildren = len(d.Children) > 0
	default:
		if err := json.Unmarshal(children, &d.HasChildren); err != nil {
			return fmt.Errorf("node %s children: %w", id, err)
		}
	}
	return nil
}

// identifier accepts a JSON string or number.
func identifier(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// DecodeDescriptors decodes the elements of a folders endpoint response.
func DecodeDescriptors(items []json.RawMessage) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(items))
	for i, raw := range items {
		var d Descriptor
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode node %d: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Node is a tree node owned by a Loader. Its accessors take the loader's
// lock, so they are safe to call from any goroutine.
type Node struct {
	loader *Loader
	id     string
	text   string
	parent *Node

	children    []*Node
	hasChildren bool
	loaded      bool
	loading     bool
	open        bool
	selected    bool
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// Text returns the node label.
func (n *Node) Text() string { return n.text }

// Parent returns the parent node, or nil for a top-level node.
func (n *Node) Parent() *Node {
	if n.parent == nil || n.parent == n.loader.top {
		return nil
	}
	return n.parent
}

// Children returns the loaded children.
func (n *Node) Children() []*Node {
	n.loader.mu.Lock()
	defer n.loader.mu.Unlock()
	return append([]*Node(nil), n.children...)
}

// IsLoaded reports whether the children have been fetched.
func (n *Node) IsLoaded() bool {
	n.loader.mu.Lock()
	defer n.loader.mu.Unlock()
	return n.loaded
}

// IsOpen reports whether the node is expanded.
func (n *Node) IsOpen() bool {
	n.loader.mu.Lock()
	defer n.loader.mu.Unlock()
	return n.open
}

// IsSelected reports whether the node is selected.
func (n *Node) IsSelected() bool {
	n.loader.mu.Lock()
	defer n.loader.mu.Unlock()
	return n.selected
}

// Path returns the IDs from the top level down to n.
func (n *Node) Path() AncestorChain {
	var chain AncestorChain
	for cur := n; cur != nil && cur != n.loader.top; cur = cur.parent {
		chain = append(AncestorChain{cur.id}, chain...)
	}
	return chain
}

func (n *Node) String() string {
	return n.id
}

// isLeaf reports whether opening n can never reveal anything.
func (n *Node) isLeaf() bool {
	return n.loaded && len(n.children) == 0
}
