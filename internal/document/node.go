// Package document turns fetched HTML into a pruned DocTree and a normalized
// list of outbound links.
package document

import (
	"encoding/json"
	"fmt"
)

// Node is one entry of a DocTree. Text nodes carry only Text; element nodes
// carry Tag, Children and Attrs.
type Node struct {
	Text     string
	Tag      string
	Children []*Node
	Attrs    map[string]string
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool {
	return n.Tag == ""
}

// Attr returns the named attribute, or "" when absent.
func (n *Node) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// Walk calls fn for n and every descendant in document order.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

type textJSON struct {
	Text string `json:"text"`
}

type elementJSON struct {
	Tag      string            `json:"tag"`
	Children []*Node           `json:"children"`
	Attrs    map[string]string `json:"attrs"`
}

// MarshalJSON encodes text nodes as {"text": ...} and elements as
// {"tag": ..., "children": [...], "attrs": {...}}.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.IsText() {
		return json.Marshal(textJSON{Text: n.Text})
	}
	children := n.Children
	if children == nil {
		children = []*Node{}
	}
	attrs := n.Attrs
	if attrs == nil {
		attrs = map[string]string{}
	}
	return json.Marshal(elementJSON{Tag: n.Tag, Children: children, Attrs: attrs})
}

// UnmarshalJSON decodes either wire shape.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if _, ok := raw["tag"]; !ok {
		var t textJSON
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		if _, ok := raw["text"]; !ok {
			return fmt.Errorf("doc node has neither tag nor text")
		}
		*n = Node{Text: t.Text}
		return nil
	}

	var e elementJSON
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	if e.Tag == "" {
		return fmt.Errorf("doc node has an empty tag")
	}
	*n = Node{Tag: e.Tag, Children: e.Children, Attrs: e.Attrs}
	return nil
}
