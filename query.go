package epubtext

import (
	"sort"
	"strings"

	"github.com/antchfx/xpath"
)

// Query evaluates an XPath expression against the subtree rooted at n and
// returns the first match in document order, or nil if nothing matches.
// Absolute paths are resolved against a virtual document node directly
// above n, so "/html/body" works when n is the parsed root. Expressions
// that select attributes resolve to the attribute's element. Text values
// seen by the expression are raw, as stored in the tree.
func Query(n *Node, expr string) (*Node, error) {
	x, err := xpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	iter := x.Select(newNavigator(n))
	if !iter.MoveNext() {
		return nil, nil
	}
	return iter.Current().(*nodeNavigator).cur, nil
}

// QueryAll evaluates an XPath expression against the subtree rooted at n
// and returns every match in document order. See Query for resolution
// rules.
func QueryAll(n *Node, expr string) ([]*Node, error) {
	x, err := xpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	iter := x.Select(newNavigator(n))
	var out []*Node
	for iter.MoveNext() {
		out = append(out, iter.Current().(*nodeNavigator).cur)
	}
	return out, nil
}

// nodeNavigator adapts a Node tree to the xpath.NodeNavigator cursor model.
// A virtual document node sits above the tree root so that absolute paths
// and the root axis behave as they would over a full document.
type nodeNavigator struct {
	root, cur *Node
	onDoc     bool
	attrKeys  []string
	attrIx    int
}

func newNavigator(root *Node) *nodeNavigator {
	return &nodeNavigator{root: root, cur: root, onDoc: true, attrIx: -1}
}

// splitName separates an optional "prefix:" from a name. Matching is plain
// string comparison; there is no namespace resolution.
func splitName(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func (n *nodeNavigator) NodeType() xpath.NodeType {
	if n.onDoc {
		return xpath.RootNode
	}
	if n.attrIx >= 0 {
		return xpath.AttributeNode
	}
	switch n.cur.Type {
	case ElementNode:
		return xpath.ElementNode
	default:
		return xpath.TextNode
	}
}

func (n *nodeNavigator) LocalName() string {
	if n.onDoc {
		return ""
	}
	if n.attrIx >= 0 {
		_, local := splitName(n.attrKeys[n.attrIx])
		return local
	}
	_, local := splitName(n.cur.Name)
	return local
}

func (n *nodeNavigator) Prefix() string {
	if n.onDoc {
		return ""
	}
	if n.attrIx >= 0 {
		prefix, _ := splitName(n.attrKeys[n.attrIx])
		return prefix
	}
	prefix, _ := splitName(n.cur.Name)
	return prefix
}

func (n *nodeNavigator) Value() string {
	if n.onDoc {
		return n.root.TextContent()
	}
	if n.attrIx >= 0 {
		return n.cur.Attributes[n.attrKeys[n.attrIx]]
	}
	switch n.cur.Type {
	case TextNode, WhitespaceNode:
		return n.cur.Data
	default:
		return n.cur.TextContent()
	}
}

func (n *nodeNavigator) Copy() xpath.NodeNavigator {
	cp := *n
	return &cp
}

func (n *nodeNavigator) MoveToRoot() {
	n.cur = n.root
	n.onDoc = true
	n.attrKeys = nil
	n.attrIx = -1
}

func (n *nodeNavigator) MoveToParent() bool {
	if n.attrIx >= 0 {
		n.attrKeys = nil
		n.attrIx = -1
		return true
	}
	if n.onDoc {
		return false
	}
	if n.cur == n.root {
		n.onDoc = true
		return true
	}
	p := n.cur.Parent()
	if p == nil {
		return false
	}
	n.cur = p
	return true
}

func (n *nodeNavigator) MoveToChild() bool {
	if n.attrIx >= 0 {
		return false
	}
	if n.onDoc {
		if n.root == nil {
			return false
		}
		n.onDoc = false
		return true
	}
	if n.cur.NumChildren() == 0 {
		return false
	}
	n.cur = n.cur.Children[0]
	return true
}

func (n *nodeNavigator) MoveToFirst() bool {
	if n.attrIx >= 0 || n.onDoc {
		return false
	}
	p := n.cur.Parent()
	if p == nil || p.Children[0] == n.cur {
		return false
	}
	n.cur = p.Children[0]
	return true
}

func (n *nodeNavigator) MoveToNext() bool {
	if n.attrIx >= 0 || n.onDoc {
		return false
	}
	p := n.cur.Parent()
	if p == nil {
		return false
	}
	i := siblingIndex(p, n.cur)
	if i < 0 || i+1 >= len(p.Children) {
		return false
	}
	n.cur = p.Children[i+1]
	return true
}

func (n *nodeNavigator) MoveToPrevious() bool {
	if n.attrIx >= 0 || n.onDoc {
		return false
	}
	p := n.cur.Parent()
	if p == nil {
		return false
	}
	i := siblingIndex(p, n.cur)
	if i <= 0 {
		return false
	}
	n.cur = p.Children[i-1]
	return true
}

// MoveToNextAttribute steps from an element to its first attribute, and
// then through the remaining attributes in sorted key order.
func (n *nodeNavigator) MoveToNextAttribute() bool {
	if n.onDoc || n.cur.Type != ElementNode {
		return false
	}
	if n.attrIx < 0 {
		n.attrKeys = sortedAttrKeys(n.cur.Attributes)
	}
	if n.attrIx+1 >= len(n.attrKeys) {
		return false
	}
	n.attrIx++
	return true
}

func (n *nodeNavigator) MoveToAttribute(ns, name string) bool {
	if n.onDoc || n.cur.Type != ElementNode {
		return false
	}
	keys := sortedAttrKeys(n.cur.Attributes)
	for i, k := range keys {
		prefix, local := splitName(k)
		if local == name && (ns == "" || prefix == ns) {
			n.attrKeys = keys
			n.attrIx = i
			return true
		}
	}
	return false
}

func (n *nodeNavigator) MoveToNamespace(string) bool { return false }

func (n *nodeNavigator) MoveToNextNamespace() bool { return false }

func (n *nodeNavigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*nodeNavigator)
	if !ok || o.root != n.root {
		return false
	}
	n.cur = o.cur
	n.onDoc = o.onDoc
	n.attrKeys = o.attrKeys
	n.attrIx = o.attrIx
	return true
}

func siblingIndex(parent, child *Node) int {
	for i, c := range parent.Children {
		if c == child {
			return i
		}
	}
	return -1
}

func sortedAttrKeys(attrs map[string]string) []string {
	if len(attrs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
