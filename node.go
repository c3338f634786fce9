package epubtext

import "strings"

// NodeType identifies the kind of a Node in a parsed document tree.
type NodeType int

const (
	// ElementNode is a markup element with a tag name, attributes, and children.
	ElementNode NodeType = iota

	// TextNode is a run of character data. The content is stored raw;
	// pass it through DecodeEntities to obtain display text.
	TextNode

	// WhitespaceNode is a run consisting entirely of whitespace separating
	// two pieces of markup. It is kept distinct from TextNode so that
	// consumers can tell a meaningful blank gap between elements apart from
	// ordinary text when deciding how to reflow content.
	WhitespaceNode
)

// String returns the name of the node type.
func (t NodeType) String() string {
	switch t {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case WhitespaceNode:
		return "whitespace"
	}
	return "unknown"
}

// Node is a single node in a parsed document tree. Exactly one variant is
// populated depending on Type: elements carry Name, Attributes and Children;
// text and whitespace nodes carry Data.
type Node struct {
	// Type discriminates the variant (element, text, or whitespace).
	Type NodeType

	// Name is the element tag name. Empty for text and whitespace nodes.
	Name string

	// Data is the raw, un-decoded content of a text or whitespace node.
	// Empty for elements.
	Data string

	// Offset is the byte offset into the original input where this node's
	// syntactic start occurs: the "<" for elements, the first content byte
	// for text and whitespace. Offsets are byte indices, not code-point
	// indices; content with multi-byte characters must be sliced with care.
	Offset int

	// Attributes maps attribute keys to values for elements. If the source
	// repeats a key, the last occurrence wins. Nil when the element has no
	// attributes.
	Attributes map[string]string

	// Children holds the element's child nodes in document order.
	Children []*Node

	// parent is set during tree construction and read via Parent.
	parent *Node
}

// ---------------------------------------------------------------------------
// Constructors (used by the parser)
// ---------------------------------------------------------------------------

func newElement(name string, offset int, attrs map[string]string, children []*Node) *Node {
	n := &Node{
		Type:       ElementNode,
		Name:       name,
		Offset:     offset,
		Attributes: attrs,
		Children:   children,
	}
	for _, c := range children {
		c.parent = n
	}
	return n
}

func newText(data string, offset int) *Node {
	return &Node{Type: TextNode, Data: data, Offset: offset}
}

func newWhitespace(data string, offset int) *Node {
	return &Node{Type: WhitespaceNode, Data: data, Offset: offset}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// TagName returns the element name, or "" if n is not an element.
func (n *Node) TagName() string {
	if n == nil || n.Type != ElementNode {
		return ""
	}
	return n.Name
}

// Attr returns the value of the named attribute and whether it was present.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.Type != ElementNode {
		return "", false
	}
	v, ok := n.Attributes[name]
	return v, ok
}

// AttrOr returns the value of the named attribute, or def if absent.
func (n *Node) AttrOr(name, def string) string {
	if v, ok := n.Attr(name); ok {
		return v
	}
	return def
}

// Child returns the i'th child, or nil if i is out of range.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// NumChildren returns the number of direct children.
func (n *Node) NumChildren() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}

// Parent returns the node's parent, or nil for the root of a parse.
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	return n.parent
}

// Text returns the node's own raw content for text and whitespace nodes.
// For elements it descends through first children until it reaches a text
// or whitespace node, so that the leading text of a wrapped run is found
// without the caller walking the tree. Returns "" when no text exists on
// that path. The result is raw; pass it through DecodeEntities for display.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case TextNode, WhitespaceNode:
		return n.Data
	}
	return n.Child(0).Text()
}

// TextContent returns the concatenated raw content of every text and
// whitespace node in the subtree, in document order.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case TextNode, WhitespaceNode:
		return n.Data
	}
	var b strings.Builder
	n.writeTextContent(&b)
	return b.String()
}

func (n *Node) writeTextContent(b *strings.Builder) {
	switch n.Type {
	case TextNode, WhitespaceNode:
		b.WriteString(n.Data)
	default:
		for _, c := range n.Children {
			c.writeTextContent(b)
		}
	}
}

// Find returns the first element named name in the subtree rooted at n,
// in document order, considering n itself first. Returns nil if none match.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	if n.Type == ElementNode && n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if m := c.Find(name); m != nil {
			return m
		}
	}
	return nil
}

// FindAll returns every element named name in the subtree rooted at n,
// in document order, considering n itself first.
func (n *Node) FindAll(name string) []*Node {
	var out []*Node
	n.appendAll(name, &out)
	return out
}

func (n *Node) appendAll(name string, out *[]*Node) {
	if n == nil {
		return
	}
	if n.Type == ElementNode && n.Name == name {
		*out = append(*out, n)
	}
	for _, c := range n.Children {
		c.appendAll(name, out)
	}
}

// ---------------------------------------------------------------------------
// Lenient lookups
//
// Real e-book files mix namespace prefixes and casing freely (dc:title,
// dcterms:title, DC:Title). The helpers below match on the local part of a
// name, case-insensitively, without doing namespace resolution.
// ---------------------------------------------------------------------------

func localName(name string) string {
	_, local := splitName(name)
	return local
}

func matchLocal(n *Node, local string) bool {
	return n != nil && n.Type == ElementNode && strings.EqualFold(localName(n.Name), local)
}

// findLocal returns the first element in the subtree whose local name matches,
// in document order, considering n itself first.
func findLocal(n *Node, local string) *Node {
	if n == nil {
		return nil
	}
	if matchLocal(n, local) {
		return n
	}
	for _, c := range n.Children {
		if m := findLocal(c, local); m != nil {
			return m
		}
	}
	return nil
}

// findAllLocal returns every element in the subtree whose local name matches,
// in document order.
func findAllLocal(n *Node, local string) []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if matchLocal(n, local) {
			out = append(out, n)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// childLocal returns n's first direct child element whose local name matches.
func childLocal(n *Node, local string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if matchLocal(c, local) {
			return c
		}
	}
	return nil
}

// childrenLocal returns n's direct child elements whose local name matches,
// in document order.
func childrenLocal(n *Node, local string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if matchLocal(c, local) {
			out = append(out, c)
		}
	}
	return out
}

// attrLocal returns the entity-decoded value of the attribute whose key's
// local part matches, ignoring case. An exact key match wins; otherwise
// prefixed keys (opf:role, xlink:href) are scanned in sorted order. Returns
// "" when absent.
func attrLocal(n *Node, local string) string {
	if n == nil || n.Type != ElementNode {
		return ""
	}
	if v, ok := n.Attributes[local]; ok {
		return DecodeEntities(v)
	}
	for _, k := range sortedAttrKeys(n.Attributes) {
		if strings.EqualFold(localName(k), local) {
			return DecodeEntities(n.Attributes[k])
		}
	}
	return ""
}

// elementText returns the decoded, whitespace-normalized text content of an
// element subtree: entity references expanded, runs of whitespace collapsed,
// leading and trailing whitespace removed.
func elementText(n *Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(collapseWhitespace(DecodeEntities(n.TextContent())))
}
