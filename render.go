package epubtext

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// voidTags render without children or an end tag.
var voidTags = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

// RenderHTML serializes a parsed subtree back to sanitized XHTML. Script
// and style elements are dropped, event handler attributes (on*) and
// unsafe URI schemes are stripped, and attributes render in sorted key
// order. Text is entity-decoded and re-escaped, so an unrecognized
// reference comes out as escaped literal text rather than raw markup.
// The synthetic document element produced by [Parse] renders as its
// children, so whole documents round-trip without a wrapper tag.
func RenderHTML(n *Node) string {
	var b strings.Builder
	if isDocumentRoot(n) {
		for _, c := range n.Children {
			renderNode(&b, c, renderOptions{})
		}
	} else {
		renderNode(&b, n, renderOptions{})
	}
	return strings.TrimSpace(b.String())
}

// isDocumentRoot reports whether n is the synthetic document element that
// Parse wraps every input in, as opposed to a real element named "root"
// somewhere in content. Only the wrapper has no parent.
func isDocumentRoot(n *Node) bool {
	return n != nil && n.Type == ElementNode && n.Name == "root" && n.parent == nil
}

// BodyHTML renders the sanitized inner markup of the document's body
// element. Relative image references resolve against basePath when it is
// non-empty. A document without a body element renders in full, so bare
// fragments and malformed chapter files still produce output; a synthetic
// "root" wrapper renders as its children.
func BodyHTML(doc *Node, basePath string) string {
	opts := renderOptions{basePath: basePath}
	var b strings.Builder
	if body := findBody(doc); body != nil {
		for _, c := range body.Children {
			renderNode(&b, c, opts)
		}
	} else if isDocumentRoot(doc) {
		for _, c := range doc.Children {
			renderNode(&b, c, opts)
		}
	} else {
		renderNode(&b, doc, opts)
	}
	return strings.TrimSpace(b.String())
}

func findBody(n *Node) *Node {
	if n == nil {
		return nil
	}
	if n.Type == ElementNode {
		if _, local := splitName(n.Name); strings.EqualFold(local, "body") {
			return n
		}
	}
	for _, c := range n.Children {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

// renderOptions controls sanitized rendering.
type renderOptions struct {
	// basePath, when non-empty, is the archive path of the document being
	// rendered; relative image references resolve against it.
	basePath string
}

func renderNode(b *strings.Builder, n *Node, opts renderOptions) {
	if n == nil {
		return
	}
	switch n.Type {
	case TextNode, WhitespaceNode:
		b.WriteString(html.EscapeString(DecodeEntities(n.Data)))

	case ElementNode:
		a := tagAtom(n.Name)
		if skipTags[a] {
			return
		}
		b.WriteByte('<')
		b.WriteString(n.Name)
		for _, k := range sortedAttrKeys(n.Attributes) {
			v, keep := sanitizeAttr(n.Name, k, DecodeEntities(n.Attributes[k]), opts)
			if !keep {
				continue
			}
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteString(`="`)
			b.WriteString(html.EscapeString(v))
			b.WriteByte('"')
		}
		if len(n.Children) == 0 && voidTags[a] {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		for _, c := range n.Children {
			renderNode(b, c, opts)
		}
		b.WriteString("</")
		b.WriteString(n.Name)
		b.WriteByte('>')
	}
}

// sanitizeAttr filters and rewrites a single attribute, reporting false
// when it must be dropped. val must already be entity-decoded so that an
// encoded scheme cannot hide from the URI check.
func sanitizeAttr(tag, key, val string, opts renderOptions) (string, bool) {
	lower := strings.ToLower(key)
	if strings.HasPrefix(lower, "on") {
		return "", false
	}
	if !isURIAttrKey(lower) {
		return val, true
	}
	if !isSafeURI(val) {
		return "", false
	}
	if opts.basePath != "" && isImageRef(tag, lower) {
		if resolved := rewriteImagePath(val, opts.basePath); resolved != "" {
			return resolved, true
		}
	}
	return val, true
}

// isURIAttrKey reports whether the attribute may contain a URL and should
// be protocol-checked.
func isURIAttrKey(lower string) bool {
	return lower == "href" || lower == "src" || lower == "xlink:href"
}

// isImageRef reports whether tag/key references an image resource whose
// relative path should be resolved: <img src> and SVG <image xlink:href>
// or <image href>.
func isImageRef(tag, key string) bool {
	switch strings.ToLower(tag) {
	case "img":
		return key == "src"
	case "image":
		return key == "xlink:href" || key == "href"
	}
	return false
}

// rewriteImagePath resolves a relative image reference against the path of
// the containing document. Absolute URLs, data URIs, and anything carrying
// a scheme stay untouched; the empty result tells the caller to keep the
// original value.
func rewriteImagePath(val, basePath string) string {
	if val == "" ||
		strings.HasPrefix(val, "http://") ||
		strings.HasPrefix(val, "https://") ||
		strings.HasPrefix(val, "data:") ||
		hasURIScheme(val) {
		return ""
	}
	return resolveRelativePath(basePath, val)
}

// isSafeURI validates URI values for href/src-like attributes.
// Allowed values:
//   - relative paths and fragments
//   - schemes: http, https, mailto
//   - data:image/*
func isSafeURI(raw string) bool {
	v := strings.TrimSpace(raw)
	if v == "" {
		return true
	}
	if strings.HasPrefix(v, "#") || strings.HasPrefix(v, "/") ||
		strings.HasPrefix(v, "./") || strings.HasPrefix(v, "../") ||
		strings.HasPrefix(v, "?") {
		return true
	}

	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return true
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "mailto":
		return true
	case "data":
		return strings.HasPrefix(strings.ToLower(v), "data:image/")
	default:
		return false
	}
}

// hasURIScheme reports whether s starts with a URI scheme like "mailto:"
// or "javascript:".
func hasURIScheme(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	// RFC 3986: a scheme must start with a letter.
	if !((s[0] >= 'A' && s[0] <= 'Z') || (s[0] >= 'a' && s[0] <= 'z')) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ':' {
			return i > 1
		}
		if !(c == '+' || c == '-' || c == '.' ||
			(c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return false
}
