package epubtext

import (
	"strings"

	"golang.org/x/net/html/atom"
)

// blockTags is the set of tags that insert a line break during text
// extraction.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Br:         true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Hr:         true,
}

// skipTags is the set of tags whose subtrees carry nothing displayable.
var skipTags = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

// tagAtom resolves a parsed element name to its atom, tolerating the mixed
// casing found in non-conformant content.
func tagAtom(name string) atom.Atom {
	return atom.Lookup([]byte(strings.ToLower(name)))
}

// ExtractText renders a parsed document as plain text. Block-level
// elements (<p>, <br>, <div>, <h1>-<h6>, <li>, <tr>) produce line breaks,
// script and style subtrees are skipped, entity references are decoded,
// and whitespace runs collapse to single spaces. Whitespace nodes between
// inline elements become a single separating space.
func ExtractText(root *Node) string {
	var tb textBuilder
	tb.walk(root)
	return strings.TrimSpace(tb.buf.String())
}

// textBuilder accumulates extracted text, tracking the last written byte
// so that breaks never double up. Whitespace nodes only owe a space; the
// space is written when the next text arrives, so a block break that
// follows one never leaves a dangling " \n".
type textBuilder struct {
	buf     strings.Builder
	last    byte
	pending bool
}

func (tb *textBuilder) walk(n *Node) {
	if n == nil {
		return
	}
	switch n.Type {
	case WhitespaceNode:
		tb.pending = true

	case TextNode:
		if text := collapseWhitespace(DecodeEntities(n.Data)); text != "" {
			tb.writeText(text)
		}

	case ElementNode:
		a := tagAtom(n.Name)
		if skipTags[a] {
			return
		}
		if blockTags[a] {
			tb.lineBreak()
		}
		for _, c := range n.Children {
			tb.walk(c)
		}
	}
}

func (tb *textBuilder) writeText(text string) {
	if tb.pending && tb.buf.Len() > 0 && tb.last != '\n' && tb.last != ' ' && text[0] != ' ' {
		tb.buf.WriteByte(' ')
	}
	tb.pending = false
	tb.buf.WriteString(text)
	tb.last = text[len(text)-1]
}

func (tb *textBuilder) lineBreak() {
	tb.pending = false
	if tb.buf.Len() > 0 && tb.last != '\n' {
		tb.buf.WriteByte('\n')
		tb.last = '\n'
	}
}

// collapseWhitespace replaces runs of whitespace characters (spaces, tabs,
// newlines) with a single space, preserving a leading or trailing run as a
// single space so that spacing between inline elements survives. Returns
// "" if the input is entirely whitespace.
func collapseWhitespace(s string) string {
	var buf strings.Builder
	inSpace := false
	hasNonSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inSpace = true
			continue
		}
		if inSpace && buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteRune(r)
		inSpace = false
		hasNonSpace = true
	}
	if !hasNonSpace {
		return ""
	}
	result := buf.String()
	if isASCIIWhitespace(s[0]) {
		result = " " + result
	}
	if inSpace {
		result += " "
	}
	return result
}

func isASCIIWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// Segment is a run of display text paired with the byte offset of its raw
// source in the parsed input.
type Segment struct {
	// Text is the entity-decoded content of one text run.
	Text string

	// Offset is the byte offset of the run's raw source text in the input
	// given to Parse. Decoding can change lengths, so Offset locates the
	// start of the raw span rather than mapping byte for byte.
	Offset int
}

// Segments returns the decoded text runs of a parsed document in document
// order, each paired with the byte offset of its source. Script and style
// subtrees are omitted, and whitespace-only runs between elements are not
// included. This is the form consumers use to map displayed text back onto
// the original buffer, for selection or highlighting.
func Segments(root *Node) []Segment {
	var segs []Segment
	collectSegments(root, &segs)
	return segs
}

func collectSegments(n *Node, segs *[]Segment) {
	if n == nil {
		return
	}
	switch n.Type {
	case TextNode:
		*segs = append(*segs, Segment{Text: DecodeEntities(n.Data), Offset: n.Offset})
	case ElementNode:
		if skipTags[tagAtom(n.Name)] {
			return
		}
		for _, c := range n.Children {
			collectSegments(c, segs)
		}
	}
}
