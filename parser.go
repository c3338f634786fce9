package epubtext

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxParseDepth bounds element nesting during parsing. Content nested deeper
// is parsed at the enclosing level instead of recursing, so pathological
// nesting degrades to a flat sibling run rather than exhausting the stack.
const maxParseDepth = 256

// Parse builds a document tree from raw XML or XHTML-like text.
//
// The parser is deliberately lenient and never fails, whatever the input.
// Markup in real e-books is frequently malformed, and a reader must still
// show something:
//   - A tag truncated by end of input is dropped silently.
//   - Unterminated comments, CDATA sections, and processing instructions
//     are consumed to the end of input.
//   - An end tag closes the innermost open element without its name being
//     checked against the opening tag.
//   - Mismatched attribute quoting degrades to over-consumption, never to
//     an error.
//
// Every node records the byte offset of its syntactic start in input, so
// consumers can map parsed content back onto the source text. Text content
// is kept raw; callers decode it with DecodeEntities when displaying it.
//
// If the input yields exactly one top-level node, that node is returned
// directly. Otherwise (multiple roots, stray top-level text, or an empty
// document) the top-level nodes are wrapped in a synthetic element named
// "root" at offset 0.
func Parse(input string) *Node {
	p := &parser{input: input}
	nodes := p.parseNodes()
	if len(nodes) == 1 {
		return nodes[0]
	}
	return newElement("root", 0, nil, nodes)
}

// parser scans an immutable input buffer. The offset is a byte index, but
// all advancing is done one code point at a time so the cursor never lands
// inside a multi-byte character.
type parser struct {
	input  string
	offset int
	depth  int
}

// ---------------------------------------------------------------------------
// Cursor primitives
// ---------------------------------------------------------------------------

func (p *parser) eof() bool {
	return p.offset >= len(p.input)
}

// peek returns the next code point without consuming it.
// The second result is false at end of input.
func (p *parser) peek() (rune, bool) {
	if p.eof() {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(p.input[p.offset:])
	return r, true
}

func (p *parser) startsWith(s string) bool {
	return strings.HasPrefix(p.input[p.offset:], s)
}

// advance moves the cursor forward by n code points, or to end of input if
// fewer remain.
func (p *parser) advance(n int) {
	for i := 0; i < n && p.offset < len(p.input); i++ {
		_, size := utf8.DecodeRuneInString(p.input[p.offset:])
		p.offset += size
	}
}

// advanceWhile moves the cursor forward while test holds for the next code
// point, stopping at the first failure or end of input.
func (p *parser) advanceWhile(test func(rune) bool) {
	for p.offset < len(p.input) {
		r, size := utf8.DecodeRuneInString(p.input[p.offset:])
		if !test(r) {
			break
		}
		p.offset += size
	}
}

// advanceUntil consumes input up to and including target. The scan always
// advances one code point before the first match test, so a target sitting
// at the cursor when the call begins is only found at its next occurrence.
// If target never occurs, the cursor stops at end of input. This is how
// unterminated comments, CDATA sections, and processing instructions
// recover: the scan swallows the rest of the input instead of failing.
func (p *parser) advanceUntil(target string) {
	first, _ := utf8.DecodeRuneInString(target)
	for !p.eof() {
		p.advance(1)
		p.advanceWhile(func(r rune) bool { return r != first })
		if p.startsWith(target) {
			break
		}
	}
	p.advance(utf8.RuneCountInString(target))
}

// ---------------------------------------------------------------------------
// Parsing
// ---------------------------------------------------------------------------

// parseAttributes consumes an element's attribute list, with the cursor
// positioned just after the element name. It stops at ">", "/", or end of
// input. There is no character-class validation: the key is everything up
// to the next "=", and the value is everything between the next quote
// character (either kind, defaulting to double) and its matching closer.
// Malformed attributes are not rejected; the scan may consume further into
// the buffer than a strict parser would, which is accepted lenient behavior.
func (p *parser) parseAttributes() map[string]string {
	attrs := make(map[string]string)
	for !p.eof() {
		p.advanceWhile(unicode.IsSpace)
		r, ok := p.peek()
		if !ok || r == '>' || r == '/' {
			break
		}
		start := p.offset
		p.advanceWhile(func(r rune) bool { return r != '=' })
		key := p.input[start:p.offset]
		p.advanceWhile(func(r rune) bool { return r != '"' && r != '\'' })
		quote, ok := p.peek()
		if !ok {
			quote = '"'
		}
		p.advance(1)
		start = p.offset
		p.advanceWhile(func(r rune) bool { return r != quote })
		attrs[key] = p.input[start:p.offset]
		p.advance(1)
	}
	return attrs
}

// parseElement parses one element with the cursor positioned just after the
// opening "<". It returns nil when the tag is truncated by end of input, in
// which case the partial element is dropped.
func (p *parser) parseElement() *Node {
	start := p.offset
	p.advanceWhile(func(r rune) bool { return r != '>' && r != '/' && !unicode.IsSpace(r) })
	name := p.input[start:p.offset]
	attrs := p.parseAttributes()

	r, ok := p.peek()
	switch {
	case ok && r == '/':
		p.advance(2)
		return newElement(name, start-1, attrs, nil)
	case ok && r == '>':
		p.advance(1)
		var children []*Node
		if p.depth < maxParseDepth {
			p.depth++
			children = p.parseNodes()
			p.depth--
		}
		return newElement(name, start-1, attrs, children)
	}
	return nil
}

// parseNodes produces the ordered sequence of sibling nodes at one nesting
// level, looping until end of input or until an end tag closes the level.
func (p *parser) parseNodes() []*Node {
	var nodes []*Node

	for !p.eof() {
		start := p.offset
		p.advanceWhile(unicode.IsSpace)

		r, ok := p.peek()
		switch {
		case !ok:
			return nodes

		case r == '<':
			if p.offset > start {
				nodes = append(nodes, newWhitespace(p.input[start:p.offset], start))
			}
			if p.startsWith("</") {
				p.advance(2)
				p.advanceWhile(func(r rune) bool { return r != '>' })
				p.advance(1)
				return nodes
			}
			p.advance(1)
			next, ok := p.peek()
			switch {
			case ok && next == '?':
				p.advance(1)
				p.advanceUntil("?>")
			case ok && next == '!':
				p.advance(1)
				switch d, ok := p.peek(); {
				case ok && d == '-':
					p.advance(2)
					p.advanceUntil("-->")
				case ok && d == '[':
					p.advance(1)
					p.advanceUntil("]]>")
				default:
					p.advanceWhile(func(r rune) bool { return r != '>' })
					p.advance(1)
				}
			default:
				if el := p.parseElement(); el != nil {
					nodes = append(nodes, el)
				}
			}

		default:
			// Ordinary content. The run starts at the recorded offset, so any
			// whitespace skipped above stays part of the text node.
			p.advanceWhile(func(r rune) bool { return r != '<' })
			nodes = append(nodes, newText(p.input[start:p.offset], start))
		}
	}
	return nodes
}
