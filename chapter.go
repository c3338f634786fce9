package epubtext

import (
	"strings"
)

// gutenbergPatterns contains case-insensitive patterns that indicate a
// Project Gutenberg license page.
var gutenbergPatterns = []string{
	"project gutenberg license",
	"gutenberg.org/license",
	"start of the project gutenberg license",
	"end of the project gutenberg license",
	"start of this project gutenberg ebook",
	"end of this project gutenberg ebook",
}

// gutenbergComboPatterns contains pairs of strings that together indicate a
// Gutenberg license page (both must appear, case-insensitive).
var gutenbergComboPatterns = [][2]string{
	{"project gutenberg", "terms of use"},
	{"full license", "gutenberg"},
}

// isGutenbergLicense checks whether data (raw XHTML) contains patterns
// indicating a Project Gutenberg license page. Matching runs over extracted
// text so that markup and attributes cannot trigger it.
func isGutenbergLicense(data []byte) bool {
	text := strings.ToLower(ExtractText(Parse(string(data))))

	for _, pat := range gutenbergPatterns {
		if strings.Contains(text, pat) {
			return true
		}
	}
	for _, combo := range gutenbergComboPatterns {
		if strings.Contains(text, combo[0]) && strings.Contains(text, combo[1]) {
			return true
		}
	}
	return false
}

// RawContent reads the raw XHTML bytes of this chapter from the ePub archive.
// Leading UTF-8 BOM is stripped if present.
func (c Chapter) RawContent() ([]byte, error) {
	if c.book == nil {
		return nil, ErrInvalidChapter
	}
	data, err := c.book.readFile(c.Href)
	if err != nil {
		return nil, err
	}
	return stripBOM(data), nil
}

// Content reads and parses the chapter into a document tree. The parse is
// fault tolerant; once RawContent succeeds, a tree always comes back, however
// damaged the markup.
func (c Chapter) Content() (*Node, error) {
	data, err := c.RawContent()
	if err != nil {
		return nil, err
	}
	return Parse(string(data)), nil
}

// TextContent extracts the plain text content from this chapter's XHTML.
// Block-level elements produce line breaks; script and style content is
// skipped; entity references are decoded.
func (c Chapter) TextContent() (string, error) {
	doc, err := c.Content()
	if err != nil {
		return "", err
	}
	return ExtractText(doc), nil
}

// TextSegments returns the chapter's decoded text runs paired with byte
// offsets into the raw content, for mapping displayed text back onto the
// source (selection, highlighting). Offsets index the bytes RawContent
// returns.
func (c Chapter) TextSegments() ([]Segment, error) {
	doc, err := c.Content()
	if err != nil {
		return nil, err
	}
	return Segments(doc), nil
}

// BodyHTML extracts the sanitized inner HTML of the body element from this
// chapter's XHTML. Image paths are rewritten to ZIP-root-relative paths.
// Script and style elements, event handler attributes, and unsafe URI
// schemes are stripped.
func (c Chapter) BodyHTML() (string, error) {
	doc, err := c.Content()
	if err != nil {
		return "", err
	}
	return BodyHTML(doc, c.Href), nil
}
