package epubtext

// Metadata is the bibliographic record extracted from the package document.
// Every string has already been entity-decoded, so the values are display
// text rather than raw markup. Repeated elements keep their document order.
type Metadata struct {
	// Version is the ePub version the package declares, "2.0" or "3.0".
	Version string

	// Titles holds every dc:title in document order; the first entry is
	// the primary title.
	Titles []string

	Authors     []Author
	Language    []string     // BCP 47 tags as written, e.g. "en", "zh-CN"
	Identifiers []Identifier // ISBNs, UUIDs and the like

	Publisher   string
	Date        string // verbatim; anything from "2008" to a full timestamp
	Description string
	Subjects    []string
	Rights      string
	Source      string
}

// Author is one dc:creator entry. FileAs and Role carry the opf:file-as and
// opf:role attribute values and are empty when the book omits them.
type Author struct {
	Name   string // display name
	FileAs string // sorting form, e.g. "Dickens, Charles"
	Role   string // MARC relator code, e.g. "aut", "edt"
}

// Identifier is one dc:identifier entry.
type Identifier struct {
	Value  string // the identifier itself
	Scheme string // opf:scheme attribute, e.g. "ISBN"
	ID     string // id attribute on the element
}

// TOCItem is one entry in the table of contents. Entries nest through
// Children, mirroring the nav or NCX hierarchy.
//
// SpineIndex and SpineEndIndex map the entry onto the spine as a half-open
// range: the entry covers spine[SpineIndex:SpineEndIndex]. Both are -1 when
// the entry's target could not be matched to any spine item.
type TOCItem struct {
	Title string

	// Href points into the archive and may carry a fragment, as in
	// "chapter01.xhtml#section2".
	Href string

	Children      []TOCItem
	SpineIndex    int
	SpineEndIndex int
}

// Chapter is one spine entry with access to its content. The underlying
// file is read and parsed on demand, and because parsing is fault-tolerant
// the content methods only fail for archive-level reasons, never because of
// bad markup.
type Chapter struct {
	// Title comes from the table of contents and is empty for spine
	// entries the TOC never mentions.
	Title string

	// Href is the content file path inside the archive.
	Href string

	// ID is the manifest id of the underlying item.
	ID string

	// Linear is false for auxiliary content marked linear="no" in the
	// spine.
	Linear bool

	// IsLicense marks Project Gutenberg license pages, recognized by
	// their boilerplate text.
	IsLicense bool

	// book reads files on demand; set when the spine is built.
	book archiveReader
}

// archiveReader is how a Chapter pulls bytes out of the archive without
// holding the whole Book. *Book implements it.
type archiveReader interface {
	readFile(path string) ([]byte, error)
}

// CoverImage is a detected cover: where it lives in the archive, what the
// manifest says it is, and the raw bytes.
type CoverImage struct {
	Path      string
	MediaType string
	Data      []byte
}

// spineItem is one itemref from the spine, joined with its manifest entry.
type spineItem struct {
	ID        string
	Href      string
	MediaType string
	Linear    bool
	IDRef     string
}

// manifestItem is one item from the manifest. Href is relative to the
// package document. Properties carries the ePub 3 space-separated property
// list, where "nav" and "cover-image" are the values this package acts on.
type manifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}
