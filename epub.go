package epubtext

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
)

// expectedMimetype is the required content of the "mimetype" entry in a
// conforming ePub archive.
const expectedMimetype = "application/epub+zip"

// Book reads an ePub archive. Use Open or NewReader to create one; the
// container, package document, and table of contents are parsed up front,
// chapter content on demand.
//
// A Book is not safe for concurrent use by multiple goroutines.
type Book struct {
	zip             *zip.Reader
	files           zipIndex
	closer          io.Closer // non-nil only when created via Open
	opfPath         string
	opfDir          string
	opf             *opfPackage
	manifestByID    map[string]*manifestItem
	manifestByHref  map[string]*manifestItem
	spine           []spineItem
	guide           []guideReference
	metadata        Metadata
	toc             []TOCItem
	landmarks       []TOCItem
	chapters        []Chapter
	warnings        []string
	licenseDetected bool
}

// Open opens an ePub file at the given path.
// The caller must call Close when done reading from the book.
func Open(path string) (*Book, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epubtext: open %s: %w", path, err)
	}

	b, err := openBook(&zrc.Reader, zrc)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return b, nil
}

// NewReader creates a Book from an io.ReaderAt with the given size.
// The caller is responsible for the lifetime of r; Close only cleans
// up internal state.
func NewReader(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epubtext: open zip: %w", err)
	}

	return openBook(zr, nil)
}

// openBook walks the structural layers in order: mimetype check, container,
// DRM descriptor, package document, table of contents. Only a missing or
// unreadable package document is fatal; everything else degrades to a
// warning or an empty result.
func openBook(zr *zip.Reader, closer io.Closer) (*Book, error) {
	b := &Book{
		zip:    zr,
		files:  newZipIndex(zr),
		closer: closer,
	}

	b.checkMimetype()

	opfPath, err := parseContainer(zr)
	if err != nil {
		return nil, err
	}
	b.opfPath = opfPath
	b.opfDir = path.Dir(opfPath)

	fontObfuscation, err := checkDRM(zr)
	if err != nil {
		return nil, err
	}
	if fontObfuscation {
		b.warn("font obfuscation detected; obfuscated fonts may not render correctly")
	}

	if err := b.loadPackage(); err != nil {
		return nil, err
	}

	// A book without a usable TOC still reads; toc stays empty.
	b.parseTOC()

	return b, nil
}

// loadPackage reads and parses the OPF package document and derives the
// lookup structures the rest of the Book runs on.
func (b *Book) loadPackage() error {
	f := b.files.lookup(b.opfPath)
	if f == nil {
		return fmt.Errorf("epubtext: OPF file not found in archive: %s: %w", b.opfPath, ErrInvalidEPub)
	}
	data, err := readZipFile(f)
	if err != nil {
		return fmt.Errorf("epubtext: read OPF file: %w", err)
	}

	pkg, err := parseOPF(data)
	if err != nil {
		return err
	}
	b.opf = pkg
	b.manifestByID, b.manifestByHref = buildManifestMaps(pkg.Manifest)
	b.spine = buildSpine(pkg.Spine, b.manifestByID)
	b.guide = pkg.Guide
	b.metadata = extractMetadata(pkg)
	return nil
}

// warn records a non-fatal problem worked around during opening.
func (b *Book) warn(msg string) {
	b.warnings = append(b.warnings, msg)
}

// checkMimetype records a warning unless the archive's first entry is a
// "mimetype" file holding exactly "application/epub+zip". The deviation
// is too common in the wild to block opening.
func (b *Book) checkMimetype() {
	if len(b.zip.File) == 0 {
		b.warn("empty ZIP archive; mimetype entry missing")
		return
	}

	first := b.zip.File[0]
	if first.Name != "mimetype" {
		b.warn(`first ZIP entry is not "mimetype"`)
		return
	}

	data, err := readZipFile(first)
	if err != nil {
		b.warn(fmt.Sprintf("cannot read mimetype entry: %v", err))
		return
	}

	if string(data) != expectedMimetype {
		b.warn(fmt.Sprintf("unexpected mimetype: %q", string(data)))
	}
}

// Close releases resources held by the Book. When the Book was created via
// Open, Close closes the underlying file. Close is idempotent.
func (b *Book) Close() error {
	if b.closer != nil {
		err := b.closer.Close()
		b.closer = nil
		return err
	}
	return nil
}

// ReadFile reads a file from the ePub archive by its ZIP-internal path.
// The lookup falls back to case-insensitive matching.
func (b *Book) ReadFile(name string) ([]byte, error) {
	f := b.files.lookup(name)
	if f == nil {
		return nil, ErrFileNotFound
	}
	return readZipFile(f)
}

// ParseFile reads a file from the archive and runs it through the
// fault-tolerant markup parser. The parse itself cannot fail, so the only
// errors are lookup and I/O ones. Useful for inspecting nav documents,
// damaged chapters, or anything else the archive holds.
func (b *Book) ParseFile(name string) (*Node, error) {
	data, err := b.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Parse(string(stripBOM(data))), nil
}

// readFile implements the archiveReader interface for lazy content loading.
func (b *Book) readFile(name string) ([]byte, error) {
	return b.ReadFile(name)
}

// resolveOPFPath resolves a path relative to the OPF directory.
// If href is empty, returns empty. If opfDir is ".", returns href as-is.
func (b *Book) resolveOPFPath(href string) string {
	if href == "" {
		return ""
	}
	if b.opfDir == "." {
		return href
	}
	return path.Join(b.opfDir, href)
}

// HasTOC reports whether the ePub contains a table of contents.
func (b *Book) HasTOC() bool {
	return len(b.toc) > 0
}

// Metadata returns the extracted metadata from the ePub.
func (b *Book) Metadata() Metadata {
	return copyMetadata(b.metadata)
}

// Warnings returns the list of non-fatal warnings accumulated during parsing.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// TOC returns the table of contents as a tree of TOCItem.
// Each item's SpineIndex is set to the index of the corresponding spine item,
// or -1 if no match was found.
func (b *Book) TOC() []TOCItem {
	return copyTOCItems(b.toc)
}

// Landmarks returns the landmarks from an ePub 3 nav document.
// Returns nil for ePub 2 files or when no landmarks are present.
func (b *Book) Landmarks() []TOCItem {
	return copyTOCItems(b.landmarks)
}

// Chapters returns the chapters in spine order. Each Chapter is a lightweight
// handle; content is loaded lazily when RawContent, Content, TextContent,
// TextSegments, or BodyHTML is called. Title is derived from the TOC by
// matching Href (ignoring fragment). The result is cached after the first call.
//
// Note: IsLicense is not populated by Chapters(). Call ContentChapters() to
// trigger Gutenberg license detection; after that call, the cached chapters
// returned by Chapters() will also have IsLicense set.
func (b *Book) Chapters() []Chapter {
	if b.chapters != nil {
		return copyChapters(b.chapters)
	}

	// Build a map from file path (without fragment) → TOC title.
	tocTitleMap := buildTOCTitleMap(b.toc)

	chapters := make([]Chapter, 0, len(b.spine))
	for _, si := range b.spine {
		href := b.resolveOPFPath(si.Href)

		ch := Chapter{
			ID:     si.ID,
			Href:   href,
			Title:  tocTitleMap[href],
			Linear: si.Linear,
			book:   b,
		}

		chapters = append(chapters, ch)
	}

	b.chapters = chapters
	return copyChapters(b.chapters)
}

// ContentChapters returns the chapters in spine order, excluding any
// detected Project Gutenberg license pages (IsLicense == true).
// On the first call, it reads every chapter file to perform license
// detection; subsequent calls use the cached result. After this call,
// Chapters() also returns chapters with IsLicense correctly set.
func (b *Book) ContentChapters() []Chapter {
	b.detectLicenses()
	out := make([]Chapter, 0, len(b.chapters))
	for _, ch := range b.chapters {
		if !ch.IsLicense {
			out = append(out, ch)
		}
	}
	return out
}

// detectLicenses reads each chapter file and marks Gutenberg license pages.
// It runs at most once per Book instance.
func (b *Book) detectLicenses() {
	if b.licenseDetected {
		return
	}
	_ = b.Chapters() // ensure chapters are built
	for i := range b.chapters {
		if raw, err := b.readFile(b.chapters[i].Href); err == nil {
			b.chapters[i].IsLicense = isGutenbergLicense(raw)
		}
	}
	b.licenseDetected = true
}

// buildTOCTitleMap flattens the TOC tree and builds a map from
// file path (without fragment) → title. The first matching entry wins.
func buildTOCTitleMap(items []TOCItem) map[string]string {
	m := make(map[string]string)
	var flat []*TOCItem
	flattenTOCItems(&flat, items)
	for _, item := range flat {
		if item.Href == "" {
			continue
		}
		filePath := hrefWithoutFragment(item.Href)
		if _, exists := m[filePath]; !exists {
			m[filePath] = item.Title
		}
	}
	return m
}

func copyMetadata(in Metadata) Metadata {
	out := in
	out.Titles = append([]string(nil), in.Titles...)
	out.Authors = append([]Author(nil), in.Authors...)
	out.Language = append([]string(nil), in.Language...)
	out.Identifiers = append([]Identifier(nil), in.Identifiers...)
	out.Subjects = append([]string(nil), in.Subjects...)
	return out
}

func copyTOCItems(in []TOCItem) []TOCItem {
	if in == nil {
		return nil
	}
	out := make([]TOCItem, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Children = copyTOCItems(in[i].Children)
	}
	return out
}

func copyChapters(in []Chapter) []Chapter {
	if in == nil {
		return nil
	}
	return append([]Chapter(nil), in...)
}
