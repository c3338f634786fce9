// Package epubtext provides fault-tolerant parsing of the markup and
// character entities found in e-book content, and an ePub 2/3 container
// reader built on top of it.
//
// Real e-book files are full of damaged markup: truncated chapters,
// unterminated tags, mismatched or stray end tags, and entity references
// the XML specs never heard of. The parser in this package accepts all of
// it. [Parse] always returns a usable node tree, so readers get the text
// that is there instead of an error describing what is not.
//
// # Parsing Markup
//
// [Parse] turns a document string into a [Node] tree without ever
// failing:
//
//	doc := epubtext.Parse(chapterXHTML)
//	body := doc.Find("body")
//
// Damage is handled by dropping what cannot be represented and keeping
// everything else: a tag cut off at end of input is discarded, an
// unterminated comment or CDATA section runs to end of input, and an end
// tag closes the current element regardless of its name. Every node
// records the byte offset of its content in the original input.
//
// # Character Entities
//
// [DecodeEntities] expands the named references of the XHTML entity sets
// plus decimal and hexadecimal numeric references, leaving anything
// unrecognized untouched:
//
//	epubtext.DecodeEntities("Tom &amp; Jerry")   // "Tom & Jerry"
//	epubtext.DecodeEntities("50&#37; &unknown;") // "50% &unknown;"
//
// [NewDecodingReader] wraps an [io.Reader] and decodes entities as a
// stream, for feeding decoded text into code that never holds the whole
// document in memory.
//
// # Text Extraction
//
// [ExtractText] renders a parsed tree as plain text, inserting line
// breaks at block elements and skipping script and style content.
// [Segments] returns the decoded text runs of a document along with the
// byte offset where each run starts in the raw input, which lets reading
// positions expressed as byte offsets survive a round trip:
//
//	for _, seg := range epubtext.Segments(doc) {
//	    fmt.Println(seg.Offset, seg.Text)
//	}
//
// # Queries
//
// [Node.Find] and [Node.FindAll] look up elements by exact name;
// [Query] and [QueryAll] evaluate XPath expressions against the tree:
//
//	links, err := epubtext.QueryAll(doc, "//a[@href]")
//
// # Sanitized Rendering
//
// [RenderHTML] serializes a tree back to XHTML with scripts, event
// handler attributes, and unsafe URI schemes removed. [BodyHTML] renders
// just the body content of a document and can rewrite relative image
// references against an archive path.
//
// # Reading ePub Files
//
// Use [Open] to open a file by path, or [NewReader] to read from an
// [io.ReaderAt]:
//
//	book, err := epubtext.Open("book.epub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer book.Close()
//
// [Book.Metadata] returns Dublin Core metadata, [Book.TOC] the table of
// contents (ePub 3 nav documents preferred, NCX as fallback), and
// [Book.Chapters] the spine-ordered chapters with lazy content loading:
//
//	for _, ch := range book.Chapters() {
//	    text, _ := ch.TextContent()
//	    fmt.Println(ch.Title, len(text))
//	}
//
// Chapter files go through the same fault-tolerant parser, so a damaged
// chapter yields its readable text rather than an error. Use
// [Book.ContentChapters] to exclude Project Gutenberg license pages, and
// [Book.Cover] to locate the cover image through a series of fallback
// strategies. [Book.ReadFile] and [Book.ParseFile] reach any other file
// in the archive, raw or parsed. [Book.Warnings] reports structural
// problems that were worked around during opening.
//
// # Error Handling
//
// The package defines sentinel errors for common failure cases:
//   - [ErrDRMProtected] – the file is DRM encrypted
//   - [ErrInvalidEPub] – structural validation failed
//   - [ErrInvalidChapter] – a Chapter handle is invalid
//   - [ErrFileNotFound] – a requested file is not in the archive
//   - [ErrNoCover] – no cover image could be detected
//
// Malformed markup is never an error: damage within a file surfaces as
// missing or reduced content, not as a failed call.
package epubtext
