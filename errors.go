package epubtext

import "errors"

// Sentinel errors. Wrapped forms keep them in the chain, so callers should
// match with errors.Is rather than direct comparison.
var (
	// ErrDRMProtected means the book's content is locked by a DRM scheme
	// such as Adobe ADEPT or Readium LCP and cannot be decrypted.
	ErrDRMProtected = errors.New("epubtext: file is DRM protected")

	// ErrInvalidEPub means no package document could be located, either
	// through container.xml or by scanning the archive for an .opf entry.
	ErrInvalidEPub = errors.New("epubtext: invalid ePub file")

	// ErrInvalidChapter is returned by content methods on a zero-value
	// Chapter that was never attached to a Book.
	ErrInvalidChapter = errors.New("epubtext: invalid chapter handle")

	// ErrFileNotFound means the named entry is not in the archive, even
	// after a case-insensitive lookup.
	ErrFileNotFound = errors.New("epubtext: file not found in archive")

	// ErrNoCover means every cover detection strategy came up empty.
	ErrNoCover = errors.New("epubtext: no cover image found")
)
