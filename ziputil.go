package epubtext

import (
	"archive/zip"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
)

// maxDecompressSize caps the decompressed size of a single archive entry
// at 256 MB. Archives come from untrusted sources; a forged size field
// must not be able to balloon memory.
const maxDecompressSize int64 = 256 * 1024 * 1024

// zipIndex maps archive paths to their entries for O(1) lookup. Files in
// the wild disagree with their own manifests about letter case, so the
// index keeps a lowercase view beside the exact one. The zero value is an
// empty index whose lookups all miss.
type zipIndex struct {
	exact map[string]*zip.File
	lower map[string]*zip.File
}

// newZipIndex indexes every entry of an opened archive. When duplicate
// names occur, the first entry wins.
func newZipIndex(zr *zip.Reader) zipIndex {
	ix := zipIndex{
		exact: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if _, ok := ix.exact[f.Name]; !ok {
			ix.exact[f.Name] = f
		}
		l := strings.ToLower(f.Name)
		if _, ok := ix.lower[l]; !ok {
			ix.lower[l] = f
		}
	}
	return ix
}

// lookup returns the entry stored under name, preferring an exact match
// over a case-insensitive one. Returns nil when neither exists.
func (ix zipIndex) lookup(name string) *zip.File {
	if f, ok := ix.exact[name]; ok {
		return f
	}
	if f, ok := ix.lower[strings.ToLower(name)]; ok {
		return f
	}
	return nil
}

// findFileInsensitive scans an archive for name without an index, exact
// match first. It serves the open-time probes (container, encryption
// descriptor) that run once per file; repeated lookups go through zipIndex.
func findFileInsensitive(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	lower := strings.ToLower(name)
	for _, f := range zr.File {
		if strings.ToLower(f.Name) == lower {
			return f
		}
	}
	return nil
}

// resolveRelativePath resolves href against the directory of basePath.
// Both are archive-internal, forward-slash paths. Percent-encoding in
// href is decoded, and the result is cleaned. An absolute href or one
// that escapes the archive root resolves to "".
func resolveRelativePath(basePath, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/") {
		return ""
	}
	if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	cleaned := path.Clean(path.Join(path.Dir(basePath), href))
	if !isSafePath(cleaned) {
		return ""
	}
	return cleaned
}

// isSafePath reports whether p stays inside the archive root: not
// absolute and no ".." component surviving a clean.
func isSafePath(p string) bool {
	cleaned := path.Clean(p)
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	return cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}

// stripBOM removes a leading UTF-8 byte order mark, if present. Content
// files frequently carry one, and the parser treats it as text.
func stripBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// readZipFile reads the full contents of an archive entry, applying the
// package-wide decompression cap and rejecting traversal paths.
func readZipFile(f *zip.File) ([]byte, error) {
	return readZipFileWithLimit(f, maxDecompressSize)
}

// readZipFileWithLimit is readZipFile with a caller-chosen cap; tests use
// a small one. The declared size is checked first, then the actual
// decompressed byte count, since the two need not agree in a hostile file.
func readZipFileWithLimit(f *zip.File, limit int64) ([]byte, error) {
	if !isSafePath(f.Name) {
		return nil, fmt.Errorf("epubtext: unsafe zip entry path: %s", f.Name)
	}
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("epubtext: zip entry %s too large: %d bytes (max %d)", f.Name, f.UncompressedSize64, limit)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("epubtext: open zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("epubtext: read zip entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("epubtext: zip entry %s decompressed size exceeds limit (%d bytes)", f.Name, limit)
	}
	return data, nil
}
