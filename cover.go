package epubtext

import (
	"slices"
	"strings"
)

// Cover detects and returns the cover image using multiple strategies.
// Strategies are tried in priority order:
//  1. ePub 3 manifest item with properties="cover-image"
//  2. ePub 2 <meta name="cover" content="ID"/> → manifest lookup
//  3. <guide> reference type="cover" → parse XHTML for first <img>
//  4. Manifest item whose ID or href contains "cover" with image/* media-type
//  5. First spine item's XHTML → first <img>
//
// Returns ErrNoCover if no strategy succeeds.
func (b *Book) Cover() (CoverImage, error) {
	// Strategy 1: ePub 3 cover-image property.
	if item := b.coverFromManifestProperties(); item != nil {
		return b.loadCoverImage(item)
	}

	// Strategy 2: ePub 2 meta name="cover".
	if item := b.coverFromMetaCover(); item != nil {
		return b.loadCoverImage(item)
	}

	// Strategy 3: guide reference type="cover" → parse XHTML.
	if item := b.coverFromGuide(); item != nil {
		return b.loadCoverImage(item)
	}

	// Strategy 4: manifest item with "cover" in ID/href and image media-type.
	if item := b.coverFromManifestHeuristic(); item != nil {
		return b.loadCoverImage(item)
	}

	// Strategy 5: first spine XHTML → first <img>.
	if item := b.coverFromFirstSpine(); item != nil {
		return b.loadCoverImage(item)
	}

	return CoverImage{}, ErrNoCover
}

// coverFromManifestProperties searches the manifest for an item whose
// Properties field contains "cover-image" (ePub 3), in document order.
func (b *Book) coverFromManifestProperties() *manifestItem {
	for i := range b.opf.Manifest {
		item := &b.opf.Manifest[i]
		if slices.Contains(strings.Fields(item.Properties), "cover-image") {
			return item
		}
	}
	return nil
}

// coverFromMetaCover looks for <meta name="cover" content="ID"/> in the OPF
// metadata and resolves the ID through the manifest (ePub 2).
// If the resolved item is an image, it is returned directly. Otherwise it is
// treated as an XHTML cover page and the first <img> is extracted.
func (b *Book) coverFromMetaCover() *manifestItem {
	for _, m := range b.opf.Metadata.Metas {
		if strings.EqualFold(m.Name, "cover") && m.Content != "" {
			item, ok := b.manifestByID[m.Content]
			if !ok {
				continue
			}
			if isImageMediaType(item.MediaType) {
				return item
			}
			// Non-image item: try parsing as an XHTML cover page.
			xhtmlPath := b.resolveOPFPath(item.Href)
			imgPath := b.firstImageInFile(xhtmlPath)
			if imgPath != "" {
				if imgItem := b.resolveImageManifestItem(imgPath); imgItem != nil {
					return imgItem
				}
			}
		}
	}
	return nil
}

// coverFromGuide searches the <guide> for a reference with type="cover",
// reads that XHTML file, and extracts the first <img> src to resolve a
// manifest image item.
func (b *Book) coverFromGuide() *manifestItem {
	for _, ref := range b.guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		xhtmlPath := b.resolveOPFPath(hrefWithoutFragment(ref.Href))

		imgPath := b.firstImageInFile(xhtmlPath)
		if imgPath == "" {
			continue
		}

		// Look up the image in the manifest by href (relative to OPF dir).
		if item := b.resolveImageManifestItem(imgPath); item != nil {
			return item
		}
	}
	return nil
}

// coverFromManifestHeuristic searches all manifest items for one whose ID or
// href contains "cover" (case-insensitive) and has an image/* media-type,
// in document order.
func (b *Book) coverFromManifestHeuristic() *manifestItem {
	for i := range b.opf.Manifest {
		item := &b.opf.Manifest[i]
		if !isImageMediaType(item.MediaType) {
			continue
		}
		if containsFold(item.ID, "cover") || containsFold(item.Href, "cover") {
			return item
		}
	}
	return nil
}

// coverFromFirstSpine reads the first spine item's XHTML content and extracts
// the first <img> src to resolve a manifest image item.
func (b *Book) coverFromFirstSpine() *manifestItem {
	if len(b.spine) == 0 {
		return nil
	}
	first := b.spine[0]
	if first.Href == "" {
		return nil
	}

	imgPath := b.firstImageInFile(b.resolveOPFPath(first.Href))
	if imgPath == "" {
		return nil
	}

	return b.resolveImageManifestItem(imgPath)
}

// firstImageInFile parses a content file from the archive and returns the
// resolved ZIP-internal path of the first image it references, or "".
func (b *Book) firstImageInFile(path string) string {
	doc, err := b.ParseFile(path)
	if err != nil {
		return ""
	}
	return findFirstImage(doc, path)
}

// loadCoverImage reads the image data from the ZIP archive and constructs a
// CoverImage. The path stored is the full ZIP-internal path.
func (b *Book) loadCoverImage(item *manifestItem) (CoverImage, error) {
	imgPath := b.resolveOPFPath(item.Href)
	data, err := b.ReadFile(imgPath)
	if err != nil {
		return CoverImage{}, err
	}
	return CoverImage{
		Path:      imgPath,
		MediaType: item.MediaType,
		Data:      data,
	}, nil
}

// resolveImageManifestItem resolves an absolute ZIP-internal image path to a
// manifestItem. It tries matching by making the path relative to opfDir,
// then falls back to iterating the manifest with case-insensitive comparison.
func (b *Book) resolveImageManifestItem(absPath string) *manifestItem {
	// Make relative to opfDir for manifest lookup.
	rel := absPath
	if b.opfDir != "." {
		prefix := b.opfDir + "/"
		if strings.HasPrefix(absPath, prefix) {
			rel = absPath[len(prefix):]
		}
	}

	if item, ok := b.manifestByHref[rel]; ok && isImageMediaType(item.MediaType) {
		return item
	}
	// Also try the absolute path itself as href.
	if item, ok := b.manifestByHref[absPath]; ok && isImageMediaType(item.MediaType) {
		return item
	}

	// Fallback: iterate manifest with path comparison and case-insensitive match.
	lowerAbs := strings.ToLower(absPath)
	lowerRel := strings.ToLower(rel)
	for i := range b.opf.Manifest {
		item := &b.opf.Manifest[i]
		if !isImageMediaType(item.MediaType) {
			continue
		}
		itemHrefLower := strings.ToLower(item.Href)
		if itemHrefLower == lowerRel || itemHrefLower == lowerAbs {
			return item
		}
		// Try matching the full ZIP path of the manifest item.
		if strings.EqualFold(b.resolveOPFPath(item.Href), absPath) {
			return item
		}
	}
	return nil
}

// findFirstImage walks a parsed content document for the first <img src> or
// SVG <image href>/<image xlink:href> reference and resolves it against
// basePath. An image whose reference cannot be resolved safely is skipped in
// favor of the next one. Returns "" when no image resolves.
func findFirstImage(n *Node, basePath string) string {
	if n == nil {
		return ""
	}
	if n.Type == ElementNode {
		switch strings.ToLower(localName(n.Name)) {
		case "img":
			if src := strings.TrimSpace(attrLocal(n, "src")); src != "" {
				if resolved := resolveRelativePath(basePath, src); resolved != "" {
					return resolved
				}
			}
		case "image":
			if href := strings.TrimSpace(attrLocal(n, "href")); href != "" {
				if resolved := resolveRelativePath(basePath, href); resolved != "" {
					return resolved
				}
			}
		}
	}
	for _, c := range n.Children {
		if p := findFirstImage(c, basePath); p != "" {
			return p
		}
	}
	return ""
}

// isImageMediaType returns true if the media type starts with "image/".
func isImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
