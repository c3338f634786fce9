package epubtext

import (
	"fmt"
	"sort"
	"strings"
)

// parseTOC determines the TOC source (nav document or NCX), parses it,
// assigns spine indices, and stores results in b.toc and b.landmarks.
// This is called during openBook after the OPF has been parsed.
func (b *Book) parseTOC() {
	// Build a map from file path (without fragment) → spine index.
	spineMap := make(map[string]int, len(b.spine))
	for i, si := range b.spine {
		// Resolve spine item href relative to OPF directory to get ZIP-internal path.
		href := b.resolveOPFPath(si.Href)
		spineMap[href] = i
	}

	isEPub3 := strings.HasPrefix(b.opf.Version, "3")

	spineLen := len(b.spine)

	if isEPub3 {
		// ePub 3: prefer nav document, fall back to NCX.
		if toc, landmarks, ok := b.parseNavTOC(spineMap); ok {
			b.toc = toc
			b.landmarks = landmarks
			computeSpineRanges(b.toc, spineLen)
			return
		}
	}

	// ePub 2 or ePub 3 without usable nav document: use NCX.
	if toc, ok := b.parseNCXTOC(spineMap); ok {
		b.toc = toc
		computeSpineRanges(b.toc, spineLen)
		return
	}

	// No TOC found; expose empty TOC/landmarks slices to callers.
	b.toc = []TOCItem{}
	b.landmarks = nil
}

// parseNavTOC finds and parses the nav document, assigns spine indices,
// and returns (toc, landmarks, true). Returns (nil, nil, false) when no nav
// document is found or when it yields no TOC entries; the NCX fallback then
// gets its chance at books whose nav document is damaged beyond use.
func (b *Book) parseNavTOC(spineMap map[string]int) ([]TOCItem, []TOCItem, bool) {
	// Find the manifest item with properties containing "nav".
	// Iterate the OPF slice to get deterministic document order.
	var navItem *manifestItem
	for _, raw := range b.opf.Manifest {
		for _, prop := range strings.Fields(raw.Properties) {
			if prop == "nav" {
				navItem = b.manifestByID[raw.ID]
				break
			}
		}
		if navItem != nil {
			break
		}
	}
	if navItem == nil {
		return nil, nil, false
	}

	// Resolve nav document path relative to OPF directory.
	navPath := b.resolveOPFPath(navItem.Href)

	f := b.files.lookup(navPath)
	if f == nil {
		return nil, nil, false
	}

	data, err := readZipFile(f)
	if err != nil {
		b.warn(fmt.Sprintf("failed to read nav document: %v", err))
		return nil, nil, false
	}

	toc, landmarks := parseNavDocument(data, navPath)
	if len(toc) == 0 {
		return nil, nil, false
	}

	assignSpineIndices(toc, spineMap)
	assignSpineIndices(landmarks, spineMap)

	return toc, landmarks, true
}

// parseNCXTOC finds and parses the NCX file, assigns spine indices,
// and returns (toc, true). Returns (nil, false) if no NCX is found.
func (b *Book) parseNCXTOC(spineMap map[string]int) ([]TOCItem, bool) {
	ncxItem := b.findNCXItem()
	if ncxItem == nil {
		return nil, false
	}

	// Resolve NCX path relative to OPF directory.
	ncxPath := b.resolveOPFPath(ncxItem.Href)

	f := b.files.lookup(ncxPath)
	if f == nil {
		return nil, false
	}

	data, err := readZipFile(f)
	if err != nil {
		b.warn(fmt.Sprintf("failed to read NCX file: %v", err))
		return nil, false
	}

	toc, err := parseNCX(data, ncxPath)
	if err != nil {
		b.warn(fmt.Sprintf("failed to parse NCX file: %v", err))
		return nil, false
	}

	assignSpineIndices(toc, spineMap)

	return toc, true
}

// findNCXItem locates the NCX manifest item: the spine's toc attribute if it
// resolves, otherwise the first manifest item with the NCX media type.
func (b *Book) findNCXItem() *manifestItem {
	if tocID := b.opf.Spine.Toc; tocID != "" {
		if item, ok := b.manifestByID[tocID]; ok {
			return item
		}
	}
	for i := range b.opf.Manifest {
		if strings.EqualFold(strings.TrimSpace(b.opf.Manifest[i].MediaType), "application/x-dtbncx+xml") {
			return b.manifestByID[b.opf.Manifest[i].ID]
		}
	}
	return nil
}

// assignSpineIndices recursively sets SpineIndex on each TOCItem by matching
// its Href (without fragment) against the spine map.
func assignSpineIndices(items []TOCItem, spineMap map[string]int) {
	for i := range items {
		if items[i].Href != "" {
			filePath := hrefWithoutFragment(items[i].Href)
			if idx, ok := spineMap[filePath]; ok {
				items[i].SpineIndex = idx
			}
		}
		if len(items[i].Children) > 0 {
			assignSpineIndices(items[i].Children, spineMap)
		}
	}
}

// hrefWithoutFragment returns the href with the fragment (#...) removed.
func hrefWithoutFragment(href string) string {
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		return href[:idx]
	}
	return href
}

// computeSpineRanges sets SpineEndIndex on each TOCItem so that the entry
// covers spine[SpineIndex:SpineEndIndex]. Items with SpineIndex == -1 get
// SpineEndIndex == -1. For the last entry (by SpineIndex order), SpineEndIndex
// equals spineLen.
func computeSpineRanges(items []TOCItem, spineLen int) {
	if len(items) == 0 {
		return
	}

	// Flatten all TOC items into a slice of pointers.
	var flat []*TOCItem
	flattenTOCItems(&flat, items)

	// Collect unique spine indices.
	seen := make(map[int]bool, len(flat))
	var indices []int
	for _, item := range flat {
		if item.SpineIndex >= 0 && !seen[item.SpineIndex] {
			seen[item.SpineIndex] = true
			indices = append(indices, item.SpineIndex)
		}
	}

	if len(indices) == 0 {
		return
	}

	sort.Ints(indices)

	// Build mapping: SpineIndex → SpineEndIndex.
	endMap := make(map[int]int, len(indices))
	for i, idx := range indices {
		if i+1 < len(indices) {
			endMap[idx] = indices[i+1]
		} else {
			endMap[idx] = spineLen
		}
	}

	// Apply SpineEndIndex to all items.
	for _, item := range flat {
		if item.SpineIndex >= 0 {
			item.SpineEndIndex = endMap[item.SpineIndex]
		} else {
			item.SpineEndIndex = -1
		}
	}
}

// flattenTOCItems collects pointers to all TOCItem nodes (including nested
// children) into flat.
func flattenTOCItems(flat *[]*TOCItem, items []TOCItem) {
	for i := range items {
		*flat = append(*flat, &items[i])
		if len(items[i].Children) > 0 {
			flattenTOCItems(flat, items[i].Children)
		}
	}
}

// --- NCX parsing (ePub 2) ---

// parseNCX parses NCX data and returns a tree of TOCItem.
// ncxPath is the ZIP-internal path to the NCX file (e.g., "OEBPS/toc.ncx"),
// used to resolve relative hrefs to ZIP root-relative paths.
// NCX files from conversion pipelines are a common source of undeclared
// entities and stray markup; the fault-tolerant parse keeps whatever
// navPoints survive.
func parseNCX(data []byte, ncxPath string) ([]TOCItem, error) {
	doc := Parse(string(stripBOM(data)))

	navMap := findLocal(doc, "navMap")
	if navMap == nil {
		return nil, fmt.Errorf("epubtext: NCX has no navMap element: %w", ErrInvalidEPub)
	}

	items := convertNavPoints(childrenLocal(navMap, "navPoint"), ncxPath)
	return items, nil
}

// convertNavPoints recursively converts navPoint elements into TOCItem entries.
func convertNavPoints(points []*Node, ncxPath string) []TOCItem {
	if len(points) == 0 {
		return nil
	}

	items := make([]TOCItem, 0, len(points))
	for _, np := range points {
		item := TOCItem{
			SpineIndex:    -1,
			SpineEndIndex: -1,
		}

		if label := childLocal(np, "navLabel"); label != nil {
			if text := findLocal(label, "text"); text != nil {
				item.Title = elementText(text)
			}
		}

		// Resolve href relative to the NCX file location.
		if content := childLocal(np, "content"); content != nil {
			if src := strings.TrimSpace(attrLocal(content, "src")); src != "" {
				if resolved := resolveRelativePath(ncxPath, src); resolved != "" {
					item.Href = resolved
				}
			}
		}

		// Recursively process nested navPoints.
		item.Children = convertNavPoints(childrenLocal(np, "navPoint"), ncxPath)

		items = append(items, item)
	}

	return items
}

// --- Nav document parsing (ePub 3) ---

// parseNavDocument parses an ePub 3 XHTML nav document and returns its toc
// and landmarks entries. basePath is the ZIP-internal path of the nav
// document file, used to resolve relative hrefs. A document without nav
// elements yields empty results; the fault-tolerant parse has no error case.
func parseNavDocument(data []byte, basePath string) (toc []TOCItem, landmarks []TOCItem) {
	doc := Parse(string(stripBOM(data)))
	for _, nav := range findAllLocal(doc, "nav") {
		if hasEpubType(nav, "toc") {
			if ol := findLocal(nav, "ol"); ol != nil {
				toc = parseNavOL(ol, basePath)
			}
		} else if hasEpubType(nav, "landmarks") {
			if ol := findLocal(nav, "ol"); ol != nil {
				landmarks = parseNavOL(ol, basePath)
			}
		}
	}
	return toc, landmarks
}

// parseNavOL processes an ol element and returns its li children as TOCItem entries.
func parseNavOL(ol *Node, basePath string) []TOCItem {
	var items []TOCItem
	for _, li := range childrenLocal(ol, "li") {
		items = append(items, parseNavLI(li, basePath))
	}
	return items
}

// parseNavLI processes a single li element.
// It looks for a (or span fallback) for title/href and a nested ol for children.
func parseNavLI(li *Node, basePath string) TOCItem {
	item := TOCItem{SpineIndex: -1, SpineEndIndex: -1}

	for _, c := range li.Children {
		if c.Type != ElementNode {
			continue
		}
		switch strings.ToLower(localName(c.Name)) {
		case "a":
			// Keep the first a; a nav li carries at most one.
			if item.Href == "" {
				if href := strings.TrimSpace(attrLocal(c, "href")); href != "" {
					if resolved := resolveRelativePath(basePath, href); resolved != "" {
						item.Href = resolved
					}
				}
				item.Title = elementText(c)
			}
		case "span":
			// Use span text only if no a has been found yet.
			if item.Title == "" {
				item.Title = elementText(c)
			}
		case "ol":
			item.Children = parseNavOL(c, basePath)
		}
	}

	return item
}

// hasEpubType checks whether n carries the given epub:type token
// (space-separated token matching).
func hasEpubType(n *Node, typeName string) bool {
	val := n.AttrOr("epub:type", "")
	if val == "" {
		val = attrLocal(n, "type")
	}
	for _, t := range strings.Fields(val) {
		if t == typeName {
			return true
		}
	}
	return false
}
