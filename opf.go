package epubtext

import (
	"fmt"
	"strings"
)

// opfPackage holds the parts of an OPF package document the reader uses.
// It is built by walking the fault-tolerant parse tree, so a package file
// with unterminated comments, stray end tags, or undeclared entity
// references still yields whatever metadata, manifest, and spine entries
// survive the parse.
type opfPackage struct {
	Version          string
	UniqueIdentifier string
	Metadata         opfMetadata
	Manifest         []manifestItem
	Spine            opfSpine
	Guide            []guideReference
}

// opfMetadata holds the raw metadata entries from the OPF file.
type opfMetadata struct {
	// Elements are the Dublin Core entries (dc:title, dc:creator, ...) in
	// document order, keyed by their lowercased local name.
	Elements []dcElement

	// Metas are the <meta> entries, both ePub 2 (name/content) and ePub 3
	// (property/refines) forms.
	Metas []opfMeta
}

// dcElement is one Dublin Core metadata element. ePub 2 expresses file-as,
// role, and scheme as opf:* attributes on the element itself; ePub 3 moves
// them into <meta refines="..."> entries, which extractMetadata resolves.
type dcElement struct {
	Local  string // lowercased local element name: "title", "creator", ...
	Value  string // decoded, whitespace-normalized text content
	ID     string
	FileAs string
	Role   string
	Scheme string
}

// opfMeta represents a <meta> element in the OPF metadata.
// ePub 2: <meta name="..." content="..."/>
// ePub 3: <meta property="..." refines="..." scheme="...">value</meta>
type opfMeta struct {
	Name    string
	Content string

	Property string
	Refines  string
	Scheme   string

	Value string
}

// opfSpine holds the spine: the NCX reference and the reading order.
type opfSpine struct {
	Toc      string
	ItemRefs []spineItemRef
}

// spineItemRef represents a single <itemref> in the spine.
type spineItemRef struct {
	IDRef  string
	Linear string
}

// guideReference represents a single <reference> in the ePub 2 guide.
type guideReference struct {
	Type  string
	Title string
	Href  string
}

// dcNames is the set of Dublin Core local names the reader extracts.
var dcNames = map[string]bool{
	"title": true, "creator": true, "language": true, "identifier": true,
	"publisher": true, "date": true, "description": true, "subject": true,
	"rights": true, "source": true,
}

// parseOPF parses OPF file content into the package structure.
// The only hard failure is a document in which no package element can be
// found at all; everything else degrades to missing entries.
func parseOPF(data []byte) (*opfPackage, error) {
	doc := Parse(string(stripBOM(data)))

	pkgNode := findLocal(doc, "package")
	if pkgNode == nil {
		return nil, fmt.Errorf("epubtext: OPF has no package element: %w", ErrInvalidEPub)
	}

	pkg := &opfPackage{
		Version:          strings.TrimSpace(attrLocal(pkgNode, "version")),
		UniqueIdentifier: strings.TrimSpace(attrLocal(pkgNode, "unique-identifier")),
	}
	if pkg.Version == "" {
		// Default to 2.0 if version attribute is missing.
		pkg.Version = "2.0"
	}

	if md := findLocal(pkgNode, "metadata"); md != nil {
		pkg.Metadata = parseOPFMetadata(md)
	}
	if mf := findLocal(pkgNode, "manifest"); mf != nil {
		pkg.Manifest = parseOPFManifest(mf)
	}
	if sp := findLocal(pkgNode, "spine"); sp != nil {
		pkg.Spine = parseOPFSpine(sp)
	}
	if g := findLocal(pkgNode, "guide"); g != nil {
		pkg.Guide = parseOPFGuide(g)
	}

	return pkg, nil
}

// parseOPFMetadata collects Dublin Core elements and meta entries from the
// metadata element's direct children. Old ePub 2.0 files wrap these in
// dc-metadata / x-metadata sub-elements; those wrappers are descended into.
func parseOPFMetadata(md *Node) opfMetadata {
	var out opfMetadata
	collectOPFMetadata(md, &out)
	return out
}

func collectOPFMetadata(md *Node, out *opfMetadata) {
	for _, c := range md.Children {
		if c.Type != ElementNode {
			continue
		}
		local := strings.ToLower(localName(c.Name))
		switch {
		case local == "dc-metadata" || local == "x-metadata":
			collectOPFMetadata(c, out)
		case local == "meta":
			out.Metas = append(out.Metas, opfMeta{
				Name:     attrLocal(c, "name"),
				Content:  attrLocal(c, "content"),
				Property: attrLocal(c, "property"),
				Refines:  attrLocal(c, "refines"),
				Scheme:   attrLocal(c, "scheme"),
				Value:    elementText(c),
			})
		case dcNames[local]:
			out.Elements = append(out.Elements, dcElement{
				Local:  local,
				Value:  elementText(c),
				ID:     attrLocal(c, "id"),
				FileAs: attrLocal(c, "file-as"),
				Role:   attrLocal(c, "role"),
				Scheme: attrLocal(c, "scheme"),
			})
		}
	}
}

// parseOPFManifest converts the manifest element's item children.
func parseOPFManifest(mf *Node) []manifestItem {
	items := childrenLocal(mf, "item")
	out := make([]manifestItem, 0, len(items))
	for _, it := range items {
		out = append(out, manifestItem{
			ID:         attrLocal(it, "id"),
			Href:       attrLocal(it, "href"),
			MediaType:  attrLocal(it, "media-type"),
			Properties: attrLocal(it, "properties"),
		})
	}
	return out
}

// parseOPFSpine converts the spine element and its itemref children.
func parseOPFSpine(sp *Node) opfSpine {
	out := opfSpine{Toc: attrLocal(sp, "toc")}
	for _, ref := range childrenLocal(sp, "itemref") {
		out.ItemRefs = append(out.ItemRefs, spineItemRef{
			IDRef:  attrLocal(ref, "idref"),
			Linear: attrLocal(ref, "linear"),
		})
	}
	return out
}

// parseOPFGuide converts the guide element's reference children.
func parseOPFGuide(g *Node) []guideReference {
	refs := childrenLocal(g, "reference")
	out := make([]guideReference, 0, len(refs))
	for _, r := range refs {
		out = append(out, guideReference{
			Type:  attrLocal(r, "type"),
			Title: attrLocal(r, "title"),
			Href:  attrLocal(r, "href"),
		})
	}
	return out
}

// buildManifestMaps creates lookup maps over the parsed manifest.
// Returns maps keyed by ID and by Href for fast lookups; entries point into
// the items slice.
func buildManifestMaps(items []manifestItem) (byID, byHref map[string]*manifestItem) {
	byID = make(map[string]*manifestItem, len(items))
	byHref = make(map[string]*manifestItem, len(items))

	for i := range items {
		mi := &items[i]
		byID[mi.ID] = mi
		byHref[mi.Href] = mi
	}

	return byID, byHref
}

// buildSpine creates a slice of spineItem from the parsed OPF spine,
// resolving manifest references for href and media-type.
func buildSpine(spine opfSpine, manifestByID map[string]*manifestItem) []spineItem {
	items := make([]spineItem, 0, len(spine.ItemRefs))

	for _, ref := range spine.ItemRefs {
		si := spineItem{
			IDRef:  ref.IDRef,
			Linear: ref.Linear != "no",
		}
		if mi, ok := manifestByID[ref.IDRef]; ok {
			si.ID = mi.ID
			si.Href = mi.Href
			si.MediaType = mi.MediaType
		}
		items = append(items, si)
	}

	return items
}
