package epubtext

import (
	"sort"
	"strconv"
	"strings"
)

// byLocal returns the Dublin Core elements with the given local name,
// in document order.
func (m opfMetadata) byLocal(local string) []dcElement {
	var out []dcElement
	for _, e := range m.Elements {
		if e.Local == local {
			out = append(out, e)
		}
	}
	return out
}

// extractMetadata converts the raw OPF metadata into the public Metadata struct.
func extractMetadata(opf *opfPackage) Metadata {
	md := Metadata{
		Version: opf.Version,
	}
	om := opf.Metadata

	// Build a refines lookup for ePub 3: "#id" → []opfMeta.
	refinesMap := buildRefinesMap(om.Metas)

	// Titles.
	md.Titles = extractTitles(om.byLocal("title"), refinesMap)

	// Authors (dc:creator).
	md.Authors = extractAuthors(om.byLocal("creator"), refinesMap)

	// Languages.
	for _, l := range om.byLocal("language") {
		if l.Value != "" {
			md.Language = append(md.Language, l.Value)
		}
	}

	// Identifiers.
	for _, id := range om.byLocal("identifier") {
		if id.Value == "" {
			continue
		}
		ident := Identifier{
			Value:  id.Value,
			Scheme: id.Scheme,
			ID:     id.ID,
		}
		// ePub 3: check refines for scheme.
		if ident.Scheme == "" && id.ID != "" {
			if s, ok := findRefine(refinesMap, id.ID, "identifier-type"); ok {
				ident.Scheme = s
			}
		}
		md.Identifiers = append(md.Identifiers, ident)
	}

	md.Publisher = firstValue(om.byLocal("publisher"))
	md.Date = firstValue(om.byLocal("date"))
	md.Description = firstValue(om.byLocal("description"))
	md.Rights = firstValue(om.byLocal("rights"))
	md.Source = firstValue(om.byLocal("source"))

	// Subjects.
	for _, s := range om.byLocal("subject") {
		if s.Value != "" {
			md.Subjects = append(md.Subjects, s.Value)
		}
	}

	return md
}

// firstValue returns the first non-empty element value.
func firstValue(elems []dcElement) string {
	for _, e := range elems {
		if e.Value != "" {
			return e.Value
		}
	}
	return ""
}

// buildRefinesMap builds a map from element ID (without "#") to the list of
// <meta refines="#id" ...> elements that refine it.
func buildRefinesMap(metas []opfMeta) map[string][]opfMeta {
	m := make(map[string][]opfMeta)
	for _, meta := range metas {
		ref := meta.Refines
		if ref == "" || !strings.HasPrefix(ref, "#") {
			continue
		}
		id := ref[1:] // strip leading "#"
		m[id] = append(m[id], meta)
	}
	return m
}

// findRefine looks up a single refining property value for the given element ID.
func findRefine(refinesMap map[string][]opfMeta, id, property string) (string, bool) {
	for _, m := range refinesMap[id] {
		if m.Property == property {
			v := strings.TrimSpace(m.Value)
			if v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// extractTitles extracts titles from dc:title elements.
// For ePub 3, titles are ordered by display-seq from refines metadata.
func extractTitles(titles []dcElement, refinesMap map[string][]opfMeta) []string {
	if len(titles) == 0 {
		return nil
	}

	type titleEntry struct {
		value string
		seq   int
		index int // original order
	}

	entries := make([]titleEntry, 0, len(titles))
	hasSeq := false

	for i, t := range titles {
		if t.Value == "" {
			continue
		}
		e := titleEntry{value: t.Value, seq: 0, index: i}
		if t.ID != "" {
			if seqStr, ok := findRefine(refinesMap, t.ID, "display-seq"); ok {
				if n, err := strconv.Atoi(seqStr); err == nil {
					e.seq = n
					hasSeq = true
				}
			}
		}
		entries = append(entries, e)
	}

	// Sort by display-seq if any title has one; otherwise preserve original order.
	if hasSeq {
		sort.SliceStable(entries, func(i, j int) bool {
			// Titles without seq (0) go after titles with seq.
			si, sj := entries[i].seq, entries[j].seq
			if si == 0 && sj == 0 {
				return entries[i].index < entries[j].index
			}
			if si == 0 {
				return false
			}
			if sj == 0 {
				return true
			}
			return si < sj
		})
	}

	result := make([]string, len(entries))
	for i, e := range entries {
		result[i] = e.value
	}
	return result
}

// extractAuthors extracts author information from dc:creator elements.
// ePub 2: uses opf:file-as and opf:role attributes directly on the element.
// ePub 3: uses <meta refines="..."> elements to express file-as and role.
func extractAuthors(creators []dcElement, refinesMap map[string][]opfMeta) []Author {
	if len(creators) == 0 {
		return nil
	}

	authors := make([]Author, 0, len(creators))
	for _, c := range creators {
		if c.Value == "" {
			continue
		}

		a := Author{
			Name:   c.Value,
			FileAs: c.FileAs,
			Role:   c.Role,
		}

		// ePub 3: check refines for file-as and role if not set via attributes.
		if c.ID != "" {
			if a.FileAs == "" {
				if fa, ok := findRefine(refinesMap, c.ID, "file-as"); ok {
					a.FileAs = fa
				}
			}
			if a.Role == "" {
				if r, ok := findRefine(refinesMap, c.ID, "role"); ok {
					a.Role = r
				}
			}
		}

		authors = append(authors, a)
	}
	return authors
}
