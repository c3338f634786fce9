package epubtext

import (
	"archive/zip"
	"fmt"
	"strings"
)

// containerPath is where the OCF container format places container.xml.
const containerPath = "META-INF/container.xml"

// oebpsPackageMediaType is the media-type a rootfile entry must carry to be
// the package document.
const oebpsPackageMediaType = "application/oebps-package+xml"

// parseContainer determines the package document path for the archive.
//
// The well-known META-INF/container.xml is consulted first, with a
// case-insensitive lookup. When it is absent the archive is scanned for any
// ".opf" entry instead, which recovers books whose META-INF directory was
// lost. A wrapped ErrInvalidEPub comes back when neither route produces a
// path.
func parseContainer(zr *zip.Reader) (string, error) {
	if f := findFileInsensitive(zr, containerPath); f != nil {
		return parseContainerXML(f)
	}
	return fallbackFindOPF(zr)
}

// parseContainerXML reads a container.xml ZIP entry and returns the full-path
// of the package rootfile. The document goes through the fault-tolerant
// parser, so a container.xml with broken markup still yields a path as long
// as a rootfile element with a full-path attribute survives the parse.
func parseContainerXML(f *zip.File) (string, error) {
	data, err := readZipFile(f)
	if err != nil {
		return "", fmt.Errorf("epubtext: read container.xml: %w", err)
	}

	doc := Parse(string(stripBOM(data)))

	// Rootfile elements are matched anywhere in the tree, not just under
	// rootfiles, so a missing or mangled wrapper element does not hide them.
	rootFiles := findAllLocal(doc, "rootfile")
	if len(rootFiles) == 0 {
		return "", fmt.Errorf("epubtext: container.xml has no rootfile entries: %w", ErrInvalidEPub)
	}

	var fallbackPath string
	for _, rf := range rootFiles {
		fullPath := strings.TrimSpace(attrLocal(rf, "full-path"))
		if fullPath == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(attrLocal(rf, "media-type")), oebpsPackageMediaType) {
			return fullPath, nil
		}
		if fallbackPath == "" {
			fallbackPath = fullPath
		}
	}

	if fallbackPath == "" {
		return "", fmt.Errorf("epubtext: container.xml rootfile has empty full-path: %w", ErrInvalidEPub)
	}

	return fallbackPath, nil
}

// fallbackFindOPF returns the first archive entry whose name ends in ".opf",
// ignoring case.
func fallbackFindOPF(zr *zip.Reader) (string, error) {
	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}
	return "", fmt.Errorf("epubtext: no OPF file found in archive: %w", ErrInvalidEPub)
}
