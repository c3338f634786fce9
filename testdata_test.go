package epubtext

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// writeTestZip builds a ZIP archive from the files map (path → content) and
// returns the raw bytes. The "mimetype" entry, if present, is written first
// (the ePub container format requires it as the first entry) and the rest
// follow in sorted order so archives are reproducible. It calls t.Fatal on
// any error.
func writeTestZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		if name != "mimetype" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := files["mimetype"]; ok {
		names = append([]string{"mimetype"}, names...)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("writeTestZip: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, files[name]); err != nil {
			t.Fatalf("writeTestZip: write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("writeTestZip: close writer: %v", err)
	}
	return buf.Bytes()
}

// buildTestZip creates an in-memory ZIP archive from the provided files map
// and returns a *zip.Reader over the resulting bytes.
func buildTestZip(t *testing.T, files map[string]string) *zip.Reader {
	t.Helper()
	data := writeTestZip(t, files)
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("buildTestZip: open reader: %v", err)
	}
	return r
}

// buildTestEPubBytes creates an in-memory ePub (ZIP) archive and returns the
// raw bytes, for use with NewReader.
func buildTestEPubBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	return writeTestZip(t, files)
}

// buildTestEPubFile writes an ePub (ZIP) archive to a temporary file and returns
// the file path. This variant is useful for testing Open() which requires a file path.
func buildTestEPubFile(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	fp := filepath.Join(dir, "test.epub")
	if err := os.WriteFile(fp, writeTestZip(t, files), 0644); err != nil {
		t.Fatalf("buildTestEPubFile: write file: %v", err)
	}
	return fp
}
