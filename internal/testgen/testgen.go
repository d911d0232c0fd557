// Package testgen builds book fixtures (EPUB archives, compressed text) for
// parser, importer and handler tests.
package testgen

import (
	"bytes"
	"compress/gzip"
	"os"
	"testing"

	"github.com/ulikunitz/xz"
)

const (
	TOCFormatNav = "nav"
	TOCFormatNCX = "ncx"
)

// EPUBChapter is one spine document. ID and Href default to chapterN and
// chapterN.xhtml.
type EPUBChapter struct {
	ID    string
	Href  string
	Title string // <title> in the head, omitted when empty
	Body  string // raw markup placed inside <body>
	Raw   []byte // replaces the whole generated document when set
	Omit  bool   // listed in the manifest and spine but absent from the archive
}

// EPUBTOCEntry is one navigation entry. Href is relative to the package
// document.
type EPUBTOCEntry struct {
	Title string
	Href  string
}

// EPUBOptions configures the generated EPUB file.
type EPUBOptions struct {
	Title         string
	Authors       []string
	Language      string
	HasCover      bool
	CoverMimeType string // "image/jpeg" or "image/png", defaults to "image/png"
	Chapters      []EPUBChapter
	TOC           []EPUBTOCEntry
	TOCFormat     string            // TOCFormatNav (default) or TOCFormatNCX
	Resources     map[string][]byte // extra files next to the package document
	OPFPath       string            // defaults to "OEBPS/content.opf"
	OmitContainer bool
	OmitOPF       bool
}

// TempDir creates a temporary directory for testing and registers cleanup.
func TempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// Gzip compresses data the way a .txt.gz upload would arrive.
func Gzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(data); err != nil {
		t.Fatalf("failed to gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("failed to gzip: %v", err)
	}
	return buf.Bytes()
}

// XZ compresses data the way a .txt.xz upload would arrive.
func XZ(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("failed to create xz writer: %v", err)
	}
	if _, err := xw.Write(data); err != nil {
		t.Fatalf("failed to xz: %v", err)
	}
	if err := xw.Close(); err != nil {
		t.Fatalf("failed to xz: %v", err)
	}
	return buf.Bytes()
}
