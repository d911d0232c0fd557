package testgen

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// GenerateEPUB writes BuildEPUB's output to dir/filename and returns the path.
func GenerateEPUB(t *testing.T, dir, filename string, opts EPUBOptions) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, BuildEPUB(t, opts), 0600); err != nil {
		t.Fatalf("failed to write EPUB %s: %v", path, err)
	}
	return path
}

// BuildEPUB assembles an EPUB in memory. Everything lives under OEBPS/ next
// to content.opf. With no chapters configured a single chapter with a heading
// and one paragraph is generated.
func BuildEPUB(t *testing.T, opts EPUBOptions) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// mimetype must be first and uncompressed
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatalf("failed to create mimetype entry: %v", err)
	}
	if _, err := w.Write([]byte("application/epub+zip")); err != nil {
		t.Fatalf("failed to write mimetype: %v", err)
	}

	opfPath := opts.OPFPath
	if opfPath == "" {
		opfPath = "OEBPS/content.opf"
	}

	if !opts.OmitContainer {
		containerXML := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, opfPath)
		writeEntry(t, zw, "META-INF/container.xml", []byte(containerXML))
	}

	dir := filepath.ToSlash(filepath.Dir(opfPath)) + "/"

	coverMimeType := opts.CoverMimeType
	if coverMimeType == "" {
		coverMimeType = "image/png"
	}
	var coverFilename string
	if opts.HasCover {
		coverFilename = "cover.png"
		if coverMimeType == "image/jpeg" {
			coverFilename = "cover.jpg"
		}
		writeEntry(t, zw, dir+coverFilename, GenerateImage(t, coverMimeType))
	}

	chapters := opts.Chapters
	if len(chapters) == 0 {
		chapters = []EPUBChapter{{
			Title: "Chapter 1",
			Body:  "<h1>Chapter 1</h1>\n<p>This is a test chapter.</p>",
		}}
	}
	for i := range chapters {
		if chapters[i].ID == "" {
			chapters[i].ID = fmt.Sprintf("chapter%d", i+1)
		}
		if chapters[i].Href == "" {
			chapters[i].Href = chapters[i].ID + ".xhtml"
		}
		if chapters[i].Omit {
			continue
		}
		data := chapters[i].Raw
		if data == nil {
			data = []byte(chapterDocument(chapters[i]))
		}
		writeEntry(t, zw, dir+chapters[i].Href, data)
	}

	for name, data := range opts.Resources {
		writeEntry(t, zw, dir+name, data)
	}

	if len(opts.TOC) > 0 {
		switch opts.TOCFormat {
		case TOCFormatNCX:
			writeEntry(t, zw, dir+"toc.ncx", []byte(generateNCX(opts.TOC)))
		default:
			writeEntry(t, zw, dir+"nav.xhtml", []byte(generateNav(opts.TOC)))
		}
	}

	if !opts.OmitOPF {
		writeEntry(t, zw, opfPath, []byte(generateOPF(opts, chapters, coverFilename, coverMimeType)))
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish EPUB: %v", err)
	}
	return buf.Bytes()
}

func chapterDocument(ch EPUBChapter) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
`)
	if ch.Title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", escapeXML(ch.Title))
	}
	buf.WriteString("</head>\n<body>\n")
	buf.WriteString(ch.Body)
	buf.WriteString("\n</body>\n</html>")
	return buf.String()
}

func generateOPF(opts EPUBOptions, chapters []EPUBChapter, coverFilename, coverMimeType string) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package version="3.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
`)

	// Title is optional so callers can exercise the file name fallback
	if opts.Title != "" {
		fmt.Fprintf(&buf, "    <dc:title id=\"title\">%s</dc:title>\n", escapeXML(opts.Title))
	}
	for i, author := range opts.Authors {
		fmt.Fprintf(&buf, "    <dc:creator id=\"creator%d\" opf:role=\"aut\">%s</dc:creator>\n", i, escapeXML(author))
	}
	buf.WriteString("    <dc:identifier id=\"bookid\">urn:uuid:test-book-id</dc:identifier>\n")
	language := opts.Language
	if language == "" {
		language = "en"
	}
	fmt.Fprintf(&buf, "    <dc:language>%s</dc:language>\n", escapeXML(language))
	if coverFilename != "" {
		buf.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	}
	buf.WriteString("  </metadata>\n")

	buf.WriteString("  <manifest>\n")
	for _, ch := range chapters {
		fmt.Fprintf(&buf, "    <item id=\"%s\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", ch.ID, escapeXML(ch.Href))
	}
	if coverFilename != "" {
		fmt.Fprintf(&buf, "    <item id=\"cover-image\" href=\"%s\" media-type=\"%s\"/>\n", coverFilename, coverMimeType)
	}
	for name := range opts.Resources {
		fmt.Fprintf(&buf, "    <item id=\"res-%s\" href=\"%s\" media-type=\"%s\"/>\n", sanitizeID(name), escapeXML(name), resourceMediaType(name))
	}
	spineTOC := ""
	if len(opts.TOC) > 0 {
		if opts.TOCFormat == TOCFormatNCX {
			buf.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
			spineTOC = ` toc="ncx"`
		} else {
			buf.WriteString("    <item id=\"nav\" href=\"nav.xhtml\" media-type=\"application/xhtml+xml\" properties=\"nav\"/>\n")
		}
	}
	buf.WriteString("  </manifest>\n")

	fmt.Fprintf(&buf, "  <spine%s>\n", spineTOC)
	for _, ch := range chapters {
		fmt.Fprintf(&buf, "    <itemref idref=\"%s\"/>\n", ch.ID)
	}
	buf.WriteString("  </spine>\n")
	buf.WriteString("</package>")

	return buf.String()
}

func generateNav(entries []EPUBTOCEntry) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>Contents</title></head>
<body>
  <nav epub:type="toc" id="toc">
    <ol>
`)
	for _, e := range entries {
		fmt.Fprintf(&buf, "      <li><a href=\"%s\">%s</a></li>\n", escapeXML(e.Href), escapeXML(e.Title))
	}
	buf.WriteString("    </ol>\n  </nav>\n</body>\n</html>")
	return buf.String()
}

func generateNCX(entries []EPUBTOCEntry) string {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
`)
	for i, e := range entries {
		fmt.Fprintf(&buf, "    <navPoint id=\"np%d\" playOrder=\"%d\">\n", i+1, i+1)
		fmt.Fprintf(&buf, "      <navLabel><text>%s</text></navLabel>\n", escapeXML(e.Title))
		fmt.Fprintf(&buf, "      <content src=\"%s\"/>\n", escapeXML(e.Href))
		buf.WriteString("    </navPoint>\n")
	}
	buf.WriteString("  </navMap>\n</ncx>")
	return buf.String()
}

func writeEntry(t *testing.T, zw *zip.Writer, name string, data []byte) {
	t.Helper()
	w, err := zw.Create(name)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// GenerateImage returns a small solid-colour image in the given format.
func GenerateImage(t *testing.T, mimeType string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	blue := color.RGBA{0, 100, 200, 255}
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, blue)
		}
	}

	var buf bytes.Buffer
	switch mimeType {
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
			t.Fatalf("failed to encode JPEG: %v", err)
		}
	default: // image/png
		if err := png.Encode(&buf, img); err != nil {
			t.Fatalf("failed to encode PNG: %v", err)
		}
	}

	return buf.Bytes()
}

func resourceMediaType(name string) string {
	switch filepath.Ext(name) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".mp4":
		return "video/mp4"
	case ".css":
		return "text/css"
	default:
		return "application/octet-stream"
	}
}

func sanitizeID(name string) string {
	b := []byte(name)
	for i, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			b[i] = '-'
		}
	}
	return string(b)
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\'':
			buf.WriteString("&apos;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
