// Package epub turns an EPUB archive into the reader's block stream. Chapter
// order follows the spine; the table of contents only supplies titles.
package epub

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/htmlutil"
	"golang.org/x/net/html"
)

var (
	// ErrMalformedArchive means the structural prerequisites of the book
	// (zip container, container descriptor, package document) are missing.
	ErrMalformedArchive = errors.New("malformed archive")
	// ErrUnsupportedContent means the archive opened but yielded no blocks.
	ErrUnsupportedContent = errors.New("unsupported content")
)

type Options struct {
	MaxEntrySize int64
}

type Metadata struct {
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Language string   `json:"language,omitempty"`
	// Cover is a data URI, empty when the book has no cover image.
	Cover string `json:"cover,omitempty"`
}

type Result struct {
	Blocks   []content.Block   `json:"blocks"`
	Chapters []content.Chapter `json:"chapters"`
	Metadata Metadata          `json:"metadata"`
	Warnings []string          `json:"warnings,omitempty"`
}

// Content returns the storable part of the result.
func (r *Result) Content() *content.Content {
	return &content.Content{Blocks: r.Blocks, Chapters: r.Chapters}
}

func ParseFile(ctx context.Context, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return Parse(ctx, data, opts)
}

// Parse converts EPUB bytes into blocks and chapters. A chapter that cannot
// be read or parsed is kept with a "(parse failed)" title and the rest of the
// book still loads.
func Parse(ctx context.Context, data []byte, opts Options) (*Result, error) {
	a, err := openArchive(data, opts.MaxEntrySize)
	if err != nil {
		return nil, err
	}

	opfPath, err := rootfilePath(a)
	if err != nil {
		return nil, err
	}
	opfFile := a.exact(opfPath)
	if opfFile == nil {
		opfFile = a.find(opfPath)
	}
	if opfFile == nil {
		return nil, errors.Wrapf(ErrMalformedArchive, "package document %s not found", opfPath)
	}
	opfData, err := a.readFile(opfFile)
	if err != nil {
		return nil, errors.Wrap(ErrMalformedArchive, err.Error())
	}
	pkg, err := parsePackage(opfFile.Name, opfData)
	if err != nil {
		return nil, err
	}

	p := &parser{
		log:     logger.FromContext(ctx),
		archive: a,
		pkg:     pkg,
		ids:     content.NewIDGenerator(""),
		result: &Result{
			Blocks:   []content.Block{},
			Chapters: []content.Chapter{},
			Metadata: pkg.metadata,
		},
	}
	p.resources = newResources(a, pkg, func(ref, resolved string) {
		p.warn("resource missing", resolved, errors.Errorf("referenced as %q", ref))
	})

	titles := p.tableOfContents()

	for i, id := range pkg.spine {
		if err := ctx.Err(); err != nil {
			return nil, errors.WithStack(err)
		}
		p.chapter(i, pkg.manifest[id], titles)
	}

	if len(p.result.Blocks) == 0 {
		return nil, errors.Wrapf(ErrUnsupportedContent, "no readable content in %d spine items", len(pkg.spine))
	}

	if item, ok := pkg.coverItem(); ok {
		if b, err := a.read(item.Path); err == nil && len(b) > 0 {
			p.result.Metadata.Cover = dataURI(item.MediaType, b)
		}
	}

	return p.result, nil
}

type parser struct {
	log       logger.Logger
	archive   *archive
	pkg       *packageDoc
	resources *resources
	ids       *content.IDGenerator
	result    *Result
}

func (p *parser) warn(msg, path string, err error) {
	entry := msg + ": " + path
	if err != nil {
		entry += ": " + err.Error()
	}
	p.result.Warnings = append(p.result.Warnings, entry)
	p.log.Warn(msg, logger.Data{"path": path, "error": fmt.Sprint(err)})
}

// chapter appends the blocks of one spine document and its Chapter record.
// The record is appended no matter what happens inside.
func (p *parser) chapter(index int, item ManifestItem, titles map[string]string) {
	start := len(p.result.Blocks)
	ch := content.Chapter{
		ID:              fmt.Sprintf("ch%d", index),
		Index:           index,
		BlockStartIndex: start,
	}

	w := &walker{ids: p.ids}
	title, source, err := p.walkDocument(index, item, titles, w)
	p.result.Blocks = append(p.result.Blocks, w.blocks...)

	if err != nil {
		title += " (parse failed)"
		source = content.TitleSourceFailed
		p.warn("chapter parse failed", item.Path, err)
	}

	ch.Title = title
	ch.TitleSource = source
	ch.BlockEndIndex = len(p.result.Blocks)
	p.result.Chapters = append(p.result.Chapters, ch)

	p.log.Debug("parsed chapter", logger.Data{
		"path":         item.Path,
		"title":        title,
		"title_source": source,
		"blocks":       ch.Len(),
	})
}

// walkDocument reads and walks one spine document. The title is worked out
// before anything that can fail inside the document so a failed chapter
// still gets the best name available.
func (p *parser) walkDocument(index int, item ManifestItem, titles map[string]string, w *walker) (title, source string, err error) {
	if t, ok := titles[item.Path]; ok {
		title, source = t, content.TitleSourceTOC
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic while parsing: %v", r)
		}
		if title == "" {
			title, source = synthesizedTitle(index), content.TitleSourceSynthesized
		}
	}()

	data, err := p.archive.read(item.Path)
	if err != nil {
		return title, source, err
	}
	doc, err := parseDocument(data)
	if err != nil {
		return title, source, err
	}

	if title == "" {
		title, source = documentTitle(doc)
	}

	p.resources.embedResources(doc, item.Path)

	if err := w.walk(doc); err != nil {
		return title, source, err
	}
	if len(w.blocks) == 0 {
		if body := findFirst(doc, elementNamed("body")); body != nil {
			if err := w.fallback(body); err != nil {
				return title, source, err
			}
		}
	}
	return title, source, nil
}

// documentTitle returns the <title> text, else the first heading.
func documentTitle(doc *html.Node) (string, string) {
	if t := findFirst(doc, elementNamed("title")); t != nil {
		if text := collapseSpace(textContent(t)); text != "" {
			return text, content.TitleSourceDocument
		}
	}
	if h := findFirst(doc, elementNamed("h1", "h2", "h3", "h4", "h5", "h6")); h != nil {
		inner, err := innerHTML(h)
		if err == nil {
			if text := collapseSpace(htmlutil.StripTags(inner)); text != "" {
				return text, content.TitleSourceHeading
			}
		}
	}
	return "", ""
}

func synthesizedTitle(index int) string {
	return fmt.Sprintf("Chapter %d", index+1)
}

// IsEPUB reports whether name has an EPUB extension.
func IsEPUB(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".epub")
}
