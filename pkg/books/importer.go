package books

import (
	"context"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/chapters"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/epub"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/txt"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrEmptyText means a text file decoded to nothing at all.
	ErrEmptyText = errors.New("text file is empty")
)

type ImporterOptions struct {
	MaxEntrySize         int64
	Encodings            []string
	ReplacementThreshold float64
}

func ImporterOptionsFromConfig(cfg *config.Config) ImporterOptions {
	return ImporterOptions{
		MaxEntrySize:         cfg.MaxEntrySize(),
		Encodings:            cfg.TextEncodings,
		ReplacementThreshold: cfg.TextReplacementThreshold,
	}
}

type ImportOptions struct {
	// ReplaceID re-imports the file into an existing book. Reading history
	// is kept and the position is clamped to the new content.
	ReplaceID *int
	// Encoding is tried before the configured encodings when decoding text.
	Encoding string
}

type ImportResult struct {
	Book *models.Book `json:"book"`
	// Duplicate is set when identical bytes were already imported and the
	// existing book was returned untouched.
	Duplicate bool     `json:"duplicate"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Importer turns uploaded bytes into a stored book.
type Importer struct {
	repo  *Repository
	opts  ImporterOptions
	group singleflight.Group
}

func NewImporter(repo *Repository, opts ImporterOptions) *Importer {
	return &Importer{repo: repo, opts: opts}
}

// Import parses data and stores the book and its content. Concurrent imports
// of the same bytes share one parse. A failure to store is returned; the
// caller must not assume anything was saved.
func (imp *Importer) Import(ctx context.Context, name string, data []byte, opts ImportOptions) (*ImportResult, error) {
	sum := blake3.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	key := hash
	if opts.ReplaceID != nil {
		key = fmt.Sprintf("%s:%d", hash, *opts.ReplaceID)
	}

	v, err, _ := imp.group.Do(key, func() (interface{}, error) {
		return imp.importOnce(ctx, name, data, hash, opts)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*ImportResult)
	return &ImportResult{
		Book:      res.Book.Clone(),
		Duplicate: res.Duplicate,
		Warnings:  append([]string(nil), res.Warnings...),
	}, nil
}

func (imp *Importer) importOnce(ctx context.Context, name string, data []byte, hash string, opts ImportOptions) (*ImportResult, error) {
	log := logger.FromContext(ctx).ID(uuid.NewString()).Root(logger.Data{
		"file_name": name,
		"hash":      hash[:16],
	})
	ctx = log.WithContext(ctx)
	log.Info("importing book", logger.Data{"size": humanize.Bytes(uint64(len(data)))})

	existing, err := imp.repo.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		// Replacing another book with these bytes would leave two records
		// with one hash, so the existing one wins.
		if opts.ReplaceID != nil && *opts.ReplaceID != existing.ID {
			log.Warn("replacement matches a different book", logger.Data{"book_id": existing.ID, "replace_id": *opts.ReplaceID})
		} else {
			log.Info("book already imported", logger.Data{"book_id": existing.ID})
		}
		return &ImportResult{Book: existing, Duplicate: true}, nil
	}

	parsed, err := imp.parse(ctx, name, data, opts)
	if err != nil {
		log.Warn("import failed", logger.Data{"error": err.Error()})
		return nil, err
	}
	if err := parsed.content.Validate(); err != nil {
		return nil, errors.Wrap(err, "parsed content is inconsistent")
	}

	var saved *models.Book
	if opts.ReplaceID != nil {
		saved, err = imp.repo.Replace(ctx, *opts.ReplaceID, parsed.content, func(b *models.Book) {
			reposition(b, parsed.content)
			parsed.apply(b, name, int64(len(data)), hash)
		})
	} else {
		book := &models.Book{}
		parsed.apply(book, name, int64(len(data)), hash)
		saved, err = imp.repo.Save(ctx, book, parsed.content)
	}
	if err != nil {
		log.Err(err).Error("failed to store imported book")
		return nil, errors.Wrap(err, "failed to store imported book")
	}

	log.Info("imported book", logger.Data{
		"book_id":  saved.ID,
		"format":   saved.Format,
		"blocks":   saved.TotalBlocks,
		"chapters": saved.TotalChapters,
		"warnings": len(parsed.warnings),
	})
	return &ImportResult{Book: saved, Warnings: parsed.warnings}, nil
}

type parsedBook struct {
	format   string
	title    string
	authors  []string
	language string
	cover    string
	encoding string
	content  *content.Content
	warnings []string
}

func (p *parsedBook) apply(b *models.Book, name string, size int64, hash string) {
	b.Title = p.title
	b.Authors = p.authors
	b.Language = p.language
	b.Cover = p.cover
	b.Format = p.format
	b.FileName = path.Base(strings.ReplaceAll(name, "\\", "/"))
	b.FileSize = size
	b.ContentHash = hash
	b.Encoding = p.encoding
	b.TotalBlocks = len(p.content.Blocks)
	b.TotalChapters = len(p.content.Chapters)
}

// reposition keeps a re-imported book's place valid for its new content.
func reposition(b *models.Book, c *content.Content) {
	total := len(c.Blocks)
	b.ParaOffset = chapters.ClampOffset(b.ParaOffset, total)
	b.Progress = chapters.Percent(b.ParaOffset, total)
	b.CurrentChapter = nil
	if title, ok := chapters.Title(c.Chapters, b.ParaOffset); ok {
		b.CurrentChapter = &title
	}
}

func (imp *Importer) parse(ctx context.Context, name string, data []byte, opts ImportOptions) (*parsedBook, error) {
	switch DetectFormat(name, data) {
	case models.FormatEPUB:
		res, err := epub.Parse(ctx, data, epub.Options{MaxEntrySize: imp.opts.MaxEntrySize})
		if err != nil {
			return nil, err
		}
		title := res.Metadata.Title
		if title == "" {
			title = fileTitle(name)
		}
		return &parsedBook{
			format:   models.FormatEPUB,
			title:    title,
			authors:  res.Metadata.Authors,
			language: res.Metadata.Language,
			cover:    res.Metadata.Cover,
			content:  res.Content(),
			warnings: res.Warnings,
		}, nil
	case models.FormatTXT:
		encodings := imp.opts.Encodings
		if opts.Encoding != "" {
			if len(encodings) == 0 {
				encodings = txt.DefaultEncodings
			}
			encodings = append([]string{opts.Encoding}, encodings...)
		}
		res, err := txt.IngestBytes(name, data, txt.Options{
			Encodings:            encodings,
			ReplacementThreshold: imp.opts.ReplacementThreshold,
			MaxSize:              imp.opts.MaxEntrySize,
		})
		if err != nil {
			return nil, err
		}
		if len(res.Blocks) == 0 {
			return nil, errors.WithStack(ErrEmptyText)
		}
		return &parsedBook{
			format:   models.FormatTXT,
			title:    fileTitle(name),
			authors:  []string{},
			encoding: res.Encoding,
			content:  &content.Content{Blocks: res.Blocks, Chapters: []content.Chapter{}},
		}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", path.Ext(name))
}

// DetectFormat picks the ingestion path for an upload by extension first,
// then by sniffing the bytes. It returns "" when neither recognizes it.
func DetectFormat(name string, data []byte) string {
	switch {
	case epub.IsEPUB(name):
		return models.FormatEPUB
	case txt.IsText(name):
		return models.FormatTXT
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/epub+zip"), mt.Is("application/zip"):
		return models.FormatEPUB
	case txt.Compression(name, data) != txt.CompressionNone:
		return models.FormatTXT
	case strings.HasPrefix(mt.String(), "text/plain"):
		return models.FormatTXT
	}
	return ""
}

func fileTitle(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if epub.IsEPUB(base) {
		return base[:len(base)-len(".epub")]
	}
	return txt.Title(base)
}
