package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/chapters"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/epub"
	"github.com/shishobooks/folio/pkg/htmlutil"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/shishobooks/folio/pkg/txt"
)

const previewLength = 60

type InspectCmd struct {
	Path     string `arg:"" help:"EPUB or text file to inspect" type:"existingfile"`
	Encoding string `help:"Encoding to try first for text files"`
	Blocks   bool   `short:"b" help:"List every block under its chapter"`
}

func (c *InspectCmd) Run(e *env) error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return errors.WithStack(err)
	}
	name := filepath.Base(c.Path)

	var (
		bc       *content.Content
		title    string
		encoding string
		warnings []string
	)
	switch books.DetectFormat(name, data) {
	case models.FormatEPUB:
		res, err := epub.Parse(e.ctx, data, epub.Options{})
		if err != nil {
			return err
		}
		bc, title, warnings = res.Content(), res.Metadata.Title, res.Warnings
	case models.FormatTXT:
		var encodings []string
		if c.Encoding != "" {
			encodings = append([]string{c.Encoding}, txt.DefaultEncodings...)
		}
		res, err := txt.IngestBytes(name, data, txt.Options{Encodings: encodings})
		if err != nil {
			return err
		}
		bc, title, encoding = &content.Content{Blocks: res.Blocks}, txt.Title(name), res.Encoding
	default:
		return errors.Errorf("%s is not an EPUB or text file", name)
	}

	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Title:\t%s\n", title)
	fmt.Fprintf(w, "Size:\t%s\n", humanize.IBytes(uint64(len(data))))
	if encoding != "" {
		fmt.Fprintf(w, "Encoding:\t%s\n", encoding)
	}
	fmt.Fprintf(w, "Blocks:\t%s\n", humanize.Comma(int64(len(bc.Blocks))))
	fmt.Fprintf(w, "Chapters:\t%d\n", len(bc.Chapters))
	for _, warning := range warnings {
		fmt.Fprintf(w, "Warning:\t%s\n", warning)
	}
	if err := w.Flush(); err != nil {
		return errors.WithStack(err)
	}

	w = tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	for _, ch := range bc.Chapters {
		fmt.Fprintf(w, "%d\t%s\t[%d, %d)\t%s\n", ch.Index, ch.Title, ch.BlockStartIndex, ch.BlockEndIndex, ch.TitleSource)
		if c.Blocks {
			for _, b := range bc.Blocks[ch.BlockStartIndex:ch.BlockEndIndex] {
				fmt.Fprintf(w, "\t%s\t\t\n", preview(b))
			}
		}
	}
	if c.Blocks && len(bc.Chapters) == 0 {
		for i, b := range bc.Blocks {
			fmt.Fprintf(w, "%d\t%s\n", i, preview(b))
		}
	}
	return errors.WithStack(w.Flush())
}

func preview(b content.Block) string {
	switch b.Type {
	case content.BlockTypeParagraph:
		return htmlutil.Preview(b.Text, previewLength)
	case content.BlockTypeMarkup:
		return "<" + b.Tag + "> " + htmlutil.Preview(b.HTML, previewLength)
	default:
		return b.String()
	}
}

type ImportCmd struct {
	Paths    []string `arg:"" help:"Files to import" type:"existingfile"`
	Replace  *int     `help:"Re-import a single file into this book, keeping its reading history"`
	Encoding string   `help:"Encoding to try first for text files"`
}

func (c *ImportCmd) Run(e *env) error {
	if c.Replace != nil && len(c.Paths) != 1 {
		return errors.New("--replace takes exactly one file")
	}
	if err := e.open(); err != nil {
		return err
	}

	for _, p := range c.Paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return errors.WithStack(err)
		}
		res, err := e.importer.Import(e.ctx, filepath.Base(p), data, books.ImportOptions{
			ReplaceID: c.Replace,
			Encoding:  c.Encoding,
		})
		if err != nil {
			return errors.Wrapf(err, "failed to import %s", p)
		}

		status := "imported"
		if res.Duplicate {
			status = "already imported"
		}
		fmt.Fprintf(e.out, "%s: %s as #%d %q (%s blocks, %d chapters)\n",
			p, status, res.Book.ID, res.Book.Title, humanize.Comma(int64(res.Book.TotalBlocks)), res.Book.TotalChapters)
		for _, w := range res.Warnings {
			fmt.Fprintf(e.out, "  warning: %s\n", w)
		}
	}
	return nil
}

type ProgressCmd struct {
	ID      int      `arg:"" help:"Book id"`
	Block   *int     `help:"Move the reading position to this block"`
	Percent *float64 `help:"Move the reading position to this percentage"`
}

func (c *ProgressCmd) Run(e *env) error {
	if err := e.open(); err != nil {
		return err
	}

	book, err := e.repo.Get(e.ctx, c.ID)
	if err != nil {
		return err
	}

	if c.Block != nil || c.Percent != nil {
		bc, err := e.repo.Content(e.ctx, c.ID)
		if err != nil {
			return err
		}
		target, err := progress.ResolveScroll(bc, progress.Target{Percent: c.Percent, Resume: derefInt(c.Block)})
		if err != nil {
			return err
		}
		pos := progress.Position{BlockIndex: target.BlockIndex}
		if title, ok := chapters.Title(bc.Chapters, target.BlockIndex); ok {
			pos.CurrentChapter = &title
		}
		if _, err := e.tracker.Update(e.ctx, c.ID, pos); err != nil {
			return err
		}
		book, err = e.repo.Get(e.ctx, c.ID)
		if err != nil {
			return err
		}
	}

	rp := book.ReadingProgress()
	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Book:\t#%d %s\n", book.ID, book.Title)
	fmt.Fprintf(w, "Position:\tblock %d of %d (%.2f%%)\n", rp.ParaOffset, book.TotalBlocks, rp.Progress)
	if rp.CurrentChapter != nil {
		fmt.Fprintf(w, "Chapter:\t%s\n", *rp.CurrentChapter)
	}
	fmt.Fprintf(w, "Reading time:\t%s\n", minutes(rp.ReadingTime))
	fmt.Fprintf(w, "Read count:\t%d\n", rp.ReadCount)
	if rp.LastReadAt != nil {
		fmt.Fprintf(w, "Last read:\t%s\n", humanize.Time(*rp.LastReadAt))
	}
	return errors.WithStack(w.Flush())
}

type StatsCmd struct{}

func (c *StatsCmd) Run(e *env) error {
	if err := e.open(); err != nil {
		return err
	}

	s := e.tracker.Stats(e.ctx)
	w := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Books:\t%d\n", s.TotalBooks)
	fmt.Fprintf(w, "Reading time:\t%s\n", minutes(s.TotalReadingTime))
	fmt.Fprintf(w, "Average progress:\t%d%%\n", s.AverageProgress)
	for _, b := range s.RecentlyRead {
		fmt.Fprintf(w, "\t#%d %s\t%.0f%%\t%s\n", b.ID, b.Title, b.Progress, humanize.Time(*b.LastReadAt))
	}
	return errors.WithStack(w.Flush())
}

func minutes(n int) string {
	return (time.Duration(n) * time.Minute).String()
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
