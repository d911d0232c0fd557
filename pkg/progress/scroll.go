package progress

import (
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/chapters"
	"github.com/shishobooks/folio/pkg/content"
)

// ErrNoSuchChapter is returned for a scroll target past the last chapter.
var ErrNoSuchChapter = errors.New("no such chapter")

// Scroll is an instruction for the rendering widget: bring BlockIndex into
// view. ChapterIndex is -1 for books without chapters.
type Scroll struct {
	BlockIndex   int    `json:"block_index"`
	ChapterIndex int    `json:"chapter_index"`
	ChapterTitle string `json:"chapter_title,omitempty"`
}

// Target is where to scroll. Percent wins over Chapter; with neither set the
// stored resume offset is used.
type Target struct {
	Percent *float64
	Chapter *int
	Resume  int
}

func ResolveScroll(c *content.Content, target Target) (*Scroll, error) {
	total := len(c.Blocks)

	var idx int
	switch {
	case target.Percent != nil:
		idx = chapters.ScrollToPercent(total, *target.Percent)
	case target.Chapter != nil:
		start, ok := chapters.ScrollToChapter(c.Chapters, *target.Chapter)
		if !ok {
			return nil, errors.Wrapf(ErrNoSuchChapter, "chapter %d of %d", *target.Chapter, len(c.Chapters))
		}
		idx = chapters.ClampOffset(start, total)
	default:
		idx = chapters.ClampOffset(target.Resume, total)
	}

	s := &Scroll{BlockIndex: idx, ChapterIndex: chapters.Locate(c.Chapters, idx)}
	if s.ChapterIndex >= 0 {
		s.ChapterTitle = c.Chapters[s.ChapterIndex].Title
	}
	return s, nil
}
