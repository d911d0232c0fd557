package content

import (
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const (
	TitleSourceTOC         = "toc"
	TitleSourceDocument    = "title"
	TitleSourceHeading     = "heading"
	TitleSourceSynthesized = "synthesized"
	TitleSourceFailed      = "failed"
)

// Chapter is a named range over the block sequence. BlockEndIndex is
// exclusive, so an empty chapter has BlockStartIndex == BlockEndIndex.
type Chapter struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Index           int    `json:"index"`
	BlockStartIndex int    `json:"block_start_index"`
	BlockEndIndex   int    `json:"block_end_index"`
	TitleSource     string `json:"title_source,omitempty"`
}

func (c Chapter) Len() int {
	return c.BlockEndIndex - c.BlockStartIndex
}

// Content is the stored unit for a book. Text sources have no chapters.
type Content struct {
	Blocks   []Block   `json:"blocks"`
	Chapters []Chapter `json:"chapters,omitempty"`
}

var ErrInvalidChapters = errors.New("invalid chapters")

// ValidateChapters checks that chapters are indexed in order and tile
// [0, total) without gaps or overlaps.
func ValidateChapters(chapters []Chapter, total int) error {
	if len(chapters) == 0 {
		return nil
	}
	if chapters[0].BlockStartIndex != 0 {
		return errors.Wrapf(ErrInvalidChapters, "first chapter starts at %d", chapters[0].BlockStartIndex)
	}
	for i, ch := range chapters {
		if ch.Index != i {
			return errors.Wrapf(ErrInvalidChapters, "chapter %d has index %d", i, ch.Index)
		}
		if ch.BlockEndIndex < ch.BlockStartIndex {
			return errors.Wrapf(ErrInvalidChapters, "chapter %d ends before it starts", i)
		}
		if i > 0 && chapters[i-1].BlockEndIndex != ch.BlockStartIndex {
			return errors.Wrapf(ErrInvalidChapters, "gap between chapter %d and %d", i-1, i)
		}
	}
	if last := chapters[len(chapters)-1]; last.BlockEndIndex != total {
		return errors.Wrapf(ErrInvalidChapters, "last chapter ends at %d, want %d", last.BlockEndIndex, total)
	}
	return nil
}

func (c *Content) Validate() error {
	seen := make(map[string]struct{}, len(c.Blocks))
	for _, b := range c.Blocks {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, ok := seen[b.ID]; ok {
			return errors.Wrapf(ErrInvalidBlock, "duplicate id %s", b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return ValidateChapters(c.Chapters, len(c.Blocks))
}

func (c *Content) Marshal() ([]byte, error) {
	b, err := json.Marshal(c)
	return b, errors.WithStack(err)
}

func Unmarshal(data []byte) (*Content, error) {
	c := &Content{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.WithStack(err)
	}
	if c.Blocks == nil {
		c.Blocks = []Block{}
	}
	return c, nil
}
