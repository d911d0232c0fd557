// Package chapters answers positional questions about a book's chapter
// ranges: which chapter holds a block, and where navigation should land.
package chapters

import (
	"math"
	"sort"

	"github.com/shishobooks/folio/pkg/content"
)

// Locate returns the index of the chapter containing blockIndex, or -1 when
// there are no chapters. Chapters must be sorted and contiguous. Indexes
// before the first chapter resolve to 0 and indexes past the end resolve to
// the last chapter.
func Locate(chapters []content.Chapter, blockIndex int) int {
	n := len(chapters)
	if n == 0 {
		return -1
	}
	// First chapter whose start is beyond blockIndex; the one before it is
	// the rightmost chapter starting at or before blockIndex.
	i := sort.Search(n, func(i int) bool {
		return chapters[i].BlockStartIndex > blockIndex
	})
	if i == 0 {
		return 0
	}
	return i - 1
}

// Title returns the title of the chapter containing blockIndex.
func Title(chapters []content.Chapter, blockIndex int) (string, bool) {
	i := Locate(chapters, blockIndex)
	if i < 0 {
		return "", false
	}
	return chapters[i].Title, true
}

// ScrollToPercent converts a 0-100 percentage into a block index within
// [0, total). It returns 0 for empty content.
func ScrollToPercent(total int, percent float64) int {
	if total <= 0 {
		return 0
	}
	if percent < 0 || math.IsNaN(percent) {
		percent = 0
	}
	idx := int(math.Floor(percent / 100 * float64(total)))
	return clamp(idx, total)
}

// ScrollToChapter returns the first block index of the chapter at position
// chapterIndex. ok is false when the chapter does not exist.
func ScrollToChapter(chapters []content.Chapter, chapterIndex int) (int, bool) {
	if chapterIndex < 0 || chapterIndex >= len(chapters) {
		return 0, false
	}
	return chapters[chapterIndex].BlockStartIndex, true
}

// ClampOffset pins a stored paragraph offset to a valid block index for
// content of the given length.
func ClampOffset(offset, total int) int {
	if total <= 0 {
		return 0
	}
	return clamp(offset, total)
}

func clamp(idx, total int) int {
	if idx < 0 {
		return 0
	}
	if idx >= total {
		return total - 1
	}
	return idx
}

// Percent is offset as a percentage of total, rounded to two decimals.
func Percent(offset, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(offset)/float64(total)*100*100) / 100
}
