package chapters

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shishobooks/folio/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildChapters lays out chapters of the given lengths back to back.
func buildChapters(lengths ...int) []content.Chapter {
	chs := make([]content.Chapter, 0, len(lengths))
	start := 0
	for i, l := range lengths {
		chs = append(chs, content.Chapter{
			ID:              fmt.Sprintf("ch%d", i),
			Title:           fmt.Sprintf("Chapter %d", i+1),
			Index:           i,
			BlockStartIndex: start,
			BlockEndIndex:   start + l,
		})
		start += l
	}
	return chs
}

// linearLocate is the reference Locate is checked against.
func linearLocate(chs []content.Chapter, idx int) int {
	found := -1
	for i, ch := range chs {
		if ch.BlockStartIndex <= idx {
			found = i
		}
	}
	if found == -1 && len(chs) > 0 {
		return 0
	}
	return found
}

func TestLocate(t *testing.T) {
	t.Parallel()

	chs := buildChapters(3, 0, 4, 1)
	// ranges: [0,3) [3,3) [3,7) [7,8)
	tests := []struct {
		idx  int
		want int
	}{
		{0, 0},
		{2, 0},
		{3, 2}, // the empty chapter never wins over the one sharing its start
		{6, 2},
		{7, 3},
		{100, 3},
		{-5, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Locate(chs, tt.idx), "block %d", tt.idx)
	}
}

func TestLocate_Empty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, -1, Locate(nil, 0))
	assert.Equal(t, -1, Locate([]content.Chapter{}, 10))
}

func TestLocate_MatchesLinearReference(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		lengths := make([]int, 1+r.Intn(20))
		for i := range lengths {
			lengths[i] = r.Intn(6)
		}
		chs := buildChapters(lengths...)
		require.NoError(t, content.ValidateChapters(chs, chs[len(chs)-1].BlockEndIndex))

		for _, ch := range chs {
			for _, idx := range []int{ch.BlockStartIndex, ch.BlockEndIndex - 1, ch.BlockEndIndex} {
				assert.Equal(t, linearLocate(chs, idx), Locate(chs, idx), "round %d block %d", round, idx)
			}
		}
	}
}

func TestLocate_ContainsBlock(t *testing.T) {
	t.Parallel()

	chs := buildChapters(2, 5, 3)
	for idx := 0; idx < 10; idx++ {
		i := Locate(chs, idx)
		assert.LessOrEqual(t, chs[i].BlockStartIndex, idx)
		assert.Less(t, idx, chs[i].BlockEndIndex)
	}
}

func TestTitle(t *testing.T) {
	t.Parallel()

	chs := buildChapters(2, 2)
	title, ok := Title(chs, 3)
	assert.True(t, ok)
	assert.Equal(t, "Chapter 2", title)

	_, ok = Title(nil, 3)
	assert.False(t, ok)
}

func TestScrollToPercent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		total   int
		percent float64
		want    int
	}{
		{100, 0, 0},
		{100, 50, 50},
		{100, 99.99, 99},
		{100, 100, 99},
		{100, 150, 99},
		{100, -3, 0},
		{3, 50, 1},
		{0, 50, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScrollToPercent(tt.total, tt.percent), "total=%d percent=%v", tt.total, tt.percent)
	}
}

func TestScrollToChapter(t *testing.T) {
	t.Parallel()

	chs := buildChapters(2, 5, 3)
	idx, ok := ScrollToChapter(chs, 2)
	assert.True(t, ok)
	assert.Equal(t, 7, idx)

	_, ok = ScrollToChapter(chs, 3)
	assert.False(t, ok)
	_, ok = ScrollToChapter(chs, -1)
	assert.False(t, ok)
}

func TestClampOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ClampOffset(5, 0))
	assert.Equal(t, 4, ClampOffset(9, 5))
	assert.Equal(t, 2, ClampOffset(2, 5))
	assert.Equal(t, 0, ClampOffset(-1, 5))
}

func TestPercent(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		offset, total int
		want          float64
	}{
		{0, 0, 0},
		{0, 10, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{5, 10, 50},
		{9, 10, 90},
	}
	for _, tc := range tcs {
		assert.InDelta(t, tc.want, Percent(tc.offset, tc.total), 1e-9, "%d/%d", tc.offset, tc.total)
	}

	prev := -1.0
	for i := 0; i < 137; i++ {
		p := Percent(i, 137)
		require.GreaterOrEqual(t, p, prev)
		prev = p
	}
}
