package content

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		block   Block
		wantErr bool
	}{
		{"empty paragraph is fine", NewParagraph("b0", ""), false},
		{"markup", NewMarkup("b1", "<b>hi</b>", "p"), false},
		{"markup without html", NewMarkup("b1", "", "p"), true},
		{"image", NewImage("b2", "data:image/png;base64,AA==", ""), false},
		{"image without src", NewImage("b2", "", "alt"), true},
		{"video", NewVideo("b3", "https://example.com/v.mp4", ""), false},
		{"embed", NewEmbed("b4", "audio", map[string]string{"src": "a.mp3"}), false},
		{"embed without component", NewEmbed("b4", "", nil), true},
		{"missing id", NewParagraph("", "text"), true},
		{"unknown type", Block{ID: "b5", Type: "table"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.block.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidBlock))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIDGenerator(t *testing.T) {
	t.Parallel()

	g := NewIDGenerator("")
	assert.Equal(t, "b0", g.Next())
	assert.Equal(t, "b1", g.Next())
	assert.Equal(t, 2, g.Count())

	p := NewIDGenerator("txt-")
	assert.Equal(t, "txt-0", p.Next())
}

func TestValidateChapters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		chapters []Chapter
		total    int
		wantErr  bool
	}{
		{"no chapters", nil, 10, false},
		{
			"contiguous with empty chapter",
			[]Chapter{
				{Index: 0, BlockStartIndex: 0, BlockEndIndex: 3},
				{Index: 1, BlockStartIndex: 3, BlockEndIndex: 3},
				{Index: 2, BlockStartIndex: 3, BlockEndIndex: 5},
			},
			5, false,
		},
		{
			"gap",
			[]Chapter{
				{Index: 0, BlockStartIndex: 0, BlockEndIndex: 2},
				{Index: 1, BlockStartIndex: 3, BlockEndIndex: 5},
			},
			5, true,
		},
		{
			"does not start at zero",
			[]Chapter{{Index: 0, BlockStartIndex: 1, BlockEndIndex: 5}},
			5, true,
		},
		{
			"short of total",
			[]Chapter{{Index: 0, BlockStartIndex: 0, BlockEndIndex: 4}},
			5, true,
		},
		{
			"out of order index",
			[]Chapter{
				{Index: 1, BlockStartIndex: 0, BlockEndIndex: 2},
				{Index: 0, BlockStartIndex: 2, BlockEndIndex: 5},
			},
			5, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateChapters(tt.chapters, tt.total)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidChapters)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContentValidate_DuplicateID(t *testing.T) {
	t.Parallel()

	c := &Content{Blocks: []Block{NewParagraph("b0", "a"), NewParagraph("b0", "b")}}
	assert.ErrorIs(t, c.Validate(), ErrInvalidBlock)
}

func TestContentMarshal_OmitsEmptyFields(t *testing.T) {
	t.Parallel()

	c := &Content{Blocks: []Block{NewParagraph("b0", "hello")}}
	data, err := c.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"blocks":[{"id":"b0","type":"paragraph","text":"hello"}]}`, string(data))

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, c.Blocks, back.Blocks)
	assert.Empty(t, back.Chapters)
}
