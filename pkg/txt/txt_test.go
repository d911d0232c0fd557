package txt

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/shishobooks/folio/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"
)

func texts(blocks []content.Block) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Text)
	}
	return out
}

func TestIngest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"single line", "hello", []string{"hello"}},
		{"keeps blank lines", "one\n\nthree\n", []string{"one", "", "three", ""}},
		{"crlf", "a\r\nb\r\n\r\nc", []string{"a", "b", "", "c"}},
		{"bare cr", "a\rb", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blocks := Ingest(tt.input)
			require.NotNil(t, blocks)
			assert.Equal(t, tt.want, texts(blocks))
			for i, b := range blocks {
				assert.Equal(t, content.BlockTypeParagraph, b.Type)
				assert.NoError(t, b.Validate())
				if i > 0 {
					assert.NotEqual(t, blocks[i-1].ID, b.ID)
				}
			}
		})
	}
}

func TestIngest_RoundTrip(t *testing.T) {
	t.Parallel()

	lines := []string{"Chapter One", "", "It was a dark night.", "   indented", "", ""}
	blocks := Ingest(strings.Join(lines, "\n"))
	assert.Equal(t, lines, texts(blocks))
}

func TestDecode_UTF8(t *testing.T) {
	t.Parallel()

	d, err := Decode([]byte("héllo wörld"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", d.Encoding)
	assert.Equal(t, "héllo wörld", d.Text)
	assert.Zero(t, d.ReplacementRatio)
}

func TestDecode_StripsBOM(t *testing.T) {
	t.Parallel()

	d, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "text"...), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "text", d.Text)
}

func TestDecode_GB18030(t *testing.T) {
	t.Parallel()

	want := "第一章 你好，世界\n这是第二行。"
	data, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(want))
	require.NoError(t, err)

	d, err := Decode(data, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "gb18030", d.Encoding)
	assert.Equal(t, want, d.Text)
}

func TestDecode_Big5(t *testing.T) {
	t.Parallel()

	want := "臺灣的書"
	data, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte(want))
	require.NoError(t, err)

	d, err := Decode(data, []string{"utf-8", "big5"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "big5", d.Encoding)
	assert.Equal(t, want, d.Text)
}

func TestDecode_UTF16BOM(t *testing.T) {
	t.Parallel()

	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("wide text"))
	require.NoError(t, err)

	d, err := Decode(data, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "utf-16le", d.Encoding)
	assert.Equal(t, "wide text", d.Text)
}

func TestDecode_FallsBackToLowestRatio(t *testing.T) {
	t.Parallel()

	// Invalid in utf-8 and a truncated lead byte in gb18030.
	data := []byte{0xFF, 'a', 'b', 'c'}
	d, err := Decode(data, []string{"utf-8"}, 0.01)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", d.Encoding)
	assert.InDelta(t, 0.25, d.ReplacementRatio, 0.001)
}

func TestDecode_UnknownEncoding(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("x"), []string{"klingon"}, 0)
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestIngestBytes_Compressed(t *testing.T) {
	t.Parallel()

	text := "line one\n\nline three"

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var xzBuf bytes.Buffer
	xw, err := xz.NewWriter(&xzBuf)
	require.NoError(t, err)
	_, err = xw.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	tests := []struct {
		name        string
		file        string
		data        []byte
		compression string
	}{
		{"plain", "book.txt", []byte(text), CompressionNone},
		{"gzip by name", "book.txt.gz", gz.Bytes(), CompressionGzip},
		{"gzip by content", "upload", gz.Bytes(), CompressionGzip},
		{"xz by name", "book.txt.xz", xzBuf.Bytes(), CompressionXZ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := IngestBytes(tt.file, tt.data, Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.compression, res.Compression)
			assert.Equal(t, []string{"line one", "", "line three"}, texts(res.Blocks))
		})
	}
}

func TestIngestBytes_SizeLimit(t *testing.T) {
	t.Parallel()

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(bytes.Repeat([]byte("a"), 4096))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	_, err = IngestBytes("big.txt.gz", gz.Bytes(), Options{MaxSize: 1024})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestIngestBytes_CorruptStream(t *testing.T) {
	t.Parallel()

	_, err := IngestBytes("broken.txt.gz", []byte("definitely not gzip"), Options{})
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = IngestBytes("broken.txt.xz", []byte("definitely not xz"), Options{})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestIsTextAndTitle(t *testing.T) {
	t.Parallel()

	assert.True(t, IsText("a.txt"))
	assert.True(t, IsText("a.TXT.gz"))
	assert.True(t, IsText("a.txt.xz"))
	assert.False(t, IsText("a.epub"))

	assert.Equal(t, "My Book", Title("/tmp/My Book.txt.gz"))
	assert.Equal(t, "notes", Title("notes.txt"))
}
