package epub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNavDocument(t *testing.T) {
	t.Parallel()
	navXML := `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<body>
<nav epub:type="landmarks">
  <ol><li><a href="cover.xhtml">Cover</a></li></ol>
</nav>
<nav epub:type="toc">
  <ol>
    <li><a href="text/chapter1.xhtml">Chapter   1</a></li>
    <li>
      <a href="text/part2.xhtml">Part <em>2</em></a>
      <ol>
        <li><a href="text/chapter2.xhtml">Chapter 2</a></li>
        <li><a href="text/chapter3.xhtml#section1">Chapter 3</a></li>
      </ol>
    </li>
  </ol>
</nav>
</body>
</html>`

	entries, err := parseNavDocument([]byte(navXML), "OEBPS/nav.xhtml")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, tocEntry{Title: "Chapter 1", Path: "OEBPS/text/chapter1.xhtml"}, entries[0])
	assert.Equal(t, tocEntry{Title: "Part 2", Path: "OEBPS/text/part2.xhtml"}, entries[1])
	assert.Equal(t, tocEntry{Title: "Chapter 2", Path: "OEBPS/text/chapter2.xhtml"}, entries[2])
	// Fragments are dropped so section links land on their document.
	assert.Equal(t, "OEBPS/text/chapter3.xhtml", entries[3].Path)
}

func TestParseNavDocument_LoneNavWithoutType(t *testing.T) {
	t.Parallel()
	navXML := `<html><body><nav><ol><li><a href="ch1.xhtml">One</a></li></ol></nav></body></html>`

	entries, err := parseNavDocument([]byte(navXML), "nav.xhtml")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ch1.xhtml", entries[0].Path)
}

func TestParseNavDocument_NoTOC(t *testing.T) {
	t.Parallel()
	navXML := `<html><body>
<nav epub:type="landmarks"><a href="a.xhtml">A</a></nav>
<nav epub:type="page-list"><a href="b.xhtml">B</a></nav>
</body></html>`

	entries, err := parseNavDocument([]byte(navXML), "nav.xhtml")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseNCX(t *testing.T) {
	t.Parallel()
	ncxXML := `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="np1" playOrder="1">
      <navLabel><text>Prologue</text></navLabel>
      <content src="Text/prologue.xhtml"/>
    </navPoint>
    <navPoint id="np2" playOrder="2">
      <navLabel><text>Part One</text></navLabel>
      <content src="Text/part1.xhtml"/>
      <navPoint id="np3" playOrder="3">
        <navLabel><text>Chapter 1</text></navLabel>
        <content src="Text/chapter1.xhtml#start"/>
      </navPoint>
    </navPoint>
    <navPoint id="np4" playOrder="4">
      <navLabel><text>Epilogue</text></navLabel>
      <content src="Text/epilogue.xhtml"/>
    </navPoint>
  </navMap>
</ncx>`

	entries, err := parseNCX([]byte(ncxXML), "OEBPS/toc.ncx")
	require.NoError(t, err)

	assert.Equal(t, []tocEntry{
		{Title: "Prologue", Path: "OEBPS/Text/prologue.xhtml"},
		{Title: "Part One", Path: "OEBPS/Text/part1.xhtml"},
		{Title: "Chapter 1", Path: "OEBPS/Text/chapter1.xhtml"},
		{Title: "Epilogue", Path: "OEBPS/Text/epilogue.xhtml"},
	}, entries)
}

func TestParseNCX_Invalid(t *testing.T) {
	t.Parallel()
	_, err := parseNCX([]byte("<ncx><navMap>"), "toc.ncx")
	assert.Error(t, err)
}

func TestAddEntries_FirstTitleWins(t *testing.T) {
	t.Parallel()
	titles := map[string]string{}
	addEntries(titles, []tocEntry{
		{Title: "Chapter 1", Path: "ch1.xhtml"},
		{Title: "Section 1.1", Path: "ch1.xhtml"},
		{Title: "", Path: "ch2.xhtml"},
		{Title: "External", Path: ""},
	})
	assert.Equal(t, map[string]string{"ch1.xhtml": "Chapter 1"}, titles)
}
