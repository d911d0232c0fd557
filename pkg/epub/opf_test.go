package epub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePackage = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title id="sub">A Subtitle</dc:title>
    <dc:title id="main">The Main Title</dc:title>
    <meta refines="#main" property="title-type">main</meta>
    <dc:creator id="a1">First Author</dc:creator>
    <meta refines="#a1" property="role">aut</meta>
    <dc:creator opf:role="ill">An Illustrator</dc:creator>
    <dc:creator opf:role="aut">Second Author</dc:creator>
    <dc:language>fr</dc:language>
    <meta name="cover" content="cover-img"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="Text/chapter%201.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="Text/chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover-img" href="Images/cover.jpg" media-type="image/jpeg"/>
    <item id="escape" href="../../outside.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="c1"/>
    <itemref idref="ghost"/>
    <itemref idref="c2" linear="no"/>
  </spine>
</package>`

func TestParsePackage(t *testing.T) {
	t.Parallel()

	doc, err := parsePackage("OEBPS/content.opf", []byte(samplePackage))
	require.NoError(t, err)

	assert.Equal(t, []string{"c1", "c2"}, doc.spine)
	assert.Equal(t, "OEBPS/Text/chapter 1.xhtml", doc.manifest["c1"].Path)
	assert.NotContains(t, doc.manifest, "escape")

	assert.Equal(t, "The Main Title", doc.metadata.Title)
	assert.Equal(t, []string{"First Author", "Second Author"}, doc.metadata.Authors)
	assert.Equal(t, "fr", doc.metadata.Language)

	assert.Equal(t, "OEBPS/nav.xhtml", doc.navDocumentPath())
	assert.Equal(t, "OEBPS/toc.ncx", doc.ncxPath())
	assert.Equal(t, "image/jpeg", doc.mediaTypeFor("OEBPS/Images/cover.jpg"))
	assert.Empty(t, doc.mediaTypeFor("OEBPS/nothing.png"))

	cover, ok := doc.coverItem()
	require.True(t, ok)
	assert.Equal(t, "OEBPS/Images/cover.jpg", cover.Path)
}

func TestParsePackage_Invalid(t *testing.T) {
	t.Parallel()

	_, err := parsePackage("content.opf", []byte("<package><manifest>"))
	assert.ErrorIs(t, err, ErrMalformedArchive)
}

func TestParsePackage_SingleCreatorWithoutAuthorRole(t *testing.T) {
	t.Parallel()
	opf := `<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Only Title</dc:title>
    <dc:creator opf:role="edt">Editor Name</dc:creator>
  </metadata>
  <manifest/>
  <spine/>
</package>`

	doc, err := parsePackage("content.opf", []byte(opf))
	require.NoError(t, err)
	assert.Equal(t, "Only Title", doc.metadata.Title)
	assert.Equal(t, []string{"Editor Name"}, doc.metadata.Authors)
	assert.Empty(t, doc.spine)
}

func TestCoverItem(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		manifest string
		meta     string
		want     string
	}{
		{
			name: "cover-image property",
			manifest: `<item id="a" href="a.png" media-type="image/png"/>
<item id="b" href="b.png" media-type="image/png" properties="cover-image"/>`,
			want: "b.png",
		},
		{
			name: "conventional id",
			manifest: `<item id="a" href="a.png" media-type="image/png"/>
<item id="cover" href="c.png" media-type="image/png"/>`,
			want: "c.png",
		},
		{
			name:     "first image",
			manifest: `<item id="x" href="x.xhtml" media-type="application/xhtml+xml"/><item id="a" href="a.gif" media-type="image/gif"/>`,
			want:     "a.gif",
		},
		{
			name:     "meta pointing at a non-image is ignored",
			manifest: `<item id="x" href="x.xhtml" media-type="application/xhtml+xml"/><item id="a" href="a.gif" media-type="image/gif"/>`,
			meta:     `<meta name="cover" content="x"/>`,
			want:     "a.gif",
		},
		{
			name:     "no images",
			manifest: `<item id="x" href="x.xhtml" media-type="application/xhtml+xml"/>`,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opf := `<package><metadata>` + tt.meta + `</metadata><manifest>` + tt.manifest + `</manifest><spine/></package>`
			doc, err := parsePackage("content.opf", []byte(opf))
			require.NoError(t, err)

			item, ok := doc.coverItem()
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, item.Path)
		})
	}
}
