package epub

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

const ncxMediaType = "application/x-dtbncx+xml"

// tocEntry is one (title, href) pair from a table of contents, with href
// already resolved to an archive path.
type tocEntry struct {
	Title string
	Path  string
}

// NCX represents the EPUB 2 NCX structure.
type NCX struct {
	XMLName xml.Name `xml:"ncx"`
	NavMap  struct {
		NavPoints []NCXNavPoint `xml:"navPoint"`
	} `xml:"navMap"`
}

// NCXNavPoint represents a navigation point in NCX.
type NCXNavPoint struct {
	NavLabel struct {
		Text string `xml:"text"`
	} `xml:"navLabel"`
	Content struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []NCXNavPoint `xml:"navPoint"`
}

// tableOfContents builds the chapter path to title lookup. The EPUB 3 nav
// document is tried first, then the NCX. Missing or broken documents fall
// through silently; the titles are only ever a nicety.
func (p *parser) tableOfContents() map[string]string {
	titles := map[string]string{}

	if navPath := p.pkg.navDocumentPath(); navPath != "" {
		entries, err := p.readNav(navPath)
		if err != nil {
			p.warn("nav document unreadable", navPath, err)
		}
		addEntries(titles, entries)
	}
	if len(titles) > 0 {
		return titles
	}

	if ncxPath := p.pkg.ncxPath(); ncxPath != "" {
		entries, err := p.readNCX(ncxPath)
		if err != nil {
			p.warn("ncx unreadable", ncxPath, err)
		}
		addEntries(titles, entries)
	}
	return titles
}

// addEntries records titles by path. The first entry for a document wins,
// which keeps the chapter-level title over later section anchors.
func addEntries(titles map[string]string, entries []tocEntry) {
	for _, e := range entries {
		if e.Path == "" || e.Title == "" {
			continue
		}
		if _, ok := titles[e.Path]; !ok {
			titles[e.Path] = e.Title
		}
	}
}

func (p *parser) readNav(navPath string) ([]tocEntry, error) {
	data, err := p.archive.read(navPath)
	if err != nil {
		return nil, err
	}
	return parseNavDocument(data, navPath)
}

func (p *parser) readNCX(ncxPath string) ([]tocEntry, error) {
	data, err := p.archive.read(ncxPath)
	if err != nil {
		return nil, err
	}
	return parseNCX(data, ncxPath)
}

// parseNavDocument flattens the toc nav of an EPUB 3 navigation document in
// document order.
func parseNavDocument(data []byte, navPath string) ([]tocEntry, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var navs []*html.Node
	var find func(*html.Node)
	find = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "nav" {
			navs = append(navs, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			find(c)
		}
	}
	find(doc)

	var toc *html.Node
	for _, n := range navs {
		if hasToken(attr(n, "epub:type"), "toc") || hasToken(attr(n, "role"), "doc-toc") {
			toc = n
			break
		}
	}
	// Some producers omit epub:type on a lone nav.
	if toc == nil && len(navs) == 1 {
		toc = navs[0]
	}
	if toc == nil {
		return nil, nil
	}

	var entries []tocEntry
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			entries = append(entries, tocEntry{
				Title: collapseSpace(textContent(n)),
				Path:  resolvePath(navPath, attr(n, "href")),
			})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(toc)
	return entries, nil
}

// parseNCX flattens an EPUB 2 navMap depth first.
func parseNCX(data []byte, ncxPath string) ([]tocEntry, error) {
	var ncx NCX
	if err := xml.Unmarshal(data, &ncx); err != nil {
		return nil, errors.WithStack(err)
	}

	var entries []tocEntry
	var walk func([]NCXNavPoint)
	walk = func(points []NCXNavPoint) {
		for _, np := range points {
			entries = append(entries, tocEntry{
				Title: collapseSpace(np.NavLabel.Text),
				Path:  resolvePath(ncxPath, np.Content.Src),
			})
			walk(np.Children)
		}
	}
	walk(ncx.NavMap.NavPoints)
	return entries, nil
}

// navDocumentPath finds the manifest item flagged with the nav property.
func (d *packageDoc) navDocumentPath() string {
	for _, id := range d.order {
		if item := d.manifest[id]; item.HasProperty("nav") {
			return item.Path
		}
	}
	return ""
}

// ncxPath finds the NCX through the spine toc attribute, falling back to
// the first manifest item with the NCX media type.
func (d *packageDoc) ncxPath() string {
	if item, ok := d.manifest[d.tocID]; ok {
		return item.Path
	}
	for _, id := range d.order {
		if item := d.manifest[id]; strings.EqualFold(item.MediaType, ncxMediaType) {
			return item.Path
		}
	}
	return ""
}

func hasToken(list, token string) bool {
	for _, t := range strings.Fields(list) {
		if t == token {
			return true
		}
	}
	return false
}
