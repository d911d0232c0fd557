package epub

import (
	"encoding/xml"
	"strings"

	"github.com/pkg/errors"
)

// Package is the subset of the OPF package document the reader needs.
type Package struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Metadata struct {
		Title []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
		} `xml:"title"`
		Creator []struct {
			Text string `xml:",chardata"`
			ID   string `xml:"id,attr"`
			Role string `xml:"role,attr"`
		} `xml:"creator"`
		Language []string `xml:"language"`
		Meta     []struct {
			Text     string `xml:",chardata"`
			Name     string `xml:"name,attr"`
			Content  string `xml:"content,attr"`
			Refines  string `xml:"refines,attr"`
			Property string `xml:"property,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Item []struct {
			ID         string `xml:"id,attr"`
			Href       string `xml:"href,attr"`
			MediaType  string `xml:"media-type,attr"`
			Properties string `xml:"properties,attr"`
		} `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		Toc     string `xml:"toc,attr"`
		Itemref []struct {
			Idref  string `xml:"idref,attr"`
			Linear string `xml:"linear,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

// ManifestItem is a manifest entry with its href resolved to an archive path.
type ManifestItem struct {
	ID         string
	Path       string
	MediaType  string
	Properties []string
}

func (m ManifestItem) HasProperty(p string) bool {
	for _, prop := range m.Properties {
		if prop == p {
			return true
		}
	}
	return false
}

func (m ManifestItem) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(m.MediaType), "image/")
}

// packageDoc is a parsed package document: manifest keyed by id, the spine in
// reading order and the book-level metadata.
type packageDoc struct {
	path     string
	manifest map[string]ManifestItem
	// order preserves manifest declaration order for fallbacks that need it.
	order    []string
	byPath   map[string]ManifestItem
	spine    []string
	tocID    string
	metadata Metadata
	coverID  string
}

func parsePackage(opfPath string, data []byte) (*packageDoc, error) {
	pkg := &Package{}
	if err := xml.Unmarshal(data, pkg); err != nil {
		return nil, errors.Wrapf(ErrMalformedArchive, "invalid package document %s: %s", opfPath, err.Error())
	}

	doc := &packageDoc{
		path:     opfPath,
		manifest: make(map[string]ManifestItem, len(pkg.Manifest.Item)),
		byPath:   make(map[string]ManifestItem, len(pkg.Manifest.Item)),
		tocID:    pkg.Spine.Toc,
	}

	for _, item := range pkg.Manifest.Item {
		if item.ID == "" || item.Href == "" {
			continue
		}
		resolved := resolvePath(opfPath, item.Href)
		if resolved == "" {
			continue
		}
		mi := ManifestItem{
			ID:         item.ID,
			Path:       resolved,
			MediaType:  strings.TrimSpace(item.MediaType),
			Properties: strings.Fields(item.Properties),
		}
		doc.manifest[item.ID] = mi
		doc.byPath[resolved] = mi
		doc.order = append(doc.order, item.ID)
	}

	for _, ref := range pkg.Spine.Itemref {
		if _, ok := doc.manifest[ref.Idref]; ok {
			doc.spine = append(doc.spine, ref.Idref)
		}
	}

	doc.metadata, doc.coverID = parseMetadata(pkg)
	return doc, nil
}

func parseMetadata(pkg *Package) (Metadata, string) {
	refines := map[string]map[string]string{}
	named := map[string]string{}
	for _, m := range pkg.Metadata.Meta {
		if m.Refines != "" {
			key := strings.TrimPrefix(m.Refines, "#")
			if refines[key] == nil {
				refines[key] = map[string]string{}
			}
			refines[key][m.Property] = strings.TrimSpace(m.Text)
		} else if m.Name != "" {
			named[strings.ToLower(m.Name)] = strings.TrimSpace(m.Content)
		}
	}

	md := Metadata{Authors: []string{}}

	// Prefer the title refined as "main" when several are present.
	for _, t := range pkg.Metadata.Title {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if md.Title == "" {
			md.Title = text
		}
		if t.ID != "" && refines[t.ID]["title-type"] == "main" {
			md.Title = text
			break
		}
	}

	for _, c := range pkg.Metadata.Creator {
		name := strings.TrimSpace(c.Text)
		if name == "" {
			continue
		}
		role := c.Role
		if role == "" && c.ID != "" {
			role = refines[c.ID]["role"]
		}
		if role == "" || role == "aut" || len(pkg.Metadata.Creator) == 1 {
			md.Authors = append(md.Authors, name)
		}
	}

	for _, lang := range pkg.Metadata.Language {
		if lang = strings.TrimSpace(lang); lang != "" {
			md.Language = lang
			break
		}
	}

	return md, named["cover"]
}

// coverItem picks the cover image: the item named by <meta name="cover">,
// then an EPUB 3 cover-image property, then conventional ids, then the first
// image in the manifest.
func (d *packageDoc) coverItem() (ManifestItem, bool) {
	if d.coverID != "" {
		if item, ok := d.manifest[d.coverID]; ok && item.IsImage() {
			return item, true
		}
	}
	for _, id := range d.order {
		if item := d.manifest[id]; item.HasProperty("cover-image") && item.IsImage() {
			return item, true
		}
	}
	for _, id := range []string{"cover-image", "cover"} {
		if item, ok := d.manifest[id]; ok && item.IsImage() {
			return item, true
		}
	}
	for _, id := range d.order {
		if item := d.manifest[id]; item.IsImage() {
			return item, true
		}
	}
	return ManifestItem{}, false
}

// mediaTypeFor returns the manifest media type for an archive path.
func (d *packageDoc) mediaTypeFor(p string) string {
	if item, ok := d.byPath[p]; ok {
		return item.MediaType
	}
	return ""
}
