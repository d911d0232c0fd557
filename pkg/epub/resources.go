package epub

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/html"
)

// MissingResourceAttr marks elements whose resource could not be loaded.
const MissingResourceAttr = "data-resource-missing"

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="240" height="160" viewBox="0 0 240 160">` +
	`<rect width="240" height="160" fill="#eee" stroke="#999" stroke-dasharray="6 4"/>` +
	`<text x="120" y="86" font-family="sans-serif" font-size="14" fill="#666" text-anchor="middle">Missing image</text>` +
	`</svg>`

// PlaceholderImage is shown in place of an image whose bytes are not in the
// archive.
var PlaceholderImage = "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(placeholderSVG))

var styleURLPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'")]*)(['"]?)\s*\)`)

// resolvedResource is the cached outcome of loading one archive path.
type resolvedResource struct {
	uri     string
	missing bool
}

// resources turns archive references into self-contained data URIs. Results
// are cached per archive path since covers and ornaments repeat across
// chapters.
type resources struct {
	archive *archive
	pkg     *packageDoc
	cache   map[string]resolvedResource
	onMiss  func(ref, resolved string)
}

func newResources(a *archive, pkg *packageDoc, onMiss func(ref, resolved string)) *resources {
	return &resources{archive: a, pkg: pkg, cache: map[string]resolvedResource{}, onMiss: onMiss}
}

// resolve returns a usable src for ref as seen from docPath. External and
// already embedded references pass through. missing is true when a
// placeholder had to be substituted.
func (r *resources) resolve(docPath, ref string) (src string, missing bool) {
	trimmed := strings.TrimSpace(ref)
	if trimmed != "" && isExternal(trimmed) {
		return trimmed, false
	}
	if strings.HasPrefix(trimmed, "#") {
		return trimmed, false
	}

	resolved := resolvePath(docPath, trimmed)
	if resolved == "" {
		r.miss(ref, resolved)
		return PlaceholderImage, true
	}
	if cached, ok := r.cache[resolved]; ok {
		if cached.missing {
			r.miss(ref, resolved)
		}
		return cached.uri, cached.missing
	}

	data, err := r.archive.read(resolved)
	if err != nil || len(data) == 0 {
		r.cache[resolved] = resolvedResource{uri: PlaceholderImage, missing: true}
		r.miss(ref, resolved)
		return PlaceholderImage, true
	}

	uri := dataURI(r.pkg.mediaTypeFor(resolved), data)
	r.cache[resolved] = resolvedResource{uri: uri}
	return uri, false
}

func (r *resources) miss(ref, resolved string) {
	if r.onMiss != nil {
		r.onMiss(ref, resolved)
	}
}

// dataURI encodes data, trusting the declared media type only when the
// bytes do not say otherwise.
func dataURI(declared string, data []byte) string {
	mime := mimetype.Detect(data).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if declared != "" && (mime == "application/octet-stream" || mime == "text/plain" || mime == "text/xml") {
		mime = declared
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// embedResources rewrites every image-like reference in the document in
// place. Missing resources keep their element, gain a placeholder and are
// flagged with MissingResourceAttr.
func (r *resources) embedResources(doc *html.Node, docPath string) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				r.rewriteSrc(n, "src", docPath)
			case "image":
				if i := hrefAttr(n); i >= 0 {
					src, missing := r.resolve(docPath, n.Attr[i].Val)
					if missing {
						setAttr(n, MissingResourceAttr, n.Attr[i].Val)
					}
					n.Attr[i].Val = src
				}
			case "video":
				if hasAttr(n, "poster") {
					r.rewriteSrc(n, "poster", docPath)
				}
				r.rewriteMedia(n, docPath)
			case "source":
				if n.Parent != nil && n.Parent.Data == "video" {
					r.rewriteMedia(n, docPath)
				}
			}
			if style := attr(n, "style"); style != "" && strings.Contains(style, "url(") {
				rewritten, missingRef := r.rewriteStyle(style, docPath)
				setAttr(n, "style", rewritten)
				if missingRef != "" && !hasAttr(n, MissingResourceAttr) {
					setAttr(n, MissingResourceAttr, missingRef)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func (r *resources) rewriteSrc(n *html.Node, key, docPath string) {
	ref := attr(n, key)
	src, missing := r.resolve(docPath, ref)
	setAttr(n, key, src)
	if missing {
		setAttr(n, MissingResourceAttr, ref)
		if n.Data == "img" && strings.TrimSpace(attr(n, "alt")) == "" {
			setAttr(n, "alt", "Missing image: "+ref)
		}
	}
}

// rewriteMedia embeds an in-archive video source. A video that cannot be
// found keeps its original reference since there is no placeholder for it.
func (r *resources) rewriteMedia(n *html.Node, docPath string) {
	ref := strings.TrimSpace(attr(n, "src"))
	if ref == "" || isExternal(ref) {
		return
	}
	resolved := resolvePath(docPath, ref)
	if resolved == "" {
		return
	}
	data, err := r.archive.read(resolved)
	if err != nil {
		r.miss(ref, resolved)
		return
	}
	setAttr(n, "src", dataURI(r.pkg.mediaTypeFor(resolved), data))
}

// rewriteStyle embeds every url() in an inline style. missingRef is the
// first reference that had to be replaced by a placeholder.
func (r *resources) rewriteStyle(style, docPath string) (rewritten, missingRef string) {
	rewritten = styleURLPattern.ReplaceAllStringFunc(style, func(m string) string {
		sub := styleURLPattern.FindStringSubmatch(m)
		ref := sub[2]
		if ref == "" {
			return m
		}
		src, missing := r.resolve(docPath, ref)
		if missing && missingRef == "" {
			missingRef = ref
		}
		return `url("` + src + `")`
	})
	return rewritten, missingRef
}
