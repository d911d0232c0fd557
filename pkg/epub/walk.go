package epub

import (
	"strings"

	"github.com/shishobooks/folio/pkg/content"
	"golang.org/x/net/html"
)

type category int

const (
	// categoryInline covers everything not listed in categories: spans,
	// links, emphasis and unknown elements.
	categoryInline category = iota
	categorySkip
	categoryContent
	categoryContainer
	categoryImage
	categoryVideo
	categoryEmbed
)

// categories drives the walk. Content elements become one markup block
// each; containers are descended into; media become dedicated blocks.
var categories = map[string]category{
	"head": categorySkip, "title": categorySkip, "style": categorySkip,
	"script": categorySkip, "meta": categorySkip, "link": categorySkip,
	"noscript": categorySkip, "template": categorySkip, "base": categorySkip,

	"p": categoryContent, "h1": categoryContent, "h2": categoryContent,
	"h3": categoryContent, "h4": categoryContent, "h5": categoryContent,
	"h6": categoryContent, "blockquote": categoryContent, "pre": categoryContent,
	"li": categoryContent, "td": categoryContent, "th": categoryContent,
	"dt": categoryContent, "dd": categoryContent, "figcaption": categoryContent,
	"caption": categoryContent,

	"html": categoryContainer, "body": categoryContainer, "div": categoryContainer,
	"section": categoryContainer, "article": categoryContainer, "aside": categoryContainer,
	"header": categoryContainer, "footer": categoryContainer, "main": categoryContainer,
	"nav": categoryContainer, "figure": categoryContainer,
	"ul": categoryContainer, "ol": categoryContainer, "dl": categoryContainer,
	"table": categoryContainer, "thead": categoryContainer, "tbody": categoryContainer,
	"tfoot": categoryContainer, "tr": categoryContainer, "colgroup": categoryContainer,

	"img": categoryImage, "image": categoryImage,
	"video": categoryVideo,

	"audio": categoryEmbed, "iframe": categoryEmbed, "object": categoryEmbed,
	"embed": categoryEmbed, "canvas": categoryEmbed, "math": categoryEmbed,
}

func categoryOf(n *html.Node) category {
	if n.Type != html.ElementNode {
		return categoryInline
	}
	return categories[strings.ToLower(n.Data)]
}

// fallbackTags are collected when the structured walk finds nothing.
var fallbackTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "div": true, "span": true,
}

// walker converts a document tree into blocks in document order.
type walker struct {
	ids    *content.IDGenerator
	blocks []content.Block
}

// walk emits blocks for n and everything beneath it.
func (w *walker) walk(n *html.Node) error {
	switch n.Type {
	case html.DocumentNode:
		return w.walkChildren(n)
	case html.ElementNode:
	default:
		return nil
	}

	switch categoryOf(n) {
	case categorySkip:
		return nil
	case categoryImage:
		w.image(n)
		return nil
	case categoryVideo:
		w.video(n)
		return nil
	case categoryEmbed:
		w.embed(n)
		return nil
	case categoryContent:
		if hasText(n) {
			return w.markup(n)
		}
		// An empty paragraph can still wrap a picture.
		return w.walkChildren(n)
	default:
		if hasDirectText(n) && !hasBlockDescendant(n) {
			return w.markup(n)
		}
		if n.FirstChild != nil && !hasElementChild(n) {
			if hasText(n) {
				return w.markup(n)
			}
			return nil
		}
		return w.walkChildren(n)
	}
}

// walkChildren descends into n. Loose text between block children becomes
// paragraph blocks so nothing is dropped.
func (w *walker) walkChildren(n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			if text := collapseSpace(c.Data); text != "" && n.Type == html.ElementNode {
				w.blocks = append(w.blocks, content.NewParagraph(w.ids.Next(), text))
			}
			continue
		}
		if err := w.walk(c); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) markup(n *html.Node) error {
	inner, err := innerHTML(n)
	if err != nil {
		return err
	}
	if inner == "" {
		return nil
	}
	w.blocks = append(w.blocks, content.NewMarkup(w.ids.Next(), inner, strings.ToLower(n.Data)))
	return nil
}

func (w *walker) image(n *html.Node) {
	src := attr(n, "src")
	if n.Data == "image" {
		if i := hrefAttr(n); i >= 0 {
			src = n.Attr[i].Val
		}
	}
	missing := hasAttr(n, MissingResourceAttr)
	if src == "" {
		src = PlaceholderImage
		missing = true
	}
	b := content.NewImage(w.ids.Next(), src, attr(n, "alt"))
	b.Missing = missing
	w.blocks = append(w.blocks, b)
}

func (w *walker) video(n *html.Node) {
	src := attr(n, "src")
	if src == "" {
		if source := findFirst(n, elementNamed("source")); source != nil {
			src = attr(source, "src")
		}
	}
	if strings.TrimSpace(src) == "" {
		return
	}
	w.blocks = append(w.blocks, content.NewVideo(w.ids.Next(), src, attr(n, "poster")))
}

func (w *walker) embed(n *html.Node) {
	var props map[string]string
	if len(n.Attr) > 0 {
		props = make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			key := a.Key
			if a.Namespace != "" {
				key = a.Namespace + ":" + a.Key
			}
			props[key] = a.Val
		}
	}
	w.blocks = append(w.blocks, content.NewEmbed(w.ids.Next(), strings.ToLower(n.Data), props))
}

// fallback collects paragraph, heading, div and span elements with any
// markup at all, without descending into ones already taken.
func (w *walker) fallback(n *html.Node) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || categoryOf(c) == categorySkip {
			continue
		}
		if fallbackTags[strings.ToLower(c.Data)] {
			inner, err := innerHTML(c)
			if err != nil {
				return err
			}
			if inner != "" {
				w.blocks = append(w.blocks, content.NewMarkup(w.ids.Next(), inner, strings.ToLower(c.Data)))
				continue
			}
		}
		if err := w.fallback(c); err != nil {
			return err
		}
	}
	return nil
}

func hasDirectText(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return true
		}
	}
	return false
}

func hasElementChild(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// hasBlockDescendant reports whether anything beneath n would produce its
// own block if walked.
func hasBlockDescendant(n *html.Node) bool {
	return findFirst(n, func(c *html.Node) bool {
		switch categoryOf(c) {
		case categoryContent, categoryContainer, categoryImage, categoryVideo, categoryEmbed:
			return true
		}
		return false
	}) != nil
}
