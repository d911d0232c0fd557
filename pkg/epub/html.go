package epub

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"
)

// voidElements never have content, so their self-closing form is already
// what an HTML parser expects.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

var selfClosingPattern = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9:-]*)(\s[^<>]*?)?\s*/>`)

// expandSelfClosing rewrites XHTML-style <tag/> into <tag></tag> for
// non-void HTML elements. Left alone, <title/> or <script/> would swallow
// the rest of the document, and <div/> would adopt its following siblings.
// SVG and MathML content is parsed as foreign content where the short form
// is understood, so the rewrite only matters for HTML names.
func expandSelfClosing(data []byte) []byte {
	if !bytes.Contains(data, []byte("/>")) {
		return data
	}
	return selfClosingPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		sub := selfClosingPattern.FindSubmatch(m)
		name := strings.ToLower(string(sub[1]))
		if voidElements[name] || strings.Contains(name, ":") || foreignElements[name] {
			return m
		}
		var b bytes.Buffer
		b.WriteByte('<')
		b.Write(sub[1])
		b.Write(sub[2])
		b.WriteString("></")
		b.Write(sub[1])
		b.WriteByte('>')
		return b.Bytes()
	})
}

// foreignElements are SVG/MathML names that commonly appear self-closed.
var foreignElements = map[string]bool{
	"image": true, "path": true, "rect": true, "circle": true, "ellipse": true,
	"line": true, "polyline": true, "polygon": true, "use": true, "stop": true,
	"mi": true, "mo": true, "mn": true, "mspace": true,
}

func parseDocument(data []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(expandSelfClosing(data)))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return doc, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key && a.Namespace == "" {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// hrefAttr returns the index of an SVG-style link attribute, accepting plain
// href as well as xlink:href in either of the forms the parser produces.
func hrefAttr(n *html.Node) int {
	for i, a := range n.Attr {
		switch {
		case a.Namespace == "xlink" && a.Key == "href":
			return i
		case a.Namespace == "" && (a.Key == "xlink:href" || a.Key == "href"):
			return i
		}
	}
	return -1
}

// textContent concatenates the text beneath n, ignoring skipped elements
// below it.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if categoryOf(n) == categorySkip {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return sb.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hasText(n *html.Node) bool {
	return strings.TrimSpace(textContent(n)) != ""
}

// innerHTML renders the children of n.
func innerHTML(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", errors.WithStack(err)
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func elementNamed(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, name := range names {
			if n.Data == name {
				return true
			}
		}
		return false
	}
}
