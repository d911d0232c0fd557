// Package content defines the renderable vocabulary that every ingested book
// is normalized into. A book is an ordered list of Blocks, optionally split
// into contiguous Chapters.
package content

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

const (
	BlockTypeParagraph = "paragraph"
	BlockTypeMarkup    = "markup"
	BlockTypeImage     = "image"
	BlockTypeVideo     = "video"
	BlockTypeEmbed     = "embed"
)

// Block is one atomic renderable unit. Type selects which of the remaining
// fields are meaningful; the rest are left empty and omitted when serialized.
type Block struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// paragraph
	Text string `json:"text,omitempty"`

	// markup
	HTML string `json:"html,omitempty"`
	Tag  string `json:"tag,omitempty"`

	// image and video
	Src     string `json:"src,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Poster  string `json:"poster,omitempty"`
	Missing bool   `json:"missing,omitempty"`

	// embed
	Component string            `json:"component,omitempty"`
	Props     map[string]string `json:"props,omitempty"`
}

var ErrInvalidBlock = errors.New("invalid block")

func NewParagraph(id, text string) Block {
	return Block{ID: id, Type: BlockTypeParagraph, Text: text}
}

func NewMarkup(id, html, tag string) Block {
	return Block{ID: id, Type: BlockTypeMarkup, HTML: html, Tag: tag}
}

func NewImage(id, src, alt string) Block {
	return Block{ID: id, Type: BlockTypeImage, Src: src, Alt: alt}
}

func NewVideo(id, src, poster string) Block {
	return Block{ID: id, Type: BlockTypeVideo, Src: src, Poster: poster}
}

func NewEmbed(id, component string, props map[string]string) Block {
	return Block{ID: id, Type: BlockTypeEmbed, Component: component, Props: props}
}

// Validate checks that the block carries an id and the fields its type needs.
// Paragraph text may be empty since blank lines are preserved for spacing.
func (b Block) Validate() error {
	if b.ID == "" {
		return errors.Wrap(ErrInvalidBlock, "missing id")
	}
	switch b.Type {
	case BlockTypeParagraph:
		return nil
	case BlockTypeMarkup:
		if b.HTML == "" {
			return errors.Wrapf(ErrInvalidBlock, "markup block %s has no html", b.ID)
		}
	case BlockTypeImage, BlockTypeVideo:
		if b.Src == "" {
			return errors.Wrapf(ErrInvalidBlock, "%s block %s has no src", b.Type, b.ID)
		}
	case BlockTypeEmbed:
		if b.Component == "" {
			return errors.Wrapf(ErrInvalidBlock, "embed block %s has no component", b.ID)
		}
	default:
		return errors.Wrapf(ErrInvalidBlock, "unknown block type %q", b.Type)
	}
	return nil
}

// IDGenerator hands out ids that are unique within a single book. Ids are a
// prefix plus a running counter, so re-parsing the same bytes yields the same
// ids.
type IDGenerator struct {
	prefix string
	next   int
}

func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "b"
	}
	return &IDGenerator{prefix: prefix}
}

func (g *IDGenerator) Next() string {
	id := g.prefix + strconv.Itoa(g.next)
	g.next++
	return id
}

// Count is the number of ids issued so far.
func (g *IDGenerator) Count() int {
	return g.next
}

func (b Block) String() string {
	switch b.Type {
	case BlockTypeParagraph:
		return fmt.Sprintf("%s[%s] %q", b.Type, b.ID, b.Text)
	case BlockTypeMarkup:
		return fmt.Sprintf("%s<%s>[%s] %d bytes", b.Type, b.Tag, b.ID, len(b.HTML))
	case BlockTypeEmbed:
		return fmt.Sprintf("%s<%s>[%s]", b.Type, b.Component, b.ID)
	default:
		return fmt.Sprintf("%s[%s] missing=%v", b.Type, b.ID, b.Missing)
	}
}
