// Package txt turns plain-text books into paragraph blocks.
package txt

import (
	"strings"

	"github.com/shishobooks/folio/pkg/content"
)

// Ingest splits text into one paragraph block per line. Blank lines are kept
// so the rendered book keeps its vertical spacing. Empty input yields an
// empty slice.
func Ingest(text string) []content.Block {
	if text == "" {
		return []content.Block{}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")

	ids := content.NewIDGenerator("")
	blocks := make([]content.Block, 0, len(lines))
	for _, line := range lines {
		blocks = append(blocks, content.NewParagraph(ids.Next(), line))
	}
	return blocks
}
