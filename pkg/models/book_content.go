package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/uptrace/bun"
)

// BookContent stores a book's blocks and chapters as one serialized blob.
type BookContent struct {
	bun.BaseModel `bun:"table:book_contents,alias:bc"`

	BookID    int       `bun:",pk"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	Data      []byte    `bun:",notnull"`
}

func (bc *BookContent) Content() (*content.Content, error) {
	c, err := content.Unmarshal(bc.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "book %d content", bc.BookID)
	}
	return c, nil
}
