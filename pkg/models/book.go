package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	FormatEPUB = "epub"
	FormatTXT  = "txt"
)

// Book is the metadata record for an imported file. Reading progress lives
// on the same row so one write covers both.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID            int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updated_at"`
	Title         string    `bun:",notnull" json:"title"`
	Authors       []string  `json:"authors"`
	Language      string    `bun:",nullzero" json:"language,omitempty"`
	Cover         string    `bun:",nullzero" json:"cover,omitempty"`
	Format        string    `bun:",notnull" json:"format"`
	FileName      string    `bun:",notnull" json:"file_name"`
	FileSize      int64     `json:"file_size"`
	ContentHash   string    `bun:",notnull" json:"content_hash"`
	Encoding      string    `bun:",nullzero" json:"encoding,omitempty"`
	TotalBlocks   int       `json:"total_blocks"`
	TotalChapters int       `json:"total_chapters"`

	ParaOffset       int        `json:"para_offset"`
	Progress         float64    `json:"progress"`
	LastReadAt       *time.Time `json:"last_read_at"`
	ReadingTime      int        `json:"reading_time"`
	CurrentChapter   *string    `json:"current_chapter,omitempty"`
	SessionStartTime *time.Time `json:"session_start_time,omitempty"`
	TotalTime        int        `json:"total_time"`
	ReadCount        int        `json:"read_count"`
}

// ReadingProgress is the progress view of a book. Times are in minutes.
type ReadingProgress struct {
	BookID           int        `json:"book_id"`
	ParaOffset       int        `json:"para_offset"`
	Progress         float64    `json:"progress"`
	LastReadAt       *time.Time `json:"last_read_at"`
	ReadingTime      int        `json:"reading_time"`
	CurrentChapter   *string    `json:"current_chapter,omitempty"`
	SessionStartTime *time.Time `json:"session_start_time,omitempty"`
	TotalTime        int        `json:"total_time"`
	ReadCount        int        `json:"read_count"`
}

func (b *Book) ReadingProgress() ReadingProgress {
	return ReadingProgress{
		BookID:           b.ID,
		ParaOffset:       b.ParaOffset,
		Progress:         b.Progress,
		LastReadAt:       b.LastReadAt,
		ReadingTime:      b.ReadingTime,
		CurrentChapter:   b.CurrentChapter,
		SessionStartTime: b.SessionStartTime,
		TotalTime:        b.TotalTime,
		ReadCount:        b.ReadCount,
	}
}

// InSession reports whether a reading session is open.
func (b *Book) InSession() bool {
	return b.SessionStartTime != nil
}

// Clone returns a copy that shares no pointers with b.
func (b *Book) Clone() *Book {
	c := *b
	if b.Authors != nil {
		c.Authors = append([]string(nil), b.Authors...)
	}
	c.LastReadAt = cloneTime(b.LastReadAt)
	c.SessionStartTime = cloneTime(b.SessionStartTime)
	if b.CurrentChapter != nil {
		ch := *b.CurrentChapter
		c.CurrentChapter = &ch
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
