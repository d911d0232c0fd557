package progress

type UpdateProgressPayload struct {
	BlockIndex     *int    `json:"block_index" validate:"required,min=0"`
	CurrentChapter *string `json:"current_chapter,omitempty" validate:"omitempty,max=500"`
	// Debounce queues the write behind the book's quiet window instead of
	// applying it immediately.
	Debounce bool `json:"debounce,omitempty"`
}

type ScrollQuery struct {
	Percent *float64 `query:"percent" json:"percent,omitempty" validate:"omitempty,min=0,max=100"`
	Chapter *int     `query:"chapter" json:"chapter,omitempty" validate:"omitempty,min=0"`
}
