package books

import "mime/multipart"

const (
	SortID     = "id"
	SortTitle  = "title"
	SortRecent = "recent"
)

type ListBooksQuery struct {
	Limit  int    `query:"limit" json:"limit,omitempty" default:"24" validate:"min=1,max=50"`
	Offset int    `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Sort   string `query:"sort" json:"sort,omitempty" default:"id" validate:"oneof=id title recent"`
}

type ImportPayload struct {
	ReplaceID *int   `form:"replace_id" json:"replace_id,omitempty" validate:"omitempty,min=1"`
	Encoding  string `form:"encoding" json:"encoding,omitempty" mod:"trim,lcase" validate:"charset"`

	FormFiles map[string]*multipart.FileHeader `form:"-" json:"-"`
}
