package reader

import (
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
)

// Inbound message types sent by the rendering widget.
const (
	TypeRange      = "range"
	TypeVisibility = "visibility"
	TypeSeek       = "seek"
)

// Outbound message types.
const (
	TypeReady   = "ready"
	TypeChapter = "chapter"
	TypeScroll  = "scroll"
	TypeSession = "session"
	TypeError   = "error"
)

const (
	VisibilityVisible = "visible"
	VisibilityHidden  = "hidden"
)

// Inbound is one event from the rendering widget.
//
//	{"type":"range","startIndex":10,"endIndex":14}
//	{"type":"visibility","state":"hidden"}
//	{"type":"seek","percent":42.5}
//	{"type":"seek","chapter":3}
type Inbound struct {
	Type       string   `json:"type"`
	StartIndex int      `json:"startIndex"`
	EndIndex   int      `json:"endIndex"`
	State      string   `json:"state,omitempty"`
	Percent    *float64 `json:"percent,omitempty"`
	Chapter    *int     `json:"chapter,omitempty"`
}

type Outbound struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id,omitempty"`
	Progress  *models.ReadingProgress `json:"progress,omitempty"`
	Scroll    *progress.Scroll        `json:"scroll,omitempty"`
	// ChapterIndex and ChapterTitle are set on chapter messages.
	ChapterIndex *int   `json:"chapter_index,omitempty"`
	ChapterTitle string `json:"chapter_title,omitempty"`
	Message      string `json:"message,omitempty"`
}
