package progress

import (
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/folio/pkg/books"
)

func RegisterRoutes(e *echo.Echo, tracker *Tracker, repo *books.Repository) {
	h := &handler{tracker: tracker, repo: repo}

	g := e.Group("/books/:id")
	g.GET("/progress", h.retrieve)
	g.POST("/progress", h.update)
	g.POST("/sessions/start", h.startSession)
	g.POST("/sessions/end", h.endSession)
	g.GET("/scroll", h.scroll)

	e.GET("/stats", h.stats)
}
