package books

import (
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, repo *Repository, importer *Importer, maxUploadSizeMB int64) {
	h := &handler{
		repo:          repo,
		importer:      importer,
		maxUploadSize: maxUploadSizeMB << 20,
	}

	// One extra megabyte leaves room for the multipart framing around the
	// file itself.
	bodyLimit := middleware.BodyLimit(fmt.Sprintf("%dM", maxUploadSizeMB+1))

	g.GET("", h.list)
	g.POST("/import", h.importBook, bodyLimit)
	g.GET("/:id", h.retrieve)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/content", h.content)
	g.GET("/:id/chapters", h.chapters)
}
