// Package reader streams a reading session over a websocket. The rendering
// widget reports its visible block range and visibility changes; the server
// answers with the current chapter label and scroll instructions.
package reader

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/progress"
)

type Options struct {
	// ChapterThrottle is the minimum gap between chapter label updates.
	ChapterThrottle time.Duration
	// CloseTimeout bounds the final progress write once the socket is gone.
	CloseTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ChapterThrottle: cfg.ChapterThrottle,
		CloseTimeout:    5 * time.Second,
	}
}

func RegisterRoutes(e *echo.Echo, tracker *progress.Tracker, repo *books.Repository, opts Options) {
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = 5 * time.Second
	}

	h := &handler{
		tracker: tracker,
		repo:    repo,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	e.GET("/books/:id/reader", h.serve)
}
