package reader

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/progress"
)

type handler struct {
	tracker  *progress.Tracker
	repo     *books.Repository
	opts     Options
	upgrader websocket.Upgrader
}

func (h *handler) serve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	// The book must exist before the protocol switch so that a missing one
	// is still a plain 404.
	bc, err := h.repo.Content(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the error response.
		logger.FromContext(ctx).Err(err).Warn("reader upgrade failed")
		return nil
	}

	sessionID := uuid.NewString()
	log := logger.FromContext(ctx).ID(sessionID).Root(logger.Data{"book_id": id})
	log.Info("reader session opened")

	newSession(sessionID, id, bc, h.tracker, conn, h.opts).run(log.WithContext(ctx))

	log.Info("reader session closed")
	return nil
}
