package progress

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/errcodes"
)

type handler struct {
	tracker *Tracker
	repo    *books.Repository
}

func bookID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Book")
	}
	return id, nil
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	rp, err := h.tracker.Get(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	params := UpdateProgressPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Scheduled writes land after the response, so unknown books are
	// rejected up front.
	if _, err := h.repo.Get(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	pos := Position{
		BlockIndex:     *params.BlockIndex,
		CurrentChapter: params.CurrentChapter,
	}

	if params.Debounce {
		h.tracker.ScheduleUpdate(ctx, id, pos)
		return errors.WithStack(c.NoContent(http.StatusAccepted))
	}

	rp, err := h.tracker.Update(ctx, id, pos)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) startSession(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	rp, err := h.tracker.StartSession(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) endSession(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	// A pending debounced position belongs to the session being closed.
	h.tracker.Flush(id)

	rp, err := h.tracker.EndSession(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, rp))
}

func (h *handler) scroll(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	params := ScrollQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.repo.Get(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	bc, err := h.repo.Content(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	s, err := ResolveScroll(bc, Target{Percent: params.Percent, Chapter: params.Chapter, Resume: book.ParaOffset})
	if err != nil {
		if errors.Is(err, ErrNoSuchChapter) {
			return errcodes.NotFound("Chapter")
		}
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, s))
}

func (h *handler) stats(c echo.Context) error {
	ctx := c.Request().Context()
	return errors.WithStack(c.JSON(http.StatusOK, h.tracker.Stats(ctx)))
}
