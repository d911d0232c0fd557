package books

import (
	"io"
	"net/http"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/epub"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/sortname"
	"github.com/shishobooks/folio/pkg/txt"
)

type handler struct {
	repo          *Repository
	importer      *Importer
	maxUploadSize int64
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.repo.Get(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	all := h.repo.List(ctx)
	switch params.Sort {
	case SortTitle:
		sortname.ByTitle(all, func(b *models.Book) (string, string) { return b.Title, b.Language })
	case SortRecent:
		sortByLastRead(all)
	}

	books := []*models.Book{}
	if params.Offset < len(all) {
		end := params.Offset + params.Limit
		if end > len(all) {
			end = len(all)
		}
		books = all[params.Offset:end]
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, len(all)}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) importBook(c echo.Context) error {
	ctx := c.Request().Context()

	params := ImportPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	fh, ok := params.FormFiles["file"]
	if !ok {
		return errcodes.ValidationError("file is required.")
	}
	if fh.Size > h.maxUploadSize {
		return errcodes.PayloadTooLarge(humanize.IBytes(uint64(h.maxUploadSize)))
	}

	f, err := fh.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadSize+1))
	if err != nil {
		return errors.WithStack(err)
	}
	if int64(len(data)) > h.maxUploadSize {
		return errcodes.PayloadTooLarge(humanize.IBytes(uint64(h.maxUploadSize)))
	}

	res, err := h.importer.Import(ctx, fh.Filename, data, ImportOptions{ReplaceID: params.ReplaceID, Encoding: params.Encoding})
	if err != nil {
		return h.importError(err, fh.Filename)
	}

	status := http.StatusCreated
	if res.Duplicate || params.ReplaceID != nil {
		status = http.StatusOK
	}
	return errors.WithStack(c.JSON(status, res))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) content(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	bc, err := h.repo.Content(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, bc))
}

func (h *handler) chapters(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	bc, err := h.repo.Content(ctx, id)
	if err != nil {
		return errors.WithStack(err)
	}
	chs := bc.Chapters
	if chs == nil {
		chs = []content.Chapter{}
	}

	resp := struct {
		Chapters []content.Chapter `json:"chapters"`
	}{chs}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// importError maps parse failures onto client errors. Anything else is a
// server problem, including a failure to store the book.
func (h *handler) importError(err error, name string) error {
	switch {
	case errors.Is(err, epub.ErrMalformedArchive), errors.Is(err, txt.ErrCorrupt):
		return errcodes.MalformedArchive()
	case errors.Is(err, epub.ErrUnsupportedContent), errors.Is(err, ErrEmptyText), errors.Is(err, txt.ErrUndecodable):
		return errcodes.UnsupportedContent()
	case errors.Is(err, ErrUnsupportedFormat):
		return errcodes.UnsupportedFormat(name)
	case errors.Is(err, txt.ErrTooLarge):
		return errcodes.PayloadTooLarge(humanize.IBytes(uint64(h.importer.opts.MaxEntrySize)) + " once decompressed")
	}
	return errors.WithStack(err)
}

// sortByLastRead puts the most recently read books first and never-read
// books last, in id order.
func sortByLastRead(all []*models.Book) {
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].LastReadAt, all[j].LastReadAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
}
