package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/shishobooks/folio/pkg/binder"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/shishobooks/folio/pkg/reader"
)

// Services are the long-lived components the routes are served from.
type Services struct {
	Repository *books.Repository
	Importer   *books.Importer
	Tracker    *progress.Tracker
}

func New(cfg *config.Config, svcs Services) (*http.Server, error) {
	e, err := newEcho(cfg, svcs)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, svcs Services) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)
	config.RegisterRoutes(e, cfg)

	booksGroup := e.Group("/books")
	books.RegisterRoutesWithGroup(booksGroup, svcs.Repository, svcs.Importer, cfg.MaxUploadSizeMB)
	progress.RegisterRoutes(e, svcs.Tracker, svcs.Repository)
	reader.RegisterRoutes(e, svcs.Tracker, svcs.Repository, reader.OptionsFromConfig(cfg))

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
