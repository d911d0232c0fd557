// Command folio works with a folio library from the terminal: inspect a book
// file without storing it, import files, and read or move reading positions.
package main

import (
	"context"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/config"
	"github.com/shishobooks/folio/pkg/database"
	"github.com/shishobooks/folio/pkg/migrations"
	"github.com/shishobooks/folio/pkg/progress"
	"github.com/shishobooks/folio/pkg/version"
	"github.com/uptrace/bun"
)

var cli struct {
	Inspect  InspectCmd  `cmd:"" help:"Parse a book file and print its outline without storing it"`
	Import   ImportCmd   `cmd:"" help:"Import book files into the library"`
	Progress ProgressCmd `cmd:"" help:"Show or set the reading position of a book"`
	Stats    StatsCmd    `cmd:"" help:"Summarize reading across the library"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

// env carries what commands share. The library is only opened by commands
// that need it.
type env struct {
	ctx context.Context
	out io.Writer
	cfg *config.Config

	db       *bun.DB
	repo     *books.Repository
	importer *books.Importer
	tracker  *progress.Tracker
}

func (e *env) open() error {
	if e.repo != nil {
		return nil
	}
	if e.cfg == nil {
		cfg, err := config.New()
		if err != nil {
			return err
		}
		e.cfg = cfg
	}

	db, err := database.New(e.cfg)
	if err != nil {
		return err
	}
	if _, err := migrations.BringUpToDate(e.ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	repo, err := books.NewRepository(e.ctx, books.NewService(db, database.NewRetrier(e.cfg.DatabaseMaxRetries)))
	if err != nil {
		_ = db.Close()
		return err
	}

	e.db = db
	e.repo = repo
	e.importer = books.NewImporter(repo, books.ImporterOptionsFromConfig(e.cfg))
	e.tracker = progress.NewTracker(repo, progress.Options{Debounce: e.cfg.ProgressDebounce})
	return nil
}

func (e *env) close() error {
	if e.db == nil {
		return nil
	}
	e.tracker.FlushAll()
	return errors.WithStack(e.db.Close())
}

func main() {
	log := logger.New()

	kctx := kong.Parse(&cli,
		kong.Name("folio"),
		kong.Description("Read EPUB and text books and keep your place."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	e := &env{ctx: log.WithContext(context.Background()), out: os.Stdout}
	err := kctx.Run(e)
	if cerr := e.close(); cerr != nil {
		log.Err(cerr).Error("failed to close library")
	}
	kctx.FatalIfErrorf(err)
}

type VersionCmd struct{}

func (c *VersionCmd) Run(e *env) error {
	_, err := io.WriteString(e.out, "folio "+version.Version+"\n")
	return errors.WithStack(err)
}
