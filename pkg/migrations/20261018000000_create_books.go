package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE books (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				title TEXT NOT NULL,
				authors TEXT,
				language TEXT,
				cover TEXT,
				format TEXT NOT NULL,
				file_name TEXT NOT NULL,
				file_size INTEGER NOT NULL DEFAULT 0,
				content_hash TEXT NOT NULL,
				encoding TEXT,
				total_blocks INTEGER NOT NULL DEFAULT 0,
				total_chapters INTEGER NOT NULL DEFAULT 0,
				para_offset INTEGER NOT NULL DEFAULT 0,
				progress REAL NOT NULL DEFAULT 0,
				last_read_at TIMESTAMPTZ,
				reading_time INTEGER NOT NULL DEFAULT 0,
				current_chapter TEXT,
				session_start_time TIMESTAMPTZ,
				total_time INTEGER NOT NULL DEFAULT 0,
				read_count INTEGER NOT NULL DEFAULT 0
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Duplicate uploads are found by hash
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_books_content_hash ON books(content_hash)`)
		if err != nil {
			return errors.WithStack(err)
		}

		// Stats and the library list sort by recency
		_, err = db.Exec(`CREATE INDEX ix_books_last_read_at ON books(last_read_at)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE book_contents (
				book_id INTEGER PRIMARY KEY REFERENCES books(id) ON DELETE CASCADE,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				data BLOB NOT NULL
			)
		`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec("DROP TABLE IF EXISTS book_contents")
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec("DROP TABLE IF EXISTS books")
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
