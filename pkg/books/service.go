package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/database"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID          *int
	ContentHash *string
}

type ListBooksOptions struct {
	Limit  *int
	Offset *int
}

// Service is the bun-backed persistence layer for books and their content.
// Writes that lose a lock race are retried by the configured Retrier.
type Service struct {
	db    *bun.DB
	retry *database.Retrier
}

func NewService(db *bun.DB, retry *database.Retrier) *Service {
	return &Service{db, retry}
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.
		NewSelect().
		Model(book)

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.ContentHash != nil {
		q = q.Where("b.content_hash = ?", *opts.ContentHash)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	books := []*models.Book{}

	q := svc.db.
		NewSelect().
		Model(&books).
		Order("b.id ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}
	return books, nil
}

// SaveBook inserts the book when it has no ID yet and updates every column
// otherwise.
func (svc *Service) SaveBook(ctx context.Context, book *models.Book) error {
	return svc.retry.Do(ctx, func(ctx context.Context) error {
		return saveBook(ctx, svc.db, book)
	})
}

func (svc *Service) RetrieveBookContent(ctx context.Context, bookID int) (*content.Content, error) {
	bc := &models.BookContent{}

	err := svc.db.
		NewSelect().
		Model(bc).
		Where("bc.book_id = ?", bookID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book content")
		}
		return nil, errors.WithStack(err)
	}

	c, err := bc.Content()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return c, nil
}

// SaveBookWithContent writes the book and its content in one transaction so
// an import either lands completely or not at all.
func (svc *Service) SaveBookWithContent(ctx context.Context, book *models.Book, c *content.Content) error {
	data, err := c.Marshal()
	if err != nil {
		return errors.WithStack(err)
	}

	return svc.retry.Do(ctx, func(ctx context.Context) error {
		// The insert assigns the ID, so a retried attempt must start over
		// from the caller's state.
		attempt := book.Clone()
		err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			if err := saveBook(ctx, tx, attempt); err != nil {
				return err
			}
			return saveBookContent(ctx, tx, &models.BookContent{
				BookID:    attempt.ID,
				UpdatedAt: attempt.UpdatedAt,
				Data:      data,
			})
		})
		if err != nil {
			return errors.WithStack(err)
		}
		*book = *attempt
		return nil
	})
}

func (svc *Service) DeleteBook(ctx context.Context, id int) error {
	return svc.retry.Do(ctx, func(ctx context.Context) error {
		res, err := svc.db.
			NewDelete().
			Model((*models.Book)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errcodes.NotFound("Book")
		}
		return nil
	})
}

func (svc *Service) DeleteBookContent(ctx context.Context, bookID int) error {
	return svc.retry.Do(ctx, func(ctx context.Context) error {
		_, err := svc.db.
			NewDelete().
			Model((*models.BookContent)(nil)).
			Where("book_id = ?", bookID).
			Exec(ctx)
		return errors.WithStack(err)
	})
}

func saveBook(ctx context.Context, db bun.IDB, book *models.Book) error {
	now := time.Now()
	book.UpdatedAt = now
	if book.Authors == nil {
		book.Authors = []string{}
	}

	if book.ID == 0 {
		if book.CreatedAt.IsZero() {
			book.CreatedAt = now
		}
		_, err := db.
			NewInsert().
			Model(book).
			Returning("*").
			Exec(ctx)
		return errors.WithStack(err)
	}

	res, err := db.
		NewUpdate().
		Model(book).
		WherePK().
		ExcludeColumn("id", "created_at").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("Book")
	}
	return nil
}

func saveBookContent(ctx context.Context, db bun.IDB, bc *models.BookContent) error {
	_, err := db.
		NewInsert().
		Model(bc).
		On("CONFLICT (book_id) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return errors.WithStack(err)
}
