package books

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
)

// ErrNotPersisted is returned by Mutate when the in-memory record was
// updated but the write behind it failed.
var ErrNotPersisted = errors.New("change not persisted")

// Store is the persistence collaborator behind the repository. *Service
// implements it.
type Store interface {
	RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error)
	ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error)
	SaveBook(ctx context.Context, book *models.Book) error
	SaveBookWithContent(ctx context.Context, book *models.Book, c *content.Content) error
	RetrieveBookContent(ctx context.Context, bookID int) (*content.Content, error)
	DeleteBook(ctx context.Context, id int) error
	DeleteBookContent(ctx context.Context, bookID int) error
}

// Repository owns the in-memory book index and passes writes through to the
// store. Every method hands out copies, so callers can keep what they get
// without racing later mutations.
type Repository struct {
	store Store
	index *xsync.MapOf[int, *models.Book]
	locks *xsync.MapOf[int, *sync.Mutex]
}

// NewRepository loads every book record into the index.
func NewRepository(ctx context.Context, store Store) (*Repository, error) {
	books, err := store.ListBooks(ctx, ListBooksOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load books")
	}

	r := &Repository{
		store: store,
		index: xsync.NewMapOf[int, *models.Book](),
		locks: xsync.NewMapOf[int, *sync.Mutex](),
	}
	for _, b := range books {
		r.index.Store(b.ID, b)
	}
	return r, nil
}

func (r *Repository) lock(id int) func() {
	mu, _ := r.locks.LoadOrCompute(id, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

func (r *Repository) Get(ctx context.Context, id int) (*models.Book, error) {
	if b, ok := r.index.Load(id); ok {
		return b.Clone(), nil
	}
	b, err := r.store.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	r.index.Store(b.ID, b)
	return b.Clone(), nil
}

// FindByHash returns the book imported from identical bytes, or nil.
func (r *Repository) FindByHash(ctx context.Context, hash string) (*models.Book, error) {
	var found *models.Book
	r.index.Range(func(_ int, b *models.Book) bool {
		if b.ContentHash == hash {
			found = b.Clone()
			return false
		}
		return true
	})
	if found != nil {
		return found, nil
	}

	b, err := r.store.RetrieveBook(ctx, RetrieveBookOptions{ContentHash: &hash})
	if err != nil {
		if errors.Is(err, errcodes.NotFound("Book")) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}
	r.index.Store(b.ID, b)
	return b.Clone(), nil
}

// List returns every book in import order.
func (r *Repository) List(_ context.Context) []*models.Book {
	books := make([]*models.Book, 0, r.index.Size())
	r.index.Range(func(_ int, b *models.Book) bool {
		books = append(books, b.Clone())
		return true
	})
	sort.Slice(books, func(i, j int) bool { return books[i].ID < books[j].ID })
	return books
}

// Save writes a book together with its content. Unlike Mutate, failure
// leaves the index untouched and is returned as is.
func (r *Repository) Save(ctx context.Context, book *models.Book, c *content.Content) (*models.Book, error) {
	if book.ID != 0 {
		defer r.lock(book.ID)()
	}

	saved := book.Clone()
	if err := r.store.SaveBookWithContent(ctx, saved, c); err != nil {
		return nil, errors.WithStack(err)
	}
	r.index.Store(saved.ID, saved)
	return saved.Clone(), nil
}

// Mutate applies fn to the current record under the book's lock, updates
// the index and then persists. If the write fails the updated record is
// still returned alongside an error wrapping ErrNotPersisted; the next
// successful write carries the change along.
func (r *Repository) Mutate(ctx context.Context, id int, fn func(b *models.Book) error) (*models.Book, error) {
	defer r.lock(id)()

	b, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	r.index.Store(id, b.Clone())

	if err := r.store.SaveBook(ctx, b); err != nil {
		if errors.Is(err, errcodes.NotFound("Book")) {
			r.index.Delete(id)
			return nil, errors.WithStack(err)
		}
		return b.Clone(), errors.Wrapf(ErrNotPersisted, "book %d: %s", id, err.Error())
	}
	r.index.Store(id, b.Clone())
	return b, nil
}

// Replace stores new content for an existing book. fn sees the current
// record under the book's lock, so a concurrent progress write is never
// overwritten by a stale copy.
func (r *Repository) Replace(ctx context.Context, id int, c *content.Content, fn func(b *models.Book)) (*models.Book, error) {
	defer r.lock(id)()

	b, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	fn(b)
	if err := r.store.SaveBookWithContent(ctx, b, c); err != nil {
		return nil, errors.WithStack(err)
	}
	r.index.Store(id, b.Clone())
	return b, nil
}

func (r *Repository) Content(ctx context.Context, id int) (*content.Content, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	c, err := r.store.RetrieveBookContent(ctx, id)
	return c, errors.WithStack(err)
}

// Delete removes the book and its content.
func (r *Repository) Delete(ctx context.Context, id int) error {
	defer r.lock(id)()

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.DeleteBookContent(ctx, id); err != nil {
		return errors.WithStack(err)
	}
	if err := r.store.DeleteBook(ctx, id); err != nil {
		return errors.WithStack(err)
	}
	r.index.Delete(id)
	return nil
}
