package books

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/errcodes"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails selected writes and passes everything else through.
type flakyStore struct {
	Store

	mu             sync.Mutex
	saveErr        error
	saveContentErr error
	saves          int
}

func (s *flakyStore) SaveBook(ctx context.Context, book *models.Book) error {
	s.mu.Lock()
	s.saves++
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.SaveBook(ctx, book)
}

func (s *flakyStore) SaveBookWithContent(ctx context.Context, book *models.Book, c *content.Content) error {
	s.mu.Lock()
	err := s.saveContentErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.SaveBookWithContent(ctx, book, c)
}

func (s *flakyStore) failSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

func setupTestRepository(t *testing.T) (*Repository, *flakyStore) {
	t.Helper()
	store := &flakyStore{Store: NewService(setupTestDB(t), nil)}
	repo, err := NewRepository(context.Background(), store)
	require.NoError(t, err)
	return repo, store
}

func TestNewRepository_LoadsIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := NewService(setupTestDB(t), nil)
	for _, hash := range []string{"h1", "h2"} {
		require.NoError(t, svc.SaveBookWithContent(ctx, sampleBook(hash), sampleContent("x")))
	}

	repo, err := NewRepository(ctx, svc)
	require.NoError(t, err)

	books := repo.List(ctx)
	require.Len(t, books, 2)
	assert.Less(t, books[0].ID, books[1].ID)

	found, err := repo.FindByHash(ctx, "h2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, books[1].ID, found.ID)

	missing, err := repo.FindByHash(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_SaveAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a", "b", "c"))
	require.NoError(t, err)
	require.NotZero(t, saved.ID)

	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Title, got.Title)

	c, err := repo.Content(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, c.Blocks, 3)

	_, err = repo.Get(ctx, saved.ID+100)
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))
}

func TestRepository_ReturnsCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a"))
	require.NoError(t, err)

	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	got.Title = "changed"
	got.Authors[0] = "changed"

	again, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sample", again.Title)
	assert.Equal(t, "A. Writer", again.Authors[0])
}

func TestRepository_Save_FailureLeavesIndexAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store := setupTestRepository(t)
	store.saveContentErr = errors.New("disk full")

	_, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a"))
	require.Error(t, err)
	assert.Empty(t, repo.List(ctx))
}

func TestRepository_Mutate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a", "b", "c"))
	require.NoError(t, err)

	updated, err := repo.Mutate(ctx, saved.ID, func(b *models.Book) error {
		b.ParaOffset = 2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.ParaOffset)

	persisted, err := store.RetrieveBook(ctx, RetrieveBookOptions{ID: &saved.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, persisted.ParaOffset)
}

func TestRepository_Mutate_CallbackError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a"))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = repo.Mutate(ctx, saved.ID, func(b *models.Book) error {
		b.ParaOffset = 7
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ParaOffset)
	assert.Zero(t, store.saves)
}

func TestRepository_Mutate_NotPersisted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a", "b"))
	require.NoError(t, err)

	store.failSaves(errors.New("database is gone"))
	updated, err := repo.Mutate(ctx, saved.ID, func(b *models.Book) error {
		b.ParaOffset = 1
		return nil
	})
	require.ErrorIs(t, err, ErrNotPersisted)
	require.NotNil(t, updated)
	assert.Equal(t, 1, updated.ParaOffset)

	// The index keeps the change and the next successful write carries it.
	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ParaOffset)

	store.failSaves(nil)
	_, err = repo.Mutate(ctx, saved.ID, func(b *models.Book) error {
		b.ReadCount++
		return nil
	})
	require.NoError(t, err)

	persisted, err := store.RetrieveBook(ctx, RetrieveBookOptions{ID: &saved.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.ParaOffset)
	assert.Equal(t, 1, persisted.ReadCount)
}

func TestRepository_Mutate_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, _ := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate(ctx, saved.ID, func(b *models.Book) error {
				b.ReadCount++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ReadCount)
}

func TestRepository_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a"))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, saved.ID))
	assert.Empty(t, repo.List(ctx))

	_, err = repo.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))
	_, err = store.RetrieveBookContent(ctx, saved.ID)
	assert.ErrorIs(t, err, errcodes.NotFound("Book content"))

	assert.ErrorIs(t, repo.Delete(ctx, saved.ID), errcodes.NotFound("Book"))
}

func TestRepository_Replace_SeesConcurrentProgress(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, store := setupTestRepository(t)

	saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a", "b", "c", "d"))
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	mutated := make(chan struct{})
	go func() {
		defer close(mutated)
		_, err := repo.Mutate(ctx, saved.ID, func(b *models.Book) error {
			close(entered)
			<-release
			b.ParaOffset = 3
			return nil
		})
		assert.NoError(t, err)
	}()
	<-entered

	replaced := make(chan *models.Book, 1)
	go func() {
		b, err := repo.Replace(ctx, saved.ID, sampleContent("x", "y"), func(b *models.Book) {
			b.TotalBlocks = 2
			if b.ParaOffset > 1 {
				b.ParaOffset = 1
			}
		})
		assert.NoError(t, err)
		replaced <- b
	}()
	close(release)
	<-mutated

	got := <-replaced
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ParaOffset)
	assert.Equal(t, 2, got.TotalBlocks)

	persisted, err := store.RetrieveBook(ctx, RetrieveBookOptions{ID: &saved.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.ParaOffset)

	c, err := repo.Content(ctx, saved.ID)
	require.NoError(t, err)
	assert.Len(t, c.Blocks, 2)
}

func TestRepository_Replace_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown book", func(t *testing.T) {
		t.Parallel()
		repo, _ := setupTestRepository(t)
		_, err := repo.Replace(ctx, 42, sampleContent("a"), func(*models.Book) {})
		assert.ErrorIs(t, err, errcodes.NotFound("Book"))
	})

	t.Run("failed write leaves the index alone", func(t *testing.T) {
		t.Parallel()
		repo, store := setupTestRepository(t)
		saved, err := repo.Save(ctx, sampleBook("h1"), sampleContent("a", "b"))
		require.NoError(t, err)

		store.mu.Lock()
		store.saveContentErr = errors.New("disk full")
		store.mu.Unlock()

		_, err = repo.Replace(ctx, saved.ID, sampleContent("z"), func(b *models.Book) {
			b.TotalBlocks = 1
		})
		require.Error(t, err)

		got, err := repo.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.TotalBlocks, got.TotalBlocks)
	})
}
