// Package progress tracks where a reader is in each book and how long they
// have spent reading it.
//
// A book is Idle until StartSession stamps a session start time and Active
// until EndSession clears it. Time is only reconciled at those boundaries and
// is floored to whole minutes, so a session shorter than a minute adds
// nothing.
package progress

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/folio/pkg/books"
	"github.com/shishobooks/folio/pkg/chapters"
	"github.com/shishobooks/folio/pkg/debounce"
	"github.com/shishobooks/folio/pkg/models"
)

const recentlyReadLimit = 5

// errIdle stops EndSession from writing when no session is open.
var errIdle = errors.New("no open session")

// Position is one reported reading position. BlockIndex is clamped to the
// book's stored block count when applied.
type Position struct {
	BlockIndex     int     `json:"block_index"`
	CurrentChapter *string `json:"current_chapter,omitempty"`
}

type Options struct {
	// Debounce is the quiet window for ScheduleUpdate.
	Debounce time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Tracker struct {
	repo    *books.Repository
	opts    Options
	pending *xsync.MapOf[int, *debounce.Debouncer[scheduledUpdate]]
}

type scheduledUpdate struct {
	ctx    context.Context
	bookID int
	pos    Position
}

func NewTracker(repo *books.Repository, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		repo:    repo,
		opts:    opts,
		pending: xsync.NewMapOf[int, *debounce.Debouncer[scheduledUpdate]](),
	}
}

func (t *Tracker) Get(ctx context.Context, bookID int) (*models.ReadingProgress, error) {
	b, err := t.repo.Get(ctx, bookID)
	if err != nil {
		return nil, err
	}
	rp := b.ReadingProgress()
	return &rp, nil
}

// Update records a new position. The offset is pinned to a valid index into
// the book's blocks and progress is computed against the stored block count.
// The session start and accumulated reading time are left alone.
func (t *Tracker) Update(ctx context.Context, bookID int, pos Position) (*models.ReadingProgress, error) {
	return t.mutate(ctx, bookID, "update", func(b *models.Book) error {
		offset := chapters.ClampOffset(pos.BlockIndex, b.TotalBlocks)
		now := t.opts.Now()

		b.ParaOffset = offset
		b.Progress = chapters.Percent(offset, b.TotalBlocks)
		b.LastReadAt = &now
		if pos.CurrentChapter != nil {
			ch := *pos.CurrentChapter
			b.CurrentChapter = &ch
		}
		return nil
	})
}

// StartSession opens a session, or restarts an open one after folding its
// elapsed time in. Only the Idle to Active transition counts as a read.
func (t *Tracker) StartSession(ctx context.Context, bookID int) (*models.ReadingProgress, error) {
	return t.mutate(ctx, bookID, "start_session", func(b *models.Book) error {
		now := t.opts.Now()
		if b.InSession() {
			addElapsed(b, *b.SessionStartTime, now)
		} else {
			b.ReadCount++
		}
		b.SessionStartTime = &now
		return nil
	})
}

// EndSession closes an open session. It does nothing for an Idle book.
func (t *Tracker) EndSession(ctx context.Context, bookID int) (*models.ReadingProgress, error) {
	rp, err := t.mutate(ctx, bookID, "end_session", func(b *models.Book) error {
		if !b.InSession() {
			return errIdle
		}
		addElapsed(b, *b.SessionStartTime, t.opts.Now())
		b.SessionStartTime = nil
		return nil
	})
	if errors.Is(err, errIdle) {
		return t.Get(ctx, bookID)
	}
	return rp, err
}

// ScheduleUpdate debounces Update per book. Bursts collapse into the last
// position once the stream has been quiet for the configured window. Write
// failures are logged.
func (t *Tracker) ScheduleUpdate(ctx context.Context, bookID int, pos Position) {
	d, _ := t.pending.LoadOrCompute(bookID, func() *debounce.Debouncer[scheduledUpdate] {
		return debounce.NewDebouncer(t.opts.Debounce, t.applyScheduled)
	})
	d.Schedule(scheduledUpdate{
		ctx:    context.WithoutCancel(ctx),
		bookID: bookID,
		pos:    pos,
	})
}

func (t *Tracker) applyScheduled(u scheduledUpdate) {
	if _, err := t.Update(u.ctx, u.bookID, u.pos); err != nil {
		logger.FromContext(u.ctx).Err(err).Warn("scheduled progress update failed", logger.Data{"book_id": u.bookID})
	}
}

// Flush writes the book's pending scheduled update now and reports whether
// there was one.
func (t *Tracker) Flush(bookID int) bool {
	d, ok := t.pending.Load(bookID)
	if !ok {
		return false
	}
	return d.Flush()
}

// FlushAll writes every pending scheduled update.
func (t *Tracker) FlushAll() int {
	var n int
	t.pending.Range(func(_ int, d *debounce.Debouncer[scheduledUpdate]) bool {
		if d.Flush() {
			n++
		}
		return true
	})
	return n
}

// Cancel drops the book's pending scheduled update.
func (t *Tracker) Cancel(bookID int) {
	if d, ok := t.pending.LoadAndDelete(bookID); ok {
		d.Cancel()
	}
}

// mutate applies fn through the repository. A failed write is logged and the
// in-memory result is returned; the next successful write persists it.
func (t *Tracker) mutate(ctx context.Context, bookID int, op string, fn func(b *models.Book) error) (*models.ReadingProgress, error) {
	b, err := t.repo.Mutate(ctx, bookID, fn)
	if err != nil {
		if !errors.Is(err, books.ErrNotPersisted) {
			return nil, err
		}
		logger.FromContext(ctx).Err(err).Warn("progress not persisted", logger.Data{"book_id": bookID, "op": op})
	}
	rp := b.ReadingProgress()
	return &rp, nil
}

func addElapsed(b *models.Book, start, now time.Time) {
	minutes := elapsedMinutes(start, now)
	b.ReadingTime += minutes
	b.TotalTime += minutes
}

func elapsedMinutes(start, now time.Time) int {
	d := now.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Minutes()))
}

type Stats struct {
	TotalBooks       int            `json:"total_books"`
	TotalReadingTime int            `json:"total_reading_time"`
	AverageProgress  int            `json:"average_progress"`
	RecentlyRead     []*models.Book `json:"recently_read"`
}

// Stats summarizes the whole library. Average progress is rounded to a
// whole percent; recently read lists the five latest books ever opened.
func (t *Tracker) Stats(ctx context.Context) *Stats {
	all := t.repo.List(ctx)

	s := &Stats{TotalBooks: len(all), RecentlyRead: []*models.Book{}}
	var sum float64
	for _, b := range all {
		s.TotalReadingTime += b.ReadingTime
		sum += b.Progress
		if b.LastReadAt != nil {
			s.RecentlyRead = append(s.RecentlyRead, b)
		}
	}
	if len(all) > 0 {
		s.AverageProgress = int(math.Round(sum / float64(len(all))))
	}

	sort.SliceStable(s.RecentlyRead, func(i, j int) bool {
		return s.RecentlyRead[i].LastReadAt.After(*s.RecentlyRead[j].LastReadAt)
	})
	if len(s.RecentlyRead) > recentlyReadLimit {
		s.RecentlyRead = s.RecentlyRead[:recentlyReadLimit]
	}
	return s
}
