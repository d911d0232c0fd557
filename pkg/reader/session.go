package reader

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/shishobooks/folio/pkg/chapters"
	"github.com/shishobooks/folio/pkg/content"
	"github.com/shishobooks/folio/pkg/debounce"
	"github.com/shishobooks/folio/pkg/models"
	"github.com/shishobooks/folio/pkg/progress"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// session is one open reader socket for one book.
type session struct {
	id      string
	bookID  int
	content *content.Content
	tracker *progress.Tracker
	conn    *websocket.Conn
	opts    Options

	writeMu sync.Mutex

	// ctx is the run context, used by the throttled chapter callback.
	ctx context.Context

	chapterMu    sync.Mutex
	latest       int
	lastChapter  int
	chapterTitle *string
	chapter      *debounce.Throttler[int]
}

func newSession(id string, bookID int, c *content.Content, tracker *progress.Tracker, conn *websocket.Conn, opts Options) *session {
	s := &session{
		id:          id,
		bookID:      bookID,
		content:     c,
		tracker:     tracker,
		conn:        conn,
		opts:        opts,
		lastChapter: -2,
	}
	s.chapter = debounce.NewThrottler(opts.ChapterThrottle, s.announceChapter)
	return s
}

// run serves the socket until the client goes away. The session is opened on
// entry and closed on exit, after the pending position has been written.
func (s *session) run(ctx context.Context) {
	log := logger.FromContext(ctx)
	s.ctx = ctx

	stop := make(chan struct{})
	defer close(stop)
	go s.ping(stop)
	defer s.teardown(ctx)

	rp, err := s.tracker.StartSession(ctx, s.bookID)
	if err != nil {
		log.Err(err).Warn("failed to start reading session")
		s.send(Outbound{Type: TypeError, Message: "Book not found."})
		return
	}
	resume, err := progress.ResolveScroll(s.content, progress.Target{Resume: rp.ParaOffset})
	if err != nil {
		log.Err(err).Error("failed to resolve resume position")
		return
	}
	s.send(Outbound{Type: TypeReady, SessionID: s.id, Progress: rp, Scroll: resume})

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Err(err).Warn("reader socket closed unexpectedly")
			}
			return
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			s.send(Outbound{Type: TypeError, Message: "Malformed message."})
			continue
		}
		s.handle(ctx, msg)
	}
}

func (s *session) handle(ctx context.Context, msg Inbound) {
	log := logger.FromContext(ctx)

	switch msg.Type {
	case TypeRange:
		if msg.EndIndex < msg.StartIndex {
			s.send(Outbound{Type: TypeError, Message: "endIndex must not be before startIndex."})
			return
		}
		idx := chapters.ClampOffset(msg.StartIndex, len(s.content.Blocks))

		s.chapterMu.Lock()
		s.latest = idx
		title := s.chapterTitle
		s.chapterMu.Unlock()

		// The label comes from the last throttled lookup. announceChapter
		// reschedules the write when the chapter turns out to have changed.
		s.tracker.ScheduleUpdate(ctx, s.bookID, progress.Position{BlockIndex: idx, CurrentChapter: title})
		s.chapter.Schedule(idx)
	case TypeVisibility:
		var (
			rp  *models.ReadingProgress
			err error
		)
		switch msg.State {
		case VisibilityHidden:
			s.chapter.Flush()
			s.tracker.Flush(s.bookID)
			rp, err = s.tracker.EndSession(ctx, s.bookID)
		case VisibilityVisible:
			rp, err = s.tracker.StartSession(ctx, s.bookID)
		default:
			s.send(Outbound{Type: TypeError, Message: "state must be visible or hidden."})
			return
		}
		if err != nil {
			log.Err(err).Warn("session transition failed", logger.Data{"state": msg.State})
			s.send(Outbound{Type: TypeError, Message: "Session could not be updated."})
			return
		}
		s.send(Outbound{Type: TypeSession, Progress: rp})
	case TypeSeek:
		rp, err := s.tracker.Get(ctx, s.bookID)
		if err != nil {
			log.Err(err).Warn("failed to load position for seek")
			return
		}
		sc, err := progress.ResolveScroll(s.content, progress.Target{
			Percent: msg.Percent,
			Chapter: msg.Chapter,
			Resume:  rp.ParaOffset,
		})
		if err != nil {
			if errors.Is(err, progress.ErrNoSuchChapter) {
				s.send(Outbound{Type: TypeError, Message: "Chapter not found."})
				return
			}
			log.Err(err).Error("failed to resolve scroll target")
			return
		}
		s.send(Outbound{Type: TypeScroll, Scroll: sc})
	default:
		s.send(Outbound{Type: TypeError, Message: "Unknown message type."})
	}
}

// announceChapter runs on the throttler and is the only place chapters are
// looked up. On a change it tells the client and reschedules the pending
// position with the new label.
func (s *session) announceChapter(idx int) {
	ch := chapters.Locate(s.content.Chapters, idx)
	var title *string
	if ch >= 0 {
		t := s.content.Chapters[ch].Title
		title = &t
	}

	s.chapterMu.Lock()
	changed := ch != s.lastChapter
	s.lastChapter = ch
	s.chapterTitle = title
	latest := s.latest
	s.chapterMu.Unlock()
	if !changed {
		return
	}

	s.tracker.ScheduleUpdate(s.ctx, s.bookID, progress.Position{BlockIndex: latest, CurrentChapter: title})

	out := Outbound{Type: TypeChapter, ChapterIndex: &ch}
	if title != nil {
		out.ChapterTitle = *title
	}
	s.send(out)
}

func (s *session) send(out Outbound) {
	data, err := json.Marshal(out)
	if err != nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) ping(stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// teardown writes the last position and closes the session. The request
// context is usually canceled by now, so writes get their own deadline.
func (s *session) teardown(ctx context.Context) {
	s.chapter.Flush()
	s.chapter.Cancel()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.CloseTimeout)
	defer cancel()

	s.tracker.Flush(s.bookID)
	if _, err := s.tracker.EndSession(ctx, s.bookID); err != nil {
		logger.FromContext(ctx).Err(err).Warn("failed to end reading session")
	}
	_ = s.conn.Close()
}
