package handler

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examreports/internal/model"
	"github.com/pavelanni/examreports/internal/session"
)

// NoticeBoard keeps the most recent notices until the dashboard dismisses
// them.
type NoticeBoard struct {
	mu      sync.Mutex
	max     int
	notices []model.Notice
	onEvict func(id string)
}

// NewNoticeBoard returns a board holding at most limit notices.
func NewNoticeBoard(limit int) *NoticeBoard {
	if limit <= 0 {
		limit = 50
	}
	return &NoticeBoard{max: limit}
}

// OnEvict sets fn to be called with the id of every notice dropped to make
// room for newer ones.
func (b *NoticeBoard) OnEvict(fn func(id string)) {
	b.mu.Lock()
	b.onEvict = fn
	b.mu.Unlock()
}

// Notify implements session.Notifier.
func (b *NoticeBoard) Notify(n model.Notice) {
	b.mu.Lock()
	b.notices = append(b.notices, n)
	var evicted []model.Notice
	if over := len(b.notices) - b.max; over > 0 {
		evicted = append(evicted, b.notices[:over]...)
		b.notices = append([]model.Notice(nil), b.notices[over:]...)
	}
	onEvict := b.onEvict
	b.mu.Unlock()

	if onEvict != nil {
		for _, e := range evicted {
			onEvict(e.ID)
		}
	}
}

// List returns the notices, oldest first.
func (b *NoticeBoard) List() []model.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Notice{}, b.notices...)
}

// Remove drops the notice with id and reports whether it was present.
func (b *NoticeBoard) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, n := range b.notices {
		if n.ID == id {
			b.notices = append(b.notices[:i], b.notices[i+1:]...)
			return true
		}
	}
	return false
}

// BusyCounter implements session.Busy. The dashboard is busy while any
// request is in flight.
type BusyCounter struct {
	n atomic.Int64
}

func (c *BusyCounter) Show() { c.n.Add(1) }
func (c *BusyCounter) Hide() { c.n.Add(-1) }

// Busy reports whether a request is in flight.
func (c *BusyCounter) Busy() bool { return c.n.Load() > 0 }

func (h *Handler) handleNotices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"notices": h.notices.List()})
}

func (h *Handler) handleRetryNotice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "noticeID")
	h.notices.Remove(id)
	if err := h.session.Retry(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.handleNotices(w, r)
}

func (h *Handler) handleDismissNotice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "noticeID")
	h.session.Dismiss(id)
	if !h.notices.Remove(id) {
		writeError(w, session.ErrUnknownNotice)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
