package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examreports/internal/backend"
	"github.com/pavelanni/examreports/internal/i18n"
	"github.com/pavelanni/examreports/internal/model"
)

const (
	noticeDuration      = 4 * time.Second
	retryNoticeDuration = 10 * time.Second

	// maxRetries bounds the retry actions held for unanswered notices.
	maxRetries = 50
)

func (s *Session) notify(ctx context.Context, message string, retry func(context.Context)) model.Notice {
	n := model.Notice{
		ID:        uuid.NewString(),
		Message:   message,
		Action:    i18n.T(ctx, i18n.ActionClose),
		Duration:  noticeDuration,
		CreatedAt: s.now(),
	}
	if retry != nil {
		n.Action = i18n.T(ctx, i18n.ActionRetry)
		n.Duration = retryNoticeDuration
		n.Retryable = true
		s.mu.Lock()
		s.retries[n.ID] = retry
		s.retryIDs = append(s.retryIDs, n.ID)
		s.pruneRetriesLocked()
		s.mu.Unlock()
	}
	s.notifier.Notify(n)
	return n
}

func (s *Session) notifyOffline(ctx context.Context, retry func(context.Context)) {
	slog.Info("offline, request not sent")
	s.notify(ctx, i18n.T(ctx, i18n.Offline), retry)
}

// notifyFailure reports a transport failure. Only an unreachable backend
// offers a retry; an error status would most likely repeat.
func (s *Session) notifyFailure(ctx context.Context, failID string, err error, retry func(context.Context)) {
	slog.Warn("backend call failed", "notice", failID, "error", err)

	msg := i18n.T(ctx, failID)
	var te *backend.TransportError
	switch {
	case errors.Is(err, backend.ErrOffline):
		s.notifyOffline(ctx, retry)
		return
	case errors.As(err, &te) && te.Unreachable():
		msg = i18n.Td(ctx, i18n.FailedWithDetail, map[string]any{
			"Message": msg,
			"Detail":  i18n.T(ctx, i18n.Unreachable),
		})
	case errors.As(err, &te) && te.Message != "":
		msg = i18n.Td(ctx, i18n.FailedWithDetail, map[string]any{"Message": msg, "Detail": te.Message})
		retry = nil
	default:
		retry = nil
	}
	s.notify(ctx, msg, retry)
}

// pruneRetriesLocked forgets answered notices and then the oldest pending
// ones beyond maxRetries.
func (s *Session) pruneRetriesLocked() {
	live := s.retryIDs[:0]
	for _, id := range s.retryIDs {
		if _, ok := s.retries[id]; ok {
			live = append(live, id)
		}
	}
	for len(live) > maxRetries {
		delete(s.retries, live[0])
		live = live[1:]
	}
	s.retryIDs = append([]string(nil), live...)
}

// Retry runs the retry action of a notice once. The action is forgotten
// afterwards, so a second call returns ErrUnknownNotice.
func (s *Session) Retry(ctx context.Context, noticeID string) error {
	s.mu.Lock()
	fn, ok := s.retries[noticeID]
	delete(s.retries, noticeID)
	s.mu.Unlock()
	if !ok {
		return ErrUnknownNotice
	}
	fn(ctx)
	return nil
}

// Dismiss forgets a notice's retry action.
func (s *Session) Dismiss(noticeID string) {
	s.mu.Lock()
	delete(s.retries, noticeID)
	s.mu.Unlock()
}
