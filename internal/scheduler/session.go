package scheduler

import (
	"context"
	"fmt"
	"time"

	"ordercore/internal/logger"
)

// SessionBoundary fires a task once per day at a fixed wall-clock time,
// the trading session close. The clock is injectable so tests can drive
// boundaries directly.
type SessionBoundary struct {
	// At is the boundary in "HH:MM" form.
	At string
	// Location resolves the wall clock; defaults to UTC.
	Location *time.Location

	nowFn func() time.Time
}

func NewSessionBoundary(at string, loc *time.Location) (*SessionBoundary, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := time.Parse("15:04", at); err != nil {
		return nil, fmt.Errorf("invalid session boundary %q: %w", at, err)
	}
	return &SessionBoundary{At: at, Location: loc, nowFn: time.Now}, nil
}

// Next returns the first boundary strictly after now.
func (s *SessionBoundary) Next(now time.Time) time.Time {
	now = now.In(s.Location)
	parsed, _ := time.Parse("15:04", s.At)
	boundary := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, s.Location)
	if !boundary.After(now) {
		boundary = boundary.AddDate(0, 0, 1)
	}
	return boundary
}

// Start blocks, running task at every boundary until ctx is done.
func (s *SessionBoundary) Start(ctx context.Context, task func()) {
	if task == nil {
		logger.Warnf("session boundary: task is nil, exit")
		return
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	for {
		next := s.Next(s.nowFn())
		wait := time.Until(next)
		logger.Infof("session boundary: next close %s (in %s)", next.Format(time.RFC3339), wait.Round(time.Second))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			task()
		}
	}
}

// Every runs task at a fixed interval until ctx is done. Used for the
// archive sweep.
func Every(ctx context.Context, interval time.Duration, task func()) {
	if task == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task()
		}
	}
}
