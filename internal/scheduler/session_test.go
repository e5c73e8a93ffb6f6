package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"30s":  30 * time.Second,
		"15m":  15 * time.Minute,
		"1h":   time.Hour,
		"1d":   24 * time.Hour,
		" 2H ": 2 * time.Hour,
	}
	for in, want := range cases {
		got, ok := ParseIntervalDuration(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "h", "0m", "-5s", "10x", "1.5h"} {
		_, ok := ParseIntervalDuration(in)
		assert.False(t, ok, in)
	}
}

func TestSessionBoundaryNext(t *testing.T) {
	loc := time.UTC
	s, err := NewSessionBoundary("21:00", loc)
	require.NoError(t, err)

	t.Run("same day when before the boundary", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 15, 30, 0, 0, loc)
		next := s.Next(now)
		assert.Equal(t, time.Date(2025, 3, 10, 21, 0, 0, 0, loc), next)
	})

	t.Run("next day when at or past the boundary", func(t *testing.T) {
		now := time.Date(2025, 3, 10, 21, 0, 0, 0, loc)
		next := s.Next(now)
		assert.Equal(t, time.Date(2025, 3, 11, 21, 0, 0, 0, loc), next)
	})

	t.Run("respects the location", func(t *testing.T) {
		ny, err := time.LoadLocation("America/New_York")
		require.NoError(t, err)
		s, err := NewSessionBoundary("16:00", ny)
		require.NoError(t, err)
		now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) // 08:00 in New York
		next := s.Next(now)
		assert.Equal(t, 16, next.Hour())
		assert.Equal(t, ny, next.Location())
	})

	_, err = NewSessionBoundary("24:61", loc)
	assert.Error(t, err)
}

func TestSessionBoundaryFires(t *testing.T) {
	s, err := NewSessionBoundary("00:00", time.UTC)
	require.NoError(t, err)
	// Pin the clock just before the boundary so the timer fires immediately.
	s.nowFn = func() time.Time {
		return time.Date(2025, 3, 10, 23, 59, 59, 990_000_000, time.UTC)
	}

	fired := make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
		cancel()
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("boundary task never ran")
	}
}

func TestEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 4)
	go Every(ctx, 5*time.Millisecond, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	})

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("interval task never ran")
	}
	cancel()
}
