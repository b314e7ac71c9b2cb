package dates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refNow is Monday, March 10 2025, noon UTC.
var refNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestNormalize_RelativeDays(t *testing.T) {
	n := New()

	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"tomorrow defaults to end of day", "tomorrow", time.Date(2025, 3, 11, 23, 59, 0, 0, time.UTC)},
		{"tomorrow with explicit time", "tomorrow at 5pm", time.Date(2025, 3, 11, 17, 0, 0, 0, time.UTC)},
		{"tomorrow morning", "tomorrow morning", time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"tonight", "tonight", time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)},
		{"today end of day", "today", time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)},
		{"next week", "next week", time.Date(2025, 3, 17, 23, 59, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Normalize(tt.text, refNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Time)
		})
	}
}

func TestNormalize_Weekdays(t *testing.T) {
	n := New()

	// refNow is a Monday; "friday" is the coming Friday.
	res, err := n.Normalize("friday", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 23, 59, 0, 0, time.UTC), res.Time)

	// A weekday matching today rolls a full week ahead.
	res, err = n.Normalize("next monday", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 17, 23, 59, 0, 0, time.UTC), res.Time)

	// "next friday" skips the coming Friday.
	res, err = n.Normalize("next friday", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 21, 23, 59, 0, 0, time.UTC), res.Time)

	res, err = n.Normalize("friday at 3pm", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC), res.Time)
}

func TestNormalize_Offsets(t *testing.T) {
	n := New()

	res, err := n.Normalize("in 2 hours", refNow)
	require.NoError(t, err)
	assert.Equal(t, refNow.Add(2*time.Hour), res.Time)

	res, err = n.Normalize("in 3 days", refNow)
	require.NoError(t, err)
	assert.Equal(t, refNow.AddDate(0, 0, 3), res.Time)

	res, err = n.Normalize("in 1 week", refNow)
	require.NoError(t, err)
	assert.Equal(t, refNow.AddDate(0, 0, 7), res.Time)
}

func TestNormalize_ExplicitDates(t *testing.T) {
	n := New()

	res, err := n.Normalize("2025-06-01", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 23, 59, 0, 0, time.UTC), res.Time)
	assert.InDelta(t, 0.95, res.Confidence, 0.001)

	res, err = n.Normalize("2025-06-01 09:30", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC), res.Time)

	res, err = n.Normalize("March 15", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 15, 23, 59, 0, 0, time.UTC), res.Time)

	// A month-day already past this year rolls to next year.
	res, err = n.Normalize("january 5", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 5, 23, 59, 0, 0, time.UTC), res.Time)

	res, err = n.Normalize("15th of June", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC), res.Time)
}

func TestNormalize_MeridiemHeuristic(t *testing.T) {
	n := New()

	// Hours 1-7 without am/pm are assumed pm.
	res, err := n.Normalize("tomorrow at 5", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 17, 0, 0, 0, time.UTC), res.Time)

	// Hours 8-11 without am/pm are assumed am.
	res, err = n.Normalize("tomorrow at 9", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), res.Time)
}

func TestNormalize_BareClockTime(t *testing.T) {
	n := New()

	// Noon has passed, so "5pm" is today.
	res, err := n.Normalize("5pm", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC), res.Time)

	// 9am has passed, so it rolls to tomorrow.
	res, err = n.Normalize("9am", refNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), res.Time)
}

func TestNormalize_Rejections(t *testing.T) {
	n := New()

	_, err := n.Normalize("", refNow)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = n.Normalize("   ", refNow)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = n.Normalize("yesterday", refNow)
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = n.Normalize("2020-01-01", refNow)
	assert.ErrorIs(t, err, ErrPastDate)

	_, err = n.Normalize("2099-01-01", refNow)
	assert.ErrorIs(t, err, ErrTooFarFuture)

	_, err = n.Normalize("the thing with the stuff", refNow)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestNormalize_Confidence(t *testing.T) {
	n := New()

	res, err := n.Normalize("tomorrow at 5pm", refNow)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, res.Confidence, 0.001)

	res, err = n.Normalize("tomorrow", refNow)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, res.Confidence, 0.001)

	res, err = n.Normalize("march 15", refNow)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, res.Confidence, 0.001)
}

// stubFallback returns a canned answer for fallback tests.
type stubFallback struct {
	t      time.Time
	conf   float64
	err    error
	called bool
}

func (s *stubFallback) ParseDate(_ context.Context, _ string, _ time.Time) (time.Time, float64, error) {
	s.called = true
	return s.t, s.conf, s.err
}

func TestNormalizeWithFallback(t *testing.T) {
	t.Run("deterministic hit skips fallback", func(t *testing.T) {
		stub := &stubFallback{}
		n := &Normalizer{LLM: stub}

		res, err := n.NormalizeWithFallback(context.Background(), "tomorrow", refNow)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 11, 23, 59, 0, 0, time.UTC), res.Time)
		assert.False(t, stub.called)
	})

	t.Run("unparseable text consults fallback", func(t *testing.T) {
		want := time.Date(2025, 4, 1, 23, 59, 0, 0, time.UTC)
		stub := &stubFallback{t: want, conf: 0.7}
		n := &Normalizer{LLM: stub}

		res, err := n.NormalizeWithFallback(context.Background(), "april fools day", refNow)
		require.NoError(t, err)
		assert.True(t, stub.called)
		assert.Equal(t, want, res.Time)
		assert.InDelta(t, 0.7, res.Confidence, 0.001)
	})

	t.Run("fallback answer is validated", func(t *testing.T) {
		stub := &stubFallback{t: refNow.AddDate(-1, 0, 0), conf: 0.9}
		n := &Normalizer{LLM: stub}

		_, err := n.NormalizeWithFallback(context.Background(), "some past thing", refNow)
		assert.ErrorIs(t, err, ErrPastDate)
	})

	t.Run("past rejection is not retried", func(t *testing.T) {
		stub := &stubFallback{t: refNow.AddDate(0, 1, 0), conf: 0.9}
		n := &Normalizer{LLM: stub}

		_, err := n.NormalizeWithFallback(context.Background(), "yesterday", refNow)
		assert.ErrorIs(t, err, ErrPastDate)
		assert.False(t, stub.called)
	})

	t.Run("fallback failure surfaces original error", func(t *testing.T) {
		stub := &stubFallback{err: errors.New("model offline")}
		n := &Normalizer{LLM: stub}

		_, err := n.NormalizeWithFallback(context.Background(), "blorptime", refNow)
		assert.ErrorIs(t, err, ErrUnparseable)
	})

	t.Run("no fallback configured returns parse error", func(t *testing.T) {
		n := New()
		_, err := n.NormalizeWithFallback(context.Background(), "blorptime", refNow)
		assert.ErrorIs(t, err, ErrUnparseable)
	})
}
