package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandbot/internal/calendar"
	"islandbot/internal/model"
)

var kst = time.FixedZone("KST", 9*60*60)

func mustSlots(t *testing.T, labels ...string) []Slot {
	t.Helper()
	slots, err := ParseSlots(labels)
	require.NoError(t, err)
	return slots
}

type recordingJob struct {
	calls map[string]int
	err   error
}

func (r *recordingJob) run(_ context.Context, now time.Time) error {
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[now.Format("01-02 15:04")]++
	return r.err
}

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in    string
		label string
		ok    bool
	}{
		{"06:01", "06:01", true},
		{"6:01", "06:01", true},
		{" 20:00 ", "20:00", true},
		{"23:59", "23:59", true},
		{"24:00", "", false},
		{"06:60", "", false},
		{"0601", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, err := ParseSlot(tt.in)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, s.Label())
		})
	}

	t.Run("ParseSlotsDeduplicates", func(t *testing.T) {
		slots := mustSlots(t, "20:00", "06:01", "6:01")
		require.Len(t, slots, 2)
		assert.Equal(t, "20:00", slots[0].Label())
		assert.Equal(t, "06:01", slots[1].Label())
	})
}

func TestTick(t *testing.T) {
	ctx := context.Background()

	t.Run("FiresEachSlotOncePerDayAcrossFullDay", func(t *testing.T) {
		job := &recordingJob{}
		s := New(kst, mustSlots(t, "06:01", "20:00"), job.run)

		start := time.Date(2024, 5, 2, 0, 0, 0, 0, kst)
		counts := map[Outcome]int{}
		for m := 0; m < 24*60; m++ {
			minute := start.Add(time.Duration(m) * time.Minute)
			// Jittered duplicate deliveries within the same minute.
			for _, off := range []time.Duration{0, 15 * time.Second, 59 * time.Second} {
				counts[s.Tick(ctx, minute.Add(off))]++
			}
		}

		assert.Equal(t, map[string]int{"05-02 06:01": 1, "05-02 20:00": 1}, job.calls)
		assert.Equal(t, 2, counts[OutcomeDispatched])
		assert.Equal(t, 4, counts[OutcomeAlreadyFired])
		assert.Equal(t, 24*60*3-6, counts[OutcomeIdle])
	})

	t.Run("NextDayRearms", func(t *testing.T) {
		job := &recordingJob{}
		s := New(kst, mustSlots(t, "06:01"), job.run)

		day1 := time.Date(2024, 5, 2, 6, 1, 0, 0, kst)
		assert.Equal(t, OutcomeDispatched, s.Tick(ctx, day1))
		assert.Equal(t, OutcomeAlreadyFired, s.Tick(ctx, day1.Add(10*time.Second)))
		assert.Equal(t, OutcomeDispatched, s.Tick(ctx, day1.AddDate(0, 0, 1)))
		assert.Equal(t, model.Date{Year: 2024, Month: time.May, Day: 3}, s.State()["06:01"])
	})

	t.Run("LabelIsComputedInFixedZone", func(t *testing.T) {
		job := &recordingJob{}
		s := New(kst, mustSlots(t, "06:01"), job.run)

		// 21:01 UTC on May 1st is 06:01 on May 2nd in Seoul.
		assert.Equal(t, OutcomeDispatched, s.Tick(ctx, time.Date(2024, 5, 1, 21, 1, 0, 0, time.UTC)))
		assert.Equal(t, map[string]int{"05-02 06:01": 1}, job.calls)
	})

	t.Run("DeliveryFailureStillMarksSlot", func(t *testing.T) {
		job := &recordingJob{err: errors.New("channel unavailable")}
		s := New(kst, mustSlots(t, "06:01"), job.run)

		now := time.Date(2024, 5, 2, 6, 1, 0, 0, kst)
		assert.Equal(t, OutcomeDeliveryFailed, s.Tick(ctx, now))
		assert.Equal(t, OutcomeAlreadyFired, s.Tick(ctx, now.Add(30*time.Second)))
		assert.Equal(t, 1, job.calls["05-02 06:01"])
	})

	t.Run("FetchFailureLeavesSlotArmed", func(t *testing.T) {
		job := &recordingJob{err: fmtFetchErr()}
		s := New(kst, mustSlots(t, "06:01"), job.run)

		now := time.Date(2024, 5, 2, 6, 1, 0, 0, kst)
		assert.Equal(t, OutcomeFetchFailed, s.Tick(ctx, now))
		assert.Empty(t, s.State())

		job.err = nil
		assert.Equal(t, OutcomeDispatched, s.Tick(ctx, now.Add(20*time.Second)))
		assert.Equal(t, 2, job.calls["05-02 06:01"])
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {
		s := New(kst, mustSlots(t, "06:01"), func(context.Context, time.Time) error {
			panic("boom")
		})
		now := time.Date(2024, 5, 2, 6, 1, 0, 0, kst)
		assert.NotPanics(t, func() {
			assert.Equal(t, OutcomeDeliveryFailed, s.Tick(ctx, now))
		})
	})

	t.Run("RestartRearmsRemainingSlots", func(t *testing.T) {
		job := &recordingJob{}
		slots := mustSlots(t, "06:01", "20:00")
		first := New(kst, slots, job.run)
		assert.Equal(t, OutcomeDispatched, first.Tick(ctx, time.Date(2024, 5, 2, 6, 1, 0, 0, kst)))

		// A fresh process starts with empty state and only sees ticks from now on.
		second := New(kst, slots, job.run)
		for m := 0; m < 18*60; m++ {
			second.Tick(ctx, time.Date(2024, 5, 2, 6, 2, 0, 0, kst).Add(time.Duration(m)*time.Minute))
		}
		assert.Equal(t, map[string]int{"05-02 06:01": 1, "05-02 20:00": 1}, job.calls)
	})
}

func fmtFetchErr() error {
	return &calendar.FetchError{StatusCode: 503, Err: errors.New("unavailable")}
}

func TestRunNow(t *testing.T) {
	fixed := time.Date(2024, 5, 2, 12, 0, 0, 0, kst)
	job := &recordingJob{}
	s := New(kst, mustSlots(t, "06:01"), job.run)
	s.SetClock(func() time.Time { return fixed })

	require.NoError(t, s.RunNow(context.Background()))
	assert.Equal(t, 1, job.calls["05-02 12:00"])
	assert.Empty(t, s.State())

	assert.Error(t, New(kst, nil, nil).RunNow(context.Background()))
}

func TestUpcoming(t *testing.T) {
	job := &recordingJob{}
	s := New(kst, mustSlots(t, "20:00", "06:01"), job.run)

	now := time.Date(2024, 5, 2, 12, 0, 0, 0, kst)
	up := s.Upcoming(now)
	require.Len(t, up, 2)

	assert.Equal(t, "20:00", up[0].Label)
	assert.True(t, time.Date(2024, 5, 2, 20, 0, 0, 0, kst).Equal(up[0].Next), up[0].Next)
	assert.Equal(t, "06:01", up[1].Label)
	assert.True(t, time.Date(2024, 5, 3, 6, 1, 0, 0, kst).Equal(up[1].Next), up[1].Next)
	assert.True(t, up[0].LastFired.IsZero())

	s.Tick(context.Background(), time.Date(2024, 5, 2, 20, 0, 0, 0, kst))
	up = s.Upcoming(time.Date(2024, 5, 2, 20, 0, 0, 0, kst))
	assert.Equal(t, "06:01", up[0].Label)
	assert.Equal(t, "20:00", up[1].Label)
	assert.Equal(t, "2024-05-02", up[1].LastFired.String())
}

func TestStartStop(t *testing.T) {
	var ticks atomic.Int32
	s := New(kst, mustSlots(t, "06:01"), func(context.Context, time.Time) error {
		ticks.Add(1)
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	// Stopping twice is a no-op.
	s.Stop()
}
