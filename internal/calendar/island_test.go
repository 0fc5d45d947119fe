package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"islandbot/internal/model"
)

func date(y int, m time.Month, d int) model.Date {
	return model.Date{Year: y, Month: m, Day: d}
}

func hhmm(times []time.Time) []string {
	out := make([]string, 0, len(times))
	for _, t := range times {
		out = append(out, t.Format("15:04"))
	}
	return out
}

func TestIsIslandCategory(t *testing.T) {
	tests := []struct {
		category string
		want     bool
	}{
		{"모험 섬", true},
		{"모험섬", true},
		{" 모 험  섬 ", true},
		{"Adventure Island", true},
		{"ADVENTURE\tISLAND", true},
		{"필드 보스", false},
		{"모험", false},
		{"Island", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assert.Equal(t, tt.want, IsIslandCategory(tt.category))
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"UTCSuffix", "2024-05-01T21:01:00Z", time.Date(2024, 5, 2, 6, 1, 0, 0, kst)},
		{"LowercaseZ", "2024-05-01T21:01:00z", time.Date(2024, 5, 2, 6, 1, 0, 0, kst)},
		{"Offset", "2024-05-02T06:01:00+09:00", time.Date(2024, 5, 2, 6, 1, 0, 0, kst)},
		{"OtherOffset", "2024-05-01T23:01:00+02:00", time.Date(2024, 5, 2, 6, 1, 0, 0, kst)},
		{"NaiveIsLocal", "2024-05-02T06:01:00", time.Date(2024, 5, 2, 6, 1, 0, 0, kst)},
		{"NaiveFraction", "2024-05-02T06:01:00.500", time.Date(2024, 5, 2, 6, 1, 0, 500_000_000, kst)},
		{"NaiveSpace", "2024-05-02 06:01:00", time.Date(2024, 5, 2, 6, 1, 0, 0, kst)},
		{"NaiveNoSeconds", "2024-05-02T06:01", time.Date(2024, 5, 2, 6, 1, 0, 0, kst)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw, kst)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, kst, got.Location())
		})
	}

	t.Run("Invalid", func(t *testing.T) {
		for _, raw := range []string{"", "  ", "tomorrow", "2024-13-40T00:00:00"} {
			_, err := ParseTimestamp(raw, kst)
			var pe *ParseError
			require.ErrorAs(t, err, &pe, raw)
			assert.Equal(t, raw, pe.Value)
		}
	})
}

func TestExtract(t *testing.T) {
	t.Run("ReferenceScenario", func(t *testing.T) {
		snap := &Snapshot{Entries: []Entry{{
			Category:   "모험 섬",
			Name:       "A",
			StartTimes: []string{"2024-05-01T21:01:00Z"},
			Rewards: []any{
				map[string]any{"Name": "골드 변환 상자"},
				map[string]any{"RewardName": "비밀지도"},
			},
		}}}

		events := Extract(snap, date(2024, 5, 2), kst)
		require.Len(t, events, 1)
		assert.Equal(t, "A", events[0].Name)
		assert.Equal(t, []string{"06:01"}, hhmm(events[0].Times))

		r := Classify(events[0].Rewards)
		assert.Equal(t, []string{"골드 변환 상자"}, r.Priority)
		assert.Equal(t, []string{"비밀지도"}, r.Other)
	})

	t.Run("UTCEveningBelongsToNextDay", func(t *testing.T) {
		for _, d := range []model.Date{date(2024, 1, 31), date(2024, 2, 28), date(2024, 12, 31), date(2025, 6, 15)} {
			raw := d.Midnight(time.UTC).Add(21*time.Hour + 30*time.Minute).Format(time.RFC3339)
			snap := &Snapshot{Entries: []Entry{{Category: "모험 섬", Name: "X", StartTimes: []string{raw}}}}

			assert.Empty(t, Extract(snap, d, kst), raw)
			next := Extract(snap, d.AddDays(1), kst)
			require.Len(t, next, 1, raw)
			assert.Equal(t, []string{"06:30"}, hhmm(next[0].Times))
		}
	})

	t.Run("KeepsOnlyMatchingOccurrences", func(t *testing.T) {
		snap := &Snapshot{Entries: []Entry{{
			Category: "모험 섬",
			Name:     "B",
			StartTimes: []string{
				"2024-05-02T19:00:00",
				"2024-05-03T09:00:00",
				"2024-05-02T09:00:00",
				"garbage",
				"2024-05-01T23:00:00",
			},
		}}}

		events := Extract(snap, date(2024, 5, 2), kst)
		require.Len(t, events, 1)
		assert.Equal(t, []string{"09:00", "19:00"}, hhmm(events[0].Times))
	})

	t.Run("DeduplicatesSameMinute", func(t *testing.T) {
		snap := &Snapshot{Entries: []Entry{{
			Category: "모험 섬",
			Name:     "C",
			StartTimes: []string{
				"2024-05-01T21:01:00Z",
				"2024-05-02T06:01:00+09:00",
				"2024-05-02T06:01:00",
				"2024-05-02T06:01:30",
			},
		}}}

		events := Extract(snap, date(2024, 5, 2), kst)
		require.Len(t, events, 1)
		assert.Equal(t, []string{"06:01"}, hhmm(events[0].Times))
	})

	t.Run("SortedByFirstTimeStable", func(t *testing.T) {
		snap := &Snapshot{Entries: []Entry{
			{Category: "모험 섬", Name: "late", StartTimes: []string{"2024-05-02T19:00:00"}},
			{Category: "모험 섬", Name: "tie-1", StartTimes: []string{"2024-05-02T09:00:00"}},
			{Category: "Adventure Island", Name: "tie-2", StartTimes: []string{"2024-05-02T00:00:00Z"}},
			{Category: "모험 섬", Name: "early", StartTimes: []string{"2024-05-02T06:00:00"}},
		}}

		events := Extract(snap, date(2024, 5, 2), kst)
		names := make([]string, 0, len(events))
		for _, e := range events {
			names = append(names, e.Name)
		}
		assert.Equal(t, []string{"early", "tie-1", "tie-2", "late"}, names)
	})

	t.Run("MissingNameUsesPlaceholder", func(t *testing.T) {
		snap := &Snapshot{Entries: []Entry{{Category: "모험 섬", Note: "메모", StartTimes: []string{"2024-05-02T09:00:00"}}}}

		events := Extract(snap, date(2024, 5, 2), kst)
		require.Len(t, events, 1)
		assert.Equal(t, DefaultIslandName, events[0].Name)
		assert.Equal(t, "메모", events[0].Description)
	})

	t.Run("OtherCategoriesIgnored", func(t *testing.T) {
		snap := &Snapshot{Entries: []Entry{{Category: "필드 보스", Name: "boss", StartTimes: []string{"2024-05-02T09:00:00"}}}}
		assert.Empty(t, Extract(snap, date(2024, 5, 2), kst))
	})

	t.Run("EmptyInputs", func(t *testing.T) {
		assert.NotNil(t, Extract(nil, date(2024, 5, 2), kst))
		assert.Empty(t, Extract(nil, date(2024, 5, 2), kst))
		assert.Empty(t, Extract(&Snapshot{}, date(2024, 5, 2), kst))
	})
}

func TestDecodeEntries(t *testing.T) {
	body := []byte(`[
	  {"Category":"모험 섬","ContentsName":"scalar","StartTimes":"2024-05-02T09:00:00","Rewards":{"Item":{"Name":"실링"}}},
	  "not an object",
	  {"categoryName":"Adventure Island","ContentsName":"alias","StartTimes":["2024-05-02T11:00:00", null]},
	  {"CategoryName":"","Category":"모험 섬","ContentsName":"fallback","RewardItems":[],"Rewards":[{"Name":"골드"}]}
	]`)

	entries, err := decodeEntries(body)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, []string{"2024-05-02T09:00:00"}, entries[0].StartTimes)
	assert.Equal(t, map[string]any{"Item": map[string]any{"Name": "실링"}}, entries[0].Rewards)
	assert.Equal(t, "Adventure Island", entries[1].Category)
	assert.Equal(t, []string{"2024-05-02T11:00:00"}, entries[1].StartTimes)
	assert.Equal(t, "모험 섬", entries[2].Category)
	assert.Equal(t, []any{map[string]any{"Name": "골드"}}, entries[2].Rewards)

	t.Run("UnmarshalJSON", func(t *testing.T) {
		var e Entry
		require.NoError(t, e.UnmarshalJSON([]byte(`{"CategoryName":"모험 섬","ContentsName":"A","ContentsNote":"n","StartTimes":[true]}`)))
		assert.Equal(t, "A", e.Name)
		assert.Equal(t, "n", e.Note)
		assert.Equal(t, []string{"true"}, e.StartTimes)
	})
}
