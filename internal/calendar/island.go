package calendar

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode"

	appLog "islandbot/internal/log"
	"islandbot/internal/model"
)

// DefaultIslandName is used when an entry has no ContentsName.
const DefaultIslandName = "모험섬"

// Layouts for timestamps carrying an explicit offset. A trailing Z is
// rewritten to +00:00 before these are tried.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
}

// Layouts for naive timestamps; these are read in the display zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
}

// IsIslandCategory reports whether a raw category string denotes an
// adventure island. Whitespace is removed and the result lower-cased before
// a containment test, since wording and spacing differ between API revisions.
func IsIslandCategory(category string) bool {
	c := strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, category))

	if strings.Contains(c, "모험") && strings.Contains(c, "섬") {
		return true
	}
	return strings.Contains(c, "adventure") && strings.Contains(c, "island")
}

// ParseTimestamp parses one raw start time. Values with a Z suffix or an
// explicit offset keep it; naive values are taken to be in loc already.
// The result is always expressed in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, &ParseError{Value: raw, Err: errors.New("empty value")}
	}
	if strings.HasSuffix(v, "Z") || strings.HasSuffix(v, "z") {
		v = v[:len(v)-1] + "+00:00"
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &ParseError{Value: raw, Err: errors.New("unrecognized layout")}
}

// Extract returns the adventure islands of snap that occur on target,
// ordered by their first occurrence. Entries whose first occurrences tie
// keep their feed order.
func Extract(snap *Snapshot, target model.Date, loc *time.Location) []model.IslandEvent {
	out := make([]model.IslandEvent, 0)
	if snap == nil {
		return out
	}
	if loc == nil {
		loc = time.Local
	}

	for _, e := range snap.Entries {
		if !IsIslandCategory(e.Category) {
			continue
		}

		times := occurrencesOn(e.StartTimes, target, loc)
		if len(times) == 0 {
			continue
		}

		name := e.Name
		if strings.TrimSpace(name) == "" {
			name = DefaultIslandName
		}
		out = append(out, model.IslandEvent{
			Name:        name,
			Description: e.Note,
			Times:       times,
			Rewards:     e.Rewards,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].First().Before(out[j].First())
	})
	return out
}

// occurrencesOn parses raws and keeps the instants falling on target,
// sorted and with at most one instant per minute. Unparseable values are
// dropped.
func occurrencesOn(raws []string, target model.Date, loc *time.Location) []time.Time {
	var times []time.Time
	for _, raw := range raws {
		t, err := ParseTimestamp(raw, loc)
		if err != nil {
			appLog.Debug("start time dropped", "value", raw, "reason", err.Error())
			continue
		}
		if model.DateOf(t, loc) != target {
			continue
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		return nil
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	uniq := times[:1]
	for _, t := range times[1:] {
		if !t.Truncate(time.Minute).Equal(uniq[len(uniq)-1].Truncate(time.Minute)) {
			uniq = append(uniq, t)
		}
	}
	return uniq
}
