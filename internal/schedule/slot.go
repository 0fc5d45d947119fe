package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"islandbot/internal/model"
)

// Slot is a daily dispatch time-of-day in the display timezone.
type Slot struct {
	Hour   int
	Minute int
}

// ParseSlot parses an "HH:MM" label. Single-digit hours ("6:01") are
// accepted and normalized by Label.
func ParseSlot(s string) (Slot, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return Slot{}, fmt.Errorf("invalid slot %q: want HH:MM", s)
	}
	return Slot{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// ParseSlots parses and deduplicates labels, keeping their order.
func ParseSlots(labels []string) ([]Slot, error) {
	out := make([]Slot, 0, len(labels))
	seen := make(map[Slot]struct{}, len(labels))
	for _, l := range labels {
		s, err := ParseSlot(l)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// Label formats the slot as "HH:MM", the same form ticks are matched on.
func (s Slot) Label() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// Rule returns the daily recurrence of the slot starting on day in loc.
func (s Slot) Rule(day model.Date, loc *time.Location) (*rrule.RRule, error) {
	return rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Dtstart:  day.Midnight(loc),
		Byhour:   []int{s.Hour},
		Byminute: []int{s.Minute},
		Bysecond: []int{0},
	})
}

// Next returns the first firing of the slot strictly after now.
func (s Slot) Next(now time.Time, loc *time.Location) (time.Time, error) {
	r, err := s.Rule(model.DateOf(now, loc), loc)
	if err != nil {
		return time.Time{}, err
	}
	return r.After(now, false), nil
}
