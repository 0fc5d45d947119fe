package summary

import (
	"fmt"
	"strings"
	"time"

	"islandbot/internal/model"
)

// View selects which day a summary describes.
type View struct {
	offset int
	date   model.Date
}

var (
	// Today is the current date in the display zone.
	Today = View{}
	// Tomorrow is the day after Today.
	Tomorrow = View{offset: 1}
)

// On returns a View pinned to a specific date.
func On(d model.Date) View {
	return View{date: d}
}

// ParseView accepts "today", "tomorrow" (also "" and the Korean 오늘/내일)
// or a YYYY-MM-DD date.
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "today", "오늘":
		return Today, nil
	case "tomorrow", "내일":
		return Tomorrow, nil
	}
	d, err := model.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return View{}, fmt.Errorf("unknown day %q: want today, tomorrow or YYYY-MM-DD", s)
	}
	return On(d), nil
}

// Date resolves the view to a calendar date as seen at now in loc.
func (v View) Date(now time.Time, loc *time.Location) model.Date {
	if !v.date.IsZero() {
		return v.date
	}
	return model.DateOf(now, loc).AddDays(v.offset)
}

// Prefix is the summary title label for the view.
func (v View) Prefix() string {
	switch {
	case !v.date.IsZero():
		return "모험섬"
	case v.offset == 1:
		return "내일 모험섬"
	default:
		return "오늘의 모험섬"
	}
}
