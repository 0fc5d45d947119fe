package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"islandbot/internal/calendar"
	"islandbot/internal/model"
)

const (
	// Color is the embed accent color (green).
	Color = 0x2ecc71
	// Footer credits the data source.
	Footer = "데이터 출처: Lost Ark OpenAPI"

	// NoRewardsText is shown when an event has no extractable reward names,
	// whether the payload was missing or merely unparseable.
	NoRewardsText = "보상: (정보 없음)"
)

// Field is one titled block of a Summary.
type Field struct {
	Name  string
	Value string
}

// Summary is a transport-neutral rendering of one day's islands.
type Summary struct {
	Title       string
	Description string
	Footer      string
	Color       int
	Fields      []Field
}

// Empty reports whether the summary lists no events.
func (s Summary) Empty() bool {
	return len(s.Fields) == 0
}

// Render builds the summary for events on date. prefix labels the day
// ("오늘의 모험섬", "내일 모험섬", ...).
func Render(events []model.IslandEvent, date model.Date, prefix string) Summary {
	s := Summary{
		Title:  fmt.Sprintf("%s (%s)", prefix, date.Midnight(time.UTC).Format("01/02 Mon")),
		Footer: Footer,
		Color:  Color,
	}
	if len(events) == 0 {
		s.Description = prefix + " 정보가 없습니다."
		return s
	}

	for _, ev := range events {
		lines := []string{"시간: " + JoinTimes(ev.Times)}
		if ev.Description != "" {
			lines = append(lines, "메모: "+ev.Description)
		}
		lines = append(lines, RewardText(calendar.Classify(ev.Rewards)))

		s.Fields = append(s.Fields, Field{
			Name:  ev.Name,
			Value: strings.Join(lines, "\n"),
		})
	}
	return s
}

// JoinTimes formats occurrences as "HH:MM / HH:MM".
func JoinTimes(times []time.Time) string {
	parts := make([]string, 0, len(times))
	for _, t := range times {
		parts = append(parts, t.Format("15:04"))
	}
	return strings.Join(parts, " / ")
}

// RewardText renders a reward summary as a diff code block so that
// priority names stand out ("- " prefix) from the rest ("  " prefix).
func RewardText(r model.RewardSummary) string {
	if !r.HasNames() {
		return NoRewardsText
	}

	lines := make([]string, 0, len(r.Priority)+len(r.Other))
	for _, n := range r.Priority {
		lines = append(lines, "- "+n)
	}
	for _, n := range r.Other {
		lines = append(lines, "  "+n)
	}
	return "보상:\n```diff\n" + strings.Join(lines, "\n") + "\n```"
}

// PlainText flattens a summary for terminals and logs.
func PlainText(s Summary) string {
	var b strings.Builder
	b.WriteString(s.Title)
	b.WriteString("\n")
	if s.Description != "" {
		b.WriteString(s.Description)
		b.WriteString("\n")
	}
	for _, f := range s.Fields {
		b.WriteString("\n[")
		b.WriteString(f.Name)
		b.WriteString("]\n")
		b.WriteString(f.Value)
		b.WriteString("\n")
	}
	if s.Footer != "" {
		b.WriteString("\n")
		b.WriteString(s.Footer)
		b.WriteString("\n")
	}
	return b.String()
}

// Fetcher yields the calendar snapshot valid at now.
type Fetcher interface {
	Fetch(ctx context.Context, now time.Time) (*calendar.Snapshot, error)
}

// Builder runs the fetch → extract → render pipeline.
type Builder struct {
	fetcher Fetcher
	loc     *time.Location
}

// NewBuilder creates a Builder that evaluates dates in loc.
func NewBuilder(f Fetcher, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.Local
	}
	return &Builder{fetcher: f, loc: loc}
}

// Location returns the zone dates are evaluated in.
func (b *Builder) Location() *time.Location {
	return b.loc
}

// Events fetches the calendar and extracts the islands for view.
func (b *Builder) Events(ctx context.Context, now time.Time, view View) (model.Date, []model.IslandEvent, error) {
	snap, err := b.fetcher.Fetch(ctx, now)
	if err != nil {
		return model.Date{}, nil, err
	}
	date := view.Date(now, b.loc)
	return date, calendar.Extract(snap, date, b.loc), nil
}

// Build renders the summary for view as seen at now.
func (b *Builder) Build(ctx context.Context, now time.Time, view View) (Summary, error) {
	date, events, err := b.Events(ctx, now, view)
	if err != nil {
		return Summary{}, err
	}
	return Render(events, date, view.Prefix()), nil
}
