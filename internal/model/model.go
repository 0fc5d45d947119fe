package model

import (
	"fmt"
	"time"
)

// Date is a civil calendar date with no time-of-day or zone attached.
// All date comparisons in islandbot happen on Date values computed in the
// configured display timezone (Asia/Seoul by default).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// Midnight returns 00:00 of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// IslandEvent is one adventure-island calendar entry narrowed to a single
// target date. Times is never empty, sorted ascending and free of
// duplicates; every element is in the display timezone.
type IslandEvent struct {
	Name        string
	Description string
	Times       []time.Time

	// Rewards is the raw reward payload of the originating calendar entry
	// (map/array/scalar tree as decoded from JSON). May be nil.
	Rewards any
}

// First returns the earliest occurrence.
func (e IslandEvent) First() time.Time {
	return e.Times[0]
}

// RewardStatus distinguishes why a RewardSummary has (or lacks) names.
type RewardStatus int

const (
	// RewardsFound means at least one reward name was extracted.
	RewardsFound RewardStatus = iota
	// RewardsAbsent means the entry carried no reward payload at all.
	RewardsAbsent
	// RewardsUnparseable means a payload existed but yielded no names.
	RewardsUnparseable
)

func (s RewardStatus) String() string {
	switch s {
	case RewardsFound:
		return "found"
	case RewardsAbsent:
		return "absent"
	case RewardsUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}

// RewardSummary is the classified view of a reward payload.
//
// Priority holds "currency-like" names (gold), Other everything else.
// Both are sorted, deduplicated and disjoint.
type RewardSummary struct {
	Status   RewardStatus
	Priority []string
	Other    []string
}

// HasNames reports whether any reward name was extracted.
func (r RewardSummary) HasNames() bool {
	return len(r.Priority)+len(r.Other) > 0
}
