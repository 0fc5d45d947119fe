package calendar

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"islandbot/internal/model"
)

const productID = "-//islandbot//adventure islands//KO"

// ExportICS renders events as an iCalendar document with one VEVENT per
// occurrence. UIDs are derived from the island name and start instant so
// repeated exports of the same day produce the same UIDs.
func ExportICS(events []model.IslandEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, ev := range events {
		desc := describe(ev)
		for _, t := range ev.Times {
			vev := cal.AddEvent(occurrenceUID(ev.Name, t))
			vev.SetDtStampTime(stamp.UTC())
			vev.SetStartAt(t.UTC())
			vev.SetSummary(ev.Name)
			if desc != "" {
				vev.SetDescription(desc)
			}
		}
	}
	return cal.Serialize()
}

func describe(ev model.IslandEvent) string {
	var lines []string
	if ev.Description != "" {
		lines = append(lines, ev.Description)
	}
	r := Classify(ev.Rewards)
	if len(r.Priority) > 0 {
		lines = append(lines, "골드: "+strings.Join(r.Priority, ", "))
	}
	if len(r.Other) > 0 {
		lines = append(lines, "보상: "+strings.Join(r.Other, ", "))
	}
	return strings.Join(lines, "\n")
}

func occurrenceUID(name string, start time.Time) string {
	sum := sha256.Sum256([]byte(name))
	return start.UTC().Format("20060102T150405Z") + "-" + hex.EncodeToString(sum[:6]) + "@islandbot"
}
