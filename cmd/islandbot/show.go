package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"islandbot/internal/calendar"
	"islandbot/internal/model"
	"islandbot/internal/summary"
)

func newShowCmd(g *globalFlags) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "show [today|tomorrow|YYYY-MM-DD]",
		Short: "Print the adventure islands of a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			day := ""
			if len(args) == 1 {
				day = args[0]
			}
			view, err := summary.ParseView(day)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			_, builder, err := newCalendar(cfg)
			if err != nil {
				return err
			}

			date, events, err := builder.Events(cmd.Context(), time.Now(), view)
			if err != nil {
				return err
			}
			out := renderTable(events, date, view)
			if plain {
				out = summary.PlainText(summary.Render(events, date, view.Prefix()))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "Print the embed text instead of a table")
	return cmd
}

var islandHeader = table.Row{
	"#",
	"Island",
	"Times",
	"Gold",
	"Rewards",
}

// renderTable prints the same content as the Discord embed, one row per
// island.
func renderTable(events []model.IslandEvent, date model.Date, view summary.View) string {
	s := summary.Render(events, date, view.Prefix())

	t := table.NewWriter()
	t.SetTitle(s.Title)
	t.AppendHeader(islandHeader)

	if len(events) == 0 {
		t.AppendRow(table.Row{"-", s.Description, "", "", ""})
	}
	for i, ev := range events {
		r := calendar.Classify(ev.Rewards)
		other := strings.Join(r.Other, "\n")
		if !r.HasNames() {
			other = summary.NoRewardsText
		}
		name := ev.Name
		if ev.Description != "" {
			name += "\n" + ev.Description
		}
		t.AppendRow(table.Row{
			i + 1,
			name,
			summary.JoinTimes(ev.Times),
			strings.Join(r.Priority, "\n"),
			other,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", s.Footer})
	return t.Render()
}
