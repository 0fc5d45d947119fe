package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"islandbot/internal/calendar"
	"islandbot/internal/config"
	"islandbot/internal/discord"
	appLog "islandbot/internal/log"
	"islandbot/internal/schedule"
	"islandbot/internal/summary"
	"islandbot/internal/web"
)

const (
	// announceDelay gives the gateway a moment to settle before the
	// startup post.
	announceDelay   = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

func newRunCmd(g *globalFlags) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the Discord bot, the scheduler and the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			defer appLog.Close()

			// CLI --listen overrides config file listen if provided.
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return runBot(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

// newCalendar builds the calendar client and the summary pipeline on top.
func newCalendar(cfg *config.Config) (*calendar.Client, *summary.Builder, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	client := calendar.NewClient(calendar.Options{
		Endpoint:    cfg.Calendar.Endpoint,
		Token:       cfg.Calendar.Token,
		Location:    loc,
		Timeout:     cfg.Calendar.Timeout,
		MinInterval: cfg.Calendar.MinInterval,
	})
	return client, summary.NewBuilder(client, loc), nil
}

// dailyJob renders today's summary and hands it to send.
func dailyJob(builder *summary.Builder, send func(context.Context, summary.Summary) error) schedule.Job {
	return func(ctx context.Context, now time.Time) error {
		s, err := builder.Build(ctx, now, summary.Today)
		if err != nil {
			return err
		}
		appLog.Debug("summary rendered", "text", summary.PlainText(s))
		return send(ctx, s)
	}
}

func runBot(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateDiscord(); err != nil {
		return err
	}
	slots, err := cfg.Slots()
	if err != nil {
		return err
	}
	client, builder, err := newCalendar(cfg)
	if err != nil {
		return err
	}

	appLog.Info("islandbot starting",
		"version", version,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"slots", cfg.Schedule.Times,
		"announce_on_start", cfg.Schedule.AnnounceOnStart,
	)

	bot, err := discord.NewBot(cfg.Discord.Token, cfg.Discord.GuildID, builder)
	if err != nil {
		return err
	}
	dispatcher := discord.NewDispatcher(bot.Session(), cfg.Discord.ChannelID)
	sched := schedule.New(client.Location(), slots, dailyJob(builder, dispatcher.Send))

	if cfg.Schedule.AnnounceOnStart {
		bot.OnReady(func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(announceDelay):
			}
			if err := sched.RunNow(ctx); err != nil {
				appLog.Error("startup announce failed", err)
			}
		})
	}

	srv := web.NewServer(web.Options{
		Listen:    cfg.Listen,
		BasicAuth: cfg.BasicAuth,
		Ready:     bot.Ready,
		Builder:   builder,
		Scheduler: sched,
	})
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	}()

	if err := bot.Open(); err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			appLog.Error("discord close failed", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	<-ctx.Done()
	appLog.Info("islandbot exiting")
	return nil
}
