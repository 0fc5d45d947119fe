package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	appLog "islandbot/internal/log"
	"islandbot/internal/summary"
)

const (
	CommandToday    = "island"
	CommandTomorrow = "island_tomorrow"

	commandTimeout = 30 * time.Second
	failureText    = "모험섬 정보를 가져오지 못했습니다. 잠시 후 다시 시도해 주세요."
)

// Commands are the slash commands registered on Ready.
var Commands = []*discordgo.ApplicationCommand{
	{Name: CommandToday, Description: "오늘 모험섬"},
	{Name: CommandTomorrow, Description: "내일 모험섬"},
}

var commandViews = map[string]summary.View{
	CommandToday:    summary.Today,
	CommandTomorrow: summary.Tomorrow,
}

// Bot owns the gateway session and answers slash commands.
type Bot struct {
	session *discordgo.Session
	builder *summary.Builder
	guildID string
	clock   func() time.Time

	ready     atomic.Bool
	readyOnce sync.Once
	onReady   []func()
}

// NewBot creates a Bot for a bot token. guildID limits command
// registration to one guild; empty registers globally.
func NewBot(token, guildID string, builder *summary.Builder) (*Bot, error) {
	if token == "" {
		return nil, errors.New("discord: token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	b := &Bot{
		session: s,
		builder: builder,
		guildID: guildID,
		clock:   time.Now,
	}
	s.AddHandler(b.handleReady)
	s.AddHandler(b.handleInteraction)
	return b, nil
}

// Session exposes the underlying session, e.g. to build a Dispatcher.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// OnReady registers fn to run once, after the first Ready event.
// Must be called before Open.
func (b *Bot) OnReady(fn func()) {
	b.onReady = append(b.onReady, fn)
}

// Ready reports whether the gateway session has become ready.
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

// Open connects to the gateway.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	b.ready.Store(false)
	return b.session.Close()
}

func (b *Bot) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	appLog.Info("discord ready", "user", r.User.String(), "guilds", len(r.Guilds))

	if _, err := s.ApplicationCommandBulkOverwrite(r.User.ID, b.guildID, Commands); err != nil {
		// Commands stay at their previous registration; scheduled posts still work.
		appLog.Error("slash command sync failed", err, "guild", b.guildID)
	}

	b.ready.Store(true)
	b.readyOnce.Do(func() {
		for _, fn := range b.onReady {
			go fn()
		}
	})
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	if _, ok := commandViews[name]; !ok {
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		appLog.Error("interaction defer failed", err, "command", name)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	params := &discordgo.WebhookParams{}
	embed, err := b.commandEmbed(ctx, name)
	if err != nil {
		appLog.Error("command summary failed", err, "command", name)
		params.Content = failureText
	} else {
		params.Embeds = []*discordgo.MessageEmbed{embed}
	}

	if _, err := s.FollowupMessageCreate(i.Interaction, true, params); err != nil {
		appLog.Error("interaction followup failed", err, "command", name)
	}
}

// commandEmbed builds the embed answering a slash command.
func (b *Bot) commandEmbed(ctx context.Context, name string) (*discordgo.MessageEmbed, error) {
	view, ok := commandViews[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}
	s, err := b.builder.Build(ctx, b.clock(), view)
	if err != nil {
		return nil, err
	}
	return Embed(s), nil
}
