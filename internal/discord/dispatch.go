package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	appLog "islandbot/internal/log"
	"islandbot/internal/summary"
)

// Discord embed limits.
const (
	maxTitle      = 256
	maxFieldName  = 256
	maxFieldValue = 1024
	maxFields     = 25
)

// MessageSender is the part of *discordgo.Session the dispatcher needs.
type MessageSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Dispatcher posts summaries to a fixed channel.
type Dispatcher struct {
	sender    MessageSender
	channelID string
}

// NewDispatcher creates a Dispatcher posting into channelID.
func NewDispatcher(sender MessageSender, channelID string) *Dispatcher {
	return &Dispatcher{sender: sender, channelID: channelID}
}

// Send delivers s as an embed. Errors are returned, not retried.
func (d *Dispatcher) Send(ctx context.Context, s summary.Summary) error {
	if d.channelID == "" {
		return errors.New("discord: channel id is empty")
	}
	msg, err := d.sender.ChannelMessageSendEmbed(d.channelID, Embed(s), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send embed to channel %s: %w", d.channelID, err)
	}
	if msg != nil {
		appLog.Info("discord message sent", "channel", d.channelID, "message_id", msg.ID, "fields", len(s.Fields))
	}
	return nil
}

// Embed converts a summary into a Discord embed, truncating to the
// platform's size limits.
func Embed(s summary.Summary) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       truncate(s.Title, maxTitle),
		Description: s.Description,
		Color:       s.Color,
	}
	if s.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: s.Footer}
	}
	for i, f := range s.Fields {
		if i == maxFields {
			appLog.Warn("embed fields truncated", "total", len(s.Fields), "max", maxFields)
			break
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   truncate(f.Name, maxFieldName),
			Value:  truncate(f.Value, maxFieldValue),
			Inline: false,
		})
	}
	return e
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
