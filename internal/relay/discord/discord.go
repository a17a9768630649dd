// Package discord posts relay messages to a Discord channel as embeds.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/tableside/internal/relay"
)

const (
	maxRetries  = 3
	baseBackoff = 2 * time.Second
	maxBackoff  = 30 * time.Second
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Poster implements relay.Poster for Discord. Posting uses the REST API
// only, so no gateway connection is opened.
type Poster struct {
	sess        session
	channelID   string
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Opts holds parameters for creating a Discord Poster.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Poster.
func New(opts Opts) (*Poster, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	p := &Poster{
		sess:        opts.Session,
		channelID:   opts.ChannelID,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if p.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		p.sess = dg
	}
	return p, nil
}

func (p *Poster) Platform() string { return "discord" }
func (p *Poster) Channel() string  { return p.channelID }

// Post sends msg as a single embed.
func (p *Poster) Post(ctx context.Context, msg relay.Message) error {
	data := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{toEmbed(msg)}}
	err := p.retryOnRateLimit(ctx, func() error {
		_, sendErr := p.sess.ChannelMessageSendComplex(p.channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

func toEmbed(msg relay.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       parseHexColor(msg.Color),
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts "#36a64f" to 0x36a64f. Invalid input yields 0,
// which Discord renders as the default color.
func parseHexColor(hex string) int {
	n, err := strconv.ParseInt(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(n)
}

func (p *Poster) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * p.baseBackoff
		if wait > p.maxBackoff {
			wait = p.maxBackoff
		}
		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
