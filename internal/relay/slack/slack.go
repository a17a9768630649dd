// Package slack posts relay messages to a Slack channel through the Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/tableside/internal/relay"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Poster implements relay.Poster for Slack.
type Poster struct {
	client    client
	channelID string
	backoff   time.Duration // base wait when Slack gives no Retry-After
}

// Opts holds parameters for creating a Slack Poster.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client client
}

// New creates a Slack Poster.
func New(opts Opts) (*Poster, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	p := &Poster{client: opts.Client, channelID: opts.ChannelID, backoff: time.Second}
	if p.client == nil {
		p.client = slackapi.New(opts.BotToken)
	}
	return p, nil
}

func (p *Poster) Platform() string { return "slack" }
func (p *Poster) Channel() string  { return p.channelID }

// Post sends msg as a colored attachment, with the title as fallback text.
func (p *Poster) Post(ctx context.Context, msg relay.Message) error {
	options := buildMessageOptions(msg)
	err := p.retryOnRateLimit(ctx, func() error {
		_, _, postErr := p.client.PostMessage(p.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func buildMessageOptions(msg relay.Message) []slackapi.MsgOption {
	att := slackapi.Attachment{
		Title:    msg.Title,
		Text:     msg.Body,
		Color:    msg.Color,
		Fallback: msg.Title,
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(msg.Title, false),
		slackapi.MsgOptionAttachments(att),
	}
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit
// errors, honouring Retry-After when Slack sends one.
func (p *Poster) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * p.backoff
		}
		log.Printf("slack: rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}
