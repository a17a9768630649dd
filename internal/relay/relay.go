// Package relay forwards staff alerts to a chat channel and posts a
// scheduled shift digest there.
package relay

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/tableside/internal/journal"
	"github.com/zulandar/tableside/internal/models"
	"github.com/zulandar/tableside/internal/notice"
	"gorm.io/gorm"
)

// Message is one chat post.
type Message struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "error", "success"
	Color    string // sidebar color hint, e.g. "#36a64f"
	Fields   []Field
}

// Field is a key-value pair shown alongside a message.
type Field struct {
	Name  string
	Value string
	Short bool // render side-by-side with another field
}

// Poster delivers messages to one chat platform.
type Poster interface {
	Platform() string
	Channel() string
	Post(ctx context.Context, msg Message) error
}

const (
	// DefaultDedupWindow suppresses a redelivered alert for this long.
	DefaultDedupWindow = 30 * time.Second
	// DefaultBuffer is the number of alerts held while posting catches up.
	DefaultBuffer = 128
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Relay is a notice.Sink that posts alert-class notices through a Poster
// from its own goroutine.
type Relay struct {
	poster     Poster
	db         *gorm.DB
	digestCron string
	seen       *cache.Cache
	queue      chan outbound
	now        func() time.Time
}

type outbound struct {
	key  string
	kind notice.Kind
	msg  Message
}

// Opts holds parameters for creating a Relay.
type Opts struct {
	Poster      Poster
	DB          *gorm.DB      // optional; records posts and feeds the digest
	DedupWindow time.Duration // defaults to DefaultDedupWindow
	Buffer      int           // defaults to DefaultBuffer
	DigestCron  string        // optional 5-field cron expression; needs DB
}

// New creates a Relay. Call Run to start posting.
func New(opts Opts) (*Relay, error) {
	if opts.Poster == nil {
		return nil, fmt.Errorf("relay: poster is required")
	}
	if opts.DigestCron != "" {
		if opts.DB == nil {
			return nil, fmt.Errorf("relay: digest requires a journal database")
		}
		if _, err := cronParser.Parse(opts.DigestCron); err != nil {
			return nil, fmt.Errorf("relay: digest cron %q: %w", opts.DigestCron, err)
		}
	}
	window := opts.DedupWindow
	if window <= 0 {
		window = DefaultDedupWindow
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = DefaultBuffer
	}
	return &Relay{
		poster:     opts.Poster,
		db:         opts.DB,
		digestCron: opts.DigestCron,
		seen:       cache.New(window, 2*window),
		queue:      make(chan outbound, buf),
		now:        time.Now,
	}, nil
}

// Notify queues n for posting if it is an alert that has not been posted
// within the dedup window. Seating alerts are never collapsed.
func (r *Relay) Notify(n notice.Notice) {
	msg, ok := Format(n)
	if !ok {
		return
	}
	key := dedupKey(n)
	if deduplicated(n.Kind) {
		if err := r.seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			return
		}
	}
	select {
	case r.queue <- outbound{key: key, kind: n.Kind, msg: msg}:
	default:
		log.Printf("relay: queue full, dropped %s", key)
	}
}

// Run posts queued alerts and scheduled digests until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	var digest *time.Timer
	if r.digestCron != "" {
		if d := nextCronDuration(r.digestCron, r.now()); d > 0 {
			digest = time.NewTimer(d)
			defer digest.Stop()
		}
	}
	lastDigest := r.now().Add(-24 * time.Hour)

	for {
		select {
		case <-ctx.Done():
			return nil
		case out := <-r.queue:
			r.post(ctx, out.key, out.kind, out.msg)
		case <-timerChan(digest):
			until := r.now()
			if err := r.PostDigest(ctx, lastDigest, until); err != nil {
				log.Printf("relay: %v", err)
			}
			lastDigest = until
			if d := nextCronDuration(r.digestCron, until); d > 0 {
				digest.Reset(d)
			}
		}
	}
}

// PostDigest builds the shift digest for [since, until) and posts it. A
// period without activity is not posted.
func (r *Relay) PostDigest(ctx context.Context, since, until time.Time) error {
	if r.db == nil {
		return fmt.Errorf("relay: digest requires a journal database")
	}
	d, err := journal.BuildDigest(r.db, since, until)
	if err != nil {
		return fmt.Errorf("relay: digest: %w", err)
	}
	if d.Empty() {
		return nil
	}
	title, body := journal.FormatDigest(d)
	msg := Message{Title: title, Body: body, Severity: "info", Color: ColorInfo}
	if err := r.post(ctx, "digest:"+until.Format(time.RFC3339), "digest", msg); err != nil {
		return fmt.Errorf("relay: post digest: %w", err)
	}
	return nil
}

func (r *Relay) post(ctx context.Context, key string, kind notice.Kind, msg Message) error {
	err := r.poster.Post(ctx, msg)
	if err != nil {
		log.Printf("relay: post %s to %s: %v", key, r.poster.Platform(), err)
		// Let a later redelivery try again.
		r.seen.Delete(key)
	}
	r.record(key, kind, msg, err)
	return err
}

func (r *Relay) record(key string, kind notice.Kind, msg Message, postErr error) {
	if r.db == nil {
		return
	}
	row := models.RelayPost{
		Platform:  r.poster.Platform(),
		ChannelID: r.poster.Channel(),
		Key:       key,
		Kind:      string(kind),
		Text:      msg.Title,
		Failed:    postErr != nil,
		CreatedAt: r.now(),
	}
	if postErr != nil {
		row.Error = postErr.Error()
	}
	if err := r.db.Create(&row).Error; err != nil {
		log.Printf("relay: record post %s: %v", key, err)
	}
}

// nextCronDuration returns the duration from now until the next fire time
// of expr, or 0 if expr does not parse.
func nextCronDuration(expr string, now time.Time) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// timerChan returns the timer's channel, or nil if the timer is nil.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
