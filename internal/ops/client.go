// Package ops wires the dashboard sync client together: one connection,
// one floor store, one dispatcher and one move workflow, driven by a
// single loop goroutine so that no two mutations ever interleave.
package ops

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zulandar/tableside/internal/conn"
	"github.com/zulandar/tableside/internal/dispatch"
	"github.com/zulandar/tableside/internal/floor"
	"github.com/zulandar/tableside/internal/movetable"
	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
)

// DefaultLogoutDelay is how long a forced logout waits so staff can read
// the error first.
const DefaultLogoutDelay = 2 * time.Second

const workBuffer = 256

// ErrLoggedOut is returned by Run when the server ended the session.
var ErrLoggedOut = errors.New("ops: logged out by server")

// Client is the dashboard's sync client. Construct one with NewClient and
// pass it to whatever renders or serves the floor.
type Client struct {
	token       string
	logoutDelay time.Duration
	sched       conn.Scheduler
	sink        notice.Sink

	conn       *conn.Manager
	store      *floor.Store
	engine     *floor.Engine
	dispatcher *dispatch.Dispatcher
	move       *movetable.Controller

	work    chan func()
	done    chan struct{}
	running atomic.Bool

	// Owned by the loop goroutine.
	logoutTimer conn.Timer
	exit        bool
	exitErr     error

	frames   atomic.Int64
	dropped  atomic.Int64
	stopOnce sync.Once
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	URL   string
	Token string

	Dialer       conn.Dialer    // defaults to conn.WebsocketDialer{}
	Scheduler    conn.Scheduler // defaults to time.AfterFunc
	BaseInterval time.Duration
	MaxInterval  time.Duration
	MaxAttempts  int

	ToastTTL    time.Duration
	LogoutDelay time.Duration // defaults to DefaultLogoutDelay

	// Sink receives every notice. It is called from the loop and from the
	// connection's goroutines, so it must be safe for concurrent use.
	Sink notice.Sink
}

// NewClient builds a Client. Nothing connects until Run.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("ops: token is required")
	}
	c := &Client{
		token:       opts.Token,
		logoutDelay: opts.LogoutDelay,
		sched:       opts.Scheduler,
		sink:        opts.Sink,
		work:        make(chan func(), workBuffer),
		done:        make(chan struct{}),
	}
	if c.logoutDelay <= 0 {
		c.logoutDelay = DefaultLogoutDelay
	}
	if c.sink == nil {
		c.sink = notice.Discard
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = conn.WebsocketDialer{}
	}

	m, err := conn.NewManager(conn.ManagerOpts{
		URL:          opts.URL,
		Dialer:       dialer,
		Scheduler:    opts.Scheduler,
		BaseInterval: opts.BaseInterval,
		MaxInterval:  opts.MaxInterval,
		MaxAttempts:  opts.MaxAttempts,
		OnFrame:      c.onFrame,
		Sink:         c.sink,
	})
	if err != nil {
		return nil, fmt.Errorf("ops: %w", err)
	}
	c.conn = m
	if c.sched == nil {
		c.sched = clock{}
	}

	c.store = floor.NewStore()
	c.engine, err = floor.NewEngine(floor.EngineOpts{Store: c.store, ToastTTL: opts.ToastTTL})
	if err != nil {
		return nil, fmt.Errorf("ops: %w", err)
	}
	c.dispatcher, err = dispatch.New(dispatch.Opts{Sender: m, Sink: c.sink})
	if err != nil {
		return nil, fmt.Errorf("ops: %w", err)
	}
	c.move, err = movetable.New(movetable.Opts{Tables: c.store, Mover: c.dispatcher, Sink: c.sink})
	if err != nil {
		return nil, fmt.Errorf("ops: %w", err)
	}
	return c, nil
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) conn.Timer { return time.AfterFunc(d, f) }

// Store returns the read-only floor mirror.
func (c *Client) Store() *floor.Store { return c.store }

// State returns the connection state.
func (c *Client) State() conn.State { return c.conn.State() }

// MoveSource returns the armed move source, if any.
func (c *Client) MoveSource() (int, bool) { return c.move.Armed() }

// Stats reports frames applied and frames dropped as undecodable.
func (c *Client) Stats() (frames, dropped int64) {
	return c.frames.Load(), c.dropped.Load()
}

// Run connects and processes frames and intents until ctx is cancelled or
// the session ends. A server-forced logout returns ErrLoggedOut; Logout
// and context cancellation return nil.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("ops: already running")
	}
	defer c.stop()
	// Cancelled before stop runs, so a Connect still in flight when the
	// loop exits either sees a done ctx or is torn down by stop.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := c.conn.Connect(ctx, c.token); err != nil {
			log.Printf("ops: initial connect: %v", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.work:
			fn()
			if c.exit {
				return c.exitErr
			}
		}
	}
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		if c.logoutTimer != nil {
			c.logoutTimer.Stop()
		}
		c.conn.Close()
		close(c.done)
	})
}

// post queues fn on the loop. It fails once the loop has stopped.
func (c *Client) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.work <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the loop and waits for its result.
func (c *Client) call(fn func() bool) bool {
	if !c.running.Load() {
		return false
	}
	res := make(chan bool, 1)
	if !c.post(func() { res <- fn() }) {
		return false
	}
	select {
	case r := <-res:
		return r
	case <-c.done:
		return false
	}
}

func (c *Client) onFrame(data []byte) {
	c.post(func() { c.handleFrame(data) })
}

func (c *Client) handleFrame(data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		c.dropped.Add(1)
		log.Printf("ops: dropping frame: %v", err)
		return
	}
	switch {
	case f.IsPing():
		c.conn.SendRaw(protocol.Pong)
		return
	case f.IsPong():
		return
	}

	c.frames.Add(1)
	for _, n := range c.engine.Apply(f.Event) {
		c.sink.Notify(n)
		if n.Kind == notice.KindForceLogout {
			c.scheduleLogout(n.Message)
		}
	}
}

func (c *Client) scheduleLogout(reason string) {
	if c.logoutTimer != nil {
		return
	}
	log.Printf("ops: server rejected session, logging out in %v", c.logoutDelay)
	c.logoutTimer = c.sched.AfterFunc(c.logoutDelay, func() {
		c.post(func() { c.endSession(fmt.Errorf("%w: %s", ErrLoggedOut, reason)) })
	})
}

// endSession closes the connection through the deliberate path and makes
// Run return err.
func (c *Client) endSession(err error) {
	c.move.Cancel()
	c.conn.Close()
	msg := "Signed out"
	if err != nil {
		msg = "Session expired. Please sign in again."
	}
	c.sink.Notify(notice.Notice{Kind: notice.KindLoggedOut, Level: notice.LevelInfo, Message: msg})
	c.exit, c.exitErr = true, err
}

// Logout ends the session without any reconnect attempt.
func (c *Client) Logout() bool {
	return c.call(func() bool {
		c.endSession(nil)
		return true
	})
}

// CloseTable dispatches close_table on the loop.
func (c *Client) CloseTable(id int) bool {
	return c.call(func() bool { return c.dispatcher.CloseTable(id) })
}

// DisableTable dispatches disable_table on the loop.
func (c *Client) DisableTable(id int) bool {
	return c.call(func() bool { return c.dispatcher.DisableTable(id) })
}

// EnableTable dispatches enable_table on the loop.
func (c *Client) EnableTable(id int) bool {
	return c.call(func() bool { return c.dispatcher.EnableTable(id) })
}

// RestoreTable dispatches restore_table on the loop.
func (c *Client) RestoreTable(id int) bool {
	return c.call(func() bool { return c.dispatcher.RestoreTable(id) })
}

// ResolveWaiterRequest dispatches resolve_waiter_request for id.
func (c *Client) ResolveWaiterRequest(id string) bool {
	return c.call(func() bool { return c.dispatcher.ResolveWaiterRequest(id) })
}

// RetryPOSPush dispatches retry_pos_push for orderID.
func (c *Client) RetryPOSPush(orderID int) bool {
	return c.call(func() bool { return c.dispatcher.RetryPOSPush(orderID) })
}

// ArmMove starts moving the party at tableID.
func (c *Client) ArmMove(tableID int) bool {
	return c.call(func() bool { return c.move.Arm(tableID) })
}

// SelectTable routes a table click through the move workflow. It reports
// whether the click was consumed by the workflow.
func (c *Client) SelectTable(tableID int) bool {
	return c.call(func() bool { return c.move.Select(tableID) })
}

// CancelMove abandons an armed move.
func (c *Client) CancelMove() {
	c.call(func() bool {
		c.move.Cancel()
		return true
	})
}
