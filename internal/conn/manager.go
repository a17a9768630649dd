// Package conn owns the lifecycle of the single socket between the
// dashboard and the backend: connect, reconnect with exponential backoff,
// terminal failure, and deliberate teardown on logout.
package conn

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
)

const (
	// DefaultBaseInterval is the first reconnect delay.
	DefaultBaseInterval = 1000 * time.Millisecond
	// DefaultMaxInterval caps the doubling reconnect delay.
	DefaultMaxInterval = 30000 * time.Millisecond
	// DefaultMaxAttempts is the number of consecutive failures that ends
	// in the terminal failed state.
	DefaultMaxAttempts = 5
)

// State is the observable connection state.
type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Failed       State = "failed"
)

// Transport is one open socket. ReadMessage blocks until a frame arrives
// or the socket fails. WriteMessage is only ever called by one goroutine
// at a time.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Transport, error)
}

// Timer is a handle to a scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Manager keeps at most one live transport and reconnects it on failure.
type Manager struct {
	url      string
	dialer   Dialer
	sched    Scheduler
	base     time.Duration
	max      time.Duration
	maxTries int
	onFrame  func([]byte)
	sink     notice.Sink

	mu        sync.Mutex
	state     State
	gen       uint64 // bumped whenever the current transport or pending retry is superseded
	transport Transport
	retry     Timer
	attempts  int
	interval  time.Duration
	target    string
	ctx       context.Context
	cancel    context.CancelFunc
}

// ManagerOpts holds parameters for creating a Manager.
type ManagerOpts struct {
	URL          string
	Dialer       Dialer
	Scheduler    Scheduler     // defaults to time.AfterFunc
	BaseInterval time.Duration // defaults to DefaultBaseInterval
	MaxInterval  time.Duration // defaults to DefaultMaxInterval
	MaxAttempts  int           // defaults to DefaultMaxAttempts
	OnFrame      func([]byte)  // called for every inbound frame, in arrival order
	Sink         notice.Sink   // receives connection notices; defaults to notice.Discard
}

// NewManager creates a Manager in the disconnected state.
func NewManager(opts ManagerOpts) (*Manager, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("conn: url is required")
	}
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("conn: invalid url: %w", err)
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("conn: dialer is required")
	}
	m := &Manager{
		url:      opts.URL,
		dialer:   opts.Dialer,
		sched:    opts.Scheduler,
		base:     opts.BaseInterval,
		max:      opts.MaxInterval,
		maxTries: opts.MaxAttempts,
		onFrame:  opts.OnFrame,
		sink:     opts.Sink,
		state:    Disconnected,
	}
	if m.sched == nil {
		m.sched = clock{}
	}
	if m.base <= 0 {
		m.base = DefaultBaseInterval
	}
	if m.max <= 0 {
		m.max = DefaultMaxInterval
	}
	if m.max < m.base {
		m.max = m.base
	}
	if m.maxTries <= 0 {
		m.maxTries = DefaultMaxAttempts
	}
	if m.onFrame == nil {
		m.onFrame = func([]byte) {}
	}
	if m.sink == nil {
		m.sink = notice.Discard
	}
	m.interval = m.base
	return m, nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of consecutive failures since the last
// successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect closes any previous transport, cancels any pending retry and
// dials a new transport authenticated with token. A failed dial is
// returned and also fed into the reconnect loop. Connect resets the
// backoff, so it is also the way out of the failed state. A ctx that is
// already done is refused without touching the current state.
func (m *Manager) Connect(ctx context.Context, token string) error {
	target, err := withToken(m.url, token)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("conn: connect: %w", err)
	}
	m.stopLocked()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.target = target
	m.attempts = 0
	m.interval = m.base
	m.state = Connecting
	gen := m.gen
	m.mu.Unlock()

	m.report(Connecting)
	return m.dial(gen)
}

// Send encodes cmd and writes it to the open transport. It returns false,
// without writing anything, unless the manager is connected.
func (m *Manager) Send(cmd protocol.Command) bool {
	data, err := protocol.Encode(cmd)
	if err != nil {
		log.Printf("conn: %v", err)
		return false
	}
	return m.write(data, cmd.Action(), true)
}

// SendRaw writes a bare control string such as protocol.Pong. A refused
// control frame is only logged; staff never see a not_ready notice for it.
func (m *Manager) SendRaw(frame string) bool {
	return m.write([]byte(frame), frame, false)
}

// Close tears the connection down without scheduling a retry. It is the
// logout path and is safe to call in any state.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == Disconnected && m.transport == nil && m.retry == nil {
		m.mu.Unlock()
		return
	}
	m.stopLocked()
	m.state = Disconnected
	m.mu.Unlock()

	log.Printf("conn: closed")
	m.report(Disconnected)
}

// stopLocked drops the current generation and cancels the dial context.
func (m *Manager) stopLocked() {
	m.dropLocked()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// dropLocked invalidates the current generation: the pending retry is
// stopped and the live transport closed. Late frames, errors and timer
// callbacks carrying the old generation are ignored.
func (m *Manager) dropLocked() {
	m.gen++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			log.Printf("conn: close transport: %v", err)
		}
		m.transport = nil
	}
}

func (m *Manager) dial(gen uint64) error {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return nil
	}
	ctx, target := m.ctx, m.target
	m.mu.Unlock()

	t, err := m.dialer.Dial(ctx, target)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if t != nil {
			t.Close()
		}
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		m.fail(gen, err)
		return fmt.Errorf("conn: dial: %w", err)
	}
	m.transport = t
	m.attempts = 0
	m.interval = m.base
	m.state = Connected
	m.mu.Unlock()

	log.Printf("conn: connected to %s", redact(target))
	m.report(Connected)
	go m.readLoop(gen, t)
	return nil
}

func (m *Manager) readLoop(gen uint64, t Transport) {
	for {
		data, err := t.ReadMessage()
		if err != nil {
			m.fail(gen, err)
			return
		}
		if !m.current(gen) {
			return
		}
		m.onFrame(data)
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// fail records a transport fault for generation gen and either schedules
// the next attempt or enters the terminal failed state.
func (m *Manager) fail(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	if m.ctx != nil && m.ctx.Err() != nil {
		m.stopLocked()
		m.state = Disconnected
		m.mu.Unlock()
		m.report(Disconnected)
		return
	}
	m.dropLocked()
	next := m.gen
	m.attempts++
	if m.attempts >= m.maxTries {
		m.state = Failed
		attempts := m.attempts
		m.mu.Unlock()

		log.Printf("conn: giving up after %d attempts: %v", attempts, cause)
		m.report(Failed)
		m.sink.Notify(notice.Notice{
			Kind:    notice.KindConnectionLost,
			Level:   notice.LevelError,
			State:   string(Failed),
			Message: "Connection lost. Please reload the dashboard.",
		})
		return
	}

	delay := m.interval
	m.interval *= 2
	if m.interval > m.max {
		m.interval = m.max
	}
	m.state = Connecting
	m.retry = m.sched.AfterFunc(delay, func() { m.redial(next) })
	attempts := m.attempts
	m.mu.Unlock()

	log.Printf("conn: transport failed (%v), attempt %d of %d, retrying in %v", cause, attempts, m.maxTries, delay)
	m.report(Connecting)
}

func (m *Manager) redial(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.retry = nil
	m.mu.Unlock()
	_ = m.dial(gen)
}

func (m *Manager) write(data []byte, what string, notify bool) bool {
	m.mu.Lock()
	if m.state != Connected || m.transport == nil {
		state := m.state
		m.mu.Unlock()
		if !notify {
			log.Printf("conn: %s not sent, state %s", what, state)
			return false
		}
		m.sink.Notify(notice.Notice{
			Kind:    notice.KindNotReady,
			Level:   notice.LevelWarning,
			Action:  what,
			State:   string(state),
			Message: "Not connected. Please try again.",
		})
		return false
	}
	gen := m.gen
	err := m.transport.WriteMessage(data)
	m.mu.Unlock()

	if err != nil {
		log.Printf("conn: write %s: %v", what, err)
		m.fail(gen, err)
		return false
	}
	return true
}

func (m *Manager) report(s State) {
	m.sink.Notify(notice.Notice{Kind: notice.KindConnectionStatus, State: string(s)})
}

func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("conn: invalid url: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("conn: token is required")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact hides the token in log lines.
func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "xxx")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
