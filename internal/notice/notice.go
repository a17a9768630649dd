// Package notice carries the side effects the sync client produces (alert
// sounds, toasts, connection status, logout requests) to whatever renders
// or records them. Producers never render; they only emit notices.
package notice

import (
	"sync"
	"time"
)

// Kind identifies a notice.
type Kind string

const (
	// Floor state.
	KindTablesReplaced Kind = "tables_replaced"
	KindTableUpdated   Kind = "table_updated"
	KindTableOccupied  Kind = "table_occupied"
	KindQueueChanged   Kind = "queue_changed"

	// Staff alerts.
	KindAlertSound      Kind = "alert_sound"
	KindToast           Kind = "toast"
	KindWaiterRequest   Kind = "waiter_request"
	KindRequestResolved Kind = "request_resolved"
	KindOrderAlert      Kind = "order_alert"
	KindPendingOrder    Kind = "pending_order"
	KindOrderCleared    Kind = "order_cleared"
	KindPOSRetry        Kind = "pos_retry"

	// Server faults.
	KindServerError Kind = "server_error"
	KindForceLogout Kind = "force_logout"
	KindLoggedOut   Kind = "logged_out"

	// Connection.
	KindConnectionStatus Kind = "connection_status"
	KindConnectionLost   Kind = "connection_lost"
	KindNotReady         Kind = "not_ready"

	// Staff intents.
	KindProcessing        Kind = "processing"
	KindDispatchDelayed   Kind = "dispatch_delayed"
	KindCommandDispatched Kind = "command_dispatched"

	// Move-table workflow.
	KindMoveModeEntered Kind = "move_mode_entered"
	KindMoveModeExited  Kind = "move_mode_exited"
	KindMoveRejected    Kind = "move_rejected"
)

// Level is the severity hint for a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one side effect. Only the fields relevant to Kind are set.
type Notice struct {
	Kind    Kind          `json:"kind"`
	Level   Level         `json:"level,omitempty"`
	Message string        `json:"message,omitempty"`
	TableID int           `json:"table_id,omitempty"`
	EntryID string        `json:"entry_id,omitempty"`
	OrderID int           `json:"order_id,omitempty"`
	Code    string        `json:"code,omitempty"`
	State   string        `json:"state,omitempty"`
	Action  string        `json:"action,omitempty"`
	TTL     time.Duration `json:"ttl,omitempty"`
	At      time.Time     `json:"at"`
}

// Sink receives notices. Notify must not block for long and must be safe
// for concurrent use: it is called from the client's event loop and from
// the connection's goroutines.
type Sink interface {
	Notify(Notice)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Notice)

// Notify calls f(n).
func (f SinkFunc) Notify(n Notice) { f(n) }

// Discard drops every notice.
var Discard Sink = SinkFunc(func(Notice) {})

// Fanout delivers each notice to every sink in order.
type Fanout []Sink

// Notify forwards n to all sinks, stamping At if unset.
func (f Fanout) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	for _, s := range f {
		if s != nil {
			s.Notify(n)
		}
	}
}

// Recorder is a Sink that keeps every notice, for tests and diagnostics.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify records n.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// All returns a copy of every recorded notice.
func (r *Recorder) All() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns how many notices of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Kind == k {
			n++
		}
	}
	return n
}

// Last returns the most recent notice of kind k.
func (r *Recorder) Last(k Kind) (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.notices) - 1; i >= 0; i-- {
		if r.notices[i].Kind == k {
			return r.notices[i], true
		}
	}
	return Notice{}, false
}

// Reset forgets all recorded notices.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}
