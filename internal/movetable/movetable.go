// Package movetable implements the two-step "move party to another table"
// selection: pick an occupied source, then pick an open destination.
package movetable

import (
	"fmt"
	"log"
	"sync"

	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
)

// StatusLookup reports the current status of a table, or "" if unknown.
type StatusLookup interface {
	Status(tableID int) protocol.TableStatus
}

// Mover sends the move_table command.
type Mover interface {
	MoveTable(fromID, toID int) bool
}

// Controller holds at most one armed move. The zero state is idle.
type Controller struct {
	tables StatusLookup
	mover  Mover
	sink   notice.Sink

	mu     sync.Mutex
	armed  bool
	source int
}

// Opts holds parameters for creating a Controller.
type Opts struct {
	Tables StatusLookup
	Mover  Mover
	Sink   notice.Sink // defaults to notice.Discard
}

// New creates an idle Controller.
func New(opts Opts) (*Controller, error) {
	if opts.Tables == nil {
		return nil, fmt.Errorf("movetable: table lookup is required")
	}
	if opts.Mover == nil {
		return nil, fmt.Errorf("movetable: mover is required")
	}
	sink := opts.Sink
	if sink == nil {
		sink = notice.Discard
	}
	return &Controller{tables: opts.Tables, mover: opts.Mover, sink: sink}, nil
}

// Armed returns the source table when a move is armed.
func (c *Controller) Armed() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source, c.armed
}

// Capturing reports whether table selections are currently routed to the
// move workflow instead of normal tile handling.
func (c *Controller) Capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.armed
}

// Arm starts a move from sourceID. Arming the already armed source
// cancels; arming a different source replaces the previous one. Only an
// occupied table can be a source.
func (c *Controller) Arm(sourceID int) bool {
	c.mu.Lock()
	if c.armed && c.source == sourceID {
		c.resetLocked()
		c.mu.Unlock()
		c.exited(sourceID, "Move cancelled")
		return false
	}
	if st := c.tables.Status(sourceID); st != protocol.StatusOccupied {
		c.mu.Unlock()
		c.reject(sourceID, fmt.Sprintf("Only an occupied table can be moved (table is %s)", describeStatus(st)))
		return false
	}
	prev, wasArmed := c.source, c.armed
	c.armed, c.source = true, sourceID
	c.mu.Unlock()

	if wasArmed {
		log.Printf("movetable: re-armed from table %d to %d", prev, sourceID)
	}
	c.sink.Notify(notice.Notice{
		Kind:    notice.KindMoveModeEntered,
		Level:   notice.LevelInfo,
		TableID: sourceID,
		Message: "Select an open table to move the party to",
	})
	return true
}

// Select routes a table click to the workflow. It returns false when no
// move is armed and the click should be handled normally.
//
// Re-selecting the source cancels. An open destination fires move_table
// and returns the workflow to idle whether or not the command was sent;
// the server's table updates decide whether the move happened. Any other
// destination is rejected and the move stays armed.
func (c *Controller) Select(tableID int) bool {
	c.mu.Lock()
	if !c.armed {
		c.mu.Unlock()
		return false
	}
	source := c.source
	if tableID == source {
		c.resetLocked()
		c.mu.Unlock()
		c.exited(source, "Move cancelled")
		return true
	}
	if st := c.tables.Status(tableID); st != protocol.StatusOpen {
		c.mu.Unlock()
		c.reject(tableID, fmt.Sprintf("Choose an open table (table is %s)", describeStatus(st)))
		return true
	}
	c.resetLocked()
	c.mu.Unlock()

	c.mover.MoveTable(source, tableID)
	c.exited(source, "")
	return true
}

// Cancel abandons an armed move. It is a no-op when idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.armed {
		c.mu.Unlock()
		return
	}
	source := c.source
	c.resetLocked()
	c.mu.Unlock()
	c.exited(source, "Move cancelled")
}

func (c *Controller) resetLocked() {
	c.armed = false
	c.source = 0
}

func (c *Controller) exited(source int, msg string) {
	c.sink.Notify(notice.Notice{Kind: notice.KindMoveModeExited, TableID: source, Message: msg})
}

func (c *Controller) reject(tableID int, msg string) {
	c.sink.Notify(notice.Notice{Kind: notice.KindMoveRejected, Level: notice.LevelWarning, TableID: tableID, Message: msg})
}

func describeStatus(st protocol.TableStatus) string {
	if st == "" {
		return "unknown"
	}
	return string(st)
}
