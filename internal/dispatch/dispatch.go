// Package dispatch turns staff intents into outbound commands.
package dispatch

import (
	"fmt"
	"log"

	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
)

// Sender hands a command to the transport. It returns false when the
// transport is not ready; nothing is written in that case.
type Sender interface {
	Send(cmd protocol.Command) bool
}

// Dispatcher sends commands with at-most-once semantics. Unsent commands
// are reported, never queued for replay.
type Dispatcher struct {
	sender Sender
	sink   notice.Sink
}

// Opts holds parameters for creating a Dispatcher.
type Opts struct {
	Sender Sender
	Sink   notice.Sink // defaults to notice.Discard
}

// New creates a Dispatcher.
func New(opts Opts) (*Dispatcher, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("dispatch: sender is required")
	}
	sink := opts.Sink
	if sink == nil {
		sink = notice.Discard
	}
	return &Dispatcher{sender: opts.Sender, sink: sink}, nil
}

// Dispatch emits an optimistic processing notice, then sends cmd. When the
// transport refuses it, a dispatch_delayed notice asks staff to retry.
func (d *Dispatcher) Dispatch(cmd protocol.Command) bool {
	if cmd == nil {
		return false
	}
	action := cmd.Action()
	d.sink.Notify(notice.Notice{
		Kind:    notice.KindProcessing,
		Level:   notice.LevelInfo,
		Action:  action,
		Message: "Processing...",
	})

	if !d.sender.Send(cmd) {
		log.Printf("dispatch: %s not sent, connection not ready", action)
		d.sink.Notify(notice.Notice{
			Kind:    notice.KindDispatchDelayed,
			Level:   notice.LevelWarning,
			Action:  action,
			Message: "Connection lost. Please try again.",
		})
		return false
	}

	n := notice.Notice{Kind: notice.KindCommandDispatched, Action: action, Message: describe(cmd)}
	n.TableID, n.EntryID, n.OrderID = subject(cmd)
	d.sink.Notify(n)
	return true
}

// CloseTable sends close_table, ending the seated session.
func (d *Dispatcher) CloseTable(tableID int) bool {
	return d.Dispatch(protocol.CloseTable{TableID: tableID})
}

// DisableTable takes a table out of service.
func (d *Dispatcher) DisableTable(tableID int) bool {
	return d.Dispatch(protocol.DisableTable{TableID: tableID})
}

// EnableTable puts a disabled table back in service.
func (d *Dispatcher) EnableTable(tableID int) bool {
	return d.Dispatch(protocol.EnableTable{TableID: tableID})
}

// RestoreTable returns a table to service after cleaning.
func (d *Dispatcher) RestoreTable(tableID int) bool {
	return d.Dispatch(protocol.RestoreTable{TableID: tableID})
}

// MoveTable moves the party at fromID to toID.
func (d *Dispatcher) MoveTable(fromID, toID int) bool {
	return d.Dispatch(protocol.MoveTable{FromTableID: fromID, ToTableID: toID})
}

// ResolveWaiterRequest marks a queued waiter request as handled.
func (d *Dispatcher) ResolveWaiterRequest(requestID string) bool {
	return d.Dispatch(protocol.ResolveWaiterRequest{RequestID: requestID})
}

// RetryPOSPush asks the backend to push orderID to the POS again.
func (d *Dispatcher) RetryPOSPush(orderID int) bool {
	return d.Dispatch(protocol.RetryPOSPush{OrderID: orderID})
}

// subject extracts the ids a command refers to, for journaling.
func subject(cmd protocol.Command) (tableID int, entryID string, orderID int) {
	switch c := cmd.(type) {
	case protocol.CloseTable:
		return c.TableID, "", 0
	case protocol.DisableTable:
		return c.TableID, "", 0
	case protocol.EnableTable:
		return c.TableID, "", 0
	case protocol.RestoreTable:
		return c.TableID, "", 0
	case protocol.MoveTable:
		return c.FromTableID, "", 0
	case protocol.ResolveWaiterRequest:
		return 0, c.RequestID, 0
	case protocol.RetryPOSPush:
		return 0, "", c.OrderID
	}
	return 0, "", 0
}

func describe(cmd protocol.Command) string {
	switch c := cmd.(type) {
	case protocol.CloseTable:
		return fmt.Sprintf("Close table %d", c.TableID)
	case protocol.DisableTable:
		return fmt.Sprintf("Disable table %d", c.TableID)
	case protocol.EnableTable:
		return fmt.Sprintf("Enable table %d", c.TableID)
	case protocol.RestoreTable:
		return fmt.Sprintf("Restore table %d", c.TableID)
	case protocol.MoveTable:
		return fmt.Sprintf("Move table %d to %d", c.FromTableID, c.ToTableID)
	case protocol.ResolveWaiterRequest:
		return fmt.Sprintf("Resolve request %s", c.RequestID)
	case protocol.RetryPOSPush:
		return fmt.Sprintf("Retry POS push for order %d", c.OrderID)
	}
	return cmd.Action()
}
