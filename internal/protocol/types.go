// Package protocol defines the wire contract between the operations
// dashboard and the restaurant backend: the table and notification data
// model, the server event and client command sum types, and the frame
// codec that converts between them.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TableStatus is the floor status of a physical table.
type TableStatus string

const (
	StatusOpen     TableStatus = "open"
	StatusOccupied TableStatus = "occupied"
	StatusDisabled TableStatus = "disabled"
	StatusDirty    TableStatus = "dirty"
)

// Valid reports whether s is one of the known statuses.
func (s TableStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusOccupied, StatusDisabled, StatusDirty:
		return true
	}
	return false
}

// Session is the seated party's payload (members, cart, orders, totals).
// The client never edits it field by field; a table update replaces it.
type Session = json.RawMessage

// Table is one physical table on the floor.
type Table struct {
	ID      int         `json:"id"`
	Number  int         `json:"number"`
	Status  TableStatus `json:"status"`
	Session Session     `json:"session,omitempty"`
}

// Seated reports whether a party currently occupies the table.
func (t Table) Seated() bool {
	return len(t.Session) > 0 && string(t.Session) != "null"
}

func (t Table) validate() error {
	if t.ID <= 0 {
		return fmt.Errorf("table id %d is not positive", t.ID)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("table %d: unknown status %q", t.ID, t.Status)
	}
	return nil
}

// RequestType distinguishes the two kinds of waiter request.
type RequestType string

const (
	RequestCallWaiter RequestType = "call_waiter"
	RequestAskForBill RequestType = "ask_for_bill"
)

// WaiterRequest is a guest-initiated call for staff.
type WaiterRequest struct {
	ID          string      `json:"id"`
	RequestType RequestType `json:"request_type"`
	TableID     int         `json:"table_id"`
	TableNumber int         `json:"table_number"`
	MemberName  string      `json:"member_name"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (r WaiterRequest) validate() error {
	if r.ID == "" {
		return errors.New("request id is required")
	}
	return nil
}

// OrderItem is one line of a placed order.
type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// Order is the order payload carried by order_notification, pending_order
// and pending_orders events. Pending-only fields are empty on plain
// order notifications.
type Order struct {
	OrderID             int         `json:"order_id"`
	OrderNumber         string      `json:"order_number"`
	TableID             int         `json:"table_id"`
	TableNumber         int         `json:"table_number"`
	CreatedAt           time.Time   `json:"created_at"`
	Items               []OrderItem `json:"items"`
	CustomerName        string      `json:"customer_name,omitempty"`
	Total               float64     `json:"total,omitempty"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
}

func (o Order) validate() error { return positiveOrderID(o.OrderID) }

// EntryKind tags a NotificationEntry.
type EntryKind string

const (
	EntryWaiterRequest EntryKind = "waiter_request"
	EntryOrderAlert    EntryKind = "order_alert"
	EntryPendingOrder  EntryKind = "pending_order"
)

// NotificationEntry is one item of the staff notification queue. Kind
// selects which of the optional fields are meaningful.
type NotificationEntry struct {
	ID          string    `json:"id"`
	Kind        EntryKind `json:"kind"`
	TableID     int       `json:"table_id"`
	TableNumber int       `json:"table_number"`
	CreatedAt   time.Time `json:"created_at"`

	// Waiter requests.
	RequestType RequestType `json:"request_type,omitempty"`
	MemberName  string      `json:"member_name,omitempty"`

	// Order alerts and pending orders.
	OrderID     int         `json:"order_id,omitempty"`
	OrderNumber string      `json:"order_number,omitempty"`
	Items       []OrderItem `json:"items,omitempty"`

	// Pending orders only.
	CustomerName        string  `json:"customer_name,omitempty"`
	Total               float64 `json:"total,omitempty"`
	SpecialInstructions string  `json:"special_instructions,omitempty"`
}

// Label returns the human-readable type of the entry.
func (e NotificationEntry) Label() string {
	switch e.Kind {
	case EntryWaiterRequest:
		if e.RequestType == RequestAskForBill {
			return "Bill requested"
		}
		return "Call waiter"
	case EntryOrderAlert:
		return "New order"
	case EntryPendingOrder:
		return "Pending order"
	}
	return string(e.Kind)
}

// OrderAlertID is the derived queue id of an order alert.
func OrderAlertID(orderID int) string {
	return "order_" + strconv.Itoa(orderID)
}

// PendingOrderID is the derived queue id of a pending order.
func PendingOrderID(orderID int) string {
	return "pending_order_" + strconv.Itoa(orderID)
}

// WaiterEntry converts a waiter request into a queue entry.
func WaiterEntry(r WaiterRequest) NotificationEntry {
	return NotificationEntry{
		ID:          r.ID,
		Kind:        EntryWaiterRequest,
		TableID:     r.TableID,
		TableNumber: r.TableNumber,
		CreatedAt:   r.CreatedAt,
		RequestType: r.RequestType,
		MemberName:  r.MemberName,
	}
}

// OrderAlertEntry synthesizes the queue entry for a placed order.
func OrderAlertEntry(o Order) NotificationEntry {
	return NotificationEntry{
		ID:          OrderAlertID(o.OrderID),
		Kind:        EntryOrderAlert,
		TableID:     o.TableID,
		TableNumber: o.TableNumber,
		CreatedAt:   o.CreatedAt,
		OrderID:     o.OrderID,
		OrderNumber: o.OrderNumber,
		Items:       o.Items,
	}
}

// PendingOrderEntry synthesizes the queue entry for an order awaiting
// staff confirmation.
func PendingOrderEntry(o Order) NotificationEntry {
	e := OrderAlertEntry(o)
	e.ID = PendingOrderID(o.OrderID)
	e.Kind = EntryPendingOrder
	e.CustomerName = o.CustomerName
	e.Total = o.Total
	e.SpecialInstructions = o.SpecialInstructions
	return e
}
