package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event is a decoded server-to-client message. The set of implementations
// is closed: only types in this package satisfy it.
type Event interface {
	// EventType returns the wire discriminant.
	EventType() string
	validate() error
}

// Server event discriminants.
const (
	TypeTablesSnapshot        = "tables_snapshot"
	TypeTableUpdate           = "table_update"
	TypePendingWaiterRequests = "pending_waiter_requests"
	TypeWaiterRequest         = "waiter_request"
	TypeWaiterRequestResolved = "waiter_request_resolved"
	TypeOrderNotification     = "order_notification"
	TypeOrderAcknowledged     = "order_acknowledged"
	TypePendingOrders         = "pending_orders"
	TypePendingOrder          = "pending_order"
	TypeOrderRemoved          = "order_removed"
	TypePOSRetrySuccess       = "pos_retry_success"
	TypePOSRetryFailed        = "pos_retry_failed"
	TypeError                 = "error"
)

// CodeInvalidToken is the server error code that ends the staff session.
const CodeInvalidToken = "invalid_token"

// TablesSnapshot carries the full table collection.
type TablesSnapshot struct {
	Tables []Table `json:"tables"`
}

// TableUpdate carries one changed table.
type TableUpdate struct {
	Table Table `json:"table"`
}

// PendingWaiterRequests carries every outstanding waiter request, oldest first.
type PendingWaiterRequests struct {
	Requests []WaiterRequest `json:"requests"`
}

// WaiterRequestEvent announces a new waiter request.
type WaiterRequestEvent struct {
	Request WaiterRequest `json:"request"`
}

// WaiterRequestResolved reports that a waiter request was handled.
type WaiterRequestResolved struct {
	RequestID string `json:"request_id"`
}

// OrderNotification announces a newly placed order.
type OrderNotification struct {
	Order Order `json:"order"`
}

// OrderAcknowledged reports that an order alert was handled.
type OrderAcknowledged struct {
	OrderID int `json:"order_id"`
}

// PendingOrders carries a batch of orders awaiting confirmation.
type PendingOrders struct {
	Orders []Order `json:"orders"`
}

// PendingOrderEvent announces one order awaiting confirmation.
type PendingOrderEvent struct {
	Order Order `json:"order"`
}

// OrderRemoved reports that a pending order left the queue.
type OrderRemoved struct {
	OrderID int    `json:"order_id"`
	Reason  string `json:"reason"`
}

// POSRetrySuccess reports that a POS push retry went through.
type POSRetrySuccess struct {
	OrderID int `json:"order_id"`
}

// POSRetryFailed reports that a POS push retry failed again.
type POSRetryFailed struct {
	OrderID int    `json:"order_id"`
	Error   string `json:"error"`
}

// ServerError is an error reported by the backend.
type ServerError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func (TablesSnapshot) EventType() string        { return TypeTablesSnapshot }
func (TableUpdate) EventType() string           { return TypeTableUpdate }
func (PendingWaiterRequests) EventType() string { return TypePendingWaiterRequests }
func (WaiterRequestEvent) EventType() string    { return TypeWaiterRequest }
func (WaiterRequestResolved) EventType() string { return TypeWaiterRequestResolved }
func (OrderNotification) EventType() string     { return TypeOrderNotification }
func (OrderAcknowledged) EventType() string     { return TypeOrderAcknowledged }
func (PendingOrders) EventType() string         { return TypePendingOrders }
func (PendingOrderEvent) EventType() string     { return TypePendingOrder }
func (OrderRemoved) EventType() string          { return TypeOrderRemoved }
func (POSRetrySuccess) EventType() string       { return TypePOSRetrySuccess }
func (POSRetryFailed) EventType() string        { return TypePOSRetryFailed }
func (ServerError) EventType() string           { return TypeError }

func (e TablesSnapshot) validate() error {
	for i, t := range e.Tables {
		if err := t.validate(); err != nil {
			return fmt.Errorf("tables[%d]: %w", i, err)
		}
	}
	return nil
}

func (e TableUpdate) validate() error { return e.Table.validate() }

func (e PendingWaiterRequests) validate() error {
	for i, r := range e.Requests {
		if err := r.validate(); err != nil {
			return fmt.Errorf("requests[%d]: %w", i, err)
		}
	}
	return nil
}

func (e WaiterRequestEvent) validate() error { return e.Request.validate() }

func (e WaiterRequestResolved) validate() error {
	if e.RequestID == "" {
		return errors.New("request_id is required")
	}
	return nil
}

func (e OrderNotification) validate() error { return e.Order.validate() }
func (e OrderAcknowledged) validate() error { return positiveOrderID(e.OrderID) }

func (e PendingOrders) validate() error {
	for i, o := range e.Orders {
		if err := o.validate(); err != nil {
			return fmt.Errorf("orders[%d]: %w", i, err)
		}
	}
	return nil
}

func (e PendingOrderEvent) validate() error { return e.Order.validate() }
func (e OrderRemoved) validate() error      { return positiveOrderID(e.OrderID) }
func (e POSRetrySuccess) validate() error   { return positiveOrderID(e.OrderID) }
func (e POSRetryFailed) validate() error    { return positiveOrderID(e.OrderID) }
func (ServerError) validate() error         { return nil }

func positiveOrderID(id int) error {
	if id <= 0 {
		return fmt.Errorf("order_id %d is not positive", id)
	}
	return nil
}

// decoders maps each server discriminant to its payload decoder and the
// payload keys that must be present and non-null.
var decoders = map[string]func([]byte) (Event, error){
	TypeTablesSnapshot:        decodeAs[TablesSnapshot]("tables"),
	TypeTableUpdate:           decodeAs[TableUpdate]("table"),
	TypePendingWaiterRequests: decodeAs[PendingWaiterRequests]("requests"),
	TypeWaiterRequest:         decodeAs[WaiterRequestEvent]("request"),
	TypeWaiterRequestResolved: decodeAs[WaiterRequestResolved]("request_id"),
	TypeOrderNotification:     decodeAs[OrderNotification]("order"),
	TypeOrderAcknowledged:     decodeAs[OrderAcknowledged]("order_id"),
	TypePendingOrders:         decodeAs[PendingOrders]("orders"),
	TypePendingOrder:          decodeAs[PendingOrderEvent]("order"),
	TypeOrderRemoved:          decodeAs[OrderRemoved]("order_id"),
	TypePOSRetrySuccess:       decodeAs[POSRetrySuccess]("order_id"),
	TypePOSRetryFailed:        decodeAs[POSRetryFailed]("order_id"),
	TypeError:                 decodeAs[ServerError](),
}

func decodeAs[T Event](required ...string) func([]byte) (Event, error) {
	return func(data []byte) (Event, error) {
		if len(required) > 0 {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				return nil, err
			}
			for _, key := range required {
				raw, ok := fields[key]
				if !ok || string(raw) == "null" {
					return nil, fmt.Errorf("missing %s", key)
				}
			}
		}
		var ev T
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		if err := ev.validate(); err != nil {
			return nil, err
		}
		return ev, nil
	}
}
