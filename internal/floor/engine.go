package floor

import (
	"fmt"
	"log"
	"time"

	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
)

// DefaultToastTTL is how long a toast stays on screen when not configured.
const DefaultToastTTL = 3 * time.Second

// Engine applies server events to a Store and reports the resulting side
// effects as notices. It never renders and never performs I/O.
type Engine struct {
	store    *Store
	toastTTL time.Duration
	now      func() time.Time
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Store    *Store
	ToastTTL time.Duration    // defaults to DefaultToastTTL
	Now      func() time.Time // defaults to time.Now
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("floor: store is required")
	}
	ttl := opts.ToastTTL
	if ttl <= 0 {
		ttl = DefaultToastTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{store: opts.Store, toastTTL: ttl, now: now}, nil
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *Store { return e.store }

// Apply merges one event into the store under a single write lock and
// returns the notices it produced, in order. Unknown event types are
// logged and ignored.
func (e *Engine) Apply(ev protocol.Event) []notice.Notice {
	s := e.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []notice.Notice
	emit := func(n notice.Notice) {
		n.At = e.now()
		out = append(out, n)
	}

	switch ev := ev.(type) {
	case protocol.TablesSnapshot:
		s.replaceTables(ev.Tables)
		emit(notice.Notice{Kind: notice.KindTablesReplaced, Message: fmt.Sprintf("%d tables", len(ev.Tables))})

	case protocol.TableUpdate:
		prev, existed := s.putTable(ev.Table)
		emit(notice.Notice{Kind: notice.KindTableUpdated, TableID: ev.Table.ID, State: string(ev.Table.Status)})
		if existed && prev.Status == protocol.StatusOpen && ev.Table.Status == protocol.StatusOccupied {
			emit(notice.Notice{
				Kind:    notice.KindTableOccupied,
				Level:   notice.LevelInfo,
				TableID: ev.Table.ID,
				Message: fmt.Sprintf("Table %d is now occupied", ev.Table.Number),
			})
			emit(notice.Notice{Kind: notice.KindAlertSound, TableID: ev.Table.ID})
		}

	case protocol.PendingWaiterRequests:
		entries := make([]protocol.NotificationEntry, 0, len(ev.Requests))
		for _, r := range ev.Requests {
			entries = append(entries, protocol.WaiterEntry(r))
		}
		s.replaceQueue(entries)
		emit(notice.Notice{Kind: notice.KindQueueChanged})

	case protocol.WaiterRequestEvent:
		entry := protocol.WaiterEntry(ev.Request)
		if !s.appendEntry(entry) {
			log.Printf("floor: waiter request %s already queued, ignoring redelivery", entry.ID)
			return out
		}
		emit(notice.Notice{Kind: notice.KindQueueChanged})
		emit(notice.Notice{Kind: notice.KindWaiterRequest, EntryID: entry.ID, TableID: entry.TableID, Code: string(entry.RequestType), Message: entryText(entry)})
		emit(notice.Notice{Kind: notice.KindAlertSound, EntryID: entry.ID})
		emit(e.toast(notice.LevelWarning, entryText(entry)))

	case protocol.WaiterRequestResolved:
		if s.removeEntry(ev.RequestID) {
			emit(notice.Notice{Kind: notice.KindQueueChanged})
			emit(notice.Notice{Kind: notice.KindRequestResolved, EntryID: ev.RequestID})
		}

	case protocol.OrderNotification:
		entry := protocol.OrderAlertEntry(ev.Order)
		if s.appendEntry(entry) {
			emit(notice.Notice{Kind: notice.KindQueueChanged})
			emit(notice.Notice{Kind: notice.KindOrderAlert, EntryID: entry.ID, TableID: entry.TableID, OrderID: entry.OrderID, Message: entryText(entry)})
			emit(notice.Notice{Kind: notice.KindAlertSound, EntryID: entry.ID})
			emit(e.toast(notice.LevelInfo, entryText(entry)))
		}

	case protocol.PendingOrderEvent:
		entry := protocol.PendingOrderEntry(ev.Order)
		if s.appendEntry(entry) {
			emit(notice.Notice{Kind: notice.KindQueueChanged})
			emit(notice.Notice{Kind: notice.KindPendingOrder, EntryID: entry.ID, TableID: entry.TableID, OrderID: entry.OrderID, Message: entryText(entry)})
			emit(notice.Notice{Kind: notice.KindAlertSound, EntryID: entry.ID})
			emit(e.toast(notice.LevelInfo, entryText(entry)))
		}

	case protocol.PendingOrders:
		added := 0
		for _, o := range ev.Orders {
			entry := protocol.PendingOrderEntry(o)
			if s.appendEntry(entry) {
				added++
				emit(notice.Notice{Kind: notice.KindPendingOrder, EntryID: entry.ID, TableID: entry.TableID, OrderID: entry.OrderID, Message: entryText(entry)})
			}
		}
		if added > 0 {
			emit(notice.Notice{Kind: notice.KindQueueChanged})
		}

	case protocol.OrderAcknowledged:
		id := protocol.OrderAlertID(ev.OrderID)
		if s.removeEntry(id) {
			emit(notice.Notice{Kind: notice.KindQueueChanged})
			emit(notice.Notice{Kind: notice.KindOrderCleared, EntryID: id, OrderID: ev.OrderID})
		}

	case protocol.OrderRemoved:
		removed := false
		for _, id := range []string{protocol.PendingOrderID(ev.OrderID), protocol.OrderAlertID(ev.OrderID)} {
			if s.removeEntry(id) {
				removed = true
				emit(notice.Notice{Kind: notice.KindOrderCleared, EntryID: id, OrderID: ev.OrderID, Code: ev.Reason})
			}
		}
		if removed {
			emit(notice.Notice{Kind: notice.KindQueueChanged})
		}
		emit(e.toast(notice.LevelWarning, removalText(ev.OrderID, ev.Reason)))

	case protocol.POSRetrySuccess:
		msg := fmt.Sprintf("Order %d sent to POS", ev.OrderID)
		emit(notice.Notice{Kind: notice.KindPOSRetry, Level: notice.LevelSuccess, OrderID: ev.OrderID, Message: msg})
		emit(e.toast(notice.LevelSuccess, msg))

	case protocol.POSRetryFailed:
		msg := fmt.Sprintf("POS retry for order %d failed: %s", ev.OrderID, ev.Error)
		emit(notice.Notice{Kind: notice.KindPOSRetry, Level: notice.LevelError, OrderID: ev.OrderID, Message: msg})
		emit(e.toast(notice.LevelError, msg))

	case protocol.ServerError:
		emit(notice.Notice{Kind: notice.KindServerError, Level: notice.LevelError, Message: ev.Detail, Code: ev.Code})
		emit(e.toast(notice.LevelError, ev.Detail))
		if ev.Code == protocol.CodeInvalidToken {
			emit(notice.Notice{Kind: notice.KindForceLogout, Level: notice.LevelError, Code: ev.Code, Message: ev.Detail})
		}

	default:
		log.Printf("floor: ignoring unhandled event %T", ev)
	}
	return out
}

func (e *Engine) toast(level notice.Level, msg string) notice.Notice {
	return notice.Notice{Kind: notice.KindToast, Level: level, Message: msg, TTL: e.toastTTL}
}

// entryText renders the one-line description used for toasts and relays.
func entryText(entry protocol.NotificationEntry) string {
	switch entry.Kind {
	case protocol.EntryWaiterRequest:
		if entry.MemberName != "" {
			return fmt.Sprintf("%s: table %d (%s)", entry.Label(), entry.TableNumber, entry.MemberName)
		}
		return fmt.Sprintf("%s: table %d", entry.Label(), entry.TableNumber)
	case protocol.EntryPendingOrder:
		if entry.CustomerName != "" {
			return fmt.Sprintf("%s #%s: table %d (%s)", entry.Label(), entry.OrderNumber, entry.TableNumber, entry.CustomerName)
		}
	}
	return fmt.Sprintf("%s #%s: table %d", entry.Label(), entry.OrderNumber, entry.TableNumber)
}

// removalText maps an order_removed reason code to a staff-facing message.
func removalText(orderID int, reason string) string {
	switch reason {
	case "cancelled":
		return fmt.Sprintf("Order %d was cancelled by the guest", orderID)
	case "expired":
		return fmt.Sprintf("Order %d expired before confirmation", orderID)
	case "rejected":
		return fmt.Sprintf("Order %d was rejected", orderID)
	case "":
		return fmt.Sprintf("Order %d was removed", orderID)
	}
	return fmt.Sprintf("Order %d was removed: %s", orderID, reason)
}
