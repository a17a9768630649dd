package relay

import (
	"fmt"
	"strconv"

	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
)

// Color constants for message severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

func severityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Format turns an alert-class notice into a chat message. It returns false
// for notices that are not relayed.
func Format(n notice.Notice) (Message, bool) {
	var msg Message
	switch n.Kind {
	case notice.KindWaiterRequest:
		if n.Code == string(protocol.RequestAskForBill) {
			msg = Message{Title: "Bill requested", Severity: "warning"}
		} else {
			msg = Message{Title: "Waiter called", Severity: "warning"}
		}
	case notice.KindOrderAlert:
		msg = Message{Title: "New order", Severity: "info"}
	case notice.KindPendingOrder:
		msg = Message{Title: "Order awaiting confirmation", Severity: "warning"}
	case notice.KindTableOccupied:
		msg = Message{Title: fmt.Sprintf("Table %d seated", n.TableID), Severity: "info"}
	case notice.KindConnectionLost:
		msg = Message{Title: "Dashboard offline", Severity: "error"}
	case notice.KindPOSRetry:
		if n.Level != notice.LevelError {
			return Message{}, false
		}
		msg = Message{Title: fmt.Sprintf("POS push failed for order %d", n.OrderID), Severity: "error"}
	default:
		return Message{}, false
	}

	msg.Body = n.Message
	msg.Color = severityColor(msg.Severity)
	if n.TableID != 0 && n.Kind != notice.KindTableOccupied {
		msg.Fields = append(msg.Fields, Field{Name: "Table", Value: strconv.Itoa(n.TableID), Short: true})
	}
	if n.OrderID != 0 && n.Kind != notice.KindPOSRetry {
		msg.Fields = append(msg.Fields, Field{Name: "Order", Value: strconv.Itoa(n.OrderID), Short: true})
	}
	return msg, true
}

// deduplicated reports whether redeliveries of kind are collapsed. A
// table_occupied notice is emitted once per open to occupied transition,
// so two of them for one table are two seatings.
func deduplicated(kind notice.Kind) bool {
	return kind != notice.KindTableOccupied
}

// dedupKey identifies a redelivery of the same alert.
func dedupKey(n notice.Notice) string {
	switch {
	case n.EntryID != "":
		return string(n.Kind) + ":" + n.EntryID
	case n.OrderID != 0:
		return string(n.Kind) + ":order:" + strconv.Itoa(n.OrderID)
	case n.TableID != 0:
		return string(n.Kind) + ":table:" + strconv.Itoa(n.TableID)
	}
	return string(n.Kind)
}
