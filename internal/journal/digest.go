package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/tableside/internal/models"
	"github.com/zulandar/tableside/internal/notice"
	"github.com/zulandar/tableside/internal/protocol"
	"gorm.io/gorm"
)

// Digest summarises floor activity over a shift.
type Digest struct {
	PeriodStart    time.Time
	PeriodEnd      time.Time
	WaiterCalls    int64
	BillRequests   int64
	Resolved       int64
	Orders         int64
	PendingOrders  int64
	OrdersCleared  int64
	TablesSeated   int64
	Commands       int64
	Moves          int64
	POSFailures    int64
	ServerErrors   int64
	ConnectionLost int64
}

// Empty reports whether nothing happened during the period.
func (d *Digest) Empty() bool {
	return d.WaiterCalls == 0 && d.BillRequests == 0 && d.Orders == 0 &&
		d.PendingOrders == 0 && d.TablesSeated == 0 && d.Commands == 0 &&
		d.ServerErrors == 0 && d.ConnectionLost == 0
}

// BuildDigest queries activity recorded in [since, until).
func BuildDigest(db *gorm.DB, since, until time.Time) (*Digest, error) {
	d := &Digest{PeriodStart: since, PeriodEnd: until}

	var rows []struct {
		Kind  string
		Code  string
		Level string
		Total int64
	}
	if err := db.Model(&models.Activity{}).
		Select("kind, code, level, COUNT(*) AS total").
		Where("created_at >= ? AND created_at < ?", since, until).
		Group("kind, code, level").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: digest: %w", err)
	}

	for _, r := range rows {
		switch notice.Kind(r.Kind) {
		case notice.KindWaiterRequest:
			if r.Code == string(protocol.RequestAskForBill) {
				d.BillRequests += r.Total
			} else {
				d.WaiterCalls += r.Total
			}
		case notice.KindRequestResolved:
			d.Resolved += r.Total
		case notice.KindOrderAlert:
			d.Orders += r.Total
		case notice.KindPendingOrder:
			d.PendingOrders += r.Total
		case notice.KindOrderCleared:
			d.OrdersCleared += r.Total
		case notice.KindTableOccupied:
			d.TablesSeated += r.Total
		case notice.KindCommandDispatched:
			d.Commands += r.Total
		case notice.KindPOSRetry:
			if r.Level == string(notice.LevelError) {
				d.POSFailures += r.Total
			}
		case notice.KindServerError:
			d.ServerErrors += r.Total
		case notice.KindConnectionLost:
			d.ConnectionLost += r.Total
		}
	}

	var moves int64
	if err := db.Model(&models.Activity{}).
		Where("kind = ? AND action = ? AND created_at >= ? AND created_at < ?",
			string(notice.KindCommandDispatched), protocol.ActionMoveTable, since, until).
		Count(&moves).Error; err != nil {
		return nil, fmt.Errorf("journal: digest moves: %w", err)
	}
	d.Moves = moves

	return d, nil
}

// FormatDigest renders d as a title and a plain-text body for chat or a
// terminal.
func FormatDigest(d *Digest) (title, body string) {
	title = fmt.Sprintf("Shift digest %s to %s",
		d.PeriodStart.Format("Jan 2 15:04"), d.PeriodEnd.Format("Jan 2 15:04"))

	if d.Empty() {
		return title, "No floor activity recorded."
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Tables seated: %d", d.TablesSeated))
	lines = append(lines, fmt.Sprintf("Waiter calls: %d | Bill requests: %d | Resolved: %d",
		d.WaiterCalls, d.BillRequests, d.Resolved))
	lines = append(lines, fmt.Sprintf("Orders: %d | Awaiting confirmation: %d | Cleared: %d",
		d.Orders, d.PendingOrders, d.OrdersCleared))
	lines = append(lines, fmt.Sprintf("Staff commands: %d (moves: %d)", d.Commands, d.Moves))
	if d.POSFailures > 0 {
		lines = append(lines, fmt.Sprintf("POS push failures: %d", d.POSFailures))
	}
	if d.ServerErrors > 0 || d.ConnectionLost > 0 {
		lines = append(lines, fmt.Sprintf("Server errors: %d | Connection lost: %d",
			d.ServerErrors, d.ConnectionLost))
	}
	return title, strings.Join(lines, "\n")
}
