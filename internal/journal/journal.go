// Package journal records floor activity to the database so a shift can be
// reviewed and summarised after the fact.
package journal

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/tableside/internal/models"
	"github.com/zulandar/tableside/internal/notice"
	"gorm.io/gorm"
)

// DefaultBuffer is the number of notices held while the writer catches up.
const DefaultBuffer = 512

// DefaultKinds are the notices worth keeping. Pure rendering hints such as
// alert sounds, toasts and queue_changed are not journaled.
var DefaultKinds = []notice.Kind{
	notice.KindTableOccupied,
	notice.KindWaiterRequest,
	notice.KindRequestResolved,
	notice.KindOrderAlert,
	notice.KindPendingOrder,
	notice.KindOrderCleared,
	notice.KindPOSRetry,
	notice.KindServerError,
	notice.KindForceLogout,
	notice.KindLoggedOut,
	notice.KindConnectionLost,
	notice.KindCommandDispatched,
	notice.KindDispatchDelayed,
}

// Journal is a notice.Sink that persists selected notices on its own
// goroutine, so the event loop never waits on the database.
type Journal struct {
	db    *gorm.DB
	kinds map[notice.Kind]bool
	in    chan notice.Notice
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

// Opts holds parameters for creating a Journal.
type Opts struct {
	DB     *gorm.DB
	Buffer int           // defaults to DefaultBuffer
	Kinds  []notice.Kind // defaults to DefaultKinds
}

// New creates a Journal and starts its writer.
func New(opts Opts) (*Journal, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("journal: db is required")
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = DefaultBuffer
	}
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	j := &Journal{
		db:    opts.DB,
		kinds: make(map[notice.Kind]bool, len(kinds)),
		in:    make(chan notice.Notice, buf),
		done:  make(chan struct{}),
	}
	for _, k := range kinds {
		j.kinds[k] = true
	}
	go j.writer()
	return j, nil
}

// Notify queues n for writing if its kind is journaled. When the buffer is
// full the notice is dropped and counted.
func (j *Journal) Notify(n notice.Notice) {
	if !j.kinds[n.Kind] {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.in <- n:
	default:
		j.dropped++
		log.Printf("journal: buffer full, dropped %s", n.Kind)
	}
}

// Dropped returns how many notices were lost to a full buffer.
func (j *Journal) Dropped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Close stops accepting notices and waits for queued ones to be written.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.in)
	j.mu.Unlock()
	<-j.done
	return nil
}

func (j *Journal) writer() {
	defer close(j.done)
	for n := range j.in {
		if _, err := Record(j.db, n); err != nil {
			log.Printf("journal: %v", err)
		}
	}
}

// Record writes one notice as an Activity row.
func Record(db *gorm.DB, n notice.Notice) (*models.Activity, error) {
	if n.Kind == "" {
		return nil, fmt.Errorf("journal: kind is required")
	}
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	row := models.Activity{
		Kind:      string(n.Kind),
		Level:     string(n.Level),
		Message:   n.Message,
		TableID:   n.TableID,
		EntryID:   n.EntryID,
		OrderID:   n.OrderID,
		Action:    n.Action,
		Code:      n.Code,
		CreatedAt: at,
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("journal: record %s: %w", n.Kind, err)
	}
	return &row, nil
}

// Recent returns up to limit activities, newest first.
func Recent(db *gorm.DB, limit int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Activity
	if err := db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return rows, nil
}

// ForTable returns the activities for one table, oldest first.
func ForTable(db *gorm.DB, tableID int, since time.Time) ([]models.Activity, error) {
	var rows []models.Activity
	if err := db.Where("table_id = ? AND created_at >= ?", tableID, since).
		Order("created_at ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: table %d: %w", tableID, err)
	}
	return rows, nil
}

// CountSince returns activity counts per kind since the given time.
func CountSince(db *gorm.DB, since time.Time) (map[notice.Kind]int64, error) {
	var rows []struct {
		Kind  string
		Total int64
	}
	if err := db.Model(&models.Activity{}).
		Select("kind, COUNT(*) AS total").
		Where("created_at >= ?", since).
		Group("kind").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("journal: count since: %w", err)
	}
	out := make(map[notice.Kind]int64, len(rows))
	for _, r := range rows {
		out[notice.Kind(r.Kind)] = r.Total
	}
	return out, nil
}

// Recent returns up to limit journaled activities, newest first.
func (j *Journal) Recent(limit int) ([]models.Activity, error) { return Recent(j.db, limit) }

// CountSince returns journaled activity counts per kind since the given time.
func (j *Journal) CountSince(since time.Time) (map[notice.Kind]int64, error) {
	return CountSince(j.db, since)
}
