package models

import "time"

// Activity is one journaled floor event: a staff alert, a resolution, a
// command sent by staff, or a connection fault.
type Activity struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Kind      string    `gorm:"size:32;not null;index:idx_kind_created"`
	Level     string    `gorm:"size:16"`
	Message   string    `gorm:"type:text"`
	TableID   int       `gorm:"index"`
	EntryID   string    `gorm:"size:64;index"`
	OrderID   int       `gorm:"index"`
	Action    string    `gorm:"size:32"`
	Code      string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"index:idx_kind_created"`
}
