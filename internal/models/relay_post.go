package models

import "time"

// RelayPost records an alert forwarded to a chat channel.
type RelayPost struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Platform  string `gorm:"size:16;not null"`
	ChannelID string `gorm:"size:64;not null"`
	Key       string `gorm:"size:128;index"` // dedup key: kind plus entry or table
	Kind      string `gorm:"size:32"`
	Text      string `gorm:"type:text"`
	Failed    bool   `gorm:"default:false"`
	Error     string `gorm:"size:512"`
	CreatedAt time.Time
}
