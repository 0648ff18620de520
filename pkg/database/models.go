package database

import (
	"time"

	"gorm.io/gorm"
)

// Transmission represents a DMR transmission record
type Transmission struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	RadioID     uint32    `gorm:"index;not null" json:"radio_id"`
	TalkgroupID uint32    `gorm:"index;not null" json:"talkgroup_id"`
	Timeslot    int       `gorm:"not null" json:"timeslot"`
	Duration    float64   `gorm:"not null" json:"duration"` // Duration in seconds
	StreamID    uint32    `gorm:"index" json:"stream_id"`
	StartTime   time.Time `gorm:"index;not null" json:"start_time"`
	EndTime     time.Time `gorm:"not null" json:"end_time"`
	RepeaterID  uint32    `gorm:"index" json:"repeater_id"`
	PacketCount int       `gorm:"default:0" json:"packet_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for Transmission
func (Transmission) TableName() string {
	return "transmissions"
}

// BeforeCreate hook to ensure StartTime and EndTime are set
func (t *Transmission) BeforeCreate(tx *gorm.DB) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.StartTime.IsZero() {
		t.StartTime = time.Now()
	}
	if t.EndTime.IsZero() {
		t.EndTime = time.Now()
	}
	return nil
}
