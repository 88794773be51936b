package models

import (
	"crs/src/types"
	"time"
)

// Schedule is a bookable occurrence of an event. Capacity, when set,
// overrides the event capacity for reservations targeting this slot.
type Schedule struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	EventID     uint      `gorm:"index" json:"event_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Capacity    *uint     `json:"capacity,omitempty"`

	Event Event `json:"event,omitempty"`

	types.Timestamps
}
