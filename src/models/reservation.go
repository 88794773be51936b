package models

import (
	"crs/src/types"
	"time"

	"github.com/google/uuid"
)

type Reservation struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Reference  uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"reference"`
	EventID    uint      `gorm:"index" json:"event_id"`
	ScheduleID *uint     `json:"schedule_id,omitempty"`
	UserID     string    `gorm:"index" json:"-"`
	FullName   string    `json:"full_name"`
	Email      string    `json:"email"`
	// PartySize is the capacity units this reservation holds (1 single,
	// 2 couple). Released on cancellation, never after check-in.
	PartySize uint                    `json:"party_size"`
	Status    types.ReservationStatus `gorm:"default:'pending'" json:"status"`
	// QRToken is the sole admission credential. Unique, immutable once
	// issued, and never reused across reservations.
	QRToken string `gorm:"uniqueIndex" json:"qr_token,omitempty"`
	// SlotKey names the counter this reservation was admitted against.
	SlotKey     string     `json:"-"`
	ReservedAt  time.Time  `json:"reserved_at"`
	ValidUntil  *time.Time `json:"valid_until,omitempty"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy *string    `json:"checked_in_by,omitempty"`

	Event    Event     `json:"event,omitempty"`
	Schedule *Schedule `json:"schedule,omitempty"`

	types.Timestamps
}
