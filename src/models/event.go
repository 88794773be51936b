package models

import (
	"crs/src/types"
	"time"
)

type Event struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Title       string     `json:"title"`
	Slug        string     `gorm:"uniqueIndex" json:"slug,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	// Capacity is the number of admissions the event accepts. Nil means
	// unlimited. Immutable once any live reservation references the event.
	Capacity             *uint             `json:"capacity,omitempty"`
	Public               bool              `json:"public"`
	RequiresPaymentProof bool              `json:"requires_payment_proof"`
	Status               types.EventStatus `gorm:"default:'draft'" json:"status,omitempty"`
	OrganizerID          string            `gorm:"index" json:"organizer,omitempty"`

	Schedules    []Schedule    `json:"schedules,omitempty"`
	Reservations []Reservation `json:"reservations,omitempty"`

	Stats *EventStats `gorm:"-" json:"stats,omitempty"`

	types.Timestamps
}

type EventStats struct {
	EventID   uint  `json:"event_id,omitempty"`
	Admitted  uint  `json:"admitted"`
	Remaining *uint `json:"remaining,omitempty"`
}
