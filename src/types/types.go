package types

import (
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type EventStatus string

const (
	EVENT_DRAFT     EventStatus = "draft"
	EVENT_OPEN      EventStatus = "open"
	EVENT_CLOSED    EventStatus = "closed"
	EVENT_COMPLETED EventStatus = "completed"
	EVENT_ARCHIVED  EventStatus = "archived"
)

type ReservationStatus string

const (
	RESERVATION_PENDING    ReservationStatus = "pending"
	RESERVATION_CONFIRMED  ReservationStatus = "confirmed"
	RESERVATION_CHECKED_IN ReservationStatus = "checked_in"
	RESERVATION_CANCELLED  ReservationStatus = "cancelled"
)

type Role string

const (
	ROLE_ADMIN     Role = "admin"
	ROLE_ORGANIZER Role = "organizer"
	ROLE_USER      Role = "user"
)

// PartyType maps the booking form's choice to the capacity units a
// reservation consumes: a couple takes two seats under one token.
type PartyType string

const (
	PARTY_SINGLE PartyType = "single"
	PARTY_COUPLE PartyType = "couple"
)

func (p PartyType) Units() uint {
	if p == PARTY_COUPLE {
		return 2
	}
	return 1
}

type CreateEventRequestBody struct {
	Title                string  `json:"title" binding:"required"`
	Description          string  `json:"description,omitempty"`
	Location             string  `json:"location,omitempty" binding:"required"`
	StartsAt             string  `json:"starts_at" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	EndsAt               *string `json:"ends_at,omitempty" binding:"omitempty,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	Capacity             *uint   `json:"capacity,omitempty"`
	Public               bool    `json:"public,omitempty"`
	RequiresPaymentProof bool    `json:"requires_payment_proof,omitempty"`
	Publish              bool    `json:"publish,omitempty"`
}

type CreateScheduleRequestBody struct {
	ScheduledAt string `json:"scheduled_at" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	Capacity    *uint  `json:"capacity,omitempty"`
}

type CreateReservationRequestBody struct {
	EventID    uint   `json:"event" binding:"required"`
	ScheduleID *uint  `json:"schedule,omitempty"`
	FullName   string `json:"full_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	PartyType  string `json:"party_type" binding:"required,oneof=single couple"`
}

type ScanRequestBody struct {
	Code string `json:"code" binding:"required"`
}

type UpdateUserRoleRequestBody struct {
	Role string `json:"role" binding:"required,oneof=admin organizer user"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type TokenURIParams struct {
	Token string `uri:"token" binding:"required"`
}

type UserURIParams struct {
	UserID string `uri:"id" binding:"required,uuid"`
}
