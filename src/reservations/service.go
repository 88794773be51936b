// Package reservations owns the reservation lifecycle. Every status change
// is a conditional update against the store: no write path reports success
// unless its predicate matched.
package reservations

import (
	"context"
	"crs/src/config"
	"crs/src/db"
	"crs/src/ledger"
	"crs/src/models"
	"crs/src/tokens"
	"crs/src/types"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("reservation not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrEventNotOpen      = errors.New("event is not accepting reservations")
	// ErrAlreadyReserved enforces the one-reservation-per-user-per-event
	// rule. Cancelled reservations do not count against it.
	ErrAlreadyReserved = errors.New("user already holds a reservation for this event")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type CreateInput struct {
	EventID    uint
	ScheduleID *uint
	UserID     string
	FullName   string
	Email      string
	Party      types.PartyType
}

type Service struct {
	ledger ledger.Ledger
}

func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// Create admits capacity and records the reservation in one transactional
// unit; on a full slot nothing is written. Events that require payment
// proof start pending with a deadline, everything else starts confirmed.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Reservation, error) {
	units := in.Party.Units()
	dbi := db.GetDb()
	var out models.Reservation
	err := dbi.Transaction(func(tx *gorm.DB) error {
		cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
		defer cancel()

		var event models.Event
		if err := tx.WithContext(cctx).
			Where(&models.Event{ID: in.EventID}).
			First(&event).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return wrapTransient(err)
		}
		if event.Status != types.EVENT_OPEN {
			return ErrEventNotOpen
		}
		if event.StartsAt != nil && time.Now().After(*event.StartsAt) {
			return ErrEventNotOpen
		}

		var live int64
		if err := tx.WithContext(cctx).
			Model(&models.Reservation{}).
			Where("user_id = ? AND event_id = ? AND status IN ?", in.UserID, event.ID, []types.ReservationStatus{
				types.RESERVATION_PENDING,
				types.RESERVATION_CONFIRMED,
				types.RESERVATION_CHECKED_IN,
			}).
			Count(&live).
			Error; err != nil {
			return wrapTransient(err)
		}
		if live > 0 {
			return ErrAlreadyReserved
		}

		key := ledger.EventKey(event.ID)
		if in.ScheduleID != nil {
			var sched models.Schedule
			if err := tx.WithContext(cctx).
				Where(&models.Schedule{ID: *in.ScheduleID, EventID: event.ID}).
				First(&sched).
				Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrScheduleNotFound
				}
				return wrapTransient(err)
			}
			if sched.Capacity != nil {
				key = ledger.ScheduleKey(sched.ID)
			}
		}

		if _, err := s.ledger.Bind(tx).TryReserve(cctx, key, units); err != nil {
			return err
		}

		token, err := tokens.Issue()
		if err != nil {
			return err
		}
		now := time.Now()
		status := types.RESERVATION_CONFIRMED
		var validUntil *time.Time
		if event.RequiresPaymentProof {
			status = types.RESERVATION_PENDING
			vu := now.Add(config.PendingReservationTTL)
			validUntil = &vu
		}
		r := models.Reservation{
			Reference:  uuid.New(),
			EventID:    event.ID,
			ScheduleID: in.ScheduleID,
			UserID:     in.UserID,
			FullName:   in.FullName,
			Email:      in.Email,
			PartySize:  units,
			Status:     status,
			QRToken:    token,
			SlotKey:    string(key),
			ReservedAt: now,
			ValidUntil: validUntil,
		}
		if err := tx.WithContext(cctx).Create(&r).Error; err != nil {
			return wrapTransient(err)
		}
		r.Event = event
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPayment moves pending -> confirmed. Idempotent when already
// confirmed; anything else fails with ErrInvalidTransition.
func (s *Service) ConfirmPayment(ctx context.Context, id uint) (*models.Reservation, error) {
	dbi := db.GetDb()
	var r models.Reservation
	err := dbi.Transaction(func(tx *gorm.DB) error {
		cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
		defer cancel()

		res := tx.WithContext(cctx).
			Model(&models.Reservation{}).
			Where("id = ? AND status = ?", id, types.RESERVATION_PENDING).
			UpdateColumns(map[string]any{
				"status":      types.RESERVATION_CONFIRMED,
				"valid_until": nil,
			})
		if res.Error != nil {
			return wrapTransient(res.Error)
		}
		if err := tx.WithContext(cctx).
			Where(&models.Reservation{ID: id}).
			Preload("Event").
			First(&r).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return wrapTransient(err)
		}
		if res.RowsAffected == 0 && r.Status != types.RESERVATION_CONFIRMED {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, types.RESERVATION_CONFIRMED)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Cancel moves pending|confirmed -> cancelled and releases the held
// capacity. Checked-in guests cannot be un-admitted.
func (s *Service) Cancel(ctx context.Context, id uint) error {
	dbi := db.GetDb()
	return dbi.Transaction(func(tx *gorm.DB) error {
		cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
		defer cancel()

		var r models.Reservation
		if err := tx.WithContext(cctx).
			Where(&models.Reservation{ID: id}).
			First(&r).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return wrapTransient(err)
		}
		if !CanTransition(r.Status, types.RESERVATION_CANCELLED) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, types.RESERVATION_CANCELLED)
		}
		res := tx.WithContext(cctx).
			Model(&models.Reservation{}).
			Where("id = ? AND status IN ?", id, []types.ReservationStatus{
				types.RESERVATION_PENDING,
				types.RESERVATION_CONFIRMED,
			}).
			UpdateColumn("status", types.RESERVATION_CANCELLED)
		if res.Error != nil {
			return wrapTransient(res.Error)
		}
		if res.RowsAffected == 0 {
			// lost a race against a concurrent check-in or cancel
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, types.RESERVATION_CANCELLED)
		}
		return s.ledger.Bind(tx).Release(cctx, ledger.SlotKey(r.SlotKey), r.PartySize)
	})
}

// CheckIn moves confirmed -> checked_in through a single conditional
// update, so only one of any number of concurrent scans wins. It returns
// the status observed after the attempt; on ErrInvalidTransition that is
// the status that blocked the transition.
func (s *Service) CheckIn(ctx context.Context, id uint, by string) (types.ReservationStatus, error) {
	dbi := db.GetDb()
	var current types.ReservationStatus
	err := dbi.Transaction(func(tx *gorm.DB) error {
		cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
		defer cancel()

		now := time.Now()
		res := tx.WithContext(cctx).
			Model(&models.Reservation{}).
			Where("id = ? AND status = ?", id, types.RESERVATION_CONFIRMED).
			UpdateColumns(map[string]any{
				"status":        types.RESERVATION_CHECKED_IN,
				"checked_in_at": now,
				"checked_in_by": by,
			})
		if res.Error != nil {
			return wrapTransient(res.Error)
		}
		if res.RowsAffected == 1 {
			current = types.RESERVATION_CHECKED_IN
			return nil
		}
		var r models.Reservation
		if err := tx.WithContext(cctx).
			Where(&models.Reservation{ID: id}).
			First(&r).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return wrapTransient(err)
		}
		current = r.Status
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, types.RESERVATION_CHECKED_IN)
	})
	return current, err
}

func wrapTransient(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ledger.ErrStoreUnavailable, err)
	}
	return err
}
