// Package checkin resolves scanned QR tokens to reservations and drives
// the checked_in transition exactly once per reservation.
package checkin

import (
	"context"
	"crs/src/config"
	"crs/src/db"
	"crs/src/models"
	"crs/src/reservations"
	"crs/src/tokens"
	"crs/src/types"
	"errors"

	"gorm.io/gorm"
)

type Outcome string

const (
	// OutcomeAdmitted is a fresh admission: this scan won the transition.
	OutcomeAdmitted Outcome = "admitted"
	// OutcomeAdmissible means the reservation is confirmed and a scan
	// would admit it. Lookup reports it without transitioning.
	OutcomeAdmissible Outcome = "admissible"
	// OutcomeAlreadyCheckedIn is not an error to the scanning UI, but is
	// distinguishable so the door staff can say "already admitted".
	OutcomeAlreadyCheckedIn Outcome = "already_checked_in"
	OutcomeNotYetConfirmed  Outcome = "not_yet_confirmed"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeNotFound         Outcome = "not_found"
)

// ErrForbidden rejects scanners without the admin or organizer role.
var ErrForbidden = errors.New("scanner is not allowed to admit guests")

// Scanner is the identity performing a scan, as asserted by the
// authorization collaborator.
type Scanner struct {
	UserID string
	Role   types.Role
}

func (s Scanner) canScan() bool {
	return s.Role == types.ROLE_ADMIN || s.Role == types.ROLE_ORGANIZER
}

type Result struct {
	Outcome     Outcome             `json:"outcome"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
}

type Service struct {
	reservations *reservations.Service
}

func NewService(rs *reservations.Service) *Service {
	return &Service{reservations: rs}
}

// Lookup resolves a token to its reservation without changing state, for
// the scanner's preview card.
func (s *Service) Lookup(ctx context.Context, token string, scanner Scanner) (*Result, error) {
	if !scanner.canScan() {
		return nil, ErrForbidden
	}
	return s.resolve(ctx, token)
}

// ResolveAndCheckIn resolves a token and, when the reservation is
// confirmed, transitions it to checked_in. Under concurrent duplicate
// scans exactly one caller observes OutcomeAdmitted; the rest observe
// OutcomeAlreadyCheckedIn.
func (s *Service) ResolveAndCheckIn(ctx context.Context, token string, scanner Scanner) (*Result, error) {
	if !scanner.canScan() {
		return nil, ErrForbidden
	}
	result, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if result.Outcome != OutcomeAdmissible {
		return result, nil
	}
	r := result.Reservation
	current, err := s.reservations.CheckIn(ctx, r.ID, scanner.UserID)
	if err != nil {
		if errors.Is(err, reservations.ErrInvalidTransition) {
			// a concurrent scan or cancel got there first
			r.Status = current
			return &Result{Outcome: outcomeForStatus(current), Reservation: r}, nil
		}
		if errors.Is(err, reservations.ErrNotFound) {
			return &Result{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}
	r.Status = types.RESERVATION_CHECKED_IN
	return &Result{Outcome: OutcomeAdmitted, Reservation: r}, nil
}

// resolve looks up the token and classifies the reservation's current
// status.
func (s *Service) resolve(ctx context.Context, token string) (*Result, error) {
	cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()
	dbi := db.GetDb()
	var r models.Reservation
	err := dbi.WithContext(cctx).
		Where(&models.Reservation{QRToken: token}).
		Preload("Event").
		Preload("Schedule").
		First(&r).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Result{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}
	// Defense in depth: the index did the match, recheck in constant time.
	if !tokens.Equal(r.QRToken, token) {
		return &Result{Outcome: OutcomeNotFound}, nil
	}
	return &Result{Outcome: outcomeForStatus(r.Status), Reservation: &r}, nil
}

func outcomeForStatus(st types.ReservationStatus) Outcome {
	switch st {
	case types.RESERVATION_CONFIRMED:
		return OutcomeAdmissible
	case types.RESERVATION_CHECKED_IN:
		return OutcomeAlreadyCheckedIn
	case types.RESERVATION_PENDING:
		return OutcomeNotYetConfirmed
	case types.RESERVATION_CANCELLED:
		return OutcomeCancelled
	default:
		return OutcomeNotFound
	}
}
