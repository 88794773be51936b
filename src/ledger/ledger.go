// Package ledger tracks admitted capacity units per bookable slot and is
// the only component allowed to move the counters. Admission is an
// increment-and-check expressed as one atomic operation, so the
// at-most-capacity guarantee holds under any number of concurrent callers.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type SlotKey string

func EventKey(id uint) SlotKey {
	return SlotKey(fmt.Sprintf("event:%d", id))
}

func ScheduleKey(id uint) SlotKey {
	return SlotKey(fmt.Sprintf("schedule:%d", id))
}

// Admission is a successful grant of capacity units against a slot.
type Admission struct {
	SlotKey SlotKey
	Units   uint
}

var (
	// ErrCapacityExceeded is a normal business outcome, not a failure:
	// the slot is sold out for the requested units.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrUnknownSlot      = errors.New("unknown slot")
	// ErrStoreUnavailable marks transient store failures. The ledger never
	// retries; callers may, with bounded backoff.
	ErrStoreUnavailable = errors.New("store unavailable")
)

type Ledger interface {
	// EnsureSlot seeds the counter row for a slot. Idempotent.
	EnsureSlot(ctx context.Context, key SlotKey, capacity *uint) error
	// TryReserve admits units against the slot or reports
	// ErrCapacityExceeded. The increment-and-check is atomic.
	TryReserve(ctx context.Context, key SlotKey, units uint) (*Admission, error)
	// Release returns units to the slot, used for cancellations before
	// check-in. The counter never goes below zero.
	Release(ctx context.Context, key SlotKey, units uint) error
	// Usage reports admitted units and, for bounded slots, the remainder.
	Usage(ctx context.Context, key SlotKey) (admitted uint, remaining *uint, err error)
	// Bind returns a ledger participating in the given transaction, so an
	// admission and its reservation record commit or roll back together.
	// Implementations without a transactional store return themselves.
	Bind(tx *gorm.DB) Ledger
}

func wrapTransient(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
