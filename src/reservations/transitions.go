package reservations

import "crs/src/types"

// CanTransition reports whether a reservation may move between statuses.
// The lifecycle is monotonic: pending -> confirmed -> checked_in, with
// cancelled reachable from pending or confirmed only. checked_in is
// terminal; a guest is never un-admitted.
func CanTransition(from, to types.ReservationStatus) bool {
	switch from {
	case types.RESERVATION_PENDING:
		return to == types.RESERVATION_CONFIRMED || to == types.RESERVATION_CANCELLED
	case types.RESERVATION_CONFIRMED:
		return to == types.RESERVATION_CHECKED_IN || to == types.RESERVATION_CANCELLED
	default:
		return false
	}
}
