package models

import "crs/src/types"

// SlotCounter is the capacity ledger's backing row: one per event and one
// per schedule with its own capacity. Admitted only moves through the
// ledger's conditional updates, never direct writes.
type SlotCounter struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	SlotKey  string `gorm:"uniqueIndex" json:"slot_key"`
	Capacity *uint  `json:"capacity,omitempty"`
	Admitted uint   `json:"admitted"`

	types.Timestamps
}
