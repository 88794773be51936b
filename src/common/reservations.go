package common

import (
	"context"
	"crs/src/db"
	"crs/src/ledger"
	"crs/src/models"
	"crs/src/types"
	"log"
	"time"

	"gorm.io/gorm"
)

// SweepExpiredPending cancels payment-proof reservations whose deadline
// has passed and releases the capacity they held. Scheduled as a
// recurring job; each reservation is settled in its own transaction so a
// failure on one does not block the rest.
func SweepExpiredPending(led ledger.Ledger) {
	dbi := db.GetDb()
	var expired []models.Reservation
	err := dbi.
		Where("status = ? AND valid_until IS NOT NULL AND valid_until < ?", types.RESERVATION_PENDING, time.Now()).
		Limit(500).
		Find(&expired).
		Error
	if err != nil {
		log.Printf("[sweep] Error listing expired reservations: %s\n", err.Error())
		return
	}
	if len(expired) == 0 {
		return
	}
	log.Printf("[sweep] Found %d expired pending reservations\n", len(expired))
	for _, r := range expired {
		err := dbi.Transaction(func(tx *gorm.DB) error {
			res := tx.
				Model(&models.Reservation{}).
				Where("id = ? AND status = ?", r.ID, types.RESERVATION_PENDING).
				UpdateColumn("status", types.RESERVATION_CANCELLED)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// confirmed or cancelled since we listed it
				return nil
			}
			return led.Bind(tx).Release(context.Background(), ledger.SlotKey(r.SlotKey), r.PartySize)
		})
		if err != nil {
			log.Printf("[sweep] Error expiring reservation %d: %s\n", r.ID, err.Error())
		}
	}
}
