package ledger

import (
	"context"
	"crs/src/config"
	"crs/src/models"
	"errors"

	"gorm.io/gorm"
)

// GormLedger keeps the counters in slot_counters rows and admits through a
// single conditional UPDATE, never read-then-write from application code.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

func (l *GormLedger) Bind(tx *gorm.DB) Ledger {
	return &GormLedger{db: tx}
}

func (l *GormLedger) EnsureSlot(ctx context.Context, key SlotKey, capacity *uint) error {
	cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()
	var counter models.SlotCounter
	err := l.db.WithContext(cctx).
		Where(&models.SlotCounter{SlotKey: string(key)}).
		Attrs(&models.SlotCounter{Capacity: capacity}).
		FirstOrCreate(&counter).
		Error
	return wrapTransient(err)
}

func (l *GormLedger) TryReserve(ctx context.Context, key SlotKey, units uint) (*Admission, error) {
	cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()
	res := l.db.WithContext(cctx).
		Model(&models.SlotCounter{}).
		Where("slot_key = ? AND (capacity IS NULL OR admitted + ? <= capacity)", string(key), units).
		UpdateColumn("admitted", gorm.Expr("admitted + ?", units))
	if res.Error != nil {
		return nil, wrapTransient(res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := l.db.WithContext(cctx).
			Model(&models.SlotCounter{}).
			Where("slot_key = ?", string(key)).
			Count(&count).
			Error; err != nil {
			return nil, wrapTransient(err)
		}
		if count == 0 {
			return nil, ErrUnknownSlot
		}
		return nil, ErrCapacityExceeded
	}
	return &Admission{SlotKey: key, Units: units}, nil
}

func (l *GormLedger) Release(ctx context.Context, key SlotKey, units uint) error {
	cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()
	res := l.db.WithContext(cctx).
		Model(&models.SlotCounter{}).
		Where("slot_key = ?", string(key)).
		UpdateColumn("admitted", gorm.Expr("GREATEST(admitted - ?, 0)", units))
	if res.Error != nil {
		return wrapTransient(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUnknownSlot
	}
	return nil
}

func (l *GormLedger) Usage(ctx context.Context, key SlotKey) (uint, *uint, error) {
	cctx, cancel := context.WithTimeout(ctx, config.StoreTimeout)
	defer cancel()
	var counter models.SlotCounter
	err := l.db.WithContext(cctx).
		Where(&models.SlotCounter{SlotKey: string(key)}).
		First(&counter).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil, ErrUnknownSlot
		}
		return 0, nil, wrapTransient(err)
	}
	if counter.Capacity == nil {
		return counter.Admitted, nil, nil
	}
	var remaining uint
	if *counter.Capacity > counter.Admitted {
		remaining = *counter.Capacity - counter.Admitted
	}
	return counter.Admitted, &remaining, nil
}
