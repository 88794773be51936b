package ledger

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// MemoryLedger serializes each slot's counter behind its own lock. It backs
// process-local deployments and the concurrency property tests.
type MemoryLedger struct {
	mu    sync.Mutex
	slots map[SlotKey]*memSlot
}

type memSlot struct {
	mu       sync.Mutex
	capacity *uint
	admitted uint
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{slots: make(map[SlotKey]*memSlot)}
}

// Bind is a no-op: the memory ledger has no transactional store.
func (l *MemoryLedger) Bind(_ *gorm.DB) Ledger {
	return l
}

func (l *MemoryLedger) slot(key SlotKey) *memSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slots[key]
}

func (l *MemoryLedger) EnsureSlot(_ context.Context, key SlotKey, capacity *uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.slots[key]; !ok {
		l.slots[key] = &memSlot{capacity: capacity}
	}
	return nil
}

func (l *MemoryLedger) TryReserve(_ context.Context, key SlotKey, units uint) (*Admission, error) {
	s := l.slot(key)
	if s == nil {
		return nil, ErrUnknownSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity != nil && s.admitted+units > *s.capacity {
		return nil, ErrCapacityExceeded
	}
	s.admitted += units
	return &Admission{SlotKey: key, Units: units}, nil
}

func (l *MemoryLedger) Release(_ context.Context, key SlotKey, units uint) error {
	s := l.slot(key)
	if s == nil {
		return ErrUnknownSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if units > s.admitted {
		s.admitted = 0
		return nil
	}
	s.admitted -= units
	return nil
}

func (l *MemoryLedger) Usage(_ context.Context, key SlotKey) (uint, *uint, error) {
	s := l.slot(key)
	if s == nil {
		return 0, nil, ErrUnknownSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capacity == nil {
		return s.admitted, nil, nil
	}
	var remaining uint
	if *s.capacity > s.admitted {
		remaining = *s.capacity - s.admitted
	}
	return s.admitted, &remaining, nil
}
