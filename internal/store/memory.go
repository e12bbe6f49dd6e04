package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"trustcert/pkg/domain"
)

// AuditEntry is one append-only audit-log row.
type AuditEntry struct {
	ID         string
	SnapshotID int64
	Event      string
	Actor      string
	CreatedAt  time.Time
}

// Memory is an in-process store. It backs the engine tests and mirrors the
// Postgres adapter's semantics, including the single-winner lock guard.
type Memory struct {
	mu         sync.Mutex
	Snapshots  map[int64]*domain.Snapshot
	Txns       map[int64][]domain.BankTransaction // keyed by entity id
	Invoices   map[int64][]domain.Invoice         // keyed by snapshot id
	Allocs     map[int64][]domain.Allocation
	Rates      map[int64][]domain.FXRate
	Stats      map[int64][]domain.CalibrationStat
	Reports    map[int64][]byte
	Overrides  map[int64][]domain.OverrideRecord
	AuditTrail []AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		Snapshots: map[int64]*domain.Snapshot{},
		Txns:      map[int64][]domain.BankTransaction{},
		Invoices:  map[int64][]domain.Invoice{},
		Allocs:    map[int64][]domain.Allocation{},
		Rates:     map[int64][]domain.FXRate{},
		Stats:     map[int64][]domain.CalibrationStat{},
		Reports:   map[int64][]byte{},
		Overrides: map[int64][]domain.OverrideRecord{},
	}
}

func (m *Memory) SnapshotByID(_ context.Context, id int64) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.Snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	cp := *snap
	return &cp, nil
}

func (m *Memory) TransactionsForEntity(_ context.Context, entityID int64) ([]domain.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BankTransaction(nil), m.Txns[entityID]...), nil
}

func (m *Memory) InvoicesForSnapshot(_ context.Context, snapshotID int64) ([]domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Invoice(nil), m.Invoices[snapshotID]...), nil
}

func (m *Memory) AllocationsForSnapshot(_ context.Context, snapshotID int64) ([]domain.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Allocation(nil), m.Allocs[snapshotID]...), nil
}

func (m *Memory) FXRatesForSnapshot(_ context.Context, snapshotID int64) ([]domain.FXRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.FXRate(nil), m.Rates[snapshotID]...), nil
}

func (m *Memory) CalibrationStatsForSnapshot(_ context.Context, snapshotID int64) ([]domain.CalibrationStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CalibrationStat(nil), m.Stats[snapshotID]...), nil
}

func (m *Memory) LockSnapshot(_ context.Context, req LockRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.Snapshots[req.SnapshotID]
	if !ok {
		return ErrSnapshotNotFound
	}
	if snap.Status == domain.StatusLocked {
		return ErrAlreadyLocked
	}
	lockedAt := req.LockedAt
	user := req.User
	snap.Status = domain.StatusLocked
	snap.LockedAt = &lockedAt
	snap.LockedBy = &user
	m.Reports[req.SnapshotID] = append([]byte(nil), req.ReportJSON...)
	m.Overrides[req.SnapshotID] = append(m.Overrides[req.SnapshotID], req.Overrides...)
	m.AuditTrail = append(m.AuditTrail, AuditEntry{
		ID:         "aud_" + uuid.NewString(),
		SnapshotID: req.SnapshotID,
		Event:      "SNAPSHOT_LOCKED",
		Actor:      user,
		CreatedAt:  lockedAt,
	})
	return nil
}
