// Package store defines the narrow ports the certification engine works
// against: a read-only snapshot view and the conditional lock transition.
package store

import (
	"context"
	"errors"
	"time"

	"trustcert/pkg/domain"
)

var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrAlreadyLocked    = errors.New("snapshot already locked")
)

// Reader is the read-only data view a certification run consumes. All other
// persistence belongs to external collaborators.
type Reader interface {
	SnapshotByID(ctx context.Context, id int64) (*domain.Snapshot, error)
	TransactionsForEntity(ctx context.Context, entityID int64) ([]domain.BankTransaction, error)
	InvoicesForSnapshot(ctx context.Context, snapshotID int64) ([]domain.Invoice, error)
	AllocationsForSnapshot(ctx context.Context, snapshotID int64) ([]domain.Allocation, error)
	FXRatesForSnapshot(ctx context.Context, snapshotID int64) ([]domain.FXRate, error)
	CalibrationStatsForSnapshot(ctx context.Context, snapshotID int64) ([]domain.CalibrationStat, error)
}

// LockRequest carries everything a successful lock persists atomically: the
// transition itself, the report that justified it, and the override trail.
type LockRequest struct {
	SnapshotID int64
	User       string
	LockedAt   time.Time
	ReportJSON []byte
	Overrides  []domain.OverrideRecord
}

// Locker performs the LOCKED transition. Implementations must guarantee
// exactly one concurrent caller wins; the loser gets ErrAlreadyLocked and
// nothing is written twice.
type Locker interface {
	LockSnapshot(ctx context.Context, req LockRequest) error
}
