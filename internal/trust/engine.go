// Package trust is the certification engine: it derives evidence-backed
// trust reports from snapshot data and executes the gated lock transition.
package trust

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"trustcert/internal/config"
	"trustcert/internal/gates"
	"trustcert/internal/invariants"
	"trustcert/internal/metrics"
	"trustcert/internal/store"
	"trustcert/pkg/domain"
)

var ErrGateNotFound = errors.New("gate not found")

type Engine struct {
	reader   store.Reader
	locker   store.Locker
	defaults config.Thresholds
	now      func() time.Time
	log      *slog.Logger

	mu      sync.Mutex
	perSnap map[int64]*sync.Mutex
}

func New(r store.Reader, l store.Locker) *Engine {
	return &Engine{
		reader:   r,
		locker:   l,
		defaults: config.Defaults(),
		now:      time.Now,
		log:      slog.Default(),
		perSnap:  map[int64]*sync.Mutex{},
	}
}

// WithClock fixes the engine clock. Reports regenerated under the same
// clock over unchanged data are byte-identical.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) WithLogger(log *slog.Logger) *Engine {
	e.log = log
	return e
}

// GenerateReport derives a fresh trust report for the snapshot. Read-only
// and side-effect-free.
func (e *Engine) GenerateReport(ctx context.Context, snapshotID int64, ov config.Overrides) (*domain.TrustReport, error) {
	view, err := e.loadView(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return e.buildReport(view, ov), nil
}

// loadView reads the snapshot row, then fans out the five collection reads.
func (e *Engine) loadView(ctx context.Context, snapshotID int64) (*domain.SnapshotView, error) {
	snap, err := e.reader.SnapshotByID(ctx, snapshotID)
	if err != nil {
		if errors.Is(err, store.ErrSnapshotNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load snapshot %d: %w", snapshotID, err)
	}
	view := &domain.SnapshotView{Snapshot: *snap}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		view.Transactions, err = e.reader.TransactionsForEntity(ctx, snap.EntityID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Invoices, err = e.reader.InvoicesForSnapshot(ctx, snapshotID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Allocations, err = e.reader.AllocationsForSnapshot(ctx, snapshotID)
		return err
	})
	g.Go(func() error {
		var err error
		view.FXRates, err = e.reader.FXRatesForSnapshot(ctx, snapshotID)
		return err
	})
	g.Go(func() error {
		var err error
		view.Calibration, err = e.reader.CalibrationStatsForSnapshot(ctx, snapshotID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load snapshot %d view: %w", snapshotID, err)
	}
	return view, nil
}

// buildReport runs the metric and invariant engines concurrently; they are
// pure over the same immutable view, only assembly serializes.
func (e *Engine) buildReport(view *domain.SnapshotView, ov config.Overrides) *domain.TrustReport {
	th := e.defaults.Merge(ov)
	now := e.now().UTC()

	var ms []domain.TrustMetric
	var ivs []domain.InvariantCheck
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		ms = metrics.Compute(*view, th, now)
	}()
	go func() {
		defer wg.Done()
		ivs = invariants.Compute(*view)
	}()
	wg.Wait()

	gs := gates.Build(ms, ivs)
	eligible, blocked := gates.Eligibility(gs)
	return &domain.TrustReport{
		SnapshotID:     view.Snapshot.ID,
		SnapshotName:   view.Snapshot.Name,
		GeneratedAt:    now,
		Metrics:        ms,
		Invariants:     ivs,
		Gates:          gs,
		TrustScore:     gates.Score(ms, ivs),
		LockEligible:   eligible,
		BlockedReasons: blocked,
	}
}

// snapshotMutex serializes lock attempts per snapshot: regeneration and the
// conditional transition form one logical operation.
func (e *Engine) snapshotMutex(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.perSnap[id]
	if !ok {
		m = &sync.Mutex{}
		e.perSnap[id] = m
	}
	return m
}
