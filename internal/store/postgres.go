package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trustcert/pkg/domain"
)

// Postgres adapts the snapshot schema to the engine's ports. Queries order
// by id so repeated reads feed the engine identical slices.
type Postgres struct{ DB *pgxpool.Pool }

func NewPostgres(db *pgxpool.Pool) *Postgres { return &Postgres{DB: db} }

func (s *Postgres) SnapshotByID(ctx context.Context, id int64) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	var status string
	err := s.DB.QueryRow(ctx, `
SELECT id,name,status,created_at,locked_at,locked_by,entity_id,base_currency,opening_balance,reported_balance
FROM snapshots WHERE id=$1`, id).Scan(
		&snap.ID, &snap.Name, &status, &snap.CreatedAt, &snap.LockedAt, &snap.LockedBy,
		&snap.EntityID, &snap.BaseCurrency, &snap.OpeningBalance, &snap.ReportedBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.Status = domain.SnapshotStatus(status)
	return &snap, nil
}

func (s *Postgres) TransactionsForEntity(ctx context.Context, entityID int64) ([]domain.BankTransaction, error) {
	rows, err := s.DB.Query(ctx, `
SELECT t.id,t.account_id,a.entity_id,t.amount,t.currency,t.reconciled,t.counterparty,t.reference,t.fingerprint,t.booked_at
FROM bank_transactions t JOIN accounts a ON a.id = t.account_id
WHERE a.entity_id=$1 ORDER BY t.id`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.BankTransaction
	for rows.Next() {
		var tx domain.BankTransaction
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.EntityID, &tx.Amount, &tx.Currency,
			&tx.Reconciled, &tx.Counterparty, &tx.Reference, &tx.Fingerprint, &tx.BookedAt); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *Postgres) InvoicesForSnapshot(ctx context.Context, snapshotID int64) ([]domain.Invoice, error) {
	rows, err := s.DB.Query(ctx, `
SELECT id,snapshot_id,amount,currency,customer,country,document_date,due_date,fingerprint
FROM invoices WHERE snapshot_id=$1 ORDER BY id`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Invoice
	for rows.Next() {
		var inv domain.Invoice
		if err := rows.Scan(&inv.ID, &inv.SnapshotID, &inv.Amount, &inv.Currency, &inv.Customer,
			&inv.Country, &inv.DocumentDate, &inv.DueDate, &inv.Fingerprint); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *Postgres) AllocationsForSnapshot(ctx context.Context, snapshotID int64) ([]domain.Allocation, error) {
	rows, err := s.DB.Query(ctx, `
SELECT al.id,al.transaction_id,al.invoice_id,al.amount
FROM reconciliation_allocations al JOIN invoices i ON i.id = al.invoice_id
WHERE i.snapshot_id=$1 ORDER BY al.id`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Allocation
	for rows.Next() {
		var al domain.Allocation
		if err := rows.Scan(&al.ID, &al.TransactionID, &al.InvoiceID, &al.Amount); err != nil {
			return nil, err
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

func (s *Postgres) FXRatesForSnapshot(ctx context.Context, snapshotID int64) ([]domain.FXRate, error) {
	rows, err := s.DB.Query(ctx, `
SELECT id,snapshot_id,from_currency,to_currency,rate
FROM fx_rates WHERE snapshot_id=$1 ORDER BY id`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.FXRate
	for rows.Next() {
		var r domain.FXRate
		if err := rows.Scan(&r.ID, &r.SnapshotID, &r.FromCurrency, &r.ToCurrency, &r.Rate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Postgres) CalibrationStatsForSnapshot(ctx context.Context, snapshotID int64) ([]domain.CalibrationStat, error) {
	rows, err := s.DB.Query(ctx, `
SELECT id,segment,p50_coverage,calibration_error,sample_size
FROM calibration_stats WHERE snapshot_id=$1 ORDER BY id`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.CalibrationStat
	for rows.Next() {
		var st domain.CalibrationStat
		if err := rows.Scan(&st.ID, &st.Segment, &st.P50Coverage, &st.CalibrationError, &st.SampleSize); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// LockSnapshot performs the conditional transition and persists the report,
// override records and one audit entry in a single transaction. The status
// guard in the UPDATE is what makes two concurrent attempts resolve to one
// winner.
func (s *Postgres) LockSnapshot(ctx context.Context, req LockRequest) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
UPDATE snapshots SET status='LOCKED', locked_at=$2, locked_by=$3
WHERE id=$1 AND status <> 'LOCKED'`, req.SnapshotID, req.LockedAt, req.User)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM snapshots WHERE id=$1`, req.SnapshotID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSnapshotNotFound
		}
		if err != nil {
			return err
		}
		return ErrAlreadyLocked
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO trust_reports(snapshot_id,generated_at,report)
VALUES($1,$2,$3::jsonb)`, req.SnapshotID, req.LockedAt, string(req.ReportJSON)); err != nil {
		return err
	}
	for _, ov := range req.Overrides {
		if _, err := tx.Exec(ctx, `
INSERT INTO snapshot_lock_overrides(id,snapshot_id,gate_name,acknowledgment_text,acting_user,created_at,gate_value,gate_threshold)
VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
			ov.ID, ov.SnapshotID, ov.GateName, ov.AcknowledgmentText, ov.User, ov.CreatedAt, ov.GateValue, ov.GateThreshold); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO audit_log(id,snapshot_id,event,actor,created_at,payload)
VALUES($1,$2,'SNAPSHOT_LOCKED',$3,$4,$5::jsonb)`,
		"aud_"+uuid.NewString(), req.SnapshotID, req.User, req.LockedAt, auditPayload(req)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func auditPayload(req LockRequest) string {
	names := make([]string, 0, len(req.Overrides))
	for _, ov := range req.Overrides {
		names = append(names, ov.GateName)
	}
	b, _ := json.Marshal(map[string]any{"locked_by": req.User, "overridden_gates": names})
	return string(b)
}
