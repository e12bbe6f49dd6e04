package domain

import "time"

type SnapshotStatus string

const (
	StatusDraft          SnapshotStatus = "DRAFT"
	StatusReadyForReview SnapshotStatus = "READY_FOR_REVIEW"
	StatusLocked         SnapshotStatus = "LOCKED"
)

// Snapshot is a point-in-time view of an entity's financial data. Once
// locked it is immutable; the engine only ever writes the lock transition.
type Snapshot struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Status          SnapshotStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	LockedAt        *time.Time     `json:"locked_at,omitempty"`
	LockedBy        *string        `json:"locked_by,omitempty"`
	EntityID        int64          `json:"entity_id"`
	BaseCurrency    string         `json:"base_currency"`
	OpeningBalance  float64        `json:"opening_balance"`
	ReportedBalance *float64       `json:"reported_balance,omitempty"`
}

type BankTransaction struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	EntityID     int64     `json:"entity_id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Reconciled   bool      `json:"reconciled"`
	Counterparty string    `json:"counterparty,omitempty"`
	Reference    string    `json:"reference,omitempty"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
	BookedAt     time.Time `json:"booked_at"`
}

type Invoice struct {
	ID           int64     `json:"id"`
	SnapshotID   int64     `json:"snapshot_id"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Customer     string    `json:"customer"`
	Country      string    `json:"country"`
	DocumentDate time.Time `json:"document_date"`
	DueDate      time.Time `json:"due_date"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
}

// Allocation assigns part of a bank transaction to an invoice. Produced by
// the external matching service; this engine only validates it.
type Allocation struct {
	ID            int64   `json:"id"`
	TransactionID int64   `json:"transaction_id"`
	InvoiceID     int64   `json:"invoice_id"`
	Amount        float64 `json:"amount"`
}

type FXRate struct {
	ID           int64   `json:"id"`
	SnapshotID   int64   `json:"snapshot_id"`
	FromCurrency string  `json:"from_currency"`
	ToCurrency   string  `json:"to_currency"`
	Rate         float64 `json:"rate"`
}

type CalibrationStat struct {
	ID               int64   `json:"id"`
	Segment          string  `json:"segment"`
	P50Coverage      float64 `json:"p50_coverage"`
	CalibrationError float64 `json:"calibration_error"`
	SampleSize       int     `json:"sample_size"`
}

// SnapshotView is the read-only data a certification run works over.
// Metric and invariant evaluation never mutates it.
type SnapshotView struct {
	Snapshot     Snapshot
	Transactions []BankTransaction
	Invoices     []Invoice
	Allocations  []Allocation
	FXRates      []FXRate
	Calibration  []CalibrationStat
}
