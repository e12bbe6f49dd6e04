// Package invariants runs the six deterministic correctness checks. A check
// never raises; every failure carries the violating records as evidence.
package invariants

import (
	"fmt"
	"math"
	"sort"

	"trustcert/pkg/domain"
	"trustcert/pkg/evidence"
)

// amountTolerance is the rounding slack for currency comparisons.
const amountTolerance = 0.01

// overAllocFactor mirrors the reconciliation engine's tolerance: an
// invoice's allocations may exceed its amount by 0.1%.
const overAllocFactor = 1.001

// Compute evaluates all six checks. Output order is fixed.
func Compute(view domain.SnapshotView) []domain.InvariantCheck {
	return []domain.InvariantCheck{
		CashMath(view),
		DrilldownSums(view),
		ReconciliationConservation(view),
		SnapshotImmutability(view),
		Idempotency(view),
		NoSilentFX(view),
	}
}

// CashMath verifies opening balance plus net movement against the reported
// total balance. A snapshot reporting no balance has nothing to contradict.
func CashMath(view domain.SnapshotView) domain.InvariantCheck {
	check := domain.InvariantCheck{
		Name:     domain.InvariantCashMath,
		Severity: domain.SeverityCritical,
	}
	if view.Snapshot.ReportedBalance == nil {
		check.Passed = true
		check.Message = "no reported balance to contradict"
		return check
	}
	var movement float64
	for _, tx := range view.Transactions {
		movement += tx.Amount
	}
	expected := view.Snapshot.OpeningBalance + movement
	reported := *view.Snapshot.ReportedBalance
	delta := math.Abs(expected - reported)
	check.Details = map[string]float64{
		"opening_balance":  view.Snapshot.OpeningBalance,
		"net_movement":     round2(movement),
		"reported_balance": reported,
		"delta":            round2(delta),
	}
	if delta <= amountTolerance {
		check.Passed = true
		check.Message = "opening balance plus movement matches reported balance"
		return check
	}
	check.Message = fmt.Sprintf("opening %.2f plus movement %.2f differs from reported balance %.2f by %.2f",
		view.Snapshot.OpeningBalance, movement, reported, delta)
	check.Evidence = []evidence.Ref{{
		Kind:        evidence.KindComputedValue,
		RecordID:    view.Snapshot.ID,
		Key:         "cash_math_delta",
		Amount:      evidence.Amount(round2(delta)),
		Currency:    view.Snapshot.BaseCurrency,
		Description: "difference between derived and reported balance",
	}}
	return check
}

// DrilldownSums verifies that the invoice grand total equals both the
// per-customer and per-country subtotal sums. Subtotals are accumulated in
// sorted key order so the comparison is deterministic.
func DrilldownSums(view domain.SnapshotView) domain.InvariantCheck {
	check := domain.InvariantCheck{
		Name:     domain.InvariantDrilldownSums,
		Severity: domain.SeverityError,
	}
	var grand float64
	byCustomer := map[string]float64{}
	byCountry := map[string]float64{}
	for _, inv := range view.Invoices {
		grand += inv.Amount
		byCustomer[inv.Customer] += inv.Amount
		byCountry[inv.Country] += inv.Amount
	}
	customerTotal := sumSorted(byCustomer)
	countryTotal := sumSorted(byCountry)
	check.Details = map[string]float64{
		"grand_total":    round2(grand),
		"customer_total": round2(customerTotal),
		"country_total":  round2(countryTotal),
	}
	custDelta := math.Abs(grand - customerTotal)
	ctryDelta := math.Abs(grand - countryTotal)
	if custDelta <= amountTolerance && ctryDelta <= amountTolerance {
		check.Passed = true
		check.Message = "drilldown subtotals agree with the invoice grand total"
		return check
	}
	check.Message = fmt.Sprintf("grand total %.2f vs customer subtotals %.2f and country subtotals %.2f",
		grand, customerTotal, countryTotal)
	if custDelta > amountTolerance {
		check.Evidence = append(check.Evidence, evidence.Ref{
			Kind: evidence.KindComputedValue, RecordID: view.Snapshot.ID,
			Key: "customer_subtotal_delta", Amount: evidence.Amount(round2(custDelta)),
			Description: "per-customer subtotals diverge from grand total",
		})
	}
	if ctryDelta > amountTolerance {
		check.Evidence = append(check.Evidence, evidence.Ref{
			Kind: evidence.KindComputedValue, RecordID: view.Snapshot.ID,
			Key: "country_subtotal_delta", Amount: evidence.Amount(round2(ctryDelta)),
			Description: "per-country subtotals diverge from grand total",
		})
	}
	return check
}

// ReconciliationConservation holds when every allocated transaction's
// allocations sum to its absolute amount and no invoice is allocated beyond
// tolerance. One violation fails the check; every violation is collected.
func ReconciliationConservation(view domain.SnapshotView) domain.InvariantCheck {
	check := domain.InvariantCheck{
		Name:     domain.InvariantReconConservation,
		Severity: domain.SeverityCritical,
	}
	allocByTxn := make(map[int64]float64, len(view.Allocations))
	allocByInvoice := make(map[int64]float64, len(view.Allocations))
	for _, al := range view.Allocations {
		allocByTxn[al.TransactionID] += al.Amount
		allocByInvoice[al.InvoiceID] += al.Amount
	}
	var refs []evidence.Ref
	var txnViolations, invoiceViolations int
	for _, tx := range view.Transactions {
		sum, ok := allocByTxn[tx.ID]
		if !ok {
			continue
		}
		if math.Abs(sum-math.Abs(tx.Amount)) > amountTolerance {
			txnViolations++
			refs = append(refs, evidence.Ref{
				Kind: evidence.KindTransaction, RecordID: tx.ID, Key: tx.Reference,
				Amount: evidence.Amount(tx.Amount), Currency: tx.Currency,
				Description: fmt.Sprintf("allocations sum %.2f vs transaction amount %.2f", sum, math.Abs(tx.Amount)),
			})
		}
	}
	for _, inv := range view.Invoices {
		sum, ok := allocByInvoice[inv.ID]
		if !ok {
			continue
		}
		if sum > inv.Amount*overAllocFactor {
			invoiceViolations++
			refs = append(refs, evidence.Ref{
				Kind: evidence.KindInvoice, RecordID: inv.ID, Key: inv.Customer,
				Amount: evidence.Amount(inv.Amount), Currency: inv.Currency,
				Description: fmt.Sprintf("allocations sum %.2f exceeds invoice amount %.2f", sum, inv.Amount),
			})
		}
	}
	check.Details = map[string]float64{
		"transaction_violations": float64(txnViolations),
		"invoice_violations":     float64(invoiceViolations),
	}
	if len(refs) == 0 {
		check.Passed = true
		check.Message = "every allocation conserves its transaction and invoice amounts"
		return check
	}
	check.Message = fmt.Sprintf("%d transaction(s) and %d invoice(s) violate allocation conservation",
		txnViolations, invoiceViolations)
	check.Evidence = evidence.Rank(refs)
	return check
}

// SnapshotImmutability requires lock metadata if and only if the snapshot
// reports itself locked.
func SnapshotImmutability(view domain.SnapshotView) domain.InvariantCheck {
	check := domain.InvariantCheck{
		Name:     domain.InvariantImmutability,
		Severity: domain.SeverityCritical,
	}
	s := view.Snapshot
	if s.Status == domain.StatusLocked {
		if s.LockedAt != nil && s.LockedBy != nil {
			check.Passed = true
			check.Message = "locked snapshot carries lock timestamp and identity"
			return check
		}
		check.Message = "snapshot reports locked but lock timestamp or identity is missing"
	} else {
		if s.LockedAt == nil && s.LockedBy == nil {
			check.Passed = true
			check.Message = "unlocked snapshot carries no lock metadata"
			return check
		}
		check.Message = "snapshot carries lock metadata without reporting locked status"
	}
	check.Evidence = []evidence.Ref{{
		Kind: evidence.KindComputedValue, RecordID: s.ID,
		Key: "snapshot_status", Description: string(s.Status),
	}}
	return check
}

// Idempotency flags canonical dedup fingerprints shared by more than one
// record within the snapshot. Empty fingerprints are ignored.
func Idempotency(view domain.SnapshotView) domain.InvariantCheck {
	check := domain.InvariantCheck{
		Name:     domain.InvariantIdempotency,
		Severity: domain.SeverityError,
	}
	byFingerprint := map[string][]evidence.Ref{}
	for _, tx := range view.Transactions {
		if tx.Fingerprint == "" {
			continue
		}
		byFingerprint[tx.Fingerprint] = append(byFingerprint[tx.Fingerprint], evidence.Ref{
			Kind: evidence.KindTransaction, RecordID: tx.ID, Key: tx.Fingerprint,
			Amount: evidence.Amount(tx.Amount), Currency: tx.Currency,
			Description: "duplicate transaction fingerprint",
		})
	}
	for _, inv := range view.Invoices {
		if inv.Fingerprint == "" {
			continue
		}
		byFingerprint[inv.Fingerprint] = append(byFingerprint[inv.Fingerprint], evidence.Ref{
			Kind: evidence.KindInvoice, RecordID: inv.ID, Key: inv.Fingerprint,
			Amount: evidence.Amount(inv.Amount), Currency: inv.Currency,
			Description: "duplicate invoice fingerprint",
		})
	}
	var duplicated []string
	for fp, refs := range byFingerprint {
		if len(refs) > 1 {
			duplicated = append(duplicated, fp)
		}
	}
	sort.Strings(duplicated)
	check.Details = map[string]float64{"duplicate_fingerprints": float64(len(duplicated))}
	if len(duplicated) == 0 {
		check.Passed = true
		check.Message = "no dedup fingerprint is shared by more than one record"
		return check
	}
	var refs []evidence.Ref
	for _, fp := range duplicated {
		refs = append(refs, byFingerprint[fp]...)
	}
	check.Message = fmt.Sprintf("%d fingerprint(s) shared by multiple records", len(duplicated))
	check.Evidence = evidence.Rank(refs)
	return check
}

// NoSilentFX flags rates of exactly 1.0 between two different currencies,
// the signature of an uninitialized fallback rate. Self-pair rates are
// legitimate.
func NoSilentFX(view domain.SnapshotView) domain.InvariantCheck {
	check := domain.InvariantCheck{
		Name:     domain.InvariantNoSilentFX,
		Severity: domain.SeverityError,
	}
	var refs []evidence.Ref
	for _, r := range view.FXRates {
		if r.FromCurrency == r.ToCurrency || r.Rate != 1.0 {
			continue
		}
		refs = append(refs, evidence.Ref{
			Kind: evidence.KindFXRate, RecordID: r.ID,
			Key:         r.FromCurrency + "/" + r.ToCurrency,
			Description: "rate of exactly 1.0 between different currencies",
		})
	}
	check.Details = map[string]float64{"suspect_rates": float64(len(refs))}
	if len(refs) == 0 {
		check.Passed = true
		check.Message = "no cross-currency rate masquerades as 1.0"
		return check
	}
	check.Message = fmt.Sprintf("%d cross-currency rate(s) are exactly 1.0", len(refs))
	check.Evidence = evidence.Rank(refs)
	return check
}

func sumSorted(m map[string]float64) float64 {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sum float64
	for _, k := range keys {
		sum += m[k]
	}
	return sum
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
