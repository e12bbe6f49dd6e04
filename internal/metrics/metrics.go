// Package metrics computes the six amount-weighted trust metrics. Every
// function here is pure over the snapshot view; malformed inputs degrade a
// metric to skip status instead of raising.
package metrics

import (
	"math"
	"time"

	"trustcert/internal/config"
	"trustcert/pkg/domain"
	"trustcert/pkg/evidence"
)

// overAllocFactor is the tolerance above which an invoice counts as
// over-allocated: allocations may exceed the invoice amount by 0.1%.
const overAllocFactor = 1.001

// Compute evaluates all six metrics. Output order is fixed.
func Compute(view domain.SnapshotView, th config.Thresholds, now time.Time) []domain.TrustMetric {
	return []domain.TrustMetric{
		CashExplained(view, th),
		UnknownExposure(view, th),
		MissingFXExposure(view, th),
		DataFreshness(view, th, now),
		ReconciliationIntegrity(view, th),
		CalibrationCoverage(view, th),
	}
}

// CashExplained is reconciled absolute transaction amount over total
// absolute transaction amount, as a percentage. A snapshot with no cash
// movement at all has nothing unexplained and passes at 100.
func CashExplained(view domain.SnapshotView, th config.Thresholds) domain.TrustMetric {
	var totalAbs, reconciledAbs float64
	var refs []evidence.Ref
	for _, tx := range view.Transactions {
		a := math.Abs(tx.Amount)
		totalAbs += a
		if tx.Reconciled {
			reconciledAbs += a
		} else {
			refs = append(refs, txnRef(tx, "unreconciled bank transaction"))
		}
	}
	pct := 100.0
	if totalAbs > 0 {
		pct = round2(reconciledAbs / totalAbs * 100)
	}
	min := th.CashExplainedMinPct
	status := domain.MetricPass
	if pct < min {
		status = domain.MetricFail
	}
	return domain.TrustMetric{
		Name:               domain.MetricCashExplained,
		Value:              pct,
		Unit:               domain.UnitPercent,
		Status:             status,
		Threshold:          &min,
		ThresholdDirection: domain.ThresholdMin,
		AmountWeighted:     true,
		Evidence:           evidence.Rank(refs),
		Details: map[string]float64{
			"reconciled_abs": round2(reconciledAbs),
			"total_abs":      round2(totalAbs),
		},
	}
}

// UnknownExposure is the absolute amount sitting in unreconciled
// transactions. The threshold is relative: a share of total movement.
func UnknownExposure(view domain.SnapshotView, th config.Thresholds) domain.TrustMetric {
	var totalAbs, unknown float64
	var refs []evidence.Ref
	for _, tx := range view.Transactions {
		a := math.Abs(tx.Amount)
		totalAbs += a
		if !tx.Reconciled {
			unknown += a
			refs = append(refs, txnRef(tx, "unreconciled bank transaction"))
		}
	}
	maxAmt := round2(totalAbs * th.UnknownExposureMaxPct / 100)
	status := domain.MetricPass
	if unknown > maxAmt {
		status = domain.MetricFail
	}
	return domain.TrustMetric{
		Name:               domain.MetricUnknownExposure,
		Value:              round2(unknown),
		Unit:               domain.UnitCurrency,
		Status:             status,
		Threshold:          &maxAmt,
		ThresholdDirection: domain.ThresholdMax,
		AmountWeighted:     true,
		Evidence:           evidence.Rank(refs),
		Details: map[string]float64{
			"unknown_abs": round2(unknown),
			"total_abs":   round2(totalAbs),
		},
	}
}

// MissingFXExposure sums invoices denominated in a currency for which the
// snapshot's locked FX table holds no rate in either direction.
func MissingFXExposure(view domain.SnapshotView, th config.Thresholds) domain.TrustMetric {
	base := view.Snapshot.BaseCurrency
	pairs := make(map[string]bool, len(view.FXRates))
	for _, r := range view.FXRates {
		pairs[r.FromCurrency+"/"+r.ToCurrency] = true
	}
	var totalAbs, exposed float64
	var refs []evidence.Ref
	for _, inv := range view.Invoices {
		a := math.Abs(inv.Amount)
		totalAbs += a
		if inv.Currency == "" || inv.Currency == base {
			continue
		}
		if pairs[inv.Currency+"/"+base] || pairs[base+"/"+inv.Currency] {
			continue
		}
		exposed += a
		refs = append(refs, invoiceRef(inv, "no "+inv.Currency+"/"+base+" rate in snapshot FX table"))
	}
	maxAmt := round2(totalAbs * th.MissingFXExposureMaxPct / 100)
	status := domain.MetricPass
	if exposed > maxAmt {
		status = domain.MetricFail
	}
	return domain.TrustMetric{
		Name:               domain.MetricMissingFXExposure,
		Value:              round2(exposed),
		Unit:               domain.UnitCurrency,
		Status:             status,
		Threshold:          &maxAmt,
		ThresholdDirection: domain.ThresholdMax,
		AmountWeighted:     true,
		Evidence:           evidence.Rank(refs),
		Details: map[string]float64{
			"exposed_abs":       round2(exposed),
			"invoice_total_abs": round2(totalAbs),
		},
	}
}

// DataFreshness is the staleness of the slowest-moving data pointer: the
// snapshot itself, the latest invoice, or the latest bank transaction.
// Within the limit passes, within twice the limit warns, beyond that fails.
func DataFreshness(view domain.SnapshotView, th config.Thresholds, now time.Time) domain.TrustMetric {
	lag := now.Sub(view.Snapshot.CreatedAt)
	details := map[string]float64{
		"snapshot_age_hours": round2(lag.Hours()),
	}
	if t, ok := latestInvoiceDate(view.Invoices); ok {
		d := now.Sub(t)
		details["invoice_lag_hours"] = round2(d.Hours())
		if d > lag {
			lag = d
		}
	}
	if t, ok := latestTransactionDate(view.Transactions); ok {
		d := now.Sub(t)
		details["transaction_lag_hours"] = round2(d.Hours())
		if d > lag {
			lag = d
		}
	}
	hours := round2(lag.Hours())
	max := th.DataFreshnessMaxHours
	status := domain.MetricPass
	switch {
	case hours <= max:
	case hours <= 2*max:
		status = domain.MetricWarn
	default:
		status = domain.MetricFail
	}
	return domain.TrustMetric{
		Name:               domain.MetricDataFreshness,
		Value:              hours,
		Unit:               domain.UnitHours,
		Status:             status,
		Threshold:          &max,
		ThresholdDirection: domain.ThresholdMax,
		Details:            details,
	}
}

// ReconciliationIntegrity weighs allocated amount sitting on invoices whose
// allocations stay within tolerance against all allocated amount.
func ReconciliationIntegrity(view domain.SnapshotView, th config.Thresholds) domain.TrustMetric {
	allocByInvoice := make(map[int64]float64, len(view.Allocations))
	var totalAllocated float64
	for _, al := range view.Allocations {
		allocByInvoice[al.InvoiceID] += al.Amount
		totalAllocated += al.Amount
	}
	var validAllocated float64
	var refs []evidence.Ref
	for _, inv := range view.Invoices {
		sum, ok := allocByInvoice[inv.ID]
		if !ok {
			continue
		}
		if sum <= inv.Amount*overAllocFactor {
			validAllocated += sum
		} else {
			refs = append(refs, invoiceRef(inv, "over-allocated invoice"))
		}
	}
	pct := 100.0
	if totalAllocated > 0 {
		pct = round2(validAllocated / totalAllocated * 100)
	}
	min := th.ReconIntegrityMinPct
	status := domain.MetricPass
	if pct < min {
		status = domain.MetricFail
	}
	return domain.TrustMetric{
		Name:               domain.MetricReconIntegrity,
		Value:              pct,
		Unit:               domain.UnitPercent,
		Status:             status,
		Threshold:          &min,
		ThresholdDirection: domain.ThresholdMin,
		AmountWeighted:     true,
		Evidence:           evidence.Rank(refs),
		Details: map[string]float64{
			"valid_allocated": round2(validAllocated),
			"total_allocated": round2(totalAllocated),
		},
	}
}

// CalibrationCoverage is the mean per-segment P50 coverage. No calibration
// data, or any malformed record, degrades the metric to skip; coverage
// outside the target band warns rather than fails.
func CalibrationCoverage(view domain.SnapshotView, th config.Thresholds) domain.TrustMetric {
	m := domain.TrustMetric{
		Name: domain.MetricCalibrationCoverage,
		Unit: domain.UnitPercent,
		Details: map[string]float64{
			"coverage_min_pct": th.CalibrationCoverageMinPct,
			"coverage_max_pct": th.CalibrationCoverageMaxPct,
		},
	}
	if len(view.Calibration) == 0 {
		m.Status = domain.MetricSkip
		m.Details["segments"] = 0
		return m
	}
	var sum float64
	var valid, malformed int
	for _, s := range view.Calibration {
		if s.SampleSize < 0 {
			malformed++
			continue
		}
		sum += s.P50Coverage
		valid++
	}
	m.Details["segments"] = float64(valid)
	if malformed > 0 {
		m.Details["malformed_records"] = float64(malformed)
	}
	if valid == 0 {
		m.Status = domain.MetricSkip
		return m
	}
	m.Value = round2(sum / float64(valid))
	switch {
	case malformed > 0:
		m.Status = domain.MetricSkip
	case m.Value >= th.CalibrationCoverageMinPct && m.Value <= th.CalibrationCoverageMaxPct:
		m.Status = domain.MetricPass
	default:
		m.Status = domain.MetricWarn
	}
	return m
}

func txnRef(tx domain.BankTransaction, desc string) evidence.Ref {
	return evidence.Ref{
		Kind:        evidence.KindTransaction,
		RecordID:    tx.ID,
		Key:         tx.Reference,
		Amount:      evidence.Amount(tx.Amount),
		Currency:    tx.Currency,
		Description: desc,
	}
}

func invoiceRef(inv domain.Invoice, desc string) evidence.Ref {
	return evidence.Ref{
		Kind:        evidence.KindInvoice,
		RecordID:    inv.ID,
		Key:         inv.Customer,
		Amount:      evidence.Amount(inv.Amount),
		Currency:    inv.Currency,
		Description: desc,
	}
}

func latestInvoiceDate(invoices []domain.Invoice) (time.Time, bool) {
	var latest time.Time
	for _, inv := range invoices {
		if inv.DocumentDate.After(latest) {
			latest = inv.DocumentDate
		}
	}
	return latest, !latest.IsZero()
}

func latestTransactionDate(txns []domain.BankTransaction) (time.Time, bool) {
	var latest time.Time
	for _, tx := range txns {
		if tx.BookedAt.After(latest) {
			latest = tx.BookedAt
		}
	}
	return latest, !latest.IsZero()
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
