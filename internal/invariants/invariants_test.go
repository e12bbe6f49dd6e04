package invariants

import (
	"testing"
	"time"

	"trustcert/pkg/domain"
	"trustcert/pkg/evidence"
)

func balance(v float64) *float64 { return &v }

func TestCashMathVacuouslyTrueWithoutReportedBalance(t *testing.T) {
	view := domain.SnapshotView{Snapshot: domain.Snapshot{ID: 1}}
	check := CashMath(view)
	if !check.Passed {
		t.Fatalf("nothing to contradict, expected pass: %+v", check)
	}
}

func TestCashMathHoldsWithinTolerance(t *testing.T) {
	view := domain.SnapshotView{
		Snapshot: domain.Snapshot{ID: 1, OpeningBalance: 100, ReportedBalance: balance(130.005)},
		Transactions: []domain.BankTransaction{
			{ID: 1, Amount: 50}, {ID: 2, Amount: -20},
		},
	}
	if check := CashMath(view); !check.Passed {
		t.Fatalf("within 0.01, expected pass: %s", check.Message)
	}
}

func TestCashMathFailsWithEvidence(t *testing.T) {
	view := domain.SnapshotView{
		Snapshot:     domain.Snapshot{ID: 1, OpeningBalance: 100, ReportedBalance: balance(200)},
		Transactions: []domain.BankTransaction{{ID: 1, Amount: 30}},
	}
	check := CashMath(view)
	if check.Passed {
		t.Fatal("expected failure")
	}
	if check.Severity != domain.SeverityCritical {
		t.Fatalf("cash math is critical, got %s", check.Severity)
	}
	if len(check.Evidence) != 1 || check.Evidence[0].Kind != evidence.KindComputedValue {
		t.Fatalf("expected computed-value evidence, got %+v", check.Evidence)
	}
	if check.Details["delta"] != 70 {
		t.Fatalf("expected delta 70, got %v", check.Details)
	}
}

func TestDrilldownSumsAgree(t *testing.T) {
	view := domain.SnapshotView{Invoices: []domain.Invoice{
		{ID: 1, Amount: 100, Customer: "Acme", Country: "DE"},
		{ID: 2, Amount: 250, Customer: "Beta", Country: "FR"},
		{ID: 3, Amount: 75, Customer: "Acme", Country: "FR"},
	}}
	check := DrilldownSums(view)
	if !check.Passed {
		t.Fatalf("expected pass: %s", check.Message)
	}
	if check.Details["grand_total"] != 425 {
		t.Fatalf("expected grand total 425, got %v", check.Details)
	}
}

func TestConservationPasses(t *testing.T) {
	view := domain.SnapshotView{
		Transactions: []domain.BankTransaction{
			{ID: 1, Amount: -100, Reconciled: true},
			{ID: 2, Amount: 40, Reconciled: false}, // unallocated, judged by the metrics instead
		},
		Invoices: []domain.Invoice{{ID: 10, Amount: 100}},
		Allocations: []domain.Allocation{
			{ID: 1, TransactionID: 1, InvoiceID: 10, Amount: 60},
			{ID: 2, TransactionID: 1, InvoiceID: 10, Amount: 40},
		},
	}
	if check := ReconciliationConservation(view); !check.Passed {
		t.Fatalf("expected pass: %s", check.Message)
	}
}

func TestConservationTransactionHalf(t *testing.T) {
	view := domain.SnapshotView{
		Transactions: []domain.BankTransaction{{ID: 1, Amount: 100, Reference: "t-1"}},
		Invoices:     []domain.Invoice{{ID: 10, Amount: 100}},
		Allocations:  []domain.Allocation{{ID: 1, TransactionID: 1, InvoiceID: 10, Amount: 90}},
	}
	check := ReconciliationConservation(view)
	if check.Passed {
		t.Fatal("allocation sum 90 vs amount 100 must fail")
	}
	if check.Details["transaction_violations"] != 1 || check.Details["invoice_violations"] != 0 {
		t.Fatalf("unexpected violation counts %v", check.Details)
	}
	if len(check.Evidence) != 1 || check.Evidence[0].Kind != evidence.KindTransaction {
		t.Fatalf("expected the violating transaction in evidence, got %+v", check.Evidence)
	}
}

func TestConservationInvoiceHalf(t *testing.T) {
	view := domain.SnapshotView{
		Transactions: []domain.BankTransaction{
			{ID: 1, Amount: 80}, {ID: 2, Amount: 70},
		},
		Invoices: []domain.Invoice{{ID: 10, Amount: 100, Customer: "Acme"}},
		Allocations: []domain.Allocation{
			{ID: 1, TransactionID: 1, InvoiceID: 10, Amount: 80},
			{ID: 2, TransactionID: 2, InvoiceID: 10, Amount: 70},
		},
	}
	check := ReconciliationConservation(view)
	if check.Passed {
		t.Fatal("150 allocated against a 100 invoice must fail")
	}
	if check.Details["invoice_violations"] != 1 {
		t.Fatalf("unexpected counts %v", check.Details)
	}
	found := false
	for _, ref := range check.Evidence {
		if ref.Kind == evidence.KindInvoice && ref.RecordID == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("violating invoice missing from evidence: %+v", check.Evidence)
	}
}

func TestConservationCollectsAllViolations(t *testing.T) {
	view := domain.SnapshotView{
		Transactions: []domain.BankTransaction{
			{ID: 1, Amount: 100}, {ID: 2, Amount: 200},
		},
		Invoices: []domain.Invoice{{ID: 10, Amount: 50}},
		Allocations: []domain.Allocation{
			{ID: 1, TransactionID: 1, InvoiceID: 10, Amount: 30},
			{ID: 2, TransactionID: 2, InvoiceID: 10, Amount: 90},
		},
	}
	check := ReconciliationConservation(view)
	if check.Passed {
		t.Fatal("expected failure")
	}
	// two short-allocated transactions plus one over-allocated invoice
	if len(check.Evidence) != 3 {
		t.Fatalf("every violation must be collected, got %d refs", len(check.Evidence))
	}
}

func TestSnapshotImmutability(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	user := "cfo@example.com"
	cases := []struct {
		name string
		snap domain.Snapshot
		want bool
	}{
		{"locked with metadata", domain.Snapshot{Status: domain.StatusLocked, LockedAt: &now, LockedBy: &user}, true},
		{"locked missing identity", domain.Snapshot{Status: domain.StatusLocked, LockedAt: &now}, false},
		{"locked missing timestamp", domain.Snapshot{Status: domain.StatusLocked, LockedBy: &user}, false},
		{"draft clean", domain.Snapshot{Status: domain.StatusDraft}, true},
		{"draft with stray lock metadata", domain.Snapshot{Status: domain.StatusDraft, LockedAt: &now}, false},
	}
	for _, c := range cases {
		check := SnapshotImmutability(domain.SnapshotView{Snapshot: c.snap})
		if check.Passed != c.want {
			t.Fatalf("%s: expected passed=%v, got %+v", c.name, c.want, check)
		}
	}
}

func TestIdempotencyFlagsDuplicates(t *testing.T) {
	view := domain.SnapshotView{
		Transactions: []domain.BankTransaction{
			{ID: 1, Amount: 10, Fingerprint: "fp-a"},
			{ID: 2, Amount: 10, Fingerprint: "fp-a"},
			{ID: 3, Amount: 20, Fingerprint: "fp-b"},
		},
		Invoices: []domain.Invoice{{ID: 10, Amount: 5, Fingerprint: "fp-c"}},
	}
	check := Idempotency(view)
	if check.Passed {
		t.Fatal("shared fingerprint must fail")
	}
	if len(check.Evidence) != 2 {
		t.Fatalf("both holders of fp-a belong in evidence, got %+v", check.Evidence)
	}
}

func TestIdempotencyIgnoresEmptyFingerprints(t *testing.T) {
	view := domain.SnapshotView{
		Transactions: []domain.BankTransaction{{ID: 1}, {ID: 2}},
	}
	if check := Idempotency(view); !check.Passed {
		t.Fatalf("empty fingerprints never collide: %+v", check)
	}
}

func TestNoSilentFX(t *testing.T) {
	view := domain.SnapshotView{FXRates: []domain.FXRate{
		{ID: 1, FromCurrency: "EUR", ToCurrency: "EUR", Rate: 1.0}, // legitimate self-pair
		{ID: 2, FromCurrency: "GBP", ToCurrency: "EUR", Rate: 1.0}, // fallback masquerading
		{ID: 3, FromCurrency: "USD", ToCurrency: "EUR", Rate: 0.92},
	}}
	check := NoSilentFX(view)
	if check.Passed {
		t.Fatal("cross-currency 1.0 rate must fail")
	}
	if len(check.Evidence) != 1 || check.Evidence[0].RecordID != 2 {
		t.Fatalf("expected only the GBP/EUR rate flagged, got %+v", check.Evidence)
	}
	if check.Severity != domain.SeverityError {
		t.Fatalf("silent FX is error severity, got %s", check.Severity)
	}
}

func TestComputeOrderIsFixed(t *testing.T) {
	checks := Compute(domain.SnapshotView{})
	names := []string{
		domain.InvariantCashMath,
		domain.InvariantDrilldownSums,
		domain.InvariantReconConservation,
		domain.InvariantImmutability,
		domain.InvariantIdempotency,
		domain.InvariantNoSilentFX,
	}
	if len(checks) != len(names) {
		t.Fatalf("expected %d checks, got %d", len(names), len(checks))
	}
	for i, n := range names {
		if checks[i].Name != n {
			t.Fatalf("position %d: expected %q, got %q", i, n, checks[i].Name)
		}
	}
}
