// Package evidence defines the references that tie every metric value and
// invariant verdict back to the records that produced it.
package evidence

import "sort"

type Kind string

const (
	KindTransaction   Kind = "transaction"
	KindInvoice       Kind = "invoice"
	KindAllocation    Kind = "allocation"
	KindFXRate        Kind = "fx_rate"
	KindComputedValue Kind = "computed_value"
)

// MaxRefs caps the evidence attached to a single metric or invariant. The
// largest contributors by absolute amount survive the cut.
const MaxRefs = 50

// Ref points at one contributing record. Refs are produced only by the
// engine and never mutated afterwards.
type Ref struct {
	Kind        Kind     `json:"kind"`
	RecordID    int64    `json:"record_id"`
	Key         string   `json:"key,omitempty"`
	Amount      *float64 `json:"amount,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	Description string   `json:"description,omitempty"`
}

func Amount(v float64) *float64 { return &v }

// Rank orders refs by absolute amount, largest first, record ids breaking
// ties, and truncates to MaxRefs. Refs without an amount sort last. The
// ordering is total, so ranked evidence is deterministic.
func Rank(refs []Ref) []Ref {
	sort.SliceStable(refs, func(i, j int) bool {
		ai, aj := absAmount(refs[i].Amount), absAmount(refs[j].Amount)
		if ai != aj {
			return ai > aj
		}
		return refs[i].RecordID < refs[j].RecordID
	})
	if len(refs) > MaxRefs {
		refs = refs[:MaxRefs]
	}
	return refs
}

func absAmount(a *float64) float64 {
	if a == nil {
		return 0
	}
	if *a < 0 {
		return -*a
	}
	return *a
}
