package domain

import (
	"time"

	"trustcert/pkg/evidence"
)

type MetricStatus string

const (
	MetricPass MetricStatus = "pass"
	MetricWarn MetricStatus = "warn"
	MetricFail MetricStatus = "fail"
	MetricSkip MetricStatus = "skip"
)

type MetricUnit string

const (
	UnitPercent  MetricUnit = "percent"
	UnitCurrency MetricUnit = "currency"
	UnitHours    MetricUnit = "hours"
	UnitCount    MetricUnit = "count"
)

type ThresholdDirection string

const (
	ThresholdMin ThresholdDirection = "min"
	ThresholdMax ThresholdDirection = "max"
)

// Canonical metric and invariant names. Gate names derive from these.
const (
	MetricCashExplained       = "Cash Explained %"
	MetricUnknownExposure     = "Unknown Exposure €"
	MetricMissingFXExposure   = "Missing FX Exposure €"
	MetricDataFreshness       = "Data Freshness Mismatch"
	MetricReconIntegrity      = "Reconciliation Integrity %"
	MetricCalibrationCoverage = "Forecast Calibration Coverage"

	InvariantCashMath          = "Cash Math"
	InvariantDrilldownSums     = "Drilldown Sums"
	InvariantReconConservation = "Reconciliation Conservation"
	InvariantImmutability      = "Snapshot Immutability"
	InvariantIdempotency       = "Idempotency"
	InvariantNoSilentFX        = "No Silent FX"
)

// TrustMetric is one amount-weighted trust measurement. Details carries the
// intermediate sums the value was derived from.
type TrustMetric struct {
	Name               string             `json:"name"`
	Value              float64            `json:"value"`
	Unit               MetricUnit         `json:"unit"`
	Status             MetricStatus       `json:"status"`
	Threshold          *float64           `json:"threshold,omitempty"`
	ThresholdDirection ThresholdDirection `json:"threshold_direction,omitempty"`
	AmountWeighted     bool               `json:"amount_weighted"`
	Evidence           []evidence.Ref     `json:"evidence,omitempty"`
	Details            map[string]float64 `json:"details,omitempty"`
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
)

type InvariantCheck struct {
	Name     string             `json:"name"`
	Passed   bool               `json:"passed"`
	Severity Severity           `json:"severity"`
	Message  string             `json:"message"`
	Evidence []evidence.Ref     `json:"evidence,omitempty"`
	Details  map[string]float64 `json:"details,omitempty"`
}

// LockGate wraps exactly one of Metric or Invariant; the other pointer is
// always nil. AcknowledgmentRequired is populated only while the gate is
// failing and overridable.
type LockGate struct {
	Name                   string          `json:"name"`
	Passed                 bool            `json:"passed"`
	CanOverride            bool            `json:"can_override"`
	RequiresAcknowledgment bool            `json:"requires_acknowledgment"`
	AcknowledgmentRequired string          `json:"acknowledgment_text_required,omitempty"`
	Metric                 *TrustMetric    `json:"metric,omitempty"`
	Invariant              *InvariantCheck `json:"invariant,omitempty"`
}

// TrustReport is a pure value object: regenerating it over unchanged data
// under the same clock yields a byte-identical document.
type TrustReport struct {
	SnapshotID     int64            `json:"snapshot_id"`
	SnapshotName   string           `json:"snapshot_name"`
	GeneratedAt    time.Time        `json:"generated_at"`
	Metrics        []TrustMetric    `json:"metrics"`
	Invariants     []InvariantCheck `json:"invariants"`
	Gates          []LockGate       `json:"gates"`
	TrustScore     float64          `json:"trust_score"`
	LockEligible   bool             `json:"lock_eligible"`
	BlockedReasons []string         `json:"blocked_reasons,omitempty"`
}

// OverrideRecord is the append-only audit artifact persisted when a failing
// overridable gate is acknowledged through. Never edited after the fact.
type OverrideRecord struct {
	ID                 string    `json:"id"`
	SnapshotID         int64     `json:"snapshot_id"`
	GateName           string    `json:"gate_name"`
	AcknowledgmentText string    `json:"acknowledgment_text"`
	User               string    `json:"user"`
	CreatedAt          time.Time `json:"created_at"`
	GateValue          *float64  `json:"gate_value,omitempty"`
	GateThreshold      *float64  `json:"gate_threshold,omitempty"`
}
