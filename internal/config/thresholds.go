// Package config holds the certification thresholds. Thresholds are plain
// values passed into every call: compiled-in defaults merged with explicit
// caller overrides, never environment globals or a mutable singleton.
package config

// Thresholds is the full threshold set a certification run evaluates
// against. Percent fields are 0-100.
type Thresholds struct {
	CashExplainedMinPct       float64 `yaml:"cash_explained_min_pct"`
	UnknownExposureMaxPct     float64 `yaml:"unknown_exposure_max_pct"`
	MissingFXExposureMaxPct   float64 `yaml:"missing_fx_exposure_max_pct"`
	DataFreshnessMaxHours     float64 `yaml:"data_freshness_max_hours"`
	ReconIntegrityMinPct      float64 `yaml:"reconciliation_integrity_min_pct"`
	CalibrationCoverageMinPct float64 `yaml:"calibration_coverage_min_pct"`
	CalibrationCoverageMaxPct float64 `yaml:"calibration_coverage_max_pct"`
}

// Defaults returns the compiled-in threshold set.
func Defaults() Thresholds {
	return Thresholds{
		CashExplainedMinPct:       95,
		UnknownExposureMaxPct:     5,
		MissingFXExposureMaxPct:   5,
		DataFreshnessMaxHours:     72,
		ReconIntegrityMinPct:      98,
		CalibrationCoverageMinPct: 45,
		CalibrationCoverageMaxPct: 55,
	}
}

// Overrides carries per-call threshold changes; nil fields keep the value
// they are merged over.
type Overrides struct {
	CashExplainedMinPct       *float64 `yaml:"cash_explained_min_pct"`
	UnknownExposureMaxPct     *float64 `yaml:"unknown_exposure_max_pct"`
	MissingFXExposureMaxPct   *float64 `yaml:"missing_fx_exposure_max_pct"`
	DataFreshnessMaxHours     *float64 `yaml:"data_freshness_max_hours"`
	ReconIntegrityMinPct      *float64 `yaml:"reconciliation_integrity_min_pct"`
	CalibrationCoverageMinPct *float64 `yaml:"calibration_coverage_min_pct"`
	CalibrationCoverageMaxPct *float64 `yaml:"calibration_coverage_max_pct"`
}

// Merge returns t with every non-nil override applied.
func (t Thresholds) Merge(o Overrides) Thresholds {
	if o.CashExplainedMinPct != nil {
		t.CashExplainedMinPct = *o.CashExplainedMinPct
	}
	if o.UnknownExposureMaxPct != nil {
		t.UnknownExposureMaxPct = *o.UnknownExposureMaxPct
	}
	if o.MissingFXExposureMaxPct != nil {
		t.MissingFXExposureMaxPct = *o.MissingFXExposureMaxPct
	}
	if o.DataFreshnessMaxHours != nil {
		t.DataFreshnessMaxHours = *o.DataFreshnessMaxHours
	}
	if o.ReconIntegrityMinPct != nil {
		t.ReconIntegrityMinPct = *o.ReconIntegrityMinPct
	}
	if o.CalibrationCoverageMinPct != nil {
		t.CalibrationCoverageMinPct = *o.CalibrationCoverageMinPct
	}
	if o.CalibrationCoverageMaxPct != nil {
		t.CalibrationCoverageMaxPct = *o.CalibrationCoverageMaxPct
	}
	return t
}

// Pct is a convenience for building Overrides literals.
func Pct(v float64) *float64 { return &v }
