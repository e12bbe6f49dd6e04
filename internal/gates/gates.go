// Package gates turns metrics and invariants into the uniform pass/fail
// conditions a snapshot must clear before it can be locked, and scores the
// overall trust level.
package gates

import (
	"trustcert/pkg/domain"
	"trustcert/pkg/evidence"
)

// gatedMetrics are the metric names that become lock gates. Freshness and
// calibration inform the score but never block a lock.
var gatedMetrics = []string{
	domain.MetricCashExplained,
	domain.MetricUnknownExposure,
	domain.MetricMissingFXExposure,
	domain.MetricReconIntegrity,
}

// acknowledgments maps gate name to the exact text an operator must supply
// to override that gate while it fails. Matching is byte-exact. Critical
// invariant gates have no entry: no text unlocks them.
var acknowledgments = map[string]string{
	GateName(domain.MetricCashExplained):     "I acknowledge the Cash Explained % shortfall and accept unexplained cash movement risk.",
	GateName(domain.MetricUnknownExposure):   "I acknowledge the Unknown Exposure € and accept unreconciled cash risk.",
	GateName(domain.MetricMissingFXExposure): "I acknowledge the Missing FX Exposure € and accept currency conversion risk.",
	GateName(domain.MetricReconIntegrity):    "I acknowledge the Reconciliation Integrity % shortfall and accept over-allocation risk.",
	GateName(domain.InvariantDrilldownSums):  "I acknowledge the failed Drilldown Sums check and accept the reporting inconsistency risk.",
	GateName(domain.InvariantIdempotency):    "I acknowledge the failed Idempotency check and accept the duplicate record risk.",
	GateName(domain.InvariantNoSilentFX):     "I acknowledge the failed No Silent FX check and accept the conversion rate risk.",
}

func GateName(underlying string) string { return "Gate: " + underlying }

// RequiredAcknowledgment returns the exact override text for a gate name.
func RequiredAcknowledgment(gateName string) (string, bool) {
	text, ok := acknowledgments[gateName]
	return text, ok
}

// Build constructs one gate per gated metric and one per every invariant.
// Each gate wraps exactly one of the two.
func Build(metrics []domain.TrustMetric, invariants []domain.InvariantCheck) []domain.LockGate {
	out := make([]domain.LockGate, 0, len(gatedMetrics)+len(invariants))
	byName := make(map[string]domain.TrustMetric, len(metrics))
	for _, m := range metrics {
		byName[m.Name] = m
	}
	for _, name := range gatedMetrics {
		m, ok := byName[name]
		if !ok {
			continue
		}
		mm := m
		g := domain.LockGate{
			Name:        GateName(m.Name),
			Passed:      m.Status == domain.MetricPass,
			CanOverride: true,
			Metric:      &mm,
		}
		decorate(&g)
		out = append(out, g)
	}
	for _, inv := range invariants {
		iv := inv
		g := domain.LockGate{
			Name:        GateName(inv.Name),
			Passed:      inv.Passed,
			CanOverride: inv.Severity != domain.SeverityCritical,
			Invariant:   &iv,
		}
		decorate(&g)
		out = append(out, g)
	}
	return out
}

func decorate(g *domain.LockGate) {
	if g.Passed || !g.CanOverride {
		return
	}
	g.RequiresAcknowledgment = true
	if text, ok := acknowledgments[g.Name]; ok {
		g.AcknowledgmentRequired = text
	}
}

// Score starts at 100 and subtracts per failing metric and invariant,
// clamped to [0, 100].
func Score(metrics []domain.TrustMetric, invariants []domain.InvariantCheck) float64 {
	score := 100.0
	for _, m := range metrics {
		switch m.Status {
		case domain.MetricFail:
			score -= 15
		case domain.MetricWarn:
			score -= 5
		}
	}
	for _, inv := range invariants {
		if inv.Passed {
			continue
		}
		switch inv.Severity {
		case domain.SeverityCritical:
			score -= 25
		case domain.SeverityError:
			score -= 15
		case domain.SeverityWarning:
			score -= 5
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Eligibility reports whether the snapshot can be locked at all and which
// gate names block it. Overridable failures do not block eligibility.
func Eligibility(gates []domain.LockGate) (bool, []string) {
	var blocked []string
	for _, g := range gates {
		if !g.Passed && !g.CanOverride {
			blocked = append(blocked, g.Name)
		}
	}
	return len(blocked) == 0, blocked
}

// Evidence returns the evidence refs of whichever side the gate wraps.
func Evidence(g domain.LockGate) []evidence.Ref {
	switch {
	case g.Metric != nil:
		return g.Metric.Evidence
	case g.Invariant != nil:
		return g.Invariant.Evidence
	}
	return nil
}

// Value returns the numeric value behind a gate: the metric value, or 1/0
// for a passed/failed invariant.
func Value(g domain.LockGate) *float64 {
	switch {
	case g.Metric != nil:
		v := g.Metric.Value
		return &v
	case g.Invariant != nil:
		v := 0.0
		if g.Invariant.Passed {
			v = 1
		}
		return &v
	}
	return nil
}

// Threshold returns the threshold behind a metric gate; invariant gates
// have none.
func Threshold(g domain.LockGate) *float64 {
	if g.Metric != nil && g.Metric.Threshold != nil {
		v := *g.Metric.Threshold
		return &v
	}
	return nil
}
