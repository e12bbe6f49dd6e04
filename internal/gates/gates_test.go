package gates

import (
	"strings"
	"testing"

	"trustcert/pkg/domain"
)

func failingMetric(name string) domain.TrustMetric {
	return domain.TrustMetric{Name: name, Status: domain.MetricFail}
}

func passingMetric(name string) domain.TrustMetric {
	return domain.TrustMetric{Name: name, Status: domain.MetricPass}
}

func allMetrics(status domain.MetricStatus) []domain.TrustMetric {
	names := []string{
		domain.MetricCashExplained,
		domain.MetricUnknownExposure,
		domain.MetricMissingFXExposure,
		domain.MetricDataFreshness,
		domain.MetricReconIntegrity,
		domain.MetricCalibrationCoverage,
	}
	out := make([]domain.TrustMetric, 0, len(names))
	for _, n := range names {
		out = append(out, domain.TrustMetric{Name: n, Status: status})
	}
	return out
}

func TestBuildWrapsExactlyOneSide(t *testing.T) {
	gs := Build(allMetrics(domain.MetricPass), []domain.InvariantCheck{
		{Name: domain.InvariantCashMath, Passed: true, Severity: domain.SeverityCritical},
	})
	// four gated metrics plus one invariant
	if len(gs) != 5 {
		t.Fatalf("expected 5 gates, got %d", len(gs))
	}
	for _, g := range gs {
		if (g.Metric == nil) == (g.Invariant == nil) {
			t.Fatalf("gate %s must wrap exactly one of metric/invariant", g.Name)
		}
	}
}

func TestFreshnessAndCalibrationNeverGate(t *testing.T) {
	gs := Build(allMetrics(domain.MetricFail), nil)
	for _, g := range gs {
		if g.Name == GateName(domain.MetricDataFreshness) || g.Name == GateName(domain.MetricCalibrationCoverage) {
			t.Fatalf("%s must not become a gate", g.Name)
		}
	}
}

func TestCriticalInvariantGateNeverOverridable(t *testing.T) {
	gs := Build(nil, []domain.InvariantCheck{
		{Name: domain.InvariantReconConservation, Passed: false, Severity: domain.SeverityCritical},
		{Name: domain.InvariantIdempotency, Passed: false, Severity: domain.SeverityError},
	})
	for _, g := range gs {
		switch g.Name {
		case GateName(domain.InvariantReconConservation):
			if g.CanOverride || g.AcknowledgmentRequired != "" {
				t.Fatalf("critical gate must not be overridable: %+v", g)
			}
		case GateName(domain.InvariantIdempotency):
			if !g.CanOverride || !g.RequiresAcknowledgment || g.AcknowledgmentRequired == "" {
				t.Fatalf("error-severity gate must be overridable with text: %+v", g)
			}
		}
	}
}

func TestAcknowledgmentTextOnlyWhileFailing(t *testing.T) {
	gs := Build([]domain.TrustMetric{passingMetric(domain.MetricCashExplained)}, nil)
	if g := gs[0]; g.RequiresAcknowledgment || g.AcknowledgmentRequired != "" {
		t.Fatalf("passing gate must carry no acknowledgment text: %+v", g)
	}
	gs = Build([]domain.TrustMetric{failingMetric(domain.MetricCashExplained)}, nil)
	if g := gs[0]; !g.RequiresAcknowledgment || !strings.Contains(g.AcknowledgmentRequired, "Cash Explained %") {
		t.Fatalf("failing overridable gate must carry its text: %+v", g)
	}
}

func TestEveryOverridableGateHasRegisteredText(t *testing.T) {
	ms := allMetrics(domain.MetricFail)
	ivs := []domain.InvariantCheck{
		{Name: domain.InvariantDrilldownSums, Passed: false, Severity: domain.SeverityError},
		{Name: domain.InvariantIdempotency, Passed: false, Severity: domain.SeverityError},
		{Name: domain.InvariantNoSilentFX, Passed: false, Severity: domain.SeverityError},
	}
	for _, g := range Build(ms, ivs) {
		if !g.CanOverride {
			continue
		}
		if _, ok := RequiredAcknowledgment(g.Name); !ok {
			t.Fatalf("overridable gate %s has no registered acknowledgment text", g.Name)
		}
	}
}

func TestScore(t *testing.T) {
	if s := Score(allMetrics(domain.MetricPass), nil); s != 100 {
		t.Fatalf("all pass scores 100, got %v", s)
	}
	ms := []domain.TrustMetric{
		failingMetric(domain.MetricCashExplained),            // -15
		{Name: domain.MetricDataFreshness, Status: domain.MetricWarn}, // -5
	}
	ivs := []domain.InvariantCheck{
		{Name: domain.InvariantCashMath, Passed: false, Severity: domain.SeverityCritical}, // -25
		{Name: domain.InvariantIdempotency, Passed: false, Severity: domain.SeverityError}, // -15
	}
	if s := Score(ms, ivs); s != 40 {
		t.Fatalf("expected 40, got %v", s)
	}
}

func TestScoreClampedToZero(t *testing.T) {
	ivs := []domain.InvariantCheck{
		{Passed: false, Severity: domain.SeverityCritical},
		{Passed: false, Severity: domain.SeverityCritical},
		{Passed: false, Severity: domain.SeverityCritical},
		{Passed: false, Severity: domain.SeverityCritical},
		{Passed: false, Severity: domain.SeverityCritical},
	}
	if s := Score(allMetrics(domain.MetricFail), ivs); s != 0 {
		t.Fatalf("score must clamp at 0, got %v", s)
	}
}

func TestEligibility(t *testing.T) {
	gs := Build([]domain.TrustMetric{failingMetric(domain.MetricCashExplained)}, []domain.InvariantCheck{
		{Name: domain.InvariantCashMath, Passed: false, Severity: domain.SeverityCritical},
	})
	eligible, blocked := Eligibility(gs)
	if eligible {
		t.Fatal("failing critical gate blocks eligibility")
	}
	if len(blocked) != 1 || blocked[0] != GateName(domain.InvariantCashMath) {
		t.Fatalf("blocked reasons must name exactly the non-overridable gate, got %v", blocked)
	}
}

func TestEligibleWithOnlyOverridableFailures(t *testing.T) {
	gs := Build([]domain.TrustMetric{failingMetric(domain.MetricCashExplained)}, nil)
	eligible, blocked := Eligibility(gs)
	if !eligible || blocked != nil {
		t.Fatalf("overridable failures do not block eligibility, got %v %v", eligible, blocked)
	}
}
