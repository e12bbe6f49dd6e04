package trust

import (
	"context"
	"fmt"

	"trustcert/internal/config"
	"trustcert/internal/gates"
	"trustcert/pkg/domain"
	"trustcert/pkg/evidence"
)

// defaultEvidenceLimit is the page size when the caller supplies none.
const defaultEvidenceLimit = 20

// GateView is the thin read projection of a report for display.
type GateView struct {
	SnapshotID     int64             `json:"snapshot_id"`
	LockEligible   bool              `json:"lock_eligible"`
	BlockedReasons []string          `json:"blocked_reasons,omitempty"`
	Gates          []domain.LockGate `json:"gates"`
}

func (e *Engine) ListGates(ctx context.Context, snapshotID int64, ov config.Overrides) (*GateView, error) {
	report, err := e.GenerateReport(ctx, snapshotID, ov)
	if err != nil {
		return nil, err
	}
	return &GateView{
		SnapshotID:     report.SnapshotID,
		LockEligible:   report.LockEligible,
		BlockedReasons: report.BlockedReasons,
		Gates:          report.Gates,
	}, nil
}

// EvidencePage is one slice of a gate's ranked evidence list.
type EvidencePage struct {
	GateName string         `json:"gate_name"`
	Total    int            `json:"total"`
	Offset   int            `json:"offset"`
	Limit    int            `json:"limit"`
	Items    []evidence.Ref `json:"items"`
}

// Evidence pages through the evidence backing one gate, for drill-down.
func (e *Engine) Evidence(ctx context.Context, snapshotID int64, gateName string, offset, limit int, ov config.Overrides) (*EvidencePage, error) {
	report, err := e.GenerateReport(ctx, snapshotID, ov)
	if err != nil {
		return nil, err
	}
	for _, g := range report.Gates {
		if g.Name != gateName {
			continue
		}
		refs := gates.Evidence(g)
		if limit <= 0 {
			limit = defaultEvidenceLimit
		}
		if offset < 0 {
			offset = 0
		}
		if offset > len(refs) {
			offset = len(refs)
		}
		end := offset + limit
		if end > len(refs) {
			end = len(refs)
		}
		return &EvidencePage{
			GateName: gateName,
			Total:    len(refs),
			Offset:   offset,
			Limit:    limit,
			Items:    refs[offset:end],
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrGateNotFound, gateName)
}
