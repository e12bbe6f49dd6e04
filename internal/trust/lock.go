package trust

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trustcert/internal/config"
	"trustcert/internal/gates"
	"trustcert/internal/store"
	"trustcert/pkg/domain"
)

// MissingAcknowledgment names one failing overridable gate whose override
// text was absent or did not match byte-exactly.
type MissingAcknowledgment struct {
	GateName     string `json:"gate_name"`
	RequiredText string `json:"required_text"`
}

// LockResult is the structured outcome of a lock attempt. The engine never
// answers with a bare boolean: every rejection names the gates behind it.
type LockResult struct {
	Success                bool                    `json:"success"`
	Message                string                  `json:"message"`
	BlockedBy              []string                `json:"blocked_by,omitempty"`
	MissingAcknowledgments []MissingAcknowledgment `json:"missing_acknowledgments,omitempty"`
	Report                 *domain.TrustReport     `json:"trust_report,omitempty"`
}

// AttemptLock regenerates a fresh report under the per-snapshot mutex and
// either performs the LOCKED transition or rejects with every unmet gate.
// overrides maps gate name to the supplied acknowledgment text.
func (e *Engine) AttemptLock(ctx context.Context, snapshotID int64, user string, overrides map[string]string, ov config.Overrides) (*LockResult, error) {
	mu := e.snapshotMutex(snapshotID)
	mu.Lock()
	defer mu.Unlock()

	view, err := e.loadView(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if view.Snapshot.Status == domain.StatusLocked {
		return &LockResult{Success: false, Message: fmt.Sprintf("snapshot %d is already locked", snapshotID)}, nil
	}

	// Never trust a cached report; underlying data may have changed.
	report := e.buildReport(view, ov)

	var blocked []string
	var missing []MissingAcknowledgment
	var granted []domain.OverrideRecord
	lockedAt := e.now().UTC()
	for _, g := range report.Gates {
		if g.Passed {
			continue
		}
		if !g.CanOverride {
			blocked = append(blocked, g.Name)
			continue
		}
		supplied, ok := overrides[g.Name]
		if !ok || supplied != g.AcknowledgmentRequired {
			missing = append(missing, MissingAcknowledgment{GateName: g.Name, RequiredText: g.AcknowledgmentRequired})
			continue
		}
		granted = append(granted, buildOverrideRecord(snapshotID, g, supplied, user, lockedAt))
	}
	if len(blocked) > 0 {
		// No partial locking: a single critical failure aborts the attempt.
		return &LockResult{
			Success:   false,
			Message:   fmt.Sprintf("lock blocked by non-overridable gate(s): %v", blocked),
			BlockedBy: blocked,
			Report:    report,
		}, nil
	}
	if len(missing) > 0 {
		return &LockResult{
			Success:                false,
			Message:                fmt.Sprintf("%d acknowledgment(s) missing or mismatched", len(missing)),
			MissingAcknowledgments: missing,
			Report:                 report,
		}, nil
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode trust report: %w", err)
	}
	err = e.locker.LockSnapshot(ctx, store.LockRequest{
		SnapshotID: snapshotID,
		User:       user,
		LockedAt:   lockedAt,
		ReportJSON: reportJSON,
		Overrides:  granted,
	})
	if errors.Is(err, store.ErrAlreadyLocked) {
		return &LockResult{Success: false, Message: fmt.Sprintf("snapshot %d is already locked", snapshotID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock snapshot %d: %w", snapshotID, err)
	}

	e.log.Info("snapshot locked",
		"snapshot_id", snapshotID,
		"user", user,
		"trust_score", report.TrustScore,
		"overrides", len(granted))
	return &LockResult{Success: true, Message: fmt.Sprintf("snapshot %d locked", snapshotID), Report: report}, nil
}

// buildOverrideRecord freezes the gate's value and threshold at the moment
// of override for the audit trail.
func buildOverrideRecord(snapshotID int64, g domain.LockGate, supplied, user string, at time.Time) domain.OverrideRecord {
	return domain.OverrideRecord{
		ID:                 "ovr_" + uuid.NewString(),
		SnapshotID:         snapshotID,
		GateName:           g.Name,
		AcknowledgmentText: supplied,
		User:               user,
		CreatedAt:          at,
		GateValue:          gates.Value(g),
		GateThreshold:      gates.Threshold(g),
	}
}
