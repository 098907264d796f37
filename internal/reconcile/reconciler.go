package reconcile

import (
	"go.uber.org/zap"

	"callscore/internal/models"
	"callscore/internal/taxonomy"
)

// Reconciler normalizes the raw AI judgment sequence for one session into a
// complete response set: exactly one response per active checklist item.
// Gaps become undetermined responses, duplicates collapse to the most
// confident judgment, and judgments for unknown items are dropped with a
// data-quality warning. Malformed input is normalized away, never raised.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile maps judgments onto the active item set. existing carries the
// session's current responses, if any; a response that already holds a manual
// override is passed through untouched, preserving the override and its
// shadowed AI judgment even across a repeated reconciliation run.
func (r *Reconciler) Reconcile(sessionID int64, tax *taxonomy.Taxonomy, judgments []models.Judgment, existing []models.Response) []models.Response {
	overridden := make(map[int64]models.Response)
	for _, resp := range existing {
		if resp.ManualOverride {
			overridden[resp.ItemID] = resp
		}
	}

	// The judgment sequence is unordered, so presentation order is not a
	// reliable supersession signal: a duplicate wins only with strictly
	// higher confidence, the later one taking equal-confidence ties.
	best := make(map[int64]models.Judgment)
	for _, j := range judgments {
		j.Confidence = clampConfidence(j.Confidence)
		if _, known := tax.Item(j.ItemID); !known {
			r.logger.Warn("Discarding judgment for unknown or inactive checklist item",
				zap.Int64("session_id", sessionID),
				zap.Int64("item_id", j.ItemID))
			continue
		}
		if prev, dup := best[j.ItemID]; dup {
			r.logger.Warn("Duplicate judgment for checklist item",
				zap.Int64("session_id", sessionID),
				zap.Int64("item_id", j.ItemID),
				zap.Float64("kept_confidence", maxFloat(prev.Confidence, j.Confidence)))
			if j.Confidence < prev.Confidence {
				continue
			}
		}
		best[j.ItemID] = j
	}

	responses := make([]models.Response, 0, tax.ItemCount())
	for _, item := range tax.ActiveItems() {
		if resp, ok := overridden[item.ID]; ok {
			responses = append(responses, resp)
			continue
		}

		resp := models.Response{
			SessionID: sessionID,
			ItemID:    item.ID,
		}
		if j, ok := best[item.ID]; ok {
			resp.IsValidated = j.Validated
			resp.Confidence = j.Confidence
			resp.EvidenceText = j.Evidence
			resp.AIReasoning = j.Reasoning
		}
		// No judgment: the response stays undetermined with confidence 0
		// and empty evidence. A valid pipeline outcome, not an error.
		responses = append(responses, resp)
	}

	return responses
}

// clampConfidence pins an out-of-range confidence to the nearest bound.
func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
