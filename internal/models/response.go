package models

import "time"

// Response is a session's verdict for one checklist item, stored in the
// 'session_responses' table. IsValidated is tri-state: true, false, or nil
// for undetermined. Once ManualOverride is set the override fields carry the
// effective verdict and the AI judgment is retained but shadowed.
type Response struct {
	ID        int64 `db:"id" json:"id"`
	SessionID int64 `db:"session_id" json:"session_id"`
	ItemID    int64 `db:"item_id" json:"item_id"`

	IsValidated  *bool   `db:"is_validated" json:"is_validated"`
	Confidence   float64 `db:"confidence" json:"confidence"`
	EvidenceText string  `db:"evidence_text" json:"evidence_text"`
	AIReasoning  string  `db:"ai_reasoning" json:"ai_reasoning"`

	ManualOverride   bool       `db:"manual_override" json:"manual_override"`
	OverrideVerdict  *bool      `db:"override_verdict" json:"override_verdict,omitempty"`
	OverrideByUserID *int64     `db:"override_by_user_id" json:"override_by_user_id,omitempty"`
	OverrideReason   *string    `db:"override_reason" json:"override_reason,omitempty"`
	OverriddenAt     *time.Time `db:"overridden_at" json:"overridden_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveVerdict returns the verdict that scoring must honor: the manual
// override when present, the AI judgment otherwise. nil means undetermined.
func (r *Response) EffectiveVerdict() *bool {
	if r.ManualOverride {
		return r.OverrideVerdict
	}
	return r.IsValidated
}

// Validated reports whether the effective verdict is an affirmative one.
func (r *Response) Validated() bool {
	v := r.EffectiveVerdict()
	return v != nil && *v
}
