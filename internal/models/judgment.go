package models

// Judgment is one raw AI opinion about one checklist item, as returned by the
// analysis service. The sequence a session receives is unordered and may be
// incomplete, duplicated, or reference unknown item ids; the reconciler is
// the validation boundary, so nothing here is trusted yet.
type Judgment struct {
	ItemID     int64   `json:"item_id"`
	Validated  *bool   `json:"validated"` // nil when the model could not decide
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
	Reasoning  string  `json:"reasoning"`
}
