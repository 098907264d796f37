package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"callscore/internal/models"
	"callscore/internal/taxonomy"
)

func boolPtr(b bool) *bool { return &b }

// testTaxonomy builds a taxonomy with the given items-per-category layout.
// Item ids are assigned sequentially starting at 1.
func testTaxonomy(t *testing.T, itemsPerCategory ...int) *taxonomy.Taxonomy {
	t.Helper()

	var categories []models.Category
	var items []models.ChecklistItem
	itemID := int64(1)
	total := 0
	for _, n := range itemsPerCategory {
		total += n
	}
	points := 100.0 / float64(total)

	for c, n := range itemsPerCategory {
		cat := models.Category{
			ID:       int64(c + 1),
			Name:     "Category " + string(rune('A'+c)),
			Ordinal:  c + 1,
			Weight:   1.0,
			MaxScore: points * float64(n),
			IsActive: true,
		}
		categories = append(categories, cat)
		for i := 1; i <= n; i++ {
			items = append(items, models.ChecklistItem{
				ID:         itemID,
				CategoryID: cat.ID,
				Title:      "Item",
				Ordinal:    i,
				Weight:     1.0,
				Points:     points,
				IsActive:   true,
			})
			itemID++
		}
	}

	tax, err := taxonomy.New(categories, items)
	require.NoError(t, err)
	return tax
}

func TestReconcileCompleteness(t *testing.T) {
	tax := testTaxonomy(t, 10, 8, 8, 7, 8, 12, 12, 10, 8, 9) // 92 items
	r := NewReconciler(zap.NewNop())

	judgments := []models.Judgment{
		{ItemID: 1, Validated: boolPtr(true), Confidence: 0.9, Evidence: "quote", Reasoning: "seen"},
		{ItemID: 5, Validated: boolPtr(false), Confidence: 0.7},
	}

	responses := r.Reconcile(42, tax, judgments, nil)
	require.Len(t, responses, 92)

	seen := make(map[int64]bool)
	for _, resp := range responses {
		assert.Equal(t, int64(42), resp.SessionID)
		assert.False(t, seen[resp.ItemID], "item %d appeared twice", resp.ItemID)
		seen[resp.ItemID] = true
	}
}

func TestReconcileEmptyJudgmentsAllUndetermined(t *testing.T) {
	tax := testTaxonomy(t, 10, 8, 8, 7, 8, 12, 12, 10, 8, 9)
	r := NewReconciler(zap.NewNop())

	responses := r.Reconcile(1, tax, nil, nil)
	require.Len(t, responses, 92)
	for _, resp := range responses {
		assert.Nil(t, resp.IsValidated)
		assert.Zero(t, resp.Confidence)
		assert.Empty(t, resp.EvidenceText)
	}
}

func TestReconcileGapFilling(t *testing.T) {
	tax := testTaxonomy(t, 3)
	r := NewReconciler(zap.NewNop())

	responses := r.Reconcile(1, tax, []models.Judgment{
		{ItemID: 2, Validated: boolPtr(true), Confidence: 0.8, Evidence: "said so"},
	}, nil)
	require.Len(t, responses, 3)

	byItem := indexByItem(responses)
	assert.Nil(t, byItem[1].IsValidated)
	require.NotNil(t, byItem[2].IsValidated)
	assert.True(t, *byItem[2].IsValidated)
	assert.Equal(t, "said so", byItem[2].EvidenceText)
	assert.Nil(t, byItem[3].IsValidated)
}

func TestReconcileDuplicateKeepsHighestConfidence(t *testing.T) {
	tax := testTaxonomy(t, 2)
	r := NewReconciler(zap.NewNop())

	responses := r.Reconcile(1, tax, []models.Judgment{
		{ItemID: 1, Validated: boolPtr(true), Confidence: 0.9, Reasoning: "first, confident"},
		{ItemID: 1, Validated: boolPtr(false), Confidence: 0.3, Reasoning: "second, unsure"},
	}, nil)

	byItem := indexByItem(responses)
	require.NotNil(t, byItem[1].IsValidated)
	assert.True(t, *byItem[1].IsValidated)
	assert.Equal(t, 0.9, byItem[1].Confidence)
	assert.Equal(t, "first, confident", byItem[1].AIReasoning)
}

func TestReconcileDuplicateEqualConfidenceLastWins(t *testing.T) {
	tax := testTaxonomy(t, 1)
	r := NewReconciler(zap.NewNop())

	responses := r.Reconcile(1, tax, []models.Judgment{
		{ItemID: 1, Validated: boolPtr(false), Confidence: 0.5, Reasoning: "earlier"},
		{ItemID: 1, Validated: boolPtr(true), Confidence: 0.5, Reasoning: "later"},
	}, nil)

	require.NotNil(t, responses[0].IsValidated)
	assert.True(t, *responses[0].IsValidated)
	assert.Equal(t, "later", responses[0].AIReasoning)
}

func TestReconcileUnknownItemDiscarded(t *testing.T) {
	tax := testTaxonomy(t, 2)
	r := NewReconciler(zap.NewNop())

	responses := r.Reconcile(1, tax, []models.Judgment{
		{ItemID: 999, Validated: boolPtr(true), Confidence: 0.9},
	}, nil)
	require.Len(t, responses, 2)
	for _, resp := range responses {
		assert.Nil(t, resp.IsValidated)
	}
}

func TestReconcileClampsConfidence(t *testing.T) {
	tax := testTaxonomy(t, 2)
	r := NewReconciler(zap.NewNop())

	responses := r.Reconcile(1, tax, []models.Judgment{
		{ItemID: 1, Validated: boolPtr(true), Confidence: 1.7},
		{ItemID: 2, Validated: boolPtr(false), Confidence: -0.2},
	}, nil)

	byItem := indexByItem(responses)
	assert.Equal(t, 1.0, byItem[1].Confidence)
	assert.Equal(t, 0.0, byItem[2].Confidence)
}

func TestReconcilePreservesManualOverride(t *testing.T) {
	tax := testTaxonomy(t, 2)
	r := NewReconciler(zap.NewNop())

	userID := int64(7)
	existing := []models.Response{
		{
			SessionID:        1,
			ItemID:           1,
			IsValidated:      boolPtr(false), // shadowed AI judgment
			Confidence:       0.4,
			ManualOverride:   true,
			OverrideVerdict:  boolPtr(true),
			OverrideByUserID: &userID,
		},
	}

	responses := r.Reconcile(1, tax, []models.Judgment{
		{ItemID: 1, Validated: boolPtr(false), Confidence: 0.95, Reasoning: "fresh AI run"},
		{ItemID: 2, Validated: boolPtr(true), Confidence: 0.8},
	}, existing)

	byItem := indexByItem(responses)
	overridden := byItem[1]
	assert.True(t, overridden.ManualOverride)
	require.NotNil(t, overridden.OverrideVerdict)
	assert.True(t, *overridden.OverrideVerdict)
	// The shadowed AI judgment must survive unclobbered.
	require.NotNil(t, overridden.IsValidated)
	assert.False(t, *overridden.IsValidated)
	assert.Equal(t, 0.4, overridden.Confidence)
	assert.True(t, overridden.Validated())
}

func indexByItem(responses []models.Response) map[int64]models.Response {
	out := make(map[int64]models.Response, len(responses))
	for _, r := range responses {
		out[r.ItemID] = r
	}
	return out
}
