package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callscore/internal/models"
	"callscore/internal/taxonomy"
)

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

// buildTaxonomy creates categories with the given item counts and a uniform
// per-item point value. Item ids are sequential from 1.
func buildTaxonomy(t *testing.T, pointsPerItem float64, itemsPerCategory ...int) *taxonomy.Taxonomy {
	t.Helper()

	var categories []models.Category
	var items []models.ChecklistItem
	itemID := int64(1)

	for c, n := range itemsPerCategory {
		cat := models.Category{
			ID:       int64(c + 1),
			Name:     fmt.Sprintf("Category %d", c+1),
			Ordinal:  c + 1,
			Weight:   1.0,
			MaxScore: pointsPerItem * float64(n),
			IsActive: true,
		}
		categories = append(categories, cat)
		for i := 1; i <= n; i++ {
			items = append(items, models.ChecklistItem{
				ID:         itemID,
				CategoryID: cat.ID,
				Title:      fmt.Sprintf("Item %d", itemID),
				Ordinal:    i,
				Weight:     1.0,
				Points:     pointsPerItem,
				IsActive:   true,
			})
			itemID++
		}
	}

	tax, err := taxonomy.New(categories, items)
	require.NoError(t, err)
	return tax
}

func referenceTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	return buildTaxonomy(t, 100.0/92.0, 10, 8, 8, 7, 8, 12, 12, 10, 8, 9)
}

// responsesFor builds one response per active item, marking the first
// validatedCount of them validated by AI.
func responsesFor(tax *taxonomy.Taxonomy, validatedCount int, confidence float64) []models.Response {
	var out []models.Response
	for i, item := range tax.ActiveItems() {
		resp := models.Response{SessionID: 1, ItemID: item.ID}
		if i < validatedCount {
			resp.IsValidated = boolPtr(true)
			resp.Confidence = confidence
		}
		out = append(out, resp)
	}
	return out
}

func TestScoreAllUndeterminedIsAtRisk(t *testing.T) {
	tax := referenceTaxonomy(t)
	result, err := Score(tax, responsesFor(tax, 0, 0), Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)

	assert.Zero(t, result.TotalScore)
	assert.Zero(t, result.RawScore)
	assert.Equal(t, models.BandAtRisk, result.RiskBand)
	assert.Zero(t, result.ItemsValidated)
	assert.Equal(t, 92, result.ItemsTotal)
	assert.Nil(t, result.ScoreChange)
	assert.Nil(t, result.PreviousTotal)
}

func TestScoreSixtyOfNinetyTwo(t *testing.T) {
	tax := referenceTaxonomy(t)
	result, err := Score(tax, responsesFor(tax, 60, 0.9), Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)

	expectedRaw := 60 * (100.0 / 92.0)
	assert.InDelta(t, expectedRaw, result.RawScore, 1e-9)
	assert.InDelta(t, expectedRaw/tax.TotalMaxScore()*100, result.TotalScore, 1e-9)
	assert.Equal(t, 60, result.ItemsValidated)
	assert.Nil(t, result.ScoreChange, "delta must be absent, not zero, with no prior score")
}

func TestScoreIdempotent(t *testing.T) {
	tax := referenceTaxonomy(t)
	responses := responsesFor(tax, 30, 0.8)
	opts := Options{Now: time.Unix(1700000000, 0), PreviousTotal: floatPtr(25)}

	first, err := Score(tax, responses, opts)
	require.NoError(t, err)
	second, err := Score(tax, responses, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestScoreWeightedSumInvariant(t *testing.T) {
	tax := referenceTaxonomy(t)
	result, err := Score(tax, responsesFor(tax, 47, 0.6), Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)

	var sum float64
	for _, cs := range result.CategoryScores {
		assert.LessOrEqual(t, cs.Score, cs.MaxScore, "category %s exceeds its max", cs.Name)
		sum += cs.Score
	}
	assert.InDelta(t, result.RawScore, sum, 1e-9)
	assert.GreaterOrEqual(t, result.RawScore, 0.0)
	assert.LessOrEqual(t, result.RawScore, tax.TotalMaxScore())
}

func TestScoreOverridePrecedence(t *testing.T) {
	tax := buildTaxonomy(t, 10, 2) // 2 items, 10 points each

	responses := []models.Response{
		{
			// AI said no, manager validated it: counts.
			SessionID:       1,
			ItemID:          1,
			IsValidated:     boolPtr(false),
			ManualOverride:  true,
			OverrideVerdict: boolPtr(true),
		},
		{
			// AI said yes, manager invalidated it: does not count.
			SessionID:       1,
			ItemID:          2,
			IsValidated:     boolPtr(true),
			ManualOverride:  true,
			OverrideVerdict: boolPtr(false),
		},
	}

	result, err := Score(tax, responses, Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, result.RawScore, 1e-9)
	assert.Equal(t, 1, result.ItemsValidated)
	require.Len(t, result.TopStrengths, 1)
	assert.Equal(t, int64(1), result.TopStrengths[0].ItemID)
}

func TestScoreConfidenceDoesNotScalePoints(t *testing.T) {
	tax := buildTaxonomy(t, 10, 2)
	responses := []models.Response{
		{SessionID: 1, ItemID: 1, IsValidated: boolPtr(true), Confidence: 0.01},
		{SessionID: 1, ItemID: 2, IsValidated: boolPtr(true), Confidence: 0.99},
	}
	result, err := Score(tax, responses, Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, result.RawScore, 1e-9)
}

func TestBandBoundaries(t *testing.T) {
	cases := []struct {
		total float64
		want  models.RiskBand
	}{
		{79.999, models.BandCaution},
		{80.0, models.BandHealthy},
		{59.999, models.BandAtRisk},
		{60.0, models.BandCaution},
		{0, models.BandAtRisk},
		{100, models.BandHealthy},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BandFor(tc.total), "total %v", tc.total)
	}
}

func TestScoreNormalizesNonHundredTaxonomy(t *testing.T) {
	// 4 items x 12 points = 48 max: a taxonomy edit changed the active set,
	// so band lookup must go through normalization.
	tax := buildTaxonomy(t, 12, 2, 2)
	require.InDelta(t, 48.0, tax.TotalMaxScore(), 1e-9)

	// 4 of 4 validated: raw 48, normalized 100 -> healthy.
	all, err := Score(tax, responsesFor(tax, 4, 1), Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, all.TotalScore, 1e-9)
	assert.Equal(t, models.BandHealthy, all.RiskBand)

	// 3 of 4 validated: raw 36, normalized 75 -> caution even though the raw
	// value is far below the 80-point threshold.
	three, err := Score(tax, responsesFor(tax, 3, 1), Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 75.0, three.TotalScore, 1e-9)
	assert.Equal(t, models.BandCaution, three.RiskBand)
}

func TestScoreDelta(t *testing.T) {
	tax := buildTaxonomy(t, 10, 2)
	responses := responsesFor(tax, 1, 0.9) // raw 10 of 20 -> total 50

	withPrior, err := Score(tax, responses, Options{Now: time.Unix(0, 0), PreviousTotal: floatPtr(30)})
	require.NoError(t, err)
	require.NotNil(t, withPrior.ScoreChange)
	assert.InDelta(t, 20.0, *withPrior.ScoreChange, 1e-9)
	require.NotNil(t, withPrior.PreviousTotal)
	assert.InDelta(t, 30.0, *withPrior.PreviousTotal, 1e-9)

	// Unchanged score against the same prior is a zero delta, not nil.
	samePrior, err := Score(tax, responses, Options{Now: time.Unix(0, 0), PreviousTotal: floatPtr(50)})
	require.NoError(t, err)
	require.NotNil(t, samePrior.ScoreChange)
	assert.Zero(t, *samePrior.ScoreChange)
}

func TestScoreGapRanking(t *testing.T) {
	// Two categories, second one heavier: its gaps rank first.
	var categories []models.Category
	var items []models.ChecklistItem
	categories = append(categories,
		models.Category{ID: 1, Name: "Light", Ordinal: 1, Weight: 1.0, MaxScore: 20, IsActive: true},
		models.Category{ID: 2, Name: "Heavy", Ordinal: 2, Weight: 2.0, MaxScore: 20, IsActive: true},
	)
	for i := int64(1); i <= 2; i++ {
		items = append(items, models.ChecklistItem{ID: i, CategoryID: 1, Ordinal: int(i), Weight: 1, Points: 10, IsActive: true})
	}
	for i := int64(3); i <= 4; i++ {
		items = append(items, models.ChecklistItem{ID: i, CategoryID: 2, Ordinal: int(i - 2), Weight: 1, Points: 10, IsActive: true})
	}
	tax, err := taxonomy.New(categories, items)
	require.NoError(t, err)

	result, err := Score(tax, responsesFor(tax, 0, 0), Options{TopCount: 4, Now: time.Unix(0, 0)})
	require.NoError(t, err)
	require.Len(t, result.TopGaps, 4)
	assert.Equal(t, int64(3), result.TopGaps[0].ItemID)
	assert.Equal(t, int64(4), result.TopGaps[1].ItemID)
	assert.Equal(t, int64(1), result.TopGaps[2].ItemID)
	assert.Equal(t, int64(2), result.TopGaps[3].ItemID)
}

func TestScoreTopCountDefault(t *testing.T) {
	tax := referenceTaxonomy(t)
	result, err := Score(tax, responsesFor(tax, 50, 0.9), Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.Len(t, result.TopStrengths, DefaultTopCount)
	assert.Len(t, result.TopGaps, DefaultTopCount)
}

func TestScoreRejectsIncompleteResponseSet(t *testing.T) {
	tax := buildTaxonomy(t, 10, 3)
	_, err := Score(tax, responsesFor(tax, 0, 0)[:2], Options{Now: time.Unix(0, 0)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestScoreIgnoresInactiveItemResponses(t *testing.T) {
	tax := buildTaxonomy(t, 10, 2)
	responses := responsesFor(tax, 2, 0.9)
	// A response for a deactivated item lingers in storage; scoring skips it.
	responses = append(responses, models.Response{SessionID: 1, ItemID: 999, IsValidated: boolPtr(true)})

	result, err := Score(tax, responses, Options{Now: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, result.RawScore, 1e-9)
	assert.Equal(t, 2, result.ItemsValidated)
}
