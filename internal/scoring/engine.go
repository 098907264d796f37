package scoring

import (
	"fmt"
	"sort"
	"time"

	"callscore/internal/models"
	"callscore/internal/taxonomy"
)

// Risk band thresholds against the 0-100 normalized total.
const (
	healthyThreshold = 80.0
	cautionThreshold = 60.0
)

// DefaultTopCount is how many strengths and gaps a result carries unless the
// caller asks for more.
const DefaultTopCount = 3

// ValidationError reports malformed input to the scoring function. The
// caller decides whether to retry or fail the session.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "scoring input invalid: " + e.Reason
}

// Options tunes one scoring pass. PreviousTotal is the immediately preceding
// stored total for the session, nil when none exists. Now stamps the
// snapshot; injecting it keeps the computation a pure function of its inputs.
type Options struct {
	TopCount      int
	PreviousTotal *float64
	Now           time.Time
}

// Score derives a scoring snapshot from a complete response set. An item
// contributes its full point value iff its effective verdict (manual override
// first, AI judgment otherwise) is validated; undetermined and invalidated
// items contribute zero. Confidence never scales points. The function has no
// side effects; persistence and prior-total retrieval belong to the caller.
func Score(tax *taxonomy.Taxonomy, responses []models.Response, opts Options) (*models.ScoringResult, error) {
	if opts.TopCount <= 0 {
		opts.TopCount = DefaultTopCount
	}

	byItem := make(map[int64]models.Response, len(responses))
	for _, r := range responses {
		if _, active := tax.Item(r.ItemID); !active {
			// Responses for deactivated items are retained in storage but
			// excluded from scoring.
			continue
		}
		if _, dup := byItem[r.ItemID]; dup {
			return nil, &ValidationError{Reason: fmt.Sprintf("duplicate response for item %d", r.ItemID)}
		}
		byItem[r.ItemID] = r
	}
	if len(byItem) != tax.ItemCount() {
		return nil, &ValidationError{Reason: fmt.Sprintf("response set covers %d of %d active items", len(byItem), tax.ItemCount())}
	}

	var (
		rawScore  float64
		validated int
		strengths []models.RankedItem
		gaps      []models.RankedItem
		catScores []models.CategoryScore
		sessionID int64
	)

	for _, cat := range tax.ActiveCategories() {
		cs := models.CategoryScore{CategoryID: cat.ID, Name: cat.Name}
		for _, item := range tax.ItemsByCategory(cat.ID) {
			resp := byItem[item.ID]
			sessionID = resp.SessionID
			cs.MaxScore += item.Points
			cs.ItemCount++

			if resp.Validated() {
				cs.Score += item.Points
				cs.Validated++
				validated++
				strengths = append(strengths, models.RankedItem{
					ItemID:   item.ID,
					Title:    item.Title,
					Category: cat.Name,
					Points:   item.Points,
				})
			} else {
				gaps = append(gaps, models.RankedItem{
					ItemID:   item.ID,
					Title:    item.Title,
					Category: cat.Name,
					Points:   item.Points,
				})
			}
		}
		rawScore += cs.Score
		catScores = append(catScores, cs)
	}

	rankStrengths(tax, strengths)
	rankGaps(tax, gaps)

	total := normalize(rawScore, tax.TotalMaxScore())

	result := &models.ScoringResult{
		SessionID:      sessionID,
		TotalScore:     total,
		RawScore:       rawScore,
		MaxScore:       tax.TotalMaxScore(),
		RiskBand:       BandFor(total),
		ItemsValidated: validated,
		ItemsTotal:     tax.ItemCount(),
		CategoryScores: catScores,
		TopStrengths:   top(strengths, opts.TopCount),
		TopGaps:        top(gaps, opts.TopCount),
		CalculatedAt:   opts.Now,
	}

	if opts.PreviousTotal != nil {
		prev := *opts.PreviousTotal
		delta := total - prev
		result.PreviousTotal = &prev
		result.ScoreChange = &delta
	}

	return result, nil
}

// BandFor maps a 0-100 normalized total onto a risk band.
func BandFor(normalizedTotal float64) models.RiskBand {
	switch {
	case normalizedTotal >= healthyThreshold:
		return models.BandHealthy
	case normalizedTotal >= cautionThreshold:
		return models.BandCaution
	default:
		return models.BandAtRisk
	}
}

// normalize rescales a raw weighted total onto 0-100. The taxonomy's max is
// derived from the active set and is not guaranteed to be 100, so band lookup
// must always go through this step.
func normalize(raw, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return raw / max * 100
}

// rankStrengths orders validated items by point value descending. Ties fall
// back to category order then item ordinal so repeated runs rank identically.
func rankStrengths(tax *taxonomy.Taxonomy, items []models.RankedItem) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return lessByPosition(tax, a.ItemID, b.ItemID)
	})
}

// rankGaps orders zero-scored items by category weight descending, then item
// ordinal ascending.
func rankGaps(tax *taxonomy.Taxonomy, items []models.RankedItem) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		wa, wb := categoryWeight(tax, a.ItemID), categoryWeight(tax, b.ItemID)
		if wa != wb {
			return wa > wb
		}
		return lessByPosition(tax, a.ItemID, b.ItemID)
	})
}

func categoryWeight(tax *taxonomy.Taxonomy, itemID int64) float64 {
	item, _ := tax.Item(itemID)
	cat, _ := tax.Category(item.CategoryID)
	return cat.Weight
}

func lessByPosition(tax *taxonomy.Taxonomy, a, b int64) bool {
	ia, _ := tax.Item(a)
	ib, _ := tax.Item(b)
	ca, _ := tax.Category(ia.CategoryID)
	cb, _ := tax.Category(ib.CategoryID)
	if ca.Ordinal != cb.Ordinal {
		return ca.Ordinal < cb.Ordinal
	}
	return ia.Ordinal < ib.Ordinal
}

func top(items []models.RankedItem, n int) []models.RankedItem {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]models.RankedItem, len(items))
	copy(out, items)
	return out
}
