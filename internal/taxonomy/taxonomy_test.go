package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callscore/internal/models"
)

func referenceFixture(t *testing.T) ([]models.Category, []models.ChecklistItem) {
	t.Helper()

	counts := []int{10, 8, 8, 7, 8, 12, 12, 10, 8, 9}
	points := 100.0 / 92.0

	var categories []models.Category
	var items []models.ChecklistItem
	itemID := int64(1)
	for c, n := range counts {
		cat := models.Category{
			ID:       int64(c + 1),
			Name:     "Category",
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
				Ordinal:    i,
				Weight:     1.0,
				Points:     points,
				IsActive:   true,
			})
			itemID++
		}
	}
	return categories, items
}

func TestReferencePartition(t *testing.T) {
	categories, items := referenceFixture(t)
	tax, err := New(categories, items)
	require.NoError(t, err)

	assert.Len(t, tax.ActiveCategories(), 10)
	assert.Equal(t, 92, tax.ItemCount())

	perCategory := 0
	for _, cat := range tax.ActiveCategories() {
		perCategory += len(tax.ItemsByCategory(cat.ID))
	}
	assert.Equal(t, 92, perCategory)
	assert.InDelta(t, 100.0, tax.TotalMaxScore(), 1e-9)
}

func TestTotalMaxScoreIsDerived(t *testing.T) {
	// A taxonomy edit that deactivates a category must change the derived
	// max; nothing may assume 100.
	categories, items := referenceFixture(t)
	categories[9].IsActive = false
	for i := range items {
		if items[i].CategoryID == categories[9].ID {
			items[i].IsActive = false
		}
	}

	tax, err := New(categories, items)
	require.NoError(t, err)
	assert.Equal(t, 83, tax.ItemCount())
	assert.InDelta(t, 83*(100.0/92.0), tax.TotalMaxScore(), 1e-9)
}

func TestInactiveItemsExcluded(t *testing.T) {
	categories, items := referenceFixture(t)
	items[0].IsActive = false

	tax, err := New(categories, items)
	require.NoError(t, err)
	assert.Equal(t, 91, tax.ItemCount())
	_, ok := tax.Item(items[0].ID)
	assert.False(t, ok)
}

func TestItemOrderingFollowsCategoryThenOrdinal(t *testing.T) {
	categories, items := referenceFixture(t)
	tax, err := New(categories, items)
	require.NoError(t, err)

	ordered := tax.ActiveItems()
	for i := 1; i < len(ordered); i++ {
		prev, _ := tax.Category(ordered[i-1].CategoryID)
		cur, _ := tax.Category(ordered[i].CategoryID)
		if prev.Ordinal == cur.Ordinal {
			assert.Less(t, ordered[i-1].Ordinal, ordered[i].Ordinal)
		} else {
			assert.Less(t, prev.Ordinal, cur.Ordinal)
		}
	}
}

func TestRejectsItemWithUnknownCategory(t *testing.T) {
	categories, items := referenceFixture(t)
	items[3].CategoryID = 999
	_, err := New(categories, items)
	require.Error(t, err)
}

func TestRejectsDuplicateItemIDs(t *testing.T) {
	categories, items := referenceFixture(t)
	items[1].ID = items[0].ID
	_, err := New(categories, items)
	require.Error(t, err)
}
