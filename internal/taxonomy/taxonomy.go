package taxonomy

import (
	"fmt"
	"sort"

	"callscore/internal/models"
)

// Taxonomy is an immutable snapshot of the active checklist configuration.
// Every computation receives it explicitly; nothing in the pipeline reads the
// checklist tables directly. The total max score is derived from the active
// set, never assumed to be 100.
type Taxonomy struct {
	categories []models.Category
	items      []models.ChecklistItem
	byID       map[int64]models.ChecklistItem
	byCategory map[int64][]models.ChecklistItem
	catByID    map[int64]models.Category
	totalMax   float64
}

// New builds a snapshot from active categories and items. Inactive entries
// are filtered out. Items referencing an unknown category are rejected so a
// broken taxonomy edit cannot silently skew scoring.
func New(categories []models.Category, items []models.ChecklistItem) (*Taxonomy, error) {
	t := &Taxonomy{
		byID:       make(map[int64]models.ChecklistItem),
		byCategory: make(map[int64][]models.ChecklistItem),
		catByID:    make(map[int64]models.Category),
	}

	for _, c := range categories {
		if !c.IsActive {
			continue
		}
		t.categories = append(t.categories, c)
		t.catByID[c.ID] = c
	}
	sort.Slice(t.categories, func(i, j int) bool {
		return t.categories[i].Ordinal < t.categories[j].Ordinal
	})

	for _, it := range items {
		if !it.IsActive {
			continue
		}
		if _, ok := t.catByID[it.CategoryID]; !ok {
			return nil, fmt.Errorf("checklist item %d references unknown or inactive category %d", it.ID, it.CategoryID)
		}
		if _, dup := t.byID[it.ID]; dup {
			return nil, fmt.Errorf("duplicate checklist item id %d", it.ID)
		}
		t.items = append(t.items, it)
		t.byID[it.ID] = it
		t.byCategory[it.CategoryID] = append(t.byCategory[it.CategoryID], it)
		t.totalMax += it.Points
	}
	sort.Slice(t.items, func(i, j int) bool {
		a, b := t.items[i], t.items[j]
		if a.CategoryID != b.CategoryID {
			return t.catByID[a.CategoryID].Ordinal < t.catByID[b.CategoryID].Ordinal
		}
		return a.Ordinal < b.Ordinal
	})
	for _, cat := range t.categories {
		its := t.byCategory[cat.ID]
		sort.Slice(its, func(i, j int) bool { return its[i].Ordinal < its[j].Ordinal })
	}

	return t, nil
}

// ActiveItems returns the active items ordered by category ordinal, then item
// ordinal. The returned slice is a copy.
func (t *Taxonomy) ActiveItems() []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(t.items))
	copy(out, t.items)
	return out
}

// ActiveCategories returns the active categories in display order.
func (t *Taxonomy) ActiveCategories() []models.Category {
	out := make([]models.Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// ItemsByCategory returns the active items of one category in ordinal order.
func (t *Taxonomy) ItemsByCategory(categoryID int64) []models.ChecklistItem {
	its := t.byCategory[categoryID]
	out := make([]models.ChecklistItem, len(its))
	copy(out, its)
	return out
}

// Item looks up an active item by id.
func (t *Taxonomy) Item(id int64) (models.ChecklistItem, bool) {
	it, ok := t.byID[id]
	return it, ok
}

// Category looks up an active category by id.
func (t *Taxonomy) Category(id int64) (models.Category, bool) {
	c, ok := t.catByID[id]
	return c, ok
}

// ItemCount returns the number of active items (92 in the reference
// configuration).
func (t *Taxonomy) ItemCount() int {
	return len(t.items)
}

// TotalMaxScore returns the sum of all active items' point values.
func (t *Taxonomy) TotalMaxScore() float64 {
	return t.totalMax
}
