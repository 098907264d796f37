package taxonomy

import (
	"fmt"

	"callscore/internal/models"
)

// categorySeed describes one category of the reference configuration:
// 10 categories, 92 items, every item worth an equal share of 100 points.
// Real item wording is loaded by the administrative import tooling; the seed
// creates the structure so the pipeline is runnable on a fresh database.
type categorySeed struct {
	name        string
	description string
	itemCount   int
}

var referenceCategories = []categorySeed{
	{"Trigger Event & Impact", "Why the customer is buying and measurable results expected", 10},
	{"Trigger Priority", "Is this truly a priority for decision influencers?", 8},
	{"Sales Target", "What, how much, when they plan to buy", 8},
	{"Decision Influencer", "Who influences the purchase decision and their priorities", 7},
	{"Individual Impact", "Impact of solution on decision influencers individually", 8},
	{"Mentor", "Internal champion or coach for the deal", 12},
	{"Decision Making Process", "How the organization makes buying decisions", 12},
	{"Fit", "How well solution fits customer's requirements", 10},
	{"Alternatives", "Competitive alternatives being considered", 8},
	{"Our Solution Ranking", "How we rank vs. competitors", 9},
}

// Seeder is the write side used to install the reference configuration.
type Seeder interface {
	CountItems() (int, error)
	CreateCategory(category *models.Category) error
	CreateItem(item *models.ChecklistItem) error
}

// SeedReference installs the reference 10x92 configuration when the checklist
// tables are empty. It is a no-op on an already-seeded database.
func SeedReference(s Seeder) error {
	count, err := s.CountItems()
	if err != nil {
		return fmt.Errorf("failed to inspect checklist tables: %w", err)
	}
	if count > 0 {
		return nil
	}

	totalItems := 0
	for _, cs := range referenceCategories {
		totalItems += cs.itemCount
	}
	pointsPerItem := 100.0 / float64(totalItems)

	for ordinal, cs := range referenceCategories {
		category := &models.Category{
			Name:        cs.name,
			Description: cs.description,
			Ordinal:     ordinal + 1,
			Weight:      1.0,
			MaxScore:    pointsPerItem * float64(cs.itemCount),
			IsActive:    true,
		}
		if err := s.CreateCategory(category); err != nil {
			return fmt.Errorf("failed to seed category %q: %w", cs.name, err)
		}

		for i := 1; i <= cs.itemCount; i++ {
			item := &models.ChecklistItem{
				CategoryID: category.ID,
				Title:      fmt.Sprintf("%s criterion %d", cs.name, i),
				Definition: fmt.Sprintf("Validation criterion %d of the %s category. Wording is replaced by the checklist import tooling.", i, cs.name),
				Ordinal:    i,
				Weight:     1.0,
				Points:     pointsPerItem,
				IsActive:   true,
			}
			if err := s.CreateItem(item); err != nil {
				return fmt.Errorf("failed to seed item %d of %q: %w", i, cs.name, err)
			}
		}
	}

	return nil
}
