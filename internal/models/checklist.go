package models

import "time"

// Category represents one of the checklist categories stored in the
// 'checklist_categories' table. The reference configuration has 10.
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Ordinal     int       `db:"ordinal" json:"ordinal"`
	Weight      float64   `db:"weight" json:"weight"`
	MaxScore    float64   `db:"max_score" json:"max_score"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ChecklistItem represents a single weighted evaluation criterion stored in
// the 'checklist_items' table. Items referenced by responses are never
// deleted, only deactivated.
type ChecklistItem struct {
	ID         int64     `db:"id" json:"id"`
	CategoryID int64     `db:"category_id" json:"category_id"`
	Title      string    `db:"title" json:"title"`
	Definition string    `db:"definition" json:"definition"`
	Ordinal    int       `db:"ordinal" json:"ordinal"`
	Weight     float64   `db:"weight" json:"weight"`
	Points     float64   `db:"points" json:"points"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
