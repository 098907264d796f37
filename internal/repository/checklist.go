package repository

import (
	"callscore/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type ChecklistRepository interface {
	GetActiveCategories() ([]models.Category, error)
	GetActiveItems() ([]models.ChecklistItem, error)
	CountItems() (int, error)
	CreateCategory(category *models.Category) error
	CreateItem(item *models.ChecklistItem) error
}

type checklistRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewChecklistRepository(db *sqlx.DB, logger *zap.Logger) ChecklistRepository {
	return &checklistRepository{db: db, logger: logger}
}

func (r *checklistRepository) GetActiveCategories() ([]models.Category, error) {
	var categories []models.Category
	query := `SELECT id, name, description, ordinal, weight, max_score, is_active, created_at
	          FROM checklist_categories WHERE is_active = TRUE ORDER BY ordinal`
	err := r.db.Select(&categories, query)
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *checklistRepository) GetActiveItems() ([]models.ChecklistItem, error) {
	var items []models.ChecklistItem
	query := `SELECT i.id, i.category_id, i.title, i.definition, i.ordinal, i.weight, i.points, i.is_active, i.created_at
	          FROM checklist_items i
	          JOIN checklist_categories c ON c.id = i.category_id
	          WHERE i.is_active = TRUE AND c.is_active = TRUE
	          ORDER BY c.ordinal, i.ordinal`
	err := r.db.Select(&items, query)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *checklistRepository) CountItems() (int, error) {
	var count int
	err := r.db.Get(&count, `SELECT COUNT(*) FROM checklist_items`)
	return count, err
}

func (r *checklistRepository) CreateCategory(category *models.Category) error {
	query := `INSERT INTO checklist_categories (name, description, ordinal, weight, max_score, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	return r.db.QueryRowx(query, category.Name, category.Description, category.Ordinal,
		category.Weight, category.MaxScore, category.IsActive).Scan(&category.ID, &category.CreatedAt)
}

func (r *checklistRepository) CreateItem(item *models.ChecklistItem) error {
	query := `INSERT INTO checklist_items (category_id, title, definition, ordinal, weight, points, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at`
	return r.db.QueryRowx(query, item.CategoryID, item.Title, item.Definition, item.Ordinal,
		item.Weight, item.Points, item.IsActive).Scan(&item.ID, &item.CreatedAt)
}
