package handler

import (
	"net/http"

	"callscore/internal/models"
	"callscore/internal/taxonomy"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChecklistHandler interface {
	GetChecklist(c *gin.Context)
	RefreshChecklist(c *gin.Context)
}

type checklistHandler struct {
	provider *taxonomy.Provider
	logger   *zap.Logger
}

func NewChecklistHandler(provider *taxonomy.Provider, logger *zap.Logger) ChecklistHandler {
	return &checklistHandler{provider: provider, logger: logger}
}

// ChecklistCategory is one category with its items for the read API.
type ChecklistCategory struct {
	models.Category
	Items []models.ChecklistItem `json:"items"`
}

// GetChecklist handles GET /api/checklist. It serves the in-memory snapshot,
// so reads never touch the database.
func (h *checklistHandler) GetChecklist(c *gin.Context) {
	tax := h.provider.Current()

	categories := make([]ChecklistCategory, 0, len(tax.ActiveCategories()))
	for _, cat := range tax.ActiveCategories() {
		categories = append(categories, ChecklistCategory{
			Category: cat,
			Items:    tax.ItemsByCategory(cat.ID),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"item_count": tax.ItemCount(),
		"max_score":  tax.TotalMaxScore(),
	})
}

// RefreshChecklist handles POST /api/checklist/refresh. Sessions already in
// flight keep scoring against the snapshot they started with.
func (h *checklistHandler) RefreshChecklist(c *gin.Context) {
	if err := h.provider.Refresh(); err != nil {
		h.logger.Error("Failed to refresh checklist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh checklist"})
		return
	}

	tax := h.provider.Current()
	c.JSON(http.StatusOK, gin.H{
		"message":    "Checklist refreshed",
		"item_count": tax.ItemCount(),
	})
}
