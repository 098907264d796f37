package handler

import (
	"net/http"
	"strconv"

	"callscore/internal/middleware"
	"callscore/internal/models"
	"callscore/internal/pipeline"
	"callscore/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ResponseHandler interface {
	ListResponses(c *gin.Context)
	OverrideResponse(c *gin.Context)
}

type responseHandler struct {
	sessionRepo  repository.SessionRepository
	responseRepo repository.ResponseRepository
	coordinator  *pipeline.Coordinator
	logger       *zap.Logger
}

func NewResponseHandler(
	sessionRepo repository.SessionRepository,
	responseRepo repository.ResponseRepository,
	coordinator *pipeline.Coordinator,
	logger *zap.Logger,
) ResponseHandler {
	return &responseHandler{
		sessionRepo:  sessionRepo,
		responseRepo: responseRepo,
		coordinator:  coordinator,
		logger:       logger,
	}
}

// ListResponses handles GET /api/sessions/:id/responses.
func (h *responseHandler) ListResponses(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	responses, err := h.responseRepo.GetBySession(session.ID)
	if err != nil {
		h.logger.Error("Failed to get responses", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve responses"})
		return
	}
	if responses == nil {
		responses = []models.Response{}
	}

	c.JSON(http.StatusOK, gin.H{"responses": responses, "total": len(responses)})
}

// OverrideRequest is the body for PATCH /api/sessions/:id/responses/:item_id.
// Verdict is tri-state: true, false, or null for undetermined.
type OverrideRequest struct {
	Verdict *bool  `json:"verdict"`
	Reason  string `json:"reason" binding:"required"`
}

// OverrideResponse handles PATCH /api/sessions/:id/responses/:item_id. The AI
// judgment is retained but shadowed by the manual verdict, and a completed
// session is rescored immediately.
func (h *responseHandler) OverrideResponse(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	itemID, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var req OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
		return
	}

	userID := c.MustGet(middleware.ContextUserID).(int64)
	response, err := h.responseRepo.ApplyOverride(session.ID, itemID, req.Verdict, userID, req.Reason)
	if err != nil {
		h.logger.Error("Failed to apply override",
			zap.Int64("session_id", session.ID),
			zap.Int64("item_id", itemID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply override"})
		return
	}
	if response == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Response not found"})
		return
	}

	h.logger.Info("Manual override applied",
		zap.Int64("session_id", session.ID),
		zap.Int64("item_id", itemID),
		zap.Int64("user_id", userID))

	var score *models.ScoringResult
	if session.Status == models.StatusCompleted {
		score, err = h.coordinator.Recompute(c.Request.Context(), session.ID, "manual_override")
		if err != nil {
			h.logger.Error("Failed to rescore after override",
				zap.Int64("session_id", session.ID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Override applied but rescoring failed"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"response": response, "score": score})
}

func (h *responseHandler) loadOwnedSession(c *gin.Context) (*models.Session, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return nil, false
	}

	session, err := h.sessionRepo.GetSessionByID(id)
	if err != nil {
		h.logger.Error("Failed to get session", zap.Int64("session_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session"})
		return nil, false
	}
	if session == nil || session.UserID != c.MustGet(middleware.ContextUserID).(int64) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}
