package handler

import (
	"errors"
	"net/http"
	"strconv"

	"callscore/internal/middleware"
	"callscore/internal/models"
	"callscore/internal/pipeline"
	"callscore/internal/repository"
	"callscore/internal/scoring"
	"callscore/internal/statemachine"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ScoringHandler interface {
	GetScore(c *gin.Context)
	RecalculateScore(c *gin.Context)
	GetScoreHistory(c *gin.Context)
}

type scoringHandler struct {
	sessionRepo repository.SessionRepository
	scoringRepo repository.ScoringRepository
	coordinator *pipeline.Coordinator
	logger      *zap.Logger
}

func NewScoringHandler(
	sessionRepo repository.SessionRepository,
	scoringRepo repository.ScoringRepository,
	coordinator *pipeline.Coordinator,
	logger *zap.Logger,
) ScoringHandler {
	return &scoringHandler{
		sessionRepo: sessionRepo,
		scoringRepo: scoringRepo,
		coordinator: coordinator,
		logger:      logger,
	}
}

// GetScore handles GET /api/sessions/:id/score.
func (h *scoringHandler) GetScore(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	result, err := h.scoringRepo.GetBySession(session.ID)
	if err != nil {
		h.logger.Error("Failed to get scoring result", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve score"})
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session has not been scored yet"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecalculateScore handles POST /api/sessions/:id/score/recalculate. It
// re-derives the scoring snapshot from the current responses without touching
// session status.
func (h *scoringHandler) RecalculateScore(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	result, err := h.coordinator.Recompute(c.Request.Context(), session.ID, "manual_recalculation")
	if err != nil {
		var conflict *statemachine.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session transition in progress, try again"})
			return
		}
		var verr *scoring.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error()})
			return
		}
		h.logger.Error("Failed to recalculate score", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to recalculate score"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetScoreHistory handles GET /api/sessions/:id/score/history.
func (h *scoringHandler) GetScoreHistory(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	entries, err := h.scoringRepo.GetHistory(session.ID)
	if err != nil {
		h.logger.Error("Failed to get score history", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve score history"})
		return
	}
	if entries == nil {
		entries = []models.ScoreEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"history": entries, "total": len(entries)})
}

func (h *scoringHandler) loadOwnedSession(c *gin.Context) (*models.Session, bool) {
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
