package handler

import (
	"errors"
	"net/http"
	"strconv"

	"callscore/internal/middleware"
	"callscore/internal/models"
	"callscore/internal/pipeline"
	"callscore/internal/repository"
	"callscore/internal/statemachine"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CoachingHandler interface {
	GetFeedback(c *gin.Context)
	GetReport(c *gin.Context)
	RegenerateCoaching(c *gin.Context)
}

type coachingHandler struct {
	sessionRepo  repository.SessionRepository
	coachingRepo repository.CoachingRepository
	reportRepo   repository.ReportRepository
	coordinator  *pipeline.Coordinator
	logger       *zap.Logger
}

func NewCoachingHandler(
	sessionRepo repository.SessionRepository,
	coachingRepo repository.CoachingRepository,
	reportRepo repository.ReportRepository,
	coordinator *pipeline.Coordinator,
	logger *zap.Logger,
) CoachingHandler {
	return &coachingHandler{
		sessionRepo:  sessionRepo,
		coachingRepo: coachingRepo,
		reportRepo:   reportRepo,
		coordinator:  coordinator,
		logger:       logger,
	}
}

// GetFeedback handles GET /api/sessions/:id/coaching.
func (h *coachingHandler) GetFeedback(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	feedback, err := h.coachingRepo.GetBySession(session.ID)
	if err != nil {
		h.logger.Error("Failed to get coaching feedback", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve coaching feedback"})
		return
	}
	if feedback == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coaching feedback not generated yet"})
		return
	}

	c.JSON(http.StatusOK, feedback)
}

// GetReport handles GET /api/sessions/:id/report.
func (h *coachingHandler) GetReport(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	report, err := h.reportRepo.GetBySession(session.ID)
	if err != nil {
		h.logger.Error("Failed to get report", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve report"})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not generated yet"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// RegenerateCoaching handles POST /api/sessions/:id/coaching/regenerate. It
// rebuilds both coaching artifacts from the current scoring snapshot; the
// session stays completed throughout.
func (h *coachingHandler) RegenerateCoaching(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	if err := h.coordinator.RegenerateCoaching(c.Request.Context(), session.ID); err != nil {
		var precondition *statemachine.PreconditionError
		if errors.As(err, &precondition) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": precondition.Reason})
			return
		}
		var conflict *statemachine.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session transition in progress, try again"})
			return
		}
		h.logger.Error("Failed to regenerate coaching", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to regenerate coaching"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coaching regenerated"})
}

func (h *coachingHandler) loadOwnedSession(c *gin.Context) (*models.Session, bool) {
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
