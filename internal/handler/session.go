package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callscore/internal/middleware"
	"callscore/internal/models"
	"callscore/internal/pipeline"
	"callscore/internal/repository"
	"callscore/internal/statemachine"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionHandler interface {
	CreateSession(c *gin.Context)
	ListSessions(c *gin.Context)
	GetSession(c *gin.Context)
	DeleteSession(c *gin.Context)
	ConfirmUpload(c *gin.Context)
	SubmitSession(c *gin.Context)
	RetrySession(c *gin.Context)
}

type sessionHandler struct {
	sessionRepo    repository.SessionRepository
	audioRepo      repository.AudioRepository
	transcriptRepo repository.TranscriptRepository
	scoringRepo    repository.ScoringRepository
	machine        *statemachine.Machine
	coordinator    *pipeline.Coordinator
	queue          *pipeline.Queue
	logger         *zap.Logger
}

func NewSessionHandler(
	sessionRepo repository.SessionRepository,
	audioRepo repository.AudioRepository,
	transcriptRepo repository.TranscriptRepository,
	scoringRepo repository.ScoringRepository,
	machine *statemachine.Machine,
	coordinator *pipeline.Coordinator,
	queue *pipeline.Queue,
	logger *zap.Logger,
) SessionHandler {
	return &sessionHandler{
		sessionRepo:    sessionRepo,
		audioRepo:      audioRepo,
		transcriptRepo: transcriptRepo,
		scoringRepo:    scoringRepo,
		machine:        machine,
		coordinator:    coordinator,
		queue:          queue,
		logger:         logger,
	}
}

// CreateSessionRequest is the body for POST /api/sessions.
type CreateSessionRequest struct {
	CustomerName       string  `json:"customer_name" binding:"required"`
	OpportunityName    *string `json:"opportunity_name"`
	DecisionInfluencer *string `json:"decision_influencer"`
	DealStage          *string `json:"deal_stage"`
}

// CreateSession handles POST /api/sessions. New sessions start in draft.
func (h *sessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_name is required"})
		return
	}

	session := &models.Session{
		UserID:             c.MustGet(middleware.ContextUserID).(int64),
		CustomerName:       req.CustomerName,
		OpportunityName:    req.OpportunityName,
		DecisionInfluencer: req.DecisionInfluencer,
		DealStage:          req.DealStage,
		Status:             models.StatusDraft,
	}
	if err := h.sessionRepo.CreateSession(session); err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions handles GET /api/sessions.
// Query parameters:
// - status: filter by session status (optional)
// - page, page_size: pagination
func (h *sessionHandler) ListSessions(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	status := models.SessionStatus(c.Query("status"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	sessions, total, err := h.sessionRepo.ListSessions(userID, status, page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sessions"})
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions":  sessions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetSession handles GET /api/sessions/:id. The detail view includes the
// audio reference, transcript, and scoring snapshot when present.
func (h *sessionHandler) GetSession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	audio, err := h.audioRepo.GetBySession(session.ID)
	if err != nil {
		h.logger.Error("Failed to get audio file", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session"})
		return
	}
	transcript, err := h.transcriptRepo.GetBySession(session.ID)
	if err != nil {
		h.logger.Error("Failed to get transcript", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session"})
		return
	}
	score, err := h.scoringRepo.GetBySession(session.ID)
	if err != nil {
		h.logger.Error("Failed to get scoring result", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":    session,
		"audio":      audio,
		"transcript": transcript,
		"score":      score,
	})
}

// DeleteSession handles DELETE /api/sessions/:id. Sessions in the middle of
// the pipeline cannot be deleted.
func (h *sessionHandler) DeleteSession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	switch session.Status {
	case models.StatusProcessing, models.StatusAnalyzing, models.StatusScoring:
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot delete a session while the pipeline is running"})
		return
	}

	if err := h.sessionRepo.DeleteSession(session.ID); err != nil {
		h.logger.Error("Failed to delete session", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted"})
}

// ConfirmUpload handles POST /api/sessions/:id/upload. The recording itself
// goes directly to audio storage; this call moves the draft to uploading once
// the client has started the upload.
func (h *sessionHandler) ConfirmUpload(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	if err := h.machine.Transition(session.ID, models.StatusDraft, models.StatusUploading); err != nil {
		var conflict *statemachine.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session is not in draft"})
			return
		}
		h.logger.Error("Failed to confirm upload", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Upload can only be confirmed on a draft session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.StatusUploading})
}

// SubmitSession handles POST /api/sessions/:id/submit. It records the
// submission time and enqueues the transcription stage; the pipeline carries
// the session the rest of the way.
func (h *sessionHandler) SubmitSession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	if session.Status != models.StatusUploading {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Only a session with a confirmed upload can be submitted",
		})
		return
	}

	if session.SubmittedAt == nil {
		if err := h.sessionRepo.SetSubmittedAt(session.ID, time.Now().UTC()); err != nil {
			h.logger.Error("Failed to set submitted_at", zap.Int64("session_id", session.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit session"})
			return
		}
	}

	triggerID, err := h.queue.Enqueue(session.ID, pipeline.StageTranscription)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline is overloaded, try again later"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"trigger_id": triggerID,
		"status":     session.Status,
	})
}

// RetrySession handles POST /api/sessions/:id/retry. Only failed sessions can
// be retried; the session is reset to the stage that failed and re-enqueued.
func (h *sessionHandler) RetrySession(c *gin.Context) {
	session, ok := h.loadOwnedSession(c)
	if !ok {
		return
	}

	stage, err := h.coordinator.Retry(session.ID)
	if err != nil {
		var precondition *statemachine.PreconditionError
		if errors.As(err, &precondition) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": precondition.Reason})
			return
		}
		var conflict *statemachine.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Session changed concurrently, try again"})
			return
		}
		h.logger.Error("Failed to retry session", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry session"})
		return
	}

	triggerID, err := h.queue.Enqueue(session.ID, stage)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Pipeline is overloaded, try again later"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"trigger_id": triggerID,
		"stage":      stage,
	})
}

// loadOwnedSession parses :id, loads the session, and enforces that it
// belongs to the authenticated user. Foreign sessions read as not found.
func (h *sessionHandler) loadOwnedSession(c *gin.Context) (*models.Session, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
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
