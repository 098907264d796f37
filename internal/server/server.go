package server

import (
	"net/http"

	"callscore/internal/config"
	"callscore/internal/handler"
	"callscore/internal/middleware"
	"callscore/internal/pipeline"
	"callscore/internal/repository"
	"callscore/internal/statemachine"
	"callscore/internal/taxonomy"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	log    *logrus.Logger

	cfg         *config.Config
	zapLogger   *zap.Logger
	provider    *taxonomy.Provider
	machine     *statemachine.Machine
	coordinator *pipeline.Coordinator
	queue       *pipeline.Queue
}

func NewServer(
	db *sqlx.DB,
	log *logrus.Logger,
	cfg *config.Config,
	zapLogger *zap.Logger,
	provider *taxonomy.Provider,
	machine *statemachine.Machine,
	coordinator *pipeline.Coordinator,
	queue *pipeline.Queue,
) *Server {
	router := gin.Default()

	s := &Server{
		router:      router,
		db:          db,
		log:         log,
		cfg:         cfg,
		zapLogger:   zapLogger,
		provider:    provider,
		machine:     machine,
		coordinator: coordinator,
		queue:       queue,
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	sessionRepo := repository.NewSessionRepository(s.db, s.zapLogger)
	audioRepo := repository.NewAudioRepository(s.db, s.zapLogger)
	transcriptRepo := repository.NewTranscriptRepository(s.db, s.zapLogger)
	responseRepo := repository.NewResponseRepository(s.db, s.zapLogger)
	scoringRepo := repository.NewScoringRepository(s.db, s.zapLogger)
	coachingRepo := repository.NewCoachingRepository(s.db, s.zapLogger)
	reportRepo := repository.NewReportRepository(s.db, s.zapLogger)

	sessionHandler := handler.NewSessionHandler(sessionRepo, audioRepo, transcriptRepo, scoringRepo,
		s.machine, s.coordinator, s.queue, s.zapLogger)
	responseHandler := handler.NewResponseHandler(sessionRepo, responseRepo, s.coordinator, s.zapLogger)
	scoringHandler := handler.NewScoringHandler(sessionRepo, scoringRepo, s.coordinator, s.zapLogger)
	coachingHandler := handler.NewCoachingHandler(sessionRepo, coachingRepo, reportRepo, s.coordinator, s.zapLogger)
	checklistHandler := handler.NewChecklistHandler(s.provider, s.zapLogger)

	// Ping route for health check
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	// Authenticated routes
	authRequired := s.router.Group("/api")
	authRequired.Use(middleware.AuthMiddleware(s.cfg.Server.JWTSecret, s.zapLogger))
	{
		authRequired.GET("/checklist", checklistHandler.GetChecklist)
		authRequired.POST("/checklist/refresh", checklistHandler.RefreshChecklist)

		authRequired.POST("/sessions", sessionHandler.CreateSession)
		authRequired.GET("/sessions", sessionHandler.ListSessions)
		authRequired.GET("/sessions/:id", sessionHandler.GetSession)
		authRequired.DELETE("/sessions/:id", sessionHandler.DeleteSession)
		authRequired.POST("/sessions/:id/upload", sessionHandler.ConfirmUpload)
		authRequired.POST("/sessions/:id/submit", sessionHandler.SubmitSession)
		authRequired.POST("/sessions/:id/retry", sessionHandler.RetrySession)

		authRequired.GET("/sessions/:id/responses", responseHandler.ListResponses)
		authRequired.PATCH("/sessions/:id/responses/:item_id", responseHandler.OverrideResponse)

		authRequired.GET("/sessions/:id/score", scoringHandler.GetScore)
		authRequired.POST("/sessions/:id/score/recalculate", scoringHandler.RecalculateScore)
		authRequired.GET("/sessions/:id/score/history", scoringHandler.GetScoreHistory)

		authRequired.GET("/sessions/:id/coaching", coachingHandler.GetFeedback)
		authRequired.POST("/sessions/:id/coaching/regenerate", coachingHandler.RegenerateCoaching)
		authRequired.GET("/sessions/:id/report", coachingHandler.GetReport)
	}
}

func (s *Server) Run(addr string) {
	s.log.Infof("Server starting on port %s...", addr)
	if err := s.router.Run(addr); err != nil {
		s.log.Fatalf("Server failed to start: %v", err)
	}
}
