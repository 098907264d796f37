package repository

import (
	"database/sql"

	"callscore/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type CoachingRepository interface {
	SaveFeedback(feedback *models.CoachingFeedback) error
	GetBySession(sessionID int64) (*models.CoachingFeedback, error)
}

type ReportRepository interface {
	SaveReport(report *models.Report) error
	GetBySession(sessionID int64) (*models.Report, error)
}

type coachingRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewCoachingRepository(db *sqlx.DB, logger *zap.Logger) CoachingRepository {
	return &coachingRepository{db: db, logger: logger}
}

func (r *coachingRepository) SaveFeedback(feedback *models.CoachingFeedback) error {
	query := `INSERT INTO coaching_feedback (session_id, feedback_text, strengths, improvement_areas,
	              action_items, audio_locator, provider_request_id, generated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (session_id) DO UPDATE
	          SET feedback_text = EXCLUDED.feedback_text,
	              strengths = EXCLUDED.strengths,
	              improvement_areas = EXCLUDED.improvement_areas,
	              action_items = EXCLUDED.action_items,
	              audio_locator = EXCLUDED.audio_locator,
	              provider_request_id = EXCLUDED.provider_request_id,
	              generated_at = EXCLUDED.generated_at
	          RETURNING id`
	return r.db.QueryRowx(query, feedback.SessionID, feedback.FeedbackText, feedback.Strengths,
		feedback.ImprovementAreas, feedback.ActionItems, feedback.AudioLocator,
		feedback.ProviderReqID, feedback.GeneratedAt).Scan(&feedback.ID)
}

func (r *coachingRepository) GetBySession(sessionID int64) (*models.CoachingFeedback, error) {
	var feedback models.CoachingFeedback
	query := `SELECT id, session_id, feedback_text, strengths, improvement_areas, action_items,
	              audio_locator, provider_request_id, generated_at
	          FROM coaching_feedback WHERE session_id = $1`
	err := r.db.Get(&feedback, query, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &feedback, nil
}

type reportRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewReportRepository(db *sqlx.DB, logger *zap.Logger) ReportRepository {
	return &reportRepository{db: db, logger: logger}
}

func (r *reportRepository) SaveReport(report *models.Report) error {
	query := `INSERT INTO reports (session_id, locator, format, generated_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (session_id) DO UPDATE
	          SET locator = EXCLUDED.locator,
	              format = EXCLUDED.format,
	              generated_at = EXCLUDED.generated_at
	          RETURNING id`
	return r.db.QueryRowx(query, report.SessionID, report.Locator, report.Format, report.GeneratedAt).
		Scan(&report.ID)
}

func (r *reportRepository) GetBySession(sessionID int64) (*models.Report, error) {
	var report models.Report
	query := `SELECT id, session_id, locator, format, generated_at FROM reports WHERE session_id = $1`
	err := r.db.Get(&report, query, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}
