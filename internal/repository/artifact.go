package repository

import (
	"database/sql"

	"callscore/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type AudioRepository interface {
	SaveAudioFile(audio *models.AudioFile) error
	GetBySession(sessionID int64) (*models.AudioFile, error)
}

type TranscriptRepository interface {
	SaveTranscript(transcript *models.Transcript) error
	GetBySession(sessionID int64) (*models.Transcript, error)
}

type audioRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAudioRepository(db *sqlx.DB, logger *zap.Logger) AudioRepository {
	return &audioRepository{db: db, logger: logger}
}

func (r *audioRepository) SaveAudioFile(audio *models.AudioFile) error {
	query := `INSERT INTO audio_files (session_id, filename, locator, file_size, duration_seconds, mime_type)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          ON CONFLICT (session_id) DO UPDATE
	          SET filename = EXCLUDED.filename,
	              locator = EXCLUDED.locator,
	              file_size = EXCLUDED.file_size,
	              duration_seconds = EXCLUDED.duration_seconds,
	              mime_type = EXCLUDED.mime_type
	          RETURNING id, created_at`
	return r.db.QueryRowx(query, audio.SessionID, audio.Filename, audio.Locator,
		audio.FileSize, audio.DurationSeconds, audio.MimeType).Scan(&audio.ID, &audio.CreatedAt)
}

func (r *audioRepository) GetBySession(sessionID int64) (*models.AudioFile, error) {
	var audio models.AudioFile
	query := `SELECT id, session_id, filename, locator, file_size, duration_seconds, mime_type, created_at
	          FROM audio_files WHERE session_id = $1`
	err := r.db.Get(&audio, query, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &audio, nil
}

type transcriptRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewTranscriptRepository(db *sqlx.DB, logger *zap.Logger) TranscriptRepository {
	return &transcriptRepository{db: db, logger: logger}
}

func (r *transcriptRepository) SaveTranscript(transcript *models.Transcript) error {
	query := `INSERT INTO transcripts (session_id, text, language, duration, word_count, provider_request_id, transcribed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          ON CONFLICT (session_id) DO NOTHING
	          RETURNING id`
	err := r.db.QueryRowx(query, transcript.SessionID, transcript.Text, transcript.Language,
		transcript.Duration, transcript.WordCount, transcript.ProviderReqID, transcript.TranscribedAt).
		Scan(&transcript.ID)
	if err == sql.ErrNoRows {
		// A transcript already exists; redundant triggers keep the first one.
		existing, getErr := r.GetBySession(transcript.SessionID)
		if getErr != nil {
			return getErr
		}
		if existing != nil {
			*transcript = *existing
		}
		return nil
	}
	return err
}

func (r *transcriptRepository) GetBySession(sessionID int64) (*models.Transcript, error) {
	var transcript models.Transcript
	query := `SELECT id, session_id, text, language, duration, word_count, provider_request_id, transcribed_at
	          FROM transcripts WHERE session_id = $1`
	err := r.db.Get(&transcript, query, sessionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &transcript, nil
}
