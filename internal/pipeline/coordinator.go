package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"callscore/internal/models"
	"callscore/internal/reconcile"
	"callscore/internal/repository"
	"callscore/internal/scoring"
	"callscore/internal/statemachine"
)

// Stage identifies one unit of pipeline work for a session. The first three
// correspond to session statuses; coaching runs after completion and never
// changes status.
type Stage string

const (
	StageTranscription Stage = "processing"
	StageAnalysis      Stage = "analyzing"
	StageScoring       Stage = "scoring"
	StageCoaching      Stage = "coaching"
)

// NextStage returns the stage to enqueue after one succeeds.
func NextStage(s Stage) (Stage, bool) {
	switch s {
	case StageTranscription:
		return StageAnalysis, true
	case StageAnalysis:
		return StageScoring, true
	case StageScoring:
		return StageCoaching, true
	default:
		return "", false
	}
}

// StageForStatus maps a failed session status back onto the stage to retry.
func StageForStatus(status models.SessionStatus) (Stage, bool) {
	switch status {
	case models.StatusProcessing:
		return StageTranscription, true
	case models.StatusAnalyzing:
		return StageAnalysis, true
	case models.StatusScoring:
		return StageScoring, true
	default:
		return "", false
	}
}

// Timeouts bounds each external call. Every collaborator call is time-boxed;
// a timeout is a transient failure, never silent success.
type Timeouts struct {
	Storage       time.Duration
	Transcription time.Duration
	Analysis      time.Duration
	Coaching      time.Duration
}

// Coordinator sequences external collaborators through the state machine.
// Advance is safe to invoke redundantly: triggers are delivered at least
// once, so if the target artifact already exists and the state reflects it,
// the call is a no-op.
type Coordinator struct {
	sessions    repository.SessionRepository
	audio       repository.AudioRepository
	transcripts repository.TranscriptRepository
	responses   repository.ResponseRepository
	scores      repository.ScoringRepository
	coachingFB  repository.CoachingRepository
	reports     repository.ReportRepository

	machine    *statemachine.Machine
	taxonomy   TaxonomyProvider
	reconciler *reconcile.Reconciler

	storage     AudioStorage
	transcriber Transcriber
	analyzer    Analyzer
	coach       CoachingGenerator // nil when coaching is disabled

	retry    RetryPolicy
	timeouts Timeouts
	logger   *zap.Logger
	now      func() time.Time
}

// NewCoordinator wires a coordinator. coach may be nil to disable the
// coaching/report stage.
func NewCoordinator(
	sessions repository.SessionRepository,
	audio repository.AudioRepository,
	transcripts repository.TranscriptRepository,
	responses repository.ResponseRepository,
	scores repository.ScoringRepository,
	coachingFB repository.CoachingRepository,
	reports repository.ReportRepository,
	machine *statemachine.Machine,
	taxonomyProvider TaxonomyProvider,
	reconciler *reconcile.Reconciler,
	storage AudioStorage,
	transcriber Transcriber,
	analyzer Analyzer,
	coach CoachingGenerator,
	retry RetryPolicy,
	timeouts Timeouts,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		sessions:    sessions,
		audio:       audio,
		transcripts: transcripts,
		responses:   responses,
		scores:      scores,
		coachingFB:  coachingFB,
		reports:     reports,
		machine:     machine,
		taxonomy:    taxonomyProvider,
		reconciler:  reconciler,
		storage:     storage,
		transcriber: transcriber,
		analyzer:    analyzer,
		coach:       coach,
		retry:       retry,
		timeouts:    timeouts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Advance runs one stage for a session. Exactly one transition may be in
// flight per session: a concurrent caller gets a ConflictError and must try
// again later. Errors other than conflicts and failed preconditions resolve
// to the session's failed state so no failure is silently dropped.
func (c *Coordinator) Advance(ctx context.Context, sessionID int64, stage Stage) error {
	release, err := c.machine.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()

	session, err := c.sessions.GetSessionByID(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %d: %w", sessionID, err)
	}
	if session == nil {
		return fmt.Errorf("session %d not found", sessionID)
	}

	var runErr error
	switch stage {
	case StageTranscription:
		runErr = c.runTranscription(ctx, session)
	case StageAnalysis:
		runErr = c.runAnalysis(ctx, session)
	case StageScoring:
		runErr = c.runScoring(ctx, session)
	case StageCoaching:
		runErr = c.runCoaching(ctx, session, false)
	default:
		return fmt.Errorf("unknown pipeline stage %q", stage)
	}
	if runErr == nil {
		return nil
	}

	var conflict *statemachine.ConflictError
	var precondition *statemachine.PreconditionError
	if errors.As(runErr, &conflict) || errors.As(runErr, &precondition) {
		// Session state is unchanged; the caller decides what to do.
		return runErr
	}

	if failErr := c.machine.Fail(sessionID, models.SessionStatus(stage), classifyRun(runErr), runErr.Error()); failErr != nil {
		c.logger.Error("Failed to record session failure",
			zap.Int64("session_id", sessionID),
			zap.Error(failErr))
	}
	return runErr
}

// Retry re-targets a failed session's stage and returns the stage to enqueue.
func (c *Coordinator) Retry(sessionID int64) (Stage, error) {
	status, err := c.machine.Retry(sessionID)
	if err != nil {
		return "", err
	}
	stage, ok := StageForStatus(status)
	if !ok {
		return "", fmt.Errorf("session %d failed in unretryable stage %s", sessionID, status)
	}
	return stage, nil
}

// Recompute re-derives the scoring snapshot for a session whose response set
// is complete. It never changes session status; completed stays completed.
func (c *Coordinator) Recompute(ctx context.Context, sessionID int64, triggerEvent string) (*models.ScoringResult, error) {
	release, err := c.machine.Acquire(sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := c.sessions.GetSessionByID(sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("session %d not found", sessionID)
	}

	result, err := c.computeScore(sessionID, triggerEvent)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Session rescored",
		zap.Int64("session_id", sessionID),
		zap.Float64("total", result.TotalScore),
		zap.String("band", string(result.RiskBand)),
		zap.String("trigger", triggerEvent))
	return result, nil
}

// RegenerateCoaching rebuilds the coaching and report artifacts for a
// completed session, overwriting any existing ones. Session status is
// untouched.
func (c *Coordinator) RegenerateCoaching(ctx context.Context, sessionID int64) error {
	release, err := c.machine.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()

	session, err := c.sessions.GetSessionByID(sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return fmt.Errorf("session %d not found", sessionID)
	}
	return c.runCoaching(ctx, session, true)
}

func (c *Coordinator) runTranscription(ctx context.Context, session *models.Session) error {
	existing, err := c.transcripts.GetBySession(session.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		c.logger.Info("Transcript already exists, transcription is a no-op",
			zap.Int64("session_id", session.ID))
		return nil
	}

	switch session.Status {
	case models.StatusUploading:
		if err := c.machine.Transition(session.ID, models.StatusUploading, models.StatusProcessing); err != nil {
			return err
		}
	case models.StatusProcessing:
		// Re-entering after a retry or a crashed worker; the artifact is
		// still missing, so the work runs again.
	default:
		return &statemachine.PreconditionError{
			SessionID: session.ID,
			Reason:    fmt.Sprintf("transcription requires a confirmed upload, status is %s", session.Status),
		}
	}

	audio, err := c.audio.GetBySession(session.ID)
	if err != nil {
		return err
	}
	if audio == nil {
		var artifact *AudioArtifact
		retries, err := c.retry.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeouts.Storage)
			defer cancel()
			var callErr error
			artifact, callErr = c.storage.GetArtifact(callCtx, session.ID)
			return callErr
		})
		if err != nil {
			c.logger.Error("Failed to resolve audio artifact",
				zap.Int64("session_id", session.ID),
				zap.Int("retries", retries),
				zap.Error(err))
			return err
		}
		audio = &models.AudioFile{
			SessionID:       session.ID,
			Filename:        artifact.Filename,
			Locator:         artifact.Locator,
			FileSize:        artifact.SizeBytes,
			DurationSeconds: &artifact.DurationSeconds,
			MimeType:        artifact.MimeType,
		}
		if err := c.audio.SaveAudioFile(audio); err != nil {
			return err
		}
	}

	var result *TranscriptionResult
	retries, err := c.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeouts.Transcription)
		defer cancel()
		var callErr error
		result, callErr = c.transcriber.Transcribe(callCtx, audio.Locator)
		return callErr
	})
	if err != nil {
		c.logger.Error("Transcription failed",
			zap.Int64("session_id", session.ID),
			zap.Int("retries", retries),
			zap.Error(err))
		return err
	}

	transcript := &models.Transcript{
		SessionID:     session.ID,
		Text:          result.Text,
		TranscribedAt: c.now(),
	}
	if result.Language != "" {
		transcript.Language = &result.Language
	}
	if result.Duration > 0 {
		transcript.Duration = &result.Duration
	}
	if result.WordCount > 0 {
		transcript.WordCount = &result.WordCount
	}
	if result.RequestID != "" {
		transcript.ProviderReqID = &result.RequestID
	}
	if err := c.transcripts.SaveTranscript(transcript); err != nil {
		return err
	}

	c.logger.Info("Transcript produced",
		zap.Int64("session_id", session.ID),
		zap.Int("retries", retries),
		zap.Int("text_length", len(result.Text)))
	return nil
}

func (c *Coordinator) runAnalysis(ctx context.Context, session *models.Session) error {
	if session.Status == models.StatusCompleted {
		return nil
	}

	tax := c.taxonomy.Current()

	transcript, err := c.transcripts.GetBySession(session.ID)
	if err != nil {
		return err
	}
	if transcript == nil || transcript.Text == "" {
		return &statemachine.PreconditionError{
			SessionID: session.ID,
			Reason:    "analysis requires a non-empty transcript",
		}
	}

	switch session.Status {
	case models.StatusProcessing:
		if err := c.machine.Transition(session.ID, models.StatusProcessing, models.StatusAnalyzing); err != nil {
			return err
		}
	case models.StatusAnalyzing:
		// Re-entering after a retry.
	case models.StatusScoring:
		// Already past analysis.
		return nil
	default:
		return &statemachine.PreconditionError{
			SessionID: session.ID,
			Reason:    fmt.Sprintf("analysis cannot run in status %s", session.Status),
		}
	}

	count, err := c.responses.CountBySession(session.ID)
	if err != nil {
		return err
	}
	if count >= tax.ItemCount() {
		c.logger.Info("Responses already reconciled, analysis is a no-op",
			zap.Int64("session_id", session.ID))
		return nil
	}

	definitions := make([]ItemDefinition, 0, tax.ItemCount())
	for _, item := range tax.ActiveItems() {
		cat, _ := tax.Category(item.CategoryID)
		definitions = append(definitions, ItemDefinition{
			ItemID:     item.ID,
			Category:   cat.Name,
			Title:      item.Title,
			Definition: item.Definition,
		})
	}

	var judgments []models.Judgment
	retries, err := c.retry.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeouts.Analysis)
		defer cancel()
		var callErr error
		judgments, callErr = c.analyzer.Analyze(callCtx, transcript.Text, definitions)
		return callErr
	})
	if err != nil {
		c.logger.Error("Analysis failed",
			zap.Int64("session_id", session.ID),
			zap.Int("retries", retries),
			zap.Error(err))
		return err
	}

	existing, err := c.responses.GetBySession(session.ID)
	if err != nil {
		return err
	}
	reconciled := c.reconciler.Reconcile(session.ID, tax, judgments, existing)
	if err := c.responses.ReplaceForSession(session.ID, reconciled); err != nil {
		return err
	}

	c.logger.Info("Responses reconciled",
		zap.Int64("session_id", session.ID),
		zap.Int("judgments", len(judgments)),
		zap.Int("responses", len(reconciled)))
	return nil
}

func (c *Coordinator) runScoring(ctx context.Context, session *models.Session) error {
	if session.Status == models.StatusCompleted {
		result, err := c.scores.GetBySession(session.ID)
		if err != nil {
			return err
		}
		if result != nil {
			return nil
		}
		return &statemachine.PreconditionError{
			SessionID: session.ID,
			Reason:    "completed session has no scoring result; use recompute",
		}
	}

	tax := c.taxonomy.Current()
	count, err := c.responses.CountBySession(session.ID)
	if err != nil {
		return err
	}
	if count < tax.ItemCount() {
		return &statemachine.PreconditionError{
			SessionID: session.ID,
			Reason:    fmt.Sprintf("scoring requires %d reconciled responses, found %d", tax.ItemCount(), count),
		}
	}

	switch session.Status {
	case models.StatusAnalyzing:
		if err := c.machine.Transition(session.ID, models.StatusAnalyzing, models.StatusScoring); err != nil {
			return err
		}
	case models.StatusScoring:
		// Re-entering after a retry.
	default:
		return &statemachine.PreconditionError{
			SessionID: session.ID,
			Reason:    fmt.Sprintf("scoring cannot run in status %s", session.Status),
		}
	}

	result, err := c.computeScore(session.ID, "pipeline")
	if err != nil {
		return err
	}

	if err := c.machine.Transition(session.ID, models.StatusScoring, models.StatusCompleted); err != nil {
		return err
	}
	if err := c.sessions.SetCompletedAt(session.ID, c.now()); err != nil {
		return err
	}

	c.logger.Info("Session scored",
		zap.Int64("session_id", session.ID),
		zap.Float64("total", result.TotalScore),
		zap.String("band", string(result.RiskBand)))
	return nil
}

// computeScore reads a consistent response snapshot, derives the new scoring
// result, and persists it with the prior total carried into the delta.
func (c *Coordinator) computeScore(sessionID int64, triggerEvent string) (*models.ScoringResult, error) {
	tax := c.taxonomy.Current()

	responses, err := c.responses.GetBySession(sessionID)
	if err != nil {
		return nil, err
	}

	previous, err := c.scores.GetLatestTotal(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := scoring.Score(tax, responses, scoring.Options{
		PreviousTotal: previous,
		Now:           c.now(),
	})
	if err != nil {
		return nil, err
	}
	result.SessionID = sessionID

	if err := c.scores.SaveResult(result, triggerEvent); err != nil {
		return nil, err
	}
	return result, nil
}

// runCoaching produces the coaching feedback and report artifacts. It only
// runs against a completed session and never changes status; failures here
// are logged and surfaced but cannot fail the session.
func (c *Coordinator) runCoaching(ctx context.Context, session *models.Session, force bool) error {
	if c.coach == nil {
		return nil
	}
	if session.Status != models.StatusCompleted {
		return &statemachine.PreconditionError{
			SessionID: session.ID,
			Reason:    fmt.Sprintf("coaching requires a completed session, status is %s", session.Status),
		}
	}

	score, err := c.scores.GetBySession(session.ID)
	if err != nil {
		return err
	}
	if score == nil {
		return &statemachine.PreconditionError{SessionID: session.ID, Reason: "coaching requires a scoring result"}
	}
	responses, err := c.responses.GetBySession(session.ID)
	if err != nil {
		return err
	}

	input := CoachingInput{Session: session, Score: score, Responses: responses}

	feedback, err := c.coachingFB.GetBySession(session.ID)
	if err != nil {
		return err
	}
	if feedback == nil || force {
		var generated *CoachingResult
		retries, err := c.retry.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeouts.Coaching)
			defer cancel()
			var callErr error
			generated, callErr = c.coach.GenerateFeedback(callCtx, input)
			return callErr
		})
		if err != nil {
			c.logger.Error("Coaching generation failed",
				zap.Int64("session_id", session.ID),
				zap.Int("retries", retries),
				zap.Error(err))
			return err
		}
		record := &models.CoachingFeedback{
			SessionID:        session.ID,
			FeedbackText:     generated.FeedbackText,
			Strengths:        mustJSON(generated.Strengths),
			ImprovementAreas: mustJSON(generated.ImprovementAreas),
			ActionItems:      mustJSON(generated.ActionItems),
			GeneratedAt:      c.now(),
		}
		if generated.AudioLocator != "" {
			record.AudioLocator = &generated.AudioLocator
		}
		if generated.RequestID != "" {
			record.ProviderReqID = &generated.RequestID
		}
		if err := c.coachingFB.SaveFeedback(record); err != nil {
			return err
		}
	}

	report, err := c.reports.GetBySession(session.ID)
	if err != nil {
		return err
	}
	if report == nil || force {
		var rendered *ReportResult
		retries, err := c.retry.Do(ctx, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeouts.Coaching)
			defer cancel()
			var callErr error
			rendered, callErr = c.coach.GenerateReport(callCtx, input)
			return callErr
		})
		if err != nil {
			c.logger.Error("Report generation failed",
				zap.Int64("session_id", session.ID),
				zap.Int("retries", retries),
				zap.Error(err))
			return err
		}
		if err := c.reports.SaveReport(&models.Report{
			SessionID:   session.ID,
			Locator:     rendered.Locator,
			Format:      rendered.Format,
			GeneratedAt: c.now(),
		}); err != nil {
			return err
		}
	}

	return nil
}

// classifyRun extends the external-error classification with the pure
// computation failure modes.
func classifyRun(err error) string {
	var verr *scoring.ValidationError
	if errors.As(err, &verr) {
		return ClassValidation
	}
	return Classify(err)
}

func mustJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
