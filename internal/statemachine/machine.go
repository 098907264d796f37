package statemachine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"callscore/internal/models"
)

// Store is the session persistence the machine drives. All status writes go
// through optimistic compare-and-set updates so two workers can never both
// win the same transition.
type Store interface {
	GetSessionByID(id int64) (*models.Session, error)
	UpdateStatusIf(id int64, from, to models.SessionStatus) (bool, error)
	MarkFailed(id int64, stage, class, message string) (bool, error)
	ResetForRetry(id int64, to models.SessionStatus) (bool, error)
}

// pipelineOrder is the linear stage graph. failed is reachable from any
// non-terminal state and is handled separately.
var pipelineOrder = []models.SessionStatus{
	models.StatusDraft,
	models.StatusUploading,
	models.StatusProcessing,
	models.StatusAnalyzing,
	models.StatusScoring,
	models.StatusCompleted,
}

var statusRank = func() map[models.SessionStatus]int {
	m := make(map[models.SessionStatus]int, len(pipelineOrder))
	for i, s := range pipelineOrder {
		m[s] = i
	}
	return m
}()

// Next returns the successor of a pipeline state.
func Next(s models.SessionStatus) (models.SessionStatus, bool) {
	rank, ok := statusRank[s]
	if !ok || rank+1 >= len(pipelineOrder) {
		return "", false
	}
	return pipelineOrder[rank+1], true
}

// Prev returns the predecessor of a pipeline state.
func Prev(s models.SessionStatus) (models.SessionStatus, bool) {
	rank, ok := statusRank[s]
	if !ok || rank == 0 {
		return "", false
	}
	return pipelineOrder[rank-1], true
}

// Rank orders pipeline states; failed has no rank.
func Rank(s models.SessionStatus) (int, bool) {
	r, ok := statusRank[s]
	return r, ok
}

// Machine enforces the session lifecycle: monotonic transitions along the
// stage graph, at most one in-flight transition per session, failed reachable
// from any non-terminal state, and retry re-targeting the failed stage.
type Machine struct {
	store  Store
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewMachine creates a state machine over the given store.
func NewMachine(store Store, logger *zap.Logger) *Machine {
	return &Machine{
		store:    store,
		logger:   logger,
		inFlight: make(map[int64]struct{}),
	}
}

// Acquire claims the session's single in-flight transition slot. Callers must
// invoke the returned release function when the transition resolves. A second
// concurrent caller is rejected with a ConflictError rather than racing a
// duplicate external call.
func (m *Machine) Acquire(sessionID int64) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.inFlight[sessionID]; held {
		return nil, &ConflictError{SessionID: sessionID}
	}
	m.inFlight[sessionID] = struct{}{}
	return func() {
		m.mu.Lock()
		delete(m.inFlight, sessionID)
		m.mu.Unlock()
	}, nil
}

// Transition advances a session from one pipeline state to its successor.
// The write is a compare-and-set; losing the race surfaces as a conflict, not
// a silent double-advance.
func (m *Machine) Transition(sessionID int64, from, to models.SessionStatus) error {
	next, ok := Next(from)
	if !ok || next != to {
		return fmt.Errorf("illegal transition %s -> %s for session %d", from, to, sessionID)
	}

	updated, err := m.store.UpdateStatusIf(sessionID, from, to)
	if err != nil {
		return fmt.Errorf("failed to update session %d status: %w", sessionID, err)
	}
	if !updated {
		return &ConflictError{SessionID: sessionID}
	}

	m.logger.Info("Session transitioned",
		zap.Int64("session_id", sessionID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

// Fail drops a session to failed, recording the stage that raised the error
// along with its classification. Completed and already-failed sessions are
// left alone.
func (m *Machine) Fail(sessionID int64, stage models.SessionStatus, class, message string) error {
	updated, err := m.store.MarkFailed(sessionID, string(stage), class, message)
	if err != nil {
		return fmt.Errorf("failed to mark session %d failed: %w", sessionID, err)
	}
	if !updated {
		m.logger.Warn("Session already terminal, failure not recorded",
			zap.Int64("session_id", sessionID),
			zap.String("stage", string(stage)))
		return nil
	}

	m.logger.Warn("Session failed",
		zap.Int64("session_id", sessionID),
		zap.String("stage", string(stage)),
		zap.String("class", class),
		zap.String("message", message))
	return nil
}

// Retry moves a failed session back to the stage that raised the failure and
// returns that stage so the caller can re-enqueue it.
func (m *Machine) Retry(sessionID int64) (models.SessionStatus, error) {
	session, err := m.store.GetSessionByID(sessionID)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", fmt.Errorf("session %d not found", sessionID)
	}
	if session.Status != models.StatusFailed {
		return "", &PreconditionError{
			SessionID: sessionID,
			Reason:    fmt.Sprintf("retry requires a failed session, status is %s", session.Status),
		}
	}
	if session.FailedStage == nil {
		return "", &PreconditionError{SessionID: sessionID, Reason: "failed session has no recorded stage"}
	}

	target := models.SessionStatus(*session.FailedStage)
	if _, ok := Rank(target); !ok {
		return "", fmt.Errorf("session %d recorded unknown failed stage %q", sessionID, target)
	}

	updated, err := m.store.ResetForRetry(sessionID, target)
	if err != nil {
		return "", fmt.Errorf("failed to reset session %d for retry: %w", sessionID, err)
	}
	if !updated {
		return "", &ConflictError{SessionID: sessionID}
	}

	m.logger.Info("Session reset for retry",
		zap.Int64("session_id", sessionID),
		zap.String("stage", string(target)))
	return target, nil
}
