package statemachine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"callscore/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions map[int64]*models.Session
}

func newFakeStore(sessions ...*models.Session) *fakeStore {
	s := &fakeStore{sessions: make(map[int64]*models.Session)}
	for _, session := range sessions {
		s.sessions[session.ID] = session
	}
	return s
}

func (s *fakeStore) GetSessionByID(id int64) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *fakeStore) UpdateStatusIf(id int64, from, to models.SessionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.Status != from {
		return false, nil
	}
	session.Status = to
	return true, nil
}

func (s *fakeStore) MarkFailed(id int64, stage, class, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.Status == models.StatusCompleted || session.Status == models.StatusFailed {
		return false, nil
	}
	session.Status = models.StatusFailed
	session.FailedStage = &stage
	session.FailureClass = &class
	session.FailureMessage = &message
	return true, nil
}

func (s *fakeStore) ResetForRetry(id int64, to models.SessionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || session.Status != models.StatusFailed {
		return false, nil
	}
	session.Status = to
	session.FailedStage = nil
	session.FailureClass = nil
	session.FailureMessage = nil
	return true, nil
}

func TestTransitionFollowsPipelineOrder(t *testing.T) {
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusDraft})
	machine := NewMachine(store, zap.NewNop())

	require.NoError(t, machine.Transition(1, models.StatusDraft, models.StatusUploading))

	session, _ := store.GetSessionByID(1)
	assert.Equal(t, models.StatusUploading, session.Status)
}

func TestTransitionRejectsSkippedStage(t *testing.T) {
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusDraft})
	machine := NewMachine(store, zap.NewNop())

	err := machine.Transition(1, models.StatusDraft, models.StatusProcessing)
	require.Error(t, err)

	session, _ := store.GetSessionByID(1)
	assert.Equal(t, models.StatusDraft, session.Status)
}

func TestTransitionLosesRaceAsConflict(t *testing.T) {
	// The stored status already moved on, so the compare-and-set misses.
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusAnalyzing})
	machine := NewMachine(store, zap.NewNop())

	err := machine.Transition(1, models.StatusProcessing, models.StatusAnalyzing)
	require.Error(t, err)
	var conflict *ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestAcquireIsExclusivePerSession(t *testing.T) {
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusProcessing})
	machine := NewMachine(store, zap.NewNop())

	release, err := machine.Acquire(1)
	require.NoError(t, err)

	_, err = machine.Acquire(1)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	// A different session is unaffected.
	releaseOther, err := machine.Acquire(2)
	require.NoError(t, err)
	releaseOther()

	release()
	release2, err := machine.Acquire(1)
	require.NoError(t, err)
	release2()
}

func TestConcurrentAcquireAdmitsExactlyOne(t *testing.T) {
	store := newFakeStore(&models.Session{ID: 7, Status: models.StatusProcessing})
	machine := NewMachine(store, zap.NewNop())

	const callers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	var conflicts int
	var releases []func()

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := machine.Acquire(7)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				conflicts++
				return
			}
			// Held until every goroutine has attempted.
			releases = append(releases, release)
		}()
	}
	wg.Wait()

	assert.Len(t, releases, 1)
	assert.Equal(t, callers-1, conflicts)
	for _, release := range releases {
		release()
	}
}

func TestFailRecordsStageAndClass(t *testing.T) {
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusProcessing})
	machine := NewMachine(store, zap.NewNop())

	require.NoError(t, machine.Fail(1, models.StatusProcessing, "transient_external_error", "timeout"))

	session, _ := store.GetSessionByID(1)
	assert.Equal(t, models.StatusFailed, session.Status)
	require.NotNil(t, session.FailedStage)
	assert.Equal(t, string(models.StatusProcessing), *session.FailedStage)
	require.NotNil(t, session.FailureClass)
	assert.Equal(t, "transient_external_error", *session.FailureClass)
}

func TestFailLeavesCompletedAlone(t *testing.T) {
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusCompleted})
	machine := NewMachine(store, zap.NewNop())

	require.NoError(t, machine.Fail(1, models.StatusScoring, "internal_error", "late failure"))

	session, _ := store.GetSessionByID(1)
	assert.Equal(t, models.StatusCompleted, session.Status)
	assert.Nil(t, session.FailedStage)
}

func TestRetryResetsToFailedStage(t *testing.T) {
	stage := string(models.StatusAnalyzing)
	class := "transient_external_error"
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusFailed, FailedStage: &stage, FailureClass: &class})
	machine := NewMachine(store, zap.NewNop())

	target, err := machine.Retry(1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnalyzing, target)

	session, _ := store.GetSessionByID(1)
	assert.Equal(t, models.StatusAnalyzing, session.Status)
	assert.Nil(t, session.FailedStage)
	assert.Nil(t, session.FailureClass)
}

func TestRetryRequiresFailedSession(t *testing.T) {
	store := newFakeStore(&models.Session{ID: 1, Status: models.StatusProcessing})
	machine := NewMachine(store, zap.NewNop())

	_, err := machine.Retry(1)
	var precondition *PreconditionError
	require.ErrorAs(t, err, &precondition)
}

func TestNextAndPrevWalkThePipeline(t *testing.T) {
	next, ok := Next(models.StatusDraft)
	require.True(t, ok)
	assert.Equal(t, models.StatusUploading, next)

	_, ok = Next(models.StatusCompleted)
	assert.False(t, ok)

	prev, ok := Prev(models.StatusScoring)
	require.True(t, ok)
	assert.Equal(t, models.StatusAnalyzing, prev)

	_, ok = Rank(models.StatusFailed)
	assert.False(t, ok)
}
