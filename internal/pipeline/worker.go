package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callscore/internal/statemachine"
)

// Trigger asks the pipeline to run one stage for one session. Delivery is
// at-least-once: stages are idempotent and duplicates collapse into no-ops or
// conflicts.
type Trigger struct {
	ID        uuid.UUID
	SessionID int64
	Stage     Stage
}

// Queue buffers pipeline triggers between the HTTP layer and the workers.
type Queue struct {
	ch     chan Trigger
	logger *zap.Logger
}

// NewQueue creates a trigger queue with the given buffer size.
func NewQueue(size int, logger *zap.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		ch:     make(chan Trigger, size),
		logger: logger,
	}
}

// Enqueue submits a stage trigger for a session. It never blocks a caller:
// when the buffer is full the trigger is dropped and reported, and the
// session stays where it is until retried.
func (q *Queue) Enqueue(sessionID int64, stage Stage) (uuid.UUID, error) {
	trigger := Trigger{ID: uuid.New(), SessionID: sessionID, Stage: stage}
	select {
	case q.ch <- trigger:
		q.logger.Debug("Trigger enqueued",
			zap.String("trigger_id", trigger.ID.String()),
			zap.Int64("session_id", sessionID),
			zap.String("stage", string(stage)))
		return trigger.ID, nil
	default:
		q.logger.Error("Trigger queue full, dropping trigger",
			zap.Int64("session_id", sessionID),
			zap.String("stage", string(stage)))
		return uuid.Nil, errors.New("pipeline queue is full")
	}
}

// Worker drains the trigger queue and drives the coordinator. After a stage
// succeeds it enqueues the successor, so one submit trigger carries a session
// through to completed.
type Worker struct {
	queue       *Queue
	coordinator *Coordinator
	workers     int
	logger      *zap.Logger
}

// NewWorker creates a worker pool over the queue.
func NewWorker(queue *Queue, coordinator *Coordinator, workers int, logger *zap.Logger) *Worker {
	if workers <= 0 {
		workers = 1
	}
	return &Worker{
		queue:       queue,
		coordinator: coordinator,
		workers:     workers,
		logger:      logger,
	}
}

// Run starts the pool and blocks until the context is cancelled and all
// in-flight triggers have resolved.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("Pipeline workers started", zap.Int("workers", w.workers))

	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case trigger := <-w.queue.ch:
					w.handle(ctx, trigger)
				}
			}
		}()
	}

	wg.Wait()
	w.logger.Info("Pipeline workers stopped")
}

func (w *Worker) handle(ctx context.Context, trigger Trigger) {
	err := w.coordinator.Advance(ctx, trigger.SessionID, trigger.Stage)
	if err != nil {
		var conflict *statemachine.ConflictError
		if errors.As(err, &conflict) {
			// Another worker holds this session; the winner continues the
			// chain, so the duplicate is dropped.
			w.logger.Debug("Trigger dropped, session transition in flight",
				zap.String("trigger_id", trigger.ID.String()),
				zap.Int64("session_id", trigger.SessionID),
				zap.String("stage", string(trigger.Stage)))
			return
		}
		var precondition *statemachine.PreconditionError
		if errors.As(err, &precondition) {
			w.logger.Warn("Trigger rejected, stage precondition not met",
				zap.String("trigger_id", trigger.ID.String()),
				zap.Int64("session_id", trigger.SessionID),
				zap.String("stage", string(trigger.Stage)),
				zap.String("reason", precondition.Reason))
			return
		}
		w.logger.Error("Pipeline stage failed",
			zap.String("trigger_id", trigger.ID.String()),
			zap.Int64("session_id", trigger.SessionID),
			zap.String("stage", string(trigger.Stage)),
			zap.Error(err))
		return
	}

	next, ok := NextStage(trigger.Stage)
	if !ok {
		return
	}
	if _, err := w.queue.Enqueue(trigger.SessionID, next); err != nil {
		w.logger.Error("Failed to enqueue successor stage",
			zap.Int64("session_id", trigger.SessionID),
			zap.String("stage", string(next)),
			zap.Error(err))
	}
}
