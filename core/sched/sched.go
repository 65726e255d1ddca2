package sched

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrConflictingSchedule is returned when a schedule is registered under an
// id that is already taken and the conflict policy is ErrorOnDuplicate.
var ErrConflictingSchedule = errors.New("conflicting schedule")

// ConflictPolicy decides what happens when a schedule id is already taken.
type ConflictPolicy int

const (
	// Replace cancels the existing schedule and installs the new one.
	Replace ConflictPolicy = iota
	// ErrorOnDuplicate rejects the registration with ErrConflictingSchedule.
	ErrorOnDuplicate
	// Skip keeps the existing schedule and drops the new one.
	Skip
)

// Task is a callback fired by the scheduler. The context is cancelled when
// the schedule is replaced or the scheduler stops.
type Task func(ctx context.Context)

// Trigger yields the instants a schedule fires at. Next returns false when
// the schedule is exhausted. Triggers are owned by a single schedule and
// may keep state.
type Trigger interface {
	Next(now time.Time) (time.Time, bool)
}

// DateTrigger fires exactly once. A past instant fires immediately.
type DateTrigger struct {
	at    time.Time
	fired bool
}

// NewDateTrigger creates a one-shot trigger for the given instant.
func NewDateTrigger(at time.Time) *DateTrigger {
	return &DateTrigger{at: at}
}

func (t *DateTrigger) Next(now time.Time) (time.Time, bool) {
	if t.fired {
		return time.Time{}, false
	}
	t.fired = true
	if t.at.Before(now) {
		return now, true
	}
	return t.at, true
}

// IntervalTrigger fires at a fixed rate, first fire one interval from now.
type IntervalTrigger struct {
	every time.Duration
}

// NewIntervalTrigger creates a fixed-rate trigger.
func NewIntervalTrigger(every time.Duration) *IntervalTrigger {
	return &IntervalTrigger{every: every}
}

func (t *IntervalTrigger) Next(now time.Time) (time.Time, bool) {
	return now.Add(t.every), true
}

// Scheduler runs named deferred and recurring tasks in-process. One task
// failing or panicking never affects sibling schedules.
type Scheduler struct {
	logger *zap.Logger

	mu        sync.Mutex
	schedules map[string]*schedule

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

type schedule struct {
	id     string
	cancel context.CancelFunc
}

// New creates a started scheduler.
func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:    logger,
		schedules: make(map[string]*schedule),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// AddSchedule registers a task under id. An empty id gets a generated one.
// The returned id identifies the schedule for later conflicts.
func (s *Scheduler) AddSchedule(task Task, trigger Trigger, id string, policy ConflictPolicy) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.schedules[id]; ok {
		switch policy {
		case ErrorOnDuplicate:
			return "", fmt.Errorf("schedule %q: %w", id, ErrConflictingSchedule)
		case Skip:
			return id, nil
		case Replace:
			existing.cancel()
		}
	}

	ctx, cancel := context.WithCancel(s.ctx)
	sc := &schedule{id: id, cancel: cancel}
	s.schedules[id] = sc

	s.wg.Add(1)
	go s.run(ctx, sc, task, trigger)

	return id, nil
}

func (s *Scheduler) run(ctx context.Context, sc *schedule, task Task, trigger Trigger) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if s.schedules[sc.id] == sc {
			delete(s.schedules, sc.id)
		}
		s.mu.Unlock()
	}()

	for {
		next, ok := trigger.Next(time.Now())
		if !ok {
			return
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.fire(ctx, sc.id, task)
	}
}

func (s *Scheduler) fire(ctx context.Context, id string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled task panicked",
				zap.String("schedule_id", id),
				zap.Any("panic", r))
		}
	}()
	task(ctx)
}

// Stop cancels all schedules and releases WaitUntilStopped callers.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		close(s.done)
	})
}

// WaitUntilStopped blocks until Stop is called or the context is cancelled.
// Context cancellation stops the scheduler and returns the context's error.
func (s *Scheduler) WaitUntilStopped(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		s.Stop()
		s.wg.Wait()
		return ctx.Err()
	}
}
