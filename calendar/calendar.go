// Package calendar advances the simulated clock one day at a time and
// dispatches the persisted jobs that fall due on each day.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playliga/engine/models"
)

// Handler consumes one due job. Returning halt stops the loop after the
// current tick completes; later jobs of the same day still run and the day
// still closes normally. A non-nil error aborts the tick immediately.
type Handler func(ctx context.Context, item *models.ActionQueueItem) (halt bool, err error)

// HookFunc runs at the open or close of a tick, before any job is loaded or
// after the last one has been finalized.
type HookFunc func(ctx context.Context, date time.Time) error

// FinalizeFunc runs once per tick with the full set of jobs that were
// dispatched, after all of them succeeded and before the date advances.
type FinalizeFunc func(ctx context.Context, items []*models.ActionQueueItem) error

// Loop is the action queue scheduler. Jobs created while a tick is running
// are not picked up until a later tick loads them: the set of work for a day
// is closed the moment the day starts.
type Loop struct {
	store models.Store
	log   *logrus.Logger

	handlers   map[models.ActionType][]Handler
	inits      []HookFunc
	ends       []HookFunc
	finalizers []FinalizeFunc
}

// New returns a loop with no handlers registered. The loop itself owns the
// bookkeeping ends of a tick: loading due jobs, marking dispatched jobs
// completed, and advancing the profile date.
func New(store models.Store, log *logrus.Logger) *Loop {
	if log == nil {
		log = logrus.New()
	}
	return &Loop{
		store:    store,
		log:      log,
		handlers: map[models.ActionType][]Handler{},
	}
}

// Register adds a handler for a job type. Types may carry several handlers;
// they run in registration order. Hosts register their own types the same
// way the engine registers its own.
func (l *Loop) Register(t models.ActionType, h Handler) {
	l.handlers[t] = append(l.handlers[t], h)
}

// RegisterInit adds a hook that runs at the start of every tick.
func (l *Loop) RegisterInit(h HookFunc) {
	l.inits = append(l.inits, h)
}

// RegisterEnd adds a hook that runs after every successful tick, once the
// date has advanced.
func (l *Loop) RegisterEnd(h HookFunc) {
	l.ends = append(l.ends, h)
}

// RegisterFinalize adds a hook that runs after every job of a tick has been
// dispatched, with the dispatched jobs.
func (l *Loop) RegisterFinalize(f FinalizeFunc) {
	l.finalizers = append(l.finalizers, f)
}

// Start runs ticks until a handler halts, maxIterations days have elapsed,
// or the context is canceled. Days with no due jobs still count as an
// iteration. maxIterations <= 0 runs until halted.
func (l *Loop) Start(ctx context.Context, maxIterations int) error {
	for i := 0; maxIterations <= 0 || i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		halt, err := l.Tick(ctx)
		if err != nil {
			return err
		}
		if halt {
			return nil
		}
	}
	return nil
}

// Tick processes exactly one day: the current profile date. Any error aborts
// the tick before the date advances, so the day is retried in full on the
// next call.
func (l *Loop) Tick(ctx context.Context) (bool, error) {
	profile, err := l.store.FindActiveProfile(ctx)
	if err != nil {
		return false, fmt.Errorf("loading profile: %w", err)
	}
	today := models.DateOnly(profile.CurrentDate)
	log := l.log.WithField("date", today.Format("2006-01-02"))

	for _, hook := range l.inits {
		if err := hook(ctx, today); err != nil {
			return false, fmt.Errorf("init hook: %w", err)
		}
	}

	items, err := l.store.FindDueJobs(ctx, today)
	if err != nil {
		return false, fmt.Errorf("loading due jobs: %w", err)
	}

	var (
		halt       bool
		dispatched []*models.ActionQueueItem
	)
	for _, item := range items {
		if item.Completed {
			continue
		}
		handlers, ok := l.handlers[item.Type]
		if !ok {
			log.WithFields(logrus.Fields{"job": item.ID, "type": item.Type}).
				Warn("no handler registered, skipping")
			continue
		}
		for _, h := range handlers {
			stop, err := h(ctx, item)
			if err != nil {
				return false, fmt.Errorf("job %s (%s): %w", item.ID, item.Type, err)
			}
			if stop {
				halt = true
			}
		}
		dispatched = append(dispatched, item)
	}

	if len(dispatched) > 0 {
		ids := make([]string, len(dispatched))
		for i, item := range dispatched {
			ids[i] = item.ID
		}
		if err := l.store.MarkJobsCompleted(ctx, ids...); err != nil {
			return false, fmt.Errorf("completing jobs: %w", err)
		}
	}
	for _, fin := range l.finalizers {
		if err := fin(ctx, dispatched); err != nil {
			return false, fmt.Errorf("finalize hook: %w", err)
		}
	}

	next := today.AddDate(0, 0, 1)
	if err := l.store.AdvanceProfileDate(ctx, next); err != nil {
		return false, fmt.Errorf("advancing date: %w", err)
	}
	for _, hook := range l.ends {
		if err := hook(ctx, next); err != nil {
			return false, fmt.Errorf("end hook: %w", err)
		}
	}

	log.WithFields(logrus.Fields{"jobs": len(dispatched), "halt": halt}).Debug("tick complete")
	return halt, nil
}
