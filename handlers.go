package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playliga/engine/calendar"
	"github.com/playliga/engine/models"
)

// RegisterHandlers wires the orchestrator's job handlers into the scheduler.
// With autoPlay the viewpoint team's matches are simulated like any NPC
// match; without it they halt the loop so the host can play them and save a
// result before ticking again. Today's results are recorded in a finalize
// hook, after every matchday job of the day has run.
//
// Hosts register their own types (transfers, and anything else they own) on
// the same loop.
func (o *Orchestrator) RegisterHandlers(loop *calendar.Loop, autoPlay bool) {
	loop.Register(models.ActionCompetitionStart, o.handleCompetitionStart)
	loop.Register(models.ActionSeasonStart, o.handleSeasonStart)
	loop.Register(models.ActionMatchdayNPC, o.handleMatchdayNPC)
	if autoPlay {
		loop.Register(models.ActionMatchdayUser, o.handleMatchdayNPC)
	} else {
		loop.Register(models.ActionMatchdayUser, o.handleMatchdayUser)
	}
	loop.Register(models.ActionEmailSend, o.handleEmail)
	loop.RegisterFinalize(func(ctx context.Context, _ []*models.ActionQueueItem) error {
		return o.RecordTodaysResults(ctx)
	})
}

func (o *Orchestrator) handleCompetitionStart(ctx context.Context, item *models.ActionQueueItem) (bool, error) {
	var p startPayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return false, fmt.Errorf("start payload: %w", err)
	}
	return false, o.Start(ctx, p.CompID)
}

func (o *Orchestrator) handleSeasonStart(ctx context.Context, item *models.ActionQueueItem) (bool, error) {
	var p startPayload
	if err := json.Unmarshal(item.Payload, &p); err != nil {
		return false, fmt.Errorf("season payload: %w", err)
	}
	return false, o.StartNextSeason(ctx, p.CompID)
}

func (o *Orchestrator) handleMatchdayNPC(ctx context.Context, item *models.ActionQueueItem) (bool, error) {
	return false, o.SimMatchday(ctx, item)
}

// handleMatchdayUser halts the clock. The match stays unrecorded until the
// host persists a result for it; the job itself is still marked completed,
// so the host must do so before resuming the loop.
func (o *Orchestrator) handleMatchdayUser(ctx context.Context, item *models.ActionQueueItem) (bool, error) {
	return true, nil
}

func (o *Orchestrator) handleEmail(ctx context.Context, item *models.ActionQueueItem) (bool, error) {
	if o.mailer == nil {
		return false, nil
	}
	var email models.EmailPayload
	if err := json.Unmarshal(item.Payload, &email); err != nil {
		return false, fmt.Errorf("email payload: %w", err)
	}
	return false, o.mailer.Deliver(ctx, email)
}
