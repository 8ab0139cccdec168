package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playliga/engine/calendar"
	"github.com/playliga/engine/league"
	"github.com/playliga/engine/models"
)

func TestStartNextSeasonResetsAndRestarts(t *testing.T) {
	store := newMemStore(kickoff, 0)
	rec := seedLeague(t, store, true)
	orch := New(store, homeOracle{}, nil, testSettings(), testLogger())

	require.NoError(t, orch.Start(context.Background(), rec.ID))
	require.NoError(t, orch.StartNextSeason(context.Background(), rec.ID))

	saved, err := store.FindCompetitionByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Season)
	assert.True(t, saved.Started)
	assert.False(t, saved.Done)

	restored, err := league.DecodeLeague(saved.Data)
	require.NoError(t, err)
	div := restored.Divisions[0]
	assert.True(t, div.Started(), "fresh season starts immediately")
	assert.False(t, div.PostSeasonStarted())
	assert.Len(t, div.Competitors, 4)
	for _, comp := range div.Competitors {
		assert.Equal(t, 0, comp.Tier, "tiers re-sync to division index")
	}
}

func TestSeasonRolloverThroughCalendar(t *testing.T) {
	// viewpoint team set, so the rollover also queues the reminder email
	store := newMemStore(kickoff, 1)
	rec := seedLeague(t, store, true)
	mailer := &recordingMailer{}

	settings := testSettings()
	// anchor the next season just after the current one finishes so the
	// loop can reach it
	settings.PreseasonMonth = time.July
	settings.PreseasonDay = 15
	settings.EmailLeadDays = 7
	orch := New(store, homeOracle{}, mailer, settings, testLogger())

	loop := calendar.New(store, testLogger())
	orch.RegisterHandlers(loop, true)
	require.NoError(t, orch.ScheduleCompetitionStart(context.Background(), rec.ID, kickoff))

	// season one ends June 29; reminder July 8; rollover July 15
	require.NoError(t, loop.Start(context.Background(), 46))

	saved, err := store.FindCompetitionByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Season)
	assert.True(t, saved.Started)
	assert.False(t, saved.Done)

	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	require.Len(t, mailer.emails, 1)
	assert.Equal(t, 1, mailer.emails[0].To)

	// the new season's matchdays are already queued
	pending := len(store.pendingJobs(models.ActionMatchdayNPC)) + len(store.pendingJobs(models.ActionMatchdayUser))
	assert.Equal(t, 6, pending)
}

func TestNextSeasonStartDate(t *testing.T) {
	orch := New(newMemStore(kickoff, 0), homeOracle{}, nil, testSettings(), testLogger())

	// before the anchor: same year
	got := orch.NextSeasonStartDate(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), got)

	// on the anchor: next year, the date must be strictly in the future
	got = orch.NextSeasonStartDate(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), got)
}
