package storm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playliga/engine/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "engine.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var day = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestCompetitionRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec := &models.CompetitionRecord{Kind: models.KindLeague, Season: 1, Data: []byte(`{"version":1}`)}
	require.NoError(t, store.SaveCompetition(ctx, rec))
	assert.NotZero(t, rec.ID, "ids are assigned on first save")

	loaded, err := store.FindCompetitionByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Kind, loaded.Kind)
	assert.JSONEq(t, `{"version":1}`, string(loaded.Data))

	loaded.Done = true
	require.NoError(t, store.SaveCompetition(ctx, loaded))
	again, err := store.FindCompetitionByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, again.Done)

	_, err = store.FindCompetitionByID(ctx, 999)
	assert.ErrorIs(t, err, models.ErrCompetitionNotFound)
}

func TestJobQueue(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateJobs(ctx,
		&models.ActionQueueItem{ID: "a", Type: models.ActionMatchdayNPC, ActionDate: day.Add(13 * time.Hour)},
		&models.ActionQueueItem{ID: "b", Type: models.ActionMatchdayNPC, ActionDate: day},
		&models.ActionQueueItem{ID: "c", Type: models.ActionEmailSend, ActionDate: day.AddDate(0, 0, 1)},
	))

	// dates are keyed by calendar day: the 13:00 job is due on the same day
	due, err := store.FindDueJobs(ctx, day)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "a", due[0].ID)
	assert.Equal(t, "b", due[1].ID)

	require.NoError(t, store.MarkJobsCompleted(ctx, "a"))
	due, err = store.FindDueJobs(ctx, day)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "b", due[0].ID)

	due, err = store.FindDueJobs(ctx, day.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMatchResultsByDate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMatchResult(ctx, &models.MatchResult{
		ID: "r1", CompID: 1, Date: day,
		Payload: models.MatchdayPayload{CompID: 1, Team1ID: 10, Team2ID: 11},
	}))
	require.NoError(t, store.SaveMatchResult(ctx, &models.MatchResult{
		ID: "r2", CompID: 2, Date: day.AddDate(0, 0, 1),
	}))

	results, err := store.FindMatchResultsByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "r1", results[0].ID)
	assert.Equal(t, 10, results[0].Payload.Team1ID)
}

func TestProfileLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.FindActiveProfile(ctx)
	assert.ErrorIs(t, err, models.ErrProfileNotFound)

	require.NoError(t, store.SaveProfile(ctx, &models.Profile{ID: 1, TeamID: 7, CurrentDate: day.Add(9 * time.Hour)}))

	profile, err := store.FindActiveProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, profile.TeamID)
	assert.Equal(t, day, profile.CurrentDate, "dates are stored truncated to midnight")

	require.NoError(t, store.AdvanceProfileDate(ctx, day.AddDate(0, 0, 1)))
	profile, err = store.FindActiveProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, day.AddDate(0, 0, 1), profile.CurrentDate)
}
