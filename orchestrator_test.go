package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playliga/engine/calendar"
	"github.com/playliga/engine/league"
	"github.com/playliga/engine/models"
)

// memStore is an in-memory models.Store for orchestrator tests.
type memStore struct {
	mu           sync.Mutex
	nextCompID   int
	competitions map[int]*models.CompetitionRecord
	jobs         []*models.ActionQueueItem
	results      []*models.MatchResult
	profile      models.Profile
}

func newMemStore(start time.Time, teamID int) *memStore {
	return &memStore{
		competitions: map[int]*models.CompetitionRecord{},
		profile:      models.Profile{ID: 1, TeamID: teamID, CurrentDate: models.DateOnly(start)},
	}
}

func (s *memStore) FindCompetitionByID(_ context.Context, id int) (*models.CompetitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.competitions[id]
	if !ok {
		return nil, models.ErrCompetitionNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *memStore) SaveCompetition(_ context.Context, comp *models.CompetitionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if comp.ID == 0 {
		s.nextCompID++
		comp.ID = s.nextCompID
	}
	copied := *comp
	s.competitions[comp.ID] = &copied
	return nil
}

func (s *memStore) CreateJobs(_ context.Context, items ...*models.ActionQueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		copied := *item
		copied.ActionDate = models.DateOnly(copied.ActionDate)
		s.jobs = append(s.jobs, &copied)
	}
	return nil
}

func (s *memStore) FindDueJobs(_ context.Context, date time.Time) ([]*models.ActionQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*models.ActionQueueItem
	for _, job := range s.jobs {
		if !job.Completed && job.ActionDate.Equal(models.DateOnly(date)) {
			copied := *job
			due = append(due, &copied)
		}
	}
	return due, nil
}

func (s *memStore) MarkJobsCompleted(_ context.Context, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		for _, job := range s.jobs {
			if job.ID == id {
				job.Completed = true
			}
		}
	}
	return nil
}

func (s *memStore) SaveMatchResult(_ context.Context, result *models.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *result
	s.results = append(s.results, &copied)
	return nil
}

func (s *memStore) FindMatchResultsByDate(_ context.Context, date time.Time) ([]*models.MatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.MatchResult
	for _, res := range s.results {
		if res.Date.Equal(models.DateOnly(date)) {
			copied := *res
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) FindActiveProfile(context.Context) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile := s.profile
	return &profile, nil
}

func (s *memStore) AdvanceProfileDate(_ context.Context, date time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile.CurrentDate = models.DateOnly(date)
	return nil
}

func (s *memStore) pendingJobs(jobType models.ActionType) []*models.ActionQueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ActionQueueItem
	for _, job := range s.jobs {
		if !job.Completed && job.Type == jobType {
			out = append(out, job)
		}
	}
	return out
}

// homeOracle always hands the match to the home side, except when told to
// tie.
type homeOracle struct {
	tie bool
}

func (o homeOracle) Simulate(_ context.Context, homeID, awayID int) (int, int, error) {
	if o.tie {
		return 12, 12, nil
	}
	return 16, (homeID*7 + awayID) % 16, nil
}

type recordingMailer struct {
	mu     sync.Mutex
	emails []models.EmailPayload
}

func (m *recordingMailer) Deliver(_ context.Context, email models.EmailPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	return nil
}

func testSettings() Settings {
	return Settings{
		VenuePool:      []string{"de_dust2", "de_inferno", "de_mirage"},
		LeagueWeekday:  time.Saturday,
		CupWeekday:     time.Wednesday,
		PreseasonMonth: time.June,
		PreseasonDay:   1,
		EmailLeadDays:  7,
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// saturday, so the first matchday lands exactly one week in
var kickoff = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func testTeams(n, offset int) []models.Competitor {
	names := []string{
		"Rival Esports", "Chaos Theory", "Iron Wolves", "Nine Lives",
		"Static Shock", "Deadlock", "Night Market", "Half Volley",
	}
	out := make([]models.Competitor, n)
	for i := 0; i < n; i++ {
		out[i] = models.Competitor{ID: offset + i + 1, Name: names[(offset+i)%len(names)]}
	}
	return out
}

func seedLeague(t *testing.T, store *memStore, playoffs bool) *models.CompetitionRecord {
	t.Helper()
	l := league.NewLeague("Test Circuit")
	div := l.AddDivision("Open", 4, 4)
	div.Playoffs = playoffs
	div.AddCompetitors(testTeams(4, 0))

	data, err := l.Marshal()
	require.NoError(t, err)
	rec := &models.CompetitionRecord{Kind: models.KindLeague, Season: 1, Data: data}
	require.NoError(t, store.SaveCompetition(context.Background(), rec))
	return rec
}

func TestStartGeneratesRegularSeasonJobs(t *testing.T) {
	store := newMemStore(kickoff, 0)
	rec := seedLeague(t, store, false)
	orch := New(store, homeOracle{}, nil, testSettings(), testLogger())

	require.NoError(t, orch.Start(context.Background(), rec.ID))

	saved, err := store.FindCompetitionByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, saved.Started)

	// 4 competitors, single pass: 3 rounds of 2 matches, weekly
	jobs := store.pendingJobs(models.ActionMatchdayNPC)
	require.Len(t, jobs, 6)
	byDate := map[time.Time]int{}
	for _, job := range jobs {
		byDate[job.ActionDate]++
	}
	require.Len(t, byDate, 3)
	for week := 0; week < 3; week++ {
		assert.Equal(t, 2, byDate[kickoff.AddDate(0, 0, 7*(week+1))])
	}

	// venues came from the pool
	restored, err := league.DecodeLeague(saved.Data)
	require.NoError(t, err)
	for _, m := range restored.Divisions[0].Conferences[0].Group.Rounds()[0] {
		assert.Contains(t, testSettings().VenuePool, m.Venue)
	}

	// starting again changes nothing
	require.NoError(t, orch.Start(context.Background(), rec.ID))
	assert.Len(t, store.pendingJobs(models.ActionMatchdayNPC), 6)
}

func TestViewpointTeamGetsUserMatchdays(t *testing.T) {
	store := newMemStore(kickoff, 1)
	rec := seedLeague(t, store, false)
	orch := New(store, homeOracle{}, nil, testSettings(), testLogger())

	require.NoError(t, orch.Start(context.Background(), rec.ID))

	user := store.pendingJobs(models.ActionMatchdayUser)
	require.Len(t, user, 3, "the viewpoint team plays once per round")
	for _, job := range user {
		var p models.MatchdayPayload
		require.NoError(t, json.Unmarshal(job.Payload, &p))
		assert.True(t, p.Team1ID == 1 || p.Team2ID == 1)
	}
	assert.Len(t, store.pendingJobs(models.ActionMatchdayNPC), 3)
}

func TestSimMatchdayForcesBracketWinner(t *testing.T) {
	store := newMemStore(kickoff, 0)
	orch := New(store, homeOracle{tie: true}, nil, testSettings(), testLogger())

	payload, err := json.Marshal(models.MatchdayPayload{
		CompID:     1,
		Postseason: true,
		Match:      models.Match{ID: models.MatchID{S: 1, R: 1, M: 1}, Seeds: [2]int{1, 2}},
		Team1ID:    10,
		Team2ID:    11,
	})
	require.NoError(t, err)

	item := &models.ActionQueueItem{ID: "job", Type: models.ActionMatchdayNPC, ActionDate: kickoff, Payload: payload}
	require.NoError(t, orch.SimMatchday(context.Background(), item))

	require.Len(t, store.results, 1)
	score := store.results[0].Payload.Match.Score
	require.NotNil(t, score)
	assert.Equal(t, 16, score[1], "tied bracket sims re-score to a decisive away win")
	assert.Less(t, score[0], 15)
}

func TestSimMatchdayKeepsGroupStageDraws(t *testing.T) {
	store := newMemStore(kickoff, 0)
	orch := New(store, homeOracle{tie: true}, nil, testSettings(), testLogger())

	payload, err := json.Marshal(models.MatchdayPayload{
		CompID:  1,
		DivID:   "Open",
		Match:   models.Match{ID: models.MatchID{S: 1, R: 1, M: 1}, Seeds: [2]int{1, 2}},
		Team1ID: 10,
		Team2ID: 11,
	})
	require.NoError(t, err)

	item := &models.ActionQueueItem{ID: "job", Type: models.ActionMatchdayNPC, ActionDate: kickoff, Payload: payload}
	require.NoError(t, orch.SimMatchday(context.Background(), item))

	score := store.results[0].Payload.Match.Score
	require.NotNil(t, score)
	assert.Equal(t, score[0], score[1], "draws are fine in group play")
}

// TestRecordResultsToleratesReplayedMatchdays covers the crash-retry path: a
// tick that fails after simulating leaves its result rows behind and replays
// in full, so the same matchday can produce two rows and a recording pass can
// run twice over rows already in the snapshot. Both must record cleanly.
func TestRecordResultsToleratesReplayedMatchdays(t *testing.T) {
	store := newMemStore(kickoff, 0)
	rec := seedLeague(t, store, false)
	orch := New(store, homeOracle{}, nil, testSettings(), testLogger())

	require.NoError(t, orch.Start(context.Background(), rec.ID))

	jobs := store.pendingJobs(models.ActionMatchdayNPC)
	require.NotEmpty(t, jobs)
	job := *jobs[0]
	require.NoError(t, orch.SimMatchday(context.Background(), &job))
	require.NoError(t, orch.SimMatchday(context.Background(), &job))
	require.Len(t, store.results, 2)

	require.NoError(t, store.AdvanceProfileDate(context.Background(), job.ActionDate))
	require.NoError(t, orch.RecordTodaysResults(context.Background()))
	require.NoError(t, orch.RecordTodaysResults(context.Background()))

	saved, err := store.FindCompetitionByID(context.Background(), rec.ID)
	require.NoError(t, err)
	restored, err := league.DecodeLeague(saved.Data)
	require.NoError(t, err)

	var p models.MatchdayPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	decided := 0
	for _, round := range restored.Divisions[0].Conferences[0].Group.Rounds() {
		for _, m := range round {
			if m.ID == p.Match.ID {
				require.True(t, m.Decided())
				decided++
			}
		}
	}
	assert.Equal(t, 1, decided)
}

func TestRecordCupResultsToleratesReplay(t *testing.T) {
	store := newMemStore(kickoff, 0)
	c := league.NewCup("Invitational")
	c.AddCompetitors(testTeams(4, 0))
	data, err := c.Marshal()
	require.NoError(t, err)
	rec := &models.CompetitionRecord{Kind: models.KindCup, Season: 1, Data: data}
	require.NoError(t, store.SaveCompetition(context.Background(), rec))

	orch := New(store, homeOracle{}, nil, testSettings(), testLogger())
	require.NoError(t, orch.Start(context.Background(), rec.ID))

	jobs := store.pendingJobs(models.ActionMatchdayNPC)
	require.Len(t, jobs, 2)
	job := *jobs[0]
	require.NoError(t, orch.SimMatchday(context.Background(), &job))
	require.NoError(t, orch.SimMatchday(context.Background(), &job))

	require.NoError(t, store.AdvanceProfileDate(context.Background(), job.ActionDate))
	require.NoError(t, orch.RecordTodaysResults(context.Background()))
	require.NoError(t, orch.RecordTodaysResults(context.Background()))
}

// TestFullLeagueSeason drives a playoff league from kickoff to completion
// through the real scheduler loop.
func TestFullLeagueSeason(t *testing.T) {
	store := newMemStore(kickoff, 0)
	rec := seedLeague(t, store, true)
	mailer := &recordingMailer{}
	orch := New(store, homeOracle{}, mailer, testSettings(), testLogger())

	loop := calendar.New(store, testLogger())
	orch.RegisterHandlers(loop, true)
	require.NoError(t, orch.ScheduleCompetitionStart(context.Background(), rec.ID, kickoff))

	// 3 regular rounds + 1 bracket round, weekly: well under 40 days
	require.NoError(t, loop.Start(context.Background(), 40))

	saved, err := store.FindCompetitionByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, saved.Done, "season should have completed")

	restored, err := league.DecodeLeague(saved.Data)
	require.NoError(t, err)
	div := restored.Divisions[0]
	require.True(t, div.PostSeasonStarted())
	require.Len(t, div.PromotionConferences, 1)
	assert.True(t, div.PromotionConferences[0].Duel.IsDone())
	assert.Len(t, div.PromotionWinners(), 1)

	// season rollover queued at the next preseason anchor
	rollover := store.pendingJobs(models.ActionSeasonStart)
	require.Len(t, rollover, 1)
	assert.Equal(t, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC), rollover[0].ActionDate)
}

func TestFullCupRun(t *testing.T) {
	store := newMemStore(kickoff, 0)
	c := league.NewCup("Invitational")
	c.AddCompetitors(testTeams(8, 0))
	data, err := c.Marshal()
	require.NoError(t, err)
	rec := &models.CompetitionRecord{Kind: models.KindCup, Season: 1, Data: data}
	require.NoError(t, store.SaveCompetition(context.Background(), rec))

	orch := New(store, homeOracle{}, nil, testSettings(), testLogger())
	loop := calendar.New(store, testLogger())
	orch.RegisterHandlers(loop, true)
	require.NoError(t, orch.ScheduleCompetitionStart(context.Background(), rec.ID, kickoff))

	// 3 knockout rounds, weekly
	require.NoError(t, loop.Start(context.Background(), 30))

	saved, err := store.FindCompetitionByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, saved.Done)

	restored, err := league.DecodeCup(saved.Data)
	require.NoError(t, err)
	require.True(t, restored.IsDone())
	for _, round := range restored.Duel.Rounds() {
		for _, m := range round {
			if m.Score != nil {
				assert.NotEqual(t, m.Score[0], m.Score[1], "no completed bracket match may carry a draw")
			}
		}
	}
}

func TestUserMatchdayHaltsLoop(t *testing.T) {
	store := newMemStore(kickoff, 1)
	rec := seedLeague(t, store, false)
	orch := New(store, homeOracle{}, nil, testSettings(), testLogger())

	loop := calendar.New(store, testLogger())
	orch.RegisterHandlers(loop, false)
	require.NoError(t, orch.ScheduleCompetitionStart(context.Background(), rec.ID, kickoff))

	require.NoError(t, loop.Start(context.Background(), 30))

	// the loop stops the evening of the first matchday instead of
	// cascading through the remaining weeks
	profile, err := store.FindActiveProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, kickoff.AddDate(0, 0, 8), profile.CurrentDate)
}

func TestApplyZonesMovesWithoutDuplication(t *testing.T) {
	l := league.NewLeague("Test Circuit")
	premier := l.AddDivision("Premier", 4, 4)
	premier.AddCompetitors(testTeams(4, 0))
	open := l.AddDivision("Open", 4, 4)
	open.AddCompetitors(testTeams(4, 4))
	require.NoError(t, l.Start())

	for _, div := range l.Divisions {
		for _, conf := range div.Conferences {
			for _, round := range conf.Group.Rounds() {
				for _, m := range round {
					score := [2]int{16, 8}
					if m.Seeds[1] < m.Seeds[0] {
						score = [2]int{8, 16}
					}
					require.NoError(t, conf.Group.Score(m.ID, score))
				}
			}
		}
	}

	relegated := premier.FinalStandings()[3]
	promoted := open.FinalStandings()[0]

	require.NoError(t, ApplyZones(l, []Zone{{Relegate: 1}, {Promote: 1}}))

	assert.Len(t, premier.Competitors, 4)
	assert.Len(t, open.Competitors, 4)

	seen := map[int]int{}
	for _, div := range l.Divisions {
		for _, comp := range div.Competitors {
			seen[comp.ID]++
		}
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "competitor %d duplicated", id)
	}

	assert.Equal(t, -1, indexOf(premier.Competitors, relegated.ID))
	assert.NotEqual(t, -1, indexOf(open.Competitors, relegated.ID))
	assert.NotEqual(t, -1, indexOf(premier.Competitors, promoted.ID))
	assert.Equal(t, 0, promotedTier(l, promoted.ID))
}

func TestApplyZonesRejectsMismatchedTable(t *testing.T) {
	l := league.NewLeague("Test Circuit")
	l.AddDivision("Premier", 4, 4).AddCompetitors(testTeams(4, 0))

	err := ApplyZones(l, []Zone{{}, {}})
	assert.ErrorIs(t, err, models.ErrInvalidTopology)
}

func indexOf(competitors []models.Competitor, id int) int {
	for i, c := range competitors {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func promotedTier(l *league.League, id int) int {
	for _, div := range l.Divisions {
		for _, c := range div.Competitors {
			if c.ID == id {
				return c.Tier
			}
		}
	}
	return -1
}
