package league

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playliga/engine/models"
)

func testCompetitors(n int) []models.Competitor {
	names := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"}
	out := make([]models.Competitor, n)
	for i := 0; i < n; i++ {
		out[i] = models.Competitor{ID: i + 1, Name: names[i%len(names)]}
	}
	return out
}

// finishGroupStage decides every match with the lower seed winning, so the
// final table matches seed order.
func finishGroupStage(t *testing.T, conf *Conference) {
	t.Helper()
	for _, round := range conf.Group.Rounds() {
		for _, m := range round {
			if m.Decided() {
				continue
			}
			score := [2]int{16, 8}
			if m.Seeds[1] < m.Seeds[0] {
				score = [2]int{8, 16}
			}
			require.NoError(t, conf.Group.Score(m.ID, score))
		}
	}
}

func TestDivisionStartChunksConferences(t *testing.T) {
	d := NewDivision("Open", 8, 4)
	d.AddCompetitors(testCompetitors(8))
	require.NoError(t, d.Start())

	require.Len(t, d.Conferences, 2)
	assert.Len(t, d.Conferences[0].Competitors, 4)
	assert.Len(t, d.Conferences[1].Competitors, 4)
	assert.True(t, d.Started())
	assert.False(t, d.IsGroupStageDone())

	// idempotent
	require.NoError(t, d.Start())
	assert.Len(t, d.Conferences, 2)
}

func TestDivisionRemainderJoinsFinalConference(t *testing.T) {
	d := NewDivision("Open", 10, 4)
	d.AddCompetitors(testCompetitors(10))
	require.NoError(t, d.Start())

	// 4 + 6, never 4 + 4 + 2
	require.Len(t, d.Conferences, 2)
	assert.Len(t, d.Conferences[0].Competitors, 4)
	assert.Len(t, d.Conferences[1].Competitors, 6)

	// the absorbing conference plays as a single group of 6, not two
	// sub-groups of 3
	matches := 0
	for _, round := range d.Conferences[1].Group.Rounds() {
		for _, m := range round {
			assert.Equal(t, 1, m.ID.S)
			matches++
		}
	}
	assert.Equal(t, 15, matches)
}

func TestAbsorbingConferenceQualifiesOnce(t *testing.T) {
	d := NewDivision("Open", 10, 4)
	d.Playoffs = true
	d.AddCompetitors(testCompetitors(10))
	require.NoError(t, d.Start())
	for _, conf := range d.Conferences {
		finishGroupStage(t, conf)
	}

	// one qualifier set per conference, never per sub-group
	for _, conf := range d.Conferences {
		assert.Len(t, conf.Winners(d.GroupQualifyNum), d.GroupQualifyNum)
	}

	started, err := d.StartPostSeason()
	require.NoError(t, err)
	require.True(t, started)
	require.Len(t, d.PromotionConferences, 1)
	assert.Len(t, d.PromotionConferences[0].Competitors, 4)
}

func TestStartPostSeasonRequiresPlayoffs(t *testing.T) {
	d := NewDivision("Premier", 4, 4)
	d.AddCompetitors(testCompetitors(4))
	require.NoError(t, d.Start())
	finishGroupStage(t, d.Conferences[0])

	started, err := d.StartPostSeason()
	require.NoError(t, err)
	assert.False(t, started)
	assert.Empty(t, d.PromotionConferences)
	assert.Len(t, d.Conferences, 1, "conferences must be untouched")
	assert.True(t, d.IsDone(), "a division without playoffs is done with its group stage")
}

func TestStartPostSeasonRequiresFinishedGroupStage(t *testing.T) {
	d := NewDivision("Open", 4, 4)
	d.Playoffs = true
	d.AddCompetitors(testCompetitors(4))
	require.NoError(t, d.Start())

	started, err := d.StartPostSeason()
	require.NoError(t, err)
	assert.False(t, started)
}

func TestStartPostSeasonSeedsTopFinishers(t *testing.T) {
	d := NewDivision("Open", 4, 4)
	d.Playoffs = true
	d.AddCompetitors(testCompetitors(4)) // A, B, C, D in seed order
	require.NoError(t, d.Start())

	finishGroupStage(t, d.Conferences[0])
	require.True(t, d.IsGroupStageDone())

	started, err := d.StartPostSeason()
	require.NoError(t, err)
	require.True(t, started)
	require.Len(t, d.PromotionConferences, 1)

	bracket := d.PromotionConferences[0]
	seed1, ok := bracket.CompetitorBySeed(1)
	require.True(t, ok)
	seed2, ok := bracket.CompetitorBySeed(2)
	require.True(t, ok)
	assert.Equal(t, "A", seed1.Name)
	assert.Equal(t, "B", seed2.Name)

	// starting again is a silent no-op
	started, err = d.StartPostSeason()
	require.NoError(t, err)
	assert.False(t, started)
}

func TestStartPostSeasonChunksQualifiers(t *testing.T) {
	d := NewDivision("Open", 8, 4)
	d.Playoffs = true
	d.PromotionConferenceSize = 2
	d.AddCompetitors(testCompetitors(8))
	require.NoError(t, d.Start())
	for _, conf := range d.Conferences {
		finishGroupStage(t, conf)
	}

	started, err := d.StartPostSeason()
	require.NoError(t, err)
	require.True(t, started)

	// 2 conferences x 2 qualifiers, chunked into brackets of 2
	require.Len(t, d.PromotionConferences, 2)
	for _, bracket := range d.PromotionConferences {
		assert.Len(t, bracket.Competitors, 2)
	}
}

func TestDivisionMatchesDone(t *testing.T) {
	d := NewDivision("Open", 4, 4)
	d.AddCompetitors(testCompetitors(4))
	require.NoError(t, d.Start())

	conf := d.Conferences[0]
	first := conf.Group.Rounds()[0]
	assert.False(t, d.MatchesDone(conf.ID, false, first[0].ID))
	for _, m := range first {
		require.NoError(t, conf.Group.Score(m.ID, [2]int{16, 1}))
	}
	assert.True(t, d.MatchesDone(conf.ID, false, first[0].ID))
	assert.False(t, d.MatchesDone("missing", false, first[0].ID))
}

func TestFinalStandingsInterleavesConferences(t *testing.T) {
	d := NewDivision("Open", 8, 4)
	d.AddCompetitors(testCompetitors(8))
	require.NoError(t, d.Start())
	for _, conf := range d.Conferences {
		finishGroupStage(t, conf)
	}

	ranked := d.FinalStandings()
	require.Len(t, ranked, 8)
	// conference winners first, then runners-up, and so on
	first, _ := d.Conferences[0].CompetitorBySeed(1)
	second, _ := d.Conferences[1].CompetitorBySeed(1)
	assert.Equal(t, first.ID, ranked[0].ID)
	assert.Equal(t, second.ID, ranked[1].ID)
}

func TestPromotionWinners(t *testing.T) {
	d := NewDivision("Open", 4, 4)
	d.Playoffs = true
	d.AddCompetitors(testCompetitors(4))
	require.NoError(t, d.Start())
	finishGroupStage(t, d.Conferences[0])

	started, err := d.StartPostSeason()
	require.NoError(t, err)
	require.True(t, started)
	assert.False(t, d.IsDone())

	bracket := d.PromotionConferences[0]
	final := bracket.Duel.CurrentRound()
	require.Len(t, final, 1)
	require.NoError(t, bracket.Duel.Score(final[0].ID, [2]int{16, 13}))

	require.True(t, d.IsDone())
	winners := d.PromotionWinners()
	require.Len(t, winners, 1)
	assert.Equal(t, "A", winners[0].Name)
}

func TestLeagueLifecycle(t *testing.T) {
	l := NewLeague("National Circuit")
	premier := l.AddDivision("Premier", 4, 4)
	premier.AddCompetitors(testCompetitors(4))
	open := l.AddDivision("Open", 4, 4)
	open.Playoffs = true
	open.AddCompetitors(testCompetitors(4))

	require.NoError(t, l.Start())
	assert.True(t, l.Started())
	assert.False(t, l.IsGroupStageDone())
	assert.Same(t, premier, l.DivisionByName("Premier"))
	assert.Same(t, open, l.DivisionByCompetitorID(open.Competitors[0].ID))

	for _, div := range l.Divisions {
		for _, conf := range div.Conferences {
			finishGroupStage(t, conf)
		}
	}
	require.True(t, l.IsGroupStageDone())
	assert.False(t, l.IsDone(), "playoff division still owes its bracket")

	started, err := l.StartPostSeason()
	require.NoError(t, err)
	assert.True(t, started)
}

func TestCupLifecycle(t *testing.T) {
	c := NewCup("Invitational")
	c.AddCompetitors(testCompetitors(8))
	assert.False(t, c.Started())

	require.NoError(t, c.Start())
	assert.True(t, c.Started())
	assert.False(t, c.IsDone())
	assert.Equal(t, 3, c.SeedNumByID(3))
	assert.Equal(t, -1, c.SeedNumByID(99))

	for !c.IsDone() {
		for _, m := range c.Duel.CurrentRound() {
			if c.Duel.Unscorable(m.ID) != nil {
				continue
			}
			score := [2]int{16, 6}
			if m.Seeds[1] < m.Seeds[0] {
				score = [2]int{6, 16}
			}
			require.NoError(t, c.Duel.Score(m.ID, score))
		}
	}
	table := c.Duel.Results()
	champion, ok := c.CompetitorBySeed(table[0].Seed)
	require.True(t, ok)
	assert.Equal(t, "A", champion.Name)
}
