package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/playliga/engine/league"
	"github.com/playliga/engine/models"
)

// Start restores the competition, builds its opening tournament structures,
// deals out venues, persists the snapshot and enqueues the first matchdays.
// Starting an already-started competition is a no-op.
func (o *Orchestrator) Start(ctx context.Context, compID int) error {
	rec, err := o.store.FindCompetitionByID(ctx, compID)
	if err != nil {
		return wrapComp(compID, err)
	}
	if rec.Started {
		return nil
	}

	switch rec.Kind {
	case models.KindLeague:
		l, err := league.DecodeLeague(rec.Data)
		if err != nil {
			return wrapComp(compID, err)
		}
		if err := l.Start(); err != nil {
			return wrapComp(compID, err)
		}
		for _, div := range l.Divisions {
			for _, conf := range div.Conferences {
				o.assignVenues(conf.Group)
			}
		}
		if rec.Data, err = l.Marshal(); err != nil {
			return wrapComp(compID, err)
		}
	case models.KindCup:
		c, err := league.DecodeCup(rec.Data)
		if err != nil {
			return wrapComp(compID, err)
		}
		if err := c.Start(); err != nil {
			return wrapComp(compID, err)
		}
		o.assignVenues(c.Duel)
		if rec.Data, err = c.Marshal(); err != nil {
			return wrapComp(compID, err)
		}
	default:
		return wrapComp(compID, fmt.Errorf("unknown kind %q: %w", rec.Kind, models.ErrInvalidTopology))
	}

	rec.Started = true
	if err := o.store.SaveCompetition(ctx, rec); err != nil {
		return wrapComp(compID, err)
	}

	o.log.WithFields(logFields(rec)).Info("competition started")
	return o.GenMatchdays(ctx, rec)
}

// GenMatchdays turns the competition's current tournament state into dated
// matchday jobs.
//
// League regular seasons are scheduled in full up front: one job per match,
// one conference round per league weekday, with home/away fixture rounds
// shuffled when the schedule meets twice. Postseason promotion brackets and
// cups are scheduled one round at a time, on the next matchday weekday,
// skipping matches that cannot be scored yet.
func (o *Orchestrator) GenMatchdays(ctx context.Context, rec *models.CompetitionRecord) error {
	profile, err := o.store.FindActiveProfile(ctx)
	if err != nil {
		return wrapComp(rec.ID, err)
	}
	today := models.DateOnly(profile.CurrentDate)

	var jobs []*models.ActionQueueItem
	switch rec.Kind {
	case models.KindLeague:
		l, err := league.DecodeLeague(rec.Data)
		if err != nil {
			return wrapComp(rec.ID, err)
		}
		for _, div := range l.Divisions {
			if div.PostSeasonStarted() {
				jobs = append(jobs, o.promotionJobs(profile, rec.ID, div, today)...)
			} else {
				jobs = append(jobs, o.regularSeasonJobs(profile, rec.ID, div, today)...)
			}
		}
	case models.KindCup:
		c, err := league.DecodeCup(rec.Data)
		if err != nil {
			return wrapComp(rec.ID, err)
		}
		jobs = append(jobs, o.cupJobs(profile, rec.ID, c, today)...)
	}

	if len(jobs) == 0 {
		return nil
	}
	if err := o.store.CreateJobs(ctx, jobs...); err != nil {
		return wrapComp(rec.ID, err)
	}
	o.log.WithFields(logFields(rec)).WithField("jobs", len(jobs)).Info("matchdays generated")
	return nil
}

func (o *Orchestrator) regularSeasonJobs(profile *models.Profile, compID int, div *league.Division, today time.Time) []*models.ActionQueueItem {
	var jobs []*models.ActionQueueItem
	for _, conf := range div.Conferences {
		rounds := conf.Group.Rounds()
		if hasDecided(rounds) {
			// Already scheduled when the season started.
			continue
		}

		order := make([]int, len(rounds))
		for i := range order {
			order[i] = i
		}
		if div.MeetTwice {
			// Spread the return fixtures out so home and away legs of
			// the same pairing don't land on consecutive weekends.
			o.rand.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		for week, r := range order {
			date := nextWeekday(today, o.settings.LeagueWeekday, week)
			for _, match := range rounds[r] {
				jobs = append(jobs, o.matchdayJob(profile, matchdaySpec{
					compID:     compID,
					divID:      div.Name,
					confID:     conf.ID,
					match:      match,
					team1:      seedCompetitor(conf.Competitors, match.Seeds[0]),
					team2:      seedCompetitor(conf.Competitors, match.Seeds[1]),
					actionDate: date,
				}))
			}
		}
	}
	return jobs
}

func (o *Orchestrator) promotionJobs(profile *models.Profile, compID int, div *league.Division, today time.Time) []*models.ActionQueueItem {
	var jobs []*models.ActionQueueItem
	date := nextWeekday(today, o.settings.LeagueWeekday, 0)
	for _, conf := range div.PromotionConferences {
		for _, match := range conf.Duel.CurrentRound() {
			if conf.Duel.Unscorable(match.ID) != nil {
				continue
			}
			jobs = append(jobs, o.matchdayJob(profile, matchdaySpec{
				compID:     compID,
				divID:      div.Name,
				confID:     conf.ID,
				postseason: true,
				match:      match,
				team1:      seedCompetitor(conf.Competitors, match.Seeds[0]),
				team2:      seedCompetitor(conf.Competitors, match.Seeds[1]),
				actionDate: date,
			}))
		}
	}
	return jobs
}

func (o *Orchestrator) cupJobs(profile *models.Profile, compID int, c *league.Cup, today time.Time) []*models.ActionQueueItem {
	if !c.Started() {
		return nil
	}
	var jobs []*models.ActionQueueItem
	date := nextWeekday(today, o.settings.CupWeekday, 0)
	for _, match := range c.Duel.CurrentRound() {
		if c.Duel.Unscorable(match.ID) != nil {
			continue
		}
		jobs = append(jobs, o.matchdayJob(profile, matchdaySpec{
			compID:     compID,
			postseason: true,
			match:      match,
			team1:      seedCompetitor(c.Competitors, match.Seeds[0]),
			team2:      seedCompetitor(c.Competitors, match.Seeds[1]),
			actionDate: date,
		}))
	}
	return jobs
}

// postseasonTarget names one promotion bracket due for fresh matchday jobs.
type postseasonTarget struct {
	div  string
	conf string
}

// genPostseasonMatchdays emits jobs for the current round of exactly the
// named promotion brackets.
func (o *Orchestrator) genPostseasonMatchdays(ctx context.Context, rec *models.CompetitionRecord, targets []postseasonTarget) error {
	profile, err := o.store.FindActiveProfile(ctx)
	if err != nil {
		return wrapComp(rec.ID, err)
	}
	today := models.DateOnly(profile.CurrentDate)

	l, err := league.DecodeLeague(rec.Data)
	if err != nil {
		return wrapComp(rec.ID, err)
	}

	var jobs []*models.ActionQueueItem
	date := nextWeekday(today, o.settings.LeagueWeekday, 0)
	for _, target := range targets {
		div := l.DivisionByName(target.div)
		if div == nil {
			continue
		}
		conf := div.PromotionConferenceByID(target.conf)
		if conf == nil {
			continue
		}
		for _, match := range conf.Duel.CurrentRound() {
			if conf.Duel.Unscorable(match.ID) != nil {
				continue
			}
			jobs = append(jobs, o.matchdayJob(profile, matchdaySpec{
				compID:     rec.ID,
				divID:      div.Name,
				confID:     conf.ID,
				postseason: true,
				match:      match,
				team1:      seedCompetitor(conf.Competitors, match.Seeds[0]),
				team2:      seedCompetitor(conf.Competitors, match.Seeds[1]),
				actionDate: date,
			}))
		}
	}

	if len(jobs) == 0 {
		return nil
	}
	if err := o.store.CreateJobs(ctx, jobs...); err != nil {
		return wrapComp(rec.ID, err)
	}
	o.log.WithFields(logFields(rec)).WithField("jobs", len(jobs)).Info("postseason matchdays generated")
	return nil
}

type matchdaySpec struct {
	compID     int
	divID      string
	confID     string
	postseason bool
	match      models.Match
	team1      models.Competitor
	team2      models.Competitor
	actionDate time.Time
}

func (o *Orchestrator) matchdayJob(profile *models.Profile, spec matchdaySpec) *models.ActionQueueItem {
	payload, _ := json.Marshal(models.MatchdayPayload{
		CompID:     spec.compID,
		DivID:      spec.divID,
		ConfID:     spec.confID,
		Postseason: spec.postseason,
		Match:      spec.match,
		Team1ID:    spec.team1.ID,
		Team2ID:    spec.team2.ID,
	})

	jobType := models.ActionMatchdayNPC
	if profile.TeamID != 0 && (profile.TeamID == spec.team1.ID || profile.TeamID == spec.team2.ID) {
		jobType = models.ActionMatchdayUser
	}
	return &models.ActionQueueItem{
		ID:         xid.New().String(),
		Type:       jobType,
		ActionDate: spec.actionDate,
		Payload:    payload,
	}
}

func seedCompetitor(competitors []models.Competitor, seed int) models.Competitor {
	if seed < 1 || seed > len(competitors) {
		return models.Competitor{}
	}
	return competitors[seed-1]
}

func hasDecided(rounds [][]models.Match) bool {
	for _, round := range rounds {
		for _, match := range round {
			if match.Decided() {
				return true
			}
		}
	}
	return false
}

func logFields(rec *models.CompetitionRecord) logrus.Fields {
	return logrus.Fields{
		"competition": rec.ID,
		"kind":        rec.Kind,
		"season":      rec.Season,
	}
}
