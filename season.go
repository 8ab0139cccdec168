package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/playliga/engine/league"
	"github.com/playliga/engine/models"
)

// ApplyZones moves competitors between adjacent divisions per the zone
// table: each division's promoted competitors join the tier above, its
// relegated competitors join the tier below. A competitor is moved at most
// once, never duplicated, and every competitor's tier is rewritten to its
// destination division index.
func ApplyZones(l *league.League, zones []Zone) error {
	if len(zones) != len(l.Divisions) {
		return fmt.Errorf("zone table has %d entries for %d divisions: %w",
			len(zones), len(l.Divisions), models.ErrInvalidTopology)
	}

	// Destination division index per moving competitor. Promotion claims a
	// competitor before relegation can.
	moves := map[int]int{}
	for i, div := range l.Divisions {
		zone := zones[i]
		if i > 0 && zone.Promote > 0 {
			for _, comp := range promotedFrom(div, zone.Promote) {
				moves[comp.ID] = i - 1
			}
		}
		if i < len(l.Divisions)-1 && zone.Relegate > 0 {
			table := div.FinalStandings()
			if zone.Relegate >= len(table) {
				return fmt.Errorf("division %q relegates %d of %d: %w",
					div.Name, zone.Relegate, len(table), models.ErrInvalidTopology)
			}
			for _, comp := range table[len(table)-zone.Relegate:] {
				if _, claimed := moves[comp.ID]; !claimed {
					moves[comp.ID] = i + 1
				}
			}
		}
	}
	if len(moves) == 0 {
		return nil
	}

	lists := make([][]models.Competitor, len(l.Divisions))
	for i, div := range l.Divisions {
		for _, comp := range div.Competitors {
			dest, moving := moves[comp.ID]
			if !moving {
				dest = i
			}
			comp.Tier = dest
			lists[dest] = append(lists[dest], comp)
		}
	}
	for i, div := range l.Divisions {
		div.Competitors = lists[i]
	}
	return nil
}

// promotedFrom picks the competitors a division sends up: its promotion
// bracket champions when it runs playoffs, otherwise its top finishers.
func promotedFrom(div *league.Division, n int) []models.Competitor {
	if div.Playoffs {
		winners := div.PromotionWinners()
		if len(winners) > n {
			winners = winners[:n]
		}
		return winners
	}
	table := div.FinalStandings()
	if n > len(table) {
		n = len(table)
	}
	return table[:n]
}

// startPayload keys season and competition start jobs to their competition.
type startPayload struct {
	CompID int `json:"compId"`
}

// scheduleNextSeason enqueues the season rollover job at the next preseason
// anchor date, plus a reminder email ahead of it.
func (o *Orchestrator) scheduleNextSeason(ctx context.Context, rec *models.CompetitionRecord) error {
	profile, err := o.store.FindActiveProfile(ctx)
	if err != nil {
		return err
	}
	start := o.NextSeasonStartDate(profile.CurrentDate)

	payload, _ := json.Marshal(startPayload{CompID: rec.ID})
	jobs := []*models.ActionQueueItem{{
		ID:         xid.New().String(),
		Type:       models.ActionSeasonStart,
		ActionDate: start,
		Payload:    payload,
	}}

	if profile.TeamID != 0 && o.settings.EmailLeadDays > 0 {
		reminder := start.AddDate(0, 0, -o.settings.EmailLeadDays)
		if reminder.After(models.DateOnly(profile.CurrentDate)) {
			email, _ := json.Marshal(models.EmailPayload{
				To:      profile.TeamID,
				Subject: "New season registration",
				Content: fmt.Sprintf("The new season kicks off on %s. Make sure your squad is ready.", start.Format("January 2, 2006")),
				SentAt:  reminder,
			})
			jobs = append(jobs, &models.ActionQueueItem{
				ID:         xid.New().String(),
				Type:       models.ActionEmailSend,
				ActionDate: reminder,
				Payload:    email,
			})
		}
	}

	if err := o.store.CreateJobs(ctx, jobs...); err != nil {
		return err
	}
	o.log.WithFields(logFields(rec)).WithField("start", start.Format("2006-01-02")).Info("next season scheduled")
	return nil
}

// StartNextSeason rebuilds the competition from its final competitor lists,
// bumps the season counter and starts it again.
func (o *Orchestrator) StartNextSeason(ctx context.Context, compID int) error {
	rec, err := o.store.FindCompetitionByID(ctx, compID)
	if err != nil {
		return wrapComp(compID, err)
	}

	switch rec.Kind {
	case models.KindLeague:
		l, err := league.DecodeLeague(rec.Data)
		if err != nil {
			return wrapComp(compID, err)
		}
		if rec.Data, err = resetLeague(l).Marshal(); err != nil {
			return wrapComp(compID, err)
		}
	case models.KindCup:
		c, err := league.DecodeCup(rec.Data)
		if err != nil {
			return wrapComp(compID, err)
		}
		if rec.Data, err = resetCup(c).Marshal(); err != nil {
			return wrapComp(compID, err)
		}
	default:
		return wrapComp(compID, fmt.Errorf("unknown kind %q: %w", rec.Kind, models.ErrInvalidTopology))
	}

	rec.Season++
	rec.Started = false
	rec.Done = false
	if err := o.store.SaveCompetition(ctx, rec); err != nil {
		return wrapComp(compID, err)
	}
	return o.Start(ctx, rec.ID)
}

// resetLeague rebuilds a league for a fresh season: same division
// configuration and competitor lists, no conferences, tiers synced to
// division indices.
func resetLeague(l *league.League) *league.League {
	fresh := league.NewLeague(l.Name)
	for i, div := range l.Divisions {
		nd := league.NewDivision(div.Name, div.Size, div.ConferenceSize)
		nd.MeetTwice = div.MeetTwice
		nd.GroupQualifyNum = div.GroupQualifyNum
		nd.PromotionConferenceSize = div.PromotionConferenceSize
		nd.Playoffs = div.Playoffs
		for _, comp := range div.Competitors {
			comp.Tier = i
			nd.AddCompetitors([]models.Competitor{comp})
		}
		fresh.Divisions = append(fresh.Divisions, nd)
	}
	return fresh
}

// resetCup rebuilds a cup with the same entrants and no bracket.
func resetCup(c *league.Cup) *league.Cup {
	fresh := league.NewCup(c.Name)
	fresh.AddCompetitors(c.Competitors)
	return fresh
}

// ScheduleCompetitionStart enqueues the job that starts a competition on the
// given date. Hosts call this once per created competition.
func (o *Orchestrator) ScheduleCompetitionStart(ctx context.Context, compID int, date time.Time) error {
	payload, _ := json.Marshal(startPayload{CompID: compID})
	return o.store.CreateJobs(ctx, &models.ActionQueueItem{
		ID:         xid.New().String(),
		Type:       models.ActionCompetitionStart,
		ActionDate: models.DateOnly(date),
		Payload:    payload,
	})
}
