package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/playliga/engine/league"
	"github.com/playliga/engine/models"
)

// SimMatchday asks the oracle for a score and persists it as a pending
// result record. Bracket matches may not end in a draw; a tied simulation is
// re-scored to a decisive away win.
func (o *Orchestrator) SimMatchday(ctx context.Context, item *models.ActionQueueItem) error {
	var payload models.MatchdayPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return fmt.Errorf("matchday payload: %w", err)
	}

	home, away, err := o.oracle.Simulate(ctx, payload.Team1ID, payload.Team2ID)
	if err != nil {
		return wrapComp(payload.CompID, err)
	}
	if payload.Postseason && home == away {
		home = o.rand.Intn(15)
		away = 16
	}

	score := [2]int{home, away}
	payload.Match.Score = &score
	result := &models.MatchResult{
		ID:      xid.New().String(),
		CompID:  payload.CompID,
		Date:    models.DateOnly(item.ActionDate),
		Payload: payload,
	}
	return wrapComp(payload.CompID, o.store.SaveMatchResult(ctx, result))
}

// RecordTodaysResults loads every result dated today and records them into
// their competition snapshots, one competition at a time, fanning out across
// competitions. A competition whose recording fails leaves its last saved
// snapshot untouched.
func (o *Orchestrator) RecordTodaysResults(ctx context.Context) error {
	profile, err := o.store.FindActiveProfile(ctx)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	results, err := o.store.FindMatchResultsByDate(ctx, models.DateOnly(profile.CurrentDate))
	if err != nil {
		return fmt.Errorf("loading results: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	grouped := map[int][]*models.MatchResult{}
	for _, res := range results {
		grouped[res.CompID] = append(grouped[res.CompID], res)
	}

	g, gctx := errgroup.WithContext(ctx)
	for compID, compResults := range grouped {
		compID, compResults := compID, compResults
		g.Go(func() error {
			return o.recordCompetition(gctx, compID, compResults)
		})
	}
	return g.Wait()
}

func (o *Orchestrator) recordCompetition(ctx context.Context, compID int, results []*models.MatchResult) error {
	rec, err := o.store.FindCompetitionByID(ctx, compID)
	if err != nil {
		return wrapComp(compID, err)
	}

	switch rec.Kind {
	case models.KindLeague:
		targets, err := o.recordLeagueResults(ctx, rec, results)
		if err != nil {
			return wrapComp(compID, err)
		}
		if err := o.store.SaveCompetition(ctx, rec); err != nil {
			return wrapComp(compID, err)
		}
		if len(targets) > 0 && !rec.Done {
			return o.genPostseasonMatchdays(ctx, rec, targets)
		}
		return nil
	case models.KindCup:
		regen, err := o.recordCupResults(ctx, rec, results)
		if err != nil {
			return wrapComp(compID, err)
		}
		if err := o.store.SaveCompetition(ctx, rec); err != nil {
			return wrapComp(compID, err)
		}
		if regen && !rec.Done {
			return o.GenMatchdays(ctx, rec)
		}
		return nil
	default:
		return wrapComp(compID, fmt.Errorf("unknown kind %q: %w", rec.Kind, models.ErrInvalidTopology))
	}
}

// recordLeagueResults applies results to the league snapshot and returns the
// promotion brackets whose current round completed or was just created.
// Only those brackets get new matchday jobs: regenerating more broadly would
// duplicate jobs for rounds that are scheduled but still being played.
func (o *Orchestrator) recordLeagueResults(ctx context.Context, rec *models.CompetitionRecord, results []*models.MatchResult) ([]postseasonTarget, error) {
	l, err := league.DecodeLeague(rec.Data)
	if err != nil {
		return nil, err
	}

	// Current bracket rounds before any result is applied, so completion
	// can be detected afterwards.
	prev := map[postseasonTarget][]models.Match{}
	for _, div := range l.Divisions {
		for _, conf := range div.PromotionConferences {
			key := postseasonTarget{div: div.Name, conf: conf.ID}
			prev[key] = conf.Duel.CurrentRound()
		}
	}

	for _, res := range results {
		p := res.Payload
		div := l.DivisionByName(p.DivID)
		if div == nil {
			return nil, fmt.Errorf("division %q: %w", p.DivID, models.ErrUnknownMatch)
		}
		t, err := divisionTournament(div, p.ConfID, p.Postseason)
		if err != nil {
			return nil, err
		}
		if p.Match.Score == nil {
			return nil, fmt.Errorf("result %s has no score: %w", res.ID, models.ErrUnknownMatch)
		}
		if err := t.Score(p.Match.ID, *p.Match.Score); err != nil {
			if errors.Is(err, models.ErrMatchAlreadyScored) {
				// Duplicate row from a retried tick; the snapshot already
				// carries this result.
				continue
			}
			return nil, fmt.Errorf("recording %v: %w", p.Match.ID, err)
		}
	}

	started, err := l.StartPostSeason()
	if err != nil {
		return nil, err
	}

	var targets []postseasonTarget
	for _, div := range l.Divisions {
		for _, conf := range div.PromotionConferences {
			key := postseasonTarget{div: div.Name, conf: conf.ID}
			round, existed := prev[key]
			if !existed {
				// bracket created by this recording pass
				targets = append(targets, key)
				if !venuesAssigned(conf.Duel) {
					o.assignVenues(conf.Duel)
				}
				continue
			}
			if len(round) > 0 && roundDone(conf.Duel, round) {
				targets = append(targets, key)
			}
		}
	}
	if started {
		o.log.WithFields(logFields(rec)).Info("postseason started")
	}

	if l.IsDone() {
		rec.Done = true
		if len(o.settings.Zones) == len(l.Divisions) {
			if err := ApplyZones(l, o.settings.Zones); err != nil {
				return nil, err
			}
		}
		if err := o.scheduleNextSeason(ctx, rec); err != nil {
			return nil, err
		}
		o.log.WithFields(logFields(rec)).Info("competition done")
	}

	if rec.Data, err = l.Marshal(); err != nil {
		return nil, err
	}
	return targets, nil
}

func (o *Orchestrator) recordCupResults(ctx context.Context, rec *models.CompetitionRecord, results []*models.MatchResult) (bool, error) {
	c, err := league.DecodeCup(rec.Data)
	if err != nil {
		return false, err
	}
	if !c.Started() {
		return false, fmt.Errorf("cup %q not started: %w", c.Name, models.ErrUnknownMatch)
	}

	prev := c.Duel.CurrentRound()
	for _, res := range results {
		p := res.Payload
		if p.Match.Score == nil {
			return false, fmt.Errorf("result %s has no score: %w", res.ID, models.ErrUnknownMatch)
		}
		if err := c.Duel.Score(p.Match.ID, *p.Match.Score); err != nil {
			if errors.Is(err, models.ErrMatchAlreadyScored) {
				continue
			}
			return false, fmt.Errorf("recording %v: %w", p.Match.ID, err)
		}
	}
	regen := len(prev) > 0 && roundDone(c.Duel, prev)

	if c.IsDone() {
		rec.Done = true
		if err := o.scheduleNextSeason(ctx, rec); err != nil {
			return false, err
		}
		o.log.WithFields(logFields(rec)).Info("competition done")
	}

	if rec.Data, err = c.Marshal(); err != nil {
		return false, err
	}
	return regen, nil
}

// roundDone reports whether every match of the given round is now decided.
// Interleaved bracket rounds can span sections, so each section/round pair
// is checked.
func roundDone(t models.Tournament, round []models.Match) bool {
	if len(round) == 0 {
		return false
	}
	seen := map[models.MatchID]bool{}
	for _, m := range round {
		key := models.MatchID{S: m.ID.S, R: m.ID.R}
		if seen[key] {
			continue
		}
		seen[key] = true
		if !t.MatchesDone(m.ID) {
			return false
		}
	}
	return true
}

func divisionTournament(div *league.Division, confID string, postseason bool) (models.Tournament, error) {
	if postseason {
		conf := div.PromotionConferenceByID(confID)
		if conf == nil {
			return nil, fmt.Errorf("promotion conference %q: %w", confID, models.ErrUnknownMatch)
		}
		return conf.Duel, nil
	}
	conf := div.ConferenceByID(confID)
	if conf == nil {
		return nil, fmt.Errorf("conference %q: %w", confID, models.ErrUnknownMatch)
	}
	return conf.Group, nil
}
