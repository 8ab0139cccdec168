// Package engine drives competitions through their lifecycle: starting them,
// generating dated matchday jobs from tournament state, recording simulated
// results back into that state, and rolling seasons over.
//
// The orchestrator holds no tournament state of its own. Every operation
// loads a competition snapshot from the store, mutates it in memory, and
// writes it back; the store is the sole durable coordination point.
package engine

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playliga/engine/models"
)

// Zone is one division's promotion/relegation policy: how many finishers
// move up and how many move down at season end.
type Zone struct {
	Promote  int `json:"promote"`
	Relegate int `json:"relegate"`
}

// Settings is the policy data the orchestrator evaluates. Zones are indexed
// like League.Divisions, top tier first; a nil table disables movement.
type Settings struct {
	VenuePool      []string
	LeagueWeekday  time.Weekday
	CupWeekday     time.Weekday
	PreseasonMonth time.Month
	PreseasonDay   int
	EmailLeadDays  int
	Zones          []Zone
}

// Orchestrator wires the engine's collaborators together.
type Orchestrator struct {
	store    models.Store
	oracle   models.Oracle
	mailer   models.Mailer
	settings Settings
	log      *logrus.Logger
	rand     *rand.Rand
}

// New returns an orchestrator. The mailer may be nil, in which case email
// jobs complete without delivery.
func New(store models.Store, oracle models.Oracle, mailer models.Mailer, settings Settings, log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.New()
	}
	return &Orchestrator{
		store:    store,
		oracle:   oracle,
		mailer:   mailer,
		settings: settings,
		log:      log,
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// assignVenues deals a shuffled copy of the venue pool cyclically across
// every match of the tournament.
func (o *Orchestrator) assignVenues(t models.Tournament) {
	pool := append([]string(nil), o.settings.VenuePool...)
	if len(pool) == 0 {
		return
	}
	o.rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	i := 0
	for _, round := range t.Rounds() {
		for _, match := range round {
			// Venue assignment never fails for ids taken from Rounds.
			_ = t.SetVenue(match.ID, pool[i%len(pool)])
			i++
		}
	}
}

// venuesAssigned reports whether the tournament already carries venues.
func venuesAssigned(t models.Tournament) bool {
	for _, round := range t.Rounds() {
		for _, match := range round {
			return match.Venue != ""
		}
	}
	return false
}

// nextWeekday returns the first occurrence of wd strictly after from, plus
// the given number of extra weeks.
func nextWeekday(from time.Time, wd time.Weekday, weeks int) time.Time {
	days := (int(wd) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return models.DateOnly(from).AddDate(0, 0, days+7*weeks)
}

// NextSeasonStartDate returns the first preseason anchor date strictly after
// from.
func (o *Orchestrator) NextSeasonStartDate(from time.Time) time.Time {
	d := time.Date(from.Year(), o.settings.PreseasonMonth, o.settings.PreseasonDay, 0, 0, 0, 0, time.UTC)
	if !d.After(models.DateOnly(from)) {
		d = d.AddDate(1, 0, 0)
	}
	return d
}

func wrapComp(compID int, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("competition %d: %w", compID, err)
}
