// Command sim runs a headless season simulation against a save file. It
// seeds a demo world on first run, then ticks the calendar until the
// iteration cap is hit.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playliga/engine"
	"github.com/playliga/engine/calendar"
	"github.com/playliga/engine/config"
	"github.com/playliga/engine/league"
	"github.com/playliga/engine/models"
	"github.com/playliga/engine/models/storm"
)

func main() {
	iterations := flag.Int("iterations", 0, "tick cap, overrides ENGINE_MAX_ITERATIONS")
	autoPlay := flag.Bool("autoplay", true, "simulate the viewpoint team's matches instead of halting")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := run(log, *iterations, *autoPlay); err != nil {
		log.WithError(err).Fatal("simulation failed")
	}
}

func run(log *logrus.Logger, iterations int, autoPlay bool) error {
	cfg := config.Load()
	if iterations > 0 {
		cfg.MaxIterations = iterations
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storm.NewStore(cfg.SavePath)
	if err != nil {
		return err
	}
	defer store.Close()

	orch := engine.New(store, diceOracle{}, logMailer{log}, engine.Settings{
		VenuePool:      cfg.VenuePool,
		LeagueWeekday:  cfg.LeagueWeekday,
		CupWeekday:     cfg.CupWeekday,
		PreseasonMonth: cfg.PreseasonMonth,
		PreseasonDay:   cfg.PreseasonDay,
		EmailLeadDays:  cfg.EmailLeadDays,
		Zones: []engine.Zone{
			{Relegate: 1},
			{Promote: 1},
		},
	}, log)

	if err := seedWorld(ctx, store, orch, log); err != nil {
		return err
	}

	loop := calendar.New(store, log)
	orch.RegisterHandlers(loop, autoPlay)
	loop.Register(models.ActionTransferMove, func(ctx context.Context, item *models.ActionQueueItem) (bool, error) {
		log.WithField("job", item.ID).Info("transfer resolved")
		return false, nil
	})

	return loop.Start(ctx, cfg.MaxIterations)
}

// seedWorld creates the profile and the demo competitions on first run.
func seedWorld(ctx context.Context, store *storm.Store, orch *engine.Orchestrator, log *logrus.Logger) error {
	if _, err := store.FindActiveProfile(ctx); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrProfileNotFound) {
		return err
	}

	teams := demoTeams()
	now := models.DateOnly(time.Now())
	if err := store.SaveProfile(ctx, &models.Profile{
		ID:          1,
		TeamID:      teams[0].ID,
		CurrentDate: now,
	}); err != nil {
		return err
	}

	l := league.NewLeague("National Circuit")
	premier := l.AddDivision("Premier", 8, 8)
	premier.MeetTwice = true
	premier.AddCompetitors(teams[:8])
	open := l.AddDivision("Open", 8, 8)
	open.MeetTwice = true
	open.Playoffs = true
	open.PromotionConferenceSize = 4
	open.AddCompetitors(teams[8:])

	leagueData, err := l.Marshal()
	if err != nil {
		return err
	}
	leagueRec := &models.CompetitionRecord{Kind: models.KindLeague, Season: 1, Data: leagueData}
	if err := store.SaveCompetition(ctx, leagueRec); err != nil {
		return err
	}

	c := league.NewCup("Invitational Cup")
	c.AddCompetitors(teams)
	cupData, err := c.Marshal()
	if err != nil {
		return err
	}
	cupRec := &models.CompetitionRecord{Kind: models.KindCup, Season: 1, Data: cupData}
	if err := store.SaveCompetition(ctx, cupRec); err != nil {
		return err
	}

	if err := orch.ScheduleCompetitionStart(ctx, leagueRec.ID, now); err != nil {
		return err
	}
	if err := orch.ScheduleCompetitionStart(ctx, cupRec.ID, now); err != nil {
		return err
	}
	log.WithField("teams", len(teams)).Info("save file seeded")
	return nil
}

func demoTeams() []models.Competitor {
	names := []string{
		"Rival Esports", "Chaos Theory", "Iron Wolves", "Nine Lives",
		"Static Shock", "Deadlock", "Night Market", "Half Volley",
		"Slow Clap", "Third Rail", "Quiet Riot", "Paper Tigers",
		"Low Orbit", "Glass Cannon", "Overtime Club", "Sunday League",
	}
	out := make([]models.Competitor, len(names))
	for i, name := range names {
		tier := 0
		if i >= 8 {
			tier = 1
		}
		out[i] = models.Competitor{ID: i + 1, Name: name, Tier: tier}
	}
	return out
}

// diceOracle stands in for the real score model.
type diceOracle struct{}

func (diceOracle) Simulate(_ context.Context, homeID, awayID int) (int, int, error) {
	if homeID == 0 || awayID == 0 {
		return 0, 0, fmt.Errorf("simulate: missing participant (%d vs %d)", homeID, awayID)
	}
	return rand.Intn(17), rand.Intn(17), nil
}

// logMailer prints delivered emails instead of rendering them.
type logMailer struct {
	log *logrus.Logger
}

func (m logMailer) Deliver(_ context.Context, email models.EmailPayload) error {
	body, _ := json.Marshal(email)
	m.log.WithField("email", string(body)).Info("email delivered")
	return nil
}
