package league

import (
	"fmt"

	"github.com/playliga/engine/models"
	"github.com/playliga/engine/tournament"
)

// Cup is a single elimination bracket over all entrants, with no divisions
// or group play.
type Cup struct {
	Name        string              `json:"name"`
	Competitors []models.Competitor `json:"competitors"`
	Duel        *tournament.Duel    `json:"-"`
}

// NewCup returns an empty cup.
func NewCup(name string) *Cup {
	return &Cup{Name: name}
}

// AddCompetitors appends entrants in seed order.
func (c *Cup) AddCompetitors(competitors []models.Competitor) {
	c.Competitors = append(c.Competitors, competitors...)
}

// Started reports whether the bracket exists.
func (c *Cup) Started() bool {
	return c.Duel != nil
}

// Start builds the bracket. Entrant counts that are not powers of two are
// padded with byes.
func (c *Cup) Start() error {
	if c.Started() {
		return nil
	}
	duel, err := tournament.NewDuel(len(c.Competitors), tournament.DuelOptions{Mode: tournament.SingleElimination})
	if err != nil {
		return fmt.Errorf("cup %q: %w", c.Name, err)
	}
	c.Duel = duel
	return nil
}

// IsDone reports whether the bracket has been fully decided.
func (c *Cup) IsDone() bool {
	return c.Started() && c.Duel.IsDone()
}

// CompetitorBySeed returns the entrant holding the given 1-based seed.
func (c *Cup) CompetitorBySeed(seed int) (models.Competitor, bool) {
	if seed < 1 || seed > len(c.Competitors) {
		return models.Competitor{}, false
	}
	return c.Competitors[seed-1], true
}

// SeedNumByID returns the 1-based seed of the entrant with the given id, or
// -1 when they are not in the cup.
func (c *Cup) SeedNumByID(id int) int {
	for i, comp := range c.Competitors {
		if comp.ID == id {
			return i + 1
		}
	}
	return -1
}
