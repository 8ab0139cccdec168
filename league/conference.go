package league

import (
	"github.com/playliga/engine/models"
	"github.com/playliga/engine/tournament"
)

// Conference is a seed-partitioned subset of a division's competitors that
// runs its own round-robin group stage during the regular season. Seed n is
// Competitors[n-1] for the lifetime of the stage.
type Conference struct {
	ID          string              `json:"id"`
	Competitors []models.Competitor `json:"competitors"`
	Group       *tournament.GroupStage `json:"-"`
}

// CompetitorBySeed returns the competitor holding the given 1-based seed.
func (c *Conference) CompetitorBySeed(seed int) (models.Competitor, bool) {
	if seed < 1 || seed > len(c.Competitors) {
		return models.Competitor{}, false
	}
	return c.Competitors[seed-1], true
}

// SeedNumByID returns the 1-based seed of the competitor with the given id,
// or -1 when the competitor is not in this conference.
func (c *Conference) SeedNumByID(id int) int {
	for i, comp := range c.Competitors {
		if comp.ID == id {
			return i + 1
		}
	}
	return -1
}

// Winners returns the top qualify finishers of every group in this
// conference, in group order then rank order. Ties at the cutoff are already
// settled by the stage's deterministic tie-break chain.
func (c *Conference) Winners(qualify int) []models.Competitor {
	if c.Group == nil {
		return nil
	}
	var out []models.Competitor
	for _, row := range c.Group.Results() {
		if row.Pos > qualify {
			continue
		}
		if comp, ok := c.CompetitorBySeed(row.Seed); ok {
			out = append(out, comp)
		}
	}
	return out
}

// PromotionConference runs one promotion bracket over group-stage
// qualifiers. It exists only after a division's postseason has started.
type PromotionConference struct {
	ID          string              `json:"id"`
	Competitors []models.Competitor `json:"competitors"`
	Duel        *tournament.Duel    `json:"-"`
}

// CompetitorBySeed returns the competitor holding the given 1-based seed.
func (c *PromotionConference) CompetitorBySeed(seed int) (models.Competitor, bool) {
	if seed < 1 || seed > len(c.Competitors) {
		return models.Competitor{}, false
	}
	return c.Competitors[seed-1], true
}

// SeedNumByID returns the 1-based seed of the competitor with the given id,
// or -1 when the competitor is not in this bracket.
func (c *PromotionConference) SeedNumByID(id int) int {
	for i, comp := range c.Competitors {
		if comp.ID == id {
			return i + 1
		}
	}
	return -1
}
