package league

import (
	"fmt"

	"github.com/playliga/engine/models"
	"github.com/playliga/engine/tournament"
	"github.com/rs/xid"
)

// Default qualification cutoff: top finishers per group that enter the
// promotion bracket.
const DefaultGroupQualifyNum = 2

// Division is one named tier inside a league. It owns its conferences and,
// for tiers that feed a higher division, the promotion brackets seeded from
// group-stage qualifiers.
type Division struct {
	Name           string `json:"name"`
	Size           int    `json:"size"`
	ConferenceSize int    `json:"conferenceSize"`
	MeetTwice      bool   `json:"meetTwice"`

	// GroupQualifyNum is how many finishers per group qualify for the
	// promotion bracket.
	GroupQualifyNum int `json:"groupQualifyNum"`

	// PromotionConferenceSize chunks the qualifiers into that many seeds
	// per bracket. Zero means a single bracket over all qualifiers.
	PromotionConferenceSize int `json:"promotionConferenceSize"`

	// Playoffs marks divisions that run a postseason. The top tier of a
	// league has nothing to promote into and leaves this false.
	Playoffs bool `json:"playoffs"`

	Competitors          []models.Competitor    `json:"competitors"`
	Conferences          []*Conference          `json:"conferences,omitempty"`
	PromotionConferences []*PromotionConference `json:"promotionConferences,omitempty"`
}

// NewDivision returns an unstarted division.
func NewDivision(name string, size, conferenceSize int) *Division {
	return &Division{
		Name:            name,
		Size:            size,
		ConferenceSize:  conferenceSize,
		GroupQualifyNum: DefaultGroupQualifyNum,
	}
}

// AddCompetitor appends a competitor to the division's entry list.
func (d *Division) AddCompetitor(id int, name string, tier int) {
	d.Competitors = append(d.Competitors, models.Competitor{ID: id, Name: name, Tier: tier})
}

// AddCompetitors appends competitors in seed order.
func (d *Division) AddCompetitors(competitors []models.Competitor) {
	d.Competitors = append(d.Competitors, competitors...)
}

// RemoveCompetitor drops the competitor with the given id. Only meaningful
// before the division starts.
func (d *Division) RemoveCompetitor(id int) {
	kept := d.Competitors[:0]
	for _, c := range d.Competitors {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	d.Competitors = kept
}

// Started reports whether conferences have been formed.
func (d *Division) Started() bool {
	return len(d.Conferences) > 0
}

// Start partitions the competitors into conferences of ConferenceSize and
// creates a group stage per conference. When the competitor count does not
// divide evenly, the final conference absorbs the remainder instead of
// forming an undersized extra conference.
func (d *Division) Start() error {
	if d.Started() {
		return nil
	}
	if len(d.Competitors) < 2 {
		return fmt.Errorf("division %q has %d competitors: %w", d.Name, len(d.Competitors), models.ErrInvalidTopology)
	}

	for _, chunk := range chunkCompetitors(d.Competitors, d.ConferenceSize) {
		// Each conference plays as one group, so the remainder-absorbing
		// conference must not be re-split into sub-groups.
		group, err := tournament.NewGroupStage(len(chunk), tournament.GroupStageOptions{
			GroupSize: len(chunk),
			MeetTwice: d.MeetTwice,
		})
		if err != nil {
			return fmt.Errorf("division %q: %w", d.Name, err)
		}
		d.Conferences = append(d.Conferences, &Conference{
			ID:          xid.New().String(),
			Competitors: chunk,
			Group:       group,
		})
	}
	return nil
}

// chunkCompetitors splits competitors into chunks of size. A trailing
// remainder joins the final chunk.
func chunkCompetitors(competitors []models.Competitor, size int) [][]models.Competitor {
	if size < 2 || len(competitors) <= size {
		return [][]models.Competitor{append([]models.Competitor(nil), competitors...)}
	}

	var chunks [][]models.Competitor
	for start := 0; start < len(competitors); start += size {
		end := start + size
		if end > len(competitors) {
			end = len(competitors)
		}
		chunks = append(chunks, append([]models.Competitor(nil), competitors[start:end]...))
	}

	last := len(chunks) - 1
	if last > 0 && len(chunks[last]) < size {
		chunks[last-1] = append(chunks[last-1], chunks[last]...)
		chunks = chunks[:last]
	}
	return chunks
}

// IsGroupStageDone reports whether every conference's group stage is done.
func (d *Division) IsGroupStageDone() bool {
	if !d.Started() {
		return false
	}
	for _, conf := range d.Conferences {
		if !conf.Group.IsDone() {
			return false
		}
	}
	return true
}

// PostSeasonStarted reports whether promotion brackets exist.
func (d *Division) PostSeasonStarted() bool {
	return len(d.PromotionConferences) > 0
}

// StartPostSeason seeds the promotion brackets from each conference's top
// GroupQualifyNum finishers, flattened in conference order then rank order.
// It returns false without error when the division runs no playoffs, the
// group stage is unfinished, or the postseason already started.
func (d *Division) StartPostSeason() (bool, error) {
	if !d.Playoffs || !d.IsGroupStageDone() || d.PostSeasonStarted() {
		return false, nil
	}

	var qualified []models.Competitor
	for _, conf := range d.Conferences {
		qualified = append(qualified, conf.Winners(d.GroupQualifyNum)...)
	}

	size := d.PromotionConferenceSize
	if size <= 0 {
		size = len(qualified)
	}
	for _, chunk := range chunkCompetitors(qualified, size) {
		duel, err := tournament.NewDuel(len(chunk), tournament.DuelOptions{Mode: tournament.SingleElimination})
		if err != nil {
			return false, fmt.Errorf("division %q promotion bracket: %w", d.Name, err)
		}
		d.PromotionConferences = append(d.PromotionConferences, &PromotionConference{
			ID:          xid.New().String(),
			Competitors: chunk,
			Duel:        duel,
		})
	}
	return true, nil
}

// IsDone reports whether the regular season and, for playoff divisions, the
// promotion brackets have all been decided.
func (d *Division) IsDone() bool {
	if !d.IsGroupStageDone() {
		return false
	}
	if !d.Playoffs {
		return true
	}
	if !d.PostSeasonStarted() {
		return false
	}
	for _, conf := range d.PromotionConferences {
		if !conf.Duel.IsDone() {
			return false
		}
	}
	return true
}

// ConferenceByID returns the regular-season conference with the given id.
func (d *Division) ConferenceByID(id string) *Conference {
	for _, conf := range d.Conferences {
		if conf.ID == id {
			return conf
		}
	}
	return nil
}

// PromotionConferenceByID returns the promotion bracket with the given id.
func (d *Division) PromotionConferenceByID(id string) *PromotionConference {
	for _, conf := range d.PromotionConferences {
		if conf.ID == id {
			return conf
		}
	}
	return nil
}

// ConferenceAndSeedByCompetitorID locates a competitor's regular-season
// conference and seed.
func (d *Division) ConferenceAndSeedByCompetitorID(id int) (*Conference, int) {
	for _, conf := range d.Conferences {
		if seed := conf.SeedNumByID(id); seed > 0 {
			return conf, seed
		}
	}
	return nil, -1
}

// PromotionConferenceAndSeedByCompetitorID locates a competitor's promotion
// bracket and seed, if they qualified.
func (d *Division) PromotionConferenceAndSeedByCompetitorID(id int) (*PromotionConference, int) {
	for _, conf := range d.PromotionConferences {
		if seed := conf.SeedNumByID(id); seed > 0 {
			return conf, seed
		}
	}
	return nil, -1
}

// MatchesDone reports whether every match sharing the given group and round
// has been decided in the conference the payload names.
func (d *Division) MatchesDone(confID string, postseason bool, id models.MatchID) bool {
	if postseason {
		conf := d.PromotionConferenceByID(confID)
		return conf != nil && conf.Duel.MatchesDone(id)
	}
	conf := d.ConferenceByID(confID)
	return conf != nil && conf.Group.MatchesDone(id)
}

// FinalStandings ranks the division's competitors best to worst once play
// has started: position 1 of every conference first (in conference order),
// then position 2, and so on. The orchestrator applies promotion and
// relegation zones to this ordering.
func (d *Division) FinalStandings() []models.Competitor {
	if !d.Started() {
		return append([]models.Competitor(nil), d.Competitors...)
	}

	ranked := make([][]models.Competitor, len(d.Conferences))
	maxLen := 0
	for i, conf := range d.Conferences {
		for _, row := range conf.Group.Results() {
			if comp, ok := conf.CompetitorBySeed(row.Seed); ok {
				ranked[i] = append(ranked[i], comp)
			}
		}
		if len(ranked[i]) > maxLen {
			maxLen = len(ranked[i])
		}
	}

	out := make([]models.Competitor, 0, len(d.Competitors))
	for pos := 0; pos < maxLen; pos++ {
		for _, table := range ranked {
			if pos < len(table) {
				out = append(out, table[pos])
			}
		}
	}
	return out
}

// PromotionWinners returns the champion of every promotion bracket, in
// bracket order. Empty until the postseason completes.
func (d *Division) PromotionWinners() []models.Competitor {
	var out []models.Competitor
	for _, conf := range d.PromotionConferences {
		if !conf.Duel.IsDone() {
			continue
		}
		for _, row := range conf.Duel.Results() {
			if row.Pos == 1 {
				if comp, ok := conf.CompetitorBySeed(row.Seed); ok {
					out = append(out, comp)
				}
				break
			}
		}
	}
	return out
}
