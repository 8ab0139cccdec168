package tournament

import (
	"fmt"
	"sort"

	"github.com/playliga/engine/models"
)

// GroupStageOptions configure a round-robin group stage.
type GroupStageOptions struct {
	// GroupSize is the target number of competitors per group. The final
	// group absorbs any remainder rather than forming an undersized extra
	// group.
	GroupSize int `json:"groupSize"`

	// MeetTwice schedules a second pass with mirrored pairings.
	MeetTwice bool `json:"meetTwice"`
}

// GroupStage is a seeded round-robin stage over one or more groups. Seeds are
// 1-based and stable for the stage's lifetime: seed n is the competitor at
// index n-1 of the owning conference. Matches within a round are mutually
// independent and can be played in any order.
type GroupStage struct {
	size      int
	groupSize int
	meetTwice bool

	groups [][]int
	rounds [][]*models.Match
	byID   map[models.MatchID]*models.Match
	order  []models.MatchID
}

// NewGroupStage builds the schedule for count seeded competitors. It fails
// with ErrInvalidTopology when the configuration cannot produce groups of at
// least two competitors.
func NewGroupStage(count int, opts GroupStageOptions) (*GroupStage, error) {
	if count < 2 {
		return nil, fmt.Errorf("group stage needs at least 2 competitors, got %d: %w", count, models.ErrInvalidTopology)
	}
	if opts.GroupSize < 2 {
		return nil, fmt.Errorf("group size %d: %w", opts.GroupSize, models.ErrInvalidTopology)
	}

	groups := serpentine(count, opts.GroupSize)
	for _, g := range groups {
		if len(g) < 2 {
			return nil, fmt.Errorf("grouping %d competitors by %d leaves a group of %d: %w",
				count, opts.GroupSize, len(g), models.ErrInvalidTopology)
		}
	}

	s := &GroupStage{
		size:      count,
		groupSize: opts.GroupSize,
		meetTwice: opts.MeetTwice,
		groups:    groups,
		byID:      make(map[models.MatchID]*models.Match),
	}
	s.schedule()

	return s, nil
}

// serpentine deals seeds into ceil(count/groupSize) groups, reversing
// direction every pass so the seed pots spread evenly.
func serpentine(count, groupSize int) [][]int {
	numGroups := (count + groupSize - 1) / groupSize
	groups := make([][]int, numGroups)

	seed := 1
	for pass := 0; seed <= count; pass++ {
		for i := 0; i < numGroups && seed <= count; i++ {
			g := i
			if pass%2 != 0 {
				g = numGroups - 1 - i
			}
			groups[g] = append(groups[g], seed)
			seed++
		}
	}

	return groups
}

func (s *GroupStage) schedule() {
	passes := 1
	if s.meetTwice {
		passes = 2
	}

	// per-group pairings per round, all groups merged into global rounds
	var perGroup [][][][2]int
	maxRounds := 0
	for _, seeds := range s.groups {
		rounds := circleMethod(seeds, passes)
		perGroup = append(perGroup, rounds)
		if len(rounds) > maxRounds {
			maxRounds = len(rounds)
		}
	}

	s.rounds = make([][]*models.Match, maxRounds)
	for r := 0; r < maxRounds; r++ {
		for g, rounds := range perGroup {
			if r >= len(rounds) {
				continue
			}
			for i, pair := range rounds[r] {
				m := &models.Match{
					ID:    models.MatchID{S: g + 1, R: r + 1, M: i + 1},
					Seeds: [2]int{pair[0], pair[1]},
				}
				s.rounds[r] = append(s.rounds[r], m)
				s.byID[m.ID] = m
				s.order = append(s.order, m.ID)
			}
		}
	}
}

// circleMethod produces the round-robin pairings for one group using the
// classic circle rotation. Odd-sized groups get a rotating bye. A second
// pass mirrors home and away.
func circleMethod(seeds []int, passes int) [][][2]int {
	slots := append([]int(nil), seeds...)
	if len(slots)%2 != 0 {
		slots = append(slots, models.SeedBye)
	}
	numRounds := len(slots) - 1
	numMatches := len(slots) / 2

	var rounds [][][2]int
	for pass := 0; pass < passes; pass++ {
		for r := 0; r < numRounds; r++ {
			var round [][2]int
			for i := 0; i < numMatches; i++ {
				a := slots[circleIndex(i, len(slots), r)]
				b := slots[circleIndex(len(slots)-1-i, len(slots), r)]
				if a == models.SeedBye || b == models.SeedBye {
					continue
				}
				if (i == 0 && r%2 != 0) != (pass%2 != 0) {
					a, b = b, a
				}
				round = append(round, [2]int{a, b})
			}
			rounds = append(rounds, round)
		}
	}

	return rounds
}

// circleIndex pins slot 0 and rotates the rest by the round number.
func circleIndex(index, length, round int) int {
	if index == 0 {
		return 0
	}
	index -= 1
	index -= round
	index += length - 1
	index %= length - 1
	return index + 1
}

// Rounds returns the full schedule as match copies.
func (s *GroupStage) Rounds() [][]models.Match {
	out := make([][]models.Match, len(s.rounds))
	for r, round := range s.rounds {
		out[r] = make([]models.Match, len(round))
		for i, m := range round {
			out[r][i] = *m
		}
	}
	return out
}

// CurrentRound returns the earliest round with an undecided match, or nil
// when the stage is done.
func (s *GroupStage) CurrentRound() []models.Match {
	for _, round := range s.rounds {
		pending := false
		for _, m := range round {
			if !m.Decided() {
				pending = true
				break
			}
		}
		if !pending {
			continue
		}
		out := make([]models.Match, len(round))
		for i, m := range round {
			out[i] = *m
		}
		return out
	}
	return nil
}

// Score records a result. Re-scoring a decided match always fails and never
// alters the recorded result. Draws are allowed in group play.
func (s *GroupStage) Score(id models.MatchID, score [2]int) error {
	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("group stage match %v: %w", id, models.ErrUnknownMatch)
	}
	if m.Decided() {
		return fmt.Errorf("group stage match %v: %w", id, models.ErrMatchAlreadyScored)
	}
	res := score
	m.Score = &res
	return nil
}

// Unscorable returns nil when the match can be scored now. Round-robin
// matches have no dependencies, so the only blocking reason is a recorded
// result.
func (s *GroupStage) Unscorable(id models.MatchID) error {
	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("group stage match %v: %w", id, models.ErrUnknownMatch)
	}
	if m.Decided() {
		return fmt.Errorf("group stage match %v: %w", id, models.ErrMatchAlreadyScored)
	}
	return nil
}

// SetVenue attaches a venue to a match.
func (s *GroupStage) SetVenue(id models.MatchID, venue string) error {
	m, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("group stage match %v: %w", id, models.ErrUnknownMatch)
	}
	m.Venue = venue
	return nil
}

// MatchesDone reports whether every match in id's group and round is decided.
func (s *GroupStage) MatchesDone(id models.MatchID) bool {
	found := false
	for _, mid := range s.order {
		if mid.S != id.S || mid.R != id.R {
			continue
		}
		found = true
		if !s.byID[mid].Decided() {
			return false
		}
	}
	return found
}

// IsDone reports whether every scheduled match is decided.
func (s *GroupStage) IsDone() bool {
	for _, m := range s.byID {
		if !m.Decided() {
			return false
		}
	}
	return true
}

// Results returns standings for every group, ordered by group then position.
// Within a group the order is points desc, then head-to-head points among the
// tied competitors, then seed asc. The chain is fully deterministic, so
// qualification cutoffs never depend on iteration order.
func (s *GroupStage) Results() []models.Standing {
	var out []models.Standing
	for g, seeds := range s.groups {
		table := s.groupTable(g+1, seeds)
		out = append(out, table...)
	}
	return out
}

func (s *GroupStage) groupTable(group int, seeds []int) []models.Standing {
	rows := make(map[int]*models.Standing, len(seeds))
	for _, seed := range seeds {
		rows[seed] = &models.Standing{Seed: seed, Group: group}
	}

	for _, mid := range s.order {
		if mid.S != group {
			continue
		}
		m := s.byID[mid]
		if m.Score == nil {
			continue
		}
		tally(rows[m.Seeds[0]], m.Score[0], m.Score[1])
		tally(rows[m.Seeds[1]], m.Score[1], m.Score[0])
	}

	table := make([]models.Standing, 0, len(seeds))
	for _, seed := range seeds {
		table = append(table, *rows[seed])
	}
	sort.SliceStable(table, func(i, j int) bool {
		if table[i].Points != table[j].Points {
			return table[i].Points > table[j].Points
		}
		return table[i].Seed < table[j].Seed
	})

	s.breakTies(group, table)

	for i := range table {
		table[i].Pos = i + 1
	}
	return table
}

func tally(row *models.Standing, scored, conceded int) {
	row.For += scored
	row.Against += conceded
	switch {
	case scored > conceded:
		row.Wins++
		row.Points += 3
	case scored == conceded:
		row.Draws++
		row.Points++
	default:
		row.Losses++
	}
}

// breakTies reorders clusters of equal points by head-to-head points among
// exactly the tied competitors, falling back to seed order.
func (s *GroupStage) breakTies(group int, table []models.Standing) {
	for lo := 0; lo < len(table); {
		hi := lo + 1
		for hi < len(table) && table[hi].Points == table[lo].Points {
			hi++
		}
		if hi-lo > 1 {
			cluster := table[lo:hi]
			h2h := s.headToHead(group, cluster)
			sort.SliceStable(cluster, func(i, j int) bool {
				if h2h[cluster[i].Seed] != h2h[cluster[j].Seed] {
					return h2h[cluster[i].Seed] > h2h[cluster[j].Seed]
				}
				return cluster[i].Seed < cluster[j].Seed
			})
		}
		lo = hi
	}
}

func (s *GroupStage) headToHead(group int, cluster []models.Standing) map[int]int {
	members := make(map[int]bool, len(cluster))
	for _, row := range cluster {
		members[row.Seed] = true
	}

	points := make(map[int]int, len(cluster))
	for _, mid := range s.order {
		if mid.S != group {
			continue
		}
		m := s.byID[mid]
		if m.Score == nil || !members[m.Seeds[0]] || !members[m.Seeds[1]] {
			continue
		}
		switch {
		case m.Score[0] > m.Score[1]:
			points[m.Seeds[0]] += 3
		case m.Score[0] == m.Score[1]:
			points[m.Seeds[0]]++
			points[m.Seeds[1]]++
		default:
			points[m.Seeds[1]] += 3
		}
	}
	return points
}
