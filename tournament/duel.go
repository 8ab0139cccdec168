package tournament

import (
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"
	"github.com/playliga/engine/models"
)

// Mode selects the bracket topology.
type Mode int

const (
	// SingleElimination is a straight knockout bracket.
	SingleElimination Mode = iota + 1

	// DoubleElimination adds a losers bracket and a single grand final.
	// There is no bracket reset after the grand final.
	DoubleElimination
)

// Bracket section identifiers used in MatchID.S.
const (
	upperBracket = 1
	lowerBracket = 2
)

// DuelOptions configure an elimination bracket.
type DuelOptions struct {
	Mode Mode `json:"mode"`
}

// feed is the edge payload in the bracket DAG: it tells which slot of the
// target match the source match fills, and with which side of the result.
type feed struct {
	slot  int
	loser bool
}

// Duel is a seeded elimination bracket. Competitor counts that are not a
// power of two are padded with byes, which walk over with no scoring event.
// Bracket matches form a strict dependency DAG: a match cannot be scored
// until every feeder match is decided.
type Duel struct {
	size        int
	mode        Mode
	numRounds   int
	bracketSize int

	byID   map[models.MatchID]*models.Match
	order  []models.MatchID
	depths map[models.MatchID]int
	feeds  graph.Graph[models.MatchID, models.MatchID]
}

// NewDuel builds the bracket for count seeded competitors.
func NewDuel(count int, opts DuelOptions) (*Duel, error) {
	mode := opts.Mode
	if mode == 0 {
		mode = SingleElimination
	}
	if count < 2 {
		return nil, fmt.Errorf("bracket needs at least 2 competitors, got %d: %w", count, models.ErrInvalidTopology)
	}
	if mode == DoubleElimination && count < 3 {
		return nil, fmt.Errorf("double elimination needs at least 3 competitors, got %d: %w", count, models.ErrInvalidTopology)
	}

	numRounds := 0
	for 1<<numRounds < count {
		numRounds++
	}

	d := &Duel{
		size:        count,
		mode:        mode,
		numRounds:   numRounds,
		bracketSize: 1 << numRounds,
		byID:        make(map[models.MatchID]*models.Match),
		depths:      make(map[models.MatchID]int),
		feeds:       graph.New(matchHash, graph.Directed()),
	}
	d.build()
	d.resolveWalkovers()

	return d, nil
}

func matchHash(id models.MatchID) models.MatchID { return id }

func (d *Duel) build() {
	placements := seedPlacements(d.numRounds)

	// upper bracket
	for r := 1; r <= d.numRounds; r++ {
		count := d.bracketSize >> uint(r)
		for m := 1; m <= count; m++ {
			match := &models.Match{ID: models.MatchID{S: upperBracket, R: r, M: m}}
			if r == 1 {
				match.Seeds[0] = d.entrant(placements[2*m-2])
				match.Seeds[1] = d.entrant(placements[2*m-1])
			}
			d.addMatch(match, d.upperDepth(r))
		}
	}
	for r := 1; r < d.numRounds; r++ {
		count := d.bracketSize >> uint(r)
		for m := 1; m <= count; m++ {
			d.addFeed(
				models.MatchID{S: upperBracket, R: r, M: m},
				models.MatchID{S: upperBracket, R: r + 1, M: (m + 1) / 2},
				feed{slot: (m - 1) % 2},
			)
		}
	}

	if d.mode != DoubleElimination {
		return
	}

	// losers bracket: odd rounds pair losers-bracket survivors, even rounds
	// bring in the upper bracket's fresh losers.
	lbRounds := 2 * (d.numRounds - 1)
	for g := 1; g <= lbRounds; g++ {
		for m := 1; m <= d.lowerCount(g); m++ {
			match := &models.Match{ID: models.MatchID{S: lowerBracket, R: g, M: m}}
			d.addMatch(match, g+2)
		}
	}

	grandFinal := models.MatchID{S: lowerBracket, R: lbRounds + 1, M: 1}
	d.addMatch(&models.Match{ID: grandFinal}, 2*d.numRounds+1)

	// upper bracket losers drop down
	for m := 1; m <= d.bracketSize/2; m++ {
		d.addFeed(
			models.MatchID{S: upperBracket, R: 1, M: m},
			models.MatchID{S: lowerBracket, R: 1, M: (m + 1) / 2},
			feed{slot: (m - 1) % 2, loser: true},
		)
	}
	for r := 2; r < d.numRounds; r++ {
		count := d.bracketSize >> uint(r)
		for m := 1; m <= count; m++ {
			d.addFeed(
				models.MatchID{S: upperBracket, R: r, M: m},
				models.MatchID{S: lowerBracket, R: 2 * (r - 1), M: m},
				feed{slot: 1, loser: true},
			)
		}
	}
	d.addFeed(
		models.MatchID{S: upperBracket, R: d.numRounds, M: 1},
		models.MatchID{S: lowerBracket, R: lbRounds, M: 1},
		feed{slot: 1, loser: true},
	)

	// losers bracket progression
	for g := 1; g < lbRounds; g++ {
		for m := 1; m <= d.lowerCount(g); m++ {
			target := models.MatchID{S: lowerBracket, R: g + 1, M: m}
			f := feed{slot: 0}
			if g%2 == 0 {
				target.M = (m + 1) / 2
				f.slot = (m - 1) % 2
			}
			d.addFeed(models.MatchID{S: lowerBracket, R: g, M: m}, target, f)
		}
	}

	// both finalists meet in the grand final
	d.addFeed(models.MatchID{S: upperBracket, R: d.numRounds, M: 1}, grandFinal, feed{slot: 0})
	d.addFeed(models.MatchID{S: lowerBracket, R: lbRounds, M: 1}, grandFinal, feed{slot: 1})
}

func (d *Duel) entrant(placement int) int {
	if placement > d.size {
		return models.SeedBye
	}
	return placement
}

func (d *Duel) lowerCount(g int) int {
	return d.bracketSize >> uint((g+1)/2+1)
}

func (d *Duel) upperDepth(r int) int {
	if d.mode == DoubleElimination {
		return 2*r - 1
	}
	return r
}

func (d *Duel) addMatch(m *models.Match, depth int) {
	d.byID[m.ID] = m
	d.order = append(d.order, m.ID)
	d.depths[m.ID] = depth
	_ = d.feeds.AddVertex(m.ID)
}

func (d *Duel) addFeed(from, to models.MatchID, f feed) {
	_ = d.feeds.AddEdge(from, to, graph.EdgeData(f))
}

// seedPlacements returns the bracket positions for seeds 1..2^rounds using
// the standard fold: seed 1 meets the lowest seed, seed 2 sits in the
// opposite half, and so on.
func seedPlacements(rounds int) []int {
	order := []int{1}
	for r := 1; r <= rounds; r++ {
		n := 1 << uint(r)
		next := make([]int, 0, len(order)*2)
		for _, x := range order {
			next = append(next, x, n+1-x)
		}
		order = next
	}
	return order
}

// resolveWalkovers decides every match with a bye slot and pushes the
// advancing side forward until the bracket is stable.
func (d *Duel) resolveWalkovers() {
	for changed := true; changed; {
		changed = false
		for _, id := range d.order {
			m := d.byID[id]
			if m.Decided() {
				continue
			}
			a, b := m.Seeds[0], m.Seeds[1]
			byes := 0
			if a == models.SeedBye {
				byes++
			}
			if b == models.SeedBye {
				byes++
			}
			if byes == 0 || a == models.SeedTBD || b == models.SeedTBD {
				continue
			}
			m.Walkover = true
			d.propagate(m)
			changed = true
		}
	}
}

// propagate fills the slots of every match fed by m with its winner and
// loser.
func (d *Duel) propagate(m *models.Match) {
	winner, loser := d.outcome(m)
	adjacency, err := d.feeds.AdjacencyMap()
	if err != nil {
		return
	}
	for target, edge := range adjacency[m.ID] {
		f := edge.Properties.Data.(feed)
		seed := winner
		if f.loser {
			seed = loser
		}
		d.byID[target].Seeds[f.slot] = seed
	}
}

func (d *Duel) outcome(m *models.Match) (winner, loser int) {
	if m.Score != nil {
		if m.Score[0] > m.Score[1] {
			return m.Seeds[0], m.Seeds[1]
		}
		return m.Seeds[1], m.Seeds[0]
	}
	// walkover: a bye never advances past a real competitor
	if m.Seeds[0] == models.SeedBye {
		return m.Seeds[1], models.SeedBye
	}
	return m.Seeds[0], models.SeedBye
}

// roundOrder returns match ids grouped into the bracket's playable round
// sequence: upper and lower rounds interleaved so every feeder round comes
// before the rounds it feeds.
func (d *Duel) roundOrder() [][]models.MatchID {
	byDepth := make(map[int][]models.MatchID)
	maxDepth := 0
	for _, id := range d.order {
		depth := d.depths[id]
		byDepth[depth] = append(byDepth[depth], id)
		if depth > maxDepth {
			maxDepth = depth
		}
	}

	var rounds [][]models.MatchID
	for depth := 1; depth <= maxDepth; depth++ {
		ids := byDepth[depth]
		if len(ids) == 0 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool {
			if ids[i].S != ids[j].S {
				return ids[i].S < ids[j].S
			}
			if ids[i].R != ids[j].R {
				return ids[i].R < ids[j].R
			}
			return ids[i].M < ids[j].M
		})
		rounds = append(rounds, ids)
	}
	return rounds
}

// Rounds returns the bracket's playable round sequence as match copies.
func (d *Duel) Rounds() [][]models.Match {
	var out [][]models.Match
	for _, ids := range d.roundOrder() {
		round := make([]models.Match, len(ids))
		for i, id := range ids {
			round[i] = *d.byID[id]
		}
		out = append(out, round)
	}
	return out
}

// CurrentRound returns the earliest round containing an undecided match, or
// nil when the bracket is done. Callers should skip matches reported by
// Unscorable, since a round can mix ready and still-blocked matches.
func (d *Duel) CurrentRound() []models.Match {
	for _, ids := range d.roundOrder() {
		pending := false
		for _, id := range ids {
			if !d.byID[id].Decided() {
				pending = true
				break
			}
		}
		if !pending {
			continue
		}
		round := make([]models.Match, len(ids))
		for i, id := range ids {
			round[i] = *d.byID[id]
		}
		return round
	}
	return nil
}

// Unscorable returns nil when the match can be scored now, otherwise the
// precise blocking reason so matchday generation can skip it without
// erroring.
func (d *Duel) Unscorable(id models.MatchID) error {
	m, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("bracket match %v: %w", id, models.ErrUnknownMatch)
	}
	if m.Walkover {
		return fmt.Errorf("bracket match %v: %w", id, models.ErrMatchWalkover)
	}
	if m.Score != nil {
		return fmt.Errorf("bracket match %v: %w", id, models.ErrMatchAlreadyScored)
	}
	open := 0
	if m.Seeds[0] == models.SeedTBD {
		open++
	}
	if m.Seeds[1] == models.SeedTBD {
		open++
	}
	switch open {
	case 2:
		return fmt.Errorf("bracket match %v: %w", id, models.ErrMatchLocked)
	case 1:
		return fmt.Errorf("bracket match %v: %w", id, models.ErrMatchWaiting)
	}
	return nil
}

// Score records a result and advances both sides through the bracket DAG.
// Draws are rejected: brackets must always produce a winner.
func (d *Duel) Score(id models.MatchID, score [2]int) error {
	if err := d.Unscorable(id); err != nil {
		return err
	}
	if score[0] == score[1] {
		return fmt.Errorf("bracket match %v scored %d-%d: %w", id, score[0], score[1], models.ErrDrawnBracketMatch)
	}

	m := d.byID[id]
	res := score
	m.Score = &res
	d.propagate(m)
	d.resolveWalkovers()
	return nil
}

// SetVenue attaches a venue to a match.
func (d *Duel) SetVenue(id models.MatchID, venue string) error {
	m, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("bracket match %v: %w", id, models.ErrUnknownMatch)
	}
	m.Venue = venue
	return nil
}

// MatchesDone reports whether every match in id's bracket section and round
// is decided.
func (d *Duel) MatchesDone(id models.MatchID) bool {
	found := false
	for _, mid := range d.order {
		if mid.S != id.S || mid.R != id.R {
			continue
		}
		found = true
		if !d.byID[mid].Decided() {
			return false
		}
	}
	return found
}

// IsDone reports whether every match is decided.
func (d *Duel) IsDone() bool {
	for _, m := range d.byID {
		if !m.Decided() {
			return false
		}
	}
	return true
}

// Results ranks competitors by how far they survived. The champion places
// first, the final's loser second, and earlier eliminations share positions
// by round. Competitors still alive share the best achievable position.
func (d *Duel) Results() []models.Standing {
	alive := make(map[int]bool, d.size)
	elimDepth := make(map[int]int, d.size)
	rows := make(map[int]*models.Standing, d.size)
	for seed := 1; seed <= d.size; seed++ {
		alive[seed] = true
		rows[seed] = &models.Standing{Seed: seed, Group: upperBracket}
	}

	for _, id := range d.order {
		m := d.byID[id]
		if m.Score == nil {
			continue
		}
		winner, loser := d.outcome(m)
		rows[winner].Wins++
		rows[winner].Points += 3
		rows[winner].For += max(m.Score[0], m.Score[1])
		rows[winner].Against += min(m.Score[0], m.Score[1])
		rows[loser].Losses++
		rows[loser].For += min(m.Score[0], m.Score[1])
		rows[loser].Against += max(m.Score[0], m.Score[1])

		if d.eliminates(id) {
			alive[loser] = false
			elimDepth[loser] = d.depths[id]
		}
	}

	table := make([]models.Standing, 0, d.size)
	for seed := 1; seed <= d.size; seed++ {
		table = append(table, *rows[seed])
	}
	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if alive[a.Seed] != alive[b.Seed] {
			return alive[a.Seed]
		}
		if !alive[a.Seed] && elimDepth[a.Seed] != elimDepth[b.Seed] {
			return elimDepth[a.Seed] > elimDepth[b.Seed]
		}
		return a.Seed < b.Seed
	})

	// shared positions: everyone eliminated in the same round ranks equally
	for i := range table {
		switch {
		case alive[table[i].Seed]:
			table[i].Pos = 1
		case i > 0 && !alive[table[i-1].Seed] && elimDepth[table[i].Seed] == elimDepth[table[i-1].Seed]:
			table[i].Pos = table[i-1].Pos
		default:
			table[i].Pos = i + 1
		}
	}
	return table
}

// eliminates reports whether losing the given match knocks a competitor out
// of the bracket entirely.
func (d *Duel) eliminates(id models.MatchID) bool {
	if d.mode == SingleElimination {
		return true
	}
	return id.S == lowerBracket
}
