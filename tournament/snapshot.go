package tournament

import (
	"fmt"

	"github.com/playliga/engine/models"
)

// Snapshot schema versions. Restores reject anything else.
const (
	groupStageSnapshotVersion = 1
	duelSnapshotVersion       = 1
)

// MatchState is the persisted state of one match.
type MatchState struct {
	ID       models.MatchID `json:"id"`
	Seeds    [2]int         `json:"p"`
	Score    *[2]int        `json:"m,omitempty"`
	Walkover bool           `json:"walkover,omitempty"`
	Venue    string         `json:"venue,omitempty"`
}

// GroupStageSnapshot is the full, typed serialized form of a GroupStage.
// Restoring it reproduces identical subsequent behavior: same current round,
// same standings, same tie-break outcomes.
type GroupStageSnapshot struct {
	Version int               `json:"version"`
	Size    int               `json:"size"`
	Options GroupStageOptions `json:"options"`
	Matches []MatchState      `json:"matches"`
}

// DuelSnapshot is the full, typed serialized form of a Duel.
type DuelSnapshot struct {
	Version int          `json:"version"`
	Size    int          `json:"size"`
	Options DuelOptions  `json:"options"`
	Matches []MatchState `json:"matches"`
}

// Save captures the stage as a snapshot.
func (s *GroupStage) Save() *GroupStageSnapshot {
	snap := &GroupStageSnapshot{
		Version: groupStageSnapshotVersion,
		Size:    s.size,
		Options: GroupStageOptions{GroupSize: s.groupSize, MeetTwice: s.meetTwice},
		Matches: make([]MatchState, 0, len(s.order)),
	}
	for _, id := range s.order {
		snap.Matches = append(snap.Matches, stateOf(s.byID[id]))
	}
	return snap
}

// Save captures the bracket as a snapshot.
func (d *Duel) Save() *DuelSnapshot {
	snap := &DuelSnapshot{
		Version: duelSnapshotVersion,
		Size:    d.size,
		Options: DuelOptions{Mode: d.mode},
		Matches: make([]MatchState, 0, len(d.order)),
	}
	for _, id := range d.order {
		snap.Matches = append(snap.Matches, stateOf(d.byID[id]))
	}
	return snap
}

func stateOf(m *models.Match) MatchState {
	state := MatchState{
		ID:       m.ID,
		Seeds:    m.Seeds,
		Walkover: m.Walkover,
		Venue:    m.Venue,
	}
	if m.Score != nil {
		score := *m.Score
		state.Score = &score
	}
	return state
}

// RestoreGroupStage rebuilds a stage from a snapshot. The schedule is
// regenerated from the stage parameters and the snapshot must describe
// exactly that schedule; anything else is rejected as a bad snapshot.
func RestoreGroupStage(snap *GroupStageSnapshot) (*GroupStage, error) {
	if snap == nil || snap.Version != groupStageSnapshotVersion {
		return nil, fmt.Errorf("group stage snapshot version: %w", models.ErrBadSnapshot)
	}

	s, err := NewGroupStage(snap.Size, snap.Options)
	if err != nil {
		return nil, fmt.Errorf("rebuilding group stage: %w", err)
	}
	if len(snap.Matches) != len(s.order) {
		return nil, fmt.Errorf("group stage snapshot has %d matches, schedule has %d: %w",
			len(snap.Matches), len(s.order), models.ErrBadSnapshot)
	}

	for _, state := range snap.Matches {
		m, ok := s.byID[state.ID]
		if !ok {
			return nil, fmt.Errorf("group stage snapshot match %v: %w", state.ID, models.ErrBadSnapshot)
		}
		if m.Seeds != state.Seeds || state.Walkover {
			return nil, fmt.Errorf("group stage snapshot match %v disagrees with schedule: %w",
				state.ID, models.ErrBadSnapshot)
		}
		if state.Score != nil {
			score := *state.Score
			m.Score = &score
		}
		m.Venue = state.Venue
	}
	return s, nil
}

// RestoreDuel rebuilds a bracket from a snapshot. Topology is regenerated
// from the bracket parameters; the snapshot supplies propagated seeds,
// scores and walkovers.
func RestoreDuel(snap *DuelSnapshot) (*Duel, error) {
	if snap == nil || snap.Version != duelSnapshotVersion {
		return nil, fmt.Errorf("bracket snapshot version: %w", models.ErrBadSnapshot)
	}

	d, err := NewDuel(snap.Size, snap.Options)
	if err != nil {
		return nil, fmt.Errorf("rebuilding bracket: %w", err)
	}
	if len(snap.Matches) != len(d.order) {
		return nil, fmt.Errorf("bracket snapshot has %d matches, topology has %d: %w",
			len(snap.Matches), len(d.order), models.ErrBadSnapshot)
	}

	for _, state := range snap.Matches {
		m, ok := d.byID[state.ID]
		if !ok {
			return nil, fmt.Errorf("bracket snapshot match %v: %w", state.ID, models.ErrBadSnapshot)
		}
		// byes are structural: the rebuilt bracket and the snapshot
		// must agree on where they sit
		for slot := 0; slot < 2; slot++ {
			if m.Seeds[slot] == models.SeedBye && state.Seeds[slot] != models.SeedBye {
				return nil, fmt.Errorf("bracket snapshot match %v disagrees on byes: %w",
					state.ID, models.ErrBadSnapshot)
			}
		}
		m.Seeds = state.Seeds
		m.Walkover = state.Walkover
		m.Venue = state.Venue
		if state.Score != nil {
			score := *state.Score
			m.Score = &score
		}
	}
	return d, nil
}
