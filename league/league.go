package league

import (
	"fmt"

	"github.com/playliga/engine/models"
)

// League is a named competition format: an ordered list of divisions where
// Divisions[0] is the top tier. A competitor belongs to exactly one
// division's entry list at a time; promotion and relegation move competitors
// between adjacent lists, never duplicate them.
type League struct {
	Name      string      `json:"name"`
	Divisions []*Division `json:"divisions"`
}

// NewLeague returns an empty league.
func NewLeague(name string) *League {
	return &League{Name: name}
}

// AddDivision appends a tier below the existing ones and returns it for
// further configuration.
func (l *League) AddDivision(name string, size, conferenceSize int) *Division {
	div := NewDivision(name, size, conferenceSize)
	l.Divisions = append(l.Divisions, div)
	return div
}

// DivisionByName returns the named division, or nil.
func (l *League) DivisionByName(name string) *Division {
	for _, div := range l.Divisions {
		if div.Name == name {
			return div
		}
	}
	return nil
}

// DivisionByCompetitorID returns the division whose entry list contains the
// competitor, or nil.
func (l *League) DivisionByCompetitorID(id int) *Division {
	for _, div := range l.Divisions {
		for _, comp := range div.Competitors {
			if comp.ID == id {
				return div
			}
		}
	}
	return nil
}

// Start forms conferences and schedules every division's regular season.
func (l *League) Start() error {
	if len(l.Divisions) == 0 {
		return fmt.Errorf("league %q has no divisions: %w", l.Name, models.ErrInvalidTopology)
	}
	for _, div := range l.Divisions {
		if err := div.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Started reports whether the league's divisions have formed conferences.
func (l *League) Started() bool {
	for _, div := range l.Divisions {
		if !div.Started() {
			return false
		}
	}
	return len(l.Divisions) > 0
}

// IsGroupStageDone reports whether every division's regular season is done.
func (l *League) IsGroupStageDone() bool {
	for _, div := range l.Divisions {
		if !div.IsGroupStageDone() {
			return false
		}
	}
	return len(l.Divisions) > 0
}

// StartPostSeason starts the promotion brackets of every playoff division
// whose group stage has finished. It reports whether any bracket was
// created.
func (l *League) StartPostSeason() (bool, error) {
	started := false
	for _, div := range l.Divisions {
		ok, err := div.StartPostSeason()
		if err != nil {
			return started, err
		}
		started = started || ok
	}
	return started, nil
}

// IsDone reports whether every division, postseason included, is decided.
func (l *League) IsDone() bool {
	for _, div := range l.Divisions {
		if !div.IsDone() {
			return false
		}
	}
	return len(l.Divisions) > 0
}
