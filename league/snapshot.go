package league

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/playliga/engine/models"
	"github.com/playliga/engine/tournament"
)

// Snapshot schema versions. Decoding rejects anything else, and unknown
// fields anywhere in a snapshot are an error rather than silently dropped.
const (
	leagueSnapshotVersion = 1
	cupSnapshotVersion    = 1
)

// ConferenceSnapshot is the persisted form of a regular-season conference.
type ConferenceSnapshot struct {
	ID          string                         `json:"id"`
	Competitors []models.Competitor            `json:"competitors"`
	Group       *tournament.GroupStageSnapshot `json:"groupObj,omitempty"`
}

// PromotionConferenceSnapshot is the persisted form of a promotion bracket.
type PromotionConferenceSnapshot struct {
	ID          string                   `json:"id"`
	Competitors []models.Competitor      `json:"competitors"`
	Duel        *tournament.DuelSnapshot `json:"duelObj,omitempty"`
}

// DivisionSnapshot is the persisted form of a division.
type DivisionSnapshot struct {
	Name                    string                        `json:"name"`
	Size                    int                           `json:"size"`
	ConferenceSize          int                           `json:"conferenceSize"`
	MeetTwice               bool                          `json:"meetTwice"`
	GroupQualifyNum         int                           `json:"groupQualifyNum"`
	PromotionConferenceSize int                           `json:"promotionConferenceSize"`
	Playoffs                bool                          `json:"playoffs"`
	Competitors             []models.Competitor           `json:"competitors"`
	Conferences             []ConferenceSnapshot          `json:"conferences,omitempty"`
	PromotionConferences    []PromotionConferenceSnapshot `json:"promotionConferences,omitempty"`
}

// LeagueSnapshot is the persisted form of a league.
type LeagueSnapshot struct {
	Version   int                `json:"version"`
	Name      string             `json:"name"`
	Divisions []DivisionSnapshot `json:"divisions"`
}

// CupSnapshot is the persisted form of a cup.
type CupSnapshot struct {
	Version     int                      `json:"version"`
	Name        string                   `json:"name"`
	Competitors []models.Competitor      `json:"competitors"`
	Duel        *tournament.DuelSnapshot `json:"duelObj,omitempty"`
}

// Save captures the league as a snapshot.
func (l *League) Save() *LeagueSnapshot {
	snap := &LeagueSnapshot{Version: leagueSnapshotVersion, Name: l.Name}
	for _, div := range l.Divisions {
		snap.Divisions = append(snap.Divisions, saveDivision(div))
	}
	return snap
}

func saveDivision(d *Division) DivisionSnapshot {
	snap := DivisionSnapshot{
		Name:                    d.Name,
		Size:                    d.Size,
		ConferenceSize:          d.ConferenceSize,
		MeetTwice:               d.MeetTwice,
		GroupQualifyNum:         d.GroupQualifyNum,
		PromotionConferenceSize: d.PromotionConferenceSize,
		Playoffs:                d.Playoffs,
		Competitors:             append([]models.Competitor(nil), d.Competitors...),
	}
	for _, conf := range d.Conferences {
		snap.Conferences = append(snap.Conferences, ConferenceSnapshot{
			ID:          conf.ID,
			Competitors: append([]models.Competitor(nil), conf.Competitors...),
			Group:       conf.Group.Save(),
		})
	}
	for _, conf := range d.PromotionConferences {
		snap.PromotionConferences = append(snap.PromotionConferences, PromotionConferenceSnapshot{
			ID:          conf.ID,
			Competitors: append([]models.Competitor(nil), conf.Competitors...),
			Duel:        conf.Duel.Save(),
		})
	}
	return snap
}

// Save captures the cup as a snapshot.
func (c *Cup) Save() *CupSnapshot {
	snap := &CupSnapshot{
		Version:     cupSnapshotVersion,
		Name:        c.Name,
		Competitors: append([]models.Competitor(nil), c.Competitors...),
	}
	if c.Duel != nil {
		snap.Duel = c.Duel.Save()
	}
	return snap
}

// RestoreLeague rebuilds a league from a snapshot, reproducing identical
// subsequent behavior to the instance that produced it.
func RestoreLeague(snap *LeagueSnapshot) (*League, error) {
	if snap == nil || snap.Version != leagueSnapshotVersion {
		return nil, fmt.Errorf("league snapshot version: %w", models.ErrBadSnapshot)
	}

	l := NewLeague(snap.Name)
	for i := range snap.Divisions {
		div, err := restoreDivision(&snap.Divisions[i])
		if err != nil {
			return nil, err
		}
		l.Divisions = append(l.Divisions, div)
	}
	return l, nil
}

func restoreDivision(snap *DivisionSnapshot) (*Division, error) {
	div := &Division{
		Name:                    snap.Name,
		Size:                    snap.Size,
		ConferenceSize:          snap.ConferenceSize,
		MeetTwice:               snap.MeetTwice,
		GroupQualifyNum:         snap.GroupQualifyNum,
		PromotionConferenceSize: snap.PromotionConferenceSize,
		Playoffs:                snap.Playoffs,
		Competitors:             append([]models.Competitor(nil), snap.Competitors...),
	}
	for _, confSnap := range snap.Conferences {
		group, err := tournament.RestoreGroupStage(confSnap.Group)
		if err != nil {
			return nil, fmt.Errorf("division %q conference %s: %w", snap.Name, confSnap.ID, err)
		}
		div.Conferences = append(div.Conferences, &Conference{
			ID:          confSnap.ID,
			Competitors: append([]models.Competitor(nil), confSnap.Competitors...),
			Group:       group,
		})
	}
	for _, confSnap := range snap.PromotionConferences {
		duel, err := tournament.RestoreDuel(confSnap.Duel)
		if err != nil {
			return nil, fmt.Errorf("division %q promotion conference %s: %w", snap.Name, confSnap.ID, err)
		}
		div.PromotionConferences = append(div.PromotionConferences, &PromotionConference{
			ID:          confSnap.ID,
			Competitors: append([]models.Competitor(nil), confSnap.Competitors...),
			Duel:        duel,
		})
	}
	return div, nil
}

// RestoreCup rebuilds a cup from a snapshot.
func RestoreCup(snap *CupSnapshot) (*Cup, error) {
	if snap == nil || snap.Version != cupSnapshotVersion {
		return nil, fmt.Errorf("cup snapshot version: %w", models.ErrBadSnapshot)
	}

	c := NewCup(snap.Name)
	c.Competitors = append([]models.Competitor(nil), snap.Competitors...)
	if snap.Duel != nil {
		duel, err := tournament.RestoreDuel(snap.Duel)
		if err != nil {
			return nil, fmt.Errorf("cup %q: %w", snap.Name, err)
		}
		c.Duel = duel
	}
	return c, nil
}

// Marshal encodes the league snapshot for the store.
func (l *League) Marshal() ([]byte, error) {
	return json.Marshal(l.Save())
}

// Marshal encodes the cup snapshot for the store.
func (c *Cup) Marshal() ([]byte, error) {
	return json.Marshal(c.Save())
}

// DecodeLeague decodes and restores a stored league snapshot. Unknown fields
// are rejected.
func DecodeLeague(data []byte) (*League, error) {
	var snap LeagueSnapshot
	if err := decodeStrict(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding league snapshot: %w", err)
	}
	return RestoreLeague(&snap)
}

// DecodeCup decodes and restores a stored cup snapshot. Unknown fields are
// rejected.
func DecodeCup(data []byte) (*Cup, error) {
	var snap CupSnapshot
	if err := decodeStrict(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding cup snapshot: %w", err)
	}
	return RestoreCup(&snap)
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%v: %w", err, models.ErrBadSnapshot)
	}
	return nil
}
