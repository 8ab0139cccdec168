package models

import (
	"encoding/json"
	"time"
)

// Seed placeholder values used in match participant slots.
const (
	// SeedTBD marks a slot whose participant is not yet known because a
	// feeder match has not been decided.
	SeedTBD = 0

	// SeedBye marks a slot that is a bye. The opposing side advances
	// without a scoring event.
	SeedBye = -1
)

// Competitor is an entrant identified by id, name and tier. The engine never
// owns more than this; full team and roster data lives in the external store.
type Competitor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Tier int    `json:"tier"`
}

// MatchID locates a match inside a tournament structure. S is the group
// number for group stages, or the bracket (1 = winners, 2 = losers) for
// elimination brackets. R is the round and M the match order within it.
type MatchID struct {
	S int `json:"s"`
	R int `json:"r"`
	M int `json:"m"`
}

// Match is a single match descriptor. Seeds holds the participants by seed
// number, with SeedTBD and SeedBye as placeholders. Score is nil until the
// match is decided, unless it was decided by walkover.
type Match struct {
	ID       MatchID `json:"id"`
	Seeds    [2]int  `json:"p"`
	Score    *[2]int `json:"m,omitempty"`
	Walkover bool    `json:"walkover,omitempty"`
	Venue    string  `json:"venue,omitempty"`
}

// Decided reports whether the match has a result, by score or by walkover.
func (m Match) Decided() bool {
	return m.Score != nil || m.Walkover
}

// HasSeed reports whether the given seed participates in the match.
func (m Match) HasSeed(seed int) bool {
	return seed != SeedTBD && (m.Seeds[0] == seed || m.Seeds[1] == seed)
}

// Standing is one row of a ranked result table.
type Standing struct {
	Seed    int `json:"seed"`
	Group   int `json:"grp"`
	Pos     int `json:"pos"`
	Wins    int `json:"wins"`
	Draws   int `json:"draws"`
	Losses  int `json:"losses"`
	For     int `json:"for"`
	Against int `json:"against"`
	Points  int `json:"pts"`
}

// ActionType identifies the kind of work an action queue item carries.
type ActionType string

// The job types the engine itself produces and consumes. Hosts may register
// handlers for additional types; the scheduler dispatches them all the same
// way.
const (
	ActionCompetitionStart ActionType = "/competition/start"
	ActionSeasonStart      ActionType = "/season/start"
	ActionMatchdayUser     ActionType = "/matchday/user"
	ActionMatchdayNPC      ActionType = "/matchday/npc"
	ActionEmailSend        ActionType = "/email/send"
	ActionTransferMove     ActionType = "/transfer/move"
)

// ActionQueueItem is a persisted, date-keyed job. Items are created by the
// orchestrator, consumed by the scheduler, and marked completed exactly once.
type ActionQueueItem struct {
	ID         string          `json:"id" storm:"id"`
	Type       ActionType      `json:"type" storm:"index"`
	ActionDate time.Time       `json:"actionDate" storm:"index"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Completed  bool            `json:"completed"`
}

// MatchdayPayload is the payload carried by matchday jobs and match results.
type MatchdayPayload struct {
	CompID     int    `json:"compId"`
	DivID      string `json:"divId,omitempty"`
	ConfID     string `json:"confId,omitempty"`
	Postseason bool   `json:"postseason,omitempty"`
	Match      Match  `json:"match"`
	Team1ID    int    `json:"team1Id"`
	Team2ID    int    `json:"team2Id"`
}

// EmailPayload is the payload carried by email jobs. Delivery is owned by the
// Mailer collaborator; the job still participates in the completion contract.
type EmailPayload struct {
	From    int       `json:"from"`
	To      int       `json:"to"`
	Subject string    `json:"subject"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

// CompetitionKind discriminates the two competition formats.
type CompetitionKind string

const (
	KindLeague CompetitionKind = "league"
	KindCup    CompetitionKind = "cup"
)

// CompetitionRecord is the stored form of a competition. Data holds the
// serialized League or Cup snapshot and is the sole durable copy of
// tournament state.
type CompetitionRecord struct {
	ID      int             `json:"id" storm:"id,increment"`
	Kind    CompetitionKind `json:"kind" storm:"index"`
	Season  int             `json:"season"`
	Started bool            `json:"started"`
	Done    bool            `json:"done"`
	Data    json.RawMessage `json:"data"`
}

// MatchResult is a simulated matchday outcome waiting to be recorded into
// its competition snapshot.
type MatchResult struct {
	ID      string          `json:"id" storm:"id"`
	CompID  int             `json:"compId" storm:"index"`
	Date    time.Time       `json:"date" storm:"index"`
	Payload MatchdayPayload `json:"payload"`
}

// Profile is the active save profile: the simulated clock plus the viewpoint
// team whose matches surface as interactive matchdays.
type Profile struct {
	ID          int       `json:"id" storm:"id,increment"`
	TeamID      int       `json:"teamId"`
	CurrentDate time.Time `json:"currentDate"`
}

// DateOnly truncates t to midnight UTC. The action queue keys jobs by
// calendar day, so every stored date goes through this first.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
