package models

import (
	"context"
	"time"
)

// Tournament is the contract shared by the two tournament primitives. Both
// are owned-by-value state behind this interface; higher layers never see
// topology-specific internals.
type Tournament interface {
	// Rounds returns the full ordered round structure. The sequence is
	// finite, restartable and deterministic for a given seed order.
	Rounds() [][]Match

	// CurrentRound returns the earliest round that still contains an
	// undecided match, or nil when the tournament is done.
	CurrentRound() []Match

	// Score records a result. It fails with ErrMatchAlreadyScored for
	// decided matches and with an ErrMatchNotReady variant for bracket
	// matches whose feeders are outstanding.
	Score(id MatchID, score [2]int) error

	// Unscorable returns nil when the match can be scored now, otherwise
	// the precise blocking reason.
	Unscorable(id MatchID) error

	// SetVenue attaches a venue to a match.
	SetVenue(id MatchID, venue string) error

	// MatchesDone reports whether every match sharing id's group and
	// round has been decided. M is ignored.
	MatchesDone(id MatchID) bool

	// IsDone reports whether every match is decided.
	IsDone() bool

	// Results returns the ranked table. Ordering is deterministic: it
	// never depends on iteration order of an unordered structure.
	Results() []Standing
}

// Store is the persistence collaborator. Implementations own retry policy
// for transient I/O failures; the engine never retries. All dates are
// compared by calendar day (see DateOnly).
type Store interface {
	FindCompetitionByID(ctx context.Context, id int) (*CompetitionRecord, error)
	SaveCompetition(ctx context.Context, comp *CompetitionRecord) error

	CreateJobs(ctx context.Context, items ...*ActionQueueItem) error
	FindDueJobs(ctx context.Context, date time.Time) ([]*ActionQueueItem, error)
	MarkJobsCompleted(ctx context.Context, ids ...string) error

	SaveMatchResult(ctx context.Context, result *MatchResult) error
	FindMatchResultsByDate(ctx context.Context, date time.Time) ([]*MatchResult, error)

	FindActiveProfile(ctx context.Context) (*Profile, error)
	AdvanceProfileDate(ctx context.Context, date time.Time) error
}

// Oracle computes a score for a match between two teams. It is an opaque
// collaborator: callers must treat results as non-deterministic and both
// values as non-negative.
type Oracle interface {
	Simulate(ctx context.Context, homeID, awayID int) (home int, away int, err error)
}

// Mailer turns a structured payload into a user-visible message. Delivery is
// fire-and-forget from the scheduler's perspective.
type Mailer interface {
	Deliver(ctx context.Context, email EmailPayload) error
}
