package models

import (
	"errors"
	"fmt"
)

// Errors shared across the tournament primitives and the orchestrator.
// Tournament errors indicate data-consistency bugs and are never retried;
// they abort the enclosing job and leave the last saved snapshot untouched.
var (
	// ErrMatchAlreadyScored is returned when scoring a decided match.
	// The recorded result is never altered by the failed attempt.
	ErrMatchAlreadyScored = errors.New("match has already been scored")

	// ErrMatchNotReady is the base class for scoring attempts against
	// bracket matches whose feeder results are still outstanding.
	ErrMatchNotReady = errors.New("match is not ready to be scored")

	// ErrMatchLocked wraps ErrMatchNotReady: both feeder matches are
	// undecided.
	ErrMatchLocked = fmt.Errorf("both feeder matches are undecided: %w", ErrMatchNotReady)

	// ErrMatchWaiting wraps ErrMatchNotReady: exactly one feeder match is
	// undecided.
	ErrMatchWaiting = fmt.Errorf("one feeder match is undecided: %w", ErrMatchNotReady)

	// ErrMatchWalkover is returned when scoring a match that was decided
	// by a bye walkover. Walkovers carry no scoring event.
	ErrMatchWalkover = errors.New("match was decided by walkover")

	// ErrUnknownMatch is returned for match ids outside the structure.
	ErrUnknownMatch = errors.New("no match with the given id")

	// ErrInvalidTopology is returned at start time when the competitor
	// count cannot form the configured group or bracket structure.
	ErrInvalidTopology = errors.New("competitor count is incompatible with the configured format")

	// ErrDrawnBracketMatch is returned when an elimination match is
	// scored with equal scores. Brackets admit no draws.
	ErrDrawnBracketMatch = errors.New("elimination matches cannot end in a draw")

	// ErrBadSnapshot is returned when a persisted snapshot is malformed,
	// carries unknown fields, or is from an unsupported schema version.
	ErrBadSnapshot = errors.New("snapshot is malformed or from an unknown version")

	// Store-level lookups.
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrProfileNotFound     = errors.New("no active profile")
)
