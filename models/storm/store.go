// Package storm implements the engine's Store contract over an asdine/storm
// database. One database backs one save file, which gives the engine its
// serialize-access-per-save model: the bolt file lock admits a single writer
// process.
package storm

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/asdine/storm"
	"github.com/asdine/storm/codec/json"

	"github.com/playliga/engine/models"
)

// Store is a storm-backed models.Store.
type Store struct {
	*storm.DB
}

// NewStore opens (or creates) the save file at path.
func NewStore(path string) (*Store, error) {
	db, err := storm.Open(path, storm.Codec(json.Codec))
	if err != nil {
		return nil, fmt.Errorf("opening save file: %w", err)
	}
	return &Store{db}, nil
}

func (s *Store) FindCompetitionByID(_ context.Context, id int) (*models.CompetitionRecord, error) {
	var rec models.CompetitionRecord
	if err := s.One("ID", id, &rec); err != nil {
		if err == storm.ErrNotFound {
			return nil, fmt.Errorf("competition %d: %w", id, models.ErrCompetitionNotFound)
		}
		return nil, fmt.Errorf("loading competition %d: %w", id, err)
	}
	return &rec, nil
}

func (s *Store) SaveCompetition(_ context.Context, comp *models.CompetitionRecord) error {
	if err := s.Save(comp); err != nil {
		return fmt.Errorf("saving competition %d: %w", comp.ID, err)
	}
	return nil
}

func (s *Store) CreateJobs(_ context.Context, items ...*models.ActionQueueItem) error {
	tx, err := s.Begin(true)
	if err != nil {
		return fmt.Errorf("creating jobs: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		item.ActionDate = models.DateOnly(item.ActionDate)
		if err := tx.Save(item); err != nil {
			return fmt.Errorf("creating job %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

// FindDueJobs returns the incomplete jobs dated exactly the given day, in
// creation order. Jobs saved after this call are not part of the returned
// set.
func (s *Store) FindDueJobs(_ context.Context, date time.Time) ([]*models.ActionQueueItem, error) {
	var all []*models.ActionQueueItem
	if err := s.Find("ActionDate", models.DateOnly(date), &all); err != nil && err != storm.ErrNotFound {
		return nil, fmt.Errorf("loading due jobs: %w", err)
	}

	// xid job ids sort by creation time, so this is queue order
	items := all[:0]
	for _, item := range all {
		if !item.Completed {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *Store) MarkJobsCompleted(_ context.Context, ids ...string) error {
	tx, err := s.Begin(true)
	if err != nil {
		return fmt.Errorf("completing jobs: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if err := tx.UpdateField(&models.ActionQueueItem{ID: id}, "Completed", true); err != nil {
			return fmt.Errorf("completing job %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *Store) SaveMatchResult(_ context.Context, result *models.MatchResult) error {
	result.Date = models.DateOnly(result.Date)
	if err := s.Save(result); err != nil {
		return fmt.Errorf("saving result %s: %w", result.ID, err)
	}
	return nil
}

func (s *Store) FindMatchResultsByDate(_ context.Context, date time.Time) ([]*models.MatchResult, error) {
	var results []*models.MatchResult
	if err := s.Find("Date", models.DateOnly(date), &results); err != nil && err != storm.ErrNotFound {
		return nil, fmt.Errorf("loading results: %w", err)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// FindActiveProfile returns the save file's profile. A save file holds
// exactly one.
func (s *Store) FindActiveProfile(_ context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := s.Select().OrderBy("ID").First(&profile); err != nil {
		if err == storm.ErrNotFound {
			return nil, models.ErrProfileNotFound
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return &profile, nil
}

func (s *Store) AdvanceProfileDate(ctx context.Context, date time.Time) error {
	profile, err := s.FindActiveProfile(ctx)
	if err != nil {
		return err
	}
	profile.CurrentDate = models.DateOnly(date)
	if err := s.Save(profile); err != nil {
		return fmt.Errorf("advancing profile date: %w", err)
	}
	return nil
}

// SaveProfile creates or replaces the save file's profile. Hosts call this
// once when setting a save file up.
func (s *Store) SaveProfile(_ context.Context, profile *models.Profile) error {
	profile.CurrentDate = models.DateOnly(profile.CurrentDate)
	if err := s.Save(profile); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}
