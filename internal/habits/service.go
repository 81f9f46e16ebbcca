package habits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"habitsync/internal/remote"
	"habitsync/internal/streak"
	"habitsync/internal/util"
)

// completionFetchLimit caps the completion log fetch. Per-user volumes are
// small; the limit only bounds pathological accounts.
const completionFetchLimit = 1000

var (
	ErrTitleRequired       = errors.New("title is required")
	ErrDescriptionRequired = errors.New("description is required")
)

// Service orchestrates compound habit writes. Completing a habit moves two
// documents without a transaction primitive: the completion record lands
// first, then the habit's denormalized counter. completedToday consults the
// caller's locally cached completions-for-today set.
type Service struct {
	store          remote.Store
	completedToday func(habitID string) bool
	now            func() time.Time
}

func NewService(store remote.Store, completedToday func(habitID string) bool) *Service {
	if completedToday == nil {
		completedToday = func(string) bool { return false }
	}
	return &Service{
		store:          store,
		completedToday: completedToday,
		now:            time.Now,
	}
}

// CreateHabit writes a single habit document with a zeroed streak counter.
func (s *Service) CreateHabit(ctx context.Context, userID, title, description string, frequency Frequency) (Habit, error) {
	if title == "" {
		return Habit{}, ErrTitleRequired
	}
	if description == "" {
		return Habit{}, ErrDescriptionRequired
	}
	if _, err := ParseFrequency(string(frequency)); err != nil {
		return Habit{}, err
	}

	now := s.now()
	habit := Habit{
		ID:              util.NewDocumentID(),
		UserID:          userID,
		Title:           title,
		Description:     description,
		Frequency:       frequency,
		StreakCount:     0,
		LastCompletedAt: now,
		CreatedAt:       now,
	}

	if _, err := s.store.Create(ctx, CollectionHabits, habit.ID, encodeHabitFields(habit)); err != nil {
		return Habit{}, fmt.Errorf("create habit: %w", err)
	}
	return habit, nil
}

// DeleteHabit removes the habit document. Its completion records are left
// orphaned; they no longer contribute to any view.
func (s *Service) DeleteHabit(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, CollectionHabits, id); err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// CompleteHabit appends a completion record and then bumps the habit's
// denormalized counter. At most one completion lands per habit per local day;
// a repeat call the same day is a no-op. If the counter update fails after the
// completion was written, the log is still correct and the error is surfaced;
// log-derived stats self-heal the discrepancy.
func (s *Service) CompleteHabit(ctx context.Context, habit Habit) error {
	if s.completedToday(habit.ID) {
		return nil
	}

	now := s.now()
	completion := Completion{
		ID:          util.NewDocumentID(),
		HabitID:     habit.ID,
		UserID:      habit.UserID,
		CompletedAt: now,
	}
	if _, err := s.store.Create(ctx, CollectionCompletions, completion.ID, encodeCompletionFields(completion)); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}

	_, err := s.store.Update(ctx, CollectionHabits, habit.ID, map[string]any{
		"streak_count":   habit.StreakCount + 1,
		"last_completed": now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("update streak counter: %w", err)
	}
	return nil
}

// HabitsQuery scopes a habit fetch to one user.
func HabitsQuery(userID string) []remote.Query {
	return []remote.Query{remote.Equal("user_id", userID)}
}

// CompletionsQuery fetches a user's full completion log.
func CompletionsQuery(userID string) []remote.Query {
	return []remote.Query{
		remote.Equal("user_id", userID),
		remote.Limit(completionFetchLimit),
	}
}

// TodayCompletionsQuery fetches completions since local midnight.
func TodayCompletionsQuery(userID string, now time.Time) []remote.Query {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return []remote.Query{
		remote.Equal("user_id", userID),
		remote.GreaterThanEqual("completed_at", midnight.UTC().Format(time.RFC3339Nano)),
	}
}

// SameLocalDay reports whether two instants fall on the same calendar day in
// the reference time's location.
func SameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// HabitStats pairs a habit with its log-derived statistics.
type HabitStats struct {
	Habit Habit        `json:"habit"`
	Stats streak.Stats `json:"stats"`
}

// ComputeStats derives per-habit statistics from the completion log and ranks
// habits by best streak, ties keeping fetch order. The log, not the habit's
// cached counter, is the source of truth here.
func ComputeStats(habitList []Habit, completions []Completion) []HabitStats {
	byHabit := make(map[string][]time.Time)
	for _, c := range completions {
		byHabit[c.HabitID] = append(byHabit[c.HabitID], c.CompletedAt)
	}

	entries := make([]HabitStats, 0, len(habitList))
	for _, h := range habitList {
		entries = append(entries, HabitStats{
			Habit: h,
			Stats: streak.Compute(byHabit[h.ID]),
		})
	}
	return streak.Rank(entries, func(e HabitStats) int { return e.Stats.BestStreak })
}
