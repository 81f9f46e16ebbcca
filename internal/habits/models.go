// Package habits holds the habit domain: typed entities, the decode step at
// the document-store boundary, mutation orchestration, and derived streak
// views.
package habits

import (
	"errors"
	"fmt"
	"time"

	"habitsync/internal/remote"
)

const (
	CollectionHabits      = "habits"
	CollectionCompletions = "habit_completions"
)

// Frequency is a habit's cadence.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

var ErrInvalidFrequency = errors.New("frequency must be daily, weekly, or monthly")

// ParseFrequency validates a cadence string.
func ParseFrequency(value string) (Frequency, error) {
	switch Frequency(value) {
	case Daily, Weekly, Monthly:
		return Frequency(value), nil
	default:
		return "", ErrInvalidFrequency
	}
}

// Habit is owned by exactly one user. StreakCount is a denormalized cache of
// the engine's current streak, bumped on completion rather than recomputed.
type Habit struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Frequency       Frequency `json:"frequency"`
	StreakCount     int       `json:"streakCount"`
	LastCompletedAt time.Time `json:"lastCompletedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Completion is one entry in the append-only completion log. Never updated.
type Completion struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habitId"`
	UserID      string    `json:"userId"`
	CompletedAt time.Time `json:"completedAt"`
}

// DecodeHabit maps an untyped document to a Habit. This is the single
// decode/validate step; nothing downstream touches raw fields.
func DecodeHabit(doc remote.Document) (Habit, error) {
	title, err := fieldString(doc.Fields, "title")
	if err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", doc.ID, err)
	}
	description, err := fieldString(doc.Fields, "description")
	if err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", doc.ID, err)
	}
	rawFrequency, err := fieldString(doc.Fields, "frequency")
	if err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", doc.ID, err)
	}
	frequency, err := ParseFrequency(rawFrequency)
	if err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", doc.ID, err)
	}
	streakCount, err := fieldInt(doc.Fields, "streak_count")
	if err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", doc.ID, err)
	}
	if streakCount < 0 {
		return Habit{}, fmt.Errorf("habit %s: streak_count is negative", doc.ID)
	}
	lastCompleted, err := fieldTime(doc.Fields, "last_completed")
	if err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", doc.ID, err)
	}
	createdAt, err := fieldTime(doc.Fields, "created_at")
	if err != nil {
		return Habit{}, fmt.Errorf("habit %s: %w", doc.ID, err)
	}

	return Habit{
		ID:              doc.ID,
		UserID:          doc.UserID,
		Title:           title,
		Description:     description,
		Frequency:       frequency,
		StreakCount:     streakCount,
		LastCompletedAt: lastCompleted,
		CreatedAt:       createdAt,
	}, nil
}

// DecodeCompletion maps an untyped document to a Completion.
func DecodeCompletion(doc remote.Document) (Completion, error) {
	habitID, err := fieldString(doc.Fields, "habit_id")
	if err != nil {
		return Completion{}, fmt.Errorf("completion %s: %w", doc.ID, err)
	}
	completedAt, err := fieldTime(doc.Fields, "completed_at")
	if err != nil {
		return Completion{}, fmt.Errorf("completion %s: %w", doc.ID, err)
	}

	return Completion{
		ID:          doc.ID,
		HabitID:     habitID,
		UserID:      doc.UserID,
		CompletedAt: completedAt,
	}, nil
}

func encodeHabitFields(h Habit) map[string]any {
	return map[string]any{
		"user_id":        h.UserID,
		"title":          h.Title,
		"description":    h.Description,
		"frequency":      string(h.Frequency),
		"streak_count":   h.StreakCount,
		"last_completed": h.LastCompletedAt.UTC().Format(time.RFC3339Nano),
		"created_at":     h.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func encodeCompletionFields(c Completion) map[string]any {
	return map[string]any{
		"habit_id":     c.HabitID,
		"user_id":      c.UserID,
		"completed_at": c.CompletedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fieldString(fields map[string]any, key string) (string, error) {
	value, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s, nil
}

// fieldInt tolerates float64 because JSON decoding produces it for numbers.
func fieldInt(fields map[string]any, key string) (int, error) {
	value, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("missing field %q", key)
	}
	switch n := value.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("field %q is not a number", key)
	}
}

func fieldTime(fields map[string]any, key string) (time.Time, error) {
	raw, err := fieldString(fields, key)
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q is not a timestamp: %w", key, err)
	}
	return ts, nil
}
