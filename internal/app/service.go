package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"habitsync/internal/auth"
	"habitsync/internal/habits"
	"habitsync/internal/remote"
)

// Session is the resolved caller of an authenticated request.
type Session struct {
	UserID string
	Email  string
	Name   string
}

// Pinger reports backend connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service is the server-side application layer behind the HTTP surface. All
// habit operations are scoped to the session user; a habit owned by someone
// else is indistinguishable from a missing one.
type Service struct {
	auth  *auth.Service
	store remote.Store
	db    Pinger
	redis Pinger
	now   func() time.Time
}

func NewService(authSvc *auth.Service, store remote.Store, db, redis Pinger) *Service {
	return &Service{
		auth:  authSvc,
		store: store,
		db:    db,
		redis: redis,
		now:   time.Now,
	}
}

func (s *Service) PingDB(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Ping(ctx)
}

func (s *Service) PingRedis(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx)
}

func (s *Service) SignUp(ctx context.Context, email, password, name string) error {
	err := s.auth.CreateAccount(ctx, "", email, password, name)
	if errors.Is(err, auth.ErrEmailTaken) {
		return domainError(http.StatusConflict, "EMAIL_EXISTS", "An account with this email already exists", nil)
	}
	if err != nil {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	return nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (remote.Session, error) {
	sess, err := s.auth.CreateSession(ctx, email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return remote.Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
	}
	if err != nil {
		return remote.Session{}, fmt.Errorf("sign in: %w", err)
	}
	return sess, nil
}

func (s *Service) SignOut(ctx context.Context, secret string) error {
	return s.auth.DeleteSession(ctx, secret)
}

func (s *Service) SessionFromToken(ctx context.Context, secret string) (Session, error) {
	identity, err := s.auth.CurrentSession(ctx, secret)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: identity.UserID, Email: identity.Email, Name: identity.Name}, nil
}

func (s *Service) ListHabits(ctx context.Context, userID string) ([]habits.Habit, error) {
	docs, err := s.store.List(ctx, habits.CollectionHabits, habits.HabitsQuery(userID)...)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	items := make([]habits.Habit, 0, len(docs))
	for _, doc := range docs {
		habit, err := habits.DecodeHabit(doc)
		if err != nil {
			return nil, fmt.Errorf("decode habit %s: %w", doc.ID, err)
		}
		items = append(items, habit)
	}
	return items, nil
}

func (s *Service) CreateHabit(ctx context.Context, userID, title, description, frequency string) (habits.Habit, error) {
	freq, err := habits.ParseFrequency(frequency)
	if err != nil {
		return habits.Habit{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	habit, err := s.habitService(ctx, userID).CreateHabit(ctx, userID, title, description, freq)
	if errors.Is(err, habits.ErrTitleRequired) || errors.Is(err, habits.ErrDescriptionRequired) {
		return habits.Habit{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	if err != nil {
		return habits.Habit{}, err
	}
	return habit, nil
}

func (s *Service) DeleteHabit(ctx context.Context, userID, habitID string) error {
	if _, err := s.ownedHabit(ctx, userID, habitID); err != nil {
		return err
	}
	return s.habitService(ctx, userID).DeleteHabit(ctx, habitID)
}

// CompleteHabit records today's completion. The today check queries the store
// rather than trusting the caller, so two devices completing the same habit
// still land one record per day.
func (s *Service) CompleteHabit(ctx context.Context, userID, habitID string) (habits.Habit, error) {
	habit, err := s.ownedHabit(ctx, userID, habitID)
	if err != nil {
		return habits.Habit{}, err
	}
	if err := s.habitService(ctx, userID).CompleteHabit(ctx, habit); err != nil {
		return habits.Habit{}, err
	}
	return s.ownedHabit(ctx, userID, habitID)
}

func (s *Service) Streaks(ctx context.Context, userID string) ([]habits.HabitStats, error) {
	habitList, err := s.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, habits.CollectionCompletions, habits.CompletionsQuery(userID)...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	completions := make([]habits.Completion, 0, len(docs))
	for _, doc := range docs {
		completion, err := habits.DecodeCompletion(doc)
		if err != nil {
			return nil, fmt.Errorf("decode completion %s: %w", doc.ID, err)
		}
		completions = append(completions, completion)
	}
	return habits.ComputeStats(habitList, completions), nil
}

func (s *Service) habitService(ctx context.Context, userID string) *habits.Service {
	return habits.NewService(s.store, func(habitID string) bool {
		return s.completedToday(ctx, userID, habitID)
	})
}

func (s *Service) completedToday(ctx context.Context, userID, habitID string) bool {
	docs, err := s.store.List(ctx, habits.CollectionCompletions, habits.TodayCompletionsQuery(userID, s.now())...)
	if err != nil {
		// Treated as not completed; the worst case is a duplicate record,
		// which log-derived stats absorb.
		return false
	}
	for _, doc := range docs {
		completion, err := habits.DecodeCompletion(doc)
		if err != nil {
			continue
		}
		if completion.HabitID == habitID {
			return true
		}
	}
	return false
}

func (s *Service) ownedHabit(ctx context.Context, userID, habitID string) (habits.Habit, error) {
	habitList, err := s.ListHabits(ctx, userID)
	if err != nil {
		return habits.Habit{}, err
	}
	for _, habit := range habitList {
		if habit.ID == habitID {
			return habit, nil
		}
	}
	return habits.Habit{}, domainError(http.StatusNotFound, "HABIT_NOT_FOUND", "Habit not found", nil)
}
