// Package client ties the session, the synced collections and the habit
// service together into the surface a host application drives. One client
// serves one device; its collections follow whichever user is signed in.
package client

import (
	"context"
	"errors"
	"time"

	"habitsync/internal/guard"
	"habitsync/internal/habits"
	"habitsync/internal/remote"
	"habitsync/internal/session"
	"habitsync/internal/synced"
)

// ErrNotSignedIn is returned by operations that need a current user.
var ErrNotSignedIn = errors.New("not signed in")

// ErrHabitNotFound is returned when an operation names an unknown habit.
var ErrHabitNotFound = errors.New("habit not found")

// Client is the composed application engine.
type Client struct {
	session     *session.Manager
	habits      *synced.Collection[habits.Habit]
	completions *synced.Collection[habits.Completion]
	service     *habits.Service
	now         func() time.Time
}

// New builds a client against the remote collaborators. restoredSecret is a
// previously persisted session secret, empty on first run.
func New(auth remote.Auth, store remote.Store, bus remote.Bus, restoredSecret string) *Client {
	c := &Client{
		session: session.NewManager(auth, restoredSecret),
		now:     time.Now,
	}
	c.habits = synced.NewCollection(
		habits.CollectionHabits, store, bus,
		habits.DecodeHabit,
		habits.HabitsQuery,
	)
	c.completions = synced.NewCollection(
		habits.CollectionCompletions, store, bus,
		habits.DecodeCompletion,
		habits.CompletionsQuery,
	)
	c.service = habits.NewService(store, c.CompletedToday)
	return c
}

// Initialize restores the persisted session, if any, and activates the
// collections when a user comes back. Safe to call once per client.
func (c *Client) Initialize(ctx context.Context) error {
	c.session.Initialize(ctx)
	if _, ok := c.session.UserID(); !ok {
		return nil
	}
	return c.activate(ctx)
}

// SignUp registers an account and signs it in.
func (c *Client) SignUp(ctx context.Context, name, surname, email, password string) error {
	if err := c.session.SignUp(ctx, name, surname, email, password); err != nil {
		return err
	}
	return c.activate(ctx)
}

// SignIn authenticates and starts syncing the user's data.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	if err := c.session.SignIn(ctx, email, password); err != nil {
		return err
	}
	return c.activate(ctx)
}

// SignOut stops syncing before the user clears, so no events for the old user
// can land in a later user's view.
func (c *Client) SignOut(ctx context.Context) error {
	c.habits.Deactivate()
	c.completions.Deactivate()
	return c.session.SignOut(ctx)
}

func (c *Client) activate(ctx context.Context) error {
	userID, ok := c.session.UserID()
	if !ok {
		return ErrNotSignedIn
	}
	if err := c.habits.Activate(ctx, userID); err != nil {
		return err
	}
	if err := c.completions.Activate(ctx, userID); err != nil {
		c.habits.Deactivate()
		return err
	}
	return nil
}

// Guard decides the navigation action for the current auth state.
func (c *Client) Guard(inAuthSection bool) guard.Action {
	_, authed := c.session.UserID()
	return guard.Decide(c.session.IsLoading(), authed, inAuthSection)
}

// UserID returns the signed-in user, if any.
func (c *Client) UserID() (string, bool) {
	return c.session.UserID()
}

// IsLoading reports whether the restored session is still resolving.
func (c *Client) IsLoading() bool {
	return c.session.IsLoading()
}

// SessionSecret exposes the secret for persistence by the host application.
func (c *Client) SessionSecret() string {
	return c.session.Secret()
}

// Habits returns the cached habit list in fetch order.
func (c *Client) Habits() []habits.Habit {
	return c.habits.Items()
}

// Completions returns the cached completion log.
func (c *Client) Completions() []habits.Completion {
	return c.completions.Items()
}

// Streaks derives per-habit statistics from the cached completion log, ranked
// by best streak.
func (c *Client) Streaks() []habits.HabitStats {
	return habits.ComputeStats(c.habits.Items(), c.completions.Items())
}

// CompletedToday reports whether the cached log already holds a completion for
// the habit on the current local day.
func (c *Client) CompletedToday(habitID string) bool {
	now := c.now()
	for _, completion := range c.completions.Items() {
		if completion.HabitID == habitID && habits.SameLocalDay(now, completion.CompletedAt) {
			return true
		}
	}
	return false
}

// CreateHabit adds a habit for the signed-in user.
func (c *Client) CreateHabit(ctx context.Context, title, description string, frequency habits.Frequency) (habits.Habit, error) {
	userID, ok := c.session.UserID()
	if !ok {
		return habits.Habit{}, ErrNotSignedIn
	}
	return c.service.CreateHabit(ctx, userID, title, description, frequency)
}

// DeleteHabit removes one of the signed-in user's habits.
func (c *Client) DeleteHabit(ctx context.Context, habitID string) error {
	if _, err := c.ownedHabit(habitID); err != nil {
		return err
	}
	return c.service.DeleteHabit(ctx, habitID)
}

// CompleteHabit records today's completion for the habit and refreshes the
// completion cache so a repeated tap is seen as already done even before the
// change event arrives.
func (c *Client) CompleteHabit(ctx context.Context, habitID string) error {
	habit, err := c.ownedHabit(habitID)
	if err != nil {
		return err
	}
	if err := c.service.CompleteHabit(ctx, habit); err != nil {
		return err
	}
	c.completions.Refresh(ctx)
	return nil
}

func (c *Client) ownedHabit(habitID string) (habits.Habit, error) {
	if _, ok := c.session.UserID(); !ok {
		return habits.Habit{}, ErrNotSignedIn
	}
	for _, habit := range c.habits.Items() {
		if habit.ID == habitID {
			return habit, nil
		}
	}
	return habits.Habit{}, ErrHabitNotFound
}
