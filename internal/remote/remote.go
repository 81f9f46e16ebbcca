// Package remote defines the contract exposed by the remote document store,
// its change-event channel, and the auth service. The client engine consumes
// these interfaces only; backends live in internal/store, internal/realtime,
// and internal/auth.
package remote

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrSessionNotFound is returned when no session exists for a secret.
	ErrSessionNotFound = errors.New("session not found")
)

// Identity is the resolved owner of a session.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Session is a server-issued session. The secret is opaque; the server keeps
// only a hash of it.
type Session struct {
	Secret    string    `json:"secret"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Document is an untyped record from the store. Fields beyond the common
// envelope are duck-typed; callers decode them once at their own boundary.
type Document struct {
	ID         string         `json:"id"`
	Collection string         `json:"collection"`
	UserID     string         `json:"user_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Fields     map[string]any `json:"fields"`
}

type QueryOp string

const (
	OpEqual            QueryOp = "equal"
	OpGreaterThanEqual QueryOp = "gte"
	OpLimit            QueryOp = "limit"
)

// Query is a filter applied by Store.List.
type Query struct {
	Op    QueryOp
	Field string
	Value any
}

func Equal(field string, value any) Query {
	return Query{Op: OpEqual, Field: field, Value: value}
}

func GreaterThanEqual(field string, value any) Query {
	return Query{Op: OpGreaterThanEqual, Field: field, Value: value}
}

func Limit(n int) Query {
	return Query{Op: OpLimit, Value: n}
}

type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// Event is a change notification for one document in one collection.
type Event struct {
	Kind       EventKind `json:"kind"`
	Collection string    `json:"collection"`
	Document   Document  `json:"document"`
}

// Auth is the remote authentication collaborator.
type Auth interface {
	// CurrentSession resolves a session secret to its identity, or
	// ErrSessionNotFound.
	CurrentSession(ctx context.Context, secret string) (Identity, error)
	CreateAccount(ctx context.Context, id, email, password, name string) error
	CreateSession(ctx context.Context, email, password string) (Session, error)
	DeleteSession(ctx context.Context, secret string) error
}

// Store is the remote document store collaborator. No ordering is promised by
// List; callers order locally.
type Store interface {
	List(ctx context.Context, collection string, queries ...Query) ([]Document, error)
	Create(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	Update(ctx context.Context, collection, id string, fields map[string]any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
}

// Bus is the change-event channel. Subscribe returns an unsubscribe func that
// is safe to call more than once.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, collection string, fn func(Event)) (func(), error)
}
