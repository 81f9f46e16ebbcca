package session

import (
	"context"
	"errors"
	"testing"

	"habitsync/internal/remote"
)

type fakeAuth struct {
	currentSessionFn func(context.Context, string) (remote.Identity, error)
	createAccountFn  func(context.Context, string, string, string, string) error
	createSessionFn  func(context.Context, string, string) (remote.Session, error)
	deleteSessionFn  func(context.Context, string) error
}

func (f *fakeAuth) CurrentSession(ctx context.Context, secret string) (remote.Identity, error) {
	if f.currentSessionFn != nil {
		return f.currentSessionFn(ctx, secret)
	}
	return remote.Identity{}, remote.ErrSessionNotFound
}

func (f *fakeAuth) CreateAccount(ctx context.Context, id, email, password, name string) error {
	if f.createAccountFn != nil {
		return f.createAccountFn(ctx, id, email, password, name)
	}
	return nil
}

func (f *fakeAuth) CreateSession(ctx context.Context, email, password string) (remote.Session, error) {
	if f.createSessionFn != nil {
		return f.createSessionFn(ctx, email, password)
	}
	return remote.Session{Secret: "secret-1", UserID: "user-1"}, nil
}

func (f *fakeAuth) DeleteSession(ctx context.Context, secret string) error {
	if f.deleteSessionFn != nil {
		return f.deleteSessionFn(ctx, secret)
	}
	return nil
}

func TestInitialStateIsLoadingAnonymous(t *testing.T) {
	m := NewManager(&fakeAuth{}, "")
	if !m.IsLoading() {
		t.Error("expected loading before Initialize")
	}
	if _, ok := m.UserID(); ok {
		t.Error("expected no user before Initialize")
	}
}

func TestInitializeWithValidRestoredSecret(t *testing.T) {
	auth := &fakeAuth{
		currentSessionFn: func(_ context.Context, secret string) (remote.Identity, error) {
			if secret != "stored-secret" {
				return remote.Identity{}, remote.ErrSessionNotFound
			}
			return remote.Identity{UserID: "user-1"}, nil
		},
	}
	m := NewManager(auth, "stored-secret")
	m.Initialize(context.Background())

	if m.IsLoading() {
		t.Error("expected loading cleared after Initialize")
	}
	userID, ok := m.UserID()
	if !ok || userID != "user-1" {
		t.Errorf("expected user-1, got %q (%v)", userID, ok)
	}
}

func TestInitializeWithNoSession(t *testing.T) {
	m := NewManager(&fakeAuth{}, "stale-secret")
	m.Initialize(context.Background())

	if m.IsLoading() {
		t.Error("expected loading cleared even without a session")
	}
	if _, ok := m.UserID(); ok {
		t.Error("expected anonymous state")
	}
	if m.Secret() != "" {
		t.Error("expected stale secret discarded")
	}
}

func TestInitializeRunsExactlyOnce(t *testing.T) {
	calls := 0
	auth := &fakeAuth{
		currentSessionFn: func(context.Context, string) (remote.Identity, error) {
			calls++
			return remote.Identity{UserID: "user-1"}, nil
		},
	}
	m := NewManager(auth, "secret")
	ctx := context.Background()
	m.Initialize(ctx)
	m.Initialize(ctx)
	m.Initialize(ctx)

	if calls != 1 {
		t.Fatalf("expected exactly one session lookup, got %d", calls)
	}
}

func TestSignUpValidation(t *testing.T) {
	m := NewManager(&fakeAuth{}, "")
	ctx := context.Background()

	if err := m.SignUp(ctx, "", "Snow", "john@example.com", "password1"); err == nil {
		t.Error("expected error for missing name")
	}
	if err := m.SignUp(ctx, "John", "Snow", "john@example.com", "short"); err == nil {
		t.Error("expected error for short password")
	}
}

func TestSignUpCreatesAccountThenSignsIn(t *testing.T) {
	var createdName string
	auth := &fakeAuth{
		createAccountFn: func(_ context.Context, id, email, password, name string) error {
			if id == "" {
				t.Error("expected a generated account id")
			}
			createdName = name
			return nil
		},
		currentSessionFn: func(context.Context, string) (remote.Identity, error) {
			return remote.Identity{UserID: "user-1"}, nil
		},
	}
	m := NewManager(auth, "")

	if err := m.SignUp(context.Background(), "John", "Snow", "john@example.com", "password1"); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if createdName != "John Snow" {
		t.Errorf("expected display name 'John Snow', got %q", createdName)
	}
	if userID, ok := m.UserID(); !ok || userID != "user-1" {
		t.Errorf("expected signed-in user after sign up, got %q (%v)", userID, ok)
	}
}

func TestSignInFailureReturnsDisplayableError(t *testing.T) {
	auth := &fakeAuth{
		createSessionFn: func(context.Context, string, string) (remote.Session, error) {
			return remote.Session{}, errors.New("invalid email or password")
		},
	}
	m := NewManager(auth, "")

	err := m.SignIn(context.Background(), "john@example.com", "wrong-password")
	if err == nil {
		t.Fatal("expected sign-in failure")
	}
	if err.Error() != "invalid email or password" {
		t.Errorf("expected the collaborator message passed through, got %q", err)
	}
	if _, ok := m.UserID(); ok {
		t.Error("expected no user after failed sign in")
	}
}

func TestSignInFailureHidesWrappedInternals(t *testing.T) {
	auth := &fakeAuth{
		createSessionFn: func(context.Context, string, string) (remote.Session, error) {
			return remote.Session{}, errors.New("save session: dial tcp 10.0.0.1:6379: connection refused")
		},
	}
	m := NewManager(auth, "")

	err := m.SignIn(context.Background(), "john@example.com", "password1")
	if err == nil {
		t.Fatal("expected sign-in failure")
	}
	if err.Error() != "an error occurred during sign in" {
		t.Errorf("expected generic description for internal errors, got %q", err)
	}
}

func TestSignOutClearsUserEvenOnRemoteFailure(t *testing.T) {
	auth := &fakeAuth{
		currentSessionFn: func(context.Context, string) (remote.Identity, error) {
			return remote.Identity{UserID: "user-1"}, nil
		},
		deleteSessionFn: func(context.Context, string) error {
			return errors.New("network failure")
		},
	}
	m := NewManager(auth, "")
	if err := m.SignIn(context.Background(), "john@example.com", "password1"); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	err := m.SignOut(context.Background())
	if err == nil {
		t.Error("expected the remote failure reported")
	}
	if _, ok := m.UserID(); ok {
		t.Error("expected local user cleared regardless of remote failure")
	}
}

func TestSignOutWithoutSessionIsNoOp(t *testing.T) {
	deleteCalls := 0
	auth := &fakeAuth{
		deleteSessionFn: func(context.Context, string) error {
			deleteCalls++
			return nil
		},
	}
	m := NewManager(auth, "")

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if deleteCalls != 0 {
		t.Error("expected no remote call without a session")
	}
}
