// Package session owns the client's current-user identity and loading state.
// Every remote failure is converted to a displayable error at this boundary;
// nothing from the auth collaborator escapes raw. No call is retried.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"habitsync/internal/remote"
	"habitsync/internal/util"
)

const minPasswordLength = 8

// Manager wraps sign-up/sign-in/sign-out against the remote auth collaborator.
// It starts loading with no user; Initialize settles it exactly once.
type Manager struct {
	auth remote.Auth

	mu      sync.Mutex
	secret  string
	userID  string
	loading bool

	initOnce sync.Once
}

// NewManager builds a manager. restoredSecret is a previously persisted
// session secret, empty when none exists.
func NewManager(auth remote.Auth, restoredSecret string) *Manager {
	return &Manager{
		auth:    auth,
		secret:  restoredSecret,
		loading: true,
	}
}

// Initialize asks the collaborator whether the restored secret still names a
// session. Runs exactly once per manager; loading always clears when settled.
func (m *Manager) Initialize(ctx context.Context) {
	m.initOnce.Do(func() {
		m.mu.Lock()
		secret := m.secret
		m.mu.Unlock()

		var userID string
		if secret != "" {
			if identity, err := m.auth.CurrentSession(ctx, secret); err == nil {
				userID = identity.UserID
			}
		}

		m.mu.Lock()
		m.userID = userID
		if userID == "" {
			m.secret = ""
		}
		m.loading = false
		m.mu.Unlock()
	})
}

// SignUp creates an account and signs it in. The returned error is always a
// human-readable description safe to display.
func (m *Manager) SignUp(ctx context.Context, name, surname, email, password string) error {
	if name == "" || surname == "" || email == "" || password == "" {
		return errors.New("please fill all required fields")
	}
	if len(password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}

	if err := m.auth.CreateAccount(ctx, util.NewDocumentID(), email, password, name+" "+surname); err != nil {
		return displayable(err, "an error occurred during sign up")
	}
	return m.SignIn(ctx, email, password)
}

// SignIn creates a remote session, then fetches and stores the resulting
// identity.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return errors.New("please fill all required fields")
	}

	sess, err := m.auth.CreateSession(ctx, email, password)
	if err != nil {
		return displayable(err, "an error occurred during sign in")
	}

	identity, err := m.auth.CurrentSession(ctx, sess.Secret)
	if err != nil {
		return displayable(err, "an error occurred during sign in")
	}

	m.mu.Lock()
	m.secret = sess.Secret
	m.userID = identity.UserID
	m.loading = false
	m.mu.Unlock()
	return nil
}

// SignOut destroys the remote session and clears the local user. The local
// user clears even when the remote call fails; the failure is still reported.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	secret := m.secret
	m.secret = ""
	m.userID = ""
	m.mu.Unlock()

	if secret == "" {
		return nil
	}
	if err := m.auth.DeleteSession(ctx, secret); err != nil {
		return displayable(err, "an error occurred during sign out")
	}
	return nil
}

// UserID returns the current user, if any.
func (m *Manager) UserID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID, m.userID != ""
}

// IsLoading reports whether the session is still resolving.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Secret exposes the session secret for persistence by the host application.
func (m *Manager) Secret() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secret
}

// displayable keeps collaborator messages that read like sentences and hides
// the rest behind a generic description.
func displayable(err error, fallback string) error {
	msg := strings.TrimSpace(err.Error())
	if msg == "" || strings.Contains(msg, ":") {
		return errors.New(fallback)
	}
	return errors.New(msg)
}
