// Package guard decides navigation policy from session state. The decision is
// level-triggered: it is re-evaluated on every state change and re-entering
// the same state yields the same action.
package guard

// Action is the navigation decision.
type Action int

const (
	None Action = iota
	RedirectToSignIn
	RedirectToHome
)

func (a Action) String() string {
	switch a {
	case RedirectToSignIn:
		return "redirect_to_sign_in"
	case RedirectToHome:
		return "redirect_to_home"
	default:
		return "none"
	}
}

// Decide returns the action for the current session state. While the session
// is still loading no decision is made, which avoids a redirect flicker before
// the session resolves.
func Decide(isLoading, isAuthenticated, inAuthSection bool) Action {
	if isLoading {
		return None
	}
	if !isAuthenticated && !inAuthSection {
		return RedirectToSignIn
	}
	if isAuthenticated && inAuthSection {
		return RedirectToHome
	}
	return None
}
