package session

import "github.com/collabtask/tasksync/internal/types"

// Decision is what a protected view should do for a given identity.
type Decision int

const (
	// DecisionWait shows a neutral loading state.
	DecisionWait Decision = iota
	// DecisionRender shows the view's content.
	DecisionRender
	// DecisionRedirect sends the user to the login entry point.
	DecisionRedirect
)

func (d Decision) String() string {
	switch d {
	case DecisionWait:
		return "wait"
	case DecisionRender:
		return "render"
	case DecisionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decide applies the protected-view policy to an identity.
func Decide(id Identity) Decision {
	switch id.Status {
	case StatusAuthenticated:
		return DecisionRender
	case StatusUnauthenticated:
		return DecisionRedirect
	default:
		return DecisionWait
	}
}

// Protect re-evaluates the protected-view policy every time the identity
// changes and hands the decision to fn. user is non-nil only with
// DecisionRender. It is not a one-time check: a logout elsewhere flips a
// rendered view to DecisionRedirect.
func (g *Gate) Protect(fn func(d Decision, user *types.User)) (cancel func()) {
	return g.Watch(func(id Identity) {
		d := Decide(id)
		if d == DecisionRender {
			fn(d, id.User)
			return
		}
		fn(d, nil)
	})
}
