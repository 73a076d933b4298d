// Package auth models the signed-in user as an explicit value passed through
// constructors and handlers. Nothing in the codebase reads ambient global
// user state.
package auth

// Session identifies the authenticated user for the duration of a request or
// a viewer session.
type Session struct {
	UserID string
	Token  string
}

func (s Session) Authenticated() bool {
	return s.UserID != ""
}
