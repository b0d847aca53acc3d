package auth

import "strings"

// Action is what a protected view should do.
type Action int

const (
	ActionWait Action = iota
	ActionRedirectLogin
	ActionRedirectHome
	ActionRender
)

func (a Action) String() string {
	switch a {
	case ActionWait:
		return "wait"
	case ActionRedirectLogin:
		return "redirect_login"
	case ActionRedirectHome:
		return "redirect_home"
	case ActionRender:
		return "render"
	default:
		return "unknown"
	}
}

// Decision is the guard outcome. Role is set for ActionRedirectHome.
type Decision struct {
	Action Action
	Role   Role
}

// Decide is the guard for protected views. An empty required role means
// any signed in subject may render.
func Decide(state State, required Role) Decision {
	if state.Loading {
		return Decision{Action: ActionWait}
	}

	if state.User == nil {
		return Decision{Action: ActionRedirectLogin}
	}

	if required != "" && state.Role() != required {
		if role := state.Role(); role.IsValid() {
			return Decision{Action: ActionRedirectHome, Role: role}
		}
		return Decision{Action: ActionRedirectLogin}
	}

	return Decision{Action: ActionRender}
}

// DecideEntry is the guard for anonymous only surfaces (landing, sign in,
// registration): a signed in subject with a known role is sent home.
func DecideEntry(state State) Decision {
	if state.Loading {
		return Decision{Action: ActionWait}
	}

	if role := state.Role(); state.User != nil && role.IsValid() {
		return Decision{Action: ActionRedirectHome, Role: role}
	}

	return Decision{Action: ActionRender}
}

// Routes maps guard decisions to paths.
type Routes struct {
	Login         string
	Homes         map[Role]string
	AnonymousOnly []string
}

// DefaultRoutes returns the marketplace routes.
func DefaultRoutes() Routes {
	return Routes{
		Login: "/login",
		Homes: map[Role]string{
			RoleDeveloper: "/welcome/developer",
			RoleCompany:   "/welcome/company",
		},
		AnonymousOnly: []string{"/", "/login", "/register"},
	}
}

// IsAnonymousOnly reports whether path is an entry surface.
func (r Routes) IsAnonymousOnly(path string) bool {
	path = normalizePath(path)
	for _, p := range r.AnonymousOnly {
		if normalizePath(p) == path {
			return true
		}
	}
	return false
}

// Guard decides for path, applying the entry surface rule on anonymous only
// paths and Decide everywhere else.
func (r Routes) Guard(state State, path string, required Role) Decision {
	if r.IsAnonymousOnly(path) {
		return DecideEntry(state)
	}
	return Decide(state, required)
}

// Path returns the redirect target of d, or "" when there is nothing to
// navigate to.
func (r Routes) Path(d Decision) string {
	switch d.Action {
	case ActionRedirectLogin:
		return r.Login
	case ActionRedirectHome:
		if home, ok := r.Homes[d.Role]; ok {
			return home
		}
		return r.Login
	default:
		return ""
	}
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
