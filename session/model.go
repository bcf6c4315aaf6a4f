package session

import (
	"slices"
	"time"
)

// User is the authenticated user as returned by /api/auth/me/.
type User struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Roles       []string `json:"roles"`
	IsStaff     bool     `json:"is_staff"`
	IsSuperuser bool     `json:"is_superuser"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether role is listed in the user's roles.
func (u *User) HasRole(role string) bool {
	return u != nil && slices.Contains(u.Roles, role)
}

// Staff reports whether the user may manage the collection (gerente).
func (u *User) Staff() bool {
	return u != nil && (u.IsStaff || u.HasRole("staff") || u.Admin())
}

// Admin reports superuser status.
func (u *User) Admin() bool {
	return u != nil && (u.IsSuperuser || u.HasRole("admin"))
}

// HasPermission checks an "app_label:codename" permission. Superusers and the
// "*" wildcard grant everything.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	return slices.Contains(u.Permissions, "*") || slices.Contains(u.Permissions, perm)
}

func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = slices.Clone(u.Roles)
	out.Permissions = slices.Clone(u.Permissions)
	return &out
}

// EventKind enumerates session events.
type EventKind uint8

const (
	// EventLogout ends the session. Published once per failed refresh cycle,
	// on explicit logout and when a replayed request is rejected again.
	EventLogout EventKind = iota + 1
	// EventLogin follows a successful login.
	EventLogin
	// EventUserLoaded follows a successful /me fetch.
	EventUserLoaded
)

func (k EventKind) String() string {
	switch k {
	case EventLogout:
		return "logout"
	case EventLogin:
		return "login"
	case EventUserLoaded:
		return "user_loaded"
	default:
		return "unknown"
	}
}

// Event is delivered to every subscriber of a Manager.
type Event struct {
	Kind   EventKind
	Reason string
	At     time.Time
	User   *User
}

// Logout reasons used by the client.
const (
	ReasonRefreshFailed      = "refresh_failed"
	ReasonReplayUnauthorized = "replay_unauthorized"
	ReasonUserLogout         = "user_logout"
)
