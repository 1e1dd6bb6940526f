package models

import "time"

// Role is a membership role within a group. RoleNone means no membership.
type Role string

const (
	RoleNone   Role = ""
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r can be stored on a membership.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupWithRole is a group as seen by one of its members.
type GroupWithRole struct {
	Group
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Membership is a row of user_groups.
type Membership struct {
	UserID   int64     `json:"user_id"`
	GroupID  int64     `json:"group_id"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// Member is a membership joined with the user profile.
type Member struct {
	UserID   int64     `json:"user_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
