package models

import "time"

type Invitation struct {
	ID         int64      `json:"id"`
	GroupID    int64      `json:"group_id"`
	Code       string     `json:"code"`
	CreatedBy  int64      `json:"created_by"`
	ExpiresAt  time.Time  `json:"expires_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy *int64     `json:"accepted_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Accepted reports whether the invitation has been consumed.
func (i *Invitation) Accepted() bool { return i.AcceptedAt != nil }

// Expired reports whether the invitation is past its expiry at now.
func (i *Invitation) Expired(now time.Time) bool { return now.After(i.ExpiresAt) }
