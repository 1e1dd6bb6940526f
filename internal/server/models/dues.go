package models

import "time"

type Dues struct {
	GroupID   int64      `json:"group_id"`
	UserID    int64      `json:"user_id"`
	IsPaid    bool       `json:"is_paid"`
	PaidAt    *time.Time `json:"paid_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MemberDues is a member with their dues status; missing dues rows read as unpaid.
type MemberDues struct {
	UserID int64      `json:"user_id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	IsPaid bool       `json:"is_paid"`
	PaidAt *time.Time `json:"paid_at"`
}
