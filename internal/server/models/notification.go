package models

import "time"

// NotificationTypeDuesReminder tags log rows written by the reminder policy.
const NotificationTypeDuesReminder = "dues_reminder"

type NotificationLog struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"user_id"`
	GroupID *int64    `json:"group_id,omitempty"`
	Type    string    `json:"type"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// ReminderCandidate is a group member as seen by the reminder policy.
type ReminderCandidate struct {
	GroupID              int64
	GroupName            string
	UserID               int64
	UserName             string
	Email                string
	ReceiveDuesReminders bool
	UnpaidCount          int
}

// Skip reasons and failure markers reported per recipient.
const (
	ReasonRemindersDisabled = "reminders_disabled"
	ReasonNoUnpaidDues      = "no_unpaid_dues"
	ReasonDeliveryFailed    = "delivery_failed"
)

// ReminderResult is the outcome for one member of a reminder run.
type ReminderResult struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	Email    string `json:"email"`
	Sent     bool   `json:"sent"`
	Reason   string `json:"reason,omitempty"`
	PushSent int    `json:"push_sent"`
	PushFail int    `json:"push_failed"`
}

// ReminderReport aggregates a reminder run over one group.
type ReminderReport struct {
	GroupID    int64            `json:"group_id"`
	TotalUsers int              `json:"total_users"`
	Results    []ReminderResult `json:"results"`
}

// SweepSummary aggregates a reminder sweep over all groups.
type SweepSummary struct {
	Groups  int `json:"groups"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
