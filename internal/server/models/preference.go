package models

import "time"

type UserPreference struct {
	UserID               int64     `json:"user_id"`
	ReceiveDuesReminders bool      `json:"receive_dues_reminders"`
	UpdatedAt            time.Time `json:"updated_at,omitempty"`
}
