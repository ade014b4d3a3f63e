package model

import "time"

// Checkin is a durably recorded participant check-in.
type Checkin struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"deskId"`
	UniqueID    string    `db:"unique_id" json:"uniqueId"`
	CheckedInAt time.Time `db:"checked_in_at" json:"checkedInAt"`
}

type CreateCheckinParams struct {
	SessionID string
	UniqueID  string
}
