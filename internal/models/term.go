package models

import "time"

// Term is a user-defined academic date range used to bucket grades.
type Term struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Contains reports whether the date falls inside the term range, both ends
// inclusive. Only the calendar day is compared.
func (t Term) Contains(date time.Time) bool {
	day := date.Truncate(24 * time.Hour)
	start := t.StartDate.Truncate(24 * time.Hour)
	end := t.EndDate.Truncate(24 * time.Hour)
	return !day.Before(start) && !day.After(end)
}
