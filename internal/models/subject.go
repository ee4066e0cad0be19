package models

import "time"

// Subject is a school subject owned by a single user. Names are not unique;
// two subjects with the same name are allowed.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
