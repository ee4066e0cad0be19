package models

import "time"

// User represents a registered daybook user. The Telegram chat id is the
// external identity; it is unique and never changes after registration.
type User struct {
	ID         string    `db:"id" json:"id"`
	TelegramID int64     `db:"telegram_id" json:"telegram_id"`
	Name       string    `db:"name" json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
