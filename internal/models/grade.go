package models

import "time"

// Grade value bounds, both inclusive.
const (
	GradeMin = 1
	GradeMax = 12
)

// DefaultGradeType tags grades recorded through the regular flow.
const DefaultGradeType = "regular"

// Grade is a single recorded mark. TermID is resolved once from the grade
// date at creation time and is not recomputed when term ranges change later.
type Grade struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Value     int       `db:"value" json:"value"`
	GradeType string    `db:"grade_type" json:"grade_type"`
	Date      time.Time `db:"date" json:"date"`
	TermID    *string   `db:"term_id" json:"term_id,omitempty"`
	Confirmed bool      `db:"confirmed" json:"confirmed"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GradeFilter narrows grade listings. Empty fields are ignored.
type GradeFilter struct {
	SubjectID string
	TermID    string
}

// SubjectAverage carries the aggregation result for one subject. A nil
// Average means the subject has no grades, which is distinct from 0.
type SubjectAverage struct {
	SubjectID   string
	SubjectName string
	Average     *float64
	Count       int
}
