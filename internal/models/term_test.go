package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTermContains(t *testing.T) {
	term := Term{
		StartDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		name string
		date time.Time
		want bool
	}{
		{"start boundary", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), true},
		{"end boundary", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), true},
		{"inside", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"day before", time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), false},
		{"day after", time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC), false},
		{"end boundary with time of day", time.Date(2024, 1, 20, 23, 15, 0, 0, time.UTC), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, term.Contains(tc.date))
		})
	}
}
