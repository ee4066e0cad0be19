package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionJSONRoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		state State
	}{
		{"add_subject", NewAddSubject()},
		{"add_term_mid_flow", &AddTermState{
			Step:      StepTermEnd,
			Name:      "Fall 2025",
			StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		}},
		{"add_grade", NewAddGrade("subject-1")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			original := &Session{
				Identity:  42,
				State:     tc.state,
				StartedAt: now,
				UpdatedAt: now.Add(time.Minute),
			}

			raw, err := json.Marshal(original)
			require.NoError(t, err)

			var restored Session
			require.NoError(t, json.Unmarshal(raw, &restored))

			assert.Equal(t, original.Identity, restored.Identity)
			assert.Equal(t, original.State.Kind(), restored.State.Kind())
			assert.True(t, original.StartedAt.Equal(restored.StartedAt))
			assert.True(t, original.UpdatedAt.Equal(restored.UpdatedAt))
		})
	}
}

func TestSessionJSONPreservesTermProgress(t *testing.T) {
	original := &Session{
		Identity: 7,
		State: &AddTermState{
			Step:      StepTermEnd,
			Name:      "Spring 2026",
			StartDate: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		},
		StartedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Session
	require.NoError(t, json.Unmarshal(raw, &restored))

	state, ok := restored.State.(*AddTermState)
	require.True(t, ok)
	assert.Equal(t, StepTermEnd, state.Step)
	assert.Equal(t, "Spring 2026", state.Name)
	assert.True(t, state.StartDate.Equal(time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)))
}

func TestSessionJSONRejectsUnknownKind(t *testing.T) {
	raw := []byte(`{"identity":1,"kind":99,"state":{}}`)
	var sess Session
	assert.Error(t, json.Unmarshal(raw, &sess))
}
