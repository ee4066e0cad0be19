// Package session implements the per-user conversational state machine. Each
// external chat identity holds at most one pending multi-step operation; the
// machine advances it as independent text inputs arrive and finalizes by
// calling back into the record store.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// OperationKind names a multi-step operation.
type OperationKind int

const (
	OpAddSubject OperationKind = iota + 1
	OpAddTerm
	OpAddGrade
)

// String returns the operation name used in logs and metrics labels.
func (k OperationKind) String() string {
	switch k {
	case OpAddSubject:
		return "add_subject"
	case OpAddTerm:
		return "add_term"
	case OpAddGrade:
		return "add_grade"
	default:
		return "unknown"
	}
}

// AddTermStep enumerates the add_term flow.
type AddTermStep int

const (
	StepTermName AddTermStep = iota
	StepTermStart
	StepTermEnd
)

// State is the typed context of one pending operation. Each operation kind
// carries its own fields and step position, so there is no stringly-typed
// dispatch anywhere.
type State interface {
	Kind() OperationKind
	// prompt returns the instruction for the step the flow is currently on.
	prompt() string
}

// AddSubjectState is the single-step add_subject flow.
type AddSubjectState struct{}

// Kind implements State.
func (*AddSubjectState) Kind() OperationKind { return OpAddSubject }

func (*AddSubjectState) prompt() string { return "Please enter the name of the subject:" }

// AddTermState is the three-step add_term flow. Answers accumulate as the
// steps complete.
type AddTermState struct {
	Step      AddTermStep `json:"step"`
	Name      string      `json:"name,omitempty"`
	StartDate time.Time   `json:"start_date,omitempty"`
}

// Kind implements State.
func (*AddTermState) Kind() OperationKind { return OpAddTerm }

func (s *AddTermState) prompt() string {
	switch s.Step {
	case StepTermStart:
		return "Enter start date (YYYY-MM-DD):"
	case StepTermEnd:
		return "Enter end date (YYYY-MM-DD):"
	default:
		return "Please enter the name of the term (e.g., 'Fall 2025'):"
	}
}

// AddGradeState is the add_grade flow. The subject is chosen through a
// selection event before the flow starts, so the only text step left is the
// grade value.
type AddGradeState struct {
	SubjectID string `json:"subject_id"`
}

// Kind implements State.
func (*AddGradeState) Kind() OperationKind { return OpAddGrade }

func (*AddGradeState) prompt() string { return "Enter the grade value (1-12):" }

// NewAddSubject starts the add_subject context.
func NewAddSubject() State { return &AddSubjectState{} }

// NewAddTerm starts the add_term context.
func NewAddTerm() State { return &AddTermState{Step: StepTermName} }

// NewAddGrade starts the add_grade context with the chosen subject.
func NewAddGrade(subjectID string) State { return &AddGradeState{SubjectID: subjectID} }

// Session is one user's pending operation together with its bookkeeping
// timestamps. UpdatedAt drives the opt-in expiry sweep.
type Session struct {
	Identity  int64
	State     State
	StartedAt time.Time
	UpdatedAt time.Time
}

type sessionEnvelope struct {
	Identity  int64           `json:"identity"`
	Kind      OperationKind   `json:"kind"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	State     json.RawMessage `json:"state"`
}

// MarshalJSON encodes the session with a kind tag so the typed state survives
// a round trip through the Redis store.
func (s *Session) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(s.State)
	if err != nil {
		return nil, fmt.Errorf("marshal session state: %w", err)
	}
	return json.Marshal(sessionEnvelope{
		Identity:  s.Identity,
		Kind:      s.State.Kind(),
		StartedAt: s.StartedAt,
		UpdatedAt: s.UpdatedAt,
		State:     raw,
	})
}

// UnmarshalJSON decodes the envelope and rebuilds the concrete state type
// from the kind tag.
func (s *Session) UnmarshalJSON(data []byte) error {
	var env sessionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("unmarshal session envelope: %w", err)
	}

	var state State
	switch env.Kind {
	case OpAddSubject:
		state = &AddSubjectState{}
	case OpAddTerm:
		state = &AddTermState{}
	case OpAddGrade:
		state = &AddGradeState{}
	default:
		return fmt.Errorf("unknown operation kind %d", env.Kind)
	}
	if len(env.State) > 0 {
		if err := json.Unmarshal(env.State, state); err != nil {
			return fmt.Errorf("unmarshal %s state: %w", env.Kind, err)
		}
	}

	s.Identity = env.Identity
	s.State = state
	s.StartedAt = env.StartedAt
	s.UpdatedAt = env.UpdatedAt
	return nil
}
