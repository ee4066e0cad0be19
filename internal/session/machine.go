package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/models"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

// Outcome classifies what an advance produced.
type Outcome int

const (
	// OutcomePrompt means the flow moved on and the text asks for the next step.
	OutcomePrompt Outcome = iota + 1
	// OutcomeCompleted means the flow finalized and the session is gone.
	OutcomeCompleted
	// OutcomeRejected means the input failed step validation; the session
	// stays on the same step.
	OutcomeRejected
)

// Result is the machine's answer to a start or advance call.
type Result struct {
	Outcome Outcome
	Op      OperationKind
	Text    string
}

// Actions is the write surface a finalizing flow calls into. Implementations
// scope every write to the owning identity.
type Actions interface {
	CreateSubject(ctx context.Context, identity int64, name string) error
	CreateTerm(ctx context.Context, identity int64, name string, start, end time.Time) error
	// CreateGrade records the grade and returns the subject name for the
	// confirmation reply.
	CreateGrade(ctx context.Context, identity int64, subjectID string, value int) (string, error)
}

// Machine advances pending operations. All access to a given identity's
// session is mutually exclusive; distinct identities never block each other.
type Machine struct {
	store   Store
	actions Actions
	locks   *keyedMutex
	logger  *zap.Logger
	now     func() time.Time
}

// NewMachine constructs a session machine on top of the given store.
func NewMachine(store Store, actions Actions, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		store:   store,
		actions: actions,
		locks:   newKeyedMutex(),
		logger:  logger,
		now:     time.Now,
	}
}

// Start opens a new session for the identity and returns the first step's
// prompt. Any session already pending for the identity is silently replaced.
func (m *Machine) Start(ctx context.Context, identity int64, state State) (Result, error) {
	m.locks.lock(identity)
	defer m.locks.unlock(identity)

	now := m.now()
	sess := &Session{
		Identity:  identity,
		State:     state,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to open session")
	}

	m.logger.Debug("session started",
		zap.Int64("identity", identity),
		zap.String("operation", state.Kind().String()),
	)
	return Result{Outcome: OutcomePrompt, Op: state.Kind(), Text: state.prompt()}, nil
}

// Advance feeds one raw input into the identity's pending session. Returns
// ErrNoActiveSession when nothing is pending. Validation failures leave the
// session on the same step; storage failures leave it resumable.
func (m *Machine) Advance(ctx context.Context, identity int64, input string) (Result, error) {
	m.locks.lock(identity)
	defer m.locks.unlock(identity)

	sess, err := m.store.Get(ctx, identity)
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to load session")
	}
	if sess == nil {
		return Result{}, apperrors.ErrNoActiveSession
	}

	input = strings.TrimSpace(input)

	switch state := sess.State.(type) {
	case *AddSubjectState:
		return m.advanceAddSubject(ctx, sess, input)
	case *AddTermState:
		return m.advanceAddTerm(ctx, sess, state, input)
	case *AddGradeState:
		return m.advanceAddGrade(ctx, sess, state, input)
	default:
		return Result{}, apperrors.New(apperrors.ErrInternal.Code, fmt.Sprintf("unhandled session state %T", state))
	}
}

// Cancel drops any pending session for the identity. Idempotent: cancelling
// with nothing pending is a no-op. The returned bool reports whether a
// session existed; the kind names the operation that was cancelled.
func (m *Machine) Cancel(ctx context.Context, identity int64) (OperationKind, bool, error) {
	m.locks.lock(identity)
	defer m.locks.unlock(identity)

	sess, err := m.store.Get(ctx, identity)
	if err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to load session")
	}
	if sess == nil {
		return 0, false, nil
	}
	if err := m.store.Delete(ctx, identity); err != nil {
		return 0, false, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to cancel session")
	}

	m.logger.Debug("session cancelled",
		zap.Int64("identity", identity),
		zap.String("operation", sess.State.Kind().String()),
	)
	return sess.State.Kind(), true, nil
}

func (m *Machine) advanceAddSubject(ctx context.Context, sess *Session, input string) (Result, error) {
	if input == "" {
		return Result{Outcome: OutcomeRejected, Op: OpAddSubject, Text: "Subject name cannot be empty. Please enter the name of the subject:"}, nil
	}

	if err := m.actions.CreateSubject(ctx, sess.Identity, input); err != nil {
		return Result{}, m.finalizeError(ctx, sess, err)
	}
	return m.complete(ctx, sess, fmt.Sprintf("Subject '%s' added successfully!", input))
}

func (m *Machine) advanceAddTerm(ctx context.Context, sess *Session, state *AddTermState, input string) (Result, error) {
	switch state.Step {
	case StepTermName:
		if input == "" {
			return Result{Outcome: OutcomeRejected, Op: OpAddTerm, Text: "Term name cannot be empty. Please enter the name of the term:"}, nil
		}
		state.Name = input
		state.Step = StepTermStart
		return m.next(ctx, sess, state)

	case StepTermStart:
		start, err := parseISODate(input)
		if err != nil {
			return Result{Outcome: OutcomeRejected, Op: OpAddTerm, Text: "Invalid date format. Please use YYYY-MM-DD:"}, nil
		}
		state.StartDate = start
		state.Step = StepTermEnd
		return m.next(ctx, sess, state)

	case StepTermEnd:
		end, err := parseISODate(input)
		if err != nil {
			return Result{Outcome: OutcomeRejected, Op: OpAddTerm, Text: "Invalid date format. Please use YYYY-MM-DD:"}, nil
		}
		if end.Before(state.StartDate) {
			return Result{Outcome: OutcomeRejected, Op: OpAddTerm, Text: "End date cannot be before start date. Enter end date (YYYY-MM-DD):"}, nil
		}

		if err := m.actions.CreateTerm(ctx, sess.Identity, state.Name, state.StartDate, end); err != nil {
			return Result{}, m.finalizeError(ctx, sess, err)
		}
		return m.complete(ctx, sess, fmt.Sprintf("Term '%s' added successfully!", state.Name))

	default:
		return Result{}, apperrors.New(apperrors.ErrInternal.Code, fmt.Sprintf("unknown add_term step %d", state.Step))
	}
}

func (m *Machine) advanceAddGrade(ctx context.Context, sess *Session, state *AddGradeState, input string) (Result, error) {
	value, err := strconv.Atoi(input)
	if err != nil || value < models.GradeMin || value > models.GradeMax {
		return Result{Outcome: OutcomeRejected, Op: OpAddGrade, Text: "Please enter a valid grade (1-12):"}, nil
	}

	subjectName, err := m.actions.CreateGrade(ctx, sess.Identity, state.SubjectID, value)
	if err != nil {
		return Result{}, m.finalizeError(ctx, sess, err)
	}
	return m.complete(ctx, sess, fmt.Sprintf("Grade %d added for %s!", value, subjectName))
}

// next persists the session after a successful intermediate step and prompts
// for the following one.
func (m *Machine) next(ctx context.Context, sess *Session, state State) (Result, error) {
	sess.State = state
	sess.UpdatedAt = m.now()
	if err := m.store.Put(ctx, sess); err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to save session")
	}
	return Result{Outcome: OutcomePrompt, Op: state.Kind(), Text: state.prompt()}, nil
}

// complete deletes the finalized session. The write already happened; a
// failing delete is logged but does not undo the completion.
func (m *Machine) complete(ctx context.Context, sess *Session, text string) (Result, error) {
	if err := m.store.Delete(ctx, sess.Identity); err != nil {
		m.logger.Warn("failed to delete completed session",
			zap.Int64("identity", sess.Identity),
			zap.Error(err),
		)
	}

	m.logger.Debug("session completed",
		zap.Int64("identity", sess.Identity),
		zap.String("operation", sess.State.Kind().String()),
	)
	return Result{Outcome: OutcomeCompleted, Op: sess.State.Kind(), Text: text}, nil
}

// finalizeError maps a failed terminal write. A missing referent aborts the
// operation (the session is gone); anything else keeps the session pending so
// the user can retry the same step.
func (m *Machine) finalizeError(ctx context.Context, sess *Session, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		if delErr := m.store.Delete(ctx, sess.Identity); delErr != nil {
			m.logger.Warn("failed to delete aborted session",
				zap.Int64("identity", sess.Identity),
				zap.Error(delErr),
			)
		}
		return err
	}
	return err
}

func parseISODate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
