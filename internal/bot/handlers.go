package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/models"
	"github.com/thdev-org/marks-daybook/internal/service"
	"github.com/thdev-org/marks-daybook/internal/session"
	"github.com/thdev-org/marks-daybook/internal/telegram"
)

// Callback data prefixes for inline keyboard selections.
const (
	callbackGradeSubject = "grade_subject_"
	callbackViewGrades   = "view_grades_"
	callbackViewAll      = "view_grades_all"
)

// viewGradesLimit caps how many grades a single listing message shows.
const viewGradesLimit = 20

const helpText = `Available commands:
/add_subject - Add a new subject
/list_subjects - Show your subjects
/add_term - Add a new term
/list_terms - Show your terms
/add_grade - Record a grade
/view_grades - Show your grades
/average - Show your averages
/export - Export your grades to a file
/cancel - Cancel the current operation
/help - Show this message`

// Handlers binds the dialogue commands to the domain services.
type Handlers struct {
	machine  *session.Machine
	subjects *service.SubjectService
	terms    *service.TermService
	grades   *service.GradeService
	reports  *service.ReportService
	sender   Sender
	metrics  *service.MetricsService
	logger   *zap.Logger
}

// NewHandlers constructs the command handlers.
func NewHandlers(
	machine *session.Machine,
	subjects *service.SubjectService,
	terms *service.TermService,
	grades *service.GradeService,
	reports *service.ReportService,
	sender Sender,
	metrics *service.MetricsService,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		machine:  machine,
		subjects: subjects,
		terms:    terms,
		grades:   grades,
		reports:  reports,
		sender:   sender,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register fills the router's command and callback tables.
func (h *Handlers) Register(r *Router) {
	r.Command("start", h.Start)
	r.Command("help", h.Help)
	r.Command("add_subject", h.AddSubject)
	r.Command("list_subjects", h.ListSubjects)
	r.Command("add_term", h.AddTerm)
	r.Command("list_terms", h.ListTerms)
	r.Command("add_grade", h.AddGrade)
	r.Command("view_grades", h.ViewGrades)
	r.Command("average", h.Average)
	r.Command("export", h.Export)
	r.Command("cancel", h.Cancel)

	r.Callback(callbackGradeSubject, h.GradeSubjectSelected)
	r.Callback(callbackViewGrades, h.ViewGradesSelected)
}

// Start greets the user. Registration already happened in the router, so the
// greeting only varies on whether this contact created the account.
func (h *Handlers) Start(ctx context.Context, ev Event) error {
	name := ev.User.Name
	if name == "" {
		name = "there"
	}
	if ev.IsNew {
		return h.sender.SendText(ctx, ev.ChatID,
			fmt.Sprintf("Welcome, %s! I will keep track of your grades. Use /help to see what I can do.", name))
	}
	return h.sender.SendText(ctx, ev.ChatID,
		fmt.Sprintf("Welcome back, %s! Use /help to see the available commands.", name))
}

// Help lists the available commands.
func (h *Handlers) Help(ctx context.Context, ev Event) error {
	return h.sender.SendText(ctx, ev.ChatID, helpText)
}

// AddSubject opens the add-subject flow.
func (h *Handlers) AddSubject(ctx context.Context, ev Event) error {
	return h.startSession(ctx, ev.ChatID, session.NewAddSubject())
}

// ListSubjects prints the user's subjects.
func (h *Handlers) ListSubjects(ctx context.Context, ev Event) error {
	subjects, err := h.subjects.List(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return h.sender.SendText(ctx, ev.ChatID, "You have no subjects yet. Use /add_subject to add one.")
	}

	var b strings.Builder
	b.WriteString("📚 Your subjects:\n")
	for i, subject := range subjects {
		fmt.Fprintf(&b, "%d. %s\n", i+1, subject.Name)
	}
	return h.sender.SendText(ctx, ev.ChatID, b.String())
}

// AddTerm opens the add-term flow.
func (h *Handlers) AddTerm(ctx context.Context, ev Event) error {
	return h.startSession(ctx, ev.ChatID, session.NewAddTerm())
}

// ListTerms prints the user's terms, newest first.
func (h *Handlers) ListTerms(ctx context.Context, ev Event) error {
	terms, err := h.terms.List(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	if len(terms) == 0 {
		return h.sender.SendText(ctx, ev.ChatID, "You have no terms yet. Use /add_term to add one.")
	}

	var b strings.Builder
	b.WriteString("📅 Your terms:\n")
	for _, term := range terms {
		fmt.Fprintf(&b, "• %s: %s — %s\n",
			term.Name,
			term.StartDate.Format("2006-01-02"),
			term.EndDate.Format("2006-01-02"),
		)
	}
	return h.sender.SendText(ctx, ev.ChatID, b.String())
}

// AddGrade shows the subject picker; the chosen subject opens the add-grade
// flow via callback.
func (h *Handlers) AddGrade(ctx context.Context, ev Event) error {
	subjects, err := h.subjects.List(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return h.sender.SendText(ctx, ev.ChatID, "You need to add subjects first. Use /add_subject.")
	}

	keyboard := make([][]telegram.InlineKeyboardButton, 0, len(subjects))
	for _, subject := range subjects {
		keyboard = append(keyboard, []telegram.InlineKeyboardButton{{
			Text:         subject.Name,
			CallbackData: callbackGradeSubject + subject.ID,
		}})
	}
	return h.sender.SendWithKeyboard(ctx, ev.ChatID, "Select a subject:", keyboard)
}

// GradeSubjectSelected opens the add-grade flow for the picked subject.
func (h *Handlers) GradeSubjectSelected(ctx context.Context, ev CallbackEvent) error {
	if err := h.sender.AnswerCallbackQuery(ctx, ev.QueryID); err != nil {
		h.logger.Warn("failed to answer callback", zap.Error(err))
	}

	subjectID := strings.TrimPrefix(ev.Data, callbackGradeSubject)
	subject, err := h.subjects.Get(ctx, subjectID, ev.User.ID)
	if err != nil {
		return err
	}

	result, err := h.machine.Start(ctx, ev.ChatID, session.NewAddGrade(subject.ID))
	if err != nil {
		return err
	}
	h.metrics.RecordSession(result.Op.String(), service.SessionStarted)

	text := fmt.Sprintf("Recording a grade for %s. %s", subject.Name, result.Text)
	return h.sender.EditMessageText(ctx, ev.ChatID, ev.MessageID, text)
}

// ViewGrades shows the subject picker for the grade listing, plus an
// all-subjects option.
func (h *Handlers) ViewGrades(ctx context.Context, ev Event) error {
	subjects, err := h.subjects.List(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		return h.sender.SendText(ctx, ev.ChatID, "You need to add subjects first. Use /add_subject.")
	}

	keyboard := make([][]telegram.InlineKeyboardButton, 0, len(subjects)+1)
	for _, subject := range subjects {
		keyboard = append(keyboard, []telegram.InlineKeyboardButton{{
			Text:         subject.Name,
			CallbackData: callbackViewGrades + subject.ID,
		}})
	}
	keyboard = append(keyboard, []telegram.InlineKeyboardButton{{
		Text:         "All subjects",
		CallbackData: callbackViewAll,
	}})
	return h.sender.SendWithKeyboard(ctx, ev.ChatID, "Select a subject:", keyboard)
}

// ViewGradesSelected renders the grade listing for the picked subject, or for
// all subjects.
func (h *Handlers) ViewGradesSelected(ctx context.Context, ev CallbackEvent) error {
	if err := h.sender.AnswerCallbackQuery(ctx, ev.QueryID); err != nil {
		h.logger.Warn("failed to answer callback", zap.Error(err))
	}

	filter := models.GradeFilter{}
	title := "📊 Your grades:"
	if ev.Data != callbackViewAll {
		subjectID := strings.TrimPrefix(ev.Data, callbackViewGrades)
		subject, err := h.subjects.Get(ctx, subjectID, ev.User.ID)
		if err != nil {
			return err
		}
		filter.SubjectID = subject.ID
		title = fmt.Sprintf("📊 Grades for %s:", subject.Name)
	}

	grades, err := h.grades.List(ctx, ev.User.ID, filter)
	if err != nil {
		return err
	}
	if len(grades) == 0 {
		return h.sender.EditMessageText(ctx, ev.ChatID, ev.MessageID, "No grades recorded yet.")
	}

	names, err := h.subjectNames(ctx, ev.User.ID)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	shown := grades
	if len(shown) > viewGradesLimit {
		shown = shown[:viewGradesLimit]
	}
	for _, grade := range shown {
		name := names[grade.SubjectID]
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&b, "• %s: %d (%s)\n", name, grade.Value, grade.Date.Format("2006-01-02"))
	}
	if rest := len(grades) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "... and %d more grades\n", rest)
	}
	return h.sender.EditMessageText(ctx, ev.ChatID, ev.MessageID, b.String())
}

// Average prints the per-subject averages. Subjects with no grades are shown
// as such rather than as zero.
func (h *Handlers) Average(ctx context.Context, ev Event) error {
	averages, err := h.grades.Averages(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	if len(averages) == 0 {
		return h.sender.SendText(ctx, ev.ChatID, "You have no subjects yet. Use /add_subject to add one.")
	}

	var b strings.Builder
	b.WriteString("📈 Your averages:\n")
	for _, avg := range averages {
		if avg.Average == nil {
			fmt.Fprintf(&b, "• %s: no grades yet\n", avg.SubjectName)
			continue
		}
		fmt.Fprintf(&b, "• %s: %.2f (%d grades)\n", avg.SubjectName, *avg.Average, avg.Count)
	}
	return h.sender.SendText(ctx, ev.ChatID, b.String())
}

// Export renders the grade history to a file and reports the file name.
func (h *Handlers) Export(ctx context.Context, ev Event) error {
	name, err := h.reports.Export(ctx, ev.User.ID)
	if err != nil {
		return err
	}
	return h.sender.SendText(ctx, ev.ChatID, fmt.Sprintf("Report exported: %s", name))
}

// Cancel drops any pending operation. The reply is the same whether or not
// anything was pending, so the command is safe to repeat.
func (h *Handlers) Cancel(ctx context.Context, ev Event) error {
	op, found, err := h.machine.Cancel(ctx, ev.ChatID)
	if err != nil {
		return err
	}
	if found {
		h.metrics.RecordSession(op.String(), service.SessionCancelled)
	}
	return h.sender.SendText(ctx, ev.ChatID, "Operation cancelled.")
}

func (h *Handlers) startSession(ctx context.Context, chatID int64, state session.State) error {
	result, err := h.machine.Start(ctx, chatID, state)
	if err != nil {
		return err
	}
	h.metrics.RecordSession(result.Op.String(), service.SessionStarted)
	return h.sender.SendText(ctx, chatID, result.Text)
}

func (h *Handlers) subjectNames(ctx context.Context, userID string) (map[string]string, error) {
	subjects, err := h.subjects.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		names[subject.ID] = subject.Name
	}
	return names, nil
}

// SessionActions adapts the domain services to the session machine's write
// surface. The machine keys everything by chat identity; the adapter resolves
// that identity to the owning user before every write.
type SessionActions struct {
	users    *service.UserService
	subjects *service.SubjectService
	terms    *service.TermService
	grades   *service.GradeService
	now      func() time.Time
}

// NewSessionActions constructs the adapter.
func NewSessionActions(users *service.UserService, subjects *service.SubjectService, terms *service.TermService, grades *service.GradeService) *SessionActions {
	return &SessionActions{
		users:    users,
		subjects: subjects,
		terms:    terms,
		grades:   grades,
		now:      time.Now,
	}
}

// CreateSubject adds a subject for the identity's user.
func (a *SessionActions) CreateSubject(ctx context.Context, identity int64, name string) error {
	user, err := a.users.FindByTelegramID(ctx, identity)
	if err != nil {
		return err
	}
	_, err = a.subjects.Create(ctx, service.CreateSubjectRequest{UserID: user.ID, Name: name})
	return err
}

// CreateTerm adds a term for the identity's user.
func (a *SessionActions) CreateTerm(ctx context.Context, identity int64, name string, start, end time.Time) error {
	user, err := a.users.FindByTelegramID(ctx, identity)
	if err != nil {
		return err
	}
	_, err = a.terms.Create(ctx, service.CreateTermRequest{
		UserID:    user.ID,
		Name:      name,
		StartDate: start,
		EndDate:   end,
	})
	return err
}

// CreateGrade records a grade dated today and returns the subject name for
// the confirmation reply.
func (a *SessionActions) CreateGrade(ctx context.Context, identity int64, subjectID string, value int) (string, error) {
	user, err := a.users.FindByTelegramID(ctx, identity)
	if err != nil {
		return "", err
	}

	subject, err := a.subjects.Get(ctx, subjectID, user.ID)
	if err != nil {
		return "", err
	}

	_, err = a.grades.Create(ctx, service.CreateGradeRequest{
		UserID:    user.ID,
		SubjectID: subject.ID,
		Value:     value,
		Date:      a.now().Truncate(24 * time.Hour),
	})
	if err != nil {
		return "", err
	}
	return subject.Name, nil
}

var _ session.Actions = (*SessionActions)(nil)
