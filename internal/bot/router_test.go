package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thdev-org/marks-daybook/internal/models"
	"github.com/thdev-org/marks-daybook/internal/service"
	"github.com/thdev-org/marks-daybook/internal/session"
	"github.com/thdev-org/marks-daybook/internal/telegram"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	edits    []sentMessage
	answered []string
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) SendHTML(ctx context.Context, chatID int64, html string) error {
	return f.SendText(ctx, chatID, html)
}

func (f *fakeSender) SendWithKeyboard(ctx context.Context, chatID int64, text string, _ [][]telegram.InlineKeyboardButton) error {
	return f.SendText(ctx, chatID, text)
}

func (f *fakeSender) EditMessageText(_ context.Context, chatID int64, _ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMessage{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, callbackQueryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackQueryID)
	return nil
}

func (f *fakeSender) lastMessage(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages)
	return f.messages[len(f.messages)-1]
}

type fakeUsers struct {
	mu    sync.Mutex
	known map[int64]*models.User
}

func (f *fakeUsers) RegisterOrFetch(_ context.Context, telegramID int64, name string) (*models.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.known == nil {
		f.known = make(map[int64]*models.User)
	}
	if user, ok := f.known[telegramID]; ok {
		return user, false, nil
	}
	user := &models.User{ID: "user-1", TelegramID: telegramID, Name: name}
	f.known[telegramID] = user
	return user, true, nil
}

type routerActions struct {
	mu       sync.Mutex
	subjects []string
}

func (a *routerActions) CreateSubject(_ context.Context, _ int64, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, name)
	return nil
}

func (a *routerActions) CreateTerm(context.Context, int64, string, time.Time, time.Time) error {
	return nil
}

func (a *routerActions) CreateGrade(context.Context, int64, string, int) (string, error) {
	return "Math", nil
}

func newTestRouter(t *testing.T) (*Router, *fakeSender, *session.Machine, *routerActions) {
	t.Helper()
	sender := &fakeSender{}
	actions := &routerActions{}
	machine := session.NewMachine(session.NewMemoryStore(0), actions, nil)
	router := NewRouter(machine, &fakeUsers{}, sender, service.NewMetricsService(), nil)
	return router, sender, machine, actions
}

func messageUpdate(chatID int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: 10,
			From:      &telegram.User{ID: chatID, FirstName: "Alice"},
			Chat:      &telegram.Chat{ID: chatID, Type: "private"},
			Text:      text,
		},
	}
}

func TestRouterDispatchesCommand(t *testing.T) {
	router, sender, _, _ := newTestRouter(t)

	var got Event
	router.Command("start", func(_ context.Context, ev Event) error {
		got = ev
		return nil
	})

	router.HandleUpdate(context.Background(), messageUpdate(42, "/start"))

	assert.Equal(t, int64(42), got.ChatID)
	require.NotNil(t, got.User)
	assert.True(t, got.IsNew)
	assert.Empty(t, sender.messages)
}

func TestRouterStripsBotMention(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	called := false
	router.Command("help", func(context.Context, Event) error {
		called = true
		return nil
	})

	router.HandleUpdate(context.Background(), messageUpdate(42, "/help@marks_daybook_bot"))
	assert.True(t, called)
}

func TestRouterUnknownCommandIgnored(t *testing.T) {
	router, sender, _, _ := newTestRouter(t)

	router.HandleUpdate(context.Background(), messageUpdate(42, "/bogus"))
	assert.Empty(t, sender.messages)
}

func TestRouterFreeTextWithoutSessionDropped(t *testing.T) {
	router, sender, _, _ := newTestRouter(t)

	router.HandleUpdate(context.Background(), messageUpdate(42, "just chatting"))
	assert.Empty(t, sender.messages)
}

func TestRouterFreeTextAdvancesSession(t *testing.T) {
	router, sender, machine, actions := newTestRouter(t)

	_, err := machine.Start(context.Background(), 42, session.NewAddSubject())
	require.NoError(t, err)

	router.HandleUpdate(context.Background(), messageUpdate(42, "Math"))

	assert.Equal(t, []string{"Math"}, actions.subjects)
	assert.Equal(t, "Subject 'Math' added successfully!", sender.lastMessage(t).text)
}

func TestRouterReportsTypedErrorMessage(t *testing.T) {
	router, sender, _, _ := newTestRouter(t)

	router.Command("export", func(context.Context, Event) error {
		return apperrors.Clone(apperrors.ErrNotFound, "no grades to export")
	})

	router.HandleUpdate(context.Background(), messageUpdate(42, "/export"))
	assert.Equal(t, "no grades to export", sender.lastMessage(t).text)
}

func TestRouterMasksInternalErrors(t *testing.T) {
	router, sender, _, _ := newTestRouter(t)

	router.Command("export", func(context.Context, Event) error {
		return apperrors.New(apperrors.ErrInternal.Code, "connection refused")
	})

	router.HandleUpdate(context.Background(), messageUpdate(42, "/export"))
	assert.Equal(t, "Something went wrong. Please try again.", sender.lastMessage(t).text)
}

func TestRouterRoutesCallbackByPrefix(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	var got CallbackEvent
	router.Callback("grade_subject_", func(_ context.Context, ev CallbackEvent) error {
		got = ev
		return nil
	})

	router.HandleUpdate(context.Background(), telegram.Update{
		UpdateID: 2,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "query-1",
			From: &telegram.User{ID: 42, FirstName: "Alice"},
			Message: &telegram.Message{
				MessageID: 10,
				Chat:      &telegram.Chat{ID: 42, Type: "private"},
			},
			Data: "grade_subject_subject-1",
		},
	})

	assert.Equal(t, "grade_subject_subject-1", got.Data)
	assert.Equal(t, int64(10), got.MessageID)
	assert.Equal(t, "query-1", got.QueryID)
	require.NotNil(t, got.User)
}

func TestRouterRecoversFromPanickingHandler(t *testing.T) {
	router, _, _, _ := newTestRouter(t)

	router.Command("boom", func(context.Context, Event) error {
		panic("handler bug")
	})

	assert.NotPanics(t, func() {
		router.HandleUpdate(context.Background(), messageUpdate(42, "/boom"))
	})
}
