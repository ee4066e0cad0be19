// Package bot is the dialogue surface: it maps incoming transport updates to
// either a named command handler, a callback (selection event) handler, or —
// for free text — the per-user session machine.
package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/models"
	"github.com/thdev-org/marks-daybook/internal/service"
	"github.com/thdev-org/marks-daybook/internal/session"
	"github.com/thdev-org/marks-daybook/internal/telegram"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
)

// Sender is the outbound half of the chat transport.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendHTML(ctx context.Context, chatID int64, html string) error
	SendWithKeyboard(ctx context.Context, chatID int64, text string, keyboard [][]telegram.InlineKeyboardButton) error
	EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
}

// Event is a command or text message, delivered with the resolved user.
type Event struct {
	ChatID int64
	User   *models.User
	IsNew  bool
	Text   string
}

// CallbackEvent is an inline keyboard selection.
type CallbackEvent struct {
	ChatID    int64
	MessageID int64
	QueryID   string
	User      *models.User
	Data      string
}

// HandlerFunc handles one command event.
type HandlerFunc func(ctx context.Context, ev Event) error

// CallbackFunc handles one selection event.
type CallbackFunc func(ctx context.Context, ev CallbackEvent) error

type callbackRoute struct {
	prefix string
	fn     CallbackFunc
}

type userResolver interface {
	RegisterOrFetch(ctx context.Context, telegramID int64, name string) (*models.User, bool, error)
}

// Router dispatches transport updates. The command and callback tables are
// filled at startup; nothing is registered dynamically.
type Router struct {
	commands  map[string]HandlerFunc
	callbacks []callbackRoute
	machine   *session.Machine
	users     userResolver
	sender    Sender
	metrics   *service.MetricsService
	logger    *zap.Logger
}

// NewRouter constructs an empty router.
func NewRouter(machine *session.Machine, users userResolver, sender Sender, metrics *service.MetricsService, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		commands: make(map[string]HandlerFunc),
		machine:  machine,
		users:    users,
		sender:   sender,
		metrics:  metrics,
		logger:   logger,
	}
}

// Command registers a handler for a /command (name without the slash).
func (r *Router) Command(name string, fn HandlerFunc) {
	r.commands[name] = fn
}

// Callback registers a handler for callback data starting with prefix.
func (r *Router) Callback(prefix string, fn CallbackFunc) {
	r.callbacks = append(r.callbacks, callbackRoute{prefix: prefix, fn: fn})
}

// HandleUpdate processes one transport update. Commands go to the command
// table; callback queries to the callback table; any other text feeds the
// user's pending session. Updates from unrelated users never interact: all
// session access is keyed and locked by chat identity.
func (r *Router) HandleUpdate(ctx context.Context, update telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic while handling update",
				zap.Int64("update_id", update.UpdateID),
				zap.Any("panic", rec),
			)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		r.metrics.RecordUpdate("callback")
		r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.Chat != nil:
		r.metrics.RecordUpdate("message")
		r.handleMessage(ctx, update.Message)
	default:
		r.metrics.RecordUpdate("ignored")
	}
}

func (r *Router) handleMessage(ctx context.Context, msg *telegram.Message) {
	chatID := msg.Chat.ID

	firstName := ""
	if msg.From != nil {
		firstName = msg.From.FirstName
	}

	// Users are created on first contact, whatever the first message is.
	user, isNew, err := r.users.RegisterOrFetch(ctx, chatID, firstName)
	if err != nil {
		r.reportError(ctx, chatID, err)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		r.dispatchCommand(ctx, Event{ChatID: chatID, User: user, IsNew: isNew, Text: text})
		return
	}

	r.advanceSession(ctx, chatID, text)
}

func (r *Router) dispatchCommand(ctx context.Context, ev Event) {
	name := strings.TrimPrefix(ev.Text, "/")
	if i := strings.IndexAny(name, " @"); i >= 0 {
		name = name[:i]
	}

	handler, ok := r.commands[name]
	if !ok {
		r.logger.Debug("unknown command", zap.String("command", name))
		return
	}

	start := time.Now()
	err := handler(ctx, ev)
	r.metrics.RecordCommand(name, time.Since(start))
	if err != nil {
		r.logger.Error("command failed",
			zap.String("command", name),
			zap.Int64("chat_id", ev.ChatID),
			zap.Error(err),
		)
		r.reportError(ctx, ev.ChatID, err)
	}
}

func (r *Router) handleCallback(ctx context.Context, query *telegram.CallbackQuery) {
	if query.Message == nil || query.Message.Chat == nil {
		return
	}
	chatID := query.Message.Chat.ID

	firstName := ""
	if query.From != nil {
		firstName = query.From.FirstName
	}
	user, _, err := r.users.RegisterOrFetch(ctx, chatID, firstName)
	if err != nil {
		r.reportError(ctx, chatID, err)
		return
	}

	ev := CallbackEvent{
		ChatID:    chatID,
		MessageID: query.Message.MessageID,
		QueryID:   query.ID,
		User:      user,
		Data:      query.Data,
	}

	for _, route := range r.callbacks {
		if strings.HasPrefix(ev.Data, route.prefix) {
			if err := route.fn(ctx, ev); err != nil {
				r.logger.Error("callback failed",
					zap.String("data", ev.Data),
					zap.Int64("chat_id", chatID),
					zap.Error(err),
				)
				r.reportError(ctx, chatID, err)
			}
			return
		}
	}
	r.logger.Debug("unknown callback", zap.String("data", ev.Data))
}

// advanceSession feeds free text into the pending operation. Text with no
// session behind it is dropped silently, matching the original bot.
func (r *Router) advanceSession(ctx context.Context, chatID int64, text string) {
	result, err := r.machine.Advance(ctx, chatID, text)
	if err != nil {
		if errors.Is(err, apperrors.ErrNoActiveSession) {
			return
		}
		r.reportError(ctx, chatID, err)
		return
	}

	switch result.Outcome {
	case session.OutcomeRejected:
		r.metrics.RecordSession(result.Op.String(), service.SessionRejected)
	case session.OutcomeCompleted:
		r.metrics.RecordSession(result.Op.String(), service.SessionCompleted)
	}

	if result.Text != "" {
		if err := r.sender.SendText(ctx, chatID, result.Text); err != nil {
			r.logger.Error("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
}

// reportError sends the user-facing message of a typed error, or a generic
// line for anything unexpected.
func (r *Router) reportError(ctx context.Context, chatID int64, err error) {
	appErr := apperrors.FromError(err)
	text := appErr.Message
	if appErr.Code == apperrors.ErrInternal.Code {
		r.metrics.RecordStorageError()
		text = "Something went wrong. Please try again."
	}
	if sendErr := r.sender.SendText(ctx, chatID, text); sendErr != nil {
		r.logger.Error("failed to send error reply", zap.Int64("chat_id", chatID), zap.Error(sendErr))
	}
}
