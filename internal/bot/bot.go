package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/service"
)

// TaskManager is the lifecycle surface used by the bot.
type TaskManager interface {
	CreateTask(ctx context.Context, input service.TaskInput) (*model.Task, error)
	GetTask(ctx context.Context, taskID uint) (*model.Task, error)
	StartTask(ctx context.Context, taskID uint) (*model.Task, error)
	FinishTask(ctx context.Context, taskID uint, timeSpent float64) (*model.Task, error)
	PartialFinish(ctx context.Context, taskID uint, percent int, timeSpent float64) (*model.Task, error)
	DeleteTask(ctx context.Context, taskID uint) error
}

// PlanViewer serves the day plan and backlog.
type PlanViewer interface {
	Today(ctx context.Context, now time.Time) (*service.DayPlan, error)
	Backlog(ctx context.Context) ([]model.Task, error)
	Categories(ctx context.Context) ([]string, error)
}

// SettingsEditor edits the weekly budget and timetable.
type SettingsEditor interface {
	Get(ctx context.Context) (*service.Settings, error)
	SaveHours(ctx context.Context, hours [7]float64) (*service.AllocationResult, error)
	SaveTimetable(ctx context.Context, entries []model.TimetableEntry) (*service.AllocationResult, error)
}

// Deps are the services the bot talks to.
type Deps struct {
	Tasks    TaskManager
	Plans    PlanViewer
	Settings SettingsEditor
	Trigger  service.DayTrigger
	Location *time.Location
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           *tgbotapi.BotAPI
	deps          Deps
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	config.Logger.WithField("account", api.Self.UserName).Info("bot authorized")

	return &Bot{
		api:           api,
		deps:          deps,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	config.Logger.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				config.Logger.WithError(err).Warn("handle callback")
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				config.Logger.WithError(err).Warn("handle message")
			}
		}
	}

	return nil
}

// ensureToday runs the allocation trigger. On failure the user is told and
// false is returned.
func (b *Bot) ensureToday(ctx context.Context, chatID int64) bool {
	if b.deps.Trigger == nil {
		return true
	}
	if _, err := b.deps.Trigger.EnsureToday(ctx, b.now()); err != nil {
		config.Logger.WithError(err).Error("allocation trigger failed")
		_ = b.sendText(chatID, userMessage(err))
		return false
	}
	return true
}

func (b *Bot) now() time.Time {
	return time.Now().In(b.deps.Location)
}

// userMessage turns a service error into a reply. Internal details stay in the log.
func userMessage(err error) string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("Некорректное значение <b>%s</b>: %s", escape(fieldLabel(verr.Field)), escape(verr.Reason))
	case errors.Is(err, service.ErrNotFound):
		return "Задача не найдена."
	case errors.Is(err, service.ErrTaskClosed):
		return "Задача уже закрыта."
	case errors.Is(err, service.ErrStoreUnavailable):
		return "Хранилище недоступно, попробуй чуть позже."
	default:
		return "Что-то пошло не так. Попробуй ещё раз."
	}
}

func fieldLabel(field string) string {
	switch field {
	case "subject":
		return "предмет"
	case "category":
		return "категория"
	case "difficulty":
		return "сложность"
	case "due_date":
		return "срок"
	case "time_spent":
		return "затраченное время"
	case "progress":
		return "прогресс"
	case "hours":
		return "часы"
	case "timetable":
		return "расписание"
	default:
		return field
	}
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		config.Logger.WithError(err).Debug("callback ack")
	}
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func logCommand(userID int64, command, args string) {
	config.Logger.WithFields(logrus.Fields{"user_id": userID, "command": command, "args": args}).Info("command received")
}

func escape(s string) string {
	return html.EscapeString(s)
}
