package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-planner/internal/config"
	"study-planner/internal/model"
	"study-planner/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageSubject
	stageCategory
	stageDifficulty
	stageDueDate
	stageFinishMinutes
	stagePartialPercent
	stagePartialMinutes
)

type conversationState struct {
	stage      conversationStage
	subject    string
	category   string
	difficulty string
	taskID     uint
	progress   string
}

type confirmationAction int

const (
	actionDelete confirmationAction = iota
)

type confirmationRequest struct {
	taskID uint
	action confirmationAction
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	}

	command := msg.Command()
	if !msg.IsCommand() {
		command = menuCommand(msg.Text)
	}
	if !isConfigCommand(command) && !b.ensureToday(ctx, msg.Chat.ID) {
		return nil
	}

	if command != "" {
		logCommand(msg.From.ID, command, msg.CommandArguments())
		return b.handleCommand(ctx, msg, command)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if state := b.getConversation(msg.From.ID); state != nil {
		return b.handleConversation(ctx, msg, state)
	}

	return b.sendText(msg.Chat.ID, "Я пока не понял сообщение. Набери /newtask, чтобы добавить задачу, или /help для списка команд.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, command string) error {
	args := strings.TrimSpace(msg.CommandArguments())
	switch command {
	case "start", "help":
		return b.handleHelp(msg)
	case "today":
		return b.handleToday(ctx, msg.Chat.ID)
	case "backlog":
		return b.handleBacklog(ctx, msg.Chat.ID)
	case "newtask":
		return b.startNewTaskConversation(ctx, msg)
	case "begin":
		id, err := parseTaskIDArg(args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Укажи ID задачи: /begin 12")
		}
		return b.beginTask(ctx, msg.Chat.ID, id)
	case "finish":
		return b.handleFinish(ctx, msg.Chat.ID, args)
	case "partial":
		return b.handlePartial(ctx, msg.Chat.ID, args)
	case "delete":
		id, err := parseTaskIDArg(args)
		if err != nil {
			return b.sendText(msg.Chat.ID, "Укажи ID задачи: /delete 12")
		}
		return b.askDeleteConfirmation(ctx, msg.Chat.ID, msg.From.ID, id)
	case "categories":
		return b.handleCategories(ctx, msg.Chat.ID)
	case "settings":
		return b.handleSettings(ctx, msg.Chat.ID)
	case "hours":
		return b.handleHours(ctx, msg.Chat.ID, args)
	case "timetable":
		return b.handleTimetable(ctx, msg.Chat.ID, args)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Ввод отменён.")
	default:
		return b.sendText(msg.Chat.ID, "Команда не поддерживается. Загляни в /help.")
	}
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "друг"
	}
	text := fmt.Sprintf("👋 Привет, %s!\n<b>Я подбираю задачи на день под твоё свободное время.</b>\n\n", escape(name)) +
		"• /today — план на сегодня\n" +
		"• /backlog — все открытые задачи\n" +
		"• /newtask — добавить задачу пошагово\n" +
		"• /begin &lt;id&gt; — начать работу над задачей\n" +
		"• /finish &lt;id&gt; &lt;мин&gt; — завершить задачу\n" +
		"• /partial &lt;id&gt; &lt;%&gt; &lt;мин&gt; — отметить частичный прогресс\n" +
		"• /delete &lt;id&gt; — удалить задачу\n" +
		"• /categories — категории в работе\n" +
		"• /settings — часы и расписание\n" +
		"• /hours 6 8 5 7 4 3 3 — часы на каждый день недели с понедельника\n" +
		"• /timetable — расписание, строки вида <code>0 1 Линейная алгебра</code>\n" +
		"• /cancel — отменить текущий ввод"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleToday(ctx context.Context, chatID int64) error {
	now := b.now()
	plan, err := b.deps.Plans.Today(ctx, now)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	text := service.FormatDayPlan(plan, now)
	if len(plan.Today) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, beginKeyboard(plan.Today))
}

func (b *Bot) handleBacklog(ctx context.Context, chatID int64) error {
	tasks, err := b.deps.Plans.Backlog(ctx)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "Открытых задач нет. Добавь новую через /newtask.")
	}
	now := b.now()
	var builder strings.Builder
	builder.WriteString("📥 <b>Все открытые задачи</b>\n\n")
	for _, task := range tasks {
		builder.WriteString(service.FormatTask(task, now))
	}
	return b.sendWithReplyMarkup(chatID, strings.TrimSpace(builder.String()), beginKeyboard(tasks))
}

func (b *Bot) handleCategories(ctx context.Context, chatID int64) error {
	categories, err := b.deps.Plans.Categories(ctx)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if len(categories) == 0 {
		return b.sendText(chatID, "Категорий пока нет. Они появятся вместе с задачами.")
	}
	var builder strings.Builder
	builder.WriteString("📂 <b>Категории</b>\n")
	for _, name := range categories {
		builder.WriteString(fmt.Sprintf("• %s\n", escape(name)))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

// categoryHints suggests the categories in use, or a default set.
func (b *Bot) categoryHints(ctx context.Context) []string {
	categories, err := b.deps.Plans.Categories(ctx)
	if err != nil {
		config.Logger.WithError(err).Debug("category hints")
	}
	if len(categories) == 0 {
		return defaultCategories
	}
	return categories
}

func (b *Bot) startNewTaskConversation(ctx context.Context, msg *tgbotapi.Message) error {
	config.Logger.WithField("user_id", msg.From.ID).Info("start new task conversation")
	b.setConversation(msg.From.ID, &conversationState{stage: stageSubject})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🆕 Создаём новую задачу.\n<b>Шаг 1:</b> по какому предмету?", cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message, state *conversationState) error {
	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageSubject:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Предмет не может быть пустым.", cancelKeyboard())
		}
		state.subject = text
		state.stage = stageCategory
		return b.sendWithReplyMarkup(msg.Chat.ID, "🏷 <b>Шаг 2:</b> выбери категорию или отправь свою.", categoryKeyboard(b.categoryHints(ctx)))
	case stageCategory:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Категория не может быть пустой.", categoryKeyboard(b.categoryHints(ctx)))
		}
		state.category = text
		state.stage = stageDifficulty
		return b.sendWithReplyMarkup(msg.Chat.ID, "🎚 <b>Шаг 3:</b> сложность от 1 до 5.", difficultyKeyboard())
	case stageDifficulty:
		state.difficulty = text
		state.stage = stageDueDate
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏰ <b>Шаг 4:</b> срок в формате <code>2025-11-30</code>.", cancelKeyboard())
	case stageDueDate:
		b.clearConversation(msg.From.ID)
		input, err := service.ParseTaskInput(state.subject, state.category, state.difficulty, text)
		if err != nil {
			return b.sendText(msg.Chat.ID, userMessage(err)+"\nПопробуй ещё раз через /newtask.")
		}
		return b.finishTaskCreation(ctx, msg.Chat.ID, input)
	case stageFinishMinutes:
		b.clearConversation(msg.From.ID)
		return b.finishTask(ctx, msg.Chat.ID, state.taskID, text)
	case stagePartialPercent:
		state.progress = text
		state.stage = stagePartialMinutes
		return b.sendWithReplyMarkup(msg.Chat.ID, "⏱ Сколько минут ушло на этот подход?", cancelKeyboard())
	case stagePartialMinutes:
		b.clearConversation(msg.From.ID)
		return b.partialFinish(ctx, msg.Chat.ID, state.taskID, state.progress, text)
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Диалог сброшен. Попробуй ещё раз.")
	}
}

func (b *Bot) finishTaskCreation(ctx context.Context, chatID int64, input service.TaskInput) error {
	task, err := b.deps.Tasks.CreateTask(ctx, input)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}

	var summary strings.Builder
	summary.WriteString("✅ <b>Задача сохранена</b>\n")
	summary.WriteString(fmt.Sprintf("• <b>ID:</b> %d\n", task.ID))
	summary.WriteString(fmt.Sprintf("• <b>Предмет:</b> %s\n", escape(task.Subject)))
	summary.WriteString(fmt.Sprintf("• <b>Категория:</b> %s\n", escape(task.Category)))
	summary.WriteString(fmt.Sprintf("• <b>Сложность:</b> %d\n", task.Difficulty))
	summary.WriteString(fmt.Sprintf("• <b>Срок:</b> %s\n", model.FormatDate(task.DueDate)))
	if task.PredictedTime != nil {
		summary.WriteString(fmt.Sprintf("• <b>Оценка:</b> ≈%.1f мин.\n", *task.PredictedTime))
	} else {
		summary.WriteString("• <b>Оценка:</b> появится позже\n")
	}
	return b.sendText(chatID, strings.TrimSpace(summary.String()))
}

func (b *Bot) beginTask(ctx context.Context, chatID int64, taskID uint) error {
	task, err := b.deps.Tasks.StartTask(ctx, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	text := "▶️ <b>В работе</b>\n" + service.FormatTask(*task, b.now()) +
		"\nКогда закончишь, отметь результат кнопкой или командой /finish или /partial."
	return b.sendWithReplyMarkup(chatID, text, progressKeyboard(task.ID))
}

func (b *Bot) handleFinish(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return b.sendText(chatID, "Формат: /finish &lt;id&gt; &lt;минуты&gt;, например /finish 12 45")
	}
	id, err := parseTaskIDArg(fields[0])
	if err != nil {
		return b.sendText(chatID, "ID задачи должен быть положительным числом.")
	}
	return b.finishTask(ctx, chatID, id, fields[1])
}

func (b *Bot) finishTask(ctx context.Context, chatID int64, taskID uint, rawMinutes string) error {
	minutes, err := service.ParseFinishInput(rawMinutes)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	task, err := b.deps.Tasks.FinishTask(ctx, taskID, minutes)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendText(chatID, fmt.Sprintf("✅ Задача «%s» выполнена за %s мин.", escape(task.Subject), rawMinutesLabel(minutes)))
}

func (b *Bot) handlePartial(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return b.sendText(chatID, "Формат: /partial &lt;id&gt; &lt;процент&gt; &lt;минуты&gt;, например /partial 12 50 30")
	}
	id, err := parseTaskIDArg(fields[0])
	if err != nil {
		return b.sendText(chatID, "ID задачи должен быть положительным числом.")
	}
	return b.partialFinish(ctx, chatID, id, fields[1], fields[2])
}

func (b *Bot) partialFinish(ctx context.Context, chatID int64, taskID uint, rawPercent, rawMinutes string) error {
	percent, minutes, err := service.ParsePartialInput(rawPercent, rawMinutes)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	task, err := b.deps.Tasks.PartialFinish(ctx, taskID, percent, minutes)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if task.IsCompleted {
		return b.sendText(chatID, fmt.Sprintf("✅ Задача «%s» выполнена полностью.", escape(task.Subject)))
	}
	return b.sendText(chatID, fmt.Sprintf("◐ Прогресс %d%% сохранён. Осталось ≈%s мин., задача вернётся в план.",
		percent, rawMinutesLabel(*task.PredictedTime)))
}

func (b *Bot) askDeleteConfirmation(ctx context.Context, chatID, userID int64, taskID uint) error {
	task, err := b.deps.Tasks.GetTask(ctx, taskID)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	if task.Closed() {
		return b.sendText(chatID, userMessage(service.ErrTaskClosed))
	}
	text := fmt.Sprintf("Удалить задачу «%s» (#%d)?", escape(task.Subject), task.ID)
	b.setConfirmation(userID, confirmationRequest{taskID: task.ID, action: actionDelete})
	return b.sendWithReplyMarkup(chatID, text, confirmKeyboard())
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		if err := b.deps.Tasks.DeleteTask(ctx, req.taskID); err != nil {
			return b.sendText(msg.Chat.ID, userMessage(err))
		}
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🗑 Задача #%d удалена.", req.taskID))
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "Удаление отменено.")
	default:
		return b.sendWithReplyMarkup(msg.Chat.ID, "Подтверди или отмени удаление задачи.", confirmKeyboard())
	}
}

func (b *Bot) handleSettings(ctx context.Context, chatID int64) error {
	settings, err := b.deps.Settings.Get(ctx)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendText(chatID, formatSettings(settings))
}

func (b *Bot) handleHours(ctx context.Context, chatID int64, args string) error {
	hours, err := parseHoursArgs(args)
	if err != nil {
		return b.sendText(chatID, "Нужно 7 чисел от 0 до 24, с понедельника: /hours 6 8 5 7 4 3 3")
	}
	result, err := b.deps.Settings.SaveHours(ctx, hours)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendText(chatID, "🕒 Часы обновлены. "+allocationLabel(result))
}

func (b *Bot) handleTimetable(ctx context.Context, chatID int64, args string) error {
	if args == "" {
		return b.handleSettings(ctx, chatID)
	}
	entries, err := parseTimetable(args)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не получилось разобрать расписание: %s\nКаждая строка: <code>день пара предмет</code>, день 0–6 с понедельника.", escape(err.Error())))
	}
	result, err := b.deps.Settings.SaveTimetable(ctx, entries)
	if err != nil {
		return b.sendText(chatID, userMessage(err))
	}
	return b.sendText(chatID, fmt.Sprintf("🏫 Расписание обновлено: %d занятий. %s", len(entries), allocationLabel(result)))
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	b.ack(cb)
	chatID := cb.Message.Chat.ID
	if !b.ensureToday(ctx, chatID) {
		return nil
	}

	action, taskID, err := parseCallback(cb.Data)
	if err != nil {
		return nil
	}
	config.Logger.WithField("user_id", cb.From.ID).WithField("task_id", taskID).WithField("action", action).Info("callback received")

	switch action {
	case cbBegin:
		return b.beginTask(ctx, chatID, taskID)
	case cbFinish:
		b.setConversation(cb.From.ID, &conversationState{stage: stageFinishMinutes, taskID: taskID})
		return b.sendWithReplyMarkup(chatID, "⏱ Сколько минут заняла задача?", cancelKeyboard())
	case cbPartial:
		b.setConversation(cb.From.ID, &conversationState{stage: stagePartialPercent, taskID: taskID})
		return b.sendWithReplyMarkup(chatID, "◐ Какой процент выполнен (0–100)?", cancelKeyboard())
	case cbDelete:
		return b.askDeleteConfirmation(ctx, chatID, cb.From.ID, taskID)
	default:
		return nil
	}
}
