package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"study-planner/internal/model"
	"study-planner/internal/service"
)

const (
	cbBegin   = "begin"
	cbFinish  = "finish"
	cbPartial = "partial"
	cbDelete  = "delete"
)

const (
	btnConfirm        = "✅ Подтвердить"
	btnCancel         = "↩️ Отмена"
	btnCancelDialog   = "⏪ Отменить ввод"
	menuLabelToday    = "📅 Сегодня"
	menuLabelBacklog  = "📥 Все задачи"
	menuLabelNewTask  = "➕ Новая задача"
	menuLabelSettings = "⚙️ Настройки"
	menuLabelHelp     = "ℹ️ Помощь"
)

// isConfigCommand reports whether command edits configuration and must not
// trigger an allocation.
func isConfigCommand(command string) bool {
	switch command {
	case "settings", "hours", "timetable":
		return true
	default:
		return false
	}
}

// menuCommand maps a main menu button label to its command, or "".
func menuCommand(text string) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case strings.ToLower(menuLabelToday):
		return "today"
	case strings.ToLower(menuLabelBacklog):
		return "backlog"
	case strings.ToLower(menuLabelNewTask):
		return "newtask"
	case strings.ToLower(menuLabelSettings):
		return "settings"
	case strings.ToLower(menuLabelHelp):
		return "help"
	default:
		return ""
	}
}

func parseTaskIDArg(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(raw), "#"), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, errors.New("task id must be positive")
	}
	return uint(value), nil
}

// parseHoursArgs reads seven hour values, Monday first. Commas are accepted as
// decimal separators.
func parseHoursArgs(args string) ([7]float64, error) {
	var hours [7]float64
	fields := strings.Fields(args)
	if len(fields) != len(hours) {
		return hours, fmt.Errorf("expected %d values, got %d", len(hours), len(fields))
	}
	for i, field := range fields {
		value, err := strconv.ParseFloat(strings.ReplaceAll(field, ",", "."), 64)
		if err != nil {
			return hours, fmt.Errorf("value %d: %w", i+1, err)
		}
		if value < 0 || value > service.MaxDailyHours {
			return hours, fmt.Errorf("value %d out of range", i+1)
		}
		hours[i] = value
	}
	return hours, nil
}

// parseTimetable reads lines of "weekday period subject". Blank lines are skipped.
func parseTimetable(text string) ([]model.TimetableEntry, error) {
	var entries []model.TimetableEntry
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 || strings.TrimSpace(fields[2]) == "" {
			return nil, fmt.Errorf("строка %d: нужно «день пара предмет»", i+1)
		}
		weekday, err := strconv.Atoi(fields[0])
		if err != nil || weekday < 0 || weekday > 6 {
			return nil, fmt.Errorf("строка %d: день должен быть от 0 до 6", i+1)
		}
		period, err := strconv.Atoi(fields[1])
		if err != nil || period < 1 || period > service.MaxPeriod {
			return nil, fmt.Errorf("строка %d: пара должна быть от 1 до %d", i+1, service.MaxPeriod)
		}
		entries = append(entries, model.TimetableEntry{Weekday: weekday, Period: period, Subject: strings.TrimSpace(fields[2])})
	}
	if len(entries) == 0 {
		return nil, errors.New("расписание пустое")
	}
	return entries, nil
}

func callbackData(action string, taskID uint) string {
	return fmt.Sprintf("%s:%d", action, taskID)
}

func parseCallback(data string) (string, uint, error) {
	action, rawID, ok := strings.Cut(data, ":")
	if !ok {
		return "", 0, fmt.Errorf("malformed callback %q", data)
	}
	id, err := parseTaskIDArg(rawID)
	if err != nil {
		return "", 0, err
	}
	return action, id, nil
}

func formatSettings(settings *service.Settings) string {
	var builder strings.Builder
	builder.WriteString("⚙️ <b>Свободное время</b>\n")
	for weekday, hours := range settings.Hours {
		builder.WriteString(fmt.Sprintf("• %s: %s ч.\n", service.WeekdayName(weekday), rawMinutesLabel(hours)))
	}
	builder.WriteString("\n🏫 <b>Расписание</b>\n")
	if len(settings.Timetable) == 0 {
		builder.WriteString("— пусто\n")
	}
	for _, entry := range settings.Timetable {
		builder.WriteString(fmt.Sprintf("%d %d %s\n", entry.Weekday, entry.Period, escape(entry.Subject)))
	}
	builder.WriteString("\nИзменить: /hours и /timetable")
	return builder.String()
}

func allocationLabel(result *service.AllocationResult) string {
	if result == nil {
		return ""
	}
	return fmt.Sprintf("План на сегодня пересобран: %d задач, %s из %d мин.",
		len(result.Assigned), rawMinutesLabel(result.TotalMinutes), result.LimitMinutes)
}

func rawMinutesLabel(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func beginKeyboard(tasks []model.Task) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for _, task := range tasks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("▶️ #%d · %s", task.ID, shortTitle(task.Subject, 24)), callbackData(cbBegin, task.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func progressKeyboard(taskID uint) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Завершить", callbackData(cbFinish, taskID)),
			tgbotapi.NewInlineKeyboardButtonData("◐ Частично", callbackData(cbPartial, taskID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", callbackData(cbDelete, taskID)),
		),
	)
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelBacklog),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelSettings),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

var defaultCategories = []string{"Отчёт", "Домашнее задание", "Подготовка к экзамену", "Проект"}

func categoryKeyboard(categories []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(categories); i += 2 {
		row := tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(categories[i]))
		if i+1 < len(categories) {
			row = append(row, tgbotapi.NewKeyboardButton(categories[i+1]))
		}
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func difficultyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, service.MaxDifficulty)
	for d := service.MinDifficulty; d <= service.MaxDifficulty; d++ {
		row = append(row, tgbotapi.NewKeyboardButton(strconv.Itoa(d)))
	}
	kb := tgbotapi.NewReplyKeyboard(
		row,
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancelDialog)),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "подтвердить" || value == "да"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "отмена" || value == "нет"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод"
}
