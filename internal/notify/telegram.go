package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kmayer/taskflow/internal/config"
	"github.com/kmayer/taskflow/internal/model"
)

// SettingGetter reads runtime settings; a configured setting overrides
// the static token and chat id.
type SettingGetter interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// Telegram sends task notifications to a Telegram chat.
type Telegram struct {
	cfg      config.TelegramConfig
	settings SettingGetter
	logger   *zap.Logger
}

// NewTelegram creates a Telegram notifier. The bot connection is
// established per send, so token changes in settings take effect
// without a restart.
func NewTelegram(cfg config.TelegramConfig, settings SettingGetter, logger *zap.Logger) *Telegram {
	return &Telegram{cfg: cfg, settings: settings, logger: logger}
}

// resolve returns the active token and chat id, settings first, static
// config as fallback.
func (t *Telegram) resolve(ctx context.Context) (token, chatID string) {
	token = t.cfg.Token
	chatID = t.cfg.ChatID

	if v, ok, err := t.settings.GetSetting(ctx, config.SettingTelegramToken); err == nil && ok && v != "" {
		token = v
	}
	if v, ok, err := t.settings.GetSetting(ctx, config.SettingTelegramChatID); err == nil && ok && v != "" {
		chatID = v
	}

	return token, chatID
}

// Configured reports whether both a token and a chat id are available.
func (t *Telegram) Configured(ctx context.Context) bool {
	token, chatID := t.resolve(ctx)
	return token != "" && chatID != ""
}

var priorityEmoji = map[string]string{
	model.PriorityHigh:   "\U0001F534",
	model.PriorityMedium: "\U0001F7E1",
	model.PriorityLow:    "\U0001F7E2",
}

// NotifyNewTask announces a freshly created task.
func (t *Telegram) NotifyNewTask(ctx context.Context, task model.Task) error {
	emoji, ok := priorityEmoji[task.Priority]
	if !ok {
		emoji = priorityEmoji[model.PriorityMedium]
	}

	due := "Not set"
	if task.DueDate != nil {
		due = task.DueDate.Format("2006-01-02")
	}

	company := task.Company
	if company == "" {
		company = "N/A"
	}
	customer := task.CustomerName
	if customer == "" {
		customer = "Unknown"
	}

	message := fmt.Sprintf(
		"%s <b>New Task Created</b>\n\n"+
			"<b>Title:</b> %s\n"+
			"<b>Customer:</b> %s\n"+
			"<b>Company:</b> %s\n"+
			"<b>Priority:</b> %s\n"+
			"<b>Due:</b> %s\n\n"+
			"\U0001F4E7 Source: Email",
		emoji, truncate(task.Title, 100), customer, company,
		titleWord(task.Priority), due,
	)

	return t.send(ctx, message)
}

// NotifyStatusChange announces a task status transition.
func (t *Telegram) NotifyStatusChange(ctx context.Context, task model.Task, oldStatus string) error {
	customer := task.CustomerName
	if customer == "" {
		customer = "Unknown"
	}

	message := fmt.Sprintf(
		"\U0001F4CB <b>Task Status Updated</b>\n\n"+
			"<b>Title:</b> %s\n"+
			"<b>Status:</b> %s → %s\n"+
			"<b>Customer:</b> %s",
		truncate(task.Title, 100), oldStatus, task.Status, customer,
	)

	return t.send(ctx, message)
}

func (t *Telegram) send(ctx context.Context, text string) error {
	token, chatID := t.resolve(ctx)
	if token == "" || chatID == "" {
		t.logger.Warn("telegram not configured, dropping notification")
		return nil
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("creating telegram bot: %w", err)
	}

	// Chat ids from settings are numeric; channel usernames start
	// with @.
	var msg tgbotapi.MessageConfig
	if id, perr := strconv.ParseInt(chatID, 10, 64); perr == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := api.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}

	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
