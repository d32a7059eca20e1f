package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bratishka/bratishka/internal/interval"
	"github.com/bratishka/bratishka/internal/models"
	"github.com/bratishka/bratishka/internal/pipeline"
	"github.com/bratishka/bratishka/internal/store"
	"github.com/bratishka/bratishka/internal/summarize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Bot is the Telegram dispatch layer: it saves every group message into the
// store and hands summary requests to the pipeline. All summarization logic
// lives behind the pipeline; this layer only parses updates and renders
// results.
type Bot struct {
	token          string
	username       string
	store          store.Store
	pipe           *pipeline.Pipeline
	requestTimeout time.Duration
	logger         *zap.Logger

	api *tgbotapi.BotAPI
}

func New(token, username string, st store.Store, pipe *pipeline.Pipeline, requestTimeout time.Duration, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		token:          token,
		username:       username,
		store:          st,
		pipe:           pipe,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// Run polls Telegram for updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	api, err := tgbotapi.NewBotAPI(b.token)
	if err != nil {
		return fmt.Errorf("telegram init failed: %w", err)
	}
	b.api = api
	b.logger.Info("telegram bot started", zap.String("username", api.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil {
		return
	}

	if msg.Chat.IsPrivate() {
		b.reply(msg.Chat.ID, b.helpText())
		return
	}
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return
	}

	if strings.Contains(msg.Text, "@"+b.username) {
		if isSummaryRequest(msg.Text) {
			// Per-request goroutine; the pipeline's per-chat guard keeps
			// concurrent requests for one chat from racing.
			go b.handleSummary(ctx, msg)
		}
		return
	}

	b.ingest(ctx, msg)
}

func (b *Bot) ingest(ctx context.Context, msg *tgbotapi.Message) {
	record := &models.Message{
		ChatID:     strconv.FormatInt(msg.Chat.ID, 10),
		AuthorID:   strconv.FormatInt(msg.From.ID, 10),
		AuthorName: displayName(msg.From),
		Text:       msg.Text,
		Timestamp:  msg.Time().UTC(),
	}
	if msg.ReplyToMessage != nil {
		record.ReplyTo = int64(msg.ReplyToMessage.MessageID)
	}

	if err := b.store.Append(ctx, record); err != nil {
		b.logger.Error("failed to save message",
			zap.Int64("chatID", msg.Chat.ID),
			zap.Error(err))
	}
}

func (b *Bot) handleSummary(ctx context.Context, msg *tgbotapi.Message) {
	status, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, "🔄 Анализирую сообщения..."))
	if err != nil {
		b.logger.Error("failed to send status message", zap.Error(err))
		return
	}

	req := models.SummaryRequest{
		ID:            uuid.NewString(),
		ChatID:        strconv.FormatInt(msg.Chat.ID, 10),
		RawExpression: stripMention(msg.Text, b.username),
		RequestedAt:   time.Now().UTC(),
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	result, err := b.pipe.Handle(reqCtx, req)
	if err != nil {
		b.edit(msg.Chat.ID, status.MessageID, b.errorText(err))
		return
	}

	b.edit(msg.Chat.ID, status.MessageID, renderResult(result))
}

func (b *Bot) errorText(err error) string {
	var busy *pipeline.BusyError
	switch {
	case interval.IsMagnitudeError(err):
		return "Интервал должен быть положительным числом минут, часов или дней."
	case errors.As(err, &busy):
		return fmt.Sprintf("Уже готовлю сводку для этого чата, попробуйте через %d сек.",
			int(busy.RetryAfter.Seconds()))
	case pipeline.IsCanceled(err):
		return "Не успел подготовить сводку, попробуйте ещё раз."
	case summarize.IsGenerationError(err):
		b.logger.Error("summary generation failed", zap.Error(err))
		return "Не получилось сделать сводку, попробуйте позже."
	default:
		b.logger.Error("summary request failed", zap.Error(err))
		return "❌ Произошла ошибка при генерации сводки."
	}
}

func renderResult(result *models.SummaryResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Сводка %s\n", result.WindowDesc))
	sb.WriteString(fmt.Sprintf("Проанализировано сообщений: %d", result.MessageCount))
	if result.Truncated {
		sb.WriteString(" (самые старые не вошли в анализ)")
	}
	sb.WriteString("\n\n")
	sb.WriteString(result.SummaryText)
	return sb.String()
}

func (b *Bot) helpText() string {
	return fmt.Sprintf("👋 Привет! Я @%s - бот для анализа переписки.\n\n"+
		"🔹 Добавьте меня в чат и я начну сохранять сообщения\n"+
		"🔹 Обращайтесь ко мне через @:\n\n"+
		"Примеры:\n"+
		"• @%s о чём договорились?\n"+
		"• @%s сводку\n"+
		"• @%s сводка за 30 минут\n"+
		"• @%s о чём вчера говорили?\n"+
		"• @%s сводка за всё время",
		b.username, b.username, b.username, b.username, b.username, b.username)
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send reply", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.logger.Error("failed to edit status message", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return "Unknown"
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name != "" {
		return name
	}
	if user.UserName != "" {
		return user.UserName
	}
	return "Unknown"
}
