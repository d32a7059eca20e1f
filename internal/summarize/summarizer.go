package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bratishka/bratishka/internal/models"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// NoActivityText is the canonical reply for an empty window. The backend is
// never invoked for it.
const NoActivityText = "За этот период в чате не было сообщений."

// InsufficientText is the reply when the window holds too few messages to
// produce a meaningful summary.
const InsufficientText = "Слишком мало сообщений за этот период, сводку делать не из чего."

// minMessages is the activity floor below which generation is skipped.
const minMessages = 3

// lowActivityMarker is prepended when the model returns a suspiciously
// short summary for a window that had real activity.
const lowActivityMarker = "⚠️ Переписка была малоактивной.\n\n"

// Sampling holds the fixed generation parameters. They come from
// configuration, never from this package.
type Sampling struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ChatContext carries the request metadata the prompt mentions.
type ChatContext struct {
	ChatTitle  string
	WindowDesc string
}

// Summarizer builds a transcript prompt and runs it through a
// text-completion backend.
type Summarizer struct {
	llm        llms.Model
	sampling   Sampling
	maxRetries int
	logger     *zap.Logger
}

func New(model llms.Model, sampling Sampling, maxRetries int, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{
		llm:        model,
		sampling:   sampling,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Summarize generates a summary for the ordered transcript in msgs.
// Empty input short-circuits to NoActivityText; fewer than minMessages
// messages short-circuits to InsufficientText. Transient backend failures
// and empty completions are retried with the same prompt up to the
// configured maximum; exhaustion surfaces a *GenerationError.
func (s *Summarizer) Summarize(ctx context.Context, msgs []models.Message, meta ChatContext) (string, error) {
	if len(msgs) == 0 {
		return NoActivityText, nil
	}
	if len(msgs) < minMessages {
		return InsufficientText, nil
	}

	prompt := buildPrompt(msgs, meta)

	opts := []llms.CallOption{
		llms.WithTemperature(s.sampling.Temperature),
		llms.WithTopP(s.sampling.TopP),
		llms.WithMaxTokens(s.sampling.MaxTokens),
	}

	var lastErr error
	attempts := s.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		start := time.Now()
		completion, err := llms.GenerateFromSinglePrompt(ctx, s.llm, prompt, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			s.logger.Warn("summary generation failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		summary := strings.TrimSpace(completion)
		if summary == "" {
			lastErr = errors.New("backend returned empty completion")
			s.logger.Warn("summary generation returned empty output",
				zap.Int("attempt", attempt))
			continue
		}

		s.logger.Info("summary generated",
			zap.Int("messages", len(msgs)),
			zap.Int("attempt", attempt),
			zap.Duration("elapsed", time.Since(start)))

		if utf8.RuneCountInString(summary) < 50 && len(msgs) > 5 {
			summary = lowActivityMarker + summary
		}
		return summary, nil
	}

	return "", &GenerationError{Attempts: attempts, Err: lastErr}
}

// buildPrompt renders the system instruction, the ordered transcript and
// the summary instruction. The instruction mirrors the conversation's
// language.
func buildPrompt(msgs []models.Message, meta ChatContext) string {
	var sb strings.Builder

	sb.WriteString("Ты - ассистент для анализа переписки в групповом чате. ")
	sb.WriteString("Твоя задача - создать ")
	sb.WriteString(detailLevel(len(msgs)))
	sb.WriteString(" сводку переписки.\n\n")

	if meta.WindowDesc != "" {
		sb.WriteString(fmt.Sprintf("Проанализируй переписку %s и создай сводку.\n\n", meta.WindowDesc))
	} else {
		sb.WriteString("Проанализируй переписку и создай сводку.\n\n")
	}
	sb.WriteString("Структура сводки:\n")
	sb.WriteString("1. Основные обсуждаемые темы\n")
	sb.WriteString("2. Ключевые решения и договоренности (если были)\n")
	sb.WriteString("3. Важные события или новости\n")
	sb.WriteString("4. Суть конфликтов или споров (если были)\n")
	sb.WriteString("5. Нерешённые вопросы (если есть)\n\n")
	sb.WriteString("Требования:\n")
	sb.WriteString("- НЕ придумывай то, чего не было в переписке\n")
	sb.WriteString("- Пиши на языке переписки\n")
	sb.WriteString("- Будь конкретен, избегай общих фраз\n")
	sb.WriteString("- Пустые пункты не упоминай\n\n")

	if meta.ChatTitle != "" {
		sb.WriteString(fmt.Sprintf("Чат: %s\n", meta.ChatTitle))
	}
	sb.WriteString("Переписка чата:\n")
	for _, m := range msgs {
		sb.WriteString(fmt.Sprintf("[%s] %s: %s\n",
			m.Timestamp.Format("15:04"), m.AuthorName, m.Text))
	}
	sb.WriteString("\nСводка:")

	return sb.String()
}

// detailLevel adapts the requested verbosity to the window's activity,
// matching how a human would scale a recap.
func detailLevel(count int) string {
	switch {
	case count < 10:
		return "очень краткую"
	case count < 50:
		return "краткую"
	case count < 200:
		return "структурированную"
	default:
		return "детальную"
	}
}
