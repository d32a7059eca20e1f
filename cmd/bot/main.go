package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/bratishka/bratishka/internal/assemble"
	"github.com/bratishka/bratishka/internal/bot"
	"github.com/bratishka/bratishka/internal/config"
	"github.com/bratishka/bratishka/internal/interval"
	"github.com/bratishka/bratishka/internal/pipeline"
	"github.com/bratishka/bratishka/internal/store"
	"github.com/bratishka/bratishka/internal/summarize"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

func main() {
	// A missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	messages, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer messages.Close()

	llm, err := openai.New(
		openai.WithToken(cfg.LLMAPIKey),
		openai.WithBaseURL(cfg.LLMBaseURL),
		openai.WithModel(cfg.LLMModel),
	)
	if err != nil {
		logger.Fatal("failed to initialize LLM client", zap.Error(err))
	}

	resolver := interval.New(
		time.Duration(cfg.DefaultWindowHours)*time.Hour,
		cfg.Location,
	)
	assembler := assemble.New(messages, nil)
	summarizer := summarize.New(llm, summarize.Sampling{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		MaxTokens:   cfg.MaxOutputTokens,
	}, cfg.GenerationMaxRetries, logger)

	pipe := pipeline.New(resolver, assembler, summarizer, pipeline.Config{
		ContextTokenBudget: cfg.ContextTokenBudget,
		Policy:             pipeline.Policy(cfg.ConcurrencyPolicy),
		CacheTTL:           cfg.SummaryCacheTTL,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Nightly retention sweep.
	scheduler := cron.New()
	_, err = scheduler.AddFunc("0 4 * * *", func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays)
		deleted, err := messages.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			logger.Error("retention cleanup failed", zap.Error(err))
			return
		}
		logger.Info("retention cleanup done",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	})
	if err != nil {
		logger.Fatal("failed to schedule retention cleanup", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	b := bot.New(cfg.TelegramToken, cfg.BotUsername, messages, pipe, cfg.RequestTimeout, logger)
	if err := b.Run(ctx); err != nil {
		logger.Fatal("bot stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
