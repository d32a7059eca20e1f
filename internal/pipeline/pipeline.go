package pipeline

import (
	"context"
	"time"

	"github.com/bratishka/bratishka/internal/interval"
	"github.com/bratishka/bratishka/internal/models"
	"github.com/bratishka/bratishka/internal/summarize"
	"go.uber.org/zap"
)

// Assembler is the context-assembly capability the pipeline composes.
type Assembler interface {
	Assemble(ctx context.Context, chatID string, w models.TimeWindow, budget int) ([]models.Message, bool, error)
}

// Summarizer is the generation capability the pipeline composes.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []models.Message, meta summarize.ChatContext) (string, error)
}

// Config holds the pipeline's externally supplied knobs.
type Config struct {
	ContextTokenBudget int
	Policy             Policy
	CacheTTL           time.Duration
}

// Pipeline runs resolve → assemble → summarize for each summary request,
// with at most one execution in flight per chat.
type Pipeline struct {
	resolver   *interval.Resolver
	assembler  Assembler
	summarizer Summarizer
	cfg        Config
	guard      *guard
	cache      *resultCache
	logger     *zap.Logger
}

func New(resolver *interval.Resolver, assembler Assembler, summarizer Summarizer, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReject
	}
	return &Pipeline{
		resolver:   resolver,
		assembler:  assembler,
		summarizer: summarizer,
		cfg:        cfg,
		guard:      newGuard(cfg.Policy),
		cache:      newResultCache(cfg.CacheTTL),
		logger:     logger,
	}
}

// Handle executes one summary request. Errors it can return: a
// *interval.MagnitudeError for bad user input, a *BusyError under the
// reject policy, a *CanceledError when ctx expires at a suspension point,
// and a *summarize.GenerationError when the backend gives up. Empty windows
// are not errors: they produce a result carrying the no-activity text.
func (p *Pipeline) Handle(ctx context.Context, req models.SummaryRequest) (*models.SummaryResult, error) {
	log := p.logger.With(
		zap.String("requestID", req.ID),
		zap.String("chatID", req.ChatID))

	res, err := p.resolver.Resolve(req.RawExpression, req.RequestedAt)
	if err != nil {
		log.Info("rejected time expression",
			zap.String("expression", req.RawExpression),
			zap.Error(err))
		return nil, err
	}
	log.Debug("resolved time window",
		zap.String("kind", res.Kind.String()),
		zap.Time("start", res.Window.Start),
		zap.Time("end", res.Window.End))

	release, err := p.guard.acquire(ctx, req.ChatID)
	if err != nil {
		return nil, err
	}
	defer release()

	key := cacheKey(req.ChatID, res)
	if cached, ok := p.cache.get(key, req.RequestedAt); ok {
		log.Info("served summary from cache")
		cached.Cached = true
		return &cached, nil
	}

	msgs, truncated, err := p.assembler.Assemble(ctx, req.ChatID, res.Window, p.cfg.ContextTokenBudget)
	if err != nil {
		return nil, wrapCanceled(err)
	}

	summary, err := p.summarizer.Summarize(ctx, msgs, summarize.ChatContext{
		WindowDesc: res.Description,
	})
	if err != nil {
		return nil, wrapCanceled(err)
	}

	result := models.SummaryResult{
		ChatID:       req.ChatID,
		Window:       res.Window,
		WindowDesc:   res.Description,
		MessageCount: len(msgs),
		Participants: participants(msgs),
		SummaryText:  summary,
		Truncated:    truncated,
	}

	if len(msgs) > 0 {
		p.cache.set(key, result, req.RequestedAt)
	}

	log.Info("summary request completed",
		zap.Int("messages", len(msgs)),
		zap.Bool("truncated", truncated))
	return &result, nil
}

// participants lists unique author names in order of first appearance.
func participants(msgs []models.Message) []string {
	seen := make(map[string]struct{}, len(msgs))
	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.AuthorName == "" {
			continue
		}
		if _, ok := seen[m.AuthorName]; ok {
			continue
		}
		seen[m.AuthorName] = struct{}{}
		names = append(names, m.AuthorName)
	}
	return names
}
