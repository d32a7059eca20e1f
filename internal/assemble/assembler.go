package assemble

import (
	"context"

	"github.com/bratishka/bratishka/internal/models"
	"github.com/bratishka/bratishka/internal/store"
)

// Estimator returns the approximate token cost of a piece of text.
type Estimator func(text string) int

// Assembler fetches the messages of a window and fits them into a token
// budget. When the window does not fit, the oldest messages are dropped
// first: recency is the dominant relevance signal for "what happened"
// requests, so the tail of the conversation wins.
type Assembler struct {
	store    store.Store
	estimate Estimator
}

func New(s store.Store, est Estimator) *Assembler {
	if est == nil {
		est = EstimateTokens
	}
	return &Assembler{store: s, estimate: est}
}

// Assemble returns the window's messages in ascending timestamp order,
// clipped from the front to fit budget. The truncated flag reports whether
// anything was dropped. An empty window is a valid outcome: it yields
// (empty, false, nil), never an error.
//
// A single message that alone exceeds the budget is passed through rather
// than silently dropped, flagged truncated.
func (a *Assembler) Assemble(ctx context.Context, chatID string, w models.TimeWindow, budget int) ([]models.Message, bool, error) {
	msgs, err := a.store.Query(ctx, chatID, w)
	if err != nil {
		return nil, false, err
	}
	if len(msgs) == 0 {
		return []models.Message{}, false, nil
	}

	costs := make([]int, len(msgs))
	total := 0
	for i, m := range msgs {
		costs[i] = a.estimate(m.AuthorName) + a.estimate(m.Text) + lineOverheadTokens
		total += costs[i]
	}

	drop := 0
	for total > budget && drop < len(msgs)-1 {
		total -= costs[drop]
		drop++
	}

	kept := msgs[drop:]
	// The last message may still be over budget on its own; it is kept and
	// the result is flagged truncated.
	truncated := drop > 0 || total > budget
	return kept, truncated, nil
}

// lineOverheadTokens approximates the "[HH:MM] author: " framing each
// transcript line adds around the message text.
const lineOverheadTokens = 6
