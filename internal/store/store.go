package store

import (
	"context"

	"github.com/bratishka/bratishka/internal/models"
)

// Store is the message history the pipeline reads from. Implementations
// must make concurrent Append and Query calls safe and must return Query
// results in ascending timestamp order, with insertion order breaking ties.
type Store interface {
	// Append records one immutable message.
	Append(ctx context.Context, msg *models.Message) error

	// Query returns exactly the messages of chatID whose timestamp lies in
	// [w.Start, w.End).
	Query(ctx context.Context, chatID string, w models.TimeWindow) ([]models.Message, error)
}
