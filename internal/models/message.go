package models

import "time"

// Message is a single chat message as stored in the history.
// Messages are immutable once appended.
type Message struct {
	ID         int64     `json:"id"`
	ChatID     string    `json:"chat_id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	ReplyTo    int64     `json:"reply_to,omitempty"`
	Timestamp  time.Time `json:"timestamp"` // always UTC
}

// TimeWindow is a half-open range [Start, End) used to select messages.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether ts falls inside the window.
func (w TimeWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// IsZeroLength reports whether the window is degenerate (Start == End).
// Such a window selects nothing; it is valid, not an error.
func (w TimeWindow) IsZeroLength() bool {
	return w.Start.Equal(w.End)
}

// SummaryRequest is one incoming request to summarize a chat.
type SummaryRequest struct {
	ID            string    `json:"id"`
	ChatID        string    `json:"chat_id"`
	RawExpression string    `json:"raw_expression"`
	RequestedAt   time.Time `json:"requested_at"`
}

// SummaryResult is the outcome of a summary request. It is transient:
// the caller renders and sends it, nothing here is persisted.
type SummaryResult struct {
	ChatID       string     `json:"chat_id"`
	Window       TimeWindow `json:"window"`
	WindowDesc   string     `json:"window_desc"`
	MessageCount int        `json:"message_count"`
	Participants []string   `json:"participants,omitempty"`
	SummaryText  string     `json:"summary_text"`
	Truncated    bool       `json:"truncated"`
	Cached       bool       `json:"cached"`
}
