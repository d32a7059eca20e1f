package summarize

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bratishka/bratishka/internal/models"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// fakeModel scripts the backend: each call pops the next step. A step with
// err set fails the call; an empty text simulates a garbled completion.
type fakeModel struct {
	mu      sync.Mutex
	steps   []fakeStep
	calls   int
	prompts []string
}

type fakeStep struct {
	text string
	err  error
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, mc := range messages {
		for _, part := range mc.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tc.Text)
			}
		}
	}

	idx := f.calls
	f.calls++
	if idx >= len(f.steps) {
		return nil, errors.New("fakeModel: no more scripted steps")
	}
	step := f.steps[idx]
	if step.err != nil {
		return nil, step.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: step.text}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func (f *fakeModel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testMessages(n int) []models.Message {
	msgs := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, models.Message{
			ID:         int64(i + 1),
			ChatID:     "chat-1",
			AuthorName: "Вася",
			Text:       "обсуждаем релиз в пятницу",
			Timestamp:  time.Date(2024, 6, 15, 9, i, 0, 0, time.UTC),
		})
	}
	return msgs
}

var testSampling = Sampling{Temperature: 0.6, TopP: 0.95, MaxTokens: 512}

func TestSummarize_EmptyInputShortCircuits(t *testing.T) {
	model := &fakeModel{}
	s := New(model, testSampling, 2, nil)

	got, err := s.Summarize(context.Background(), nil, ChatContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got != NoActivityText {
		t.Errorf("got %q, want NoActivityText", got)
	}
	if model.callCount() != 0 {
		t.Errorf("backend called %d times on empty input, want 0", model.callCount())
	}
}

func TestSummarize_TooFewMessages(t *testing.T) {
	model := &fakeModel{}
	s := New(model, testSampling, 2, nil)

	got, err := s.Summarize(context.Background(), testMessages(2), ChatContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got != InsufficientText {
		t.Errorf("got %q, want InsufficientText", got)
	}
	if model.callCount() != 0 {
		t.Errorf("backend called %d times, want 0", model.callCount())
	}
}

func TestSummarize_Success(t *testing.T) {
	const summary = "Обсуждали релиз в пятницу, договорились про дедлайн и ответственных."
	model := &fakeModel{steps: []fakeStep{{text: summary}}}
	s := New(model, testSampling, 2, nil)

	got, err := s.Summarize(context.Background(), testMessages(3), ChatContext{WindowDesc: "за последние 2 часа"})
	if err != nil {
		t.Fatal(err)
	}
	if got != summary {
		t.Errorf("got %q, want %q", got, summary)
	}

	if len(model.prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(model.prompts))
	}
	prompt := model.prompts[0]
	for _, want := range []string{"Вася", "обсуждаем релиз в пятницу", "за последние 2 часа"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSummarize_PromptWithoutWindowDesc(t *testing.T) {
	model := &fakeModel{steps: []fakeStep{{text: "Обсуждали планы на неделю и дедлайны."}}}
	s := New(model, testSampling, 0, nil)

	if _, err := s.Summarize(context.Background(), testMessages(3), ChatContext{}); err != nil {
		t.Fatal(err)
	}
	if len(model.prompts) != 1 {
		t.Fatalf("got %d prompts, want 1", len(model.prompts))
	}
	prompt := model.prompts[0]
	if !strings.Contains(prompt, "Проанализируй переписку и создай сводку.") {
		t.Errorf("prompt missing the bare instruction:\n%s", prompt)
	}
	if strings.Contains(prompt, "переписку  ") {
		t.Errorf("prompt carries a doubled space:\n%s", prompt)
	}
}

func TestSummarize_RetriesOnTransientError(t *testing.T) {
	model := &fakeModel{steps: []fakeStep{
		{err: errors.New("connection reset")},
		{text: "Короткий разговор про планы на релиз и задачи на неделю."},
	}}
	s := New(model, testSampling, 2, nil)

	_, err := s.Summarize(context.Background(), testMessages(3), ChatContext{})
	if err != nil {
		t.Fatal(err)
	}
	if model.callCount() != 2 {
		t.Errorf("backend called %d times, want 2", model.callCount())
	}
}

func TestSummarize_RetriesOnEmptyOutput(t *testing.T) {
	model := &fakeModel{steps: []fakeStep{
		{text: "   "},
		{text: "Договорились перенести встречу на понедельник утром."},
	}}
	s := New(model, testSampling, 2, nil)

	got, err := s.Summarize(context.Background(), testMessages(3), ChatContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("got empty summary")
	}
	if model.callCount() != 2 {
		t.Errorf("backend called %d times, want 2", model.callCount())
	}
}

func TestSummarize_AllBlankOutputsExhaust(t *testing.T) {
	model := &fakeModel{steps: []fakeStep{
		{text: ""}, {text: "  \n"},
	}}
	s := New(model, testSampling, 1, nil)

	_, err := s.Summarize(context.Background(), testMessages(3), ChatContext{})
	var ge *GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v, want *GenerationError", err)
	}
	if !strings.Contains(ge.Err.Error(), "empty completion") {
		t.Errorf("wrapped err = %v, want the empty-completion cause", ge.Err)
	}
}

func TestSummarize_ExhaustionSurfacesGenerationError(t *testing.T) {
	backendErr := errors.New("model overloaded")
	model := &fakeModel{steps: []fakeStep{
		{err: backendErr}, {err: backendErr},
	}}
	s := New(model, testSampling, 1, nil)

	_, err := s.Summarize(context.Background(), testMessages(3), ChatContext{})
	var ge *GenerationError
	if !errors.As(err, &ge) {
		t.Fatalf("err = %v, want *GenerationError", err)
	}
	if ge.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", ge.Attempts)
	}
	if !errors.Is(err, backendErr) {
		t.Error("GenerationError must wrap the backend error")
	}
}

func TestSummarize_CanceledContext(t *testing.T) {
	model := &fakeModel{}
	s := New(model, testSampling, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Summarize(ctx, testMessages(3), ChatContext{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if model.callCount() != 0 {
		t.Errorf("backend called %d times after cancel, want 0", model.callCount())
	}
}

func TestSummarize_LowActivityMarker(t *testing.T) {
	model := &fakeModel{steps: []fakeStep{{text: "Ничего важного."}}}
	s := New(model, testSampling, 0, nil)

	got, err := s.Summarize(context.Background(), testMessages(10), ChatContext{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, lowActivityMarker) {
		t.Errorf("short summary for an active window must carry the marker, got %q", got)
	}
}
