package assess

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/parlando-ai/parlando/internal/resilience"
	"github.com/parlando-ai/parlando/pkg/provider/llm"
	"github.com/parlando-ai/parlando/pkg/provider/llm/mock"
)

const validOracleJSON = `{
	"comprehension": 72,
	"coherence": 68,
	"pronunciation_proxy": 80,
	"vocabulary": 65,
	"grammar": 70,
	"reasoning": "solid intermediate responses"
}`

func TestOracleEvaluateParsesScores(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	e := NewOracleEvaluator(provider)

	got := e.Evaluate(context.Background(), []TranscriptTurn{
		{Role: "assistant", Text: "How was your weekend?"},
		{Role: "user", Text: "It was great, I went hiking with friends."},
	})

	want := ComponentScores{
		Comprehension: 72, Coherence: 68, PronunciationProxy: 80,
		Vocabulary: 65, Grammar: 70,
	}
	if got != want {
		t.Errorf("want %+v, got %+v", want, got)
	}
}

func TestOracleEvaluateEmptyTranscript(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{}
	e := NewOracleEvaluator(provider)

	if got := e.Evaluate(context.Background(), nil); got != NewComponentScores() {
		t.Errorf("want all-neutral scores, got %+v", got)
	}
	if calls := provider.Calls(); len(calls) != 0 {
		t.Errorf("want no provider calls for empty transcript, got %d", len(calls))
	}
}

func TestOracleEvaluateFailuresYieldNeutral(t *testing.T) {
	t.Parallel()

	transcript := []TranscriptTurn{{Role: "user", Text: "hello there"}}

	tests := []struct {
		name     string
		provider *mock.Provider
	}{
		{
			name:     "transport error",
			provider: &mock.Provider{CompleteErr: errors.New("connection refused")},
		},
		{
			name: "malformed json",
			provider: &mock.Provider{
				CompleteResponse: &llm.CompletionResponse{Content: "I refuse to emit JSON"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewOracleEvaluator(tt.provider)
			if got := e.Evaluate(context.Background(), transcript); got != NewComponentScores() {
				t.Errorf("want all-neutral scores, got %+v", got)
			}
		})
	}
}

func TestOracleEvaluateMissingFieldsFallBack(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"comprehension": 90, "grammar": 10}`,
		},
	}
	e := NewOracleEvaluator(provider)

	got := e.Evaluate(context.Background(), []TranscriptTurn{{Role: "user", Text: "hi"}})
	if got.Comprehension != 90 || got.Grammar != 10 {
		t.Errorf("want present fields preserved, got %+v", got)
	}
	if got.Coherence != neutralScore || got.Vocabulary != neutralScore ||
		got.PronunciationProxy != neutralScore {
		t.Errorf("want missing fields at %v, got %+v", neutralScore, got)
	}
}

func TestOracleEvaluateClampsOutOfRange(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: `{"comprehension": 250, "coherence": -40, "pronunciation_proxy": 50, "vocabulary": 50, "grammar": 50}`,
		},
	}
	e := NewOracleEvaluator(provider)

	got := e.Evaluate(context.Background(), []TranscriptTurn{{Role: "user", Text: "hi"}})
	if got.Comprehension != 100 {
		t.Errorf("want comprehension clamped to 100, got %v", got.Comprehension)
	}
	if got.Coherence != 0 {
		t.Errorf("want coherence clamped to 0, got %v", got.Coherence)
	}
}

func TestOracleEvaluateStripsMarkdownFences(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "```json\n" + validOracleJSON + "\n```",
		},
	}
	e := NewOracleEvaluator(provider)

	got := e.Evaluate(context.Background(), []TranscriptTurn{{Role: "user", Text: "hi"}})
	if got.Comprehension != 72 {
		t.Errorf("want fenced JSON parsed, got %+v", got)
	}
}

func TestOracleTranscriptTruncation(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	e := NewOracleEvaluator(provider)

	transcript := make([]TranscriptTurn, 30)
	for i := range transcript {
		transcript[i] = TranscriptTurn{Role: "user", Text: fmt.Sprintf("turn %d", i)}
	}
	e.Evaluate(context.Background(), transcript)

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("want 1 provider call, got %d", len(calls))
	}
	sent := calls[0].Req.Messages[0].Content

	if !strings.Contains(sent, "[Note: 10 earlier exchanges omitted for brevity]") {
		t.Errorf("want omission note in prompt, got:\n%s", sent)
	}
	if strings.Contains(sent, "turn 9\n") {
		t.Errorf("want turn 9 truncated away, got:\n%s", sent)
	}
	if !strings.Contains(sent, "turn 10") || !strings.Contains(sent, "turn 29") {
		t.Errorf("want newest 20 turns present, got:\n%s", sent)
	}
}

func TestOracleTranscriptNoNoteWhenShort(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	e := NewOracleEvaluator(provider)

	e.Evaluate(context.Background(), []TranscriptTurn{
		{Role: "user", Text: "short conversation"},
	})

	sent := provider.Calls()[0].Req.Messages[0].Content
	if strings.Contains(sent, "omitted") {
		t.Errorf("want no omission note for short transcript, got:\n%s", sent)
	}
}

func TestOracleRequestShape(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	e := NewOracleEvaluator(provider)
	e.Evaluate(context.Background(), []TranscriptTurn{
		{Role: "user", Text: "hello"},
		{Role: "assistant", Text: "hi there"},
	})

	req := provider.Calls()[0].Req
	if !req.JSONResponse {
		t.Error("want JSONResponse set")
	}
	if req.Temperature != evalTemperature {
		t.Errorf("want temperature %v, got %v", evalTemperature, req.Temperature)
	}
	if !strings.Contains(req.Messages[0].Content, "User: hello") ||
		!strings.Contains(req.Messages[0].Content, "AI: hi there") {
		t.Errorf("want speaker-labelled transcript, got:\n%s", req.Messages[0].Content)
	}
}

func TestOracleBreakerShortCircuits(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{CompleteErr: errors.New("backend down")}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "oracle",
		MaxFailures: 2,
	})
	e := NewOracleEvaluator(provider, WithBreaker(cb))

	transcript := []TranscriptTurn{{Role: "user", Text: "hi"}}
	for i := 0; i < 5; i++ {
		if got := e.Evaluate(context.Background(), transcript); got != NewComponentScores() {
			t.Fatalf("call %d: want all-neutral scores, got %+v", i, got)
		}
	}

	// Two failures trip the breaker; the remaining three calls must be
	// rejected without reaching the provider.
	if calls := provider.Calls(); len(calls) != 2 {
		t.Errorf("want 2 provider calls before the breaker opened, got %d", len(calls))
	}
	if cb.State() != resilience.StateOpen {
		t.Errorf("want open breaker, got %v", cb.State())
	}
}
