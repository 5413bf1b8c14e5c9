package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/parlando-ai/parlando/internal/observe"
	"github.com/parlando-ai/parlando/internal/resilience"
	"github.com/parlando-ai/parlando/pkg/provider/llm"
)

// evalSystemPrompt is the fixed assessment rubric: definitions of the five
// judged dimensions plus the required response shape.
const evalSystemPrompt = `You are an expert English language assessor. Analyze the following conversation transcript between a user (language learner) and an AI conversation partner.

Evaluate the USER's English ability on these dimensions (score each 0-100):

1. **comprehension**: How well does the user understand what's being said? Do they respond appropriately? Do they miss meanings or misinterpret questions?

2. **coherence**: How logically structured are the user's responses? Do they stay on topic? Are their ideas well-organized and connected?

3. **pronunciation_proxy**: Based on transcript artifacts (unusual spellings, misheard words), estimate pronunciation quality. If transcript seems clean, score higher.

4. **vocabulary**: Assess vocabulary range and appropriateness. Does the user use varied and contextually appropriate words?

5. **grammar**: Assess grammatical accuracy and complexity. Does the user form correct sentences? Do they use complex structures?

Respond ONLY with a JSON object:
{
    "comprehension": <0-100>,
    "coherence": <0-100>,
    "pronunciation_proxy": <0-100>,
    "vocabulary": <0-100>,
    "grammar": <0-100>,
    "reasoning": "<brief explanation>"
}`

// defaultTranscriptLimit is how many of the newest transcript turns are
// sent per evaluation; older turns are summarised by a synthetic note.
const defaultTranscriptLimit = 20

const evalTemperature = 0.3

// TranscriptTurn is one (role, text) pair of the conversation sent to the
// oracle.
type TranscriptTurn struct {
	// Role is "user" or "assistant".
	Role string

	// Text is the turn's transcribed content.
	Text string
}

// OracleEvaluator judges comprehension, coherence, pronunciation (by
// proxy), vocabulary, and grammar by sending a bounded transcript to an
// external language-assessment model.
//
// Failures never escape Evaluate: transport errors, tripped breakers, and
// malformed responses all degrade to the all-neutral ComponentScores. The
// latency budget is seconds, not milliseconds — callers must keep this off
// any audio-handling path.
type OracleEvaluator struct {
	provider llm.Provider
	breaker  *resilience.CircuitBreaker
	limit    int
}

// OracleOption configures an [OracleEvaluator].
type OracleOption func(*OracleEvaluator)

// WithTranscriptLimit overrides how many of the newest turns are sent per
// evaluation. The default is 20.
func WithTranscriptLimit(n int) OracleOption {
	return func(e *OracleEvaluator) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithBreaker guards oracle calls with the given circuit breaker, so a
// persistently failing backend is bypassed instead of hammered.
func WithBreaker(cb *resilience.CircuitBreaker) OracleOption {
	return func(e *OracleEvaluator) {
		e.breaker = cb
	}
}

// NewOracleEvaluator creates an evaluator backed by provider.
func NewOracleEvaluator(provider llm.Provider, opts ...OracleOption) *OracleEvaluator {
	e := &OracleEvaluator{
		provider: provider,
		limit:    defaultTranscriptLimit,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// oracleResponse is the expected JSON structure from the model. Pointer
// fields distinguish "absent" from zero so missing dimensions fall back to
// the neutral prior rather than 0.
type oracleResponse struct {
	Comprehension      *float64 `json:"comprehension"`
	Coherence          *float64 `json:"coherence"`
	PronunciationProxy *float64 `json:"pronunciation_proxy"`
	Vocabulary         *float64 `json:"vocabulary"`
	Grammar            *float64 `json:"grammar"`
	Reasoning          string   `json:"reasoning"`
}

// Evaluate judges the transcript and returns component scores on all five
// oracle dimensions. On any failure it returns the all-neutral
// ComponentScores and logs the cause; it never returns an error.
func (e *OracleEvaluator) Evaluate(ctx context.Context, transcript []TranscriptTurn) ComponentScores {
	if len(transcript) == 0 {
		return NewComponentScores()
	}

	prompt := e.formatTranscript(transcript)

	call := func() (*llm.CompletionResponse, error) {
		return e.provider.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: evalSystemPrompt,
			Messages:     []llm.Message{{Role: "user", Content: "Transcript:\n" + prompt}},
			Temperature:  evalTemperature,
			JSONResponse: true,
		})
	}

	metrics := observe.DefaultMetrics()
	start := time.Now()

	var resp *llm.CompletionResponse
	var err error
	if e.breaker != nil {
		err = e.breaker.Execute(func() error {
			resp, err = call()
			return err
		})
	} else {
		resp, err = call()
	}
	metrics.OracleDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		metrics.RecordOracleRequest(ctx, e.provider.Name(), "error")
		slog.Warn("oracle evaluation failed; using neutral defaults",
			"provider", e.provider.Name(), "err", err)
		return NewComponentScores()
	}

	scores, err := parseOracleResponse(resp.Content)
	if err != nil {
		metrics.RecordOracleRequest(ctx, e.provider.Name(), "unparseable")
		slog.Warn("oracle response unparseable; using neutral defaults",
			"provider", e.provider.Name(), "err", err)
		return NewComponentScores()
	}
	metrics.RecordOracleRequest(ctx, e.provider.Name(), "ok")
	return scores
}

// formatTranscript renders the newest turns as "User:"/"AI:" lines,
// prefixing a synthetic note when older exchanges were dropped.
func (e *OracleEvaluator) formatTranscript(transcript []TranscriptTurn) string {
	omitted := 0
	if len(transcript) > e.limit {
		omitted = len(transcript) - e.limit
		transcript = transcript[omitted:]
	}

	var b strings.Builder
	if omitted > 0 {
		fmt.Fprintf(&b, "[Note: %d earlier exchanges omitted for brevity]\n", omitted)
	}
	for _, t := range transcript {
		speaker := "AI"
		if t.Role == "user" {
			speaker = "User"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// parseOracleResponse decodes the model's JSON judgment into
// ComponentScores, clamping every dimension to [0, 100] and substituting
// the neutral prior for any missing field.
func parseOracleResponse(content string) (ComponentScores, error) {
	// Some backends wrap JSON in markdown fences despite instructions.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed oracleResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return ComponentScores{}, fmt.Errorf("decode oracle response: %w", err)
	}

	pick := func(v *float64) float64 {
		if v == nil {
			return neutralScore
		}
		return clamp100(*v)
	}

	return ComponentScores{
		Comprehension:      pick(parsed.Comprehension),
		Coherence:          pick(parsed.Coherence),
		PronunciationProxy: pick(parsed.PronunciationProxy),
		Vocabulary:         pick(parsed.Vocabulary),
		Grammar:            pick(parsed.Grammar),
	}, nil
}
