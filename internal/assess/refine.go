package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/parlando-ai/parlando/pkg/provider/llm"
)

// refineSystemPrompt instructs the model to analyse grammar errors and
// filler usage in a single short speech sample. Kept deliberately narrow so
// that small, fast models stay reliable at it.
const refineSystemPrompt = `Analyze English speech for grammar errors and filler words. ` +
	`Respond with JSON: {"grammar_errors": [...], "filler_count": N}. ` +
	`Grammar: subject-verb agreement errors (he/she/it + wrong verb). ` +
	`Fillers: um, uh, er, ah, like (non-verb use), you know, i mean, ` +
	`basically, actually, literally, sort of, kind of, well (interjection).`

const (
	// refineMaxInput bounds the text sent per refinement request.
	refineMaxInput = 2000

	// refineTimeout caps a single refinement call; the deterministic
	// metrics must never wait longer than this on the network.
	refineTimeout = 5 * time.Second
)

// Refinement is the model's context-aware analysis of one text sample.
type Refinement struct {
	// GrammarErrors lists detected errors beyond the fixed regex patterns.
	GrammarErrors []string

	// FillerCount is the context-aware filler count (distinguishing "like"
	// the verb from "like" the filler). Negative means not reported.
	FillerCount int
}

// Refiner augments the deterministic metrics with a model-assisted
// grammar/filler analysis. It is strictly additive: any failure leaves the
// deterministic metrics untouched.
type Refiner struct {
	provider llm.Provider
	timeout  time.Duration
}

// NewRefiner creates a Refiner backed by provider.
func NewRefiner(provider llm.Provider) *Refiner {
	return &Refiner{provider: provider, timeout: refineTimeout}
}

// refineResponse is the expected JSON structure from the model.
type refineResponse struct {
	GrammarErrors []string `json:"grammar_errors"`
	FillerCount   *int     `json:"filler_count"`
}

// Analyze sends text to the model and parses its analysis. The call is
// bounded by the refiner's timeout regardless of ctx.
func (r *Refiner) Analyze(ctx context.Context, text string) (Refinement, error) {
	if strings.TrimSpace(text) == "" {
		return Refinement{FillerCount: -1}, nil
	}
	if len(text) > refineMaxInput {
		text = text[:refineMaxInput]
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: refineSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: text}},
		MaxTokens:    200,
		JSONResponse: true,
	})
	if err != nil {
		return Refinement{}, fmt.Errorf("refine: complete: %w", err)
	}

	var parsed refineResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return Refinement{}, fmt.Errorf("refine: parse response: %w", err)
	}

	out := Refinement{GrammarErrors: parsed.GrammarErrors, FillerCount: -1}
	if parsed.FillerCount != nil && *parsed.FillerCount >= 0 {
		out.FillerCount = *parsed.FillerCount
	}
	return out, nil
}
