// Package llm defines the Provider interface for text-completion backends.
//
// Parlando uses completion models in exactly one place on the assessment
// path: the periodic oracle evaluation that judges comprehension, coherence,
// and pronunciation from a conversation transcript. The interface is kept
// deliberately narrow — a single blocking Complete call — because the
// evaluator runs in the background on a seconds-scale latency budget and
// never streams output to a user.
//
// Implementations must be safe for concurrent use and must honour context
// cancellation promptly.
package llm

import "context"

// Message is a single turn in a completion conversation.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting returned by the backend. Counts are in the
// model's native token unit and may differ between providers for the same
// text.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// Messages must be non-empty; a zero-value request is invalid.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation. Providers that have no dedicated system slot prepend it
	// as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation history.
	Messages []Message

	// Temperature controls output randomness in [0.0, 2.0]. Zero means use
	// the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int

	// JSONResponse requests structured JSON output from providers that
	// support a JSON response format. Providers without native support
	// ignore the flag; callers must still instruct the model via the prompt
	// and validate the parsed result.
	JSONResponse bool
}

// CompletionResponse is the full, non-streamed model reply.
type CompletionResponse struct {
	// Content is the text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any completion backend.
//
// Implementations must be safe for concurrent use. Complete returns an error
// for transport failures, cancelled contexts, and malformed backend replies;
// callers on the assessment path are expected to degrade gracefully rather
// than propagate these errors.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Name returns a short identifier for the backing service ("openai",
	// "anyllm/ollama", "mock") used in logs and metrics attributes.
	Name() string
}
