// Package speech defines the Provider interface for speech-to-speech backends.
//
// A speech provider wraps a real-time voice service that accepts raw audio
// from the learner and returns synthesised audio plus transcripts in a
// single, stateful session. The separate STT → LLM → TTS pipeline is bypassed
// entirely; the assessment layer consumes the transcript stream and steers
// the conversation by updating the session's instructions mid-flight.
//
// Server events are modelled as a closed set of variant types implementing
// [Event]. Consumers switch on the concrete type; anything the provider does
// not recognise is delivered as [Unknown] so new upstream event kinds never
// break the receive loop.
//
// All implementations must be safe for concurrent use.
package speech

import (
	"context"
	"encoding/json"
)

// Event is a server event received on an open session. It is a sealed
// variant: the concrete types below are the only implementations.
type Event interface {
	isEvent()
}

// AudioDelta carries a chunk of synthesised PCM16 audio from the model.
type AudioDelta struct {
	PCM []byte
}

// ResponseStarted signals that the model has begun generating a spoken
// response.
type ResponseStarted struct{}

// ResponseDone signals that the model has finished its current response.
type ResponseDone struct{}

// SpeechStarted signals that the provider's voice activity detection heard
// the learner start speaking. Consumers typically flush buffered model audio
// (barge-in).
type SpeechStarted struct{}

// UserTranscript is the completed transcription of one learner utterance.
type UserTranscript struct {
	Text string
}

// AssistantTranscript is the completed transcript of one model response.
type AssistantTranscript struct {
	Text string
}

// Reconnected signals that the session recovered from a transient connection
// loss. Accumulated server-side context survives on a best-effort basis.
type Reconnected struct{}

// SessionError is a non-fatal error event reported by the provider.
type SessionError struct {
	Code    string
	Message string
}

// Unknown wraps any server event the provider implementation does not map to
// a typed variant. Raw holds the full JSON payload.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (AudioDelta) isEvent()          {}
func (ResponseStarted) isEvent()     {}
func (ResponseDone) isEvent()        {}
func (SpeechStarted) isEvent()       {}
func (UserTranscript) isEvent()      {}
func (AssistantTranscript) isEvent() {}
func (Reconnected) isEvent()         {}
func (SessionError) isEvent()        {}
func (Unknown) isEvent()             {}

// SessionConfig is the initial configuration for a new speech session.
type SessionConfig struct {
	// Voice selects the provider voice for synthesised output. Empty uses the
	// provider default.
	Voice string

	// Instructions is the system-level prompt controlling the conversation
	// partner's behaviour and difficulty. It can be replaced mid-session via
	// [SessionHandle.UpdateInstructions].
	Instructions string

	// Temperature controls response sampling. Zero uses the provider default.
	Temperature float64

	// VADThreshold tunes voice activity detection sensitivity (0..1). Zero
	// uses the provider default.
	VADThreshold float64

	// VADSilenceMS is how long a pause must last before the provider treats
	// the learner's turn as finished. Zero uses the provider default.
	VADSilenceMS int
}

// SessionHandle represents an open speech session.
//
// Events are channel-based so the caller's audio thread never blocks on
// processing. Consumers must drain [SessionHandle.Events] promptly; a stalled
// consumer backpressures the provider's receive loop.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a raw PCM16 audio chunk for processing. Returns an
	// error if the session is closed or the provider cannot accept the chunk.
	SendAudio(chunk []byte) error

	// Events returns a read-only channel of server events. The channel is
	// closed when the session ends; call [SessionHandle.Err] afterwards to
	// learn whether it ended cleanly.
	Events() <-chan Event

	// UpdateInstructions replaces the system-level instructions, effective
	// for the next model turn. This is how difficulty adaptation reaches the
	// live conversation.
	UpdateInstructions(instructions string) error

	// InjectText inserts a text message into the session's rolling context
	// without waiting for the learner to speak. Role is "system", "user", or
	// "assistant"; unknown roles are coerced to "user".
	InjectText(role, text string) error

	// Interrupt stops the current model response and discards buffered audio.
	Interrupt() error

	// Err returns the error that caused the Events channel to close
	// prematurely, or nil if the session ended cleanly.
	Err() error

	// Close terminates the session and closes the Events channel. Calling
	// Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any speech-to-speech backend.
type Provider interface {
	// Connect establishes a new session with the given configuration. The
	// returned handle is ready to accept audio immediately. The caller owns
	// the handle and is responsible for calling Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Name identifies the provider for logging and health checks.
	Name() string
}
