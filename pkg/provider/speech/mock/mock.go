// Package mock provides test doubles for the speech package interfaces.
//
// Use Provider to verify Connect calls and hand out controlled sessions. Use
// Session to drive the event stream and inspect which methods the session
// orchestrator invoked.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
//	sess.Emit(speech.UserTranscript{Text: "hello"})
package mock

import (
	"context"
	"sync"

	"github.com/parlando-ai/parlando/pkg/provider/speech"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg speech.SessionConfig
}

// Provider is a mock implementation of speech.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the handle returned by Connect. If nil, Connect returns a
	// new default Session.
	Session speech.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall
}

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg speech.SessionConfig) (speech.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Name returns ProviderName, or "mock" when unset.
func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// Calls returns a copy of the recorded Connect calls. Thread-safe.
func (p *Provider) Calls() []ConnectCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConnectCall, len(p.ConnectCalls))
	copy(out, p.ConnectCalls)
	return out
}

var _ speech.Provider = (*Provider)(nil)

// Session is a mock implementation of speech.SessionHandle. Use Emit to feed
// events to the consumer and CloseEvents to signal end-of-session.
type Session struct {
	mu sync.Mutex

	events chan speech.Event
	closed bool

	// ErrVal is returned by Err.
	ErrVal error

	// --- Configurable errors ---

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// UpdateInstructionsErr, if non-nil, is returned by every
	// UpdateInstructions call.
	UpdateInstructionsErr error

	// InjectTextErr, if non-nil, is returned by every InjectText call.
	InjectTextErr error

	// InterruptErr, if non-nil, is returned by every Interrupt call.
	InterruptErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// SentAudio records a copy of every chunk passed to SendAudio.
	SentAudio [][]byte

	// InstructionUpdates records every string passed to UpdateInstructions.
	InstructionUpdates []string

	// InjectedText records every (role, text) pair passed to InjectText.
	InjectedText [][2]string

	// InterruptCallCount is the number of times Interrupt was called.
	InterruptCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession creates a Session with a buffered event channel.
func NewSession() *Session {
	return &Session{events: make(chan speech.Event, 64)}
}

// Emit delivers an event to the consumer. Panics if the event channel was
// already closed — mirroring a real provider writing after teardown.
func (s *Session) Emit(e speech.Event) {
	s.events <- e
}

// CloseEvents closes the event channel, signalling end-of-session to the
// consumer without going through Close.
func (s *Session) CloseEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// SendAudio records the chunk and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SentAudio = append(s.SentAudio, cp)
	return s.SendAudioErr
}

// Audio returns a copy of the recorded audio chunks. Thread-safe.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.SentAudio))
	copy(out, s.SentAudio)
	return out
}

// Events returns the session's event channel.
func (s *Session) Events() <-chan speech.Event { return s.events }

// UpdateInstructions records the call and returns UpdateInstructionsErr.
func (s *Session) UpdateInstructions(instructions string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InstructionUpdates = append(s.InstructionUpdates, instructions)
	return s.UpdateInstructionsErr
}

// Instructions returns a copy of the recorded instruction updates. Thread-safe.
func (s *Session) Instructions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.InstructionUpdates))
	copy(out, s.InstructionUpdates)
	return out
}

// InjectText records the call and returns InjectTextErr.
func (s *Session) InjectText(role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InjectedText = append(s.InjectedText, [2]string{role, text})
	return s.InjectTextErr
}

// Interrupt records the call and returns InterruptErr.
func (s *Session) Interrupt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InterruptCallCount++
	return s.InterruptErr
}

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// Close records the call, closes the event channel, and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return s.CloseErr
}

var _ speech.SessionHandle = (*Session)(nil)
