// Package openai implements the speech.Provider interface for OpenAI's
// Realtime API.
//
// It holds a bidirectional WebSocket to the Realtime endpoint and exchanges
// JSON events per the Realtime protocol. Audio travels as base64-encoded
// PCM16; learner and model transcripts are surfaced as typed events. The
// receive loop reconnects automatically with exponential backoff on transient
// connection loss, re-sending the session configuration and injecting a
// continuity note so the conversation can resume.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/parlando-ai/parlando/pkg/provider/speech"
)

var _ speech.Provider = (*Provider)(nil)
var _ speech.SessionHandle = (*session)(nil)

const (
	defaultModel   = "gpt-realtime-1.5"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
	defaultVoice   = "alloy"

	// Reconnection backoff. Five attempts with doubling delays, then give up.
	maxReconnectAttempts = 5
)

var backoffDelays = []time.Duration{
	0, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
}

// continuityNote is injected as a system message after a successful
// reconnect so the model acknowledges the gap instead of ignoring it.
const continuityNote = "[Connection was temporarily lost and has been restored. Continuing conversation.]"

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the Realtime model used for sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements speech.Provider for OpenAI's Realtime API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new OpenAI Realtime Provider with the given API key and options.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name identifies this provider.
func (p *Provider) Name() string { return "openai-realtime" }

// Connect establishes a new Realtime session with the given configuration.
// The returned handle is ready to accept audio once the session.update
// message has been sent.
func (p *Provider) Connect(ctx context.Context, cfg speech.SessionConfig) (speech.SessionHandle, error) {
	conn, err := p.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai: dial: %w", err)
	}

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		provider: p,
		conn:     conn,
		events:   make(chan speech.Event, 64),
		cfg:      cfg,
		ctx:      sessCtx,
		cancel:   sessCancel,
	}

	if err := sess.sendSessionUpdate(cfg.Instructions); err != nil {
		sessCancel()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("openai: session update: %w", err)
	}

	go sess.receiveLoop()

	return sess, nil
}

// dial opens the WebSocket connection with Realtime auth headers.
func (p *Provider) dial(ctx context.Context) (*websocket.Conn, error) {
	wsURL := fmt.Sprintf("%s?model=%s", p.baseURL, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + p.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	return conn, err
}

// ── Protocol message types (outgoing) ─────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	Modalities        []string           `json:"modalities"`
	Voice             string             `json:"voice,omitempty"`
	Instructions      string             `json:"instructions,omitempty"`
	InputAudioFormat  string             `json:"input_audio_format"`
	OutputAudioFormat string             `json:"output_audio_format"`
	Transcription     transcriptionCfg   `json:"input_audio_transcription"`
	TurnDetection     turnDetectionCfg   `json:"turn_detection"`
	Temperature       float64            `json:"temperature,omitempty"`
}

type transcriptionCfg struct {
	Model string `json:"model"`
}

type turnDetectionCfg struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMS   int     `json:"prefix_padding_ms"`
	SilenceDurationMS int     `json:"silence_duration_ms"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

type createConversationItemMessage struct {
	Type string           `json:"type"`
	Item conversationItem `json:"item"`
}

type conversationItem struct {
	Type    string             `json:"type"`
	Role    string             `json:"role,omitempty"`
	Content []conversationPart `json:"content,omitempty"`
}

type conversationPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ── Protocol message types (incoming) ─────────────────────────────────────────

// serverErrorDetail is the nested error object in a Realtime error event.
type serverErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type serverEvent struct {
	Type string `json:"type"`

	// response.audio.delta
	Delta string `json:"delta,omitempty"`

	// response.audio_transcript.done / conversation.item.input_audio_transcription.completed
	Transcript string `json:"transcript,omitempty"`

	// error event
	Error *serverErrorDetail `json:"error,omitempty"`
}

// ── session ────────────────────────────────────────────────────────────────────

type session struct {
	provider *Provider
	events   chan speech.Event
	cfg      speech.SessionConfig

	mu           sync.Mutex
	conn         *websocket.Conn
	instructions string
	errVal       error
	closed       bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// sendSessionUpdate sends a session.update event carrying voice,
// instructions, transcription, and VAD configuration.
func (s *session) sendSessionUpdate(instructions string) error {
	s.mu.Lock()
	s.instructions = instructions
	s.mu.Unlock()

	params := sessionParams{
		Modalities:        []string{"text", "audio"},
		Voice:             s.cfg.Voice,
		Instructions:      instructions,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		Transcription:     transcriptionCfg{Model: "whisper-1"},
		TurnDetection: turnDetectionCfg{
			Type:              "server_vad",
			Threshold:         0.3,
			PrefixPaddingMS:   500,
			SilenceDurationMS: 1000,
		},
		Temperature: s.cfg.Temperature,
	}
	if params.Voice == "" {
		params.Voice = defaultVoice
	}
	if s.cfg.VADThreshold > 0 {
		params.TurnDetection.Threshold = s.cfg.VADThreshold
	}
	if s.cfg.VADSilenceMS > 0 {
		params.TurnDetection.SilenceDurationMS = s.cfg.VADSilenceMS
	}
	return s.writeJSON(sessionUpdateMessage{Type: "session.update", Session: params})
}

// writeJSON marshals v and writes it as a text WebSocket message.
func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("openai: marshal: %w", err)
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn.Write(s.ctx, websocket.MessageText, data)
}

// receiveLoop reads events from the WebSocket, dispatches them, and
// reconnects with backoff on transient connection loss. It owns the events
// channel and closes it on exit.
func (s *session) receiveLoop() {
	defer s.closeChannel()

	attempts := 0
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		_, data, err := conn.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if attempts >= maxReconnectAttempts {
				s.setErr(fmt.Errorf("openai: reconnect failed after %d attempts: %w", attempts, err))
				return
			}
			if reconnErr := s.reconnect(attempts); reconnErr != nil {
				attempts++
				continue
			}
			attempts = 0
			s.emit(speech.Reconnected{})
			continue
		}

		var evt serverEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			continue
		}
		s.dispatch(&evt, data)
	}
}

// reconnect sleeps out the backoff delay, re-dials, and re-sends the session
// configuration plus a continuity note.
func (s *session) reconnect(attempt int) error {
	delay := backoffDelays[attempt]
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}

	conn, err := s.provider.dial(s.ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	instructions := s.instructions
	s.mu.Unlock()

	if err := s.sendSessionUpdate(instructions); err != nil {
		return err
	}
	return s.InjectText("system", continuityNote)
}

// dispatch maps one server event to a typed variant on the events channel.
func (s *session) dispatch(evt *serverEvent, raw []byte) {
	switch evt.Type {
	case "response.audio.delta":
		if evt.Delta == "" {
			return
		}
		pcm, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil || len(pcm) == 0 {
			return
		}
		s.emit(speech.AudioDelta{PCM: pcm})

	case "response.created":
		s.emit(speech.ResponseStarted{})

	case "response.done":
		s.emit(speech.ResponseDone{})

	case "input_audio_buffer.speech_started":
		s.emit(speech.SpeechStarted{})

	case "conversation.item.input_audio_transcription.completed":
		if evt.Transcript == "" {
			return
		}
		s.emit(speech.UserTranscript{Text: evt.Transcript})

	case "response.audio_transcript.done":
		if evt.Transcript == "" {
			return
		}
		s.emit(speech.AssistantTranscript{Text: evt.Transcript})

	case "error":
		se := speech.SessionError{Message: "unknown error"}
		if evt.Error != nil {
			se.Code = evt.Error.Code
			if evt.Error.Message != "" {
				se.Message = evt.Error.Message
			}
		}
		s.emit(se)

	default:
		s.emit(speech.Unknown{Type: evt.Type, Raw: json.RawMessage(raw)})
	}
}

// emit delivers an event unless the session context is done.
func (s *session) emit(e speech.Event) {
	select {
	case s.events <- e:
	case <-s.ctx.Done():
	}
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errVal == nil {
		s.errVal = err
	}
}

func (s *session) closeChannel() {
	s.closeOnce.Do(func() { close(s.events) })
}

// ── SessionHandle methods ──────────────────────────────────────────────────────

// SendAudio delivers a raw PCM16 audio chunk to the model.
func (s *session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("openai: session closed")
	}
	s.mu.Unlock()

	return s.writeJSON(appendAudioMessage{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(chunk),
	})
}

// Events returns the channel on which server events arrive.
func (s *session) Events() <-chan speech.Event { return s.events }

// Err returns the first non-nil error that caused the session to terminate.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errVal
}

// UpdateInstructions replaces the system instructions by sending a full
// session.update event. The new instructions are also retained for
// reconnection.
func (s *session) UpdateInstructions(instructions string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("openai: session closed")
	}
	s.mu.Unlock()

	return s.sendSessionUpdate(instructions)
}

// InjectText inserts a text message as a conversation.item.create event.
func (s *session) InjectText(role, text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("openai: session closed")
	}
	s.mu.Unlock()

	// Realtime supports "user", "assistant", and "system" item roles.
	switch role {
	case "assistant", "system":
	default:
		role = "user"
	}

	// Assistant messages use "text" content parts, everything else "input_text".
	partType := "input_text"
	if role == "assistant" {
		partType = "text"
	}

	return s.writeJSON(createConversationItemMessage{
		Type: "conversation.item.create",
		Item: conversationItem{
			Type: "message",
			Role: role,
			Content: []conversationPart{
				{Type: partType, Text: text},
			},
		},
	})
}

// Interrupt sends a response.cancel event to stop the current model response.
func (s *session) Interrupt() error {
	return s.writeJSON(map[string]string{"type": "response.cancel"})
}

// Close terminates the session and releases all resources. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	conn.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
