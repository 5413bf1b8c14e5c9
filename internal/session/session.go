// Package session holds the conversation session model shared by the
// assessment, strategy, and transport layers.
//
// A [Session] is the ordered record of one practice conversation: who said
// what, when, and at which estimated skill level. The assessment subsystem
// consumes sessions strictly read-only through [Session.UserTextJoined],
// [Session.DurationSeconds], and [Session.Utterances]; only the session
// owner (the app layer) appends utterances or changes status.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status tracks the lifecycle of a [Session].
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// IsValid reports whether s is a recognised session status.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusActive, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Role identifies the speaker of an [Utterance].
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Utterance is one turn of transcribed speech attributed to a speaker.
type Utterance struct {
	// Role is the speaker: [RoleUser] for the learner, [RoleAssistant] for
	// the conversation partner.
	Role Role `json:"role"`

	// Text is the transcribed content of the turn.
	Text string `json:"text"`

	// Timestamp records when the utterance was finalised.
	Timestamp time.Time `json:"timestamp"`

	// Duration is how long the speaker spoke, when known. Zero means the
	// transport did not report a duration.
	Duration time.Duration `json:"duration,omitempty"`
}

// Session is the record of a single practice conversation.
//
// All exported methods are safe for concurrent use: the transport layer
// appends utterances from its receive goroutine while the scoring ticker
// reads the accumulated text.
type Session struct {
	// ID is the unique session identifier, assigned at creation.
	ID string

	mu         sync.RWMutex
	status     Status
	startedAt  time.Time
	endedAt    time.Time
	utterances []Utterance
	level      SkillLevel
}

// New creates a session in the [StatusCreated] state with a fresh UUID and
// the neutral [LevelIntermediate] prior.
func New() *Session {
	return &Session{
		ID:        uuid.NewString(),
		status:    StatusCreated,
		startedAt: time.Now(),
		level:     LevelIntermediate,
	}
}

// Start transitions the session to [StatusActive] and stamps the start time.
// Calling Start on an already-active session is an error.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusActive {
		return fmt.Errorf("session %s: already active", s.ID)
	}
	s.status = StatusActive
	s.startedAt = time.Now()
	return nil
}

// End transitions the session to [StatusCompleted] and freezes its duration.
// Ending an already-ended session is a no-op.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusCompleted {
		return
	}
	s.status = StatusCompleted
	s.endedAt = time.Now()
}

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// StartedAt returns when the session started.
func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

// EndedAt returns when the session ended, or the zero time while it is
// still running.
func (s *Session) EndedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endedAt
}

// AddUtterance appends a turn to the transcript. Empty text is recorded as-is;
// the assessment layer decides what to do with it.
func (s *Session) AddUtterance(role Role, text string, duration time.Duration) Utterance {
	u := Utterance{
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
		Duration:  duration,
	}
	s.mu.Lock()
	s.utterances = append(s.utterances, u)
	s.mu.Unlock()
	return u
}

// Utterances returns a copy of the full ordered transcript.
func (s *Session) Utterances() []Utterance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Utterance, len(s.utterances))
	copy(out, s.utterances)
	return out
}

// UserUtteranceCount returns the number of learner turns recorded so far.
func (s *Session) UserUtteranceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.utterances {
		if u.Role == RoleUser {
			n++
		}
	}
	return n
}

// UserTextJoined returns all learner turns concatenated with single spaces,
// the input shape expected by the linguistic metrics engine.
func (s *Session) UserTextJoined() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var b strings.Builder
	for _, u := range s.utterances {
		if u.Role != RoleUser || u.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(u.Text)
	}
	return b.String()
}

// DurationSeconds returns the elapsed session time in seconds. For a live
// session this grows with wall-clock time; once ended it is fixed.
func (s *Session) DurationSeconds() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.endedAt.IsZero() {
		return time.Since(s.startedAt).Seconds()
	}
	return s.endedAt.Sub(s.startedAt).Seconds()
}

// Level returns the session's current estimated skill level.
func (s *Session) Level() SkillLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.level
}

// SetLevel records a new estimated skill level for the session.
func (s *Session) SetLevel(l SkillLevel) {
	s.mu.Lock()
	s.level = l
	s.mu.Unlock()
}
