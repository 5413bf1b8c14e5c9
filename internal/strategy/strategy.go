// Package strategy decides when the conversation partner's difficulty
// changes. It consumes the overall assessment score, derives a candidate
// skill level, and commits a transition only after the candidate survives
// hysteresis and the post-change cooldown, so a noisy score stream turns
// into a stable difficulty ladder instead of a flickering one.
package strategy

import (
	"log/slog"
	"sync"
	"time"

	"github.com/parlando-ai/parlando/internal/profile"
	"github.com/parlando-ai/parlando/internal/session"
)

// Callback receives a committed level transition (or the one-time initial
// prompt refresh) together with the freshly built system prompt. Callbacks
// are fire-and-forget: a returned error is logged, a panic is recovered,
// and neither aborts the scoring cycle.
type Callback func(level session.SkillLevel, prompt string) error

// Config tunes the transition damping. Zero-value fields get defaults.
type Config struct {
	// HysteresisCount is how many consecutive identical candidate levels
	// are required before a transition commits. Default: 2.
	HysteresisCount int

	// Cooldown is the minimum interval after a committed transition during
	// which all further candidates are suppressed. Default: 60s.
	Cooldown time.Duration

	// RefreshAfterCycles is the scoring cycle on which the one-time prompt
	// refresh fires, pushing personalisation context to the conversation
	// driver early in the session. Default: 5.
	RefreshAfterCycles int
}

func (c *Config) applyDefaults() {
	if c.HysteresisCount <= 0 {
		c.HysteresisCount = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 60 * time.Second
	}
	if c.RefreshAfterCycles <= 0 {
		c.RefreshAfterCycles = 5
	}
}

// Strategy is the per-session difficulty state machine. All methods are
// safe for concurrent use, though in practice a single scoring loop drives
// UpdateScore.
type Strategy struct {
	cfg Config

	mu           sync.Mutex
	current      session.SkillLevel
	context      string
	learner      *profile.Profile
	pendingLevel session.SkillLevel
	pendingCount int
	lastChangeAt time.Time
	cycles       int
	refreshFired bool
	callbacks    []Callback

	// now is swapped out by tests.
	now func() time.Time
}

// New creates a strategy starting at the neutral intermediate level.
func New(cfg Config) *Strategy {
	cfg.applyDefaults()
	return &Strategy{
		cfg:     cfg,
		current: session.LevelIntermediate,
		now:     time.Now,
	}
}

// CurrentLevel returns the committed level.
func (s *Strategy) CurrentLevel() session.SkillLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CurrentPrompt builds the system prompt for the committed level with the
// current context and learner personalisation.
func (s *Strategy) CurrentPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptLocked()
}

func (s *Strategy) promptLocked() string {
	return BuildPrompt(s.current, s.context, s.learner)
}

// SetContext updates the conversation context folded into future prompts.
func (s *Strategy) SetContext(context string) {
	s.mu.Lock()
	s.context = context
	s.mu.Unlock()
}

// SetLearner attaches the learner profile used for prompt personalisation.
func (s *Strategy) SetLearner(p *profile.Profile) {
	s.mu.Lock()
	s.learner = p
	s.mu.Unlock()
}

// OnLevelChange registers a callback invoked on every committed transition
// and on the one-time initial prompt refresh.
func (s *Strategy) OnLevelChange(cb Callback) {
	s.mu.Lock()
	s.callbacks = append(s.callbacks, cb)
	s.mu.Unlock()
}

// UpdateScore feeds one overall score into the state machine and reports
// whether a level transition committed.
//
// A transition requires the candidate level derived from the score to
// differ from the committed level, to survive the cooldown window, and to
// be suggested on enough consecutive calls to satisfy hysteresis. A
// candidate arriving during cooldown is suppressed before pending-candidate
// tracking, so it neither advances nor resets the hysteresis counter.
func (s *Strategy) UpdateScore(score float64) bool {
	s.mu.Lock()

	s.cycles++
	refresh := !s.refreshFired && s.cycles == s.cfg.RefreshAfterCycles
	if refresh {
		s.refreshFired = true
	}

	candidate := session.LevelFromScore(score)

	changed := false
	switch {
	case candidate == s.current:
		// Stable: drop any pending candidate.
		s.pendingLevel = ""
		s.pendingCount = 0

	case !s.lastChangeAt.IsZero() && s.now().Sub(s.lastChangeAt) < s.cfg.Cooldown:
		slog.Debug("level candidate suppressed by cooldown",
			"candidate", candidate,
			"current", s.current,
		)

	default:
		if candidate == s.pendingLevel {
			s.pendingCount++
		} else {
			s.pendingLevel = candidate
			s.pendingCount = 1
		}
		if s.pendingCount >= s.cfg.HysteresisCount {
			old := s.current
			s.current = candidate
			s.lastChangeAt = s.now()
			s.pendingLevel = ""
			s.pendingCount = 0
			changed = true
			slog.Info("skill level changed",
				"old_level", old,
				"new_level", candidate,
				"score", score,
			)
		}
	}

	var (
		level     session.SkillLevel
		prompt    string
		callbacks []Callback
	)
	notify := changed || refresh
	if notify {
		level = s.current
		prompt = s.promptLocked()
		callbacks = append(callbacks, s.callbacks...)
	}
	s.mu.Unlock()

	for _, cb := range callbacks {
		s.invoke(cb, level, prompt)
	}
	return changed
}

// invoke runs one callback, absorbing errors and panics so a misbehaving
// listener can never abort the scoring cycle.
func (s *Strategy) invoke(cb Callback, level session.SkillLevel, prompt string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("level-change callback panicked", "panic", r)
		}
	}()
	if err := cb(level, prompt); err != nil {
		slog.Error("level-change callback failed", "err", err)
	}
}
