// Package profile tracks a learner's progress across practice sessions:
// estimated level, cumulative practice time, recurring error patterns, and
// the personalisation hints (interests, weak grammar points) the prompt
// builder folds into conversation instructions.
package profile

import (
	"time"

	"github.com/parlando-ai/parlando/internal/session"
)

// SessionScore is one completed session's outcome kept in the profile's
// rolling history.
type SessionScore struct {
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	OverallScore float64   `json:"overall_score"`
	CEFR         string    `json:"cefr"`
}

// Profile is the persistent record for one learner.
type Profile struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// EstimatedCEFR is the level carried into the next session's opening
	// prompt, updated after each completed session.
	EstimatedCEFR string `json:"estimated_cefr"`

	// SelfReportedLevel is what the learner claimed at signup, kept for
	// comparison against measured results. Empty when never reported.
	SelfReportedLevel string `json:"self_reported_level,omitempty"`

	SessionCount         int     `json:"session_count"`
	TotalPracticeMinutes float64 `json:"total_practice_minutes"`

	ScoreHistory []SessionScore `json:"score_history"`

	// ErrorPatterns counts recurring detected grammar errors by pattern.
	ErrorPatterns map[string]int `json:"error_patterns,omitempty"`

	// WeakGrammarPoints and Interests feed prompt personalisation.
	WeakGrammarPoints []string `json:"weak_grammar_points,omitempty"`
	Interests         []string `json:"interests,omitempty"`
}

// New creates a fresh profile for userID with the neutral B1 prior.
func New(userID string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
		EstimatedCEFR: session.LevelIntermediate.CEFR(),
	}
}

// RecordSession appends a completed session's outcome, bumps the session
// count, and adopts the session's level as the new estimate.
func (p *Profile) RecordSession(sessionID string, overallScore float64, level session.SkillLevel, practiceMinutes float64) {
	p.ScoreHistory = append(p.ScoreHistory, SessionScore{
		SessionID:    sessionID,
		Timestamp:    time.Now().UTC(),
		OverallScore: overallScore,
		CEFR:         level.CEFR(),
	})
	p.SessionCount++
	p.TotalPracticeMinutes += practiceMinutes
	p.EstimatedCEFR = level.CEFR()
}

// RecordErrorPattern increments the occurrence count for a detected
// grammar-error pattern.
func (p *Profile) RecordErrorPattern(pattern string) {
	if p.ErrorPatterns == nil {
		p.ErrorPatterns = make(map[string]int)
	}
	p.ErrorPatterns[pattern]++
}
