// Package history persists final session scores so learners can track
// improvement across sessions. Two implementations exist: a JSON-lines
// file store for single-machine deployments and a PostgreSQL store for
// anything shared.
package history

import (
	"context"
	"time"

	"github.com/parlando-ai/parlando/internal/assess"
)

// Record is one completed session's final assessment.
type Record struct {
	SessionID       string                 `json:"session_id"`
	UserID          string                 `json:"user_id,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	DurationSeconds float64                `json:"duration_seconds,omitempty"`
	Components      assess.ComponentScores `json:"scores"`
	Overall         float64                `json:"overall"`
	TOEICEstimate   int                    `json:"toeic_estimate"`
	IELTSEstimate   float64                `json:"ielts_estimate"`
}

// Store persists and retrieves session score records.
type Store interface {
	// Append writes one completed session's record.
	Append(ctx context.Context, rec Record) error

	// List returns records for userID ordered oldest first. An empty
	// userID returns all records. limit > 0 caps the result at the most
	// recent limit records (still ordered oldest first).
	List(ctx context.Context, userID string, limit int) ([]Record, error)
}
