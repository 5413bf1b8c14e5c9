package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parlando-ai/parlando/internal/analysis"
	"github.com/parlando-ai/parlando/internal/app"
	"github.com/parlando-ai/parlando/internal/history"
)

// defaultHistoryLimit caps /api/history responses when the client does not
// ask for a specific window.
const defaultHistoryLimit = 20

type startSessionRequest struct {
	UserID string `json:"user_id"`
}

type sessionInfo struct {
	SessionID       string    `json:"session_id"`
	Status          string    `json:"status"`
	Level           string    `json:"level"`
	CEFR            string    `json:"cefr"`
	StartedAt       time.Time `json:"started_at"`
	Utterances      int       `json:"utterances"`
	DurationSeconds float64   `json:"duration_seconds"`
}

func infoOf(rt *app.Runtime) sessionInfo {
	sess := rt.Session()
	level := sess.Level()
	return sessionInfo{
		SessionID:       sess.ID,
		Status:          string(sess.Status()),
		Level:           string(level),
		CEFR:            level.CEFR(),
		StartedAt:       sess.StartedAt(),
		Utterances:      len(sess.Utterances()),
		DurationSeconds: sess.DurationSeconds(),
	}
}

// handleStartSession creates a new practice session. The body may carry an
// optional user_id for profile-aware prompting.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rt, err := s.manager.StartSession(r.Context(), req.UserID)
	if err != nil {
		slog.Error("start session", "user_id", req.UserID, "err", err)
		writeError(w, http.StatusBadGateway, "could not start session")
		return
	}
	writeJSON(w, http.StatusCreated, infoOf(rt))
}

// handleListSessions returns every live session.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	runtimes := s.manager.ActiveSessions()
	infos := make([]sessionInfo, 0, len(runtimes))
	for _, rt := range runtimes {
		infos = append(infos, infoOf(rt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": infos})
}

// handleGetSession returns a live session's state, falling back to the
// persisted record for completed sessions.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := uuid.Validate(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id format")
		return
	}

	if rt, ok := s.manager.Get(id); ok {
		writeJSON(w, http.StatusOK, infoOf(rt))
		return
	}

	if s.store != nil {
		recs, err := s.store.List(r.Context(), "", 0)
		if err != nil {
			slog.Error("list history", "err", err)
			writeError(w, http.StatusInternalServerError, "history lookup failed")
			return
		}
		for _, rec := range recs {
			if rec.SessionID == id {
				writeJSON(w, http.StatusOK, rec)
				return
			}
		}
	}
	writeError(w, http.StatusNotFound, "session not found")
}

// handleEndSession stops a live session and returns the final feedback
// report.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := uuid.Validate(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id format")
		return
	}

	summary, err := s.manager.EndSession(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, feedbackFrom(summary))
}

// handleHistory returns past session records plus the score trend, newest
// window first ordered oldest to newest.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "history persistence not configured")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recs, err := s.store.List(r.Context(), r.URL.Query().Get("user_id"), limit)
	if err != nil {
		slog.Error("list history", "err", err)
		writeError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": recs,
		"trend":    analysis.ComputeTrend(recs),
	})
}

// feedbackPayload is the post-session report wire shape shared by the REST
// and WebSocket surfaces.
type feedbackPayload struct {
	Type          string                        `json:"type"`
	Summary       string                        `json:"summary"`
	Strengths     []string                      `json:"strengths"`
	Weaknesses    []string                      `json:"weaknesses"`
	Advice        []string                      `json:"advice"`
	Corrections   []analysis.Correction         `json:"example_corrections"`
	FinalScore    float64                       `json:"final_score"`
	TOEICEstimate int                           `json:"toeic_estimate"`
	IELTSEstimate float64                       `json:"ielts_estimate"`
	Transcript    []analysis.AnnotatedUtterance `json:"transcript"`
}

func feedbackFrom(summary *app.SessionSummary) feedbackPayload {
	return feedbackPayload{
		Type:          "feedback",
		Summary:       summary.Report.Summary,
		Strengths:     summary.Report.Strengths,
		Weaknesses:    summary.Report.Weaknesses,
		Advice:        summary.Report.Advice,
		Corrections:   summary.Report.Corrections,
		FinalScore:    summary.Result.OverallScore,
		TOEICEstimate: summary.Proficiency.TOEIC,
		IELTSEstimate: summary.Proficiency.IELTS,
		Transcript:    summary.Transcript,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
