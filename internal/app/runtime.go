package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/parlando-ai/parlando/internal/assess"
	"github.com/parlando-ai/parlando/internal/observe"
	"github.com/parlando-ai/parlando/internal/session"
	"github.com/parlando-ai/parlando/internal/strategy"
	"github.com/parlando-ai/parlando/pkg/provider/speech"
)

// updateBuffer is the outbound stream capacity per session. A consumer
// that falls further behind than this loses updates rather than stalling
// the audio pipeline.
const updateBuffer = 256

// Runtime is one live practice session: the speech transport, the scoring
// ticker, and the outbound update stream, supervised together. A Runtime
// is created by [Manager.StartSession] and torn down by
// [Manager.EndSession].
type Runtime struct {
	sess    *session.Session
	userID  string
	handle  speech.SessionHandle
	scorer  *assess.HybridScorer
	strat   *strategy.Strategy
	metrics *observe.Metrics

	scoreInterval time.Duration
	updates       chan Update
	cancel        context.CancelFunc
	done          chan struct{}
	stopOnce      sync.Once
}

// ID returns the session identifier.
func (r *Runtime) ID() string {
	return r.sess.ID
}

// Session returns the underlying session record.
func (r *Runtime) Session() *session.Session {
	return r.sess
}

// Updates returns the outbound stream. It is closed when the runtime
// stops; a slow consumer loses updates instead of blocking the session.
func (r *Runtime) Updates() <-chan Update {
	return r.updates
}

// SendAudio forwards one chunk of the learner's microphone audio (PCM16)
// to the speech provider.
func (r *Runtime) SendAudio(pcm []byte) error {
	return r.handle.SendAudio(pcm)
}

// run supervises the two session loops until either fails or the session
// context is cancelled, then closes the update stream.
func (r *Runtime) run(ctx context.Context) {
	defer close(r.done)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.consumeEvents(ctx) })
	g.Go(func() error { return r.scoreLoop(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("session runtime stopped", "session_id", r.sess.ID, "err", err)
		r.push(StateUpdate{Type: "session_state", Status: "error", SessionID: r.sess.ID})
	}
	close(r.updates)
}

// stop cancels the loops, closes the transport, and waits for run to
// finish. Safe to call more than once.
func (r *Runtime) stop() {
	r.stopOnce.Do(func() {
		r.cancel()
		if err := r.handle.Close(); err != nil {
			slog.Warn("speech session close", "session_id", r.sess.ID, "err", err)
		}
		<-r.done
	})
}

// consumeEvents drains the speech transport, appending transcripts to the
// session and translating everything else into client updates.
func (r *Runtime) consumeEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-r.handle.Events():
			if !ok {
				if err := r.handle.Err(); err != nil {
					return fmt.Errorf("app: speech transport: %w", err)
				}
				return nil
			}
			r.handleEvent(e)
		}
	}
}

func (r *Runtime) handleEvent(e speech.Event) {
	switch e := e.(type) {
	case speech.UserTranscript:
		r.sess.AddUtterance(session.RoleUser, e.Text, 0)
		r.push(TranscriptUpdate{Type: "transcript", Role: string(session.RoleUser), Text: e.Text})
	case speech.AssistantTranscript:
		r.sess.AddUtterance(session.RoleAssistant, e.Text, 0)
		r.push(TranscriptUpdate{Type: "transcript", Role: string(session.RoleAssistant), Text: e.Text})
	case speech.AudioDelta:
		r.push(AudioChunk{Type: "audio", Audio: e.PCM})
	case speech.ResponseStarted:
		r.push(AISpeaking{Type: "ai_speaking", Speaking: true})
	case speech.ResponseDone:
		r.push(AISpeaking{Type: "ai_speaking", Speaking: false})
	case speech.SpeechStarted:
		// Barge-in: the client flushes any buffered playback.
		r.push(Notice{Type: "speech_started"})
	case speech.Reconnected:
		r.push(Notice{Type: "reconnected"})
	case speech.SessionError:
		slog.Warn("speech provider error", "session_id", r.sess.ID,
			"code", e.Code, "message", e.Message)
	case speech.Unknown:
		slog.Debug("unhandled speech event", "session_id", r.sess.ID, "event_type", e.Type)
	}
}

// scoreLoop drives the periodic assessment cycle.
func (r *Runtime) scoreLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.scoreInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.scoreOnce(ctx)
		}
	}
}

// scoreOnce runs one assessment cycle: recompute scores, feed the
// adaptation strategy, and publish the snapshot. Quiet sessions (no user
// speech yet) are skipped.
func (r *Runtime) scoreOnce(ctx context.Context) {
	if r.sess.UserUtteranceCount() == 0 {
		return
	}

	start := time.Now()
	result := r.scorer.Update(ctx, r.sess)
	r.metrics.AssessmentDuration.Record(ctx, time.Since(start).Seconds())
	r.metrics.OverallScores.Record(ctx, result.OverallScore)

	r.strat.UpdateScore(result.OverallScore)
	r.push(scoreUpdateFrom(result))
}

// push delivers an update without ever blocking the session loops.
func (r *Runtime) push(u Update) {
	select {
	case r.updates <- u:
	default:
		slog.Warn("dropping update for slow consumer",
			"session_id", r.sess.ID, "update", fmt.Sprintf("%T", u))
	}
}
