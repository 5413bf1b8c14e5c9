// Package app wires the session pipeline together: it owns the lifecycle
// of live practice sessions, connecting the speech transport, the hybrid
// scorer, the difficulty strategy, and the persistence layers, and exposes
// each running session as a [Runtime] the API layer streams from.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parlando-ai/parlando/internal/analysis"
	"github.com/parlando-ai/parlando/internal/assess"
	"github.com/parlando-ai/parlando/internal/config"
	"github.com/parlando-ai/parlando/internal/history"
	"github.com/parlando-ai/parlando/internal/observe"
	"github.com/parlando-ai/parlando/internal/profile"
	"github.com/parlando-ai/parlando/internal/resilience"
	"github.com/parlando-ai/parlando/internal/session"
	"github.com/parlando-ai/parlando/internal/strategy"
	"github.com/parlando-ai/parlando/pkg/provider/llm"
	"github.com/parlando-ai/parlando/pkg/provider/speech"
)

// defaultScoreInterval is the assessment cadence when the config leaves
// score_update_seconds unset.
const defaultScoreInterval = 15 * time.Second

// Manager owns every live practice session. All exported methods are safe
// for concurrent use.
type Manager struct {
	cfg      *config.Config
	speech   speech.Provider
	oracle   llm.Provider
	refiner  llm.Provider
	feedback *analysis.FeedbackGenerator
	store    history.Store
	profiles *profile.Store
	metrics  *observe.Metrics

	mu     sync.Mutex
	active map[string]*Runtime
}

// ManagerConfig holds all dependencies for a [Manager]. Speech and Config
// are required; everything else may be nil, degrading the corresponding
// feature (no oracle blending, no refinement, no persistence).
type ManagerConfig struct {
	Config   *config.Config
	Speech   speech.Provider
	Oracle   llm.Provider
	Refiner  llm.Provider
	History  history.Store
	Profiles *profile.Store
	Metrics  *observe.Metrics
}

// NewManager creates a Manager with the given dependencies.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		cfg:      cfg.Config,
		speech:   cfg.Speech,
		oracle:   cfg.Oracle,
		refiner:  cfg.Refiner,
		store:    cfg.History,
		profiles: cfg.Profiles,
		metrics:  cfg.Metrics,
		active:   make(map[string]*Runtime),
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	// When both models are configured, the oracle path fails over to the
	// refiner's backend (both behind circuit breakers) so assessment keeps
	// working through a primary outage.
	if cfg.Oracle != nil && cfg.Refiner != nil {
		m.oracle = newFallbackProvider(cfg.Oracle, cfg.Refiner)
	}
	// The oracle provider doubles as the feedback model; Generate falls
	// back to a locally derived report when it is nil or failing.
	m.feedback = analysis.NewFeedbackGenerator(m.oracle)
	return m
}

// StartSession begins a new practice session for userID (which may be
// empty for anonymous practice). It connects to the speech provider with
// the strategy's opening prompt and starts the session loops.
func (m *Manager) StartSession(ctx context.Context, userID string) (*Runtime, error) {
	sess := session.New()
	if err := sess.Start(); err != nil {
		return nil, fmt.Errorf("app: start session: %w", err)
	}

	strat := strategy.New(strategy.Config{
		HysteresisCount:    m.cfg.Strategy.HysteresisCount,
		Cooldown:           time.Duration(m.cfg.Strategy.CooldownSeconds) * time.Second,
		RefreshAfterCycles: m.cfg.Strategy.RefreshAfterCycles,
	})
	if m.profiles != nil && userID != "" {
		prof, err := m.profiles.Load(userID)
		if err != nil {
			slog.Warn("load learner profile", "user_id", userID, "err", err)
		} else {
			strat.SetLearner(prof)
		}
	}

	handle, err := m.speech.Connect(ctx, speech.SessionConfig{
		Voice:        m.speechVoice(),
		Instructions: strat.CurrentPrompt(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: connect speech provider: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		sess:          sess,
		userID:        userID,
		handle:        handle,
		scorer:        m.buildScorer(),
		strat:         strat,
		metrics:       m.metrics,
		scoreInterval: m.scoreInterval(),
		updates:       make(chan Update, updateBuffer),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	strat.OnLevelChange(m.levelChangeCallback(rt))

	m.mu.Lock()
	m.active[sess.ID] = rt
	m.mu.Unlock()
	m.metrics.ActiveSessions.Add(ctx, 1)

	go rt.run(runCtx)

	slog.Info("practice session started",
		"session_id", sess.ID,
		"user_id", userID,
		"level", strat.CurrentLevel(),
		"speech_provider", m.speech.Name(),
	)
	return rt, nil
}

// levelChangeCallback builds the strategy callback for one runtime: it
// retargets the conversation partner's instructions and notifies the
// client. The strategy also fires this for a same-level prompt refresh;
// that case only updates the instructions, with no client notification.
func (m *Manager) levelChangeCallback(rt *Runtime) strategy.Callback {
	return func(level session.SkillLevel, prompt string) error {
		previous := rt.sess.Level()
		if err := rt.handle.UpdateInstructions(prompt); err != nil {
			return fmt.Errorf("update instructions: %w", err)
		}
		rt.sess.SetLevel(level)
		if level != previous {
			m.metrics.RecordLevelTransition(context.Background(), string(previous), string(level))
			rt.push(LevelChange{Type: "level_change", Level: string(level), CEFR: level.CEFR()})
			slog.Info("difficulty adapted", "session_id", rt.sess.ID,
				"from", previous, "to", level)
		}
		return nil
	}
}

// Get returns the runtime for sessionID, if it is still active.
func (m *Manager) Get(sessionID string) (*Runtime, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.active[sessionID]
	return rt, ok
}

// ActiveSessions returns the runtimes of every live session.
func (m *Manager) ActiveSessions() []*Runtime {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Runtime, 0, len(m.active))
	for _, rt := range m.active {
		out = append(out, rt)
	}
	return out
}

// SessionSummary is the final outcome of a completed session: the closing
// assessment, the learner-facing report, and the annotated transcript.
type SessionSummary struct {
	SessionID   string
	Result      assess.AssessmentResult
	Proficiency assess.ProficiencyEstimate
	Report      analysis.Report
	Transcript  []analysis.AnnotatedUtterance
}

// EndSession stops the session, produces the final report, and persists
// the outcome. Persistence failures are logged, not returned; the learner
// still gets their feedback.
func (m *Manager) EndSession(ctx context.Context, sessionID string) (*SessionSummary, error) {
	m.mu.Lock()
	rt, ok := m.active[sessionID]
	delete(m.active, sessionID)
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("app: no active session %q", sessionID)
	}

	rt.stop()
	rt.sess.End()
	m.metrics.ActiveSessions.Add(ctx, -1)

	result, scored := rt.scorer.LatestResult()
	if !scored {
		if rt.sess.UserUtteranceCount() > 0 {
			result = rt.scorer.Update(ctx, rt.sess)
		} else {
			// The learner never spoke; report the neutral prior.
			result = assess.NewAssessmentResult(assess.NewComponentScores(), assess.SourceRuleBased)
		}
	}
	estimate := assess.EstimateProficiency(result.OverallScore)

	utterances := rt.sess.Utterances()
	report := m.feedback.Generate(ctx, utterances, result)
	transcript := analysis.HighlightTranscript(utterances)

	m.persist(ctx, rt, result, estimate)

	slog.Info("practice session ended",
		"session_id", sessionID,
		"user_id", rt.userID,
		"overall", result.OverallScore,
		"level", rt.sess.Level(),
		"utterances", len(utterances),
	)
	return &SessionSummary{
		SessionID:   sessionID,
		Result:      result,
		Proficiency: estimate,
		Report:      report,
		Transcript:  transcript,
	}, nil
}

// Shutdown ends every active session, persisting each outcome.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, rt := range m.ActiveSessions() {
		if _, err := m.EndSession(ctx, rt.ID()); err != nil {
			slog.Warn("shutdown: end session", "session_id", rt.ID(), "err", err)
		}
	}
}

// persist appends the history record and folds the outcome into the
// learner's profile.
func (m *Manager) persist(ctx context.Context, rt *Runtime, result assess.AssessmentResult, estimate assess.ProficiencyEstimate) {
	if m.store != nil {
		rec := history.Record{
			SessionID:       rt.sess.ID,
			UserID:          rt.userID,
			Timestamp:       time.Now().UTC(),
			DurationSeconds: rt.sess.DurationSeconds(),
			Components:      result.Components,
			Overall:         result.OverallScore,
			TOEICEstimate:   estimate.TOEIC,
			IELTSEstimate:   estimate.IELTS,
		}
		if err := m.store.Append(ctx, rec); err != nil {
			slog.Warn("persist session record", "session_id", rt.sess.ID, "err", err)
		}
	}

	if m.profiles == nil || rt.userID == "" {
		return
	}
	prof, err := m.profiles.Load(rt.userID)
	if err != nil {
		slog.Warn("load profile for update", "user_id", rt.userID, "err", err)
		return
	}
	prof.RecordSession(rt.sess.ID, result.OverallScore, rt.sess.Level(), rt.sess.DurationSeconds()/60)
	if err := m.profiles.Save(prof); err != nil {
		slog.Warn("save profile", "user_id", rt.userID, "err", err)
	}
}

// buildScorer assembles the hybrid scorer from the assessment config. The
// oracle path is breaker-guarded so a failing model backend degrades to
// rule-based scoring instead of being hammered.
func (m *Manager) buildScorer() *assess.HybridScorer {
	var ruleOpts []assess.RuleBasedOption
	if m.refiner != nil {
		ruleOpts = append(ruleOpts, assess.WithRefiner(assess.NewRefiner(m.refiner)))
	}
	rules := assess.NewRuleBasedScorer(ruleOpts...)

	var oracle *assess.OracleEvaluator
	if m.oracle != nil {
		var opts []assess.OracleOption
		if _, chained := m.oracle.(*fallbackProvider); !chained {
			// A lone backend gets its own breaker; the fallback chain
			// already carries one per entry.
			opts = append(opts, assess.WithBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})))
		}
		if m.cfg.Assessment.TranscriptLimit > 0 {
			opts = append(opts, assess.WithTranscriptLimit(m.cfg.Assessment.TranscriptLimit))
		}
		oracle = assess.NewOracleEvaluator(m.oracle, opts...)
	}

	return assess.NewHybridScorer(rules, oracle, assess.HybridConfig{
		MinUtterances:     m.cfg.Assessment.MinUtterances,
		UtteranceInterval: m.cfg.Assessment.EvalUtteranceInterval,
		TimeInterval:      time.Duration(m.cfg.Assessment.EvalIntervalSeconds) * time.Second,
		VocabularyWeight:  m.cfg.Assessment.VocabularyBlendWeight,
		GrammarWeight:     m.cfg.Assessment.GrammarBlendWeight,
		FluencyWeight:     m.cfg.Assessment.FluencyBlendWeight,
		Weights:           m.weightTable(),
	})
}

// weightTable maps the configured component weight table onto the scoring
// core's type, or falls back to the built-in defaults when the config block
// is absent.
func (m *Manager) weightTable() assess.Weights {
	cw := m.cfg.Assessment.ComponentWeights
	if cw.IsZero() {
		return assess.DefaultWeights()
	}
	return assess.Weights{
		Vocabulary:         cw.Vocabulary,
		Grammar:            cw.Grammar,
		Fluency:            cw.Fluency,
		Comprehension:      cw.Comprehension,
		Coherence:          cw.Coherence,
		PronunciationProxy: cw.PronunciationProxy,
	}
}

func (m *Manager) scoreInterval() time.Duration {
	if s := m.cfg.Assessment.ScoreUpdateSeconds; s > 0 {
		return time.Duration(s) * time.Second
	}
	return defaultScoreInterval
}

// speechVoice reads the optional voice override from the speech provider's
// config entry.
func (m *Manager) speechVoice() string {
	if v, ok := m.cfg.Providers.Speech.Options["voice"].(string); ok {
		return v
	}
	return ""
}
