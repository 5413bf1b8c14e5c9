package assess

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parlando-ai/parlando/internal/observe"
	"github.com/parlando-ai/parlando/internal/session"
)

// Blend weights: the rule-based share of each dimension both sources
// measure. Fluency trusts the rules most because timing-derived metrics are
// invisible to the oracle's transcript view.
const (
	blendWeightVocabulary = 0.6
	blendWeightGrammar    = 0.6
	blendWeightFluency    = 0.7
)

// HybridConfig tunes when the background oracle evaluation fires and how
// the two score sources are blended. Zero-value fields get defaults.
type HybridConfig struct {
	// MinUtterances is the minimum number of user utterances before any
	// oracle evaluation may run. Default: 3.
	MinUtterances int

	// UtteranceInterval triggers an evaluation once this many new user
	// utterances accumulated since the previous one. Default: 10.
	UtteranceInterval int

	// TimeInterval triggers an evaluation once this much time passed since
	// the previous one. Default: 2m.
	TimeInterval time.Duration

	// VocabularyWeight, GrammarWeight, and FluencyWeight are the rule-based
	// shares of the respective blended dimensions, each in [0, 1].
	// Defaults: 0.6, 0.6, 0.7.
	VocabularyWeight float64
	GrammarWeight    float64
	FluencyWeight    float64

	// Weights is the component weight table for the overall score.
	// Default: [DefaultWeights].
	Weights Weights
}

func (c *HybridConfig) applyDefaults() {
	if c.MinUtterances <= 0 {
		c.MinUtterances = 3
	}
	if c.UtteranceInterval <= 0 {
		c.UtteranceInterval = 10
	}
	if c.TimeInterval <= 0 {
		c.TimeInterval = 2 * time.Minute
	}
	if c.VocabularyWeight <= 0 {
		c.VocabularyWeight = blendWeightVocabulary
	}
	if c.GrammarWeight <= 0 {
		c.GrammarWeight = blendWeightGrammar
	}
	if c.FluencyWeight <= 0 {
		c.FluencyWeight = blendWeightFluency
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
}

// HybridScorer combines the cheap synchronous [RuleBasedScorer] with the
// slow asynchronous [OracleEvaluator]. Every [HybridScorer.Update] call
// recomputes the rule-based dimensions immediately; oracle evaluations run
// in a background goroutine (at most one in flight) and deposit their
// result into a single last-write-wins slot that subsequent updates blend
// from.
//
// All methods are safe for concurrent use.
type HybridScorer struct {
	rules  *RuleBasedScorer
	oracle *OracleEvaluator
	cfg    HybridConfig

	mu            sync.Mutex
	oracleScores  *ComponentScores // nil until the first oracle result lands; reads see the neutral prior
	oracleSession string           // session the slot belongs to
	evalInFlight  bool
	lastEvalAt    time.Time
	lastEvalCount int
	history       []AssessmentResult

	// now is swapped out by tests.
	now func() time.Time
}

// NewHybridScorer builds a scorer from the two sources. oracle may be nil,
// in which case scoring stays purely rule-based.
func NewHybridScorer(rules *RuleBasedScorer, oracle *OracleEvaluator, cfg HybridConfig) *HybridScorer {
	cfg.applyDefaults()
	return &HybridScorer{
		rules:  rules,
		oracle: oracle,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Update recomputes the assessment for the session's current state and
// appends the result to the history. The rule-based dimensions are always
// fresh; oracle-owned dimensions come from the latest completed background
// evaluation, or stay at the neutral prior if none has landed yet.
//
// Update may spawn one background oracle evaluation as a side effect; it
// never blocks on it.
func (h *HybridScorer) Update(ctx context.Context, sess *session.Session) AssessmentResult {
	userText := sess.UserTextJoined()
	ruleScores := h.rules.Evaluate(ctx, userText, sess.DurationSeconds())
	utterances := sess.UserUtteranceCount()

	h.mu.Lock()
	if h.oracleSession != sess.ID {
		// New session: drop the previous session's oracle snapshot.
		h.oracleScores = nil
		h.oracleSession = sess.ID
		h.lastEvalAt = time.Time{}
		h.lastEvalCount = 0
	}

	if h.oracle != nil && h.shouldEvaluateLocked(utterances) {
		if h.evalInFlight {
			observe.DefaultMetrics().RecordEvaluationSkip(ctx, "in_flight")
		} else {
			h.evalInFlight = true
			h.lastEvalAt = h.now()
			h.lastEvalCount = utterances
			go h.runEvaluation(ctx, sess.ID, transcriptOf(sess))
		}
	}

	components := h.blendLocked(ruleScores)
	source := SourceRuleBased
	if h.oracleScores != nil {
		source = SourceHybrid
	}
	result := NewWeightedAssessmentResult(components, source, h.cfg.Weights)
	h.history = append(h.history, result)
	h.mu.Unlock()

	return result
}

// shouldEvaluateLocked reports whether an oracle evaluation is due. Must be
// called with h.mu held.
func (h *HybridScorer) shouldEvaluateLocked(utterances int) bool {
	if utterances < h.cfg.MinUtterances {
		return false
	}
	if h.lastEvalAt.IsZero() {
		return true
	}
	if utterances-h.lastEvalCount >= h.cfg.UtteranceInterval {
		return true
	}
	return h.now().Sub(h.lastEvalAt) >= h.cfg.TimeInterval
}

// runEvaluation performs one oracle call and deposits the result into the
// slot, unless a newer session has since taken it over.
func (h *HybridScorer) runEvaluation(ctx context.Context, sessionID string, transcript []TranscriptTurn) {
	scores := h.oracle.Evaluate(ctx, transcript)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.evalInFlight = false
	if h.oracleSession != sessionID {
		slog.Debug("discarding oracle result for superseded session",
			"session_id", sessionID)
		return
	}
	h.oracleScores = &scores
}

// blendLocked merges the fresh rule-based scores with the model-score slot.
// Before the first oracle result lands the slot reads as the neutral prior,
// so early rule scores are pulled toward 50 rather than reported raw. Must
// be called with h.mu held.
func (h *HybridScorer) blendLocked(rule ComponentScores) ComponentScores {
	model := NewComponentScores()
	if h.oracleScores != nil {
		model = *h.oracleScores
	}
	return ComponentScores{
		Vocabulary:         blend(rule.Vocabulary, model.Vocabulary, h.cfg.VocabularyWeight),
		Grammar:            blend(rule.Grammar, model.Grammar, h.cfg.GrammarWeight),
		Fluency:            blend(rule.Fluency, model.Fluency, h.cfg.FluencyWeight),
		Comprehension:      model.Comprehension,
		Coherence:          model.Coherence,
		PronunciationProxy: model.PronunciationProxy,
	}
}

// blend mixes a rule-based and a model score with ruleWeight going to the
// rule side, rounded to one decimal.
func blend(rule, model, ruleWeight float64) float64 {
	return round1(rule*ruleWeight + model*(1-ruleWeight))
}

// History returns a copy of every result produced so far, in the order the
// Update calls that produced them completed.
func (h *HybridScorer) History() []AssessmentResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]AssessmentResult, len(h.history))
	copy(out, h.history)
	return out
}

// LatestResult returns the most recent result and true, or a zero result
// and false when no update has run yet.
func (h *HybridScorer) LatestResult() (AssessmentResult, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.history) == 0 {
		return AssessmentResult{}, false
	}
	return h.history[len(h.history)-1], true
}

// transcriptOf snapshots the session's utterances as oracle transcript
// turns.
func transcriptOf(sess *session.Session) []TranscriptTurn {
	utterances := sess.Utterances()
	turns := make([]TranscriptTurn, 0, len(utterances))
	for _, u := range utterances {
		turns = append(turns, TranscriptTurn{Role: string(u.Role), Text: u.Text})
	}
	return turns
}
