package assess

import (
	"context"
	"log/slog"
)

// RuleBasedScorer computes vocabulary, grammar, and fluency scores from
// deterministic linguistic analysis of accumulated user text. It is cheap
// enough to run on every conversation turn.
//
// Comprehension, coherence, and the pronunciation proxy are outside
// rule-based scope and stay at the neutral 50.0 prior; the oracle evaluator
// is the only source for those dimensions.
type RuleBasedScorer struct {
	refiner *Refiner
}

// RuleBasedOption configures a [RuleBasedScorer].
type RuleBasedOption func(*RuleBasedScorer)

// WithRefiner attaches an optional model-assisted grammar/filler refiner.
// The refiner adds latency (bounded by its own timeout) and its failures
// are silently absorbed — output shape and score ranges never change.
func WithRefiner(r *Refiner) RuleBasedOption {
	return func(s *RuleBasedScorer) {
		s.refiner = r
	}
}

// NewRuleBasedScorer creates a scorer. Without options the scorer is pure
// and synchronous: no network, no suspension, byte-identical output for
// identical input.
func NewRuleBasedScorer(opts ...RuleBasedOption) *RuleBasedScorer {
	s := &RuleBasedScorer{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Evaluate scores the joined user text. durationSeconds is the total
// speaking time (0 when unknown). Empty or whitespace-only text returns
// the all-neutral ComponentScores.
//
// Scores are rounded to one decimal place. The method never returns an
// error: degraded inputs map to defined fallback outputs.
func (s *RuleBasedScorer) Evaluate(ctx context.Context, text string, durationSeconds float64) ComponentScores {
	if len(tokenize(text)) == 0 {
		return NewComponentScores()
	}

	vocabMetrics := VocabularyRichness(text)
	freqScore := WordFrequencyScore(text)
	vocabulary := CalibrateVocabulary(vocabMetrics, freqScore)

	grammarMetrics := Grammar(text)
	fluencyMetrics := Fluency(text, durationSeconds)

	// Optional model-assisted refinement: extra detected errors and a
	// better filler count fold into the raw metrics before calibration.
	if s.refiner != nil {
		if ref, err := s.refiner.Analyze(ctx, text); err == nil {
			grammarMetrics = applyGrammarRefinement(grammarMetrics, ref, vocabMetrics.TotalWordCount)
			fluencyMetrics = applyFluencyRefinement(fluencyMetrics, ref, vocabMetrics.TotalWordCount)
		} else {
			slog.Debug("metric refinement unavailable", "err", err)
		}
	}

	grammar := CalibrateGrammar(grammarMetrics)
	fluency := CalibrateFluency(fluencyMetrics)

	scores := NewComponentScores()
	scores.Vocabulary = round1(vocabulary)
	scores.Grammar = round1(grammar)
	scores.Fluency = round1(fluency)

	slog.Debug("rule-based evaluation",
		"vocabulary", scores.Vocabulary,
		"grammar", scores.Grammar,
		"fluency", scores.Fluency,
	)

	return scores
}

// applyGrammarRefinement adds refiner-detected errors to the pattern-based
// count and recomputes the ratio.
func applyGrammarRefinement(m GrammarMetrics, ref Refinement, totalWords int) GrammarMetrics {
	if len(ref.GrammarErrors) == 0 || totalWords == 0 {
		return m
	}
	m.ErrorCount += len(ref.GrammarErrors)
	m.ErrorRatio = float64(m.ErrorCount) / float64(totalWords)
	return m
}

// applyFluencyRefinement replaces the set-based filler count with the
// refiner's context-aware count when the refiner reported one.
func applyFluencyRefinement(m FluencyMetrics, ref Refinement, totalWords int) FluencyMetrics {
	if ref.FillerCount < 0 || totalWords == 0 {
		return m
	}
	m.FillerRatio = float64(ref.FillerCount) / float64(totalWords)
	return m
}
