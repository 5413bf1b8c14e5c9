// Package assess implements the adaptive assessment core: deterministic
// linguistic metrics, score calibration, rule-based scoring, periodic
// oracle (model-based) evaluation, and the hybrid scorer that blends the
// two sources into a single proficiency estimate.
//
// The package is organised as a pipeline of leaves-first components:
//
//	metrics.go    — pure text statistics (tokens, fillers, grammar patterns)
//	calibrate.go  — raw metrics → normalised 0–100 component scores
//	rulebased.go  — RuleBasedScorer: per-utterance vocabulary/grammar/fluency
//	evaluator.go  — OracleEvaluator: transcript → comprehension/coherence via LLM
//	hybrid.go     — HybridScorer: blends both sources, owns the history
//
// Everything except the oracle evaluation is deterministic and synchronous
// so that scoring can run on every conversation turn without network
// latency.
package assess

import "time"

// neutralScore is the prior assigned to any dimension before it has been
// measured.
const neutralScore = 50.0

// ComponentScores holds the six judged dimensions, each 0–100. A zero-value
// ComponentScores is NOT neutral — use [NewComponentScores] to get the
// 50.0 prior on every dimension.
//
// Instances are treated as immutable snapshots: every evaluation produces a
// new value, nothing mutates one in place across components.
type ComponentScores struct {
	Vocabulary         float64 `json:"vocabulary"`
	Grammar            float64 `json:"grammar"`
	Fluency            float64 `json:"fluency"`
	Comprehension      float64 `json:"comprehension"`
	Coherence          float64 `json:"coherence"`
	PronunciationProxy float64 `json:"pronunciation_proxy"`
}

// NewComponentScores returns scores with the neutral 50.0 prior on every
// dimension.
func NewComponentScores() ComponentScores {
	return ComponentScores{
		Vocabulary:         neutralScore,
		Grammar:            neutralScore,
		Fluency:            neutralScore,
		Comprehension:      neutralScore,
		Coherence:          neutralScore,
		PronunciationProxy: neutralScore,
	}
}

// Source tags where an [AssessmentResult] came from.
type Source string

const (
	SourceRuleBased Source = "rule_based"
	SourceOracle    Source = "llm"
	SourceHybrid    Source = "hybrid"
)

// Weights is the component weight table for the overall score. A table must
// sum to 1.0; use [DefaultWeights] unless the deployment overrides it.
type Weights struct {
	Vocabulary         float64
	Grammar            float64
	Fluency            float64
	Comprehension      float64
	Coherence          float64
	PronunciationProxy float64
}

// DefaultWeights returns the built-in weight table. Grammar carries the most
// weight, the pronunciation proxy the least (it is the noisiest signal,
// inferred only from transcript artifacts).
func DefaultWeights() Weights {
	return Weights{
		Vocabulary:         0.20,
		Grammar:            0.25,
		Fluency:            0.20,
		Comprehension:      0.15,
		Coherence:          0.15,
		PronunciationProxy: 0.05,
	}
}

// Overall is the weighted sum over the six components. It is a pure function
// of its inputs: for identical components it always yields the identical
// overall score.
func (w Weights) Overall(c ComponentScores) float64 {
	return c.Vocabulary*w.Vocabulary +
		c.Grammar*w.Grammar +
		c.Fluency*w.Fluency +
		c.Comprehension*w.Comprehension +
		c.Coherence*w.Coherence +
		c.PronunciationProxy*w.PronunciationProxy
}

// AssessmentResult is a single assessment snapshot: component scores plus
// the derived weighted overall score. Results are appended to the hybrid
// scorer's history and never mutated afterwards.
type AssessmentResult struct {
	Timestamp    time.Time       `json:"timestamp"`
	Components   ComponentScores `json:"components"`
	OverallScore float64         `json:"overall_score"`
	Source       Source          `json:"source"`
}

// NewAssessmentResult builds a result from components, stamping the current
// time and computing the overall score with [DefaultWeights].
func NewAssessmentResult(components ComponentScores, source Source) AssessmentResult {
	return NewWeightedAssessmentResult(components, source, DefaultWeights())
}

// NewWeightedAssessmentResult is [NewAssessmentResult] with an explicit
// weight table.
func NewWeightedAssessmentResult(components ComponentScores, source Source, w Weights) AssessmentResult {
	r := AssessmentResult{
		Timestamp:  time.Now(),
		Components: components,
		Source:     source,
	}
	r.OverallScore = w.Overall(components)
	return r
}
