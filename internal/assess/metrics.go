package assess

import (
	"regexp"
	"strings"
)

// wordPattern tokenises text into lower-cased alphabetic runs; apostrophes
// stay inside a token so contractions ("don't", "I'm") count as one word.
var wordPattern = regexp.MustCompile(`[a-zA-Z']+`)

// tokenize returns the lower-cased word tokens of text, in order.
func tokenize(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// fillerWords is the fixed filler vocabulary. Single-word entries are
// matched per token; two-word entries are matched as consecutive token
// pairs.
var fillerWords = map[string]struct{}{
	"um": {}, "uh": {}, "er": {}, "ah": {},
	"like": {}, "basically": {}, "actually": {}, "literally": {},
	"well": {},
}

var fillerPhrases = [][2]string{
	{"you", "know"},
	{"i", "mean"},
	{"sort", "of"},
	{"kind", "of"},
}

// countFillers counts filler occurrences in an ordered token stream.
func countFillers(tokens []string) int {
	n := 0
	for i, tok := range tokens {
		if _, ok := fillerWords[tok]; ok {
			n++
			continue
		}
		if i+1 < len(tokens) {
			for _, p := range fillerPhrases {
				if tok == p[0] && tokens[i+1] == p[1] {
					n++
					break
				}
			}
		}
	}
	return n
}

// FillerTokens returns every filler occurrence in text, in order. Phrase
// fillers are reported joined with a space ("you know").
func FillerTokens(text string) []string {
	tokens := tokenize(text)
	var out []string
	for i, tok := range tokens {
		if _, ok := fillerWords[tok]; ok {
			out = append(out, tok)
			continue
		}
		if i+1 < len(tokens) {
			for _, p := range fillerPhrases {
				if tok == p[0] && tokens[i+1] == p[1] {
					out = append(out, tok+" "+tokens[i+1])
					break
				}
			}
		}
	}
	return out
}

// grammarPatterns is the fixed list of literal grammar-error patterns
// matched against lower-cased text: subject-verb disagreement idioms,
// double comparatives/superlatives, and irregular-form misuse.
var grammarPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bhe don't\b`),
	regexp.MustCompile(`\bshe don't\b`),
	regexp.MustCompile(`\bit don't\b`),
	regexp.MustCompile(`\bmore better\b`),
	regexp.MustCompile(`\bmost best\b`),
	regexp.MustCompile(`\bgoed\b`),
	regexp.MustCompile(`\bchilds\b`),
	regexp.MustCompile(`\bpeoples\b`),
	regexp.MustCompile(`\bdid went\b`),
	regexp.MustCompile(`\bdoes goes\b`),
}

// GrammarErrorMatches returns every grammar-pattern match found in text,
// in pattern order.
func GrammarErrorMatches(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, pat := range grammarPatterns {
		out = append(out, pat.FindAllString(lower, -1)...)
	}
	return out
}

// sentencePattern splits text into sentences on terminal punctuation.
var sentencePattern = regexp.MustCompile(`[.!?]+`)

// VocabularyMetrics holds raw vocabulary-richness statistics.
type VocabularyMetrics struct {
	// TypeTokenRatio is unique words / total words, capped at 1.0.
	TypeTokenRatio float64

	// UniqueWordCount is the number of distinct word tokens.
	UniqueWordCount int

	// TotalWordCount is the total number of word tokens.
	TotalWordCount int

	// AvgWordLength is the mean token length in characters.
	AvgWordLength float64
}

// VocabularyRichness computes vocabulary statistics over text. Empty input
// yields the all-zero shape.
func VocabularyRichness(text string) VocabularyMetrics {
	words := tokenize(text)
	if len(words) == 0 {
		return VocabularyMetrics{}
	}

	unique := make(map[string]struct{}, len(words))
	totalLen := 0
	for _, w := range words {
		unique[w] = struct{}{}
		totalLen += len(w)
	}

	ttr := float64(len(unique)) / float64(len(words))
	if ttr > 1.0 {
		ttr = 1.0
	}

	return VocabularyMetrics{
		TypeTokenRatio:  ttr,
		UniqueWordCount: len(unique),
		TotalWordCount:  len(words),
		AvgWordLength:   float64(totalLen) / float64(len(words)),
	}
}

// FluencyMetrics holds raw fluency statistics.
type FluencyMetrics struct {
	// FillerRatio is filler occurrences / total tokens.
	FillerRatio float64

	// WordsPerMinute is the speaking rate, or 0 when the duration is
	// unknown or non-positive.
	WordsPerMinute float64

	// AvgSentenceLength is total words / sentence count (minimum 1).
	AvgSentenceLength float64
}

// Fluency computes fluency statistics over text. durationSeconds is the
// total speaking time; pass 0 (or a negative value) when unknown. Empty
// input yields the all-zero shape.
func Fluency(text string, durationSeconds float64) FluencyMetrics {
	words := tokenize(text)
	if len(words) == 0 {
		return FluencyMetrics{}
	}

	fillerRatio := float64(countFillers(words)) / float64(len(words))

	wpm := 0.0
	if durationSeconds > 0 {
		wpm = float64(len(words)) / durationSeconds * 60
	}

	sentences := 0
	for _, s := range sentencePattern.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences < 1 {
		sentences = 1
	}

	return FluencyMetrics{
		FillerRatio:       fillerRatio,
		WordsPerMinute:    wpm,
		AvgSentenceLength: float64(len(words)) / float64(sentences),
	}
}

// GrammarMetrics holds raw grammar statistics.
type GrammarMetrics struct {
	// ErrorCount is the number of grammar-pattern matches.
	ErrorCount int

	// ErrorRatio is ErrorCount / total words.
	ErrorRatio float64

	// Readability is the Flesch–Kincaid grade level clamped to [0, 20];
	// used as a proxy for structural complexity (higher grade = more
	// complex structures).
	Readability float64
}

// Grammar computes grammar statistics over text. Empty input yields the
// all-zero shape.
func Grammar(text string) GrammarMetrics {
	words := tokenize(text)
	if len(words) == 0 {
		return GrammarMetrics{}
	}

	lower := strings.ToLower(text)
	errCount := 0
	for _, pat := range grammarPatterns {
		errCount += len(pat.FindAllString(lower, -1))
	}

	return GrammarMetrics{
		ErrorCount:  errCount,
		ErrorRatio:  float64(errCount) / float64(len(words)),
		Readability: fleschKincaidGrade(text),
	}
}

// Tier weights for the frequency-based vocabulary score.
const (
	tierWeightBasic        = 0.3
	tierWeightIntermediate = 0.6
	tierWeightAdvanced     = 1.0
)

// minTokensForFrequency is the minimum token count below which the
// frequency score falls back to the neutral prior: a handful of words
// carries no usable signal about vocabulary sophistication.
const minTokensForFrequency = 5

// WordFrequencyScore scores vocabulary sophistication 0–100 from the
// three-tier frequency distribution of the tokens in text. Fewer than five
// tokens returns the neutral 50.0.
func WordFrequencyScore(text string) float64 {
	words := tokenize(text)
	if len(words) < minTokensForFrequency {
		return neutralScore
	}

	var weighted float64
	for _, w := range words {
		switch {
		case inSet(basicWords, w):
			weighted += tierWeightBasic
		case inSet(intermediateWords, w):
			weighted += tierWeightIntermediate
		default:
			weighted += tierWeightAdvanced
		}
	}

	score := weighted / float64(len(words)) * 100
	if score > 100 {
		score = 100
	}
	return score
}

func inSet(set map[string]struct{}, w string) bool {
	_, ok := set[w]
	return ok
}
