package analysis

import (
	"regexp"
	"strings"

	"github.com/parlando-ai/parlando/internal/assess"
	"github.com/parlando-ai/parlando/internal/session"
)

// HighlightType classifies a transcript highlight.
type HighlightType string

const (
	HighlightFiller        HighlightType = "filler"
	HighlightGrammar       HighlightType = "grammar"
	HighlightAdvancedVocab HighlightType = "advanced_vocab"
	HighlightMishear       HighlightType = "mishear"
)

// Highlight marks one notable pattern in a user utterance.
type Highlight struct {
	Type HighlightType `json:"type"`

	// Word is the matched text.
	Word string `json:"word"`

	// Suggestion carries advice for filler and mishear highlights.
	Suggestion string `json:"suggestion,omitempty"`
}

// AnnotatedUtterance is one transcript turn enriched for review display.
// Only user turns carry highlights.
type AnnotatedUtterance struct {
	Role       session.Role `json:"role"`
	Text       string       `json:"text"`
	Highlights []Highlight  `json:"highlights"`
}

// advancedVocabMinLength: long uncommon words get flagged as vocabulary
// wins for the review view.
const advancedVocabMinLength = 8

var highlightWordPattern = regexp.MustCompile(`[a-zA-Z']+`)

// HighlightTranscript enriches the transcript for post-session review,
// marking fillers, grammar slips, advanced vocabulary, and probable
// mishears in the learner's turns.
func HighlightTranscript(utterances []session.Utterance) []AnnotatedUtterance {
	detector := NewMishearDetector(utterances)

	out := make([]AnnotatedUtterance, 0, len(utterances))
	for _, u := range utterances {
		a := AnnotatedUtterance{
			Role:       u.Role,
			Text:       u.Text,
			Highlights: []Highlight{},
		}
		if u.Role == session.RoleUser {
			a.Highlights = findHighlights(u.Text, detector)
		}
		out = append(out, a)
	}
	return out
}

func findHighlights(text string, detector *MishearDetector) []Highlight {
	highlights := []Highlight{}

	for _, w := range assess.FillerTokens(text) {
		highlights = append(highlights, Highlight{
			Type:       HighlightFiller,
			Word:       w,
			Suggestion: "Try to reduce filler words for smoother speech.",
		})
	}

	for _, m := range assess.GrammarErrorMatches(text) {
		highlights = append(highlights, Highlight{
			Type: HighlightGrammar,
			Word: m,
		})
	}

	words := highlightWordPattern.FindAllString(strings.ToLower(text), -1)
	for _, w := range words {
		if len(w) >= advancedVocabMinLength {
			highlights = append(highlights, Highlight{
				Type: HighlightAdvancedVocab,
				Word: w,
			})
		}
	}

	for _, m := range detector.Detect(text) {
		highlights = append(highlights, Highlight{
			Type:       HighlightMishear,
			Word:       m.Heard,
			Suggestion: "Possibly \"" + m.Expected + "\" — a transcription artifact worth checking.",
		})
	}

	return highlights
}
