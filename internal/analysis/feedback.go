// Package analysis builds post-session review material: the natural-
// language feedback report, transcript highlights (fillers, grammar slips,
// advanced vocabulary), and the phonetic mishear detector that surfaces
// probable transcription artifacts.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/parlando-ai/parlando/internal/assess"
	"github.com/parlando-ai/parlando/internal/session"
	"github.com/parlando-ai/parlando/pkg/provider/llm"
)

const feedbackSystemPrompt = `You are an expert English language tutor providing feedback after a conversation practice session.

Given the conversation transcript and assessment scores, provide detailed, constructive feedback.

Assessment scores (0-100):
- Vocabulary: %.1f
- Grammar: %.1f
- Fluency: %.1f
- Comprehension: %.1f
- Coherence: %.1f
- Overall: %.1f
- Estimated TOEIC: %d
- Estimated IELTS: %.1f

Respond with a JSON object:
{
    "summary": "<2-3 sentence overall assessment>",
    "strengths": ["<strength 1>", "<strength 2>", "<strength 3>"],
    "weaknesses": ["<area 1>", "<area 2>", "<area 3>"],
    "advice": [
        "<specific, actionable advice 1>",
        "<specific, actionable advice 2>",
        "<specific, actionable advice 3>"
    ],
    "example_corrections": [
        {"original": "<sentence>", "corrected": "<improved>", "explanation": "<why>"}
    ]
}

Be encouraging but honest. Focus on the most impactful improvements.`

const feedbackTemperature = 0.5

// Correction is one example sentence improvement in a feedback report.
type Correction struct {
	Original    string `json:"original"`
	Corrected   string `json:"corrected"`
	Explanation string `json:"explanation"`
}

// Report is the post-session feedback shown to the learner.
type Report struct {
	Summary     string       `json:"summary"`
	Strengths   []string     `json:"strengths"`
	Weaknesses  []string     `json:"weaknesses"`
	Advice      []string     `json:"advice"`
	Corrections []Correction `json:"example_corrections"`

	Proficiency assess.ProficiencyEstimate `json:"proficiency"`
}

// FeedbackGenerator produces the post-session report. When the model call
// fails, Generate falls back to a locally derived report built from the
// component scores, so the learner always gets something.
type FeedbackGenerator struct {
	provider llm.Provider
}

// NewFeedbackGenerator creates a generator backed by provider. provider
// may be nil; Generate then always returns the local report.
func NewFeedbackGenerator(provider llm.Provider) *FeedbackGenerator {
	return &FeedbackGenerator{provider: provider}
}

// Generate builds the feedback report for a completed session.
func (g *FeedbackGenerator) Generate(ctx context.Context, utterances []session.Utterance, final assess.AssessmentResult) Report {
	estimate := assess.EstimateProficiency(final.OverallScore)

	if g.provider == nil {
		return localReport(final, estimate)
	}

	c := final.Components
	prompt := fmt.Sprintf(feedbackSystemPrompt,
		c.Vocabulary, c.Grammar, c.Fluency, c.Comprehension, c.Coherence,
		final.OverallScore, estimate.TOEIC, estimate.IELTS)

	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: prompt,
		Messages: []llm.Message{
			{Role: "user", Content: "Transcript:\n" + FormatTranscript(utterances)},
		},
		Temperature:  feedbackTemperature,
		JSONResponse: true,
	})
	if err != nil {
		slog.Warn("feedback generation failed; using local report", "err", err)
		return localReport(final, estimate)
	}

	var report Report
	if err := json.Unmarshal([]byte(resp.Content), &report); err != nil {
		slog.Warn("feedback response unparseable; using local report", "err", err)
		return localReport(final, estimate)
	}
	report.Proficiency = estimate
	return report
}

// componentEntry pairs a display name with its score for local ranking.
type componentEntry struct {
	name  string
	score float64
}

// localReport derives strengths and weaknesses directly from the component
// scores: the strongest dimensions become strengths, the weakest become
// focus areas.
func localReport(final assess.AssessmentResult, estimate assess.ProficiencyEstimate) Report {
	c := final.Components
	entries := []componentEntry{
		{"vocabulary", c.Vocabulary},
		{"grammar", c.Grammar},
		{"fluency", c.Fluency},
		{"comprehension", c.Comprehension},
		{"coherence", c.Coherence},
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})

	var strengths, weaknesses []string
	for _, e := range entries[:2] {
		if e.score >= 50 {
			strengths = append(strengths, "Solid "+e.name)
		}
	}
	for _, e := range entries[len(entries)-2:] {
		if e.score < 60 {
			weaknesses = append(weaknesses, capitalize(e.name))
		}
	}

	return Report{
		Summary: fmt.Sprintf(
			"You scored %.1f overall (approximately TOEIC %d / IELTS %.1f). Keep practicing regularly to climb to the next level.",
			final.OverallScore, estimate.TOEIC, estimate.IELTS),
		Strengths:  strengths,
		Weaknesses: weaknesses,
		Advice: []string{
			"Continue practicing regular English conversation.",
		},
		Proficiency: estimate,
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatTranscript renders utterances as readable "You:/AI:" lines for
// review display and feedback prompts.
func FormatTranscript(utterances []session.Utterance) string {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		speaker := "AI"
		if u.Role == session.RoleUser {
			speaker = "You"
		}
		lines = append(lines, speaker+": "+u.Text)
	}
	return strings.Join(lines, "\n\n")
}
