package app

import (
	"github.com/parlando-ai/parlando/internal/assess"
	"github.com/parlando-ai/parlando/internal/session"
)

// Update is one message on a runtime's outbound stream. Implementations
// are plain JSON-serialisable structs; the Type field discriminates them
// on the wire.
type Update interface {
	isUpdate()
}

// StateUpdate announces a session lifecycle change.
type StateUpdate struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}

// TranscriptUpdate carries one finalised transcript turn.
type TranscriptUpdate struct {
	Type string `json:"type"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// ScoreUpdate is one periodic assessment snapshot for the live score
// display.
type ScoreUpdate struct {
	Type               string  `json:"type"`
	Overall            float64 `json:"overall"`
	Vocabulary         float64 `json:"vocabulary"`
	Grammar            float64 `json:"grammar"`
	Fluency            float64 `json:"fluency"`
	Comprehension      float64 `json:"comprehension"`
	Coherence          float64 `json:"coherence"`
	PronunciationProxy float64 `json:"pronunciation_proxy"`
	Level              string  `json:"level"`
	TOEICEstimate      int     `json:"toeic_estimate"`
	IELTSEstimate      float64 `json:"ielts_estimate"`
}

// LevelChange announces a difficulty adaptation.
type LevelChange struct {
	Type  string `json:"type"`
	Level string `json:"level"`
	CEFR  string `json:"cefr"`
}

// AISpeaking reports whether the conversation partner is currently
// producing audio, so the client can drive its speaking indicator.
type AISpeaking struct {
	Type     string `json:"type"`
	Speaking bool   `json:"speaking"`
}

// AudioChunk carries one chunk of synthesised PCM16 audio. The JSON
// encoding is base64 via the standard []byte marshalling.
type AudioChunk struct {
	Type  string `json:"type"`
	Audio []byte `json:"audio"`
}

// Notice is a bare signal with no payload, e.g. "speech_started" when the
// learner barges in (the client should flush buffered playback) or
// "reconnected" after a transport recovery.
type Notice struct {
	Type string `json:"type"`
}

func (StateUpdate) isUpdate()      {}
func (TranscriptUpdate) isUpdate() {}
func (ScoreUpdate) isUpdate()      {}
func (LevelChange) isUpdate()      {}
func (AISpeaking) isUpdate()       {}
func (AudioChunk) isUpdate()       {}
func (Notice) isUpdate()           {}

// scoreUpdateFrom flattens an assessment result into the wire shape,
// deriving the display level and external-scale estimates from the overall
// score.
func scoreUpdateFrom(result assess.AssessmentResult) ScoreUpdate {
	estimate := assess.EstimateProficiency(result.OverallScore)
	return ScoreUpdate{
		Type:               "score_update",
		Overall:            result.OverallScore,
		Vocabulary:         result.Components.Vocabulary,
		Grammar:            result.Components.Grammar,
		Fluency:            result.Components.Fluency,
		Comprehension:      result.Components.Comprehension,
		Coherence:          result.Components.Coherence,
		PronunciationProxy: result.Components.PronunciationProxy,
		Level:              string(session.LevelFromScore(result.OverallScore)),
		TOEICEstimate:      estimate.TOEIC,
		IELTSEstimate:      estimate.IELTS,
	}
}
