package assess

import "math"

// Score calibration: fixed, documented formulas that map raw linguistic
// metrics onto normalised 0–100 component scores. The formulas are
// intentionally simple and monotonic — no learned model — so that every
// score is reproducible and auditable. All outputs are clamped to [0, 100]
// even for extreme or negative metric inputs.

// clamp100 clamps v to [0, 100].
func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// round1 rounds v to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// CalibrateVocabulary maps vocabulary metrics onto a 0–100 score.
//
// Contributions: type-token ratio 30% (boosted ×150 because TTR naturally
// decays with text length), unique-word count 20%, average word length 10%
// (words longer than ~3 characters suggest sophistication), and the
// frequency-tier score 40%.
func CalibrateVocabulary(m VocabularyMetrics, frequencyScore float64) float64 {
	ttrScore := math.Min(100, m.TypeTokenRatio*150)
	uniqueScore := math.Min(100, float64(m.UniqueWordCount)*1.5)
	lengthScore := clamp100((m.AvgWordLength - 3) * 30)
	freqScore := clamp100(frequencyScore)

	return clamp100(ttrScore*0.3 + uniqueScore*0.2 + lengthScore*0.1 + freqScore*0.4)
}

// CalibrateGrammar maps grammar metrics onto a 0–100 score.
//
// Contributions: error penalty 60% (each error per word costs 500 points of
// headroom, so a 20% error ratio zeroes the term) and a structural
// complexity bonus 40% driven by the readability grade.
func CalibrateGrammar(m GrammarMetrics) float64 {
	errorScore := math.Max(0, 100-m.ErrorRatio*500)
	complexityScore := math.Min(100, m.Readability*8)

	return clamp100(errorScore*0.6 + complexityScore*0.4)
}

// CalibrateFluency maps fluency metrics onto a 0–100 score.
//
// Contributions: filler penalty 40%, speaking-rate score 30% (peaking in
// the 60–160 wpm conversational band, neutral 50 when no duration is
// known), and sentence-length score 30% (peaking around 8–15 words per
// sentence).
func CalibrateFluency(m FluencyMetrics) float64 {
	fillerScore := math.Max(0, 100-m.FillerRatio*400)

	var wpmScore float64
	switch wpm := m.WordsPerMinute; {
	case wpm == 0:
		wpmScore = 50.0 // no duration data
	case wpm < 60:
		wpmScore = wpm // too slow
	case wpm <= 160:
		wpmScore = 60 + (wpm-60)*0.4 // conversational range
	default:
		wpmScore = math.Max(50, 100-(wpm-160)*0.3) // too fast
	}

	var sentScore float64
	switch asl := m.AvgSentenceLength; {
	case asl < 3:
		sentScore = asl * 15
	case asl <= 15:
		sentScore = 45 + (asl-3)*4.5
	default:
		sentScore = math.Max(50, 100-(asl-15)*3)
	}

	return clamp100(fillerScore*0.4 + wpmScore*0.3 + sentScore*0.3)
}

// ProficiencyEstimate carries display-only external-scale estimates derived
// from the 0–100 overall score. These are never used for difficulty
// decisions.
type ProficiencyEstimate struct {
	// TOEIC is the approximate TOEIC listening+reading score (10–990).
	TOEIC int `json:"toeic"`

	// IELTS is the approximate IELTS band (1.0–9.0).
	IELTS float64 `json:"ielts"`
}

// breakpoint is one (score%, target) pair of a piecewise-linear mapping.
type breakpoint struct {
	score  float64
	target float64
}

// Calibrated against typical score distributions: most learners cluster in
// the 40–55% band.
var toeicBreakpoints = []breakpoint{
	{0, 10},
	{20, 150},
	{40, 350},
	{55, 500},
	{70, 650},
	{85, 800},
	{95, 900},
	{100, 990},
}

var ieltsBreakpoints = []breakpoint{
	{0, 1.0},
	{20, 2.5},
	{40, 4.0},
	{55, 5.5},
	{70, 6.5},
	{85, 7.5},
	{95, 8.5},
	{100, 9.0},
}

// interpolate evaluates a piecewise-linear mapping at score (clamped to
// [0, 100]).
func interpolate(points []breakpoint, score float64) float64 {
	score = clamp100(score)
	for i := 0; i < len(points)-1; i++ {
		lo, hi := points[i], points[i+1]
		if score >= lo.score && score <= hi.score {
			ratio := (score - lo.score) / (hi.score - lo.score)
			return lo.target + ratio*(hi.target-lo.target)
		}
	}
	return points[len(points)-1].target
}

// EstimateProficiency converts an overall 0–100 score into TOEIC and IELTS
// display estimates via piecewise-linear interpolation.
func EstimateProficiency(score float64) ProficiencyEstimate {
	return ProficiencyEstimate{
		TOEIC: int(math.Round(interpolate(toeicBreakpoints, score))),
		IELTS: round1(interpolate(ieltsBreakpoints, score)),
	}
}
