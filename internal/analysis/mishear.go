package analysis

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/parlando-ai/parlando/internal/session"
)

// Mishear is a probable transcription artifact: a word in the learner's
// transcript that phonetically matches a word the conversation partner
// used but is spelled differently.
type Mishear struct {
	// Heard is the token as it appears in the learner's transcript.
	Heard string

	// Expected is the phonetically matching word from the partner's turns.
	Expected string
}

// MishearDetector flags user-transcript tokens that sound like words from
// the assistant's side of the conversation but are spelled differently.
// Such tokens are strong evidence of pronunciation-driven transcription
// errors and feed the review view's pronunciation hints.
//
// The detector is conversation-scoped: the assistant's vocabulary in the
// same session is the candidate set, so common words the learner uses
// naturally never trigger it.
type MishearDetector struct {
	// byCode maps a Double Metaphone code to the assistant words bearing it.
	byCode map[string][]string

	// spoken holds every assistant token verbatim, to skip exact echoes.
	spoken map[string]struct{}
}

var mishearTokenPattern = regexp.MustCompile(`[a-zA-Z']+`)

// mishearMinLength skips short tokens; their metaphone codes collide far
// too often to carry signal.
const mishearMinLength = 4

// mishearMaxDistance is the maximum Levenshtein distance between heard and
// expected spellings. Beyond that the words are too different to be a
// plausible single-word mishear.
const mishearMaxDistance = 3

// NewMishearDetector indexes the assistant's vocabulary from the session
// transcript.
func NewMishearDetector(utterances []session.Utterance) *MishearDetector {
	d := &MishearDetector{
		byCode: make(map[string][]string),
		spoken: make(map[string]struct{}),
	}
	for _, u := range utterances {
		if u.Role != session.RoleAssistant {
			continue
		}
		for _, tok := range mishearTokenPattern.FindAllString(strings.ToLower(u.Text), -1) {
			if len(tok) < mishearMinLength {
				continue
			}
			if _, seen := d.spoken[tok]; seen {
				continue
			}
			d.spoken[tok] = struct{}{}
			primary, secondary := matchr.DoubleMetaphone(tok)
			if primary != "" {
				d.byCode[primary] = append(d.byCode[primary], tok)
			}
			if secondary != "" && secondary != primary {
				d.byCode[secondary] = append(d.byCode[secondary], tok)
			}
		}
	}
	return d
}

// Detect returns probable mishears in one user utterance. Tokens the
// assistant actually used are never flagged.
func (d *MishearDetector) Detect(text string) []Mishear {
	var out []Mishear
	seen := make(map[string]struct{})
	for _, tok := range mishearTokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < mishearMinLength {
			continue
		}
		if _, echoed := d.spoken[tok]; echoed {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}

		if expected, ok := d.match(tok); ok {
			seen[tok] = struct{}{}
			out = append(out, Mishear{Heard: tok, Expected: expected})
		}
	}
	return out
}

// match finds the closest assistant word sharing a metaphone code with
// tok, within the spelling-distance bound.
func (d *MishearDetector) match(tok string) (string, bool) {
	primary, secondary := matchr.DoubleMetaphone(tok)

	best := ""
	bestDist := mishearMaxDistance + 1
	for _, code := range []string{primary, secondary} {
		if code == "" {
			continue
		}
		for _, candidate := range d.byCode[code] {
			dist := matchr.Levenshtein(tok, candidate)
			if dist > 0 && dist < bestDist {
				best = candidate
				bestDist = dist
			}
		}
	}
	return best, best != ""
}
