package assess

import "strings"

// Flesch–Kincaid grade level, clamped to [0, 20]. We compute it in-package
// with a heuristic syllable counter rather than pulling in a readability
// library; the grade feeds a calibration formula with a weight of 0.4, so
// small syllable-count disagreements with reference implementations are
// immaterial.

const (
	readabilityMax     = 20.0
	readabilityDefault = 5.0
)

// fleschKincaidGrade estimates the Flesch–Kincaid grade of text. Returns
// the clamped default when the text has no countable words or sentences.
func fleschKincaidGrade(text string) float64 {
	words := tokenize(text)
	if len(words) == 0 {
		return readabilityDefault
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

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	grade := 0.39*(float64(len(words))/float64(sentences)) +
		11.8*(float64(syllables)/float64(len(words))) - 15.59

	if grade < 0 {
		return 0
	}
	if grade > readabilityMax {
		return readabilityMax
	}
	return grade
}

// countSyllables approximates the syllable count of a single lower-cased
// word by counting vowel groups, with the usual silent-e adjustment.
// Always returns at least 1.
func countSyllables(word string) int {
	word = strings.Trim(word, "'")
	if word == "" {
		return 1
	}

	count := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}

	// Silent trailing e ("make", "practice") unless the word ends in
	// a consonant+le ("table", "little").
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && count > 1 {
		count--
	}

	if count < 1 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
