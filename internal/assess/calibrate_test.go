package assess

import "testing"

func TestCountSyllables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"go", 1},
		{"make", 1},     // silent trailing e
		{"table", 2},    // -le keeps its syllable
		{"beautiful", 3},
		{"rhythm", 1},   // no vowels, minimum applies
		{"", 1},
	}

	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			t.Parallel()
			if got := countSyllables(tt.word); got != tt.want {
				t.Errorf("countSyllables(%q): want %d, got %d", tt.word, tt.want, got)
			}
		})
	}
}

func TestFleschKincaidGrade(t *testing.T) {
	t.Parallel()

	t.Run("empty text returns the default", func(t *testing.T) {
		t.Parallel()
		if got := fleschKincaidGrade(""); got != readabilityDefault {
			t.Errorf("want %v, got %v", readabilityDefault, got)
		}
	})

	t.Run("simple text clamps at zero", func(t *testing.T) {
		t.Parallel()
		if got := fleschKincaidGrade("The cat sat."); got != 0 {
			t.Errorf("want 0, got %v", got)
		}
	})

	t.Run("never exceeds the maximum", func(t *testing.T) {
		t.Parallel()
		// One enormous run-on sentence of long words.
		text := ""
		for i := 0; i < 40; i++ {
			text += "incomprehensibility extraordinarily "
		}
		if got := fleschKincaidGrade(text); got > readabilityMax {
			t.Errorf("want <= %v, got %v", readabilityMax, got)
		}
	})
}

func TestCalibrateVocabulary(t *testing.T) {
	t.Parallel()

	t.Run("zero metrics with neutral frequency", func(t *testing.T) {
		t.Parallel()
		// 0.3*0 + 0.2*0 + 0.1*0 + 0.4*50 = 20.
		got := CalibrateVocabulary(VocabularyMetrics{}, neutralScore)
		if !almostEqual(got, 20.0) {
			t.Errorf("want 20.0, got %v", got)
		}
	})

	t.Run("rich metrics saturate each term", func(t *testing.T) {
		t.Parallel()
		m := VocabularyMetrics{
			TypeTokenRatio:  1.0, // ttr term caps at 100
			UniqueWordCount: 200, // unique term caps at 100
			AvgWordLength:   10,  // length term caps at 100
		}
		got := CalibrateVocabulary(m, 100)
		if !almostEqual(got, 100.0) {
			t.Errorf("want 100.0, got %v", got)
		}
	})

	t.Run("clamps extreme frequency input", func(t *testing.T) {
		t.Parallel()
		got := CalibrateVocabulary(VocabularyMetrics{}, -500)
		if got < 0 || got > 100 {
			t.Errorf("want score in [0, 100], got %v", got)
		}
	})
}

func TestCalibrateGrammar(t *testing.T) {
	t.Parallel()

	t.Run("clean text with moderate complexity", func(t *testing.T) {
		t.Parallel()
		// 0.6*100 + 0.4*min(100, 10*8) = 60 + 32 = 92.
		got := CalibrateGrammar(GrammarMetrics{ErrorRatio: 0, Readability: 10})
		if !almostEqual(got, 92.0) {
			t.Errorf("want 92.0, got %v", got)
		}
	})

	t.Run("twenty percent error ratio zeroes the error term", func(t *testing.T) {
		t.Parallel()
		// 0.6*max(0, 100-0.2*500) + 0.4*0 = 0.
		got := CalibrateGrammar(GrammarMetrics{ErrorRatio: 0.2, Readability: 0})
		if !almostEqual(got, 0.0) {
			t.Errorf("want 0.0, got %v", got)
		}
	})

	t.Run("error term never goes negative", func(t *testing.T) {
		t.Parallel()
		got := CalibrateGrammar(GrammarMetrics{ErrorRatio: 0.9, Readability: 0})
		if got < 0 {
			t.Errorf("want non-negative score, got %v", got)
		}
	})
}

func TestCalibrateFluency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		m    FluencyMetrics
		want float64
	}{
		{
			// filler 100, wpm 50 (unknown), sentence 10*... asl 9 → 45+6*4.5=72.
			name: "unknown duration stays neutral on rate",
			m:    FluencyMetrics{FillerRatio: 0, WordsPerMinute: 0, AvgSentenceLength: 9},
			want: 0.4*100 + 0.3*50 + 0.3*72,
		},
		{
			// wpm 120 → 60+(120-60)*0.4 = 84.
			name: "conversational rate",
			m:    FluencyMetrics{FillerRatio: 0, WordsPerMinute: 120, AvgSentenceLength: 9},
			want: 0.4*100 + 0.3*84 + 0.3*72,
		},
		{
			// wpm 40 below the band scores itself.
			name: "slow rate",
			m:    FluencyMetrics{FillerRatio: 0, WordsPerMinute: 40, AvgSentenceLength: 9},
			want: 0.4*100 + 0.3*40 + 0.3*72,
		},
		{
			// wpm 200 → max(50, 100-40*0.3) = 88.
			name: "fast rate penalised",
			m:    FluencyMetrics{FillerRatio: 0, WordsPerMinute: 200, AvgSentenceLength: 9},
			want: 0.4*100 + 0.3*88 + 0.3*72,
		},
		{
			// filler term max(0, 100-0.5*400) = 0; asl 2 → 30.
			name: "heavy fillers and fragments",
			m:    FluencyMetrics{FillerRatio: 0.5, WordsPerMinute: 0, AvgSentenceLength: 2},
			want: 0.4*0 + 0.3*50 + 0.3*30,
		},
		{
			// asl 25 → max(50, 100-10*3) = 70.
			name: "run-on sentences penalised",
			m:    FluencyMetrics{FillerRatio: 0, WordsPerMinute: 0, AvgSentenceLength: 25},
			want: 0.4*100 + 0.3*50 + 0.3*70,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CalibrateFluency(tt.m); !almostEqual(got, tt.want) {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEstimateProficiency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		score     float64
		wantTOEIC int
		wantIELTS float64
	}{
		{"floor", 0, 10, 1.0},
		{"ceiling", 100, 990, 9.0},
		{"breakpoint hit", 55, 500, 5.5},
		{"interpolated midpoint", 62.5, 575, 6.0},
		{"clamped below", -10, 10, 1.0},
		{"clamped above", 150, 990, 9.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := EstimateProficiency(tt.score)
			if got.TOEIC != tt.wantTOEIC {
				t.Errorf("TOEIC: want %d, got %d", tt.wantTOEIC, got.TOEIC)
			}
			if got.IELTS != tt.wantIELTS {
				t.Errorf("IELTS: want %v, got %v", tt.wantIELTS, got.IELTS)
			}
		})
	}
}

func TestWeightsOverall(t *testing.T) {
	t.Parallel()

	t.Run("all hundred", func(t *testing.T) {
		t.Parallel()
		c := ComponentScores{
			Vocabulary: 100, Grammar: 100, Fluency: 100,
			Comprehension: 100, Coherence: 100, PronunciationProxy: 100,
		}
		if got := DefaultWeights().Overall(c); !almostEqual(got, 100.0) {
			t.Errorf("want 100.0, got %v", got)
		}
	})

	t.Run("all zero", func(t *testing.T) {
		t.Parallel()
		if got := DefaultWeights().Overall(ComponentScores{}); !almostEqual(got, 0.0) {
			t.Errorf("want 0.0, got %v", got)
		}
	})

	t.Run("mixed components", func(t *testing.T) {
		t.Parallel()
		c := ComponentScores{
			Vocabulary:         80,
			Grammar:            70,
			Fluency:            60,
			Comprehension:      50,
			Coherence:          40,
			PronunciationProxy: 30,
		}
		// 16 + 17.5 + 12 + 7.5 + 6 + 1.5.
		if got := DefaultWeights().Overall(c); !almostEqual(got, 60.5) {
			t.Errorf("want 60.5, got %v", got)
		}
	})

	t.Run("custom table", func(t *testing.T) {
		t.Parallel()
		w := Weights{Vocabulary: 0.5, Grammar: 0.5}
		c := ComponentScores{Vocabulary: 80, Grammar: 60, Fluency: 100}
		if got := w.Overall(c); !almostEqual(got, 70.0) {
			t.Errorf("want 70.0 under a vocabulary/grammar-only table, got %v", got)
		}
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		t.Parallel()
		c := NewComponentScores()
		if a, b := DefaultWeights().Overall(c), DefaultWeights().Overall(c); a != b {
			t.Errorf("want identical results, got %v and %v", a, b)
		}
	})
}
