package assess

import (
	"context"
	"testing"
	"time"

	"github.com/parlando-ai/parlando/internal/session"
	"github.com/parlando-ai/parlando/pkg/provider/llm"
	"github.com/parlando-ai/parlando/pkg/provider/llm/mock"
)

// sessionWithUserTurns builds an active session carrying n learner turns.
func sessionWithUserTurns(t *testing.T, n int) *session.Session {
	t.Helper()
	sess := session.New()
	if err := sess.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < n; i++ {
		sess.AddUtterance(session.RoleUser, "I think the answer is somewhere in the middle.", 0)
		sess.AddUtterance(session.RoleAssistant, "Interesting, tell me more.", 0)
	}
	return sess
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestBlend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rule, model, ruleWeight, want float64
	}{
		{80, 60, 0.6, 72.0},
		{100, 0, 0.5, 50.0},
		{50, 50, 0.7, 50.0},
		{0, 100, 0.6, 40.0},
	}

	for _, tt := range tests {
		if got := blend(tt.rule, tt.model, tt.ruleWeight); got != tt.want {
			t.Errorf("blend(%v, %v, %v): want %v, got %v",
				tt.rule, tt.model, tt.ruleWeight, tt.want, got)
		}
	}
}

func TestHybridNoOracleBeforeMinUtterances(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	h := NewHybridScorer(
		NewRuleBasedScorer(),
		NewOracleEvaluator(provider),
		HybridConfig{},
	)

	sess := sessionWithUserTurns(t, 2)
	for i := 0; i < 10; i++ {
		h.Update(context.Background(), sess)
	}

	if calls := provider.Calls(); len(calls) != 0 {
		t.Errorf("want no oracle calls below the utterance minimum, got %d", len(calls))
	}
	for _, r := range h.History() {
		if r.Source != SourceRuleBased {
			t.Errorf("want rule_based source, got %q", r.Source)
		}
	}
}

func TestHybridHistoryGrowsPerUpdate(t *testing.T) {
	t.Parallel()

	h := NewHybridScorer(NewRuleBasedScorer(), nil, HybridConfig{})
	sess := sessionWithUserTurns(t, 4)

	const updates = 7
	for i := 0; i < updates; i++ {
		h.Update(context.Background(), sess)
	}

	history := h.History()
	if len(history) != updates {
		t.Fatalf("want %d history entries, got %d", updates, len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Errorf("entry %d timestamp precedes entry %d", i, i-1)
		}
	}

	latest, ok := h.LatestResult()
	if !ok {
		t.Fatal("want LatestResult ok")
	}
	if latest != history[len(history)-1] {
		t.Error("want LatestResult to match final history entry")
	}
}

func TestHybridLatestResultEmpty(t *testing.T) {
	t.Parallel()

	h := NewHybridScorer(NewRuleBasedScorer(), nil, HybridConfig{})
	if _, ok := h.LatestResult(); ok {
		t.Error("want no latest result before any update")
	}
}

func TestHybridAtMostOneEvaluationInFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	provider := &mock.Provider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-release
			return &llm.CompletionResponse{Content: validOracleJSON}, nil
		},
	}
	h := NewHybridScorer(
		NewRuleBasedScorer(),
		NewOracleEvaluator(provider),
		HybridConfig{UtteranceInterval: 1},
	)

	sess := sessionWithUserTurns(t, 5)
	for i := 0; i < 20; i++ {
		h.Update(context.Background(), sess)
	}

	eventually(t, func() bool { return len(provider.Calls()) == 1 },
		"want exactly one oracle call while the first is blocked")

	close(release)
	eventually(t, func() bool {
		r := h.Update(context.Background(), sess)
		return r.Source == SourceHybrid
	}, "want hybrid source after the oracle result lands")
}

func TestHybridBlendsOracleDimensions(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	h := NewHybridScorer(
		NewRuleBasedScorer(),
		NewOracleEvaluator(provider),
		HybridConfig{},
	)

	sess := sessionWithUserTurns(t, 3)
	raw := NewRuleBasedScorer().Evaluate(context.Background(), sess.UserTextJoined(), sess.DurationSeconds())

	first := h.Update(context.Background(), sess)
	if first.Source != SourceRuleBased {
		t.Errorf("want first result rule_based, got %q", first.Source)
	}
	if first.Components.Comprehension != neutralScore {
		t.Errorf("want neutral comprehension before oracle, got %v",
			first.Components.Comprehension)
	}

	eventually(t, func() bool { return len(provider.Calls()) == 1 },
		"want the oracle evaluation to fire")
	eventually(t, func() bool {
		r := h.Update(context.Background(), sess)
		return r.Source == SourceHybrid
	}, "want hybrid source once the oracle result lands")

	latest, _ := h.LatestResult()
	// Oracle-only dimensions come straight from the model.
	if latest.Components.Comprehension != 72 {
		t.Errorf("want comprehension 72 from the oracle, got %v",
			latest.Components.Comprehension)
	}
	if latest.Components.Coherence != 68 || latest.Components.PronunciationProxy != 80 {
		t.Errorf("want oracle coherence/pronunciation, got %+v", latest.Components)
	}
	// Shared dimensions blend the rule-based value with the model's.
	if want := blend(raw.Vocabulary, 65, 0.6); latest.Components.Vocabulary != want {
		t.Errorf("want blended vocabulary %v, got %v", want, latest.Components.Vocabulary)
	}
	if want := blend(raw.Grammar, 70, 0.6); latest.Components.Grammar != want {
		t.Errorf("want blended grammar %v, got %v", want, latest.Components.Grammar)
	}
}

func TestHybridNeutralPriorBeforeFirstOracleResult(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	provider := &mock.Provider{
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-release
			return &llm.CompletionResponse{Content: validOracleJSON}, nil
		},
	}
	h := NewHybridScorer(
		NewRuleBasedScorer(),
		NewOracleEvaluator(provider),
		HybridConfig{},
	)

	sess := sessionWithUserTurns(t, 3)
	raw := NewRuleBasedScorer().Evaluate(context.Background(), sess.UserTextJoined(), sess.DurationSeconds())

	// The oracle call is parked on release, so the slot still holds the
	// neutral prior: rule dimensions must be pulled toward 50, not raw.
	r := h.Update(context.Background(), sess)
	if want := blend(raw.Vocabulary, neutralScore, 0.6); r.Components.Vocabulary != want {
		t.Errorf("want pre-oracle vocabulary %v (rule %v toward neutral), got %v",
			want, raw.Vocabulary, r.Components.Vocabulary)
	}
	if want := blend(raw.Grammar, neutralScore, 0.6); r.Components.Grammar != want {
		t.Errorf("want pre-oracle grammar %v, got %v", want, r.Components.Grammar)
	}
}

func TestHybridUsesConfiguredWeightTable(t *testing.T) {
	t.Parallel()

	vocabOnly := Weights{Vocabulary: 1.0}
	h := NewHybridScorer(NewRuleBasedScorer(), nil, HybridConfig{Weights: vocabOnly})

	sess := sessionWithUserTurns(t, 2)
	r := h.Update(context.Background(), sess)
	if r.OverallScore != r.Components.Vocabulary {
		t.Errorf("want overall %v under a vocabulary-only table, got %v",
			r.Components.Vocabulary, r.OverallScore)
	}
}

func TestHybridTimeIntervalTriggersReevaluation(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	h := NewHybridScorer(
		NewRuleBasedScorer(),
		NewOracleEvaluator(provider),
		HybridConfig{UtteranceInterval: 1000, TimeInterval: 2 * time.Minute},
	)

	clock := time.Now()
	h.now = func() time.Time { return clock }

	sess := sessionWithUserTurns(t, 3)

	h.Update(context.Background(), sess)
	eventually(t, func() bool {
		r := h.Update(context.Background(), sess)
		return len(provider.Calls()) == 1 && r.Source == SourceHybrid
	}, "want the initial oracle evaluation to land")

	// Within the window nothing new fires.
	clock = clock.Add(time.Minute)
	h.Update(context.Background(), sess)
	if len(provider.Calls()) != 1 {
		t.Fatalf("want no re-evaluation inside the interval, got %d calls",
			len(provider.Calls()))
	}

	clock = clock.Add(90 * time.Second)
	h.Update(context.Background(), sess)
	eventually(t, func() bool { return len(provider.Calls()) == 2 },
		"want a re-evaluation after the time interval elapsed")
}

func TestHybridNewSessionDropsOracleSnapshot(t *testing.T) {
	t.Parallel()

	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: validOracleJSON},
	}
	h := NewHybridScorer(
		NewRuleBasedScorer(),
		NewOracleEvaluator(provider),
		HybridConfig{},
	)

	first := sessionWithUserTurns(t, 3)
	h.Update(context.Background(), first)
	eventually(t, func() bool {
		r := h.Update(context.Background(), first)
		return r.Source == SourceHybrid
	}, "want hybrid source for the first session")

	second := sessionWithUserTurns(t, 2)
	r := h.Update(context.Background(), second)
	if r.Source != SourceRuleBased {
		t.Errorf("want a fresh session to start rule_based, got %q", r.Source)
	}
	if r.Components.Comprehension != neutralScore {
		t.Errorf("want neutral comprehension for a fresh session, got %v",
			r.Components.Comprehension)
	}
}
