package profile

import (
	"testing"

	"github.com/parlando-ai/parlando/internal/session"
)

func TestStoreLoadMissingReturnsDefault(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	p, err := store.Load("newcomer")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.UserID != "newcomer" {
		t.Errorf("want user id %q, got %q", "newcomer", p.UserID)
	}
	if p.EstimatedCEFR != "B1" {
		t.Errorf("want default CEFR B1, got %q", p.EstimatedCEFR)
	}
	if p.SessionCount != 0 || len(p.ScoreHistory) != 0 {
		t.Errorf("want empty history, got %+v", p)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	p := New("alex")
	p.Interests = []string{"cooking", "travel"}
	p.WeakGrammarPoints = []string{"past tense"}
	p.RecordSession("sess-1", 67.5, session.LevelUpperIntermediate, 12.5)
	p.RecordErrorPattern("he don't")
	p.RecordErrorPattern("he don't")

	if err := store.Save(p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("alex")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.EstimatedCEFR != "B2" {
		t.Errorf("want CEFR B2 after upper_intermediate session, got %q", got.EstimatedCEFR)
	}
	if got.SessionCount != 1 {
		t.Errorf("want 1 session, got %d", got.SessionCount)
	}
	if len(got.ScoreHistory) != 1 || got.ScoreHistory[0].OverallScore != 67.5 {
		t.Errorf("want recorded score 67.5, got %+v", got.ScoreHistory)
	}
	if got.ErrorPatterns["he don't"] != 2 {
		t.Errorf("want error pattern counted twice, got %v", got.ErrorPatterns)
	}
	if got.TotalPracticeMinutes != 12.5 {
		t.Errorf("want 12.5 practice minutes, got %v", got.TotalPracticeMinutes)
	}
	if got.UpdatedAt.IsZero() || got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("want UpdatedAt stamped on save, got %v", got.UpdatedAt)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	p := New("kim")
	if err := store.Save(p); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	p.Interests = []string{"music"}
	if err := store.Save(p); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := store.Load("kim")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Interests) != 1 || got.Interests[0] != "music" {
		t.Errorf("want overwritten interests, got %v", got.Interests)
	}
}
