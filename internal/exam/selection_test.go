package exam

import (
	"errors"
	"math/rand"
	"testing"
)

func bank() []Question {
	return []Question{
		{ID: "g1", Subject: "Geography"},
		{ID: "g2", Subject: "  geography "},
		{ID: "g3", Subject: "GEOGRAPHY"},
		{ID: "m1", Subject: "Math"},
		{ID: "m2", Subject: "Math"},
	}
}

func TestRandomSelectionMatchesSubjectLoosely(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ids, err := RandomSelection(bank(), " geography ", 3, rng)
	if err != nil {
		t.Fatalf("RandomSelection: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("got %d ids, want 3", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		if id != "g1" && id != "g2" && id != "g3" {
			t.Fatalf("selected %q from the wrong subject", id)
		}
		if seen[id] {
			t.Fatalf("id %q selected twice", id)
		}
		seen[id] = true
	}
}

func TestRandomSelectionSubset(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	ids, err := RandomSelection(bank(), "Math", 1, rng)
	if err != nil {
		t.Fatalf("RandomSelection: %v", err)
	}
	if len(ids) != 1 || (ids[0] != "m1" && ids[0] != "m2") {
		t.Fatalf("unexpected selection %v", ids)
	}
}

func TestRandomSelectionPoolTooSmall(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	_, err := RandomSelection(bank(), "Math", 3, rng)
	var insufficient *InsufficientQuestionsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientQuestionsError", err)
	}
	if insufficient.Available != 2 || insufficient.Requested != 3 {
		t.Fatalf("unexpected error detail %+v", insufficient)
	}
}

func TestRandomSelectionRejectsBadInput(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	if _, err := RandomSelection(bank(), "  ", 1, rng); !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("blank subject: err = %v", err)
	}
	if _, err := RandomSelection(bank(), "Math", 0, rng); err == nil {
		t.Fatal("zero count should be rejected")
	}
}
