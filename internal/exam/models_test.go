package exam

import (
	"encoding/json"
	"testing"
)

func TestSubmissionUnmarshalLegacyFields(t *testing.T) {
	// Older records used tabSwitches and a bare top-level score percentage.
	raw := []byte(`{
		"id": "s1",
		"examId": "e1",
		"studentId": "u1",
		"tabSwitches": 4,
		"score": 85
	}`)
	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sub.TabSwitchCount != 4 {
		t.Fatalf("TabSwitchCount = %d, want 4", sub.TabSwitchCount)
	}
	if sub.ScoreData.Percentage != 85 {
		t.Fatalf("Percentage = %d, want 85", sub.ScoreData.Percentage)
	}
}

func TestSubmissionUnmarshalCurrentFieldsWin(t *testing.T) {
	raw := []byte(`{
		"id": "s1",
		"tabSwitchCount": 1,
		"tabSwitches": 9,
		"scoreData": {"score": 3, "totalPossibleScore": 4, "percentage": 75},
		"score": 10
	}`)
	var sub Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sub.TabSwitchCount != 1 {
		t.Fatalf("TabSwitchCount = %d, want 1", sub.TabSwitchCount)
	}
	if sub.ScoreData != (ScoreData{Score: 3, TotalPossibleScore: 4, Percentage: 75}) {
		t.Fatalf("ScoreData = %+v", sub.ScoreData)
	}
}

func TestQuestionSanitized(t *testing.T) {
	q := Question{
		ID:   "q1",
		Type: SingleChoice,
		Options: []Option{
			{Text: "Paris", IsCorrect: true},
			{Text: "London"},
		},
	}
	s := q.Sanitized()
	for _, o := range s.Options {
		if o.IsCorrect {
			t.Fatal("sanitized question leaked a correct flag")
		}
	}
	// The original must not be touched.
	if !q.Options[0].IsCorrect {
		t.Fatal("Sanitized mutated the receiver")
	}
}

func TestUserPublicOmitsPasswordHash(t *testing.T) {
	u := User{ID: "u1", Name: "A", Email: "a@example.com", PasswordHash: "secret", Role: RoleStudent}
	pub := u.Public()
	if _, ok := pub["passwordHash"]; ok {
		t.Fatal("Public() exposed the password hash")
	}
}
