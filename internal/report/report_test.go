package report

import (
	"context"
	"testing"
	"time"

	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

func sub(examID string, pct, switches int) exam.Submission {
	return exam.Submission{
		ExamID:         examID,
		ScoreData:      exam.ScoreData{Percentage: pct},
		TabSwitchCount: switches,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("Summarize(nil) = %+v, want zeros", got)
	}
}

func TestSummarize(t *testing.T) {
	subs := []exam.Submission{
		sub("e1", 90, 0),
		sub("e1", 60, 1),
		sub("e1", 55, 2),
	}
	got := Summarize(subs)
	want := Summary{
		TotalSubmissions: 3,
		AverageScore:     68, // (90+60+55)/3 = 68.33 rounds to 68
		PassRate:         67, // 2 of 3 at or above 60, 66.67 rounds to 67
	}
	if got.TotalSubmissions != want.TotalSubmissions ||
		got.AverageScore != want.AverageScore ||
		got.PassRate != want.PassRate {
		t.Fatalf("Summarize = %+v, want %+v", got, want)
	}
	if got.AverageTabSwitches != 1.0 {
		t.Fatalf("AverageTabSwitches = %v, want 1.0", got.AverageTabSwitches)
	}
}

func TestSummarizeTabSwitchRounding(t *testing.T) {
	subs := []exam.Submission{
		sub("e1", 100, 1),
		sub("e1", 100, 0),
		sub("e1", 100, 0),
	}
	// 1/3 rounds to 0.3 at one decimal.
	if got := Summarize(subs).AverageTabSwitches; got != 0.3 {
		t.Fatalf("AverageTabSwitches = %v, want 0.3", got)
	}
}

func TestForAuthorScopesToOwnExams(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exams := []exam.Exam{
		{ID: "e1", Title: "Mine", Subject: "s", Duration: 1, ScheduledAt: time.Now(), QuestionIDs: []string{"q"}, AuthorID: "me"},
		{ID: "e2", Title: "Theirs", Subject: "s", Duration: 1, ScheduledAt: time.Now(), QuestionIDs: []string{"q"}, AuthorID: "other"},
	}
	for _, e := range exams {
		if err := st.PutExam(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
	subs := []exam.Submission{
		{ID: "s1", ExamID: "e1", StudentID: "u1", SubmittedAt: time.Now().Add(-time.Hour), ScoreData: exam.ScoreData{Percentage: 80}},
		{ID: "s2", ExamID: "e2", StudentID: "u1", SubmittedAt: time.Now(), ScoreData: exam.ScoreData{Percentage: 20}},
	}
	for _, s := range subs {
		if err := st.CreateSubmission(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewService(st, st)
	got, err := svc.ForAuthor(ctx, "me")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary.TotalSubmissions != 1 || got.Summary.AverageScore != 80 {
		t.Fatalf("scoped summary = %+v", got.Summary)
	}
	if len(got.Submissions) != 1 || got.Submissions[0].ID != "s1" {
		t.Fatalf("scoped submissions = %+v", got.Submissions)
	}
	if got.Submissions[0].ExamTitle != "Mine" {
		t.Fatalf("ExamTitle = %q, want Mine", got.Submissions[0].ExamTitle)
	}

	all, err := svc.ForAuthor(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if all.Summary.TotalSubmissions != 2 {
		t.Fatalf("admin view TotalSubmissions = %d, want 2", all.Summary.TotalSubmissions)
	}
	// Newest first.
	if all.Submissions[0].ID != "s2" {
		t.Fatalf("sort order wrong: first is %q", all.Submissions[0].ID)
	}
}
