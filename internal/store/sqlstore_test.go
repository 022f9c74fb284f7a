package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/damitheswitch/exam-master/internal/db"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

func newSQLStore(t *testing.T) *store.SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return store.NewSQLStore(dbh)
}

func TestSQLUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	u := exam.User{ID: "u1", Name: "Ann", Email: "ann@example.com", PasswordHash: "h", Role: exam.RoleTeacher}
	if err := st.PutUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetUserByEmail(ctx, "ann@example.com")
	if err != nil || got.ID != "u1" || got.Role != exam.RoleTeacher {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}

	if err := st.PutUser(ctx, exam.User{ID: "u2", Email: "ann@example.com"}); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("duplicate email: err = %v", err)
	}

	// Upsert by id updates in place.
	u.Name = "Ann Renamed"
	if err := st.PutUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	got, err = st.GetUser(ctx, "u1")
	if err != nil || got.Name != "Ann Renamed" {
		t.Fatalf("after update: %+v, %v", got, err)
	}

	if err := st.DeleteUser(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if err := st.DeleteUser(ctx, "u1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: err = %v", err)
	}
}

func TestSQLQuestionOptionsSurviveRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	q := exam.Question{
		ID: "q1", Text: "Capital of France?", Subject: "Geography", Type: exam.SingleChoice,
		Options: []exam.Option{{Text: "Paris", IsCorrect: true}, {Text: "London"}},
		Points:  2, AuthorID: "t1",
	}
	if err := st.PutQuestion(ctx, q); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Options) != 2 || !got.Options[0].IsCorrect || got.Options[1].IsCorrect {
		t.Fatalf("options = %+v", got.Options)
	}

	list, err := st.ListQuestions(ctx, "  GEOGRAPHY ")
	if err != nil || len(list) != 1 {
		t.Fatalf("subject filter: %v, %v", list, err)
	}
}

func TestSQLExamRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	scheduled := time.Now().UTC().Truncate(time.Second)
	e := exam.Exam{
		ID: "e1", Title: "Midterm", Subject: "Geography", Duration: 30,
		ScheduledAt: scheduled, QuestionIDs: []string{"q1", "q2"},
		Published: true, AuthorID: "t1",
	}
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetExam(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.ScheduledAt.Equal(scheduled) || !got.Published || len(got.QuestionIDs) != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestSQLSubmissionConflict(t *testing.T) {
	ctx := context.Background()
	st := newSQLStore(t)
	sub := exam.Submission{
		ID: "s1", ExamID: "e1", StudentID: "u1", StudentName: "Ann",
		Answers:     map[string]any{"q1": "Paris", "q2": []string{"Paris", "Berlin"}},
		SubmittedAt: time.Now(),
		ScoreData:   exam.ScoreData{Score: 4, TotalPossibleScore: 4, Percentage: 100},
	}
	if err := st.CreateSubmission(ctx, sub); err != nil {
		t.Fatal(err)
	}
	dup := sub
	dup.ID = "s2"
	if err := st.CreateSubmission(ctx, dup); !errors.Is(err, store.ErrDuplicateSubmission) {
		t.Fatalf("dup insert: err = %v", err)
	}

	got, err := st.FindSubmission(ctx, "e1", "u1")
	if err != nil || got.ID != "s1" {
		t.Fatalf("FindSubmission = %+v, %v", got, err)
	}
	if got.Answers["q1"] != "Paris" {
		t.Fatalf("answers did not round-trip: %+v", got.Answers)
	}
	if got.ScoreData.Percentage != 100 {
		t.Fatalf("score did not round-trip: %+v", got.ScoreData)
	}

	byStudent, err := st.ListSubmissionsByStudent(ctx, "u1")
	if err != nil || len(byStudent) != 1 {
		t.Fatalf("ListSubmissionsByStudent = %v, %v", byStudent, err)
	}
	byExam, err := st.ListSubmissionsByExams(ctx, []string{"e1", "e9"})
	if err != nil || len(byExam) != 1 {
		t.Fatalf("ListSubmissionsByExams = %v, %v", byExam, err)
	}
}
