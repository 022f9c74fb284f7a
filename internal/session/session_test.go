package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

func testStore(t *testing.T) *store.LocalStore {
	t.Helper()
	st, err := store.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return st
}

func seed(t *testing.T, st *store.LocalStore) (exam.Exam, exam.User) {
	t.Helper()
	ctx := context.Background()
	questions := []exam.Question{
		{
			ID: "q1", Text: "Capital of France?", Subject: "Geography", Type: exam.SingleChoice,
			Options: []exam.Option{{Text: "Paris", IsCorrect: true}, {Text: "London"}},
		},
		{
			ID: "q2", Text: "European capitals?", Subject: "Geography", Type: exam.MultipleChoice,
			Options: []exam.Option{
				{Text: "Paris", IsCorrect: true},
				{Text: "Berlin", IsCorrect: true},
				{Text: "Sydney"},
			},
		},
	}
	for _, q := range questions {
		if err := st.PutQuestion(ctx, q); err != nil {
			t.Fatalf("PutQuestion: %v", err)
		}
	}
	e := exam.Exam{
		ID:          "e1",
		Title:       "Midterm",
		Subject:     "Geography",
		Duration:    1,
		ScheduledAt: time.Now().Add(-time.Minute),
		QuestionIDs: []string{"q1", "q2"},
		Published:   true,
		AuthorID:    "t1",
	}
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatalf("PutExam: %v", err)
	}
	student := exam.User{ID: "u1", Name: "Student One", Role: exam.RoleStudent}
	if err := st.PutUser(ctx, student); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	return e, student
}

func newTestManager(st *store.LocalStore) *Manager {
	return NewManager(st, Tickless(), WithSessionOptions(WithAutoSubmitDelay(0)))
}

func TestEnterRejections(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)

	if _, err := mgr.Enter(ctx, "nope", student); !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("missing exam: err = %v", err)
	}

	e.Published = false
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Enter(ctx, e.ID, student); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("unpublished: err = %v", err)
	}

	e.Published = true
	e.ScheduledAt = time.Now().Add(time.Hour)
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Enter(ctx, e.ID, student); !errors.Is(err, ErrNotYetScheduled) {
		t.Fatalf("future schedule: err = %v", err)
	}
}

func TestEnterAfterSubmissionRedirects(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)

	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	sub, err := s.Submit(TriggerManual)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err = mgr.Enter(ctx, e.ID, student)
	var already *AlreadySubmittedError
	if !errors.As(err, &already) {
		t.Fatalf("re-enter: err = %v, want AlreadySubmittedError", err)
	}
	if already.SubmissionID != sub.ID {
		t.Fatalf("SubmissionID = %q, want %q", already.SubmissionID, sub.ID)
	}
}

func TestEnterSkipsDanglingQuestionIDs(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	e.QuestionIDs = []string{"q1", "deleted", "q2"}
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatal(err)
	}
	mgr := newTestManager(st)

	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if got := len(s.Snapshot().Questions); got != 2 {
		t.Fatalf("question count = %d, want 2", got)
	}
}

func TestEnterAllQuestionsGone(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	e.QuestionIDs = []string{"gone1", "gone2"}
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatal(err)
	}
	mgr := newTestManager(st)

	if _, err := mgr.Enter(ctx, e.ID, student); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
}

func TestEnterResumesActiveSession(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)

	first, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.SelectOption("q1", "Paris"); err != nil {
		t.Fatal(err)
	}
	second, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatal("re-entry created a new session instead of resuming")
	}
	if got := second.Snapshot().Answers["q1"]; got != "Paris" {
		t.Fatalf("answer lost on resume: %v", got)
	}
}

func TestSelectOptionSemantics(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)
	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}

	// Single-choice replaces.
	if err := s.SelectOption("q1", "London"); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectOption("q1", "Paris"); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().Answers["q1"]; got != "Paris" {
		t.Fatalf("q1 answer = %v, want Paris", got)
	}

	// Multiple-choice toggles.
	for _, text := range []string{"Paris", "Berlin", "Paris"} {
		if err := s.SelectOption("q2", text); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.Snapshot().Answers["q2"].([]string)
	if len(got) != 1 || got[0] != "Berlin" {
		t.Fatalf("q2 answer = %v, want [Berlin]", got)
	}

	if err := s.SelectOption("q9", "Paris"); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("unknown question: err = %v", err)
	}
	if err := s.SelectOption("q1", "Madrid"); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("unknown option: err = %v", err)
	}
}

func TestCountdownAutoSubmits(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)
	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SelectOption("q1", "Paris"); err != nil {
		t.Fatal(err)
	}

	// Duration is one minute: sixty ticks drain the clock.
	for i := 0; i < 59; i++ {
		if !s.Tick() {
			t.Fatalf("session stopped ticking early at %d", i)
		}
	}
	if s.Tick() {
		t.Fatal("session should stop ticking after expiry")
	}
	if got := s.State(); got != StateSubmitted {
		t.Fatalf("state = %s, want submitted", got)
	}

	sub, err := st.FindSubmission(ctx, e.ID, student.ID)
	if err != nil {
		t.Fatalf("FindSubmission: %v", err)
	}
	if sub.TimeSpent != 60 {
		t.Fatalf("TimeSpent = %d, want 60", sub.TimeSpent)
	}
	if sub.ScoreData.Percentage != 50 {
		t.Fatalf("Percentage = %d, want 50", sub.ScoreData.Percentage)
	}
}

func TestVisibilityWarningsThenAutoSubmit(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)
	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}

	for i, want := range []VisibilityResult{
		{Count: 1, Warning: true},
		{Count: 2, Warning: true},
		{Count: 3, AutoSubmit: true},
	} {
		if got := s.VisibilityHidden(); got != want {
			t.Fatalf("event %d: got %+v, want %+v", i+1, got, want)
		}
	}

	// Zero grace period in tests, but the submit still runs on a timer
	// goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateSubmitted {
		if time.Now().After(deadline) {
			t.Fatal("integrity auto-submit never happened")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sub, err := st.FindSubmission(ctx, e.ID, student.ID)
	if err != nil {
		t.Fatalf("FindSubmission: %v", err)
	}
	if sub.TabSwitchCount != 3 {
		t.Fatalf("TabSwitchCount = %d, want 3", sub.TabSwitchCount)
	}

	// Further hide events on a finished session change nothing.
	if got := s.VisibilityHidden(); got.Count != 3 || got.Warning || got.AutoSubmit {
		t.Fatalf("post-submit visibility = %+v", got)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)
	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.Submit(TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Submit(TriggerManual)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("second submit produced a different record: %q vs %q", first.ID, second.ID)
	}

	subs, err := st.ListSubmissionsByExams(ctx, []string{e.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Fatalf("submission count = %d, want 1", len(subs))
	}
}

func TestConcurrentSubmitProducesOneRecord(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)
	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	ids := make(chan string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := s.Submit(TriggerManual)
			if err == nil {
				ids <- sub.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	var last string
	for id := range ids {
		if last != "" && id != last {
			t.Fatalf("divergent submission ids: %q vs %q", id, last)
		}
		last = id
	}
	subs, err := st.ListSubmissionsByExams(ctx, []string{e.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 {
		t.Fatalf("submission count = %d, want 1", len(subs))
	}
}

// failingSubs fails CreateSubmission a configured number of times before
// delegating to the real store.
type failingSubs struct {
	store.SubmissionStore
	mu       sync.Mutex
	failures int
}

func (f *failingSubs) CreateSubmission(ctx context.Context, sub exam.Submission) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("disk full")
	}
	f.mu.Unlock()
	return f.SubmissionStore.CreateSubmission(ctx, sub)
}

func TestSubmitFailureIsRetryable(t *testing.T) {
	st := testStore(t)
	e, student := seed(t, st)
	flaky := &failingSubs{SubmissionStore: st, failures: 1}

	s, err := New(loadExamQuestions(t, st, e), questionsOf(t, st, e), student, flaky, WithAutoSubmitDelay(0))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Submit(TriggerManual); err == nil {
		t.Fatal("first submit should fail")
	}
	if got := s.State(); got != StateActive {
		t.Fatalf("state after failed submit = %s, want active", got)
	}
	if _, err := s.Submit(TriggerManual); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if got := s.State(); got != StateSubmitted {
		t.Fatalf("state = %s, want submitted", got)
	}
}

func TestFailedSessionRefusesEverything(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	e, student := seed(t, st)
	mgr := newTestManager(st)
	s, err := mgr.Enter(ctx, e.ID, student)
	if err != nil {
		t.Fatal(err)
	}

	s.Fail()
	if got := s.State(); got != StateFailed {
		t.Fatalf("state = %s, want failed", got)
	}
	if err := s.SelectOption("q1", "Paris"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("SelectOption on failed session: err = %v", err)
	}
	if _, err := s.Submit(TriggerManual); !errors.Is(err, ErrNotActive) {
		t.Fatalf("Submit on failed session: err = %v", err)
	}
	if s.Tick() {
		t.Fatal("failed session should not want ticks")
	}
	if got := s.VisibilityHidden(); got.Warning || got.AutoSubmit {
		t.Fatalf("visibility on failed session = %+v", got)
	}
}

func loadExamQuestions(t *testing.T, st *store.LocalStore, e exam.Exam) exam.Exam {
	t.Helper()
	got, err := st.GetExam(context.Background(), e.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func questionsOf(t *testing.T, st *store.LocalStore, e exam.Exam) []exam.Question {
	t.Helper()
	var out []exam.Question
	for _, id := range e.QuestionIDs {
		q, err := st.GetQuestion(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, q)
	}
	return out
}
