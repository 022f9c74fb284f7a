package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/grading"
	"github.com/damitheswitch/exam-master/internal/store"
	syncx "github.com/damitheswitch/exam-master/internal/sync"
)

// State is the authoritative tag for a session's lifecycle. All transitions
// happen in one place (submitLocked and Tick) under the session lock, which
// is what makes the at-most-one-submission invariant checkable.
type State string

const (
	StateActive     State = "active"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateFailed     State = "failed"
)

// Trigger records what caused a submission.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerTimeUp    Trigger = "time-up"
	TriggerIntegrity Trigger = "integrity"
)

// tabSwitchLimit is the hide-event count at which the session force-submits.
const tabSwitchLimit = 3

// DefaultAutoSubmitDelay is the grace period between the third tab switch
// and the forced submission.
const DefaultAutoSubmitDelay = 2 * time.Second

var (
	ErrNotActive       = errors.New("session is not active")
	ErrUnknownQuestion = errors.New("question is not part of this exam")
	ErrUnknownOption   = errors.New("option is not part of this question")
)

// Session is one student's live attempt at one exam. It is event-driven:
// ticks, answer selections, visibility events and submit requests all
// serialize on the session lock.
type Session struct {
	ID          string
	ExamID      string
	StudentID   string
	StudentName string

	mu           sync.Mutex
	state        State
	ex           exam.Exam
	questions    []exam.Question
	answers      map[string]any
	remaining    int // seconds
	tabSwitches  int
	submissionID string
	startedAt    time.Time

	subs   store.SubmissionStore
	events syncx.Recorder

	autoSubmitDelay time.Duration
	pendingSubmit   *time.Timer
}

// Option configures a Session.
type Option func(*Session)

// WithAutoSubmitDelay overrides the integrity auto-submit grace period.
// Tests pass 0 to make the forced submission synchronous-ish.
func WithAutoSubmitDelay(d time.Duration) Option {
	return func(s *Session) { s.autoSubmitDelay = d }
}

// WithEventRecorder wires an event log for submission lifecycle events.
func WithEventRecorder(r syncx.Recorder) Option {
	return func(s *Session) { s.events = r }
}

// New builds an Active session. Entry validation (published, scheduled,
// no prior submission) belongs to the Manager; New only enforces that the
// question set is usable.
func New(ex exam.Exam, questions []exam.Question, student exam.User, subs store.SubmissionStore, opts ...Option) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	s := &Session{
		ID:              uuid.NewString(),
		ExamID:          ex.ID,
		StudentID:       student.ID,
		StudentName:     student.Name,
		state:           StateActive,
		ex:              ex,
		questions:       questions,
		answers:         map[string]any{},
		remaining:       ex.Duration * 60,
		startedAt:       time.Now(),
		subs:            subs,
		autoSubmitDelay: DefaultAutoSubmitDelay,
	}
	for _, q := range questions {
		if q.Type == exam.MultipleChoice {
			s.answers[q.ID] = []string{}
		} else {
			s.answers[q.ID] = ""
		}
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// View is a read-only snapshot for API responses. Questions are sanitized:
// correct-answer flags never leave the server while an attempt is live.
type View struct {
	ID             string          `json:"id"`
	ExamID         string          `json:"examId"`
	ExamTitle      string          `json:"examTitle"`
	State          State           `json:"state"`
	RemainingSec   int             `json:"remainingSec"`
	TabSwitchCount int             `json:"tabSwitchCount"`
	Questions      []exam.Question `json:"questions"`
	Answers        map[string]any  `json:"answers"`
	SubmissionID   string          `json:"submissionId,omitempty"`
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := make([]exam.Question, len(s.questions))
	for i, q := range s.questions {
		qs[i] = q.Sanitized()
	}
	answers := make(map[string]any, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return View{
		ID:             s.ID,
		ExamID:         s.ExamID,
		ExamTitle:      s.ex.Title,
		State:          s.state,
		RemainingSec:   s.remaining,
		TabSwitchCount: s.tabSwitches,
		Questions:      qs,
		Answers:        answers,
		SubmissionID:   s.submissionID,
	}
}

// SelectOption records an answer. Single-choice replaces the prior
// selection; multiple-choice toggles the option in or out of the set.
func (s *Session) SelectOption(questionID, optionText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNotActive
	}
	var q *exam.Question
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			q = &s.questions[i]
			break
		}
	}
	if q == nil {
		return ErrUnknownQuestion
	}
	if !q.HasOption(optionText) {
		return ErrUnknownOption
	}
	if q.Type == exam.MultipleChoice {
		current, _ := s.answers[questionID].([]string)
		next := make([]string, 0, len(current)+1)
		removed := false
		for _, v := range current {
			if v == optionText {
				removed = true
				continue
			}
			next = append(next, v)
		}
		if !removed {
			next = append(next, optionText)
		}
		s.answers[questionID] = next
	} else {
		s.answers[questionID] = optionText
	}
	return nil
}

// Tick advances the countdown by one second. Reaching zero submits exactly
// once; later ticks are no-ops. It reports whether the session still wants
// ticks.
func (s *Session) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return false
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		return true
	}
	if _, err := s.submitLocked(TriggerTimeUp); err != nil {
		// Retryable: the session stays active with the clock at zero, and
		// the next tick (or a manual submit) tries again.
		slog.Error("auto-submit on expiry failed", "session", s.ID, "err", err)
		return true
	}
	return false
}

// VisibilityResult tells the caller how to react to a hide event.
type VisibilityResult struct {
	Count      int  `json:"tabSwitchCount"`
	Warning    bool `json:"warning"`
	AutoSubmit bool `json:"autoSubmit"`
}

// VisibilityHidden handles one page-hide event. Counts only accumulate
// while the session is active with time on the clock, matching the exam
// page behavior. The third event schedules a forced submission after the
// grace period.
func (s *Session) VisibilityHidden() VisibilityResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.remaining <= 0 {
		return VisibilityResult{Count: s.tabSwitches}
	}
	s.tabSwitches++
	if s.tabSwitches < tabSwitchLimit {
		return VisibilityResult{Count: s.tabSwitches, Warning: true}
	}
	if s.pendingSubmit == nil {
		s.pendingSubmit = time.AfterFunc(s.autoSubmitDelay, func() {
			if _, err := s.Submit(TriggerIntegrity); err != nil && !errors.Is(err, ErrNotActive) {
				slog.Error("integrity auto-submit failed", "session", s.ID, "err", err)
			}
		})
	}
	return VisibilityResult{Count: s.tabSwitches, AutoSubmit: true}
}

// Submit finalizes the attempt. It is idempotent: once a submission record
// exists, every further call returns that same record.
func (s *Session) Submit(trigger Trigger) (exam.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(trigger)
}

func (s *Session) submitLocked(trigger Trigger) (exam.Submission, error) {
	switch s.state {
	case StateSubmitted:
		sub, err := s.subs.GetSubmission(context.Background(), s.submissionID)
		if err != nil {
			return exam.Submission{}, err
		}
		return sub, nil
	case StateFailed:
		return exam.Submission{}, ErrNotActive
	case StateSubmitting:
		// submitLocked is only reachable with the lock held, so this state
		// can't be observed here; treat it as not active out of caution.
		return exam.Submission{}, ErrNotActive
	}

	s.state = StateSubmitting
	sub := exam.Submission{
		ID:             uuid.NewString(),
		ExamID:         s.ExamID,
		StudentID:      s.StudentID,
		StudentName:    s.StudentName,
		Answers:        s.answers,
		SubmittedAt:    time.Now().UTC(),
		TimeSpent:      s.ex.Duration*60 - s.remaining,
		TabSwitchCount: s.tabSwitches,
		ScoreData:      grading.Score(s.questions, s.answers),
		ExamTitle:      s.ex.Title,
	}

	err := s.subs.CreateSubmission(context.Background(), sub)
	switch {
	case errors.Is(err, store.ErrDuplicateSubmission):
		// A parallel attempt won the race; adopt its record.
		existing, ferr := s.subs.FindSubmission(context.Background(), s.ExamID, s.StudentID)
		if ferr != nil {
			s.state = StateActive
			return exam.Submission{}, ferr
		}
		sub = existing
	case err != nil:
		// Persistence failed: answers are intact and the student can retry.
		s.state = StateActive
		return exam.Submission{}, fmt.Errorf("persist submission: %w", err)
	}

	s.state = StateSubmitted
	s.submissionID = sub.ID
	if s.pendingSubmit != nil {
		s.pendingSubmit.Stop()
		s.pendingSubmit = nil
	}
	s.recordEvent(sub, trigger)
	return sub, nil
}

func (s *Session) recordEvent(sub exam.Submission, trigger Trigger) {
	if s.events == nil {
		return
	}
	data, _ := json.Marshal(map[string]any{
		"examId":     sub.ExamID,
		"studentId":  sub.StudentID,
		"percentage": sub.ScoreData.Percentage,
		"trigger":    trigger,
	})
	if err := s.events.Append(context.Background(), syncx.Event{
		Type:     "SubmissionCreated",
		Key:      sub.ID,
		DataJSON: string(data),
	}); err != nil {
		slog.Warn("event log append failed", "submission", sub.ID, "err", err)
	}
}

// Fail marks the session unable to continue, e.g. when its backing data
// vanished from the store mid-attempt.
func (s *Session) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		s.state = StateFailed
	}
}

// State returns the current lifecycle tag.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
