package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

var (
	ErrExamNotFound    = errors.New("exam not found")
	ErrNotPublished    = errors.New("exam is not published")
	ErrNotYetScheduled = errors.New("exam has not started yet")
	ErrNoQuestions     = errors.New("exam has no questions")
	ErrSessionNotFound = errors.New("session not found")
)

// AlreadySubmittedError means the student finished this exam before; the
// caller should redirect to the existing result.
type AlreadySubmittedError struct {
	SubmissionID string
}

func (e *AlreadySubmittedError) Error() string {
	return "exam already submitted"
}

// Manager owns all live sessions. Entry validation, the per-session ticker
// goroutines, and lookup by id or by (exam, student) all go through it.
type Manager struct {
	st   store.Store
	opts []Option

	mu       sync.Mutex
	sessions  map[string]*Session // by session id
	byAttempt map[string]string   // examID + "\x00" + studentID -> session id

	tickless bool
	done     chan struct{}
	closed   bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// Tickless disables the per-session ticker goroutines. Tests drive time by
// calling Tick on sessions directly.
func Tickless() ManagerOption {
	return func(m *Manager) { m.tickless = true }
}

// WithSessionOptions forwards options to every session the manager creates.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.opts = opts }
}

func NewManager(st store.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		st:        st,
		sessions:  map[string]*Session{},
		byAttempt: map[string]string{},
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func attemptKey(examID, studentID string) string {
	return examID + "\x00" + studentID
}

// Enter validates whether the student may start the exam and returns a live
// session. The checks run in a fixed order so callers always get the most
// specific refusal: missing exam, unpublished, not yet open, then already
// submitted. Re-entering an attempt that is still running returns the same
// session with its clock and answers intact.
func (m *Manager) Enter(ctx context.Context, examID string, student exam.User) (*Session, error) {
	ex, err := m.st.GetExam(ctx, examID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	if !ex.Published {
		return nil, ErrNotPublished
	}
	if time.Now().Before(ex.ScheduledAt) {
		return nil, ErrNotYetScheduled
	}
	if prior, err := m.st.FindSubmission(ctx, examID, student.ID); err == nil {
		return nil, &AlreadySubmittedError{SubmissionID: prior.ID}
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check prior submission: %w", err)
	}

	m.mu.Lock()
	if id, ok := m.byAttempt[attemptKey(examID, student.ID)]; ok {
		if s := m.sessions[id]; s != nil && s.State() == StateActive {
			m.mu.Unlock()
			return s, nil
		}
	}
	m.mu.Unlock()

	// Resolve question ids; ids whose questions were deleted since the exam
	// was composed are skipped rather than failing the whole attempt.
	questions := make([]exam.Question, 0, len(ex.QuestionIDs))
	for _, qid := range ex.QuestionIDs {
		q, err := m.st.GetQuestion(ctx, qid)
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("exam references missing question", "exam", examID, "question", qid)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load question %s: %w", qid, err)
		}
		questions = append(questions, q)
	}

	s, err := New(ex, questions, student, m.st, m.opts...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	// Re-check under the lock: two racing Enter calls for the same attempt
	// must converge on one session.
	if id, ok := m.byAttempt[attemptKey(examID, student.ID)]; ok {
		if prior := m.sessions[id]; prior != nil && prior.State() == StateActive {
			m.mu.Unlock()
			return prior, nil
		}
	}
	m.sessions[s.ID] = s
	m.byAttempt[attemptKey(examID, student.ID)] = s.ID
	m.mu.Unlock()

	if !m.tickless {
		go m.runClock(s)
	}
	return s, nil
}

// Get returns a session by id.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// FailExam marks every live session for the exam as failed. The exams API
// calls it when an exam is deleted so in-flight attempts cannot submit
// against a record that no longer exists.
func (m *Manager) FailExam(examID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ExamID == examID {
			s.Fail()
		}
	}
}

// runClock drives one session's countdown at one tick per second until the
// session reaches a terminal state or the manager shuts down.
func (m *Manager) runClock(s *Session) {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			if !s.Tick() {
				return
			}
		}
	}
}

// Close stops all session clocks. Sessions themselves stay readable so that
// in-flight result lookups still work during shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}
