package store

import (
	"context"
	"errors"

	"github.com/damitheswitch/exam-master/internal/exam"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrDuplicateSubmission = errors.New("submission already exists for this exam and student")
)

// UserStore holds account records keyed by id, with unique emails.
type UserStore interface {
	PutUser(ctx context.Context, u exam.User) error
	GetUser(ctx context.Context, id string) (exam.User, error)
	GetUserByEmail(ctx context.Context, email string) (exam.User, error)
	ListUsers(ctx context.Context, role exam.Role) ([]exam.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// QuestionStore is the question bank.
type QuestionStore interface {
	PutQuestion(ctx context.Context, q exam.Question) error
	GetQuestion(ctx context.Context, id string) (exam.Question, error)
	ListQuestions(ctx context.Context, subject string) ([]exam.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

// ExamStore holds exam definitions.
type ExamStore interface {
	PutExam(ctx context.Context, e exam.Exam) error
	GetExam(ctx context.Context, id string) (exam.Exam, error)
	ListExams(ctx context.Context, authorID string) ([]exam.Exam, error)
	DeleteExam(ctx context.Context, id string) error
}

// SubmissionStore is append-only: a submission is created at most once per
// (examID, studentID) pair and never mutated afterwards. CreateSubmission
// returns ErrDuplicateSubmission when that pair already has a record, so
// concurrent auto-submit and manual-submit paths cannot double-write.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, s exam.Submission) error
	GetSubmission(ctx context.Context, id string) (exam.Submission, error)
	FindSubmission(ctx context.Context, examID, studentID string) (exam.Submission, error)
	ListSubmissionsByExams(ctx context.Context, examIDs []string) ([]exam.Submission, error)
	ListSubmissionsByStudent(ctx context.Context, studentID string) ([]exam.Submission, error)
}

// Store is the full collection store: users, questions, exams, submissions.
type Store interface {
	UserStore
	QuestionStore
	ExamStore
	SubmissionStore
}
