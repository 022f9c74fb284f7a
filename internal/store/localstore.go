package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/damitheswitch/exam-master/internal/exam"
)

// Collection file names, fixed by the on-disk layout.
const (
	fileUsers       = "users.json"
	fileQuestions   = "questions.json"
	fileExams       = "exams.json"
	fileSubmissions = "submissions.json"
)

// LocalStore persists each collection as one JSON array file under dir.
// Writes go through a temp file + rename so readers never observe a partial
// file, and each collection has its own lock held across the whole
// read-modify-write. That lock is what makes submission creation safe when
// two sessions finish at the same moment.
type LocalStore struct {
	dir string

	usersMu       sync.Mutex
	questionsMu   sync.Mutex
	examsMu       sync.Mutex
	submissionsMu sync.Mutex
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir}, nil
}

// readCollection loads a collection file. A missing file is an empty
// collection; so is a malformed one — a corrupt store must not take the
// whole service down with it.
func readCollection[T any](dir, name string) []T {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil
	}
	if len(data) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		slog.Warn("malformed collection file, treating as empty", "file", name, "err", err)
		return nil
	}
	return out
}

func writeCollection[T any](dir, name string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}

// --- users ---

func (s *LocalStore) PutUser(_ context.Context, u exam.User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if u.CreatedAt == 0 {
		u.CreatedAt = time.Now().Unix()
	}
	users := readCollection[exam.User](s.dir, fileUsers)
	replaced := false
	for i, existing := range users {
		if existing.ID == u.ID {
			users[i] = u
			replaced = true
			continue
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	if !replaced {
		users = append(users, u)
	}
	return writeCollection(s.dir, fileUsers, users)
}

func (s *LocalStore) GetUser(_ context.Context, id string) (exam.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	for _, u := range readCollection[exam.User](s.dir, fileUsers) {
		if u.ID == id {
			return u, nil
		}
	}
	return exam.User{}, ErrNotFound
}

func (s *LocalStore) GetUserByEmail(_ context.Context, email string) (exam.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	for _, u := range readCollection[exam.User](s.dir, fileUsers) {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return exam.User{}, ErrNotFound
}

func (s *LocalStore) ListUsers(_ context.Context, role exam.Role) ([]exam.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	var out []exam.User
	for _, u := range readCollection[exam.User](s.dir, fileUsers) {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *LocalStore) DeleteUser(_ context.Context, id string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	users := readCollection[exam.User](s.dir, fileUsers)
	kept := users[:0]
	for _, u := range users {
		if u.ID != id {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return ErrNotFound
	}
	return writeCollection(s.dir, fileUsers, kept)
}

// --- questions ---

func (s *LocalStore) PutQuestion(_ context.Context, q exam.Question) error {
	s.questionsMu.Lock()
	defer s.questionsMu.Unlock()
	q.Points = q.PointsOrDefault()
	questions := readCollection[exam.Question](s.dir, fileQuestions)
	replaced := false
	for i, existing := range questions {
		if existing.ID == q.ID {
			questions[i] = q
			replaced = true
			break
		}
	}
	if !replaced {
		questions = append(questions, q)
	}
	return writeCollection(s.dir, fileQuestions, questions)
}

func (s *LocalStore) GetQuestion(_ context.Context, id string) (exam.Question, error) {
	s.questionsMu.Lock()
	defer s.questionsMu.Unlock()
	for _, q := range readCollection[exam.Question](s.dir, fileQuestions) {
		if q.ID == id {
			return q, nil
		}
	}
	return exam.Question{}, ErrNotFound
}

func (s *LocalStore) ListQuestions(_ context.Context, subject string) ([]exam.Question, error) {
	s.questionsMu.Lock()
	defer s.questionsMu.Unlock()
	want := strings.ToLower(strings.TrimSpace(subject))
	var out []exam.Question
	for _, q := range readCollection[exam.Question](s.dir, fileQuestions) {
		if want == "" || strings.ToLower(strings.TrimSpace(q.Subject)) == want {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *LocalStore) DeleteQuestion(_ context.Context, id string) error {
	s.questionsMu.Lock()
	defer s.questionsMu.Unlock()
	questions := readCollection[exam.Question](s.dir, fileQuestions)
	kept := questions[:0]
	for _, q := range questions {
		if q.ID != id {
			kept = append(kept, q)
		}
	}
	if len(kept) == len(questions) {
		return ErrNotFound
	}
	return writeCollection(s.dir, fileQuestions, kept)
}

// --- exams ---

func (s *LocalStore) PutExam(_ context.Context, e exam.Exam) error {
	s.examsMu.Lock()
	defer s.examsMu.Unlock()
	exams := readCollection[exam.Exam](s.dir, fileExams)
	replaced := false
	for i, existing := range exams {
		if existing.ID == e.ID {
			exams[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		exams = append(exams, e)
	}
	return writeCollection(s.dir, fileExams, exams)
}

func (s *LocalStore) GetExam(_ context.Context, id string) (exam.Exam, error) {
	s.examsMu.Lock()
	defer s.examsMu.Unlock()
	for _, e := range readCollection[exam.Exam](s.dir, fileExams) {
		if e.ID == id {
			return e, nil
		}
	}
	return exam.Exam{}, ErrNotFound
}

func (s *LocalStore) ListExams(_ context.Context, authorID string) ([]exam.Exam, error) {
	s.examsMu.Lock()
	defer s.examsMu.Unlock()
	var out []exam.Exam
	for _, e := range readCollection[exam.Exam](s.dir, fileExams) {
		if authorID == "" || e.AuthorID == authorID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *LocalStore) DeleteExam(_ context.Context, id string) error {
	s.examsMu.Lock()
	defer s.examsMu.Unlock()
	exams := readCollection[exam.Exam](s.dir, fileExams)
	kept := exams[:0]
	for _, e := range exams {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(exams) {
		return ErrNotFound
	}
	return writeCollection(s.dir, fileExams, kept)
}

// --- submissions ---

func (s *LocalStore) CreateSubmission(_ context.Context, sub exam.Submission) error {
	s.submissionsMu.Lock()
	defer s.submissionsMu.Unlock()
	subs := readCollection[exam.Submission](s.dir, fileSubmissions)
	for _, existing := range subs {
		if existing.ExamID == sub.ExamID && existing.StudentID == sub.StudentID {
			return ErrDuplicateSubmission
		}
	}
	subs = append(subs, sub)
	return writeCollection(s.dir, fileSubmissions, subs)
}

func (s *LocalStore) GetSubmission(_ context.Context, id string) (exam.Submission, error) {
	s.submissionsMu.Lock()
	defer s.submissionsMu.Unlock()
	for _, sub := range readCollection[exam.Submission](s.dir, fileSubmissions) {
		if sub.ID == id {
			return sub, nil
		}
	}
	return exam.Submission{}, ErrNotFound
}

func (s *LocalStore) FindSubmission(_ context.Context, examID, studentID string) (exam.Submission, error) {
	s.submissionsMu.Lock()
	defer s.submissionsMu.Unlock()
	for _, sub := range readCollection[exam.Submission](s.dir, fileSubmissions) {
		if sub.ExamID == examID && sub.StudentID == studentID {
			return sub, nil
		}
	}
	return exam.Submission{}, ErrNotFound
}

func (s *LocalStore) ListSubmissionsByExams(_ context.Context, examIDs []string) ([]exam.Submission, error) {
	if len(examIDs) == 0 {
		return nil, nil
	}
	wanted := make(map[string]struct{}, len(examIDs))
	for _, id := range examIDs {
		wanted[id] = struct{}{}
	}
	s.submissionsMu.Lock()
	defer s.submissionsMu.Unlock()
	var out []exam.Submission
	for _, sub := range readCollection[exam.Submission](s.dir, fileSubmissions) {
		if _, ok := wanted[sub.ExamID]; ok {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *LocalStore) ListSubmissionsByStudent(_ context.Context, studentID string) ([]exam.Submission, error) {
	s.submissionsMu.Lock()
	defer s.submissionsMu.Unlock()
	var out []exam.Submission
	for _, sub := range readCollection[exam.Submission](s.dir, fileSubmissions) {
		if sub.StudentID == studentID {
			out = append(out, sub)
		}
	}
	return out, nil
}
