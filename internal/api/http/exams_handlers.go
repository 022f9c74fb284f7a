package http

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/rbac"
	"github.com/damitheswitch/exam-master/internal/session"
	"github.com/damitheswitch/exam-master/internal/store"
)

// GET /api/exams
// Teachers see their own exams; admins see all of them.
func ListExamsHandler(exams store.ExamStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorID := authmw.SubjectFromContext(r.Context())
		if rbac.Allowed(rbac.RoleFromContext(r.Context()), "user:manage") {
			authorID = ""
		}
		list, err := exams.ListExams(r.Context(), authorID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if list == nil {
			list = []exam.Exam{}
		}
		_ = json.NewEncoder(w).Encode(list)
	}
}

func checkExamQuestions(r *http.Request, questions store.QuestionStore, ids []string) error {
	for _, qid := range ids {
		if _, err := questions.GetQuestion(r.Context(), qid); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return &exam.UnknownQuestionError{ID: qid}
			}
			return err
		}
	}
	return nil
}

// POST /api/exams
func CreateExamHandler(exams store.ExamStore, questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if !decodeJSON(w, r, &e) {
			return
		}
		if err := exam.ValidateExam(e); err != nil {
			writeDomainErr(w, err)
			return
		}
		if err := checkExamQuestions(r, questions, e.QuestionIDs); err != nil {
			writeDomainErr(w, err)
			return
		}
		e.ID = uuid.NewString()
		e.AuthorID = authmw.SubjectFromContext(r.Context())
		e.Published = false
		if err := exams.PutExam(r.Context(), e); err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /api/exams/{id}
func GetExamHandler(exams store.ExamStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.GetExam(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(e)
	}
}

// PUT /api/exams/{id}
func UpdateExamHandler(exams store.ExamStore, questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		existing, err := exams.GetExam(r.Context(), id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		var e exam.Exam
		if !decodeJSON(w, r, &e) {
			return
		}
		if !ownerOrAdmin(r.Context(), existing.AuthorID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := exam.ValidateExam(e); err != nil {
			writeDomainErr(w, err)
			return
		}
		if err := checkExamQuestions(r, questions, e.QuestionIDs); err != nil {
			writeDomainErr(w, err)
			return
		}
		e.ID = id
		e.AuthorID = existing.AuthorID
		e.Published = existing.Published
		if err := exams.PutExam(r.Context(), e); err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(e)
	}
}

// DELETE /api/exams/{id}
// Live attempts at the deleted exam are failed so their clocks stop and any
// late submit is refused.
func DeleteExamHandler(exams store.ExamStore, mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		existing, err := exams.GetExam(r.Context(), id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if !ownerOrAdmin(r.Context(), existing.AuthorID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := exams.DeleteExam(r.Context(), id); err != nil {
			writeDomainErr(w, err)
			return
		}
		mgr.FailExam(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func setPublished(exams store.ExamStore, published bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.GetExam(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if !ownerOrAdmin(r.Context(), e.AuthorID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		e.Published = published
		if err := exams.PutExam(r.Context(), e); err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(e)
	}
}

// POST /api/exams/{id}/publish
func PublishExamHandler(exams store.ExamStore) http.HandlerFunc {
	return setPublished(exams, true)
}

// POST /api/exams/{id}/unpublish
func UnpublishExamHandler(exams store.ExamStore) http.HandlerFunc {
	return setPublished(exams, false)
}

// POST /api/exams/{id}/questions/random  { "subject", "count" }
// Draws count questions uniformly from the bank for the subject and replaces
// the exam's question list with the draw. An undersized pool is a 400 and
// leaves the exam as it was.
func RandomizeExamQuestionsHandler(exams store.ExamStore, questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := exams.GetExam(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if !ownerOrAdmin(r.Context(), e.AuthorID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Subject string `json:"subject"`
			Count   int    `json:"count"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Count <= 0 {
			http.Error(w, "count must be a positive integer", http.StatusBadRequest)
			return
		}
		bank, err := questions.ListQuestions(r.Context(), "")
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		// rand.Rand is not safe for concurrent use, so each request gets
		// its own.
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		ids, err := exam.RandomSelection(bank, req.Subject, req.Count, rng)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		e.QuestionIDs = ids
		if err := exams.PutExam(r.Context(), e); err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(e)
	}
}

// availableExam is the student's view of an exam: no question ids, plus
// whether this student already submitted and whether it is open yet.
type availableExam struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Subject       string    `json:"subject"`
	Duration      int       `json:"duration"`
	ScheduledAt   time.Time `json:"scheduledDateTime"`
	QuestionCount int       `json:"questionCount"`
	Open          bool      `json:"open"`
	Submitted     bool      `json:"submitted"`
	SubmissionID  string    `json:"submissionId,omitempty"`
}

// GET /api/exams/available
func AvailableExamsHandler(exams store.ExamStore, subs store.SubmissionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := authmw.SubjectFromContext(r.Context())
		list, err := exams.ListExams(r.Context(), "")
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		now := time.Now()
		out := []availableExam{}
		for _, e := range list {
			if !e.Published {
				continue
			}
			ae := availableExam{
				ID:            e.ID,
				Title:         e.Title,
				Subject:       e.Subject,
				Duration:      e.Duration,
				ScheduledAt:   e.ScheduledAt,
				QuestionCount: len(e.QuestionIDs),
				Open:          !e.ScheduledAt.After(now),
			}
			if sub, err := subs.FindSubmission(r.Context(), e.ID, studentID); err == nil {
				ae.Submitted = true
				ae.SubmissionID = sub.ID
			}
			out = append(out, ae)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}

// POST /api/exams/take/{id}
// Starts (or resumes) an attempt and returns the session snapshot.
func TakeExamHandler(mgr *session.Manager, users store.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := users.GetUser(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		s, err := mgr.Enter(r.Context(), chi.URLParam(r, "id"), u)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	}
}
