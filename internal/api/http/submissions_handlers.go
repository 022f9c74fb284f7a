package http

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/rbac"
	"github.com/damitheswitch/exam-master/internal/store"
)

// GET /api/submissions/my-results
func MyResultsHandler(subs store.SubmissionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := subs.ListSubmissionsByStudent(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].SubmittedAt.After(list[j].SubmittedAt)
		})
		if list == nil {
			list = []exam.Submission{}
		}
		_ = json.NewEncoder(w).Encode(list)
	}
}

// GET /api/submissions?examId=
// Lists every submission for one exam. Only the exam's author and admins
// may read the roster.
func ExamSubmissionsHandler(subs store.SubmissionStore, exams store.ExamStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := r.URL.Query().Get("examId")
		if examID == "" {
			http.Error(w, "examId is required", http.StatusBadRequest)
			return
		}
		e, err := exams.GetExam(r.Context(), examID)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if !ownerOrAdmin(r.Context(), e.AuthorID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		list, err := subs.ListSubmissionsByExams(r.Context(), []string{examID})
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].SubmittedAt.After(list[j].SubmittedAt)
		})
		if list == nil {
			list = []exam.Submission{}
		}
		_ = json.NewEncoder(w).Encode(list)
	}
}

// GET /api/submissions/result/{id}
// The student who made the submission, teachers who authored the exam, and
// admins may read it. Other callers get a 404, not a 403, so submission
// ids can't be enumerated.
func ResultHandler(subs store.SubmissionStore, exams store.ExamStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := subs.GetSubmission(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		ctx := r.Context()
		caller := authmw.SubjectFromContext(ctx)
		role := rbac.RoleFromContext(ctx)
		allowed := sub.StudentID == caller
		if !allowed && rbac.Allowed(role, "submission:view-all") {
			if rbac.Allowed(role, "user:manage") {
				allowed = true
			} else if e, err := exams.GetExam(ctx, sub.ExamID); err == nil && e.AuthorID == caller {
				allowed = true
			}
		}
		if !allowed {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(sub)
	}
}
