package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/session"
)

// ownSession resolves the session in the URL and enforces that it belongs
// to the caller. Sessions are never visible to anyone but their student.
func ownSession(mgr *session.Manager, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := mgr.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainErr(w, err)
		return nil, false
	}
	if s.StudentID != authmw.SubjectFromContext(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return s, true
}

// GET /api/sessions/{id}
func GetSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	}
}

// POST /api/sessions/{id}/answer  { "questionId", "optionText" }
func AnswerHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		var req struct {
			QuestionID string `json:"questionId"`
			OptionText string `json:"optionText"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := s.SelectOption(req.QuestionID, req.OptionText); err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(s.Snapshot())
	}
}

// POST /api/sessions/{id}/visibility
// Reports a page-hide event; the response says whether to warn or expect
// an automatic submission.
func VisibilityHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		_ = json.NewEncoder(w).Encode(s.VisibilityHidden())
	}
}

// POST /api/sessions/{id}/submit
func SubmitHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := ownSession(mgr, w, r)
		if !ok {
			return
		}
		sub, err := s.Submit(session.TriggerManual)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(sub)
	}
}
