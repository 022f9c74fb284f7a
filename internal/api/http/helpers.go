package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/rbac"
	"github.com/damitheswitch/exam-master/internal/session"
	"github.com/damitheswitch/exam-master/internal/store"
)

// ownerOrAdmin reports whether the caller may act on a record authored by
// authorID: authors act on their own records, admins on anyone's.
func ownerOrAdmin(ctx context.Context, authorID string) bool {
	if authorID != "" && authorID == authmw.SubjectFromContext(ctx) {
		return true
	}
	return rbac.Allowed(rbac.RoleFromContext(ctx), "user:manage")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

// writeDomainErr maps domain errors to HTTP statuses. Anything unmapped is
// a 500 with a generic body so internals never leak to clients.
func writeDomainErr(w http.ResponseWriter, err error) {
	var already *session.AlreadySubmittedError
	var insufficient *exam.InsufficientQuestionsError
	var unknownQ *exam.UnknownQuestionError
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, session.ErrExamNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrDuplicateEmail):
		http.Error(w, "email already registered", http.StatusConflict)
	case errors.As(err, &already):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        "exam already submitted",
			"submissionId": already.SubmissionID,
		})
	case errors.Is(err, session.ErrNotPublished),
		errors.Is(err, session.ErrNotYetScheduled),
		errors.Is(err, session.ErrNoQuestions):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, session.ErrNotActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrUnknownQuestion),
		errors.Is(err, session.ErrUnknownOption),
		errors.As(err, &insufficient),
		errors.As(err, &unknownQ),
		isValidationErr(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func isValidationErr(err error) bool {
	for _, target := range []error{
		exam.ErrMissingText, exam.ErrMissingSubject, exam.ErrBadQuestionType,
		exam.ErrTooFewOptions, exam.ErrNoCorrectOption, exam.ErrMultipleCorrect,
		exam.ErrEmptyOptionText, exam.ErrMissingTitle, exam.ErrBadDuration,
		exam.ErrNoQuestionsChosen, exam.ErrMissingSchedule,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
