package http

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/damitheswitch/exam-master/internal/auth/middleware"
	"github.com/damitheswitch/exam-master/internal/exam"
	"github.com/damitheswitch/exam-master/internal/store"
)

// GET /api/questions?subject=
func ListQuestionsHandler(questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := questions.ListQuestions(r.Context(), r.URL.Query().Get("subject"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if list == nil {
			list = []exam.Question{}
		}
		_ = json.NewEncoder(w).Encode(list)
	}
}

// POST /api/questions
func CreateQuestionHandler(questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q exam.Question
		if !decodeJSON(w, r, &q) {
			return
		}
		if err := exam.ValidateQuestion(q); err != nil {
			writeDomainErr(w, err)
			return
		}
		q.ID = uuid.NewString()
		q.AuthorID = authmw.SubjectFromContext(r.Context())
		q.Points = q.PointsOrDefault()
		if err := questions.PutQuestion(r.Context(), q); err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GET /api/questions/{id}
func GetQuestionHandler(questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := questions.GetQuestion(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

// PUT /api/questions/{id}
func UpdateQuestionHandler(questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		existing, err := questions.GetQuestion(r.Context(), id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if !ownerOrAdmin(r.Context(), existing.AuthorID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var q exam.Question
		if !decodeJSON(w, r, &q) {
			return
		}
		if err := exam.ValidateQuestion(q); err != nil {
			writeDomainErr(w, err)
			return
		}
		q.ID = id
		q.AuthorID = existing.AuthorID
		q.Points = q.PointsOrDefault()
		if err := questions.PutQuestion(r.Context(), q); err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

// DELETE /api/questions/{id}
func DeleteQuestionHandler(questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		existing, err := questions.GetQuestion(r.Context(), id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		if !ownerOrAdmin(r.Context(), existing.AuthorID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := questions.DeleteQuestion(r.Context(), id); err != nil {
			writeDomainErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /api/questions/random?subject=&count=
// Previews a uniform random draw for the exam composer. The chosen ids come
// back in draw order; the composer replaces its selection with them outright
// rather than merging.
func RandomQuestionsHandler(questions store.QuestionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// rand.Rand is not safe for concurrent use, so each request gets
		// its own.
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		subject := r.URL.Query().Get("subject")
		count, err := strconv.Atoi(r.URL.Query().Get("count"))
		if err != nil || count <= 0 {
			http.Error(w, "count must be a positive integer", http.StatusBadRequest)
			return
		}
		bank, err := questions.ListQuestions(r.Context(), "")
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		ids, err := exam.RandomSelection(bank, subject, count, rng)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"questionIds": ids})
	}
}
